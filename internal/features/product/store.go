package product

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/clarencepanto/stockflow-api-backend/internal/features/inventory"
	"github.com/clarencepanto/stockflow-api-backend/internal/servererrors"
	"github.com/clarencepanto/stockflow-api-backend/internal/storage"
)

const productColumns = `id, sku, name, price, stock_level, low_stock_threshold, created_at, updated_at`

// productTx is what product creation needs inside one transaction: the
// product insert and the ledger for its opening stock.
type productTx interface {
	inventory.LedgerStore
	insertProduct(ctx context.Context, product *Product) error
}

type Store struct {
	db *sqlx.DB
}

func NewStore(db *sqlx.DB) *Store {
	return &Store{
		db: db,
	}
}

func (s *Store) withTx(ctx context.Context, fn func(tx productTx) error) error {
	return storage.WithTx(ctx, s.db, func(tx *sqlx.Tx) error {
		return fn(&txStore{
			LedgerStore: inventory.NewLedgerStore(tx),
			tx:          tx,
		})
	})
}

type txStore struct {
	inventory.LedgerStore
	tx *sqlx.Tx
}

func (s *txStore) insertProduct(ctx context.Context, p *Product) error {
	query := `INSERT INTO products (id, sku, name, price, stock_level, low_stock_threshold, created_at, updated_at) VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`

	_, err := s.tx.ExecContext(
		ctx,
		query,
		p.ID,
		p.SKU,
		p.Name,
		p.Price,
		p.StockLevel,
		p.LowStockThreshold,
		p.CreatedAt,
		p.UpdatedAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return servererrors.ErrProductAlreadyExists
		}
		return fmt.Errorf("failed to insert new product in product store: %w", err)
	}

	return nil
}

func (s *Store) findByID(ctx context.Context, productID uuid.UUID) (*Product, error) {
	query := `SELECT ` + productColumns + ` FROM products WHERE id = $1`

	var product Product
	err := s.db.GetContext(ctx, &product, query, productID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, &servererrors.ProductNotFoundError{IDs: []uuid.UUID{productID}}
		}
		return nil, fmt.Errorf("failed to get product from product store: %w", err)
	}

	return &product, nil
}

func (s *Store) findBySKU(ctx context.Context, sku string) (*Product, error) {
	query := `SELECT ` + productColumns + ` FROM products WHERE sku = $1`

	var product Product
	err := s.db.GetContext(ctx, &product, query, sku)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get product by sku from product store: %w", err)
	}

	return &product, nil
}

func (s *Store) findAll(ctx context.Context, queryItems *GetAllProductsRequestQuery) ([]*Product, int, error) {
	query, countQuery, queryParams := generateQueryAndParams(queryItems)

	var count int
	err := s.db.GetContext(
		ctx,
		&count,
		countQuery,
		queryParams[:len(queryParams)-2]..., // exclude limit and offset
	)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to get all products count from product store: %w", err)
	}

	products := []*Product{}
	if err := s.db.SelectContext(ctx, &products, query, queryParams...); err != nil {
		return nil, 0, fmt.Errorf("failed to get all products from product store: %w", err)
	}

	return products, count, nil
}

func (s *Store) updateOne(ctx context.Context, productID uuid.UUID, req *UpdateProductRequest) (*Product, error) {
	query := `UPDATE products SET
		name = COALESCE($2, name),
		price = COALESCE($3, price),
		low_stock_threshold = COALESCE($4, low_stock_threshold),
		updated_at = now()
	WHERE id = $1
	RETURNING ` + productColumns

	var product Product
	err := s.db.GetContext(
		ctx,
		&product,
		query,
		productID,
		req.Name,
		req.Price,
		req.LowStockThreshold,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, &servererrors.ProductNotFoundError{IDs: []uuid.UUID{productID}}
		}
		return nil, fmt.Errorf("failed to update product in product store: %w", err)
	}

	return &product, nil
}

func generateQueryAndParams(queryItems *GetAllProductsRequestQuery) (string, string, []any) {
	defaultQuery := `SELECT ` + productColumns + ` FROM products`
	defaultCountQuery := `SELECT COUNT(*) FROM products`

	whereClauses := []string{}
	queryParams := []any{}

	if queryItems.FilterOpts.Search != "" {
		whereClauses = append(
			whereClauses,
			fmt.Sprintf(
				"(name ILIKE $%d OR sku ILIKE $%d)",
				len(queryParams)+1, len(queryParams)+1,
			),
		)

		queryParams = append(
			queryParams,
			fmt.Sprintf("%%%s%%", queryItems.FilterOpts.Search),
		)
	}

	if queryItems.FilterOpts.LowStockOnly {
		whereClauses = append(whereClauses, "stock_level <= low_stock_threshold")
	}

	if len(whereClauses) > 0 {
		whereStr := strings.Join(whereClauses, " AND ")

		defaultQuery += " WHERE " + whereStr
		defaultCountQuery += " WHERE " + whereStr
	}

	defaultQuery += " ORDER BY created_at DESC, id"

	defaultQuery += fmt.Sprintf(
		" LIMIT $%d OFFSET $%d",
		len(queryParams)+1,
		len(queryParams)+2,
	)
	queryParams = append(
		queryParams,
		queryItems.PageOpts.Limit,
		queryItems.PageOpts.Offset(),
	)

	return defaultQuery, defaultCountQuery, queryParams
}

func isUniqueViolation(err error) bool {
	var pqErr *pq.Error
	return errors.As(err, &pqErr) && pqErr.Code == "23505"
}
