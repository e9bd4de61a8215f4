package order

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/clarencepanto/stockflow-api-backend/internal/features/inventory"
	"github.com/clarencepanto/stockflow-api-backend/internal/features/product"
	"github.com/clarencepanto/stockflow-api-backend/internal/handlerutils"
	"github.com/clarencepanto/stockflow-api-backend/internal/servererrors"
	"github.com/clarencepanto/stockflow-api-backend/internal/storage"
)

const orderColumns = `id, user_id, status, total_amount, created_at, updated_at`

// orderTx is everything an order write does inside its transaction.
type orderTx interface {
	inventory.LedgerStore
	insertOrder(ctx context.Context, order *Order) error
	insertOrderItems(ctx context.Context, items []*OrderItem) error
	lockOrder(ctx context.Context, orderID uuid.UUID) (*Order, error)
	setOrderStatus(ctx context.Context, orderID uuid.UUID, status Status, at time.Time) error
}

type store struct {
	db *sqlx.DB
}

func NewStore(db *sqlx.DB) *store {
	return &store{
		db: db,
	}
}

func (s *store) withTx(ctx context.Context, fn func(tx orderTx) error) error {
	return storage.WithTx(ctx, s.db, func(tx *sqlx.Tx) error {
		return fn(&txStore{
			LedgerStore: inventory.NewLedgerStore(tx),
			tx:          tx,
		})
	})
}

func (s *store) findProductsByIDs(ctx context.Context, productIDs []uuid.UUID) ([]*product.Product, error) {
	query := `SELECT id, sku, name, price, stock_level, low_stock_threshold, created_at, updated_at FROM products WHERE id = ANY($1::uuid[])`

	products := []*product.Product{}
	err := s.db.SelectContext(ctx, &products, query, pq.Array(uuidStrings(productIDs)))
	if err != nil {
		return nil, fmt.Errorf("failed to get products by ids from order store: %w", err)
	}

	return products, nil
}

func (s *store) findByID(ctx context.Context, orderID uuid.UUID) (*Order, error) {
	query := `SELECT ` + orderColumns + ` FROM orders WHERE id = $1`

	var order Order
	err := s.db.GetContext(ctx, &order, query, orderID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, servererrors.ErrOrderNotFound
		}
		return nil, fmt.Errorf("failed to get order from order store: %w", err)
	}

	if err := s.attachItems(ctx, []*Order{&order}); err != nil {
		return nil, err
	}

	return &order, nil
}

// findAll pages through orders newest first. A nil userID returns every
// user's orders.
func (s *store) findAll(ctx context.Context, userID *uuid.UUID, opts handlerutils.PageOpts) ([]*Order, int, error) {
	countQuery := `SELECT COUNT(*) FROM orders WHERE ($1::uuid IS NULL OR user_id = $1)`
	query := `SELECT ` + orderColumns + ` FROM orders WHERE ($1::uuid IS NULL OR user_id = $1) ORDER BY created_at DESC, id LIMIT $2 OFFSET $3`

	var count int
	if err := s.db.GetContext(ctx, &count, countQuery, userID); err != nil {
		return nil, 0, fmt.Errorf("failed to count orders in order store: %w", err)
	}

	orders := []*Order{}
	if err := s.db.SelectContext(ctx, &orders, query, userID, opts.Limit, opts.Offset()); err != nil {
		return nil, 0, fmt.Errorf("failed to get orders from order store: %w", err)
	}

	if err := s.attachItems(ctx, orders); err != nil {
		return nil, 0, err
	}

	return orders, count, nil
}

func (s *store) attachItems(ctx context.Context, orders []*Order) error {
	if len(orders) == 0 {
		return nil
	}

	query := `SELECT oi.id, oi.order_id, oi.position, oi.product_id, p.name AS product_name, oi.quantity, oi.price_at_time
		FROM order_items oi
		JOIN products p ON p.id = oi.product_id
		WHERE oi.order_id = ANY($1::uuid[])
		ORDER BY oi.order_id, oi.position`

	byID := make(map[uuid.UUID]*Order, len(orders))
	ids := make([]uuid.UUID, 0, len(orders))
	for _, o := range orders {
		o.Items = []*OrderItem{}
		byID[o.ID] = o
		ids = append(ids, o.ID)
	}

	items := []*OrderItem{}
	if err := s.db.SelectContext(ctx, &items, query, pq.Array(uuidStrings(ids))); err != nil {
		return fmt.Errorf("failed to get order items from order store: %w", err)
	}

	for _, item := range items {
		if o, ok := byID[item.OrderID]; ok {
			o.Items = append(o.Items, item)
		}
	}

	return nil
}

type txStore struct {
	inventory.LedgerStore
	tx *sqlx.Tx
}

func (s *txStore) insertOrder(ctx context.Context, o *Order) error {
	query := `INSERT INTO orders (id, user_id, status, total_amount, created_at, updated_at) VALUES ($1, $2, $3, $4, $5, $6)`

	_, err := s.tx.ExecContext(
		ctx,
		query,
		o.ID,
		o.UserID,
		o.Status,
		o.TotalAmount,
		o.CreatedAt,
		o.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to insert order in order store: %w", err)
	}

	return nil
}

func (s *txStore) insertOrderItems(ctx context.Context, items []*OrderItem) error {
	if len(items) == 0 {
		return nil
	}

	query := `INSERT INTO order_items (id, order_id, position, product_id, quantity, price_at_time) VALUES (:id, :order_id, :position, :product_id, :quantity, :price_at_time)`

	if _, err := s.tx.NamedExecContext(ctx, query, items); err != nil {
		return fmt.Errorf("failed to insert order items in order store: %w", err)
	}

	return nil
}

func (s *txStore) lockOrder(ctx context.Context, orderID uuid.UUID) (*Order, error) {
	query := `SELECT ` + orderColumns + ` FROM orders WHERE id = $1 FOR UPDATE`

	var order Order
	err := s.tx.GetContext(ctx, &order, query, orderID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, servererrors.ErrOrderNotFound
		}
		return nil, fmt.Errorf("failed to lock order in order store: %w", err)
	}

	return &order, nil
}

func (s *txStore) setOrderStatus(ctx context.Context, orderID uuid.UUID, status Status, at time.Time) error {
	query := `UPDATE orders SET status = $1, updated_at = $2 WHERE id = $3`

	if _, err := s.tx.ExecContext(ctx, query, status, at, orderID); err != nil {
		return fmt.Errorf("failed to update order status in order store: %w", err)
	}

	return nil
}

func uuidStrings(ids []uuid.UUID) []string {
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		out = append(out, id.String())
	}
	return out
}
