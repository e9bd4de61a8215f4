package inventory

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/clarencepanto/stockflow-api-backend/internal/handlerutils"
	"github.com/clarencepanto/stockflow-api-backend/internal/servererrors"
	"github.com/clarencepanto/stockflow-api-backend/internal/storage"
)

type store struct {
	db *sqlx.DB
}

func NewStore(db *sqlx.DB) *store {
	return &store{
		db: db,
	}
}

func (s *store) findStockByProductID(ctx context.Context, productID uuid.UUID) (*StockRecord, error) {
	query := `SELECT id, name, stock_level, low_stock_threshold FROM products WHERE id = $1`

	var record StockRecord
	err := s.db.GetContext(ctx, &record, query, productID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, &servererrors.ProductNotFoundError{IDs: []uuid.UUID{productID}}
		}
		return nil, fmt.Errorf("failed to get product stock from inventory store: %w", err)
	}

	return &record, nil
}

func (s *store) withTx(ctx context.Context, fn func(tx LedgerStore) error) error {
	return storage.WithTx(ctx, s.db, func(tx *sqlx.Tx) error {
		return fn(NewLedgerStore(tx))
	})
}

func (s *store) findAdjustmentsByProductID(ctx context.Context, productID uuid.UUID, opts handlerutils.PageOpts) ([]*Adjustment, int, error) {
	countQuery := `SELECT COUNT(*) FROM inventory_adjustments WHERE product_id = $1`
	query := `SELECT id, product_id, user_id, quantity, type, reason, created_at FROM inventory_adjustments WHERE product_id = $1 ORDER BY created_at DESC, id LIMIT $2 OFFSET $3`

	var count int
	if err := s.db.GetContext(ctx, &count, countQuery, productID); err != nil {
		return nil, 0, fmt.Errorf("failed to count adjustments in inventory store: %w", err)
	}

	adjustments := []*Adjustment{}
	err := s.db.SelectContext(ctx, &adjustments, query, productID, opts.Limit, opts.Offset())
	if err != nil {
		return nil, 0, fmt.Errorf("failed to get adjustments from inventory store: %w", err)
	}

	return adjustments, count, nil
}
