package inventory

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/clarencepanto/stockflow-api-backend/internal/servererrors"
)

type ledgerStore struct {
	tx sqlx.ExtContext
}

// NewLedgerStore binds the ledger's storage to an open transaction.
func NewLedgerStore(tx *sqlx.Tx) LedgerStore {
	return &ledgerStore{tx: tx}
}

func (s *ledgerStore) LockStock(ctx context.Context, productID uuid.UUID) (*StockRecord, error) {
	query := `SELECT id, name, stock_level, low_stock_threshold FROM products WHERE id = $1 FOR UPDATE`

	var record StockRecord
	err := sqlx.GetContext(ctx, s.tx, &record, query, productID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, &servererrors.ProductNotFoundError{IDs: []uuid.UUID{productID}}
		}
		return nil, fmt.Errorf("failed to lock product stock in ledger store: %w", err)
	}

	return &record, nil
}

func (s *ledgerStore) UpdateStockLevel(ctx context.Context, productID uuid.UUID, stockLevel int) error {
	query := `UPDATE products SET stock_level = $1, updated_at = now() WHERE id = $2`

	_, err := s.tx.ExecContext(ctx, query, stockLevel, productID)
	if err != nil {
		return fmt.Errorf("failed to update stock level in ledger store: %w", err)
	}

	return nil
}

func (s *ledgerStore) InsertAdjustment(ctx context.Context, a *Adjustment) error {
	query := `INSERT INTO inventory_adjustments (id, product_id, user_id, quantity, type, reason, created_at) VALUES ($1, $2, $3, $4, $5, $6, $7)`

	_, err := s.tx.ExecContext(
		ctx,
		query,
		a.ID,
		a.ProductID,
		a.UserID,
		a.Quantity,
		a.Type,
		a.Reason,
		a.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to insert adjustment in ledger store: %w", err)
	}

	return nil
}
