package inventory

import (
	"context"
	"fmt"
	"math"
	"time"

	"github.com/google/uuid"

	"github.com/clarencepanto/stockflow-api-backend/internal/eventengine/event"
	"github.com/clarencepanto/stockflow-api-backend/internal/servererrors"
)

// MaxStockLevel bounds a stock level and any single movement; it is the
// range of the INTEGER stock and quantity columns.
const MaxStockLevel = math.MaxInt32

// LedgerStore is the transaction-scoped storage the ledger writes through.
// Every call on one LedgerStore belongs to the same transaction.
type LedgerStore interface {
	// LockStock reads the product's stock and holds a write lock on it until
	// the transaction ends. Missing products return ErrProductNotFound.
	LockStock(ctx context.Context, productID uuid.UUID) (*StockRecord, error)
	UpdateStockLevel(ctx context.Context, productID uuid.UUID, stockLevel int) error
	InsertAdjustment(ctx context.Context, adjustment *Adjustment) error
}

type Entry struct {
	ProductID uuid.UUID
	Delta     int
	ActorID   uuid.UUID
	Type      AdjustmentType
	Reason    *string
}

type LedgerResult struct {
	Before     StockRecord
	After      StockRecord
	Adjustment *Adjustment
}

type Ledger struct {
	now   func() time.Time
	newID func() uuid.UUID
}

func NewLedger() *Ledger {
	return &Ledger{
		now:   time.Now,
		newID: uuid.New,
	}
}

// CheckSign enforces the type/sign coupling: IN adds stock, OUT removes it.
func CheckSign(adjType AdjustmentType, delta int) error {
	switch {
	case delta == 0:
		return &servererrors.AdjustmentError{Reason: "quantity must not be zero"}
	case delta > MaxStockLevel || delta < -MaxStockLevel:
		return &servererrors.AdjustmentError{Reason: fmt.Sprintf("quantity must be between -%d and %d", MaxStockLevel, MaxStockLevel)}
	case adjType == AdjustmentIn && delta < 0:
		return &servererrors.AdjustmentError{Reason: "IN adjustments require a positive quantity"}
	case adjType == AdjustmentOut && delta > 0:
		return &servererrors.AdjustmentError{Reason: "OUT adjustments require a negative quantity"}
	case adjType != AdjustmentIn && adjType != AdjustmentOut:
		return &servererrors.AdjustmentError{Reason: "unknown adjustment type " + string(adjType)}
	}

	return nil
}

// CheckLevel reports whether moving current by delta keeps the stock level
// within [0, MaxStockLevel].
func CheckLevel(current *StockRecord, delta int) error {
	newLevel := current.StockLevel + delta

	switch {
	case newLevel < 0:
		return &servererrors.InsufficientStockError{
			ProductID:   current.ProductID,
			ProductName: current.Name,
			Available:   current.StockLevel,
			Requested:   -delta,
		}
	case newLevel > MaxStockLevel:
		return &servererrors.AdjustmentError{
			Reason: fmt.Sprintf("stock level of %s would exceed %d", current.Name, MaxStockLevel),
		}
	}

	return nil
}

// Apply moves one product's stock by e.Delta and appends the matching
// adjustment row. Both writes go through st, so they commit or roll back with
// the caller's transaction.
func (l *Ledger) Apply(ctx context.Context, st LedgerStore, e Entry) (*LedgerResult, error) {
	if err := CheckSign(e.Type, e.Delta); err != nil {
		return nil, err
	}

	current, err := st.LockStock(ctx, e.ProductID)
	if err != nil {
		return nil, err
	}

	if err := CheckLevel(current, e.Delta); err != nil {
		return nil, err
	}
	newLevel := current.StockLevel + e.Delta

	if err := st.UpdateStockLevel(ctx, e.ProductID, newLevel); err != nil {
		return nil, err
	}

	adjustment := &Adjustment{
		ID:        l.newID(),
		ProductID: e.ProductID,
		UserID:    e.ActorID,
		Quantity:  e.Delta,
		Type:      e.Type,
		Reason:    e.Reason,
		CreatedAt: l.now().UTC(),
	}

	if err := st.InsertAdjustment(ctx, adjustment); err != nil {
		return nil, err
	}

	after := *current
	after.StockLevel = newLevel

	return &LedgerResult{
		Before:     *current,
		After:      after,
		Adjustment: adjustment,
	}, nil
}

func (r *LedgerResult) StockUpdatedEvent() *event.StockUpdatedEvent {
	return &event.StockUpdatedEvent{
		ProductID:   r.After.ProductID,
		ProductName: r.After.Name,
		OldStock:    r.Before.StockLevel,
		NewStock:    r.After.StockLevel,
		Change:      r.Adjustment.Quantity,
		Type:        string(r.Adjustment.Type),
		Reason:      r.Adjustment.Reason,
		Timestamp:   r.Adjustment.CreatedAt,
	}
}

// LowStockEvent is non-nil only when this mutation took the product from
// above its threshold to at or below it.
func (r *LedgerResult) LowStockEvent() *event.StockLowEvent {
	threshold := r.After.LowStockThreshold
	if r.Before.StockLevel <= threshold || r.After.StockLevel > threshold {
		return nil
	}

	return &event.StockLowEvent{
		ProductID:   r.After.ProductID,
		ProductName: r.After.Name,
		StockLevel:  r.After.StockLevel,
		Threshold:   threshold,
		Timestamp:   r.Adjustment.CreatedAt,
	}
}
