package inventory

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

type AdjustmentType string

const (
	AdjustmentIn  AdjustmentType = "IN"
	AdjustmentOut AdjustmentType = "OUT"
)

func ParseAdjustmentType(s string) (AdjustmentType, error) {
	switch t := AdjustmentType(s); t {
	case AdjustmentIn, AdjustmentOut:
		return t, nil
	default:
		return "", fmt.Errorf("unknown adjustment type %q", s)
	}
}

// Adjustment is one immutable row of the stock audit trail.
type Adjustment struct {
	ID        uuid.UUID      `db:"id" json:"id"`
	ProductID uuid.UUID      `db:"product_id" json:"productId"`
	UserID    uuid.UUID      `db:"user_id" json:"userId"`
	Quantity  int            `db:"quantity" json:"quantity"`
	Type      AdjustmentType `db:"type" json:"type"`
	Reason    *string        `db:"reason" json:"reason"`
	CreatedAt time.Time      `db:"created_at" json:"createdAt"`
}

// StockRecord is the slice of a product row the ledger reads and writes.
type StockRecord struct {
	ProductID         uuid.UUID `db:"id" json:"productId"`
	Name              string    `db:"name" json:"name"`
	StockLevel        int       `db:"stock_level" json:"stockLevel"`
	LowStockThreshold int       `db:"low_stock_threshold" json:"lowStockThreshold"`
}
