package event

import (
	"time"

	"github.com/google/uuid"
)

const (
	StockUpdatedEventName EventName = "stock:updated"
	StockLowEventName     EventName = "stock:low"
)

type StockUpdatedEvent struct {
	ProductID   uuid.UUID `json:"productId"`
	ProductName string    `json:"productName"`
	OldStock    int       `json:"oldStock"`
	NewStock    int       `json:"newStock"`
	Change      int       `json:"change"`
	Type        string    `json:"type"`
	Reason      *string   `json:"reason"`
	Timestamp   time.Time `json:"timestamp"`
}

func (e *StockUpdatedEvent) EventName() EventName {
	return StockUpdatedEventName
}

// StockLowEvent fires when a product's stock drops to or below its threshold.
type StockLowEvent struct {
	ProductID   uuid.UUID `json:"productId"`
	ProductName string    `json:"productName"`
	StockLevel  int       `json:"stockLevel"`
	Threshold   int       `json:"threshold"`
	Timestamp   time.Time `json:"timestamp"`
}

func (e *StockLowEvent) EventName() EventName {
	return StockLowEventName
}
