package event

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

const OrderCreatedEventName EventName = "order:created"

type OrderCreatedEvent struct {
	OrderID     uuid.UUID       `json:"orderId"`
	UserID      uuid.UUID       `json:"userId"`
	UserName    string          `json:"userName"`
	TotalAmount decimal.Decimal `json:"totalAmount"`
	ItemCount   int             `json:"itemCount"`
	Status      string          `json:"status"`
	Timestamp   time.Time       `json:"timestamp"`
}

func (e *OrderCreatedEvent) EventName() EventName {
	return OrderCreatedEventName
}

// BroadcastEventNames are the events pushed to realtime listeners.
var BroadcastEventNames = []EventName{
	StockUpdatedEventName,
	StockLowEventName,
	OrderCreatedEventName,
}
