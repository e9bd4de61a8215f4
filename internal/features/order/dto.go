package order

import "github.com/google/uuid"

type LineRequest struct {
	ProductID uuid.UUID `json:"productId" validate:"required"`
	Quantity  int       `json:"quantity" validate:"gt=0,lte=2147483647"`
}

type CreateOrderRequest struct {
	Items  []LineRequest `json:"items" validate:"required,min=1,dive"`
	Status *string       `json:"status" validate:"omitempty,oneof=PENDING COMPLETED CANCELLED"`
}

type UpdateOrderStatusRequest struct {
	Status string `json:"status" validate:"required,oneof=PENDING COMPLETED CANCELLED"`
}
