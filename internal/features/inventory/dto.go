package inventory

import "github.com/google/uuid"

type CreateAdjustmentRequest struct {
	ProductID uuid.UUID `json:"productId" validate:"required"`
	Quantity  int       `json:"quantity" validate:"ne=0,min=-2147483647,max=2147483647"`
	Type      string    `json:"type" validate:"required,oneof=IN OUT"`
	Reason    *string   `json:"reason" validate:"omitempty,max=500"`
}

type CreateAdjustmentResponse struct {
	Adjustment    *Adjustment `json:"adjustment"`
	NewStockLevel int         `json:"newStockLevel"`
}
