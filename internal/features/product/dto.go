package product

import (
	"github.com/shopspring/decimal"

	"github.com/clarencepanto/stockflow-api-backend/internal/handlerutils"
)

// Requests

type CreateProductRequest struct {
	SKU               string          `json:"sku" validate:"required,max=64"`
	Name              string          `json:"name" validate:"required,max=200"`
	Price             decimal.Decimal `json:"price" validate:"gte=0"`
	StockLevel        int             `json:"stockLevel" validate:"gte=0,lte=2147483647"`
	LowStockThreshold int             `json:"lowStockThreshold" validate:"gte=0,lte=2147483647"`
}

// UpdateProductRequest changes catalog fields only; stock moves through
// inventory adjustments and orders.
type UpdateProductRequest struct {
	Name              *string          `json:"name" validate:"omitempty,min=1,max=200"`
	Price             *decimal.Decimal `json:"price" validate:"omitempty,gte=0"`
	LowStockThreshold *int             `json:"lowStockThreshold" validate:"omitempty,gte=0,lte=2147483647"`
}

func (r *UpdateProductRequest) isEmpty() bool {
	return r.Name == nil && r.Price == nil && r.LowStockThreshold == nil
}

type FilterOpts struct {
	Search       string `json:"search"`
	LowStockOnly bool   `json:"lowStockOnly"`
}

type GetAllProductsRequestQuery struct {
	FilterOpts FilterOpts            `json:"filterOpts"`
	PageOpts   handlerutils.PageOpts `json:"pageOpts"`
}
