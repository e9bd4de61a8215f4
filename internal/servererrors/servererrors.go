package servererrors

import (
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
)

// ServerError is an error that already knows which HTTP status it maps to.
// Handlers return it and the ErrorHandler middleware writes it.
type ServerError struct {
	StatusCode int
	Message    string
	Errors     any
}

func New(statusCode int, message string, errs any) *ServerError {
	return &ServerError{
		StatusCode: statusCode,
		Message:    message,
		Errors:     errs,
	}
}

func (e *ServerError) Error() string {
	return e.Message
}

var (
	ErrInvalidRequestPayload = errors.New("invalid request payload")
	ErrValidationFailed      = errors.New("validation failed")
	ErrURLQueryParams        = errors.New("invalid url query params")
	ErrInvalidID             = errors.New("invalid id")

	ErrNoAccessToken      = errors.New("no access token")
	ErrUnauthorized       = errors.New("unauthorized")
	ErrUnauthorizedAccess = errors.New("unauthorized access to resource")

	ErrNotFound                = errors.New("not found")
	ErrProductNotFound         = fmt.Errorf("product %w", ErrNotFound)
	ErrOrderNotFound           = fmt.Errorf("order %w", ErrNotFound)
	ErrProductAlreadyExists    = errors.New("product with this sku already exists")
	ErrInsufficientStock       = errors.New("insufficient stock")
	ErrInvalidAdjustment       = errors.New("invalid adjustment")
	ErrInvalidStatusTransition = errors.New("invalid order status transition")
)

// InsufficientStockError reports the stock a request ran into.
type InsufficientStockError struct {
	ProductID   uuid.UUID `json:"productId"`
	ProductName string    `json:"productName,omitempty"`
	Available   int       `json:"available"`
	Requested   int       `json:"requested"`
}

func (e *InsufficientStockError) Error() string {
	name := e.ProductName
	if name == "" {
		name = e.ProductID.String()
	}

	return fmt.Sprintf(
		"insufficient stock for %s: available %d, requested %d",
		name,
		e.Available,
		e.Requested,
	)
}

func (e *InsufficientStockError) Is(target error) bool {
	return target == ErrInsufficientStock
}

// ProductNotFoundError lists every requested product id that has no match.
type ProductNotFoundError struct {
	IDs []uuid.UUID `json:"productIds"`
}

func (e *ProductNotFoundError) Error() string {
	ids := make([]string, 0, len(e.IDs))
	for _, id := range e.IDs {
		ids = append(ids, id.String())
	}

	return fmt.Sprintf("products not found: %s", strings.Join(ids, ", "))
}

func (e *ProductNotFoundError) Is(target error) bool {
	return target == ErrProductNotFound || target == ErrNotFound
}

// ValidationError carries field level detail of a rejected request.
type ValidationError struct {
	Fields map[string]string `json:"fields"`
}

func NewValidationError(field, msg string) *ValidationError {
	return &ValidationError{
		Fields: map[string]string{field: msg},
	}
}

func (e *ValidationError) Error() string {
	parts := make([]string, 0, len(e.Fields))
	for field, msg := range e.Fields {
		parts = append(parts, field+": "+msg)
	}

	return "validation failed: " + strings.Join(parts, "; ")
}

func (e *ValidationError) Is(target error) bool {
	return target == ErrValidationFailed
}

// AdjustmentError is an ErrInvalidAdjustment with the reason attached.
type AdjustmentError struct {
	Reason string `json:"reason"`
}

func (e *AdjustmentError) Error() string {
	return "invalid adjustment: " + e.Reason
}

func (e *AdjustmentError) Is(target error) bool {
	return target == ErrInvalidAdjustment
}
