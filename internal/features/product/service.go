package product

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"

	"github.com/clarencepanto/stockflow-api-backend/internal/auth"
	"github.com/clarencepanto/stockflow-api-backend/internal/eventengine/event"
	"github.com/clarencepanto/stockflow-api-backend/internal/features/inventory"
	"github.com/clarencepanto/stockflow-api-backend/internal/servererrors"
)

const initialStockReason = "Initial stock"

type Storer interface {
	withTx(ctx context.Context, fn func(tx productTx) error) error
	findAll(ctx context.Context, queryItems *GetAllProductsRequestQuery) ([]*Product, int, error)
	findByID(ctx context.Context, productID uuid.UUID) (*Product, error)
	findBySKU(ctx context.Context, sku string) (*Product, error)
	updateOne(ctx context.Context, productID uuid.UUID, req *UpdateProductRequest) (*Product, error)
}

type emitter interface {
	Emit(payload event.Payload)
}

type service struct {
	store   Storer
	ledger  *inventory.Ledger
	emitter emitter
	now     func() time.Time
}

func NewService(store Storer, emitter emitter) *service {
	return &service{
		store:   store,
		ledger:  inventory.NewLedger(),
		emitter: emitter,
		now:     time.Now,
	}
}

// CreateProduct inserts the product with zero stock and, when an opening
// stock level is given, records it as an IN adjustment in the same
// transaction.
func (s *service) CreateProduct(ctx context.Context, actor auth.Identity, req *CreateProductRequest) (*Product, error) {
	req.SKU = strings.TrimSpace(req.SKU)
	req.Name = strings.TrimSpace(req.Name)

	if req.SKU == "" {
		return nil, servererrors.NewValidationError("sku", "is required")
	}
	if req.Name == "" {
		return nil, servererrors.NewValidationError("name", "is required")
	}
	if err := checkPrice(req.Price); err != nil {
		return nil, err
	}

	existing, err := s.store.findBySKU(ctx, req.SKU)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		return nil, servererrors.ErrProductAlreadyExists
	}

	now := s.now().UTC()
	product := &Product{
		ID:                uuid.New(),
		SKU:               req.SKU,
		Name:              req.Name,
		Price:             req.Price,
		LowStockThreshold: req.LowStockThreshold,
		CreatedAt:         now,
		UpdatedAt:         now,
	}

	var result *inventory.LedgerResult
	err = s.store.withTx(ctx, func(tx productTx) error {
		if err := tx.insertProduct(ctx, product); err != nil {
			return err
		}

		if req.StockLevel == 0 {
			return nil
		}

		reason := initialStockReason
		var err error
		result, err = s.ledger.Apply(
			ctx,
			tx,
			inventory.Entry{
				ProductID: product.ID,
				Delta:     req.StockLevel,
				ActorID:   actor.ID,
				Type:      inventory.AdjustmentIn,
				Reason:    &reason,
			},
		)
		return err
	})
	if err != nil {
		return nil, err
	}

	log.Info().
		Str("productId", product.ID.String()).
		Str("sku", product.SKU).
		Int("stockLevel", req.StockLevel).
		Msg("product created")

	if result != nil {
		product.StockLevel = result.After.StockLevel
		if s.emitter != nil {
			s.emitter.Emit(result.StockUpdatedEvent())
		}
	}

	return product, nil
}

func (s *service) GetAllProducts(ctx context.Context, queryItems *GetAllProductsRequestQuery) ([]*Product, int, error) {
	queryItems.FilterOpts.Search = strings.TrimSpace(queryItems.FilterOpts.Search)
	return s.store.findAll(ctx, queryItems)
}

func (s *service) GetProduct(ctx context.Context, productID uuid.UUID) (*Product, error) {
	return s.store.findByID(ctx, productID)
}

func (s *service) UpdateProduct(ctx context.Context, productID uuid.UUID, req *UpdateProductRequest) (*Product, error) {
	if req.Name != nil {
		name := strings.TrimSpace(*req.Name)
		if name == "" {
			return nil, servererrors.NewValidationError("name", "must not be empty")
		}
		req.Name = &name
	}

	if req.Price != nil {
		if err := checkPrice(*req.Price); err != nil {
			return nil, err
		}
	}

	if req.isEmpty() {
		return s.store.findByID(ctx, productID)
	}

	return s.store.updateOne(ctx, productID, req)
}

// maxPrice is the largest amount the price column holds.
var maxPrice = decimal.RequireFromString("9999999999.99")

// checkPrice accepts prices the price column stores exactly.
func checkPrice(price decimal.Decimal) error {
	switch {
	case price.IsNegative():
		return servererrors.NewValidationError("price", "must be greater than or equal to 0")
	case !price.Equal(price.Round(2)):
		return servererrors.NewValidationError("price", "must have at most 2 decimal places")
	case price.GreaterThan(maxPrice):
		return servererrors.NewValidationError("price", "must be at most "+maxPrice.StringFixed(2))
	}

	return nil
}
