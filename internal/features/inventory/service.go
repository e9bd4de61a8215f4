package inventory

import (
	"context"
	"strings"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/clarencepanto/stockflow-api-backend/internal/auth"
	"github.com/clarencepanto/stockflow-api-backend/internal/eventengine/event"
	"github.com/clarencepanto/stockflow-api-backend/internal/handlerutils"
	"github.com/clarencepanto/stockflow-api-backend/internal/servererrors"
)

type storer interface {
	findStockByProductID(ctx context.Context, productID uuid.UUID) (*StockRecord, error)
	withTx(ctx context.Context, fn func(tx LedgerStore) error) error
	findAdjustmentsByProductID(ctx context.Context, productID uuid.UUID, opts handlerutils.PageOpts) ([]*Adjustment, int, error)
}

type emitter interface {
	Emit(payload event.Payload)
}

type service struct {
	store   storer
	ledger  *Ledger
	emitter emitter
	tracer  trace.Tracer
}

func NewService(store storer, emitter emitter) *service {
	return &service{
		store:   store,
		ledger:  NewLedger(),
		emitter: emitter,
		tracer:  otel.Tracer("stockflow/inventory"),
	}
}

// validAdjustment is a request that passed every check that needs no storage.
type validAdjustment struct {
	productID uuid.UUID
	quantity  int
	adjType   AdjustmentType
	reason    *string
}

func validateAdjustment(req *CreateAdjustmentRequest) (*validAdjustment, error) {
	if req.ProductID == uuid.Nil {
		return nil, servererrors.NewValidationError("productId", "is required")
	}

	adjType, err := ParseAdjustmentType(req.Type)
	if err != nil {
		return nil, servererrors.NewValidationError("type", "must be one of [IN OUT]")
	}

	if err := CheckSign(adjType, req.Quantity); err != nil {
		return nil, err
	}

	var reason *string
	if req.Reason != nil {
		if trimmed := strings.TrimSpace(*req.Reason); trimmed != "" {
			reason = &trimmed
		}
	}

	return &validAdjustment{
		productID: req.ProductID,
		quantity:  req.Quantity,
		adjType:   adjType,
		reason:    reason,
	}, nil
}

// CreateAdjustment applies one manual stock correction.
func (s *service) CreateAdjustment(ctx context.Context, actor auth.Identity, req *CreateAdjustmentRequest) (*CreateAdjustmentResponse, error) {
	ctx, span := s.tracer.Start(ctx, "inventory.create_adjustment")
	defer span.End()

	adj, err := validateAdjustment(req)
	if err != nil {
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}

	span.SetAttributes(
		attribute.String("product.id", adj.productID.String()),
		attribute.Int("adjustment.quantity", adj.quantity),
		attribute.String("adjustment.type", string(adj.adjType)),
	)

	current, err := s.store.findStockByProductID(ctx, adj.productID)
	if err != nil {
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}

	if err := CheckLevel(current, adj.quantity); err != nil {
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}

	var result *LedgerResult
	err = s.store.withTx(ctx, func(tx LedgerStore) error {
		var err error
		result, err = s.ledger.Apply(
			ctx,
			tx,
			Entry{
				ProductID: adj.productID,
				Delta:     adj.quantity,
				ActorID:   actor.ID,
				Type:      adj.adjType,
				Reason:    adj.reason,
			},
		)
		return err
	})
	if err != nil {
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}

	log.Info().
		Str("productId", adj.productID.String()).
		Int("change", adj.quantity).
		Int("newStockLevel", result.After.StockLevel).
		Str("userId", actor.ID.String()).
		Msg("stock adjusted")

	s.notify(result)

	return &CreateAdjustmentResponse{
		Adjustment:    result.Adjustment,
		NewStockLevel: result.After.StockLevel,
	}, nil
}

func (s *service) notify(result *LedgerResult) {
	if s.emitter == nil {
		return
	}

	s.emitter.Emit(result.StockUpdatedEvent())

	if low := result.LowStockEvent(); low != nil {
		s.emitter.Emit(low)
	}
}

func (s *service) ListAdjustments(ctx context.Context, productID uuid.UUID, opts handlerutils.PageOpts) ([]*Adjustment, int, error) {
	// 404 for unknown products rather than an empty trail.
	if _, err := s.store.findStockByProductID(ctx, productID); err != nil {
		return nil, 0, err
	}

	return s.store.findAdjustmentsByProductID(ctx, productID, opts)
}
