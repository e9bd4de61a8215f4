package order

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/clarencepanto/stockflow-api-backend/internal/auth"
	"github.com/clarencepanto/stockflow-api-backend/internal/eventengine/event"
	"github.com/clarencepanto/stockflow-api-backend/internal/features/inventory"
	"github.com/clarencepanto/stockflow-api-backend/internal/features/product"
	"github.com/clarencepanto/stockflow-api-backend/internal/handlerutils"
	"github.com/clarencepanto/stockflow-api-backend/internal/servererrors"
)

type storer interface {
	findProductsByIDs(ctx context.Context, productIDs []uuid.UUID) ([]*product.Product, error)
	withTx(ctx context.Context, fn func(tx orderTx) error) error
	findByID(ctx context.Context, orderID uuid.UUID) (*Order, error)
	findAll(ctx context.Context, userID *uuid.UUID, opts handlerutils.PageOpts) ([]*Order, int, error)
}

type emitter interface {
	Emit(payload event.Payload)
}

type service struct {
	store   storer
	ledger  *inventory.Ledger
	emitter emitter
	tracer  trace.Tracer
	now     func() time.Time
}

func NewService(store storer, emitter emitter) *service {
	return &service{
		store:   store,
		ledger:  inventory.NewLedger(),
		emitter: emitter,
		tracer:  otel.Tracer("stockflow/order"),
		now:     time.Now,
	}
}

func validateOrder(req *CreateOrderRequest) (Status, error) {
	if len(req.Items) == 0 {
		return "", servererrors.NewValidationError("items", "must contain at least 1 item(s)")
	}

	for i, line := range req.Items {
		if line.ProductID == uuid.Nil {
			return "", servererrors.NewValidationError(itemField(i, "productId"), "is required")
		}
		if line.Quantity <= 0 {
			return "", servererrors.NewValidationError(itemField(i, "quantity"), "must be greater than 0")
		}
		if line.Quantity > inventory.MaxStockLevel {
			return "", servererrors.NewValidationError(itemField(i, "quantity"), fmt.Sprintf("must be at most %d", inventory.MaxStockLevel))
		}
	}

	if req.Status == nil {
		return StatusPending, nil
	}

	status, err := ParseStatus(*req.Status)
	if err != nil {
		return "", servererrors.NewValidationError("status", "must be one of [PENDING COMPLETED CANCELLED]")
	}

	return status, nil
}

func itemField(i int, name string) string {
	return fmt.Sprintf("items[%d].%s", i, name)
}

// PlaceOrder creates the order and decrements stock for every line in one
// transaction. Readers see either the order with all its decrements or
// neither.
func (s *service) PlaceOrder(ctx context.Context, actor auth.Identity, req *CreateOrderRequest) (*Order, error) {
	ctx, span := s.tracer.Start(ctx, "order.place_order")
	defer span.End()

	fail := func(err error) (*Order, error) {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}

	status, err := validateOrder(req)
	if err != nil {
		return fail(err)
	}

	products, err := s.store.findProductsByIDs(ctx, distinctProductIDs(req.Items))
	if err != nil {
		return fail(err)
	}

	plan, err := buildOrderPlan(
		planInput{
			orderID: uuid.New(),
			actor:   actor,
			status:  status,
			lines:   req.Items,
			now:     s.now().UTC(),
		},
		products,
	)
	if err != nil {
		return fail(err)
	}

	span.SetAttributes(
		attribute.String("order.id", plan.order.ID.String()),
		attribute.Int("order.lines", len(plan.order.Items)),
	)

	var results []*inventory.LedgerResult
	err = s.store.withTx(ctx, func(tx orderTx) error {
		results = results[:0]

		// lock every product up front, in a fixed order, so two orders
		// sharing products cannot deadlock.
		locked := make(map[uuid.UUID]int, len(plan.lockIDs))
		for _, id := range plan.lockIDs {
			record, err := tx.LockStock(ctx, id)
			if err != nil {
				return err
			}
			locked[id] = record.StockLevel
		}

		// stock may have moved since the plan was built.
		if err := checkStock(plan.demands, locked); err != nil {
			return err
		}

		if err := tx.insertOrder(ctx, plan.order); err != nil {
			return err
		}

		if err := tx.insertOrderItems(ctx, plan.order.Items); err != nil {
			return err
		}

		for _, entry := range plan.entries {
			result, err := s.ledger.Apply(ctx, tx, entry)
			if err != nil {
				return err
			}
			results = append(results, result)
		}

		return nil
	})
	if err != nil {
		return fail(err)
	}

	log.Info().
		Str("orderId", plan.order.ID.String()).
		Str("userId", actor.ID.String()).
		Str("totalAmount", plan.order.TotalAmount.StringFixed(2)).
		Int("items", len(plan.order.Items)).
		Msg("order placed")

	s.notify(actor, plan.order, results)

	return plan.order, nil
}

func (s *service) notify(actor auth.Identity, order *Order, results []*inventory.LedgerResult) {
	if s.emitter == nil {
		return
	}

	s.emitter.Emit(&event.OrderCreatedEvent{
		OrderID:     order.ID,
		UserID:      actor.ID,
		UserName:    actor.Name,
		TotalAmount: order.TotalAmount,
		ItemCount:   len(order.Items),
		Status:      string(order.Status),
		Timestamp:   order.CreatedAt,
	})

	for _, result := range results {
		s.emitter.Emit(result.StockUpdatedEvent())

		if low := result.LowStockEvent(); low != nil {
			s.emitter.Emit(low)
		}
	}
}

// GetOrder returns the order with its items. Callers without a privileged
// role only find their own orders.
func (s *service) GetOrder(ctx context.Context, actor auth.Identity, orderID uuid.UUID) (*Order, error) {
	order, err := s.store.findByID(ctx, orderID)
	if err != nil {
		return nil, err
	}

	if !actor.Role.Privileged() && order.UserID != actor.ID {
		return nil, servererrors.ErrOrderNotFound
	}

	return order, nil
}

func (s *service) ListOrders(ctx context.Context, actor auth.Identity, opts handlerutils.PageOpts) ([]*Order, int, error) {
	var userID *uuid.UUID
	if !actor.Role.Privileged() {
		userID = &actor.ID
	}

	return s.store.findAll(ctx, userID, opts)
}

// UpdateOrderStatus moves a pending order to a final status. Items and
// total are never touched.
func (s *service) UpdateOrderStatus(ctx context.Context, orderID uuid.UUID, req *UpdateOrderStatusRequest) (*Order, error) {
	next, err := ParseStatus(req.Status)
	if err != nil {
		return nil, servererrors.NewValidationError("status", "must be one of [PENDING COMPLETED CANCELLED]")
	}

	err = s.store.withTx(ctx, func(tx orderTx) error {
		current, err := tx.lockOrder(ctx, orderID)
		if err != nil {
			return err
		}

		if !current.Status.CanTransitionTo(next) {
			return servererrors.ErrInvalidStatusTransition
		}

		return tx.setOrderStatus(ctx, orderID, next, s.now().UTC())
	})
	if err != nil {
		return nil, err
	}

	log.Info().
		Str("orderId", orderID.String()).
		Str("status", string(next)).
		Msg("order status updated")

	return s.store.findByID(ctx, orderID)
}
