package order

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi"
	"github.com/google/uuid"

	"github.com/clarencepanto/stockflow-api-backend/internal/auth"
	"github.com/clarencepanto/stockflow-api-backend/internal/handlerutils"
	"github.com/clarencepanto/stockflow-api-backend/internal/middlewares"
	"github.com/clarencepanto/stockflow-api-backend/internal/servererrors"
	"github.com/clarencepanto/stockflow-api-backend/internal/validate"
)

type servicer interface {
	PlaceOrder(ctx context.Context, actor auth.Identity, req *CreateOrderRequest) (*Order, error)
	GetOrder(ctx context.Context, actor auth.Identity, orderID uuid.UUID) (*Order, error)
	ListOrders(ctx context.Context, actor auth.Identity, opts handlerutils.PageOpts) ([]*Order, int, error)
	UpdateOrderStatus(ctx context.Context, orderID uuid.UUID, req *UpdateOrderStatusRequest) (*Order, error)
}

type middleware interface {
	ErrorHandler(h handlerutils.APIHandler) http.HandlerFunc
	AuthWithContext(h handlerutils.APIHandler, roles ...auth.Role) handlerutils.APIHandler
}

type handler struct {
	service    servicer
	middleware middleware
}

func NewHandler(orderService servicer, middleware middleware) *handler {
	return &handler{
		service:    orderService,
		middleware: middleware,
	}
}

func (h *handler) RegisterRoutes(router chi.Router) {
	router.Post(
		"/orders",
		h.middleware.ErrorHandler(
			h.middleware.AuthWithContext(
				h.placeOrderHandler,
			),
		),
	)

	router.Get(
		"/orders",
		h.middleware.ErrorHandler(
			h.middleware.AuthWithContext(
				h.listOrdersHandler,
			),
		),
	)

	router.Get(
		"/orders/{orderID}",
		h.middleware.ErrorHandler(
			h.middleware.AuthWithContext(
				h.getOrderHandler,
			),
		),
	)

	router.Patch(
		"/orders/{orderID}/status",
		h.middleware.ErrorHandler(
			h.middleware.AuthWithContext(
				h.updateOrderStatusHandler,
				auth.RoleAdmin,
				auth.RoleManager,
			),
		),
	)
}

func (h *handler) placeOrderHandler(w http.ResponseWriter, r *http.Request) error {
	ctx, cancel := context.WithTimeout(
		r.Context(),
		(30 * time.Second),
	)
	defer cancel()

	actor, err := middlewares.IdentityFromRequest(r)
	if err != nil {
		return err
	}

	var payload CreateOrderRequest
	defer r.Body.Close()

	if err := handlerutils.ParseJSON(r, &payload); err != nil {
		return servererrors.New(
			http.StatusBadRequest,
			servererrors.ErrInvalidRequestPayload.Error(),
			nil,
		)
	}

	if err := validate.StructFields(&payload); err != nil {
		return err
	}

	order, err := h.service.PlaceOrder(ctx, actor, &payload)
	if err != nil {
		return err
	}

	return handlerutils.WriteSuccessJSON(
		w,
		http.StatusCreated,
		"order created",
		order,
	)
}

func (h *handler) listOrdersHandler(w http.ResponseWriter, r *http.Request) error {
	actor, err := middlewares.IdentityFromRequest(r)
	if err != nil {
		return err
	}

	opts := handlerutils.GetPageOpts(r.URL.Query())

	orders, count, err := h.service.ListOrders(r.Context(), actor, opts)
	if err != nil {
		return err
	}

	return handlerutils.WriteSuccessJSON(
		w,
		http.StatusOK,
		"orders retrieved",
		handlerutils.NewPage(orders, count, opts),
	)
}

func (h *handler) getOrderHandler(w http.ResponseWriter, r *http.Request) error {
	actor, err := middlewares.IdentityFromRequest(r)
	if err != nil {
		return err
	}

	orderID, err := handlerutils.URLParamUUID(r, "orderID")
	if err != nil {
		return err
	}

	order, err := h.service.GetOrder(r.Context(), actor, orderID)
	if err != nil {
		return err
	}

	return handlerutils.WriteSuccessJSON(
		w,
		http.StatusOK,
		"order found",
		order,
	)
}

func (h *handler) updateOrderStatusHandler(w http.ResponseWriter, r *http.Request) error {
	ctx, cancel := context.WithTimeout(
		r.Context(),
		(30 * time.Second),
	)
	defer cancel()

	orderID, err := handlerutils.URLParamUUID(r, "orderID")
	if err != nil {
		return err
	}

	var payload UpdateOrderStatusRequest
	defer r.Body.Close()

	if err := handlerutils.ParseJSON(r, &payload); err != nil {
		return servererrors.New(
			http.StatusBadRequest,
			servererrors.ErrInvalidRequestPayload.Error(),
			nil,
		)
	}

	if err := validate.StructFields(&payload); err != nil {
		return err
	}

	order, err := h.service.UpdateOrderStatus(ctx, orderID, &payload)
	if err != nil {
		return err
	}

	return handlerutils.WriteSuccessJSON(
		w,
		http.StatusOK,
		"order status updated",
		order,
	)
}
