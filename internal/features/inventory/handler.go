package inventory

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
	CreateAdjustment(ctx context.Context, actor auth.Identity, req *CreateAdjustmentRequest) (*CreateAdjustmentResponse, error)
	ListAdjustments(ctx context.Context, productID uuid.UUID, opts handlerutils.PageOpts) ([]*Adjustment, int, error)
}

type middleware interface {
	ErrorHandler(h handlerutils.APIHandler) http.HandlerFunc
	AuthWithContext(h handlerutils.APIHandler, roles ...auth.Role) handlerutils.APIHandler
}

type handler struct {
	service    servicer
	middleware middleware
}

func NewHandler(inventoryService servicer, middleware middleware) *handler {
	return &handler{
		service:    inventoryService,
		middleware: middleware,
	}
}

func (h *handler) RegisterRoutes(router chi.Router) {
	router.Post(
		"/inventory/adjustments",
		h.middleware.ErrorHandler(
			h.middleware.AuthWithContext(
				h.createAdjustmentHandler,
				auth.RoleAdmin,
				auth.RoleManager,
			),
		),
	)

	router.Get(
		"/inventory/products/{productID}/adjustments",
		h.middleware.ErrorHandler(
			h.middleware.AuthWithContext(
				h.listAdjustmentsHandler,
			),
		),
	)
}

func (h *handler) createAdjustmentHandler(w http.ResponseWriter, r *http.Request) error {
	ctx, cancel := context.WithTimeout(
		r.Context(),
		(30 * time.Second),
	)
	defer cancel()

	actor, err := middlewares.IdentityFromRequest(r)
	if err != nil {
		return err
	}

	var payload CreateAdjustmentRequest
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

	result, err := h.service.CreateAdjustment(ctx, actor, &payload)
	if err != nil {
		return err
	}

	return handlerutils.WriteSuccessJSON(
		w,
		http.StatusCreated,
		"adjustment created",
		result,
	)
}

func (h *handler) listAdjustmentsHandler(w http.ResponseWriter, r *http.Request) error {
	productID, err := handlerutils.URLParamUUID(r, "productID")
	if err != nil {
		return err
	}

	opts := handlerutils.GetPageOpts(r.URL.Query())

	adjustments, count, err := h.service.ListAdjustments(r.Context(), productID, opts)
	if err != nil {
		return err
	}

	return handlerutils.WriteSuccessJSON(
		w,
		http.StatusOK,
		"adjustments retrieved",
		handlerutils.NewPage(adjustments, count, opts),
	)
}
