package product

import (
	"context"
	"net/http"
	"net/url"
	"strconv"
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
	CreateProduct(ctx context.Context, actor auth.Identity, req *CreateProductRequest) (*Product, error)
	GetAllProducts(ctx context.Context, query *GetAllProductsRequestQuery) ([]*Product, int, error)
	GetProduct(ctx context.Context, productID uuid.UUID) (*Product, error)
	UpdateProduct(ctx context.Context, productID uuid.UUID, req *UpdateProductRequest) (*Product, error)
}

type middleware interface {
	ErrorHandler(h handlerutils.APIHandler) http.HandlerFunc
	AuthWithContext(h handlerutils.APIHandler, roles ...auth.Role) handlerutils.APIHandler
}

type handler struct {
	service    servicer
	middleware middleware
}

func NewHandler(productService servicer, middleware middleware) *handler {
	return &handler{
		service:    productService,
		middleware: middleware,
	}
}

func (h *handler) RegisterRoutes(router chi.Router) {
	router.Get(
		"/products",
		h.middleware.ErrorHandler(
			h.middleware.AuthWithContext(
				h.getAllProductsHandler,
			),
		),
	)

	router.Get(
		"/products/{productID}",
		h.middleware.ErrorHandler(
			h.middleware.AuthWithContext(
				h.getProductHandler,
			),
		),
	)

	// catalog management
	router.Post(
		"/products",
		h.middleware.ErrorHandler(
			h.middleware.AuthWithContext(
				h.createProductHandler,
				auth.RoleAdmin,
				auth.RoleManager,
			),
		),
	)

	router.Patch(
		"/products/{productID}",
		h.middleware.ErrorHandler(
			h.middleware.AuthWithContext(
				h.updateProductHandler,
				auth.RoleAdmin,
				auth.RoleManager,
			),
		),
	)
}

func (h *handler) createProductHandler(w http.ResponseWriter, r *http.Request) error {
	ctx, cancel := context.WithTimeout(
		r.Context(),
		(30 * time.Second),
	)
	defer cancel()

	actor, err := middlewares.IdentityFromRequest(r)
	if err != nil {
		return err
	}

	var payload CreateProductRequest
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

	product, err := h.service.CreateProduct(ctx, actor, &payload)
	if err != nil {
		return err
	}

	return handlerutils.WriteSuccessJSON(
		w,
		http.StatusCreated,
		"product created",
		product,
	)
}

func (h *handler) getAllProductsHandler(w http.ResponseWriter, r *http.Request) error {
	ctx, cancel := context.WithTimeout(
		r.Context(),
		(30 * time.Second),
	)
	defer cancel()

	queryItems := getQueryItems(r.URL.Query())

	products, totalCount, err := h.service.GetAllProducts(ctx, queryItems)
	if err != nil {
		return err
	}

	return handlerutils.WriteSuccessJSON(
		w,
		http.StatusOK,
		"all products retrieved",
		handlerutils.NewPage(products, totalCount, queryItems.PageOpts),
	)
}

func (h *handler) getProductHandler(w http.ResponseWriter, r *http.Request) error {
	productID, err := handlerutils.URLParamUUID(r, "productID")
	if err != nil {
		return err
	}

	product, err := h.service.GetProduct(r.Context(), productID)
	if err != nil {
		return err
	}

	return handlerutils.WriteSuccessJSON(
		w,
		http.StatusOK,
		"product found",
		product,
	)
}

func (h *handler) updateProductHandler(w http.ResponseWriter, r *http.Request) error {
	ctx, cancel := context.WithTimeout(
		r.Context(),
		(30 * time.Second),
	)
	defer cancel()

	productID, err := handlerutils.URLParamUUID(r, "productID")
	if err != nil {
		return err
	}

	var payload UpdateProductRequest
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

	product, err := h.service.UpdateProduct(ctx, productID, &payload)
	if err != nil {
		return err
	}

	return handlerutils.WriteSuccessJSON(
		w,
		http.StatusOK,
		"product updated",
		product,
	)
}

func getQueryItems(queriesParams url.Values) *GetAllProductsRequestQuery {
	query := new(GetAllProductsRequestQuery)

	query.FilterOpts.Search = queriesParams.Get("search")
	query.FilterOpts.LowStockOnly, _ = strconv.ParseBool(queriesParams.Get("lowStock"))
	query.PageOpts = handlerutils.GetPageOpts(queriesParams)

	return query
}
