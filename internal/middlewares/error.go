package middlewares

import (
	"errors"
	"net/http"

	chimw "github.com/go-chi/chi/middleware"
	"github.com/rs/zerolog/log"

	"github.com/clarencepanto/stockflow-api-backend/internal/handlerutils"
	"github.com/clarencepanto/stockflow-api-backend/internal/servererrors"
)

// ErrorHandler is a middleware that takes handler that returns an error and
// return a HandlerFunc to create a centralized error handling, logging and etc.
func (mw *middleware) ErrorHandler(h handlerutils.APIHandler) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		err := h(w, r)
		if err == nil {
			return
		}

		statusCode, message, details := mapError(err)

		logEvent := log.Warn()
		if statusCode >= http.StatusInternalServerError {
			logEvent = log.Error()
		}
		logEvent.
			Err(err).
			Str("requestId", chimw.GetReqID(r.Context())).
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Int("status", statusCode).
			Msg("request failed")

		handlerutils.WriteErrorJSON(w, statusCode, message, details)
	}
}

// mapError turns an error into the status, message and detail sent to the
// client. Unknown errors are opaque so storage internals never leak.
func mapError(err error) (int, string, any) {
	var serverError *servererrors.ServerError
	if errors.As(err, &serverError) {
		return serverError.StatusCode, serverError.Error(), serverError.Errors
	}

	var stockErr *servererrors.InsufficientStockError
	if errors.As(err, &stockErr) {
		return http.StatusBadRequest, servererrors.ErrInsufficientStock.Error(), stockErr
	}

	var notFoundErr *servererrors.ProductNotFoundError
	if errors.As(err, &notFoundErr) {
		return http.StatusNotFound, servererrors.ErrProductNotFound.Error(), notFoundErr
	}

	var validationErr *servererrors.ValidationError
	if errors.As(err, &validationErr) {
		return http.StatusBadRequest, servererrors.ErrValidationFailed.Error(), validationErr.Fields
	}

	var adjustmentErr *servererrors.AdjustmentError
	if errors.As(err, &adjustmentErr) {
		return http.StatusBadRequest, servererrors.ErrInvalidAdjustment.Error(), adjustmentErr
	}

	switch {
	case errors.Is(err, servererrors.ErrInvalidStatusTransition):
		return http.StatusBadRequest, err.Error(), nil
	case errors.Is(err, servererrors.ErrNotFound):
		return http.StatusNotFound, err.Error(), nil
	case errors.Is(err, servererrors.ErrProductAlreadyExists):
		return http.StatusConflict, err.Error(), nil
	default:
		return http.StatusInternalServerError, "something went wrong", nil
	}
}
