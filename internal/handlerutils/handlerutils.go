package handlerutils

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strconv"

	"github.com/go-chi/chi"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/clarencepanto/stockflow-api-backend/internal/servererrors"
)

// APIHandler is an http handler that returns its error instead of writing it.
type APIHandler func(w http.ResponseWriter, r *http.Request) error

type successResponse struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
	Data    any    `json:"data,omitempty"`
}

type errorResponse struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
	Errors  any    `json:"errors,omitempty"`
}

const maxBodyBytes = 1 << 20

func ParseJSON(r *http.Request, payload any) error {
	if r.Body == nil {
		return errors.New("missing request body")
	}

	dec := json.NewDecoder(http.MaxBytesReader(nil, r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()

	if err := dec.Decode(payload); err != nil {
		return fmt.Errorf("failed to decode request body: %w", err)
	}

	return nil
}

func WriteJSON(w http.ResponseWriter, statusCode int, v any) error {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)

	return json.NewEncoder(w).Encode(v)
}

func WriteSuccessJSON(w http.ResponseWriter, statusCode int, message string, data any) error {
	return WriteJSON(
		w,
		statusCode,
		successResponse{
			Success: true,
			Message: message,
			Data:    data,
		},
	)
}

func WriteErrorJSON(w http.ResponseWriter, statusCode int, message string, errs any) {
	err := WriteJSON(
		w,
		statusCode,
		errorResponse{
			Success: false,
			Message: message,
			Errors:  errs,
		},
	)
	if err != nil {
		log.Error().Err(err).Msg("failed to write error response")
	}
}

// URLParamUUID reads a chi url param and parses it as a uuid.
func URLParamUUID(r *http.Request, key string) (uuid.UUID, error) {
	id, err := uuid.Parse(chi.URLParam(r, key))
	if err != nil {
		return uuid.Nil, servererrors.New(
			http.StatusBadRequest,
			servererrors.ErrInvalidID.Error(),
			map[string]string{key: "must be a valid uuid"},
		)
	}

	return id, nil
}

const maxPageLimit = 100

type PageOpts struct {
	Page  uint64 `json:"page"`
	Limit uint64 `json:"limit"`
}

func (p PageOpts) Offset() uint64 {
	return (p.Page - 1) * p.Limit
}

func GetPageOpts(queries url.Values) PageOpts {
	opts := PageOpts{
		Page:  stringToUint64(1, queries.Get("page")),
		Limit: stringToUint64(20, queries.Get("limit")),
	}

	opts.Limit = min(opts.Limit, maxPageLimit)

	return opts
}

type Page[T any] struct {
	TotalCount int    `json:"totalCount"`
	Page       uint64 `json:"page"`
	Limit      uint64 `json:"limit"`
	PagesCount int    `json:"pagesCount"`
	Items      []T    `json:"items"`
}

func NewPage[T any](items []T, totalCount int, opts PageOpts) Page[T] {
	if items == nil {
		items = []T{}
	}

	return Page[T]{
		TotalCount: totalCount,
		Page:       opts.Page,
		Limit:      opts.Limit,
		PagesCount: (totalCount + int(opts.Limit) - 1) / int(opts.Limit),
		Items:      items,
	}
}

func stringToUint64(defaultValue uint64, field string) uint64 {
	num, err := strconv.ParseUint(field, 10, 0)
	if err != nil || num == 0 {
		return defaultValue
	}

	return num
}
