package inventory

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/clarencepanto/stockflow-api-backend/internal/auth"
	"github.com/clarencepanto/stockflow-api-backend/internal/middlewares"
)

func newTestRouter(t *testing.T, fs *fakeStore) (http.Handler, *auth.TokenService) {
	t.Helper()

	tokens := auth.NewTokenService("test-secret", 60)
	router := chi.NewRouter()
	NewHandler(NewService(fs, nil), middlewares.NewMiddleware(tokens)).RegisterRoutes(router)

	return router, tokens
}

func bearer(t *testing.T, tokens *auth.TokenService, role auth.Role) string {
	t.Helper()

	token, err := tokens.GenerateAccessToken(auth.Identity{ID: uuid.New(), Role: role, Name: "tester"})
	require.NoError(t, err)
	return "Bearer " + token
}

func TestCreateAdjustmentHandler(t *testing.T) {
	productID := uuid.New()
	fs := newFakeStore(StockRecord{ProductID: productID, Name: "Widget", StockLevel: 3})
	router, tokens := newTestRouter(t, fs)

	post := func(role auth.Role, body string) *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodPost, "/inventory/adjustments", strings.NewReader(body))
		req.Header.Set("Authorization", bearer(t, tokens, role))
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, req)
		return rec
	}

	t.Run("staff is forbidden", func(t *testing.T) {
		rec := post(auth.RoleStaff, `{"productId":"`+productID.String()+`","quantity":1,"type":"IN"}`)
		assert.Equal(t, http.StatusForbidden, rec.Code)
		assert.Equal(t, 3, fs.stockLevel(productID))
	})

	t.Run("unknown field", func(t *testing.T) {
		rec := post(auth.RoleManager, `{"productId":"`+productID.String()+`","quantity":1,"type":"IN","color":"red"}`)
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})

	t.Run("zero quantity", func(t *testing.T) {
		rec := post(auth.RoleManager, `{"productId":"`+productID.String()+`","quantity":0,"type":"IN"}`)
		assert.Equal(t, http.StatusBadRequest, rec.Code)
		assert.Contains(t, rec.Body.String(), "quantity")
	})

	t.Run("insufficient stock", func(t *testing.T) {
		rec := post(auth.RoleAdmin, `{"productId":"`+productID.String()+`","quantity":-5,"type":"OUT"}`)
		assert.Equal(t, http.StatusBadRequest, rec.Code)
		assert.Contains(t, rec.Body.String(), `"available":3`)
	})

	t.Run("restock", func(t *testing.T) {
		rec := post(auth.RoleManager, `{"productId":"`+productID.String()+`","quantity":20,"type":"IN","reason":"restock"}`)
		require.Equal(t, http.StatusCreated, rec.Code)

		var body struct {
			Success bool                     `json:"success"`
			Data    CreateAdjustmentResponse `json:"data"`
		}
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
		assert.True(t, body.Success)
		assert.Equal(t, 23, body.Data.NewStockLevel)
		assert.Equal(t, 20, body.Data.Adjustment.Quantity)
	})
}

func TestListAdjustmentsHandler(t *testing.T) {
	productID := uuid.New()
	fs := newFakeStore(StockRecord{ProductID: productID, StockLevel: 3})
	router, tokens := newTestRouter(t, fs)

	get := func(path string) *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodGet, path, nil)
		req.Header.Set("Authorization", bearer(t, tokens, auth.RoleStaff))
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, req)
		return rec
	}

	assert.Equal(t, http.StatusOK, get("/inventory/products/"+productID.String()+"/adjustments").Code)
	assert.Equal(t, http.StatusBadRequest, get("/inventory/products/not-a-uuid/adjustments").Code)
	assert.Equal(t, http.StatusNotFound, get("/inventory/products/"+uuid.NewString()+"/adjustments").Code)
}
