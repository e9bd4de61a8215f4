package order

import (
	"context"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/clarencepanto/stockflow-api-backend/internal/servererrors"
)

func newMockStore(t *testing.T) (*store, sqlmock.Sqlmock) {
	t.Helper()

	mockDB, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { mockDB.Close() })

	return NewStore(sqlx.NewDb(mockDB, "postgres")), mock
}

func TestStoreFindProductsByIDs(t *testing.T) {
	s, mock := newMockStore(t)
	id := uuid.New()
	now := time.Now()

	mock.ExpectQuery(`FROM products WHERE id = ANY\(\$1::uuid\[\]\)`).
		WillReturnRows(sqlmock.NewRows([]string{"id", "sku", "name", "price", "stock_level", "low_stock_threshold", "created_at", "updated_at"}).
			AddRow(id.String(), "WID", "Widget", "3.25", 9, 2, now, now))

	products, err := s.findProductsByIDs(context.Background(), []uuid.UUID{id})
	require.NoError(t, err)
	require.Len(t, products, 1)
	assert.Equal(t, id, products[0].ID)
	assert.Equal(t, "3.25", products[0].Price.StringFixed(2))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestStoreInsertsOrderAndItemsInTransaction(t *testing.T) {
	s, mock := newMockStore(t)
	order := &Order{ID: uuid.New(), UserID: uuid.New(), Status: StatusPending, TotalAmount: mustDecimal("5")}
	items := []*OrderItem{
		{ID: uuid.New(), OrderID: order.ID, Position: 0, ProductID: uuid.New(), Quantity: 1, PriceAtTime: mustDecimal("2")},
		{ID: uuid.New(), OrderID: order.ID, Position: 1, ProductID: uuid.New(), Quantity: 1, PriceAtTime: mustDecimal("3")},
	}

	mock.ExpectBegin()
	mock.ExpectExec(`INSERT INTO orders`).WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(`INSERT INTO order_items`).
		WillReturnResult(sqlmock.NewResult(0, 2))
	mock.ExpectCommit()

	err := s.withTx(context.Background(), func(tx orderTx) error {
		if err := tx.insertOrder(context.Background(), order); err != nil {
			return err
		}
		return tx.insertOrderItems(context.Background(), items)
	})
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestStoreFindByIDNotFound(t *testing.T) {
	s, mock := newMockStore(t)
	id := uuid.New()

	mock.ExpectQuery(`FROM orders WHERE id = \$1`).
		WithArgs(id).
		WillReturnRows(sqlmock.NewRows([]string{"id", "user_id", "status", "total_amount", "created_at", "updated_at"}))

	_, err := s.findByID(context.Background(), id)
	assert.ErrorIs(t, err, servererrors.ErrOrderNotFound)
	assert.NoError(t, mock.ExpectationsWereMet())
}
