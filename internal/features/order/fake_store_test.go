package order

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/clarencepanto/stockflow-api-backend/internal/eventengine/event"
	"github.com/clarencepanto/stockflow-api-backend/internal/features/inventory"
	"github.com/clarencepanto/stockflow-api-backend/internal/features/product"
	"github.com/clarencepanto/stockflow-api-backend/internal/handlerutils"
	"github.com/clarencepanto/stockflow-api-backend/internal/servererrors"
)

type fakeData struct {
	products    map[uuid.UUID]product.Product
	orders      map[uuid.UUID]Order
	items       []OrderItem
	adjustments []inventory.Adjustment
}

func (d *fakeData) clone() *fakeData {
	out := &fakeData{
		products:    make(map[uuid.UUID]product.Product, len(d.products)),
		orders:      make(map[uuid.UUID]Order, len(d.orders)),
		items:       append([]OrderItem(nil), d.items...),
		adjustments: append([]inventory.Adjustment(nil), d.adjustments...),
	}
	for id, p := range d.products {
		out.products[id] = p
	}
	for id, o := range d.orders {
		out.orders[id] = o
	}
	return out
}

// fakeStore runs transactions one at a time on a copy of its data and keeps
// the copy only when the transaction succeeds.
type fakeStore struct {
	txMu   sync.Mutex
	dataMu sync.Mutex
	data   *fakeData

	failItems error
	// beforeTx runs once, between the plan read and the transaction.
	beforeTx func(d *fakeData)
}

func newFakeStore(products ...product.Product) *fakeStore {
	d := &fakeData{
		products: make(map[uuid.UUID]product.Product),
		orders:   make(map[uuid.UUID]Order),
	}
	for _, p := range products {
		d.products[p.ID] = p
	}
	return &fakeStore{data: d}
}

func (f *fakeStore) snapshot() *fakeData {
	f.dataMu.Lock()
	defer f.dataMu.Unlock()
	return f.data.clone()
}

func (f *fakeStore) stockLevel(id uuid.UUID) int {
	return f.snapshot().products[id].StockLevel
}

func (f *fakeStore) setPrice(id uuid.UUID, price string) {
	f.dataMu.Lock()
	defer f.dataMu.Unlock()
	p := f.data.products[id]
	p.Price = mustDecimal(price)
	f.data.products[id] = p
}

func (f *fakeStore) findProductsByIDs(ctx context.Context, productIDs []uuid.UUID) ([]*product.Product, error) {
	f.dataMu.Lock()
	defer f.dataMu.Unlock()

	out := []*product.Product{}
	for _, id := range productIDs {
		if p, ok := f.data.products[id]; ok {
			out = append(out, &p)
		}
	}
	return out, nil
}

func (f *fakeStore) withTx(ctx context.Context, fn func(tx orderTx) error) error {
	f.txMu.Lock()
	defer f.txMu.Unlock()

	f.dataMu.Lock()
	if f.beforeTx != nil {
		f.beforeTx(f.data)
		f.beforeTx = nil
	}
	tx := &fakeTx{store: f, data: f.data.clone()}
	f.dataMu.Unlock()

	if err := ctx.Err(); err != nil {
		return err
	}

	if err := fn(tx); err != nil {
		return err
	}

	f.dataMu.Lock()
	defer f.dataMu.Unlock()
	f.data = tx.data
	return nil
}

func (f *fakeStore) findByID(ctx context.Context, orderID uuid.UUID) (*Order, error) {
	d := f.snapshot()

	o, ok := d.orders[orderID]
	if !ok {
		return nil, servererrors.ErrOrderNotFound
	}
	attach(d, &o)
	return &o, nil
}

func (f *fakeStore) findAll(ctx context.Context, userID *uuid.UUID, opts handlerutils.PageOpts) ([]*Order, int, error) {
	d := f.snapshot()

	out := []*Order{}
	for _, o := range d.orders {
		o := o // per-iteration copy (Go 1.22 loopvar semantics)
		if userID != nil && o.UserID != *userID {
			continue
		}
		attach(d, &o)
		out = append(out, &o)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, len(out), nil
}

// attach joins items the way the real store does: names come from the
// product table, price and quantity from the item row.
func attach(d *fakeData, o *Order) {
	o.Items = []*OrderItem{}
	for _, item := range d.items {
		item := item // per-iteration copy (Go 1.22 loopvar semantics)
		if item.OrderID != o.ID {
			continue
		}
		item.ProductName = d.products[item.ProductID].Name
		o.Items = append(o.Items, &item)
	}
	sort.Slice(o.Items, func(i, j int) bool { return o.Items[i].Position < o.Items[j].Position })
}

type fakeTx struct {
	store *fakeStore
	data  *fakeData
}

func (tx *fakeTx) LockStock(ctx context.Context, productID uuid.UUID) (*inventory.StockRecord, error) {
	p, ok := tx.data.products[productID]
	if !ok {
		return nil, &servererrors.ProductNotFoundError{IDs: []uuid.UUID{productID}}
	}
	return &inventory.StockRecord{
		ProductID:         p.ID,
		Name:              p.Name,
		StockLevel:        p.StockLevel,
		LowStockThreshold: p.LowStockThreshold,
	}, nil
}

func (tx *fakeTx) UpdateStockLevel(ctx context.Context, productID uuid.UUID, stockLevel int) error {
	if stockLevel < 0 {
		return errors.New("check constraint violated")
	}
	p := tx.data.products[productID]
	p.StockLevel = stockLevel
	tx.data.products[productID] = p
	return nil
}

func (tx *fakeTx) InsertAdjustment(ctx context.Context, adjustment *inventory.Adjustment) error {
	tx.data.adjustments = append(tx.data.adjustments, *adjustment)
	return nil
}

func (tx *fakeTx) insertOrder(ctx context.Context, order *Order) error {
	o := *order
	o.Items = nil
	tx.data.orders[o.ID] = o
	return nil
}

func (tx *fakeTx) insertOrderItems(ctx context.Context, items []*OrderItem) error {
	if tx.store.failItems != nil {
		return tx.store.failItems
	}
	for _, item := range items {
		tx.data.items = append(tx.data.items, *item)
	}
	return nil
}

func (tx *fakeTx) lockOrder(ctx context.Context, orderID uuid.UUID) (*Order, error) {
	o, ok := tx.data.orders[orderID]
	if !ok {
		return nil, servererrors.ErrOrderNotFound
	}
	return &o, nil
}

func (tx *fakeTx) setOrderStatus(ctx context.Context, orderID uuid.UUID, status Status, at time.Time) error {
	o := tx.data.orders[orderID]
	o.Status = status
	o.UpdatedAt = at
	tx.data.orders[orderID] = o
	return nil
}

type recordingEmitter struct {
	mu       sync.Mutex
	payloads []event.Payload
}

func (e *recordingEmitter) Emit(payload event.Payload) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.payloads = append(e.payloads, payload)
}

func (e *recordingEmitter) events() []event.Payload {
	e.mu.Lock()
	defer e.mu.Unlock()
	return append([]event.Payload(nil), e.payloads...)
}
