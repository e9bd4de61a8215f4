package product

import (
	"context"
	"sync"

	"github.com/google/uuid"

	"github.com/clarencepanto/stockflow-api-backend/internal/eventengine/event"
	"github.com/clarencepanto/stockflow-api-backend/internal/features/inventory"
	"github.com/clarencepanto/stockflow-api-backend/internal/servererrors"
)

type fakeStore struct {
	mu          sync.Mutex
	products    map[uuid.UUID]*Product
	adjustments []*inventory.Adjustment
	failInsert  error
}

func newFakeStore(products ...*Product) *fakeStore {
	f := &fakeStore{products: make(map[uuid.UUID]*Product)}
	for _, p := range products {
		f.products[p.ID] = p
	}
	return f
}

func (f *fakeStore) withTx(ctx context.Context, fn func(tx productTx) error) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	tx := &fakeTx{store: f, products: make(map[uuid.UUID]*Product, len(f.products))}
	for id, p := range f.products {
		cp := *p
		tx.products[id] = &cp
	}

	if err := fn(tx); err != nil {
		return err
	}

	f.products = tx.products
	f.adjustments = append(f.adjustments, tx.adjustments...)
	return nil
}

func (f *fakeStore) findAll(ctx context.Context, queryItems *GetAllProductsRequestQuery) ([]*Product, int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	out := []*Product{}
	for _, p := range f.products {
		if queryItems.FilterOpts.LowStockOnly && !p.IsLowStock() {
			continue
		}
		cp := *p
		out = append(out, &cp)
	}
	return out, len(out), nil
}

func (f *fakeStore) findByID(ctx context.Context, productID uuid.UUID) (*Product, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	p, ok := f.products[productID]
	if !ok {
		return nil, &servererrors.ProductNotFoundError{IDs: []uuid.UUID{productID}}
	}
	cp := *p
	return &cp, nil
}

func (f *fakeStore) findBySKU(ctx context.Context, sku string) (*Product, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	for _, p := range f.products {
		if p.SKU == sku {
			cp := *p
			return &cp, nil
		}
	}
	return nil, nil
}

func (f *fakeStore) updateOne(ctx context.Context, productID uuid.UUID, req *UpdateProductRequest) (*Product, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	p, ok := f.products[productID]
	if !ok {
		return nil, &servererrors.ProductNotFoundError{IDs: []uuid.UUID{productID}}
	}
	if req.Name != nil {
		p.Name = *req.Name
	}
	if req.Price != nil {
		p.Price = *req.Price
	}
	if req.LowStockThreshold != nil {
		p.LowStockThreshold = *req.LowStockThreshold
	}
	cp := *p
	return &cp, nil
}

func (f *fakeStore) adjustmentCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.adjustments)
}

type fakeTx struct {
	store       *fakeStore
	products    map[uuid.UUID]*Product
	adjustments []*inventory.Adjustment
}

func (tx *fakeTx) insertProduct(ctx context.Context, p *Product) error {
	if tx.store.failInsert != nil {
		return tx.store.failInsert
	}
	cp := *p
	tx.products[p.ID] = &cp
	return nil
}

func (tx *fakeTx) LockStock(ctx context.Context, productID uuid.UUID) (*inventory.StockRecord, error) {
	p, ok := tx.products[productID]
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
	tx.products[productID].StockLevel = stockLevel
	return nil
}

func (tx *fakeTx) InsertAdjustment(ctx context.Context, adjustment *inventory.Adjustment) error {
	tx.adjustments = append(tx.adjustments, adjustment)
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

