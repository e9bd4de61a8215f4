package inventory

import (
	"context"
	"maps"
	"sync"

	"github.com/google/uuid"

	"github.com/clarencepanto/stockflow-api-backend/internal/eventengine/event"
	"github.com/clarencepanto/stockflow-api-backend/internal/handlerutils"
	"github.com/clarencepanto/stockflow-api-backend/internal/servererrors"
)

// fakeStore keeps products and adjustments in memory. Transactions run one at
// a time and work on a copy that is swapped in only on success, which is what
// row locks plus commit/rollback give the real store.
type fakeStore struct {
	txMu   sync.Mutex
	dataMu sync.Mutex

	stock       map[uuid.UUID]StockRecord
	adjustments []*Adjustment

	failInsert error
	reads      int
	txs        int
}

func newFakeStore(records ...StockRecord) *fakeStore {
	f := &fakeStore{stock: make(map[uuid.UUID]StockRecord)}
	for _, r := range records {
		f.stock[r.ProductID] = r
	}
	return f
}

func (f *fakeStore) stockLevel(id uuid.UUID) int {
	f.dataMu.Lock()
	defer f.dataMu.Unlock()
	return f.stock[id].StockLevel
}

func (f *fakeStore) adjustmentCount() int {
	f.dataMu.Lock()
	defer f.dataMu.Unlock()
	return len(f.adjustments)
}

func (f *fakeStore) findStockByProductID(ctx context.Context, productID uuid.UUID) (*StockRecord, error) {
	f.dataMu.Lock()
	defer f.dataMu.Unlock()

	f.reads++
	r, ok := f.stock[productID]
	if !ok {
		return nil, &servererrors.ProductNotFoundError{IDs: []uuid.UUID{productID}}
	}
	return &r, nil
}

func (f *fakeStore) withTx(ctx context.Context, fn func(tx LedgerStore) error) error {
	f.txMu.Lock()
	defer f.txMu.Unlock()

	f.dataMu.Lock()
	f.txs++
	tx := &fakeTx{store: f, stock: maps.Clone(f.stock)}
	f.dataMu.Unlock()

	if err := fn(tx); err != nil {
		return err
	}

	f.dataMu.Lock()
	defer f.dataMu.Unlock()
	f.stock = tx.stock
	f.adjustments = append(f.adjustments, tx.adjustments...)
	return nil
}

func (f *fakeStore) findAdjustmentsByProductID(ctx context.Context, productID uuid.UUID, opts handlerutils.PageOpts) ([]*Adjustment, int, error) {
	f.dataMu.Lock()
	defer f.dataMu.Unlock()

	var out []*Adjustment
	for _, a := range f.adjustments {
		if a.ProductID == productID {
			out = append(out, a)
		}
	}
	return out, len(out), nil
}

type fakeTx struct {
	store       *fakeStore
	stock       map[uuid.UUID]StockRecord
	adjustments []*Adjustment
}

func (tx *fakeTx) LockStock(ctx context.Context, productID uuid.UUID) (*StockRecord, error) {
	r, ok := tx.stock[productID]
	if !ok {
		return nil, &servererrors.ProductNotFoundError{IDs: []uuid.UUID{productID}}
	}
	return &r, nil
}

func (tx *fakeTx) UpdateStockLevel(ctx context.Context, productID uuid.UUID, stockLevel int) error {
	r := tx.stock[productID]
	r.StockLevel = stockLevel
	tx.stock[productID] = r
	return nil
}

func (tx *fakeTx) InsertAdjustment(ctx context.Context, adjustment *Adjustment) error {
	if tx.store.failInsert != nil {
		return tx.store.failInsert
	}
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
