package order

import (
	"math"
	"slices"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/clarencepanto/stockflow-api-backend/internal/auth"
	"github.com/clarencepanto/stockflow-api-backend/internal/features/inventory"
	"github.com/clarencepanto/stockflow-api-backend/internal/features/product"
	"github.com/clarencepanto/stockflow-api-backend/internal/servererrors"
)

// demand is the aggregated quantity one order asks of one product.
type demand struct {
	productID uuid.UUID
	name      string
	quantity  int
}

// orderPlan is every write one order needs. Building it touches no storage;
// executing it happens inside a single transaction.
type orderPlan struct {
	order   *Order
	entries []inventory.Entry
	demands []demand    // first-encountered product order
	lockIDs []uuid.UUID // distinct product ids, sorted
}

type planInput struct {
	orderID uuid.UUID
	actor   auth.Identity
	status  Status
	lines   []LineRequest
	now     time.Time
}

func orderReason(orderID uuid.UUID) string {
	return "Order " + orderID.String()
}

// distinctProductIDs returns each product id of lines once, in the order
// lines first mention it.
func distinctProductIDs(lines []LineRequest) []uuid.UUID {
	seen := make(map[uuid.UUID]struct{}, len(lines))
	ids := make([]uuid.UUID, 0, len(lines))

	for _, line := range lines {
		if _, ok := seen[line.ProductID]; ok {
			continue
		}
		seen[line.ProductID] = struct{}{}
		ids = append(ids, line.ProductID)
	}

	return ids
}

// buildOrderPlan resolves, aggregates, checks stock and prices an order
// against products as they were read.
func buildOrderPlan(in planInput, products []*product.Product) (*orderPlan, error) {
	byID := make(map[uuid.UUID]*product.Product, len(products))
	for _, p := range products {
		byID[p.ID] = p
	}

	ids := distinctProductIDs(in.lines)

	var missing []uuid.UUID
	for _, id := range ids {
		if _, ok := byID[id]; !ok {
			missing = append(missing, id)
		}
	}
	if len(missing) > 0 {
		return nil, &servererrors.ProductNotFoundError{IDs: missing}
	}

	totals := make(map[uuid.UUID]int, len(ids))
	for _, line := range in.lines {
		totals[line.ProductID] = addQuantity(totals[line.ProductID], line.Quantity)
	}

	demands := make([]demand, 0, len(ids))
	for _, id := range ids {
		demands = append(demands, demand{
			productID: id,
			name:      byID[id].Name,
			quantity:  totals[id],
		})
	}

	available := make(map[uuid.UUID]int, len(products))
	for _, p := range products {
		available[p.ID] = p.StockLevel
	}
	if err := checkStock(demands, available); err != nil {
		return nil, err
	}

	reason := orderReason(in.orderID)
	order := &Order{
		ID:          in.orderID,
		UserID:      in.actor.ID,
		Status:      in.status,
		TotalAmount: decimal.Zero,
		CreatedAt:   in.now,
		UpdatedAt:   in.now,
		Items:       make([]*OrderItem, 0, len(in.lines)),
	}
	entries := make([]inventory.Entry, 0, len(in.lines))

	for i, line := range in.lines {
		p := byID[line.ProductID]

		item := &OrderItem{
			ID:          uuid.New(),
			OrderID:     in.orderID,
			Position:    i,
			ProductID:   p.ID,
			ProductName: p.Name,
			Quantity:    line.Quantity,
			PriceAtTime: p.Price,
		}
		order.Items = append(order.Items, item)
		order.TotalAmount = order.TotalAmount.Add(item.LineTotal())

		entries = append(entries, inventory.Entry{
			ProductID: p.ID,
			Delta:     -line.Quantity,
			ActorID:   in.actor.ID,
			Type:      inventory.AdjustmentOut,
			Reason:    &reason,
		})
	}

	if order.TotalAmount.GreaterThan(maxOrderTotal) {
		return nil, servererrors.NewValidationError("items", "order total must be at most "+maxOrderTotal.StringFixed(2))
	}

	lockIDs := slices.Clone(ids)
	slices.SortFunc(lockIDs, func(a, b uuid.UUID) int {
		return slices.Compare(a[:], b[:])
	})

	return &orderPlan{
		order:   order,
		entries: entries,
		demands: demands,
		lockIDs: lockIDs,
	}, nil
}

// maxOrderTotal is the largest amount the order total column holds.
var maxOrderTotal = decimal.RequireFromString("999999999999.99")

// addQuantity sums two non-negative quantities, saturating at math.MaxInt
// so an oversized demand still fails the stock check.
func addQuantity(a, b int) int {
	if b > math.MaxInt-a {
		return math.MaxInt
	}
	return a + b
}

// checkStock reports the first product, in demand order, whose aggregated
// demand exceeds what is available.
func checkStock(demands []demand, available map[uuid.UUID]int) error {
	for _, d := range demands {
		if have := available[d.productID]; d.quantity > have {
			return &servererrors.InsufficientStockError{
				ProductID:   d.productID,
				ProductName: d.name,
				Available:   have,
				Requested:   d.quantity,
			}
		}
	}

	return nil
}
