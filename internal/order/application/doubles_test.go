package application

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"sync"

	"github.com/shopspring/decimal"

	inventoryDomain "github.com/shophub/order-fulfillment/internal/inventory/domain"
	"github.com/shophub/order-fulfillment/internal/order/domain"
	userDomain "github.com/shophub/order-fulfillment/internal/user/domain"
)

// fakeRepo is an in-memory stand-in for the postgres repository. Create
// is all-or-nothing under one lock, mirroring the transactional
// behavior, and the lock also serializes concurrent reservations.
type fakeRepo struct {
	mu     sync.Mutex
	nextID int64
	orders map[int64]domain.Order
	stock  map[int64]*inventoryDomain.Product
}

func newFakeRepo() *fakeRepo {
	return &fakeRepo{
		orders: make(map[int64]domain.Order),
		stock:  make(map[int64]*inventoryDomain.Product),
	}
}

func (r *fakeRepo) addProduct(p inventoryDomain.Product) {
	r.stock[p.ID] = &p
}

func (r *fakeRepo) stockOf(productID int64) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.stock[productID].StockQuantity
}

func (r *fakeRepo) Create(ctx context.Context, o domain.Order, items []OrderItemRequest) (domain.Order, []inventoryDomain.Reservation, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	// Validate every reservation before applying any, so a failure on a
	// later item leaves earlier stock untouched.
	for _, it := range items {
		p, ok := r.stock[it.ProductID]
		if !ok {
			return domain.Order{}, nil, fmt.Errorf("%w: %d", inventoryDomain.ErrProductNotFound, it.ProductID)
		}
		if p.StockQuantity < it.Quantity {
			return domain.Order{}, nil, fmt.Errorf("%w: product %d", inventoryDomain.ErrInsufficientStock, it.ProductID)
		}
	}

	r.nextID++
	o.ID = r.nextID
	reservations := make([]inventoryDomain.Reservation, 0, len(items))
	for i, it := range items {
		p := r.stock[it.ProductID]
		p.StockQuantity -= it.Quantity

		price := p.Price
		if it.Price.Valid {
			price = it.Price.Decimal
		}
		line, err := domain.NewLineItem(it.ProductID, it.Quantity, price)
		if err != nil {
			return domain.Order{}, nil, err
		}
		line.ID = int64(i + 1)
		line.OrderID = o.ID
		o.Items = append(o.Items, line)

		reservations = append(reservations, inventoryDomain.Reservation{
			ProductID:   p.ID,
			ProductName: p.Name,
			Quantity:    it.Quantity,
			Remaining:   p.StockQuantity,
			Threshold:   p.LowStockThreshold,
			UnitPrice:   price,
		})
	}
	r.orders[o.ID] = o
	return o, reservations, nil
}

func (r *fakeRepo) GetForUser(ctx context.Context, userID string, orderID int64) (domain.Order, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	o, ok := r.orders[orderID]
	if !ok || o.UserID != userID {
		return domain.Order{}, domain.ErrOrderNotFound
	}
	return r.enrich(o), nil
}

func (r *fakeRepo) ListByUser(ctx context.Context, userID string) ([]domain.Order, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []domain.Order
	for _, o := range r.orders {
		if o.UserID == userID {
			out = append(out, r.enrich(o))
		}
	}
	return out, nil
}

func (r *fakeRepo) ListAll(ctx context.Context, status, search string) ([]domain.Order, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []domain.Order
	for _, o := range r.orders {
		if status != "" && string(o.Status) != status {
			continue
		}
		if search != "" && !contains(o.UserID, search) {
			continue
		}
		out = append(out, r.enrich(o))
	}
	return out, nil
}

func (r *fakeRepo) Transition(ctx context.Context, orderID int64, mutate func(*domain.Order) error) (domain.Order, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	o, ok := r.orders[orderID]
	if !ok {
		return domain.Order{}, domain.ErrOrderNotFound
	}
	if err := mutate(&o); err != nil {
		return domain.Order{}, err
	}
	r.orders[orderID] = o
	return r.enrich(o), nil
}

func (r *fakeRepo) CancelAndRestock(ctx context.Context, orderID int64, mutate func(*domain.Order) error) (domain.Order, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	o, ok := r.orders[orderID]
	if !ok {
		return domain.Order{}, domain.ErrOrderNotFound
	}
	if err := mutate(&o); err != nil {
		return domain.Order{}, err
	}
	for _, it := range o.Items {
		if p, ok := r.stock[it.ProductID]; ok {
			p.StockQuantity += it.Quantity
		}
	}
	r.orders[orderID] = o
	return r.enrich(o), nil
}

func (r *fakeRepo) enrich(o domain.Order) domain.Order {
	items := make([]domain.LineItem, len(o.Items))
	copy(items, o.Items)
	for i := range items {
		if p, ok := r.stock[items[i].ProductID]; ok {
			items[i].ProductName = p.Name
			items[i].Images = p.Images
		}
	}
	o.Items = items
	return o
}

func contains(s, sub string) bool {
	for i := 0; i+len(sub) <= len(s); i++ {
		if s[i:i+len(sub)] == sub {
			return true
		}
	}
	return false
}

type fakeUsers struct {
	mu    sync.Mutex
	users map[string]userDomain.User
}

func newFakeUsers(users ...userDomain.User) *fakeUsers {
	f := &fakeUsers{users: make(map[string]userDomain.User)}
	for _, u := range users {
		f.users[u.ID] = u
	}
	return f
}

func (f *fakeUsers) Get(ctx context.Context, userID string) (userDomain.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	u, ok := f.users[userID]
	if !ok {
		return userDomain.User{}, fmt.Errorf("%w: %s", userDomain.ErrNotFound, userID)
	}
	return u, nil
}

func (f *fakeUsers) ListByRole(ctx context.Context, roles []string) ([]userDomain.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []userDomain.User
	for _, u := range f.users {
		for _, role := range roles {
			if u.Role == role {
				out = append(out, u)
				break
			}
		}
	}
	return out, nil
}

type fakeCart struct {
	mu      sync.Mutex
	cleared []string
	failErr error
}

func (f *fakeCart) Clear(ctx context.Context, userID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failErr != nil {
		return f.failErr
	}
	f.cleared = append(f.cleared, userID)
	return nil
}

type statusChange struct {
	orderID int64
	from    domain.OrderStatus
	to      domain.OrderStatus
}

type fakeNotifier struct {
	mu            sync.Mutex
	statusChanges []statusChange
	payments      []int64
	deliveries    []int64
	lowStock      []inventoryDomain.Reservation
}

func (f *fakeNotifier) OrderStatusChanged(ctx context.Context, o domain.Order, oldStatus, newStatus domain.OrderStatus) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.statusChanges = append(f.statusChanges, statusChange{orderID: o.ID, from: oldStatus, to: newStatus})
}

func (f *fakeNotifier) PaymentConfirmed(ctx context.Context, o domain.Order) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.payments = append(f.payments, o.ID)
}

func (f *fakeNotifier) DeliveryConfirmed(ctx context.Context, o domain.Order) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.deliveries = append(f.deliveries, o.ID)
}

func (f *fakeNotifier) LowStock(ctx context.Context, r inventoryDomain.Reservation) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.lowStock = append(f.lowStock, r)
}

type auditEntry struct {
	actorID string
	action  string
	orderID int64
}

type fakeAudit struct {
	mu      sync.Mutex
	entries []auditEntry
}

func (f *fakeAudit) Record(ctx context.Context, actorID, action string, orderID int64, details string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.entries = append(f.entries, auditEntry{actorID: actorID, action: action, orderID: orderID})
	return nil
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func priceOf(s string) decimal.NullDecimal {
	return decimal.NullDecimal{Decimal: decimal.RequireFromString(s), Valid: true}
}
