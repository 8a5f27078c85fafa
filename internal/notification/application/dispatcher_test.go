package application

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	inventoryDomain "github.com/shophub/order-fulfillment/internal/inventory/domain"
	"github.com/shophub/order-fulfillment/internal/notification/domain"
	orderDomain "github.com/shophub/order-fulfillment/internal/order/domain"
	userDomain "github.com/shophub/order-fulfillment/internal/user/domain"
)

type memStore struct {
	saved   []domain.Notification
	failErr error
}

func (m *memStore) Save(ctx context.Context, n domain.Notification) error {
	if m.failErr != nil {
		return m.failErr
	}
	m.saved = append(m.saved, n)
	return nil
}

type memDirectory struct {
	users []userDomain.User
}

func (m *memDirectory) Get(ctx context.Context, userID string) (userDomain.User, error) {
	for _, u := range m.users {
		if u.ID == userID {
			return u, nil
		}
	}
	return userDomain.User{}, fmt.Errorf("user not found: %s", userID)
}

func (m *memDirectory) ListByRole(ctx context.Context, roles []string) ([]userDomain.User, error) {
	var out []userDomain.User
	for _, u := range m.users {
		for _, role := range roles {
			if u.Role == role {
				out = append(out, u)
				break
			}
		}
	}
	return out, nil
}

func newTestDispatcher(store *memStore, dir *memDirectory) *Dispatcher {
	return NewDispatcher(slog.New(slog.NewTextHandler(io.Discard, nil)), store, dir)
}

func shippedOrder() orderDomain.Order {
	return orderDomain.Order{
		ID:               42,
		UserID:           "alice",
		Status:           orderDomain.StatusShipped,
		TotalAmount:      decimal.RequireFromString("50.00"),
		TrackingNumber:   "TRK-1-ABCDEF01",
		ShippingProvider: "UPS",
	}
}

func TestOrderStatusChanged(t *testing.T) {
	store := &memStore{}
	d := newTestDispatcher(store, &memDirectory{})

	d.OrderStatusChanged(context.Background(), shippedOrder(), orderDomain.StatusProcessing, orderDomain.StatusShipped)

	require.Len(t, store.saved, 1)
	n := store.saved[0]
	assert.Equal(t, "alice", n.UserID)
	assert.Equal(t, int64(42), n.OrderID)
	assert.Equal(t, domain.CategoryOrderStatus, n.Category)
	assert.Contains(t, n.Message, "shipped via UPS")
	assert.Contains(t, n.Message, "TRK-1-ABCDEF01")
}

func TestPaymentConfirmedIncludesTracking(t *testing.T) {
	store := &memStore{}
	d := newTestDispatcher(store, &memDirectory{})

	d.PaymentConfirmed(context.Background(), shippedOrder())

	require.Len(t, store.saved, 1)
	assert.Equal(t, "Payment Confirmed", store.saved[0].Title)
	assert.Equal(t, domain.CategoryPayment, store.saved[0].Category)
	assert.Contains(t, store.saved[0].Message, "Tracking: TRK-1-ABCDEF01")
}

func TestDeliveryConfirmedFansOutToStaff(t *testing.T) {
	store := &memStore{}
	dir := &memDirectory{users: []userDomain.User{
		{ID: "alice", FirstName: "Alice", LastName: "Ahlgren", Role: "customer"},
		{ID: "staff-1", Role: "content-manager"},
		{ID: "staff-2", Role: "administrator"},
		{ID: "other", Role: "customer"},
	}}
	d := newTestDispatcher(store, dir)

	d.DeliveryConfirmed(context.Background(), shippedOrder())

	require.Len(t, store.saved, 2)
	recipients := []string{store.saved[0].UserID, store.saved[1].UserID}
	assert.ElementsMatch(t, []string{"staff-1", "staff-2"}, recipients)
	assert.Contains(t, store.saved[0].Message, "Order #42 for Alice Ahlgren has been marked as delivered.")
	assert.Equal(t, domain.CategoryDelivery, store.saved[0].Category)
}

func TestDeliveryConfirmedNoStaff(t *testing.T) {
	store := &memStore{}
	d := newTestDispatcher(store, &memDirectory{})

	d.DeliveryConfirmed(context.Background(), shippedOrder())
	assert.Empty(t, store.saved)
}

func TestLowStockSeveritySplit(t *testing.T) {
	dir := &memDirectory{users: []userDomain.User{{ID: "admin-1", Role: "administrator"}}}

	store := &memStore{}
	d := newTestDispatcher(store, dir)
	d.LowStock(context.Background(), inventoryDomain.Reservation{
		ProductID: 7, ProductName: "Globe", Quantity: 3, Remaining: 2, Threshold: 10,
	})
	require.Len(t, store.saved, 1)
	assert.Equal(t, "Low Stock Alert", store.saved[0].Title)
	assert.Equal(t, domain.CategoryLowStock, store.saved[0].Category)
	assert.Contains(t, store.saved[0].Message, "low on stock: 2 units (threshold: 10)")
	assert.Zero(t, store.saved[0].OrderID)

	store = &memStore{}
	d = newTestDispatcher(store, dir)
	d.LowStock(context.Background(), inventoryDomain.Reservation{
		ProductID: 7, ProductName: "Globe", Quantity: 5, Remaining: 0, Threshold: 10,
	})
	require.Len(t, store.saved, 1)
	assert.Equal(t, "Out of Stock Alert", store.saved[0].Title)
	assert.Equal(t, domain.CategoryOutOfStock, store.saved[0].Category)
}

func TestLowStockSkipsHealthyLevels(t *testing.T) {
	store := &memStore{}
	d := newTestDispatcher(store, &memDirectory{users: []userDomain.User{{ID: "admin-1", Role: "administrator"}}})

	d.LowStock(context.Background(), inventoryDomain.Reservation{
		ProductID: 7, ProductName: "Globe", Quantity: 1, Remaining: 80, Threshold: 10,
	})
	assert.Empty(t, store.saved)
}

func TestStoreFailureNeverPropagates(t *testing.T) {
	store := &memStore{failErr: assert.AnError}
	d := newTestDispatcher(store, &memDirectory{})

	// Best-effort boundary: nothing to assert beyond "does not panic and
	// does not return an error", which the signatures guarantee.
	d.OrderStatusChanged(context.Background(), shippedOrder(), orderDomain.StatusPending, orderDomain.StatusProcessing)
	d.PaymentConfirmed(context.Background(), shippedOrder())
	assert.Empty(t, store.saved)
}
