package application

import (
	"context"

	"github.com/shopspring/decimal"

	inventoryDomain "github.com/shophub/order-fulfillment/internal/inventory/domain"
	"github.com/shophub/order-fulfillment/internal/order/domain"
	userDomain "github.com/shophub/order-fulfillment/internal/user/domain"
)

type OrderItemRequest struct {
	ProductID int64               `json:"product_id"`
	Quantity  int                 `json:"quantity"`
	Price     decimal.NullDecimal `json:"price"`
}

type ShippingDetails struct {
	Address domain.Address  `json:"address"`
	Cost    decimal.Decimal `json:"cost"`
}

type CreateOrderRequest struct {
	Items    []OrderItemRequest  `json:"items"`
	Total    decimal.NullDecimal `json:"total"`
	Shipping ShippingDetails     `json:"shipping"`
	Billing  *domain.Address     `json:"billing,omitempty"`
}

type AdminOrderPatch struct {
	Status           *string             `json:"status,omitempty"`
	TrackingNumber   *string             `json:"tracking_number,omitempty"`
	ShippingProvider *string             `json:"shipping_provider,omitempty"`
	TaxAmount        decimal.NullDecimal `json:"tax_amount"`
}

// OrderRepository owns the transaction boundary: Create runs every stock
// reservation and every insert in one transaction, Transition mutates an
// order under a row lock, CancelAndRestock additionally returns the
// reserved stock inside the same transaction.
type OrderRepository interface {
	Create(ctx context.Context, o domain.Order, items []OrderItemRequest) (domain.Order, []inventoryDomain.Reservation, error)
	GetForUser(ctx context.Context, userID string, orderID int64) (domain.Order, error)
	ListByUser(ctx context.Context, userID string) ([]domain.Order, error)
	ListAll(ctx context.Context, status, search string) ([]domain.Order, error)
	Transition(ctx context.Context, orderID int64, mutate func(*domain.Order) error) (domain.Order, error)
	CancelAndRestock(ctx context.Context, orderID int64, mutate func(*domain.Order) error) (domain.Order, error)
}

type UserDirectory interface {
	Get(ctx context.Context, userID string) (userDomain.User, error)
	ListByRole(ctx context.Context, roles []string) ([]userDomain.User, error)
}

type CartStore interface {
	Clear(ctx context.Context, userID string) error
}

// Notifier is best-effort by contract: implementations log delivery
// failures and never surface them to the workflow.
type Notifier interface {
	OrderStatusChanged(ctx context.Context, o domain.Order, oldStatus, newStatus domain.OrderStatus)
	PaymentConfirmed(ctx context.Context, o domain.Order)
	DeliveryConfirmed(ctx context.Context, o domain.Order)
	LowStock(ctx context.Context, r inventoryDomain.Reservation)
}

type AuditLog interface {
	Record(ctx context.Context, actorID, action string, orderID int64, details string) error
}
