package domain

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

var (
	ErrInvalidOrderRequest = errors.New("invalid order request")
	ErrOrderNotFound       = errors.New("order not found")
	ErrIllegalTransition   = errors.New("illegal status transition")
	ErrInvalidStatus       = errors.New("invalid order status")
	ErrMissingConfirmation = errors.New("delivery confirmation is required")
	ErrAccountRestricted   = errors.New("account is not allowed to place orders")
)

type OrderStatus string

const (
	StatusPending    OrderStatus = "pending"
	StatusProcessing OrderStatus = "processing"
	StatusShipped    OrderStatus = "shipped"
	StatusDelivered  OrderStatus = "delivered"
	StatusCancelled  OrderStatus = "cancelled"
)

const DefaultShippingProvider = "Standard Shipping"

func (s OrderStatus) Valid() bool {
	switch s {
	case StatusPending, StatusProcessing, StatusShipped, StatusDelivered, StatusCancelled:
		return true
	}
	return false
}

// next holds the legal forward moves per status. Delivered and cancelled
// are terminal.
var next = map[OrderStatus][]OrderStatus{
	StatusPending:    {StatusProcessing, StatusCancelled},
	StatusProcessing: {StatusShipped, StatusCancelled},
	StatusShipped:    {StatusDelivered},
}

func (s OrderStatus) CanTransitionTo(to OrderStatus) bool {
	for _, n := range next[s] {
		if n == to {
			return true
		}
	}
	return false
}

type Order struct {
	ID                    int64               `json:"id"`
	UserID                string              `json:"user_id"`
	Status                OrderStatus         `json:"status"`
	TotalAmount           decimal.Decimal     `json:"total_amount"`
	TaxAmount             decimal.NullDecimal `json:"tax_amount"`
	ShippingCost          decimal.Decimal     `json:"shipping_cost"`
	ShippingAddress       Address             `json:"shipping_address"`
	BillingAddress        Address             `json:"billing_address"`
	TrackingNumber        string              `json:"tracking_number,omitempty"`
	ShippingProvider      string              `json:"shipping_provider,omitempty"`
	EstimatedDeliveryDate time.Time           `json:"estimated_delivery_date"`
	Version               int                 `json:"version"`
	CreatedAt             time.Time           `json:"created_at"`
	UpdatedAt             time.Time           `json:"updated_at"`
	Items                 []LineItem          `json:"items"`
}

type LineItem struct {
	ID        int64           `json:"id"`
	OrderID   int64           `json:"order_id"`
	ProductID int64           `json:"product_id"`
	Quantity  int             `json:"quantity"`
	UnitPrice decimal.Decimal `json:"unit_price"`
	Subtotal  decimal.Decimal `json:"subtotal"`

	// Display enrichment joined at read time, never persisted on the item.
	ProductName string   `json:"product_name,omitempty"`
	Images      []string `json:"images,omitempty"`
}

func NewLineItem(productID int64, quantity int, unitPrice decimal.Decimal) (LineItem, error) {
	if quantity <= 0 {
		return LineItem{}, fmt.Errorf("%w: quantity must be positive", ErrInvalidOrderRequest)
	}
	return LineItem{
		ProductID: productID,
		Quantity:  quantity,
		UnitPrice: unitPrice,
		Subtotal:  unitPrice.Mul(decimal.NewFromInt(int64(quantity))),
	}, nil
}

// NewOrder builds a pending order from validated checkout input. Billing
// falls back to the shipping address when the caller does not distinguish
// one. The tracking number assigned here is a placeholder; shipment may
// overwrite it.
func NewOrder(userID string, total, shippingCost decimal.Decimal, shipping Address, billing *Address) (Order, error) {
	if userID == "" {
		return Order{}, fmt.Errorf("%w: user id is required", ErrInvalidOrderRequest)
	}
	if err := shipping.Validate(); err != nil {
		return Order{}, err
	}
	bill := shipping
	if billing != nil {
		if err := billing.Validate(); err != nil {
			return Order{}, err
		}
		bill = *billing
	}
	now := time.Now().UTC()
	return Order{
		UserID:                userID,
		Status:                StatusPending,
		TotalAmount:           total,
		ShippingCost:          shippingCost,
		ShippingAddress:       shipping,
		BillingAddress:        bill,
		TrackingNumber:        NewTrackingNumber(),
		ShippingProvider:      DefaultShippingProvider,
		EstimatedDeliveryDate: now.AddDate(0, 0, 7),
		Version:               1,
		CreatedAt:             now,
		UpdatedAt:             now,
	}, nil
}

// NewTrackingNumber returns a placeholder of the form
// TRK-<unix millis>-<8 uppercase hex chars>.
func NewTrackingNumber() string {
	suffix := strings.ToUpper(strings.ReplaceAll(uuid.NewString(), "-", "")[:8])
	return fmt.Sprintf("TRK-%d-%s", time.Now().UnixMilli(), suffix)
}

func (o *Order) ItemCount() int {
	var n int
	for _, it := range o.Items {
		n += it.Quantity
	}
	return n
}

func (o *Order) transition(to OrderStatus) error {
	if !o.Status.CanTransitionTo(to) {
		return fmt.Errorf("%w: %s -> %s", ErrIllegalTransition, o.Status, to)
	}
	o.Status = to
	o.Version++
	o.UpdatedAt = time.Now().UTC()
	return nil
}

// ConfirmPayment moves a pending order to processing.
func (o *Order) ConfirmPayment() error {
	if o.Status != StatusPending {
		return fmt.Errorf("%w: only pending orders can have payment confirmed, current status %s", ErrIllegalTransition, o.Status)
	}
	return o.transition(StatusProcessing)
}

// MarkShipped moves a processing order to shipped, updating tracking
// details when supplied and resetting the delivery estimate to five days
// out.
func (o *Order) MarkShipped(trackingNumber, shippingProvider string) error {
	if o.Status != StatusProcessing {
		return fmt.Errorf("%w: only processing orders can be shipped, current status %s", ErrIllegalTransition, o.Status)
	}
	if err := o.transition(StatusShipped); err != nil {
		return err
	}
	if strings.TrimSpace(trackingNumber) != "" {
		o.TrackingNumber = trackingNumber
	}
	if strings.TrimSpace(shippingProvider) != "" {
		o.ShippingProvider = shippingProvider
	}
	o.EstimatedDeliveryDate = time.Now().UTC().AddDate(0, 0, 5)
	return nil
}

// MarkDelivered moves a shipped order to delivered and pins the delivery
// estimate to today. The confirmation flag must be checked by the caller
// before the order is even loaded.
func (o *Order) MarkDelivered() error {
	if o.Status != StatusShipped {
		return fmt.Errorf("%w: only shipped orders can be delivered, current status %s", ErrIllegalTransition, o.Status)
	}
	if err := o.transition(StatusDelivered); err != nil {
		return err
	}
	o.EstimatedDeliveryDate = time.Now().UTC()
	return nil
}

// Cancel is legal from pending and processing only; goods already in
// transit cannot be recalled.
func (o *Order) Cancel() error {
	if o.Status != StatusPending && o.Status != StatusProcessing {
		return fmt.Errorf("%w: %s orders cannot be cancelled", ErrIllegalTransition, o.Status)
	}
	return o.transition(StatusCancelled)
}

// ForceStatus is the unchecked admin override behind the generic
// update-status operation. It validates the value only, not the forward
// path.
func (o *Order) ForceStatus(to OrderStatus) error {
	if !to.Valid() {
		return fmt.Errorf("%w: %q", ErrInvalidStatus, to)
	}
	o.Status = to
	o.Version++
	o.UpdatedAt = time.Now().UTC()
	return nil
}
