package application

import (
	"context"
	"fmt"
	"log/slog"

	inventoryDomain "github.com/shophub/order-fulfillment/internal/inventory/domain"
	"github.com/shophub/order-fulfillment/internal/notification/domain"
	orderDomain "github.com/shophub/order-fulfillment/internal/order/domain"
	userDomain "github.com/shophub/order-fulfillment/internal/user/domain"
)

type Store interface {
	Save(ctx context.Context, n domain.Notification) error
}

type Directory interface {
	Get(ctx context.Context, userID string) (userDomain.User, error)
	ListByRole(ctx context.Context, roles []string) ([]userDomain.User, error)
}

// Dispatcher translates workflow events into stored notifications. Every
// method is best-effort: failures are logged, never returned, so the
// durability guarantee stays on order state.
type Dispatcher struct {
	log   *slog.Logger
	store Store
	users Directory
}

func NewDispatcher(log *slog.Logger, store Store, users Directory) *Dispatcher {
	return &Dispatcher{log: log, store: store, users: users}
}

func (d *Dispatcher) OrderStatusChanged(ctx context.Context, o orderDomain.Order, oldStatus, newStatus orderDomain.OrderStatus) {
	msg := statusMessage(o, newStatus)
	d.save(ctx, domain.New(o.UserID, o.ID, "Order Status Updated", msg, domain.CategoryOrderStatus))
	d.log.Info("order status notification",
		"order_id", o.ID, "user_id", o.UserID, "from", oldStatus, "to", newStatus, "tracking", o.TrackingNumber)
}

func (d *Dispatcher) PaymentConfirmed(ctx context.Context, o orderDomain.Order) {
	msg := "Your payment has been confirmed and your order is being processed."
	if o.TrackingNumber != "" {
		msg += fmt.Sprintf(" Tracking: %s", o.TrackingNumber)
	}
	d.save(ctx, domain.New(o.UserID, o.ID, "Payment Confirmed", msg, domain.CategoryPayment))
	d.log.Info("payment confirmation notification",
		"order_id", o.ID, "user_id", o.UserID, "amount", o.TotalAmount)
}

// DeliveryConfirmed fans out to delivery staff roles.
func (d *Dispatcher) DeliveryConfirmed(ctx context.Context, o orderDomain.Order) {
	staff, err := d.users.ListByRole(ctx, userDomain.DeliveryStaffRoles)
	if err != nil {
		d.log.Error("staff lookup failed for delivery notification", "order_id", o.ID, "err", err)
		return
	}
	if len(staff) == 0 {
		d.log.Info("no staff members for delivery notification", "order_id", o.ID, "roles", userDomain.DeliveryStaffRoles)
		return
	}

	customerName := o.UserID
	if customer, err := d.users.Get(ctx, o.UserID); err == nil {
		customerName = customer.DisplayName()
	}
	msg := fmt.Sprintf("Order #%d for %s has been marked as delivered.", o.ID, customerName)
	if o.TrackingNumber != "" {
		msg += fmt.Sprintf(" Tracking number: %s.", o.TrackingNumber)
	}

	for _, member := range staff {
		d.save(ctx, domain.New(member.ID, o.ID, "Order Delivered", msg, domain.CategoryDelivery))
	}
	d.log.Info("staff delivery notifications stored", "order_id", o.ID, "recipients", len(staff))
}

// LowStock alerts admin roles, with an out-of-stock severity split.
func (d *Dispatcher) LowStock(ctx context.Context, r inventoryDomain.Reservation) {
	level := r.Level()
	if level == inventoryDomain.LevelOK {
		return
	}

	admins, err := d.users.ListByRole(ctx, userDomain.InventoryAlertRoles)
	if err != nil {
		d.log.Error("admin lookup failed for stock alert", "product_id", r.ProductID, "err", err)
		return
	}
	if len(admins) == 0 {
		d.log.Error("no admins to notify about stock level", "product_id", r.ProductID, "roles", userDomain.InventoryAlertRoles)
		return
	}

	var title, msg string
	var category domain.Category
	if level == inventoryDomain.LevelOut {
		title = "Out of Stock Alert"
		msg = fmt.Sprintf("Product '%s' (ID #%d) is out of stock.", r.ProductName, r.ProductID)
		category = domain.CategoryOutOfStock
	} else {
		title = "Low Stock Alert"
		msg = fmt.Sprintf("Product '%s' (ID #%d) is low on stock: %d units (threshold: %d).",
			r.ProductName, r.ProductID, r.Remaining, r.Threshold)
		category = domain.CategoryLowStock
	}

	for _, admin := range admins {
		d.save(ctx, domain.New(admin.ID, 0, title, msg, category))
	}
	d.log.Warn("stock alert notifications stored",
		"product_id", r.ProductID, "level", level, "remaining", r.Remaining, "recipients", len(admins))
}

func (d *Dispatcher) save(ctx context.Context, n domain.Notification) {
	if err := d.store.Save(ctx, n); err != nil {
		d.log.Error("store notification failed",
			"user_id", n.UserID, "category", n.Category, "err", err)
	}
}

func statusMessage(o orderDomain.Order, status orderDomain.OrderStatus) string {
	switch status {
	case orderDomain.StatusPending:
		return fmt.Sprintf("Order #%d has been received and is awaiting payment confirmation.", o.ID)
	case orderDomain.StatusProcessing:
		return fmt.Sprintf("Order #%d is being processed.", o.ID)
	case orderDomain.StatusShipped:
		return fmt.Sprintf("Order #%d has been shipped via %s. Tracking number: %s.", o.ID, o.ShippingProvider, o.TrackingNumber)
	case orderDomain.StatusDelivered:
		return fmt.Sprintf("Order #%d has been delivered. Thank you for shopping with us!", o.ID)
	case orderDomain.StatusCancelled:
		return fmt.Sprintf("Order #%d has been cancelled.", o.ID)
	default:
		return fmt.Sprintf("Order #%d status is now %s.", o.ID, status)
	}
}
