package application

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	inventoryDomain "github.com/shophub/order-fulfillment/internal/inventory/domain"
	"github.com/shophub/order-fulfillment/internal/order/domain"
)

// Service drives checkout and the order status lifecycle. All mutations
// go through the repository's transactional operations; notifications,
// cart clearing and audit entries are best-effort side effects.
type Service struct {
	log      *slog.Logger
	repo     OrderRepository
	users    UserDirectory
	cart     CartStore
	notifier Notifier
	audit    AuditLog
}

func NewService(log *slog.Logger, repo OrderRepository, users UserDirectory, cart CartStore, notifier Notifier, audit AuditLog) *Service {
	return &Service{log: log, repo: repo, users: users, cart: cart, notifier: notifier, audit: audit}
}

func (s *Service) CreateOrder(ctx context.Context, userID string, req CreateOrderRequest) (domain.Order, error) {
	u, err := s.users.Get(ctx, userID)
	if err != nil {
		return domain.Order{}, fmt.Errorf("resolve user %s: %w", userID, err)
	}
	if u.Restricted() {
		return domain.Order{}, domain.ErrAccountRestricted
	}

	if len(req.Items) == 0 {
		return domain.Order{}, fmt.Errorf("%w: order must contain at least one item", domain.ErrInvalidOrderRequest)
	}
	if !req.Total.Valid {
		return domain.Order{}, fmt.Errorf("%w: order total is required", domain.ErrInvalidOrderRequest)
	}
	for _, it := range req.Items {
		if it.Quantity <= 0 {
			return domain.Order{}, fmt.Errorf("%w: quantity must be positive for product %d", domain.ErrInvalidOrderRequest, it.ProductID)
		}
	}

	o, err := domain.NewOrder(userID, req.Total.Decimal, req.Shipping.Cost, req.Shipping.Address, req.Billing)
	if err != nil {
		return domain.Order{}, err
	}

	created, reservations, err := s.repo.Create(ctx, o, req.Items)
	if err != nil {
		return domain.Order{}, err
	}
	s.log.Info("order created", "order_id", created.ID, "user_id", userID, "items", len(req.Items))

	for _, r := range reservations {
		if r.Level() != inventoryDomain.LevelOK {
			s.log.Warn("stock low after reservation",
				"product_id", r.ProductID, "remaining", r.Remaining, "threshold", r.Threshold)
			s.notifier.LowStock(ctx, r)
		}
	}

	if err := s.cart.Clear(ctx, userID); err != nil {
		s.log.Warn("cart clear failed", "user_id", userID, "err", err)
	}

	return s.repo.GetForUser(ctx, userID, created.ID)
}

func (s *Service) ConfirmPayment(ctx context.Context, actorID string, orderID int64) (domain.Order, error) {
	var old domain.OrderStatus
	updated, err := s.repo.Transition(ctx, orderID, func(o *domain.Order) error {
		old = o.Status
		return o.ConfirmPayment()
	})
	if err != nil {
		return domain.Order{}, err
	}
	s.log.Info("payment confirmed", "order_id", orderID, "actor", actorID)
	s.recordAudit(ctx, actorID, "order.confirm_payment", orderID, "payment confirmed, order moved to processing")
	s.notifier.PaymentConfirmed(ctx, updated)
	s.notifier.OrderStatusChanged(ctx, updated, old, updated.Status)
	return updated, nil
}

func (s *Service) MarkShipped(ctx context.Context, actorID string, orderID int64, trackingNumber, shippingProvider string) (domain.Order, error) {
	var old domain.OrderStatus
	updated, err := s.repo.Transition(ctx, orderID, func(o *domain.Order) error {
		old = o.Status
		return o.MarkShipped(trackingNumber, shippingProvider)
	})
	if err != nil {
		return domain.Order{}, err
	}
	s.log.Info("order shipped", "order_id", orderID, "tracking", updated.TrackingNumber, "provider", updated.ShippingProvider)
	s.recordAudit(ctx, actorID, "order.ship", orderID,
		fmt.Sprintf("shipped via %s, tracking %s", updated.ShippingProvider, updated.TrackingNumber))
	s.notifier.OrderStatusChanged(ctx, updated, old, updated.Status)
	return updated, nil
}

func (s *Service) MarkDelivered(ctx context.Context, actorID string, orderID int64, confirmationProvided bool) (domain.Order, error) {
	if !confirmationProvided {
		return domain.Order{}, domain.ErrMissingConfirmation
	}
	var old domain.OrderStatus
	updated, err := s.repo.Transition(ctx, orderID, func(o *domain.Order) error {
		old = o.Status
		return o.MarkDelivered()
	})
	if err != nil {
		return domain.Order{}, err
	}
	s.log.Info("order delivered", "order_id", orderID, "actor", actorID)
	s.recordAudit(ctx, actorID, "order.deliver", orderID, "delivery confirmed")
	s.notifier.OrderStatusChanged(ctx, updated, old, updated.Status)
	s.notifier.DeliveryConfirmed(ctx, updated)
	return updated, nil
}

// Cancel returns reserved stock for every line item in the same
// transaction that flips the status.
func (s *Service) Cancel(ctx context.Context, actorID string, orderID int64) (domain.Order, error) {
	var old domain.OrderStatus
	updated, err := s.repo.CancelAndRestock(ctx, orderID, func(o *domain.Order) error {
		old = o.Status
		return o.Cancel()
	})
	if err != nil {
		return domain.Order{}, err
	}
	s.log.Info("order cancelled", "order_id", orderID, "actor", actorID, "previous_status", old)
	s.recordAudit(ctx, actorID, "order.cancel", orderID, fmt.Sprintf("cancelled from %s, stock restored", old))
	s.notifier.OrderStatusChanged(ctx, updated, old, updated.Status)
	return updated, nil
}

// UpdateStatus is the unchecked admin override: the value must be a known
// status but the forward path is deliberately not enforced. Admin tooling
// only; the validated transitions above are the normal route.
func (s *Service) UpdateStatus(ctx context.Context, actorID string, orderID int64, status string) (domain.Order, error) {
	st := domain.OrderStatus(status)
	if !st.Valid() {
		return domain.Order{}, fmt.Errorf("%w: %q", domain.ErrInvalidStatus, status)
	}
	var old domain.OrderStatus
	updated, err := s.repo.Transition(ctx, orderID, func(o *domain.Order) error {
		old = o.Status
		return o.ForceStatus(st)
	})
	if err != nil {
		return domain.Order{}, err
	}
	s.log.Info("order status overridden", "order_id", orderID, "from", old, "to", st, "actor", actorID)
	s.recordAudit(ctx, actorID, "order.force_status", orderID, fmt.Sprintf("status override %s -> %s", old, st))
	s.notifier.OrderStatusChanged(ctx, updated, old, updated.Status)
	return updated, nil
}

func (s *Service) AdminUpdateOrder(ctx context.Context, actorID string, orderID int64, patch AdminOrderPatch) (domain.Order, error) {
	if patch.Status != nil && !domain.OrderStatus(*patch.Status).Valid() {
		return domain.Order{}, fmt.Errorf("%w: %q", domain.ErrInvalidStatus, *patch.Status)
	}
	var old domain.OrderStatus
	updated, err := s.repo.Transition(ctx, orderID, func(o *domain.Order) error {
		old = o.Status
		if patch.Status != nil {
			if err := o.ForceStatus(domain.OrderStatus(*patch.Status)); err != nil {
				return err
			}
		}
		if patch.TrackingNumber != nil && strings.TrimSpace(*patch.TrackingNumber) != "" {
			o.TrackingNumber = *patch.TrackingNumber
		}
		if patch.ShippingProvider != nil && strings.TrimSpace(*patch.ShippingProvider) != "" {
			o.ShippingProvider = *patch.ShippingProvider
		}
		if patch.TaxAmount.Valid {
			o.TaxAmount = patch.TaxAmount
		}
		return nil
	})
	if err != nil {
		return domain.Order{}, err
	}
	s.log.Info("order updated by admin", "order_id", orderID, "actor", actorID)
	s.recordAudit(ctx, actorID, "order.admin_update", orderID, adminPatchSummary(patch))
	if old != updated.Status {
		s.notifier.OrderStatusChanged(ctx, updated, old, updated.Status)
	}
	return updated, nil
}

func (s *Service) recordAudit(ctx context.Context, actorID, action string, orderID int64, details string) {
	if err := s.audit.Record(ctx, actorID, action, orderID, details); err != nil {
		s.log.Warn("audit record failed", "action", action, "order_id", orderID, "err", err)
	}
}

func adminPatchSummary(patch AdminOrderPatch) string {
	parts := make([]string, 0, 4)
	if patch.Status != nil {
		parts = append(parts, "status="+*patch.Status)
	}
	if patch.TrackingNumber != nil {
		parts = append(parts, "tracking="+*patch.TrackingNumber)
	}
	if patch.ShippingProvider != nil {
		parts = append(parts, "provider="+*patch.ShippingProvider)
	}
	if patch.TaxAmount.Valid {
		parts = append(parts, "tax="+patch.TaxAmount.Decimal.String())
	}
	if len(parts) == 0 {
		return "no fields changed"
	}
	return strings.Join(parts, ", ")
}
