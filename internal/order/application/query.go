package application

import (
	"context"
	"log/slog"

	"github.com/shophub/order-fulfillment/internal/order/domain"
)

// AdminOrder is an order enriched with customer details for the staff
// listing. The embedded order already carries live product name/image
// enrichment on its line items; prices stay the creation-time snapshot.
type AdminOrder struct {
	domain.Order
	CustomerName  string `json:"customer_name,omitempty"`
	CustomerEmail string `json:"customer_email,omitempty"`
}

// QueryService is the read side: orders hydrated with line items and
// display enrichment.
type QueryService struct {
	log   *slog.Logger
	repo  OrderRepository
	users UserDirectory
}

func NewQueryService(log *slog.Logger, repo OrderRepository, users UserDirectory) *QueryService {
	return &QueryService{log: log, repo: repo, users: users}
}

func (q *QueryService) GetOrder(ctx context.Context, userID string, orderID int64) (domain.Order, error) {
	return q.repo.GetForUser(ctx, userID, orderID)
}

func (q *QueryService) ListUserOrders(ctx context.Context, userID string) ([]domain.Order, error) {
	return q.repo.ListByUser(ctx, userID)
}

// ListAllOrders filters by exact status and by userID substring search.
// A user lookup failure degrades to an unenriched row, it never fails the
// listing.
func (q *QueryService) ListAllOrders(ctx context.Context, status, search string) ([]AdminOrder, error) {
	orders, err := q.repo.ListAll(ctx, status, search)
	if err != nil {
		return nil, err
	}
	out := make([]AdminOrder, 0, len(orders))
	for _, o := range orders {
		ao := AdminOrder{Order: o}
		u, err := q.users.Get(ctx, o.UserID)
		if err != nil {
			q.log.Warn("user enrichment failed", "order_id", o.ID, "user_id", o.UserID, "err", err)
		} else {
			ao.CustomerName = u.DisplayName()
			ao.CustomerEmail = u.Email
		}
		out = append(out, ao)
	}
	return out, nil
}
