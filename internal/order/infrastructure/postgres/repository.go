package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	inventoryDomain "github.com/shophub/order-fulfillment/internal/inventory/domain"
	inventoryPostgres "github.com/shophub/order-fulfillment/internal/inventory/infrastructure/postgres"
	"github.com/shophub/order-fulfillment/internal/order/application"
	"github.com/shophub/order-fulfillment/internal/order/domain"
)

const orderColumns = `order_id, user_id, order_status, total_amount, tax_amount, shipping_cost,
	shipping_address, billing_address, COALESCE(tracking_number, ''), COALESCE(shipping_provider, ''),
	estimated_delivery_date, version, created_at, updated_at`

type Repository struct {
	log    *slog.Logger
	pool   *pgxpool.Pool
	ledger *inventoryPostgres.Ledger
}

func NewRepository(log *slog.Logger, pool *pgxpool.Pool, ledger *inventoryPostgres.Ledger) *Repository {
	return &Repository{log: log, pool: pool, ledger: ledger}
}

// Create persists the order, reserves stock for every line item and
// writes the items, all in one transaction. Any failure, including
// insufficient stock on the last item, rolls back every earlier
// reservation.
func (r *Repository) Create(ctx context.Context, o domain.Order, items []application.OrderItemRequest) (domain.Order, []inventoryDomain.Reservation, error) {
	tx, err := r.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return domain.Order{}, nil, err
	}
	defer func() {
		_ = tx.Rollback(ctx)
	}()

	shipJSON, err := json.Marshal(o.ShippingAddress)
	if err != nil {
		return domain.Order{}, nil, fmt.Errorf("encode shipping address: %w", err)
	}
	billJSON, err := json.Marshal(o.BillingAddress)
	if err != nil {
		return domain.Order{}, nil, fmt.Errorf("encode billing address: %w", err)
	}

	err = tx.QueryRow(ctx, `
		INSERT INTO orders (user_id, order_status, total_amount, tax_amount, shipping_cost,
			shipping_address, billing_address, tracking_number, shipping_provider,
			estimated_delivery_date, version, created_at, updated_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13)
		RETURNING order_id
	`, o.UserID, o.Status, o.TotalAmount, o.TaxAmount, o.ShippingCost,
		shipJSON, billJSON, o.TrackingNumber, o.ShippingProvider,
		o.EstimatedDeliveryDate, o.Version, o.CreatedAt, o.UpdatedAt).Scan(&o.ID)
	if err != nil {
		return domain.Order{}, nil, fmt.Errorf("insert order: %w", err)
	}

	reservations := make([]inventoryDomain.Reservation, 0, len(items))
	for _, it := range items {
		res, err := r.ledger.ReserveInTx(ctx, tx, it.ProductID, it.Quantity)
		if err != nil {
			return domain.Order{}, nil, err
		}

		// Price snapshot: the caller's price wins, the live product
		// price is the fallback.
		price := res.UnitPrice
		if it.Price.Valid {
			price = it.Price.Decimal
		}
		line, err := domain.NewLineItem(it.ProductID, it.Quantity, price)
		if err != nil {
			return domain.Order{}, nil, err
		}
		line.OrderID = o.ID

		err = tx.QueryRow(ctx, `
			INSERT INTO order_items (order_id, product_id, quantity, unit_price, subtotal)
			VALUES ($1,$2,$3,$4,$5)
			RETURNING order_item_id
		`, line.OrderID, line.ProductID, line.Quantity, line.UnitPrice, line.Subtotal).Scan(&line.ID)
		if err != nil {
			return domain.Order{}, nil, fmt.Errorf("insert order item: %w", err)
		}

		o.Items = append(o.Items, line)
		reservations = append(reservations, res)
	}

	if err := tx.Commit(ctx); err != nil {
		return domain.Order{}, nil, err
	}
	return o, reservations, nil
}

func (r *Repository) GetForUser(ctx context.Context, userID string, orderID int64) (domain.Order, error) {
	row := r.pool.QueryRow(ctx,
		`SELECT `+orderColumns+` FROM orders WHERE order_id = $1 AND user_id = $2`, orderID, userID)
	o, err := scanOrder(row)
	if err != nil {
		return domain.Order{}, err
	}
	if err := r.loadItems(ctx, &o); err != nil {
		return domain.Order{}, err
	}
	return o, nil
}

func (r *Repository) ListByUser(ctx context.Context, userID string) ([]domain.Order, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT `+orderColumns+` FROM orders WHERE user_id = $1 ORDER BY created_at DESC`, userID)
	if err != nil {
		return nil, err
	}
	return r.collectOrders(ctx, rows)
}

func (r *Repository) ListAll(ctx context.Context, status, search string) ([]domain.Order, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT `+orderColumns+` FROM orders
		WHERE ($1 = '' OR order_status = $1)
		  AND ($2 = '' OR user_id ILIKE '%' || $2 || '%')
		ORDER BY created_at DESC
	`, status, search)
	if err != nil {
		return nil, err
	}
	return r.collectOrders(ctx, rows)
}

// Transition loads the order under a row lock, applies the mutation and
// persists the result. A mutation error aborts the transaction with the
// row untouched, so a rejected transition never changes state. The lock
// keeps concurrent transitions against one order from both succeeding.
func (r *Repository) Transition(ctx context.Context, orderID int64, mutate func(*domain.Order) error) (domain.Order, error) {
	return r.mutate(ctx, orderID, mutate, false)
}

// CancelAndRestock additionally returns every line item's quantity to
// stock inside the same transaction.
func (r *Repository) CancelAndRestock(ctx context.Context, orderID int64, mutate func(*domain.Order) error) (domain.Order, error) {
	return r.mutate(ctx, orderID, mutate, true)
}

func (r *Repository) mutate(ctx context.Context, orderID int64, mutate func(*domain.Order) error, restock bool) (domain.Order, error) {
	tx, err := r.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return domain.Order{}, err
	}
	defer func() {
		_ = tx.Rollback(ctx)
	}()

	row := tx.QueryRow(ctx,
		`SELECT `+orderColumns+` FROM orders WHERE order_id = $1 FOR UPDATE`, orderID)
	o, err := scanOrder(row)
	if err != nil {
		return domain.Order{}, err
	}

	if err := mutate(&o); err != nil {
		return domain.Order{}, err
	}

	_, err = tx.Exec(ctx, `
		UPDATE orders
		SET order_status = $2, tracking_number = $3, shipping_provider = $4, tax_amount = $5,
			estimated_delivery_date = $6, version = $7, updated_at = $8
		WHERE order_id = $1
	`, o.ID, o.Status, o.TrackingNumber, o.ShippingProvider, o.TaxAmount,
		o.EstimatedDeliveryDate, o.Version, o.UpdatedAt)
	if err != nil {
		return domain.Order{}, fmt.Errorf("update order %d: %w", orderID, err)
	}

	if restock {
		items, err := r.itemsInTx(ctx, tx, orderID)
		if err != nil {
			return domain.Order{}, err
		}
		for _, it := range items {
			if err := r.ledger.RestoreInTx(ctx, tx, it.ProductID, it.Quantity); err != nil {
				return domain.Order{}, err
			}
		}
		o.Items = items
	}

	if err := tx.Commit(ctx); err != nil {
		return domain.Order{}, err
	}

	if !restock {
		if err := r.loadItems(ctx, &o); err != nil {
			return domain.Order{}, err
		}
	}
	return o, nil
}

func (r *Repository) collectOrders(ctx context.Context, rows pgx.Rows) ([]domain.Order, error) {
	defer rows.Close()

	var orders []domain.Order
	for rows.Next() {
		o, err := scanOrder(rows)
		if err != nil {
			return nil, err
		}
		orders = append(orders, o)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	for i := range orders {
		if err := r.loadItems(ctx, &orders[i]); err != nil {
			return nil, err
		}
	}
	return orders, nil
}

// loadItems hydrates line items with live product name/images. The price
// on the item stays the creation-time snapshot.
func (r *Repository) loadItems(ctx context.Context, o *domain.Order) error {
	rows, err := r.pool.Query(ctx, `
		SELECT i.order_item_id, i.order_id, i.product_id, i.quantity, i.unit_price, i.subtotal,
			COALESCE(p.name, ''), COALESCE(p.images, '[]'::jsonb)
		FROM order_items i
		LEFT JOIN products p ON p.product_id = i.product_id
		WHERE i.order_id = $1
		ORDER BY i.order_item_id
	`, o.ID)
	if err != nil {
		return err
	}
	defer rows.Close()

	o.Items = o.Items[:0]
	for rows.Next() {
		var it domain.LineItem
		var images []byte
		if err := rows.Scan(&it.ID, &it.OrderID, &it.ProductID, &it.Quantity,
			&it.UnitPrice, &it.Subtotal, &it.ProductName, &images); err != nil {
			return err
		}
		if err := json.Unmarshal(images, &it.Images); err != nil {
			r.log.Warn("bad images payload", "product_id", it.ProductID, "err", err)
		}
		o.Items = append(o.Items, it)
	}
	return rows.Err()
}

func (r *Repository) itemsInTx(ctx context.Context, tx pgx.Tx, orderID int64) ([]domain.LineItem, error) {
	rows, err := tx.Query(ctx, `
		SELECT order_item_id, order_id, product_id, quantity, unit_price, subtotal
		FROM order_items WHERE order_id = $1 ORDER BY order_item_id
	`, orderID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var items []domain.LineItem
	for rows.Next() {
		var it domain.LineItem
		if err := rows.Scan(&it.ID, &it.OrderID, &it.ProductID, &it.Quantity, &it.UnitPrice, &it.Subtotal); err != nil {
			return nil, err
		}
		items = append(items, it)
	}
	return items, rows.Err()
}

func scanOrder(row pgx.Row) (domain.Order, error) {
	var o domain.Order
	var shipJSON, billJSON []byte
	err := row.Scan(&o.ID, &o.UserID, &o.Status, &o.TotalAmount, &o.TaxAmount, &o.ShippingCost,
		&shipJSON, &billJSON, &o.TrackingNumber, &o.ShippingProvider,
		&o.EstimatedDeliveryDate, &o.Version, &o.CreatedAt, &o.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.Order{}, domain.ErrOrderNotFound
	}
	if err != nil {
		return domain.Order{}, err
	}
	if err := json.Unmarshal(shipJSON, &o.ShippingAddress); err != nil {
		return domain.Order{}, fmt.Errorf("decode shipping address: %w", err)
	}
	if err := json.Unmarshal(billJSON, &o.BillingAddress); err != nil {
		return domain.Order{}, fmt.Errorf("decode billing address: %w", err)
	}
	return o, nil
}
