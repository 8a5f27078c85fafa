package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/shophub/order-fulfillment/internal/inventory/domain"
)

// Ledger is the single writer of product stock. Reservations ride on the
// row lock taken by the conditional UPDATE, so concurrent reservations
// against one product serialize and stock can never go negative.
type Ledger struct {
	log  *slog.Logger
	pool *pgxpool.Pool
}

func NewLedger(log *slog.Logger, pool *pgxpool.Pool) *Ledger {
	return &Ledger{log: log, pool: pool}
}

// ReserveInTx decrements stock inside the caller's transaction so a
// failed order insert rolls the reservation back too.
func (l *Ledger) ReserveInTx(ctx context.Context, tx pgx.Tx, productID int64, quantity int) (domain.Reservation, error) {
	res := domain.Reservation{ProductID: productID, Quantity: quantity}
	err := tx.QueryRow(ctx, `
		UPDATE products
		SET stock_quantity = stock_quantity - $2, updated_at = now()
		WHERE product_id = $1 AND stock_quantity >= $2
		RETURNING name, price, stock_quantity, COALESCE(low_stock_threshold, $3)
	`, productID, quantity, domain.DefaultLowStockThreshold).
		Scan(&res.ProductName, &res.UnitPrice, &res.Remaining, &res.Threshold)
	if errors.Is(err, pgx.ErrNoRows) {
		var exists bool
		if probeErr := tx.QueryRow(ctx,
			`SELECT EXISTS (SELECT 1 FROM products WHERE product_id = $1)`, productID).Scan(&exists); probeErr != nil {
			return domain.Reservation{}, probeErr
		}
		if !exists {
			return domain.Reservation{}, fmt.Errorf("%w: %d", domain.ErrProductNotFound, productID)
		}
		return domain.Reservation{}, fmt.Errorf("%w: product %d", domain.ErrInsufficientStock, productID)
	}
	if err != nil {
		return domain.Reservation{}, fmt.Errorf("reserve product %d: %w", productID, err)
	}
	return res, nil
}

// Reserve runs a single reservation in its own transaction.
func (l *Ledger) Reserve(ctx context.Context, productID int64, quantity int) (domain.Reservation, error) {
	tx, err := l.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return domain.Reservation{}, err
	}
	defer func() {
		_ = tx.Rollback(ctx)
	}()

	res, err := l.ReserveInTx(ctx, tx, productID, quantity)
	if err != nil {
		return domain.Reservation{}, err
	}
	return res, tx.Commit(ctx)
}

// RestoreInTx returns previously reserved stock, used by cancellation.
func (l *Ledger) RestoreInTx(ctx context.Context, tx pgx.Tx, productID int64, quantity int) error {
	ct, err := tx.Exec(ctx, `
		UPDATE products
		SET stock_quantity = stock_quantity + $2, updated_at = now()
		WHERE product_id = $1
	`, productID, quantity)
	if err != nil {
		return fmt.Errorf("restore product %d: %w", productID, err)
	}
	if ct.RowsAffected() == 0 {
		return fmt.Errorf("%w: %d", domain.ErrProductNotFound, productID)
	}
	return nil
}

func (l *Ledger) Restore(ctx context.Context, productID int64, quantity int) error {
	tx, err := l.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return err
	}
	defer func() {
		_ = tx.Rollback(ctx)
	}()

	if err := l.RestoreInTx(ctx, tx, productID, quantity); err != nil {
		return err
	}
	return tx.Commit(ctx)
}

func (l *Ledger) Get(ctx context.Context, productID int64) (domain.Product, error) {
	var p domain.Product
	var images []byte
	err := l.pool.QueryRow(ctx, `
		SELECT product_id, name, price, stock_quantity, COALESCE(low_stock_threshold, $2), COALESCE(images, '[]'::jsonb)
		FROM products WHERE product_id = $1
	`, productID, domain.DefaultLowStockThreshold).
		Scan(&p.ID, &p.Name, &p.Price, &p.StockQuantity, &p.LowStockThreshold, &images)
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.Product{}, fmt.Errorf("%w: %d", domain.ErrProductNotFound, productID)
	}
	if err != nil {
		return domain.Product{}, err
	}
	if err := json.Unmarshal(images, &p.Images); err != nil {
		l.log.Warn("bad images payload", "product_id", productID, "err", err)
	}
	return p, nil
}
