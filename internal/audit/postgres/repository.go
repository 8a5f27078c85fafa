package postgres

import (
	"context"
	"log/slog"

	"github.com/jackc/pgx/v5/pgxpool"
)

// Trail is the append-only record of admin and staff actions.
type Trail struct {
	log  *slog.Logger
	pool *pgxpool.Pool
}

func NewTrail(log *slog.Logger, pool *pgxpool.Pool) *Trail {
	return &Trail{log: log, pool: pool}
}

func (t *Trail) Record(ctx context.Context, actorID, action string, orderID int64, details string) error {
	var oid any
	if orderID != 0 {
		oid = orderID
	}
	_, err := t.pool.Exec(ctx, `
		INSERT INTO audit_log (actor_id, action, order_id, details)
		VALUES ($1,$2,$3,$4)
	`, actorID, action, oid, details)
	return err
}
