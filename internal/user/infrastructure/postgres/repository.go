package postgres

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/shophub/order-fulfillment/internal/user/domain"
)

// Directory is a read-only view of the externally-owned users table;
// identity itself is resolved upstream.
type Directory struct {
	log  *slog.Logger
	pool *pgxpool.Pool
}

func NewDirectory(log *slog.Logger, pool *pgxpool.Pool) *Directory {
	return &Directory{log: log, pool: pool}
}

func (d *Directory) Get(ctx context.Context, userID string) (domain.User, error) {
	var u domain.User
	err := d.pool.QueryRow(ctx, `
		SELECT user_id, COALESCE(first_name, ''), COALESCE(last_name, ''), COALESCE(email, ''),
			COALESCE(role, 'customer'), is_locked, is_deactivated
		FROM users WHERE user_id = $1
	`, userID).Scan(&u.ID, &u.FirstName, &u.LastName, &u.Email, &u.Role, &u.Locked, &u.Deactivated)
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.User{}, fmt.Errorf("%w: %s", domain.ErrNotFound, userID)
	}
	if err != nil {
		return domain.User{}, err
	}
	return u, nil
}

func (d *Directory) ListByRole(ctx context.Context, roles []string) ([]domain.User, error) {
	rows, err := d.pool.Query(ctx, `
		SELECT user_id, COALESCE(first_name, ''), COALESCE(last_name, ''), COALESCE(email, ''),
			COALESCE(role, 'customer'), is_locked, is_deactivated
		FROM users WHERE role = ANY($1)
	`, roles)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var users []domain.User
	for rows.Next() {
		var u domain.User
		if err := rows.Scan(&u.ID, &u.FirstName, &u.LastName, &u.Email, &u.Role, &u.Locked, &u.Deactivated); err != nil {
			return nil, err
		}
		users = append(users, u)
	}
	return users, rows.Err()
}
