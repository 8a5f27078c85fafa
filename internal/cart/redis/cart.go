package redis

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/redis/go-redis/v9"
)

// Store is the cart collaborator. The workflow only ever clears a cart;
// cart contents are owned by the storefront.
type Store struct {
	log *slog.Logger
	rdb *redis.Client
}

func NewStore(log *slog.Logger, rdb *redis.Client) *Store {
	return &Store{log: log, rdb: rdb}
}

func key(userID string) string {
	return fmt.Sprintf("cart:%s", userID)
}

func (s *Store) Clear(ctx context.Context, userID string) error {
	if err := s.rdb.Del(ctx, key(userID)).Err(); err != nil {
		return fmt.Errorf("clear cart for %s: %w", userID, err)
	}
	s.log.Info("cart cleared", "user_id", userID)
	return nil
}
