// Package postgres implements the store gateway over a pgx pool.
// Driver errors are translated into the core taxonomy: missing rows
// surface as ErrNotFound, everything else as ErrStoreUnavailable.
package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog/log"
	"github.com/sethvargo/go-retry"

	"github.com/polyglotte/relay/internal/core"
)

type Store struct {
	pool *pgxpool.Pool
}

func New(pool *pgxpool.Pool) *Store {
	return &Store{pool: pool}
}

var (
	_ core.MessageStore      = (*Store)(nil)
	_ core.NotificationStore = (*Store)(nil)
	_ core.BookingStore      = (*Store)(nil)
)

// Connect opens the pool and pings it with bounded backoff, so the server
// survives the database coming up a few seconds after it.
func Connect(ctx context.Context, dsn string) (*pgxpool.Pool, error) {
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, fmt.Errorf("open pool: %w", err)
	}

	backoff := retry.WithMaxRetries(5, retry.NewExponential(500*time.Millisecond))
	err = retry.Do(ctx, backoff, func(ctx context.Context) error {
		if err := pool.Ping(ctx); err != nil {
			log.Warn().Err(err).Str("module", "store.postgres").Msg("database not ready, retrying")
			return retry.RetryableError(err)
		}
		return nil
	})
	if err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}
	return pool, nil
}

// unavailable wraps a driver failure into the taxonomy without losing the
// driver detail.
func unavailable(op string, err error) error {
	return fmt.Errorf("%s: %w: %s", op, core.ErrStoreUnavailable, err)
}
