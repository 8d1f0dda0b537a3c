package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/polyglotte/relay/internal/core"
	"github.com/polyglotte/relay/internal/domain"
)

func (s *Store) FindUnresolved(ctx context.Context, source, target domain.UserID, kind domain.Kind) (*domain.Notification, error) {
	var n domain.Notification
	err := s.pool.QueryRow(ctx, `
		SELECT id, source, target, kind, read, created_at
		FROM notifications
		WHERE source = $1 AND target = $2 AND kind = $3 AND read = false
		LIMIT 1
	`, source, target, kind).Scan(&n.ID, &n.Source, &n.Target, &n.Kind, &n.Read, &n.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, unavailable("find unresolved notification", err)
	}
	return &n, nil
}

func (s *Store) CreateNotification(ctx context.Context, source, target domain.UserID, kind domain.Kind) (*domain.Notification, error) {
	n := &domain.Notification{Source: source, Target: target, Kind: kind}
	err := s.pool.QueryRow(ctx, `
		INSERT INTO notifications (source, target, kind)
		VALUES ($1, $2, $3)
		RETURNING id, read, created_at
	`, source, target, kind).Scan(&n.ID, &n.Read, &n.CreatedAt)
	if err != nil {
		return nil, unavailable("create notification", err)
	}
	return n, nil
}

func (s *Store) MarkRead(ctx context.Context, id domain.NotificationID) error {
	tag, err := s.pool.Exec(ctx, `
		UPDATE notifications SET read = true WHERE id = $1
	`, id)
	if err != nil {
		return unavailable("mark notification read", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("%w: notification %s", core.ErrNotFound, id)
	}
	return nil
}
