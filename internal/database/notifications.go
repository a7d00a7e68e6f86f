package database

import (
	"context"
	"errors"
	"fmt"

	"github.com/VersatilVC/cybra-content-flow-sub002/internal/core/notify"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgtype"
)

var ErrNotificationNotFound = errors.New("notification not found")

func (s *Store) InsertNotification(ctx context.Context, n *notify.Notification) error {
	if n.ID == "" {
		n.ID = uuid.NewString()
	}
	_, err := s.pool.Exec(ctx, `
		INSERT INTO notifications (id, recipient_id, title, message, type,
			related_entity_id, related_entity_type, is_read)
		VALUES ($1, $2, $3, $4, $5, $6, $7, FALSE)`,
		n.ID, n.RecipientID, n.Title, n.Message, string(n.Type),
		nullText(n.RelatedEntityID), nullText(n.RelatedEntityType))
	if err != nil {
		return fmt.Errorf("insert notification: %w", err)
	}
	return nil
}

type ListNotificationsParams struct {
	RecipientID string
	UnreadOnly  bool
	Limit       int32
	Offset      int32
}

func (s *Store) ListNotifications(ctx context.Context, p ListNotificationsParams) ([]notify.Notification, error) {
	query := `
		SELECT id, recipient_id, title, message, type,
			related_entity_id, related_entity_type, is_read, created_at
		FROM notifications
		WHERE recipient_id = $1`
	if p.UnreadOnly {
		query += ` AND NOT is_read`
	}
	query += ` ORDER BY created_at DESC LIMIT $2 OFFSET $3`

	rows, err := s.pool.Query(ctx, query, p.RecipientID, p.Limit, p.Offset)
	if err != nil {
		return nil, fmt.Errorf("list notifications: %w", err)
	}
	defer rows.Close()

	var out []notify.Notification
	for rows.Next() {
		var n notify.Notification
		var typ string
		var entityID, entityType pgtype.Text
		if err := rows.Scan(&n.ID, &n.RecipientID, &n.Title, &n.Message, &typ,
			&entityID, &entityType, &n.IsRead, &n.CreatedAt); err != nil {
			return nil, err
		}
		n.Type = notify.Type(typ)
		n.RelatedEntityID = entityID.String
		n.RelatedEntityType = entityType.String
		out = append(out, n)
	}
	return out, rows.Err()
}

func (s *Store) CountUnreadNotifications(ctx context.Context, recipientID string) (int64, error) {
	var count int64
	err := s.pool.QueryRow(ctx,
		`SELECT COUNT(*) FROM notifications WHERE recipient_id = $1 AND NOT is_read`,
		recipientID).Scan(&count)
	return count, err
}

func (s *Store) MarkNotificationRead(ctx context.Context, id, recipientID string) error {
	tag, err := s.pool.Exec(ctx,
		`UPDATE notifications SET is_read = TRUE WHERE id = $1 AND recipient_id = $2`,
		id, recipientID)
	if err != nil {
		return fmt.Errorf("mark notification read: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotificationNotFound
	}
	return nil
}

func (s *Store) MarkAllNotificationsRead(ctx context.Context, recipientID string) (int64, error) {
	tag, err := s.pool.Exec(ctx,
		`UPDATE notifications SET is_read = TRUE WHERE recipient_id = $1 AND NOT is_read`,
		recipientID)
	if err != nil {
		return 0, fmt.Errorf("mark all notifications read: %w", err)
	}
	return tag.RowsAffected(), nil
}

func (s *Store) DeleteNotification(ctx context.Context, id, recipientID string) error {
	tag, err := s.pool.Exec(ctx,
		`DELETE FROM notifications WHERE id = $1 AND recipient_id = $2`,
		id, recipientID)
	if err != nil {
		return fmt.Errorf("delete notification: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotificationNotFound
	}
	return nil
}
