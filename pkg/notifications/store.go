package notifications

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/meridiancrm/meridian/pkg/apperr"
	"github.com/meridiancrm/meridian/pkg/crm"
)

// Store persists notifications
type Store struct {
	db *sql.DB
}

// NewStore creates a notification store
func NewStore(db *sql.DB) *Store {
	return &Store{db: db}
}

// ListFilter narrows a user's notification listing
type ListFilter struct {
	IsRead *bool
	Type   *Type
	Limit  int
}

const notificationColumns = `id, user_id, type, title, message, is_read, read_at,
	related_kind, related_id, priority, created_at`

func scanNotification(row interface{ Scan(...interface{}) error }) (*Notification, error) {
	var n Notification
	var relatedKind sql.NullString
	var relatedID sql.NullInt64

	err := row.Scan(
		&n.ID, &n.UserID, &n.Type, &n.Title, &n.Message, &n.IsRead, &n.ReadAt,
		&relatedKind, &relatedID, &n.Priority, &n.CreatedAt,
	)
	if err != nil {
		return nil, err
	}

	if relatedKind.Valid && relatedID.Valid {
		n.RelatedTo = &crm.RelatedTo{Kind: relatedKind.String, ID: relatedID.Int64}
	}
	return &n, nil
}

// Create inserts a notification
func (s *Store) Create(ctx context.Context, n *Notification) (*Notification, error) {
	if n.Priority == "" {
		n.Priority = PriorityMedium
	}

	var relatedKind *string
	var relatedID *int64
	if n.RelatedTo != nil {
		relatedKind = &n.RelatedTo.Kind
		relatedID = &n.RelatedTo.ID
	}

	err := s.db.QueryRowContext(ctx, `
		INSERT INTO notifications (user_id, type, title, message, related_kind, related_id, priority)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING id, created_at`,
		n.UserID, n.Type, n.Title, n.Message, relatedKind, relatedID, n.Priority,
	).Scan(&n.ID, &n.CreatedAt)
	if err != nil {
		return nil, fmt.Errorf("failed to create notification: %w", err)
	}
	return n, nil
}

// ListForUser returns the user's notifications, newest first
func (s *Store) ListForUser(ctx context.Context, userID int64, filter ListFilter) ([]*Notification, error) {
	query := fmt.Sprintf("SELECT %s FROM notifications WHERE user_id = $1", notificationColumns)
	args := []interface{}{userID}

	if filter.IsRead != nil {
		args = append(args, *filter.IsRead)
		query += fmt.Sprintf(" AND is_read = $%d", len(args))
	}
	if filter.Type != nil {
		args = append(args, *filter.Type)
		query += fmt.Sprintf(" AND type = $%d", len(args))
	}

	query += " ORDER BY created_at DESC"
	if filter.Limit > 0 {
		args = append(args, filter.Limit)
		query += fmt.Sprintf(" LIMIT $%d", len(args))
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list notifications: %w", err)
	}
	defer rows.Close()

	notifications := make([]*Notification, 0)
	for rows.Next() {
		n, err := scanNotification(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan notification: %w", err)
		}
		notifications = append(notifications, n)
	}
	return notifications, rows.Err()
}

// CountUnread counts the user's unread notifications
func (s *Store) CountUnread(ctx context.Context, userID int64) (int, error) {
	var count int
	err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM notifications WHERE user_id = $1 AND is_read = FALSE`,
		userID,
	).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to count unread notifications: %w", err)
	}
	return count, nil
}

// MarkRead marks one notification read. Only the addressee may touch it.
func (s *Store) MarkRead(ctx context.Context, id, userID int64) (*Notification, error) {
	if err := s.checkOwner(ctx, id, userID); err != nil {
		return nil, err
	}

	row := s.db.QueryRowContext(ctx, fmt.Sprintf(`
		UPDATE notifications SET is_read = TRUE, read_at = NOW()
		WHERE id = $1
		RETURNING %s`, notificationColumns), id)
	n, err := scanNotification(row)
	if err != nil {
		return nil, fmt.Errorf("failed to mark notification read: %w", err)
	}
	return n, nil
}

// MarkAllRead marks every unread notification of the user read
func (s *Store) MarkAllRead(ctx context.Context, userID int64) error {
	_, err := s.db.ExecContext(ctx, `
		UPDATE notifications SET is_read = TRUE, read_at = NOW()
		WHERE user_id = $1 AND is_read = FALSE`, userID)
	if err != nil {
		return fmt.Errorf("failed to mark notifications read: %w", err)
	}
	return nil
}

// Delete removes one notification. Only the addressee may delete it.
func (s *Store) Delete(ctx context.Context, id, userID int64) error {
	if err := s.checkOwner(ctx, id, userID); err != nil {
		return err
	}

	if _, err := s.db.ExecContext(ctx, `DELETE FROM notifications WHERE id = $1`, id); err != nil {
		return fmt.Errorf("failed to delete notification: %w", err)
	}
	return nil
}

// PruneRead deletes read notifications older than the cutoff. Used by
// the retention job.
func (s *Store) PruneRead(ctx context.Context, olderThan time.Time) (int64, error) {
	result, err := s.db.ExecContext(ctx,
		`DELETE FROM notifications WHERE is_read = TRUE AND read_at < $1`, olderThan)
	if err != nil {
		return 0, fmt.Errorf("failed to prune notifications: %w", err)
	}
	return result.RowsAffected()
}

func (s *Store) checkOwner(ctx context.Context, id, userID int64) error {
	var owner int64
	err := s.db.QueryRowContext(ctx,
		`SELECT user_id FROM notifications WHERE id = $1`, id).Scan(&owner)
	if err == sql.ErrNoRows {
		return apperr.NotFound("notification not found")
	}
	if err != nil {
		return fmt.Errorf("failed to load notification: %w", err)
	}
	if owner != userID {
		return apperr.Forbidden("access denied")
	}
	return nil
}
