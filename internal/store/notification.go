package store

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/rentdesk/rentdesk/pkg/models"
)

const notificationColumns = `id, company_id, recipient, type, title, body, channels, email, phone, metadata,
	read_at, created_at`

func scanNotification(row pgx.Row) (*models.Notification, error) {
	var n models.Notification
	err := row.Scan(&n.ID, &n.CompanyID, &n.Recipient, &n.Type, &n.Title, &n.Body, &n.Channels,
		&n.Email, &n.Phone, &n.Metadata, &n.ReadAt, &n.CreatedAt)
	return &n, err
}

func (s *PostgresStore) CreateNotification(ctx context.Context, n *models.Notification) error {
	if n.Metadata == nil {
		n.Metadata = map[string]string{}
	}
	if len(n.Channels) == 0 {
		n.Channels = []string{models.ChannelInApp}
	}
	_, err := s.pool.Exec(ctx,
		`INSERT INTO notifications (`+notificationColumns+`)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)`,
		n.ID, n.CompanyID, n.Recipient, n.Type, n.Title, n.Body, n.Channels, n.Email, n.Phone,
		n.Metadata, n.ReadAt, n.CreatedAt)
	if err != nil {
		return classifyWriteError("create notification", err)
	}
	return nil
}

func (s *PostgresStore) GetNotification(ctx context.Context, id, companyID uuid.UUID) (*models.Notification, error) {
	n, err := scanNotification(s.pool.QueryRow(ctx,
		`SELECT `+notificationColumns+` FROM notifications WHERE id = $1 AND company_id = $2`, id, companyID))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get notification: %w", err)
	}
	return n, nil
}

// ListNotifications returns a page of the inbox, newest first.
func (s *PostgresStore) ListNotifications(ctx context.Context, filter NotificationFilter) ([]*models.Notification, int, error) {
	conditions := []string{"company_id = $1"}
	args := []any{filter.CompanyID}
	argIdx := 2

	if filter.Recipient != "" {
		conditions = append(conditions, fmt.Sprintf("recipient = $%d", argIdx))
		args = append(args, filter.Recipient)
		argIdx++
	}
	if filter.Type != "" {
		conditions = append(conditions, fmt.Sprintf("type = $%d", argIdx))
		args = append(args, filter.Type)
		argIdx++
	}
	if filter.UnreadOnly {
		conditions = append(conditions, "read_at IS NULL")
	}

	where := strings.Join(conditions, " AND ")
	total, err := s.queryCount(ctx, "notifications", where, args)
	if err != nil {
		return nil, 0, fmt.Errorf("count notifications: %w", err)
	}

	limit, offset := filter.normalize()
	query := fmt.Sprintf(`SELECT `+notificationColumns+` FROM notifications WHERE %s
		 ORDER BY created_at DESC, id LIMIT $%d OFFSET $%d`, where, argIdx, argIdx+1)
	args = append(args, limit, offset)

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("list notifications: %w", err)
	}
	defer rows.Close()

	var out []*models.Notification
	for rows.Next() {
		n, err := scanNotification(rows)
		if err != nil {
			return nil, 0, fmt.Errorf("scan notification: %w", err)
		}
		out = append(out, n)
	}
	return out, total, rows.Err()
}

func (s *PostgresStore) CountUnreadNotifications(ctx context.Context, companyID uuid.UUID, recipient string) (int, error) {
	where := "company_id = $1 AND read_at IS NULL"
	args := []any{companyID}
	if recipient != "" {
		where += " AND recipient = $2"
		args = append(args, recipient)
	}
	n, err := s.queryCount(ctx, "notifications", where, args)
	if err != nil {
		return 0, fmt.Errorf("count unread notifications: %w", err)
	}
	return n, nil
}

// MarkNotificationRead sets read_at once. Marking an already read notification
// keeps the original timestamp.
func (s *PostgresStore) MarkNotificationRead(ctx context.Context, id, companyID uuid.UUID, at time.Time) (*models.Notification, error) {
	n, err := scanNotification(s.pool.QueryRow(ctx,
		`UPDATE notifications SET read_at = COALESCE(read_at, $3)
		 WHERE id = $1 AND company_id = $2
		 RETURNING `+notificationColumns, id, companyID, at))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("mark notification read: %w", err)
	}
	return n, nil
}

func (s *PostgresStore) MarkAllNotificationsRead(ctx context.Context, companyID uuid.UUID, recipient string, at time.Time) (int, error) {
	query := `UPDATE notifications SET read_at = $2 WHERE company_id = $1 AND read_at IS NULL`
	args := []any{companyID, at}
	if recipient != "" {
		query += " AND recipient = $3"
		args = append(args, recipient)
	}
	tag, err := s.pool.Exec(ctx, query, args...)
	if err != nil {
		return 0, fmt.Errorf("mark all notifications read: %w", err)
	}
	return int(tag.RowsAffected()), nil
}

func (s *PostgresStore) DeleteNotification(ctx context.Context, id, companyID uuid.UUID) error {
	tag, err := s.pool.Exec(ctx,
		`DELETE FROM notifications WHERE id = $1 AND company_id = $2`, id, companyID)
	if err != nil {
		return fmt.Errorf("delete notification: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// PurgeReadNotifications removes read notifications of every company whose
// read_at is older than readBefore. Unread notifications are never purged.
func (s *PostgresStore) PurgeReadNotifications(ctx context.Context, readBefore time.Time) (int, error) {
	tag, err := s.pool.Exec(ctx,
		`DELETE FROM notifications WHERE read_at IS NOT NULL AND read_at < $1`, readBefore)
	if err != nil {
		return 0, fmt.Errorf("purge notifications: %w", err)
	}
	return int(tag.RowsAffected()), nil
}
