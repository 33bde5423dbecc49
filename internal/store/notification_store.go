package store

import (
	"context"

	"github.com/AdamBeresnev/cueclub/internal/bracket"
	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
)

type NotificationStore struct {
	db *sqlx.DB
}

func NewNotificationStore(db *sqlx.DB) *NotificationStore {
	return &NotificationStore{db: db}
}

func (s *NotificationStore) CreateNotifications(ctx context.Context, tx *sqlx.Tx, notifications []bracket.Notification) error {
	if len(notifications) == 0 {
		return nil
	}
	rows := make([]bracket.Notification, len(notifications))
	for i, n := range notifications {
		n.CreatedAt = n.CreatedAt.UTC()
		rows[i] = n
	}
	_, err := tx.NamedExecContext(ctx, `INSERT INTO notifications (id, user_id, type, title, message, priority, metadata, is_read, created_at)
		VALUES (:id, :user_id, :type, :title, :message, :priority, :metadata, :is_read, :created_at)`, rows)
	return err
}

func (s *NotificationStore) GetNotificationsForUser(ctx context.Context, userID uuid.UUID) ([]bracket.Notification, error) {
	notifications := []bracket.Notification{}
	err := selectAll(ctx, s.db, &notifications,
		"SELECT * FROM notifications WHERE user_id = ? ORDER BY created_at DESC, id ASC", userID)
	return notifications, err
}

func (s *NotificationStore) MarkRead(ctx context.Context, tx *sqlx.Tx, userID, id uuid.UUID) (bool, error) {
	n, err := exec(ctx, tx, "UPDATE notifications SET is_read = ? WHERE id = ? AND user_id = ?", true, id, userID)
	return n == 1, err
}
