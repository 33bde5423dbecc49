package bracket

import (
	"time"

	"github.com/google/uuid"
)

type NotificationType string

const (
	NotifyTournamentFinalized NotificationType = "tournament_finalized"
	NotifyTournamentCancelled NotificationType = "tournament_cancelled"
)

type NotificationPriority string

const (
	PriorityNormal NotificationPriority = "normal"
	PriorityHigh   NotificationPriority = "high"
)

type Notification struct {
	ID        uuid.UUID            `db:"id" json:"id"`
	UserID    uuid.UUID            `db:"user_id" json:"user_id"`
	Type      NotificationType     `db:"type" json:"type"`
	Title     string               `db:"title" json:"title"`
	Message   string               `db:"message" json:"message"`
	Priority  NotificationPriority `db:"priority" json:"priority"`
	Metadata  string               `db:"metadata" json:"metadata"`
	IsRead    bool                 `db:"is_read" json:"is_read"`
	CreatedAt time.Time            `db:"created_at" json:"created_at"`
}
