package bracket

import (
	"time"

	"github.com/google/uuid"
)

type PaymentStatus string

const (
	PaymentUnpaid PaymentStatus = "unpaid"
	PaymentPaid   PaymentStatus = "paid"
)

type RegistrationStatus string

const (
	RegistrationPending    RegistrationStatus = "pending"
	RegistrationConfirmed  RegistrationStatus = "confirmed"
	RegistrationWaitlisted RegistrationStatus = "waitlisted"
	RegistrationCancelled  RegistrationStatus = "cancelled"
)

type Registration struct {
	ID            uuid.UUID          `db:"id" json:"id"`
	TournamentID  uuid.UUID          `db:"tournament_id" json:"tournament_id"`
	PlayerID      uuid.UUID          `db:"player_id" json:"player_id"`
	PaymentStatus PaymentStatus      `db:"payment_status" json:"payment_status"`
	Status        RegistrationStatus `db:"status" json:"status"`
	RegisteredAt  time.Time          `db:"registered_at" json:"registered_at"`
	PriorityOrder *int               `db:"priority_order" json:"priority_order,omitempty"`
}

// RosterEntry is a confirmed registration joined with the player's rating,
// the input of seeding.
type RosterEntry struct {
	PlayerID     uuid.UUID `db:"player_id"`
	Username     string    `db:"username"`
	Rating       int       `db:"rating"`
	RegisteredAt time.Time `db:"registered_at"`
}
