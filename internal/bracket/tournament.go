package bracket

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

type TournamentStatus string

const (
	TournamentUpcoming           TournamentStatus = "upcoming"
	TournamentRegistrationOpen   TournamentStatus = "registration_open"
	TournamentRegistrationClosed TournamentStatus = "registration_closed"
	TournamentOngoing            TournamentStatus = "ongoing"
	TournamentCompleted          TournamentStatus = "completed"
	TournamentCancelled          TournamentStatus = "cancelled"
)

// Only the moves listed here are legal. Completed -> ongoing is the explicit
// reset used to replay a bracket.
var tournamentTransitions = map[TournamentStatus][]TournamentStatus{
	TournamentUpcoming:           {TournamentRegistrationOpen, TournamentRegistrationClosed, TournamentCancelled},
	TournamentRegistrationOpen:   {TournamentRegistrationClosed, TournamentCancelled},
	TournamentRegistrationClosed: {TournamentOngoing, TournamentCancelled},
	TournamentOngoing:            {TournamentCompleted, TournamentCancelled},
	TournamentCompleted:          {TournamentOngoing},
	TournamentCancelled:          {},
}

// AwaitingRoster reports whether the lifecycle automation still has to decide
// the tournament's fate.
func (s TournamentStatus) AwaitingRoster() bool {
	return s == TournamentUpcoming || s == TournamentRegistrationOpen
}

func (s TournamentStatus) CanTransitionTo(next TournamentStatus) bool {
	for _, allowed := range tournamentTransitions[s] {
		if allowed == next {
			return true
		}
	}
	return false
}

// TransitionTo returns ErrInvalidState for any move outside the transition table.
func (s TournamentStatus) TransitionTo(next TournamentStatus) (TournamentStatus, error) {
	if !s.CanTransitionTo(next) {
		return s, fmt.Errorf("%w: tournament cannot move from %s to %s", ErrInvalidState, s, next)
	}
	return next, nil
}

// SourcesOf lists every status that may legally move to target.
func SourcesOf(target TournamentStatus) []TournamentStatus {
	var sources []TournamentStatus
	for _, from := range []TournamentStatus{
		TournamentUpcoming,
		TournamentRegistrationOpen,
		TournamentRegistrationClosed,
		TournamentOngoing,
		TournamentCompleted,
		TournamentCancelled,
	} {
		if from.CanTransitionTo(target) {
			sources = append(sources, from)
		}
	}
	return sources
}

type Tournament struct {
	ID                  uuid.UUID        `db:"id" json:"id"`
	Name                string           `db:"name" json:"name"`
	MaxParticipants     int              `db:"max_participants" json:"max_participants"`
	CurrentParticipants int              `db:"current_participants" json:"current_participants"`
	EntryFee            float64          `db:"entry_fee" json:"entry_fee"`
	RegistrationStart   *time.Time       `db:"registration_start" json:"registration_start,omitempty"`
	RegistrationEnd     time.Time        `db:"registration_end" json:"registration_end"`
	StartDate           *time.Time       `db:"start_date" json:"start_date,omitempty"`
	EndDate             *time.Time       `db:"end_date" json:"end_date,omitempty"`
	Status              TournamentStatus `db:"status" json:"status"`
	CreatedAt           time.Time        `db:"created_at" json:"created_at"`
	UpdatedAt           time.Time        `db:"updated_at" json:"updated_at"`
}

// RosterTarget is the number of players a finalized roster holds. The
// configured target is capped by the tournament's capacity so that
// current_participants never exceeds max_participants.
func (t *Tournament) RosterTarget(configured int) int {
	if t.MaxParticipants > 0 && t.MaxParticipants < configured {
		return t.MaxParticipants
	}
	return configured
}
