package bracket

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

type MatchStatus string

const (
	MatchScheduled  MatchStatus = "scheduled"
	MatchInProgress MatchStatus = "in_progress"
	MatchCompleted  MatchStatus = "completed"
	MatchCancelled  MatchStatus = "cancelled"
)

// Completed and cancelled are terminal for result reporting; the reset
// operation is the only way back to scheduled.
var matchTransitions = map[MatchStatus][]MatchStatus{
	MatchScheduled:  {MatchInProgress, MatchCompleted, MatchCancelled},
	MatchInProgress: {MatchCompleted, MatchCancelled},
	MatchCompleted:  {MatchScheduled},
	MatchCancelled:  {MatchScheduled},
}

func (s MatchStatus) Terminal() bool {
	return s == MatchCompleted || s == MatchCancelled
}

func (s MatchStatus) CanTransitionTo(next MatchStatus) bool {
	for _, allowed := range matchTransitions[s] {
		if allowed == next {
			return true
		}
	}
	return false
}

func (s MatchStatus) TransitionTo(next MatchStatus) (MatchStatus, error) {
	if !s.CanTransitionTo(next) {
		return s, fmt.Errorf("%w: match cannot move from %s to %s", ErrInvalidState, s, next)
	}
	return next, nil
}

// OpenMatchStatuses are the statuses a result may be reported against.
var OpenMatchStatuses = []MatchStatus{MatchScheduled, MatchInProgress}

type Match struct {
	ID           uuid.UUID `db:"id" json:"id"`
	TournamentID uuid.UUID `db:"tournament_id" json:"tournament_id"`

	RoundNumber int `db:"round_number" json:"round_number"`
	MatchNumber int `db:"match_number" json:"match_number"`

	Player1ID *uuid.UUID `db:"player_1_id" json:"player_1_id"`
	Player2ID *uuid.UUID `db:"player_2_id" json:"player_2_id"`

	Score1   int         `db:"score_1" json:"score_1"`
	Score2   int         `db:"score_2" json:"score_2"`
	WinnerID *uuid.UUID  `db:"winner_id" json:"winner_id"`
	Status   MatchStatus `db:"status" json:"status"`
	IsBye    bool        `db:"is_bye" json:"is_bye"`

	// Where the winner goes. Nil on the final.
	NextMatchID *uuid.UUID `db:"next_match_id" json:"next_match_id,omitempty"`
	NextSlot    *int       `db:"next_slot" json:"next_slot,omitempty"`

	CompletedAt *time.Time `db:"completed_at" json:"completed_at,omitempty"`
	CreatedAt   time.Time  `db:"created_at" json:"created_at"`
	UpdatedAt   time.Time  `db:"updated_at" json:"updated_at"`
}

// FeedTarget maps round r match m to the match number and slot it feeds in
// round r+1: match ceil(m/2), slot 1 when m is odd and slot 2 when even.
func FeedTarget(matchNumber int) (nextMatchNumber int, slot int) {
	nextMatchNumber = (matchNumber + 1) / 2
	if matchNumber%2 != 0 {
		return nextMatchNumber, 1
	}
	return nextMatchNumber, 2
}

// Ready reports whether both slots hold a player.
func (m *Match) Ready() bool {
	return m.Player1ID != nil && m.Player2ID != nil
}

// SlotOf returns the slot the player occupies, or 0.
func (m *Match) SlotOf(playerID uuid.UUID) int {
	switch {
	case m.Player1ID != nil && *m.Player1ID == playerID:
		return 1
	case m.Player2ID != nil && *m.Player2ID == playerID:
		return 2
	}
	return 0
}

func (m *Match) PlayerInSlot(slot int) *uuid.UUID {
	switch slot {
	case 1:
		return m.Player1ID
	case 2:
		return m.Player2ID
	}
	return nil
}

// IsFinal reports whether no match is fed by this one.
func (m *Match) IsFinal() bool {
	return m.NextMatchID == nil
}

// RoundComplete reports whether every match of the given round is terminal.
// A round with no matches is not complete.
func RoundComplete(matches []Match, round int) bool {
	found := false
	for _, m := range matches {
		if m.RoundNumber != round {
			continue
		}
		found = true
		if !m.Status.Terminal() {
			return false
		}
	}
	return found
}
