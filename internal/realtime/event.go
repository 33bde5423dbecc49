package realtime

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
)

type EventType string

const (
	EventTournamentFinalized EventType = "tournament_finalized"
	EventTournamentCancelled EventType = "tournament_cancelled"
	EventBracketGenerated    EventType = "bracket_generated"
	EventMatchStarted        EventType = "match_started"
	EventMatchCompleted      EventType = "match_completed"
	EventTournamentCompleted EventType = "tournament_completed"
	EventTournamentReset     EventType = "tournament_reset"
)

// Event tells subscribers that rows of Table changed for a tournament. It
// carries no row data; clients refetch what they display.
type Event struct {
	Type         EventType  `json:"type"`
	Table        string     `json:"table"`
	TournamentID uuid.UUID  `json:"tournament_id"`
	MatchID      *uuid.UUID `json:"match_id,omitempty"`
	At           time.Time  `json:"at"`
}

// Publisher delivers change events after the change has been committed.
type Publisher interface {
	Publish(ctx context.Context, event Event) error
}

// Fanout publishes every event to each of its publishers and joins the
// errors.
type Fanout []Publisher

func (f Fanout) Publish(ctx context.Context, event Event) error {
	var errs []error
	for _, p := range f {
		if err := p.Publish(ctx, event); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

type discard struct{}

func (discard) Publish(context.Context, Event) error { return nil }

// Discard drops every event.
var Discard Publisher = discard{}
