package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/AdamBeresnev/cueclub/internal/bracket"
	"github.com/AdamBeresnev/cueclub/internal/metrics"
	"github.com/AdamBeresnev/cueclub/internal/realtime"
	"github.com/AdamBeresnev/cueclub/internal/store"
	"github.com/jmoiron/sqlx"
)

// Stores groups the stores the services share.
type Stores struct {
	Tournaments   *store.TournamentStore
	Registrations *store.RegistrationStore
	Notifications *store.NotificationStore
	Players       *store.PlayerStore
}

func NewStores(db *sqlx.DB) Stores {
	return Stores{
		Tournaments:   store.NewTournamentStore(db),
		Registrations: store.NewRegistrationStore(db),
		Notifications: store.NewNotificationStore(db),
		Players:       store.NewPlayerStore(db),
	}
}

// Options are the collaborators every service may use. Zero values fall back
// to no-op implementations.
type Options struct {
	Publisher realtime.Publisher
	Metrics   *metrics.Metrics
	Logger    *slog.Logger
	Clock     func() time.Time
}

type base struct {
	db        *sqlx.DB
	stores    Stores
	publisher realtime.Publisher
	metrics   *metrics.Metrics
	logger    *slog.Logger
	clock     func() time.Time
}

func newBase(db *sqlx.DB, stores Stores, opts Options) base {
	b := base{
		db:        db,
		stores:    stores,
		publisher: opts.Publisher,
		metrics:   opts.Metrics,
		logger:    opts.Logger,
		clock:     opts.Clock,
	}
	if b.publisher == nil {
		b.publisher = realtime.Discard
	}
	if b.logger == nil {
		b.logger = slog.Default()
	}
	if b.clock == nil {
		b.clock = time.Now
	}
	return b
}

func (b *base) now() time.Time {
	return b.clock().UTC()
}

// publish runs after commit. A failed publish is logged and does not fail
// the operation that already happened.
func (b *base) publish(ctx context.Context, event realtime.Event) {
	event.At = b.now()
	if err := b.publisher.Publish(ctx, event); err != nil {
		b.logger.Warn("failed to publish change event",
			"type", event.Type, "tournament_id", event.TournamentID, "error", err)
	}
}

func (b *base) begin(ctx context.Context, step string) (*sqlx.Tx, error) {
	tx, err := b.db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, bracket.Dependency("begin "+step, err)
	}
	return tx, nil
}

// lookup turns a missing row into ErrNotFound and anything else into a
// dependency failure.
func lookup(step, what string, err error) error {
	if errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("%w: %s", bracket.ErrNotFound, what)
	}
	return bracket.Dependency(step, err)
}
