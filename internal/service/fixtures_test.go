package service

import (
	"context"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/AdamBeresnev/cueclub/internal/bracket"
	"github.com/AdamBeresnev/cueclub/internal/db"
	"github.com/AdamBeresnev/cueclub/internal/player"
	"github.com/AdamBeresnev/cueclub/internal/realtime"
	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/require"
)

var testNow = time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)

// setupTestDB creates an in-memory SQLite database and applies migrations
func setupTestDB(t *testing.T) *sqlx.DB {
	t.Helper()

	database, err := db.InitDB(db.DriverSQLite, "file::memory:")
	require.NoError(t, err, "Failed to connect to in-memory DB")

	err = db.RunMigrations(database.DB, db.DriverSQLite, "file://../../migrations")
	require.NoError(t, err, "Failed to apply migrations")

	t.Cleanup(func() { database.Close() })
	return database
}

type recordingPublisher struct {
	mu     sync.Mutex
	events []realtime.Event
}

func (p *recordingPublisher) Publish(_ context.Context, e realtime.Event) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, e)
	return nil
}

func (p *recordingPublisher) types() []realtime.EventType {
	p.mu.Lock()
	defer p.mu.Unlock()
	var types []realtime.EventType
	for _, e := range p.events {
		types = append(types, e.Type)
	}
	return types
}

func testOptions(pub realtime.Publisher) Options {
	return Options{
		Publisher: pub,
		Logger:    slog.New(slog.NewTextHandler(io.Discard, nil)),
		Clock:     func() time.Time { return testNow },
	}
}

func inTx(t *testing.T, database *sqlx.DB, fn func(tx *sqlx.Tx) error) {
	t.Helper()
	tx, err := database.BeginTxx(context.Background(), nil)
	require.NoError(t, err)
	defer tx.Rollback()
	require.NoError(t, fn(tx))
	require.NoError(t, tx.Commit())
}

type tournamentFixture struct {
	Tournament    *bracket.Tournament
	Players       []player.Player
	Registrations []bracket.Registration
}

type fixtureOptions struct {
	status     bracket.TournamentStatus
	regEnd     time.Time
	maxPlayers int
	paid       int
	unpaid     int
	confirmed  bool
}

// createFixture inserts a tournament with paid registrations timestamped one
// minute apart, followed by the unpaid ones. Player i is rated 700 - 10*i.
func createFixture(t *testing.T, database *sqlx.DB, o fixtureOptions) *tournamentFixture {
	t.Helper()
	stores := NewStores(database)
	ctx := context.Background()

	if o.maxPlayers == 0 {
		o.maxPlayers = 32
	}
	tournament := &bracket.Tournament{
		ID:              uuid.New(),
		Name:            "Sunday 8-ball open",
		MaxParticipants: o.maxPlayers,
		EntryFee:        15,
		RegistrationEnd: o.regEnd,
		Status:          o.status,
		CreatedAt:       testNow.Add(-7 * 24 * time.Hour),
		UpdatedAt:       testNow.Add(-7 * 24 * time.Hour),
	}

	total := o.paid + o.unpaid
	players := make([]player.Player, total)
	registrations := make([]bracket.Registration, total)
	for i := 0; i < total; i++ {
		players[i] = player.Player{
			ID:        uuid.New(),
			Username:  "player",
			Rating:    700 - 10*i,
			CreatedAt: tournament.CreatedAt,
		}
		payment := bracket.PaymentPaid
		if i >= o.paid {
			payment = bracket.PaymentUnpaid
		}
		status := bracket.RegistrationPending
		if o.confirmed {
			status = bracket.RegistrationConfirmed
		}
		registrations[i] = bracket.Registration{
			ID:            uuid.New(),
			TournamentID:  tournament.ID,
			PlayerID:      players[i].ID,
			PaymentStatus: payment,
			Status:        status,
			RegisteredAt:  tournament.CreatedAt.Add(time.Duration(i+1) * time.Minute),
		}
	}

	inTx(t, database, func(tx *sqlx.Tx) error {
		if err := stores.Tournaments.CreateTournament(ctx, tx, tournament); err != nil {
			return err
		}
		if err := stores.Players.CreatePlayers(ctx, tx, players); err != nil {
			return err
		}
		return stores.Registrations.CreateRegistrations(ctx, tx, registrations)
	})

	return &tournamentFixture{Tournament: tournament, Players: players, Registrations: registrations}
}

// rosterFixture is a tournament whose roster of n players is already
// confirmed and closed.
func rosterFixture(t *testing.T, database *sqlx.DB, n int) *tournamentFixture {
	t.Helper()
	return createFixture(t, database, fixtureOptions{
		status:    bracket.TournamentRegistrationClosed,
		regEnd:    testNow.Add(-time.Hour),
		paid:      n,
		confirmed: true,
	})
}

func matchAt(t *testing.T, matches []bracket.Match, round, number int) bracket.Match {
	t.Helper()
	for _, m := range matches {
		if m.RoundNumber == round && m.MatchNumber == number {
			return m
		}
	}
	t.Fatalf("no match %d/%d", round, number)
	return bracket.Match{}
}
