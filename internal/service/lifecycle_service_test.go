package service

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/AdamBeresnev/cueclub/internal/bracket"
	"github.com/AdamBeresnev/cueclub/internal/realtime"
	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newLifecycle(database *sqlx.DB, pub realtime.Publisher, cfg LifecycleConfig) *LifecycleService {
	stores := NewStores(database)
	opts := testOptions(pub)
	if cfg.Policy.TargetSize == 0 {
		cfg.Policy = bracket.DefaultPolicy()
	}
	if cfg.Workers == 0 {
		cfg.Workers = 4
	}
	return NewLifecycleService(database, stores, NewBracketService(database, stores, opts), cfg, opts)
}

func logFor(t *testing.T, logs []ActionLog, id uuid.UUID) ActionLog {
	t.Helper()
	for _, l := range logs {
		if l.TournamentID == id {
			return l
		}
	}
	t.Fatalf("no action log for tournament %s", id)
	return ActionLog{}
}

func TestRunPassFinalizesEarliestPaid(t *testing.T) {
	db := setupTestDB(t)
	pub := &recordingPublisher{}
	svc := newLifecycle(db, pub, LifecycleConfig{})
	ctx := context.Background()

	fx := createFixture(t, db, fixtureOptions{
		status: bracket.TournamentRegistrationOpen,
		regEnd: testNow.Add(-time.Hour),
		paid:   20,
		unpaid: 2,
	})

	logs, err := svc.RunPass(ctx)
	require.NoError(t, err)
	require.Len(t, logs, 1)

	entry := logs[0]
	assert.Equal(t, bracket.ActionFinalize, entry.Action)
	assert.Equal(t, 20, entry.PaidCount)
	assert.Equal(t, 16, entry.TargetSize)
	assert.EqualValues(t, 16, entry.Confirmed)
	assert.EqualValues(t, 6, entry.Pruned)
	assert.Equal(t, 16, entry.Notified)
	assert.Empty(t, entry.Error)

	stores := NewStores(db)
	tournament, err := stores.Tournaments.GetTournament(ctx, fx.Tournament.ID)
	require.NoError(t, err)
	assert.Equal(t, bracket.TournamentRegistrationClosed, tournament.Status)
	assert.Equal(t, 16, tournament.CurrentParticipants)

	remaining, err := stores.Registrations.GetRegistrations(ctx, fx.Tournament.ID)
	require.NoError(t, err)
	require.Len(t, remaining, 16)
	for i, r := range remaining {
		assert.Equal(t, fx.Registrations[i].ID, r.ID, "registration %d should be kept", i+1)
		assert.Equal(t, bracket.RegistrationConfirmed, r.Status)
		require.NotNil(t, r.PriorityOrder)
		assert.Equal(t, i+1, *r.PriorityOrder)
	}

	for i, p := range fx.Players {
		notifications, err := stores.Notifications.GetNotificationsForUser(ctx, p.ID)
		require.NoError(t, err)
		if i < 16 {
			require.Len(t, notifications, 1)
			assert.Equal(t, bracket.NotifyTournamentFinalized, notifications[0].Type)
			assert.Contains(t, notifications[0].Metadata, fx.Tournament.ID.String())
		} else {
			assert.Empty(t, notifications)
		}
	}

	assert.Equal(t, []realtime.EventType{realtime.EventTournamentFinalized}, pub.types())
}

func TestRunPassEarlyLock(t *testing.T) {
	db := setupTestDB(t)
	svc := newLifecycle(db, nil, LifecycleConfig{})
	ctx := context.Background()

	fx := createFixture(t, db, fixtureOptions{
		status: bracket.TournamentUpcoming,
		regEnd: testNow.Add(10 * time.Hour),
		paid:   16,
	})

	logs, err := svc.RunPass(ctx)
	require.NoError(t, err)

	entry := logFor(t, logs, fx.Tournament.ID)
	assert.Equal(t, bracket.ActionFinalize, entry.Action)
	assert.InDelta(t, 10.0, entry.HoursLeft, 0.001)
	assert.EqualValues(t, 0, entry.Pruned)

	tournament, err := NewStores(db).Tournaments.GetTournament(ctx, fx.Tournament.ID)
	require.NoError(t, err)
	assert.Equal(t, bracket.TournamentRegistrationClosed, tournament.Status)
}

func TestRunPassCancelsShortRoster(t *testing.T) {
	db := setupTestDB(t)
	pub := &recordingPublisher{}
	svc := newLifecycle(db, pub, LifecycleConfig{})
	ctx := context.Background()

	fx := createFixture(t, db, fixtureOptions{
		status: bracket.TournamentRegistrationOpen,
		regEnd: testNow.Add(-time.Minute),
		paid:   15,
		unpaid: 3,
	})

	logs, err := svc.RunPass(ctx)
	require.NoError(t, err)

	entry := logFor(t, logs, fx.Tournament.ID)
	assert.Equal(t, bracket.ActionCancel, entry.Action)
	assert.Equal(t, 15, entry.Notified)
	assert.Zero(t, entry.Confirmed)
	assert.Zero(t, entry.Pruned)

	stores := NewStores(db)
	tournament, err := stores.Tournaments.GetTournament(ctx, fx.Tournament.ID)
	require.NoError(t, err)
	assert.Equal(t, bracket.TournamentCancelled, tournament.Status)
	assert.Equal(t, 0, tournament.CurrentParticipants)

	// Nothing is pruned or confirmed.
	remaining, err := stores.Registrations.GetRegistrations(ctx, fx.Tournament.ID)
	require.NoError(t, err)
	require.Len(t, remaining, 18)
	for _, r := range remaining {
		assert.Equal(t, bracket.RegistrationPending, r.Status)
	}

	paidPlayer, err := stores.Notifications.GetNotificationsForUser(ctx, fx.Players[0].ID)
	require.NoError(t, err)
	require.Len(t, paidPlayer, 1)
	assert.Equal(t, bracket.NotifyTournamentCancelled, paidPlayer[0].Type)
	assert.Equal(t, bracket.PriorityHigh, paidPlayer[0].Priority)

	unpaidPlayer, err := stores.Notifications.GetNotificationsForUser(ctx, fx.Players[17].ID)
	require.NoError(t, err)
	assert.Empty(t, unpaidPlayer)

	assert.Equal(t, []realtime.EventType{realtime.EventTournamentCancelled}, pub.types())
}

func TestRunPassWaits(t *testing.T) {
	tests := []struct {
		name   string
		regEnd time.Duration
		paid   int
	}{
		{"full but window far away", 48 * time.Hour, 16},
		{"short and window open", 10 * time.Hour, 5},
		{"full at exactly the deadline", 0, 16},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			db := setupTestDB(t)
			pub := &recordingPublisher{}
			svc := newLifecycle(db, pub, LifecycleConfig{})
			ctx := context.Background()

			fx := createFixture(t, db, fixtureOptions{
				status: bracket.TournamentRegistrationOpen,
				regEnd: testNow.Add(tt.regEnd),
				paid:   tt.paid,
			})

			logs, err := svc.RunPass(ctx)
			require.NoError(t, err)
			assert.Equal(t, bracket.ActionWait, logFor(t, logs, fx.Tournament.ID).Action)

			tournament, err := NewStores(db).Tournaments.GetTournament(ctx, fx.Tournament.ID)
			require.NoError(t, err)
			assert.Equal(t, bracket.TournamentRegistrationOpen, tournament.Status)
			assert.Empty(t, pub.types())
		})
	}
}

func TestRunPassIsIdempotent(t *testing.T) {
	db := setupTestDB(t)
	svc := newLifecycle(db, nil, LifecycleConfig{})
	ctx := context.Background()
	stores := NewStores(db)

	finalize := createFixture(t, db, fixtureOptions{status: bracket.TournamentRegistrationOpen, regEnd: testNow.Add(-time.Hour), paid: 18})
	cancel := createFixture(t, db, fixtureOptions{status: bracket.TournamentUpcoming, regEnd: testNow.Add(-time.Hour), paid: 4})
	wait := createFixture(t, db, fixtureOptions{status: bracket.TournamentRegistrationOpen, regEnd: testNow.Add(72 * time.Hour), paid: 3})

	type snapshot struct {
		status        bracket.TournamentStatus
		registrations []bracket.Registration
		notifications int
	}
	capture := func(fx *tournamentFixture) snapshot {
		tournament, err := stores.Tournaments.GetTournament(ctx, fx.Tournament.ID)
		require.NoError(t, err)
		registrations, err := stores.Registrations.GetRegistrations(ctx, fx.Tournament.ID)
		require.NoError(t, err)
		notified := 0
		for _, p := range fx.Players {
			n, err := stores.Notifications.GetNotificationsForUser(ctx, p.ID)
			require.NoError(t, err)
			notified += len(n)
		}
		return snapshot{tournament.Status, registrations, notified}
	}

	first, err := svc.RunPass(ctx)
	require.NoError(t, err)
	require.Len(t, first, 3)
	afterFirst := []snapshot{capture(finalize), capture(cancel), capture(wait)}

	second, err := svc.RunPass(ctx)
	require.NoError(t, err)
	afterSecond := []snapshot{capture(finalize), capture(cancel), capture(wait)}

	assert.Equal(t, afterFirst, afterSecond)
	require.Len(t, second, 1, "only the waiting tournament is still eligible")
	assert.Equal(t, wait.Tournament.ID, second[0].TournamentID)
	assert.Equal(t, bracket.ActionWait, second[0].Action)
}

func TestRunPassConcurrentInvocations(t *testing.T) {
	db := setupTestDB(t)
	svc := newLifecycle(db, nil, LifecycleConfig{})
	ctx := context.Background()

	fx := createFixture(t, db, fixtureOptions{status: bracket.TournamentRegistrationOpen, regEnd: testNow.Add(-time.Hour), paid: 17})

	var wg sync.WaitGroup
	for i := 0; i < 4; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := svc.RunPass(ctx)
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	stores := NewStores(db)
	tournament, err := stores.Tournaments.GetTournament(ctx, fx.Tournament.ID)
	require.NoError(t, err)
	assert.Equal(t, bracket.TournamentRegistrationClosed, tournament.Status)

	remaining, err := stores.Registrations.GetRegistrations(ctx, fx.Tournament.ID)
	require.NoError(t, err)
	assert.Len(t, remaining, 16)

	notifications, err := stores.Notifications.GetNotificationsForUser(ctx, fx.Players[0].ID)
	require.NoError(t, err)
	assert.Len(t, notifications, 1, "the roster is finalized exactly once")
}

func TestRunPassIsolatesFailures(t *testing.T) {
	db := setupTestDB(t)
	svc := newLifecycle(db, nil, LifecycleConfig{})
	ctx := context.Background()

	broken := createFixture(t, db, fixtureOptions{status: bracket.TournamentRegistrationOpen, regEnd: testNow.Add(-time.Hour), paid: 18})
	waiting := createFixture(t, db, fixtureOptions{status: bracket.TournamentRegistrationOpen, regEnd: testNow.Add(72 * time.Hour), paid: 2})

	// The notification sink is unavailable, so finalize fails at its last step.
	_, err := db.Exec("DROP TABLE notifications")
	require.NoError(t, err)

	logs, err := svc.RunPass(ctx)
	require.NoError(t, err)
	require.Len(t, logs, 2)

	failed := logFor(t, logs, broken.Tournament.ID)
	assert.Equal(t, ActionFailed, failed.Action)
	assert.Contains(t, failed.Error, "notify confirmed players")
	assert.Equal(t, bracket.ActionWait, logFor(t, logs, waiting.Tournament.ID).Action)

	// Nothing of the failed finalize is visible.
	stores := NewStores(db)
	tournament, err := stores.Tournaments.GetTournament(ctx, broken.Tournament.ID)
	require.NoError(t, err)
	assert.Equal(t, bracket.TournamentRegistrationOpen, tournament.Status)
	assert.Equal(t, 0, tournament.CurrentParticipants)

	registrations, err := stores.Registrations.GetRegistrations(ctx, broken.Tournament.ID)
	require.NoError(t, err)
	require.Len(t, registrations, 18)
	for _, r := range registrations {
		assert.Equal(t, bracket.RegistrationPending, r.Status)
	}
}

func TestFinalizeReportsRetryableDependencyFailure(t *testing.T) {
	db := setupTestDB(t)
	svc := newLifecycle(db, nil, LifecycleConfig{})
	ctx := context.Background()

	fx := createFixture(t, db, fixtureOptions{status: bracket.TournamentRegistrationOpen, regEnd: testNow.Add(-time.Hour), paid: 16})
	_, err := db.Exec("DROP TABLE notifications")
	require.NoError(t, err)

	var entry ActionLog
	err = svc.finalize(ctx, fx.Tournament, 16, testNow, &entry)
	require.Error(t, err)
	assert.True(t, bracket.Retryable(err))
	assert.ErrorIs(t, err, bracket.ErrDependencyFailure)
	assert.Zero(t, entry.Confirmed, "a failed finalize reports nothing as done")

	// A finalize against a tournament that already left registration is rejected.
	_, err = db.Exec("UPDATE tournaments SET status = ? WHERE id = ?", bracket.TournamentCancelled, fx.Tournament.ID)
	require.NoError(t, err)
	_, err = db.Exec(`CREATE TABLE notifications (id TEXT PRIMARY KEY, user_id TEXT NOT NULL, type TEXT NOT NULL,
		title TEXT NOT NULL, message TEXT NOT NULL, priority TEXT NOT NULL, metadata TEXT NOT NULL,
		is_read BOOLEAN NOT NULL DEFAULT FALSE, created_at TIMESTAMP NOT NULL)`)
	require.NoError(t, err)

	err = svc.finalize(ctx, fx.Tournament, 16, testNow, &entry)
	assert.ErrorIs(t, err, bracket.ErrInvalidState)
	assert.False(t, bracket.Retryable(err))
}

func TestRunPassCapsTargetAtCapacity(t *testing.T) {
	db := setupTestDB(t)
	svc := newLifecycle(db, nil, LifecycleConfig{})
	ctx := context.Background()

	fx := createFixture(t, db, fixtureOptions{
		status:     bracket.TournamentRegistrationOpen,
		regEnd:     testNow.Add(-time.Hour),
		maxPlayers: 8,
		paid:       10,
	})

	logs, err := svc.RunPass(ctx)
	require.NoError(t, err)

	entry := logFor(t, logs, fx.Tournament.ID)
	assert.Equal(t, bracket.ActionFinalize, entry.Action)
	assert.Equal(t, 8, entry.TargetSize)

	tournament, err := NewStores(db).Tournaments.GetTournament(ctx, fx.Tournament.ID)
	require.NoError(t, err)
	assert.Equal(t, 8, tournament.CurrentParticipants)
	assert.LessOrEqual(t, tournament.CurrentParticipants, tournament.MaxParticipants)
}

func TestRunPassAutoGeneratesBracket(t *testing.T) {
	db := setupTestDB(t)
	pub := &recordingPublisher{}
	svc := newLifecycle(db, pub, LifecycleConfig{AutoGenerateBracket: true, SeedingMethod: bracket.SeedByRating})
	ctx := context.Background()

	fx := createFixture(t, db, fixtureOptions{status: bracket.TournamentRegistrationOpen, regEnd: testNow.Add(-time.Hour), paid: 16})

	logs, err := svc.RunPass(ctx)
	require.NoError(t, err)
	assert.True(t, logFor(t, logs, fx.Tournament.ID).BracketGenerated)

	stores := NewStores(db)
	tournament, err := stores.Tournaments.GetTournament(ctx, fx.Tournament.ID)
	require.NoError(t, err)
	assert.Equal(t, bracket.TournamentOngoing, tournament.Status)

	matches, err := stores.Tournaments.GetMatches(ctx, fx.Tournament.ID)
	require.NoError(t, err)
	assert.Len(t, matches, 15)

	assert.Equal(t, []realtime.EventType{realtime.EventTournamentFinalized, realtime.EventBracketGenerated}, pub.types())
}
