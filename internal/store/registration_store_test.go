package store

import (
	"context"
	"testing"
	"time"

	"github.com/AdamBeresnev/cueclub/internal/bracket"
	"github.com/AdamBeresnev/cueclub/internal/player"
	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func register(t *testing.T, db *sqlx.DB, tournamentID uuid.UUID, players []player.Player, paid func(i int) bool) []bracket.Registration {
	t.Helper()
	registrations := make([]bracket.Registration, len(players))
	for i, p := range players {
		payment := bracket.PaymentUnpaid
		if paid(i) {
			payment = bracket.PaymentPaid
		}
		registrations[i] = bracket.Registration{
			ID:            uuid.New(),
			TournamentID:  tournamentID,
			PlayerID:      p.ID,
			PaymentStatus: payment,
			Status:        bracket.RegistrationPending,
			RegisteredAt:  baseTime.Add(time.Duration(i) * time.Minute),
		}
	}
	withTx(t, db, func(tx *sqlx.Tx) error {
		return NewRegistrationStore(db).CreateRegistrations(context.Background(), tx, registrations)
	})
	return registrations
}

func TestListPaidRegistrations(t *testing.T) {
	db := setupTestDB(t)
	store := NewRegistrationStore(db)
	ctx := context.Background()

	tournament := createTournament(t, db, bracket.TournamentRegistrationOpen)
	players := createPlayers(t, db, 6)
	// Every third registration is unpaid.
	registrations := register(t, db, tournament.ID, players, func(i int) bool { return i%3 != 2 })

	count, err := store.CountPaid(ctx, tournament.ID)
	require.NoError(t, err)
	assert.Equal(t, 4, count)

	withTx(t, db, func(tx *sqlx.Tx) error {
		paid, err := store.ListPaidRegistrations(ctx, tx, tournament.ID)
		require.Len(t, paid, 4)
		assert.Equal(t, registrations[0].ID, paid[0].ID)
		assert.Equal(t, registrations[1].ID, paid[1].ID)
		assert.Equal(t, registrations[3].ID, paid[2].ID)
		assert.Equal(t, registrations[4].ID, paid[3].ID)
		return err
	})
}

func TestListPaidRegistrationsTieBreak(t *testing.T) {
	db := setupTestDB(t)
	store := NewRegistrationStore(db)
	ctx := context.Background()

	tournament := createTournament(t, db, bracket.TournamentRegistrationOpen)
	players := createPlayers(t, db, 4)

	registrations := make([]bracket.Registration, len(players))
	for i, p := range players {
		registrations[i] = bracket.Registration{
			ID:            uuid.New(),
			TournamentID:  tournament.ID,
			PlayerID:      p.ID,
			PaymentStatus: bracket.PaymentPaid,
			Status:        bracket.RegistrationPending,
			RegisteredAt:  baseTime,
		}
	}
	withTx(t, db, func(tx *sqlx.Tx) error {
		return store.CreateRegistrations(ctx, tx, registrations)
	})

	withTx(t, db, func(tx *sqlx.Tx) error {
		paid, err := store.ListPaidRegistrations(ctx, tx, tournament.ID)
		require.Len(t, paid, 4)
		for i := 1; i < len(paid); i++ {
			assert.Less(t, paid[i-1].ID.String(), paid[i].ID.String())
		}
		return err
	})
}

func TestPruneAndConfirmRegistrations(t *testing.T) {
	db := setupTestDB(t)
	store := NewRegistrationStore(db)
	ctx := context.Background()

	tournament := createTournament(t, db, bracket.TournamentRegistrationOpen)
	other := createTournament(t, db, bracket.TournamentRegistrationOpen)
	players := createPlayers(t, db, 5)
	registrations := register(t, db, tournament.ID, players, func(int) bool { return true })
	otherRegistrations := register(t, db, other.ID, players[:2], func(int) bool { return true })

	keep := []uuid.UUID{registrations[0].ID, registrations[1].ID, registrations[2].ID}

	withTx(t, db, func(tx *sqlx.Tx) error {
		pruned, err := store.PruneRegistrations(ctx, tx, tournament.ID, keep)
		if err != nil {
			return err
		}
		assert.EqualValues(t, 2, pruned)

		confirmed, err := store.ConfirmRegistrations(ctx, tx, keep)
		assert.EqualValues(t, 3, confirmed)
		return err
	})

	remaining, err := store.GetRegistrations(ctx, tournament.ID)
	require.NoError(t, err)
	require.Len(t, remaining, 3)
	for i, r := range remaining {
		assert.Equal(t, keep[i], r.ID)
		assert.Equal(t, bracket.RegistrationConfirmed, r.Status)
		require.NotNil(t, r.PriorityOrder)
		assert.Equal(t, i+1, *r.PriorityOrder)
	}

	untouched, err := store.GetRegistrations(ctx, other.ID)
	require.NoError(t, err)
	require.Len(t, untouched, len(otherRegistrations))
	assert.Equal(t, bracket.RegistrationPending, untouched[0].Status)

	withTx(t, db, func(tx *sqlx.Tx) error {
		roster, err := store.ListRoster(ctx, tx, tournament.ID)
		require.Len(t, roster, 3)
		assert.Equal(t, players[0].ID, roster[0].PlayerID)
		assert.Equal(t, players[0].Rating, roster[0].Rating)
		return err
	})

	withTx(t, db, func(tx *sqlx.Tx) error {
		pruned, err := store.PruneRegistrations(ctx, tx, other.ID, nil)
		assert.EqualValues(t, 2, pruned)
		return err
	})
	untouched, err = store.GetRegistrations(ctx, other.ID)
	require.NoError(t, err)
	assert.Empty(t, untouched)
}

func TestListPaidRegistrationsMixedOffsets(t *testing.T) {
	db := setupTestDB(t)
	store := NewRegistrationStore(db)
	ctx := context.Background()

	tournament := createTournament(t, db, bracket.TournamentRegistrationOpen)
	players := createPlayers(t, db, 3)

	// 09:00Z, 08:00Z and 09:30Z written in three different zones.
	times := []time.Time{
		time.Date(2025, 3, 1, 9, 0, 0, 0, time.UTC),
		time.Date(2025, 3, 1, 10, 0, 0, 0, time.FixedZone("EET", 2*60*60)),
		time.Date(2025, 3, 1, 4, 30, 0, 0, time.FixedZone("EST", -5*60*60)),
	}
	registrations := make([]bracket.Registration, len(players))
	for i, p := range players {
		registrations[i] = bracket.Registration{
			ID:            uuid.New(),
			TournamentID:  tournament.ID,
			PlayerID:      p.ID,
			PaymentStatus: bracket.PaymentPaid,
			Status:        bracket.RegistrationPending,
			RegisteredAt:  times[i],
		}
	}
	withTx(t, db, func(tx *sqlx.Tx) error {
		return store.CreateRegistrations(ctx, tx, registrations)
	})

	// The caller's values keep their zone.
	assert.Equal(t, "EET", registrations[1].RegisteredAt.Location().String())

	withTx(t, db, func(tx *sqlx.Tx) error {
		paid, err := store.ListPaidRegistrations(ctx, tx, tournament.ID)
		require.Len(t, paid, 3)
		for i, want := range []int{1, 0, 2} {
			assert.Equal(t, registrations[want].ID, paid[i].ID)
			assert.True(t, times[want].Equal(paid[i].RegisteredAt), "got %s want %s", paid[i].RegisteredAt, times[want])
		}
		return err
	})
}
