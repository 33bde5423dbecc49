package store

import (
	"context"
	"testing"
	"time"

	"github.com/AdamBeresnev/cueclub/internal/bracket"
	"github.com/AdamBeresnev/cueclub/internal/db"
	"github.com/AdamBeresnev/cueclub/internal/player"
	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/require"
)

var baseTime = time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)

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

func withTx(t *testing.T, database *sqlx.DB, fn func(tx *sqlx.Tx) error) {
	t.Helper()
	tx, err := database.BeginTxx(context.Background(), nil)
	require.NoError(t, err)
	defer tx.Rollback()
	require.NoError(t, fn(tx))
	require.NoError(t, tx.Commit())
}

func createTournament(t *testing.T, database *sqlx.DB, status bracket.TournamentStatus) *bracket.Tournament {
	t.Helper()
	tournament := &bracket.Tournament{
		ID:              uuid.New(),
		Name:            "Friday 9-ball",
		MaxParticipants: 32,
		EntryFee:        10,
		RegistrationEnd: baseTime.Add(48 * time.Hour),
		Status:          status,
		CreatedAt:       baseTime,
		UpdatedAt:       baseTime,
	}
	withTx(t, database, func(tx *sqlx.Tx) error {
		return NewTournamentStore(database).CreateTournament(context.Background(), tx, tournament)
	})
	return tournament
}

func createPlayers(t *testing.T, database *sqlx.DB, n int) []player.Player {
	t.Helper()
	players := make([]player.Player, n)
	for i := range players {
		players[i] = player.Player{
			ID:        uuid.New(),
			Username:  "player",
			Rating:    500 + i,
			CreatedAt: baseTime,
		}
	}
	withTx(t, database, func(tx *sqlx.Tx) error {
		return NewPlayerStore(database).CreatePlayers(context.Background(), tx, players)
	})
	return players
}
