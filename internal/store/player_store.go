package store

import (
	"context"

	"github.com/AdamBeresnev/cueclub/internal/player"
	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
)

type PlayerStore struct {
	db *sqlx.DB
}

func NewPlayerStore(db *sqlx.DB) *PlayerStore {
	return &PlayerStore{db: db}
}

func (s *PlayerStore) CreatePlayers(ctx context.Context, tx *sqlx.Tx, players []player.Player) error {
	if len(players) == 0 {
		return nil
	}
	rows := make([]player.Player, len(players))
	for i, p := range players {
		p.CreatedAt = p.CreatedAt.UTC()
		rows[i] = p
	}
	_, err := tx.NamedExecContext(ctx, `INSERT INTO players (id, username, rating, created_at)
		VALUES (:id, :username, :rating, :created_at)`, rows)
	return err
}

// GetPlayers returns the players with the given ids in no particular order.
func (s *PlayerStore) GetPlayers(ctx context.Context, ids []uuid.UUID) ([]player.Player, error) {
	players := []player.Player{}
	if len(ids) == 0 {
		return players, nil
	}
	err := selectIn(ctx, s.db, &players, "SELECT * FROM players WHERE id IN (?)", ids)
	return players, err
}
