package service

import (
	"context"
	"fmt"

	"github.com/AdamBeresnev/cueclub/internal/bracket"
	"github.com/AdamBeresnev/cueclub/internal/player"
	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
)

type TournamentService struct {
	base
}

func NewTournamentService(db *sqlx.DB, stores Stores, opts Options) *TournamentService {
	return &TournamentService{base: newBase(db, stores, opts)}
}

type TournamentData struct {
	Tournament  *bracket.Tournament         `json:"tournament"`
	Bracket     *bracket.Bracket            `json:"bracket,omitempty"`
	Seeds       []bracket.SeedEntry         `json:"seeds"`
	Matches     []bracket.Match             `json:"matches"`
	Players     map[uuid.UUID]player.Player `json:"players"`
	NextMatchID *uuid.UUID                  `json:"next_match_id,omitempty"`
}

func (s *TournamentService) GetTournamentData(ctx context.Context, id uuid.UUID) (*TournamentData, error) {
	tournament, err := s.stores.Tournaments.GetTournament(ctx, id)
	if err != nil {
		return nil, lookup("load tournament", "tournament "+id.String(), err)
	}

	b, err := s.stores.Tournaments.GetBracket(ctx, id)
	if err != nil {
		return nil, bracket.Dependency("load bracket", err)
	}

	seeds, err := s.stores.Tournaments.GetSeedEntries(ctx, id)
	if err != nil {
		return nil, bracket.Dependency("load seeds", err)
	}

	matches, err := s.stores.Tournaments.GetMatches(ctx, id)
	if err != nil {
		return nil, bracket.Dependency("load matches", err)
	}

	var ids []uuid.UUID
	for _, seed := range seeds {
		if !seed.IsBye() {
			ids = append(ids, *seed.PlayerID)
		}
	}
	players, err := s.stores.Players.GetPlayers(ctx, ids)
	if err != nil {
		return nil, bracket.Dependency("load players", err)
	}
	byID := make(map[uuid.UUID]player.Player, len(players))
	for _, p := range players {
		byID[p.ID] = p
	}

	// The next match to play is the first open one with both players seated.
	var nextMatchID *uuid.UUID
	for _, m := range matches {
		if !m.Status.Terminal() && m.Ready() {
			id := m.ID
			nextMatchID = &id
			break
		}
	}

	return &TournamentData{
		Tournament:  tournament,
		Bracket:     b,
		Seeds:       seeds,
		Matches:     matches,
		Players:     byID,
		NextMatchID: nextMatchID,
	}, nil
}

func (s *TournamentService) GetNotifications(ctx context.Context, userID uuid.UUID) ([]bracket.Notification, error) {
	notifications, err := s.stores.Notifications.GetNotificationsForUser(ctx, userID)
	if err != nil {
		return nil, bracket.Dependency("load notifications", err)
	}
	return notifications, nil
}

func (s *TournamentService) MarkNotificationRead(ctx context.Context, userID, notificationID uuid.UUID) error {
	tx, err := s.begin(ctx, "mark notification read")
	if err != nil {
		return err
	}
	defer tx.Rollback()

	ok, err := s.stores.Notifications.MarkRead(ctx, tx, userID, notificationID)
	if err != nil {
		return bracket.Dependency("mark notification read", err)
	}
	if !ok {
		return fmt.Errorf("%w: notification %s", bracket.ErrNotFound, notificationID)
	}
	if err := tx.Commit(); err != nil {
		return bracket.Dependency("commit notification read", err)
	}
	return nil
}
