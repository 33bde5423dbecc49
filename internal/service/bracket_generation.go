package service

import (
	"context"
	"fmt"

	"github.com/AdamBeresnev/cueclub/internal/bracket"
	"github.com/AdamBeresnev/cueclub/internal/realtime"
	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
)

type BracketService struct {
	base
}

func NewBracketService(db *sqlx.DB, stores Stores, opts Options) *BracketService {
	return &BracketService{base: newBase(db, stores, opts)}
}

// GenerateBracket seeds the confirmed roster and writes seeds, matches and
// bracket metadata in one transaction, moving the tournament to ongoing.
// Existing matches make it fail with ErrAlreadyExists unless force is set, in
// which case the old bracket is discarded first.
func (s *BracketService) GenerateBracket(ctx context.Context, tournamentID uuid.UUID, method bracket.SeedingMethod, force bool) (*bracket.Generated, error) {
	if method == "" {
		method = bracket.SeedByRating
	}
	if !method.Valid() {
		return nil, fmt.Errorf("%w: %q", bracket.ErrUnknownSeeding, method)
	}

	now := s.now()
	tx, err := s.begin(ctx, "generate bracket")
	if err != nil {
		return nil, err
	}
	defer tx.Rollback()

	tournament, err := s.stores.Tournaments.GetTournamentTx(ctx, tx, tournamentID)
	if err != nil {
		return nil, lookup("load tournament", "tournament "+tournamentID.String(), err)
	}

	switch tournament.Status {
	case bracket.TournamentRegistrationClosed, bracket.TournamentOngoing, bracket.TournamentCompleted:
	default:
		return nil, fmt.Errorf("%w: cannot generate a bracket for a %s tournament", bracket.ErrInvalidState, tournament.Status)
	}

	existing, err := s.stores.Tournaments.CountMatchesTx(ctx, tx, tournamentID)
	if err != nil {
		return nil, bracket.Dependency("count matches", err)
	}
	if existing > 0 && !force {
		return nil, fmt.Errorf("%w: tournament %s already has %d matches", bracket.ErrAlreadyExists, tournamentID, existing)
	}

	roster, err := s.stores.Registrations.ListRoster(ctx, tx, tournamentID)
	if err != nil {
		return nil, bracket.Dependency("load roster", err)
	}

	generated, err := bracket.Generate(tournamentID, roster, method, now)
	if err != nil {
		return nil, err
	}

	if existing > 0 {
		if err := s.stores.Tournaments.DeleteBracket(ctx, tx, tournamentID); err != nil {
			return nil, bracket.Dependency("discard previous bracket", err)
		}
	}
	if err := s.stores.Tournaments.CreateSeedEntries(ctx, tx, generated.Seeds); err != nil {
		return nil, bracket.Dependency("write seeds", err)
	}
	if err := s.stores.Tournaments.CreateMatches(ctx, tx, generated.Matches); err != nil {
		return nil, bracket.Dependency("write matches", err)
	}
	if err := s.stores.Tournaments.CreateBracket(ctx, tx, &generated.Bracket); err != nil {
		return nil, bracket.Dependency("write bracket metadata", err)
	}

	if tournament.Status != bracket.TournamentOngoing {
		next, err := tournament.Status.TransitionTo(bracket.TournamentOngoing)
		if err != nil {
			return nil, err
		}
		ok, err := s.stores.Tournaments.SwapTournamentStatus(ctx, tx, tournamentID,
			[]bracket.TournamentStatus{tournament.Status}, next, nil, now)
		if err != nil {
			return nil, bracket.Dependency("start tournament", err)
		}
		if !ok {
			return nil, fmt.Errorf("%w: tournament %s changed status during generation", bracket.ErrInvalidState, tournamentID)
		}
	}

	if err := tx.Commit(); err != nil {
		return nil, bracket.Dependency("commit bracket", err)
	}

	s.metrics.BracketGenerated()
	s.logger.Info("bracket generated",
		"tournament_id", tournamentID,
		"players", len(roster),
		"bracket_size", generated.Bracket.BracketSize,
		"rounds", generated.Bracket.TotalRounds,
		"seeding", method,
		"forced", existing > 0)
	s.publish(ctx, realtime.Event{
		Type:         realtime.EventBracketGenerated,
		Table:        "matches",
		TournamentID: tournamentID,
	})

	return generated, nil
}
