package service

import (
	"context"
	"fmt"

	"github.com/AdamBeresnev/cueclub/internal/bracket"
	"github.com/AdamBeresnev/cueclub/internal/realtime"
	"github.com/AdamBeresnev/cueclub/internal/utils"
	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
)

type MatchService struct {
	base
}

func NewMatchService(db *sqlx.DB, stores Stores, opts Options) *MatchService {
	return &MatchService{base: newBase(db, stores, opts)}
}

type ReportInput struct {
	MatchID  uuid.UUID
	Score1   int
	Score2   int
	WinnerID uuid.UUID
}

type ReportResult struct {
	Match               *bracket.Match `json:"match"`
	NextMatch           *bracket.Match `json:"next_match,omitempty"`
	Propagated          bool           `json:"propagated"`
	TournamentCompleted bool           `json:"tournament_completed"`
}

// ReportResult completes an open match and seats the winner in the slot the
// match feeds. Reporting the final completes the tournament. Validation
// failures leave the match untouched.
func (s *MatchService) ReportResult(ctx context.Context, in ReportInput) (*ReportResult, error) {
	result, err := s.reportResult(ctx, in)
	if err != nil {
		s.metrics.MatchReport("rejected")
		return nil, err
	}
	s.metrics.MatchReport("completed")

	m := result.Match
	s.logger.Info("match result recorded",
		"tournament_id", m.TournamentID,
		"match_id", m.ID,
		"round", m.RoundNumber,
		"match", m.MatchNumber,
		"winner_id", in.WinnerID,
		"tournament_completed", result.TournamentCompleted)

	s.publish(ctx, realtime.Event{
		Type:         realtime.EventMatchCompleted,
		Table:        "matches",
		TournamentID: m.TournamentID,
		MatchID:      &m.ID,
	})
	if result.TournamentCompleted {
		s.publish(ctx, realtime.Event{
			Type:         realtime.EventTournamentCompleted,
			Table:        "tournaments",
			TournamentID: m.TournamentID,
		})
	}
	return result, nil
}

func (s *MatchService) reportResult(ctx context.Context, in ReportInput) (*ReportResult, error) {
	if in.Score1 < 0 || in.Score2 < 0 {
		return nil, bracket.ErrInvalidScore
	}

	now := s.now()
	tx, err := s.begin(ctx, "report result")
	if err != nil {
		return nil, err
	}
	defer tx.Rollback()

	match, err := s.stores.Tournaments.GetMatchTx(ctx, tx, in.MatchID)
	if err != nil {
		return nil, lookup("load match", "match "+in.MatchID.String(), err)
	}
	if match.Status.Terminal() {
		return nil, fmt.Errorf("%w: match is already %s", bracket.ErrInvalidState, match.Status)
	}
	if !match.Ready() {
		return nil, fmt.Errorf("%w: match is still waiting for a player", bracket.ErrInvalidState)
	}
	slot := match.SlotOf(in.WinnerID)
	if slot == 0 {
		return nil, fmt.Errorf("%w: %s", bracket.ErrInvalidWinner, in.WinnerID)
	}
	// Level scores are accepted for forfeits and walkovers.
	winnerScore, loserScore := in.Score1, in.Score2
	if slot == 2 {
		winnerScore, loserScore = loserScore, winnerScore
	}
	if winnerScore < loserScore {
		return nil, fmt.Errorf("%w: winner scored %d against %d", bracket.ErrInvalidScore, winnerScore, loserScore)
	}

	tournament, err := s.stores.Tournaments.GetTournamentTx(ctx, tx, match.TournamentID)
	if err != nil {
		return nil, lookup("load tournament", "tournament "+match.TournamentID.String(), err)
	}
	if tournament.Status != bracket.TournamentOngoing {
		return nil, fmt.Errorf("%w: tournament is %s", bracket.ErrInvalidState, tournament.Status)
	}

	if _, err := match.Status.TransitionTo(bracket.MatchCompleted); err != nil {
		return nil, err
	}
	match.Score1 = in.Score1
	match.Score2 = in.Score2
	match.WinnerID = utils.Ptr(in.WinnerID)
	match.CompletedAt = utils.Ptr(now)
	match.UpdatedAt = now

	completed, err := s.stores.Tournaments.CompleteMatch(ctx, tx, match)
	if err != nil {
		return nil, bracket.Dependency("record result", err)
	}
	if !completed {
		return nil, fmt.Errorf("%w: match was completed by another report", bracket.ErrInvalidState)
	}
	match.Status = bracket.MatchCompleted

	result := &ReportResult{Match: match}

	if match.IsFinal() {
		ok, err := s.stores.Tournaments.SwapTournamentStatus(ctx, tx, match.TournamentID,
			bracket.SourcesOf(bracket.TournamentCompleted), bracket.TournamentCompleted, nil, now)
		if err != nil {
			return nil, bracket.Dependency("complete tournament", err)
		}
		if !ok {
			return nil, fmt.Errorf("%w: tournament is no longer ongoing", bracket.ErrInvalidState)
		}
		result.TournamentCompleted = true
	} else {
		seated, err := s.stores.Tournaments.SeatPlayer(ctx, tx, *match.NextMatchID, *match.NextSlot, in.WinnerID, now)
		if err != nil {
			return nil, bracket.Dependency("advance winner", err)
		}
		if !seated {
			return nil, fmt.Errorf("%w: slot %d of the next match holds another player", bracket.ErrInvalidState, *match.NextSlot)
		}
		next, err := s.stores.Tournaments.GetMatchTx(ctx, tx, *match.NextMatchID)
		if err != nil {
			return nil, bracket.Dependency("load next match", err)
		}
		result.NextMatch = next
		result.Propagated = true
	}

	if err := tx.Commit(); err != nil {
		return nil, bracket.Dependency("commit result", err)
	}
	return result, nil
}

// StartMatch marks a scheduled match with both players seated as in progress.
func (s *MatchService) StartMatch(ctx context.Context, matchID uuid.UUID) (*bracket.Match, error) {
	now := s.now()
	tx, err := s.begin(ctx, "start match")
	if err != nil {
		return nil, err
	}
	defer tx.Rollback()

	match, err := s.stores.Tournaments.GetMatchTx(ctx, tx, matchID)
	if err != nil {
		return nil, lookup("load match", "match "+matchID.String(), err)
	}
	if _, err := match.Status.TransitionTo(bracket.MatchInProgress); err != nil {
		return nil, err
	}
	if !match.Ready() {
		return nil, fmt.Errorf("%w: match is still waiting for a player", bracket.ErrInvalidState)
	}

	started, err := s.stores.Tournaments.StartMatch(ctx, tx, matchID, now)
	if err != nil {
		return nil, bracket.Dependency("start match", err)
	}
	if !started {
		return nil, fmt.Errorf("%w: match changed before it could start", bracket.ErrInvalidState)
	}
	match.Status = bracket.MatchInProgress
	match.UpdatedAt = now

	if err := tx.Commit(); err != nil {
		return nil, bracket.Dependency("commit match start", err)
	}

	s.publish(ctx, realtime.Event{
		Type:         realtime.EventMatchStarted,
		Table:        "matches",
		TournamentID: match.TournamentID,
		MatchID:      &match.ID,
	})
	return match, nil
}

// IsRoundComplete reports whether every match of the round is completed or
// cancelled. Rounds without matches are never complete.
func (s *MatchService) IsRoundComplete(ctx context.Context, tournamentID uuid.UUID, round int) (bool, error) {
	if _, err := s.stores.Tournaments.GetTournament(ctx, tournamentID); err != nil {
		return false, lookup("load tournament", "tournament "+tournamentID.String(), err)
	}
	matches, err := s.stores.Tournaments.GetMatches(ctx, tournamentID)
	if err != nil {
		return false, bracket.Dependency("load matches", err)
	}
	return bracket.RoundComplete(matches, round), nil
}

// ResetTournament clears every result and returns the tournament to ongoing.
// Rounds are cleared from the last one down so no stale winner survives in a
// later slot. Round 1 keeps its seeded players; bye matches are resolved again
// because they can never be played.
func (s *MatchService) ResetTournament(ctx context.Context, tournamentID uuid.UUID) ([]bracket.Match, error) {
	now := s.now()
	tx, err := s.begin(ctx, "reset tournament")
	if err != nil {
		return nil, err
	}
	defer tx.Rollback()

	tournament, err := s.stores.Tournaments.GetTournamentTx(ctx, tx, tournamentID)
	if err != nil {
		return nil, lookup("load tournament", "tournament "+tournamentID.String(), err)
	}
	if tournament.Status != bracket.TournamentOngoing && tournament.Status != bracket.TournamentCompleted {
		return nil, fmt.Errorf("%w: cannot reset a %s tournament", bracket.ErrInvalidState, tournament.Status)
	}

	matches, err := s.stores.Tournaments.GetMatchesTx(ctx, tx, tournamentID)
	if err != nil {
		return nil, bracket.Dependency("load matches", err)
	}
	if len(matches) == 0 {
		return nil, fmt.Errorf("%w: tournament has no bracket", bracket.ErrInvalidState)
	}

	// Matches come ordered by round, so walking backwards clears later rounds first.
	for i := len(matches) - 1; i >= 0; i-- {
		m := &matches[i]
		m.Score1, m.Score2 = 0, 0
		m.WinnerID = nil
		m.CompletedAt = nil
		m.Status = bracket.MatchScheduled
		m.IsBye = false
		m.UpdatedAt = now
		if m.RoundNumber > 1 {
			m.Player1ID, m.Player2ID = nil, nil
		}
		if err := s.stores.Tournaments.UpdateMatch(ctx, tx, m); err != nil {
			return nil, bracket.Dependency(fmt.Sprintf("reset round %d match %d", m.RoundNumber, m.MatchNumber), err)
		}
	}

	byID := make(map[uuid.UUID]*bracket.Match, len(matches))
	for i := range matches {
		byID[matches[i].ID] = &matches[i]
	}
	for i := range matches {
		m := &matches[i]
		if m.RoundNumber != 1 || m.Ready() || (m.Player1ID == nil && m.Player2ID == nil) {
			continue
		}
		if err := bracket.ResolveBye(m, now); err != nil {
			return nil, err
		}
		if err := s.stores.Tournaments.UpdateMatch(ctx, tx, m); err != nil {
			return nil, bracket.Dependency("resolve bye", err)
		}
		if m.NextMatchID == nil {
			continue
		}
		if _, err := s.stores.Tournaments.SeatPlayer(ctx, tx, *m.NextMatchID, *m.NextSlot, *m.WinnerID, now); err != nil {
			return nil, bracket.Dependency("advance bye", err)
		}
		if next, ok := byID[*m.NextMatchID]; ok {
			bracket.SeatPlayer(next, *m.NextSlot, *m.WinnerID)
		}
	}

	if tournament.Status == bracket.TournamentCompleted {
		ok, err := s.stores.Tournaments.SwapTournamentStatus(ctx, tx, tournamentID,
			[]bracket.TournamentStatus{bracket.TournamentCompleted}, bracket.TournamentOngoing, nil, now)
		if err != nil {
			return nil, bracket.Dependency("reopen tournament", err)
		}
		if !ok {
			return nil, fmt.Errorf("%w: tournament changed during reset", bracket.ErrInvalidState)
		}
	}

	if err := tx.Commit(); err != nil {
		return nil, bracket.Dependency("commit reset", err)
	}

	s.logger.Info("tournament reset", "tournament_id", tournamentID, "matches", len(matches))
	s.publish(ctx, realtime.Event{
		Type:         realtime.EventTournamentReset,
		Table:        "matches",
		TournamentID: tournamentID,
	})
	return matches, nil
}
