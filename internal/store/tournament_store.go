package store

import (
	"context"
	"fmt"
	"time"

	"github.com/AdamBeresnev/cueclub/internal/bracket"
	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
)

type TournamentStore struct {
	db *sqlx.DB
}

func NewTournamentStore(db *sqlx.DB) *TournamentStore {
	return &TournamentStore{db: db}
}

func (s *TournamentStore) CreateTournament(ctx context.Context, tx *sqlx.Tx, tournament *bracket.Tournament) error {
	_, err := tx.NamedExecContext(ctx, `INSERT INTO tournaments (id, name, max_participants, current_participants, entry_fee,
			registration_start, registration_end, start_date, end_date, status, created_at, updated_at)
		VALUES (:id, :name, :max_participants, :current_participants, :entry_fee,
			:registration_start, :registration_end, :start_date, :end_date, :status, :created_at, :updated_at)`, utcTournament(*tournament))
	return err
}

func (s *TournamentStore) GetTournament(ctx context.Context, id uuid.UUID) (*bracket.Tournament, error) {
	return s.getTournament(ctx, s.db, id)
}

func (s *TournamentStore) GetTournamentTx(ctx context.Context, tx *sqlx.Tx, id uuid.UUID) (*bracket.Tournament, error) {
	return s.getTournament(ctx, tx, id)
}

func (s *TournamentStore) getTournament(ctx context.Context, q sqlx.ExtContext, id uuid.UUID) (*bracket.Tournament, error) {
	var tournament bracket.Tournament
	if err := get(ctx, q, &tournament, "SELECT * FROM tournaments WHERE id = ?", id); err != nil {
		return nil, err
	}
	return &tournament, nil
}

// ListTournamentsByStatus returns tournaments in any of the given statuses,
// oldest registration deadline first.
func (s *TournamentStore) ListTournamentsByStatus(ctx context.Context, statuses ...bracket.TournamentStatus) ([]bracket.Tournament, error) {
	tournaments := []bracket.Tournament{}
	if len(statuses) == 0 {
		return tournaments, nil
	}
	err := selectIn(ctx, s.db, &tournaments,
		"SELECT * FROM tournaments WHERE status IN (?) ORDER BY registration_end ASC, id ASC", statuses)
	return tournaments, err
}

// SwapTournamentStatus moves the tournament to `to` only while its status is
// one of `from`. When participants is set, current_participants is written in
// the same statement. It reports whether a row changed.
func (s *TournamentStore) SwapTournamentStatus(ctx context.Context, tx *sqlx.Tx, id uuid.UUID, from []bracket.TournamentStatus, to bracket.TournamentStatus, participants *int, now time.Time) (bool, error) {
	if len(from) == 0 {
		return false, fmt.Errorf("no source status given for %s", to)
	}
	n, err := execIn(ctx, tx, `UPDATE tournaments
		SET status = ?, current_participants = COALESCE(?, current_participants), updated_at = ?
		WHERE id = ? AND status IN (?)`, to, participants, now.UTC(), id, from)
	return n == 1, err
}

func (s *TournamentStore) CreateMatches(ctx context.Context, tx *sqlx.Tx, matches []bracket.Match) error {
	if len(matches) == 0 {
		return nil
	}
	rows := make([]bracket.Match, len(matches))
	for i, m := range matches {
		rows[i] = utcMatch(m)
	}
	_, err := tx.NamedExecContext(ctx, `INSERT INTO matches (id, tournament_id, round_number, match_number, player_1_id, player_2_id,
			score_1, score_2, winner_id, status, is_bye, next_match_id, next_slot, completed_at, created_at, updated_at)
		VALUES (:id, :tournament_id, :round_number, :match_number, :player_1_id, :player_2_id,
			:score_1, :score_2, :winner_id, :status, :is_bye, :next_match_id, :next_slot, :completed_at, :created_at, :updated_at)`, rows)
	return err
}

func (s *TournamentStore) GetMatch(ctx context.Context, id uuid.UUID) (*bracket.Match, error) {
	return s.getMatch(ctx, s.db, id)
}

func (s *TournamentStore) GetMatchTx(ctx context.Context, tx *sqlx.Tx, id uuid.UUID) (*bracket.Match, error) {
	return s.getMatch(ctx, tx, id)
}

func (s *TournamentStore) getMatch(ctx context.Context, q sqlx.ExtContext, id uuid.UUID) (*bracket.Match, error) {
	var match bracket.Match
	if err := get(ctx, q, &match, "SELECT * FROM matches WHERE id = ?", id); err != nil {
		return nil, err
	}
	return &match, nil
}

func (s *TournamentStore) GetMatches(ctx context.Context, tournamentID uuid.UUID) ([]bracket.Match, error) {
	return s.getMatches(ctx, s.db, tournamentID)
}

func (s *TournamentStore) GetMatchesTx(ctx context.Context, tx *sqlx.Tx, tournamentID uuid.UUID) ([]bracket.Match, error) {
	return s.getMatches(ctx, tx, tournamentID)
}

func (s *TournamentStore) getMatches(ctx context.Context, q sqlx.ExtContext, tournamentID uuid.UUID) ([]bracket.Match, error) {
	matches := []bracket.Match{}
	err := selectAll(ctx, q, &matches,
		"SELECT * FROM matches WHERE tournament_id = ? ORDER BY round_number ASC, match_number ASC", tournamentID)
	return matches, err
}

func (s *TournamentStore) CountMatchesTx(ctx context.Context, tx *sqlx.Tx, tournamentID uuid.UUID) (int, error) {
	var count int
	err := get(ctx, tx, &count, "SELECT COUNT(*) FROM matches WHERE tournament_id = ?", tournamentID)
	return count, err
}

// CompleteMatch records the result only while the match is still open. A
// false return means another report got there first.
func (s *TournamentStore) CompleteMatch(ctx context.Context, tx *sqlx.Tx, match *bracket.Match) (bool, error) {
	n, err := execIn(ctx, tx, `UPDATE matches
		SET score_1 = ?, score_2 = ?, winner_id = ?, status = ?, completed_at = ?, updated_at = ?
		WHERE id = ? AND status IN (?)`,
		match.Score1, match.Score2, match.WinnerID, bracket.MatchCompleted, utcPtr(match.CompletedAt), match.UpdatedAt.UTC(),
		match.ID, bracket.OpenMatchStatuses)
	return n == 1, err
}

// StartMatch moves a scheduled match with both slots filled to in_progress.
func (s *TournamentStore) StartMatch(ctx context.Context, tx *sqlx.Tx, id uuid.UUID, now time.Time) (bool, error) {
	n, err := exec(ctx, tx, `UPDATE matches SET status = ?, updated_at = ?
		WHERE id = ? AND status = ? AND player_1_id IS NOT NULL AND player_2_id IS NOT NULL`,
		bracket.MatchInProgress, now.UTC(), id, bracket.MatchScheduled)
	return n == 1, err
}

// SeatPlayer writes playerID into the given slot unless the slot already
// holds somebody else. Writing the same player twice succeeds.
func (s *TournamentStore) SeatPlayer(ctx context.Context, tx *sqlx.Tx, matchID uuid.UUID, slot int, playerID uuid.UUID, now time.Time) (bool, error) {
	var column string
	switch slot {
	case 1:
		column = "player_1_id"
	case 2:
		column = "player_2_id"
	default:
		return false, fmt.Errorf("invalid slot %d", slot)
	}
	n, err := exec(ctx, tx, `UPDATE matches SET `+column+` = ?, updated_at = ?
		WHERE id = ? AND (`+column+` IS NULL OR `+column+` = ?)`, playerID, now.UTC(), matchID, playerID)
	return n == 1, err
}

// UpdateMatch overwrites every mutable column of the match.
func (s *TournamentStore) UpdateMatch(ctx context.Context, tx *sqlx.Tx, match *bracket.Match) error {
	_, err := tx.NamedExecContext(ctx, `UPDATE matches
		SET player_1_id = :player_1_id, player_2_id = :player_2_id, score_1 = :score_1, score_2 = :score_2,
			winner_id = :winner_id, status = :status, is_bye = :is_bye, completed_at = :completed_at, updated_at = :updated_at
		WHERE id = :id`, utcMatch(*match))
	return err
}

func (s *TournamentStore) CreateSeedEntries(ctx context.Context, tx *sqlx.Tx, seeds []bracket.SeedEntry) error {
	if len(seeds) == 0 {
		return nil
	}
	_, err := tx.NamedExecContext(ctx, `INSERT INTO seed_entries (tournament_id, seed_position, player_id, rating)
		VALUES (:tournament_id, :seed_position, :player_id, :rating)`, seeds)
	return err
}

func (s *TournamentStore) GetSeedEntries(ctx context.Context, tournamentID uuid.UUID) ([]bracket.SeedEntry, error) {
	seeds := []bracket.SeedEntry{}
	err := selectAll(ctx, s.db, &seeds,
		"SELECT * FROM seed_entries WHERE tournament_id = ? ORDER BY seed_position ASC", tournamentID)
	return seeds, err
}

func (s *TournamentStore) CreateBracket(ctx context.Context, tx *sqlx.Tx, b *bracket.Bracket) error {
	row := *b
	row.GeneratedAt = row.GeneratedAt.UTC()
	_, err := tx.NamedExecContext(ctx, `INSERT INTO brackets (tournament_id, bracket_size, total_rounds, seeding_method, generated_at)
		VALUES (:tournament_id, :bracket_size, :total_rounds, :seeding_method, :generated_at)`, row)
	return err
}

// GetBracket returns nil without an error when no bracket was generated yet.
func (s *TournamentStore) GetBracket(ctx context.Context, tournamentID uuid.UUID) (*bracket.Bracket, error) {
	var b bracket.Bracket
	err := get(ctx, s.db, &b, "SELECT * FROM brackets WHERE tournament_id = ?", tournamentID)
	if IsNotFound(err) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &b, nil
}

// DeleteBracket removes matches, seeds and metadata of a tournament.
func (s *TournamentStore) DeleteBracket(ctx context.Context, tx *sqlx.Tx, tournamentID uuid.UUID) error {
	for _, table := range []string{"matches", "seed_entries", "brackets"} {
		if _, err := exec(ctx, tx, "DELETE FROM "+table+" WHERE tournament_id = ?", tournamentID); err != nil {
			return fmt.Errorf("failed to delete %s: %w", table, err)
		}
	}
	return nil
}
