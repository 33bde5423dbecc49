package store

import (
	"context"

	"github.com/AdamBeresnev/cueclub/internal/bracket"
	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
)

// RegistrationStore is the registration ledger shared by the lifecycle pass
// and the bracket generator.
type RegistrationStore struct {
	db *sqlx.DB
}

func NewRegistrationStore(db *sqlx.DB) *RegistrationStore {
	return &RegistrationStore{db: db}
}

func (s *RegistrationStore) CreateRegistrations(ctx context.Context, tx *sqlx.Tx, registrations []bracket.Registration) error {
	if len(registrations) == 0 {
		return nil
	}
	rows := make([]bracket.Registration, len(registrations))
	for i, r := range registrations {
		r.RegisteredAt = r.RegisteredAt.UTC()
		rows[i] = r
	}
	_, err := tx.NamedExecContext(ctx, `INSERT INTO registrations (id, tournament_id, player_id, payment_status, status, registered_at, priority_order)
		VALUES (:id, :tournament_id, :player_id, :payment_status, :status, :registered_at, :priority_order)`, rows)
	return err
}

func (s *RegistrationStore) GetRegistrations(ctx context.Context, tournamentID uuid.UUID) ([]bracket.Registration, error) {
	registrations := []bracket.Registration{}
	err := selectAll(ctx, s.db, &registrations,
		"SELECT * FROM registrations WHERE tournament_id = ? ORDER BY registered_at ASC, id ASC", tournamentID)
	return registrations, err
}

// ListPaidRegistrations returns the paid registrations of a tournament,
// earliest first. Equal timestamps are ordered by id.
func (s *RegistrationStore) ListPaidRegistrations(ctx context.Context, tx *sqlx.Tx, tournamentID uuid.UUID) ([]bracket.Registration, error) {
	registrations := []bracket.Registration{}
	err := selectAll(ctx, tx, &registrations, `SELECT * FROM registrations
		WHERE tournament_id = ? AND payment_status = ?
		ORDER BY registered_at ASC, id ASC`, tournamentID, bracket.PaymentPaid)
	return registrations, err
}

func (s *RegistrationStore) CountPaid(ctx context.Context, tournamentID uuid.UUID) (int, error) {
	var count int
	err := get(ctx, s.db, &count,
		"SELECT COUNT(*) FROM registrations WHERE tournament_id = ? AND payment_status = ?", tournamentID, bracket.PaymentPaid)
	return count, err
}

// PruneRegistrations deletes every registration of the tournament whose id is
// not in keepIDs and returns how many went away.
func (s *RegistrationStore) PruneRegistrations(ctx context.Context, tx *sqlx.Tx, tournamentID uuid.UUID, keepIDs []uuid.UUID) (int64, error) {
	if len(keepIDs) == 0 {
		return exec(ctx, tx, "DELETE FROM registrations WHERE tournament_id = ?", tournamentID)
	}
	return execIn(ctx, tx, "DELETE FROM registrations WHERE tournament_id = ? AND id NOT IN (?)", tournamentID, keepIDs)
}

// ConfirmRegistrations marks the given registrations confirmed. Their
// position in ids becomes the priority order, starting at 1.
func (s *RegistrationStore) ConfirmRegistrations(ctx context.Context, tx *sqlx.Tx, ids []uuid.UUID) (int64, error) {
	var confirmed int64
	for i, id := range ids {
		n, err := exec(ctx, tx, "UPDATE registrations SET status = ?, priority_order = ? WHERE id = ?",
			bracket.RegistrationConfirmed, i+1, id)
		if err != nil {
			return confirmed, err
		}
		confirmed += n
	}
	return confirmed, nil
}

// ListRoster joins the confirmed registrations with the players' ratings.
func (s *RegistrationStore) ListRoster(ctx context.Context, tx *sqlx.Tx, tournamentID uuid.UUID) ([]bracket.RosterEntry, error) {
	roster := []bracket.RosterEntry{}
	err := selectAll(ctx, tx, &roster, `SELECT r.player_id, p.username, p.rating, r.registered_at
		FROM registrations r
		JOIN players p ON p.id = r.player_id
		WHERE r.tournament_id = ? AND r.status = ?
		ORDER BY r.registered_at ASC, r.id ASC`, tournamentID, bracket.RegistrationConfirmed)
	return roster, err
}
