package bracket

import (
	"time"

	"github.com/google/uuid"
)

type SeedingMethod string

const (
	SeedByRating       SeedingMethod = "rating"
	SeedByRegistration SeedingMethod = "registration"
)

func (m SeedingMethod) Valid() bool {
	return m == SeedByRating || m == SeedByRegistration
}

// SeedEntry is one slot of the seed list. A nil PlayerID is a bye.
type SeedEntry struct {
	TournamentID uuid.UUID  `db:"tournament_id" json:"tournament_id"`
	SeedPosition int        `db:"seed_position" json:"seed_position"`
	PlayerID     *uuid.UUID `db:"player_id" json:"player_id"`
	Rating       *int       `db:"rating" json:"rating,omitempty"`
}

func (s SeedEntry) IsBye() bool {
	return s.PlayerID == nil
}

// Bracket describes the shape of a generated bracket.
type Bracket struct {
	TournamentID  uuid.UUID     `db:"tournament_id" json:"tournament_id"`
	BracketSize   int           `db:"bracket_size" json:"bracket_size"`
	TotalRounds   int           `db:"total_rounds" json:"total_rounds"`
	SeedingMethod SeedingMethod `db:"seeding_method" json:"seeding_method"`
	GeneratedAt   time.Time     `db:"generated_at" json:"generated_at"`
}
