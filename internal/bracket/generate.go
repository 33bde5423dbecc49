package bracket

import (
	"fmt"
	"math"
	"sort"
	"time"

	"github.com/AdamBeresnev/cueclub/internal/utils"
	"github.com/google/uuid"
)

// Generated is a complete single elimination bracket ready to be persisted.
type Generated struct {
	Bracket Bracket
	Seeds   []SeedEntry
	Matches []Match
}

// Gets the nearest power of 2 while rounding up, so with input 5 it returns 8 and so on
func BracketSize(count int) int {
	if count <= 0 {
		return 0
	}

	// Log2 -> Ceil -> 2^^log2 to round up
	log2 := math.Ceil(math.Log2(float64(count)))
	return int(math.Pow(2, log2))
}

func TotalRounds(bracketSize int) int {
	if bracketSize <= 1 {
		return 0
	}
	return int(math.Log2(float64(bracketSize)))
}

// Round1Pairs returns zero based seed indexes in bracket order. Every pair is
// seed i against seed N+1-i, and the order keeps the top two seeds apart
// until the final.
func Round1Pairs(bracketSize int) [][2]int {
	if bracketSize == 0 {
		return [][2]int{}
	}

	rounds := []int{0}
	for len(rounds) < bracketSize {
		var nextRound []int
		currentCount := len(rounds) * 2

		for _, seed := range rounds {
			nextRound = append(nextRound, seed)
			nextRound = append(nextRound, (currentCount-1)-seed)
		}
		rounds = nextRound
	}

	pairs := make([][2]int, 0, bracketSize/2)
	for i := 0; i < len(rounds); i += 2 {
		pairs = append(pairs, [2]int{rounds[i], rounds[i+1]})
	}

	return pairs
}

// OrderRoster sorts a copy of the roster into seed order. Ties always fall
// back to registration time and then player id so the order is deterministic.
func OrderRoster(roster []RosterEntry, method SeedingMethod) ([]RosterEntry, error) {
	if !method.Valid() {
		return nil, fmt.Errorf("%w: %q", ErrUnknownSeeding, method)
	}

	ordered := make([]RosterEntry, len(roster))
	copy(ordered, roster)

	sort.SliceStable(ordered, func(i, j int) bool {
		a, b := ordered[i], ordered[j]
		if method == SeedByRating && a.Rating != b.Rating {
			return a.Rating > b.Rating
		}
		if !a.RegisteredAt.Equal(b.RegisteredAt) {
			return a.RegisteredAt.Before(b.RegisteredAt)
		}
		return a.PlayerID.String() < b.PlayerID.String()
	})
	return ordered, nil
}

func validateRoster(roster []RosterEntry) error {
	if len(roster) == 0 {
		return fmt.Errorf("%w: roster is empty", ErrInvalidRoster)
	}
	if len(roster) == 1 {
		return fmt.Errorf("%w: a bracket needs at least two players", ErrInvalidRoster)
	}
	seen := make(map[uuid.UUID]struct{}, len(roster))
	for _, e := range roster {
		if e.PlayerID == uuid.Nil {
			return fmt.Errorf("%w: roster entry without a player", ErrInvalidRoster)
		}
		if _, dup := seen[e.PlayerID]; dup {
			return fmt.Errorf("%w: player %s appears twice", ErrInvalidRoster, e.PlayerID)
		}
		seen[e.PlayerID] = struct{}{}
	}
	return nil
}

// Seed assigns seed positions 1..N where N is the bracket size. Positions past
// the roster are byes, so the top seeds are the ones drawn against them.
func Seed(tournamentID uuid.UUID, ordered []RosterEntry) []SeedEntry {
	size := BracketSize(len(ordered))
	seeds := make([]SeedEntry, size)
	for i := range seeds {
		seeds[i] = SeedEntry{TournamentID: tournamentID, SeedPosition: i + 1}
		if i < len(ordered) {
			seeds[i].PlayerID = utils.Ptr(ordered[i].PlayerID)
			seeds[i].Rating = utils.Ptr(ordered[i].Rating)
		}
	}
	return seeds
}

// Skeleton creates every match of a single elimination bracket with empty
// slots, each one linked to the match its winner feeds.
func Skeleton(tournamentID uuid.UUID, bracketSize int, now time.Time) []Match {
	var matches []Match

	totalRounds := TotalRounds(bracketSize)
	nextRoundMatchIDs := make(map[int]uuid.UUID)

	// Significantly easier to start from the last round and work backwards
	for r := totalRounds; r >= 1; r-- {
		matchesInCurrentRound := 1 << (totalRounds - r)
		currentRoundMatchIDs := make(map[int]uuid.UUID)

		for i := 0; i < matchesInCurrentRound; i++ {
			matchID := uuid.New()
			matchNumber := i + 1

			m := Match{
				ID:           matchID,
				TournamentID: tournamentID,
				RoundNumber:  r,
				MatchNumber:  matchNumber,
				Status:       MatchScheduled,
				CreatedAt:    now,
				UpdatedAt:    now,
			}

			if r < totalRounds {
				parentNumber, slot := FeedTarget(matchNumber)
				parentID := nextRoundMatchIDs[parentNumber]
				m.NextMatchID = &parentID
				m.NextSlot = utils.Ptr(slot)
			}

			matches = append(matches, m)
			currentRoundMatchIDs[matchNumber] = matchID
		}
		nextRoundMatchIDs = currentRoundMatchIDs
	}

	sort.Slice(matches, func(i, j int) bool {
		if matches[i].RoundNumber != matches[j].RoundNumber {
			return matches[i].RoundNumber < matches[j].RoundNumber
		}
		return matches[i].MatchNumber < matches[j].MatchNumber
	})
	return matches
}

// Generate builds seeds, matches and metadata for a confirmed roster. Round 1
// matches drawn against a bye are already completed and their player sits in
// the round 2 slot.
func Generate(tournamentID uuid.UUID, roster []RosterEntry, method SeedingMethod, now time.Time) (*Generated, error) {
	if err := validateRoster(roster); err != nil {
		return nil, err
	}
	ordered, err := OrderRoster(roster, method)
	if err != nil {
		return nil, err
	}

	seeds := Seed(tournamentID, ordered)
	size := len(seeds)
	matches := Skeleton(tournamentID, size, now)

	byID := make(map[uuid.UUID]*Match, len(matches))
	for i := range matches {
		byID[matches[i].ID] = &matches[i]
	}

	// Round 1 matches come first after sorting.
	for i, pair := range Round1Pairs(size) {
		m := &matches[i]
		m.Player1ID = seeds[pair[0]].PlayerID
		m.Player2ID = seeds[pair[1]].PlayerID

		if m.Ready() {
			continue
		}
		if m.Player1ID == nil && m.Player2ID == nil {
			return nil, fmt.Errorf("%w: round 1 match %d has two byes", ErrInvalidRoster, m.MatchNumber)
		}
		if err := ResolveBye(m, now); err != nil {
			return nil, err
		}
		if m.NextMatchID != nil {
			if next, ok := byID[*m.NextMatchID]; ok {
				SeatPlayer(next, *m.NextSlot, *m.WinnerID)
			}
		}
	}

	return &Generated{
		Bracket: Bracket{
			TournamentID:  tournamentID,
			BracketSize:   size,
			TotalRounds:   TotalRounds(size),
			SeedingMethod: method,
			GeneratedAt:   now,
		},
		Seeds:   seeds,
		Matches: matches,
	}, nil
}

// ResolveBye completes a match that has exactly one player in favour of that
// player.
func ResolveBye(m *Match, now time.Time) error {
	var winner *uuid.UUID
	switch {
	case m.Player1ID != nil && m.Player2ID == nil:
		winner = m.Player1ID
	case m.Player1ID == nil && m.Player2ID != nil:
		winner = m.Player2ID
	default:
		return fmt.Errorf("%w: match %d/%d is not a bye", ErrInvalidState, m.RoundNumber, m.MatchNumber)
	}
	m.IsBye = true
	m.Status = MatchCompleted
	m.WinnerID = utils.Ptr(*winner)
	m.CompletedAt = utils.Ptr(now)
	return nil
}

func SeatPlayer(m *Match, slot int, playerID uuid.UUID) {
	id := playerID
	switch slot {
	case 1:
		m.Player1ID = &id
	case 2:
		m.Player2ID = &id
	}
}
