package bracket

import (
	"time"

	"github.com/google/uuid"
)

type Action string

const (
	ActionWait     Action = "waiting"
	ActionFinalize Action = "finalized"
	ActionCancel   Action = "cancelled"
)

// Policy holds the knobs of the registration decision rule.
type Policy struct {
	TargetSize      int
	EarlyLockWindow time.Duration
}

func DefaultPolicy() Policy {
	return Policy{TargetSize: 16, EarlyLockWindow: 24 * time.Hour}
}

// Snapshot is everything the decision rule looks at.
type Snapshot struct {
	TournamentID    uuid.UUID
	Status          TournamentStatus
	PaidCount       int
	TargetSize      int
	RegistrationEnd time.Time
}

type Decision struct {
	Action    Action
	PaidCount int
	Target    int
	HoursLeft float64
	Reason    string
}

// Decide applies the registration rule in priority order:
//
//  1. finalize when the target is met and the window has closed, or when the
//     target is met and the window closes within the early lock window;
//  2. cancel when the window has closed short of the target;
//  3. otherwise wait.
//
// Tournaments that are no longer awaiting a roster always wait.
func Decide(s Snapshot, now time.Time, p Policy) Decision {
	target := s.TargetSize
	if target <= 0 {
		target = p.TargetSize
	}
	left := s.RegistrationEnd.Sub(now)
	d := Decision{
		Action:    ActionWait,
		PaidCount: s.PaidCount,
		Target:    target,
		HoursLeft: left.Hours(),
	}

	if !s.Status.AwaitingRoster() {
		d.Reason = "status " + string(s.Status) + " is not eligible"
		return d
	}

	full := s.PaidCount >= target
	closed := now.After(s.RegistrationEnd)

	switch {
	case full && closed:
		d.Action = ActionFinalize
		d.Reason = "registration closed with a full roster"
	case full && left > 0 && left <= p.EarlyLockWindow:
		d.Action = ActionFinalize
		d.Reason = "roster full and registration closes soon"
	case closed:
		d.Action = ActionCancel
		d.Reason = "registration closed short of the target"
	default:
		d.Reason = "registration still open"
	}
	return d
}
