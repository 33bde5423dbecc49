package service

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/AdamBeresnev/cueclub/internal/bracket"
	"github.com/AdamBeresnev/cueclub/internal/realtime"
	"github.com/AdamBeresnev/cueclub/internal/utils"
	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/singleflight"
)

// ActionFailed is logged for a tournament whose decided action could not be
// applied.
const ActionFailed bracket.Action = "failed"

var awaitingRoster = []bracket.TournamentStatus{bracket.TournamentUpcoming, bracket.TournamentRegistrationOpen}

type LifecycleConfig struct {
	Policy              bracket.Policy
	Workers             int
	AutoGenerateBracket bool
	SeedingMethod       bracket.SeedingMethod
}

// ActionLog is the per tournament outcome of one lifecycle pass.
type ActionLog struct {
	TournamentID     uuid.UUID      `json:"tournament_id"`
	Name             string         `json:"name"`
	Action           bracket.Action `json:"action"`
	PaidCount        int            `json:"paid_count"`
	TargetSize       int            `json:"target_size"`
	HoursLeft        float64        `json:"hours_left"`
	Confirmed        int64          `json:"confirmed,omitempty"`
	Pruned           int64          `json:"pruned,omitempty"`
	Notified         int            `json:"notified,omitempty"`
	BracketGenerated bool           `json:"bracket_generated,omitempty"`
	Reason           string         `json:"reason,omitempty"`
	Error            string         `json:"error,omitempty"`
}

type LifecycleService struct {
	base
	cfg      LifecycleConfig
	brackets *BracketService
	inflight singleflight.Group
}

// NewLifecycleService wires the automation. brackets is only used when
// AutoGenerateBracket is set and may be nil otherwise.
func NewLifecycleService(db *sqlx.DB, stores Stores, brackets *BracketService, cfg LifecycleConfig, opts Options) *LifecycleService {
	if cfg.Policy.TargetSize <= 0 {
		cfg.Policy = bracket.DefaultPolicy()
	}
	if cfg.Workers <= 0 {
		cfg.Workers = 1
	}
	if cfg.SeedingMethod == "" {
		cfg.SeedingMethod = bracket.SeedByRating
	}
	return &LifecycleService{
		base:     newBase(db, stores, opts),
		cfg:      cfg,
		brackets: brackets,
	}
}

// RunPass evaluates every tournament still awaiting its roster. Tournaments
// are processed by a bounded pool and a failure in one never stops the
// others; it shows up as a failed entry in the returned log. Only failing to
// list the tournaments fails the pass.
func (s *LifecycleService) RunPass(ctx context.Context) ([]ActionLog, error) {
	tournaments, err := s.stores.Tournaments.ListTournamentsByStatus(ctx, awaitingRoster...)
	if err != nil {
		return nil, bracket.Dependency("list eligible tournaments", err)
	}

	now := s.now()
	logs := make([]ActionLog, len(tournaments))

	var g errgroup.Group
	g.SetLimit(s.cfg.Workers)
	for i, t := range tournaments {
		g.Go(func() error {
			logs[i] = s.process(ctx, t, now)
			return nil
		})
	}
	_ = g.Wait()

	counts := make(map[bracket.Action]int)
	for _, l := range logs {
		counts[l.Action]++
	}
	s.logger.Info("lifecycle pass finished",
		"tournaments", len(logs),
		"finalized", counts[bracket.ActionFinalize],
		"cancelled", counts[bracket.ActionCancel],
		"waiting", counts[bracket.ActionWait],
		"failed", counts[ActionFailed])
	return logs, nil
}

// process keeps two overlapping passes from working on the same tournament:
// the later caller waits for and shares the first one's outcome.
func (s *LifecycleService) process(ctx context.Context, t bracket.Tournament, now time.Time) ActionLog {
	v, _, _ := s.inflight.Do(t.ID.String(), func() (any, error) {
		return s.evaluate(ctx, t, now), nil
	})
	return v.(ActionLog)
}

func (s *LifecycleService) evaluate(ctx context.Context, t bracket.Tournament, now time.Time) ActionLog {
	target := t.RosterTarget(s.cfg.Policy.TargetSize)
	entry := ActionLog{
		TournamentID: t.ID,
		Name:         t.Name,
		TargetSize:   target,
	}

	paid, err := s.stores.Registrations.CountPaid(ctx, t.ID)
	if err != nil {
		return s.failed(entry, bracket.Dependency("count paid registrations", err))
	}

	d := bracket.Decide(bracket.Snapshot{
		TournamentID:    t.ID,
		Status:          t.Status,
		PaidCount:       paid,
		TargetSize:      target,
		RegistrationEnd: t.RegistrationEnd,
	}, now, s.cfg.Policy)

	entry.Action = d.Action
	entry.PaidCount = d.PaidCount
	entry.HoursLeft = d.HoursLeft
	entry.Reason = d.Reason

	switch d.Action {
	case bracket.ActionFinalize:
		if err := s.finalize(ctx, &t, target, now, &entry); err != nil {
			return s.failed(entry, err)
		}
		if s.cfg.AutoGenerateBracket && s.brackets != nil {
			if _, err := s.brackets.GenerateBracket(ctx, t.ID, s.cfg.SeedingMethod, false); err != nil {
				s.logger.Error("bracket generation after finalize failed", "tournament_id", t.ID, "error", err)
			} else {
				entry.BracketGenerated = true
			}
		}
	case bracket.ActionCancel:
		if err := s.cancel(ctx, &t, now, &entry); err != nil {
			return s.failed(entry, err)
		}
	}

	s.metrics.LifecycleAction(string(entry.Action))
	if entry.Action != bracket.ActionWait {
		s.logger.Info("lifecycle action applied",
			"tournament_id", t.ID,
			"action", entry.Action,
			"paid", entry.PaidCount,
			"target", entry.TargetSize,
			"confirmed", entry.Confirmed,
			"pruned", entry.Pruned,
			"notified", entry.Notified)
	}
	return entry
}

func (s *LifecycleService) failed(entry ActionLog, err error) ActionLog {
	s.logger.Error("lifecycle action failed",
		"tournament_id", entry.TournamentID,
		"action", entry.Action,
		"error", err)
	entry.Action = ActionFailed
	entry.Error = err.Error()
	s.metrics.LifecycleAction(string(ActionFailed))
	return entry
}

// finalize locks the roster to the earliest target paid registrations. All
// steps share one transaction, so a failure anywhere leaves the tournament
// exactly as it was.
func (s *LifecycleService) finalize(ctx context.Context, t *bracket.Tournament, target int, now time.Time, entry *ActionLog) error {
	tx, err := s.begin(ctx, "finalize")
	if err != nil {
		return err
	}
	defer tx.Rollback()

	paid, err := s.stores.Registrations.ListPaidRegistrations(ctx, tx, t.ID)
	if err != nil {
		return bracket.Dependency("list paid registrations", err)
	}
	if len(paid) < target {
		return fmt.Errorf("%w: %d paid registrations, %d needed", bracket.ErrInvalidState, len(paid), target)
	}

	selected := paid[:target]
	keep := make([]uuid.UUID, len(selected))
	for i, r := range selected {
		keep[i] = r.ID
	}

	pruned, err := s.stores.Registrations.PruneRegistrations(ctx, tx, t.ID, keep)
	if err != nil {
		return bracket.Dependency("prune registrations", err)
	}
	confirmed, err := s.stores.Registrations.ConfirmRegistrations(ctx, tx, keep)
	if err != nil {
		return bracket.Dependency("confirm registrations", err)
	}
	if confirmed != int64(target) {
		return fmt.Errorf("%w: confirmed %d registrations, expected %d", bracket.ErrInvalidState, confirmed, target)
	}

	closed, err := s.stores.Tournaments.SwapTournamentStatus(ctx, tx, t.ID,
		bracket.SourcesOf(bracket.TournamentRegistrationClosed), bracket.TournamentRegistrationClosed, utils.Ptr(target), now)
	if err != nil {
		return bracket.Dependency("close registration", err)
	}
	if !closed {
		return fmt.Errorf("%w: tournament is no longer awaiting its roster", bracket.ErrInvalidState)
	}

	notifications := make([]bracket.Notification, len(selected))
	for i, r := range selected {
		notifications[i] = newNotification(r.PlayerID, t, now,
			bracket.NotifyTournamentFinalized, bracket.PriorityNormal,
			"Registration confirmed",
			fmt.Sprintf("Your spot in %s is confirmed. You are number %d on the roster.", t.Name, i+1),
			map[string]any{"priority_order": i + 1})
	}
	if err := s.stores.Notifications.CreateNotifications(ctx, tx, notifications); err != nil {
		return bracket.Dependency("notify confirmed players", err)
	}

	if err := tx.Commit(); err != nil {
		return bracket.Dependency("commit finalize", err)
	}

	entry.Confirmed = confirmed
	entry.Pruned = pruned
	entry.Notified = len(notifications)
	s.publish(ctx, realtime.Event{
		Type:         realtime.EventTournamentFinalized,
		Table:        "tournaments",
		TournamentID: t.ID,
	})
	return nil
}

// cancel closes the tournament and tells every paid registrant a refund is
// due. Nobody is notified unless the status change went through.
func (s *LifecycleService) cancel(ctx context.Context, t *bracket.Tournament, now time.Time, entry *ActionLog) error {
	tx, err := s.begin(ctx, "cancel")
	if err != nil {
		return err
	}
	defer tx.Rollback()

	cancelled, err := s.stores.Tournaments.SwapTournamentStatus(ctx, tx, t.ID, awaitingRoster,
		bracket.TournamentCancelled, nil, now)
	if err != nil {
		return bracket.Dependency("cancel tournament", err)
	}
	if !cancelled {
		return fmt.Errorf("%w: tournament is no longer awaiting its roster", bracket.ErrInvalidState)
	}

	paid, err := s.stores.Registrations.ListPaidRegistrations(ctx, tx, t.ID)
	if err != nil {
		return bracket.Dependency("list paid registrations", err)
	}
	notifications := make([]bracket.Notification, len(paid))
	for i, r := range paid {
		notifications[i] = newNotification(r.PlayerID, t, now,
			bracket.NotifyTournamentCancelled, bracket.PriorityHigh,
			"Tournament cancelled",
			fmt.Sprintf("%s did not reach enough paid players and has been cancelled. Your entry fee will be refunded.", t.Name),
			map[string]any{"refund_due": true, "entry_fee": t.EntryFee})
	}
	if err := s.stores.Notifications.CreateNotifications(ctx, tx, notifications); err != nil {
		return bracket.Dependency("notify paid players", err)
	}

	if err := tx.Commit(); err != nil {
		return bracket.Dependency("commit cancel", err)
	}

	entry.Notified = len(notifications)
	s.publish(ctx, realtime.Event{
		Type:         realtime.EventTournamentCancelled,
		Table:        "tournaments",
		TournamentID: t.ID,
	})
	return nil
}

func newNotification(userID uuid.UUID, t *bracket.Tournament, now time.Time, kind bracket.NotificationType, priority bracket.NotificationPriority, title, message string, extra map[string]any) bracket.Notification {
	metadata := map[string]any{
		"tournament_id":   t.ID,
		"tournament_name": t.Name,
	}
	for k, v := range extra {
		metadata[k] = v
	}
	raw, err := json.Marshal(metadata)
	if err != nil {
		raw = []byte("{}")
	}
	return bracket.Notification{
		ID:        uuid.New(),
		UserID:    userID,
		Type:      kind,
		Title:     title,
		Message:   message,
		Priority:  priority,
		Metadata:  string(raw),
		CreatedAt: now,
	}
}
