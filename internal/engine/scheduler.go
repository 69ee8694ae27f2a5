package engine

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/ksingla1885/Mindora-sub003/internal/model"
)

// SaveFunc persists a full progress snapshot. Implementations must be
// idempotent with last-write-wins semantics, which is safe because every
// snapshot is self-consistent rather than incremental.
type SaveFunc func(ctx context.Context, snap model.ProgressSnapshot) error

// SchedulerConfig tunes the autosave policy.
type SchedulerConfig struct {
	// Debounce is the quiet period after a mutation before a save fires.
	Debounce time.Duration
	// MinInterval is the floor between consecutive saves under continuous
	// mutation.
	MinInterval time.Duration
	// Backstop is the cadence of the unconditional periodic save.
	Backstop time.Duration
}

// DefaultSchedulerConfig returns the production autosave policy.
func DefaultSchedulerConfig() SchedulerConfig {
	return SchedulerConfig{
		Debounce:    1500 * time.Millisecond,
		MinInterval: 5 * time.Second,
		Backstop:    45 * time.Second,
	}
}

func (c *SchedulerConfig) withDefaults() {
	def := DefaultSchedulerConfig()
	if c.Debounce <= 0 {
		c.Debounce = def.Debounce
	}
	if c.MinInterval <= 0 {
		c.MinInterval = def.MinInterval
	}
	if c.Backstop <= 0 {
		c.Backstop = def.Backstop
	}
}

// Scheduler coalesces answer-store mutations into throttled persistence
// calls. All saves execute inline in the Run loop goroutine, so saves for one
// attempt are strictly serialized: a newer snapshot can never be overtaken on
// the wire by an older one, and Flush naturally waits out any in-flight save.
type Scheduler struct {
	cfg      SchedulerConfig
	save     SaveFunc
	snapshot func() model.ProgressSnapshot
	log      zerolog.Logger

	// OnSaved and OnSaveFailed are optional observers for surfacing save
	// state to the UI layer.
	OnSaved      func(at time.Time)
	OnSaveFailed func(err error)

	kick  chan struct{}
	flush chan chan error

	mu          sync.Mutex
	lastSavedAt time.Time
}

// NewScheduler builds a scheduler around a snapshot source and a destination.
func NewScheduler(cfg SchedulerConfig, snapshot func() model.ProgressSnapshot, save SaveFunc, log zerolog.Logger) *Scheduler {
	cfg.withDefaults()
	return &Scheduler{
		cfg:      cfg,
		save:     save,
		snapshot: snapshot,
		log:      log.With().Str("component", "autosave_scheduler").Logger(),
		kick:     make(chan struct{}, 1),
		flush:    make(chan chan error),
	}
}

// Notify signals that the store mutated. Never blocks; rapid notifications
// coalesce.
func (s *Scheduler) Notify() {
	select {
	case s.kick <- struct{}{}:
	default:
	}
}

// LastSavedAt returns the time of the last successful save, zero if none.
func (s *Scheduler) LastSavedAt() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastSavedAt
}

// Flush forces a save of the current snapshot and blocks until it completes
// or ctx expires. The submission coordinator calls this before issuing the
// terminal submit so the persisted snapshot is never older than the user's
// last edit.
func (s *Scheduler) Flush(ctx context.Context) error {
	done := make(chan error, 1)
	select {
	case s.flush <- done:
	case <-ctx.Done():
		return ctx.Err()
	}
	select {
	case err := <-done:
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Run owns the save loop until ctx is cancelled. On cancellation it attempts
// one final save of any unsaved state. Call in a goroutine.
func (s *Scheduler) Run(ctx context.Context) {
	backstop := time.NewTicker(s.cfg.Backstop)
	defer backstop.Stop()

	debounce := time.NewTimer(s.cfg.Debounce)
	stopTimer(debounce)

	dirty := false
	var lastAttempt time.Time
	// saveDeadline is the absolute time the armed debounce timer fires; zero
	// when no save is pending.
	var saveDeadline time.Time

	for {
		select {
		case <-ctx.Done():
			if dirty {
				// Teardown still gets one best-effort save.
				s.doSave(context.Background(), &lastAttempt)
			}
			return

		case <-s.kick:
			dirty = true
			// The deadline for this dirty period is the later of "quiet
			// period elapsed" and "min interval since the last save attempt".
			// Subsequent kicks may only pull it earlier, never push it out:
			// re-arming on every mutation would starve the timer under
			// continuous editing and leave the backstop as the only save.
			target := time.Now().Add(s.cfg.Debounce)
			if floor := lastAttempt.Add(s.cfg.MinInterval); floor.After(target) {
				target = floor
			}
			if saveDeadline.IsZero() || target.Before(saveDeadline) {
				saveDeadline = target
				stopTimer(debounce)
				debounce.Reset(time.Until(target))
			}

		case <-debounce.C:
			saveDeadline = time.Time{}
			if dirty && s.doSave(ctx, &lastAttempt) {
				dirty = false
			}

		case <-backstop.C:
			if dirty && s.doSave(ctx, &lastAttempt) {
				dirty = false
			}

		case done := <-s.flush:
			var err error
			if dirty {
				if err = s.doSaveErr(ctx, &lastAttempt); err == nil {
					dirty = false
				}
			}
			done <- err
		}
	}
}

// doSave persists the current snapshot and reports success. A failed save is
// logged as a warning and retried by the next cycle with a fresh snapshot;
// local state is never rolled back.
func (s *Scheduler) doSave(ctx context.Context, lastAttempt *time.Time) bool {
	return s.doSaveErr(ctx, lastAttempt) == nil
}

func (s *Scheduler) doSaveErr(ctx context.Context, lastAttempt *time.Time) error {
	*lastAttempt = time.Now()
	snap := s.snapshot()

	if err := s.save(ctx, snap); err != nil {
		s.log.Warn().Err(err).Msg("Autosave failed, will retry with next snapshot")
		if s.OnSaveFailed != nil {
			s.OnSaveFailed(err)
		}
		return err
	}

	now := time.Now()
	s.mu.Lock()
	s.lastSavedAt = now
	s.mu.Unlock()

	s.log.Debug().Int("answers", len(snap.Answers)).Msg("Progress saved")
	if s.OnSaved != nil {
		s.OnSaved(now)
	}
	return nil
}

func stopTimer(t *time.Timer) {
	if !t.Stop() {
		select {
		case <-t.C:
		default:
		}
	}
}
