package engine

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/ksingla1885/Mindora-sub003/internal/model"
)

// Backend is the set of collaborator operations the session controller
// consumes. The attempt service implements it server-side; tests use fakes.
type Backend interface {
	GetTest(ctx context.Context, testID uuid.UUID) (*model.Test, error)
	GetOrCreateAttempt(ctx context.Context, testID uuid.UUID, userID int) (*model.Attempt, error)
	SaveProgress(ctx context.Context, attemptID uuid.UUID, snap model.ProgressSnapshot) error
	// Submit must be idempotent per attempt: a repeat call returns the
	// previously computed result without rescoring.
	Submit(ctx context.Context, attemptID uuid.UUID, answers map[uuid.UUID]model.Answer, elapsedSeconds int) (*model.SubmissionResult, error)
}

// State is the session controller state machine:
// Loading → {Error | Resuming | Starting} → InProgress → Submitting →
// {Submitted | Error}. An already-submitted attempt short-circuits from
// Loading to Submitted.
type State string

const (
	StateLoading    State = "loading"
	StateStarting   State = "starting"
	StateResuming   State = "resuming"
	StateInProgress State = "in_progress"
	StateSubmitting State = "submitting"
	StateSubmitted  State = "submitted"
	StateError      State = "error"
)

// EventKind tags session events pushed to the transport layer.
type EventKind string

const (
	EventStarted          EventKind = "started"
	EventResumed          EventKind = "resumed"
	EventAlreadySubmitted EventKind = "already_submitted"
	EventSaved            EventKind = "saved"
	EventSaveFailed       EventKind = "save_failed"
	EventThreshold        EventKind = "threshold"
	EventTimeUp           EventKind = "time_up"
	EventSubmitted        EventKind = "submitted"
)

// Event is a session notification. Fields are populated per kind.
type Event struct {
	Kind             EventKind               `json:"kind"`
	RemainingSeconds int                     `json:"remaining_seconds,omitempty"`
	SavedAt          time.Time               `json:"saved_at,omitzero"`
	Error            string                  `json:"error,omitempty"`
	Result           *model.SubmissionResult `json:"result,omitempty"`
}

// ControllerConfig tunes a session controller.
type ControllerConfig struct {
	Scheduler SchedulerConfig
	// Thresholds overrides the clock warning marks; nil uses the default.
	Thresholds []int
	// SubmitFlushTimeout bounds the final blocking flush before submit.
	SubmitFlushTimeout time.Duration
	// Now injects the time source for the clock. Tests use this.
	Now func() time.Time
	// Tick overrides the clock cadence. Tests use this.
	Tick time.Duration
}

const defaultSubmitFlushTimeout = 10 * time.Second

// Controller orchestrates one attempt session: it loads or creates the
// attempt, wires the clock, store and scheduler together, accepts mutations
// while in progress and performs the terminal idempotent submit.
type Controller struct {
	backend Backend
	testID  uuid.UUID
	userID  int
	cfg     ControllerConfig
	log     zerolog.Logger

	mu      sync.Mutex
	state   State
	test    *model.Test
	attempt *model.Attempt
	result  *model.SubmissionResult

	// submitMu serializes concurrent Submit calls so the second one observes
	// the terminal state and returns the cached result.
	submitMu sync.Mutex

	store *Store
	clock *Clock
	sched *Scheduler

	events    chan Event
	cancelRun context.CancelFunc
}

// NewController builds a controller for one (user, test) session.
func NewController(backend Backend, testID uuid.UUID, userID int, cfg ControllerConfig, log zerolog.Logger) *Controller {
	if cfg.SubmitFlushTimeout <= 0 {
		cfg.SubmitFlushTimeout = defaultSubmitFlushTimeout
	}
	return &Controller{
		backend: backend,
		testID:  testID,
		userID:  userID,
		cfg:     cfg,
		state:   StateLoading,
		log: log.With().
			Str("component", "session_controller").
			Str("test_id", testID.String()).
			Int("user_id", userID).
			Logger(),
		events: make(chan Event, 32),
	}
}

// Start loads the test and attempt and enters the session. Returns an error
// on load failure (terminal — the caller surfaces it and lets the user
// retry). After a successful Start the controller is either InProgress or,
// for an already-submitted attempt, terminally Submitted.
func (c *Controller) Start(ctx context.Context) error {
	test, err := c.backend.GetTest(ctx, c.testID)
	if err != nil {
		c.setState(StateError)
		return fmt.Errorf("load test: %w", err)
	}

	attempt, err := c.backend.GetOrCreateAttempt(ctx, c.testID, c.userID)
	if err != nil {
		c.setState(StateError)
		return fmt.Errorf("load attempt: %w", err)
	}

	c.mu.Lock()
	c.test = test
	c.attempt = attempt
	c.mu.Unlock()

	if attempt.Status == model.AttemptStatusSubmitted {
		// Terminal already-submitted state: no re-entry into InProgress.
		c.mu.Lock()
		c.state = StateSubmitted
		c.result = attempt.Result
		c.mu.Unlock()
		c.emit(Event{Kind: EventAlreadySubmitted, Result: attempt.Result})
		return nil
	}

	resuming := len(attempt.Answers) > 0 || len(attempt.FlaggedQuestionIDs) > 0 || attempt.CurrentQuestionIndex > 0
	if resuming {
		c.setState(StateResuming)
	} else {
		c.setState(StateStarting)
	}

	c.store = NewStore()
	c.store.Restore(attempt.Answers, attempt.FlaggedQuestionIDs, attempt.CurrentQuestionIndex)

	clockOpts := []ClockOption{}
	if c.cfg.Thresholds != nil {
		clockOpts = append(clockOpts, WithThresholds(c.cfg.Thresholds))
	}
	if c.cfg.Now != nil {
		clockOpts = append(clockOpts, WithNow(c.cfg.Now))
	}
	if c.cfg.Tick > 0 {
		clockOpts = append(clockOpts, WithTick(c.cfg.Tick))
	}
	c.clock = NewClock(attempt.StartedAt, test.Duration(), clockOpts...)
	c.clock.OnThreshold = func(remaining int) {
		c.emit(Event{Kind: EventThreshold, RemainingSeconds: remaining})
	}
	c.clock.OnTimeUp = func() {
		c.emit(Event{Kind: EventTimeUp})
		go c.submitOnDeadline()
	}

	attemptID := attempt.ID
	c.sched = NewScheduler(
		c.cfg.Scheduler,
		func() model.ProgressSnapshot { return c.store.Snapshot(c.clock.ElapsedSeconds()) },
		func(ctx context.Context, snap model.ProgressSnapshot) error {
			return c.backend.SaveProgress(ctx, attemptID, snap)
		},
		c.log,
	)
	c.sched.OnSaved = func(at time.Time) { c.emit(Event{Kind: EventSaved, SavedAt: at}) }
	c.sched.OnSaveFailed = func(err error) { c.emit(Event{Kind: EventSaveFailed, Error: err.Error()}) }
	c.store.SetObserver(c.sched.Notify)

	// The session outlives the Start request; teardown happens in Close.
	runCtx, cancel := context.WithCancel(context.Background())
	c.cancelRun = cancel
	go c.sched.Run(runCtx)
	go c.clock.Run(runCtx)

	c.setState(StateInProgress)
	if resuming {
		c.emit(Event{Kind: EventResumed, RemainingSeconds: c.clock.RemainingSeconds()})
	} else {
		c.emit(Event{Kind: EventStarted, RemainingSeconds: c.clock.RemainingSeconds()})
	}
	return nil
}

// SetAnswer records an answer. Rejected once the attempt is submitted.
func (c *Controller) SetAnswer(questionID uuid.UUID, ans model.Answer) error {
	if err := c.requireInProgress(); err != nil {
		return err
	}
	c.store.SetAnswer(questionID, ans)
	return nil
}

// ToggleFlag flips the review flag on a question.
func (c *Controller) ToggleFlag(questionID uuid.UUID) (bool, error) {
	if err := c.requireInProgress(); err != nil {
		return false, err
	}
	return c.store.ToggleFlag(questionID), nil
}

// Navigate records the current question index.
func (c *Controller) Navigate(index int) error {
	if err := c.requireInProgress(); err != nil {
		return err
	}
	c.store.SetCurrentIndex(index)
	return nil
}

// Submit is the terminal submission flow: flush the scheduler (awaited, with
// timeout), issue the canonical submit, then stop the clock. Repeat calls
// return the stored result. On failure the session stays InProgress so the
// user can retry; the retry relies on the backend's idempotency guarantee.
func (c *Controller) Submit(ctx context.Context) (*model.SubmissionResult, error) {
	c.submitMu.Lock()
	defer c.submitMu.Unlock()

	c.mu.Lock()
	switch c.state {
	case StateSubmitted:
		res := c.result
		c.mu.Unlock()
		return res, nil
	case StateInProgress:
		c.state = StateSubmitting
		c.mu.Unlock()
	default:
		st := c.state
		c.mu.Unlock()
		return nil, fmt.Errorf("%w (state %s)", ErrNotInProgress, st)
	}

	// The final save must complete before the submit call so the persisted
	// snapshot is never older than the last edit. A flush failure is not
	// fatal: the submit below carries the authoritative in-memory answers.
	flushCtx, cancel := context.WithTimeout(ctx, c.cfg.SubmitFlushTimeout)
	if err := c.sched.Flush(flushCtx); err != nil {
		c.log.Warn().Err(err).Msg("Final flush before submit failed")
	}
	cancel()

	res, err := c.backend.Submit(ctx, c.attempt.ID, c.store.Answers(), c.clock.ElapsedSeconds())
	if err != nil {
		// Ambiguous failures must not mark the attempt submitted locally;
		// a retried submit resolves against the server's idempotent state.
		c.setState(StateInProgress)
		return nil, fmt.Errorf("submit attempt: %w", err)
	}

	c.mu.Lock()
	c.state = StateSubmitted
	c.result = res
	c.mu.Unlock()

	c.clock.Stop()
	c.emit(Event{Kind: EventSubmitted, Result: res})
	c.log.Info().Int("score", res.Score).Int("correct", res.CorrectCount).Msg("Attempt submitted")
	return res, nil
}

// Close tears the session down: best-effort final save if still in progress,
// then cancel timers. Safe to call in any state.
func (c *Controller) Close() {
	c.mu.Lock()
	st := c.state
	sched := c.sched
	c.mu.Unlock()

	if st == StateInProgress && sched != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		if err := sched.Flush(ctx); err != nil {
			c.log.Warn().Err(err).Msg("Final save on teardown failed")
		}
		cancel()
	}
	if c.cancelRun != nil {
		c.cancelRun()
	}
}

// State returns the current state.
func (c *Controller) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Result returns the stored submission result, nil until submitted.
func (c *Controller) Result() *model.SubmissionResult {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.result
}

// Attempt returns the loaded attempt record.
func (c *Controller) Attempt() *model.Attempt {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.attempt
}

// RemainingSeconds exposes the clock to the transport layer.
func (c *Controller) RemainingSeconds() int {
	if c.clock == nil {
		return 0
	}
	return c.clock.RemainingSeconds()
}

// Events is the stream of session notifications for the transport layer.
func (c *Controller) Events() <-chan Event {
	return c.events
}

func (c *Controller) requireInProgress() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	switch c.state {
	case StateInProgress:
		return nil
	case StateSubmitted, StateSubmitting:
		return ErrAttemptSubmitted
	default:
		return ErrNotInProgress
	}
}

// submitOnDeadline runs the submit flow when the clock fires timeUp.
func (c *Controller) submitOnDeadline() {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if _, err := c.Submit(ctx); err != nil {
		c.log.Error().Err(err).Msg("Deadline auto-submit failed")
	}
}

func (c *Controller) setState(s State) {
	c.mu.Lock()
	c.state = s
	c.mu.Unlock()
}

// terminal reports whether an event ends the session from the client's point
// of view. These must reach the transport even under backpressure; a client
// that misses its result would be stuck polling.
func (k EventKind) terminal() bool {
	switch k {
	case EventSubmitted, EventAlreadySubmitted, EventTimeUp:
		return true
	}
	return false
}

func (c *Controller) emit(ev Event) {
	select {
	case c.events <- ev:
		return
	default:
	}

	if !ev.Kind.terminal() {
		c.log.Debug().Str("kind", string(ev.Kind)).Msg("Event buffer full, dropping")
		return
	}

	// Shed the oldest buffered notification until the terminal event fits.
	// Progress events are reconstructible from REST state; the result is not.
	for {
		select {
		case c.events <- ev:
			return
		default:
		}
		select {
		case old := <-c.events:
			c.log.Debug().Str("kind", string(old.Kind)).Msg("Event buffer full, shedding for terminal event")
		default:
		}
	}
}
