package engine

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/ksingla1885/Mindora-sub003/internal/model"
)

// fakeBackend implements Backend in memory and records the call order.
type fakeBackend struct {
	mu      sync.Mutex
	test    *model.Test
	attempt *model.Attempt

	calls       []string
	submitErr   error
	submitCount int
	lastSaved   *model.ProgressSnapshot
	result      *model.SubmissionResult
}

func (f *fakeBackend) GetTest(ctx context.Context, testID uuid.UUID) (*model.Test, error) {
	f.record("get_test")
	if f.test == nil {
		return nil, errors.New("test not found")
	}
	return f.test, nil
}

func (f *fakeBackend) GetOrCreateAttempt(ctx context.Context, testID uuid.UUID, userID int) (*model.Attempt, error) {
	f.record("get_or_create")
	if f.attempt == nil {
		f.attempt = &model.Attempt{
			ID:        uuid.New(),
			TestID:    testID,
			UserID:    userID,
			StartedAt: time.Now(),
			Status:    model.AttemptStatusInProgress,
		}
	}
	return f.attempt, nil
}

func (f *fakeBackend) SaveProgress(ctx context.Context, attemptID uuid.UUID, snap model.ProgressSnapshot) error {
	f.record("save")
	f.mu.Lock()
	f.lastSaved = &snap
	f.mu.Unlock()
	return nil
}

func (f *fakeBackend) Submit(ctx context.Context, attemptID uuid.UUID, answers map[uuid.UUID]model.Answer, elapsedSeconds int) (*model.SubmissionResult, error) {
	f.record("submit")
	f.mu.Lock()
	defer f.mu.Unlock()
	f.submitCount++
	if f.submitErr != nil {
		err := f.submitErr
		f.submitErr = nil
		return nil, err
	}
	if f.result == nil {
		correct := 0
		for _, a := range answers {
			if a.Value == "B" {
				correct++
			}
		}
		f.result = &model.SubmissionResult{
			AttemptID:      attemptID,
			CorrectCount:   correct,
			TotalQuestions: len(f.test.Questions),
			Score:          100 * correct / max(len(f.test.Questions), 1),
		}
	}
	return f.result, nil
}

func (f *fakeBackend) record(call string) {
	f.mu.Lock()
	f.calls = append(f.calls, call)
	f.mu.Unlock()
}

func (f *fakeBackend) callSeq() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.calls...)
}

func newTestController(b *fakeBackend) *Controller {
	if b.test == nil {
		b.test = &model.Test{
			ID:              uuid.New(),
			Title:           "unit",
			DurationMinutes: 30,
			PassingScore:    70,
			Questions: []model.Question{
				{ID: uuid.New(), QuestionType: model.QuestionTypeMCQ, CorrectAnswer: "B", Marks: 1, Difficulty: model.DifficultyMedium},
			},
		}
	}
	cfg := ControllerConfig{
		Scheduler: SchedulerConfig{
			// Quiet scheduler: only explicit flushes save.
			Debounce:    time.Hour,
			MinInterval: time.Hour,
			Backstop:    time.Hour,
		},
		SubmitFlushTimeout: time.Second,
		Tick:               time.Hour, // clock driven manually where needed
	}
	return NewController(b, b.test.ID, 7, cfg, zerolog.Nop())
}

func waitEvent(t *testing.T, c *Controller, kind EventKind) Event {
	t.Helper()
	deadline := time.After(2 * time.Second)
	for {
		select {
		case ev := <-c.Events():
			if ev.Kind == kind {
				return ev
			}
		case <-deadline:
			t.Fatalf("timed out waiting for %s event", kind)
		}
	}
}

func TestController_StartNewAttempt(t *testing.T) {
	b := &fakeBackend{}
	c := newTestController(b)
	defer c.Close()

	if err := c.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}
	if c.State() != StateInProgress {
		t.Fatalf("state = %s, want in_progress", c.State())
	}
	waitEvent(t, c, EventStarted)
}

func TestController_ResumeRestoresStore(t *testing.T) {
	qID := uuid.New()
	b := &fakeBackend{}
	b.test = &model.Test{
		ID: uuid.New(), DurationMinutes: 30, PassingScore: 70,
		Questions: []model.Question{{ID: qID, QuestionType: model.QuestionTypeMCQ, CorrectAnswer: "B", Marks: 1}},
	}
	b.attempt = &model.Attempt{
		ID: uuid.New(), TestID: b.test.ID, UserID: 7,
		StartedAt: time.Now().Add(-5 * time.Minute),
		Status:    model.AttemptStatusInProgress,
		Answers: map[uuid.UUID]model.Answer{
			qID: {Type: model.QuestionTypeMCQ, Value: "B"},
		},
		CurrentQuestionIndex: 1,
	}

	c := newTestController(b)
	defer c.Close()
	if err := c.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}
	ev := waitEvent(t, c, EventResumed)
	if ev.RemainingSeconds > 25*60 || ev.RemainingSeconds < 24*60 {
		t.Errorf("resumed remaining = %ds, want ≈25min recomputed from startedAt", ev.RemainingSeconds)
	}

	res, err := c.Submit(context.Background())
	if err != nil {
		t.Fatalf("Submit: %v", err)
	}
	if res.CorrectCount != 1 {
		t.Fatalf("restored answer not submitted: %+v", res)
	}
}

func TestController_AlreadySubmittedIsTerminal(t *testing.T) {
	stored := &model.SubmissionResult{Score: 80, CorrectCount: 4, TotalQuestions: 5}
	b := &fakeBackend{}
	b.test = &model.Test{ID: uuid.New(), DurationMinutes: 30}
	b.attempt = &model.Attempt{
		ID: uuid.New(), TestID: b.test.ID, UserID: 7,
		StartedAt: time.Now().Add(-time.Hour),
		Status:    model.AttemptStatusSubmitted,
		Result:    stored,
	}

	c := newTestController(b)
	defer c.Close()
	if err := c.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}
	if c.State() != StateSubmitted {
		t.Fatalf("state = %s, want submitted", c.State())
	}
	ev := waitEvent(t, c, EventAlreadySubmitted)
	if ev.Result != stored {
		t.Error("already-submitted event does not carry stored result")
	}

	if err := c.SetAnswer(uuid.New(), model.Answer{Value: "A"}); !errors.Is(err, ErrAttemptSubmitted) {
		t.Fatalf("mutation after submit: err = %v, want ErrAttemptSubmitted", err)
	}
}

func TestController_SubmitFlushesBeforeSubmitting(t *testing.T) {
	b := &fakeBackend{}
	c := newTestController(b)
	defer c.Close()
	if err := c.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}

	qID := b.test.Questions[0].ID
	if err := c.SetAnswer(qID, model.Answer{Type: model.QuestionTypeMCQ, Value: "B"}); err != nil {
		t.Fatalf("SetAnswer: %v", err)
	}

	if _, err := c.Submit(context.Background()); err != nil {
		t.Fatalf("Submit: %v", err)
	}

	// The final save must complete before the submit call is issued.
	seq := b.callSeq()
	saveIdx, submitIdx := -1, -1
	for i, call := range seq {
		switch call {
		case "save":
			if saveIdx == -1 {
				saveIdx = i
			}
		case "submit":
			submitIdx = i
		}
	}
	if saveIdx == -1 || submitIdx == -1 || saveIdx > submitIdx {
		t.Fatalf("call order %v: want save before submit", seq)
	}

	b.mu.Lock()
	saved := b.lastSaved
	b.mu.Unlock()
	if saved == nil || saved.Answers[qID].Value != "B" {
		t.Fatalf("flushed snapshot missing last edit: %+v", saved)
	}
}

func TestController_SubmitIdempotent(t *testing.T) {
	b := &fakeBackend{}
	c := newTestController(b)
	defer c.Close()
	if err := c.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}

	first, err := c.Submit(context.Background())
	if err != nil {
		t.Fatalf("first Submit: %v", err)
	}
	second, err := c.Submit(context.Background())
	if err != nil {
		t.Fatalf("second Submit: %v", err)
	}
	if first != second {
		t.Error("second Submit returned a different result")
	}
	if b.submitCount != 1 {
		t.Fatalf("backend submit called %d times, want 1 (no rescoring)", b.submitCount)
	}
}

func TestController_SubmitFailureAllowsRetry(t *testing.T) {
	b := &fakeBackend{submitErr: errors.New("connection reset")}
	c := newTestController(b)
	defer c.Close()
	if err := c.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}

	if _, err := c.Submit(context.Background()); err == nil {
		t.Fatal("Submit should surface the network failure")
	}
	if c.State() != StateInProgress {
		t.Fatalf("state after failed submit = %s, want in_progress (retryable)", c.State())
	}

	// Still mutable, and the retry succeeds.
	if err := c.SetAnswer(b.test.Questions[0].ID, model.Answer{Value: "B"}); err != nil {
		t.Fatalf("mutation after failed submit: %v", err)
	}
	if _, err := c.Submit(context.Background()); err != nil {
		t.Fatalf("retry Submit: %v", err)
	}
	if c.State() != StateSubmitted {
		t.Fatalf("state = %s, want submitted", c.State())
	}
}

func TestController_DeadlineAutoSubmit(t *testing.T) {
	b := &fakeBackend{}
	b.test = &model.Test{
		ID: uuid.New(), DurationMinutes: 30,
		Questions: []model.Question{{ID: uuid.New(), QuestionType: model.QuestionTypeMCQ, CorrectAnswer: "B", Marks: 1}},
	}
	// Attempt started well past its deadline: the clock fires timeUp on the
	// first evaluation and the controller submits on its own.
	b.attempt = &model.Attempt{
		ID: uuid.New(), TestID: b.test.ID, UserID: 7,
		StartedAt: time.Now().Add(-time.Hour),
		Status:    model.AttemptStatusInProgress,
	}

	cfg := ControllerConfig{
		Scheduler:          SchedulerConfig{Debounce: time.Hour, MinInterval: time.Hour, Backstop: time.Hour},
		SubmitFlushTimeout: time.Second,
		Tick:               5 * time.Millisecond,
	}
	c := NewController(b, b.test.ID, 7, cfg, zerolog.Nop())
	defer c.Close()

	if err := c.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}
	waitEvent(t, c, EventTimeUp)
	ev := waitEvent(t, c, EventSubmitted)
	if ev.Result == nil {
		t.Fatal("auto-submit produced no result")
	}
	if c.State() != StateSubmitted {
		t.Fatalf("state = %s, want submitted", c.State())
	}
	if b.submitCount != 1 {
		t.Fatalf("submit called %d times, want 1", b.submitCount)
	}
}

func TestController_TerminalEventSurvivesFullBuffer(t *testing.T) {
	c := NewController(&fakeBackend{}, uuid.New(), 1, ControllerConfig{}, zerolog.Nop())

	// Saturate the buffer with progress noise, then emit the result.
	for i := 0; i < 3*cap(c.events); i++ {
		c.emit(Event{Kind: EventSaved})
	}
	c.emit(Event{Kind: EventSubmitted, Result: &model.SubmissionResult{Score: 80}})

	found := false
drain:
	for {
		select {
		case ev := <-c.Events():
			if ev.Kind == EventSubmitted {
				found = true
			}
		default:
			break drain
		}
	}
	if !found {
		t.Fatal("submitted event was dropped by a full buffer")
	}
}
