package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/ksingla1885/Mindora-sub003/internal/config"
	"github.com/ksingla1885/Mindora-sub003/internal/model"
	"github.com/ksingla1885/Mindora-sub003/internal/repository"
	"github.com/ksingla1885/Mindora-sub003/internal/scoring"
)

// Domain Errors
var (
	ErrAttemptNotFound  = errors.New("attempt not found")
	ErrAttemptSubmitted = errors.New("attempt is already submitted")
	ErrResultNotReady   = errors.New("attempt has not been submitted yet")
	ErrNotAttemptOwner  = errors.New("attempt belongs to another user")
)

// persistPayload is the queue item the autosave worker consumes. Each item
// carries a full snapshot so replays and reorders are harmless.
type persistPayload struct {
	AttemptID string                 `json:"attempt_id"`
	Snapshot  model.ProgressSnapshot `json:"snapshot"`
}

// AttemptService owns the attempt lifecycle: idempotent creation, snapshot
// saves, and the single submission that produces a result. PostgreSQL is the
// source of truth; Redis carries the hot snapshot and start time.
type AttemptService struct {
	attemptRepo *repository.AttemptRepository
	testService *TestService
	rdb         *redis.Client
	log         zerolog.Logger
}

// NewAttemptService creates a new AttemptService.
func NewAttemptService(
	attemptRepo *repository.AttemptRepository,
	testService *TestService,
	rdb *redis.Client,
	log zerolog.Logger,
) *AttemptService {
	return &AttemptService{
		attemptRepo: attemptRepo,
		testService: testService,
		rdb:         rdb,
		log:         log.With().Str("component", "attempt_service").Logger(),
	}
}

// GetTest retrieves the full test definition (grading data included).
func (s *AttemptService) GetTest(ctx context.Context, testID uuid.UUID) (*model.Test, error) {
	return s.testService.GetDefinition(ctx, testID)
}

// GetOrCreateAttempt returns the user's attempt on a test, creating one if
// none exists. Safe under concurrent requests: the unique index decides the
// winner and the loser re-reads that row, so both callers see the same
// attempt and the same StartedAt.
func (s *AttemptService) GetOrCreateAttempt(ctx context.Context, testID uuid.UUID, userID int) (*model.Attempt, error) {
	if _, err := s.testService.GetDefinition(ctx, testID); err != nil {
		return nil, err
	}

	existing, err := s.attemptRepo.GetByTestAndUser(ctx, testID, userID)
	if err != nil && !errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("check existing attempt: %w", err)
	}
	if existing != nil {
		// Refresh the start-time cache in case it was evicted; resumes on
		// another device depend on it.
		s.cacheStartTime(ctx, existing)
		return existing, nil
	}

	attempt := &model.Attempt{
		TestID: testID,
		UserID: userID,
	}
	if err := s.attemptRepo.Create(ctx, attempt); err != nil {
		if errors.Is(err, repository.ErrAttemptExists) {
			// Concurrent start: re-read the winner's row.
			existing, fetchErr := s.attemptRepo.GetByTestAndUser(ctx, testID, userID)
			if fetchErr != nil {
				return nil, fmt.Errorf("concurrent start detected, fetch failed: %w", fetchErr)
			}
			s.cacheStartTime(ctx, existing)
			return existing, nil
		}
		return nil, fmt.Errorf("create attempt: %w", err)
	}
	attempt.Answers = map[uuid.UUID]model.Answer{}

	s.cacheStartTime(ctx, attempt)
	if err := s.rdb.Set(ctx,
		config.CacheKey.UserActiveAttemptKey(userID, testID.String()),
		attempt.ID.String(), 0,
	).Err(); err != nil {
		s.log.Warn().Err(err).Msg("Failed to cache active attempt id")
	}

	s.log.Info().
		Str("attempt_id", attempt.ID.String()).
		Str("test_id", testID.String()).
		Int("user_id", userID).
		Msg("Attempt started")
	return attempt, nil
}

func (s *AttemptService) cacheStartTime(ctx context.Context, a *model.Attempt) {
	key := config.CacheKey.AttemptStartKey(a.ID.String())
	if err := s.rdb.Set(ctx, key, a.StartedAt.Unix(), 0).Err(); err != nil {
		s.log.Warn().Err(err).Str("attempt_id", a.ID.String()).Msg("Failed to cache start time")
	}
}

// SaveProgress stores a full snapshot: immediately into Redis for fast
// resume, and onto the persist queue for the autosave worker to flush into
// PostgreSQL. Rejected once the attempt is submitted.
func (s *AttemptService) SaveProgress(ctx context.Context, attemptID uuid.UUID, snap model.ProgressSnapshot) error {
	attempt, err := s.getAttempt(ctx, attemptID)
	if err != nil {
		return err
	}
	if attempt.Status == model.AttemptStatusSubmitted {
		return ErrAttemptSubmitted
	}

	snapJSON, err := json.Marshal(&snap)
	if err != nil {
		return fmt.Errorf("marshal snapshot: %w", err)
	}
	if err := s.rdb.Set(ctx, config.CacheKey.AttemptSnapshotKey(attemptID.String()), snapJSON, 0).Err(); err != nil {
		return fmt.Errorf("cache snapshot: %w", err)
	}

	item, err := json.Marshal(persistPayload{AttemptID: attemptID.String(), Snapshot: snap})
	if err != nil {
		return fmt.Errorf("marshal queue item: %w", err)
	}
	if err := s.rdb.RPush(ctx, config.WorkerKey.PersistProgressQueue, item).Err(); err != nil {
		return fmt.Errorf("enqueue snapshot: %w", err)
	}

	s.log.Debug().
		Str("attempt_id", attemptID.String()).
		Int("answers", len(snap.Answers)).
		Msg("Progress saved")
	return nil
}

// PersistSnapshot writes a snapshot straight to PostgreSQL. Used by the
// autosave worker; the status predicate in the repository drops snapshots
// that race a submission.
func (s *AttemptService) PersistSnapshot(ctx context.Context, attemptID uuid.UUID, snap *model.ProgressSnapshot) error {
	_, err := s.attemptRepo.SaveProgress(ctx, attemptID, snap)
	return err
}

// Submit grades an attempt exactly once. The repository's compare-and-set on
// status decides the winner under concurrent submits; losers get the stored
// result, byte-for-byte the same. Elapsed time is clamped to the allotted
// duration before scoring.
func (s *AttemptService) Submit(ctx context.Context, attemptID uuid.UUID, answers map[uuid.UUID]model.Answer, elapsedSeconds int) (*model.SubmissionResult, error) {
	attempt, err := s.getAttempt(ctx, attemptID)
	if err != nil {
		return nil, err
	}
	if attempt.Status == model.AttemptStatusSubmitted {
		if attempt.Result == nil {
			return nil, ErrResultNotReady
		}
		return attempt.Result, nil
	}

	test, err := s.testService.GetDefinition(ctx, attempt.TestID)
	if err != nil {
		return nil, fmt.Errorf("load test for grading: %w", err)
	}

	flagged := attempt.FlaggedQuestionIDs
	currentIndex := attempt.CurrentQuestionIndex
	if answers == nil {
		// REST submits carry no answers; the freshest state is the Redis
		// snapshot, then the last persisted row. The snapshot is taken
		// whole, elapsed time included, so the graded time analysis always
		// describes the same state as the answers being graded.
		answers = attempt.Answers
		if data, gErr := s.rdb.Get(ctx, config.CacheKey.AttemptSnapshotKey(attemptID.String())).Bytes(); gErr == nil {
			var snap model.ProgressSnapshot
			if uErr := json.Unmarshal(data, &snap); uErr == nil {
				answers = snap.Answers
				flagged = snap.FlaggedQuestionIDs
				currentIndex = snap.CurrentQuestionIndex
				elapsedSeconds = snap.ElapsedSeconds
			}
		}
	}
	if elapsedSeconds < 0 {
		elapsedSeconds = 0
	}
	if limit := test.DurationMinutes * 60; elapsedSeconds > limit {
		elapsedSeconds = limit
	}

	result := scoring.Score(test, answers, elapsedSeconds)
	result.AttemptID = attemptID

	snap := &model.ProgressSnapshot{
		Answers:              answers,
		FlaggedQuestionIDs:   flagged,
		ElapsedSeconds:       elapsedSeconds,
		CurrentQuestionIndex: currentIndex,
	}
	won, err := s.attemptRepo.CompleteSubmit(ctx, attemptID, snap, result, time.Now())
	if err != nil {
		return nil, fmt.Errorf("complete submit: %w", err)
	}
	if !won {
		// Another submit got there first; its result is canonical.
		stored, err := s.attemptRepo.GetByID(ctx, attemptID)
		if err != nil {
			return nil, fmt.Errorf("fetch stored result: %w", err)
		}
		if stored.Result == nil {
			return nil, ErrResultNotReady
		}
		return stored.Result, nil
	}

	// The snapshot cache is stale now; the queue item for it, if any, will be
	// dropped by the worker's status predicate.
	if err := s.rdb.Del(ctx, config.CacheKey.AttemptSnapshotKey(attemptID.String())).Err(); err != nil {
		s.log.Warn().Err(err).Str("attempt_id", attemptID.String()).Msg("Failed to clear snapshot cache")
	}

	s.log.Info().
		Str("attempt_id", attemptID.String()).
		Int("score", result.Score).
		Bool("passed", result.Passed).
		Msg("Attempt submitted")
	return result, nil
}

// GetState builds the resume payload for an attempt. The snapshot comes from
// Redis when hot, PostgreSQL otherwise (with a self-heal write back);
// remaining time is always recomputed from the immutable start timestamp.
func (s *AttemptService) GetState(ctx context.Context, attemptID uuid.UUID, userID int) (*model.AttemptState, error) {
	attempt, err := s.getOwnedAttempt(ctx, attemptID, userID)
	if err != nil {
		return nil, err
	}

	state := &model.AttemptState{
		AttemptID:            attempt.ID,
		TestID:               attempt.TestID,
		Status:               attempt.Status,
		Answers:              attempt.Answers,
		FlaggedQuestionIDs:   attempt.FlaggedQuestionIDs,
		CurrentQuestionIndex: attempt.CurrentQuestionIndex,
	}

	if attempt.Status == model.AttemptStatusSubmitted {
		return state, nil
	}

	snapKey := config.CacheKey.AttemptSnapshotKey(attemptID.String())
	data, err := s.rdb.Get(ctx, snapKey).Bytes()
	switch {
	case err == nil:
		var snap model.ProgressSnapshot
		if err := json.Unmarshal(data, &snap); err != nil {
			return nil, fmt.Errorf("unmarshal snapshot: %w", err)
		}
		state.Answers = snap.Answers
		state.FlaggedQuestionIDs = snap.FlaggedQuestionIDs
		state.CurrentQuestionIndex = snap.CurrentQuestionIndex
	case errors.Is(err, redis.Nil):
		// Cache miss: the row already loaded is the source of truth.
		// Self-heal so the next resume is fast.
		snap := model.ProgressSnapshot{
			Answers:              attempt.Answers,
			FlaggedQuestionIDs:   attempt.FlaggedQuestionIDs,
			ElapsedSeconds:       attempt.ElapsedSeconds,
			CurrentQuestionIndex: attempt.CurrentQuestionIndex,
		}
		if snapJSON, mErr := json.Marshal(&snap); mErr == nil {
			_ = s.rdb.Set(ctx, snapKey, snapJSON, 0).Err()
		}
	default:
		return nil, fmt.Errorf("get snapshot: %w", err)
	}

	remaining, err := s.remainingSeconds(ctx, attempt)
	if err != nil {
		return nil, err
	}
	state.RemainingSeconds = remaining
	if state.Answers == nil {
		state.Answers = map[uuid.UUID]model.Answer{}
	}
	return state, nil
}

// remainingSeconds recomputes time left from the cached start timestamp,
// falling back to the row when the cache was evicted.
func (s *AttemptService) remainingSeconds(ctx context.Context, attempt *model.Attempt) (int, error) {
	test, err := s.testService.GetDefinition(ctx, attempt.TestID)
	if err != nil {
		return 0, fmt.Errorf("load test duration: %w", err)
	}

	startedAt := attempt.StartedAt
	startKey := config.CacheKey.AttemptStartKey(attempt.ID.String())
	val, err := s.rdb.Get(ctx, startKey).Result()
	switch {
	case err == nil:
		unix, pErr := strconv.ParseInt(val, 10, 64)
		if pErr != nil {
			return 0, fmt.Errorf("invalid start time in cache: %w", pErr)
		}
		startedAt = time.Unix(unix, 0)
	case errors.Is(err, redis.Nil):
		_ = s.rdb.Set(ctx, startKey, startedAt.Unix(), 0).Err()
	default:
		return 0, fmt.Errorf("get start time: %w", err)
	}

	deadline := startedAt.Add(test.Duration())
	remaining := int(time.Until(deadline).Seconds())
	if remaining < 0 {
		remaining = 0
	}
	return remaining, nil
}

// GetStatus reports whether an attempt is still open and how long remains.
func (s *AttemptService) GetStatus(ctx context.Context, attemptID uuid.UUID, userID int) (model.AttemptStatus, int, error) {
	attempt, err := s.getOwnedAttempt(ctx, attemptID, userID)
	if err != nil {
		return "", 0, err
	}
	if attempt.Status == model.AttemptStatusSubmitted {
		return attempt.Status, 0, nil
	}
	remaining, err := s.remainingSeconds(ctx, attempt)
	if err != nil {
		return "", 0, err
	}
	return attempt.Status, remaining, nil
}

// GetResult retrieves the stored result of a submitted attempt.
func (s *AttemptService) GetResult(ctx context.Context, attemptID uuid.UUID, userID int) (*model.SubmissionResult, error) {
	attempt, err := s.getOwnedAttempt(ctx, attemptID, userID)
	if err != nil {
		return nil, err
	}
	if attempt.Status != model.AttemptStatusSubmitted || attempt.Result == nil {
		return nil, ErrResultNotReady
	}
	return attempt.Result, nil
}

// VerifyOwner checks that an attempt exists and belongs to the user. Used by
// the websocket handler before standing up a live session.
func (s *AttemptService) VerifyOwner(ctx context.Context, attemptID uuid.UUID, userID int) (*model.Attempt, error) {
	return s.getOwnedAttempt(ctx, attemptID, userID)
}

// ForceSubmit closes an overdue attempt with whatever was last persisted.
// Used by the deadline sweep worker; already-submitted attempts are a no-op.
func (s *AttemptService) ForceSubmit(ctx context.Context, attemptID uuid.UUID) error {
	attempt, err := s.getAttempt(ctx, attemptID)
	if err != nil {
		return err
	}
	if attempt.Status == model.AttemptStatusSubmitted {
		return nil
	}

	test, err := s.testService.GetDefinition(ctx, attempt.TestID)
	if err != nil {
		return fmt.Errorf("load test for grading: %w", err)
	}

	// Passing nil answers makes Submit pick up the freshest snapshot itself.
	_, err = s.Submit(ctx, attemptID, nil, test.DurationMinutes*60)
	return err
}

func (s *AttemptService) getAttempt(ctx context.Context, attemptID uuid.UUID) (*model.Attempt, error) {
	attempt, err := s.attemptRepo.GetByID(ctx, attemptID)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrAttemptNotFound
	}
	if err != nil {
		return nil, err
	}
	return attempt, nil
}

func (s *AttemptService) getOwnedAttempt(ctx context.Context, attemptID uuid.UUID, userID int) (*model.Attempt, error) {
	attempt, err := s.getAttempt(ctx, attemptID)
	if err != nil {
		return nil, err
	}
	if attempt.UserID != userID {
		return nil, ErrNotAttemptOwner
	}
	return attempt, nil
}
