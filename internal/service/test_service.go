package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/ksingla1885/Mindora-sub003/internal/config"
	"github.com/ksingla1885/Mindora-sub003/internal/model"
	"github.com/ksingla1885/Mindora-sub003/internal/repository"
)

// Domain Errors
var (
	ErrTestNotFound     = errors.New("test not found")
	ErrTestNotPublished = errors.New("test is not published")
	ErrNoQuestions      = errors.New("test has no questions")
)

// TestService serves test definitions with a Redis cache in front of
// PostgreSQL. Two projections are cached per test: the student-facing paper
// (no grading data) and the full definition used by the grader.
type TestService struct {
	testRepo *repository.TestRepository
	rdb      *redis.Client
	log      zerolog.Logger
}

// NewTestService creates a new TestService.
func NewTestService(testRepo *repository.TestRepository, rdb *redis.Client, log zerolog.Logger) *TestService {
	return &TestService{
		testRepo: testRepo,
		rdb:      rdb,
		log:      log.With().Str("component", "test_service").Logger(),
	}
}

// WarmTestCache loads a test's paper and full definition from PostgreSQL into
// Redis. Both keys are written in one pipeline so readers never see a
// half-warmed test.
func (s *TestService) WarmTestCache(ctx context.Context, t *model.Test) error {
	if t.Status != model.TestStatusPublished {
		return ErrTestNotPublished
	}
	if len(t.Questions) == 0 {
		return ErrNoQuestions
	}

	paper := model.TestPaper{
		TestID:          t.ID,
		Title:           t.Title,
		DurationMinutes: t.DurationMinutes,
		PassingScore:    t.PassingScore,
		Questions:       make([]model.QuestionForStudent, len(t.Questions)),
	}
	for i := range t.Questions {
		paper.Questions[i] = model.PaperQuestion(&t.Questions[i])
	}

	paperJSON, err := json.Marshal(paper)
	if err != nil {
		return fmt.Errorf("marshal paper: %w", err)
	}
	definitionJSON, err := json.Marshal(t)
	if err != nil {
		return fmt.Errorf("marshal definition: %w", err)
	}

	pipe := s.rdb.Pipeline()
	pipe.Set(ctx, config.CacheKey.TestPaperKey(t.ID.String()), paperJSON, 0)
	pipe.Set(ctx, config.CacheKey.TestDefinitionKey(t.ID.String()), definitionJSON, 0)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("cache to redis: %w", err)
	}

	s.log.Debug().
		Str("test_id", t.ID.String()).
		Int("questions", len(t.Questions)).
		Msg("Cache warmed")
	return nil
}

// PrewarmAllCaches loads every published test into Redis. Called once at
// startup; a test that fails to warm is skipped, not fatal.
func (s *TestService) PrewarmAllCaches(ctx context.Context) error {
	tests, err := s.testRepo.ListPublished(ctx)
	if err != nil {
		return fmt.Errorf("list published tests: %w", err)
	}

	if len(tests) == 0 {
		s.log.Info().Msg("No published tests to prewarm")
		return nil
	}

	s.log.Info().Int("count", len(tests)).Msg("Prewarming published tests...")

	warmed := 0
	for i := range tests {
		if err := s.WarmTestCache(ctx, &tests[i]); err != nil {
			s.log.Warn().
				Err(err).
				Str("test_id", tests[i].ID.String()).
				Msg("Failed to warm test, skipping")
			continue
		}
		warmed++
	}

	s.log.Info().
		Int("warmed", warmed).
		Int("total", len(tests)).
		Msg("Prewarming complete")
	return nil
}

// GetPaper retrieves the cached student paper, falling back to PostgreSQL
// (and rewarming) on a cache miss.
func (s *TestService) GetPaper(ctx context.Context, testID uuid.UUID) (*model.TestPaper, error) {
	data, err := s.rdb.Get(ctx, config.CacheKey.TestPaperKey(testID.String())).Bytes()
	if err == nil {
		var paper model.TestPaper
		if err := json.Unmarshal(data, &paper); err != nil {
			return nil, fmt.Errorf("unmarshal paper: %w", err)
		}
		return &paper, nil
	}
	if !errors.Is(err, redis.Nil) {
		return nil, fmt.Errorf("get paper: %w", err)
	}

	t, err := s.loadAndWarm(ctx, testID)
	if err != nil {
		return nil, err
	}

	paper := model.TestPaper{
		TestID:          t.ID,
		Title:           t.Title,
		DurationMinutes: t.DurationMinutes,
		PassingScore:    t.PassingScore,
		Questions:       make([]model.QuestionForStudent, len(t.Questions)),
	}
	for i := range t.Questions {
		paper.Questions[i] = model.PaperQuestion(&t.Questions[i])
	}
	return &paper, nil
}

// GetDefinition retrieves the full test definition including grading data.
// Server-side only; never returned to clients.
func (s *TestService) GetDefinition(ctx context.Context, testID uuid.UUID) (*model.Test, error) {
	data, err := s.rdb.Get(ctx, config.CacheKey.TestDefinitionKey(testID.String())).Bytes()
	if err == nil {
		var t model.Test
		if err := json.Unmarshal(data, &t); err != nil {
			return nil, fmt.Errorf("unmarshal definition: %w", err)
		}
		return &t, nil
	}
	if !errors.Is(err, redis.Nil) {
		return nil, fmt.Errorf("get definition: %w", err)
	}

	return s.loadAndWarm(ctx, testID)
}

// loadAndWarm reads a test from PostgreSQL and rewarms the cache. Only
// published tests are servable.
func (s *TestService) loadAndWarm(ctx context.Context, testID uuid.UUID) (*model.Test, error) {
	t, err := s.testRepo.GetByID(ctx, testID)
	if err != nil {
		return nil, ErrTestNotFound
	}
	if t.Status != model.TestStatusPublished {
		return nil, ErrTestNotPublished
	}

	if err := s.WarmTestCache(ctx, t); err != nil {
		s.log.Warn().Err(err).Str("test_id", testID.String()).Msg("Rewarm after cache miss failed")
	}
	return t, nil
}
