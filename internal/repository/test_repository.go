package repository

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/ksingla1885/Mindora-sub003/internal/model"
)

// TestRepository handles read access to test definitions. Authoring lives in
// a separate content service; this repository only consumes the shape the
// scoring engine needs.
type TestRepository struct {
	pool *pgxpool.Pool
}

// NewTestRepository creates a new TestRepository.
func NewTestRepository(pool *pgxpool.Pool) *TestRepository {
	return &TestRepository{pool: pool}
}

// GetByID retrieves a test with its questions in order.
func (r *TestRepository) GetByID(ctx context.Context, id uuid.UUID) (*model.Test, error) {
	t := &model.Test{}
	err := r.pool.QueryRow(ctx,
		`SELECT id, title, duration_minutes, passing_score, status, created_at, updated_at
		 FROM tests
		 WHERE id = $1`, id,
	).Scan(&t.ID, &t.Title, &t.DurationMinutes, &t.PassingScore, &t.Status, &t.CreatedAt, &t.UpdatedAt)
	if err != nil {
		return nil, err
	}

	questions, err := r.listQuestions(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("list questions: %w", err)
	}
	t.Questions = questions
	return t, nil
}

// ListPublished retrieves all published tests with their questions. Used for
// cache prewarming at startup.
func (r *TestRepository) ListPublished(ctx context.Context) ([]model.Test, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT id, title, duration_minutes, passing_score, status, created_at, updated_at
		 FROM tests
		 WHERE status = $1
		 ORDER BY created_at`, model.TestStatusPublished,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var tests []model.Test
	for rows.Next() {
		var t model.Test
		if err := rows.Scan(&t.ID, &t.Title, &t.DurationMinutes, &t.PassingScore, &t.Status, &t.CreatedAt, &t.UpdatedAt); err != nil {
			return nil, err
		}
		tests = append(tests, t)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	for i := range tests {
		questions, err := r.listQuestions(ctx, tests[i].ID)
		if err != nil {
			return nil, fmt.Errorf("list questions for %s: %w", tests[i].ID, err)
		}
		tests[i].Questions = questions
	}
	return tests, nil
}

func (r *TestRepository) listQuestions(ctx context.Context, testID uuid.UUID) ([]model.Question, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT id, test_id, question_text, question_type, difficulty, marks,
		        COALESCE(options, '[]'), COALESCE(correct_answer, ''),
		        COALESCE(matching_pairs, '[]'), COALESCE(ordering_items, '[]'),
		        COALESCE(explanation, ''), order_num
		 FROM questions
		 WHERE test_id = $1
		 ORDER BY order_num, id`, testID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var questions []model.Question
	for rows.Next() {
		var q model.Question
		var optionsRaw, pairsRaw, itemsRaw []byte
		if err := rows.Scan(
			&q.ID, &q.TestID, &q.QuestionText, &q.QuestionType, &q.Difficulty, &q.Marks,
			&optionsRaw, &q.CorrectAnswer, &pairsRaw, &itemsRaw, &q.Explanation, &q.OrderNum,
		); err != nil {
			return nil, err
		}
		if err := json.Unmarshal(optionsRaw, &q.Options); err != nil {
			return nil, fmt.Errorf("question %s options: %w", q.ID, err)
		}
		if err := json.Unmarshal(pairsRaw, &q.MatchingPairs); err != nil {
			return nil, fmt.Errorf("question %s matching pairs: %w", q.ID, err)
		}
		if err := json.Unmarshal(itemsRaw, &q.OrderingItems); err != nil {
			return nil, fmt.Errorf("question %s ordering items: %w", q.ID, err)
		}
		q.Normalize()
		questions = append(questions, q)
	}
	return questions, rows.Err()
}

// CreateTest inserts a test definition with its questions. Used by the seed
// tool only; the content service owns authoring in production.
func (r *TestRepository) CreateTest(ctx context.Context, t *model.Test) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	err = tx.QueryRow(ctx,
		`INSERT INTO tests (title, duration_minutes, passing_score, status)
		 VALUES ($1, $2, $3, $4)
		 RETURNING id, created_at, updated_at`,
		t.Title, t.DurationMinutes, t.PassingScore, t.Status,
	).Scan(&t.ID, &t.CreatedAt, &t.UpdatedAt)
	if err != nil {
		return fmt.Errorf("insert test: %w", err)
	}

	for i := range t.Questions {
		q := &t.Questions[i]
		q.TestID = t.ID
		options, _ := json.Marshal(q.Options)
		pairs, _ := json.Marshal(q.MatchingPairs)
		items, _ := json.Marshal(q.OrderingItems)
		err = tx.QueryRow(ctx,
			`INSERT INTO questions
			   (test_id, question_text, question_type, difficulty, marks, options,
			    correct_answer, matching_pairs, ordering_items, explanation, order_num)
			 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
			 RETURNING id`,
			q.TestID, q.QuestionText, q.QuestionType, q.Difficulty, q.Marks, options,
			q.CorrectAnswer, pairs, items, q.Explanation, q.OrderNum,
		).Scan(&q.ID)
		if err != nil {
			return fmt.Errorf("insert question %d: %w", i, err)
		}
	}

	return tx.Commit(ctx)
}
