package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/ksingla1885/Mindora-sub003/internal/model"
)

// ErrAttemptExists is returned by Create when another request already created
// an attempt for the same (test, user) pair.
var ErrAttemptExists = errors.New("attempt already exists for this test and user")

// AttemptRepository handles persistence of attempt rows. Progress snapshots
// are written as whole-row updates so the last writer always wins.
type AttemptRepository struct {
	pool *pgxpool.Pool
}

// NewAttemptRepository creates a new AttemptRepository.
func NewAttemptRepository(pool *pgxpool.Pool) *AttemptRepository {
	return &AttemptRepository{pool: pool}
}

const attemptColumns = `id, test_id, user_id, started_at, status,
	COALESCE(answers, '{}'), COALESCE(flagged_question_ids, '[]'),
	current_question_index, elapsed_seconds, last_saved_at, submitted_at, result`

func scanAttempt(row pgx.Row) (*model.Attempt, error) {
	a := &model.Attempt{}
	var answersRaw, flaggedRaw, resultRaw []byte
	err := row.Scan(
		&a.ID, &a.TestID, &a.UserID, &a.StartedAt, &a.Status,
		&answersRaw, &flaggedRaw,
		&a.CurrentQuestionIndex, &a.ElapsedSeconds, &a.LastSavedAt, &a.SubmittedAt, &resultRaw,
	)
	if err != nil {
		return nil, err
	}
	if err := json.Unmarshal(answersRaw, &a.Answers); err != nil {
		return nil, fmt.Errorf("attempt %s answers: %w", a.ID, err)
	}
	if err := json.Unmarshal(flaggedRaw, &a.FlaggedQuestionIDs); err != nil {
		return nil, fmt.Errorf("attempt %s flags: %w", a.ID, err)
	}
	if len(resultRaw) > 0 {
		if err := json.Unmarshal(resultRaw, &a.Result); err != nil {
			return nil, fmt.Errorf("attempt %s result: %w", a.ID, err)
		}
	}
	if a.Answers == nil {
		a.Answers = map[uuid.UUID]model.Answer{}
	}
	return a, nil
}

// GetByID retrieves an attempt by its ID.
func (r *AttemptRepository) GetByID(ctx context.Context, id uuid.UUID) (*model.Attempt, error) {
	return scanAttempt(r.pool.QueryRow(ctx,
		`SELECT `+attemptColumns+` FROM attempts WHERE id = $1`, id))
}

// GetByTestAndUser retrieves the attempt a user has for a test, if any.
func (r *AttemptRepository) GetByTestAndUser(ctx context.Context, testID uuid.UUID, userID int) (*model.Attempt, error) {
	return scanAttempt(r.pool.QueryRow(ctx,
		`SELECT `+attemptColumns+` FROM attempts WHERE test_id = $1 AND user_id = $2`, testID, userID))
}

// Create inserts a new attempt. The unique index on (test_id, user_id) makes
// this safe under concurrent requests: the loser gets ErrAttemptExists and
// should re-read the winner's row.
func (r *AttemptRepository) Create(ctx context.Context, a *model.Attempt) error {
	err := r.pool.QueryRow(ctx,
		`INSERT INTO attempts (test_id, user_id, status)
		 VALUES ($1, $2, $3)
		 ON CONFLICT (test_id, user_id) DO NOTHING
		 RETURNING id, started_at`,
		a.TestID, a.UserID, model.AttemptStatusInProgress,
	).Scan(&a.ID, &a.StartedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return ErrAttemptExists
	}
	if err != nil {
		return err
	}
	a.Status = model.AttemptStatusInProgress
	return nil
}

// SaveProgress replaces the stored snapshot for an in-progress attempt.
// Returns false when the attempt is already submitted (or missing), in which
// case the snapshot is discarded.
func (r *AttemptRepository) SaveProgress(ctx context.Context, attemptID uuid.UUID, snap *model.ProgressSnapshot) (bool, error) {
	answers, err := json.Marshal(snap.Answers)
	if err != nil {
		return false, fmt.Errorf("marshal answers: %w", err)
	}
	flagged, err := json.Marshal(snap.FlaggedQuestionIDs)
	if err != nil {
		return false, fmt.Errorf("marshal flags: %w", err)
	}

	tag, err := r.pool.Exec(ctx,
		`UPDATE attempts
		 SET answers = $2,
		     flagged_question_ids = $3,
		     current_question_index = $4,
		     elapsed_seconds = $5,
		     last_saved_at = NOW()
		 WHERE id = $1 AND status = $6`,
		attemptID, answers, flagged, snap.CurrentQuestionIndex, snap.ElapsedSeconds,
		model.AttemptStatusInProgress,
	)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() > 0, nil
}

// CompleteSubmit finalizes an attempt with its graded result. The status
// predicate makes submission idempotent: only the first caller flips the row,
// later callers get false and should read the stored result instead.
func (r *AttemptRepository) CompleteSubmit(ctx context.Context, attemptID uuid.UUID, snap *model.ProgressSnapshot, result *model.SubmissionResult, submittedAt time.Time) (bool, error) {
	answers, err := json.Marshal(snap.Answers)
	if err != nil {
		return false, fmt.Errorf("marshal answers: %w", err)
	}
	flagged, err := json.Marshal(snap.FlaggedQuestionIDs)
	if err != nil {
		return false, fmt.Errorf("marshal flags: %w", err)
	}
	resultRaw, err := json.Marshal(result)
	if err != nil {
		return false, fmt.Errorf("marshal result: %w", err)
	}

	tag, err := r.pool.Exec(ctx,
		`UPDATE attempts
		 SET status = $2,
		     answers = $3,
		     flagged_question_ids = $4,
		     elapsed_seconds = $5,
		     result = $6,
		     submitted_at = $7,
		     last_saved_at = NOW()
		 WHERE id = $1 AND status = $8`,
		attemptID, model.AttemptStatusSubmitted, answers, flagged,
		snap.ElapsedSeconds, resultRaw, submittedAt,
		model.AttemptStatusInProgress,
	)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() > 0, nil
}

// ListOverdue retrieves in-progress attempts whose deadline passed more than
// the grace period ago. The deadline sweep worker force-submits these.
func (r *AttemptRepository) ListOverdue(ctx context.Context, grace time.Duration) ([]model.Attempt, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT `+attemptColumns+`
		 FROM attempts a
		 WHERE a.status = $1
		   AND a.started_at + make_interval(mins => (
		         SELECT t.duration_minutes FROM tests t WHERE t.id = a.test_id
		       )) + $2::interval < NOW()
		 ORDER BY a.started_at
		 LIMIT 100`,
		model.AttemptStatusInProgress, grace,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var attempts []model.Attempt
	for rows.Next() {
		a, err := scanAttempt(rows)
		if err != nil {
			return nil, err
		}
		attempts = append(attempts, *a)
	}
	return attempts, rows.Err()
}
