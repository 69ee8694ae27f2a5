package model

import (
	"time"

	"github.com/google/uuid"
)

// AttemptStatus enumerates attempt states. An attempt transitions to
// submitted exactly once and is never mutated afterward.
type AttemptStatus string

const (
	AttemptStatusInProgress AttemptStatus = "in_progress"
	AttemptStatusSubmitted  AttemptStatus = "submitted"
)

// Attempt is one user's session on a test. StartedAt is set once at creation
// and is the sole basis for deadline arithmetic.
type Attempt struct {
	ID                   uuid.UUID             `json:"id"`
	TestID               uuid.UUID             `json:"test_id"`
	UserID               int                   `json:"user_id"`
	StartedAt            time.Time             `json:"started_at"`
	Status               AttemptStatus         `json:"status"`
	Answers              map[uuid.UUID]Answer  `json:"answers"`
	FlaggedQuestionIDs   []uuid.UUID           `json:"flagged_question_ids"`
	CurrentQuestionIndex int                   `json:"current_question_index"`
	ElapsedSeconds       int                   `json:"elapsed_seconds"`
	LastSavedAt          *time.Time            `json:"last_saved_at,omitempty"`
	SubmittedAt          *time.Time            `json:"submitted_at,omitempty"`
	Result               *SubmissionResult     `json:"result,omitempty"`
}

// Deadline returns the absolute wall-clock time after which no further
// answers are accepted.
func (a *Attempt) Deadline(duration time.Duration) time.Time {
	return a.StartedAt.Add(duration)
}

// ProgressSnapshot is the full-snapshot autosave payload. Every save carries
// the complete current state, never a diff, so out-of-order arrivals are
// safely last-write-wins.
type ProgressSnapshot struct {
	Answers              map[uuid.UUID]Answer `json:"answers"`
	FlaggedQuestionIDs   []uuid.UUID          `json:"flagged_question_ids"`
	ElapsedSeconds       int                  `json:"elapsed_seconds"`
	CurrentQuestionIndex int                  `json:"current_question_index"`
}

// AttemptState is the resume payload: everything the client needs to rebuild
// an in-progress session after a reload.
type AttemptState struct {
	AttemptID            uuid.UUID            `json:"attempt_id"`
	TestID               uuid.UUID            `json:"test_id"`
	Status               AttemptStatus        `json:"status"`
	Answers              map[uuid.UUID]Answer `json:"answers"`
	FlaggedQuestionIDs   []uuid.UUID          `json:"flagged_question_ids"`
	CurrentQuestionIndex int                  `json:"current_question_index"`
	RemainingSeconds     int                  `json:"remaining_seconds"`
}

// SubmissionResult is the canonical scoring output, produced exactly once per
// attempt and stored alongside it.
type SubmissionResult struct {
	AttemptID      uuid.UUID                   `json:"attempt_id"`
	Score          int                         `json:"score"`
	CorrectCount   int                         `json:"correct_count"`
	TotalQuestions int                         `json:"total_questions"`
	MaxScore       int                         `json:"max_score"`
	EarnedMarks    int                         `json:"earned_marks"`
	Passed         bool                        `json:"passed"`
	Review         []QuestionReview            `json:"review"`
	ByType         map[QuestionType]BucketStat `json:"by_type"`
	ByDifficulty   map[Difficulty]BucketStat   `json:"by_difficulty"`
	Time           TimeAnalysis                `json:"time"`
}

// QuestionReview is the per-question correctness record in a result.
// Graded is false for free-text questions without an answer key.
type QuestionReview struct {
	QuestionID  uuid.UUID    `json:"question_id"`
	Type        QuestionType `json:"type"`
	Difficulty  Difficulty   `json:"difficulty"`
	Marks       int          `json:"marks"`
	Answered    bool         `json:"answered"`
	Correct     bool         `json:"correct"`
	Graded      bool         `json:"graded"`
	Explanation string       `json:"explanation,omitempty"`
}

// BucketStat aggregates correctness for one type or difficulty bucket.
type BucketStat struct {
	Correct int `json:"correct"`
	Total   int `json:"total"`
}

// TimeStatus reports whether the attempt finished under or over the allotted
// duration.
type TimeStatus string

const (
	TimeStatusUnder TimeStatus = "under"
	TimeStatusOver  TimeStatus = "over"
)

// TimeAnalysis summarizes elapsed time against the test duration.
type TimeAnalysis struct {
	ElapsedSeconds     int        `json:"elapsed_seconds"`
	VarianceSeconds    int        `json:"variance_seconds"`
	Status             TimeStatus `json:"status"`
	AvgSecondsPerQuest float64    `json:"avg_seconds_per_question"`
}
