package model

import (
	"time"

	"github.com/google/uuid"
)

// TestStatus enumerates the lifecycle states of a test definition.
type TestStatus string

const (
	TestStatusDraft     TestStatus = "DRAFT"
	TestStatusPublished TestStatus = "PUBLISHED"
	TestStatusArchived  TestStatus = "ARCHIVED"
)

// DefaultPassingScore is applied when a test does not declare one.
const DefaultPassingScore = 70

// Test is an immutable assessment definition. It is owned by content
// authoring; this service only reads it.
type Test struct {
	ID              uuid.UUID  `json:"id"`
	Title           string     `json:"title"`
	DurationMinutes int        `json:"duration_minutes"`
	PassingScore    int        `json:"passing_score"`
	Status          TestStatus `json:"status"`
	Questions       []Question `json:"questions"`
	CreatedAt       time.Time  `json:"created_at"`
	UpdatedAt       time.Time  `json:"updated_at"`
}

// Duration returns the test duration as a time.Duration.
func (t *Test) Duration() time.Duration {
	return time.Duration(t.DurationMinutes) * time.Minute
}

// QuestionType enumerates the supported question kinds.
type QuestionType string

const (
	QuestionTypeMCQ         QuestionType = "MCQ"
	QuestionTypeTrueFalse   QuestionType = "TRUE_FALSE"
	QuestionTypeShortAnswer QuestionType = "SHORT_ANSWER"
	QuestionTypeEssay       QuestionType = "ESSAY"
	QuestionTypeMatching    QuestionType = "MATCHING"
	QuestionTypeOrdering    QuestionType = "ORDERING"
)

// Difficulty enumerates question difficulty buckets.
type Difficulty string

const (
	DifficultyEasy   Difficulty = "easy"
	DifficultyMedium Difficulty = "medium"
	DifficultyHard   Difficulty = "hard"
)

// MatchingPair is one canonical left→right mapping of a MATCHING question.
type MatchingPair struct {
	Left  string `json:"left"`
	Right string `json:"right"`
}

// OrderingItem is one item of an ORDERING question with its canonical
// 1-based position.
type OrderingItem struct {
	ID              string `json:"id"`
	Text            string `json:"text"`
	CorrectPosition int    `json:"correct_position"`
}

// Question is a single test question with its type-specific grading data.
// CorrectAnswer is optional for SHORT_ANSWER/ESSAY; absent means ungraded.
type Question struct {
	ID            uuid.UUID      `json:"id"`
	TestID        uuid.UUID      `json:"test_id"`
	QuestionText  string         `json:"question_text"`
	QuestionType  QuestionType   `json:"question_type"`
	Difficulty    Difficulty     `json:"difficulty"`
	Marks         int            `json:"marks"`
	Options       []string       `json:"options,omitempty"`
	CorrectAnswer string         `json:"correct_answer,omitempty"`
	MatchingPairs []MatchingPair `json:"matching_pairs,omitempty"`
	OrderingItems []OrderingItem `json:"ordering_items,omitempty"`
	Explanation   string         `json:"explanation,omitempty"`
	OrderNum      int            `json:"order_num"`
}

// Normalize applies the documented defaults in place: difficulty medium,
// marks 1. Called by the repository after scanning rows.
func (q *Question) Normalize() {
	if q.Difficulty == "" {
		q.Difficulty = DifficultyMedium
	}
	if q.Marks <= 0 {
		q.Marks = 1
	}
}

// TestPaper is the student-facing payload cached in Redis: the test without
// any grading data.
type TestPaper struct {
	TestID          uuid.UUID            `json:"test_id"`
	Title           string               `json:"title"`
	DurationMinutes int                  `json:"duration_minutes"`
	PassingScore    int                  `json:"passing_score"`
	Questions       []QuestionForStudent `json:"questions"`
}

// QuestionForStudent is a question stripped of correct answers and
// explanations. Matching right-hand values are included (the student has to
// pick from them) but detached from their lefts; ordering items carry no
// canonical positions.
type QuestionForStudent struct {
	ID            uuid.UUID    `json:"id"`
	QuestionText  string       `json:"question_text"`
	QuestionType  QuestionType `json:"question_type"`
	Difficulty    Difficulty   `json:"difficulty"`
	Marks         int          `json:"marks"`
	Options       []string     `json:"options,omitempty"`
	MatchingLeft  []string     `json:"matching_left,omitempty"`
	MatchingRight []string     `json:"matching_right,omitempty"`
	OrderingItems []PaperItem  `json:"ordering_items,omitempty"`
	OrderNum      int          `json:"order_num"`
}

// PaperItem is an ordering item as shown to the student (no position).
type PaperItem struct {
	ID   string `json:"id"`
	Text string `json:"text"`
}

// PaperQuestion builds the student view of q.
func PaperQuestion(q *Question) QuestionForStudent {
	sq := QuestionForStudent{
		ID:           q.ID,
		QuestionText: q.QuestionText,
		QuestionType: q.QuestionType,
		Difficulty:   q.Difficulty,
		Marks:        q.Marks,
		Options:      q.Options,
		OrderNum:     q.OrderNum,
	}
	for _, p := range q.MatchingPairs {
		sq.MatchingLeft = append(sq.MatchingLeft, p.Left)
		sq.MatchingRight = append(sq.MatchingRight, p.Right)
	}
	for _, it := range q.OrderingItems {
		sq.OrderingItems = append(sq.OrderingItems, PaperItem{ID: it.ID, Text: it.Text})
	}
	return sq
}
