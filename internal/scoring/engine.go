// Package scoring computes a deterministic SubmissionResult from a test
// definition and a completed answer set. Score is a pure function: identical
// inputs always yield identical output, so the same code produces the
// canonical server-side result and any client-side preview.
package scoring

import (
	"math"

	"github.com/google/uuid"

	"github.com/ksingla1885/Mindora-sub003/internal/model"
)

// Score grades every question of test against answers and aggregates the
// result. Missing answers are never correct and never cause a panic; an empty
// test scores 0 by convention. elapsedSeconds is clamped to
// [0, durationMinutes*60] by the caller (the attempt service).
func Score(test *model.Test, answers map[uuid.UUID]model.Answer, elapsedSeconds int) *model.SubmissionResult {
	res := &model.SubmissionResult{
		TotalQuestions: len(test.Questions),
		ByType:         make(map[model.QuestionType]model.BucketStat),
		ByDifficulty:   make(map[model.Difficulty]model.BucketStat),
	}

	for i := range test.Questions {
		q := &test.Questions[i]
		res.MaxScore += q.Marks

		ans, answered := answers[q.ID]
		if answered && ans.IsEmpty() {
			answered = false
		}

		graded := isGradable(q)
		correct := false
		if answered && graded {
			correct = gradeQuestion(q, ans)
		}
		if correct {
			res.CorrectCount++
			res.EarnedMarks += q.Marks
		}

		res.Review = append(res.Review, model.QuestionReview{
			QuestionID:  q.ID,
			Type:        q.QuestionType,
			Difficulty:  q.Difficulty,
			Marks:       q.Marks,
			Answered:    answered,
			Correct:     correct,
			Graded:      graded,
			Explanation: q.Explanation,
		})

		bump(res.ByType, q.QuestionType, correct)
		bump(res.ByDifficulty, q.Difficulty, correct)
	}

	if res.TotalQuestions > 0 {
		res.Score = int(math.Round(100 * float64(res.CorrectCount) / float64(res.TotalQuestions)))
	}
	res.Passed = res.Score >= passingScore(test)
	res.Time = analyzeTime(test, elapsedSeconds, res.TotalQuestions)

	return res
}

// gradeQuestion decides correctness for a single answered, gradable question.
func gradeQuestion(q *model.Question, ans model.Answer) bool {
	switch q.QuestionType {
	case model.QuestionTypeMCQ, model.QuestionTypeTrueFalse:
		return ans.Value == q.CorrectAnswer
	case model.QuestionTypeShortAnswer, model.QuestionTypeEssay:
		// Exact string match, deliberately. Fuzzy or rubric grading is a
		// separate product decision that this engine does not make.
		return ans.Value == q.CorrectAnswer
	case model.QuestionTypeMatching:
		return gradeMatching(q.MatchingPairs, ans.Pairs)
	case model.QuestionTypeOrdering:
		return gradeOrdering(q.OrderingItems, ans.Order)
	default:
		return false
	}
}

// gradeMatching is all-or-nothing: every canonical left must be answered and
// every selected right must equal the canonical right for that left.
func gradeMatching(key []model.MatchingPair, pairs []model.MatchSelection) bool {
	if len(key) == 0 || len(pairs) != len(key) {
		return false
	}
	selected := make(map[string]string, len(pairs))
	for _, p := range pairs {
		if _, dup := selected[p.Left]; dup {
			return false
		}
		selected[p.Left] = p.SelectedRight
	}
	for _, k := range key {
		if selected[k.Left] != k.Right {
			return false
		}
	}
	return true
}

// gradeOrdering is all-or-nothing: the answer must place every item at its
// canonical 1-based position.
func gradeOrdering(items []model.OrderingItem, order []string) bool {
	if len(items) == 0 || len(order) != len(items) {
		return false
	}
	position := make(map[string]int, len(order))
	for i, id := range order {
		if _, dup := position[id]; dup {
			return false
		}
		position[id] = i + 1
	}
	for _, it := range items {
		if position[it.ID] != it.CorrectPosition {
			return false
		}
	}
	return true
}

// isGradable reports whether the question carries enough grading data to be
// scored. Free-text questions without an answer key are ungraded.
func isGradable(q *model.Question) bool {
	switch q.QuestionType {
	case model.QuestionTypeShortAnswer, model.QuestionTypeEssay:
		return q.CorrectAnswer != ""
	case model.QuestionTypeMatching:
		return len(q.MatchingPairs) > 0
	case model.QuestionTypeOrdering:
		return len(q.OrderingItems) > 0
	default:
		return true
	}
}

func analyzeTime(test *model.Test, elapsedSeconds, total int) model.TimeAnalysis {
	ta := model.TimeAnalysis{
		ElapsedSeconds:  elapsedSeconds,
		VarianceSeconds: elapsedSeconds - test.DurationMinutes*60,
	}
	if ta.VarianceSeconds <= 0 {
		ta.Status = model.TimeStatusUnder
	} else {
		ta.Status = model.TimeStatusOver
	}
	if total > 0 {
		ta.AvgSecondsPerQuest = float64(elapsedSeconds) / float64(total)
	}
	return ta
}

func passingScore(test *model.Test) int {
	if test.PassingScore <= 0 {
		return model.DefaultPassingScore
	}
	return test.PassingScore
}

func bump[K comparable](m map[K]model.BucketStat, k K, correct bool) {
	s := m[k]
	s.Total++
	if correct {
		s.Correct++
	}
	m[k] = s
}
