package scoring

import (
	"reflect"
	"testing"

	"github.com/google/uuid"

	"github.com/ksingla1885/Mindora-sub003/internal/model"
)

var (
	qMCQ = model.Question{
		ID:            uuid.New(),
		QuestionType:  model.QuestionTypeMCQ,
		Difficulty:    model.DifficultyEasy,
		Marks:         1,
		Options:       []string{"A", "B", "C", "D"},
		CorrectAnswer: "B",
	}
	qTF = model.Question{
		ID:            uuid.New(),
		QuestionType:  model.QuestionTypeTrueFalse,
		Difficulty:    model.DifficultyMedium,
		Marks:         1,
		Options:       []string{"true", "false"},
		CorrectAnswer: "true",
	}
	qShort = model.Question{
		ID:            uuid.New(),
		QuestionType:  model.QuestionTypeShortAnswer,
		Difficulty:    model.DifficultyMedium,
		Marks:         2,
		CorrectAnswer: "photosynthesis",
	}
	qEssayUngraded = model.Question{
		ID:           uuid.New(),
		QuestionType: model.QuestionTypeEssay,
		Difficulty:   model.DifficultyHard,
		Marks:        5,
	}
	qMatch = model.Question{
		ID:           uuid.New(),
		QuestionType: model.QuestionTypeMatching,
		Difficulty:   model.DifficultyHard,
		Marks:        3,
		MatchingPairs: []model.MatchingPair{
			{Left: "H2O", Right: "water"},
			{Left: "NaCl", Right: "salt"},
			{Left: "CO2", Right: "carbon dioxide"},
		},
	}
	qOrder = model.Question{
		ID:           uuid.New(),
		QuestionType: model.QuestionTypeOrdering,
		Difficulty:   model.DifficultyMedium,
		Marks:        2,
		OrderingItems: []model.OrderingItem{
			{ID: "1", Text: "first", CorrectPosition: 1},
			{ID: "2", Text: "second", CorrectPosition: 2},
		},
	}
)

func testWith(questions ...model.Question) *model.Test {
	return &model.Test{
		ID:              uuid.New(),
		Title:           "unit",
		DurationMinutes: 60,
		PassingScore:    70,
		Questions:       questions,
	}
}

func TestGradeQuestion(t *testing.T) {
	tests := []struct {
		name    string
		q       model.Question
		ans     model.Answer
		correct bool
	}{
		{"mcq exact match", qMCQ, model.Answer{Type: model.QuestionTypeMCQ, Value: "B"}, true},
		{"mcq wrong option", qMCQ, model.Answer{Type: model.QuestionTypeMCQ, Value: "A"}, false},
		{"mcq case sensitive", qMCQ, model.Answer{Type: model.QuestionTypeMCQ, Value: "b"}, false},
		{"true_false correct", qTF, model.Answer{Type: model.QuestionTypeTrueFalse, Value: "true"}, true},
		{"true_false wrong", qTF, model.Answer{Type: model.QuestionTypeTrueFalse, Value: "false"}, false},
		{"short answer exact", qShort, model.Answer{Type: model.QuestionTypeShortAnswer, Value: "photosynthesis"}, true},
		{"short answer near miss not credited", qShort, model.Answer{Type: model.QuestionTypeShortAnswer, Value: "Photosynthesis"}, false},
		{
			"matching all pairs correct", qMatch,
			model.Answer{Type: model.QuestionTypeMatching, Pairs: []model.MatchSelection{
				{Left: "NaCl", SelectedRight: "salt"},
				{Left: "H2O", SelectedRight: "water"},
				{Left: "CO2", SelectedRight: "carbon dioxide"},
			}},
			true,
		},
		{
			"matching two of three is not partial credit", qMatch,
			model.Answer{Type: model.QuestionTypeMatching, Pairs: []model.MatchSelection{
				{Left: "H2O", SelectedRight: "water"},
				{Left: "NaCl", SelectedRight: "salt"},
				{Left: "CO2", SelectedRight: "salt"},
			}},
			false,
		},
		{
			"matching incomplete answer", qMatch,
			model.Answer{Type: model.QuestionTypeMatching, Pairs: []model.MatchSelection{
				{Left: "H2O", SelectedRight: "water"},
			}},
			false,
		},
		{
			"ordering exact sequence", qOrder,
			model.Answer{Type: model.QuestionTypeOrdering, Order: []string{"1", "2"}},
			true,
		},
		{
			"ordering swapped", qOrder,
			model.Answer{Type: model.QuestionTypeOrdering, Order: []string{"2", "1"}},
			false,
		},
		{
			"ordering missing item", qOrder,
			model.Answer{Type: model.QuestionTypeOrdering, Order: []string{"1"}},
			false,
		},
		{
			"ordering duplicate item", qOrder,
			model.Answer{Type: model.QuestionTypeOrdering, Order: []string{"1", "1"}},
			false,
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			if got := gradeQuestion(&tc.q, tc.ans); got != tc.correct {
				t.Errorf("gradeQuestion() = %v, want %v", got, tc.correct)
			}
		})
	}
}

func TestScore_EmptyTest(t *testing.T) {
	res := Score(testWith(), map[uuid.UUID]model.Answer{}, 120)
	if res.Score != 0 || res.TotalQuestions != 0 || res.CorrectCount != 0 {
		t.Fatalf("empty test: got score=%d correct=%d total=%d, want all zero",
			res.Score, res.CorrectCount, res.TotalQuestions)
	}
	if res.Passed {
		t.Error("empty test must not pass with passing score 70")
	}
}

func TestScore_AllMissingAnswers(t *testing.T) {
	res := Score(testWith(qMCQ, qMatch, qOrder), nil, 0)
	if res.Score != 0 || res.CorrectCount != 0 {
		t.Fatalf("all missing: got score=%d correct=%d, want 0/0", res.Score, res.CorrectCount)
	}
	for _, r := range res.Review {
		if r.Answered || r.Correct {
			t.Errorf("question %s: answered=%v correct=%v, want false/false", r.QuestionID, r.Answered, r.Correct)
		}
	}
}

func TestScore_AllCorrect(t *testing.T) {
	answers := map[uuid.UUID]model.Answer{
		qMCQ.ID: {Type: model.QuestionTypeMCQ, Value: "B"},
		qTF.ID:  {Type: model.QuestionTypeTrueFalse, Value: "true"},
		qOrder.ID: {Type: model.QuestionTypeOrdering, Order: []string{"1", "2"}},
	}
	res := Score(testWith(qMCQ, qTF, qOrder), answers, 1800)
	if res.Score != 100 || res.CorrectCount != 3 {
		t.Fatalf("got score=%d correct=%d, want 100/3", res.Score, res.CorrectCount)
	}
	if !res.Passed {
		t.Error("score 100 must pass")
	}
	if res.MaxScore != 4 || res.EarnedMarks != 4 {
		t.Errorf("marks: got max=%d earned=%d, want 4/4", res.MaxScore, res.EarnedMarks)
	}
}

// Scenario from the product requirements: one MCQ answered "B" plus one
// two-item ordering question answered in order scores 100 with 2 correct.
func TestScore_MCQPlusOrderingScenario(t *testing.T) {
	answers := map[uuid.UUID]model.Answer{
		qMCQ.ID:   {Type: model.QuestionTypeMCQ, Value: "B"},
		qOrder.ID: {Type: model.QuestionTypeOrdering, Order: []string{"1", "2"}},
	}
	res := Score(testWith(qMCQ, qOrder), answers, 600)
	if res.Score != 100 || res.CorrectCount != 2 {
		t.Fatalf("got score=%d correct=%d, want 100/2", res.Score, res.CorrectCount)
	}
}

func TestScore_Rounding(t *testing.T) {
	// 1 of 3 correct → 33, 2 of 3 → 67.
	answers := map[uuid.UUID]model.Answer{
		qMCQ.ID: {Type: model.QuestionTypeMCQ, Value: "B"},
	}
	res := Score(testWith(qMCQ, qTF, qOrder), answers, 0)
	if res.Score != 33 {
		t.Errorf("1/3 correct: got %d, want 33", res.Score)
	}

	answers[qTF.ID] = model.Answer{Type: model.QuestionTypeTrueFalse, Value: "true"}
	res = Score(testWith(qMCQ, qTF, qOrder), answers, 0)
	if res.Score != 67 {
		t.Errorf("2/3 correct: got %d, want 67", res.Score)
	}
}

func TestScore_UngradedEssay(t *testing.T) {
	answers := map[uuid.UUID]model.Answer{
		qEssayUngraded.ID: {Type: model.QuestionTypeEssay, Value: "a long essay"},
		qMCQ.ID:           {Type: model.QuestionTypeMCQ, Value: "B"},
	}
	res := Score(testWith(qMCQ, qEssayUngraded), answers, 0)
	if res.CorrectCount != 1 {
		t.Fatalf("got correct=%d, want 1 (essay without key is never correct)", res.CorrectCount)
	}
	var essay *model.QuestionReview
	for i := range res.Review {
		if res.Review[i].QuestionID == qEssayUngraded.ID {
			essay = &res.Review[i]
		}
	}
	if essay == nil || essay.Graded || !essay.Answered {
		t.Fatalf("essay review = %+v, want answered and ungraded", essay)
	}
}

func TestScore_Breakdowns(t *testing.T) {
	answers := map[uuid.UUID]model.Answer{
		qMCQ.ID:   {Type: model.QuestionTypeMCQ, Value: "B"},
		qShort.ID: {Type: model.QuestionTypeShortAnswer, Value: "wrong"},
	}
	res := Score(testWith(qMCQ, qShort), answers, 0)

	wantType := map[model.QuestionType]model.BucketStat{
		model.QuestionTypeMCQ:         {Correct: 1, Total: 1},
		model.QuestionTypeShortAnswer: {Correct: 0, Total: 1},
	}
	if !reflect.DeepEqual(res.ByType, wantType) {
		t.Errorf("ByType = %v, want %v", res.ByType, wantType)
	}

	wantDiff := map[model.Difficulty]model.BucketStat{
		model.DifficultyEasy:   {Correct: 1, Total: 1},
		model.DifficultyMedium: {Correct: 0, Total: 1},
	}
	if !reflect.DeepEqual(res.ByDifficulty, wantDiff) {
		t.Errorf("ByDifficulty = %v, want %v", res.ByDifficulty, wantDiff)
	}
}

func TestScore_TimeAnalysis(t *testing.T) {
	tests := []struct {
		name     string
		elapsed  int
		variance int
		status   model.TimeStatus
	}{
		{"under allotted time", 1800, -1800, model.TimeStatusUnder},
		{"exactly on time", 3600, 0, model.TimeStatusUnder},
		{"over allotted time", 3700, 100, model.TimeStatusOver},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			res := Score(testWith(qMCQ, qTF), nil, tc.elapsed)
			if res.Time.VarianceSeconds != tc.variance || res.Time.Status != tc.status {
				t.Errorf("time = %+v, want variance=%d status=%s", res.Time, tc.variance, tc.status)
			}
			wantAvg := float64(tc.elapsed) / 2
			if res.Time.AvgSecondsPerQuest != wantAvg {
				t.Errorf("avg = %v, want %v", res.Time.AvgSecondsPerQuest, wantAvg)
			}
		})
	}
}

func TestScore_Deterministic(t *testing.T) {
	answers := map[uuid.UUID]model.Answer{
		qMCQ.ID:   {Type: model.QuestionTypeMCQ, Value: "B"},
		qOrder.ID: {Type: model.QuestionTypeOrdering, Order: []string{"2", "1"}},
	}
	a := Score(testWith(qMCQ, qTF, qOrder), answers, 900)
	b := Score(testWith(qMCQ, qTF, qOrder), answers, 900)
	if !reflect.DeepEqual(a, b) {
		t.Error("Score is not deterministic for identical inputs")
	}
}

func TestScore_DefaultPassingScore(t *testing.T) {
	tst := testWith(qMCQ)
	tst.PassingScore = 0 // unset → default 70
	res := Score(tst, map[uuid.UUID]model.Answer{qMCQ.ID: {Type: model.QuestionTypeMCQ, Value: "B"}}, 0)
	if !res.Passed {
		t.Error("100 must pass against default passing score")
	}
	res = Score(tst, nil, 0)
	if res.Passed {
		t.Error("0 must not pass against default passing score")
	}
}
