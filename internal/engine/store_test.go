package engine

import (
	"testing"

	"github.com/google/uuid"

	"github.com/ksingla1885/Mindora-sub003/internal/model"
)

func TestStore_SetAnswerAndSnapshot(t *testing.T) {
	s := NewStore()
	q1, q2 := uuid.New(), uuid.New()

	s.SetAnswer(q1, model.Answer{Type: model.QuestionTypeMCQ, Value: "A"})
	s.SetAnswer(q1, model.Answer{Type: model.QuestionTypeMCQ, Value: "B"}) // overwrite
	s.SetAnswer(q2, model.Answer{Type: model.QuestionTypeOrdering, Order: []string{"2", "1"}})
	s.SetCurrentIndex(1)

	snap := s.Snapshot(120)
	if len(snap.Answers) != 2 {
		t.Fatalf("snapshot has %d answers, want 2", len(snap.Answers))
	}
	if snap.Answers[q1].Value != "B" {
		t.Errorf("q1 = %q, want overwrite to B", snap.Answers[q1].Value)
	}
	if snap.ElapsedSeconds != 120 || snap.CurrentQuestionIndex != 1 {
		t.Errorf("snapshot meta = %+v", snap)
	}
}

func TestStore_SnapshotIsACopy(t *testing.T) {
	s := NewStore()
	q := uuid.New()
	s.SetAnswer(q, model.Answer{Type: model.QuestionTypeMCQ, Value: "A"})

	snap := s.Snapshot(0)
	snap.Answers[q] = model.Answer{Type: model.QuestionTypeMCQ, Value: "tampered"}

	if got := s.Answers()[q].Value; got != "A" {
		t.Errorf("store mutated through snapshot copy: %q", got)
	}
}

func TestStore_ToggleFlag(t *testing.T) {
	s := NewStore()
	q := uuid.New()

	if on := s.ToggleFlag(q); !on {
		t.Error("first toggle should flag")
	}
	if !s.IsFlagged(q) {
		t.Error("IsFlagged = false after flagging")
	}
	if on := s.ToggleFlag(q); on {
		t.Error("second toggle should unflag")
	}
	if len(s.Snapshot(0).FlaggedQuestionIDs) != 0 {
		t.Error("snapshot still carries unflagged question")
	}
}

func TestStore_ObserverNotifiedPerMutation(t *testing.T) {
	s := NewStore()
	count := 0
	s.SetObserver(func() { count++ })

	q := uuid.New()
	s.SetAnswer(q, model.Answer{Type: model.QuestionTypeMCQ, Value: "A"})
	s.ToggleFlag(q)
	s.SetCurrentIndex(3)

	if count != 3 {
		t.Errorf("observer called %d times, want 3", count)
	}

	// Restore is not a user mutation and must not trigger autosave.
	s.Restore(nil, nil, 0)
	if count != 3 {
		t.Errorf("Restore notified the observer (count %d)", count)
	}
}

func TestStore_RestoreRoundTrip(t *testing.T) {
	s := NewStore()
	q1, q2 := uuid.New(), uuid.New()
	s.SetAnswer(q1, model.Answer{Type: model.QuestionTypeShortAnswer, Value: "osmosis"})
	s.SetAnswer(q2, model.Answer{Type: model.QuestionTypeMatching, Pairs: []model.MatchSelection{{Left: "a", SelectedRight: "b"}}})
	s.ToggleFlag(q2)
	s.SetCurrentIndex(5)

	snap := s.Snapshot(300)

	restored := NewStore()
	restored.Restore(snap.Answers, snap.FlaggedQuestionIDs, snap.CurrentQuestionIndex)
	got := restored.Snapshot(300)

	if len(got.Answers) != 2 || got.Answers[q1].Value != "osmosis" {
		t.Errorf("answers did not survive round trip: %+v", got.Answers)
	}
	if len(got.FlaggedQuestionIDs) != 1 || got.FlaggedQuestionIDs[0] != q2 {
		t.Errorf("flags did not survive round trip: %v", got.FlaggedQuestionIDs)
	}
	if got.CurrentQuestionIndex != 5 {
		t.Errorf("index did not survive round trip: %d", got.CurrentQuestionIndex)
	}
}
