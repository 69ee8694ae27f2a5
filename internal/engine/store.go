package engine

import (
	"sync"

	"github.com/google/uuid"

	"github.com/ksingla1885/Mindora-sub003/internal/model"
)

// Store is the in-memory source of truth for one attempt's answers, flags and
// navigation position. Payloads are opaque to the store; it never validates
// or grades. All mutations flow through it and are synchronously visible, and
// each one notifies the registered observer (the autosave scheduler).
type Store struct {
	mu           sync.RWMutex
	answers      map[uuid.UUID]model.Answer
	flagged      map[uuid.UUID]struct{}
	currentIndex int

	// onMutate is called after every mutation, outside the lock.
	onMutate func()
}

// NewStore builds an empty store.
func NewStore() *Store {
	return &Store{
		answers: make(map[uuid.UUID]model.Answer),
		flagged: make(map[uuid.UUID]struct{}),
	}
}

// SetObserver registers the mutation callback. Must be called before the
// session accepts input.
func (s *Store) SetObserver(fn func()) {
	s.mu.Lock()
	s.onMutate = fn
	s.mu.Unlock()
}

// SetAnswer records the answer payload for a question.
func (s *Store) SetAnswer(questionID uuid.UUID, ans model.Answer) {
	s.mu.Lock()
	s.answers[questionID] = ans
	s.mu.Unlock()
	s.notify()
}

// ToggleFlag flips the review flag on a question and returns the new state.
func (s *Store) ToggleFlag(questionID uuid.UUID) bool {
	s.mu.Lock()
	_, flagged := s.flagged[questionID]
	if flagged {
		delete(s.flagged, questionID)
	} else {
		s.flagged[questionID] = struct{}{}
	}
	s.mu.Unlock()
	s.notify()
	return !flagged
}

// SetCurrentIndex records the question the user is looking at.
func (s *Store) SetCurrentIndex(i int) {
	s.mu.Lock()
	s.currentIndex = i
	s.mu.Unlock()
	s.notify()
}

// IsFlagged reports whether a question is flagged for review.
func (s *Store) IsFlagged(questionID uuid.UUID) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.flagged[questionID]
	return ok
}

// Answers returns a copy of the answer map.
func (s *Store) Answers() map[uuid.UUID]model.Answer {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make(map[uuid.UUID]model.Answer, len(s.answers))
	for k, v := range s.answers {
		out[k] = v
	}
	return out
}

// Snapshot builds a full, self-consistent progress snapshot. elapsedSeconds
// comes from the deadline clock, the only authority for elapsed time.
func (s *Store) Snapshot(elapsedSeconds int) model.ProgressSnapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()

	snap := model.ProgressSnapshot{
		Answers:              make(map[uuid.UUID]model.Answer, len(s.answers)),
		ElapsedSeconds:       elapsedSeconds,
		CurrentQuestionIndex: s.currentIndex,
	}
	for k, v := range s.answers {
		snap.Answers[k] = v
	}
	for id := range s.flagged {
		snap.FlaggedQuestionIDs = append(snap.FlaggedQuestionIDs, id)
	}
	return snap
}

// Restore replaces the store contents from a persisted attempt. Used on
// resume; does not notify the observer.
func (s *Store) Restore(answers map[uuid.UUID]model.Answer, flagged []uuid.UUID, currentIndex int) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.answers = make(map[uuid.UUID]model.Answer, len(answers))
	for k, v := range answers {
		s.answers[k] = v
	}
	s.flagged = make(map[uuid.UUID]struct{}, len(flagged))
	for _, id := range flagged {
		s.flagged[id] = struct{}{}
	}
	s.currentIndex = currentIndex
}

func (s *Store) notify() {
	s.mu.RLock()
	fn := s.onMutate
	s.mu.RUnlock()
	if fn != nil {
		fn()
	}
}
