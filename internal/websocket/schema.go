package websocket

import (
	"github.com/google/uuid"

	"github.com/ksingla1885/Mindora-sub003/internal/engine"
	"github.com/ksingla1885/Mindora-sub003/internal/model"
)

// ─── Actions (Client → Server) ──────────────────────────────────────

type Action string

const (
	ActionAnswer   Action = "answer"
	ActionFlag     Action = "flag"
	ActionNavigate Action = "navigate"
	ActionSubmit   Action = "submit"
	ActionPing     Action = "ping"
)

// RequestPayload carries any client action. Fields beyond Action are
// populated per action.
type RequestPayload struct {
	Action     Action       `json:"action"`
	QuestionID string       `json:"question_id,omitempty"`
	Answer     model.Answer `json:"answer,omitempty"`
	Index      int          `json:"index,omitempty"`
}

// ─── Events (Server → Client) ───────────────────────────────────────

type Event string

const (
	EventError   Event = "error"
	EventAck     Event = "ack"
	EventSession Event = "session"
	EventPong    Event = "pong"
)

// AckResponse confirms a mutation was accepted.
type AckResponse struct {
	Event   Event  `json:"event"`
	Action  Action `json:"action"`
	Flagged *bool  `json:"flagged,omitempty"`
}

// SessionEvent wraps a controller event for the wire: saves, time warnings,
// time-up and the final result all arrive through this.
type SessionEvent struct {
	Event   Event        `json:"event"`
	Session engine.Event `json:"session"`
}

// ErrorResponse reports a rejected action or server failure.
type ErrorResponse struct {
	Event Event  `json:"event"`
	Error string `json:"error"`
}

// PongResponse answers a ping, carrying the server-computed remaining time so
// clients can correct clock drift.
type PongResponse struct {
	Event            Event `json:"event"`
	RemainingSeconds int   `json:"remaining_seconds"`
}

// ParseQuestionID validates the question_id field of a mutation.
func (p *RequestPayload) ParseQuestionID() (uuid.UUID, error) {
	return uuid.Parse(p.QuestionID)
}
