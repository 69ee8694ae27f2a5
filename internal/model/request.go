package model

import "github.com/google/uuid"

// SaveProgressRequest is the PUT progress body. It mirrors ProgressSnapshot:
// a complete state replacement, never a diff.
type SaveProgressRequest struct {
	Answers              map[uuid.UUID]Answer `json:"answers" binding:"required"`
	FlaggedQuestionIDs   []uuid.UUID          `json:"flagged_question_ids"`
	ElapsedSeconds       int                  `json:"elapsed_seconds" binding:"gte=0"`
	CurrentQuestionIndex int                  `json:"current_question_index" binding:"gte=0"`
}

// SubmitRequest is the optional POST submit body. When omitted the server
// submits the last saved snapshot.
type SubmitRequest struct {
	Answers        map[uuid.UUID]Answer `json:"answers"`
	ElapsedSeconds int                  `json:"elapsed_seconds" binding:"gte=0"`
}
