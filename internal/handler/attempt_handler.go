package handler

import (
	"errors"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/ksingla1885/Mindora-sub003/internal/middleware"
	"github.com/ksingla1885/Mindora-sub003/internal/model"
	"github.com/ksingla1885/Mindora-sub003/internal/response"
	"github.com/ksingla1885/Mindora-sub003/internal/service"
	"github.com/ksingla1885/Mindora-sub003/internal/validator"
)

// AttemptHandler handles the attempt-taking endpoints: paper download,
// attempt start/resume, progress saves, submission and results.
type AttemptHandler struct {
	attemptService *service.AttemptService
	testService    *service.TestService
}

// NewAttemptHandler creates a new AttemptHandler.
func NewAttemptHandler(attemptService *service.AttemptService, testService *service.TestService) *AttemptHandler {
	return &AttemptHandler{
		attemptService: attemptService,
		testService:    testService,
	}
}

// GetPaper godoc
// GET /api/v1/tests/:test_id/paper
// Returns the student-facing paper from Redis. No grading data leaves the
// server.
func (h *AttemptHandler) GetPaper(c *gin.Context) {
	claims := middleware.GetClaims(c)
	if claims == nil {
		response.Fail(c, http.StatusUnauthorized, response.ErrTokenRequired)
		return
	}

	testID, err := uuid.Parse(c.Param("test_id"))
	if err != nil {
		response.Fail(c, http.StatusBadRequest, response.ErrInvalidID)
		return
	}

	paper, err := h.testService.GetPaper(c.Request.Context(), testID)
	if err != nil {
		switch {
		case errors.Is(err, service.ErrTestNotFound):
			response.Fail(c, http.StatusNotFound, response.ErrNotFound)
		case errors.Is(err, service.ErrTestNotPublished):
			response.Fail(c, http.StatusNotFound, response.ErrTestNotPublished)
		default:
			response.Fail(c, http.StatusInternalServerError, response.ErrInternal)
		}
		return
	}

	response.Success(c, http.StatusOK, paper)
}

// StartAttempt godoc
// POST /api/v1/tests/:test_id/attempt
// Starts an attempt, or returns the existing one. Calling twice never resets
// the clock.
func (h *AttemptHandler) StartAttempt(c *gin.Context) {
	claims := middleware.GetClaims(c)
	if claims == nil {
		response.Fail(c, http.StatusUnauthorized, response.ErrTokenRequired)
		return
	}

	testID, err := uuid.Parse(c.Param("test_id"))
	if err != nil {
		response.Fail(c, http.StatusBadRequest, response.ErrInvalidID)
		return
	}

	attempt, err := h.attemptService.GetOrCreateAttempt(c.Request.Context(), testID, claims.UserID)
	if err != nil {
		switch {
		case errors.Is(err, service.ErrTestNotFound):
			response.Fail(c, http.StatusNotFound, response.ErrNotFound)
		case errors.Is(err, service.ErrTestNotPublished):
			response.Fail(c, http.StatusNotFound, response.ErrTestNotPublished)
		default:
			response.Fail(c, http.StatusInternalServerError, response.ErrInternal)
		}
		return
	}

	status, remaining, err := h.attemptService.GetStatus(c.Request.Context(), attempt.ID, claims.UserID)
	if err != nil {
		response.Fail(c, http.StatusInternalServerError, response.ErrInternal)
		return
	}

	response.Success(c, http.StatusOK, gin.H{
		"attempt":           attempt,
		"status":            status,
		"remaining_seconds": remaining,
	})
}

// GetState godoc
// GET /api/v1/attempts/:attempt_id/state
// Returns the resume payload: saved answers, flags, position and the
// recomputed remaining time.
func (h *AttemptHandler) GetState(c *gin.Context) {
	claims, attemptID, ok := h.attemptParams(c)
	if !ok {
		return
	}

	state, err := h.attemptService.GetState(c.Request.Context(), attemptID, claims.UserID)
	if err != nil {
		h.failAttemptError(c, err)
		return
	}

	response.Success(c, http.StatusOK, state)
}

// SaveProgress godoc
// PUT /api/v1/attempts/:attempt_id/progress
// Replaces the stored snapshot for an in-progress attempt.
func (h *AttemptHandler) SaveProgress(c *gin.Context) {
	claims, attemptID, ok := h.attemptParams(c)
	if !ok {
		return
	}

	var req model.SaveProgressRequest
	if fields := validator.Bind(c, &req); fields != nil {
		response.FailWithFields(c, http.StatusBadRequest, response.ErrValidation, fields)
		return
	}

	if _, err := h.attemptService.VerifyOwner(c.Request.Context(), attemptID, claims.UserID); err != nil {
		h.failAttemptError(c, err)
		return
	}

	snap := model.ProgressSnapshot{
		Answers:              req.Answers,
		FlaggedQuestionIDs:   req.FlaggedQuestionIDs,
		ElapsedSeconds:       req.ElapsedSeconds,
		CurrentQuestionIndex: req.CurrentQuestionIndex,
	}
	if err := h.attemptService.SaveProgress(c.Request.Context(), attemptID, snap); err != nil {
		if errors.Is(err, service.ErrAttemptSubmitted) {
			response.Fail(c, http.StatusConflict, response.ErrAttemptSubmitted)
			return
		}
		response.Fail(c, http.StatusInternalServerError, response.ErrSaveFailed)
		return
	}

	response.Success(c, http.StatusOK, gin.H{"saved": true})
}

// Submit godoc
// POST /api/v1/attempts/:attempt_id/submit
// Submits and grades the attempt. Idempotent: repeat calls return the same
// stored result. The body is optional; without it the last saved snapshot is
// submitted.
func (h *AttemptHandler) Submit(c *gin.Context) {
	claims, attemptID, ok := h.attemptParams(c)
	if !ok {
		return
	}

	var answers map[uuid.UUID]model.Answer
	elapsed := -1
	var req model.SubmitRequest
	if err := c.ShouldBindJSON(&req); err == nil {
		answers = req.Answers
		elapsed = req.ElapsedSeconds
	} else if !errors.Is(err, io.EOF) {
		response.Fail(c, http.StatusBadRequest, response.ErrInvalidPayload)
		return
	}

	attempt, err := h.attemptService.VerifyOwner(c.Request.Context(), attemptID, claims.UserID)
	if err != nil {
		h.failAttemptError(c, err)
		return
	}
	if elapsed < 0 {
		elapsed = attempt.ElapsedSeconds
	}

	result, err := h.attemptService.Submit(c.Request.Context(), attemptID, answers, elapsed)
	if err != nil {
		response.Fail(c, http.StatusInternalServerError, response.ErrSubmitFailed)
		return
	}

	response.Success(c, http.StatusOK, result)
}

// GetStatus godoc
// GET /api/v1/attempts/:attempt_id/status
// Lightweight poll: attempt status plus remaining seconds.
func (h *AttemptHandler) GetStatus(c *gin.Context) {
	claims, attemptID, ok := h.attemptParams(c)
	if !ok {
		return
	}

	status, remaining, err := h.attemptService.GetStatus(c.Request.Context(), attemptID, claims.UserID)
	if err != nil {
		h.failAttemptError(c, err)
		return
	}

	response.Success(c, http.StatusOK, gin.H{
		"status":            status,
		"remaining_seconds": remaining,
	})
}

// GetResult godoc
// GET /api/v1/attempts/:attempt_id/result
// Returns the stored result of a submitted attempt.
func (h *AttemptHandler) GetResult(c *gin.Context) {
	claims, attemptID, ok := h.attemptParams(c)
	if !ok {
		return
	}

	result, err := h.attemptService.GetResult(c.Request.Context(), attemptID, claims.UserID)
	if err != nil {
		if errors.Is(err, service.ErrResultNotReady) {
			response.Fail(c, http.StatusConflict, response.ErrResultNotReady)
			return
		}
		h.failAttemptError(c, err)
		return
	}

	response.Success(c, http.StatusOK, result)
}

// attemptParams extracts the authenticated claims and the attempt_id path
// parameter, writing the failure response itself when either is missing.
func (h *AttemptHandler) attemptParams(c *gin.Context) (*service.Claims, uuid.UUID, bool) {
	claims := middleware.GetClaims(c)
	if claims == nil {
		response.Fail(c, http.StatusUnauthorized, response.ErrTokenRequired)
		return nil, uuid.Nil, false
	}

	attemptID, err := uuid.Parse(c.Param("attempt_id"))
	if err != nil {
		response.Fail(c, http.StatusBadRequest, response.ErrInvalidID)
		return nil, uuid.Nil, false
	}
	return claims, attemptID, true
}

func (h *AttemptHandler) failAttemptError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, service.ErrAttemptNotFound):
		response.Fail(c, http.StatusNotFound, response.ErrAttemptNotFound)
	case errors.Is(err, service.ErrNotAttemptOwner):
		response.Fail(c, http.StatusForbidden, response.ErrForbidden)
	default:
		response.Fail(c, http.StatusInternalServerError, response.ErrInternal)
	}
}
