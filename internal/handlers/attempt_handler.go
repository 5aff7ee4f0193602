package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/SAP-F-2025/examination-service/internal/models"
	"github.com/SAP-F-2025/examination-service/internal/services"
	"github.com/SAP-F-2025/examination-service/internal/utils"
)

// AttemptHandler serves the candidate facing attempt lifecycle
type AttemptHandler struct {
	BaseHandler
	attemptService services.AttemptService
}

func NewAttemptHandler(attemptService services.AttemptService, logger utils.Logger) *AttemptHandler {
	return &AttemptHandler{
		BaseHandler:    NewBaseHandler(logger),
		attemptService: attemptService,
	}
}

func (h *AttemptHandler) Register(group *gin.RouterGroup) {
	group.POST("/start", h.StartAttempt)
	group.GET("/:id", h.GetAttempt)
	group.POST("/:id/answers", h.RecordAnswer)
	group.GET("/:id/answers", h.ListAnswers)
	group.POST("/:id/submit", h.SubmitAttempt)
	group.POST("/:id/expire", h.ExpireAttempt)
	group.POST("/:id/stop", h.StopAttempt)
	group.POST("/:id/grade", h.GradeAttempt)
	group.GET("/:id/time-remaining", h.GetTimeRemaining)
}

// StartAttempt starts a new attempt, or the caller's pre-assigned one
// @Summary Start attempt
// @Tags attempts
// @Accept json
// @Produce json
// @Param attempt body models.StartAttemptRequest true "Start attempt data"
// @Success 201 {object} SuccessResponse{data=models.TestAttempt}
// @Failure 400 {object} ErrorResponse
// @Failure 403 {object} ErrorResponse
// @Failure 409 {object} ErrorResponse
// @Router /attempts/start [post]
func (h *AttemptHandler) StartAttempt(c *gin.Context) {
	actor, ok := h.actor(c)
	if !ok {
		return
	}

	var req models.StartAttemptRequest
	if !h.bindJSON(c, &req) {
		return
	}

	h.LogRequest(c, "Starting attempt", "paper_id", req.PaperID)

	client := models.ClientInfo{
		IPAddress: c.ClientIP(),
		UserAgent: c.Request.UserAgent(),
	}
	attempt, err := h.attemptService.Start(c.Request.Context(), actor, &req, client)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}

	h.created(c, attempt, "Attempt started successfully")
}

// GetAttempt returns an attempt, closing it first when its deadline has passed
// @Router /attempts/{id} [get]
func (h *AttemptHandler) GetAttempt(c *gin.Context) {
	actor, ok := h.actor(c)
	if !ok {
		return
	}
	id := h.parseIDParam(c, "id")
	if id == 0 {
		return
	}

	attempt, err := h.attemptService.Get(c.Request.Context(), actor, id)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}

	h.ok(c, attempt, "")
}

// RecordAnswer stores or replaces the answer to one question
// @Summary Record answer
// @Tags attempts
// @Param id path uint true "Attempt ID"
// @Param answer body models.RecordAnswerRequest true "Answer data"
// @Success 200 {object} SuccessResponse{data=models.Answer}
// @Failure 409 {object} ErrorResponse
// @Failure 422 {object} ErrorResponse
// @Router /attempts/{id}/answers [post]
func (h *AttemptHandler) RecordAnswer(c *gin.Context) {
	actor, ok := h.actor(c)
	if !ok {
		return
	}
	attemptID := h.parseIDParam(c, "id")
	if attemptID == 0 {
		return
	}

	var req models.RecordAnswerRequest
	if !h.bindJSON(c, &req) {
		return
	}

	h.LogRequest(c, "Recording answer", "attempt_id", attemptID, "question_id", req.QuestionID)

	answer, err := h.attemptService.RecordAnswer(c.Request.Context(), actor, attemptID, &req)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}

	h.ok(c, answer, "Answer recorded successfully")
}

// ListAnswers returns the answers of an attempt
// @Router /attempts/{id}/answers [get]
func (h *AttemptHandler) ListAnswers(c *gin.Context) {
	actor, ok := h.actor(c)
	if !ok {
		return
	}
	attemptID := h.parseIDParam(c, "id")
	if attemptID == 0 {
		return
	}

	answers, err := h.attemptService.ListAnswers(c.Request.Context(), actor, attemptID)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}
	if answers == nil {
		answers = []*models.Answer{}
	}

	h.ok(c, answers, "")
}

// SubmitAttempt closes the attempt and scores it
// @Router /attempts/{id}/submit [post]
func (h *AttemptHandler) SubmitAttempt(c *gin.Context) {
	actor, ok := h.actor(c)
	if !ok {
		return
	}
	attemptID := h.parseIDParam(c, "id")
	if attemptID == 0 {
		return
	}

	h.LogRequest(c, "Submitting attempt", "attempt_id", attemptID)

	attempt, err := h.attemptService.Submit(c.Request.Context(), actor, attemptID)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}

	h.ok(c, attempt, "Attempt submitted successfully")
}

// ExpireAttempt closes an attempt whose deadline has passed
// @Router /attempts/{id}/expire [post]
func (h *AttemptHandler) ExpireAttempt(c *gin.Context) {
	actor, ok := h.actor(c)
	if !ok {
		return
	}
	attemptID := h.parseIDParam(c, "id")
	if attemptID == 0 {
		return
	}

	attempt, err := h.attemptService.Expire(c.Request.Context(), actor, attemptID)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}

	h.ok(c, attempt, "Attempt expired")
}

// StopAttempt force closes a running attempt
// @Router /attempts/{id}/stop [post]
func (h *AttemptHandler) StopAttempt(c *gin.Context) {
	actor, ok := h.actor(c)
	if !ok {
		return
	}
	attemptID := h.parseIDParam(c, "id")
	if attemptID == 0 {
		return
	}

	var req models.StopAttemptRequest
	if !h.bindJSON(c, &req) {
		return
	}

	h.LogRequest(c, "Stopping attempt", "attempt_id", attemptID)

	attempt, err := h.attemptService.Stop(c.Request.Context(), actor, attemptID, &req)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}

	h.ok(c, attempt, "Attempt stopped")
}

// GradeAttempt records manual marks and completes a submitted attempt
// @Router /attempts/{id}/grade [post]
func (h *AttemptHandler) GradeAttempt(c *gin.Context) {
	actor, ok := h.actor(c)
	if !ok {
		return
	}
	attemptID := h.parseIDParam(c, "id")
	if attemptID == 0 {
		return
	}

	var req models.GradeAttemptRequest
	if !h.bindJSON(c, &req) {
		return
	}

	h.LogRequest(c, "Grading attempt", "attempt_id", attemptID, "marks", len(req.Marks))

	attempt, err := h.attemptService.Grade(c.Request.Context(), actor, attemptID, &req)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}

	h.ok(c, attempt, "Attempt graded successfully")
}

// GetTimeRemaining reports seconds left before the deadline
// @Router /attempts/{id}/time-remaining [get]
func (h *AttemptHandler) GetTimeRemaining(c *gin.Context) {
	actor, ok := h.actor(c)
	if !ok {
		return
	}
	attemptID := h.parseIDParam(c, "id")
	if attemptID == 0 {
		return
	}

	remaining, err := h.attemptService.TimeRemaining(c.Request.Context(), actor, attemptID)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, SuccessResponse{Data: remaining})
}
