package handlers

import (
	"github.com/gin-gonic/gin"

	"github.com/SAP-F-2025/examination-service/internal/models"
	"github.com/SAP-F-2025/examination-service/internal/services"
	"github.com/SAP-F-2025/examination-service/internal/utils"
)

// PaperHandler adds question composition and publishing to the paper CRUD cluster
type PaperHandler struct {
	*CRUDHandler[models.Paper, models.PaperCreateRequest, models.PaperUpdateRequest]
	paperService services.PaperService
}

func NewPaperHandler(paperService services.PaperService, exporter services.ExportService, logger utils.Logger) *PaperHandler {
	return &PaperHandler{
		CRUDHandler:  NewCRUDHandler[models.Paper, models.PaperCreateRequest, models.PaperUpdateRequest]("papers", "Paper", paperService, exporter, logger),
		paperService: paperService,
	}
}

func (h *PaperHandler) Register(group *gin.RouterGroup) {
	h.CRUDHandler.Register(group)
	group.POST("/:id/questions", h.AttachQuestions)
	group.DELETE("/:id/questions/:question_id", h.DetachQuestion)
	group.PUT("/:id/questions/order", h.ReorderQuestions)
	group.PUT("/:id/user-categories", h.SetUserCategories)
	group.POST("/:id/publish", h.Publish)
	group.POST("/:id/archive", h.Archive)
}

// AttachQuestions adds questions to a draft paper
// @Summary Attach questions
// @Tags papers
// @Param id path uint true "Paper ID"
// @Param body body models.PaperQuestionsRequest true "Questions"
// @Success 200 {object} SuccessResponse{data=models.Paper}
// @Failure 409 {object} ErrorResponse
// @Router /papers/{id}/questions [post]
func (h *PaperHandler) AttachQuestions(c *gin.Context) {
	actor, ok := h.actor(c)
	if !ok {
		return
	}
	id := h.parseIDParam(c, "id")
	if id == 0 {
		return
	}

	var req models.PaperQuestionsRequest
	if !h.bindJSON(c, &req) {
		return
	}

	h.LogRequest(c, "Attaching questions to paper", "paper_id", id, "count", len(req.Questions))

	paper, err := h.paperService.AttachQuestions(c.Request.Context(), actor, id, &req)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}

	h.ok(c, paper, "Questions attached successfully")
}

// DetachQuestion removes one question from a draft paper
// @Router /papers/{id}/questions/{question_id} [delete]
func (h *PaperHandler) DetachQuestion(c *gin.Context) {
	actor, ok := h.actor(c)
	if !ok {
		return
	}
	id := h.parseIDParam(c, "id")
	if id == 0 {
		return
	}
	questionID := h.parseIDParam(c, "question_id")
	if questionID == 0 {
		return
	}

	h.LogRequest(c, "Detaching question from paper", "paper_id", id, "question_id", questionID)

	paper, err := h.paperService.DetachQuestion(c.Request.Context(), actor, id, questionID)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}

	h.ok(c, paper, "Question detached successfully")
}

// ReorderQuestions sets the question order to the given id sequence
// @Router /papers/{id}/questions/order [put]
func (h *PaperHandler) ReorderQuestions(c *gin.Context) {
	actor, ok := h.actor(c)
	if !ok {
		return
	}
	id := h.parseIDParam(c, "id")
	if id == 0 {
		return
	}

	var req models.PaperReorderRequest
	if !h.bindJSON(c, &req) {
		return
	}

	paper, err := h.paperService.ReorderQuestions(c.Request.Context(), actor, id, &req)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}

	h.ok(c, paper, "Questions reordered successfully")
}

// SetUserCategories replaces the candidate categories allowed to sit the paper
// @Router /papers/{id}/user-categories [put]
func (h *PaperHandler) SetUserCategories(c *gin.Context) {
	actor, ok := h.actor(c)
	if !ok {
		return
	}
	id := h.parseIDParam(c, "id")
	if id == 0 {
		return
	}

	var req models.PaperUserCategoriesRequest
	if !h.bindJSON(c, &req) {
		return
	}

	paper, err := h.paperService.SetUserCategories(c.Request.Context(), actor, id, &req)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}

	h.ok(c, paper, "User categories updated successfully")
}

// Publish moves a draft paper to published
// @Router /papers/{id}/publish [post]
func (h *PaperHandler) Publish(c *gin.Context) {
	actor, ok := h.actor(c)
	if !ok {
		return
	}
	id := h.parseIDParam(c, "id")
	if id == 0 {
		return
	}

	h.LogRequest(c, "Publishing paper", "paper_id", id)

	paper, err := h.paperService.Publish(c.Request.Context(), actor, id)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}

	h.ok(c, paper, "Paper published successfully")
}

// Archive closes a published paper
// @Router /papers/{id}/archive [post]
func (h *PaperHandler) Archive(c *gin.Context) {
	actor, ok := h.actor(c)
	if !ok {
		return
	}
	id := h.parseIDParam(c, "id")
	if id == 0 {
		return
	}

	h.LogRequest(c, "Archiving paper", "paper_id", id)

	paper, err := h.paperService.Archive(c.Request.Context(), actor, id)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}

	h.ok(c, paper, "Paper archived successfully")
}
