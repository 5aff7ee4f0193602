package handlers

import (
	"github.com/gin-gonic/gin"

	"github.com/SAP-F-2025/examination-service/internal/models"
	"github.com/SAP-F-2025/examination-service/internal/services"
	"github.com/SAP-F-2025/examination-service/internal/utils"
)

type QuestionHandler struct {
	*CRUDHandler[models.Question, models.QuestionCreateRequest, models.QuestionUpdateRequest]
	questionService services.QuestionService
}

func NewQuestionHandler(questionService services.QuestionService, exporter services.ExportService, logger utils.Logger) *QuestionHandler {
	return &QuestionHandler{
		CRUDHandler:     NewCRUDHandler[models.Question, models.QuestionCreateRequest, models.QuestionUpdateRequest]("questions", "Question", questionService, exporter, logger),
		questionService: questionService,
	}
}

func (h *QuestionHandler) Register(group *gin.RouterGroup) {
	h.CRUDHandler.Register(group)
	group.GET("/:id/options", h.ListOptions)
}

// ListOptions returns the options of a question in display order
// @Router /questions/{id}/options [get]
func (h *QuestionHandler) ListOptions(c *gin.Context) {
	actor, ok := h.actor(c)
	if !ok {
		return
	}
	id := h.parseIDParam(c, "id")
	if id == 0 {
		return
	}

	options, err := h.questionService.ListOptions(c.Request.Context(), actor, id)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}
	if options == nil {
		options = []*models.QuestionOption{}
	}

	h.ok(c, options, "")
}
