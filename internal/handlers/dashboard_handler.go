package handlers

import (
	"context"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/SAP-F-2025/examination-service/internal/authz"
	"github.com/SAP-F-2025/examination-service/internal/models"
	"github.com/SAP-F-2025/examination-service/internal/services"
	"github.com/SAP-F-2025/examination-service/internal/utils"
)

type DashboardHandler struct {
	BaseHandler
	service services.DashboardService
}

func NewDashboardHandler(service services.DashboardService, logger utils.Logger) *DashboardHandler {
	return &DashboardHandler{
		BaseHandler: NewBaseHandler(logger),
		service:     service,
	}
}

// GetDashboardStats returns entity and attempt counts
// @Summary Get dashboard statistics
// @Tags dashboard
// @Produce json
// @Success 200 {object} SuccessResponse{data=models.DashboardStats}
// @Failure 403 {object} ErrorResponse
// @Router /dashboard/stats [get]
func (h *DashboardHandler) GetDashboardStats(c *gin.Context) {
	actor, ok := h.actor(c)
	if !ok {
		return
	}

	stats, err := h.service.GetStats(c.Request.Context(), actor)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}

	h.ok(c, stats, "")
}

// LookupHandler serves the cached id/name lists used by dropdowns
type LookupHandler struct {
	BaseHandler
	service services.LookupService
}

func NewLookupHandler(service services.LookupService, logger utils.Logger) *LookupHandler {
	return &LookupHandler{
		BaseHandler: NewBaseHandler(logger),
		service:     service,
	}
}

func (h *LookupHandler) Register(group *gin.RouterGroup) {
	group.GET("/departments", h.lookup(h.service.Departments))
	group.GET("/subjects", h.Subjects)
	group.GET("/paper-categories", h.lookup(h.service.PaperCategories))
	group.GET("/question-types", h.lookup(h.service.QuestionTypes))
	group.GET("/user-categories", h.lookup(h.service.UserCategories))
}

func (h *LookupHandler) lookup(load func(ctx context.Context, actor authz.Actor) ([]models.LookupItem, error)) gin.HandlerFunc {
	return func(c *gin.Context) {
		actor, ok := h.actor(c)
		if !ok {
			return
		}

		items, err := load(c.Request.Context(), actor)
		if err != nil {
			h.handleServiceError(c, err)
			return
		}

		h.ok(c, items, "")
	}
}

// Subjects lists subjects, optionally narrowed by ?department_id=
// @Router /lookups/subjects [get]
func (h *LookupHandler) Subjects(c *gin.Context) {
	actor, ok := h.actor(c)
	if !ok {
		return
	}

	var departmentID *uint
	if raw := c.Query("department_id"); raw != "" {
		id, err := strconv.ParseUint(raw, 10, 64)
		if err != nil || id == 0 {
			c.JSON(http.StatusBadRequest, ErrorResponse{Message: "Invalid department_id", Details: raw})
			return
		}
		v := uint(id)
		departmentID = &v
	}

	items, err := h.service.Subjects(c.Request.Context(), actor, departmentID)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}

	h.ok(c, items, "")
}
