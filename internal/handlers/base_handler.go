package handlers

import (
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/SAP-F-2025/examination-service/internal/authz"
	"github.com/SAP-F-2025/examination-service/internal/services"
	"github.com/SAP-F-2025/examination-service/internal/utils"
)

// SuccessResponse wraps every successful payload
type SuccessResponse struct {
	Data    interface{} `json:"data"`
	Message string      `json:"message,omitempty"`
}

// MessageResponse answers requests that return no payload
type MessageResponse struct {
	Message string `json:"message"`
}

// ErrorResponse is the body of every failed request
type ErrorResponse struct {
	Message string      `json:"message"`
	Details interface{} `json:"details,omitempty"`
}

// reserved query parameters; every other parameter becomes an equality filter
var reservedQueryParams = map[string]bool{
	"page":       true,
	"size":       true,
	"search":     true,
	"sort_by":    true,
	"sort_order": true,
	"format":     true,
}

// BaseHandler carries what every handler needs
type BaseHandler struct {
	logger utils.Logger
}

func NewBaseHandler(logger utils.Logger) BaseHandler {
	return BaseHandler{logger: logger}
}

// LogRequest logs with the request scoped logger
func (h *BaseHandler) LogRequest(c *gin.Context, msg string, args ...any) {
	logger := utils.FromContext(c.Request.Context(), h.logger)
	if actor, ok := authz.ActorFromContext(c.Request.Context()); ok {
		args = append(args, "user_id", actor.UserID)
	}
	logger.Debug(msg, args...)
}

// actor returns the authenticated caller; it writes 401 and returns false when absent
func (h *BaseHandler) actor(c *gin.Context) (authz.Actor, bool) {
	actor, ok := authz.ActorFromContext(c.Request.Context())
	if !ok {
		c.JSON(http.StatusUnauthorized, ErrorResponse{
			Message: "User not authenticated",
		})
		return authz.Actor{}, false
	}
	return actor, true
}

// parseIDParam reads a positive id path parameter; it writes 400 and returns 0 on failure
func (h *BaseHandler) parseIDParam(c *gin.Context, name string) uint {
	id, err := strconv.ParseUint(c.Param(name), 10, 64)
	if err != nil || id == 0 {
		c.JSON(http.StatusBadRequest, ErrorResponse{
			Message: "Invalid " + name,
			Details: c.Param(name),
		})
		return 0
	}
	return uint(id)
}

// bindJSON decodes the body; it writes 400 and returns false on malformed JSON
func (h *BaseHandler) bindJSON(c *gin.Context, dest interface{}) bool {
	if err := c.ShouldBindJSON(dest); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{
			Message: "Invalid request payload",
			Details: err.Error(),
		})
		return false
	}
	return true
}

// parseListQuery reads page (zero based), size, search, sort and equality filters
func parseListQuery(c *gin.Context) services.ListQuery {
	query := services.ListQuery{
		Search:    strings.TrimSpace(c.Query("search")),
		SortBy:    c.Query("sort_by"),
		SortOrder: strings.ToLower(c.Query("sort_order")),
		Size:      services.DefaultPageSize,
	}

	if page, err := strconv.Atoi(c.Query("page")); err == nil {
		query.Page = page
	}
	if size, err := strconv.Atoi(c.Query("size")); err == nil {
		query.Size = size
	}

	for key, values := range c.Request.URL.Query() {
		if reservedQueryParams[key] || len(values) == 0 || values[0] == "" {
			continue
		}
		if query.Equals == nil {
			query.Equals = make(map[string]interface{})
		}
		query.Equals[key] = values[0]
	}

	return query.Normalize()
}

func (h *BaseHandler) ok(c *gin.Context, data interface{}, message string) {
	c.JSON(http.StatusOK, SuccessResponse{Data: data, Message: message})
}

func (h *BaseHandler) created(c *gin.Context, data interface{}, message string) {
	c.JSON(http.StatusCreated, SuccessResponse{Data: data, Message: message})
}

// handleServiceError maps service errors onto status codes
func (h *BaseHandler) handleServiceError(c *gin.Context, err error) {
	var validationErrors services.ValidationErrors
	if errors.As(err, &validationErrors) {
		c.JSON(http.StatusBadRequest, ErrorResponse{
			Message: "Validation failed",
			Details: validationErrors,
		})
		return
	}

	var dependentsError *services.DependentsError
	if errors.As(err, &dependentsError) {
		c.JSON(http.StatusConflict, ErrorResponse{
			Message: dependentsError.Error(),
			Details: dependentsError.Dependents,
		})
		return
	}

	status, message := statusFor(err)
	if status >= http.StatusInternalServerError {
		utils.FromContext(c.Request.Context(), h.logger).Error("Request failed", "path", c.FullPath(), "error", err)
		_ = c.Error(err)
		c.JSON(status, ErrorResponse{Message: message})
		return
	}

	c.JSON(status, ErrorResponse{Message: message, Details: err.Error()})
}

func statusFor(err error) (int, string) {
	switch {
	case errors.Is(err, services.ErrValidationFailed):
		return http.StatusBadRequest, "Validation failed"
	case errors.Is(err, services.ErrNotFound):
		return http.StatusNotFound, "Resource not found"
	case errors.Is(err, services.ErrConflict):
		return http.StatusConflict, "Resource already exists"
	case errors.Is(err, services.ErrHasDependents):
		return http.StatusConflict, "Resource has dependent records"
	case errors.Is(err, services.ErrAlreadyAttempted):
		return http.StatusConflict, "Paper already attempted"
	case errors.Is(err, services.ErrInvalidState):
		return http.StatusConflict, "Operation not allowed in current state"
	case errors.Is(err, services.ErrAttemptClosed):
		return http.StatusConflict, "Attempt is closed"
	case errors.Is(err, services.ErrUnknownQuestion):
		return http.StatusUnprocessableEntity, "Question is not part of the paper"
	case errors.Is(err, services.ErrForbidden):
		return http.StatusForbidden, "Access denied"
	case errors.Is(err, services.ErrUnauthorized):
		return http.StatusUnauthorized, "User not authenticated"
	default:
		return http.StatusInternalServerError, "Internal server error"
	}
}
