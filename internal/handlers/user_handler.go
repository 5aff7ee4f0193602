package handlers

import (
	"github.com/gin-gonic/gin"

	"github.com/SAP-F-2025/examination-service/internal/models"
	"github.com/SAP-F-2025/examination-service/internal/services"
	"github.com/SAP-F-2025/examination-service/internal/utils"
)

type UserHandler struct {
	*CRUDHandler[models.User, models.UserCreateRequest, models.UserUpdateRequest]
	userService services.UserService
}

func NewUserHandler(userService services.UserService, exporter services.ExportService, logger utils.Logger) *UserHandler {
	return &UserHandler{
		CRUDHandler: NewCRUDHandler[models.User, models.UserCreateRequest, models.UserUpdateRequest]("users", "User", userService, exporter, logger),
		userService: userService,
	}
}

func (h *UserHandler) Register(group *gin.RouterGroup) {
	group.GET("/me", h.GetCurrentUser)
	h.CRUDHandler.Register(group)
}

// GetCurrentUser returns the authenticated caller's profile
// @Summary Get current user
// @Tags users
// @Success 200 {object} SuccessResponse{data=models.User}
// @Failure 401 {object} ErrorResponse
// @Router /users/me [get]
func (h *UserHandler) GetCurrentUser(c *gin.Context) {
	actor, ok := h.actor(c)
	if !ok {
		return
	}

	user, err := h.userService.Get(c.Request.Context(), actor, actor.UserID)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}

	h.ok(c, user, "")
}
