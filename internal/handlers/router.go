package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/SAP-F-2025/examination-service/internal/config"
	"github.com/SAP-F-2025/examination-service/internal/models"
	"github.com/SAP-F-2025/examination-service/internal/services"
	"github.com/SAP-F-2025/examination-service/internal/utils"
)

// routeRegistrar mounts one resource cluster on its group
type routeRegistrar interface {
	Register(group *gin.RouterGroup)
}

type HandlerManager struct {
	serviceManager services.ServiceManager

	departmentHandler     routeRegistrar
	facultyMemberHandler  routeRegistrar
	subjectHandler        routeRegistrar
	paperCategoryHandler  routeRegistrar
	paperHandler          *PaperHandler
	questionTypeHandler   routeRegistrar
	questionHandler       *QuestionHandler
	questionOptionHandler routeRegistrar
	userCategoryHandler   routeRegistrar
	userHandler           *UserHandler
	testAttemptHandler    routeRegistrar
	attemptHandler        *AttemptHandler
	lookupHandler         *LookupHandler
	dashboardHandler      *DashboardHandler
	authMiddleware        *AuthMiddleware
}

func NewHandlerManager(serviceManager services.ServiceManager, cfg *config.Config, logger utils.Logger) *HandlerManager {
	exporter := serviceManager.Export()

	return &HandlerManager{
		serviceManager: serviceManager,

		departmentHandler: NewCRUDHandler[models.Department, models.DepartmentCreateRequest, models.DepartmentUpdateRequest](
			"departments", "Department", serviceManager.Department(), exporter, logger),
		facultyMemberHandler: NewCRUDHandler[models.FacultyMember, models.FacultyMemberCreateRequest, models.FacultyMemberUpdateRequest](
			"faculty-members", "Faculty member", serviceManager.FacultyMember(), exporter, logger),
		subjectHandler: NewCRUDHandler[models.Subject, models.SubjectCreateRequest, models.SubjectUpdateRequest](
			"subjects", "Subject", serviceManager.Subject(), exporter, logger),
		paperCategoryHandler: NewCRUDHandler[models.PaperCategory, models.PaperCategoryCreateRequest, models.PaperCategoryUpdateRequest](
			"paper-categories", "Paper category", serviceManager.PaperCategory(), exporter, logger),
		paperHandler: NewPaperHandler(serviceManager.Paper(), exporter, logger),
		questionTypeHandler: NewCRUDHandler[models.QuestionType, models.QuestionTypeCreateRequest, models.QuestionTypeUpdateRequest](
			"question-types", "Question type", serviceManager.QuestionType(), exporter, logger),
		questionHandler: NewQuestionHandler(serviceManager.Question(), exporter, logger),
		questionOptionHandler: NewCRUDHandler[models.QuestionOption, models.QuestionOptionCreateRequest, models.QuestionOptionUpdateRequest](
			"question-options", "Question option", serviceManager.QuestionOption(), exporter, logger),
		userCategoryHandler: NewCRUDHandler[models.UserCategory, models.UserCategoryCreateRequest, models.UserCategoryUpdateRequest](
			"user-categories", "User category", serviceManager.UserCategory(), exporter, logger),
		userHandler: NewUserHandler(serviceManager.User(), exporter, logger),
		testAttemptHandler: NewCRUDHandler[models.TestAttempt, models.TestAttemptCreateRequest, models.TestAttemptUpdateRequest](
			"test-attempts", "Test attempt", serviceManager.Attempt(), exporter, logger),
		attemptHandler:   NewAttemptHandler(serviceManager.Attempt(), logger),
		lookupHandler:    NewLookupHandler(serviceManager.Lookup(), logger),
		dashboardHandler: NewDashboardHandler(serviceManager.Dashboard(), logger),
		authMiddleware:   NewAuthMiddleware(cfg.Auth, cfg.Casdoor, serviceManager.User(), logger),
	}
}

// SetupRoutes sets up all API routes
func (hm *HandlerManager) SetupRoutes(router *gin.Engine) {
	router.GET("/health", hm.Health)

	// API v1 routes with authentication
	v1 := router.Group("/api/v1")
	v1.Use(hm.authMiddleware.Authenticate())
	{
		// Organization
		hm.departmentHandler.Register(v1.Group("/departments"))
		hm.facultyMemberHandler.Register(v1.Group("/faculty-members"))
		hm.subjectHandler.Register(v1.Group("/subjects"))
		hm.paperCategoryHandler.Register(v1.Group("/paper-categories"))

		// Papers and questions
		hm.paperHandler.Register(v1.Group("/papers"))
		hm.questionTypeHandler.Register(v1.Group("/question-types"))
		hm.questionHandler.Register(v1.Group("/questions"))
		hm.questionOptionHandler.Register(v1.Group("/question-options"))

		// Users
		hm.userCategoryHandler.Register(v1.Group("/user-categories"))
		hm.userHandler.Register(v1.Group("/users"))

		// Administrative attempt records - Examiners and Admins only
		testAttempts := v1.Group("/test-attempts")
		testAttempts.Use(RequireRoleMiddleware(models.RoleExaminer, models.RoleAdmin))
		hm.testAttemptHandler.Register(testAttempts)

		// Attempt lifecycle; ownership is checked per attempt
		hm.attemptHandler.Register(v1.Group("/attempts"))

		hm.lookupHandler.Register(v1.Group("/lookups"))

		// Dashboard routes - Examiners and Admins only
		dashboard := v1.Group("/dashboard")
		dashboard.Use(RequireRoleMiddleware(models.RoleExaminer, models.RoleAdmin))
		{
			dashboard.GET("/stats", hm.dashboardHandler.GetDashboardStats)
		}
	}
}

// Health reports database and cache status; a down database makes the service unavailable
func (hm *HandlerManager) Health(c *gin.Context) {
	components := hm.serviceManager.Health(c.Request.Context())

	status, code := "healthy", http.StatusOK
	if components["database"] != "up" {
		status, code = "unhealthy", http.StatusServiceUnavailable
	}

	c.JSON(code, gin.H{
		"status":     status,
		"service":    "examination-service",
		"components": components,
	})
}
