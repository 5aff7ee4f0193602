package services

import (
	"context"
	"time"

	"github.com/SAP-F-2025/examination-service/internal/authz"
	"github.com/SAP-F-2025/examination-service/internal/models"
)

const (
	DefaultPageSize = 20
	MaxPageSize     = 100
)

// ListQuery is the paging, search and filter input shared by list endpoints.
// Page is zero based.
type ListQuery struct {
	Search    string
	Equals    map[string]interface{}
	Page      int
	Size      int
	SortBy    string
	SortOrder string
}

// Normalize clamps page and size into their allowed ranges
func (q ListQuery) Normalize() ListQuery {
	if q.Page < 0 {
		q.Page = 0
	}
	if q.Size <= 0 {
		q.Size = DefaultPageSize
	}
	if q.Size > MaxPageSize {
		q.Size = MaxPageSize
	}
	return q
}

func (q ListQuery) Offset() int {
	return q.Page * q.Size
}

// CRUDService is the uniform administrative contract of an entity
type CRUDService[T any, C any, U any] interface {
	List(ctx context.Context, actor authz.Actor, query ListQuery) (*models.PaginatedResponse, error)
	Create(ctx context.Context, actor authz.Actor, req *C) (*T, error)
	Get(ctx context.Context, actor authz.Actor, id uint) (*T, error)
	Update(ctx context.Context, actor authz.Actor, id uint, req *U) (*T, error)
	Delete(ctx context.Context, actor authz.Actor, id uint) error
	Search(ctx context.Context, actor authz.Actor, term string) ([]*T, error)
}

type DepartmentService interface {
	CRUDService[models.Department, models.DepartmentCreateRequest, models.DepartmentUpdateRequest]
}

type FacultyMemberService interface {
	CRUDService[models.FacultyMember, models.FacultyMemberCreateRequest, models.FacultyMemberUpdateRequest]
}

type SubjectService interface {
	CRUDService[models.Subject, models.SubjectCreateRequest, models.SubjectUpdateRequest]
}

type PaperCategoryService interface {
	CRUDService[models.PaperCategory, models.PaperCategoryCreateRequest, models.PaperCategoryUpdateRequest]
}

type PaperService interface {
	CRUDService[models.Paper, models.PaperCreateRequest, models.PaperUpdateRequest]

	AttachQuestions(ctx context.Context, actor authz.Actor, id uint, req *models.PaperQuestionsRequest) (*models.Paper, error)
	DetachQuestion(ctx context.Context, actor authz.Actor, id, questionID uint) (*models.Paper, error)
	ReorderQuestions(ctx context.Context, actor authz.Actor, id uint, req *models.PaperReorderRequest) (*models.Paper, error)
	SetUserCategories(ctx context.Context, actor authz.Actor, id uint, req *models.PaperUserCategoriesRequest) (*models.Paper, error)
	Publish(ctx context.Context, actor authz.Actor, id uint) (*models.Paper, error)
	Archive(ctx context.Context, actor authz.Actor, id uint) (*models.Paper, error)
}

type QuestionTypeService interface {
	CRUDService[models.QuestionType, models.QuestionTypeCreateRequest, models.QuestionTypeUpdateRequest]
}

type QuestionService interface {
	CRUDService[models.Question, models.QuestionCreateRequest, models.QuestionUpdateRequest]
	ListOptions(ctx context.Context, actor authz.Actor, id uint) ([]*models.QuestionOption, error)
}

type QuestionOptionService interface {
	CRUDService[models.QuestionOption, models.QuestionOptionCreateRequest, models.QuestionOptionUpdateRequest]
}

type UserCategoryService interface {
	CRUDService[models.UserCategory, models.UserCategoryCreateRequest, models.UserCategoryUpdateRequest]
}

type UserService interface {
	CRUDService[models.User, models.UserCreateRequest, models.UserUpdateRequest]
	// ResolveExternal maps an identity provider subject to a local user, creating it on first sight
	ResolveExternal(ctx context.Context, externalID, name, email string, role models.UserRole) (*models.User, error)
}

// AttemptService drives the attempt lifecycle and the admin CRUD of attempts
type AttemptService interface {
	CRUDService[models.TestAttempt, models.TestAttemptCreateRequest, models.TestAttemptUpdateRequest]

	Start(ctx context.Context, actor authz.Actor, req *models.StartAttemptRequest, client models.ClientInfo) (*models.TestAttempt, error)
	RecordAnswer(ctx context.Context, actor authz.Actor, attemptID uint, req *models.RecordAnswerRequest) (*models.Answer, error)
	Submit(ctx context.Context, actor authz.Actor, attemptID uint) (*models.TestAttempt, error)
	Expire(ctx context.Context, actor authz.Actor, attemptID uint) (*models.TestAttempt, error)
	// ExpireOverdue closes up to limit overdue in-progress attempts with id > afterID
	ExpireOverdue(ctx context.Context, now time.Time, afterID uint, limit int) (models.OverdueBatch, error)
	Stop(ctx context.Context, actor authz.Actor, attemptID uint, req *models.StopAttemptRequest) (*models.TestAttempt, error)
	Grade(ctx context.Context, actor authz.Actor, attemptID uint, req *models.GradeAttemptRequest) (*models.TestAttempt, error)
	ListAnswers(ctx context.Context, actor authz.Actor, attemptID uint) ([]*models.Answer, error)
	TimeRemaining(ctx context.Context, actor authz.Actor, attemptID uint) (*models.TimeRemainingResponse, error)
}

type LookupService interface {
	Departments(ctx context.Context, actor authz.Actor) ([]models.LookupItem, error)
	Subjects(ctx context.Context, actor authz.Actor, departmentID *uint) ([]models.LookupItem, error)
	PaperCategories(ctx context.Context, actor authz.Actor) ([]models.LookupItem, error)
	QuestionTypes(ctx context.Context, actor authz.Actor) ([]models.LookupItem, error)
	UserCategories(ctx context.Context, actor authz.Actor) ([]models.LookupItem, error)
}

type DashboardService interface {
	GetStats(ctx context.Context, actor authz.Actor) (*models.DashboardStats, error)
}

type ExportFormat string

const (
	ExportCSV  ExportFormat = "csv"
	ExportXLSX ExportFormat = "xlsx"
)

// ExportFile is a rendered export ready to stream
type ExportFile struct {
	Filename    string
	ContentType string
	Data        []byte
}

type ExportService interface {
	Export(ctx context.Context, actor authz.Actor, resource string, query ListQuery, format ExportFormat) (*ExportFile, error)
	Resources() []string
}

// ServiceManager wires every service of the application
type ServiceManager interface {
	Department() DepartmentService
	FacultyMember() FacultyMemberService
	Subject() SubjectService
	PaperCategory() PaperCategoryService
	Paper() PaperService
	QuestionType() QuestionTypeService
	Question() QuestionService
	QuestionOption() QuestionOptionService
	UserCategory() UserCategoryService
	User() UserService
	Attempt() AttemptService
	Lookup() LookupService
	Dashboard() DashboardService
	Export() ExportService

	Initialize(ctx context.Context) error
	Shutdown(ctx context.Context) error
	Health(ctx context.Context) map[string]string
}
