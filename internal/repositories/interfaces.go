package repositories

import (
	"context"
	"time"

	"gorm.io/gorm"

	"github.com/SAP-F-2025/examination-service/internal/models"
)

// ===== SHARED FILTER STRUCTS =====

// ListFilters drives paginated listing and search.
// Equals keys are column names; each repository ignores columns it does not allow.
type ListFilters struct {
	Search    string                 `json:"search"`
	Equals    map[string]interface{} `json:"equals"`
	Limit     int                    `json:"limit"`
	Offset    int                    `json:"offset"`
	SortBy    string                 `json:"sort_by"`
	SortOrder string                 `json:"sort_order"` // "asc", "desc"
}

// AttemptFilters narrows attempt listings
type AttemptFilters struct {
	UserID    *uint                 `json:"user_id"`
	PaperID   *uint                 `json:"paper_id"`
	Status    *models.AttemptStatus `json:"status"`
	DateFrom  *time.Time            `json:"date_from"`
	DateTo    *time.Time            `json:"date_to"`
	Limit     int                   `json:"limit"`
	Offset    int                   `json:"offset"`
	SortBy    string                `json:"sort_by"`
	SortOrder string                `json:"sort_order"`
}

// ===== GENERIC CRUD =====

// CRUDRepository is the contract shared by every administrable entity
type CRUDRepository[T any] interface {
	Create(ctx context.Context, tx *gorm.DB, entity *T) error
	GetByID(ctx context.Context, tx *gorm.DB, id uint) (*T, error)
	Update(ctx context.Context, tx *gorm.DB, entity *T) error
	Delete(ctx context.Context, tx *gorm.DB, id uint) error
	List(ctx context.Context, tx *gorm.DB, filters ListFilters) ([]*T, int64, error)
	Search(ctx context.Context, tx *gorm.DB, term string, limit int) ([]*T, error)
	Exists(ctx context.Context, tx *gorm.DB, id uint) (bool, error)
}

// DependentCounter reports live child rows per relation, keyed by relation name
type DependentCounter interface {
	CountDependents(ctx context.Context, tx *gorm.DB, id uint) (map[string]int64, error)
}

// ===== ORGANIZATION =====

type DepartmentRepository interface {
	CRUDRepository[models.Department]
	DependentCounter
	ExistsByName(ctx context.Context, tx *gorm.DB, name string, excludeID *uint) (bool, error)
	ExistsByCode(ctx context.Context, tx *gorm.DB, code string, excludeID *uint) (bool, error)
	ListAll(ctx context.Context, tx *gorm.DB) ([]*models.Department, error)
}

type FacultyMemberRepository interface {
	CRUDRepository[models.FacultyMember]
	ExistsByEmail(ctx context.Context, tx *gorm.DB, email string, excludeID *uint) (bool, error)
}

type SubjectRepository interface {
	CRUDRepository[models.Subject]
	DependentCounter
	ExistsByCode(ctx context.Context, tx *gorm.DB, code string, excludeID *uint) (bool, error)
	ExistsByNameInDepartment(ctx context.Context, tx *gorm.DB, departmentID uint, name string, excludeID *uint) (bool, error)
	ListByDepartment(ctx context.Context, tx *gorm.DB, departmentID *uint) ([]*models.Subject, error)
}

type PaperCategoryRepository interface {
	CRUDRepository[models.PaperCategory]
	DependentCounter
	ExistsByName(ctx context.Context, tx *gorm.DB, name string, excludeID *uint) (bool, error)
	ListAll(ctx context.Context, tx *gorm.DB) ([]*models.PaperCategory, error)
}

// ===== PAPERS =====

type PaperRepository interface {
	CRUDRepository[models.Paper]
	DependentCounter
	GetByIDWithDetails(ctx context.Context, tx *gorm.DB, id uint) (*models.Paper, error)

	// Question associations
	AttachQuestions(ctx context.Context, tx *gorm.DB, paperID uint, questions []models.PaperQuestion) error
	DetachQuestion(ctx context.Context, tx *gorm.DB, paperID, questionID uint) error
	ReorderQuestions(ctx context.Context, tx *gorm.DB, paperID uint, questionIDs []uint) error
	ListQuestionIDs(ctx context.Context, tx *gorm.DB, paperID uint) ([]uint, error)
	HasQuestion(ctx context.Context, tx *gorm.DB, paperID, questionID uint) (bool, error)
	ListPaperIDsByQuestion(ctx context.Context, tx *gorm.DB, questionID uint) ([]uint, error)
	SumQuestionMarks(ctx context.Context, tx *gorm.DB, paperID uint) (float64, error)
	NextOrderIndex(ctx context.Context, tx *gorm.DB, paperID uint) (int, error)

	ReplaceUserCategories(ctx context.Context, tx *gorm.DB, paper *models.Paper, categoryIDs []uint) error

	// UpdateStatus changes status only when the current status equals from
	UpdateStatus(ctx context.Context, tx *gorm.DB, id uint, from, to models.PaperStatus, updates map[string]interface{}) (bool, error)
	UpdateTotalMarks(ctx context.Context, tx *gorm.DB, id uint, totalMarks float64) error
}

// ===== QUESTIONS =====

type QuestionTypeRepository interface {
	CRUDRepository[models.QuestionType]
	DependentCounter
	ExistsByCode(ctx context.Context, tx *gorm.DB, code string, excludeID *uint) (bool, error)
	ListAll(ctx context.Context, tx *gorm.DB) ([]*models.QuestionType, error)
}

type QuestionRepository interface {
	CRUDRepository[models.Question]
	DependentCounter
	GetByIDWithOptions(ctx context.Context, tx *gorm.DB, id uint) (*models.Question, error)
	GetByIDsWithOptions(ctx context.Context, tx *gorm.DB, ids []uint) ([]*models.Question, error)
	CountExisting(ctx context.Context, tx *gorm.DB, ids []uint) (int64, error)
}

type QuestionOptionRepository interface {
	CRUDRepository[models.QuestionOption]
	ListByQuestion(ctx context.Context, tx *gorm.DB, questionID uint) ([]*models.QuestionOption, error)
	CreateBatch(ctx context.Context, tx *gorm.DB, options []*models.QuestionOption) error
	ExistsByText(ctx context.Context, tx *gorm.DB, questionID uint, text string, excludeID *uint) (bool, error)
	CountCorrect(ctx context.Context, tx *gorm.DB, questionID uint, excludeID *uint) (int64, error)
}

// ===== USERS =====

type UserCategoryRepository interface {
	CRUDRepository[models.UserCategory]
	DependentCounter
	ExistsByName(ctx context.Context, tx *gorm.DB, name string, excludeID *uint) (bool, error)
	ListAll(ctx context.Context, tx *gorm.DB) ([]*models.UserCategory, error)
	GetByIDs(ctx context.Context, tx *gorm.DB, ids []uint) ([]*models.UserCategory, error)
}

type UserRepository interface {
	CRUDRepository[models.User]
	DependentCounter
	GetByExternalID(ctx context.Context, tx *gorm.DB, externalID string) (*models.User, error)
	ExistsByEmail(ctx context.Context, tx *gorm.DB, email string, excludeID *uint) (bool, error)
	TouchLastLogin(ctx context.Context, tx *gorm.DB, id uint, at time.Time) error
}

// ===== ATTEMPTS =====

type AttemptRepository interface {
	Create(ctx context.Context, tx *gorm.DB, attempt *models.TestAttempt) error
	GetByID(ctx context.Context, tx *gorm.DB, id uint) (*models.TestAttempt, error)
	// GetByIDForUpdate locks the row for the rest of the transaction
	GetByIDForUpdate(ctx context.Context, tx *gorm.DB, id uint) (*models.TestAttempt, error)
	GetByIDWithAnswers(ctx context.Context, tx *gorm.DB, id uint) (*models.TestAttempt, error)
	Delete(ctx context.Context, tx *gorm.DB, id uint) error
	List(ctx context.Context, tx *gorm.DB, filters AttemptFilters) ([]*models.TestAttempt, int64, error)
	Search(ctx context.Context, tx *gorm.DB, term string, limit int) ([]*models.TestAttempt, error)
	UpdateFields(ctx context.Context, tx *gorm.DB, id uint, updates map[string]interface{}) error

	ListByUserAndPaper(ctx context.Context, tx *gorm.DB, userID, paperID uint) ([]*models.TestAttempt, error)
	// ListOverdue pages overdue in-progress attempts by id, starting after afterID
	ListOverdue(ctx context.Context, tx *gorm.DB, now time.Time, afterID uint, limit int) ([]*models.TestAttempt, error)

	// TransitionStatus applies updates only while the row is still in status from.
	// It reports false when another writer moved the attempt first.
	TransitionStatus(ctx context.Context, tx *gorm.DB, id uint, from, to models.AttemptStatus, updates map[string]interface{}) (bool, error)
}

type AnswerRepository interface {
	// Upsert inserts or replaces the answer for (test_attempt_id, question_id)
	Upsert(ctx context.Context, tx *gorm.DB, answer *models.Answer) error
	GetByID(ctx context.Context, tx *gorm.DB, id uint) (*models.Answer, error)
	ListByAttempt(ctx context.Context, tx *gorm.DB, attemptID uint) ([]*models.Answer, error)
	UpdateScores(ctx context.Context, tx *gorm.DB, answers []*models.Answer) error
}

// ===== DASHBOARD =====

type DashboardRepository interface {
	GetStats(ctx context.Context, tx *gorm.DB) (*models.DashboardStats, error)
}
