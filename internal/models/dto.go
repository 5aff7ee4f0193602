package models

import (
	"time"
)

// ===== ORGANIZATION =====

type DepartmentCreateRequest struct {
	Name        string  `json:"name" validate:"required,min=2,max=150"`
	Code        string  `json:"code" validate:"required,min=1,max=30,alphanumunicode"`
	Description *string `json:"description" validate:"omitempty,max=2000"`
}

type DepartmentUpdateRequest struct {
	Name        *string `json:"name" validate:"omitempty,min=2,max=150"`
	Code        *string `json:"code" validate:"omitempty,min=1,max=30,alphanumunicode"`
	Description *string `json:"description" validate:"omitempty,max=2000"`
}

type FacultyMemberCreateRequest struct {
	DepartmentID uint       `json:"department_id" validate:"required"`
	Name         string     `json:"name" validate:"required,min=2,max=150"`
	Email        string     `json:"email" validate:"required,email,max=255"`
	Designation  *string    `json:"designation" validate:"omitempty,max=100"`
	Phone        *string    `json:"phone" validate:"omitempty,max=30"`
	JoiningDate  *time.Time `json:"joining_date"`
}

type FacultyMemberUpdateRequest struct {
	DepartmentID *uint      `json:"department_id" validate:"omitempty,min=1"`
	Name         *string    `json:"name" validate:"omitempty,min=2,max=150"`
	Email        *string    `json:"email" validate:"omitempty,email,max=255"`
	Designation  *string    `json:"designation" validate:"omitempty,max=100"`
	Phone        *string    `json:"phone" validate:"omitempty,max=30"`
	JoiningDate  *time.Time `json:"joining_date"`
}

type SubjectCreateRequest struct {
	DepartmentID uint    `json:"department_id" validate:"required"`
	Name         string  `json:"name" validate:"required,min=2,max=150"`
	Code         string  `json:"code" validate:"required,min=1,max=30"`
	Description  *string `json:"description" validate:"omitempty,max=2000"`
}

type SubjectUpdateRequest struct {
	DepartmentID *uint   `json:"department_id" validate:"omitempty,min=1"`
	Name         *string `json:"name" validate:"omitempty,min=2,max=150"`
	Code         *string `json:"code" validate:"omitempty,min=1,max=30"`
	Description  *string `json:"description" validate:"omitempty,max=2000"`
}

type PaperCategoryCreateRequest struct {
	Name        string  `json:"name" validate:"required,min=2,max=150"`
	Description *string `json:"description" validate:"omitempty,max=2000"`
}

type PaperCategoryUpdateRequest struct {
	Name        *string `json:"name" validate:"omitempty,min=2,max=150"`
	Description *string `json:"description" validate:"omitempty,max=2000"`
}

// ===== PAPERS =====

type PaperCreateRequest struct {
	SubjectID         uint       `json:"subject_id" validate:"required"`
	PaperCategoryID   uint       `json:"paper_category_id" validate:"required"`
	Name              string     `json:"name" validate:"required,min=2,max=200"`
	Description       *string    `json:"description" validate:"omitempty,max=5000"`
	Duration          int        `json:"duration" validate:"required,paper_duration"`
	PassingPercentage *float64   `json:"passing_percentage" validate:"omitempty,min=0,max=100"`
	AccessCode        *string    `json:"access_code" validate:"omitempty,min=4,max=64"`
	AllowRetake       bool       `json:"allow_retake"`
	MaxAttempts       int        `json:"max_attempts" validate:"min=0,max=100"`
	StartTime         *time.Time `json:"start_time"`
	EndTime           *time.Time `json:"end_time"`
	QuestionIDs       []uint     `json:"question_ids" validate:"omitempty,unique,dive,min=1"`
	UserCategoryIDs   []uint     `json:"user_category_ids" validate:"omitempty,unique,dive,min=1"`
}

type PaperUpdateRequest struct {
	SubjectID         *uint      `json:"subject_id" validate:"omitempty,min=1"`
	PaperCategoryID   *uint      `json:"paper_category_id" validate:"omitempty,min=1"`
	Name              *string    `json:"name" validate:"omitempty,min=2,max=200"`
	Description       *string    `json:"description" validate:"omitempty,max=5000"`
	Duration          *int       `json:"duration" validate:"omitempty,paper_duration"`
	PassingPercentage *float64   `json:"passing_percentage" validate:"omitempty,min=0,max=100"`
	AccessCode        *string    `json:"access_code" validate:"omitempty,min=4,max=64"`
	AllowRetake       *bool      `json:"allow_retake"`
	MaxAttempts       *int       `json:"max_attempts" validate:"omitempty,min=0,max=100"`
	StartTime         *time.Time `json:"start_time"`
	EndTime           *time.Time `json:"end_time"`
}

type PaperQuestionInput struct {
	QuestionID uint `json:"question_id" validate:"required"`
	OrderIndex int  `json:"order_index" validate:"min=0"`
}

type PaperQuestionsRequest struct {
	Questions []PaperQuestionInput `json:"questions" validate:"required,min=1,dive"`
}

type PaperReorderRequest struct {
	QuestionIDs []uint `json:"question_ids" validate:"required,min=1,unique,dive,min=1"`
}

type PaperUserCategoriesRequest struct {
	UserCategoryIDs []uint `json:"user_category_ids" validate:"unique,dive,min=1"`
}

// ===== QUESTIONS =====

type QuestionTypeCreateRequest struct {
	Name            string  `json:"name" validate:"required,min=2,max=100"`
	Code            string  `json:"code" validate:"required,min=2,max=50,question_type_code"`
	Description     *string `json:"description" validate:"omitempty,max=2000"`
	RequiresOptions bool    `json:"requires_options"`
	AutoGradable    bool    `json:"auto_gradable"`
}

type QuestionTypeUpdateRequest struct {
	Name            *string `json:"name" validate:"omitempty,min=2,max=100"`
	Code            *string `json:"code" validate:"omitempty,min=2,max=50,question_type_code"`
	Description     *string `json:"description" validate:"omitempty,max=2000"`
	RequiresOptions *bool   `json:"requires_options"`
	AutoGradable    *bool   `json:"auto_gradable"`
}

type QuestionOptionInput struct {
	Text      string `json:"text" validate:"required,min=1,max=1000"`
	IsCorrect bool   `json:"is_correct"`
	Order     int    `json:"order" validate:"min=0"`
}

type QuestionCreateRequest struct {
	SubjectID       uint                  `json:"subject_id" validate:"required"`
	QuestionTypeID  uint                  `json:"question_type_id" validate:"required"`
	Text            string                `json:"text" validate:"required,min=1,max=10000"`
	DifficultyLevel DifficultyLevel       `json:"difficulty_level" validate:"required,difficulty_level"`
	Marks           float64               `json:"marks" validate:"required,gt=0,max=1000"`
	NegativeMarks   float64               `json:"negative_marks" validate:"min=0,max=1000"`
	MaxTimeAllowed  *int                  `json:"max_time_allowed" validate:"omitempty,min=1,max=86400"`
	Explanation     *string               `json:"explanation" validate:"omitempty,max=5000"`
	Status          QuestionStatus        `json:"status" validate:"omitempty,question_status"`
	Options         []QuestionOptionInput `json:"options" validate:"omitempty,max=20,dive"`
}

type QuestionUpdateRequest struct {
	SubjectID       *uint            `json:"subject_id" validate:"omitempty,min=1"`
	QuestionTypeID  *uint            `json:"question_type_id" validate:"omitempty,min=1"`
	Text            *string          `json:"text" validate:"omitempty,min=1,max=10000"`
	DifficultyLevel *DifficultyLevel `json:"difficulty_level" validate:"omitempty,difficulty_level"`
	Marks           *float64         `json:"marks" validate:"omitempty,gt=0,max=1000"`
	NegativeMarks   *float64         `json:"negative_marks" validate:"omitempty,min=0,max=1000"`
	MaxTimeAllowed  *int             `json:"max_time_allowed" validate:"omitempty,min=1,max=86400"`
	Explanation     *string          `json:"explanation" validate:"omitempty,max=5000"`
	Status          *QuestionStatus  `json:"status" validate:"omitempty,question_status"`
}

type QuestionOptionCreateRequest struct {
	QuestionID uint   `json:"question_id" validate:"required"`
	Text       string `json:"text" validate:"required,min=1,max=1000"`
	IsCorrect  bool   `json:"is_correct"`
	Order      int    `json:"order" validate:"min=0"`
}

type QuestionOptionUpdateRequest struct {
	Text      *string `json:"text" validate:"omitempty,min=1,max=1000"`
	IsCorrect *bool   `json:"is_correct"`
	Order     *int    `json:"order" validate:"omitempty,min=0"`
}

// ===== USERS =====

type UserCategoryCreateRequest struct {
	Name        string  `json:"name" validate:"required,min=2,max=100"`
	Description *string `json:"description" validate:"omitempty,max=2000"`
}

type UserCategoryUpdateRequest struct {
	Name        *string `json:"name" validate:"omitempty,min=2,max=100"`
	Description *string `json:"description" validate:"omitempty,max=2000"`
}

type UserCreateRequest struct {
	Name           string     `json:"name" validate:"required,min=2,max=150"`
	Email          string     `json:"email" validate:"required,email,max=255"`
	ExternalID     *string    `json:"external_id" validate:"omitempty,max=255"`
	Role           UserRole   `json:"role" validate:"omitempty,user_role"`
	Status         UserStatus `json:"status" validate:"omitempty,user_status"`
	UserCategoryID *uint      `json:"user_category_id" validate:"omitempty,min=1"`
	Phone          *string    `json:"phone" validate:"omitempty,max=30"`
}

type UserUpdateRequest struct {
	Name           *string     `json:"name" validate:"omitempty,min=2,max=150"`
	Email          *string     `json:"email" validate:"omitempty,email,max=255"`
	ExternalID     *string     `json:"external_id" validate:"omitempty,max=255"`
	Role           *UserRole   `json:"role" validate:"omitempty,user_role"`
	Status         *UserStatus `json:"status" validate:"omitempty,user_status"`
	UserCategoryID *uint       `json:"user_category_id" validate:"omitempty,min=1"`
	Phone          *string     `json:"phone" validate:"omitempty,max=30"`
}

// ===== ATTEMPTS =====

// TestAttemptCreateRequest pre-assigns a paper to a user as a not_started attempt
type TestAttemptCreateRequest struct {
	UserID  uint `json:"user_id" validate:"required"`
	PaperID uint `json:"paper_id" validate:"required"`
}

// TestAttemptUpdateRequest only allows administrative notes; status moves through lifecycle operations
type TestAttemptUpdateRequest struct {
	StopReason *string `json:"stop_reason" validate:"omitempty,max=500"`
}

type StartAttemptRequest struct {
	PaperID         uint           `json:"paper_id" validate:"required"`
	AccessCode      *string        `json:"access_code" validate:"omitempty,max=64"`
	BrowserMetadata map[string]any `json:"browser_metadata"`
}

type RecordAnswerRequest struct {
	QuestionID        uint    `json:"question_id" validate:"required"`
	SelectedOptionIDs []uint  `json:"selected_option_ids" validate:"omitempty,max=20,unique,dive,min=1"`
	TextAnswer        *string `json:"text_answer" validate:"omitempty,max=20000"`
	TimeSpentSeconds  int     `json:"time_spent_seconds" validate:"min=0,max=86400"`
}

type StopAttemptRequest struct {
	Reason string `json:"reason" validate:"required,min=3,max=500"`
}

type AnswerMark struct {
	AnswerID uint    `json:"answer_id" validate:"required"`
	Marks    float64 `json:"marks" validate:"min=0"`
	Feedback *string `json:"feedback" validate:"omitempty,max=2000"`
}

type GradeAttemptRequest struct {
	Marks []AnswerMark `json:"marks" validate:"required,min=1,dive"`
}

// ClientInfo is captured from the request that starts an attempt
type ClientInfo struct {
	IPAddress string
	UserAgent string
}

type TimeRemainingResponse struct {
	AttemptID        uint          `json:"attempt_id"`
	Status           AttemptStatus `json:"status"`
	Deadline         *time.Time    `json:"deadline"`
	RemainingSeconds int64         `json:"remaining_seconds"`
}

// ===== PAGINATION =====

type PaginatedResponse struct {
	Content          interface{} `json:"content"`
	TotalElements    int64       `json:"total_elements"`
	TotalPages       int         `json:"total_pages"`
	Size             int         `json:"size"`
	Page             int         `json:"page"`
	First            bool        `json:"first"`
	Last             bool        `json:"last"`
	NumberOfElements int         `json:"number_of_elements"`
	Empty            bool        `json:"empty"`
}

// NewPaginatedResponse builds a page; page is zero based
func NewPaginatedResponse(content interface{}, count int, total int64, page, size int) *PaginatedResponse {
	totalPages := 0
	if size > 0 {
		totalPages = int((total + int64(size) - 1) / int64(size))
	}
	return &PaginatedResponse{
		Content:          content,
		TotalElements:    total,
		TotalPages:       totalPages,
		Size:             size,
		Page:             page,
		First:            page == 0,
		Last:             totalPages == 0 || page >= totalPages-1,
		NumberOfElements: count,
		Empty:            count == 0,
	}
}

// ===== DASHBOARD =====

type DashboardStats struct {
	Departments      int64 `json:"departments"`
	Subjects         int64 `json:"subjects"`
	Papers           int64 `json:"papers"`
	PublishedPapers  int64 `json:"published_papers"`
	Questions        int64 `json:"questions"`
	Users            int64 `json:"users"`
	ActiveAttempts   int64 `json:"active_attempts"`
	PendingGrading   int64 `json:"pending_grading"`
	FinishedAttempts int64 `json:"finished_attempts"`
}

// LookupItem is an id/name pair served to dropdowns
type LookupItem struct {
	ID   uint   `json:"id"`
	Name string `json:"name"`
}
