package repositories

import (
	"context"

	"gorm.io/gorm"
)

// Repository aggregates every repository of the service
type Repository interface {
	// Organization
	Department() DepartmentRepository
	FacultyMember() FacultyMemberRepository
	Subject() SubjectRepository
	PaperCategory() PaperCategoryRepository

	// Papers and questions
	Paper() PaperRepository
	QuestionType() QuestionTypeRepository
	Question() QuestionRepository
	QuestionOption() QuestionOptionRepository

	// Users
	UserCategory() UserCategoryRepository
	User() UserRepository

	// Attempts
	Attempt() AttemptRepository
	Answer() AnswerRepository

	Dashboard() DashboardRepository

	// Transaction runs fn inside one database transaction; repositories accept the tx handle
	Transaction(ctx context.Context, fn func(tx *gorm.DB) error) error

	// Health check
	Ping(ctx context.Context) error

	// Close connections
	Close() error
}

// RepositoryManager manages the repository lifecycle
type RepositoryManager interface {
	Initialize() error
	GetRepository() Repository
	HealthCheck(ctx context.Context) error
	Shutdown(ctx context.Context) error
}
