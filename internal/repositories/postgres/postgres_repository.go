package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"

	"github.com/SAP-F-2025/examination-service/internal/cache"
	"github.com/SAP-F-2025/examination-service/internal/repositories"
)

// PostgreSQLRepository implements the main Repository interface
type PostgreSQLRepository struct {
	db           *gorm.DB
	redisClient  *redis.Client
	cacheManager *cache.CacheManager

	department     repositories.DepartmentRepository
	facultyMember  repositories.FacultyMemberRepository
	subject        repositories.SubjectRepository
	paperCategory  repositories.PaperCategoryRepository
	paper          repositories.PaperRepository
	questionType   repositories.QuestionTypeRepository
	question       repositories.QuestionRepository
	questionOption repositories.QuestionOptionRepository
	userCategory   repositories.UserCategoryRepository
	user           repositories.UserRepository
	attempt        repositories.AttemptRepository
	answer         repositories.AnswerRepository
	dashboard      repositories.DashboardRepository
}

// RepositoryConfig holds configuration for repository initialization
type RepositoryConfig struct {
	DB          *gorm.DB
	RedisClient *redis.Client
	// CacheTTL overrides the lookup cache TTL when positive
	CacheTTL time.Duration
}

// NewPostgreSQLRepository creates a new repository with all sub-repositories
func NewPostgreSQLRepository(config RepositoryConfig) *PostgreSQLRepository {
	db := config.DB
	return &PostgreSQLRepository{
		db:             db,
		redisClient:    config.RedisClient,
		cacheManager:   cache.NewCacheManager(config.RedisClient).WithLookupTTL(config.CacheTTL),
		department:     NewDepartmentPostgreSQL(db),
		facultyMember:  NewFacultyMemberPostgreSQL(db),
		subject:        NewSubjectPostgreSQL(db),
		paperCategory:  NewPaperCategoryPostgreSQL(db),
		paper:          NewPaperPostgreSQL(db),
		questionType:   NewQuestionTypePostgreSQL(db),
		question:       NewQuestionPostgreSQL(db),
		questionOption: NewQuestionOptionPostgreSQL(db),
		userCategory:   NewUserCategoryPostgreSQL(db),
		user:           NewUserPostgreSQL(db),
		attempt:        NewAttemptPostgreSQL(db),
		answer:         NewAnswerPostgreSQL(db),
		dashboard:      NewDashboardPostgreSQL(db),
	}
}

func (r *PostgreSQLRepository) Department() repositories.DepartmentRepository { return r.department }
func (r *PostgreSQLRepository) FacultyMember() repositories.FacultyMemberRepository {
	return r.facultyMember
}
func (r *PostgreSQLRepository) Subject() repositories.SubjectRepository { return r.subject }
func (r *PostgreSQLRepository) PaperCategory() repositories.PaperCategoryRepository {
	return r.paperCategory
}
func (r *PostgreSQLRepository) Paper() repositories.PaperRepository { return r.paper }
func (r *PostgreSQLRepository) QuestionType() repositories.QuestionTypeRepository {
	return r.questionType
}
func (r *PostgreSQLRepository) Question() repositories.QuestionRepository { return r.question }
func (r *PostgreSQLRepository) QuestionOption() repositories.QuestionOptionRepository {
	return r.questionOption
}
func (r *PostgreSQLRepository) UserCategory() repositories.UserCategoryRepository {
	return r.userCategory
}
func (r *PostgreSQLRepository) User() repositories.UserRepository           { return r.user }
func (r *PostgreSQLRepository) Attempt() repositories.AttemptRepository     { return r.attempt }
func (r *PostgreSQLRepository) Answer() repositories.AnswerRepository       { return r.answer }
func (r *PostgreSQLRepository) Dashboard() repositories.DashboardRepository { return r.dashboard }

// Transaction executes fn within a database transaction
func (r *PostgreSQLRepository) Transaction(ctx context.Context, fn func(tx *gorm.DB) error) error {
	return r.db.WithContext(ctx).Transaction(fn)
}

// Ping checks the health of database and cache connections
func (r *PostgreSQLRepository) Ping(ctx context.Context) error {
	sqlDB, err := r.db.DB()
	if err != nil {
		return fmt.Errorf("failed to get database instance: %w", err)
	}

	if err := sqlDB.PingContext(ctx); err != nil {
		return fmt.Errorf("database ping failed: %w", err)
	}

	return nil
}

// CacheManager returns the cache helpers sharing the repository's redis client
func (r *PostgreSQLRepository) CacheManager() *cache.CacheManager {
	return r.cacheManager
}

// Close closes all connections
func (r *PostgreSQLRepository) Close() error {
	sqlDB, err := r.db.DB()
	if err != nil {
		return fmt.Errorf("failed to get database instance: %w", err)
	}

	if err := sqlDB.Close(); err != nil {
		return fmt.Errorf("failed to close database: %w", err)
	}

	if r.redisClient != nil {
		if err := r.redisClient.Close(); err != nil {
			return fmt.Errorf("failed to close Redis: %w", err)
		}
	}

	return nil
}

// RepositoryManager implements the RepositoryManager interface
type RepositoryManager struct {
	config RepositoryConfig
	repo   *PostgreSQLRepository
}

// NewRepositoryManager creates a new repository manager
func NewRepositoryManager(config RepositoryConfig) *RepositoryManager {
	return &RepositoryManager{
		config: config,
	}
}

// Initialize verifies connectivity and builds the repositories
func (rm *RepositoryManager) Initialize() error {
	if rm.config.DB == nil {
		return fmt.Errorf("database connection is required")
	}

	sqlDB, err := rm.config.DB.DB()
	if err != nil {
		return fmt.Errorf("failed to get database instance: %w", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := sqlDB.PingContext(ctx); err != nil {
		return fmt.Errorf("database connection failed: %w", err)
	}

	if rm.config.RedisClient != nil {
		if _, err := rm.config.RedisClient.Ping(ctx).Result(); err != nil {
			return fmt.Errorf("redis connection failed: %w", err)
		}
	}

	rm.repo = NewPostgreSQLRepository(rm.config)

	return nil
}

// GetRepository returns the repository instance
func (rm *RepositoryManager) GetRepository() repositories.Repository {
	return rm.repo
}

// CacheManager returns the cache helpers; call after Initialize
func (rm *RepositoryManager) CacheManager() *cache.CacheManager {
	if rm.repo == nil {
		return cache.NewCacheManager(nil)
	}
	return rm.repo.CacheManager()
}

// HealthCheck checks the health of all repository connections
func (rm *RepositoryManager) HealthCheck(ctx context.Context) error {
	if rm.repo == nil {
		return fmt.Errorf("repository not initialized")
	}

	return rm.repo.Ping(ctx)
}

// Shutdown closes all repository connections
func (rm *RepositoryManager) Shutdown(ctx context.Context) error {
	if rm.repo == nil {
		return nil
	}

	return rm.repo.Close()
}
