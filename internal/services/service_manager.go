package services

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/SAP-F-2025/examination-service/internal/cache"
)

const (
	statusUp       = "up"
	statusDown     = "down"
	statusDisabled = "disabled"
)

// serviceManager implements ServiceManager interface
type serviceManager struct {
	deps   *ServiceDeps
	caches *cache.CacheManager

	departmentService     DepartmentService
	facultyMemberService  FacultyMemberService
	subjectService        SubjectService
	paperCategoryService  PaperCategoryService
	paperService          PaperService
	questionTypeService   QuestionTypeService
	questionService       QuestionService
	questionOptionService QuestionOptionService
	userCategoryService   UserCategoryService
	userService           UserService
	attemptService        AttemptService
	lookupService         LookupService
	dashboardService      DashboardService
	exportService         ExportService

	// Lifecycle management
	initialized bool
	shutdown    bool
	mu          sync.RWMutex
}

// NewServiceManager creates a new service manager; caches may be nil when redis is not configured
func NewServiceManager(deps *ServiceDeps, caches *cache.CacheManager) ServiceManager {
	if caches == nil {
		caches = cache.NewCacheManager(nil)
	}
	return &serviceManager{deps: deps, caches: caches}
}

// Initialize builds every service over the shared dependencies
func (sm *serviceManager) Initialize(ctx context.Context) error {
	sm.mu.Lock()
	defer sm.mu.Unlock()

	if sm.initialized {
		return nil
	}
	if sm.deps.Repo == nil {
		return fmt.Errorf("failed to initialize services: repository is required")
	}

	sm.deps.Logger.Info("Initializing service manager")

	if sm.deps.Lookups == nil {
		sm.deps.Lookups = cache.NewLookupCache(sm.caches, NewLookupLoader(sm.deps.Repo))
	}

	sm.departmentService = NewDepartmentService(sm.deps)
	sm.facultyMemberService = NewFacultyMemberService(sm.deps)
	sm.subjectService = NewSubjectService(sm.deps)
	sm.paperCategoryService = NewPaperCategoryService(sm.deps)
	sm.paperService = NewPaperService(sm.deps)
	sm.questionTypeService = NewQuestionTypeService(sm.deps)
	sm.questionService = NewQuestionService(sm.deps)
	sm.questionOptionService = NewQuestionOptionService(sm.deps)
	sm.userCategoryService = NewUserCategoryService(sm.deps)
	sm.userService = NewUserService(sm.deps)
	sm.attemptService = NewAttemptService(sm.deps)
	sm.lookupService = NewLookupService(sm.deps)
	sm.dashboardService = NewDashboardService(sm.deps)
	sm.exportService = NewExportService(sm.deps)

	sm.initialized = true
	sm.deps.Logger.Info("Service manager initialized successfully", "cache", sm.caches.Lookup.Available())
	return nil
}

func (sm *serviceManager) ready() {
	if !sm.initialized {
		panic("service manager not initialized")
	}
}

// Service getters
func (sm *serviceManager) Department() DepartmentService {
	sm.mu.RLock()
	defer sm.mu.RUnlock()
	sm.ready()
	return sm.departmentService
}

func (sm *serviceManager) FacultyMember() FacultyMemberService {
	sm.mu.RLock()
	defer sm.mu.RUnlock()
	sm.ready()
	return sm.facultyMemberService
}

func (sm *serviceManager) Subject() SubjectService {
	sm.mu.RLock()
	defer sm.mu.RUnlock()
	sm.ready()
	return sm.subjectService
}

func (sm *serviceManager) PaperCategory() PaperCategoryService {
	sm.mu.RLock()
	defer sm.mu.RUnlock()
	sm.ready()
	return sm.paperCategoryService
}

func (sm *serviceManager) Paper() PaperService {
	sm.mu.RLock()
	defer sm.mu.RUnlock()
	sm.ready()
	return sm.paperService
}

func (sm *serviceManager) QuestionType() QuestionTypeService {
	sm.mu.RLock()
	defer sm.mu.RUnlock()
	sm.ready()
	return sm.questionTypeService
}

func (sm *serviceManager) Question() QuestionService {
	sm.mu.RLock()
	defer sm.mu.RUnlock()
	sm.ready()
	return sm.questionService
}

func (sm *serviceManager) QuestionOption() QuestionOptionService {
	sm.mu.RLock()
	defer sm.mu.RUnlock()
	sm.ready()
	return sm.questionOptionService
}

func (sm *serviceManager) UserCategory() UserCategoryService {
	sm.mu.RLock()
	defer sm.mu.RUnlock()
	sm.ready()
	return sm.userCategoryService
}

func (sm *serviceManager) User() UserService {
	sm.mu.RLock()
	defer sm.mu.RUnlock()
	sm.ready()
	return sm.userService
}

func (sm *serviceManager) Attempt() AttemptService {
	sm.mu.RLock()
	defer sm.mu.RUnlock()
	sm.ready()
	return sm.attemptService
}

func (sm *serviceManager) Lookup() LookupService {
	sm.mu.RLock()
	defer sm.mu.RUnlock()
	sm.ready()
	return sm.lookupService
}

func (sm *serviceManager) Dashboard() DashboardService {
	sm.mu.RLock()
	defer sm.mu.RUnlock()
	sm.ready()
	return sm.dashboardService
}

func (sm *serviceManager) Export() ExportService {
	sm.mu.RLock()
	defer sm.mu.RUnlock()
	sm.ready()
	return sm.exportService
}

// Health reports the status of the database and the cache
func (sm *serviceManager) Health(ctx context.Context) map[string]string {
	status := map[string]string{"database": statusUp, "cache": statusUp}

	if err := sm.deps.Repo.Ping(ctx); err != nil {
		sm.deps.Logger.WarnContext(ctx, "Database health check failed", "error", err)
		status["database"] = statusDown
	}

	if err := sm.caches.HealthCheck(ctx); err != nil {
		if errors.Is(err, cache.ErrCacheNotAvailable) {
			status["cache"] = statusDisabled
		} else {
			sm.deps.Logger.WarnContext(ctx, "Cache health check failed", "error", err)
			status["cache"] = statusDown
		}
	}

	return status
}

// Shutdown closes the event publisher and the repository connections
func (sm *serviceManager) Shutdown(ctx context.Context) error {
	sm.mu.Lock()
	defer sm.mu.Unlock()

	if sm.shutdown {
		return nil
	}

	sm.deps.Logger.Info("Shutting down service manager")

	var errs []error
	if sm.deps.Events != nil {
		if err := sm.deps.Events.Close(); err != nil {
			errs = append(errs, fmt.Errorf("failed to close event publisher: %w", err))
		}
	}
	if err := sm.deps.Repo.Close(); err != nil {
		errs = append(errs, fmt.Errorf("failed to close repository: %w", err))
	}

	sm.shutdown = true
	sm.deps.Logger.Info("Service manager shut down completed")
	return errors.Join(errs...)
}
