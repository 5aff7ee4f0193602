package services

import (
	"context"
	"fmt"

	"github.com/SAP-F-2025/examination-service/internal/authz"
	"github.com/SAP-F-2025/examination-service/internal/cache"
	"github.com/SAP-F-2025/examination-service/internal/models"
	"github.com/SAP-F-2025/examination-service/internal/repositories"
)

// repositoryLookupLoader loads lookup data straight from the repositories
type repositoryLookupLoader struct {
	repo repositories.Repository
}

// NewLookupLoader returns the cache loader backed by repo
func NewLookupLoader(repo repositories.Repository) cache.LookupLoader {
	return &repositoryLookupLoader{repo: repo}
}

func (l *repositoryLookupLoader) LoadDepartments(ctx context.Context) ([]models.LookupItem, error) {
	departments, err := l.repo.Department().ListAll(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to load departments: %w", err)
	}
	items := make([]models.LookupItem, len(departments))
	for i, d := range departments {
		items[i] = models.LookupItem{ID: d.ID, Name: d.Name}
	}
	return items, nil
}

func (l *repositoryLookupLoader) LoadSubjects(ctx context.Context, departmentID *uint) ([]models.LookupItem, error) {
	subjects, err := l.repo.Subject().ListByDepartment(ctx, nil, departmentID)
	if err != nil {
		return nil, fmt.Errorf("failed to load subjects: %w", err)
	}
	items := make([]models.LookupItem, len(subjects))
	for i, s := range subjects {
		items[i] = models.LookupItem{ID: s.ID, Name: s.Name}
	}
	return items, nil
}

func (l *repositoryLookupLoader) LoadPaperCategories(ctx context.Context) ([]models.LookupItem, error) {
	categories, err := l.repo.PaperCategory().ListAll(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to load paper categories: %w", err)
	}
	items := make([]models.LookupItem, len(categories))
	for i, c := range categories {
		items[i] = models.LookupItem{ID: c.ID, Name: c.Name}
	}
	return items, nil
}

func (l *repositoryLookupLoader) LoadQuestionTypes(ctx context.Context) ([]models.LookupItem, error) {
	types, err := l.repo.QuestionType().ListAll(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to load question types: %w", err)
	}
	items := make([]models.LookupItem, len(types))
	for i, t := range types {
		items[i] = models.LookupItem{ID: t.ID, Name: t.Name}
	}
	return items, nil
}

func (l *repositoryLookupLoader) LoadUserCategories(ctx context.Context) ([]models.LookupItem, error) {
	categories, err := l.repo.UserCategory().ListAll(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to load user categories: %w", err)
	}
	items := make([]models.LookupItem, len(categories))
	for i, c := range categories {
		items[i] = models.LookupItem{ID: c.ID, Name: c.Name}
	}
	return items, nil
}

func (l *repositoryLookupLoader) LoadDashboardStats(ctx context.Context) (*models.DashboardStats, error) {
	stats, err := l.repo.Dashboard().GetStats(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to load dashboard stats: %w", err)
	}
	return stats, nil
}

// ===== LOOKUP SERVICE =====

type lookupService struct {
	deps   *ServiceDeps
	loader cache.LookupLoader
}

func NewLookupService(deps *ServiceDeps) LookupService {
	return &lookupService{deps: deps, loader: NewLookupLoader(deps.Repo)}
}

func (s *lookupService) authorize(ctx context.Context, actor authz.Actor) error {
	return s.deps.authorize(ctx, actor, authz.ActionRead, authz.Resource{Kind: authz.KindLookup})
}

func (s *lookupService) Departments(ctx context.Context, actor authz.Actor) ([]models.LookupItem, error) {
	if err := s.authorize(ctx, actor); err != nil {
		return nil, err
	}
	if s.deps.Lookups == nil {
		return s.loader.LoadDepartments(ctx)
	}
	return s.deps.Lookups.Departments(ctx)
}

func (s *lookupService) Subjects(ctx context.Context, actor authz.Actor, departmentID *uint) ([]models.LookupItem, error) {
	if err := s.authorize(ctx, actor); err != nil {
		return nil, err
	}
	if s.deps.Lookups == nil {
		return s.loader.LoadSubjects(ctx, departmentID)
	}
	return s.deps.Lookups.SubjectsByDepartment(ctx, departmentID)
}

func (s *lookupService) PaperCategories(ctx context.Context, actor authz.Actor) ([]models.LookupItem, error) {
	if err := s.authorize(ctx, actor); err != nil {
		return nil, err
	}
	if s.deps.Lookups == nil {
		return s.loader.LoadPaperCategories(ctx)
	}
	return s.deps.Lookups.PaperCategories(ctx)
}

func (s *lookupService) QuestionTypes(ctx context.Context, actor authz.Actor) ([]models.LookupItem, error) {
	if err := s.authorize(ctx, actor); err != nil {
		return nil, err
	}
	if s.deps.Lookups == nil {
		return s.loader.LoadQuestionTypes(ctx)
	}
	return s.deps.Lookups.QuestionTypes(ctx)
}

func (s *lookupService) UserCategories(ctx context.Context, actor authz.Actor) ([]models.LookupItem, error) {
	if err := s.authorize(ctx, actor); err != nil {
		return nil, err
	}
	if s.deps.Lookups == nil {
		return s.loader.LoadUserCategories(ctx)
	}
	return s.deps.Lookups.UserCategories(ctx)
}
