package cache

import (
	"context"
	"fmt"

	"github.com/SAP-F-2025/examination-service/internal/models"
)

// LookupLoader reads lookup data from the system of record on a cache miss
type LookupLoader interface {
	LoadDepartments(ctx context.Context) ([]models.LookupItem, error)
	LoadSubjects(ctx context.Context, departmentID *uint) ([]models.LookupItem, error)
	LoadPaperCategories(ctx context.Context) ([]models.LookupItem, error)
	LoadQuestionTypes(ctx context.Context) ([]models.LookupItem, error)
	LoadUserCategories(ctx context.Context) ([]models.LookupItem, error)
	LoadDashboardStats(ctx context.Context) (*models.DashboardStats, error)
}

const (
	keyDepartments     = "departments"
	keySubjectsPrefix  = "subjects:"
	keyPaperCategories = "paper_categories"
	keyQuestionTypes   = "question_types"
	keyUserCategories  = "user_categories"
	keyDashboard       = "dashboard"
)

// LookupCache is a read-through cache for dropdown data and dashboard counts
type LookupCache struct {
	manager *CacheManager
	loader  LookupLoader
}

func NewLookupCache(manager *CacheManager, loader LookupLoader) *LookupCache {
	return &LookupCache{manager: manager, loader: loader}
}

func (l *LookupCache) items(ctx context.Context, key string, load func() ([]models.LookupItem, error)) ([]models.LookupItem, error) {
	var items []models.LookupItem
	err := l.manager.Lookup.GetOrLoad(ctx, key, &items, func() (interface{}, error) {
		return load()
	})
	if err != nil {
		return nil, err
	}
	if items == nil {
		items = []models.LookupItem{}
	}
	return items, nil
}

func (l *LookupCache) Departments(ctx context.Context) ([]models.LookupItem, error) {
	return l.items(ctx, keyDepartments, func() ([]models.LookupItem, error) {
		return l.loader.LoadDepartments(ctx)
	})
}

// SubjectsByDepartment lists subjects, optionally restricted to one department
func (l *LookupCache) SubjectsByDepartment(ctx context.Context, departmentID *uint) ([]models.LookupItem, error) {
	key := keySubjectsPrefix + "all"
	if departmentID != nil {
		key = fmt.Sprintf("%sdept:%d", keySubjectsPrefix, *departmentID)
	}
	return l.items(ctx, key, func() ([]models.LookupItem, error) {
		return l.loader.LoadSubjects(ctx, departmentID)
	})
}

func (l *LookupCache) PaperCategories(ctx context.Context) ([]models.LookupItem, error) {
	return l.items(ctx, keyPaperCategories, func() ([]models.LookupItem, error) {
		return l.loader.LoadPaperCategories(ctx)
	})
}

func (l *LookupCache) QuestionTypes(ctx context.Context) ([]models.LookupItem, error) {
	return l.items(ctx, keyQuestionTypes, func() ([]models.LookupItem, error) {
		return l.loader.LoadQuestionTypes(ctx)
	})
}

func (l *LookupCache) UserCategories(ctx context.Context) ([]models.LookupItem, error) {
	return l.items(ctx, keyUserCategories, func() ([]models.LookupItem, error) {
		return l.loader.LoadUserCategories(ctx)
	})
}

func (l *LookupCache) DashboardStats(ctx context.Context) (*models.DashboardStats, error) {
	var stats models.DashboardStats
	err := l.manager.Stats.GetOrLoad(ctx, keyDashboard, &stats, func() (interface{}, error) {
		return l.loader.LoadDashboardStats(ctx)
	})
	if err != nil {
		return nil, err
	}
	return &stats, nil
}

// Invalidation hooks are safe on a nil cache.

func (l *LookupCache) InvalidateDepartments(ctx context.Context) {
	if l == nil {
		return
	}
	SafeDelete(ctx, l.manager.Lookup, keyDepartments)
	// subjects embed department scoping
	SafeInvalidatePattern(ctx, l.manager.Lookup, keySubjectsPrefix+"*")
	l.InvalidateStats(ctx)
}

func (l *LookupCache) InvalidateSubjects(ctx context.Context) {
	if l == nil {
		return
	}
	SafeInvalidatePattern(ctx, l.manager.Lookup, keySubjectsPrefix+"*")
	l.InvalidateStats(ctx)
}

func (l *LookupCache) InvalidatePaperCategories(ctx context.Context) {
	if l == nil {
		return
	}
	SafeDelete(ctx, l.manager.Lookup, keyPaperCategories)
}

func (l *LookupCache) InvalidateQuestionTypes(ctx context.Context) {
	if l == nil {
		return
	}
	SafeDelete(ctx, l.manager.Lookup, keyQuestionTypes)
}

func (l *LookupCache) InvalidateUserCategories(ctx context.Context) {
	if l == nil {
		return
	}
	SafeDelete(ctx, l.manager.Lookup, keyUserCategories)
}

func (l *LookupCache) InvalidateStats(ctx context.Context) {
	if l == nil {
		return
	}
	SafeDelete(ctx, l.manager.Stats, keyDashboard)
}
