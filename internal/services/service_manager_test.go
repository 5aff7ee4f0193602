package services

import (
	"context"
	"errors"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"

	"github.com/SAP-F-2025/examination-service/internal/cache"
	"github.com/SAP-F-2025/examination-service/internal/models"
)

func TestServiceManager_Health(t *testing.T) {
	ctx := context.Background()

	t.Run("without redis", func(t *testing.T) {
		env := newTestEnv(t)
		sm := NewServiceManager(env.deps, nil)
		if err := sm.Initialize(ctx); err != nil {
			t.Fatalf("Initialize() error = %v", err)
		}

		got := sm.Health(ctx)
		if got["database"] != "up" || got["cache"] != "disabled" {
			t.Errorf("Health() = %v, want database up and cache disabled", got)
		}

		env.repo.pingErr = errors.New("connection refused")
		if got := sm.Health(ctx); got["database"] != "down" {
			t.Errorf("Health() database = %s, want down", got["database"])
		}
	})

	t.Run("with redis", func(t *testing.T) {
		mr := miniredis.RunT(t)
		client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
		defer client.Close()

		env := newTestEnv(t)
		sm := NewServiceManager(env.deps, cache.NewCacheManager(client))
		if err := sm.Initialize(ctx); err != nil {
			t.Fatalf("Initialize() error = %v", err)
		}
		if got := sm.Health(ctx); got["cache"] != "up" {
			t.Errorf("Health() cache = %s, want up", got["cache"])
		}

		mr.Close()
		if got := sm.Health(ctx); got["cache"] != "down" {
			t.Errorf("Health() cache after redis stopped = %s, want down", got["cache"])
		}
	})
}

func TestServiceManager_LookupsAreCached(t *testing.T) {
	ctx := context.Background()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer client.Close()

	env := newTestEnv(t)
	sm := NewServiceManager(env.deps, cache.NewCacheManager(client))
	if err := sm.Initialize(ctx); err != nil {
		t.Fatalf("Initialize() error = %v", err)
	}

	if _, err := sm.Department().Create(ctx, admin, &models.DepartmentCreateRequest{Name: "Physics", Code: "PHY"}); err != nil {
		t.Fatalf("Create() error = %v", err)
	}
	items, err := sm.Lookup().Departments(ctx, examiner)
	if err != nil {
		t.Fatalf("Departments() error = %v", err)
	}
	if len(items) != 1 || items[0].Name != "Physics" {
		t.Fatalf("Departments() = %v", items)
	}

	// a write through the repository alone leaves the cached list untouched
	_ = env.repo.departments.Create(ctx, nil, &models.Department{Name: "Chemistry", Code: "CHE"})
	if items, _ := sm.Lookup().Departments(ctx, examiner); len(items) != 1 {
		t.Errorf("Departments() = %d items, want the cached single item", len(items))
	}

	// a write through the service invalidates it
	if _, err := sm.Department().Create(ctx, admin, &models.DepartmentCreateRequest{Name: "Biology", Code: "BIO"}); err != nil {
		t.Fatalf("Create() error = %v", err)
	}
	if items, _ := sm.Lookup().Departments(ctx, examiner); len(items) != 3 {
		t.Errorf("Departments() = %d items after invalidation, want 3", len(items))
	}

	stats, err := sm.Dashboard().GetStats(ctx, admin)
	if err != nil {
		t.Fatalf("GetStats() error = %v", err)
	}
	if stats.Departments != 3 {
		t.Errorf("GetStats() departments = %d, want 3", stats.Departments)
	}
	if _, err := sm.Dashboard().GetStats(ctx, env.candidate(t)); !errors.Is(err, ErrForbidden) {
		t.Errorf("GetStats() by candidate error = %v, want ErrForbidden", err)
	}
}
