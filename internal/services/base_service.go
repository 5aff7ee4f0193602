package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/jinzhu/copier"

	"github.com/SAP-F-2025/examination-service/internal/authz"
	"github.com/SAP-F-2025/examination-service/internal/cache"
	"github.com/SAP-F-2025/examination-service/internal/events"
	"github.com/SAP-F-2025/examination-service/internal/models"
	"github.com/SAP-F-2025/examination-service/internal/repositories"
	"github.com/SAP-F-2025/examination-service/internal/validator"
)

const searchLimit = 50

// ServiceDeps are the collaborators shared by every service
type ServiceDeps struct {
	Repo       repositories.Repository
	Logger     *slog.Logger
	Validator  *validator.Validator
	Authorizer authz.Authorizer
	// Lookups may be nil; invalidation hooks are nil safe
	Lookups *cache.LookupCache
	Events  events.EventPublisher
	Now     func() time.Time
}

func (d *ServiceDeps) now() time.Time {
	if d.Now != nil {
		return d.Now()
	}
	return time.Now()
}

// publish sends events after commit; delivery failures are logged, never returned
func (d *ServiceDeps) publish(ctx context.Context, evts ...events.Event) {
	if d.Events == nil {
		return
	}
	for _, e := range evts {
		if err := d.Events.Publish(ctx, e); err != nil {
			d.Logger.ErrorContext(ctx, "Failed to publish event", "event_type", e.Type, "event_id", e.ID, "error", err)
		}
	}
}

func (d *ServiceDeps) authorize(ctx context.Context, actor authz.Actor, action authz.Action, resource authz.Resource) error {
	return d.Authorizer.Authorize(ctx, actor, action, resource)
}

func (d *ServiceDeps) validate(req interface{}) error {
	return d.Validator.Validate(req)
}

// baseService implements List, Get, Search and Delete for one entity.
// Entities embed it and add Create and Update.
type baseService[T any] struct {
	deps       *ServiceDeps
	store      repositories.CRUDRepository[T]
	dependents repositories.DependentCounter
	kind       authz.Kind
	resource   string
	onChange   func(ctx context.Context)
}

func newBaseService[T any](deps *ServiceDeps, store repositories.CRUDRepository[T], kind authz.Kind, resource string) baseService[T] {
	b := baseService[T]{deps: deps, store: store, kind: kind, resource: resource}
	if counter, ok := store.(repositories.DependentCounter); ok {
		b.dependents = counter
	}
	return b
}

func (b *baseService[T]) List(ctx context.Context, actor authz.Actor, query ListQuery) (*models.PaginatedResponse, error) {
	if err := b.deps.authorize(ctx, actor, authz.ActionRead, authz.Resource{Kind: b.kind}); err != nil {
		return nil, err
	}
	return b.list(ctx, query)
}

func (b *baseService[T]) list(ctx context.Context, query ListQuery) (*models.PaginatedResponse, error) {
	query = query.Normalize()
	items, total, err := b.store.List(ctx, nil, repositories.ListFilters{
		Search:    query.Search,
		Equals:    query.Equals,
		Limit:     query.Size,
		Offset:    query.Offset(),
		SortBy:    query.SortBy,
		SortOrder: query.SortOrder,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to list %s: %w", b.resource, err)
	}
	if items == nil {
		items = []*T{}
	}
	return models.NewPaginatedResponse(items, len(items), total, query.Page, query.Size), nil
}

func (b *baseService[T]) Get(ctx context.Context, actor authz.Actor, id uint) (*T, error) {
	if err := b.deps.authorize(ctx, actor, authz.ActionRead, authz.Resource{Kind: b.kind, ID: id}); err != nil {
		return nil, err
	}
	return b.fetch(ctx, id)
}

func (b *baseService[T]) fetch(ctx context.Context, id uint) (*T, error) {
	entity, err := b.store.GetByID(ctx, nil, id)
	if err != nil {
		return nil, b.mapError(err, id)
	}
	return entity, nil
}

func (b *baseService[T]) Search(ctx context.Context, actor authz.Actor, term string) ([]*T, error) {
	if err := b.deps.authorize(ctx, actor, authz.ActionRead, authz.Resource{Kind: b.kind}); err != nil {
		return nil, err
	}
	items, err := b.store.Search(ctx, nil, term, searchLimit)
	if err != nil {
		return nil, fmt.Errorf("failed to search %s: %w", b.resource, err)
	}
	if items == nil {
		items = []*T{}
	}
	return items, nil
}

func (b *baseService[T]) Delete(ctx context.Context, actor authz.Actor, id uint) error {
	if err := b.deps.authorize(ctx, actor, authz.ActionDelete, authz.Resource{Kind: b.kind, ID: id}); err != nil {
		return err
	}
	if _, err := b.fetch(ctx, id); err != nil {
		return err
	}
	if err := b.ensureNoDependents(ctx, id); err != nil {
		return err
	}

	if err := b.store.Delete(ctx, nil, id); err != nil {
		return b.mapError(err, id)
	}

	b.changed(ctx)
	b.deps.Logger.InfoContext(ctx, "Deleted "+b.resource, "id", id, "actor_id", actor.UserID)
	return nil
}

func (b *baseService[T]) ensureNoDependents(ctx context.Context, id uint) error {
	if b.dependents == nil {
		return nil
	}
	counts, err := b.dependents.CountDependents(ctx, nil, id)
	if err != nil {
		return fmt.Errorf("failed to count dependents of %s %d: %w", b.resource, id, err)
	}

	live := make(map[string]int64)
	for name, n := range counts {
		if n > 0 {
			live[name] = n
		}
	}
	if len(live) > 0 {
		return &DependentsError{Resource: b.resource, ID: id, Dependents: live}
	}
	return nil
}

// create persists a new entity, translating constraint violations
func (b *baseService[T]) create(ctx context.Context, entity *T) error {
	if err := b.store.Create(ctx, nil, entity); err != nil {
		return b.mapError(err, 0)
	}
	b.changed(ctx)
	return nil
}

func (b *baseService[T]) save(ctx context.Context, entity *T, id uint) error {
	if err := b.store.Update(ctx, nil, entity); err != nil {
		return b.mapError(err, id)
	}
	b.changed(ctx)
	return nil
}

func (b *baseService[T]) changed(ctx context.Context) {
	if b.onChange != nil {
		b.onChange(ctx)
	}
}

// ensureUnique runs an existence probe and turns a hit into a ConflictError
func (b *baseService[T]) ensureUnique(field string, value interface{}, probe func() (bool, error)) error {
	exists, err := probe()
	if err != nil {
		return fmt.Errorf("failed to check %s %s: %w", b.resource, field, err)
	}
	if exists {
		return NewConflictError(b.resource, field, value)
	}
	return nil
}

func (b *baseService[T]) mapError(err error, id uint) error {
	switch {
	case err == nil:
		return nil
	case repositories.IsNotFoundError(err):
		return NewNotFoundError(b.resource, id)
	case repositories.IsDuplicateError(err):
		return fmt.Errorf("%s: %w", b.resource, ErrConflict)
	case repositories.IsForeignKeyError(err):
		return validator.Field("id", "references a record that does not exist", id, "exists")
	}
	return fmt.Errorf("%s operation failed: %w", b.resource, err)
}

// requireRef fails with a field error when the referenced row does not exist
func requireRef[T any](ctx context.Context, store repositories.CRUDRepository[T], field string, id uint) error {
	ok, err := store.Exists(ctx, nil, id)
	if err != nil {
		return fmt.Errorf("failed to check %s: %w", field, err)
	}
	if !ok {
		return validator.Field(field, "does not exist", id, "exists")
	}
	return nil
}

// copyInto copies set fields of a request onto a model; nil and zero fields are skipped
func copyInto(dst, src interface{}) error {
	if err := copier.CopyWithOption(dst, src, copier.Option{IgnoreEmpty: true}); err != nil {
		return fmt.Errorf("failed to copy request: %w", err)
	}
	return nil
}

func isConflict(err error) bool {
	return errors.Is(err, ErrConflict)
}
