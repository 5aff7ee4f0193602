package postgres

import (
	"context"
	"fmt"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/SAP-F-2025/examination-service/internal/repositories"
)

// crudOptions describes how an entity is listed and searched
type crudOptions struct {
	name          string
	searchColumns []string
	sortColumns   map[string]bool
	filterColumns map[string]bool
	preloads      []string
}

// crudPostgreSQL implements repositories.CRUDRepository for any gorm model
type crudPostgreSQL[T any] struct {
	db   *gorm.DB
	opts crudOptions
}

func newCRUDPostgreSQL[T any](db *gorm.DB, opts crudOptions) crudPostgreSQL[T] {
	if opts.sortColumns == nil {
		opts.sortColumns = sortColumns()
	}
	return crudPostgreSQL[T]{db: db, opts: opts}
}

// getDB returns the transaction if provided, otherwise returns the main db connection
func (r *crudPostgreSQL[T]) getDB(tx *gorm.DB) *gorm.DB {
	if tx != nil {
		return tx
	}
	return r.db
}

func (r *crudPostgreSQL[T]) withPreloads(query *gorm.DB) *gorm.DB {
	for _, preload := range r.opts.preloads {
		query = query.Preload(preload)
	}
	return query
}

func (r *crudPostgreSQL[T]) Create(ctx context.Context, tx *gorm.DB, entity *T) error {
	if err := r.getDB(tx).WithContext(ctx).Omit(clause.Associations).Create(entity).Error; err != nil {
		return fmt.Errorf("failed to create %s: %w", r.opts.name, err)
	}
	return nil
}

func (r *crudPostgreSQL[T]) GetByID(ctx context.Context, tx *gorm.DB, id uint) (*T, error) {
	var entity T
	query := r.withPreloads(r.getDB(tx).WithContext(ctx))
	if err := query.First(&entity, id).Error; err != nil {
		return nil, fmt.Errorf("failed to get %s: %w", r.opts.name, err)
	}
	return &entity, nil
}

// Update saves all columns of entity; associations are managed separately
func (r *crudPostgreSQL[T]) Update(ctx context.Context, tx *gorm.DB, entity *T) error {
	result := r.getDB(tx).WithContext(ctx).Omit(clause.Associations).Save(entity)
	if result.Error != nil {
		return fmt.Errorf("failed to update %s: %w", r.opts.name, result.Error)
	}
	return nil
}

// Delete soft deletes the row
func (r *crudPostgreSQL[T]) Delete(ctx context.Context, tx *gorm.DB, id uint) error {
	result := r.getDB(tx).WithContext(ctx).Delete(new(T), id)
	if result.Error != nil {
		return fmt.Errorf("failed to delete %s: %w", r.opts.name, result.Error)
	}
	if result.RowsAffected == 0 {
		return fmt.Errorf("failed to delete %s %d: %w", r.opts.name, id, repositories.ErrNotFound)
	}
	return nil
}

func (r *crudPostgreSQL[T]) List(ctx context.Context, tx *gorm.DB, filters repositories.ListFilters) ([]*T, int64, error) {
	query := r.getDB(tx).WithContext(ctx).Model(new(T))
	query = ApplyEquals(query, r.opts.filterColumns, filters.Equals)
	query = ApplySearch(query, r.opts.searchColumns, filters.Search)

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, fmt.Errorf("failed to count %s: %w", r.opts.name, err)
	}

	var items []*T
	query = ApplyPaginationAndSort(r.withPreloads(query), r.opts.sortColumns, filters.SortBy, filters.SortOrder, filters.Limit, filters.Offset)
	if err := query.Find(&items).Error; err != nil {
		return nil, 0, fmt.Errorf("failed to list %s: %w", r.opts.name, err)
	}

	return items, total, nil
}

// Search matches term against the search columns, newest first
func (r *crudPostgreSQL[T]) Search(ctx context.Context, tx *gorm.DB, term string, limit int) ([]*T, error) {
	if limit <= 0 {
		limit = defaultSearchLimit
	}

	query := ApplySearch(r.getDB(tx).WithContext(ctx).Model(new(T)), r.opts.searchColumns, term)
	query = ApplyPaginationAndSort(r.withPreloads(query), r.opts.sortColumns, "", "", limit, 0)

	var items []*T
	if err := query.Find(&items).Error; err != nil {
		return nil, fmt.Errorf("failed to search %s: %w", r.opts.name, err)
	}
	return items, nil
}

func (r *crudPostgreSQL[T]) Exists(ctx context.Context, tx *gorm.DB, id uint) (bool, error) {
	count, err := countWhere(ctx, r.getDB(tx), new(T), "id = ?", id)
	if err != nil {
		return false, fmt.Errorf("failed to check %s existence: %w", r.opts.name, err)
	}
	return count > 0, nil
}

func (r *crudPostgreSQL[T]) existsExcluding(ctx context.Context, tx *gorm.DB, excludeID *uint, query string, args ...interface{}) (bool, error) {
	exists, err := existsExcluding(ctx, r.getDB(tx), new(T), excludeID, query, args...)
	if err != nil {
		return false, fmt.Errorf("failed to check %s uniqueness: %w", r.opts.name, err)
	}
	return exists, nil
}

func (r *crudPostgreSQL[T]) listAll(ctx context.Context, tx *gorm.DB, order string) ([]*T, error) {
	var items []*T
	if err := r.getDB(tx).WithContext(ctx).Order(order).Find(&items).Error; err != nil {
		return nil, fmt.Errorf("failed to list %s: %w", r.opts.name, err)
	}
	return items, nil
}

// countDependents counts live rows per relation; relations maps name -> (model, fk column)
func (r *crudPostgreSQL[T]) countDependents(ctx context.Context, tx *gorm.DB, id uint, relations []dependentRelation) (map[string]int64, error) {
	counts := make(map[string]int64, len(relations))
	for _, relation := range relations {
		count, err := countWhere(ctx, r.getDB(tx), relation.model, relation.column+" = ?", id)
		if err != nil {
			return nil, fmt.Errorf("failed to count %s of %s: %w", relation.name, r.opts.name, err)
		}
		counts[relation.name] = count
	}
	return counts, nil
}

type dependentRelation struct {
	name   string
	model  interface{}
	column string
}
