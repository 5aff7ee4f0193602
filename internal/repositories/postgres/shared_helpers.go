package postgres

import (
	"context"
	"strings"

	"gorm.io/gorm"
)

const defaultSearchLimit = 50

// ApplyPaginationAndSort applies pagination and sorting with a column whitelist
func ApplyPaginationAndSort(query *gorm.DB, allowedSortColumns map[string]bool, sortBy, sortOrder string, limit, offset int) *gorm.DB {
	if sortBy == "" || !allowedSortColumns[sortBy] {
		sortBy = "created_at"
	}

	if strings.EqualFold(sortOrder, "asc") {
		sortOrder = "ASC"
	} else {
		sortOrder = "DESC"
	}

	// id breaks ties so pages stay stable
	query = query.Order(sortBy + " " + sortOrder).Order("id " + sortOrder)

	if limit > 0 {
		query = query.Limit(limit)
	}
	if offset > 0 {
		query = query.Offset(offset)
	}

	return query
}

// ApplySearch adds a case-insensitive substring match over columns
func ApplySearch(query *gorm.DB, columns []string, term string) *gorm.DB {
	term = strings.TrimSpace(term)
	if term == "" || len(columns) == 0 {
		return query
	}

	pattern := "%" + EscapeLike(term) + "%"
	conditions := make([]string, len(columns))
	args := make([]interface{}, len(columns))
	for i, column := range columns {
		conditions[i] = column + " ILIKE ?"
		args[i] = pattern
	}

	return query.Where("("+strings.Join(conditions, " OR ")+")", args...)
}

// ApplyEquals adds equality filters for whitelisted columns only
func ApplyEquals(query *gorm.DB, allowed map[string]bool, equals map[string]interface{}) *gorm.DB {
	for column, value := range equals {
		if !allowed[column] || value == nil {
			continue
		}
		query = query.Where(column+" = ?", value)
	}
	return query
}

// EscapeLike escapes LIKE wildcards so user input matches literally
func EscapeLike(s string) string {
	replacer := strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)
	return replacer.Replace(s)
}

// countWhere counts live rows of model matching the condition
func countWhere(ctx context.Context, db *gorm.DB, model interface{}, query string, args ...interface{}) (int64, error) {
	var count int64
	err := db.WithContext(ctx).Model(model).Where(query, args...).Count(&count).Error
	return count, err
}

// existsExcluding checks a uniqueness condition, ignoring excludeID when set
func existsExcluding(ctx context.Context, db *gorm.DB, model interface{}, excludeID *uint, query string, args ...interface{}) (bool, error) {
	q := db.WithContext(ctx).Model(model).Where(query, args...)
	if excludeID != nil {
		q = q.Where("id <> ?", *excludeID)
	}

	var count int64
	if err := q.Count(&count).Error; err != nil {
		return false, err
	}
	return count > 0, nil
}

func sortColumns(columns ...string) map[string]bool {
	allowed := map[string]bool{"created_at": true, "updated_at": true, "id": true}
	for _, column := range columns {
		allowed[column] = true
	}
	return allowed
}

func columnSet(columns ...string) map[string]bool {
	set := make(map[string]bool, len(columns))
	for _, column := range columns {
		set[column] = true
	}
	return set
}
