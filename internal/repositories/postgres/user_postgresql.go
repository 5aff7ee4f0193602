package postgres

import (
	"context"
	"fmt"
	"time"

	"gorm.io/gorm"

	"github.com/SAP-F-2025/examination-service/internal/models"
)

// ===== USER CATEGORIES =====

type UserCategoryPostgreSQL struct {
	crudPostgreSQL[models.UserCategory]
}

func NewUserCategoryPostgreSQL(db *gorm.DB) *UserCategoryPostgreSQL {
	return &UserCategoryPostgreSQL{
		crudPostgreSQL: newCRUDPostgreSQL[models.UserCategory](db, crudOptions{
			name:          "user category",
			searchColumns: []string{"name", "description"},
			sortColumns:   sortColumns("name"),
		}),
	}
}

func (r *UserCategoryPostgreSQL) ExistsByName(ctx context.Context, tx *gorm.DB, name string, excludeID *uint) (bool, error) {
	return r.existsExcluding(ctx, tx, excludeID, "LOWER(name) = LOWER(?)", name)
}

func (r *UserCategoryPostgreSQL) ListAll(ctx context.Context, tx *gorm.DB) ([]*models.UserCategory, error) {
	return r.listAll(ctx, tx, "name ASC")
}

func (r *UserCategoryPostgreSQL) GetByIDs(ctx context.Context, tx *gorm.DB, ids []uint) ([]*models.UserCategory, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	var categories []*models.UserCategory
	if err := r.getDB(tx).WithContext(ctx).Where("id IN ?", ids).Find(&categories).Error; err != nil {
		return nil, fmt.Errorf("failed to get user categories: %w", err)
	}
	return categories, nil
}

func (r *UserCategoryPostgreSQL) CountDependents(ctx context.Context, tx *gorm.DB, id uint) (map[string]int64, error) {
	return r.countDependents(ctx, tx, id, []dependentRelation{
		{name: "users", model: &models.User{}, column: "user_category_id"},
	})
}

// ===== USERS =====

type UserPostgreSQL struct {
	crudPostgreSQL[models.User]
}

func NewUserPostgreSQL(db *gorm.DB) *UserPostgreSQL {
	return &UserPostgreSQL{
		crudPostgreSQL: newCRUDPostgreSQL[models.User](db, crudOptions{
			name:          "user",
			searchColumns: []string{"name", "email"},
			sortColumns:   sortColumns("name", "email", "role", "last_login_at"),
			filterColumns: columnSet("role", "status", "user_category_id"),
			preloads:      []string{"UserCategory"},
		}),
	}
}

func (r *UserPostgreSQL) GetByExternalID(ctx context.Context, tx *gorm.DB, externalID string) (*models.User, error) {
	var user models.User
	if err := r.getDB(tx).WithContext(ctx).Where("external_id = ?", externalID).First(&user).Error; err != nil {
		return nil, fmt.Errorf("failed to get user by external id: %w", err)
	}
	return &user, nil
}

func (r *UserPostgreSQL) ExistsByEmail(ctx context.Context, tx *gorm.DB, email string, excludeID *uint) (bool, error) {
	return r.existsExcluding(ctx, tx, excludeID, "LOWER(email) = LOWER(?)", email)
}

func (r *UserPostgreSQL) TouchLastLogin(ctx context.Context, tx *gorm.DB, id uint, at time.Time) error {
	err := r.getDB(tx).WithContext(ctx).
		Model(&models.User{}).
		Where("id = ?", id).
		UpdateColumn("last_login_at", at).Error
	if err != nil {
		return fmt.Errorf("failed to update last login: %w", err)
	}
	return nil
}

func (r *UserPostgreSQL) CountDependents(ctx context.Context, tx *gorm.DB, id uint) (map[string]int64, error) {
	return r.countDependents(ctx, tx, id, []dependentRelation{
		{name: "test_attempts", model: &models.TestAttempt{}, column: "user_id"},
	})
}
