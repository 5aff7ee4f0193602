package postgres

import (
	"context"

	"gorm.io/gorm"

	"github.com/SAP-F-2025/examination-service/internal/models"
)

// ===== DEPARTMENTS =====

type DepartmentPostgreSQL struct {
	crudPostgreSQL[models.Department]
}

func NewDepartmentPostgreSQL(db *gorm.DB) *DepartmentPostgreSQL {
	return &DepartmentPostgreSQL{
		crudPostgreSQL: newCRUDPostgreSQL[models.Department](db, crudOptions{
			name:          "department",
			searchColumns: []string{"name", "code", "description"},
			sortColumns:   sortColumns("name", "code"),
		}),
	}
}

func (r *DepartmentPostgreSQL) ExistsByName(ctx context.Context, tx *gorm.DB, name string, excludeID *uint) (bool, error) {
	return r.existsExcluding(ctx, tx, excludeID, "LOWER(name) = LOWER(?)", name)
}

func (r *DepartmentPostgreSQL) ExistsByCode(ctx context.Context, tx *gorm.DB, code string, excludeID *uint) (bool, error) {
	return r.existsExcluding(ctx, tx, excludeID, "LOWER(code) = LOWER(?)", code)
}

func (r *DepartmentPostgreSQL) ListAll(ctx context.Context, tx *gorm.DB) ([]*models.Department, error) {
	return r.listAll(ctx, tx, "name ASC")
}

func (r *DepartmentPostgreSQL) CountDependents(ctx context.Context, tx *gorm.DB, id uint) (map[string]int64, error) {
	return r.countDependents(ctx, tx, id, []dependentRelation{
		{name: "faculty_members", model: &models.FacultyMember{}, column: "department_id"},
		{name: "subjects", model: &models.Subject{}, column: "department_id"},
	})
}

// ===== FACULTY MEMBERS =====

type FacultyMemberPostgreSQL struct {
	crudPostgreSQL[models.FacultyMember]
}

func NewFacultyMemberPostgreSQL(db *gorm.DB) *FacultyMemberPostgreSQL {
	return &FacultyMemberPostgreSQL{
		crudPostgreSQL: newCRUDPostgreSQL[models.FacultyMember](db, crudOptions{
			name:          "faculty member",
			searchColumns: []string{"name", "email", "designation"},
			sortColumns:   sortColumns("name", "email", "joining_date"),
			filterColumns: columnSet("department_id"),
			preloads:      []string{"Department"},
		}),
	}
}

func (r *FacultyMemberPostgreSQL) ExistsByEmail(ctx context.Context, tx *gorm.DB, email string, excludeID *uint) (bool, error) {
	return r.existsExcluding(ctx, tx, excludeID, "LOWER(email) = LOWER(?)", email)
}

// ===== SUBJECTS =====

type SubjectPostgreSQL struct {
	crudPostgreSQL[models.Subject]
}

func NewSubjectPostgreSQL(db *gorm.DB) *SubjectPostgreSQL {
	return &SubjectPostgreSQL{
		crudPostgreSQL: newCRUDPostgreSQL[models.Subject](db, crudOptions{
			name:          "subject",
			searchColumns: []string{"name", "description"},
			sortColumns:   sortColumns("name", "code"),
			filterColumns: columnSet("department_id"),
			preloads:      []string{"Department"},
		}),
	}
}

func (r *SubjectPostgreSQL) ExistsByCode(ctx context.Context, tx *gorm.DB, code string, excludeID *uint) (bool, error) {
	return r.existsExcluding(ctx, tx, excludeID, "LOWER(code) = LOWER(?)", code)
}

func (r *SubjectPostgreSQL) ExistsByNameInDepartment(ctx context.Context, tx *gorm.DB, departmentID uint, name string, excludeID *uint) (bool, error) {
	return r.existsExcluding(ctx, tx, excludeID, "department_id = ? AND LOWER(name) = LOWER(?)", departmentID, name)
}

func (r *SubjectPostgreSQL) ListByDepartment(ctx context.Context, tx *gorm.DB, departmentID *uint) ([]*models.Subject, error) {
	query := r.getDB(tx).WithContext(ctx).Order("name ASC")
	if departmentID != nil {
		query = query.Where("department_id = ?", *departmentID)
	}

	var subjects []*models.Subject
	if err := query.Find(&subjects).Error; err != nil {
		return nil, err
	}
	return subjects, nil
}

func (r *SubjectPostgreSQL) CountDependents(ctx context.Context, tx *gorm.DB, id uint) (map[string]int64, error) {
	return r.countDependents(ctx, tx, id, []dependentRelation{
		{name: "papers", model: &models.Paper{}, column: "subject_id"},
		{name: "questions", model: &models.Question{}, column: "subject_id"},
	})
}

// ===== PAPER CATEGORIES =====

type PaperCategoryPostgreSQL struct {
	crudPostgreSQL[models.PaperCategory]
}

func NewPaperCategoryPostgreSQL(db *gorm.DB) *PaperCategoryPostgreSQL {
	return &PaperCategoryPostgreSQL{
		crudPostgreSQL: newCRUDPostgreSQL[models.PaperCategory](db, crudOptions{
			name:          "paper category",
			searchColumns: []string{"name", "description"},
			sortColumns:   sortColumns("name"),
		}),
	}
}

func (r *PaperCategoryPostgreSQL) ExistsByName(ctx context.Context, tx *gorm.DB, name string, excludeID *uint) (bool, error) {
	return r.existsExcluding(ctx, tx, excludeID, "LOWER(name) = LOWER(?)", name)
}

func (r *PaperCategoryPostgreSQL) ListAll(ctx context.Context, tx *gorm.DB) ([]*models.PaperCategory, error) {
	return r.listAll(ctx, tx, "name ASC")
}

func (r *PaperCategoryPostgreSQL) CountDependents(ctx context.Context, tx *gorm.DB, id uint) (map[string]int64, error) {
	return r.countDependents(ctx, tx, id, []dependentRelation{
		{name: "papers", model: &models.Paper{}, column: "paper_category_id"},
	})
}
