package postgres

import (
	"context"
	"fmt"

	"gorm.io/gorm"

	"github.com/SAP-F-2025/examination-service/internal/models"
)

// ===== QUESTION TYPES =====

type QuestionTypePostgreSQL struct {
	crudPostgreSQL[models.QuestionType]
}

func NewQuestionTypePostgreSQL(db *gorm.DB) *QuestionTypePostgreSQL {
	return &QuestionTypePostgreSQL{
		crudPostgreSQL: newCRUDPostgreSQL[models.QuestionType](db, crudOptions{
			name:          "question type",
			searchColumns: []string{"name", "code", "description"},
			sortColumns:   sortColumns("name", "code"),
			filterColumns: columnSet("requires_options", "auto_gradable"),
		}),
	}
}

func (r *QuestionTypePostgreSQL) ExistsByCode(ctx context.Context, tx *gorm.DB, code string, excludeID *uint) (bool, error) {
	return r.existsExcluding(ctx, tx, excludeID, "LOWER(code) = LOWER(?)", code)
}

func (r *QuestionTypePostgreSQL) ListAll(ctx context.Context, tx *gorm.DB) ([]*models.QuestionType, error) {
	return r.listAll(ctx, tx, "name ASC")
}

func (r *QuestionTypePostgreSQL) CountDependents(ctx context.Context, tx *gorm.DB, id uint) (map[string]int64, error) {
	return r.countDependents(ctx, tx, id, []dependentRelation{
		{name: "questions", model: &models.Question{}, column: "question_type_id"},
	})
}

// ===== QUESTIONS =====

type QuestionPostgreSQL struct {
	crudPostgreSQL[models.Question]
}

func NewQuestionPostgreSQL(db *gorm.DB) *QuestionPostgreSQL {
	return &QuestionPostgreSQL{
		crudPostgreSQL: newCRUDPostgreSQL[models.Question](db, crudOptions{
			name:          "question",
			searchColumns: []string{"text", "explanation"},
			sortColumns:   sortColumns("difficulty_level", "marks", "status"),
			filterColumns: columnSet("subject_id", "question_type_id", "difficulty_level", "status"),
			preloads:      []string{"QuestionType"},
		}),
	}
}

func (r *QuestionPostgreSQL) GetByIDWithOptions(ctx context.Context, tx *gorm.DB, id uint) (*models.Question, error) {
	var question models.Question
	err := r.getDB(tx).WithContext(ctx).
		Preload("QuestionType").
		Preload("Subject").
		Preload("Options", func(db *gorm.DB) *gorm.DB {
			return db.Order(`"order" ASC, id ASC`)
		}).
		First(&question, id).Error
	if err != nil {
		return nil, fmt.Errorf("failed to get question with options: %w", err)
	}
	return &question, nil
}

func (r *QuestionPostgreSQL) GetByIDsWithOptions(ctx context.Context, tx *gorm.DB, ids []uint) ([]*models.Question, error) {
	if len(ids) == 0 {
		return nil, nil
	}

	var questions []*models.Question
	err := r.getDB(tx).WithContext(ctx).
		Preload("QuestionType").
		Preload("Options").
		Where("id IN ?", ids).
		Find(&questions).Error
	if err != nil {
		return nil, fmt.Errorf("failed to get questions by ids: %w", err)
	}
	return questions, nil
}

func (r *QuestionPostgreSQL) CountExisting(ctx context.Context, tx *gorm.DB, ids []uint) (int64, error) {
	if len(ids) == 0 {
		return 0, nil
	}
	count, err := countWhere(ctx, r.getDB(tx), &models.Question{}, "id IN ?", ids)
	if err != nil {
		return 0, fmt.Errorf("failed to count questions: %w", err)
	}
	return count, nil
}

func (r *QuestionPostgreSQL) CountDependents(ctx context.Context, tx *gorm.DB, id uint) (map[string]int64, error) {
	return r.countDependents(ctx, tx, id, []dependentRelation{
		{name: "papers", model: &models.PaperQuestion{}, column: "question_id"},
		{name: "answers", model: &models.Answer{}, column: "question_id"},
	})
}

// ===== QUESTION OPTIONS =====

type QuestionOptionPostgreSQL struct {
	crudPostgreSQL[models.QuestionOption]
}

func NewQuestionOptionPostgreSQL(db *gorm.DB) *QuestionOptionPostgreSQL {
	return &QuestionOptionPostgreSQL{
		crudPostgreSQL: newCRUDPostgreSQL[models.QuestionOption](db, crudOptions{
			name:          "question option",
			searchColumns: []string{"text"},
			filterColumns: columnSet("question_id", "is_correct"),
		}),
	}
}

func (r *QuestionOptionPostgreSQL) ListByQuestion(ctx context.Context, tx *gorm.DB, questionID uint) ([]*models.QuestionOption, error) {
	var options []*models.QuestionOption
	err := r.getDB(tx).WithContext(ctx).
		Where("question_id = ?", questionID).
		Order(`"order" ASC, id ASC`).
		Find(&options).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list question options: %w", err)
	}
	return options, nil
}

func (r *QuestionOptionPostgreSQL) CreateBatch(ctx context.Context, tx *gorm.DB, options []*models.QuestionOption) error {
	if len(options) == 0 {
		return nil
	}
	if err := r.getDB(tx).WithContext(ctx).Create(&options).Error; err != nil {
		return fmt.Errorf("failed to create question options: %w", err)
	}
	return nil
}

func (r *QuestionOptionPostgreSQL) ExistsByText(ctx context.Context, tx *gorm.DB, questionID uint, text string, excludeID *uint) (bool, error) {
	return r.existsExcluding(ctx, tx, excludeID, "question_id = ? AND text = ?", questionID, text)
}

func (r *QuestionOptionPostgreSQL) CountCorrect(ctx context.Context, tx *gorm.DB, questionID uint, excludeID *uint) (int64, error) {
	query := r.getDB(tx).WithContext(ctx).
		Model(&models.QuestionOption{}).
		Where("question_id = ? AND is_correct = ?", questionID, true)
	if excludeID != nil {
		query = query.Where("id <> ?", *excludeID)
	}

	var count int64
	if err := query.Count(&count).Error; err != nil {
		return 0, fmt.Errorf("failed to count correct options: %w", err)
	}
	return count, nil
}
