package postgres

import (
	"context"
	"fmt"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/SAP-F-2025/examination-service/internal/models"
	"github.com/SAP-F-2025/examination-service/internal/repositories"
)

type PaperPostgreSQL struct {
	crudPostgreSQL[models.Paper]
}

func NewPaperPostgreSQL(db *gorm.DB) *PaperPostgreSQL {
	return &PaperPostgreSQL{
		crudPostgreSQL: newCRUDPostgreSQL[models.Paper](db, crudOptions{
			name:          "paper",
			searchColumns: []string{"name", "description"},
			sortColumns:   sortColumns("name", "status", "duration", "total_marks", "start_time"),
			filterColumns: columnSet("subject_id", "paper_category_id", "status", "allow_retake"),
			preloads:      []string{"Subject", "PaperCategory", "UserCategories"},
		}),
	}
}

// GetByIDWithDetails loads ordered questions with their options and the allowed user categories
func (r *PaperPostgreSQL) GetByIDWithDetails(ctx context.Context, tx *gorm.DB, id uint) (*models.Paper, error) {
	var paper models.Paper
	err := r.getDB(tx).WithContext(ctx).
		Preload("Subject").
		Preload("PaperCategory").
		Preload("UserCategories").
		Preload("Questions", func(db *gorm.DB) *gorm.DB {
			return db.Order("order_index ASC, id ASC")
		}).
		Preload("Questions.Question").
		Preload("Questions.Question.QuestionType").
		Preload("Questions.Question.Options", func(db *gorm.DB) *gorm.DB {
			return db.Order(`"order" ASC, id ASC`)
		}).
		First(&paper, id).Error
	if err != nil {
		return nil, fmt.Errorf("failed to get paper with details: %w", err)
	}
	return &paper, nil
}

// AttachQuestions adds questions to a paper; re-attaching updates the order index
func (r *PaperPostgreSQL) AttachQuestions(ctx context.Context, tx *gorm.DB, paperID uint, questions []models.PaperQuestion) error {
	if len(questions) == 0 {
		return nil
	}
	for i := range questions {
		questions[i].PaperID = paperID
	}

	err := r.getDB(tx).WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "paper_id"}, {Name: "question_id"}},
			DoUpdates: clause.AssignmentColumns([]string{"order_index", "updated_at"}),
		}).
		Create(&questions).Error
	if err != nil {
		return fmt.Errorf("failed to attach questions: %w", err)
	}
	return nil
}

func (r *PaperPostgreSQL) DetachQuestion(ctx context.Context, tx *gorm.DB, paperID, questionID uint) error {
	result := r.getDB(tx).WithContext(ctx).
		Where("paper_id = ? AND question_id = ?", paperID, questionID).
		Delete(&models.PaperQuestion{})
	if result.Error != nil {
		return fmt.Errorf("failed to detach question: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return fmt.Errorf("question %d is not attached to paper %d: %w", questionID, paperID, repositories.ErrNotFound)
	}
	return nil
}

// ReorderQuestions assigns order_index by position in questionIDs
func (r *PaperPostgreSQL) ReorderQuestions(ctx context.Context, tx *gorm.DB, paperID uint, questionIDs []uint) error {
	db := r.getDB(tx).WithContext(ctx)
	for index, questionID := range questionIDs {
		result := db.Model(&models.PaperQuestion{}).
			Where("paper_id = ? AND question_id = ?", paperID, questionID).
			Update("order_index", index)
		if result.Error != nil {
			return fmt.Errorf("failed to reorder questions: %w", result.Error)
		}
		if result.RowsAffected == 0 {
			return fmt.Errorf("question %d is not attached to paper %d: %w", questionID, paperID, repositories.ErrNotFound)
		}
	}
	return nil
}

func (r *PaperPostgreSQL) ListQuestionIDs(ctx context.Context, tx *gorm.DB, paperID uint) ([]uint, error) {
	var ids []uint
	err := r.getDB(tx).WithContext(ctx).
		Model(&models.PaperQuestion{}).
		Where("paper_id = ?", paperID).
		Order("order_index ASC, id ASC").
		Pluck("question_id", &ids).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list paper questions: %w", err)
	}
	return ids, nil
}

func (r *PaperPostgreSQL) HasQuestion(ctx context.Context, tx *gorm.DB, paperID, questionID uint) (bool, error) {
	count, err := countWhere(ctx, r.getDB(tx), &models.PaperQuestion{}, "paper_id = ? AND question_id = ?", paperID, questionID)
	if err != nil {
		return false, fmt.Errorf("failed to check paper question: %w", err)
	}
	return count > 0, nil
}

// SumQuestionMarks totals marks of the live questions attached to a paper
// ListPaperIDsByQuestion returns the live papers that include the question
func (r *PaperPostgreSQL) ListPaperIDsByQuestion(ctx context.Context, tx *gorm.DB, questionID uint) ([]uint, error) {
	var ids []uint
	err := r.getDB(tx).WithContext(ctx).
		Table("paper_questions").
		Joins("JOIN papers ON papers.id = paper_questions.paper_id AND papers.deleted_at IS NULL").
		Where("paper_questions.question_id = ?", questionID).
		Order("paper_questions.paper_id ASC").
		Pluck("paper_questions.paper_id", &ids).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list papers of question: %w", err)
	}
	return ids, nil
}

func (r *PaperPostgreSQL) SumQuestionMarks(ctx context.Context, tx *gorm.DB, paperID uint) (float64, error) {
	var total float64
	err := r.getDB(tx).WithContext(ctx).
		Table("paper_questions").
		Joins("JOIN questions ON questions.id = paper_questions.question_id AND questions.deleted_at IS NULL").
		Where("paper_questions.paper_id = ?", paperID).
		Select("COALESCE(SUM(questions.marks), 0)").
		Scan(&total).Error
	if err != nil {
		return 0, fmt.Errorf("failed to sum paper marks: %w", err)
	}
	return total, nil
}

func (r *PaperPostgreSQL) NextOrderIndex(ctx context.Context, tx *gorm.DB, paperID uint) (int, error) {
	var next int
	err := r.getDB(tx).WithContext(ctx).
		Model(&models.PaperQuestion{}).
		Where("paper_id = ?", paperID).
		Select("COALESCE(MAX(order_index) + 1, 0)").
		Scan(&next).Error
	if err != nil {
		return 0, fmt.Errorf("failed to get next order index: %w", err)
	}
	return next, nil
}

func (r *PaperPostgreSQL) ReplaceUserCategories(ctx context.Context, tx *gorm.DB, paper *models.Paper, categoryIDs []uint) error {
	categories := make([]models.UserCategory, len(categoryIDs))
	for i, id := range categoryIDs {
		categories[i] = models.UserCategory{ID: id}
	}

	if err := r.getDB(tx).WithContext(ctx).Model(paper).Association("UserCategories").Replace(categories); err != nil {
		return fmt.Errorf("failed to replace paper user categories: %w", err)
	}
	paper.UserCategories = categories
	return nil
}

func (r *PaperPostgreSQL) UpdateStatus(ctx context.Context, tx *gorm.DB, id uint, from, to models.PaperStatus, updates map[string]interface{}) (bool, error) {
	values := map[string]interface{}{"status": to}
	for key, value := range updates {
		values[key] = value
	}

	result := r.getDB(tx).WithContext(ctx).
		Model(&models.Paper{}).
		Where("id = ? AND status = ?", id, from).
		Updates(values)
	if result.Error != nil {
		return false, fmt.Errorf("failed to update paper status: %w", result.Error)
	}
	return result.RowsAffected > 0, nil
}

func (r *PaperPostgreSQL) UpdateTotalMarks(ctx context.Context, tx *gorm.DB, id uint, totalMarks float64) error {
	err := r.getDB(tx).WithContext(ctx).
		Model(&models.Paper{}).
		Where("id = ?", id).
		Update("total_marks", totalMarks).Error
	if err != nil {
		return fmt.Errorf("failed to update paper total marks: %w", err)
	}
	return nil
}

func (r *PaperPostgreSQL) CountDependents(ctx context.Context, tx *gorm.DB, id uint) (map[string]int64, error) {
	return r.countDependents(ctx, tx, id, []dependentRelation{
		{name: "test_attempts", model: &models.TestAttempt{}, column: "paper_id"},
	})
}
