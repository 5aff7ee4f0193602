package postgres

import (
	"context"
	"fmt"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/SAP-F-2025/examination-service/internal/models"
	"github.com/SAP-F-2025/examination-service/internal/repositories"
)

var attemptSortColumns = sortColumns("start_time", "end_time", "score", "status", "attempt_number")

// ===== ATTEMPTS =====

type AttemptPostgreSQL struct {
	db *gorm.DB
}

func NewAttemptPostgreSQL(db *gorm.DB) *AttemptPostgreSQL {
	return &AttemptPostgreSQL{db: db}
}

// getDB returns the transaction if provided, otherwise returns the main db connection
func (a *AttemptPostgreSQL) getDB(tx *gorm.DB) *gorm.DB {
	if tx != nil {
		return tx
	}
	return a.db
}

func (a *AttemptPostgreSQL) Create(ctx context.Context, tx *gorm.DB, attempt *models.TestAttempt) error {
	if err := a.getDB(tx).WithContext(ctx).Omit(clause.Associations).Create(attempt).Error; err != nil {
		return fmt.Errorf("failed to create attempt: %w", err)
	}
	return nil
}

func (a *AttemptPostgreSQL) GetByID(ctx context.Context, tx *gorm.DB, id uint) (*models.TestAttempt, error) {
	var attempt models.TestAttempt
	if err := a.getDB(tx).WithContext(ctx).First(&attempt, id).Error; err != nil {
		return nil, fmt.Errorf("failed to get attempt: %w", err)
	}
	return &attempt, nil
}

func (a *AttemptPostgreSQL) GetByIDForUpdate(ctx context.Context, tx *gorm.DB, id uint) (*models.TestAttempt, error) {
	var attempt models.TestAttempt
	err := a.getDB(tx).WithContext(ctx).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		First(&attempt, id).Error
	if err != nil {
		return nil, fmt.Errorf("failed to lock attempt: %w", err)
	}
	return &attempt, nil
}

func (a *AttemptPostgreSQL) GetByIDWithAnswers(ctx context.Context, tx *gorm.DB, id uint) (*models.TestAttempt, error) {
	var attempt models.TestAttempt
	err := a.getDB(tx).WithContext(ctx).
		Preload("User").
		Preload("Paper").
		Preload("Answers", func(db *gorm.DB) *gorm.DB {
			return db.Order("id ASC")
		}).
		First(&attempt, id).Error
	if err != nil {
		return nil, fmt.Errorf("failed to get attempt with answers: %w", err)
	}
	return &attempt, nil
}

// Delete soft deletes the attempt; answers stay until the row is purged
func (a *AttemptPostgreSQL) Delete(ctx context.Context, tx *gorm.DB, id uint) error {
	result := a.getDB(tx).WithContext(ctx).Delete(&models.TestAttempt{}, id)
	if result.Error != nil {
		return fmt.Errorf("failed to delete attempt: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return fmt.Errorf("failed to delete attempt %d: %w", id, repositories.ErrNotFound)
	}
	return nil
}

func (a *AttemptPostgreSQL) List(ctx context.Context, tx *gorm.DB, filters repositories.AttemptFilters) ([]*models.TestAttempt, int64, error) {
	query := a.applyFilters(a.getDB(tx).WithContext(ctx).Model(&models.TestAttempt{}), filters)

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, fmt.Errorf("failed to count attempts: %w", err)
	}

	query = ApplyPaginationAndSort(query.Preload("User").Preload("Paper"), attemptSortColumns, filters.SortBy, filters.SortOrder, filters.Limit, filters.Offset)

	var attempts []*models.TestAttempt
	if err := query.Find(&attempts).Error; err != nil {
		return nil, 0, fmt.Errorf("failed to list attempts: %w", err)
	}

	return attempts, total, nil
}

func (a *AttemptPostgreSQL) applyFilters(query *gorm.DB, filters repositories.AttemptFilters) *gorm.DB {
	if filters.UserID != nil {
		query = query.Where("user_id = ?", *filters.UserID)
	}
	if filters.PaperID != nil {
		query = query.Where("paper_id = ?", *filters.PaperID)
	}
	if filters.Status != nil {
		query = query.Where("status = ?", *filters.Status)
	}
	if filters.DateFrom != nil {
		query = query.Where("created_at >= ?", *filters.DateFrom)
	}
	if filters.DateTo != nil {
		query = query.Where("created_at <= ?", *filters.DateTo)
	}
	return query
}

// Search matches the candidate's name or email and the paper name
func (a *AttemptPostgreSQL) Search(ctx context.Context, tx *gorm.DB, term string, limit int) ([]*models.TestAttempt, error) {
	if limit <= 0 {
		limit = defaultSearchLimit
	}

	query := a.getDB(tx).WithContext(ctx).
		Model(&models.TestAttempt{}).
		Joins("JOIN users ON users.id = test_attempts.user_id").
		Joins("JOIN papers ON papers.id = test_attempts.paper_id")
	query = ApplySearch(query, []string{"users.name", "users.email", "papers.name"}, term)

	var attempts []*models.TestAttempt
	err := query.Preload("User").Preload("Paper").
		Order("test_attempts.created_at DESC").
		Limit(limit).
		Find(&attempts).Error
	if err != nil {
		return nil, fmt.Errorf("failed to search attempts: %w", err)
	}
	return attempts, nil
}

// UpdateFields writes non-status columns; lifecycle changes go through TransitionStatus
func (a *AttemptPostgreSQL) UpdateFields(ctx context.Context, tx *gorm.DB, id uint, updates map[string]interface{}) error {
	if _, ok := updates["status"]; ok {
		return fmt.Errorf("status must change through TransitionStatus")
	}
	result := a.getDB(tx).WithContext(ctx).Model(&models.TestAttempt{}).Where("id = ?", id).Updates(updates)
	if result.Error != nil {
		return fmt.Errorf("failed to update attempt: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return fmt.Errorf("failed to update attempt %d: %w", id, repositories.ErrNotFound)
	}
	return nil
}

func (a *AttemptPostgreSQL) ListByUserAndPaper(ctx context.Context, tx *gorm.DB, userID, paperID uint) ([]*models.TestAttempt, error) {
	var attempts []*models.TestAttempt
	err := a.getDB(tx).WithContext(ctx).
		Where("user_id = ? AND paper_id = ?", userID, paperID).
		Order("attempt_number ASC").
		Find(&attempts).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list attempts for user and paper: %w", err)
	}
	return attempts, nil
}

// ListOverdue returns in-progress attempts past their deadline with id > afterID, in id order
func (a *AttemptPostgreSQL) ListOverdue(ctx context.Context, tx *gorm.DB, now time.Time, afterID uint, limit int) ([]*models.TestAttempt, error) {
	var attempts []*models.TestAttempt
	err := a.getDB(tx).WithContext(ctx).
		Where("status = ? AND deadline IS NOT NULL AND deadline < ? AND id > ?", models.AttemptInProgress, now, afterID).
		Order("id ASC").
		Limit(limit).
		Find(&attempts).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list overdue attempts: %w", err)
	}
	return attempts, nil
}

func (a *AttemptPostgreSQL) TransitionStatus(ctx context.Context, tx *gorm.DB, id uint, from, to models.AttemptStatus, updates map[string]interface{}) (bool, error) {
	if err := from.Transition(to); err != nil {
		return false, err
	}

	values := map[string]interface{}{"status": to}
	for key, value := range updates {
		values[key] = value
	}

	result := a.getDB(tx).WithContext(ctx).
		Model(&models.TestAttempt{}).
		Where("id = ? AND status = ?", id, from).
		Updates(values)
	if result.Error != nil {
		return false, fmt.Errorf("failed to transition attempt: %w", result.Error)
	}
	return result.RowsAffected > 0, nil
}

// ===== ANSWERS =====

type AnswerPostgreSQL struct {
	db *gorm.DB
}

func NewAnswerPostgreSQL(db *gorm.DB) *AnswerPostgreSQL {
	return &AnswerPostgreSQL{db: db}
}

func (a *AnswerPostgreSQL) getDB(tx *gorm.DB) *gorm.DB {
	if tx != nil {
		return tx
	}
	return a.db
}

// Upsert relies on the unique (test_attempt_id, question_id) index so concurrent writers converge on one row
func (a *AnswerPostgreSQL) Upsert(ctx context.Context, tx *gorm.DB, answer *models.Answer) error {
	err := a.getDB(tx).WithContext(ctx).
		Omit(clause.Associations).
		Clauses(clause.OnConflict{
			Columns: []clause.Column{{Name: "test_attempt_id"}, {Name: "question_id"}},
			DoUpdates: clause.AssignmentColumns([]string{
				"selected_option_ids",
				"text_answer",
				"is_correct",
				"marks_obtained",
				"time_spent_seconds",
				"needs_manual_grading",
				"updated_at",
			}),
		}).
		Create(answer).Error
	if err != nil {
		return fmt.Errorf("failed to upsert answer: %w", err)
	}
	return nil
}

func (a *AnswerPostgreSQL) GetByID(ctx context.Context, tx *gorm.DB, id uint) (*models.Answer, error) {
	var answer models.Answer
	if err := a.getDB(tx).WithContext(ctx).First(&answer, id).Error; err != nil {
		return nil, fmt.Errorf("failed to get answer: %w", err)
	}
	return &answer, nil
}

// ListByAttempt preloads each question with its type and options for scoring
func (a *AnswerPostgreSQL) ListByAttempt(ctx context.Context, tx *gorm.DB, attemptID uint) ([]*models.Answer, error) {
	var answers []*models.Answer
	err := a.getDB(tx).WithContext(ctx).
		Preload("Question", func(db *gorm.DB) *gorm.DB {
			return db.Unscoped()
		}).
		Preload("Question.QuestionType", func(db *gorm.DB) *gorm.DB {
			return db.Unscoped()
		}).
		Preload("Question.Options", func(db *gorm.DB) *gorm.DB {
			return db.Unscoped()
		}).
		Where("test_attempt_id = ?", attemptID).
		Order("id ASC").
		Find(&answers).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list answers: %w", err)
	}
	return answers, nil
}

func (a *AnswerPostgreSQL) UpdateScores(ctx context.Context, tx *gorm.DB, answers []*models.Answer) error {
	db := a.getDB(tx).WithContext(ctx)
	for _, answer := range answers {
		err := db.Model(&models.Answer{}).
			Where("id = ?", answer.ID).
			Updates(map[string]interface{}{
				"is_correct":           answer.IsCorrect,
				"marks_obtained":       answer.MarksObtained,
				"needs_manual_grading": answer.NeedsManualGrading,
				"graded_by":            answer.GradedBy,
				"graded_at":            answer.GradedAt,
				"feedback":             answer.Feedback,
			}).Error
		if err != nil {
			return fmt.Errorf("failed to update answer %d score: %w", answer.ID, err)
		}
	}
	return nil
}
