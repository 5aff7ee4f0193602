package postgres

import (
	"context"
	"fmt"

	"gorm.io/gorm"

	"github.com/SAP-F-2025/examination-service/internal/models"
)

type DashboardPostgreSQL struct {
	db *gorm.DB
}

func NewDashboardPostgreSQL(db *gorm.DB) *DashboardPostgreSQL {
	return &DashboardPostgreSQL{db: db}
}

func (d *DashboardPostgreSQL) getDB(tx *gorm.DB) *gorm.DB {
	if tx != nil {
		return tx
	}
	return d.db
}

func (d *DashboardPostgreSQL) GetStats(ctx context.Context, tx *gorm.DB) (*models.DashboardStats, error) {
	db := d.getDB(tx).WithContext(ctx)
	stats := &models.DashboardStats{}

	counts := []struct {
		name  string
		model interface{}
		where string
		args  []interface{}
		dest  *int64
	}{
		{"departments", &models.Department{}, "", nil, &stats.Departments},
		{"subjects", &models.Subject{}, "", nil, &stats.Subjects},
		{"papers", &models.Paper{}, "", nil, &stats.Papers},
		{"published papers", &models.Paper{}, "status = ?", []interface{}{models.PaperPublished}, &stats.PublishedPapers},
		{"questions", &models.Question{}, "", nil, &stats.Questions},
		{"users", &models.User{}, "", nil, &stats.Users},
		{"active attempts", &models.TestAttempt{}, "status = ?", []interface{}{models.AttemptInProgress}, &stats.ActiveAttempts},
		{"pending grading", &models.TestAttempt{}, "status = ?", []interface{}{models.AttemptSubmitted}, &stats.PendingGrading},
		{"finished attempts", &models.TestAttempt{}, "status IN ?", []interface{}{[]models.AttemptStatus{models.AttemptCompleted, models.AttemptGraded}}, &stats.FinishedAttempts},
	}

	for _, c := range counts {
		query := db.Model(c.model)
		if c.where != "" {
			query = query.Where(c.where, c.args...)
		}
		if err := query.Count(c.dest).Error; err != nil {
			return nil, fmt.Errorf("failed to count %s: %w", c.name, err)
		}
	}

	return stats, nil
}
