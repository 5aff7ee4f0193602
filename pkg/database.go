package pkg

import (
	"fmt"
	"log/slog"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	"gorm.io/gorm/logger"

	"github.com/SAP-F-2025/examination-service/internal/config"
	"github.com/SAP-F-2025/examination-service/internal/models"
)

// InitDatabase opens the postgres pool and, when enabled, migrates the schema
func InitDatabase(cfg *config.Config) (*gorm.DB, error) {
	gormLogger := logger.Default.LogMode(logger.Warn)
	if !cfg.IsProduction() && cfg.LogLevel == "debug" {
		gormLogger = logger.Default.LogMode(logger.Info)
	}

	db, err := gorm.Open(postgres.New(postgres.Config{
		DSN: cfg.Database.DSN,
	}), &gorm.Config{
		Logger:         gormLogger,
		TranslateError: true,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect database: %w", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to get database instance: %w", err)
	}
	sqlDB.SetMaxOpenConns(cfg.Database.MaxOpenConns)
	sqlDB.SetMaxIdleConns(cfg.Database.MaxIdleConns)
	sqlDB.SetConnMaxLifetime(cfg.Database.ConnMaxLifetime)

	if cfg.Database.AutoMigrate {
		if err := Migrate(db); err != nil {
			return nil, err
		}
	}

	return db, nil
}

// Migrate creates tables, extra indexes and the built-in question types
func Migrate(db *gorm.DB) error {
	if err := db.AutoMigrate(
		&models.Department{},
		&models.FacultyMember{},
		&models.Subject{},
		&models.PaperCategory{},
		&models.UserCategory{},
		&models.User{},
		&models.QuestionType{},
		&models.Question{},
		&models.QuestionOption{},
		&models.Paper{},
		&models.PaperQuestion{},
		&models.TestAttempt{},
		&models.Answer{},
	); err != nil {
		return fmt.Errorf("failed to migrate database: %w", err)
	}

	// at most one running attempt per user and paper
	if err := db.Exec(`CREATE UNIQUE INDEX IF NOT EXISTS idx_attempt_single_in_progress
		ON test_attempts (user_id, paper_id)
		WHERE status = 'in_progress' AND deleted_at IS NULL`).Error; err != nil {
		return fmt.Errorf("failed to create attempt index: %w", err)
	}

	if err := seedQuestionTypes(db); err != nil {
		return err
	}

	slog.Info("Database migrated")
	return nil
}

func seedQuestionTypes(db *gorm.DB) error {
	types := []models.QuestionType{
		{Name: "Single choice", Code: models.TypeSingleChoice, RequiresOptions: true, AutoGradable: true},
		{Name: "Multiple choice", Code: models.TypeMultipleChoice, RequiresOptions: true, AutoGradable: true},
		{Name: "True / False", Code: models.TypeTrueFalse, RequiresOptions: true, AutoGradable: true},
		{Name: "Short answer", Code: models.TypeShortAnswer},
		{Name: "Essay", Code: models.TypeEssay},
	}

	// code is a partial unique index, so no conflict target is named
	err := db.Clauses(clause.OnConflict{DoNothing: true}).Create(&types).Error
	if err != nil {
		return fmt.Errorf("failed to seed question types: %w", err)
	}
	return nil
}
