package models

import (
	"time"

	"gorm.io/gorm"
)

type DifficultyLevel string

const (
	DifficultyEasy     DifficultyLevel = "easy"
	DifficultyMedium   DifficultyLevel = "medium"
	DifficultyHard     DifficultyLevel = "hard"
	DifficultyVeryHard DifficultyLevel = "very_hard"
	DifficultyExpert   DifficultyLevel = "expert"
)

func (d DifficultyLevel) IsValid() bool {
	switch d {
	case DifficultyEasy, DifficultyMedium, DifficultyHard, DifficultyVeryHard, DifficultyExpert:
		return true
	}
	return false
}

type QuestionStatus string

const (
	QuestionActive   QuestionStatus = "active"
	QuestionInactive QuestionStatus = "inactive"
)

// Well-known question type codes seeded at migration time
const (
	TypeSingleChoice   = "single_choice"
	TypeMultipleChoice = "multiple_choice"
	TypeTrueFalse      = "true_false"
	TypeShortAnswer    = "short_answer"
	TypeEssay          = "essay"
)

type QuestionType struct {
	ID              uint    `json:"id" gorm:"primaryKey"`
	Name            string  `json:"name" gorm:"not null;size:100"`
	Code            string  `json:"code" gorm:"not null;size:50;uniqueIndex:idx_question_types_code,where:deleted_at IS NULL"`
	Description     *string `json:"description" gorm:"type:text"`
	RequiresOptions bool    `json:"requires_options" gorm:"not null;default:false"`
	AutoGradable    bool    `json:"auto_gradable" gorm:"not null;default:false"`

	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
	DeletedAt gorm.DeletedAt `json:"-" gorm:"index"`
}

func (QuestionType) TableName() string {
	return "question_types"
}

type Question struct {
	ID              uint            `json:"id" gorm:"primaryKey"`
	SubjectID       uint            `json:"subject_id" gorm:"not null;index"`
	QuestionTypeID  uint            `json:"question_type_id" gorm:"not null;index"`
	Text            string          `json:"text" gorm:"type:text;not null"`
	DifficultyLevel DifficultyLevel `json:"difficulty_level" gorm:"not null;default:medium;size:20;index"`
	Marks           float64         `json:"marks" gorm:"not null;default:1"`
	NegativeMarks   float64         `json:"negative_marks" gorm:"not null;default:0"`
	MaxTimeAllowed  *int            `json:"max_time_allowed"` // seconds
	Explanation     *string         `json:"explanation" gorm:"type:text"`
	Status          QuestionStatus  `json:"status" gorm:"not null;default:active;size:20;index"`

	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
	DeletedAt gorm.DeletedAt `json:"-" gorm:"index"`

	// Relations
	Subject      *Subject         `json:"subject,omitempty" gorm:"foreignKey:SubjectID"`
	QuestionType *QuestionType    `json:"question_type,omitempty" gorm:"foreignKey:QuestionTypeID"`
	Options      []QuestionOption `json:"options,omitempty" gorm:"foreignKey:QuestionID"`
}

func (Question) TableName() string {
	return "questions"
}

// CorrectOptionIDs returns the ids of the options flagged correct
func (q *Question) CorrectOptionIDs() []uint {
	var ids []uint
	for _, option := range q.Options {
		if option.IsCorrect {
			ids = append(ids, option.ID)
		}
	}
	return ids
}

// HasOption reports whether optionID belongs to the question
func (q *Question) HasOption(optionID uint) bool {
	for _, option := range q.Options {
		if option.ID == optionID {
			return true
		}
	}
	return false
}

type QuestionOption struct {
	ID         uint   `json:"id" gorm:"primaryKey"`
	QuestionID uint   `json:"question_id" gorm:"not null;index;uniqueIndex:idx_question_option_text,where:deleted_at IS NULL"`
	Text       string `json:"text" gorm:"not null;size:1000;uniqueIndex:idx_question_option_text,where:deleted_at IS NULL"`
	IsCorrect  bool   `json:"is_correct" gorm:"not null;default:false"`
	Order      int    `json:"order" gorm:"not null;default:0"`

	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
	DeletedAt gorm.DeletedAt `json:"-" gorm:"index"`
}

func (QuestionOption) TableName() string {
	return "question_options"
}
