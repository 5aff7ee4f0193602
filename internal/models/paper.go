package models

import (
	"time"

	"gorm.io/gorm"
)

type PaperStatus string

const (
	PaperDraft     PaperStatus = "draft"
	PaperPublished PaperStatus = "published"
	PaperArchived  PaperStatus = "archived"
)

var paperTransitions = map[PaperStatus][]PaperStatus{
	PaperDraft:     {PaperPublished, PaperArchived},
	PaperPublished: {PaperArchived},
}

// CanTransitionTo reports whether a paper may move from s to next
func (s PaperStatus) CanTransitionTo(next PaperStatus) bool {
	for _, allowed := range paperTransitions[s] {
		if allowed == next {
			return true
		}
	}
	return false
}

type Paper struct {
	ID                uint        `json:"id" gorm:"primaryKey"`
	SubjectID         uint        `json:"subject_id" gorm:"not null;index"`
	PaperCategoryID   uint        `json:"paper_category_id" gorm:"not null;index"`
	Name              string      `json:"name" gorm:"not null;size:200;index"`
	Description       *string     `json:"description" gorm:"type:text"`
	Duration          int         `json:"duration" gorm:"not null"` // minutes
	TotalMarks        float64     `json:"total_marks" gorm:"not null;default:0"`
	PassingPercentage float64     `json:"passing_percentage" gorm:"not null;default:40"`
	AccessCode        *string     `json:"access_code,omitempty" gorm:"size:64"`
	Status            PaperStatus `json:"status" gorm:"not null;default:draft;size:20;index"`
	AllowRetake       bool        `json:"allow_retake" gorm:"not null;default:false"`
	MaxAttempts       int         `json:"max_attempts" gorm:"not null;default:0"` // 0 means unlimited when retakes are allowed
	StartTime         *time.Time  `json:"start_time"`
	EndTime           *time.Time  `json:"end_time"`
	PublishedAt       *time.Time  `json:"published_at"`

	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
	DeletedAt gorm.DeletedAt `json:"-" gorm:"index"`

	// Relations
	Subject        *Subject        `json:"subject,omitempty" gorm:"foreignKey:SubjectID"`
	PaperCategory  *PaperCategory  `json:"paper_category,omitempty" gorm:"foreignKey:PaperCategoryID"`
	Questions      []PaperQuestion `json:"questions,omitempty" gorm:"foreignKey:PaperID"`
	UserCategories []UserCategory  `json:"user_categories,omitempty" gorm:"many2many:paper_user_categories;"`
}

func (Paper) TableName() string {
	return "papers"
}

// IsOpenAt reports whether the availability window contains t
func (p *Paper) IsOpenAt(t time.Time) bool {
	if p.StartTime != nil && t.Before(*p.StartTime) {
		return false
	}
	if p.EndTime != nil && t.After(*p.EndTime) {
		return false
	}
	return true
}

// AllowsCategory reports whether a user in categoryID may take the paper.
// A paper without categories is open to everyone.
func (p *Paper) AllowsCategory(categoryID *uint) bool {
	if len(p.UserCategories) == 0 {
		return true
	}
	if categoryID == nil {
		return false
	}
	for _, category := range p.UserCategories {
		if category.ID == *categoryID {
			return true
		}
	}
	return false
}

// PaperQuestion joins papers and questions with an order index
type PaperQuestion struct {
	ID         uint `json:"id" gorm:"primaryKey"`
	PaperID    uint `json:"paper_id" gorm:"not null;uniqueIndex:idx_paper_question"`
	QuestionID uint `json:"question_id" gorm:"not null;uniqueIndex:idx_paper_question;index"`
	OrderIndex int  `json:"order_index" gorm:"not null;default:0"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`

	Question *Question `json:"question,omitempty" gorm:"foreignKey:QuestionID"`
}

func (PaperQuestion) TableName() string {
	return "paper_questions"
}
