package models

import (
	"encoding/json"
	"time"

	"gorm.io/datatypes"
	"gorm.io/gorm"
)

const (
	EndReasonSubmitted = "submitted"
	EndReasonExpired   = "expired"
	EndReasonStopped   = "stopped"
)

type TestAttempt struct {
	ID            uint          `json:"id" gorm:"primaryKey"`
	UserID        uint          `json:"user_id" gorm:"not null;index:idx_attempt_user_paper"`
	PaperID       uint          `json:"paper_id" gorm:"not null;index:idx_attempt_user_paper;index"`
	AttemptNumber int           `json:"attempt_number" gorm:"not null;default:1"`
	Status        AttemptStatus `json:"status" gorm:"not null;default:not_started;size:20;index"`

	// Timing
	StartTime *time.Time `json:"start_time"`
	EndTime   *time.Time `json:"end_time"`
	Deadline  *time.Time `json:"deadline" gorm:"index"`

	// Scoring
	Score      float64 `json:"score" gorm:"not null;default:0"`
	MaxScore   float64 `json:"max_score" gorm:"not null;default:0"`
	Percentage float64 `json:"percentage" gorm:"not null;default:0"`
	Passed     bool    `json:"passed" gorm:"not null;default:false"`

	// Termination
	IsStopped  bool    `json:"is_stopped" gorm:"not null;default:false"`
	StopReason *string `json:"stop_reason" gorm:"type:text"`
	EndReason  *string `json:"end_reason" gorm:"size:20"`

	// Grading
	GradedBy *uint      `json:"graded_by"`
	GradedAt *time.Time `json:"graded_at"`

	// Client metadata
	IPAddress       *string        `json:"ip_address" gorm:"size:45"`
	UserAgent       *string        `json:"user_agent" gorm:"type:text"`
	BrowserMetadata datatypes.JSON `json:"browser_metadata,omitempty" gorm:"type:jsonb"`

	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
	DeletedAt gorm.DeletedAt `json:"-" gorm:"index"`

	// Relations
	User    *User    `json:"user,omitempty" gorm:"foreignKey:UserID"`
	Paper   *Paper   `json:"paper,omitempty" gorm:"foreignKey:PaperID"`
	Answers []Answer `json:"answers,omitempty" gorm:"foreignKey:TestAttemptID;constraint:OnDelete:CASCADE"`
}

func (TestAttempt) TableName() string {
	return "test_attempts"
}

// IsOverdue reports whether the attempt ran past its deadline at now
func (a *TestAttempt) IsOverdue(now time.Time) bool {
	return a.Status == AttemptInProgress && a.Deadline != nil && now.After(*a.Deadline)
}

// OverdueBatch is the outcome of one expiry pass; LastID is the cursor for the next pass
type OverdueBatch struct {
	Scanned int
	Expired int
	LastID  uint
}

// TimeRemaining returns the time left before the deadline, never negative
func (a *TestAttempt) TimeRemaining(now time.Time) time.Duration {
	if a.Status != AttemptInProgress || a.Deadline == nil {
		return 0
	}
	remaining := a.Deadline.Sub(now)
	if remaining < 0 {
		return 0
	}
	return remaining
}

type Answer struct {
	ID                 uint           `json:"id" gorm:"primaryKey"`
	TestAttemptID      uint           `json:"test_attempt_id" gorm:"not null;uniqueIndex:idx_answer_attempt_question"`
	QuestionID         uint           `json:"question_id" gorm:"not null;uniqueIndex:idx_answer_attempt_question;index"`
	SelectedOptionIDs  datatypes.JSON `json:"selected_option_ids" gorm:"type:jsonb"` // []uint
	TextAnswer         *string        `json:"text_answer" gorm:"type:text"`
	IsCorrect          *bool          `json:"is_correct"` // null until graded
	MarksObtained      float64        `json:"marks_obtained" gorm:"not null;default:0"`
	TimeSpentSeconds   int            `json:"time_spent_seconds" gorm:"not null;default:0"`
	NeedsManualGrading bool           `json:"needs_manual_grading" gorm:"not null;default:false;index"`
	GradedBy           *uint          `json:"graded_by"`
	GradedAt           *time.Time     `json:"graded_at"`
	Feedback           *string        `json:"feedback" gorm:"type:text"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`

	Question *Question `json:"question,omitempty" gorm:"foreignKey:QuestionID"`
}

func (Answer) TableName() string {
	return "answers"
}

// OptionIDs decodes SelectedOptionIDs, returning nil for empty or malformed data
func (a *Answer) OptionIDs() []uint {
	if len(a.SelectedOptionIDs) == 0 {
		return nil
	}
	var ids []uint
	if err := json.Unmarshal(a.SelectedOptionIDs, &ids); err != nil {
		return nil
	}
	return ids
}

// SetOptionIDs encodes ids into SelectedOptionIDs
func (a *Answer) SetOptionIDs(ids []uint) {
	if len(ids) == 0 {
		a.SelectedOptionIDs = nil
		return
	}
	data, _ := json.Marshal(ids)
	a.SelectedOptionIDs = datatypes.JSON(data)
}
