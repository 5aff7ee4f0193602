package models

import (
	"time"

	"gorm.io/gorm"
)

type UserRole string

const (
	RoleAdmin     UserRole = "admin"
	RoleExaminer  UserRole = "examiner"
	RoleCandidate UserRole = "candidate"
)

func (r UserRole) IsValid() bool {
	switch r {
	case RoleAdmin, RoleExaminer, RoleCandidate:
		return true
	}
	return false
}

type UserStatus string

const (
	UserActive   UserStatus = "active"
	UserInactive UserStatus = "inactive"
)

type UserCategory struct {
	ID          uint    `json:"id" gorm:"primaryKey"`
	Name        string  `json:"name" gorm:"not null;size:100"`
	Description *string `json:"description" gorm:"type:text"`

	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
	DeletedAt gorm.DeletedAt `json:"-" gorm:"index"`
}

func (UserCategory) TableName() string {
	return "user_categories"
}

type User struct {
	ID             uint       `json:"id" gorm:"primaryKey"`
	Name           string     `json:"name" gorm:"not null;size:150;index"`
	Email          string     `json:"email" gorm:"not null;size:255;uniqueIndex:idx_users_email,where:deleted_at IS NULL"`
	ExternalID     *string    `json:"external_id,omitempty" gorm:"size:255;uniqueIndex:idx_users_external_id,where:deleted_at IS NULL"`
	Role           UserRole   `json:"role" gorm:"not null;default:candidate;size:20;index"`
	Status         UserStatus `json:"status" gorm:"not null;default:active;size:20"`
	UserCategoryID *uint      `json:"user_category_id" gorm:"index"`
	Phone          *string    `json:"phone" gorm:"size:30"`
	LastLoginAt    *time.Time `json:"last_login_at"`

	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
	DeletedAt gorm.DeletedAt `json:"-" gorm:"index"`

	UserCategory *UserCategory `json:"user_category,omitempty" gorm:"foreignKey:UserCategoryID"`
}

func (User) TableName() string {
	return "users"
}
