package models

import (
	"time"

	"gorm.io/gorm"
)

type Department struct {
	ID          uint    `json:"id" gorm:"primaryKey"`
	Name        string  `json:"name" gorm:"not null;size:150;index"`
	Code        string  `json:"code" gorm:"not null;size:30;uniqueIndex:idx_departments_code,where:deleted_at IS NULL"`
	Description *string `json:"description" gorm:"type:text"`

	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
	DeletedAt gorm.DeletedAt `json:"-" gorm:"index"`

	// Relations
	FacultyMembers []FacultyMember `json:"faculty_members,omitempty" gorm:"foreignKey:DepartmentID"`
	Subjects       []Subject       `json:"subjects,omitempty" gorm:"foreignKey:DepartmentID"`
}

func (Department) TableName() string {
	return "departments"
}

type FacultyMember struct {
	ID           uint       `json:"id" gorm:"primaryKey"`
	DepartmentID uint       `json:"department_id" gorm:"not null;index"`
	Name         string     `json:"name" gorm:"not null;size:150;index"`
	Email        string     `json:"email" gorm:"not null;size:255;uniqueIndex:idx_faculty_members_email,where:deleted_at IS NULL"`
	Designation  *string    `json:"designation" gorm:"size:100"`
	Phone        *string    `json:"phone" gorm:"size:30"`
	JoiningDate  *time.Time `json:"joining_date"`

	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
	DeletedAt gorm.DeletedAt `json:"-" gorm:"index"`

	Department *Department `json:"department,omitempty" gorm:"foreignKey:DepartmentID"`
}

func (FacultyMember) TableName() string {
	return "faculty_members"
}

type Subject struct {
	ID           uint    `json:"id" gorm:"primaryKey"`
	DepartmentID uint    `json:"department_id" gorm:"not null;index"`
	Name         string  `json:"name" gorm:"not null;size:150;index"`
	Code         string  `json:"code" gorm:"not null;size:30;uniqueIndex:idx_subjects_code,where:deleted_at IS NULL"`
	Description  *string `json:"description" gorm:"type:text"`

	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
	DeletedAt gorm.DeletedAt `json:"-" gorm:"index"`

	Department *Department `json:"department,omitempty" gorm:"foreignKey:DepartmentID"`
}

func (Subject) TableName() string {
	return "subjects"
}

type PaperCategory struct {
	ID          uint    `json:"id" gorm:"primaryKey"`
	Name        string  `json:"name" gorm:"not null;size:150"`
	Description *string `json:"description" gorm:"type:text"`

	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
	DeletedAt gorm.DeletedAt `json:"-" gorm:"index"`
}

func (PaperCategory) TableName() string {
	return "paper_categories"
}
