package validator

import (
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/SAP-F-2025/examination-service/internal/models"
)

const (
	MinPaperDuration = 1
	MaxPaperDuration = 600
)

func registerCustomRules(v *validator.Validate) {
	_ = v.RegisterValidation("paper_duration", func(fl validator.FieldLevel) bool {
		d := fl.Field().Int()
		return d >= MinPaperDuration && d <= MaxPaperDuration
	})

	_ = v.RegisterValidation("question_type_code", func(fl validator.FieldLevel) bool {
		code := fl.Field().String()
		if code == "" {
			return false
		}
		for _, r := range code {
			if !(r >= 'a' && r <= 'z') && !(r >= '0' && r <= '9') && r != '_' {
				return false
			}
		}
		return true
	})

	_ = v.RegisterValidation("difficulty_level", func(fl validator.FieldLevel) bool {
		return models.DifficultyLevel(fl.Field().String()).IsValid()
	})

	_ = v.RegisterValidation("question_status", func(fl validator.FieldLevel) bool {
		switch models.QuestionStatus(fl.Field().String()) {
		case models.QuestionActive, models.QuestionInactive:
			return true
		}
		return false
	})

	_ = v.RegisterValidation("paper_status", func(fl validator.FieldLevel) bool {
		switch models.PaperStatus(fl.Field().String()) {
		case models.PaperDraft, models.PaperPublished, models.PaperArchived:
			return true
		}
		return false
	})

	_ = v.RegisterValidation("user_role", func(fl validator.FieldLevel) bool {
		return models.UserRole(fl.Field().String()).IsValid()
	})

	_ = v.RegisterValidation("user_status", func(fl validator.FieldLevel) bool {
		switch models.UserStatus(fl.Field().String()) {
		case models.UserActive, models.UserInactive:
			return true
		}
		return false
	})
}

func paperCreateWindow(sl validator.StructLevel) {
	req := sl.Current().Interface().(models.PaperCreateRequest)
	checkWindow(sl, req.StartTime, req.EndTime)
	if !req.AllowRetake && req.MaxAttempts > 1 {
		sl.ReportError(req.MaxAttempts, "max_attempts", "MaxAttempts", "retake_disabled", "")
	}
}

func paperUpdateWindow(sl validator.StructLevel) {
	req := sl.Current().Interface().(models.PaperUpdateRequest)
	checkWindow(sl, req.StartTime, req.EndTime)
}

func checkWindow(sl validator.StructLevel, start, end *time.Time) {
	if start != nil && end != nil && !end.After(*start) {
		sl.ReportError(*end, "end_time", "EndTime", "gtfield", "start_time")
	}
}

// ValidatePaperWindow checks the effective window after an update is merged onto a paper
func (v *Validator) ValidatePaperWindow(paper *models.Paper) error {
	if paper.StartTime != nil && paper.EndTime != nil && !paper.EndTime.After(*paper.StartTime) {
		return Field("end_time", "must be after start_time", paper.EndTime, "gtfield")
	}
	return nil
}

// ValidateQuestionOptions enforces the option rules of a question type:
// option types need two or more options with at least one correct, single answer
// types exactly one correct, true/false exactly two options, free-text types none.
func (v *Validator) ValidateQuestionOptions(qt *models.QuestionType, options []models.QuestionOptionInput) error {
	var errs ValidationErrors

	if !qt.RequiresOptions {
		if len(options) > 0 {
			errs = append(errs, ValidationError{Field: "options", Message: "are not allowed for this question type", Value: len(options), Rule: "no_options"})
		}
		return nilIfEmpty(errs)
	}

	if len(options) < 2 {
		errs = append(errs, ValidationError{Field: "options", Message: "must contain at least 2 options", Value: len(options), Rule: "min_options"})
	}
	if qt.Code == models.TypeTrueFalse && len(options) != 2 {
		errs = append(errs, ValidationError{Field: "options", Message: "must contain exactly 2 options", Value: len(options), Rule: "true_false"})
	}

	correct := 0
	seen := make(map[string]bool, len(options))
	for i, opt := range options {
		if opt.IsCorrect {
			correct++
		}
		key := strings.ToLower(strings.TrimSpace(opt.Text))
		if seen[key] {
			errs = append(errs, ValidationError{Field: fmt.Sprintf("options[%d].text", i), Message: "must be unique within the question", Value: opt.Text, Rule: "unique"})
		}
		seen[key] = true
	}

	switch {
	case correct == 0:
		errs = append(errs, ValidationError{Field: "options", Message: "must mark at least one option correct", Value: correct, Rule: "correct_option"})
	case correct > 1 && singleAnswer(qt.Code):
		errs = append(errs, ValidationError{Field: "options", Message: "must mark exactly one option correct", Value: correct, Rule: "correct_option"})
	}

	return nilIfEmpty(errs)
}

// ValidatePublish checks that a paper can go live
func (v *Validator) ValidatePublish(paper *models.Paper, questionCount int) error {
	var errs ValidationErrors
	if questionCount == 0 {
		errs = append(errs, ValidationError{Field: "questions", Message: "paper must have at least one question before publishing", Value: questionCount, Rule: "publish"})
	}
	if paper.TotalMarks <= 0 {
		errs = append(errs, ValidationError{Field: "total_marks", Message: "must be greater than 0", Value: paper.TotalMarks, Rule: "publish"})
	}
	if verr := v.ValidatePaperWindow(paper); verr != nil {
		errs = append(errs, verr.(ValidationErrors)...)
	}
	return nilIfEmpty(errs)
}

func singleAnswer(code string) bool {
	return code == models.TypeSingleChoice || code == models.TypeTrueFalse
}

func nilIfEmpty(errs ValidationErrors) error {
	if len(errs) == 0 {
		return nil
	}
	return errs
}
