package validator

import (
	"errors"
	"fmt"
	"reflect"
	"strings"
	"sync"

	"github.com/go-playground/validator/v10"

	"github.com/SAP-F-2025/examination-service/internal/models"
)

// ValidationError describes one invalid field
type ValidationError struct {
	Field   string      `json:"field"`
	Message string      `json:"message"`
	Value   interface{} `json:"value,omitempty"`
	Rule    string      `json:"rule,omitempty"`
}

type ValidationErrors []ValidationError

func (ve ValidationErrors) Error() string {
	if len(ve) == 0 {
		return "validation failed"
	}
	if len(ve) == 1 {
		return fmt.Sprintf("validation failed: %s %s", ve[0].Field, ve[0].Message)
	}
	return fmt.Sprintf("validation failed: %d field errors", len(ve))
}

// Field builds a single-field error list
func Field(field, message string, value interface{}, rule string) ValidationErrors {
	return ValidationErrors{{Field: field, Message: message, Value: value, Rule: rule}}
}

// Validator wraps go-playground/validator with the service's custom rules.
// Field names are reported by their json tag.
type Validator struct {
	validate *validator.Validate
}

var (
	defaultValidator *Validator
	once             sync.Once
)

// New returns the shared validator instance
func New() *Validator {
	once.Do(func() {
		defaultValidator = newValidator()
	})
	return defaultValidator
}

func newValidator() *Validator {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})

	registerCustomRules(v)
	v.RegisterStructValidation(paperCreateWindow, models.PaperCreateRequest{})
	v.RegisterStructValidation(paperUpdateWindow, models.PaperUpdateRequest{})

	return &Validator{validate: v}
}

// Validate runs tag and struct-level rules; the result is nil or ValidationErrors
func (v *Validator) Validate(s interface{}) error {
	if err := v.validate.Struct(s); err != nil {
		return ToValidationErrors(err)
	}
	return nil
}

// ToValidationErrors converts validator errors; other errors become a single body error
func ToValidationErrors(err error) ValidationErrors {
	if err == nil {
		return nil
	}

	var already ValidationErrors
	if errors.As(err, &already) {
		return already
	}

	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) {
		return ValidationErrors{{Field: "body", Message: err.Error(), Rule: "invalid"}}
	}

	result := make(ValidationErrors, 0, len(fieldErrs))
	for _, fe := range fieldErrs {
		result = append(result, ValidationError{
			Field:   fieldPath(fe),
			Message: message(fe),
			Value:   fe.Value(),
			Rule:    fe.Tag(),
		})
	}
	return result
}

// fieldPath drops the root struct name: "PaperCreateRequest.questions[0]" -> "questions[0]"
func fieldPath(fe validator.FieldError) string {
	ns := fe.Namespace()
	if i := strings.Index(ns, "."); i >= 0 {
		return ns[i+1:]
	}
	return fe.Field()
}

func message(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "is required"
	case "min":
		return fmt.Sprintf("must be at least %s", fe.Param())
	case "max":
		return fmt.Sprintf("must be at most %s", fe.Param())
	case "gt":
		return fmt.Sprintf("must be greater than %s", fe.Param())
	case "email":
		return "must be a valid email address"
	case "unique":
		return "must not contain duplicates"
	case "alphanumunicode":
		return "must contain only letters and digits"
	case "paper_duration":
		return fmt.Sprintf("must be between %d and %d minutes", MinPaperDuration, MaxPaperDuration)
	case "question_type_code":
		return "must be lowercase letters, digits or underscores"
	case "difficulty_level":
		return "must be easy, medium, hard, very_hard or expert"
	case "question_status":
		return "must be active or inactive"
	case "paper_status":
		return "must be draft, published or archived"
	case "user_role":
		return "must be admin, examiner or candidate"
	case "user_status":
		return "must be active or inactive"
	case "retake_disabled":
		return "cannot be greater than 1 when retakes are not allowed"
	case "gtfield":
		return fmt.Sprintf("must be after %s", fe.Param())
	default:
		return fmt.Sprintf("validation failed for rule '%s'", fe.Tag())
	}
}
