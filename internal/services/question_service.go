package services

import (
	"context"
	"fmt"
	"strings"

	"gorm.io/gorm"

	"github.com/SAP-F-2025/examination-service/internal/authz"
	"github.com/SAP-F-2025/examination-service/internal/models"
	"github.com/SAP-F-2025/examination-service/internal/repositories"
	"github.com/SAP-F-2025/examination-service/internal/validator"
)

// ===== QUESTION TYPES =====

type questionTypeService struct {
	baseService[models.QuestionType]
	types repositories.QuestionTypeRepository
}

func NewQuestionTypeService(deps *ServiceDeps) QuestionTypeService {
	s := &questionTypeService{
		baseService: newBaseService[models.QuestionType](deps, deps.Repo.QuestionType(), authz.KindQuestionType, "question type"),
		types:       deps.Repo.QuestionType(),
	}
	s.onChange = deps.Lookups.InvalidateQuestionTypes
	return s
}

func (s *questionTypeService) Create(ctx context.Context, actor authz.Actor, req *models.QuestionTypeCreateRequest) (*models.QuestionType, error) {
	if err := s.deps.authorize(ctx, actor, authz.ActionCreate, authz.Resource{Kind: s.kind}); err != nil {
		return nil, err
	}
	if err := s.deps.validate(req); err != nil {
		return nil, err
	}
	if err := s.ensureUnique("code", req.Code, func() (bool, error) {
		return s.types.ExistsByCode(ctx, nil, req.Code, nil)
	}); err != nil {
		return nil, err
	}

	questionType := &models.QuestionType{}
	if err := copyInto(questionType, req); err != nil {
		return nil, err
	}
	if err := s.create(ctx, questionType); err != nil {
		return nil, err
	}
	return questionType, nil
}

func (s *questionTypeService) Update(ctx context.Context, actor authz.Actor, id uint, req *models.QuestionTypeUpdateRequest) (*models.QuestionType, error) {
	if err := s.deps.authorize(ctx, actor, authz.ActionUpdate, authz.Resource{Kind: s.kind, ID: id}); err != nil {
		return nil, err
	}
	if err := s.deps.validate(req); err != nil {
		return nil, err
	}

	questionType, err := s.fetch(ctx, id)
	if err != nil {
		return nil, err
	}
	if req.Code != nil && *req.Code != questionType.Code {
		if err := s.ensureUnique("code", *req.Code, func() (bool, error) {
			return s.types.ExistsByCode(ctx, nil, *req.Code, &id)
		}); err != nil {
			return nil, err
		}
	}

	if err := copyInto(questionType, req); err != nil {
		return nil, err
	}

	if err := s.save(ctx, questionType, id); err != nil {
		return nil, err
	}
	return questionType, nil
}

// ===== QUESTIONS =====

type questionService struct {
	baseService[models.Question]
	questions repositories.QuestionRepository
	options   repositories.QuestionOptionRepository
}

func NewQuestionService(deps *ServiceDeps) QuestionService {
	s := &questionService{
		baseService: newBaseService[models.Question](deps, deps.Repo.Question(), authz.KindQuestion, "question"),
		questions:   deps.Repo.Question(),
		options:     deps.Repo.QuestionOption(),
	}
	s.onChange = deps.Lookups.InvalidateStats
	return s
}

// Get returns the question with its options
func (s *questionService) Get(ctx context.Context, actor authz.Actor, id uint) (*models.Question, error) {
	if err := s.deps.authorize(ctx, actor, authz.ActionRead, authz.Resource{Kind: s.kind, ID: id}); err != nil {
		return nil, err
	}
	question, err := s.questions.GetByIDWithOptions(ctx, nil, id)
	if err != nil {
		return nil, s.mapError(err, id)
	}
	return question, nil
}

func (s *questionService) Create(ctx context.Context, actor authz.Actor, req *models.QuestionCreateRequest) (*models.Question, error) {
	if err := s.deps.authorize(ctx, actor, authz.ActionCreate, authz.Resource{Kind: s.kind}); err != nil {
		return nil, err
	}
	if err := s.deps.validate(req); err != nil {
		return nil, err
	}
	if err := requireRef(ctx, s.deps.Repo.Subject(), "subject_id", req.SubjectID); err != nil {
		return nil, err
	}
	questionType, err := s.questionType(ctx, req.QuestionTypeID)
	if err != nil {
		return nil, err
	}
	if err := s.deps.Validator.ValidateQuestionOptions(questionType, req.Options); err != nil {
		return nil, err
	}

	question := &models.Question{Status: models.QuestionActive}
	if err := copyInto(question, req); err != nil {
		return nil, err
	}
	question.Options = nil

	err = s.deps.Repo.Transaction(ctx, func(tx *gorm.DB) error {
		if err := s.questions.Create(ctx, tx, question); err != nil {
			return s.mapError(err, 0)
		}

		options := make([]*models.QuestionOption, len(req.Options))
		for i, input := range req.Options {
			order := input.Order
			if order == 0 {
				order = i + 1
			}
			options[i] = &models.QuestionOption{
				QuestionID: question.ID,
				Text:       strings.TrimSpace(input.Text),
				IsCorrect:  input.IsCorrect,
				Order:      order,
			}
		}
		if err := s.options.CreateBatch(ctx, tx, options); err != nil {
			if repositories.IsDuplicateError(err) {
				return NewConflictError("question option", "text", "")
			}
			return err
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.changed(ctx)
	s.deps.Logger.InfoContext(ctx, "Question created", "question_id", question.ID, "type", questionType.Code, "options", len(req.Options))
	return s.questions.GetByIDWithOptions(ctx, nil, question.ID)
}

func (s *questionService) Update(ctx context.Context, actor authz.Actor, id uint, req *models.QuestionUpdateRequest) (*models.Question, error) {
	if err := s.deps.authorize(ctx, actor, authz.ActionUpdate, authz.Resource{Kind: s.kind, ID: id}); err != nil {
		return nil, err
	}
	if err := s.deps.validate(req); err != nil {
		return nil, err
	}

	question, err := s.questions.GetByIDWithOptions(ctx, nil, id)
	if err != nil {
		return nil, s.mapError(err, id)
	}
	if req.SubjectID != nil {
		if err := requireRef(ctx, s.deps.Repo.Subject(), "subject_id", *req.SubjectID); err != nil {
			return nil, err
		}
	}

	// a type change must still fit the existing options
	if req.QuestionTypeID != nil && *req.QuestionTypeID != question.QuestionTypeID {
		questionType, err := s.questionType(ctx, *req.QuestionTypeID)
		if err != nil {
			return nil, err
		}
		if err := s.deps.Validator.ValidateQuestionOptions(questionType, optionInputs(question.Options)); err != nil {
			return nil, err
		}
	}

	marksChanged := req.Marks != nil && *req.Marks != question.Marks
	if err := copyInto(question, req); err != nil {
		return nil, err
	}

	question.Subject, question.QuestionType, question.Options = nil, nil, nil
	err = s.deps.Repo.Transaction(ctx, func(tx *gorm.DB) error {
		if err := s.questions.Update(ctx, tx, question); err != nil {
			return s.mapError(err, id)
		}
		if !marksChanged {
			return nil
		}
		return s.refreshPaperTotals(ctx, tx, id)
	})
	if err != nil {
		return nil, err
	}

	s.changed(ctx)
	return s.questions.GetByIDWithOptions(ctx, nil, id)
}

// refreshPaperTotals recomputes total_marks of every paper that includes the question
func (s *questionService) refreshPaperTotals(ctx context.Context, tx *gorm.DB, questionID uint) error {
	papers := s.deps.Repo.Paper()
	paperIDs, err := papers.ListPaperIDsByQuestion(ctx, tx, questionID)
	if err != nil {
		return err
	}
	for _, paperID := range paperIDs {
		total, err := papers.SumQuestionMarks(ctx, tx, paperID)
		if err != nil {
			return fmt.Errorf("failed to sum question marks: %w", err)
		}
		if err := papers.UpdateTotalMarks(ctx, tx, paperID, total); err != nil {
			return err
		}
	}
	if len(paperIDs) > 0 {
		s.deps.Logger.InfoContext(ctx, "Paper totals refreshed", "question_id", questionID, "papers", len(paperIDs))
	}
	return nil
}

func (s *questionService) ListOptions(ctx context.Context, actor authz.Actor, id uint) ([]*models.QuestionOption, error) {
	if err := s.deps.authorize(ctx, actor, authz.ActionRead, authz.Resource{Kind: authz.KindQuestionOption}); err != nil {
		return nil, err
	}
	if _, err := s.fetch(ctx, id); err != nil {
		return nil, err
	}
	options, err := s.options.ListByQuestion(ctx, nil, id)
	if err != nil {
		return nil, fmt.Errorf("failed to list options: %w", err)
	}
	if options == nil {
		options = []*models.QuestionOption{}
	}
	return options, nil
}

func (s *questionService) questionType(ctx context.Context, id uint) (*models.QuestionType, error) {
	questionType, err := s.deps.Repo.QuestionType().GetByID(ctx, nil, id)
	if err != nil {
		if repositories.IsNotFoundError(err) {
			return nil, validator.Field("question_type_id", "does not exist", id, "exists")
		}
		return nil, fmt.Errorf("failed to get question type: %w", err)
	}
	return questionType, nil
}

func optionInputs(options []models.QuestionOption) []models.QuestionOptionInput {
	inputs := make([]models.QuestionOptionInput, len(options))
	for i, option := range options {
		inputs[i] = models.QuestionOptionInput{Text: option.Text, IsCorrect: option.IsCorrect, Order: option.Order}
	}
	return inputs
}

// ===== QUESTION OPTIONS =====

type questionOptionService struct {
	baseService[models.QuestionOption]
	options repositories.QuestionOptionRepository
}

func NewQuestionOptionService(deps *ServiceDeps) QuestionOptionService {
	return &questionOptionService{
		baseService: newBaseService[models.QuestionOption](deps, deps.Repo.QuestionOption(), authz.KindQuestionOption, "question option"),
		options:     deps.Repo.QuestionOption(),
	}
}

func (s *questionOptionService) Create(ctx context.Context, actor authz.Actor, req *models.QuestionOptionCreateRequest) (*models.QuestionOption, error) {
	if err := s.deps.authorize(ctx, actor, authz.ActionCreate, authz.Resource{Kind: s.kind}); err != nil {
		return nil, err
	}
	if err := s.deps.validate(req); err != nil {
		return nil, err
	}

	question, err := s.parent(ctx, req.QuestionID)
	if err != nil {
		return nil, err
	}
	if question.QuestionType != nil && !question.QuestionType.RequiresOptions {
		return nil, validator.Field("question_id", "question type does not take options", req.QuestionID, "no_options")
	}
	if question.QuestionType != nil && question.QuestionType.Code == models.TypeTrueFalse && len(question.Options) >= 2 {
		return nil, validator.Field("question_id", "true/false questions have exactly 2 options", req.QuestionID, "true_false")
	}

	text := strings.TrimSpace(req.Text)
	if err := s.ensureUnique("text", text, func() (bool, error) {
		return s.options.ExistsByText(ctx, nil, req.QuestionID, text, nil)
	}); err != nil {
		return nil, err
	}
	if req.IsCorrect && singleCorrect(question) {
		if err := s.ensureNoOtherCorrect(ctx, req.QuestionID, nil); err != nil {
			return nil, err
		}
	}

	order := req.Order
	if order == 0 {
		order = len(question.Options) + 1
	}
	option := &models.QuestionOption{QuestionID: req.QuestionID, Text: text, IsCorrect: req.IsCorrect, Order: order}
	if err := s.create(ctx, option); err != nil {
		return nil, err
	}
	return option, nil
}

func (s *questionOptionService) Update(ctx context.Context, actor authz.Actor, id uint, req *models.QuestionOptionUpdateRequest) (*models.QuestionOption, error) {
	if err := s.deps.authorize(ctx, actor, authz.ActionUpdate, authz.Resource{Kind: s.kind, ID: id}); err != nil {
		return nil, err
	}
	if err := s.deps.validate(req); err != nil {
		return nil, err
	}

	option, err := s.fetch(ctx, id)
	if err != nil {
		return nil, err
	}
	question, err := s.parent(ctx, option.QuestionID)
	if err != nil {
		return nil, err
	}

	if req.Text != nil {
		text := strings.TrimSpace(*req.Text)
		req.Text = &text
		if err := s.ensureUnique("text", text, func() (bool, error) {
			return s.options.ExistsByText(ctx, nil, option.QuestionID, text, &id)
		}); err != nil {
			return nil, err
		}
	}
	if req.IsCorrect != nil && *req.IsCorrect != option.IsCorrect {
		if *req.IsCorrect && singleCorrect(question) {
			if err := s.ensureNoOtherCorrect(ctx, option.QuestionID, &id); err != nil {
				return nil, err
			}
		}
		if !*req.IsCorrect {
			if err := s.ensureAnotherCorrect(ctx, question, id, "is_correct"); err != nil {
				return nil, err
			}
		}
		option.IsCorrect = *req.IsCorrect
	}

	if err := copyInto(option, req); err != nil {
		return nil, err
	}
	if err := s.save(ctx, option, id); err != nil {
		return nil, err
	}
	return option, nil
}

// Delete refuses to remove the last correct option of a question that needs options
func (s *questionOptionService) Delete(ctx context.Context, actor authz.Actor, id uint) error {
	if err := s.deps.authorize(ctx, actor, authz.ActionDelete, authz.Resource{Kind: s.kind, ID: id}); err != nil {
		return err
	}
	option, err := s.fetch(ctx, id)
	if err != nil {
		return err
	}
	if option.IsCorrect {
		question, err := s.parent(ctx, option.QuestionID)
		if err != nil {
			return err
		}
		if err := s.ensureAnotherCorrect(ctx, question, id, "id"); err != nil {
			return err
		}
	}
	return s.baseService.Delete(ctx, actor, id)
}

func (s *questionOptionService) parent(ctx context.Context, questionID uint) (*models.Question, error) {
	question, err := s.deps.Repo.Question().GetByIDWithOptions(ctx, nil, questionID)
	if err != nil {
		if repositories.IsNotFoundError(err) {
			return nil, validator.Field("question_id", "does not exist", questionID, "exists")
		}
		return nil, fmt.Errorf("failed to get question: %w", err)
	}
	return question, nil
}

func (s *questionOptionService) ensureAnotherCorrect(ctx context.Context, question *models.Question, optionID uint, field string) error {
	if question.QuestionType == nil || !question.QuestionType.RequiresOptions {
		return nil
	}
	others, err := s.options.CountCorrect(ctx, nil, question.ID, &optionID)
	if err != nil {
		return fmt.Errorf("failed to count correct options: %w", err)
	}
	if others == 0 {
		return validator.Field(field, "question must keep at least one correct option", optionID, "correct_option")
	}
	return nil
}

func (s *questionOptionService) ensureNoOtherCorrect(ctx context.Context, questionID uint, excludeID *uint) error {
	count, err := s.options.CountCorrect(ctx, nil, questionID, excludeID)
	if err != nil {
		return fmt.Errorf("failed to count correct options: %w", err)
	}
	if count > 0 {
		return validator.Field("is_correct", "question already has a correct option", true, "correct_option")
	}
	return nil
}

func singleCorrect(question *models.Question) bool {
	if question.QuestionType == nil {
		return false
	}
	return question.QuestionType.Code == models.TypeSingleChoice || question.QuestionType.Code == models.TypeTrueFalse
}
