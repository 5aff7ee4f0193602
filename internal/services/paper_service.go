package services

import (
	"context"
	"fmt"
	"sort"

	"gorm.io/gorm"

	"github.com/SAP-F-2025/examination-service/internal/authz"
	"github.com/SAP-F-2025/examination-service/internal/models"
	"github.com/SAP-F-2025/examination-service/internal/repositories"
	"github.com/SAP-F-2025/examination-service/internal/validator"
)

type paperService struct {
	baseService[models.Paper]
	papers repositories.PaperRepository
}

func NewPaperService(deps *ServiceDeps) PaperService {
	s := &paperService{
		baseService: newBaseService[models.Paper](deps, deps.Repo.Paper(), authz.KindPaper, "paper"),
		papers:      deps.Repo.Paper(),
	}
	s.onChange = deps.Lookups.InvalidateStats
	return s
}

// List shows candidates only published papers
func (s *paperService) List(ctx context.Context, actor authz.Actor, query ListQuery) (*models.PaginatedResponse, error) {
	resource := authz.Resource{Kind: s.kind}
	if actor.Role == models.RoleCandidate && !actor.System {
		equals := make(map[string]interface{}, len(query.Equals)+1)
		for k, v := range query.Equals {
			equals[k] = v
		}
		equals["status"] = models.PaperPublished
		query.Equals = equals
		resource.Published = true
	}
	if err := s.deps.authorize(ctx, actor, authz.ActionRead, resource); err != nil {
		return nil, err
	}
	return s.list(ctx, query)
}

// Get returns the paper with its ordered questions; candidates never see answer keys
func (s *paperService) Get(ctx context.Context, actor authz.Actor, id uint) (*models.Paper, error) {
	paper, err := s.details(ctx, nil, id)
	if err != nil {
		return nil, err
	}
	resource := authz.Resource{Kind: s.kind, ID: id, Published: paper.Status == models.PaperPublished}
	if err := s.deps.authorize(ctx, actor, authz.ActionRead, resource); err != nil {
		return nil, err
	}
	if actor.Role == models.RoleCandidate && !actor.System {
		redactPaper(paper)
	}
	return paper, nil
}

func (s *paperService) details(ctx context.Context, tx *gorm.DB, id uint) (*models.Paper, error) {
	paper, err := s.papers.GetByIDWithDetails(ctx, tx, id)
	if err != nil {
		return nil, s.mapError(err, id)
	}
	return paper, nil
}

func (s *paperService) Create(ctx context.Context, actor authz.Actor, req *models.PaperCreateRequest) (*models.Paper, error) {
	if err := s.deps.authorize(ctx, actor, authz.ActionCreate, authz.Resource{Kind: s.kind}); err != nil {
		return nil, err
	}
	if err := s.deps.validate(req); err != nil {
		return nil, err
	}
	if err := s.checkRefs(ctx, &req.SubjectID, &req.PaperCategoryID); err != nil {
		return nil, err
	}
	if err := s.checkQuestions(ctx, "question_ids", req.QuestionIDs); err != nil {
		return nil, err
	}
	categories, err := s.loadCategories(ctx, req.UserCategoryIDs)
	if err != nil {
		return nil, err
	}

	paper := &models.Paper{Status: models.PaperDraft, PassingPercentage: 40}
	if err := copyInto(paper, req); err != nil {
		return nil, err
	}

	err = s.deps.Repo.Transaction(ctx, func(tx *gorm.DB) error {
		if err := s.papers.Create(ctx, tx, paper); err != nil {
			return s.mapError(err, 0)
		}

		if len(req.QuestionIDs) > 0 {
			links := make([]models.PaperQuestion, len(req.QuestionIDs))
			for i, questionID := range req.QuestionIDs {
				links[i] = models.PaperQuestion{PaperID: paper.ID, QuestionID: questionID, OrderIndex: i + 1}
			}
			if err := s.papers.AttachQuestions(ctx, tx, paper.ID, links); err != nil {
				return err
			}
		}

		if len(categories) > 0 {
			if err := s.papers.ReplaceUserCategories(ctx, tx, paper, req.UserCategoryIDs); err != nil {
				return err
			}
		}

		return s.recomputeTotalMarks(ctx, tx, paper.ID)
	})
	if err != nil {
		return nil, err
	}

	s.changed(ctx)
	s.deps.Logger.InfoContext(ctx, "Paper created", "paper_id", paper.ID, "questions", len(req.QuestionIDs), "actor_id", actor.UserID)
	return s.details(ctx, nil, paper.ID)
}

func (s *paperService) Update(ctx context.Context, actor authz.Actor, id uint, req *models.PaperUpdateRequest) (*models.Paper, error) {
	if err := s.deps.authorize(ctx, actor, authz.ActionUpdate, authz.Resource{Kind: s.kind, ID: id}); err != nil {
		return nil, err
	}
	if err := s.deps.validate(req); err != nil {
		return nil, err
	}

	paper, err := s.fetch(ctx, id)
	if err != nil {
		return nil, err
	}
	if paper.Status == models.PaperArchived {
		return nil, fmt.Errorf("%w: paper %d is archived", ErrInvalidState, id)
	}
	if err := s.checkRefs(ctx, req.SubjectID, req.PaperCategoryID); err != nil {
		return nil, err
	}

	if err := copyInto(paper, req); err != nil {
		return nil, err
	}
	if err := s.deps.Validator.ValidatePaperWindow(paper); err != nil {
		return nil, err
	}
	if !paper.AllowRetake && paper.MaxAttempts > 1 {
		return nil, validator.Field("max_attempts", "cannot be greater than 1 when retakes are not allowed", paper.MaxAttempts, "retake_disabled")
	}

	paper.Subject, paper.PaperCategory, paper.UserCategories = nil, nil, nil
	if err := s.save(ctx, paper, id); err != nil {
		return nil, err
	}
	return s.details(ctx, nil, id)
}

// AttachQuestions adds or re-positions questions on a draft paper
func (s *paperService) AttachQuestions(ctx context.Context, actor authz.Actor, id uint, req *models.PaperQuestionsRequest) (*models.Paper, error) {
	if err := s.deps.authorize(ctx, actor, authz.ActionUpdate, authz.Resource{Kind: s.kind, ID: id}); err != nil {
		return nil, err
	}
	if err := s.deps.validate(req); err != nil {
		return nil, err
	}
	if _, err := s.editableDraft(ctx, id); err != nil {
		return nil, err
	}

	ids := make([]uint, len(req.Questions))
	for i, q := range req.Questions {
		ids[i] = q.QuestionID
	}
	if err := s.checkQuestions(ctx, "questions", ids); err != nil {
		return nil, err
	}

	err := s.deps.Repo.Transaction(ctx, func(tx *gorm.DB) error {
		next, err := s.papers.NextOrderIndex(ctx, tx, id)
		if err != nil {
			return err
		}

		links := make([]models.PaperQuestion, len(req.Questions))
		for i, q := range req.Questions {
			order := q.OrderIndex
			if order == 0 {
				order = next
				next++
			}
			links[i] = models.PaperQuestion{PaperID: id, QuestionID: q.QuestionID, OrderIndex: order}
		}
		if err := s.papers.AttachQuestions(ctx, tx, id, links); err != nil {
			return err
		}
		return s.recomputeTotalMarks(ctx, tx, id)
	})
	if err != nil {
		return nil, err
	}
	return s.details(ctx, nil, id)
}

func (s *paperService) DetachQuestion(ctx context.Context, actor authz.Actor, id, questionID uint) (*models.Paper, error) {
	if err := s.deps.authorize(ctx, actor, authz.ActionUpdate, authz.Resource{Kind: s.kind, ID: id}); err != nil {
		return nil, err
	}
	if _, err := s.editableDraft(ctx, id); err != nil {
		return nil, err
	}

	err := s.deps.Repo.Transaction(ctx, func(tx *gorm.DB) error {
		if err := s.papers.DetachQuestion(ctx, tx, id, questionID); err != nil {
			if repositories.IsNotFoundError(err) {
				return NewNotFoundError("paper question", questionID)
			}
			return err
		}
		return s.recomputeTotalMarks(ctx, tx, id)
	})
	if err != nil {
		return nil, err
	}
	return s.details(ctx, nil, id)
}

// ReorderQuestions takes the complete list of attached question ids in the new order
func (s *paperService) ReorderQuestions(ctx context.Context, actor authz.Actor, id uint, req *models.PaperReorderRequest) (*models.Paper, error) {
	if err := s.deps.authorize(ctx, actor, authz.ActionUpdate, authz.Resource{Kind: s.kind, ID: id}); err != nil {
		return nil, err
	}
	if err := s.deps.validate(req); err != nil {
		return nil, err
	}
	paper, err := s.fetch(ctx, id)
	if err != nil {
		return nil, err
	}
	if paper.Status == models.PaperArchived {
		return nil, fmt.Errorf("%w: paper %d is archived", ErrInvalidState, id)
	}

	current, err := s.papers.ListQuestionIDs(ctx, nil, id)
	if err != nil {
		return nil, fmt.Errorf("failed to list paper questions: %w", err)
	}
	if !sameIDSet(current, req.QuestionIDs) {
		return nil, validator.Field("question_ids", "must list every attached question exactly once", req.QuestionIDs, "same_set")
	}

	if err := s.papers.ReorderQuestions(ctx, nil, id, req.QuestionIDs); err != nil {
		return nil, fmt.Errorf("failed to reorder questions: %w", err)
	}
	return s.details(ctx, nil, id)
}

// SetUserCategories restricts the paper to the given categories; an empty list opens it to all
func (s *paperService) SetUserCategories(ctx context.Context, actor authz.Actor, id uint, req *models.PaperUserCategoriesRequest) (*models.Paper, error) {
	if err := s.deps.authorize(ctx, actor, authz.ActionUpdate, authz.Resource{Kind: s.kind, ID: id}); err != nil {
		return nil, err
	}
	if err := s.deps.validate(req); err != nil {
		return nil, err
	}
	paper, err := s.fetch(ctx, id)
	if err != nil {
		return nil, err
	}
	if _, err := s.loadCategories(ctx, req.UserCategoryIDs); err != nil {
		return nil, err
	}

	if err := s.papers.ReplaceUserCategories(ctx, nil, paper, req.UserCategoryIDs); err != nil {
		return nil, fmt.Errorf("failed to set user categories: %w", err)
	}
	return s.details(ctx, nil, id)
}

func (s *paperService) Publish(ctx context.Context, actor authz.Actor, id uint) (*models.Paper, error) {
	if err := s.deps.authorize(ctx, actor, authz.ActionUpdate, authz.Resource{Kind: s.kind, ID: id}); err != nil {
		return nil, err
	}
	paper, err := s.details(ctx, nil, id)
	if err != nil {
		return nil, err
	}
	if !paper.Status.CanTransitionTo(models.PaperPublished) {
		return nil, fmt.Errorf("%w: paper %d is %s", ErrInvalidState, id, paper.Status)
	}
	if err := s.deps.Validator.ValidatePublish(paper, len(paper.Questions)); err != nil {
		return nil, err
	}

	if err := s.moveStatus(ctx, paper, models.PaperPublished, map[string]interface{}{"published_at": s.deps.now()}); err != nil {
		return nil, err
	}
	s.deps.Logger.InfoContext(ctx, "Paper published", "paper_id", id, "actor_id", actor.UserID)
	return s.details(ctx, nil, id)
}

func (s *paperService) Archive(ctx context.Context, actor authz.Actor, id uint) (*models.Paper, error) {
	if err := s.deps.authorize(ctx, actor, authz.ActionUpdate, authz.Resource{Kind: s.kind, ID: id}); err != nil {
		return nil, err
	}
	paper, err := s.fetch(ctx, id)
	if err != nil {
		return nil, err
	}
	if !paper.Status.CanTransitionTo(models.PaperArchived) {
		return nil, fmt.Errorf("%w: paper %d is %s", ErrInvalidState, id, paper.Status)
	}
	if err := s.moveStatus(ctx, paper, models.PaperArchived, nil); err != nil {
		return nil, err
	}
	return s.details(ctx, nil, id)
}

func (s *paperService) moveStatus(ctx context.Context, paper *models.Paper, to models.PaperStatus, updates map[string]interface{}) error {
	ok, err := s.papers.UpdateStatus(ctx, nil, paper.ID, paper.Status, to, updates)
	if err != nil {
		return fmt.Errorf("failed to update paper status: %w", err)
	}
	if !ok {
		return fmt.Errorf("%w: paper %d changed concurrently", ErrInvalidState, paper.ID)
	}
	s.changed(ctx)
	return nil
}

// editableDraft loads a paper whose question set may still change
func (s *paperService) editableDraft(ctx context.Context, id uint) (*models.Paper, error) {
	paper, err := s.fetch(ctx, id)
	if err != nil {
		return nil, err
	}
	if paper.Status != models.PaperDraft {
		return nil, fmt.Errorf("%w: questions of %s paper %d cannot change", ErrInvalidState, paper.Status, id)
	}
	return paper, nil
}

func (s *paperService) recomputeTotalMarks(ctx context.Context, tx *gorm.DB, id uint) error {
	total, err := s.papers.SumQuestionMarks(ctx, tx, id)
	if err != nil {
		return fmt.Errorf("failed to sum question marks: %w", err)
	}
	return s.papers.UpdateTotalMarks(ctx, tx, id, total)
}

func (s *paperService) checkRefs(ctx context.Context, subjectID, categoryID *uint) error {
	if subjectID != nil {
		if err := requireRef(ctx, s.deps.Repo.Subject(), "subject_id", *subjectID); err != nil {
			return err
		}
	}
	if categoryID != nil {
		if err := requireRef(ctx, s.deps.Repo.PaperCategory(), "paper_category_id", *categoryID); err != nil {
			return err
		}
	}
	return nil
}

func (s *paperService) checkQuestions(ctx context.Context, field string, ids []uint) error {
	if len(ids) == 0 {
		return nil
	}
	found, err := s.deps.Repo.Question().CountExisting(ctx, nil, ids)
	if err != nil {
		return fmt.Errorf("failed to check questions: %w", err)
	}
	if found != int64(len(uniqueIDs(ids))) {
		return validator.Field(field, "contains questions that do not exist", ids, "exists")
	}
	return nil
}

func (s *paperService) loadCategories(ctx context.Context, ids []uint) ([]*models.UserCategory, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	categories, err := s.deps.Repo.UserCategory().GetByIDs(ctx, nil, ids)
	if err != nil {
		return nil, fmt.Errorf("failed to load user categories: %w", err)
	}
	if len(categories) != len(uniqueIDs(ids)) {
		return nil, validator.Field("user_category_ids", "contains categories that do not exist", ids, "exists")
	}
	return categories, nil
}

// redactPaper strips answer keys and the access code before a paper reaches a candidate
func redactPaper(paper *models.Paper) {
	paper.AccessCode = nil
	for i := range paper.Questions {
		if q := paper.Questions[i].Question; q != nil {
			redactQuestion(q)
		}
	}
}

func redactQuestion(q *models.Question) {
	q.Explanation = nil
	for j := range q.Options {
		q.Options[j].IsCorrect = false
	}
}

func uniqueIDs(ids []uint) []uint {
	seen := make(map[uint]struct{}, len(ids))
	out := make([]uint, 0, len(ids))
	for _, id := range ids {
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}

func sameIDSet(a, b []uint) bool {
	if len(a) != len(b) {
		return false
	}
	x := append([]uint(nil), a...)
	y := append([]uint(nil), b...)
	sort.Slice(x, func(i, j int) bool { return x[i] < x[j] })
	sort.Slice(y, func(i, j int) bool { return y[i] < y[j] })
	for i := range x {
		if x[i] != y[i] {
			return false
		}
	}
	return true
}
