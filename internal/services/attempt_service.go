package services

import (
	"context"
	"crypto/subtle"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"gorm.io/datatypes"
	"gorm.io/gorm"

	"github.com/SAP-F-2025/examination-service/internal/authz"
	"github.com/SAP-F-2025/examination-service/internal/events"
	"github.com/SAP-F-2025/examination-service/internal/models"
	"github.com/SAP-F-2025/examination-service/internal/repositories"
	"github.com/SAP-F-2025/examination-service/internal/validator"
)

const attemptResource = "test attempt"

type attemptService struct {
	deps      *ServiceDeps
	attempts  repositories.AttemptRepository
	answers   repositories.AnswerRepository
	papers    repositories.PaperRepository
	questions repositories.QuestionRepository
}

func NewAttemptService(deps *ServiceDeps) AttemptService {
	return &attemptService{
		deps:      deps,
		attempts:  deps.Repo.Attempt(),
		answers:   deps.Repo.Answer(),
		papers:    deps.Repo.Paper(),
		questions: deps.Repo.Question(),
	}
}

// closeResult describes how an attempt left in_progress
type closeResult struct {
	first   models.AttemptStatus
	final   models.AttemptStatus
	reason  string
	summary ScoreSummary
}

// ===== CRUD =====

func (s *attemptService) List(ctx context.Context, actor authz.Actor, query ListQuery) (*models.PaginatedResponse, error) {
	query = query.Normalize()
	filters := attemptFilters(query)

	resource := authz.Resource{Kind: authz.KindAttempt}
	if isCandidate(actor) {
		filters.UserID = &actor.UserID
		resource.OwnerID = actor.UserID
	}
	if err := s.deps.authorize(ctx, actor, authz.ActionRead, resource); err != nil {
		return nil, err
	}

	attempts, total, err := s.attempts.List(ctx, nil, filters)
	if err != nil {
		return nil, fmt.Errorf("failed to list attempts: %w", err)
	}
	if attempts == nil {
		attempts = []*models.TestAttempt{}
	}
	if isCandidate(actor) {
		for _, attempt := range attempts {
			redactAttempt(attempt)
		}
	}
	return models.NewPaginatedResponse(attempts, len(attempts), total, query.Page, query.Size), nil
}

// Create pre-assigns a paper to a user; the attempt waits in not_started until the user starts it
func (s *attemptService) Create(ctx context.Context, actor authz.Actor, req *models.TestAttemptCreateRequest) (*models.TestAttempt, error) {
	if err := s.deps.authorize(ctx, actor, authz.ActionCreate, authz.Resource{Kind: authz.KindAttempt}); err != nil {
		return nil, err
	}
	if err := s.deps.validate(req); err != nil {
		return nil, err
	}
	if err := requireRef(ctx, s.deps.Repo.User(), "user_id", req.UserID); err != nil {
		return nil, err
	}
	paper, err := s.papers.GetByID(ctx, nil, req.PaperID)
	if err != nil {
		if repositories.IsNotFoundError(err) {
			return nil, validator.Field("paper_id", "does not exist", req.PaperID, "exists")
		}
		return nil, fmt.Errorf("failed to get paper: %w", err)
	}
	if paper.Status == models.PaperArchived {
		return nil, fmt.Errorf("%w: paper %d is archived", ErrInvalidState, paper.ID)
	}

	attempt := &models.TestAttempt{UserID: req.UserID, PaperID: req.PaperID, Status: models.AttemptNotStarted, MaxScore: paper.TotalMarks}
	err = s.deps.Repo.Transaction(ctx, func(tx *gorm.DB) error {
		existing, err := s.attempts.ListByUserAndPaper(ctx, tx, req.UserID, req.PaperID)
		if err != nil {
			return err
		}
		for _, a := range existing {
			if a.Status == models.AttemptNotStarted {
				return NewConflictError(attemptResource, "paper_id", req.PaperID)
			}
		}
		attempt.AttemptNumber = len(existing) + 1
		return s.attempts.Create(ctx, tx, attempt)
	})
	if err != nil {
		return nil, err
	}

	s.deps.Logger.InfoContext(ctx, "Attempt assigned", "attempt_id", attempt.ID, "user_id", req.UserID, "paper_id", req.PaperID)
	return attempt, nil
}

func (s *attemptService) Get(ctx context.Context, actor authz.Actor, id uint) (*models.TestAttempt, error) {
	attempt, err := s.attempts.GetByIDWithAnswers(ctx, nil, id)
	if err != nil {
		return nil, s.mapError(err, id)
	}
	if err := s.deps.authorize(ctx, actor, authz.ActionRead, ownedBy(attempt)); err != nil {
		return nil, err
	}
	if isCandidate(actor) {
		redactAttempt(attempt)
	}
	return attempt, nil
}

// Update only edits administrative notes; status changes go through the lifecycle operations
func (s *attemptService) Update(ctx context.Context, actor authz.Actor, id uint, req *models.TestAttemptUpdateRequest) (*models.TestAttempt, error) {
	if err := s.deps.authorize(ctx, actor, authz.ActionUpdate, authz.Resource{Kind: authz.KindAttempt, ID: id}); err != nil {
		return nil, err
	}
	if err := s.deps.validate(req); err != nil {
		return nil, err
	}

	if req.StopReason != nil {
		if err := s.attempts.UpdateFields(ctx, nil, id, map[string]interface{}{"stop_reason": *req.StopReason}); err != nil {
			return nil, s.mapError(err, id)
		}
	}
	return s.load(ctx, nil, id)
}

// Delete soft deletes the attempt
func (s *attemptService) Delete(ctx context.Context, actor authz.Actor, id uint) error {
	if err := s.deps.authorize(ctx, actor, authz.ActionDelete, authz.Resource{Kind: authz.KindAttempt, ID: id}); err != nil {
		return err
	}
	if err := s.attempts.Delete(ctx, nil, id); err != nil {
		return s.mapError(err, id)
	}
	s.deps.Lookups.InvalidateStats(ctx)
	s.deps.Logger.InfoContext(ctx, "Deleted test attempt", "attempt_id", id, "actor_id", actor.UserID)
	return nil
}

func (s *attemptService) Search(ctx context.Context, actor authz.Actor, term string) ([]*models.TestAttempt, error) {
	if err := s.deps.authorize(ctx, actor, authz.ActionRead, authz.Resource{Kind: authz.KindAttempt}); err != nil {
		return nil, err
	}
	attempts, err := s.attempts.Search(ctx, nil, term, searchLimit)
	if err != nil {
		return nil, fmt.Errorf("failed to search attempts: %w", err)
	}
	if attempts == nil {
		attempts = []*models.TestAttempt{}
	}
	return attempts, nil
}

// ===== LIFECYCLE =====

func (s *attemptService) Start(ctx context.Context, actor authz.Actor, req *models.StartAttemptRequest, client models.ClientInfo) (*models.TestAttempt, error) {
	if err := s.deps.authorize(ctx, actor, authz.ActionStart, authz.Resource{Kind: authz.KindAttempt, OwnerID: actor.UserID}); err != nil {
		return nil, err
	}
	if err := s.deps.validate(req); err != nil {
		return nil, err
	}

	paper, err := s.papers.GetByID(ctx, nil, req.PaperID)
	if err != nil {
		if repositories.IsNotFoundError(err) {
			return nil, NewNotFoundError("paper", req.PaperID)
		}
		return nil, fmt.Errorf("failed to get paper: %w", err)
	}

	now := s.deps.now()
	if paper.Status != models.PaperPublished {
		return nil, fmt.Errorf("%w: paper %d is %s", ErrInvalidState, paper.ID, paper.Status)
	}
	if !paper.IsOpenAt(now) {
		return nil, fmt.Errorf("%w: paper %d is outside its availability window", ErrInvalidState, paper.ID)
	}
	if !accessCodeMatches(paper.AccessCode, req.AccessCode) {
		return nil, fmt.Errorf("%w: access code does not match", ErrForbidden)
	}

	user, err := s.deps.Repo.User().GetByID(ctx, nil, actor.UserID)
	if err != nil {
		if repositories.IsNotFoundError(err) {
			return nil, NewNotFoundError("user", actor.UserID)
		}
		return nil, fmt.Errorf("failed to get user: %w", err)
	}
	if !paper.AllowsCategory(user.UserCategoryID) {
		return nil, fmt.Errorf("%w: paper %d is not open to the user's category", ErrForbidden, paper.ID)
	}

	metadata, err := encodeMetadata(req.BrowserMetadata)
	if err != nil {
		return nil, validator.Field("browser_metadata", "must be a JSON object", nil, "json")
	}

	deadline := now.Add(time.Duration(paper.Duration) * time.Minute)
	if paper.EndTime != nil && paper.EndTime.Before(deadline) {
		deadline = *paper.EndTime
	}

	var (
		attemptID uint
		expired   []events.Event
	)
	err = s.deps.Repo.Transaction(ctx, func(tx *gorm.DB) error {
		existing, err := s.attempts.ListByUserAndPaper(ctx, tx, user.ID, paper.ID)
		if err != nil {
			return err
		}

		var pending *models.TestAttempt
		started := 0
		for _, a := range existing {
			if a.IsOverdue(now) {
				result, err := s.closeLocked(ctx, tx, a, now, models.AttemptExpired, models.EndReasonExpired, nil)
				if err != nil {
					return err
				}
				a.Status = result.final
				expired = append(expired, lifecycleEvents(a, result)...)
			}

			switch a.Status {
			case models.AttemptNotStarted:
				pending = a
				continue
			case models.AttemptInProgress:
				return fmt.Errorf("%w: attempt %d is still running", ErrAlreadyAttempted, a.ID)
			}
			started++
			if !paper.AllowRetake && a.Status != models.AttemptExpired {
				return fmt.Errorf("%w: paper %d does not allow retakes", ErrAlreadyAttempted, paper.ID)
			}
		}
		if paper.MaxAttempts > 0 && started >= paper.MaxAttempts {
			return fmt.Errorf("%w: maximum of %d attempts reached", ErrAlreadyAttempted, paper.MaxAttempts)
		}

		updates := map[string]interface{}{
			"start_time":       now,
			"deadline":         deadline,
			"max_score":        paper.TotalMarks,
			"ip_address":       nilIfBlank(client.IPAddress),
			"user_agent":       nilIfBlank(client.UserAgent),
			"browser_metadata": metadata,
		}

		if pending != nil {
			ok, err := s.attempts.TransitionStatus(ctx, tx, pending.ID, models.AttemptNotStarted, models.AttemptInProgress, updates)
			if err != nil {
				return err
			}
			if !ok {
				return fmt.Errorf("%w: attempt %d was started concurrently", ErrAlreadyAttempted, pending.ID)
			}
			attemptID = pending.ID
			return nil
		}

		attempt := &models.TestAttempt{
			UserID:          user.ID,
			PaperID:         paper.ID,
			AttemptNumber:   len(existing) + 1,
			Status:          models.AttemptInProgress,
			StartTime:       &now,
			Deadline:        &deadline,
			MaxScore:        paper.TotalMarks,
			IPAddress:       nilIfBlank(client.IPAddress),
			UserAgent:       nilIfBlank(client.UserAgent),
			BrowserMetadata: metadata,
		}
		if err := s.attempts.Create(ctx, tx, attempt); err != nil {
			if repositories.IsDuplicateError(err) {
				return fmt.Errorf("%w: an attempt is already running", ErrAlreadyAttempted)
			}
			return err
		}
		attemptID = attempt.ID
		return nil
	})
	if err != nil {
		return nil, err
	}

	attempt, err := s.load(ctx, nil, attemptID)
	if err != nil {
		return nil, err
	}

	s.deps.publish(ctx, expired...)
	s.deps.publish(ctx, attemptEvent(events.AttemptStarted, attempt, nil, nil))
	s.deps.Lookups.InvalidateStats(ctx)
	s.deps.Logger.InfoContext(ctx, "Attempt started",
		"attempt_id", attempt.ID,
		"paper_id", paper.ID,
		"user_id", user.ID,
		"attempt_number", attempt.AttemptNumber,
		"deadline", deadline)
	return attempt, nil
}

func (s *attemptService) RecordAnswer(ctx context.Context, actor authz.Actor, attemptID uint, req *models.RecordAnswerRequest) (*models.Answer, error) {
	if err := s.deps.validate(req); err != nil {
		return nil, err
	}

	now := s.deps.now()
	var (
		answer    *models.Answer
		closedErr error
		expired   []events.Event
	)
	err := s.deps.Repo.Transaction(ctx, func(tx *gorm.DB) error {
		attempt, err := s.lock(ctx, tx, attemptID)
		if err != nil {
			return err
		}
		if err := s.deps.authorize(ctx, actor, authz.ActionAnswer, ownedBy(attempt)); err != nil {
			return err
		}
		if err := requireInProgress(attempt, "answer"); err != nil {
			return err
		}
		if attempt.IsOverdue(now) {
			result, err := s.closeLocked(ctx, tx, attempt, now, models.AttemptExpired, models.EndReasonExpired, nil)
			if err != nil {
				return err
			}
			expired = lifecycleEvents(attempt, result)
			closedErr = newStateError(ErrAttemptClosed, attempt.ID, string(result.final), "answer")
			return nil
		}

		onPaper, err := s.papers.HasQuestion(ctx, tx, attempt.PaperID, req.QuestionID)
		if err != nil {
			return err
		}
		if !onPaper {
			return fmt.Errorf("%w: question %d", ErrUnknownQuestion, req.QuestionID)
		}

		question, err := s.questions.GetByIDWithOptions(ctx, tx, req.QuestionID)
		if err != nil {
			if repositories.IsNotFoundError(err) {
				return fmt.Errorf("%w: question %d", ErrUnknownQuestion, req.QuestionID)
			}
			return err
		}
		if err := checkSelection(question, req.SelectedOptionIDs); err != nil {
			return err
		}

		answer = &models.Answer{
			TestAttemptID:    attempt.ID,
			QuestionID:       question.ID,
			TextAnswer:       req.TextAnswer,
			TimeSpentSeconds: req.TimeSpentSeconds,
		}
		answer.SetOptionIDs(req.SelectedOptionIDs)
		EvaluateAnswer(question, answer)

		return s.answers.Upsert(ctx, tx, answer)
	})
	if err != nil {
		return nil, err
	}

	s.deps.publish(ctx, expired...)
	if closedErr != nil {
		return nil, closedErr
	}

	s.deps.Logger.DebugContext(ctx, "Answer recorded", "attempt_id", attemptID, "question_id", req.QuestionID)
	if isCandidate(actor) {
		hideMarks(answer)
	}
	return answer, nil
}

// Submit scores the attempt; it completes unless free-text answers wait for a grader
func (s *attemptService) Submit(ctx context.Context, actor authz.Actor, attemptID uint) (*models.TestAttempt, error) {
	now := s.deps.now()
	var (
		published []events.Event
		closedErr error
	)
	err := s.deps.Repo.Transaction(ctx, func(tx *gorm.DB) error {
		attempt, err := s.lock(ctx, tx, attemptID)
		if err != nil {
			return err
		}
		if err := s.deps.authorize(ctx, actor, authz.ActionSubmit, ownedBy(attempt)); err != nil {
			return err
		}
		if err := requireInProgress(attempt, "submit"); err != nil {
			return err
		}

		if attempt.IsOverdue(now) {
			result, err := s.closeLocked(ctx, tx, attempt, now, models.AttemptExpired, models.EndReasonExpired, nil)
			if err != nil {
				return err
			}
			published = lifecycleEvents(attempt, result)
			closedErr = newStateError(ErrAttemptClosed, attempt.ID, string(result.final), "submit")
			return nil
		}

		result, err := s.closeLocked(ctx, tx, attempt, now, models.AttemptCompleted, models.EndReasonSubmitted, nil)
		if err != nil {
			return err
		}
		published = lifecycleEvents(attempt, result)
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.deps.publish(ctx, published...)
	s.deps.Lookups.InvalidateStats(ctx)
	if closedErr != nil {
		return nil, closedErr
	}

	attempt, err := s.load(ctx, nil, attemptID)
	if err != nil {
		return nil, err
	}
	s.deps.Logger.InfoContext(ctx, "Attempt submitted", "attempt_id", attemptID, "status", attempt.Status, "score", attempt.Score)
	return attempt, nil
}

// Expire closes an attempt whose deadline has passed
func (s *attemptService) Expire(ctx context.Context, actor authz.Actor, attemptID uint) (*models.TestAttempt, error) {
	now := s.deps.now()
	var published []events.Event
	err := s.deps.Repo.Transaction(ctx, func(tx *gorm.DB) error {
		attempt, err := s.lock(ctx, tx, attemptID)
		if err != nil {
			return err
		}
		if err := s.deps.authorize(ctx, actor, authz.ActionExpire, ownedBy(attempt)); err != nil {
			return err
		}
		if err := requireInProgress(attempt, "expire"); err != nil {
			return err
		}
		if !attempt.IsOverdue(now) {
			return newStateError(ErrInvalidState, attempt.ID, string(attempt.Status), "expire")
		}

		result, err := s.closeLocked(ctx, tx, attempt, now, models.AttemptExpired, models.EndReasonExpired, nil)
		if err != nil {
			return err
		}
		published = lifecycleEvents(attempt, result)
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.deps.publish(ctx, published...)
	s.deps.Lookups.InvalidateStats(ctx)
	return s.load(ctx, nil, attemptID)
}

// ExpireOverdue expires up to limit overdue attempts after afterID, one transaction each.
// Attempts that fail to close are skipped; the returned cursor moves past them.
func (s *attemptService) ExpireOverdue(ctx context.Context, now time.Time, afterID uint, limit int) (models.OverdueBatch, error) {
	overdue, err := s.attempts.ListOverdue(ctx, nil, now, afterID, limit)
	if err != nil {
		return models.OverdueBatch{}, fmt.Errorf("failed to list overdue attempts: %w", err)
	}

	batch := models.OverdueBatch{Scanned: len(overdue), LastID: afterID}
	expired := 0
	for _, candidate := range overdue {
		if candidate.ID > batch.LastID {
			batch.LastID = candidate.ID
		}
		var published []events.Event
		err := s.deps.Repo.Transaction(ctx, func(tx *gorm.DB) error {
			attempt, err := s.lock(ctx, tx, candidate.ID)
			if err != nil {
				return err
			}
			if !attempt.IsOverdue(now) {
				return nil
			}
			result, err := s.closeLocked(ctx, tx, attempt, now, models.AttemptExpired, models.EndReasonExpired, nil)
			if err != nil {
				return err
			}
			published = lifecycleEvents(attempt, result)
			return nil
		})
		if err != nil {
			s.deps.Logger.WarnContext(ctx, "Failed to expire attempt", "attempt_id", candidate.ID, "error", err)
			continue
		}
		if len(published) > 0 {
			expired++
			s.deps.publish(ctx, published...)
		}
	}

	if expired > 0 {
		s.deps.Lookups.InvalidateStats(ctx)
	}
	batch.Expired = expired
	return batch, nil
}

// Stop force-terminates a running attempt and scores what was recorded
func (s *attemptService) Stop(ctx context.Context, actor authz.Actor, attemptID uint, req *models.StopAttemptRequest) (*models.TestAttempt, error) {
	if err := s.deps.authorize(ctx, actor, authz.ActionStop, authz.Resource{Kind: authz.KindAttempt, ID: attemptID}); err != nil {
		return nil, err
	}
	if err := s.deps.validate(req); err != nil {
		return nil, err
	}

	now := s.deps.now()
	var published []events.Event
	err := s.deps.Repo.Transaction(ctx, func(tx *gorm.DB) error {
		attempt, err := s.lock(ctx, tx, attemptID)
		if err != nil {
			return err
		}
		if err := requireInProgress(attempt, "stop"); err != nil {
			return err
		}

		reason := strings.TrimSpace(req.Reason)
		result, err := s.closeLocked(ctx, tx, attempt, now, models.AttemptStopped, models.EndReasonStopped, map[string]interface{}{
			"is_stopped":  true,
			"stop_reason": reason,
		})
		if err != nil {
			return err
		}
		published = lifecycleEvents(attempt, result)
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.deps.publish(ctx, published...)
	s.deps.Lookups.InvalidateStats(ctx)
	s.deps.Logger.InfoContext(ctx, "Attempt stopped", "attempt_id", attemptID, "actor_id", actor.UserID)
	return s.load(ctx, nil, attemptID)
}

// Grade applies manual marks to a submitted attempt and finalizes its score
func (s *attemptService) Grade(ctx context.Context, actor authz.Actor, attemptID uint, req *models.GradeAttemptRequest) (*models.TestAttempt, error) {
	if err := s.deps.authorize(ctx, actor, authz.ActionGrade, authz.Resource{Kind: authz.KindAttempt, ID: attemptID}); err != nil {
		return nil, err
	}
	if err := s.deps.validate(req); err != nil {
		return nil, err
	}

	now := s.deps.now()
	var published []events.Event
	err := s.deps.Repo.Transaction(ctx, func(tx *gorm.DB) error {
		attempt, err := s.lock(ctx, tx, attemptID)
		if err != nil {
			return err
		}
		if attempt.Status != models.AttemptSubmitted {
			return newStateError(ErrInvalidState, attempt.ID, string(attempt.Status), "grade")
		}

		answers, err := s.answers.ListByAttempt(ctx, tx, attempt.ID)
		if err != nil {
			return err
		}
		if err := applyMarks(answers, req.Marks, actor.UserID, now); err != nil {
			return err
		}
		if err := s.answers.UpdateScores(ctx, tx, answers); err != nil {
			return err
		}

		paper, err := s.paperFor(ctx, tx, attempt)
		if err != nil {
			return err
		}
		summary := Summarize(answers, paper.TotalMarks, paper.PassingPercentage)

		graderID := actor.UserID
		ok, err := s.attempts.TransitionStatus(ctx, tx, attempt.ID, models.AttemptSubmitted, models.AttemptGraded, map[string]interface{}{
			"score":      summary.Score,
			"max_score":  summary.MaxScore,
			"percentage": summary.Percentage,
			"passed":     summary.Passed,
			"graded_by":  &graderID,
			"graded_at":  now,
		})
		if err != nil {
			return err
		}
		if !ok {
			return newStateError(ErrAttemptClosed, attempt.ID, string(attempt.Status), "grade")
		}

		attempt.Status = models.AttemptGraded
		published = []events.Event{attemptEvent(events.AttemptGraded, attempt, attempt.EndReason, &summary)}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.deps.publish(ctx, published...)
	s.deps.Lookups.InvalidateStats(ctx)
	s.deps.Logger.InfoContext(ctx, "Attempt graded", "attempt_id", attemptID, "grader_id", actor.UserID, "marks", len(req.Marks))
	return s.load(ctx, nil, attemptID)
}

func (s *attemptService) ListAnswers(ctx context.Context, actor authz.Actor, attemptID uint) ([]*models.Answer, error) {
	attempt, err := s.load(ctx, nil, attemptID)
	if err != nil {
		return nil, err
	}
	if err := s.deps.authorize(ctx, actor, authz.ActionRead, ownedBy(attempt)); err != nil {
		return nil, err
	}

	answers, err := s.answers.ListByAttempt(ctx, nil, attemptID)
	if err != nil {
		return nil, fmt.Errorf("failed to list answers: %w", err)
	}
	if answers == nil {
		answers = []*models.Answer{}
	}
	if isCandidate(actor) {
		for _, answer := range answers {
			if answer.Question != nil {
				redactQuestion(answer.Question)
			}
			if !attempt.Status.IsClosed() {
				hideMarks(answer)
			}
		}
	}
	return answers, nil
}

// TimeRemaining reports the seconds left, expiring the attempt when the deadline has passed
func (s *attemptService) TimeRemaining(ctx context.Context, actor authz.Actor, attemptID uint) (*models.TimeRemainingResponse, error) {
	attempt, err := s.load(ctx, nil, attemptID)
	if err != nil {
		return nil, err
	}
	if err := s.deps.authorize(ctx, actor, authz.ActionRead, ownedBy(attempt)); err != nil {
		return nil, err
	}

	now := s.deps.now()
	if attempt.IsOverdue(now) {
		if attempt, err = s.Expire(ctx, authz.SystemActor, attemptID); err != nil && !isStateError(err) {
			return nil, err
		}
		if attempt == nil {
			if attempt, err = s.load(ctx, nil, attemptID); err != nil {
				return nil, err
			}
		}
	}

	return &models.TimeRemainingResponse{
		AttemptID:        attempt.ID,
		Status:           attempt.Status,
		Deadline:         attempt.Deadline,
		RemainingSeconds: int64(attempt.TimeRemaining(now) / time.Second),
	}, nil
}

// ===== HELPERS =====

// closeLocked moves a locked in_progress attempt to first, scoring every answer.
// first is completed for a submission, otherwise expired or stopped; pending manual
// grading turns a submission into submitted and continues expired/stopped to submitted.
func (s *attemptService) closeLocked(ctx context.Context, tx *gorm.DB, attempt *models.TestAttempt, now time.Time, first models.AttemptStatus, reason string, extra map[string]interface{}) (*closeResult, error) {
	paper, err := s.paperFor(ctx, tx, attempt)
	if err != nil {
		return nil, err
	}
	answers, err := s.answers.ListByAttempt(ctx, tx, attempt.ID)
	if err != nil {
		return nil, err
	}
	for _, answer := range answers {
		if answer.Question != nil {
			EvaluateAnswer(answer.Question, answer)
		}
	}
	if err := s.answers.UpdateScores(ctx, tx, answers); err != nil {
		return nil, err
	}

	summary := Summarize(answers, paper.TotalMarks, paper.PassingPercentage)
	result := &closeResult{first: first, final: first, reason: reason, summary: summary}
	if summary.PendingGrading > 0 {
		if first == models.AttemptCompleted {
			result.first = models.AttemptSubmitted
		}
		result.final = models.AttemptSubmitted
	}

	updates := map[string]interface{}{
		"end_time":   now,
		"end_reason": reason,
		"score":      summary.Score,
		"max_score":  summary.MaxScore,
		"percentage": summary.Percentage,
		"passed":     summary.Passed,
	}
	for key, value := range extra {
		updates[key] = value
	}

	ok, err := s.attempts.TransitionStatus(ctx, tx, attempt.ID, models.AttemptInProgress, result.first, updates)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, newStateError(ErrAttemptClosed, attempt.ID, string(attempt.Status), "close")
	}
	if result.final != result.first {
		ok, err := s.attempts.TransitionStatus(ctx, tx, attempt.ID, result.first, result.final, nil)
		if err != nil {
			return nil, err
		}
		if !ok {
			return nil, newStateError(ErrAttemptClosed, attempt.ID, string(result.first), "close")
		}
	}

	s.deps.Logger.InfoContext(ctx, "Attempt closed",
		"attempt_id", attempt.ID,
		"status", result.final,
		"end_reason", reason,
		"score", summary.Score,
		"pending_grading", summary.PendingGrading)
	return result, nil
}

func (s *attemptService) paperFor(ctx context.Context, tx *gorm.DB, attempt *models.TestAttempt) (*models.Paper, error) {
	paper, err := s.papers.GetByID(ctx, tx, attempt.PaperID)
	if err != nil {
		if repositories.IsNotFoundError(err) {
			return nil, NewNotFoundError("paper", attempt.PaperID)
		}
		return nil, fmt.Errorf("failed to get paper: %w", err)
	}
	return paper, nil
}

func (s *attemptService) lock(ctx context.Context, tx *gorm.DB, id uint) (*models.TestAttempt, error) {
	attempt, err := s.attempts.GetByIDForUpdate(ctx, tx, id)
	if err != nil {
		return nil, s.mapError(err, id)
	}
	return attempt, nil
}

func (s *attemptService) load(ctx context.Context, tx *gorm.DB, id uint) (*models.TestAttempt, error) {
	attempt, err := s.attempts.GetByID(ctx, tx, id)
	if err != nil {
		return nil, s.mapError(err, id)
	}
	return attempt, nil
}

func (s *attemptService) mapError(err error, id uint) error {
	if repositories.IsNotFoundError(err) {
		return NewNotFoundError(attemptResource, id)
	}
	return fmt.Errorf("%s operation failed: %w", attemptResource, err)
}

// requireInProgress rejects closed attempts with AttemptClosed and unstarted ones with InvalidState
func requireInProgress(attempt *models.TestAttempt, operation string) error {
	switch {
	case attempt.Status == models.AttemptInProgress:
		return nil
	case attempt.Status.IsClosed():
		return newStateError(ErrAttemptClosed, attempt.ID, string(attempt.Status), operation)
	default:
		return newStateError(ErrInvalidState, attempt.ID, string(attempt.Status), operation)
	}
}

func checkSelection(question *models.Question, selected []uint) error {
	for _, id := range selected {
		if !question.HasOption(id) {
			return validator.Field("selected_option_ids", "contains options that do not belong to the question", selected, "option")
		}
	}
	if len(selected) > 1 && singleCorrect(question) {
		return validator.Field("selected_option_ids", "accepts a single option for this question type", selected, "single_option")
	}
	return nil
}

// applyMarks writes grader marks onto answers; every answer waiting for a grader must be covered
func applyMarks(answers []*models.Answer, marks []models.AnswerMark, graderID uint, now time.Time) error {
	byID := make(map[uint]*models.Answer, len(answers))
	for _, answer := range answers {
		byID[answer.ID] = answer
	}

	var errs validator.ValidationErrors
	covered := make(map[uint]bool, len(marks))
	for i, mark := range marks {
		field := fmt.Sprintf("marks[%d]", i)
		answer, ok := byID[mark.AnswerID]
		switch {
		case !ok:
			errs = append(errs, validator.ValidationError{Field: field + ".answer_id", Message: "does not belong to the attempt", Value: mark.AnswerID, Rule: "exists"})
			continue
		case covered[mark.AnswerID]:
			errs = append(errs, validator.ValidationError{Field: field + ".answer_id", Message: "is graded more than once", Value: mark.AnswerID, Rule: "unique"})
			continue
		}
		covered[mark.AnswerID] = true

		full := 0.0
		if answer.Question != nil {
			full = answer.Question.Marks
		}
		if mark.Marks < 0 || mark.Marks > full {
			errs = append(errs, validator.ValidationError{Field: field + ".marks", Message: fmt.Sprintf("must be between 0 and %g", full), Value: mark.Marks, Rule: "range"})
			continue
		}

		grader := graderID
		gradedAt := now
		answer.MarksObtained = mark.Marks
		answer.IsCorrect = boolPtr(mark.Marks == full)
		answer.GradedBy = &grader
		answer.GradedAt = &gradedAt
		answer.Feedback = mark.Feedback
	}

	var missing []string
	for _, answer := range answers {
		if pendingGrading(answer) && !covered[answer.ID] {
			missing = append(missing, strconv.FormatUint(uint64(answer.ID), 10))
		}
	}
	if len(missing) > 0 {
		errs = append(errs, validator.ValidationError{Field: "marks", Message: "missing grades for answers " + strings.Join(missing, ", "), Value: len(missing), Rule: "coverage"})
	}

	if len(errs) > 0 {
		return errs
	}
	return nil
}

// lifecycleEvents lists the events of one close, in transition order
func lifecycleEvents(attempt *models.TestAttempt, result *closeResult) []events.Event {
	reason := result.reason
	summary := result.summary

	var first string
	switch result.first {
	case models.AttemptCompleted:
		first = events.AttemptCompleted
	case models.AttemptExpired:
		first = events.AttemptExpired
	case models.AttemptStopped:
		first = events.AttemptStopped
	default:
		first = events.AttemptSubmitted
	}

	closed := *attempt
	closed.Status = result.first
	out := []events.Event{attemptEvent(first, &closed, &reason, &summary)}
	if result.final != result.first {
		closed.Status = result.final
		out = append(out, attemptEvent(events.AttemptSubmitted, &closed, &reason, &summary))
	}
	return out
}

func attemptEvent(eventType string, attempt *models.TestAttempt, reason *string, summary *ScoreSummary) events.Event {
	data := events.AttemptEventData{
		AttemptID: attempt.ID,
		PaperID:   attempt.PaperID,
		UserID:    attempt.UserID,
		Status:    string(attempt.Status),
		EndReason: reason,
	}
	if summary != nil {
		score, percentage, passed := summary.Score, summary.Percentage, summary.Passed
		data.Score = &score
		data.Percentage = &percentage
		data.Passed = &passed
	}
	return events.NewEvent(eventType, attempt.UserID, data)
}

func attemptFilters(query ListQuery) repositories.AttemptFilters {
	filters := repositories.AttemptFilters{
		Limit:     query.Size,
		Offset:    query.Offset(),
		SortBy:    query.SortBy,
		SortOrder: query.SortOrder,
	}
	if id, ok := uintValue(query.Equals["user_id"]); ok {
		filters.UserID = &id
	}
	if id, ok := uintValue(query.Equals["paper_id"]); ok {
		filters.PaperID = &id
	}
	if raw, ok := query.Equals["status"]; ok {
		status := models.AttemptStatus(fmt.Sprint(raw))
		if status.IsValid() {
			filters.Status = &status
		}
	}
	if t, ok := timeValue(query.Equals["date_from"]); ok {
		filters.DateFrom = &t
	}
	if t, ok := timeValue(query.Equals["date_to"]); ok {
		filters.DateTo = &t
	}
	return filters
}

func uintValue(v interface{}) (uint, bool) {
	switch t := v.(type) {
	case uint:
		return t, t > 0
	case int:
		return uint(t), t > 0
	case string:
		n, err := strconv.ParseUint(t, 10, 64)
		return uint(n), err == nil && n > 0
	}
	return 0, false
}

func timeValue(v interface{}) (time.Time, bool) {
	switch t := v.(type) {
	case time.Time:
		return t, true
	case string:
		parsed, err := time.Parse(time.RFC3339, t)
		return parsed, err == nil
	}
	return time.Time{}, false
}

func accessCodeMatches(expected, given *string) bool {
	if expected == nil || *expected == "" {
		return true
	}
	if given == nil {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(*expected), []byte(*given)) == 1
}

func encodeMetadata(metadata map[string]any) (datatypes.JSON, error) {
	if len(metadata) == 0 {
		return nil, nil
	}
	data, err := json.Marshal(metadata)
	if err != nil {
		return nil, err
	}
	return datatypes.JSON(data), nil
}

func ownedBy(attempt *models.TestAttempt) authz.Resource {
	return authz.Resource{Kind: authz.KindAttempt, ID: attempt.ID, OwnerID: attempt.UserID}
}

func isCandidate(actor authz.Actor) bool {
	return !actor.System && actor.Role == models.RoleCandidate
}

func isStateError(err error) bool {
	var stateErr *StateError
	return errors.As(err, &stateErr)
}

// redactAttempt hides the paper access code from candidates
func redactAttempt(attempt *models.TestAttempt) {
	if attempt.Paper != nil {
		attempt.Paper.AccessCode = nil
	}
}

// hideMarks keeps correctness private until the attempt closes
func hideMarks(answer *models.Answer) {
	answer.IsCorrect = nil
	answer.MarksObtained = 0
}

func nilIfBlank(s string) *string {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil
	}
	return &s
}
