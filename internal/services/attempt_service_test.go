package services

import (
	"context"
	"errors"
	"reflect"
	"testing"
	"time"

	"github.com/SAP-F-2025/examination-service/internal/authz"
	"github.com/SAP-F-2025/examination-service/internal/events"
	"github.com/SAP-F-2025/examination-service/internal/models"
)

type attemptFixture struct {
	*testEnv
	svc       AttemptService
	paper     *models.Paper
	q1, q2    *models.Question
	q1Right   uint
	q1Wrong   uint
	q2Right   uint
	q2Wrong   uint
	candidate authz.Actor
}

// newAttemptFixture publishes a paper with two five-mark single choice questions
func newAttemptFixture(t *testing.T) *attemptFixture {
	t.Helper()
	env := newTestEnv(t)
	single := env.questionType(t, models.TypeSingleChoice, true)
	subject := env.subject(t)

	f := &attemptFixture{testEnv: env, svc: NewAttemptService(env.deps)}
	f.q1, f.q1Right, f.q1Wrong = env.choiceQuestion(t, single, subject.ID, 5, 0)
	f.q2, f.q2Right, f.q2Wrong = env.choiceQuestion(t, single, subject.ID, 5, 0)
	f.paper = env.publishedPaper(t, subject.ID, f.q1, f.q2)
	f.candidate = env.candidate(t)
	return f
}

func (f *attemptFixture) start(t *testing.T) *models.TestAttempt {
	t.Helper()
	attempt, err := f.svc.Start(context.Background(), f.candidate, &models.StartAttemptRequest{PaperID: f.paper.ID}, models.ClientInfo{IPAddress: "10.0.0.1"})
	if err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	return attempt
}

func (f *attemptFixture) answer(t *testing.T, attemptID, questionID uint, options ...uint) *models.Answer {
	t.Helper()
	answer, err := f.svc.RecordAnswer(context.Background(), f.candidate, attemptID, &models.RecordAnswerRequest{QuestionID: questionID, SelectedOptionIDs: options})
	if err != nil {
		t.Fatalf("RecordAnswer() error = %v", err)
	}
	return answer
}

func TestAttemptService_SubmitScoresAnswers(t *testing.T) {
	f := newAttemptFixture(t)
	ctx := context.Background()

	attempt := f.start(t)
	if attempt.Status != models.AttemptInProgress {
		t.Fatalf("Start() status = %s, want in_progress", attempt.Status)
	}
	if attempt.Deadline == nil || !attempt.Deadline.Equal(f.clock.Now().Add(30*time.Minute)) {
		t.Errorf("Start() deadline = %v, want start + 30m", attempt.Deadline)
	}
	if attempt.MaxScore != 10 {
		t.Errorf("Start() max score = %v, want 10", attempt.MaxScore)
	}
	if attempt.IPAddress == nil || *attempt.IPAddress != "10.0.0.1" {
		t.Errorf("Start() ip address = %v, want 10.0.0.1", attempt.IPAddress)
	}

	f.answer(t, attempt.ID, f.q1.ID, f.q1Right)
	f.answer(t, attempt.ID, f.q2.ID, f.q2Wrong)

	f.clock.Advance(10 * time.Minute)
	submitted, err := f.svc.Submit(ctx, f.candidate, attempt.ID)
	if err != nil {
		t.Fatalf("Submit() error = %v", err)
	}

	if submitted.Status != models.AttemptCompleted {
		t.Errorf("Submit() status = %s, want completed", submitted.Status)
	}
	if submitted.Score != 5 || submitted.Percentage != 50 || !submitted.Passed {
		t.Errorf("Submit() score = %v, percentage = %v, passed = %v; want 5, 50, true", submitted.Score, submitted.Percentage, submitted.Passed)
	}
	if submitted.EndReason == nil || *submitted.EndReason != models.EndReasonSubmitted {
		t.Errorf("Submit() end reason = %v, want submitted", submitted.EndReason)
	}

	want := []string{events.AttemptStarted, events.AttemptCompleted}
	if got := f.publisher.Types(); !reflect.DeepEqual(got, want) {
		t.Errorf("published events = %v, want %v", got, want)
	}
}

func TestAttemptService_RecordAnswerReplacesPrevious(t *testing.T) {
	f := newAttemptFixture(t)
	attempt := f.start(t)

	f.answer(t, attempt.ID, f.q1.ID, f.q1Wrong)
	recorded := f.answer(t, attempt.ID, f.q1.ID, f.q1Right)
	if recorded.IsCorrect != nil || recorded.MarksObtained != 0 {
		t.Errorf("RecordAnswer() exposed marks to the candidate: correct = %v, marks = %v", recorded.IsCorrect, recorded.MarksObtained)
	}

	answers, err := f.svc.ListAnswers(context.Background(), examiner, attempt.ID)
	if err != nil {
		t.Fatalf("ListAnswers() error = %v", err)
	}
	if len(answers) != 1 {
		t.Fatalf("ListAnswers() returned %d answers, want 1", len(answers))
	}
	if got := answers[0].OptionIDs(); !reflect.DeepEqual(got, []uint{f.q1Right}) {
		t.Errorf("stored selection = %v, want [%d]", got, f.q1Right)
	}
	if answers[0].MarksObtained != 5 {
		t.Errorf("stored marks = %v, want 5", answers[0].MarksObtained)
	}
}

func TestAttemptService_RecordAnswerRejections(t *testing.T) {
	f := newAttemptFixture(t)
	ctx := context.Background()
	attempt := f.start(t)

	single := f.repo.questionTypes.all()[0]
	stray, strayRight, _ := f.choiceQuestion(t, single, f.q1.SubjectID, 1, 0)

	tests := []struct {
		name    string
		req     *models.RecordAnswerRequest
		check   func(error) bool
		wantErr string
	}{
		{
			name:    "question not on paper",
			req:     &models.RecordAnswerRequest{QuestionID: stray.ID, SelectedOptionIDs: []uint{strayRight}},
			check:   func(err error) bool { return errors.Is(err, ErrUnknownQuestion) },
			wantErr: "ErrUnknownQuestion",
		},
		{
			name:    "option of another question",
			req:     &models.RecordAnswerRequest{QuestionID: f.q1.ID, SelectedOptionIDs: []uint{f.q2Right}},
			check:   IsValidationError,
			wantErr: "validation error",
		},
		{
			name:    "two options for single choice",
			req:     &models.RecordAnswerRequest{QuestionID: f.q1.ID, SelectedOptionIDs: []uint{f.q1Right, f.q1Wrong}},
			check:   IsValidationError,
			wantErr: "validation error",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := f.svc.RecordAnswer(ctx, f.candidate, attempt.ID, tt.req)
			if !tt.check(err) {
				t.Errorf("RecordAnswer() error = %v, want %s", err, tt.wantErr)
			}
		})
	}

	t.Run("another candidate", func(t *testing.T) {
		other := f.testEnv.candidate(t)
		_, err := f.svc.RecordAnswer(ctx, other, attempt.ID, &models.RecordAnswerRequest{QuestionID: f.q1.ID, SelectedOptionIDs: []uint{f.q1Right}})
		if !errors.Is(err, ErrForbidden) {
			t.Errorf("RecordAnswer() error = %v, want ErrForbidden", err)
		}
	})
}

func TestAttemptService_ClosedAttemptRejectsChanges(t *testing.T) {
	f := newAttemptFixture(t)
	ctx := context.Background()
	attempt := f.start(t)
	f.answer(t, attempt.ID, f.q1.ID, f.q1Right)

	if _, err := f.svc.Submit(ctx, f.candidate, attempt.ID); err != nil {
		t.Fatalf("Submit() error = %v", err)
	}

	_, err := f.svc.RecordAnswer(ctx, f.candidate, attempt.ID, &models.RecordAnswerRequest{QuestionID: f.q2.ID, SelectedOptionIDs: []uint{f.q2Right}})
	if !errors.Is(err, ErrAttemptClosed) {
		t.Errorf("RecordAnswer() after submit error = %v, want ErrAttemptClosed", err)
	}
	if _, err := f.svc.Submit(ctx, f.candidate, attempt.ID); !errors.Is(err, ErrAttemptClosed) {
		t.Errorf("second Submit() error = %v, want ErrAttemptClosed", err)
	}
	if _, err := f.svc.Stop(ctx, admin, attempt.ID, &models.StopAttemptRequest{Reason: "too late"}); !errors.Is(err, ErrAttemptClosed) {
		t.Errorf("Stop() after submit error = %v, want ErrAttemptClosed", err)
	}
}

func TestAttemptService_StartLimits(t *testing.T) {
	ctx := context.Background()

	t.Run("running attempt", func(t *testing.T) {
		f := newAttemptFixture(t)
		f.start(t)
		_, err := f.svc.Start(ctx, f.candidate, &models.StartAttemptRequest{PaperID: f.paper.ID}, models.ClientInfo{})
		if !errors.Is(err, ErrAlreadyAttempted) {
			t.Errorf("Start() error = %v, want ErrAlreadyAttempted", err)
		}
	})

	t.Run("retake not allowed", func(t *testing.T) {
		f := newAttemptFixture(t)
		attempt := f.start(t)
		if _, err := f.svc.Submit(ctx, f.candidate, attempt.ID); err != nil {
			t.Fatalf("Submit() error = %v", err)
		}
		_, err := f.svc.Start(ctx, f.candidate, &models.StartAttemptRequest{PaperID: f.paper.ID}, models.ClientInfo{})
		if !errors.Is(err, ErrAlreadyAttempted) {
			t.Errorf("Start() error = %v, want ErrAlreadyAttempted", err)
		}
	})

	t.Run("retakes up to max attempts", func(t *testing.T) {
		f := newAttemptFixture(t)
		f.paper.AllowRetake = true
		f.paper.MaxAttempts = 2
		if err := f.repo.papers.Update(ctx, nil, f.paper); err != nil {
			t.Fatal(err)
		}

		for i := 1; i <= 2; i++ {
			attempt := f.start(t)
			if attempt.AttemptNumber != i {
				t.Errorf("attempt number = %d, want %d", attempt.AttemptNumber, i)
			}
			if _, err := f.svc.Submit(ctx, f.candidate, attempt.ID); err != nil {
				t.Fatalf("Submit() error = %v", err)
			}
		}
		_, err := f.svc.Start(ctx, f.candidate, &models.StartAttemptRequest{PaperID: f.paper.ID}, models.ClientInfo{})
		if !errors.Is(err, ErrAlreadyAttempted) {
			t.Errorf("third Start() error = %v, want ErrAlreadyAttempted", err)
		}
	})

	t.Run("expired attempt does not block", func(t *testing.T) {
		f := newAttemptFixture(t)
		first := f.start(t)
		f.clock.Advance(31 * time.Minute)

		second := f.start(t)
		if second.ID == first.ID {
			t.Fatal("Start() reused the expired attempt")
		}
		expired, err := f.svc.Get(ctx, admin, first.ID)
		if err != nil {
			t.Fatalf("Get() error = %v", err)
		}
		if expired.Status != models.AttemptExpired {
			t.Errorf("first attempt status = %s, want expired", expired.Status)
		}
	})
}

func TestAttemptService_StartPreconditions(t *testing.T) {
	ctx := context.Background()

	t.Run("unknown paper", func(t *testing.T) {
		f := newAttemptFixture(t)
		_, err := f.svc.Start(ctx, f.candidate, &models.StartAttemptRequest{PaperID: 999}, models.ClientInfo{})
		if !errors.Is(err, ErrNotFound) {
			t.Errorf("Start() error = %v, want ErrNotFound", err)
		}
	})

	t.Run("draft paper", func(t *testing.T) {
		f := newAttemptFixture(t)
		f.paper.Status = models.PaperDraft
		_ = f.repo.papers.Update(ctx, nil, f.paper)
		_, err := f.svc.Start(ctx, f.candidate, &models.StartAttemptRequest{PaperID: f.paper.ID}, models.ClientInfo{})
		if !errors.Is(err, ErrInvalidState) {
			t.Errorf("Start() error = %v, want ErrInvalidState", err)
		}
	})

	t.Run("outside window", func(t *testing.T) {
		f := newAttemptFixture(t)
		opens := f.clock.Now().Add(time.Hour)
		f.paper.StartTime = &opens
		_ = f.repo.papers.Update(ctx, nil, f.paper)
		_, err := f.svc.Start(ctx, f.candidate, &models.StartAttemptRequest{PaperID: f.paper.ID}, models.ClientInfo{})
		if !errors.Is(err, ErrInvalidState) {
			t.Errorf("Start() error = %v, want ErrInvalidState", err)
		}
	})

	t.Run("access code", func(t *testing.T) {
		f := newAttemptFixture(t)
		code := "open-sesame"
		f.paper.AccessCode = &code
		_ = f.repo.papers.Update(ctx, nil, f.paper)

		wrong := "guess"
		_, err := f.svc.Start(ctx, f.candidate, &models.StartAttemptRequest{PaperID: f.paper.ID, AccessCode: &wrong}, models.ClientInfo{})
		if !errors.Is(err, ErrForbidden) {
			t.Errorf("Start() with wrong code error = %v, want ErrForbidden", err)
		}
		if _, err := f.svc.Start(ctx, f.candidate, &models.StartAttemptRequest{PaperID: f.paper.ID, AccessCode: &code}, models.ClientInfo{}); err != nil {
			t.Errorf("Start() with right code error = %v", err)
		}
	})

	t.Run("user category", func(t *testing.T) {
		f := newAttemptFixture(t)
		category := &models.UserCategory{Name: "Evening"}
		_ = f.repo.userCategories.Create(ctx, nil, category)
		f.repo.papers.categories[f.paper.ID] = []uint{category.ID}

		_, err := f.svc.Start(ctx, f.candidate, &models.StartAttemptRequest{PaperID: f.paper.ID}, models.ClientInfo{})
		if !errors.Is(err, ErrForbidden) {
			t.Errorf("Start() error = %v, want ErrForbidden", err)
		}
	})

	t.Run("deadline capped by window end", func(t *testing.T) {
		f := newAttemptFixture(t)
		closes := f.clock.Now().Add(10 * time.Minute)
		f.paper.EndTime = &closes
		_ = f.repo.papers.Update(ctx, nil, f.paper)

		attempt := f.start(t)
		if attempt.Deadline == nil || !attempt.Deadline.Equal(closes) {
			t.Errorf("deadline = %v, want %v", attempt.Deadline, closes)
		}
	})
}

func TestAttemptService_PreassignedAttempt(t *testing.T) {
	f := newAttemptFixture(t)
	ctx := context.Background()

	assigned, err := f.svc.Create(ctx, admin, &models.TestAttemptCreateRequest{UserID: f.candidate.UserID, PaperID: f.paper.ID})
	if err != nil {
		t.Fatalf("Create() error = %v", err)
	}
	if assigned.Status != models.AttemptNotStarted {
		t.Fatalf("Create() status = %s, want not_started", assigned.Status)
	}
	if _, err := f.svc.Create(ctx, admin, &models.TestAttemptCreateRequest{UserID: f.candidate.UserID, PaperID: f.paper.ID}); !errors.Is(err, ErrConflict) {
		t.Errorf("second Create() error = %v, want ErrConflict", err)
	}

	started := f.start(t)
	if started.ID != assigned.ID {
		t.Errorf("Start() created attempt %d, want the assigned attempt %d", started.ID, assigned.ID)
	}
	if started.Status != models.AttemptInProgress {
		t.Errorf("Start() status = %s, want in_progress", started.Status)
	}
}

func TestAttemptService_LazyExpiry(t *testing.T) {
	f := newAttemptFixture(t)
	ctx := context.Background()
	attempt := f.start(t)
	f.answer(t, attempt.ID, f.q1.ID, f.q1Right)

	f.clock.Advance(31 * time.Minute)
	_, err := f.svc.RecordAnswer(ctx, f.candidate, attempt.ID, &models.RecordAnswerRequest{QuestionID: f.q2.ID, SelectedOptionIDs: []uint{f.q2Right}})
	if !errors.Is(err, ErrAttemptClosed) {
		t.Fatalf("RecordAnswer() past deadline error = %v, want ErrAttemptClosed", err)
	}

	expired, err := f.svc.Get(ctx, admin, attempt.ID)
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if expired.Status != models.AttemptExpired {
		t.Errorf("status = %s, want expired", expired.Status)
	}
	if expired.Score != 5 {
		t.Errorf("score = %v, want 5 from the answer recorded before the deadline", expired.Score)
	}

	want := []string{events.AttemptStarted, events.AttemptExpired}
	if got := f.publisher.Types(); !reflect.DeepEqual(got, want) {
		t.Errorf("published events = %v, want %v", got, want)
	}
}

func TestAttemptService_Expire(t *testing.T) {
	f := newAttemptFixture(t)
	ctx := context.Background()
	attempt := f.start(t)

	if _, err := f.svc.Expire(ctx, examiner, attempt.ID); !errors.Is(err, ErrInvalidState) {
		t.Errorf("Expire() before deadline error = %v, want ErrInvalidState", err)
	}

	f.clock.Advance(45 * time.Minute)
	expired, err := f.svc.Expire(ctx, examiner, attempt.ID)
	if err != nil {
		t.Fatalf("Expire() error = %v", err)
	}
	if expired.Status != models.AttemptExpired {
		t.Errorf("Expire() status = %s, want expired", expired.Status)
	}
	if expired.EndReason == nil || *expired.EndReason != models.EndReasonExpired {
		t.Errorf("Expire() end reason = %v, want expired", expired.EndReason)
	}
}

func TestAttemptService_ExpireOverdue(t *testing.T) {
	f := newAttemptFixture(t)
	ctx := context.Background()

	f.start(t)
	other := f.testEnv.candidate(t)
	if _, err := f.svc.Start(ctx, other, &models.StartAttemptRequest{PaperID: f.paper.ID}, models.ClientInfo{}); err != nil {
		t.Fatalf("Start() error = %v", err)
	}

	if batch, err := f.svc.ExpireOverdue(ctx, f.clock.Now(), 0, 10); err != nil || batch.Expired != 0 {
		t.Errorf("ExpireOverdue() before deadline = %+v, %v; want none, nil", batch, err)
	}

	f.clock.Advance(time.Hour)
	batch, err := f.svc.ExpireOverdue(ctx, f.clock.Now(), 0, 10)
	if err != nil {
		t.Fatalf("ExpireOverdue() error = %v", err)
	}
	if batch.Expired != 2 || batch.Scanned != 2 {
		t.Errorf("ExpireOverdue() = %+v, want 2 scanned and expired", batch)
	}
	if batch, _ := f.svc.ExpireOverdue(ctx, f.clock.Now(), 0, 10); batch.Expired != 0 {
		t.Errorf("second ExpireOverdue() = %+v, want none", batch)
	}
}

func TestAttemptService_ExpireOverdueCursor(t *testing.T) {
	f := newAttemptFixture(t)
	ctx := context.Background()

	first := f.start(t)
	second, err := f.svc.Start(ctx, f.testEnv.candidate(t), &models.StartAttemptRequest{PaperID: f.paper.ID}, models.ClientInfo{})
	if err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	f.clock.Advance(time.Hour)

	batch, err := f.svc.ExpireOverdue(ctx, f.clock.Now(), 0, 1)
	if err != nil {
		t.Fatalf("ExpireOverdue() error = %v", err)
	}
	if batch.Expired != 1 || batch.LastID != first.ID {
		t.Errorf("ExpireOverdue() = %+v, want first attempt %d", batch, first.ID)
	}

	batch, err = f.svc.ExpireOverdue(ctx, f.clock.Now(), batch.LastID, 1)
	if err != nil {
		t.Fatalf("ExpireOverdue() error = %v", err)
	}
	if batch.Expired != 1 || batch.LastID != second.ID {
		t.Errorf("ExpireOverdue() after cursor = %+v, want second attempt %d", batch, second.ID)
	}
}

func TestAttemptService_TimeRemaining(t *testing.T) {
	f := newAttemptFixture(t)
	ctx := context.Background()
	attempt := f.start(t)

	f.clock.Advance(5 * time.Minute)
	remaining, err := f.svc.TimeRemaining(ctx, f.candidate, attempt.ID)
	if err != nil {
		t.Fatalf("TimeRemaining() error = %v", err)
	}
	if remaining.RemainingSeconds != 25*60 {
		t.Errorf("TimeRemaining() = %d, want %d", remaining.RemainingSeconds, 25*60)
	}

	f.clock.Advance(time.Hour)
	remaining, err = f.svc.TimeRemaining(ctx, f.candidate, attempt.ID)
	if err != nil {
		t.Fatalf("TimeRemaining() past deadline error = %v", err)
	}
	if remaining.RemainingSeconds != 0 || remaining.Status != models.AttemptExpired {
		t.Errorf("TimeRemaining() = %d in %s, want 0 in expired", remaining.RemainingSeconds, remaining.Status)
	}
}

func TestAttemptService_ManualGrading(t *testing.T) {
	f := newAttemptFixture(t)
	ctx := context.Background()

	essayType := f.questionType(t, models.TypeEssay, false)
	essay := f.textQuestion(t, essayType, f.q1.SubjectID, 10)
	f.repo.papers.links[f.paper.ID] = append(f.repo.papers.links[f.paper.ID], models.PaperQuestion{PaperID: f.paper.ID, QuestionID: essay.ID, OrderIndex: 3})
	f.paper.TotalMarks = 20
	_ = f.repo.papers.Update(ctx, nil, f.paper)

	attempt := f.start(t)
	f.answer(t, attempt.ID, f.q1.ID, f.q1Right)
	text := "Energy is conserved."
	if _, err := f.svc.RecordAnswer(ctx, f.candidate, attempt.ID, &models.RecordAnswerRequest{QuestionID: essay.ID, TextAnswer: &text}); err != nil {
		t.Fatalf("RecordAnswer() error = %v", err)
	}

	submitted, err := f.svc.Submit(ctx, f.candidate, attempt.ID)
	if err != nil {
		t.Fatalf("Submit() error = %v", err)
	}
	if submitted.Status != models.AttemptSubmitted {
		t.Fatalf("Submit() status = %s, want submitted", submitted.Status)
	}
	if submitted.Passed {
		t.Error("Submit() passed an attempt that still waits for grading")
	}

	answers, _ := f.svc.ListAnswers(ctx, examiner, attempt.ID)
	var choiceAnswer, essayAnswer *models.Answer
	for _, a := range answers {
		if a.QuestionID == essay.ID {
			essayAnswer = a
		} else {
			choiceAnswer = a
		}
	}
	if essayAnswer == nil || !essayAnswer.NeedsManualGrading {
		t.Fatalf("essay answer = %+v, want one waiting for grading", essayAnswer)
	}

	invalid := []struct {
		name  string
		marks []models.AnswerMark
	}{
		{name: "above question marks", marks: []models.AnswerMark{{AnswerID: essayAnswer.ID, Marks: 11}}},
		{name: "essay not covered", marks: []models.AnswerMark{{AnswerID: choiceAnswer.ID, Marks: 5}}},
		{name: "foreign answer", marks: []models.AnswerMark{{AnswerID: 999, Marks: 1}, {AnswerID: essayAnswer.ID, Marks: 1}}},
		{name: "graded twice", marks: []models.AnswerMark{{AnswerID: essayAnswer.ID, Marks: 1}, {AnswerID: essayAnswer.ID, Marks: 2}}},
	}
	for _, tt := range invalid {
		t.Run(tt.name, func(t *testing.T) {
			_, err := f.svc.Grade(ctx, examiner, attempt.ID, &models.GradeAttemptRequest{Marks: tt.marks})
			if !IsValidationError(err) {
				t.Errorf("Grade() error = %v, want validation error", err)
			}
		})
	}

	if _, err := f.svc.Grade(ctx, f.candidate, attempt.ID, &models.GradeAttemptRequest{Marks: []models.AnswerMark{{AnswerID: essayAnswer.ID, Marks: 7}}}); !errors.Is(err, ErrForbidden) {
		t.Errorf("Grade() by candidate error = %v, want ErrForbidden", err)
	}

	feedback := "Good"
	graded, err := f.svc.Grade(ctx, examiner, attempt.ID, &models.GradeAttemptRequest{Marks: []models.AnswerMark{{AnswerID: essayAnswer.ID, Marks: 7, Feedback: &feedback}}})
	if err != nil {
		t.Fatalf("Grade() error = %v", err)
	}
	if graded.Status != models.AttemptGraded {
		t.Errorf("Grade() status = %s, want graded", graded.Status)
	}
	if graded.Score != 12 || graded.Percentage != 60 || !graded.Passed {
		t.Errorf("Grade() score = %v, percentage = %v, passed = %v; want 12, 60, true", graded.Score, graded.Percentage, graded.Passed)
	}
	if graded.GradedBy == nil || *graded.GradedBy != examiner.UserID {
		t.Errorf("Grade() graded by = %v, want %d", graded.GradedBy, examiner.UserID)
	}

	if _, err := f.svc.Grade(ctx, examiner, attempt.ID, &models.GradeAttemptRequest{Marks: []models.AnswerMark{{AnswerID: essayAnswer.ID, Marks: 8}}}); !errors.Is(err, ErrInvalidState) {
		t.Errorf("second Grade() error = %v, want ErrInvalidState", err)
	}

	want := []string{events.AttemptStarted, events.AttemptSubmitted, events.AttemptGraded}
	if got := f.publisher.Types(); !reflect.DeepEqual(got, want) {
		t.Errorf("published events = %v, want %v", got, want)
	}
}

func TestAttemptService_StopWithPendingEssay(t *testing.T) {
	f := newAttemptFixture(t)
	ctx := context.Background()

	essayType := f.questionType(t, models.TypeEssay, false)
	essay := f.textQuestion(t, essayType, f.q1.SubjectID, 10)
	f.repo.papers.links[f.paper.ID] = append(f.repo.papers.links[f.paper.ID], models.PaperQuestion{PaperID: f.paper.ID, QuestionID: essay.ID, OrderIndex: 3})

	attempt := f.start(t)
	text := "Partial answer"
	if _, err := f.svc.RecordAnswer(ctx, f.candidate, attempt.ID, &models.RecordAnswerRequest{QuestionID: essay.ID, TextAnswer: &text}); err != nil {
		t.Fatalf("RecordAnswer() error = %v", err)
	}

	if _, err := f.svc.Stop(ctx, examiner, attempt.ID, &models.StopAttemptRequest{Reason: "left the room"}); !errors.Is(err, ErrForbidden) {
		t.Errorf("Stop() by examiner error = %v, want ErrForbidden", err)
	}

	stopped, err := f.svc.Stop(ctx, admin, attempt.ID, &models.StopAttemptRequest{Reason: "left the room"})
	if err != nil {
		t.Fatalf("Stop() error = %v", err)
	}
	if stopped.Status != models.AttemptSubmitted {
		t.Errorf("Stop() status = %s, want submitted", stopped.Status)
	}
	if !stopped.IsStopped || stopped.StopReason == nil || *stopped.StopReason != "left the room" {
		t.Errorf("Stop() is_stopped = %v, reason = %v", stopped.IsStopped, stopped.StopReason)
	}

	want := []string{events.AttemptStarted, events.AttemptStopped, events.AttemptSubmitted}
	if got := f.publisher.Types(); !reflect.DeepEqual(got, want) {
		t.Errorf("published events = %v, want %v", got, want)
	}
}

func TestAttemptService_NegativeMarksFloor(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	single := env.questionType(t, models.TypeSingleChoice, true)
	subject := env.subject(t)
	q, _, wrong := env.choiceQuestion(t, single, subject.ID, 5, 2)
	paper := env.publishedPaper(t, subject.ID, q)
	candidate := env.candidate(t)
	svc := NewAttemptService(env.deps)

	attempt, err := svc.Start(ctx, candidate, &models.StartAttemptRequest{PaperID: paper.ID}, models.ClientInfo{})
	if err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	if _, err := svc.RecordAnswer(ctx, candidate, attempt.ID, &models.RecordAnswerRequest{QuestionID: q.ID, SelectedOptionIDs: []uint{wrong}}); err != nil {
		t.Fatalf("RecordAnswer() error = %v", err)
	}
	submitted, err := svc.Submit(ctx, candidate, attempt.ID)
	if err != nil {
		t.Fatalf("Submit() error = %v", err)
	}
	if submitted.Score != 0 || submitted.Passed {
		t.Errorf("Submit() score = %v, passed = %v; want 0, false", submitted.Score, submitted.Passed)
	}

	answers, _ := svc.ListAnswers(ctx, admin, attempt.ID)
	if len(answers) != 1 || answers[0].MarksObtained != -2 {
		t.Errorf("answer marks = %v, want -2", answers)
	}
}

func TestAttemptService_CandidateVisibility(t *testing.T) {
	f := newAttemptFixture(t)
	ctx := context.Background()
	attempt := f.start(t)
	f.answer(t, attempt.ID, f.q1.ID, f.q1Right)

	other := f.testEnv.candidate(t)
	if _, err := f.svc.Get(ctx, other, attempt.ID); !errors.Is(err, ErrForbidden) {
		t.Errorf("Get() by another candidate error = %v, want ErrForbidden", err)
	}

	page, err := f.svc.List(ctx, other, ListQuery{})
	if err != nil {
		t.Fatalf("List() error = %v", err)
	}
	if page.TotalElements != 0 {
		t.Errorf("List() by another candidate total = %d, want 0", page.TotalElements)
	}

	answers, err := f.svc.ListAnswers(ctx, f.candidate, attempt.ID)
	if err != nil {
		t.Fatalf("ListAnswers() error = %v", err)
	}
	for _, a := range answers {
		if a.MarksObtained != 0 || a.IsCorrect != nil {
			t.Errorf("open attempt exposed marks: %+v", a)
		}
		if a.Question != nil {
			for _, o := range a.Question.Options {
				if o.IsCorrect {
					t.Errorf("answer key exposed for option %d", o.ID)
				}
			}
		}
	}
}

// interleave moves the attempt to status right before the service's conditional update
func (f *attemptFixture) interleave(t *testing.T, status models.AttemptStatus) {
	t.Helper()
	f.repo.attempts.beforeTransition = func(id uint) {
		a, err := f.repo.attempts.GetByID(context.Background(), nil, id)
		if err != nil {
			t.Fatalf("GetByID() error = %v", err)
		}
		a.Status = status
		if err := f.repo.attempts.Update(context.Background(), nil, a); err != nil {
			t.Fatalf("Update() error = %v", err)
		}
	}
}

func TestAttemptService_LostTransitionRace(t *testing.T) {
	ctx := context.Background()

	tests := []struct {
		name string
		run  func(f *attemptFixture, attemptID uint) error
	}{
		{name: "submit", run: func(f *attemptFixture, attemptID uint) error {
			_, err := f.svc.Submit(ctx, f.candidate, attemptID)
			return err
		}},
		{name: "expire", run: func(f *attemptFixture, attemptID uint) error {
			f.clock.Advance(45 * time.Minute)
			_, err := f.svc.Expire(ctx, examiner, attemptID)
			return err
		}},
		{name: "stop", run: func(f *attemptFixture, attemptID uint) error {
			_, err := f.svc.Stop(ctx, admin, attemptID, &models.StopAttemptRequest{Reason: "fire alarm"})
			return err
		}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newAttemptFixture(t)
			attempt := f.start(t)
			f.answer(t, attempt.ID, f.q1.ID, f.q1Right)

			f.interleave(t, models.AttemptSubmitted)
			if err := tt.run(f, attempt.ID); !errors.Is(err, ErrAttemptClosed) {
				t.Fatalf("%s error = %v, want %v", tt.name, err, ErrAttemptClosed)
			}

			want := []string{events.AttemptStarted}
			if got := f.publisher.Types(); !reflect.DeepEqual(got, want) {
				t.Errorf("published events = %v, want %v", got, want)
			}
		})
	}

	t.Run("grade", func(t *testing.T) {
		f := newAttemptFixture(t)
		essayType := f.questionType(t, models.TypeEssay, false)
		essay := f.textQuestion(t, essayType, f.q1.SubjectID, 10)
		f.repo.papers.links[f.paper.ID] = append(f.repo.papers.links[f.paper.ID], models.PaperQuestion{PaperID: f.paper.ID, QuestionID: essay.ID, OrderIndex: 3})

		attempt := f.start(t)
		text := "Momentum is conserved."
		recorded, err := f.svc.RecordAnswer(ctx, f.candidate, attempt.ID, &models.RecordAnswerRequest{QuestionID: essay.ID, TextAnswer: &text})
		if err != nil {
			t.Fatalf("RecordAnswer() error = %v", err)
		}
		if _, err := f.svc.Submit(ctx, f.candidate, attempt.ID); err != nil {
			t.Fatalf("Submit() error = %v", err)
		}

		f.interleave(t, models.AttemptGraded)
		_, err = f.svc.Grade(ctx, examiner, attempt.ID, &models.GradeAttemptRequest{Marks: []models.AnswerMark{{AnswerID: recorded.ID, Marks: 6}}})
		if !errors.Is(err, ErrAttemptClosed) {
			t.Fatalf("Grade() error = %v, want %v", err, ErrAttemptClosed)
		}

		want := []string{events.AttemptStarted, events.AttemptSubmitted}
		if got := f.publisher.Types(); !reflect.DeepEqual(got, want) {
			t.Errorf("published events = %v, want %v", got, want)
		}
	})
}
