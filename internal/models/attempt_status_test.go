package models

import (
	"errors"
	"testing"
	"time"
)

func TestAttemptStatus_Transition(t *testing.T) {
	allowed := map[AttemptStatus]map[AttemptStatus]bool{
		AttemptNotStarted: {AttemptInProgress: true},
		AttemptInProgress: {AttemptCompleted: true, AttemptSubmitted: true, AttemptExpired: true, AttemptStopped: true},
		AttemptExpired:    {AttemptSubmitted: true},
		AttemptStopped:    {AttemptSubmitted: true},
		AttemptSubmitted:  {AttemptGraded: true},
	}

	for _, from := range AllAttemptStatuses() {
		for _, to := range AllAttemptStatuses() {
			want := allowed[from][to]
			err := from.Transition(to)
			if want && err != nil {
				t.Errorf("%s -> %s: unexpected error %v", from, to, err)
			}
			if !want {
				var transitionErr *TransitionError
				if !errors.As(err, &transitionErr) {
					t.Errorf("%s -> %s: expected TransitionError, got %v", from, to, err)
				}
			}
		}
	}
}

func TestAttemptStatus_IsClosed(t *testing.T) {
	tests := []struct {
		status AttemptStatus
		closed bool
	}{
		{AttemptNotStarted, false},
		{AttemptInProgress, false},
		{AttemptCompleted, true},
		{AttemptSubmitted, true},
		{AttemptGraded, true},
		{AttemptExpired, true},
		{AttemptStopped, true},
	}

	for _, tt := range tests {
		t.Run(string(tt.status), func(t *testing.T) {
			if got := tt.status.IsClosed(); got != tt.closed {
				t.Errorf("IsClosed() = %v, want %v", got, tt.closed)
			}
		})
	}
}

func TestAttemptStatus_IsValid(t *testing.T) {
	if AttemptStatus("timeout").IsValid() {
		t.Error("unknown status reported valid")
	}
	if !AttemptGraded.IsValid() {
		t.Error("graded reported invalid")
	}
}

func TestTestAttempt_Deadline(t *testing.T) {
	now := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	deadline := now.Add(30 * time.Minute)
	attempt := &TestAttempt{Status: AttemptInProgress, Deadline: &deadline}

	if attempt.IsOverdue(now) {
		t.Error("attempt overdue before deadline")
	}
	if got := attempt.TimeRemaining(now); got != 30*time.Minute {
		t.Errorf("TimeRemaining() = %v, want 30m", got)
	}

	later := deadline.Add(time.Second)
	if !attempt.IsOverdue(later) {
		t.Error("attempt not overdue after deadline")
	}
	if got := attempt.TimeRemaining(later); got != 0 {
		t.Errorf("TimeRemaining() after deadline = %v, want 0", got)
	}

	attempt.Status = AttemptCompleted
	if attempt.IsOverdue(later) {
		t.Error("completed attempt reported overdue")
	}
}

func TestAnswer_OptionIDs(t *testing.T) {
	var answer Answer
	if ids := answer.OptionIDs(); ids != nil {
		t.Fatalf("empty answer OptionIDs() = %v", ids)
	}

	answer.SetOptionIDs([]uint{3, 7})
	ids := answer.OptionIDs()
	if len(ids) != 2 || ids[0] != 3 || ids[1] != 7 {
		t.Errorf("OptionIDs() = %v, want [3 7]", ids)
	}

	answer.SetOptionIDs(nil)
	if answer.SelectedOptionIDs != nil {
		t.Error("SetOptionIDs(nil) kept data")
	}
}

func TestPaper_AccessRules(t *testing.T) {
	start := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	end := start.Add(2 * time.Hour)
	paper := &Paper{StartTime: &start, EndTime: &end}

	if paper.IsOpenAt(start.Add(-time.Minute)) {
		t.Error("paper open before start")
	}
	if !paper.IsOpenAt(start.Add(time.Hour)) {
		t.Error("paper closed inside window")
	}
	if paper.IsOpenAt(end.Add(time.Minute)) {
		t.Error("paper open after end")
	}

	if !paper.AllowsCategory(nil) {
		t.Error("paper without categories should be open")
	}
	paper.UserCategories = []UserCategory{{ID: 4}}
	other := uint(5)
	own := uint(4)
	if paper.AllowsCategory(nil) || paper.AllowsCategory(&other) {
		t.Error("restricted paper allowed wrong category")
	}
	if !paper.AllowsCategory(&own) {
		t.Error("restricted paper rejected listed category")
	}

	if !PaperDraft.CanTransitionTo(PaperPublished) || PaperArchived.CanTransitionTo(PaperPublished) {
		t.Error("paper transitions wrong")
	}
}
