package models

import "fmt"

type AttemptStatus string

const (
	AttemptNotStarted AttemptStatus = "not_started"
	AttemptInProgress AttemptStatus = "in_progress"
	AttemptCompleted  AttemptStatus = "completed"
	AttemptSubmitted  AttemptStatus = "submitted"
	AttemptGraded     AttemptStatus = "graded"
	AttemptExpired    AttemptStatus = "expired"
	AttemptStopped    AttemptStatus = "stopped"
)

// attemptTransitions lists every permitted status change; anything else is rejected.
// expired and stopped attempts move on to submitted when answers still need manual grading.
var attemptTransitions = map[AttemptStatus][]AttemptStatus{
	AttemptNotStarted: {AttemptInProgress},
	AttemptInProgress: {AttemptCompleted, AttemptSubmitted, AttemptExpired, AttemptStopped},
	AttemptExpired:    {AttemptSubmitted},
	AttemptStopped:    {AttemptSubmitted},
	AttemptSubmitted:  {AttemptGraded},
}

// AllAttemptStatuses returns the statuses in lifecycle order
func AllAttemptStatuses() []AttemptStatus {
	return []AttemptStatus{
		AttemptNotStarted,
		AttemptInProgress,
		AttemptCompleted,
		AttemptExpired,
		AttemptStopped,
		AttemptSubmitted,
		AttemptGraded,
	}
}

func (s AttemptStatus) IsValid() bool {
	for _, status := range AllAttemptStatuses() {
		if s == status {
			return true
		}
	}
	return false
}

// IsClosed reports whether answers may no longer be recorded
func (s AttemptStatus) IsClosed() bool {
	switch s {
	case AttemptCompleted, AttemptSubmitted, AttemptGraded, AttemptExpired, AttemptStopped:
		return true
	}
	return false
}

func (s AttemptStatus) CanTransitionTo(next AttemptStatus) bool {
	for _, allowed := range attemptTransitions[s] {
		if allowed == next {
			return true
		}
	}
	return false
}

// Transition validates s -> next against the transition table
func (s AttemptStatus) Transition(next AttemptStatus) error {
	if !s.CanTransitionTo(next) {
		return &TransitionError{From: s, To: next}
	}
	return nil
}

// TransitionError is returned for a status change missing from the table
type TransitionError struct {
	From AttemptStatus
	To   AttemptStatus
}

func (e *TransitionError) Error() string {
	return fmt.Sprintf("attempt cannot move from %s to %s", e.From, e.To)
}
