package authz

import (
	"context"
	"errors"
	"fmt"

	"github.com/SAP-F-2025/examination-service/internal/models"
)

// ErrForbidden is returned when an actor may not perform an action
var ErrForbidden = errors.New("forbidden")

type Action string

const (
	ActionRead   Action = "read"
	ActionCreate Action = "create"
	ActionUpdate Action = "update"
	ActionDelete Action = "delete"
	ActionExport Action = "export"

	ActionStart  Action = "start"
	ActionAnswer Action = "answer"
	ActionSubmit Action = "submit"
	ActionExpire Action = "expire"
	ActionStop   Action = "stop"
	ActionGrade  Action = "grade"
)

type Kind string

const (
	KindDepartment     Kind = "department"
	KindFacultyMember  Kind = "faculty_member"
	KindSubject        Kind = "subject"
	KindPaperCategory  Kind = "paper_category"
	KindPaper          Kind = "paper"
	KindQuestionType   Kind = "question_type"
	KindQuestion       Kind = "question"
	KindQuestionOption Kind = "question_option"
	KindUserCategory   Kind = "user_category"
	KindUser           Kind = "user"
	KindAttempt        Kind = "test_attempt"
	KindLookup         Kind = "lookup"
	KindDashboard      Kind = "dashboard"
)

// Actor is the caller of a service operation
type Actor struct {
	UserID uint
	Role   models.UserRole
	// System marks internal callers such as the expiry sweeper
	System bool
}

// SystemActor is used by background jobs
var SystemActor = Actor{Role: models.RoleAdmin, System: true}

func (a Actor) IsAdmin() bool    { return a.System || a.Role == models.RoleAdmin }
func (a Actor) IsExaminer() bool { return a.Role == models.RoleExaminer }

// Resource identifies what is being acted on.
// OwnerID is set for attempts; Published is set for papers.
type Resource struct {
	Kind      Kind
	ID        uint
	OwnerID   uint
	Published bool
}

func (r Resource) String() string {
	if r.ID == 0 {
		return string(r.Kind)
	}
	return fmt.Sprintf("%s:%d", r.Kind, r.ID)
}

type Authorizer interface {
	Authorize(ctx context.Context, actor Actor, action Action, resource Resource) error
}

// RoleAuthorizer grants by role:
// admin everything; examiner reads everything, manages papers and questions, grades and exports;
// candidate reads published papers and lookups and drives only their own attempts.
type RoleAuthorizer struct{}

func NewRoleAuthorizer() *RoleAuthorizer {
	return &RoleAuthorizer{}
}

var examinerManaged = map[Kind]bool{
	KindPaper:          true,
	KindQuestion:       true,
	KindQuestionOption: true,
}

var candidateReadable = map[Kind]bool{
	KindLookup:        true,
	KindSubject:       true,
	KindPaperCategory: true,
	KindQuestionType:  true,
	KindDepartment:    true,
	KindUserCategory:  true,
}

func (a *RoleAuthorizer) Authorize(ctx context.Context, actor Actor, action Action, resource Resource) error {
	if a.allowed(actor, action, resource) {
		return nil
	}
	return fmt.Errorf("%w: %s cannot %s %s", ErrForbidden, roleName(actor), action, resource)
}

func (a *RoleAuthorizer) allowed(actor Actor, action Action, resource Resource) bool {
	if actor.IsAdmin() {
		return true
	}

	switch actor.Role {
	case models.RoleExaminer:
		switch action {
		case ActionRead, ActionExport, ActionGrade, ActionExpire:
			return true
		case ActionCreate, ActionUpdate, ActionDelete:
			return examinerManaged[resource.Kind]
		}
		return false

	case models.RoleCandidate:
		switch resource.Kind {
		case KindPaper:
			return action == ActionRead && resource.Published
		case KindAttempt:
			owns := resource.OwnerID != 0 && resource.OwnerID == actor.UserID
			switch action {
			case ActionStart:
				return true
			case ActionRead, ActionAnswer, ActionSubmit, ActionExpire:
				return owns
			}
			return false
		case KindUser:
			return action == ActionRead && resource.ID == actor.UserID
		}
		return action == ActionRead && candidateReadable[resource.Kind]
	}

	return false
}

func roleName(actor Actor) string {
	if actor.System {
		return "system"
	}
	if actor.Role == "" {
		return "anonymous"
	}
	return string(actor.Role)
}

type actorKey struct{}

// WithActor stores the actor on the context
func WithActor(ctx context.Context, actor Actor) context.Context {
	return context.WithValue(ctx, actorKey{}, actor)
}

// ActorFromContext returns the actor stored by WithActor
func ActorFromContext(ctx context.Context) (Actor, bool) {
	actor, ok := ctx.Value(actorKey{}).(Actor)
	return actor, ok
}
