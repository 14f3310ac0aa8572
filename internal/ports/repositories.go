package ports

import (
	"context"
	"time"

	"review-console/internal/domain"
)

// ListFilter narrows GET /applications on the remote side. Empty fields are
// omitted from the query string.
type ListFilter struct {
	Category domain.Category
	Status   domain.Status
}

type ApplicationGateway interface {
	List(ctx context.Context, cred domain.Credential, filter ListFilter) ([]domain.Application, error)
	Transition(ctx context.Context, cred domain.Credential, appID string, kind domain.TransitionKind) error
	// Ping issues the unauthenticated list used as a health check.
	Ping(ctx context.Context) error
}

type AccountGateway interface {
	CreateAccount(ctx context.Context, cred domain.Credential, account domain.Account) error
}

type DecisionRepository interface {
	Record(ctx context.Context, decision domain.Decision) error
	ListByApplication(ctx context.Context, appID string) ([]domain.Decision, error)
}

// TransitionLocker hands out short leases so two operators cannot drive the
// same application at the same time.
type TransitionLocker interface {
	Acquire(ctx context.Context, appID string, ttl time.Duration) (release func(context.Context), err error)
}

type Notifier interface {
	NotifyApproved(ctx context.Context, app domain.Application, account domain.Account) error
}

type Logger interface {
	Info(ctx context.Context, msg string, args ...any)
	Warn(ctx context.Context, msg string, args ...any)
	Error(ctx context.Context, msg string, args ...any)
	Debug(ctx context.Context, msg string, args ...any)
}

type Metrics interface {
	TransitionCompleted(kind domain.TransitionKind, source domain.DecisionSource, outcome domain.DecisionOutcome)
	AccountProvisioned(outcome string)
	BulkCompleted(kind domain.TransitionKind, succeeded, failed int)
	UndoInvoked(outcome domain.DecisionOutcome)
}
