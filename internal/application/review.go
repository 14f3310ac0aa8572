package application

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"review-console/internal/domain"
	"review-console/internal/ports"
)

const DefaultLeaseTTL = 30 * time.Second

type ReviewDeps struct {
	Applications ports.ApplicationGateway
	Provisioner  *AccountProvisioner
	Journal      ports.DecisionRepository
	Locker       ports.TransitionLocker
	LeaseTTL     time.Duration
	Metrics      ports.Metrics
	Logger       ports.Logger
}

// ReviewService drives single application transitions: the remote status
// change, the chained account step on approval and the compensation entry.
type ReviewService struct {
	apps        ports.ApplicationGateway
	provisioner *AccountProvisioner
	journal     ports.DecisionRepository
	locker      ports.TransitionLocker
	leaseTTL    time.Duration
	metrics     ports.Metrics
	logger      ports.Logger
	now         func() time.Time
}

func NewReviewService(deps ReviewDeps) *ReviewService {
	s := &ReviewService{
		apps:        deps.Applications,
		provisioner: deps.Provisioner,
		journal:     deps.Journal,
		locker:      deps.Locker,
		leaseTTL:    deps.LeaseTTL,
		metrics:     orMetrics(deps.Metrics),
		logger:      orLogger(deps.Logger),
		now:         func() time.Time { return time.Now().UTC() },
	}
	if s.journal == nil {
		s.journal = noopJournal{}
	}
	if s.locker == nil {
		s.locker = noopLocker{}
	}
	if s.leaseTTL <= 0 {
		s.leaseTTL = DefaultLeaseTTL
	}
	return s
}

// ReviewOutcome is what the operator sees after a single transition.
type ReviewOutcome struct {
	ApplicationID string                    `json:"application_id"`
	Status        domain.Status             `json:"status"`
	Account       *domain.Account           `json:"account,omitempty"`
	Warnings      []string                  `json:"warnings"`
	Compensation  *domain.CompensationEntry `json:"-"`
}

// CanTransition reports whether kind may be applied to an application in
// status from. Only pending applications can be decided.
func CanTransition(from domain.Status, kind domain.TransitionKind) error {
	if _, err := domain.ParseTransitionKind(string(kind)); err != nil {
		return err
	}
	if from != domain.StatusPending {
		return fmt.Errorf("%w: cannot %s an application that is %s", domain.ErrIllegalTransition, kind, from)
	}
	return nil
}

func (s *ReviewService) Approve(ctx context.Context, cred domain.Credential, app domain.Application) (ReviewOutcome, error) {
	return s.Transition(ctx, cred, app, domain.TransitionApprove)
}

func (s *ReviewService) Reject(ctx context.Context, cred domain.Credential, app domain.Application) (ReviewOutcome, error) {
	return s.Transition(ctx, cred, app, domain.TransitionReject)
}

// Transition applies kind to app. When the approval succeeds but the account
// step fails, the outcome is returned together with a
// *domain.ProvisioningError and still carries the compensation entry.
func (s *ReviewService) Transition(ctx context.Context, cred domain.Credential, app domain.Application, kind domain.TransitionKind) (ReviewOutcome, error) {
	if err := CanTransition(app.Status, kind); err != nil {
		return ReviewOutcome{}, err
	}
	if !cred.Present() {
		return ReviewOutcome{}, domain.ErrAuthRequired
	}

	var account domain.Account
	if kind == domain.TransitionApprove {
		var err error
		if account, err = s.provisioner.Prepare(app); err != nil {
			return ReviewOutcome{}, err
		}
	}

	if err := s.RemoteTransition(ctx, cred, app.ID, kind, domain.SourceSingle); err != nil {
		return ReviewOutcome{}, err
	}

	outcome := ReviewOutcome{
		ApplicationID: app.ID,
		Status:        kind.Target(),
		Warnings:      []string{},
		Compensation:  s.compensation(app, kind),
	}
	if kind != domain.TransitionApprove {
		return outcome, nil
	}

	result, err := s.provisioner.Create(ctx, cred, app, account)
	outcome.Warnings = append(outcome.Warnings, result.Warnings...)
	if err != nil {
		return outcome, err
	}
	if result.Created {
		outcome.Account = &result.Account
	}
	return outcome, nil
}

// RemoteTransition performs only the remote status change under the
// application's lease and journals the attempt. Bulk and undo reuse it.
func (s *ReviewService) RemoteTransition(ctx context.Context, cred domain.Credential, appID string, kind domain.TransitionKind, source domain.DecisionSource) error {
	if !cred.Present() {
		return domain.ErrAuthRequired
	}
	release, err := s.locker.Acquire(ctx, appID, s.leaseTTL)
	if err != nil {
		return err
	}
	defer release(context.WithoutCancel(ctx))

	s.logger.Info(ctx, "transition started", "application_id", appID, "kind", kind, "source", source)
	err = s.apps.Transition(ctx, cred, appID, kind)

	decision := domain.Decision{
		ID:            uuid.NewString(),
		ApplicationID: appID,
		Kind:          kind,
		Source:        source,
		Operator:      cred.Subject,
		Outcome:       domain.OutcomeSucceeded,
		At:            s.now(),
	}
	if err != nil {
		decision.Outcome = domain.OutcomeFailed
		decision.Message = err.Error()
		s.logger.Error(ctx, "transition failed", "application_id", appID, "kind", kind, "source", source, "error", err)
	} else {
		s.logger.Info(ctx, "transition succeeded", "application_id", appID, "kind", kind, "source", source)
	}
	s.metrics.TransitionCompleted(kind, source, decision.Outcome)
	if jerr := s.journal.Record(ctx, decision); jerr != nil {
		s.logger.Warn(ctx, "decision not journaled", "application_id", appID, "error", jerr)
	}
	return err
}

// compensation builds the undo entry for a completed transition: the opposite
// remote transition, without provisioning and without restoring timestamps.
func (s *ReviewService) compensation(app domain.Application, kind domain.TransitionKind) *domain.CompensationEntry {
	reverse := kind.Opposite()
	return &domain.CompensationEntry{
		ID:       uuid.NewString(),
		Subject:  app,
		Reverses: kind,
		Reverse: func(ctx context.Context, cred domain.Credential) error {
			return s.RemoteTransition(ctx, cred, app.ID, reverse, domain.SourceUndo)
		},
		CreatedAt: s.now(),
	}
}

// History lists the journaled decisions for one application.
func (s *ReviewService) History(ctx context.Context, appID string) ([]domain.Decision, error) {
	if appID == "" {
		return nil, domain.ErrInvalidInput
	}
	return s.journal.ListByApplication(ctx, appID)
}

// IsProvisioningFailure reports whether err means the approval went through
// but the account must be provisioned manually.
func IsProvisioningFailure(err error) bool {
	var perr *domain.ProvisioningError
	return errors.As(err, &perr)
}
