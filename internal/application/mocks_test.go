package application

import (
	"context"
	"sync"
	"time"

	"github.com/stretchr/testify/mock"

	"review-console/internal/domain"
	"review-console/internal/ports"
)

type appGatewayMock struct{ mock.Mock }

func (m *appGatewayMock) List(ctx context.Context, cred domain.Credential, filter ports.ListFilter) ([]domain.Application, error) {
	args := m.Called(ctx, cred, filter)
	return args.Get(0).([]domain.Application), args.Error(1)
}

func (m *appGatewayMock) Transition(ctx context.Context, cred domain.Credential, appID string, kind domain.TransitionKind) error {
	args := m.Called(ctx, cred, appID, kind)
	return args.Error(0)
}

func (m *appGatewayMock) Ping(ctx context.Context) error {
	args := m.Called(ctx)
	return args.Error(0)
}

type accountGatewayMock struct{ mock.Mock }

func (m *accountGatewayMock) CreateAccount(ctx context.Context, cred domain.Credential, account domain.Account) error {
	args := m.Called(ctx, cred, account)
	return args.Error(0)
}

type notifierMock struct{ mock.Mock }

func (m *notifierMock) NotifyApproved(ctx context.Context, app domain.Application, account domain.Account) error {
	args := m.Called(ctx, app, account)
	return args.Error(0)
}

type journalMock struct {
	mu        sync.Mutex
	decisions []domain.Decision
}

func (j *journalMock) Record(_ context.Context, d domain.Decision) error {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.decisions = append(j.decisions, d)
	return nil
}

func (j *journalMock) ListByApplication(_ context.Context, appID string) ([]domain.Decision, error) {
	j.mu.Lock()
	defer j.mu.Unlock()
	var out []domain.Decision
	for i := len(j.decisions) - 1; i >= 0; i-- {
		if j.decisions[i].ApplicationID == appID {
			out = append(out, j.decisions[i])
		}
	}
	return out, nil
}

// heldLocker refuses every id in held.
type heldLocker struct{ held map[string]bool }

func (l heldLocker) Acquire(_ context.Context, appID string, _ time.Duration) (func(context.Context), error) {
	if l.held[appID] {
		return nil, domain.ErrTransitionInFlight
	}
	return func(context.Context) {}, nil
}

var operator = domain.Credential{Token: "token-1", Subject: "reviewer@marketplace.com"}

func pendingApp(id string, details domain.Details) domain.Application {
	return domain.Application{
		ID:          id,
		Status:      domain.StatusPending,
		SubmittedAt: time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC),
		Details:     details,
	}
}

func fixedCredential() string { return "Tmp0000000000a1!" }

func newTestProvisioner(accounts ports.AccountGateway, notifier ports.Notifier) *AccountProvisioner {
	p := NewAccountProvisioner(accounts, notifier, nil, nil)
	p.newCred = fixedCredential
	return p
}
