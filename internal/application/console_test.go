package application

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"review-console/internal/domain"
	"review-console/internal/ports"
)

type consoleFixture struct {
	apps     *appGatewayMock
	accounts *accountGatewayMock
	console  *Console
}

func newConsoleFixture(t *testing.T) *consoleFixture {
	t.Helper()
	f := &consoleFixture{apps: new(appGatewayMock), accounts: new(accountGatewayMock)}
	review := NewReviewService(ReviewDeps{
		Applications: f.apps,
		Provisioner:  newTestProvisioner(f.accounts, nil),
	})
	f.console = NewConsole(ConsoleDeps{
		Applications: f.apps,
		Review:       review,
		Bulk:         NewBulkCoordinator(review, nil, nil),
		PageSize:     10,
	})
	return f
}

func approvedCopy(app domain.Application) domain.Application {
	now := time.Now().UTC()
	app.Status = domain.StatusApproved
	app.ApprovedAt = &now
	return app
}

func TestConsole_ApprovePushesUndoAndRefreshes(t *testing.T) {
	f := newConsoleFixture(t)
	app := pendingApp("b1", domain.BrandDetails{Contact: domain.Contact{Email: "b@acme.io"}, BrandName: "Acme"})
	f.apps.On("List", mock.Anything, operator, ports.ListFilter{}).Return([]domain.Application{app}, nil).Once()
	f.apps.On("List", mock.Anything, operator, ports.ListFilter{}).Return([]domain.Application{approvedCopy(app)}, nil).Once()
	f.apps.On("Transition", mock.Anything, operator, "b1", domain.TransitionApprove).Return(nil).Once()
	f.accounts.On("CreateAccount", mock.Anything, operator, mock.Anything).Return(nil).Once()

	require.NoError(t, f.console.Refresh(context.Background(), operator))
	outcome, err := f.console.Approve(context.Background(), operator, "b1")
	require.NoError(t, err)
	assert.Equal(t, domain.StatusApproved, outcome.Status)

	entries := f.console.UndoEntries()
	require.Len(t, entries, 1)
	assert.Equal(t, "b1", entries[0].ApplicationID)

	refreshed, ok := f.console.View().Find("b1")
	require.True(t, ok)
	assert.Equal(t, domain.StatusApproved, refreshed.Status)
	assert.Empty(t, f.console.State().InFlight)

	_, err = f.console.Approve(context.Background(), operator, "b1")
	assert.ErrorIs(t, err, domain.ErrIllegalTransition)
	f.apps.AssertExpectations(t)
}

func TestConsole_ApproveUnknownApplication(t *testing.T) {
	f := newConsoleFixture(t)
	_, err := f.console.Approve(context.Background(), operator, "nope")
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestConsole_FailedTransitionLeavesViewUntouched(t *testing.T) {
	f := newConsoleFixture(t)
	app := pendingApp("r1", domain.BrandDetails{})
	f.apps.On("List", mock.Anything, operator, ports.ListFilter{}).Return([]domain.Application{app}, nil).Once()
	f.apps.On("Transition", mock.Anything, operator, "r1", domain.TransitionReject).
		Return(&domain.RemoteError{Message: "Network request failed"}).Once()

	require.NoError(t, f.console.Refresh(context.Background(), operator))
	_, err := f.console.Reject(context.Background(), operator, "r1")
	require.Error(t, err)

	assert.Empty(t, f.console.UndoEntries())
	current, _ := f.console.View().Find("r1")
	assert.Equal(t, domain.StatusPending, current.Status)
	f.apps.AssertNumberOfCalls(t, "List", 1)
}

func TestConsole_BulkClearsSelectionAndRefreshesOnce(t *testing.T) {
	f := newConsoleFixture(t)
	apps := []domain.Application{
		pendingApp("a1", domain.BrandDetails{}),
		pendingApp("a2", domain.BrandDetails{}),
		pendingApp("a3", domain.BrandDetails{}),
	}
	f.apps.On("List", mock.Anything, operator, ports.ListFilter{}).Return(apps, nil)
	f.apps.On("Transition", mock.Anything, operator, "a1", domain.TransitionApprove).Return(nil)
	f.apps.On("Transition", mock.Anything, operator, "a2", domain.TransitionApprove).
		Return(&domain.RemoteError{Message: "conflict", Status: 409})
	f.apps.On("Transition", mock.Anything, operator, "a3", domain.TransitionApprove).Return(nil)

	assert.Equal(t, []string{"a1", "a2", "a3"}, f.console.Select([]string{"a1", "a2", "a2", "a3"}))
	report, err := f.console.RunBulk(context.Background(), operator, nil, domain.TransitionApprove)

	var bulkErr *domain.BulkError
	require.ErrorAs(t, err, &bulkErr)
	assert.Equal(t, []string{"a1", "a3"}, report.Succeeded)
	assert.Empty(t, f.console.Selection())
	assert.Empty(t, f.console.UndoEntries())
	f.apps.AssertNumberOfCalls(t, "List", 1)
	f.accounts.AssertNotCalled(t, "CreateAccount", mock.Anything, mock.Anything, mock.Anything)
}

func TestConsole_BulkWithEmptySelectionKeepsState(t *testing.T) {
	f := newConsoleFixture(t)
	_, err := f.console.RunBulk(context.Background(), operator, nil, domain.TransitionReject)
	assert.ErrorIs(t, err, domain.ErrEmptySelection)
	f.apps.AssertNotCalled(t, "List", mock.Anything, mock.Anything, mock.Anything)
}

func TestConsole_UndoReversesAndRefreshes(t *testing.T) {
	f := newConsoleFixture(t)
	app := pendingApp("r1", domain.BrandDetails{})
	f.apps.On("List", mock.Anything, operator, ports.ListFilter{}).Return([]domain.Application{app}, nil)
	f.apps.On("Transition", mock.Anything, operator, "r1", domain.TransitionReject).Return(nil).Once()
	f.apps.On("Transition", mock.Anything, operator, "r1", domain.TransitionApprove).Return(nil).Once()

	require.NoError(t, f.console.Refresh(context.Background(), operator))
	_, err := f.console.Reject(context.Background(), operator, "r1")
	require.NoError(t, err)

	_, err = f.console.Undo(context.Background(), domain.Credential{}, 0)
	assert.ErrorIs(t, err, domain.ErrAuthRequired)

	executed, err := f.console.Undo(context.Background(), operator, 0)
	require.NoError(t, err)
	assert.True(t, executed)
	assert.Empty(t, f.console.UndoEntries())

	executed, err = f.console.Undo(context.Background(), operator, 0)
	require.NoError(t, err)
	assert.False(t, executed)
	f.apps.AssertExpectations(t)
	f.apps.AssertNumberOfCalls(t, "List", 3)
}

func TestConsoleRegistry_PerOperator(t *testing.T) {
	f := newConsoleFixture(t)
	built := 0
	registry := NewConsoleRegistry(func() *Console {
		built++
		return f.console
	})

	a := registry.For("alice")
	assert.Same(t, a, registry.For("alice"))
	registry.For("bob")
	assert.Equal(t, 2, built)

	a.undo.Push(entryFor("x", time.Now(), nil))
	a.Select([]string{"x"})
	registry.Close("alice")
	assert.Zero(t, a.undo.Len())
	assert.Empty(t, a.Selection())

	registry.For("alice")
	assert.Equal(t, 3, built)
}

func liveContext() any {
	return mock.MatchedBy(func(ctx context.Context) bool { return ctx.Err() == nil })
}

func TestConsole_ApproveSurvivesCallerCancellation(t *testing.T) {
	f := newConsoleFixture(t)
	app := pendingApp("b1", domain.BrandDetails{Contact: domain.Contact{Email: "x@y.z"}, BrandName: "Acme"})
	f.apps.On("List", mock.Anything, operator, ports.ListFilter{}).Return([]domain.Application{app}, nil).Once()
	require.NoError(t, f.console.Refresh(context.Background(), operator))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	f.apps.On("Transition", mock.Anything, operator, "b1", domain.TransitionApprove).
		Run(func(mock.Arguments) { cancel() }).Return(nil).Once()
	f.accounts.On("CreateAccount", liveContext(), operator, mock.Anything).Return(nil).Once()
	f.apps.On("List", liveContext(), operator, ports.ListFilter{}).Return([]domain.Application{approvedCopy(app)}, nil).Once()

	outcome, err := f.console.Approve(ctx, operator, "b1")
	require.NoError(t, err)
	require.NotNil(t, outcome.Account)
	assert.Equal(t, "x@y.z", outcome.Account.Email)
	f.apps.AssertExpectations(t)
	f.accounts.AssertExpectations(t)
}

func TestConsole_BulkSendsEveryItemAfterCallerCancellation(t *testing.T) {
	f := newConsoleFixture(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	for _, id := range []string{"a", "b", "c"} {
		f.apps.On("Transition", liveContext(), operator, id, domain.TransitionReject).Return(nil).Once()
	}
	f.apps.On("List", liveContext(), operator, ports.ListFilter{}).Return([]domain.Application{}, nil).Once()

	report, err := f.console.RunBulk(ctx, operator, []string{"a", "b", "c"}, domain.TransitionReject)
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b", "c"}, report.Succeeded)
	f.apps.AssertExpectations(t)
}

func TestConsole_ApproveStaysInFlightThroughAccountStep(t *testing.T) {
	f := newConsoleFixture(t)
	app := pendingApp("b1", domain.BrandDetails{Contact: domain.Contact{Email: "b@acme.io"}, BrandName: "Acme"})
	f.apps.On("List", mock.Anything, operator, ports.ListFilter{}).Return([]domain.Application{app}, nil).Once()
	f.apps.On("List", mock.Anything, operator, ports.ListFilter{}).Return([]domain.Application{approvedCopy(app)}, nil).Once()
	f.apps.On("Transition", mock.Anything, operator, "b1", domain.TransitionApprove).Return(nil).Once()
	require.NoError(t, f.console.Refresh(context.Background(), operator))

	var (
		kindDuring domain.TransitionKind
		secondErr  error
	)
	f.accounts.On("CreateAccount", mock.Anything, operator, mock.Anything).
		Run(func(mock.Arguments) {
			kindDuring = f.console.State().InFlight["b1"]
			_, secondErr = f.console.Approve(context.Background(), operator, "b1")
		}).Return(nil).Once()

	_, err := f.console.Approve(context.Background(), operator, "b1")
	require.NoError(t, err)
	assert.Equal(t, domain.TransitionApprove, kindDuring)
	assert.ErrorIs(t, secondErr, domain.ErrTransitionInFlight)
	assert.Empty(t, f.console.State().InFlight)
	f.apps.AssertExpectations(t)
	f.accounts.AssertExpectations(t)
}

func TestConsole_UndoSurvivesCallerCancellation(t *testing.T) {
	f := newConsoleFixture(t)
	app := pendingApp("r1", domain.BrandDetails{BrandName: "Acme"})
	f.apps.On("List", mock.Anything, operator, ports.ListFilter{}).Return([]domain.Application{app}, nil)
	f.apps.On("Transition", mock.Anything, operator, "r1", domain.TransitionReject).Return(nil).Once()
	require.NoError(t, f.console.Refresh(context.Background(), operator))
	_, err := f.console.Reject(context.Background(), operator, "r1")
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	f.apps.On("Transition", liveContext(), operator, "r1", domain.TransitionApprove).Return(nil).Once()

	executed, err := f.console.Undo(ctx, operator, 0)
	require.NoError(t, err)
	assert.True(t, executed)
	assert.Empty(t, f.console.UndoEntries())
	f.apps.AssertExpectations(t)
}
