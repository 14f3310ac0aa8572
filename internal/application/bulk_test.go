package application

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"review-console/internal/domain"
)

func newBulkFixture() (*appGatewayMock, *journalMock, *BulkCoordinator) {
	apps := new(appGatewayMock)
	journal := &journalMock{}
	review := NewReviewService(ReviewDeps{
		Applications: apps,
		Provisioner:  newTestProvisioner(new(accountGatewayMock), nil),
		Journal:      journal,
	})
	return apps, journal, NewBulkCoordinator(review, nil, nil)
}

func TestBulkCoordinator_PartialFailure(t *testing.T) {
	apps, journal, bulk := newBulkFixture()
	apps.On("Transition", mock.Anything, operator, "a1", domain.TransitionApprove).Return(nil).Once()
	apps.On("Transition", mock.Anything, operator, "a2", domain.TransitionApprove).
		Return(&domain.RemoteError{Message: "Application not found", Status: 404}).Once()
	apps.On("Transition", mock.Anything, operator, "a3", domain.TransitionApprove).Return(nil).Once()

	report, err := bulk.Run(context.Background(), operator, []string{"a1", "a2", "a3"}, domain.TransitionApprove)

	var bulkErr *domain.BulkError
	require.ErrorAs(t, err, &bulkErr)
	assert.Equal(t, 3, bulkErr.Attempted)
	assert.Equal(t, []string{"a1", "a3"}, report.Succeeded)
	require.Len(t, report.Failed, 1)
	assert.Equal(t, "a2", report.Failed[0].ApplicationID)
	assert.Contains(t, report.Failed[0].Message, "Application not found")
	apps.AssertExpectations(t)
	assert.Len(t, journal.decisions, 3)
}

func TestBulkCoordinator_RunsConcurrently(t *testing.T) {
	apps, _, bulk := newBulkFixture()
	var inFlight, peak int32
	apps.On("Transition", mock.Anything, operator, mock.Anything, domain.TransitionReject).
		Run(func(mock.Arguments) {
			n := atomic.AddInt32(&inFlight, 1)
			for {
				p := atomic.LoadInt32(&peak)
				if n <= p || atomic.CompareAndSwapInt32(&peak, p, n) {
					break
				}
			}
			time.Sleep(20 * time.Millisecond)
			atomic.AddInt32(&inFlight, -1)
		}).Return(nil)

	report, err := bulk.Run(context.Background(), operator, []string{"a1", "a2", "a3", "a4"}, domain.TransitionReject)
	require.NoError(t, err)
	assert.Len(t, report.Succeeded, 4)
	assert.Empty(t, report.Failed)
	assert.Greater(t, atomic.LoadInt32(&peak), int32(1))
}

func TestBulkCoordinator_Preconditions(t *testing.T) {
	apps, _, bulk := newBulkFixture()

	_, err := bulk.Run(context.Background(), operator, nil, domain.TransitionApprove)
	assert.ErrorIs(t, err, domain.ErrEmptySelection)

	_, err = bulk.Run(context.Background(), operator, []string{" ", ""}, domain.TransitionApprove)
	assert.ErrorIs(t, err, domain.ErrEmptySelection)

	_, err = bulk.Run(context.Background(), domain.Credential{}, []string{"a1"}, domain.TransitionApprove)
	assert.ErrorIs(t, err, domain.ErrAuthRequired)

	_, err = bulk.Run(context.Background(), operator, []string{"a1"}, "archive")
	assert.ErrorIs(t, err, domain.ErrInvalidInput)

	apps.AssertNotCalled(t, "Transition", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func TestBulkCoordinator_DeduplicatesIDs(t *testing.T) {
	apps, _, bulk := newBulkFixture()
	apps.On("Transition", mock.Anything, operator, "a1", domain.TransitionApprove).Return(nil).Once()

	report, err := bulk.Run(context.Background(), operator, []string{"a1", "a1", " a1 "}, domain.TransitionApprove)
	require.NoError(t, err)
	assert.Equal(t, []string{"a1"}, report.Succeeded)
	apps.AssertExpectations(t)
}
