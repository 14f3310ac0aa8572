package application

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"review-console/internal/domain"
)

func entryFor(id string, createdAt time.Time, reverse domain.ReverseAction) domain.CompensationEntry {
	return domain.CompensationEntry{
		Subject:   pendingApp(id, domain.BrandDetails{BrandName: "Brand " + id}),
		Reverses:  domain.TransitionApprove,
		Reverse:   reverse,
		CreatedAt: createdAt,
	}
}

func TestUndoStack_CapacityEvictsOldest(t *testing.T) {
	stack := NewUndoStack(nil, nil)
	base := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
	for i := 0; i < 7; i++ {
		stack.Push(entryFor(fmt.Sprintf("app-%d", i), base.Add(time.Duration(i)*time.Minute), nil))
	}

	entries := stack.Entries()
	require.Len(t, entries, UndoCapacity)
	assert.Equal(t, "app-6", entries[0].ApplicationID)
	assert.Equal(t, "app-2", entries[4].ApplicationID)
	for i := 1; i < len(entries); i++ {
		assert.True(t, entries[i-1].CreatedAt.After(entries[i].CreatedAt))
	}
	assert.Equal(t, "Brand app-6", entries[0].DisplayName)
	assert.NotEmpty(t, entries[0].ID)
}

func TestUndoStack_InvokeRemovesOnlyThatEntry(t *testing.T) {
	stack := NewUndoStack(nil, nil)
	var ran []string
	now := time.Now()
	for _, id := range []string{"a", "b", "c"} {
		id := id
		stack.Push(entryFor(id, now, func(context.Context, domain.Credential) error {
			ran = append(ran, id)
			return nil
		}))
	}

	executed, err := stack.Invoke(context.Background(), operator, 1)
	require.NoError(t, err)
	assert.True(t, executed)
	assert.Equal(t, []string{"b"}, ran)

	entries := stack.Entries()
	require.Len(t, entries, 2)
	assert.Equal(t, "c", entries[0].ApplicationID)
	assert.Equal(t, "a", entries[1].ApplicationID)
}

func TestUndoStack_DoubleInvokeExecutesOnce(t *testing.T) {
	stack := NewUndoStack(nil, nil)
	var calls int32
	release := make(chan struct{})
	stack.Push(entryFor("a", time.Now(), func(context.Context, domain.Credential) error {
		atomic.AddInt32(&calls, 1)
		<-release
		return nil
	}))

	var wg sync.WaitGroup
	results := make([]bool, 2)
	for i := range results {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			results[i], _ = stack.Invoke(context.Background(), operator, 0)
		}(i)
	}
	require.Eventually(t, func() bool { return atomic.LoadInt32(&calls) == 1 }, time.Second, time.Millisecond)
	time.Sleep(10 * time.Millisecond)
	close(release)
	wg.Wait()

	assert.Equal(t, int32(1), atomic.LoadInt32(&calls))
	assert.ElementsMatch(t, []bool{true, false}, results)
	assert.Zero(t, stack.Len())

	executed, err := stack.Invoke(context.Background(), operator, 0)
	assert.NoError(t, err)
	assert.False(t, executed)
}

func TestUndoStack_FailedReverseKeepsEntry(t *testing.T) {
	stack := NewUndoStack(nil, nil)
	fail := true
	stack.Push(entryFor("a", time.Now(), func(context.Context, domain.Credential) error {
		if fail {
			return errors.New("remote down")
		}
		return nil
	}))

	executed, err := stack.Invoke(context.Background(), operator, 0)
	assert.True(t, executed)
	assert.EqualError(t, err, "remote down")
	require.Equal(t, 1, stack.Len())
	assert.False(t, stack.Entries()[0].InFlight)

	fail = false
	id := stack.Entries()[0].ID
	executed, err = stack.InvokeByID(context.Background(), operator, id)
	require.NoError(t, err)
	assert.True(t, executed)
	assert.Zero(t, stack.Len())
}

func TestUndoStack_ClearDoesNotInvoke(t *testing.T) {
	stack := NewUndoStack(nil, nil)
	stack.Push(entryFor("a", time.Now(), func(context.Context, domain.Credential) error {
		t.Fatal("reverse must not run on clear")
		return nil
	}))
	stack.Clear()
	assert.Zero(t, stack.Len())

	executed, err := stack.Invoke(context.Background(), operator, 0)
	assert.NoError(t, err)
	assert.False(t, executed)
	executed, err = stack.InvokeByID(context.Background(), operator, "missing")
	assert.NoError(t, err)
	assert.False(t, executed)
}
