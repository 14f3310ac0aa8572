package application

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"review-console/internal/domain"
	"review-console/internal/ports"
)

// UndoCapacity bounds the stack; pushing past it evicts the oldest entry.
const UndoCapacity = 5

type undoSlot struct {
	entry   domain.CompensationEntry
	claimed bool
}

// UndoEntry is a read-only view of one stack position.
type UndoEntry struct {
	Index         int                   `json:"index"`
	ID            string                `json:"id"`
	ApplicationID string                `json:"application_id"`
	DisplayName   string                `json:"display_name"`
	Reverses      domain.TransitionKind `json:"reverses"`
	CreatedAt     time.Time             `json:"created_at"`
	InFlight      bool                  `json:"in_flight"`
}

// UndoStack holds compensation entries newest first. Each entry runs at most
// once; a second invoke of the same entry is a no-op.
type UndoStack struct {
	mu      sync.Mutex
	slots   []*undoSlot
	metrics ports.Metrics
	logger  ports.Logger
}

func NewUndoStack(metrics ports.Metrics, logger ports.Logger) *UndoStack {
	return &UndoStack{metrics: orMetrics(metrics), logger: orLogger(logger)}
}

func (s *UndoStack) Push(entry domain.CompensationEntry) {
	if entry.ID == "" {
		entry.ID = uuid.NewString()
	}
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = time.Now().UTC()
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.slots = append([]*undoSlot{{entry: entry}}, s.slots...)
	if len(s.slots) > UndoCapacity {
		s.slots = s.slots[:UndoCapacity]
	}
}

func (s *UndoStack) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.slots)
}

func (s *UndoStack) Entries() []UndoEntry {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]UndoEntry, 0, len(s.slots))
	for i, slot := range s.slots {
		out = append(out, UndoEntry{
			Index:         i,
			ID:            slot.entry.ID,
			ApplicationID: slot.entry.Subject.ID,
			DisplayName:   slot.entry.Subject.DisplayName(),
			Reverses:      slot.entry.Reverses,
			CreatedAt:     slot.entry.CreatedAt,
			InFlight:      slot.claimed,
		})
	}
	return out
}

// Invoke runs the reverse action at index and removes that entry once it
// succeeds. It returns false without error when the index is out of range
// or the entry is already being invoked.
func (s *UndoStack) Invoke(ctx context.Context, cred domain.Credential, index int) (bool, error) {
	s.mu.Lock()
	if index < 0 || index >= len(s.slots) {
		s.mu.Unlock()
		return false, nil
	}
	slot := s.slots[index]
	return s.run(ctx, cred, slot)
}

// InvokeByID is Invoke addressed by entry id, which stays stable while other
// entries are pushed or removed.
func (s *UndoStack) InvokeByID(ctx context.Context, cred domain.Credential, id string) (bool, error) {
	s.mu.Lock()
	for _, slot := range s.slots {
		if slot.entry.ID == id {
			return s.run(ctx, cred, slot)
		}
	}
	s.mu.Unlock()
	return false, nil
}

// run is entered with s.mu held and releases it before the reverse action.
func (s *UndoStack) run(ctx context.Context, cred domain.Credential, slot *undoSlot) (bool, error) {
	if slot.claimed {
		s.mu.Unlock()
		return false, nil
	}
	slot.claimed = true
	s.mu.Unlock()

	var err error
	if slot.entry.Reverse != nil {
		err = slot.entry.Reverse(ctx, cred)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if err != nil {
		slot.claimed = false
		s.metrics.UndoInvoked(domain.OutcomeFailed)
		s.logger.Error(ctx, "undo failed", "entry_id", slot.entry.ID, "application_id", slot.entry.Subject.ID, "error", err)
		return true, err
	}
	for i, candidate := range s.slots {
		if candidate == slot {
			s.slots = append(s.slots[:i:i], s.slots[i+1:]...)
			break
		}
	}
	s.metrics.UndoInvoked(domain.OutcomeSucceeded)
	s.logger.Info(ctx, "undo applied", "entry_id", slot.entry.ID, "application_id", slot.entry.Subject.ID,
		"reversed", slot.entry.Reverses)
	return true, nil
}

// Clear drops every entry without invoking any of them.
func (s *UndoStack) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.slots = nil
}
