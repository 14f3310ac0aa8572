package application

import (
	"context"
	"fmt"
	"sync"

	"review-console/internal/domain"
	"review-console/internal/ports"
)

// Console is one operator's working state: the fetched collection, the
// selection, the undo stack and the set of applications being decided.
type Console struct {
	view   *CollectionView
	undo   *UndoStack
	review *ReviewService
	bulk   *BulkCoordinator
	logger ports.Logger

	mu        sync.Mutex
	selection []string
	inFlight  map[string]domain.TransitionKind
}

type ConsoleState struct {
	InFlight      map[string]domain.TransitionKind `json:"in_flight"`
	SelectionSize int                              `json:"selection_size"`
	UndoDepth     int                              `json:"undo_depth"`
	Loaded        int                              `json:"loaded"`
}

type ConsoleDeps struct {
	Applications ports.ApplicationGateway
	Review       *ReviewService
	Bulk         *BulkCoordinator
	PageSize     int
	Metrics      ports.Metrics
	Logger       ports.Logger
}

func NewConsole(deps ConsoleDeps) *Console {
	return &Console{
		view:     NewCollectionView(deps.Applications, deps.PageSize, deps.Logger),
		undo:     NewUndoStack(deps.Metrics, deps.Logger),
		review:   deps.Review,
		bulk:     deps.Bulk,
		logger:   orLogger(deps.Logger),
		inFlight: make(map[string]domain.TransitionKind),
	}
}

func (c *Console) View() *CollectionView { return c.view }

func (c *Console) Refresh(ctx context.Context, cred domain.Credential) error {
	return c.view.Refresh(ctx, cred)
}

func (c *Console) Approve(ctx context.Context, cred domain.Credential, appID string) (ReviewOutcome, error) {
	return c.decide(ctx, cred, appID, domain.TransitionApprove)
}

func (c *Console) Reject(ctx context.Context, cred domain.Credential, appID string) (ReviewOutcome, error) {
	return c.decide(ctx, cred, appID, domain.TransitionReject)
}

// decide keeps appID marked in flight across the transition and any chained
// account step. Once accepted the work is detached from the caller's
// cancellation so a dropped client cannot strand an approval without its
// account.
func (c *Console) decide(ctx context.Context, cred domain.Credential, appID string, kind domain.TransitionKind) (ReviewOutcome, error) {
	ctx = context.WithoutCancel(ctx)
	app, ok := c.view.Find(appID)
	if !ok {
		return ReviewOutcome{}, fmt.Errorf("application %s: %w", appID, domain.ErrNotFound)
	}
	if !c.markInFlight(appID, kind) {
		return ReviewOutcome{}, fmt.Errorf("application %s: %w", appID, domain.ErrTransitionInFlight)
	}
	defer c.clearInFlight(appID)

	outcome, err := c.review.Transition(ctx, cred, app, kind)
	if outcome.Compensation != nil {
		c.undo.Push(*outcome.Compensation)
	}
	if err == nil || IsProvisioningFailure(err) {
		c.refreshQuietly(ctx, cred)
	}
	return outcome, err
}

func (c *Console) markInFlight(appID string, kind domain.TransitionKind) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, busy := c.inFlight[appID]; busy {
		return false
	}
	c.inFlight[appID] = kind
	return true
}

func (c *Console) clearInFlight(appID string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.inFlight, appID)
}

// refreshQuietly reloads after a mutation. The mutation already happened, so
// a failed reload is only logged.
func (c *Console) refreshQuietly(ctx context.Context, cred domain.Credential) {
	if err := c.view.Refresh(ctx, cred); err != nil {
		c.logger.Warn(ctx, "refresh after mutation failed", "error", err)
	}
}

// Select replaces the selection. Order is kept and duplicates dropped.
func (c *Console) Select(ids []string) []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.selection = uniqueIDs(ids)
	return append([]string(nil), c.selection...)
}

func (c *Console) Selection() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]string(nil), c.selection...)
}

func (c *Console) ClearSelection() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.selection = nil
}

// RunBulk applies kind to ids, or to the current selection when ids is
// empty. The selection is cleared and the view refreshed once whatever the
// outcome. Every item is attempted even if the caller goes away.
func (c *Console) RunBulk(ctx context.Context, cred domain.Credential, ids []string, kind domain.TransitionKind) (BulkReport, error) {
	ctx = context.WithoutCancel(ctx)
	if len(ids) == 0 {
		ids = c.Selection()
	}
	report, err := c.bulk.Run(ctx, cred, ids, kind)
	if err != nil && len(report.Succeeded) == 0 && len(report.Failed) == 0 {
		return report, err
	}
	c.ClearSelection()
	c.refreshQuietly(ctx, cred)
	return report, err
}

func (c *Console) UndoEntries() []UndoEntry {
	return c.undo.Entries()
}

// Undo invokes the entry at index. executed is false when nothing ran.
func (c *Console) Undo(ctx context.Context, cred domain.Credential, index int) (executed bool, err error) {
	if !cred.Present() {
		return false, domain.ErrAuthRequired
	}
	ctx = context.WithoutCancel(ctx)
	executed, err = c.undo.Invoke(ctx, cred, index)
	if executed && err == nil {
		c.refreshQuietly(ctx, cred)
	}
	return executed, err
}

func (c *Console) UndoByID(ctx context.Context, cred domain.Credential, id string) (executed bool, err error) {
	if !cred.Present() {
		return false, domain.ErrAuthRequired
	}
	ctx = context.WithoutCancel(ctx)
	executed, err = c.undo.InvokeByID(ctx, cred, id)
	if executed && err == nil {
		c.refreshQuietly(ctx, cred)
	}
	return executed, err
}

func (c *Console) ClearUndo() {
	c.undo.Clear()
}

func (c *Console) State() ConsoleState {
	c.mu.Lock()
	inFlight := make(map[string]domain.TransitionKind, len(c.inFlight))
	for id, kind := range c.inFlight {
		inFlight[id] = kind
	}
	selected := len(c.selection)
	c.mu.Unlock()
	return ConsoleState{
		InFlight:      inFlight,
		SelectionSize: selected,
		UndoDepth:     c.undo.Len(),
		Loaded:        len(c.view.Items()),
	}
}

// ConsoleRegistry hands out one Console per operator subject.
type ConsoleRegistry struct {
	mu       sync.Mutex
	consoles map[string]*Console
	factory  func() *Console
}

func NewConsoleRegistry(factory func() *Console) *ConsoleRegistry {
	return &ConsoleRegistry{consoles: make(map[string]*Console), factory: factory}
}

func (r *ConsoleRegistry) For(operator string) *Console {
	r.mu.Lock()
	defer r.mu.Unlock()
	if c, ok := r.consoles[operator]; ok {
		return c
	}
	c := r.factory()
	r.consoles[operator] = c
	return c
}

// Close drops the operator's console. Pending undo entries are discarded
// without being invoked.
func (r *ConsoleRegistry) Close(operator string) {
	r.mu.Lock()
	c, ok := r.consoles[operator]
	delete(r.consoles, operator)
	r.mu.Unlock()
	if ok {
		c.ClearUndo()
		c.ClearSelection()
	}
}
