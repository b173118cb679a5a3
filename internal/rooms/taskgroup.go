package rooms

import (
	"context"
	"sync"

	"golang.org/x/sync/errgroup"
)

// TaskGroup is the structured-concurrency helper every room manager uses
// to own its background tasks (occupancy ticker, auto-release timer,
// disconnect-forfeit timer, LiveWar tick loop). The LiveWar empty-room
// grace window is not a task; it is a timestamp checked in IsEmpty.
// Teardown cancels the context and waits for every child to observe
// cancellation and return, per spec.md §5 ("Background tasks are child
// tasks that must be cancelled on room teardown").
type TaskGroup struct {
	ctx    context.Context
	cancel context.CancelFunc
	group  *errgroup.Group

	mu      sync.Mutex
	stopped bool
}

// NewTaskGroup creates a task group bound to parent.
func NewTaskGroup(parent context.Context) *TaskGroup {
	ctx, cancel := context.WithCancel(parent)
	group, ctx := errgroup.WithContext(ctx)
	return &TaskGroup{ctx: ctx, cancel: cancel, group: group}
}

// Context is cancelled when the group is stopped.
func (g *TaskGroup) Context() context.Context {
	return g.ctx
}

// Go launches a child task. fn must return promptly after ctx is done.
func (g *TaskGroup) Go(fn func(ctx context.Context) error) {
	g.mu.Lock()
	stopped := g.stopped
	g.mu.Unlock()
	if stopped {
		return
	}
	g.group.Go(func() error {
		return fn(g.ctx)
	})
}

// Stop cancels every child task and blocks until they've all returned.
func (g *TaskGroup) Stop() {
	g.mu.Lock()
	if g.stopped {
		g.mu.Unlock()
		return
	}
	g.stopped = true
	g.mu.Unlock()

	g.cancel()
	g.group.Wait()
}
