// internal/session/controller.go
package session

import (
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"telemetry-service/internal/model"
)

const (
	stateStarting int32 = iota
	stateRunning
	stateStopped
)

// Controller holds the lifecycle flag for one capture session. The state
// lives in an atomic so the delivery loop, the stream broadcaster, and the
// console view poll it without locks. Transitions are one-way
// (Starting -> Running -> Stopped) and Stopped is terminal: there is no
// resume, a later session is a new Controller.
type Controller struct {
	id    uuid.UUID
	kind  string
	state atomic.Int32
	done  chan struct{}

	mu         sync.Mutex
	startedAt  time.Time
	stoppedAt  time.Time
	stopReason string
}

// New creates a session in the Starting state
func New(linkKind string) *Controller {
	return &Controller{
		id:        uuid.New(),
		kind:      linkKind,
		done:      make(chan struct{}),
		startedAt: time.Now(),
	}
}

// ID returns the session identifier
func (c *Controller) ID() uuid.UUID {
	return c.id
}

// MarkRunning moves Starting -> Running. Returns false when the session
// already left Starting (including a stop that raced the startup).
func (c *Controller) MarkRunning() bool {
	return c.state.CompareAndSwap(stateStarting, stateRunning)
}

// Stop makes the terminal transition and records the first reason given.
// Safe to call from any goroutine and any prior state; only the first call
// wins, later calls return false.
func (c *Controller) Stop(reason string) bool {
	for {
		s := c.state.Load()
		if s == stateStopped {
			return false
		}
		if c.state.CompareAndSwap(s, stateStopped) {
			c.mu.Lock()
			c.stoppedAt = time.Now()
			c.stopReason = reason
			c.mu.Unlock()
			close(c.done)
			return true
		}
	}
}

// IsRunning reports whether payloads are currently accepted
func (c *Controller) IsRunning() bool {
	return c.state.Load() == stateRunning
}

// IsStopped reports whether the terminal state was reached
func (c *Controller) IsStopped() bool {
	return c.state.Load() == stateStopped
}

// Done is closed exactly once, on stop
func (c *Controller) Done() <-chan struct{} {
	return c.done
}

// State returns the lifecycle state as a model value
func (c *Controller) State() model.SessionState {
	switch c.state.Load() {
	case stateRunning:
		return model.SessionRunning
	case stateStopped:
		return model.SessionStopped
	default:
		return model.SessionStarting
	}
}

// Info snapshots the session for reporting
func (c *Controller) Info() model.SessionInfo {
	info := model.SessionInfo{
		ID:       c.id,
		State:    c.State(),
		LinkKind: c.kind,
	}

	c.mu.Lock()
	info.StartedAt = c.startedAt
	if !c.stoppedAt.IsZero() {
		stopped := c.stoppedAt
		info.StoppedAt = &stopped
		info.StopReason = c.stopReason
	}
	c.mu.Unlock()

	return info
}

// Elapsed returns the session duration so far, frozen once stopped
func (c *Controller) Elapsed() time.Duration {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.stoppedAt.IsZero() {
		return c.stoppedAt.Sub(c.startedAt)
	}
	return time.Since(c.startedAt)
}
