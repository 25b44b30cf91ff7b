package checkpoint

import (
	"context"
	"errors"
	"fmt"
	"sync"
)

// Sentinel errors returned by gate operations.
var (
	ErrNotPending     = errors.New("checkpoint is not awaiting a decision")
	ErrAlreadyPending = errors.New("checkpoint already awaiting a decision")
)

// Gate is a Decider that parks each request until something external calls
// Approve or Reject. The decision HTTP bridge and the TUI both resolve
// through a Gate; the executor only sees a blocking Decide call.
type Gate struct {
	mu      sync.Mutex
	pending map[string]pendingRequest
}

type pendingRequest struct {
	req  Request
	done chan Decision
}

// NewGate returns an empty gate.
func NewGate() *Gate {
	return &Gate{pending: make(map[string]pendingRequest)}
}

// Decide implements Decider. It registers the request as pending and blocks
// until resolved or the context is done. A second request for an unresolved
// checkpoint ID fails rather than silently replacing the first.
func (g *Gate) Decide(ctx context.Context, req Request) (Decision, error) {
	g.mu.Lock()
	if _, exists := g.pending[req.CheckpointID]; exists {
		g.mu.Unlock()
		return Decision{}, fmt.Errorf("%w: %s", ErrAlreadyPending, req.CheckpointID)
	}
	entry := pendingRequest{req: req, done: make(chan Decision, 1)}
	g.pending[req.CheckpointID] = entry
	g.mu.Unlock()

	select {
	case decision := <-entry.done:
		return decision, nil
	case <-ctx.Done():
		g.mu.Lock()
		delete(g.pending, req.CheckpointID)
		g.mu.Unlock()
		return Decision{}, ctx.Err()
	}
}

// Approve resolves a pending checkpoint with approval.
func (g *Gate) Approve(checkpointID, note string) error {
	return g.resolve(checkpointID, Decision{Approved: true, Note: note})
}

// Reject resolves a pending checkpoint with rejection.
func (g *Gate) Reject(checkpointID, note string) error {
	return g.resolve(checkpointID, Decision{Approved: false, Note: note})
}

func (g *Gate) resolve(checkpointID string, decision Decision) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	entry, ok := g.pending[checkpointID]
	if !ok {
		return fmt.Errorf("%w: %s", ErrNotPending, checkpointID)
	}
	entry.done <- decision
	delete(g.pending, checkpointID)
	return nil
}

// Pending returns the requests currently awaiting a decision. The slice is a
// copy and safe to modify.
func (g *Gate) Pending() []Request {
	g.mu.Lock()
	defer g.mu.Unlock()
	out := make([]Request, 0, len(g.pending))
	for _, entry := range g.pending {
		out = append(out, entry.req)
	}
	return out
}
