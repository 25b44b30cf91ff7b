package checkpoint

import (
	"context"
	"errors"
	"testing"
	"time"
)

func waitForPending(t *testing.T, gate *Gate, checkpointID string) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		for _, req := range gate.Pending() {
			if req.CheckpointID == checkpointID {
				return
			}
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("checkpoint %s never became pending", checkpointID)
}

func TestGateApproveUnblocksDecide(t *testing.T) {
	gate := NewGate()
	type decided struct {
		decision Decision
		err      error
	}
	done := make(chan decided, 1)
	go func() {
		decision, err := gate.Decide(context.Background(), Request{CheckpointID: "gate-1", Question: "OK?"})
		done <- decided{decision, err}
	}()
	waitForPending(t, gate, "gate-1")
	if err := gate.Approve("gate-1", "looks good"); err != nil {
		t.Fatalf("approve: %v", err)
	}
	result := <-done
	if result.err != nil {
		t.Fatalf("decide: %v", result.err)
	}
	if !result.decision.Approved || result.decision.Note != "looks good" {
		t.Fatalf("unexpected decision: %+v", result.decision)
	}
	if len(gate.Pending()) != 0 {
		t.Fatalf("resolved checkpoint still pending")
	}
}

func TestGateRejectUnblocksDecide(t *testing.T) {
	gate := NewGate()
	done := make(chan Decision, 1)
	go func() {
		decision, _ := gate.Decide(context.Background(), Request{CheckpointID: "gate-1", Question: "OK?"})
		done <- decision
	}()
	waitForPending(t, gate, "gate-1")
	if err := gate.Reject("gate-1", "not yet"); err != nil {
		t.Fatalf("reject: %v", err)
	}
	decision := <-done
	if decision.Approved || decision.Note != "not yet" {
		t.Fatalf("unexpected decision: %+v", decision)
	}
}

func TestGateResolveUnknownCheckpoint(t *testing.T) {
	gate := NewGate()
	if err := gate.Approve("ghost", ""); !errors.Is(err, ErrNotPending) {
		t.Fatalf("expected ErrNotPending, got %v", err)
	}
}

func TestGateRejectsDuplicatePendingID(t *testing.T) {
	gate := NewGate()
	errs := make(chan error, 1)
	go func() {
		_, err := gate.Decide(context.Background(), Request{CheckpointID: "gate-1"})
		errs <- err
	}()
	waitForPending(t, gate, "gate-1")
	if _, err := gate.Decide(context.Background(), Request{CheckpointID: "gate-1"}); !errors.Is(err, ErrAlreadyPending) {
		t.Fatalf("expected ErrAlreadyPending, got %v", err)
	}
	if err := gate.Approve("gate-1", ""); err != nil {
		t.Fatalf("approve: %v", err)
	}
	if err := <-errs; err != nil {
		t.Fatalf("first decide: %v", err)
	}
}

func TestGateDecideCancelledContext(t *testing.T) {
	gate := NewGate()
	ctx, cancel := context.WithCancel(context.Background())
	errs := make(chan error, 1)
	go func() {
		_, err := gate.Decide(ctx, Request{CheckpointID: "gate-1"})
		errs <- err
	}()
	waitForPending(t, gate, "gate-1")
	cancel()
	if err := <-errs; !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context cancellation, got %v", err)
	}
	if len(gate.Pending()) != 0 {
		t.Fatalf("cancelled request left pending")
	}
}

func TestAutoApprover(t *testing.T) {
	decision, err := AutoApprover{Note: "auto"}.Decide(context.Background(), Request{CheckpointID: "x"})
	if err != nil || !decision.Approved || decision.Note != "auto" {
		t.Fatalf("unexpected auto decision: %+v, %v", decision, err)
	}
}
