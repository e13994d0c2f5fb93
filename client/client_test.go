package client

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"starhub/protocol"
)

func testIdentity() protocol.Identity {
	return protocol.Identity{Kind: protocol.KindAgent, ID: "scout-1"}
}

func TestDispatchActionInvokesGenericAndNamedHandlers(t *testing.T) {
	t.Parallel()

	var gotGeneric, gotNamed bool
	c := New(Config{
		Identity: testIdentity(),
		Handlers: Handlers{
			OnAction: func(from protocol.Identity, p protocol.ActionPayload) error {
				gotGeneric = true
				return nil
			},
		},
	})
	c.OnActionNamed("move", func(from protocol.Identity, p protocol.ActionPayload) error {
		gotNamed = true
		return nil
	})

	payload, _ := json.Marshal(protocol.ActionPayload{Type: protocol.PayloadAction, ID: "a1", Action: "move"})
	c.dispatch(protocol.Envelope{
		Type:    protocol.TypeMessage,
		Sender:  protocol.Identity{Kind: protocol.KindEnvironment, ID: "world_a"},
		Payload: payload,
	})

	if !gotGeneric {
		t.Fatalf("expected the generic OnAction handler to fire")
	}
	if !gotNamed {
		t.Fatalf("expected the per-name \"move\" handler to fire")
	}
}

func TestDispatchActionOnlyFiresMatchingNamedHandler(t *testing.T) {
	t.Parallel()

	fired := false
	c := New(Config{Identity: testIdentity()})
	c.OnActionNamed("pickup", func(protocol.Identity, protocol.ActionPayload) error {
		fired = true
		return nil
	})

	payload, _ := json.Marshal(protocol.ActionPayload{Type: protocol.PayloadAction, ID: "a1", Action: "move"})
	c.dispatch(protocol.Envelope{Type: protocol.TypeMessage, Payload: payload})

	if fired {
		t.Fatalf("a handler registered for \"pickup\" must not fire for a \"move\" action")
	}
}

func TestDispatchHandlerPanicIsRecovered(t *testing.T) {
	t.Parallel()

	c := New(Config{
		Identity: testIdentity(),
		Handlers: Handlers{
			OnEvent: func(protocol.Identity, protocol.EventPayload) error {
				panic("boom")
			},
		},
	})

	payload, _ := json.Marshal(protocol.EventPayload{Type: protocol.PayloadEvent, Event: "tick"})
	c.dispatch(protocol.Envelope{Type: protocol.TypeMessage, Payload: payload}) // must not panic the test
}

func TestDispatchOutcomeCompletesPendingSendAndWait(t *testing.T) {
	t.Parallel()

	c := New(Config{Identity: testIdentity()})

	pc := &pendingCompletion{resultCh: make(chan completionResult, 1)}
	c.pending.Store("a1", pc)

	outcome, _ := json.Marshal(struct {
		Status string `json:"status"`
	}{Status: "success"})
	payload, _ := json.Marshal(protocol.OutcomePayload{Type: protocol.PayloadOutcome, ID: "a1", Outcome: outcome})
	c.dispatch(protocol.Envelope{Type: protocol.TypeMessage, Payload: payload})

	select {
	case res := <-pc.resultCh:
		if res.err != nil {
			t.Fatalf("unexpected error: %v", res.err)
		}
		status, err := res.outcome.Status()
		if err != nil || status != protocol.OutcomeSuccess {
			t.Fatalf("status=%v err=%v want=success", status, err)
		}
	default:
		t.Fatalf("expected the pending completion to resolve")
	}

	if _, ok := c.pending.Load("a1"); ok {
		t.Fatalf("a resolved completion should be removed from the pending table")
	}
}

func TestDispatchStrayOutcomeDoesNotPanic(t *testing.T) {
	t.Parallel()

	c := New(Config{Identity: testIdentity()})
	outcome, _ := json.Marshal(struct {
		Status string `json:"status"`
	}{Status: "success"})
	payload, _ := json.Marshal(protocol.OutcomePayload{Type: protocol.PayloadOutcome, ID: "unknown", Outcome: outcome})
	c.dispatch(protocol.Envelope{Type: protocol.TypeMessage, Payload: payload})
}

func TestFailPendingCompletionsDeliversConnectionLost(t *testing.T) {
	t.Parallel()

	c := New(Config{Identity: testIdentity()})
	pc := &pendingCompletion{resultCh: make(chan completionResult, 1)}
	c.pending.Store("a1", pc)

	c.failPendingCompletions(protocol.ErrConnectionLost)

	select {
	case res := <-pc.resultCh:
		perr, ok := res.err.(*protocol.Error)
		if !ok || perr.Code != protocol.ErrConnectionLost {
			t.Fatalf("expected a CONNECTION_LOST error, got %v", res.err)
		}
	default:
		t.Fatalf("expected the pending completion to fail")
	}
}

func TestSendAndWaitTimesOutWithoutAnOutcome(t *testing.T) {
	t.Parallel()

	c := New(Config{Identity: testIdentity()})
	recipient := protocol.Identity{Kind: protocol.KindEnvironment, ID: "world_a"}

	_, err := c.SendAndWait(context.Background(), recipient, protocol.ActionPayload{Action: "move"}, 20*time.Millisecond)
	if err == nil {
		t.Fatalf("expected a timeout error")
	}
	perr, ok := err.(*protocol.Error)
	if !ok || perr.Code != protocol.ErrTimeout {
		t.Fatalf("expected TIMEOUT, got %v", err)
	}

	empty := true
	c.pending.Range(func(key, value any) bool {
		empty = false
		return false
	})
	if !empty {
		t.Fatalf("a timed-out completion must not remain in the pending table")
	}
}

func TestSendAndWaitResolvesOnMatchingOutcome(t *testing.T) {
	t.Parallel()

	c := New(Config{Identity: testIdentity()})
	recipient := protocol.Identity{Kind: protocol.KindEnvironment, ID: "world_a"}

	resultCh := make(chan protocol.OutcomePayload, 1)
	errCh := make(chan error, 1)
	go func() {
		outcome, err := c.SendAndWait(context.Background(), recipient, protocol.ActionPayload{ID: "fixed-id", Action: "move"}, time.Second)
		if err != nil {
			errCh <- err
			return
		}
		resultCh <- outcome
	}()

	// Wait for the action to actually be enqueued before completing it, so
	// the pending table entry exists.
	select {
	case env := <-c.send:
		if env.ID != "fixed-id" {
			t.Fatalf("envelope id=%q want=fixed-id", env.ID)
		}
	case <-time.After(time.Second):
		t.Fatalf("expected the action envelope to be sent")
	}

	outcomeRaw, _ := json.Marshal(struct {
		Status string `json:"status"`
	}{Status: "success"})
	payload, _ := json.Marshal(protocol.OutcomePayload{Type: protocol.PayloadOutcome, ID: "fixed-id", Outcome: outcomeRaw})
	c.dispatch(protocol.Envelope{Type: protocol.TypeMessage, Payload: payload})

	select {
	case outcome := <-resultCh:
		status, err := outcome.Status()
		if err != nil || status != protocol.OutcomeSuccess {
			t.Fatalf("status=%v err=%v", status, err)
		}
	case err := <-errCh:
		t.Fatalf("unexpected error: %v", err)
	case <-time.After(time.Second):
		t.Fatalf("SendAndWait did not resolve in time")
	}
}

func TestCloseIsIdempotent(t *testing.T) {
	t.Parallel()

	c := New(Config{Identity: testIdentity()})
	c.Close(10 * time.Millisecond)
	c.Close(10 * time.Millisecond) // must not panic (double close(c.done))

	if c.State() != StateClosed {
		t.Fatalf("state=%v want=StateClosed", c.State())
	}
}
