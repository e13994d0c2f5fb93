package protocol

import (
	"encoding/json"
	"testing"
)

func TestOutcomePayloadStatusSuccess(t *testing.T) {
	t.Parallel()

	raw, _ := json.Marshal(map[string]any{"status": "success", "position": []int{1, 2}})
	p := OutcomePayload{Type: PayloadOutcome, ID: "a1", Outcome: raw}

	status, err := p.Status()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if status != OutcomeSuccess {
		t.Fatalf("status=%q want=success", status)
	}
}

func TestOutcomePayloadStatusError(t *testing.T) {
	t.Parallel()

	raw, _ := json.Marshal(map[string]any{"status": "error", "message": "blocked"})
	p := OutcomePayload{Type: PayloadOutcome, ID: "a1", Outcome: raw}

	status, err := p.Status()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if status != OutcomeError {
		t.Fatalf("status=%q want=error", status)
	}
}

func TestOutcomePayloadStatusRejectsMalformedOutcome(t *testing.T) {
	t.Parallel()

	p := OutcomePayload{Type: PayloadOutcome, ID: "a1", Outcome: json.RawMessage(`not-json`)}

	if _, err := p.Status(); err == nil {
		t.Fatalf("expected an error for malformed outcome JSON")
	}
}

func TestOutcomePayloadStatusRejectsUnknownStatus(t *testing.T) {
	t.Parallel()

	raw, _ := json.Marshal(map[string]any{"status": "maybe"})
	p := OutcomePayload{Type: PayloadOutcome, ID: "a1", Outcome: raw}

	_, err := p.Status()
	if err == nil {
		t.Fatalf("expected an error for a status other than success/error")
	}
	perr, ok := err.(*Error)
	if !ok || perr.Code != ErrValidation {
		t.Fatalf("expected a VALIDATION_ERROR, got %v", err)
	}
}
