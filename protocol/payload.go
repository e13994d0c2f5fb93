package protocol

import "encoding/json"

// PayloadType discriminates the inner (business) payload carried inside a
// message envelope's Payload field.
type PayloadType string

const (
	PayloadAction  PayloadType = "action"
	PayloadOutcome PayloadType = "outcome"
	PayloadEvent   PayloadType = "event"
	PayloadStream  PayloadType = "stream"
)

// payloadDiscriminator reads just enough of a payload to tell which variant
// it is, without committing to the rest of its shape.
type payloadDiscriminator struct {
	Type PayloadType `json:"type"`
}

// ActionPayload is an agent-to-environment (or environment-to-agent)
// request to perform a named business action.
type ActionPayload struct {
	Type       PayloadType     `json:"type"`
	ID         string          `json:"id"`
	Action     string          `json:"action"`
	Parameters json.RawMessage `json:"parameters"`
}

// OutcomeStatus is the required field of an outcome's Outcome object.
type OutcomeStatus string

const (
	OutcomeSuccess OutcomeStatus = "success"
	OutcomeError   OutcomeStatus = "error"
)

// OutcomePayload echoes the id of the action it answers.
type OutcomePayload struct {
	Type        PayloadType     `json:"type"`
	ID          string          `json:"id"`
	Outcome     json.RawMessage `json:"outcome"`
	OutcomeType string          `json:"outcome_type,omitempty"`
}

type outcomeStatusOnly struct {
	Status OutcomeStatus `json:"status"`
}

// Status extracts the required status field from the free-form Outcome
// object.
func (p OutcomePayload) Status() (OutcomeStatus, error) {
	var s outcomeStatusOnly
	if err := json.Unmarshal(p.Outcome, &s); err != nil {
		return "", NewError(ErrValidation, "outcome: malformed outcome object: "+err.Error())
	}
	if s.Status != OutcomeSuccess && s.Status != OutcomeError {
		return "", NewError(ErrValidation, "outcome: status must be success or error")
	}
	return s.Status, nil
}

// EventPayload is a named, free-form notification.
type EventPayload struct {
	Type  PayloadType     `json:"type"`
	ID    string          `json:"id"`
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data"`
}

// StreamPayload carries one item of a monotonically-sequenced stream.
// Sequence is scoped per (sender, stream_type); the Hub does not renumber
// it and tolerates gaps (I6).
type StreamPayload struct {
	Type       PayloadType     `json:"type"`
	StreamType string          `json:"stream_type"`
	Sequence   int64           `json:"sequence"`
	Data       json.RawMessage `json:"data"`
}

// HeartbeatPayload is the fixed payload shape for TypeHeartbeat envelopes.
type HeartbeatPayload struct {
	Timestamp    string `json:"timestamp"`
	ServerStatus string `json:"server_status"`
	Ping         string `json:"ping"`
}

// ErrorPayload is the fixed payload shape for TypeError envelopes.
type ErrorPayload struct {
	ErrorCode string          `json:"error_code"`
	Message   string          `json:"message"`
	Details   json.RawMessage `json:"details,omitempty"`
}
