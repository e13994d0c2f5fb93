package protocol

import (
	"encoding/json"
	"time"
)

// EnvelopeType discriminates the outer protocol frame.
type EnvelopeType string

const (
	TypeHeartbeat EnvelopeType = "heartbeat"
	TypeMessage   EnvelopeType = "message"
	TypeError     EnvelopeType = "error"
)

// Valid reports whether t is a recognised envelope type.
func (t EnvelopeType) Valid() bool {
	switch t {
	case TypeHeartbeat, TypeMessage, TypeError:
		return true
	default:
		return false
	}
}

// ProtocolVersion is the current protocol major version string.
const ProtocolVersion = "1"

// MaxFrameBytes is the hard per-frame size bound (spec section 4.1).
// Transports should reject frames larger than this before calling Decode.
const MaxFrameBytes = 1 << 20 // 1 MiB

// Envelope is the outer protocol wrapper carried one-per-frame.
type Envelope struct {
	Type      EnvelopeType    `json:"type"`
	Sender    Identity        `json:"sender"`
	Recipient Identity        `json:"recipient"`
	Payload   json.RawMessage `json:"payload"`
	Timestamp string          `json:"timestamp,omitempty"`
	ID        string          `json:"id,omitempty"`
	Version   string          `json:"version,omitempty"`

	// RawExtra holds any top-level fields Decode found beyond the seven
	// named above, as a JSON object. Spec section 4.1 requires unknown
	// fields survive a round trip unmodified even though the Hub never
	// interprets them; Encode re-emits them alongside the known fields.
	RawExtra json.RawMessage `json:"-"`
}

// knownEnvelopeFields are the top-level keys Envelope itself interprets;
// everything else found during Decode is carried in RawExtra instead of
// being discarded.
var knownEnvelopeFields = [...]string{
	"type", "sender", "recipient", "payload", "timestamp", "id", "version",
}

// envelopeShape is used to distinguish "field absent" from "field present
// with its zero value" during Decode, since Go's encoding/json cannot tell
// the two apart on a plain struct unmarshal.
type envelopeShape struct {
	Type      *EnvelopeType    `json:"type"`
	Sender    *Identity        `json:"sender"`
	Recipient *Identity        `json:"recipient"`
	Payload   *json.RawMessage `json:"payload"`
	Timestamp string           `json:"timestamp"`
	ID        string           `json:"id"`
	Version   string           `json:"version"`
}

// Encode serializes an envelope to a single JSON frame. If Timestamp or
// Version are unset, it fills them with the current UTC instant and the
// current protocol version respectively (spec section 4.1). Any fields
// captured in RawExtra by a prior Decode are re-emitted alongside the known
// fields, so an envelope carrying unrecognised extensions round-trips
// without losing them.
func Encode(e Envelope) ([]byte, error) {
	if e.Timestamp == "" {
		e.Timestamp = time.Now().UTC().Format(time.RFC3339Nano)
	}
	if e.Version == "" {
		e.Version = ProtocolVersion
	}

	base, err := json.Marshal(e)
	if err != nil {
		return nil, err
	}
	if len(e.RawExtra) == 0 {
		return base, nil
	}

	var extra map[string]json.RawMessage
	if err := json.Unmarshal(e.RawExtra, &extra); err != nil {
		return nil, NewError(ErrValidation, "malformed raw_extra: "+err.Error())
	}

	var merged map[string]json.RawMessage
	if err := json.Unmarshal(base, &merged); err != nil {
		return nil, err
	}
	for k, v := range extra {
		merged[k] = v
	}
	return json.Marshal(merged)
}

// Decode parses exactly one JSON object into an Envelope. Unknown top-level
// fields are preserved (but never interpreted) in the returned Envelope's
// RawExtra, per spec section 4.1. Missing required fields or fields with the
// wrong JSON type fail with a VALIDATION_ERROR. Frames over MaxFrameBytes
// are rejected without being parsed.
func Decode(data []byte) (Envelope, error) {
	if len(data) > MaxFrameBytes {
		return Envelope{}, NewError(ErrValidation, "frame exceeds max_frame_bytes")
	}

	var shape envelopeShape
	if err := json.Unmarshal(data, &shape); err != nil {
		return Envelope{}, NewError(ErrValidation, "malformed JSON frame: "+err.Error())
	}

	if shape.Type == nil {
		return Envelope{}, NewError(ErrValidation, "missing field: type")
	}
	if shape.Sender == nil {
		return Envelope{}, NewError(ErrValidation, "missing field: sender")
	}
	if shape.Recipient == nil {
		return Envelope{}, NewError(ErrValidation, "missing field: recipient")
	}
	if shape.Payload == nil {
		return Envelope{}, NewError(ErrValidation, "missing field: payload")
	}

	env := Envelope{
		Type:      *shape.Type,
		Sender:    *shape.Sender,
		Recipient: *shape.Recipient,
		Payload:   *shape.Payload,
		Timestamp: shape.Timestamp,
		ID:        shape.ID,
		Version:   shape.Version,
	}

	var all map[string]json.RawMessage
	if err := json.Unmarshal(data, &all); err == nil {
		for _, k := range knownEnvelopeFields {
			delete(all, k)
		}
		if len(all) > 0 {
			if raw, err := json.Marshal(all); err == nil {
				env.RawExtra = raw
			}
		}
	}

	return env, nil
}
