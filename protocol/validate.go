package protocol

import (
	"encoding/json"
	"fmt"
)

// Validate checks a decoded envelope against spec section 4.3's ordered
// rules: envelope type, identity well-formedness (sender never wildcard,
// recipient wildcard only), and payload-variant-specific required fields for
// TypeMessage envelopes. It does not check routing or authorization; those
// are the Router's job once the envelope is known to be well-formed.
//
// Validate does not check the sender identity against the session that
// produced the envelope — that cross-check (I3: sender is never rewritten,
// and detecting sender/session mismatch) lives in the Router, which has
// access to the originating session.
func Validate(e Envelope) error {
	if !e.Type.Valid() {
		return NewError(ErrValidation, fmt.Sprintf("unknown envelope type: %q", e.Type))
	}

	if err := ValidateIdentity(e.Sender, false); err != nil {
		return err
	}
	if err := ValidateIdentity(e.Recipient, true); err != nil {
		return err
	}

	switch e.Type {
	case TypeHeartbeat, TypeError:
		// Fixed system payloads, never sent by clients; no further
		// per-field validation is imposed on inbound frames of these
		// types beyond the envelope shape already checked by Decode.
		return nil
	case TypeMessage:
		return validateMessagePayload(e.Payload)
	default:
		// unreachable: e.Type.Valid() already rejected anything else.
		return NewError(ErrValidation, fmt.Sprintf("unhandled envelope type: %q", e.Type))
	}
}

func validateMessagePayload(raw json.RawMessage) error {
	var disc payloadDiscriminator
	if err := json.Unmarshal(raw, &disc); err != nil {
		return NewError(ErrValidation, "payload: malformed JSON: "+err.Error())
	}

	switch disc.Type {
	case PayloadAction:
		var p ActionPayload
		if err := json.Unmarshal(raw, &p); err != nil {
			return NewError(ErrValidation, "action payload: "+err.Error())
		}
		if p.ID == "" {
			return NewError(ErrValidation, "action payload: missing field: id")
		}
		if p.Action == "" {
			return NewError(ErrValidation, "action payload: missing field: action")
		}
		return nil
	case PayloadOutcome:
		var p OutcomePayload
		if err := json.Unmarshal(raw, &p); err != nil {
			return NewError(ErrValidation, "outcome payload: "+err.Error())
		}
		if p.ID == "" {
			return NewError(ErrValidation, "outcome payload: missing field: id")
		}
		if len(p.Outcome) == 0 {
			return NewError(ErrValidation, "outcome payload: missing field: outcome")
		}
		if _, err := p.Status(); err != nil {
			return err
		}
		return nil
	case PayloadEvent:
		var p EventPayload
		if err := json.Unmarshal(raw, &p); err != nil {
			return NewError(ErrValidation, "event payload: "+err.Error())
		}
		if p.Event == "" {
			return NewError(ErrValidation, "event payload: missing field: event")
		}
		return nil
	case PayloadStream:
		var p StreamPayload
		if err := json.Unmarshal(raw, &p); err != nil {
			return NewError(ErrValidation, "stream payload: "+err.Error())
		}
		if p.StreamType == "" {
			return NewError(ErrValidation, "stream payload: missing field: stream_type")
		}
		if p.Sequence < 0 {
			return NewError(ErrValidation, "stream payload: sequence must be non-negative")
		}
		return nil
	case "":
		return NewError(ErrValidation, "payload: missing field: type")
	default:
		return NewError(ErrValidation, fmt.Sprintf("payload: unknown type: %q", disc.Type))
	}
}
