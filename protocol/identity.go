// Package protocol defines the Star Protocol wire types: identities,
// envelopes, payload variants, the codec, and the error taxonomy. It has no
// dependency on the Hub or the client transport so it can be imported by
// either side of the wire.
package protocol

import (
	"fmt"
	"regexp"
)

// Kind names one of the four participant roles carried on the wire.
type Kind string

const (
	KindHub         Kind = "hub"
	KindAgent       Kind = "agent"
	KindEnvironment Kind = "environment"
	KindHuman       Kind = "human"
)

// Valid reports whether k is one of the four recognised kinds.
func (k Kind) Valid() bool {
	switch k {
	case KindHub, KindAgent, KindEnvironment, KindHuman:
		return true
	default:
		return false
	}
}

// WildcardID is the only legal non-charset id value, and only in a
// recipient: it denotes a broadcast within the recipient's kind.
const WildcardID = "*"

// HubID is the distinguished id reserved for the Hub's own identity.
const HubID = "hub"

// Hub is the distinguished identity the Hub uses as sender for heartbeats
// and system errors (I5).
var Hub = Identity{Kind: KindHub, ID: HubID}

var idCharset = regexp.MustCompile(`^[A-Za-z0-9_-]{3,50}$`)

// Identity is the (kind, id) pair uniquely naming a participant.
type Identity struct {
	Kind Kind   `json:"kind"`
	ID   string `json:"id"`
}

// Equal reports whether two identities name the same participant.
func (i Identity) Equal(other Identity) bool {
	return i.Kind == other.Kind && i.ID == other.ID
}

// IsWildcard reports whether this identity's id is the broadcast wildcard.
func (i Identity) IsWildcard() bool {
	return i.ID == WildcardID
}

// String renders an identity as "kind:id" for logs and error details.
func (i Identity) String() string {
	return fmt.Sprintf("%s:%s", i.Kind, i.ID)
}

// ValidateIdentity checks the kind/charset rules from spec section 3.
// allowWildcard permits id == "*"; it must only be passed true for a
// recipient identity.
func ValidateIdentity(id Identity, allowWildcard bool) error {
	if !id.Kind.Valid() {
		return NewError(ErrValidation, fmt.Sprintf("unknown identity kind: %q", id.Kind))
	}
	if id.Kind == KindHub {
		if id.ID != HubID {
			return NewError(ErrValidation, "hub identity id must be \"hub\"")
		}
		return nil
	}
	if allowWildcard && id.ID == WildcardID {
		return nil
	}
	if !idCharset.MatchString(id.ID) {
		return NewError(ErrValidation, fmt.Sprintf("identity id %q must be 3-50 chars of [A-Za-z0-9_-]", id.ID))
	}
	return nil
}
