// Package auth provides the Hub's pluggable authenticator capability (spec
// section 4.2) and its authorization hook (spec section 4.4).
package auth

import (
	"net/http"

	"starhub/protocol"
)

// Authenticator gates connection upgrades and, optionally, per-envelope
// delivery. The default is AllowAll; real deployments install JWTAuthenticator
// or APIKeyAuthenticator at construction.
type Authenticator interface {
	// Authenticate inspects the upgrade request for identity id and either
	// admits it (nil error) or rejects it. A rejection aborts the upgrade
	// with HTTP 401 before any structured error frame can be sent.
	Authenticate(r *http.Request, id protocol.Identity) error

	// Authorize is consulted by the router before delivering a message
	// envelope. The default allows everything.
	Authorize(sender protocol.Identity, env protocol.Envelope) bool
}

// AllowAll is the default Authenticator: it accepts every connection and
// authorizes every delivery, matching spec section 6's enable_auth=false
// default.
type AllowAll struct{}

func (AllowAll) Authenticate(*http.Request, protocol.Identity) error { return nil }

func (AllowAll) Authorize(protocol.Identity, protocol.Envelope) bool { return true }
