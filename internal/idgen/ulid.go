// Package idgen provides ULID generation. The client uses it to fill in an
// action id (and with it the envelope id) that the caller left empty.
package idgen

import (
	"crypto/rand"
	"time"

	"github.com/oklog/ulid/v2"
)

// New returns a new ULID string (26 chars), lexicographically sortable by
// time. Used by the client for an action id (which also becomes the
// envelope id) when the caller doesn't supply one.
func New(now time.Time) (string, error) {
	if now.IsZero() {
		now = time.Now().UTC()
	}

	id, err := ulid.New(ulid.Timestamp(now), rand.Reader)
	if err != nil {
		return "", err
	}
	return id.String(), nil
}

// MustNew is New with now=time.Now(), panicking on the (practically
// unreachable, entropy-source-failure) error case. Convenient at call sites
// that already run inside a recovered handler or cannot return an error.
func MustNew() string {
	id, err := New(time.Now().UTC())
	if err != nil {
		panic(err)
	}
	return id
}
