// Package ids generates request identifiers.
package ids

import (
	mathrand "math/rand"
	"strings"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"
)

var (
	entropyMu sync.Mutex
	entropy   = ulid.Monotonic(mathrand.New(mathrand.NewSource(time.Now().UnixNano())), 0)
)

// New returns a lexicographically sortable identifier.
func New() string {
	entropyMu.Lock()
	defer entropyMu.Unlock()
	return ulid.MustNew(ulid.Timestamp(time.Now()), entropy).String()
}

// Accept returns id when it is a well-formed ULID supplied by a client or
// proxy, otherwise a fresh one.
func Accept(id string) string {
	id = strings.TrimSpace(id)
	if _, err := ulid.ParseStrict(id); err == nil {
		return id
	}
	return New()
}
