// Package ids issues the correlation identifiers that tie a request's audit
// events and log lines together. They are ULIDs, so sorting ids sorts by
// issue time. Journal entries carry UUIDs instead; see the journal package.
package ids

import (
	"crypto/rand"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"
)

var gen = struct {
	sync.Mutex
	entropy *ulid.MonotonicEntropy
}{
	entropy: ulid.Monotonic(rand.Reader, 0),
}

// New returns a fresh correlation id. Ids issued within the same millisecond
// stay strictly ordered.
func New() string {
	gen.Lock()
	defer gen.Unlock()
	return ulid.MustNew(ulid.Timestamp(time.Now()), gen.entropy).String()
}
