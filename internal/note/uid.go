package note

import (
	"fmt"
	"regexp"
	"sync/atomic"
	"time"
)

// uidLayout is the timestamp portion of a UID: YYYYMMDD'T'HHMMSS.
const uidLayout = "20060102T150405"

var uidCounter uint64

// uidPattern validates the 24-character UID shape: 15 timestamp characters,
// an 8-digit monotonic counter, and a trailing 'Z'.
var uidPattern = regexp.MustCompile(`^\d{8}T\d{6}\d{8}Z$`)

// NewUID generates a UID for the current instant.
func NewUID() string {
	return newUIDAt(time.Now())
}

// newUIDAt generates a UID for a caller-supplied instant, exposed for tests
// that need deterministic timestamps. The counter always increases across
// the process lifetime, so UIDs are collision-free regardless of how many
// are requested for the same instant.
func newUIDAt(t time.Time) string {
	n := atomic.AddUint64(&uidCounter, 1)
	return fmt.Sprintf("%s%08dZ", t.UTC().Format(uidLayout), n%100000000)
}

// ValidUID reports whether s has the shape of a UID produced by NewUID.
func ValidUID(s string) bool {
	return len(s) == 24 && uidPattern.MatchString(s)
}
