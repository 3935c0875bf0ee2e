package jobs

import (
	"fmt"
	"strings"

	"github.com/google/uuid"
)

// NewID returns a collision-resistant opaque job id. Safe for concurrent
// use; ids are never reused within or across process lifetimes.
func NewID() string {
	return uuid.NewString()
}

// NewPrefixedID returns an id carrying a short human hint (e.g. the job
// name) ahead of the random part. The hint is display sugar only; the full
// string is the handle.
func NewPrefixedID(prefix string) string {
	prefix = sanitizePrefix(prefix)
	if prefix == "" {
		return NewID()
	}
	return fmt.Sprintf("%s-%s", prefix, uuid.NewString())
}

// NewTempID returns a short token for temp file names.
func NewTempID() string {
	return uuid.NewString()[:8]
}

func sanitizePrefix(s string) string {
	var b strings.Builder
	for _, r := range strings.ToLower(s) {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9', r == '-', r == '_':
			b.WriteRune(r)
		}
	}
	out := b.String()
	if len(out) > 32 {
		out = out[:32]
	}
	return out
}
