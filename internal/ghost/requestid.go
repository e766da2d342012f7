package ghost

import (
	"strings"

	"github.com/google/uuid"
)

// RequestID correlates one Request with its Response. It is unique among the
// in-flight requests of the issuing Endpoint.
type RequestID string

// NewRequestID mints an id carrying prefix for debugging nested endpoints.
func NewRequestID(prefix string) RequestID {
	prefix = strings.TrimSpace(prefix)
	if prefix == "" {
		prefix = "req"
	}
	return RequestID(prefix + "_" + uuid.NewString())
}

func (id RequestID) String() string {
	return string(id)
}

// Prefix returns the caller-supplied portion of the id.
func (id RequestID) Prefix() string {
	s := string(id)
	if i := strings.LastIndexByte(s, '_'); i >= 0 {
		return s[:i]
	}
	return s
}
