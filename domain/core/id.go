package core

import (
	"fmt"
	"strings"

	"github.com/google/uuid"
)

// ID represents a domain identifier
type ID string

// NewID creates a new unique identifier using UUID v7 for time-ordered generation
func NewID() ID {
	id, err := uuid.NewV7()
	if err != nil {
		id = uuid.New()
	}
	return ID(id.String())
}

// String returns the string representation
func (id ID) String() string {
	return string(id)
}

// IsEmpty checks if the ID is empty
func (id ID) IsEmpty() bool {
	return id == ""
}

// Domain-specific ID types
type (
	// SessionID is assigned by the analysis service on upload and scopes every later call.
	SessionID ID
	// RequestID tags a single outbound call for log correlation.
	RequestID ID
)

func (id SessionID) String() string { return ID(id).String() }
func (id RequestID) String() string { return ID(id).String() }

// IsEmpty reports whether the session id is unset
func (id SessionID) IsEmpty() bool { return strings.TrimSpace(string(id)) == "" }

// NewRequestID returns a fresh request identifier
func NewRequestID() RequestID {
	return RequestID(NewID())
}

// ParseSessionID parses a string into SessionID
func ParseSessionID(s string) (SessionID, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return "", fmt.Errorf("session ID cannot be empty")
	}
	return SessionID(s), nil
}
