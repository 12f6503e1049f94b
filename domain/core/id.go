package core

import (
	"fmt"
	"strings"

	"github.com/google/uuid"
)

// ID represents a domain identifier.
type ID string

// NewID creates a new unique identifier using UUID v7 for time-ordered generation.
func NewID() ID {
	id, err := uuid.NewV7()
	if err != nil {
		id = uuid.New()
	}
	return ID(id.String())
}

// String returns the string representation.
func (id ID) String() string {
	return string(id)
}

// IsEmpty checks if the ID is empty.
func (id ID) IsEmpty() bool {
	return id == ""
}

// RunID identifies one generation run (one process-lifetime request).
type RunID ID

func (id RunID) String() string { return ID(id).String() }

// ParseRunID parses a string into a RunID.
func ParseRunID(s string) (RunID, error) {
	if strings.TrimSpace(s) == "" {
		return "", fmt.Errorf("run ID cannot be empty")
	}
	return RunID(s), nil
}

// CandidateID identifies a candidate site. Unlike RunID it is not random:
// callers derive it from the candidate's hex cell index so that it stays
// stable across recomputations within a run.
type CandidateID ID

func (id CandidateID) String() string { return ID(id).String() }

// NewCandidateID derives a stable id from a hex cell index.
func NewCandidateID(hexIndex string) CandidateID {
	return CandidateID(hexIndex)
}
