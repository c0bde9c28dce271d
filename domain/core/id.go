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
	// Use UUID v7 for time-ordered, sortable IDs
	// Falls back to v4 if v7 is not available (for compatibility)
	id, err := uuid.NewV7()
	if err != nil {
		// Fallback to v4 if v7 fails
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
	EvaluatorID ID
	TargetID    ID
	SessionID   ID
	ExpertID    ID
	ReportID    ID
)

// CompetenceDomain scopes an evaluator's authority to one area of
// expertise (e.g. "tax", "criminal", "constitutional").
type CompetenceDomain string

// DomainGeneral is the unscoped competence domain used when a caller does
// not request domain-scoped authority.
const DomainGeneral CompetenceDomain = "general"

// String conversions for domain IDs
func (id EvaluatorID) String() string { return ID(id).String() }
func (id TargetID) String() string    { return ID(id).String() }
func (id SessionID) String() string   { return ID(id).String() }
func (id ExpertID) String() string    { return ID(id).String() }
func (id ReportID) String() string    { return ID(id).String() }

// ParseEvaluatorID parses a string into EvaluatorID
func ParseEvaluatorID(s string) (EvaluatorID, error) {
	if strings.TrimSpace(s) == "" {
		return "", fmt.Errorf("evaluator ID cannot be empty")
	}
	return EvaluatorID(s), nil
}

// ParseTargetID parses a string into TargetID
func ParseTargetID(s string) (TargetID, error) {
	if strings.TrimSpace(s) == "" {
		return "", fmt.Errorf("target ID cannot be empty")
	}
	return TargetID(s), nil
}

// ParseSessionID parses a string into SessionID
func ParseSessionID(s string) (SessionID, error) {
	if strings.TrimSpace(s) == "" {
		return "", fmt.Errorf("session ID cannot be empty")
	}
	return SessionID(s), nil
}

// ParseExpertID parses a string into ExpertID
func ParseExpertID(s string) (ExpertID, error) {
	if strings.TrimSpace(s) == "" {
		return "", fmt.Errorf("expert ID cannot be empty")
	}
	return ExpertID(s), nil
}
