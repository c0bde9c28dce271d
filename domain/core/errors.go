package core

import (
	"errors"
	"fmt"
)

// Domain errors - centralized error definitions
var (
	// Not found errors
	ErrNotFound          = errors.New("resource not found")
	ErrEvaluatorNotFound = fmt.Errorf("%w: evaluator", ErrNotFound)
	ErrTargetNotFound    = fmt.Errorf("%w: target", ErrNotFound)
	ErrSessionNotFound   = fmt.Errorf("%w: session", ErrNotFound)

	// Validation errors
	ErrInvalidVote       = errors.New("invalid vote")
	ErrUnknownTargetType = errors.New("unknown target type")
	ErrValueOutOfDomain  = errors.New("vote value outside allowed domain")
	ErrInsufficientData  = errors.New("insufficient data for analysis")

	// Consensus errors
	ErrQuorumNotMet = errors.New("quorum not met")

	// Session errors
	ErrSessionTerminal = errors.New("session already terminal")
	ErrNoProducers     = errors.New("no opinion producers configured")
	ErrExpertTimeout   = errors.New("expert call timed out")

	// Configuration errors
	ErrWeightsNotNormalized = errors.New("authority weight coefficients must sum to 1")
)

// Error constructors with context
func NewNotFoundError(resource string, id string) error {
	return fmt.Errorf("%w: %s with id %s", ErrNotFound, resource, id)
}

func NewVoteValidationError(field string, reason string) error {
	return fmt.Errorf("%w: %s: %s", ErrInvalidVote, field, reason)
}

func NewQuorumError(have int, want int) error {
	return fmt.Errorf("%w: %d evaluators, need %d", ErrQuorumNotMet, have, want)
}

// Error checking helpers
func IsNotFoundError(err error) bool {
	return errors.Is(err, ErrNotFound)
}

func IsValidationError(err error) bool {
	return errors.Is(err, ErrInvalidVote) ||
		errors.Is(err, ErrUnknownTargetType) ||
		errors.Is(err, ErrValueOutOfDomain)
}

func IsTerminalSessionError(err error) bool {
	return errors.Is(err, ErrSessionTerminal)
}
