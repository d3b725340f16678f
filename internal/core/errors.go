package core

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrMissingRequiredInput is matched by every *MissingInputError.
	ErrMissingRequiredInput = errors.New("missing required input")

	// ErrFileTooLarge is returned when an upload exceeds the configured size.
	ErrFileTooLarge = errors.New("file too large")

	// ErrNoFile is returned when a form field carries no file.
	ErrNoFile = errors.New("no file provided")

	// ErrRateLimited is returned when a client exceeds its request budget.
	ErrRateLimited = errors.New("rate limit exceeded")
)

// MissingInputError lists every input a run could not start without.
type MissingInputError struct {
	Inputs []string
}

func (e *MissingInputError) Error() string {
	return fmt.Sprintf("%s: %s", ErrMissingRequiredInput, strings.Join(e.Inputs, "; "))
}

// Is lets errors.Is(err, ErrMissingRequiredInput) match.
func (e *MissingInputError) Is(target error) bool {
	return target == ErrMissingRequiredInput
}
