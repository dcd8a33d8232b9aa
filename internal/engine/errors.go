package engine

import (
	"errors"
	"fmt"
)

var (
	// ErrInvalidInput marks a malformed request field.
	ErrInvalidInput = errors.New("invalid input")
	// ErrHistoryDisabled means no action log is configured.
	ErrHistoryDisabled = errors.New("action history not configured")
)

func invalidInput(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrInvalidInput, fmt.Sprintf(format, args...))
}
