package domain

import "errors"

var (
	ErrNotFound           = errors.New("not found")
	ErrInvalidInput       = errors.New("invalid input")
	ErrIllegalTransition  = errors.New("illegal processing status transition")
	ErrRetryNotAllowed    = errors.New("order is not in a retriable state")
	ErrMaxRetriesExceeded = errors.New("maximum retries exceeded")
	ErrPromptNotFound     = errors.New("selected prompt not found for analysis")
	ErrMissingReference   = errors.New("order is missing a required reference")
	ErrNoPrompts          = errors.New("could not generate prompts for this scene")
	ErrProviderFailure    = errors.New("provider failure")
	ErrPaymentRequired    = errors.New("payment not completed")
)

// ValidationError carries a user-facing message together with suggestions on
// how to fix the request. It unwraps to ErrInvalidInput.
type ValidationError struct {
	Message     string
	Suggestions []string
}

func (e *ValidationError) Error() string {
	return e.Message
}

func (e *ValidationError) Unwrap() error {
	return ErrInvalidInput
}

// NewValidationError builds a ValidationError.
func NewValidationError(message string, suggestions ...string) *ValidationError {
	return &ValidationError{Message: message, Suggestions: suggestions}
}
