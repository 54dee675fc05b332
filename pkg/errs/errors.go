package errs

import (
	"errors"
	"fmt"
)

// Kind classifies generator failures for callers that branch on error class.
type Kind string

const (
	KindConfiguration Kind = "configuration"
	KindGeneration    Kind = "generation"
	KindWriter        Kind = "writer"
	KindSynthesizer   Kind = "synthesizer"
)

// Error is the application-level error carried through the generation pipeline.
type Error struct {
	Kind    Kind
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

// Unwrap returns the underlying error.
func (e *Error) Unwrap() error {
	return e.Err
}

// WithError wraps an underlying error.
func (e *Error) WithError(err error) *Error {
	e.Err = err
	return e
}

// Configurationf creates a configuration error. Configuration errors are raised
// eagerly at config construction, never mid-run.
func Configurationf(format string, a ...any) *Error {
	return &Error{Kind: KindConfiguration, Message: fmt.Sprintf(format, a...)}
}

// Generationf creates an error fatal to the current run.
func Generationf(format string, a ...any) *Error {
	return &Error{Kind: KindGeneration, Message: fmt.Sprintf(format, a...)}
}

// Synthesizerf creates an error for a failure inside an available synthesizer
// backend. Unavailable backends are MissingExtraError, not this kind.
func Synthesizerf(format string, a ...any) *Error {
	return &Error{Kind: KindSynthesizer, Message: fmt.Sprintf(format, a...)}
}

// Writerf creates a writer error. Writer failures surface immediately with no
// partial-chunk retry.
func Writerf(format string, a ...any) *Error {
	return &Error{Kind: KindWriter, Message: fmt.Sprintf(format, a...)}
}

// IsKind reports whether err carries the given kind anywhere in its chain.
func IsKind(err error, kind Kind) bool {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind == kind
	}
	return false
}

// MissingExtraError reports an optional synthesizer backend that is not
// available in this build. It never silently falls back to another backend.
type MissingExtraError struct {
	Extra string
}

func (e *MissingExtraError) Error() string {
	return fmt.Sprintf("optional synthesizer backend %q is not available", e.Extra)
}

// MissingExtra creates a missing-backend error naming the required extra.
func MissingExtra(extra string) *MissingExtraError {
	return &MissingExtraError{Extra: extra}
}
