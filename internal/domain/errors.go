package domain

import (
	"errors"
	"fmt"
)

var (
	// ErrValidation signals a request that is missing a required upload.
	ErrValidation = errors.New("validation failed")
	// ErrStaging signals that an upload could not be written to the staging directory.
	ErrStaging = errors.New("staging failed")
	// ErrInvocationStart signals that the inference process could not be started.
	ErrInvocationStart = errors.New("inference process failed to start")
	// ErrInvocationTimeout signals that the inference process exceeded its time bound.
	ErrInvocationTimeout = errors.New("inference process timed out")
	// ErrInvocationOverflow signals that the inference process exceeded its output bound.
	ErrInvocationOverflow = errors.New("inference output exceeded limit")
	// ErrEmptyOutput signals that the inference process wrote nothing to stdout.
	ErrEmptyOutput = errors.New("inference process produced no output")
	// ErrNoPayloadFound signals stdout without any opening brace.
	ErrNoPayloadFound = errors.New("no payload found in output")
	// ErrUnbalancedPayload signals a payload whose braces never close.
	ErrUnbalancedPayload = errors.New("unbalanced payload in output")
	// ErrMalformedPayload signals a balanced candidate that is not a JSON object.
	ErrMalformedPayload = errors.New("malformed payload in output")
	// ErrSchemaMismatch signals a payload that lacks the fields an operation requires.
	ErrSchemaMismatch = errors.New("payload does not match schema")
)

// DetailError attaches a low-level cause to one of the error kinds above.
// Details is meant for the caller-facing "details" field.
type DetailError struct {
	Kind    error
	Details string
}

func (e *DetailError) Error() string {
	if e.Details == "" {
		return e.Kind.Error()
	}
	return fmt.Sprintf("%s: %s", e.Kind.Error(), e.Details)
}

func (e *DetailError) Unwrap() error { return e.Kind }

// NewDetailError creates a DetailError for the given kind.
func NewDetailError(kind error, details string) error {
	return &DetailError{Kind: kind, Details: details}
}

// Detailf is NewDetailError with a format string.
func Detailf(kind error, format string, args ...any) error {
	return &DetailError{Kind: kind, Details: fmt.Sprintf(format, args...)}
}

// DetailsOf returns the details carried by err, or err's message when it
// carries none.
func DetailsOf(err error) string {
	var de *DetailError
	if errors.As(err, &de) && de.Details != "" {
		return de.Details
	}
	return err.Error()
}

// StageError records the operation and the pipeline stage a failure happened in.
type StageError struct {
	Op    Operation
	Stage Stage
	Err   error
}

func (e *StageError) Error() string {
	return fmt.Sprintf("%s: %s: %v", e.Op, e.Stage, e.Err)
}

func (e *StageError) Unwrap() error { return e.Err }

// KindOf returns the sentinel kind wrapped by err, or nil when err carries none.
func KindOf(err error) error {
	for _, k := range kinds {
		if errors.Is(err, k.err) {
			return k.err
		}
	}
	return nil
}

// KindLabel returns a short, stable label for err's kind, suitable for
// metric labels. Errors of no known kind are labelled "internal".
func KindLabel(err error) string {
	for _, k := range kinds {
		if errors.Is(err, k.err) {
			return k.label
		}
	}
	return "internal"
}

var kinds = []struct {
	err   error
	label string
}{
	{ErrValidation, "validation"},
	{ErrStaging, "staging"},
	{ErrInvocationStart, "invocation_start"},
	{ErrInvocationTimeout, "invocation_timeout"},
	{ErrInvocationOverflow, "invocation_overflow"},
	{ErrEmptyOutput, "empty_output"},
	{ErrNoPayloadFound, "no_payload"},
	{ErrUnbalancedPayload, "unbalanced_payload"},
	{ErrMalformedPayload, "malformed_payload"},
	{ErrSchemaMismatch, "schema_mismatch"},
}
