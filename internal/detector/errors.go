package detector

import "fmt"

// Kind classifies the outcome of a detection request.
type Kind string

const (
	KindOK                Kind = "ok"
	KindNoInput           Kind = "no_input"
	KindInvalidImage      Kind = "invalid_image"
	KindModelUnavailable  Kind = "model_unavailable"
	KindDimensionMismatch Kind = "dimension_mismatch"
	KindInternal          Kind = "internal"
)

// Error is the structured failure carried by a Result.
type Error struct {
	Kind    Kind
	Message string
	Cause   error
}

func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s (caused by: %v)", e.Kind, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *Error) Unwrap() error {
	return e.Cause
}

func newError(kind Kind, message string, cause error) *Error {
	return &Error{Kind: kind, Message: message, Cause: cause}
}
