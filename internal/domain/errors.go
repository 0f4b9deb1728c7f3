package domain

import "errors"

var (
	// ErrValidation marks malformed input; validation failures are never retried.
	ErrValidation = errors.New("validation error")

	// ErrNotFound marks a missing record.
	ErrNotFound = errors.New("not found")

	// ErrConflict marks an operation rejected by the current record state.
	ErrConflict = errors.New("conflict")

	// ErrTemplateNotFound marks a missing active template for an (event type, channel) pair.
	// It is a configuration defect: the channel fails permanently, without retries.
	ErrTemplateNotFound = errors.New("template not found")

	// ErrMissingVariable marks a template placeholder with no matching value in the
	// event data. Like ErrTemplateNotFound it is a configuration defect.
	ErrMissingVariable = errors.New("missing template variable")
)

// IsRenderError reports whether err is a template configuration defect. Render
// errors fail the channel permanently and never enter the retry machinery.
func IsRenderError(err error) bool {
	return errors.Is(err, ErrTemplateNotFound) || errors.Is(err, ErrMissingVariable)
}
