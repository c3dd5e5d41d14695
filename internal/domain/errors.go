package domain

import (
	"errors"
	"fmt"
)

var (
	// ErrInvalidUsage indicates negative token counts were supplied.
	ErrInvalidUsage = errors.New("invalid usage")

	// ErrIOFailure indicates a snapshot could not be written.
	ErrIOFailure = errors.New("io failure")

	// ErrEmptyPhase indicates a record call without a phase name.
	ErrEmptyPhase = errors.New("phase cannot be empty")

	// ErrReservedPhase indicates a record call against the total bucket.
	ErrReservedPhase = errors.New("phase name is reserved")

	// ErrMissingDefaultPricing indicates a pricing table without a default entry.
	ErrMissingDefaultPricing = errors.New("pricing table has no default entry")

	// ErrInvalidPricing indicates a malformed pricing entry.
	ErrInvalidPricing = errors.New("invalid pricing entry")
)

// InvalidUsageError describes a rejected record call.
type InvalidUsageError struct {
	Phase string
	Model string
	Usage Usage
}

func (e *InvalidUsageError) Error() string {
	return fmt.Sprintf("invalid usage for phase %q model %q: input_tokens=%d output_tokens=%d",
		e.Phase, e.Model, e.Usage.InputTokens, e.Usage.OutputTokens)
}

// Unwrap allows errors.Is(err, ErrInvalidUsage).
func (e *InvalidUsageError) Unwrap() error {
	return ErrInvalidUsage
}

// IOFailureError describes a failed snapshot write.
type IOFailureError struct {
	Path string
	Err  error
}

func (e *IOFailureError) Error() string {
	return fmt.Sprintf("failed to persist ledger to %s: %v", e.Path, e.Err)
}

// Unwrap exposes both ErrIOFailure and the underlying cause.
func (e *IOFailureError) Unwrap() []error {
	return []error{ErrIOFailure, e.Err}
}
