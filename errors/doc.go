// Package errors provides the structured error types used across the
// boundary runtime.
//
// The taxonomy has four corners, and callers can pattern-match each without
// climbing a type hierarchy:
//
//   - Programming errors (use after free, use after consume, double cancel)
//     are panicked as *Error with Kind misuse. They signal a caller bug
//     immediately and deterministically; they are never returned.
//   - Marshaling failures (*Error, Kind malformed_payload) mean the bytes
//     from the native side did not decode against the expected schema.
//   - Domain errors (*Domain) are failures the native side reported
//     explicitly, carrying a stable user-facing Message and a diagnostic
//     Debug string.
//   - Cancellation is ErrCancelled, a non-error terminal state; match it
//     with errors.Is.
//
// Errors are categorized by Phase (where the error occurred) and Kind
// (error category):
//
//	err := errors.Malformed(errors.PhaseDecode, cause, "result envelope")
//	err := errors.NotFound(errors.PhaseCall, "function", "add")
//
// All errors implement the standard error interface and support
// errors.Is/As. Nothing here is retried automatically: the native side is
// not guaranteed idempotent, so retry policy belongs to the caller.
package errors
