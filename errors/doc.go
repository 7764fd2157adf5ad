// Package errors provides structured error types for the uvcompat module.
//
// Errors are categorized by Phase (which operation was running) and Kind (error category).
// The Error type carries the failing operation, the async id of the handle involved and a
// cause chain.
//
// Status codes, not errors, cross the callback API boundary. These errors describe
// programmer mistakes (panics at the call site), panics recovered from scheduled tasks and
// host transport failures that are logged before being mapped to a status code.
//
// Use the Builder for structured error construction:
//
//	err := errors.New(errors.PhaseWrite, errors.KindInvalidState).
//		Op("WriteBuffer").
//		Handle(7).
//		Detail("stream is shutting down").
//		Build()
//
// Or use convenience constructors for common patterns:
//
//	err := errors.InvalidCallback(errors.PhaseWrite, "NewWriteRequest")
//	err := errors.Unsupported(errors.PhaseEncode, "ucs2 string writes")
//
// All errors implement the standard error interface and support errors.Is/As.
package errors
