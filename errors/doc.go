// Package errors provides structured error types for the wasishim module.
//
// Errors are categorized by Phase (where the error occurred) and Kind (error category).
// The Error type carries context: config path, guest export name, offending value
// and cause chain.
//
// Use the Builder for structured error construction:
//
//	err := errors.New(errors.PhaseBridge, errors.KindIllegalState).
//		Export("_start").
//		Value(state).
//		Detail("export re-entered during suspension").
//		Build()
//
// Or use convenience constructors for common patterns:
//
//	err := errors.MissingExport(errors.PhaseStart, "_start")
//	err := errors.OutOfBounds(offset, length)
//
// All errors implement the standard error interface and support errors.Is/As.
// Errno values reported to the guest are not Go errors; see package abi.
package errors
