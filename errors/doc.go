// Package errors provides the gateway's unified error type.
//
// Every failure surfaced to a client is an *AppError carrying a machine-readable
// code, an HTTP status and a retryable hint. Codes fall into the categories a
// transcription request can fail with: validation, scheduling, handler,
// no-response and timeout.
package errors
