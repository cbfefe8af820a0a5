// Package semerr implements the error-kind taxonomy described in the
// error handling design: a closed set of Kind values, a CodedError that
// carries one plus a message and optional details, and the policy
// tables mapping a Kind to a client-visible JSON code and a CLI exit
// code. Grounded on the single-struct-per-case shape already used by
// internal/parser's ParseError/FileReadError, generalized into one
// reusable type since the kind set here is shared across packages
// rather than local to one.
package semerr

import "fmt"

// Kind is a closed tag identifying why an operation failed, independent
// of Go's own error type names.
type Kind string

const (
	KindFileNotFound        Kind = "FileNotFound"
	KindUnsupportedLanguage Kind = "UnsupportedLanguage"
	KindParseFailure        Kind = "ParseFailure"
	KindExtractionFailure   Kind = "ExtractionFailure"
	KindCacheCorrupt        Kind = "CacheCorrupt"
	KindIndexStale          Kind = "IndexStale"
	KindGitFailure          Kind = "GitFailure"
	KindWatcherFailure      Kind = "WatcherFailure"
	KindProtocolError       Kind = "ProtocolError"
	KindTimeout             Kind = "Timeout"
	KindInvalidRequest      Kind = "InvalidRequest"
	KindInternal            Kind = "Internal"
)

// CodedError pairs a Kind with a message, optional structured details,
// and an optional wrapped cause.
type CodedError struct {
	Kind    Kind
	Message string
	Details map[string]interface{}
	Cause   error
}

// Error implements the error interface.
func (e *CodedError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

// Unwrap exposes the wrapped cause to errors.Is/errors.As.
func (e *CodedError) Unwrap() error {
	return e.Cause
}

// New constructs a CodedError with no wrapped cause.
func New(kind Kind, message string) *CodedError {
	return &CodedError{Kind: kind, Message: message}
}

// Wrap constructs a CodedError carrying cause, per spec's propagation
// policy for errors that cross a package boundary with a Kind attached.
func Wrap(kind Kind, message string, cause error) *CodedError {
	return &CodedError{Kind: kind, Message: message, Cause: cause}
}

// WithDetails returns a copy of e with Details set, for handlers that
// want to attach structured context (e.g. the offending file path)
// without changing the message.
func (e *CodedError) WithDetails(details map[string]interface{}) *CodedError {
	cp := *e
	cp.Details = details
	return &cp
}

// recoveredLocally is the set of kinds the propagation policy says are
// handled at the point of failure: the operation degrades (skips a
// file, re-queues a path) rather than surfacing to any caller.
var recoveredLocally = map[Kind]bool{
	KindParseFailure:      true,
	KindExtractionFailure: true,
	KindWatcherFailure:    true,
}

// RecoveredLocally reports whether kind is handled at its origin and
// should not propagate to the client or abort the enclosing batch.
func RecoveredLocally(kind Kind) bool {
	return recoveredLocally[kind]
}

// reportedToClient is the set of kinds that surface in a query response
// or WebSocket error frame.
var reportedToClient = map[Kind]bool{
	KindFileNotFound:        true,
	KindUnsupportedLanguage: true,
	KindInvalidRequest:      true,
	KindTimeout:             true,
	KindProtocolError:       true,
	KindIndexStale:          true,
}

// ReportedToClient reports whether kind is meant to reach the client,
// as opposed to being logged server-side only.
func ReportedToClient(kind Kind) bool {
	return reportedToClient[kind]
}

// ClientCode maps a Kind to the WebSocket protocol's status code
// vocabulary (connection_error, invalid_repo, unknown_method,
// invalid_params, timeout, internal_error), falling back to
// "internal_error" for anything the protocol doesn't name directly.
func ClientCode(kind Kind) string {
	switch kind {
	case KindInvalidRequest:
		return "invalid_params"
	case KindTimeout:
		return "timeout"
	case KindProtocolError:
		return "unknown_method"
	case KindFileNotFound, KindUnsupportedLanguage, KindIndexStale:
		return "invalid_repo"
	default:
		return "internal_error"
	}
}

// ExitCode maps a Kind to the CLI's process exit code: FileNotFound and
// InvalidRequest both exit 2, CacheCorrupt exits 3, everything else
// (including Internal) exits 1.
func ExitCode(kind Kind) int {
	switch kind {
	case KindFileNotFound, KindInvalidRequest:
		return 2
	case KindCacheCorrupt:
		return 3
	default:
		return 1
	}
}

// FatalToConnection reports whether kind should close the current
// client connection (but not the process) and mark the repo
// uninitialized, per the CacheCorrupt-on-load rule.
func FatalToConnection(kind Kind) bool {
	return kind == KindCacheCorrupt
}
