// Package errors provides the error taxonomy of the settings synchronization engine.
// It extends Go's standard error handling with structured error codes and retry
// classification so that callers can tell a failed connection from a failed update,
// a failed commit from a failed pull or push, and a user cancellation from a failure.
package errors

// ErrorCode represents a specific error condition in the synchronization engine.
// Error codes are string-based for debuggability and natural JSON serialization.
type ErrorCode string

const (
	// Repository lifecycle errors.

	// CodeConnection indicates the repository could not be opened
	// (network, authentication, missing local clone).
	CodeConnection ErrorCode = "CONNECTION_FAILED"

	// CodeUpdate indicates the repository was opened but could not be brought
	// up to date before use.
	CodeUpdate ErrorCode = "UPDATE_FAILED"

	// CodeNotConnected indicates an operation needed a repository but none is open.
	CodeNotConnected ErrorCode = "NOT_CONNECTED"

	// Synchronization errors.

	// CodeCommit indicates a local snapshot failed, typically a local I/O issue.
	CodeCommit ErrorCode = "COMMIT_FAILED"

	// CodeSync indicates a pull or push failed.
	CodeSync ErrorCode = "SYNC_FAILED"

	// CodeCancelled indicates an in-flight synchronization was cancelled by its caller.
	CodeCancelled ErrorCode = "CANCELLED"

	// CodeSyncInProgress indicates another explicit synchronization is already running.
	CodeSyncInProgress ErrorCode = "SYNC_IN_PROGRESS"

	// Backing store errors.

	// CodeConflict indicates a path changed both locally and on the remote.
	CodeConflict ErrorCode = "CONFLICT"

	// CodeNetwork indicates a network operation failed.
	CodeNetwork ErrorCode = "NETWORK_ERROR"

	// CodeNotFound indicates a requested resource does not exist.
	CodeNotFound ErrorCode = "NOT_FOUND"

	// Validation errors.

	// CodeInvalidInput indicates the provided input is invalid or malformed.
	CodeInvalidInput ErrorCode = "INVALID_INPUT"

	// CodeInvalidConfig indicates a configuration error prevents the operation.
	CodeInvalidConfig ErrorCode = "INVALID_CONFIGURATION"

	// System errors.

	// CodeInternal indicates an internal error occurred.
	CodeInternal ErrorCode = "INTERNAL_ERROR"

	// CodeUnknown indicates an unknown or unclassified error occurred.
	CodeUnknown ErrorCode = "UNKNOWN"
)

// Retryable reports whether errors with this code are worth retrying later
// without user intervention.
func (c ErrorCode) Retryable() bool {
	switch c {
	case CodeNetwork, CodeConnection, CodeUpdate:
		return true
	default:
		return false
	}
}
