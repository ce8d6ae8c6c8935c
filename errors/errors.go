package errors

import (
	stderrors "errors"
	"fmt"
)

// Sentinel errors that can be checked with Is(). Matching is by code, so any
// *Error carrying the same code matches regardless of its operation or cause.
var (
	ErrConnection     = &Error{Code: CodeConnection}
	ErrUpdate         = &Error{Code: CodeUpdate}
	ErrNotConnected   = &Error{Code: CodeNotConnected}
	ErrCommit         = &Error{Code: CodeCommit}
	ErrSync           = &Error{Code: CodeSync}
	ErrCancelled      = &Error{Code: CodeCancelled}
	ErrSyncInProgress = &Error{Code: CodeSyncInProgress}
	ErrConflict       = &Error{Code: CodeConflict}
	ErrNetwork        = &Error{Code: CodeNetwork}
	ErrInvalidInput   = &Error{Code: CodeInvalidInput}
	ErrInvalidConfig  = &Error{Code: CodeInvalidConfig}
)

// Error is a coded error. Op names the operation that failed and Err holds the cause.
type Error struct {
	Code ErrorCode
	Op   string
	Err  error
}

// Error implements the error interface.
func (e *Error) Error() string {
	msg := string(e.Code)
	if e.Op != "" {
		msg = e.Op + ": " + msg
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

// Unwrap returns the underlying cause.
func (e *Error) Unwrap() error {
	return e.Err
}

// Is reports whether target is an *Error with the same code.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.Code == e.Code
}

// New creates a coded error for op with a formatted message as its cause.
func New(code ErrorCode, op, format string, args ...any) error {
	return &Error{Code: code, Op: op, Err: fmt.Errorf(format, args...)}
}

// Wrap attaches a code and operation to err. It returns nil when err is nil.
func Wrap(err error, code ErrorCode, op string) error {
	if err == nil {
		return nil
	}
	return &Error{Code: code, Op: op, Err: err}
}

// CodeOf returns the code of the outermost *Error in err's chain,
// or CodeUnknown when there is none.
func CodeOf(err error) ErrorCode {
	var e *Error
	if As(err, &e) {
		return e.Code
	}
	return CodeUnknown
}

// IsRetryable reports whether any coded error in err's chain is retryable.
func IsRetryable(err error) bool {
	for err != nil {
		var e *Error
		if !As(err, &e) {
			return false
		}
		if e.Code.Retryable() {
			return true
		}
		err = e.Err
	}
	return false
}

// Is is errors.Is from the standard library.
func Is(err, target error) bool {
	return stderrors.Is(err, target)
}

// As is errors.As from the standard library.
func As(err error, target any) bool {
	return stderrors.As(err, target)
}

// Join is errors.Join from the standard library.
func Join(errs ...error) error {
	return stderrors.Join(errs...)
}
