// Package errs defines the error taxonomy shared by every package in this
// module. Every error that crosses a package boundary is an *Error carrying
// a Kind, so callers can pattern-match on Kind rather than string-match on
// messages.
package errs

import (
	"fmt"

	"github.com/go-stack/stack"
	"github.com/pkg/errors"
)

// Kind discriminates the class of failure. Most operations in this module
// only ever produce a handful of these; the remainder are declared for
// taxonomy completeness so a caller switching on Kind never has to handle
// an unknown value crossing the boundary, even though this module's own
// code never returns them (they belong to collaborators outside its scope:
// RPC framing, driver SDKs, auth plumbing, bucket storage).
type Kind int

const (
	KindUnknown Kind = iota

	// In-scope kinds, produced by this module.
	KindNsEmpty
	KindDbEmpty
	KindComputationDepthExceeded
	KindConflict
	KindRevision
	KindDimensionMismatch
	KindUnreachable
	KindRealtimeDisabled

	// Out-of-scope kinds, declared but never produced here.
	KindFileAccessDenied
	KindInvalidBucketUrl
	KindAccessGrantBearerInvalid
	KindIamError
	KindResponseAlreadyTaken
	KindQueryIndexOutOfBounds
	KindNotLiveQuery
	KindLossyTake
	KindInvalidResponse
)

func (k Kind) String() string {
	switch k {
	case KindNsEmpty:
		return "NsEmpty"
	case KindDbEmpty:
		return "DbEmpty"
	case KindComputationDepthExceeded:
		return "ComputationDepthExceeded"
	case KindConflict:
		return "Conflict"
	case KindRevision:
		return "Revision"
	case KindDimensionMismatch:
		return "DimensionMismatch"
	case KindUnreachable:
		return "Unreachable"
	case KindRealtimeDisabled:
		return "RealtimeDisabled"
	case KindFileAccessDenied:
		return "FileAccessDenied"
	case KindInvalidBucketUrl:
		return "InvalidBucketUrl"
	case KindAccessGrantBearerInvalid:
		return "AccessGrantBearerInvalid"
	case KindIamError:
		return "IamError"
	case KindResponseAlreadyTaken:
		return "ResponseAlreadyTaken"
	case KindQueryIndexOutOfBounds:
		return "QueryIndexOutOfBounds"
	case KindNotLiveQuery:
		return "NotLiveQuery"
	case KindLossyTake:
		return "LossyTake"
	case KindInvalidResponse:
		return "InvalidResponse"
	default:
		return "Unknown"
	}
}

// Error is the concrete error type returned by this module's packages.
type Error struct {
	Kind  Kind
	msg   string
	cause error
	frame stack.Call
}

func (e *Error) Error() string {
	if e.cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.msg, e.cause)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.msg)
}

// Unwrap exposes the wrapped cause to errors.Is/errors.As.
func (e *Error) Unwrap() error { return e.cause }

// Cause matches github.com/pkg/errors' Causer interface, returning the
// error that was passed to Wrap (without the stack wrapper around it).
func (e *Error) Cause() error { return errors.Unwrap(e.cause) }

// New builds an Error of the given kind with a formatted message.
func New(kind Kind, format string, args ...any) *Error {
	return &Error{Kind: kind, msg: fmt.Sprintf(format, args...)}
}

// Wrap builds an Error of the given kind, chaining cause via pkg/errors so
// %+v printing still yields a stack trace at the original wrap site.
func Wrap(kind Kind, cause error, format string, args ...any) *Error {
	return &Error{Kind: kind, msg: fmt.Sprintf(format, args...), cause: errors.WithStack(cause)}
}

// WithFrame attaches the stack frame of the function that calls WithFrame.
func WithFrame(e *Error) *Error {
	if e == nil {
		return nil
	}
	cs := stack.Caller(1)
	e.frame = cs
	return e
}

// Frame returns the captured frame, or the zero value if none was attached.
func (e *Error) Frame() stack.Call { return e.frame }

// Is reports whether err is an *Error of the given kind.
func Is(err error, kind Kind) bool {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind == kind
	}
	return false
}

// NsEmpty is returned when an operation needs a namespace but Options.NS
// is empty.
func NsEmpty() *Error { return New(KindNsEmpty, "no namespace selected") }

// DbEmpty is returned when an operation needs a database but Options.DB
// is empty.
func DbEmpty() *Error { return New(KindDbEmpty, "no database selected") }

// ComputationDepthExceeded is returned by session.Options.Dive when the
// recursion budget is exhausted. It carries its caller's stack frame, so
// operators can see where the budget ran out.
func ComputationDepthExceeded() *Error {
	e := New(KindComputationDepthExceeded, "computation depth exceeded")
	e.frame = stack.Caller(1)
	return e
}

// Conflict is returned by the KV substrate when an optimistic transaction
// loses a write-write race at commit.
func Conflict() *Error { return New(KindConflict, "transaction conflict") }

// Revision is returned by the codec when a value was encoded with a
// revision this build does not understand, carrying the byte offset at
// which decoding stopped.
func Revision(offset int, got, max uint16) *Error {
	return New(KindRevision, "unsupported revision %d (max %d) at offset %d", got, max, offset)
}

// DimensionMismatch is returned by vector distance kernels when the two
// operands carry a different number of elements.
func DimensionMismatch(a, b int) *Error {
	return New(KindDimensionMismatch, "dimension mismatch: %d vs %d", a, b)
}

// Unreachable marks a branch the caller believed could never execute; tag
// identifies the call site for diagnostics.
func Unreachable(tag string) *Error {
	return New(KindUnreachable, "unreachable: %s", tag)
}

// RealtimeDisabled is returned when a live query is attempted on a session
// that was not configured for realtime notifications.
func RealtimeDisabled() *Error {
	return New(KindRealtimeDisabled, "realtime notifications disabled for this session")
}
