package domain

import (
	"errors"
	"fmt"
)

var (
	ErrUnknownType         = errors.New("unknown type")
	ErrNotFound            = errors.New("not found")
	ErrRootNotFound        = fmt.Errorf("root object %w", ErrNotFound)
	ErrStaleReference      = fmt.Errorf("stale reference: object %w", ErrNotFound)
	ErrMethodNotFound      = errors.New("method not found")
	ErrNotCallable         = errors.New("object is not callable")
	ErrPropertyNotWritable = errors.New("property is not writable")
	ErrHostInvocation      = errors.New("host invocation failed")
	ErrMalformedCommand    = errors.New("malformed command")
	ErrUnknownCommand      = errors.New("unknown command")
	ErrNotSupported        = errors.New("not supported by host")

	// ErrNotSpecifier is returned by a host when a value that looks like a
	// specifier cannot report a class of its own.
	ErrNotSpecifier = errors.New("value is not a specifier")
)

type ErrorCode string

const (
	CodeUnknownType         ErrorCode = "UnknownType"
	CodeNotFound            ErrorCode = "NotFound"
	CodeStaleReference      ErrorCode = "StaleReference"
	CodeMethodNotFound      ErrorCode = "MethodNotFound"
	CodeNotCallable         ErrorCode = "NotCallable"
	CodePropertyNotWritable ErrorCode = "PropertyNotWritable"
	CodeHostInvocation      ErrorCode = "HostInvocationError"
	CodeMalformedCommand    ErrorCode = "MalformedCommand"
	CodeUnknownCommand      ErrorCode = "UnknownCommand"
	CodeNotSupported        ErrorCode = "NotSupported"
	CodeInternal            ErrorCode = "Internal"
)

// sentinelCodes is checked in order; more specific sentinels come first.
var sentinelCodes = []struct {
	err  error
	code ErrorCode
}{
	{ErrStaleReference, CodeStaleReference},
	{ErrNotFound, CodeNotFound},
	{ErrUnknownType, CodeUnknownType},
	{ErrMethodNotFound, CodeMethodNotFound},
	{ErrNotCallable, CodeNotCallable},
	{ErrPropertyNotWritable, CodePropertyNotWritable},
	{ErrMalformedCommand, CodeMalformedCommand},
	{ErrUnknownCommand, CodeUnknownCommand},
	{ErrNotSupported, CodeNotSupported},
	{ErrHostInvocation, CodeHostInvocation},
}

func CodeOf(err error) ErrorCode {
	if err == nil {
		return ""
	}

	for _, entry := range sentinelCodes {
		if errors.Is(err, entry.err) {
			return entry.code
		}
	}

	return CodeInternal
}

// HostError carries a failure raised by host code while the bridge was
// reading, writing or invoking something on a live object.
type HostError struct {
	Op      string
	Code    int
	HasCode bool
	Err     error
}

func (e *HostError) Error() string {
	if e.HasCode {
		return fmt.Sprintf("host %s (code %d): %v", e.Op, e.Code, e.Err)
	}
	return fmt.Sprintf("host %s: %v", e.Op, e.Err)
}

func (e *HostError) Unwrap() []error {
	return []error{ErrHostInvocation, e.Err}
}

type hostCoder interface {
	HostCode() int
}

// NewHostError wraps err as a host invocation failure unless it already
// carries one of the bridge sentinels.
func NewHostError(op string, err error) error {
	if err == nil {
		return nil
	}

	var hostErr *HostError
	if errors.As(err, &hostErr) {
		return err
	}
	if CodeOf(err) != CodeInternal {
		return err
	}

	wrapped := &HostError{Op: op, Err: err}
	var coder hostCoder
	if errors.As(err, &coder) {
		wrapped.Code = coder.HostCode()
		wrapped.HasCode = true
	}

	return wrapped
}
