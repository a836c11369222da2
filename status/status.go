// Package status provides the uniform status code and error type used
// across every OpenFSW subsystem. It plays the role that a single
// openfsw_status_t enum plays in the C core, but keeps the richer
// wrap/inspect semantics Go callers expect.
package status

import (
	"errors"
	"fmt"
)

// Code is the uniform result classification returned by subsystem
// operations, mirroring openfsw_status_t.
type Code int

const (
	// Ok indicates success.
	Ok Code = iota
	// Generic is an unclassified failure.
	Generic
	// Timeout indicates a blocking operation exceeded its deadline.
	Timeout
	// InvalidParam indicates a caller passed an invalid argument.
	InvalidParam
	// NoMemory indicates a fixed-capacity allocation was exhausted.
	NoMemory
	// Busy indicates a resource is currently locked or in use.
	Busy
	// NotReady indicates the subsystem has not completed initialization.
	NotReady
	// NotFound indicates a lookup (handler, rule, definition) failed.
	NotFound
	// PermissionDenied indicates the caller lacked sufficient authorization.
	PermissionDenied
	// CrcMismatch indicates a checksum validation failure.
	CrcMismatch
	// Overflow indicates a bounded structure could not accept more data.
	Overflow
	// Underflow indicates a read was attempted on an empty structure.
	Underflow
	// BusError indicates a simulated hardware bus transaction failed.
	BusError
	// HardwareError indicates a simulated peripheral reported a fault.
	HardwareError
)

func (c Code) String() string {
	switch c {
	case Ok:
		return "ok"
	case Generic:
		return "generic error"
	case Timeout:
		return "timeout"
	case InvalidParam:
		return "invalid parameter"
	case NoMemory:
		return "no memory"
	case Busy:
		return "busy"
	case NotReady:
		return "not ready"
	case NotFound:
		return "not found"
	case PermissionDenied:
		return "permission denied"
	case CrcMismatch:
		return "crc mismatch"
	case Overflow:
		return "overflow"
	case Underflow:
		return "underflow"
	case BusError:
		return "bus error"
	case HardwareError:
		return "hardware error"
	default:
		return "unknown status"
	}
}

// Error is a status code carrying the operation, subsystem and optional
// wrapped cause that produced it. It supports errors.Is/errors.As the
// same way a *ContainerError does.
type Error struct {
	// Op is the operation that failed (e.g. "telecommand.process").
	Op string
	// Subsystem names the component that raised the error, if applicable.
	Subsystem string
	// Code is the status classification.
	Code Code
	// Detail provides additional human-readable context.
	Detail string
	// Err is the wrapped cause, if any.
	Err error
}

func (e *Error) Error() string {
	if e == nil {
		return "<nil>"
	}
	msg := ""
	if e.Subsystem != "" {
		msg = fmt.Sprintf("%s: ", e.Subsystem)
	}
	if e.Op != "" {
		msg += fmt.Sprintf("%s: ", e.Op)
	}
	if e.Detail != "" {
		msg += e.Detail
	} else {
		msg += e.Code.String()
	}
	if e.Err != nil {
		msg += fmt.Sprintf(": %v", e.Err)
	}
	return msg
}

// Unwrap returns the wrapped cause.
func (e *Error) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}

// Is reports whether target is a *Error with the same Code.
func (e *Error) Is(target error) bool {
	if e == nil {
		return target == nil
	}
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return e.Code == t.Code
}

// New creates an *Error carrying the given code without a wrapped cause.
func New(code Code, subsystem, op, detail string) *Error {
	return &Error{Code: code, Subsystem: subsystem, Op: op, Detail: detail}
}

// Wrap attaches a status code and operation name to an existing error.
func Wrap(err error, code Code, subsystem, op string) *Error {
	return &Error{Code: code, Subsystem: subsystem, Op: op, Err: err}
}

// Is reports whether err classifies as code, looking through *Error wrapping.
func Is(err error, code Code) bool {
	var se *Error
	if errors.As(err, &se) {
		return se.Code == code
	}
	return false
}

// CodeOf extracts the Code from err if it is (or wraps) a *Error.
func CodeOf(err error) (Code, bool) {
	var se *Error
	if errors.As(err, &se) {
		return se.Code, true
	}
	return Ok, false
}

// FromError reduces any error to its best-effort Code, for callers that
// need a plain openfsw_status_t-shaped return instead of an error value.
func FromError(err error) Code {
	if err == nil {
		return Ok
	}
	if c, ok := CodeOf(err); ok {
		return c
	}
	return Generic
}
