// Package vamerr defines the abstract error kinds shared across the
// graph, quantization and kernel packages.
package vamerr

import "fmt"

// Kind classifies a failure the way the core distinguishes them: as a
// caller mistake, a programming-invariant break, an unsupported
// combination, or a passthrough I/O failure.
type Kind int

const (
	// InvalidArgument covers wrong dimension, non-positive counts,
	// unknown similarity, or an unsupported persisted version.
	InvalidArgument Kind = iota
	// IndexOutOfBounds covers an ordinal outside current bounds.
	IndexOutOfBounds
	// InvariantViolation covers programming errors: save before
	// completion, unsorted diversity candidates, bad chunk arithmetic.
	InvariantViolation
	// Unsupported covers a similarity not supported by a given kernel
	// path (e.g. cosine through pq.Quantizer.ComputeSymmetricTable).
	Unsupported
	// IoFailure wraps a read/write failure passed through unchanged.
	IoFailure
)

func (k Kind) String() string {
	switch k {
	case InvalidArgument:
		return "InvalidArgument"
	case IndexOutOfBounds:
		return "IndexOutOfBounds"
	case InvariantViolation:
		return "InvariantViolation"
	case Unsupported:
		return "Unsupported"
	case IoFailure:
		return "IoFailure"
	default:
		return "Unknown"
	}
}

// Error is the concrete error type produced by this module. The core
// never retries; every failure surfaces synchronously to the caller.
type Error struct {
	Kind Kind
	Msg  string
	Err  error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Msg, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Msg)
}

func (e *Error) Unwrap() error { return e.Err }

// New builds an error of the given kind with a formatted message.
func New(kind Kind, format string, args ...interface{}) error {
	return &Error{Kind: kind, Msg: fmt.Sprintf(format, args...)}
}

// Wrap builds an error of the given kind around an underlying cause,
// used for IoFailure passthrough.
func Wrap(kind Kind, err error, format string, args ...interface{}) error {
	return &Error{Kind: kind, Msg: fmt.Sprintf(format, args...), Err: err}
}

// Is reports whether err (or something it wraps) carries the given kind.
func Is(err error, kind Kind) bool {
	for err != nil {
		if e, ok := err.(*Error); ok {
			if e.Kind == kind {
				return true
			}
			err = e.Err
			continue
		}
		type unwrapper interface{ Unwrap() error }
		u, ok := err.(unwrapper)
		if !ok {
			return false
		}
		err = u.Unwrap()
	}
	return false
}
