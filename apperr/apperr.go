// Package apperr is the single error type returned by the gateway core.
//
// Every failure is tagged with one Kind. The set of kinds is closed; callers
// switch on Kind to tell an unreachable store from a rejected write from a
// malformed input.
package apperr

import (
	"errors"
	"fmt"
)

// Kind identifies the source of a failure.
type Kind int

const (
	// IO is a local I/O failure (reading a request body, opening a data file).
	IO Kind = iota + 1
	// Missing means an operation expected a value and found none.
	Missing
	// Decode is a structural decode failure (document or wire value of the wrong shape).
	Decode
	// Encode means a value could not be represented as a document.
	Encode
	// Store is a native store error: connectivity, command rejection, timeout.
	Store
	// WriteException means the store executed a write and reported it failed.
	WriteException
)

var kindNames = map[Kind]string{
	IO:             "io",
	Missing:        "missing value",
	Decode:         "decode",
	Encode:         "encode",
	Store:          "store",
	WriteException: "write exception",
}

func (k Kind) String() string {
	if s, ok := kindNames[k]; ok {
		return s
	}
	return fmt.Sprintf("kind(%d)", int(k))
}

// Code is the machine-readable form used in GraphQL error extensions.
func (k Kind) Code() string {
	switch k {
	case IO:
		return "IO_ERROR"
	case Missing:
		return "MISSING_VALUE"
	case Decode:
		return "DECODE_ERROR"
	case Encode:
		return "ENCODE_ERROR"
	case Store:
		return "STORE_ERROR"
	case WriteException:
		return "WRITE_EXCEPTION"
	}
	return "UNKNOWN"
}

// Error carries the kind, the operation that failed and the underlying
// diagnostic.
type Error struct {
	Kind Kind
	Op   string
	Err  error
}

func (e *Error) Error() string {
	msg := "<nil>"
	if e.Err != nil {
		msg = e.Err.Error()
	}
	if e.Op == "" {
		return fmt.Sprintf("%s: %s", e.Kind, msg)
	}
	return fmt.Sprintf("%s: %s: %s", e.Op, e.Kind, msg)
}

func (e *Error) Unwrap() error { return e.Err }

// Extensions is picked up by the GraphQL executor and attached to the field
// error.
func (e *Error) Extensions() map[string]interface{} {
	return map[string]interface{}{
		"code":    e.Kind.Code(),
		"kind":    e.Kind.String(),
		"message": e.Error(),
	}
}

func newError(k Kind, op string, err error) *Error {
	return &Error{Kind: k, Op: op, Err: err}
}

func NewIO(op string, err error) *Error     { return newError(IO, op, err) }
func NewDecode(op string, err error) *Error { return newError(Decode, op, err) }
func NewEncode(op string, err error) *Error { return newError(Encode, op, err) }
func NewStore(op string, err error) *Error  { return newError(Store, op, err) }

// NewWrite wraps a write exception reported by the store.
func NewWrite(op string, err error) *Error { return newError(WriteException, op, err) }

// NewMissing reports that the named value was expected but absent.
func NewMissing(op, what string) *Error {
	return newError(Missing, op, fmt.Errorf("expected %s, found none", what))
}

// KindOf returns the kind of the first *Error in err's chain, or 0.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return 0
}

// Is reports whether err carries the given kind.
func Is(err error, k Kind) bool {
	return err != nil && KindOf(err) == k
}
