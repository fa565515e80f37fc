// Package errkind provides typed errors for the triage core.
// Callers branch on the Kind to decide between skipping a record,
// skipping a file or aborting the run.
package errkind

import (
	"errors"
	"fmt"
)

// Kind categorizes an error.
type Kind uint8

const (
	KindUnknown Kind = iota
	// KindFormat marks a single malformed record or line. The unit is
	// skipped and processing of the file continues.
	KindFormat
	// KindNotFound marks a target registry key absent from a hive. Not a
	// failure; the target is skipped silently.
	KindNotFound
	// KindConfiguration marks an invalid rule table, threshold or similar
	// startup input. Fail fast, never mid-run.
	KindConfiguration
	// KindExternalService marks an unreachable embedding or vector-store
	// backend. Always surfaced to the caller.
	KindExternalService
	// KindDataIntegrity marks a duplicate record id within one file. The
	// first occurrence is retained.
	KindDataIntegrity
	// KindInternal marks everything else.
	KindInternal
)

func (k Kind) String() string {
	switch k {
	case KindFormat:
		return "format"
	case KindNotFound:
		return "not_found"
	case KindConfiguration:
		return "configuration"
	case KindExternalService:
		return "external_service"
	case KindDataIntegrity:
		return "data_integrity"
	case KindInternal:
		return "internal"
	default:
		return "unknown"
	}
}

// Error is the base error type for the triage core.
type Error struct {
	// Kind indicates the category of error.
	Kind Kind

	// Op is the operation being performed (e.g. "evtx.NormalizeFile").
	Op string

	// Message is a human-readable description.
	Message string

	// Err is the underlying error.
	Err error
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e.Op != "" {
		if e.Err != nil {
			return fmt.Sprintf("%s: %s: %v", e.Op, e.Message, e.Err)
		}
		return fmt.Sprintf("%s: %s", e.Op, e.Message)
	}
	if e.Err != nil {
		if e.Message == "" {
			return e.Err.Error()
		}
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

// Unwrap returns the underlying error.
func (e *Error) Unwrap() error {
	return e.Err
}

// Is reports whether the error matches the target by Kind.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return e.Kind == t.Kind
}

// E constructs an Error from the given arguments.
// Arguments can be: Kind, string (Op first, then Message), error.
func E(args ...interface{}) error {
	e := &Error{}
	for _, arg := range args {
		switch a := arg.(type) {
		case Kind:
			e.Kind = a
		case string:
			if e.Op == "" {
				e.Op = a
			} else {
				e.Message = a
			}
		case error:
			e.Err = a
		}
	}
	return e
}

// GetKind returns the Kind of the error, or KindUnknown.
func GetKind(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindUnknown
}

// IsFormat reports whether err marks a malformed record or file.
func IsFormat(err error) bool { return GetKind(err) == KindFormat }

// IsNotFound reports whether err marks an absent registry key.
func IsNotFound(err error) bool { return GetKind(err) == KindNotFound }

// IsConfiguration reports whether err marks invalid startup input.
func IsConfiguration(err error) bool { return GetKind(err) == KindConfiguration }

// IsExternalService reports whether err marks a backend failure.
func IsExternalService(err error) bool { return GetKind(err) == KindExternalService }

// IsDataIntegrity reports whether err marks a duplicate record id.
func IsDataIntegrity(err error) bool { return GetKind(err) == KindDataIntegrity }
