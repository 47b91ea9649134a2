package watcher

import (
	"errors"
	"fmt"
)

// ErrorKind classifies a failed check or load attempt.
type ErrorKind int

// Error kinds, in pipeline order.
const (
	NotFound ErrorKind = iota + 1
	MetadataUnavailable
	ReadFailure
	MalformedStructure
	ValidationFailed
)

func (k ErrorKind) String() string {
	switch k {
	case NotFound:
		return "not_found"
	case MetadataUnavailable:
		return "metadata_unavailable"
	case ReadFailure:
		return "read_failure"
	case MalformedStructure:
		return "malformed_structure"
	case ValidationFailed:
		return "validation_failed"
	default:
		return fmt.Sprintf("ErrorKind(%d)", int(k))
	}
}

var (
	// ErrNotFound matches errors for a target file that does not exist.
	ErrNotFound = errors.New("configuration file not found")
	// ErrMetadataUnavailable matches errors from a failed metadata query.
	ErrMetadataUnavailable = errors.New("cannot access file metadata")
	// ErrReadFailure matches errors from reading the file content.
	ErrReadFailure = errors.New("failed to read configuration file")
	// ErrMalformedStructure matches content that does not parse.
	ErrMalformedStructure = errors.New("invalid configuration structure")
	// ErrValidationFailed matches content that violates a business rule.
	ErrValidationFailed = errors.New("configuration validation failed")
	// ErrUnclassified wraps loader failures outside the taxonomy above.
	// It is the only error that stops Watch.
	ErrUnclassified = errors.New("unclassified watcher failure")
)

var sentinels = map[ErrorKind]error{
	NotFound:            ErrNotFound,
	MetadataUnavailable: ErrMetadataUnavailable,
	ReadFailure:         ErrReadFailure,
	MalformedStructure:  ErrMalformedStructure,
	ValidationFailed:    ErrValidationFailed,
}

// Error is a classified failure of one check or load attempt.
type Error struct {
	Kind ErrorKind
	Path string
	// Reason is the violated rule for ValidationFailed.
	Reason string
	Err    error
}

func (e *Error) Error() string {
	msg := fmt.Sprintf("%v: %s", sentinels[e.Kind], e.Path)
	switch {
	case e.Reason != "":
		return msg + ": " + e.Reason
	case e.Err != nil:
		return msg + ": " + e.Err.Error()
	default:
		return msg
	}
}

func (e *Error) Unwrap() error { return e.Err }

// Is matches the sentinel for e.Kind.
func (e *Error) Is(target error) bool {
	s, ok := sentinels[e.Kind]
	return ok && s == target
}

// KindOf returns the ErrorKind of err, or 0 if err is not an *Error.
func KindOf(err error) ErrorKind {
	var we *Error
	if errors.As(err, &we) {
		return we.Kind
	}
	return 0
}
