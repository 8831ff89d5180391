package domain

import (
	"errors"
	"fmt"
)

var (
	// ErrMalformed marks upstream data that cannot be transformed. It is
	// never retried; the record is dead-lettered and skipped.
	ErrMalformed = errors.New("malformed record")

	// ErrTransient marks a store failure that may succeed on retry.
	ErrTransient = errors.New("transient store failure")

	// ErrStoreUnavailable marks loss of the storage collaborator. It stops
	// the consumer loop once retries are exhausted.
	ErrStoreUnavailable = errors.New("store unavailable")
)

// Malformed wraps a decoding or validation failure as ErrMalformed.
func Malformed(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrMalformed, fmt.Sprintf(format, args...))
}

type transientError struct {
	err error
}

func (e *transientError) Error() string { return e.err.Error() }
func (e *transientError) Unwrap() []error {
	return []error{ErrTransient, e.err}
}

// Transient marks err as retryable. A nil err stays nil.
func Transient(err error) error {
	if err == nil {
		return nil
	}
	return &transientError{err: err}
}

// IsRetryable reports whether err is worth another attempt.
func IsRetryable(err error) bool {
	return errors.Is(err, ErrTransient)
}

// PartialWriteError reports that one half of the like dual write failed
// while the other half may have been applied. The audit log and the counter
// are then out of step for Subject.
type PartialWriteError struct {
	Subject    string
	AuditErr   error
	CounterErr error
}

func (e *PartialWriteError) Error() string {
	switch {
	case e.AuditErr != nil && e.CounterErr != nil:
		return fmt.Sprintf("like %s: audit and counter writes failed: %v", e.Subject, errors.Join(e.AuditErr, e.CounterErr))
	case e.AuditErr != nil:
		return fmt.Sprintf("like %s: audit write failed, counter incremented: %v", e.Subject, e.AuditErr)
	default:
		return fmt.Sprintf("like %s: counter write failed, audit row appended: %v", e.Subject, e.CounterErr)
	}
}

func (e *PartialWriteError) Unwrap() []error {
	var errs []error
	if e.AuditErr != nil {
		errs = append(errs, e.AuditErr)
	}
	if e.CounterErr != nil {
		errs = append(errs, e.CounterErr)
	}
	return errs
}

// Stage names the half of the write that failed, for dead letters.
func (e *PartialWriteError) Stage() string {
	switch {
	case e.AuditErr != nil && e.CounterErr != nil:
		return "audit+counter"
	case e.AuditErr != nil:
		return "audit"
	default:
		return "counter"
	}
}
