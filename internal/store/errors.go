package store

import (
	"errors"
	"fmt"
)

// Sentinel errors
var (
	// ErrDuplicateMessage means the message is already in the ledger
	ErrDuplicateMessage = errors.New("message already processed")
	// ErrIncompleteRecord means the record lacks a company or role
	ErrIncompleteRecord = errors.New("record missing company or role")
	// ErrLeaseHeld means another run holds the lease
	ErrLeaseHeld = errors.New("lease held by another run")
)

// IntegrityError is a constraint violation, typically a concurrent insert of the same (company, role)
type IntegrityError struct {
	Message string
	Cause   error
}

func (e *IntegrityError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("integrity violation: %s: %v", e.Message, e.Cause)
	}
	return fmt.Sprintf("integrity violation: %s", e.Message)
}

func (e *IntegrityError) Unwrap() error {
	return e.Cause
}

// TransientError is a failure that may succeed on retry (lost connection, serialization failure)
type TransientError struct {
	Message string
	Cause   error
}

func (e *TransientError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("transient store error: %s: %v", e.Message, e.Cause)
	}
	return fmt.Sprintf("transient store error: %s", e.Message)
}

func (e *TransientError) Unwrap() error {
	return e.Cause
}

// IsIntegrity reports whether err wraps an IntegrityError
func IsIntegrity(err error) bool {
	var ie *IntegrityError
	return errors.As(err, &ie)
}

// IsTransient reports whether err wraps a TransientError
func IsTransient(err error) bool {
	var te *TransientError
	return errors.As(err, &te)
}
