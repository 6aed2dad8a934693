package domain

import (
	"errors"
	"fmt"
)

var (
	// Common domain errors
	ErrNotFound              = errors.New("entity not found")
	ErrAlreadyExists         = errors.New("entity already exists")
	ErrInvalidArgument       = errors.New("invalid argument")
	ErrUnknownCycle          = errors.New("unknown billing cycle")
	ErrActiveRequestExists   = errors.New("service already has an active payment request")
	ErrUploadFailed          = errors.New("evidence upload failed")
	ErrProofAlreadySubmitted = errors.New("proof already submitted for this request")
	ErrLockHeld              = errors.New("evaluation lock already held")

	// Infrastructure-side errors surfaced through repositories
	ErrOperationFailed    = errors.New("storage operation failed")
	ErrReadDatabaseRow    = errors.New("failed to read database row")
	ErrInvalidExecContext = errors.New("invalid executor context")
)

// TransitionError reports an illegal payment request status transition.
// Callers must never swallow it; the transition table lives on
// model.PaymentRequestStatus.
type TransitionError struct {
	From string
	To   string
}

func (e *TransitionError) Error() string {
	return fmt.Sprintf("illegal payment request transition %s -> %s", e.From, e.To)
}

func NewTransitionError(from, to string) *TransitionError {
	return &TransitionError{From: from, To: to}
}
