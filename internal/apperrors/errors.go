package apperrors

import (
	"errors"
	"fmt"

	"github.com/shopspring/decimal"
)

// ErrNotFound indicates that a requested resource could not be found.
var ErrNotFound = errors.New("resource not found")

// ErrValidation indicates that input data failed validation rules.
var ErrValidation = errors.New("validation failed")

// ErrDuplicate indicates that an attempt was made to create a resource that already exists.
var ErrDuplicate = errors.New("resource already exists")

// ErrForbidden indicates the actor is not allowed to perform the action.
var ErrForbidden = errors.New("forbidden")

// ErrConflict is the sentinel behind ConflictError. Callers re-read and retry.
var ErrConflict = errors.New("stale write conflict")

var (
	ErrIllegalTransition   = errors.New("illegal status transition")
	ErrInsufficientBalance = errors.New("insufficient balance")
	ErrAmountMismatch      = errors.New("amount mismatch")
	ErrCollaborationLocked = errors.New("collaboration locked")
	ErrDisputeOpen         = errors.New("dispute is open")
	ErrSettlementNotDue    = errors.New("settlement window has not elapsed")
)

// ConflictError reports a write made against a stale version.
type ConflictError struct {
	Entity          string
	ID              string
	ExpectedVersion int64
}

func (e *ConflictError) Error() string {
	return fmt.Sprintf("%s %s was modified concurrently (expected version %d)", e.Entity, e.ID, e.ExpectedVersion)
}

func (e *ConflictError) Unwrap() error { return ErrConflict }

// NewConflictError builds a ConflictError for the given entity.
func NewConflictError(entity, id string, expectedVersion int64) error {
	return &ConflictError{Entity: entity, ID: id, ExpectedVersion: expectedVersion}
}

// IllegalTransitionError identifies the offending (from, to) status pair.
type IllegalTransitionError struct {
	From   string
	To     string
	Reason string
}

func (e *IllegalTransitionError) Error() string {
	if e.Reason != "" {
		return fmt.Sprintf("illegal transition %s -> %s: %s", e.From, e.To, e.Reason)
	}
	return fmt.Sprintf("illegal transition %s -> %s", e.From, e.To)
}

func (e *IllegalTransitionError) Unwrap() error { return ErrIllegalTransition }

// InsufficientBalanceError is returned when a debit would overdraw an account.
type InsufficientBalanceError struct {
	AccountID string
	Available decimal.Decimal
	Required  decimal.Decimal
}

func (e *InsufficientBalanceError) Error() string {
	return fmt.Sprintf("account %s has %s available, %s required", e.AccountID, e.Available.String(), e.Required.String())
}

func (e *InsufficientBalanceError) Unwrap() error { return ErrInsufficientBalance }

// AmountMismatchError is returned when a split does not add up to the expected total.
type AmountMismatchError struct {
	Expected decimal.Decimal
	Actual   decimal.Decimal
}

func (e *AmountMismatchError) Error() string {
	return fmt.Sprintf("amounts sum to %s, expected %s", e.Actual.String(), e.Expected.String())
}

func (e *AmountMismatchError) Unwrap() error { return ErrAmountMismatch }

// CollaborationLockedError is returned for mutations of an active or completed collaboration.
type CollaborationLockedError struct {
	CollaborationID string
	Status          string
}

func (e *CollaborationLockedError) Error() string {
	return fmt.Sprintf("collaboration %s is %s and can no longer be changed", e.CollaborationID, e.Status)
}

func (e *CollaborationLockedError) Unwrap() error { return ErrCollaborationLocked }

// NotFoundError names the missing entity.
type NotFoundError struct {
	Entity string
	ID     string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s %s not found", e.Entity, e.ID)
}

func (e *NotFoundError) Unwrap() error { return ErrNotFound }

// NewNotFoundError builds a NotFoundError.
func NewNotFoundError(entity, id string) error {
	return &NotFoundError{Entity: entity, ID: id}
}
