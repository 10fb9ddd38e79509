package errors

import (
	"errors"
	"fmt"
)

// Categories. Every typed error below matches exactly one of these via errors.Is.
var (
	ErrValidation              = errors.New("validation failed")
	ErrNotFound                = errors.New("not found")
	ErrPartialFailure          = errors.New("donation recorded but campaign total not updated")
	ErrDuplicateID             = errors.New("duplicate id")
	ErrForbidden               = errors.New("forbidden")
	ErrUnauthorized            = errors.New("unauthorized")
	ErrRequestAlreadyProcessed = errors.New("request already processed")
)

var (
	ErrInvalidAmount           = &ValidationError{Field: "amount", Msg: "must be positive"}
	ErrAmountBelowMinimum      = &ValidationError{Field: "amount", Msg: "below minimum donation"}
	ErrGoalBelowMinimum        = &ValidationError{Field: "goal_amount", Msg: "below minimum goal"}
	ErrCampaignNotActive       = &ValidationError{Field: "campaign_id", Msg: "campaign is not accepting donations"}
	ErrInvalidStatusTransition = &ValidationError{Field: "status", Msg: "invalid status transition"}
	ErrInvalidRating           = &ValidationError{Field: "rating", Msg: "must be between 1 and 5"}
	ErrCommentTooLong          = &ValidationError{Field: "comment", Msg: "must be at most 50 words"}
	ErrEmptyPatch              = &ValidationError{Field: "patch", Msg: "nothing to update"}
)

type ValidationError struct {
	Field string
	Msg   string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Msg)
}

func (e *ValidationError) Is(target error) bool {
	return target == ErrValidation
}

// Invalid builds a ValidationError for field.
func Invalid(field, msg string) error {
	return &ValidationError{Field: field, Msg: msg}
}

type NotFoundError struct {
	Entity string
	ID     string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s %q not found", e.Entity, e.ID)
}

func (e *NotFoundError) Is(target error) bool {
	return target == ErrNotFound
}

func NotFound(entity, id string) error {
	return &NotFoundError{Entity: entity, ID: id}
}

// PartialFailureError reports a donation that is in the ledger but whose
// amount has not reached the campaign aggregate. Reconciliation repairs it.
type PartialFailureError struct {
	CampaignID string
	DonationID string
	Amount     int64
	Err        error
}

func (e *PartialFailureError) Error() string {
	return fmt.Sprintf("donation %s recorded, campaign %s aggregate not updated by %d: %v",
		e.DonationID, e.CampaignID, e.Amount, e.Err)
}

func (e *PartialFailureError) Is(target error) bool {
	return target == ErrPartialFailure
}

func (e *PartialFailureError) Unwrap() error {
	return e.Err
}

type DuplicateIDError struct {
	ID string
}

func (e *DuplicateIDError) Error() string {
	return fmt.Sprintf("id %q already exists", e.ID)
}

func (e *DuplicateIDError) Is(target error) bool {
	return target == ErrDuplicateID
}

// DuplicateTransactionError is returned by a store asked to record a second
// donation under an idempotency key it already holds.
type DuplicateTransactionError struct {
	TransactionID string
}

func (e *DuplicateTransactionError) Error() string {
	return fmt.Sprintf("transaction %q already recorded", e.TransactionID)
}

func (e *DuplicateTransactionError) Is(target error) bool {
	return target == ErrDuplicateID
}
