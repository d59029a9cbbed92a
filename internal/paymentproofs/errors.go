package paymentproofs

import "errors"

var (
	ErrProofNotFound     = errors.New("payment proof not found")
	ErrAlreadyProcessed  = errors.New("payment proof already processed")
	ErrMissingReason     = errors.New("rejection reason required")
	ErrInvalidDecision   = errors.New("invalid payment decision")
	ErrInvalidIdentifier = errors.New("invalid payment proof id")
)
