package enums

import (
	"fmt"
	"strings"
)

// PaymentProofStatus maps to the payment_proof_status enum in Postgres.
type PaymentProofStatus string

const (
	PaymentProofStatusPendingVerification PaymentProofStatus = "pending_verification"
	PaymentProofStatusVerified            PaymentProofStatus = "verified"
	PaymentProofStatusRejected            PaymentProofStatus = "rejected"
)

var validPaymentProofStatuses = []PaymentProofStatus{
	PaymentProofStatusPendingVerification,
	PaymentProofStatusVerified,
	PaymentProofStatusRejected,
}

func (s PaymentProofStatus) String() string {
	return string(s)
}

// IsValid reports whether the value matches the canonical payment proof enum.
func (s PaymentProofStatus) IsValid() bool {
	for _, candidate := range validPaymentProofStatuses {
		if candidate == s {
			return true
		}
	}
	return false
}

// IsDecided reports whether the proof already carries a verdict.
func (s PaymentProofStatus) IsDecided() bool {
	return s == PaymentProofStatusVerified || s == PaymentProofStatusRejected
}

// ParsePaymentProofStatus converts raw input into PaymentProofStatus.
func ParsePaymentProofStatus(value string) (PaymentProofStatus, error) {
	for _, candidate := range validPaymentProofStatuses {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid payment proof status %q", value)
}

// PaymentDecision is the verdict an admin applies to a pending proof.
type PaymentDecision string

const (
	PaymentDecisionVerify PaymentDecision = "verify"
	PaymentDecisionReject PaymentDecision = "reject"
)

func (d PaymentDecision) IsValid() bool {
	return d == PaymentDecisionVerify || d == PaymentDecisionReject
}

// ParsePaymentDecision is case-insensitive.
func ParsePaymentDecision(value string) (PaymentDecision, error) {
	decision := PaymentDecision(strings.ToLower(strings.TrimSpace(value)))
	if !decision.IsValid() {
		return "", fmt.Errorf("invalid payment decision %q", value)
	}
	return decision, nil
}
