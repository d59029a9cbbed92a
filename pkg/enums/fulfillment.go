package enums

import (
	"fmt"
	"strconv"
	"strings"
)

// FulfillmentStep identifies one of the seven fixed fulfillment milestones.
type FulfillmentStep int

const (
	StepPaymentVerified FulfillmentStep = iota + 1
	StepItemMarkedSold
	StepBuyerContacted
	StepSellerContacted
	StepDelivered
	StepPaymentReleased
	StepOrderClosed
)

// FulfillmentStepCount is the number of steps every record carries.
const FulfillmentStepCount = 7

const (
	FirstFulfillmentStep = StepPaymentVerified
	LastFulfillmentStep  = StepOrderClosed
)

var fulfillmentStepNames = [FulfillmentStepCount]string{
	"Payment Verified",
	"Item Marked Sold",
	"Buyer Contacted",
	"Seller Contacted",
	"Delivered",
	"Payment Released",
	"Order Closed",
}

// AllFulfillmentSteps returns the steps in workflow order.
func AllFulfillmentSteps() []FulfillmentStep {
	steps := make([]FulfillmentStep, 0, FulfillmentStepCount)
	for s := FirstFulfillmentStep; s <= LastFulfillmentStep; s++ {
		steps = append(steps, s)
	}
	return steps
}

func (s FulfillmentStep) IsValid() bool {
	return s >= FirstFulfillmentStep && s <= LastFulfillmentStep
}

// Index returns the zero-based array position of the step.
func (s FulfillmentStep) Index() int {
	return int(s) - 1
}

func (s FulfillmentStep) Name() string {
	if !s.IsValid() {
		return "Unknown"
	}
	return fulfillmentStepNames[s.Index()]
}

func (s FulfillmentStep) String() string {
	return strconv.Itoa(int(s))
}

// ParseFulfillmentStep converts a decimal string into a step.
func ParseFulfillmentStep(value string) (FulfillmentStep, error) {
	n, err := strconv.Atoi(value)
	if err != nil {
		return 0, fmt.Errorf("invalid fulfillment step %q", value)
	}
	step := FulfillmentStep(n)
	if !step.IsValid() {
		return 0, fmt.Errorf("fulfillment step %d out of range", n)
	}
	return step, nil
}

// FulfillmentStatus maps to the fulfillment_status enum in Postgres.
type FulfillmentStatus string

const (
	FulfillmentStatusInProgress FulfillmentStatus = "in_progress"
	FulfillmentStatusCompleted  FulfillmentStatus = "completed"
	FulfillmentStatusFailed     FulfillmentStatus = "failed"
)

var validFulfillmentStatuses = []FulfillmentStatus{
	FulfillmentStatusInProgress,
	FulfillmentStatusCompleted,
	FulfillmentStatusFailed,
}

func (s FulfillmentStatus) String() string {
	return string(s)
}

func (s FulfillmentStatus) IsValid() bool {
	for _, candidate := range validFulfillmentStatuses {
		if candidate == s {
			return true
		}
	}
	return false
}

// IsTerminal reports whether no further step transitions are permitted.
func (s FulfillmentStatus) IsTerminal() bool {
	return s == FulfillmentStatusCompleted || s == FulfillmentStatusFailed
}

func ParseFulfillmentStatus(value string) (FulfillmentStatus, error) {
	for _, candidate := range validFulfillmentStatuses {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid fulfillment status %q", value)
}

// StepStatus is the state of a single step record.
type StepStatus string

const (
	StepStatusPending   StepStatus = "pending"
	StepStatusCompleted StepStatus = "completed"
	StepStatusFailed    StepStatus = "failed"
)

func (s StepStatus) IsValid() bool {
	return s == StepStatusPending || s == StepStatusCompleted || s == StepStatusFailed
}

// StepOutcome is what an operator reports when advancing a step.
type StepOutcome string

const (
	StepOutcomeCompleted StepOutcome = "completed"
	StepOutcomeFailed    StepOutcome = "failed"
)

func (o StepOutcome) IsValid() bool {
	return o == StepOutcomeCompleted || o == StepOutcomeFailed
}

// ParseStepOutcome is case-insensitive.
func ParseStepOutcome(value string) (StepOutcome, error) {
	outcome := StepOutcome(strings.ToLower(strings.TrimSpace(value)))
	if !outcome.IsValid() {
		return "", fmt.Errorf("invalid step outcome %q", value)
	}
	return outcome, nil
}
