package enums

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFulfillmentStepNamesAndRange(t *testing.T) {
	steps := AllFulfillmentSteps()
	require.Len(t, steps, FulfillmentStepCount)
	assert.Equal(t, StepPaymentVerified, steps[0])
	assert.Equal(t, StepOrderClosed, steps[6])
	assert.Equal(t, "Payment Released", StepPaymentReleased.Name())
	assert.Equal(t, 5, StepPaymentReleased.Index())

	assert.False(t, FulfillmentStep(0).IsValid())
	assert.False(t, FulfillmentStep(8).IsValid())
	assert.Equal(t, "Unknown", FulfillmentStep(8).Name())
}

func TestParseFulfillmentStep(t *testing.T) {
	step, err := ParseFulfillmentStep("3")
	require.NoError(t, err)
	assert.Equal(t, StepBuyerContacted, step)

	_, err = ParseFulfillmentStep("0")
	require.Error(t, err)
	_, err = ParseFulfillmentStep("seven")
	require.Error(t, err)
}

func TestFulfillmentStatusTerminal(t *testing.T) {
	assert.False(t, FulfillmentStatusInProgress.IsTerminal())
	assert.True(t, FulfillmentStatusCompleted.IsTerminal())
	assert.True(t, FulfillmentStatusFailed.IsTerminal())

	_, err := ParseFulfillmentStatus("done")
	require.Error(t, err)
}

func TestParsePaymentDecision(t *testing.T) {
	decision, err := ParsePaymentDecision(" Verify ")
	require.NoError(t, err)
	assert.Equal(t, PaymentDecisionVerify, decision)

	_, err = ParsePaymentDecision("approve")
	require.Error(t, err)

	assert.True(t, PaymentProofStatusRejected.IsDecided())
	assert.False(t, PaymentProofStatusPendingVerification.IsDecided())
}

func TestParseStepOutcome(t *testing.T) {
	outcome, err := ParseStepOutcome(" Completed ")
	require.NoError(t, err)
	assert.Equal(t, StepOutcomeCompleted, outcome)

	outcome, err = ParseStepOutcome("failed")
	require.NoError(t, err)
	assert.Equal(t, StepOutcomeFailed, outcome)

	_, err = ParseStepOutcome("skipped")
	require.Error(t, err)
}
