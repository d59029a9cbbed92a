package fulfillment

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"

	"github.com/angelmondragon/tradepost-backend/pkg/db/models"
	"github.com/angelmondragon/tradepost-backend/pkg/enums"
)

// Transition is one requested step change.
type Transition struct {
	Step    enums.FulfillmentStep
	Outcome enums.StepOutcome
	Details string
	ActorID uuid.UUID
	At      time.Time
}

// applied describes what a successful transition changed.
type applied struct {
	completedRecord bool
	failedRecord    bool
}

// validate checks the transition against the record without mutating it.
func validate(rec *models.FulfillmentRecord, t Transition) error {
	if !t.Step.IsValid() {
		return domainError(ErrOutOfRange, fmt.Sprintf("step must be between %d and %d", enums.FirstFulfillmentStep, enums.LastFulfillmentStep))
	}
	if !t.Outcome.IsValid() {
		return domainError(ErrInvalidOutcome, "status must be completed or failed")
	}
	if rec.OverallStatus != enums.FulfillmentStatusInProgress {
		return domainError(ErrAlreadyTerminal, fmt.Sprintf("record is %s", rec.OverallStatus))
	}

	steps := rec.Steps.Data()
	details := strings.TrimSpace(t.Details)

	if t.Outcome == enums.StepOutcomeFailed {
		if t.Step != rec.CurrentStep {
			return domainError(ErrNotCurrentStep, fmt.Sprintf("current step is %d", rec.CurrentStep))
		}
		if details == "" {
			return domainError(ErrMissingDetails, "details are required to fail a step")
		}
		return nil
	}

	if t.Step > rec.CurrentStep+1 {
		return domainError(ErrStepSkipped, fmt.Sprintf("cannot complete step %d while current step is %d", t.Step, rec.CurrentStep))
	}
	for prior := enums.FirstFulfillmentStep; prior < t.Step; prior++ {
		if steps[prior.Index()].Status != enums.StepStatusCompleted {
			return domainError(ErrPriorStepIncomplete, fmt.Sprintf("step %d (%s) is not completed", prior, prior.Name()))
		}
	}
	if steps[t.Step.Index()].Status == enums.StepStatusCompleted {
		return domainError(ErrStepAlreadyCompleted, fmt.Sprintf("step %d already completed", t.Step))
	}
	if details == "" {
		return domainError(ErrMissingDetails, "details are required to complete a step")
	}
	return nil
}

// apply validates and mutates rec in place. rec.Version is left untouched.
func apply(rec *models.FulfillmentRecord, t Transition) (applied, error) {
	if err := validate(rec, t); err != nil {
		return applied{}, err
	}

	steps := rec.Steps.Data()
	actor := t.ActorID
	at := t.At
	entry := &steps[t.Step.Index()]
	entry.Details = strings.TrimSpace(t.Details)
	entry.CompletedBy = &actor
	entry.CompletedAt = &at

	var out applied
	switch t.Outcome {
	case enums.StepOutcomeCompleted:
		entry.Status = enums.StepStatusCompleted
		rec.CurrentStep = nextCurrentStep(steps)
		if allCompleted(steps) {
			rec.OverallStatus = enums.FulfillmentStatusCompleted
			rec.CompletedAt = &at
			out.completedRecord = true
		}
	case enums.StepOutcomeFailed:
		entry.Status = enums.StepStatusFailed
		rec.OverallStatus = enums.FulfillmentStatusFailed
		rec.FailedAt = &at
		out.failedRecord = true
	}

	rec.Steps = datatypes.NewJSONType(steps)
	rec.LastActorID = &actor
	rec.UpdatedAt = at
	return out, nil
}

// nextCurrentStep is 1 + the number of contiguous completed steps from step 1,
// capped at the last step.
func nextCurrentStep(steps models.FulfillmentSteps) enums.FulfillmentStep {
	current := enums.FirstFulfillmentStep
	for _, step := range enums.AllFulfillmentSteps() {
		if steps[step.Index()].Status != enums.StepStatusCompleted {
			return step
		}
		current = step
	}
	return current
}

func allCompleted(steps models.FulfillmentSteps) bool {
	for _, s := range steps {
		if s.Status != enums.StepStatusCompleted {
			return false
		}
	}
	return true
}
