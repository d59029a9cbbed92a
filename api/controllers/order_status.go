package controllers

import (
	"context"
	"net/http"
	"strconv"
	"strings"

	"github.com/angelmondragon/tradepost-backend/api/middleware"
	"github.com/angelmondragon/tradepost-backend/api/responses"
	"github.com/angelmondragon/tradepost-backend/api/validators"
	"github.com/angelmondragon/tradepost-backend/internal/fulfillment"
	"github.com/angelmondragon/tradepost-backend/internal/reconciliation"
	"github.com/angelmondragon/tradepost-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/tradepost-backend/pkg/errors"
	"github.com/angelmondragon/tradepost-backend/pkg/logger"
	"github.com/angelmondragon/tradepost-backend/pkg/pagination"
)

const maxStepDetailsLength = 2000

type reconcileRunner interface {
	Sync(ctx context.Context) (reconciliation.Result, error)
}

type advanceStepRequest struct {
	Step    int    `json:"step"`
	Status  string `json:"status" validate:"required"`
	Details string `json:"details"`
}

// SyncOrderStatus runs reconciliation on demand and reports how many
// records it created.
func SyncOrderStatus(runner reconcileRunner, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if runner == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "reconciliation unavailable"))
			return
		}

		result, err := runner.Sync(r.Context())
		if err != nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "reconcile fulfillment records").
				WithDetails(map[string]any{"created": result.Created, "skipped": result.Skipped}))
			return
		}
		responses.WriteSuccess(w, result)
	}
}

// ListOrderStatus returns a page of fulfillment records with aggregate counts.
func ListOrderStatus(svc fulfillment.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "fulfillment service unavailable"))
			return
		}

		page, err := parsePageParams(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		filters, err := parseRecordFilters(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		result, err := svc.List(r.Context(), middleware.ActorFromContext(r.Context()), filters, page)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, result)
	}
}

// GetOrderStatus returns one fulfillment record.
func GetOrderStatus(svc fulfillment.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "fulfillment service unavailable"))
			return
		}

		id, err := validators.ParseURLUUID(r, "id")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		record, err := svc.Get(r.Context(), middleware.ActorFromContext(r.Context()), id)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, record)
	}
}

// AdvanceOrderStatus completes or fails one fulfillment step.
func AdvanceOrderStatus(svc fulfillment.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "fulfillment service unavailable"))
			return
		}

		id, err := validators.ParseURLUUID(r, "id")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var body advanceStepRequest
		if err := validators.DecodeJSONBody(r, &body); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		outcome, err := enums.ParseStepOutcome(body.Status)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, fulfillment.ErrInvalidOutcome, "status must be completed or failed"))
			return
		}
		details, err := validators.SanitizeText("details", body.Details, maxStepDetailsLength)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		record, err := svc.AdvanceStep(r.Context(), fulfillment.AdvanceStepInput{
			RecordID: id,
			Step:     enums.FulfillmentStep(body.Step),
			Outcome:  outcome,
			Details:  details,
			Actor:    middleware.ActorFromContext(r.Context()),
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, record)
	}
}

// GetOrderPayout returns the payout ledger entry of a record, if released.
func GetOrderPayout(svc fulfillment.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "fulfillment service unavailable"))
			return
		}

		id, err := validators.ParseURLUUID(r, "id")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		payout, err := svc.GetPayout(r.Context(), middleware.ActorFromContext(r.Context()), id)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, payout)
	}
}

func parsePageParams(r *http.Request) (pagination.PageParams, error) {
	page, err := validators.ParseQueryInt(r, "page", 1, 1, 1_000_000)
	if err != nil {
		return pagination.PageParams{}, err
	}
	limit, err := validators.ParseQueryInt(r, "limit", pagination.DefaultLimit, 1, pagination.MaxLimit)
	if err != nil {
		return pagination.PageParams{}, err
	}
	return pagination.PageParams{Page: page, Limit: limit}, nil
}

func parseRecordFilters(r *http.Request) (fulfillment.ListFilters, error) {
	var filters fulfillment.ListFilters
	query := r.URL.Query()

	if raw := strings.TrimSpace(query.Get("status")); raw != "" {
		status, err := enums.ParseFulfillmentStatus(raw)
		if err != nil {
			return filters, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid status filter")
		}
		filters.Status = &status
	}

	if raw := strings.TrimSpace(query.Get("step")); raw != "" {
		if _, err := strconv.Atoi(raw); err != nil {
			return filters, pkgerrors.New(pkgerrors.CodeValidation, "step must be numeric").WithDetails(map[string]any{"field": "step"})
		}
		step, err := enums.ParseFulfillmentStep(raw)
		if err != nil {
			return filters, pkgerrors.Wrap(pkgerrors.CodeValidation, fulfillment.ErrOutOfRange, "step out of range").
				WithDetails(map[string]any{"step": raw})
		}
		filters.Step = &step
	}

	adminID, err := validators.ParseQueryUUID(r, "admin")
	if err != nil {
		return filters, err
	}
	filters.AdminID = adminID
	return filters, nil
}
