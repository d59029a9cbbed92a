package controllers

import (
	"net/http"
	"strings"

	"github.com/angelmondragon/tradepost-backend/api/middleware"
	"github.com/angelmondragon/tradepost-backend/api/responses"
	"github.com/angelmondragon/tradepost-backend/api/validators"
	"github.com/angelmondragon/tradepost-backend/internal/paymentproofs"
	"github.com/angelmondragon/tradepost-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/tradepost-backend/pkg/errors"
	"github.com/angelmondragon/tradepost-backend/pkg/logger"
)

const maxRejectionReasonLength = 1000

type paymentDecisionRequest struct {
	Decision        string `json:"decision" validate:"required"`
	RejectionReason string `json:"rejectionReason"`
}

// ListPaymentProofs returns the admin review queue.
func ListPaymentProofs(svc paymentproofs.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "payment proof service unavailable"))
			return
		}

		page, err := parsePageParams(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var filters paymentproofs.ListFilters
		if raw := strings.TrimSpace(r.URL.Query().Get("status")); raw != "" {
			status, err := enums.ParsePaymentProofStatus(raw)
			if err != nil {
				responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid status filter"))
				return
			}
			filters.Status = &status
		}

		result, err := svc.List(r.Context(), middleware.ActorFromContext(r.Context()), filters, page)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, result)
	}
}

func GetPaymentProof(svc paymentproofs.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "payment proof service unavailable"))
			return
		}

		id, err := validators.ParseURLUUID(r, "id")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		proof, err := svc.Get(r.Context(), middleware.ActorFromContext(r.Context()), id)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, proof)
	}
}

// DecidePaymentProof verifies or rejects a pending proof.
func DecidePaymentProof(svc paymentproofs.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "payment proof service unavailable"))
			return
		}

		id, err := validators.ParseURLUUID(r, "id")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var body paymentDecisionRequest
		if err := validators.DecodeJSONBody(r, &body); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		decision, err := enums.ParsePaymentDecision(body.Decision)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, paymentproofs.ErrInvalidDecision, "decision must be verify or reject"))
			return
		}

		reason, err := validators.SanitizeText("rejectionReason", body.RejectionReason, maxRejectionReasonLength)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		proof, err := svc.Decide(r.Context(), paymentproofs.DecideInput{
			ProofID:  id,
			Decision: decision,
			Reason:   reason,
			Actor:    middleware.ActorFromContext(r.Context()),
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, proof)
	}
}
