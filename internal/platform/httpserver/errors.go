package httpserver

import (
	"errors"
	"net/http"

	escrowerrors "fundgate/contexts/donor-governance/withdrawal-escrow/domain/errors"
	escrowhttp "fundgate/contexts/donor-governance/withdrawal-escrow/transport/http"

	"github.com/go-chi/chi/v5/middleware"
)

func (s *Server) writeEscrowDomainError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, escrowerrors.ErrAmountExceedsAvailable):
		writeEscrowError(w, http.StatusUnprocessableEntity, "amount_exceeds_available", err.Error())
	case errors.Is(err, escrowerrors.ErrReasonTooShort):
		writeEscrowError(w, http.StatusUnprocessableEntity, "reason_too_short", err.Error())
	case errors.Is(err, escrowerrors.ErrInvalidVoteValue):
		writeEscrowError(w, http.StatusBadRequest, "invalid_vote", err.Error())
	case errors.Is(err, escrowerrors.ErrInvalidInput):
		writeEscrowError(w, http.StatusBadRequest, "invalid_request", err.Error())
	case errors.Is(err, escrowerrors.ErrPendingRequestExists):
		writeEscrowError(w, http.StatusConflict, "pending_request_exists", err.Error())
	case errors.Is(err, escrowerrors.ErrNotEligibleToVote):
		writeEscrowError(w, http.StatusForbidden, "not_eligible_to_vote", err.Error())
	case errors.Is(err, escrowerrors.ErrVotingWindowClosed):
		writeEscrowError(w, http.StatusConflict, "voting_window_closed", err.Error())
	case errors.Is(err, escrowerrors.ErrIllegalTransition):
		writeEscrowError(w, http.StatusConflict, "illegal_transition", err.Error())
	case errors.Is(err, escrowerrors.ErrCampaignNotActive):
		writeEscrowError(w, http.StatusConflict, "campaign_not_active", err.Error())
	case errors.Is(err, escrowerrors.ErrIdempotencyConflict):
		writeEscrowError(w, http.StatusConflict, "idempotency_conflict", err.Error())
	case errors.Is(err, escrowerrors.ErrDisbursementInFlight):
		writeEscrowError(w, http.StatusConflict, "disbursement_in_flight", err.Error())
	case errors.Is(err, escrowerrors.ErrConflict):
		writeEscrowError(w, http.StatusConflict, "conflict", err.Error())
	case errors.Is(err, escrowerrors.ErrForbidden):
		writeEscrowError(w, http.StatusForbidden, "forbidden", err.Error())
	case errors.Is(err, escrowerrors.ErrRequestNotFound),
		errors.Is(err, escrowerrors.ErrCampaignNotFound),
		errors.Is(err, escrowerrors.ErrDisbursementNotFound),
		errors.Is(err, escrowerrors.ErrRefundCaseNotFound):
		writeEscrowError(w, http.StatusNotFound, "not_found", err.Error())
	case errors.Is(err, escrowerrors.ErrUnknownPaymentReference):
		writeEscrowError(w, http.StatusNotFound, "unknown_payment_reference", err.Error())
	case errors.Is(err, escrowerrors.ErrPaymentGatewayFailure):
		writeEscrowError(w, http.StatusBadGateway, "payment_gateway_failure", err.Error())
	default:
		s.logger.Error("unhandled escrow error",
			"event", "http_unhandled_error",
			"module", "internal/platform/httpserver",
			"layer", "platform",
			"method", r.Method,
			"path", r.URL.Path,
			"request_id", middleware.GetReqID(r.Context()),
			"error", err.Error(),
		)
		writeEscrowError(w, http.StatusInternalServerError, "internal_error", "internal server error")
	}
}

func writeEscrowError(w http.ResponseWriter, status int, code string, message string) {
	writeJSON(w, status, escrowhttp.ErrorResponse{
		Code:    code,
		Message: message,
	})
}
