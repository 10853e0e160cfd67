package httpserver

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	withdrawalescrow "fundgate/contexts/donor-governance/withdrawal-escrow"
	escrowhttp "fundgate/contexts/donor-governance/withdrawal-escrow/transport/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	httpSwagger "github.com/swaggo/http-swagger"

	_ "fundgate/internal/platform/httpserver/docs"
)

type Server struct {
	mux    chi.Router
	logger *slog.Logger
	addr   string
	escrow withdrawalescrow.Module
}

func New(
	escrow withdrawalescrow.Module,
	logger *slog.Logger,
	addr string,
) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	if addr == "" {
		addr = ":8080"
	}

	s := &Server{
		mux:    chi.NewRouter(),
		logger: logger,
		addr:   addr,
		escrow: escrow,
	}
	s.registerRoutes()
	return s
}

func (s *Server) Handler() http.Handler {
	return s.mux
}

// Run serves until ctx is cancelled, then drains in-flight requests.
func (s *Server) Run(ctx context.Context) error {
	srv := &http.Server{
		Addr:              s.addr,
		Handler:           s.mux,
		ReadHeaderTimeout: 5 * time.Second,
	}
	s.logger.Info("http server starting",
		"event", "http_server_starting",
		"module", "internal/platform/httpserver",
		"layer", "platform",
		"addr", s.addr,
	)

	errCh := make(chan error, 1)
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
			return
		}
		errCh <- nil
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown http server: %w", err)
	}
	return <-errCh
}

func (s *Server) registerRoutes() {
	s.mux.Use(middleware.RequestID)
	s.mux.Use(middleware.RealIP)
	s.mux.Use(s.logRequests)
	s.mux.Use(middleware.Recoverer)

	s.mux.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	s.mux.Handle("/swagger/*", httpSwagger.Handler(
		httpSwagger.URL("/swagger/doc.json"),
	))

	s.mux.Route("/v1", func(r chi.Router) {
		r.Get("/campaigns/{campaign_id}/withdrawal-requests", s.handleListWithdrawalRequests)
		r.With(requireUser).Post("/campaigns/{campaign_id}/withdrawal-requests", s.handleCreateWithdrawalRequest)
		r.Get("/campaigns/{campaign_id}/refund-cases", s.handleListRefundCases)

		r.Get("/withdrawal-requests/{request_id}", s.handleGetWithdrawalRequest)
		r.Get("/withdrawal-requests/{request_id}/tally", s.handleGetTally)
		r.With(requireUser).Post("/withdrawal-requests/{request_id}/votes", s.handleCastVote)

		r.Post("/payments/webhook", s.handlePaymentWebhook)

		r.Route("/admin", func(r chi.Router) {
			r.Use(requireUser, requireAdmin)
			r.Post("/withdrawal-requests/{request_id}/start-voting", s.handleStartVoting)
			r.Post("/withdrawal-requests/{request_id}/extend-voting", s.handleExtendVoting)
			r.Post("/withdrawal-requests/{request_id}/approve", s.handleApprove)
			r.Post("/withdrawal-requests/{request_id}/reject", s.handleReject)
			r.Post("/withdrawal-requests/{request_id}/release", s.handleRelease)
			r.Post("/withdrawal-requests/{request_id}/cancel-campaign", s.handleCancelCampaign)
			r.Post("/campaigns/{campaign_id}/refunds/retry", s.handleRetryRefunds)
		})
	})
}

func (s *Server) logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		startedAt := time.Now()
		next.ServeHTTP(ww, r)
		s.logger.Info("http request served",
			"event", "http_request_served",
			"module", "internal/platform/httpserver",
			"layer", "platform",
			"method", r.Method,
			"path", r.URL.Path,
			"status", ww.Status(),
			"request_id", middleware.GetReqID(r.Context()),
			"duration_ms", time.Since(startedAt).Milliseconds(),
		)
	})
}

func (s *Server) handleCreateWithdrawalRequest(w http.ResponseWriter, r *http.Request) {
	var req escrowhttp.CreateWithdrawalRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	resp, err := s.escrow.Handler.CreateRequestHandler(
		r.Context(),
		actorFrom(r.Context()).UserID,
		chi.URLParam(r, "campaign_id"),
		r.Header.Get("Idempotency-Key"),
		req,
	)
	if err != nil {
		s.writeEscrowDomainError(w, r, err)
		return
	}
	status := http.StatusCreated
	if resp.Replayed {
		status = http.StatusOK
	}
	writeJSON(w, status, resp)
}

func (s *Server) handleListWithdrawalRequests(w http.ResponseWriter, r *http.Request) {
	resp, err := s.escrow.Handler.ListRequestsHandler(r.Context(), chi.URLParam(r, "campaign_id"))
	if err != nil {
		s.writeEscrowDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleGetWithdrawalRequest(w http.ResponseWriter, r *http.Request) {
	resp, err := s.escrow.Handler.GetRequestHandler(r.Context(), chi.URLParam(r, "request_id"))
	if err != nil {
		s.writeEscrowDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleGetTally(w http.ResponseWriter, r *http.Request) {
	resp, err := s.escrow.Handler.TallyHandler(r.Context(), chi.URLParam(r, "request_id"))
	if err != nil {
		s.writeEscrowDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleCastVote(w http.ResponseWriter, r *http.Request) {
	var req escrowhttp.CastVoteRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	resp, err := s.escrow.Handler.CastVoteHandler(
		r.Context(),
		actorFrom(r.Context()).UserID,
		chi.URLParam(r, "request_id"),
		req,
	)
	if err != nil {
		s.writeEscrowDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleStartVoting(w http.ResponseWriter, r *http.Request) {
	resp, err := s.escrow.Handler.StartVotingHandler(r.Context(), actorFrom(r.Context()), chi.URLParam(r, "request_id"))
	if err != nil {
		s.writeEscrowDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleExtendVoting(w http.ResponseWriter, r *http.Request) {
	var req escrowhttp.ExtendVotingRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	resp, err := s.escrow.Handler.ExtendVotingHandler(r.Context(), actorFrom(r.Context()), chi.URLParam(r, "request_id"), req)
	if err != nil {
		s.writeEscrowDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleApprove(w http.ResponseWriter, r *http.Request) {
	resp, err := s.escrow.Handler.ApproveHandler(r.Context(), actorFrom(r.Context()), chi.URLParam(r, "request_id"))
	if err != nil {
		s.writeEscrowDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleReject(w http.ResponseWriter, r *http.Request) {
	var req escrowhttp.RejectWithdrawalRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	resp, err := s.escrow.Handler.RejectHandler(r.Context(), actorFrom(r.Context()), chi.URLParam(r, "request_id"), req)
	if err != nil {
		s.writeEscrowDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleRelease(w http.ResponseWriter, r *http.Request) {
	resp, err := s.escrow.Handler.ReleaseHandler(r.Context(), chi.URLParam(r, "request_id"))
	if err != nil {
		s.writeEscrowDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleCancelCampaign(w http.ResponseWriter, r *http.Request) {
	resp, err := s.escrow.Handler.CancelCampaignHandler(r.Context(), actorFrom(r.Context()), chi.URLParam(r, "request_id"))
	if err != nil {
		s.writeEscrowDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleListRefundCases(w http.ResponseWriter, r *http.Request) {
	resp, err := s.escrow.Handler.ListRefundCasesHandler(r.Context(), chi.URLParam(r, "campaign_id"))
	if err != nil {
		s.writeEscrowDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleRetryRefunds(w http.ResponseWriter, r *http.Request) {
	resp, err := s.escrow.Handler.RetryRefundsHandler(r.Context(), chi.URLParam(r, "campaign_id"))
	if err != nil {
		s.writeEscrowDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handlePaymentWebhook(w http.ResponseWriter, r *http.Request) {
	var req escrowhttp.PaymentWebhookRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if err := s.escrow.Handler.PaymentWebhookHandler(r.Context(), req); err != nil {
		s.writeEscrowDomainError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusAccepted)
}

func decodeJSON(w http.ResponseWriter, r *http.Request, target any) bool {
	if err := json.NewDecoder(r.Body).Decode(target); err != nil {
		writeEscrowError(w, http.StatusBadRequest, "invalid_json", "request body must be valid JSON")
		return false
	}
	return true
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}
