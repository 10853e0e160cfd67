package paymentadapter

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"fundgate/contexts/donor-governance/withdrawal-escrow/ports"
)

type HTTPGatewayConfig struct {
	BaseURL    string
	APIKey     string
	Timeout    time.Duration
	HTTPClient *http.Client
}

// HTTPGateway calls the payment provider's JSON API. Every call carries an
// Idempotency-Key header so the provider collapses retries of one payout.
// Transport failures, 429 and 5xx responses are returned as errors and
// retried by the caller; other 4xx responses are permanent declines.
type HTTPGateway struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
}

type transferPayload struct {
	RecipientID string `json:"recipient_id"`
	Reference   string `json:"reference"`
	Amount      int64  `json:"amount"`
}

type refundPayload struct {
	DonorID    string `json:"donor_id"`
	DonationID string `json:"donation_id"`
	Amount     int64  `json:"amount"`
}

type gatewayResponse struct {
	TransactionID string `json:"transaction_id"`
	Status        string `json:"status"`
	FailureReason string `json:"failure_reason"`
}

func NewHTTPGateway(cfg HTTPGatewayConfig) *HTTPGateway {
	httpClient := cfg.HTTPClient
	if httpClient == nil {
		timeout := cfg.Timeout
		if timeout <= 0 {
			timeout = 10 * time.Second
		}
		httpClient = &http.Client{Timeout: timeout}
	}
	return &HTTPGateway{
		baseURL:    strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/"),
		apiKey:     strings.TrimSpace(cfg.APIKey),
		httpClient: httpClient,
	}
}

func (g *HTTPGateway) Transfer(ctx context.Context, req ports.TransferRequest) (ports.PaymentResult, error) {
	return g.post(ctx, "/v1/transfers", req.IdempotencyKey, transferPayload{
		RecipientID: req.RecipientID,
		Reference:   req.Reference,
		Amount:      req.Amount,
	})
}

func (g *HTTPGateway) Refund(ctx context.Context, req ports.RefundRequest) (ports.PaymentResult, error) {
	return g.post(ctx, "/v1/refunds", req.IdempotencyKey, refundPayload{
		DonorID:    req.DonorID,
		DonationID: req.DonationID,
		Amount:     req.Amount,
	})
}

func (g *HTTPGateway) post(ctx context.Context, path string, idempotencyKey string, payload any) (ports.PaymentResult, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return ports.PaymentResult{}, err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, g.baseURL+path, bytes.NewReader(body))
	if err != nil {
		return ports.PaymentResult{}, err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	req.Header.Set("Idempotency-Key", strings.TrimSpace(idempotencyKey))
	if g.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+g.apiKey)
	}

	resp, err := g.httpClient.Do(req)
	if err != nil {
		return ports.PaymentResult{}, err
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500 {
		raw, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return ports.PaymentResult{}, fmt.Errorf("payment gateway unavailable: status=%d body=%s",
			resp.StatusCode, strings.TrimSpace(string(raw)))
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		raw, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		reason := strings.TrimSpace(string(raw))
		var decoded gatewayResponse
		if json.Unmarshal(raw, &decoded) == nil && strings.TrimSpace(decoded.FailureReason) != "" {
			reason = strings.TrimSpace(decoded.FailureReason)
		}
		return ports.PaymentResult{
			Status:        ports.PaymentStatusFailed,
			FailureReason: fmt.Sprintf("declined: status=%d %s", resp.StatusCode, reason),
		}, nil
	}

	var decoded gatewayResponse
	if err := json.NewDecoder(resp.Body).Decode(&decoded); err != nil {
		return ports.PaymentResult{}, fmt.Errorf("decode payment gateway response: %w", err)
	}
	result := ports.PaymentResult{
		TransactionID: strings.TrimSpace(decoded.TransactionID),
		Status:        ports.PaymentStatus(strings.ToLower(strings.TrimSpace(decoded.Status))),
		FailureReason: strings.TrimSpace(decoded.FailureReason),
	}
	switch result.Status {
	case ports.PaymentStatusSucceeded, ports.PaymentStatusFailed, ports.PaymentStatusPending:
	default:
		return ports.PaymentResult{}, fmt.Errorf("payment gateway returned unknown status %q", decoded.Status)
	}
	return result, nil
}

var _ ports.PaymentGateway = (*HTTPGateway)(nil)
