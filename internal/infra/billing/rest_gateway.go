package billing

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"billpay-wizard/internal/domain/model"
	"billpay-wizard/internal/domain/ports/adapter"
	"billpay-wizard/internal/infra/metrics"
)

// RESTGateway implements the BillingBackend port against the bill-pay REST
// backend using direct HTTP calls.
type RESTGateway struct {
	baseURL  string
	apiKey   string
	currency string
	client   *http.Client
	log      *zerolog.Logger
}

var _ adapter.BillingBackend = (*RESTGateway)(nil)

// NewRESTGateway creates a gateway for the given backend base URL. The
// timeout bounds every request; a timed-out submission surfaces as a network
// failure.
func NewRESTGateway(baseURL, apiKey string, timeout time.Duration, currency string, logger *zerolog.Logger) *RESTGateway {
	return &RESTGateway{
		baseURL:  strings.TrimRight(baseURL, "/"),
		apiKey:   apiKey,
		currency: currency,
		client:   &http.Client{Timeout: timeout},
		log:      logger,
	}
}

type chargesResponse struct {
	Charges []model.Charge `json:"charges"`
}

type paymentResponse struct {
	Token   string `json:"token"`
	Message string `json:"message"`
}

// ListServices implements BillingBackend.ListServices.
func (g *RESTGateway) ListServices(ctx context.Context) ([]model.Service, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, g.baseURL+"/services", nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	g.setHeaders(req)

	resp, err := g.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch services: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response body: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("services request returned status %d", resp.StatusCode)
	}

	var services []model.Service
	if err := json.Unmarshal(body, &services); err != nil {
		return nil, fmt.Errorf("failed to unmarshal services: %w", err)
	}
	return services, nil
}

// FetchCharges implements BillingBackend.FetchCharges. A 2xx response with
// an empty list is the explicit "no outstanding charges" signal, not an
// error.
func (g *RESTGateway) FetchCharges(ctx context.Context, serviceID, accountID string) ([]model.Charge, error) {
	start := time.Now()
	u := fmt.Sprintf("%s/charges?service=%s&account=%s", g.baseURL, url.QueryEscape(serviceID), url.QueryEscape(accountID))
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	g.setHeaders(req)

	resp, err := g.client.Do(req)
	if err != nil {
		metrics.ObserveChargeFetch("error", time.Since(start))
		return nil, fmt.Errorf("failed to fetch charges: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		metrics.ObserveChargeFetch("error", time.Since(start))
		return nil, fmt.Errorf("failed to read response body: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		metrics.ObserveChargeFetch("error", time.Since(start))
		return nil, fmt.Errorf("charges request returned status %d", resp.StatusCode)
	}

	var response chargesResponse
	if err := json.Unmarshal(body, &response); err != nil {
		metrics.ObserveChargeFetch("error", time.Since(start))
		return nil, fmt.Errorf("failed to unmarshal charges: %w", err)
	}
	outcome := "ok"
	if len(response.Charges) == 0 {
		outcome = "empty"
	}
	metrics.ObserveChargeFetch(outcome, time.Since(start))
	return response.Charges, nil
}

// SubmitPayment implements BillingBackend.SubmitPayment: exactly one POST
// per call, no implicit retries. Expected failure modes come back as a
// classified failed result, never as a Go error, so callers have one path.
func (g *RESTGateway) SubmitPayment(ctx context.Context, auth adapter.AuthContext, payReq *model.PaymentRequest) (*model.PaymentResult, error) {
	jsonData, err := json.Marshal(payReq)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal payment request: %w", err)
	}

	start := time.Now()
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, g.baseURL+"/payment", bytes.NewBuffer(jsonData))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	g.setHeaders(req)
	if auth.Bearer != "" {
		req.Header.Set("Authorization", "Bearer "+auth.Bearer)
	}

	resp, err := g.client.Do(req)
	if err != nil {
		g.log.Warn().Err(err).Str("service", payReq.ServiceID).Msg("payment transport failure")
		metrics.IncPayment(string(model.FailureNetwork))
		return model.Failure(model.FailureNetwork, "payment could not be sent, please check your connection and retry"), nil
	}
	defer resp.Body.Close()
	metrics.ObserveSubmitLatency(time.Since(start).Milliseconds())

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		metrics.IncPayment(string(model.FailureNetwork))
		return model.Failure(model.FailureNetwork, "payment response could not be read, please retry"), nil
	}

	var response paymentResponse
	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		if len(body) > 0 {
			if err := json.Unmarshal(body, &response); err != nil {
				metrics.IncPayment(string(model.FailureMalformed))
				return model.Failure(model.FailureMalformed, "payment response could not be understood"), nil
			}
		}
		metrics.IncPayment("succeeded")
		metrics.AddPaymentRevenue(g.currency, payReq.Amount)
		return &model.PaymentResult{Succeeded: true, Token: response.Token}, nil
	}

	// Structured rejection: surface the server message verbatim when present.
	reason := "payment was rejected by the provider"
	if err := json.Unmarshal(body, &response); err == nil && response.Message != "" {
		reason = response.Message
	}
	g.log.Info().Int("status", resp.StatusCode).Str("service", payReq.ServiceID).Msg("payment rejected")
	metrics.IncPayment(string(model.FailureRejected))
	return model.Failure(model.FailureRejected, reason), nil
}

func (g *RESTGateway) setHeaders(req *http.Request) {
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	if g.apiKey != "" {
		req.Header.Set("X-Api-Key", g.apiKey)
	}
}
