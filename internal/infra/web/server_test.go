package web

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"billpay-wizard/internal/domain/model"
	"billpay-wizard/internal/domain/ports/adapter"
	"billpay-wizard/internal/infra/memory"
	"billpay-wizard/internal/usecase"
)

// fakeBilling is a canned BillingBackend for API-level tests.
type fakeBilling struct {
	services []model.Service
	charges  map[string][]model.Charge
	result   *model.PaymentResult
}

func (f *fakeBilling) ListServices(ctx context.Context) ([]model.Service, error) {
	return f.services, nil
}

func (f *fakeBilling) FetchCharges(ctx context.Context, serviceID, accountID string) ([]model.Charge, error) {
	return f.charges[accountID], nil
}

func (f *fakeBilling) SubmitPayment(ctx context.Context, auth adapter.AuthContext, req *model.PaymentRequest) (*model.PaymentResult, error) {
	if f.result == nil {
		return model.Failure(model.FailureRejected, "no result configured"), nil
	}
	res := *f.result
	return &res, nil
}

type denyLimiter struct{}

func (denyLimiter) Allow(ctx context.Context, key string, limit int, window time.Duration) (bool, error) {
	return false, nil
}

func nopLogger() *zerolog.Logger {
	l := zerolog.Nop()
	return &l
}

func newTestServer(t *testing.T, backend *fakeBilling, limiter SessionLimiter) (*httptest.Server, *AuthManager) {
	t.Helper()
	logger := nopLogger()
	catalog := usecase.NewCatalogUseCase(backend, logger)
	charges := usecase.NewChargesUseCase(backend, logger)
	sessions := memory.NewSessionRepo(time.Minute)
	rules := map[string]model.ServiceRules{
		"electricite-cashpower": {IdentifierPattern: `^[0-9]+$`, MinAmount: 1000, PINLength: 4},
	}
	wizard := usecase.NewWizardUseCase(catalog, charges, backend, sessions, nil, rules, "XOF", logger)
	auth := NewAuthManager("test-secret", 10*time.Minute)
	srv := NewServer(wizard, catalog, nil, auth, limiter, RateConfig{Limit: 10, Window: time.Minute}, "mint-key", logger)
	ts := httptest.NewServer(srv.Routes())
	t.Cleanup(ts.Close)
	return ts, auth
}

func elecBackend() *fakeBilling {
	return &fakeBilling{
		services: []model.Service{
			{ID: "svc-elec", Name: "Electricité Cashpower", Slug: "electricite-cashpower", Mode: model.BillingModeCharge},
		},
		charges: map[string][]model.Charge{},
		result:  &model.PaymentResult{Succeeded: true, Token: "AB12-CD34"},
	}
}

func doJSON(t *testing.T, method, url, token string, body any) (*http.Response, sessionView) {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatalf("encode body: %v", err)
		}
	}
	req, err := http.NewRequest(method, url, &buf)
	if err != nil {
		t.Fatalf("build request: %v", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("%s %s: %v", method, url, err)
	}
	defer resp.Body.Close()
	var view sessionView
	if resp.Header.Get("Content-Type") == "application/json" {
		_ = json.NewDecoder(resp.Body).Decode(&view)
	}
	return resp, view
}

func TestAPI_RequiresAuth(t *testing.T) {
	t.Parallel()

	ts, _ := newTestServer(t, elecBackend(), nil)

	resp, _ := doJSON(t, http.MethodGet, ts.URL+"/api/v1/services", "", nil)
	if resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("expected 401 without token, got %d", resp.StatusCode)
	}

	resp, _ = doJSON(t, http.MethodGet, ts.URL+"/api/v1/services", "not-a-jwt", nil)
	if resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("expected 401 with a bad token, got %d", resp.StatusCode)
	}

	resp, _ = doJSON(t, http.MethodGet, ts.URL+"/health", "", nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("health must be open, got %d", resp.StatusCode)
	}
}

func TestAPI_MintToken(t *testing.T) {
	t.Parallel()

	ts, _ := newTestServer(t, elecBackend(), nil)

	req, _ := http.NewRequest(http.MethodPost, ts.URL+"/api/v1/auth/token", bytes.NewBufferString(`{"subject":"user-1"}`))
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusForbidden {
		t.Fatalf("expected 403 without the api key, got %d", resp.StatusCode)
	}

	req, _ = http.NewRequest(http.MethodPost, ts.URL+"/api/v1/auth/token", bytes.NewBufferString(`{"subject":"user-1"}`))
	req.Header.Set("X-Api-Key", "mint-key")
	resp, err = http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}
	var out struct {
		Token string `json:"token"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil || out.Token == "" {
		t.Fatalf("expected a token, got %q (%v)", out.Token, err)
	}

	// The minted token is accepted by the protected group.
	r2, _ := doJSON(t, http.MethodGet, ts.URL+"/api/v1/services", out.Token, nil)
	if r2.StatusCode != http.StatusOK {
		t.Fatalf("minted token was rejected: %d", r2.StatusCode)
	}
}

func TestAPI_WizardFlow(t *testing.T) {
	t.Parallel()

	ts, auth := newTestServer(t, elecBackend(), nil)
	token, err := auth.Mint("user-1")
	if err != nil {
		t.Fatalf("Mint returned error: %v", err)
	}

	resp, view := doJSON(t, http.MethodPost, ts.URL+"/api/v1/wizard/sessions", token, map[string]any{"hints": []string{"cashpower"}})
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("expected 201, got %d", resp.StatusCode)
	}
	if view.Step != model.StepIntro || view.Service.ID != "svc-elec" {
		t.Fatalf("unexpected initial view: %+v", view)
	}
	base := fmt.Sprintf("%s/api/v1/wizard/sessions/%s", ts.URL, view.ID)

	steps := []struct {
		path string
		body any
		want model.StepID
	}{
		{"/next", nil, model.StepAccount},
		{"/fields", map[string]string{"field": "account", "value": "12345678"}, model.StepAccount},
		{"/next", nil, model.StepItems},
		{"/fields", map[string]string{"field": "amount", "value": "10000"}, model.StepItems},
		{"/next", nil, model.StepSummary},
		{"/next", nil, model.StepChannel},
		{"/fields", map[string]string{"field": "channel", "value": "Airtel Money"}, model.StepChannel},
		{"/next", nil, model.StepCredentials},
		{"/fields", map[string]string{"field": "phone", "value": "79123456"}, model.StepCredentials},
		{"/fields", map[string]string{"field": "pin", "value": "1234"}, model.StepCredentials},
		{"/next", nil, model.StepResult},
	}
	for _, st := range steps {
		resp, view = doJSON(t, http.MethodPost, base+st.path, token, st.body)
		if resp.StatusCode != http.StatusOK {
			t.Fatalf("POST %s returned %d", st.path, resp.StatusCode)
		}
		if view.Error != "" {
			t.Fatalf("POST %s rejected at %s: %s", st.path, view.Step, view.Error)
		}
		if view.Step != st.want {
			t.Fatalf("POST %s landed on %s, want %s", st.path, view.Step, st.want)
		}
	}

	if view.Phase != model.PhaseSucceeded || view.Result == nil || view.Result.Token != "AB12-CD34" {
		t.Fatalf("unexpected terminal view: %+v", view)
	}
	if view.Amount != 10000 {
		t.Fatalf("expected amount 10000, got %d", view.Amount)
	}

	// The view never echoes the PIN.
	resp, _ = doJSON(t, http.MethodGet, base+"/", token, nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("GET session returned %d", resp.StatusCode)
	}
}

func TestAPI_ValidationStaysOnStep(t *testing.T) {
	t.Parallel()

	ts, auth := newTestServer(t, elecBackend(), nil)
	token, _ := auth.Mint("user-1")

	_, view := doJSON(t, http.MethodPost, ts.URL+"/api/v1/wizard/sessions", token, map[string]any{"hints": []string{"cashpower"}})
	base := fmt.Sprintf("%s/api/v1/wizard/sessions/%s", ts.URL, view.ID)

	doJSON(t, http.MethodPost, base+"/next", token, nil)
	doJSON(t, http.MethodPost, base+"/fields", token, map[string]string{"field": "account", "value": "12345678"})
	doJSON(t, http.MethodPost, base+"/next", token, nil)
	doJSON(t, http.MethodPost, base+"/fields", token, map[string]string{"field": "amount", "value": "500"})

	resp, view := doJSON(t, http.MethodPost, base+"/next", token, nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("validation rejection is still a 200 with the error in the view, got %d", resp.StatusCode)
	}
	if view.Step != model.StepItems || view.Error == "" {
		t.Fatalf("below-minimum amount must stay on items with an error: %+v", view)
	}
}

func TestAPI_ErrorMapping(t *testing.T) {
	t.Parallel()

	ts, auth := newTestServer(t, elecBackend(), nil)
	token, _ := auth.Mint("user-1")

	resp, _ := doJSON(t, http.MethodPost, ts.URL+"/api/v1/wizard/sessions", token, map[string]any{"hints": []string{"parking"}})
	if resp.StatusCode != http.StatusNotFound {
		t.Fatalf("unknown service hints must map to 404, got %d", resp.StatusCode)
	}

	resp, _ = doJSON(t, http.MethodGet, ts.URL+"/api/v1/wizard/sessions/unknown/", token, nil)
	if resp.StatusCode != http.StatusNotFound {
		t.Fatalf("missing session must map to 404, got %d", resp.StatusCode)
	}

	resp, _ = doJSON(t, http.MethodGet, ts.URL+"/api/v1/receipts", token, nil)
	if resp.StatusCode != http.StatusNotFound {
		t.Fatalf("disabled receipt history must map to 404, got %d", resp.StatusCode)
	}
}

func TestAPI_RateLimit(t *testing.T) {
	t.Parallel()

	ts, auth := newTestServer(t, elecBackend(), denyLimiter{})
	token, _ := auth.Mint("user-1")

	resp, _ := doJSON(t, http.MethodPost, ts.URL+"/api/v1/wizard/sessions", token, map[string]any{"hints": []string{"cashpower"}})
	if resp.StatusCode != http.StatusTooManyRequests {
		t.Fatalf("expected 429 from the limiter, got %d", resp.StatusCode)
	}
}

func TestAPI_CancelSession(t *testing.T) {
	t.Parallel()

	ts, auth := newTestServer(t, elecBackend(), nil)
	token, _ := auth.Mint("user-1")

	_, view := doJSON(t, http.MethodPost, ts.URL+"/api/v1/wizard/sessions", token, map[string]any{"hints": []string{"cashpower"}})
	base := fmt.Sprintf("%s/api/v1/wizard/sessions/%s", ts.URL, view.ID)

	resp, _ := doJSON(t, http.MethodDelete, base+"/", token, nil)
	if resp.StatusCode != http.StatusNoContent {
		t.Fatalf("expected 204 on cancel, got %d", resp.StatusCode)
	}
	resp, _ = doJSON(t, http.MethodGet, base+"/", token, nil)
	if resp.StatusCode != http.StatusNotFound {
		t.Fatalf("cancelled session must be gone, got %d", resp.StatusCode)
	}
}
