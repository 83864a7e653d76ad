package model

import (
	"errors"
	"testing"

	"billpay-wizard/internal/domain"
)

func completeSession() *WizardSession {
	svc := Service{ID: "svc-elec", Name: "Electricité", Slug: "electricite-cashpower", Mode: BillingModeCharge}
	s := NewWizardSession("01HZX", "user-1", svc, DefaultServiceRules())
	s.AccountID = "12345678"
	s.ManualAmount = 10000
	s.Amount = 10000
	s.Channel = "Airtel Money"
	s.Phone = "79123456"
	s.PIN = "1234"
	return s
}

func TestNewPaymentRequest(t *testing.T) {
	t.Parallel()

	t.Run("manual amount carries neither charges nor plan", func(t *testing.T) {
		req, err := NewPaymentRequest("req-1", completeSession())
		if err != nil {
			t.Fatalf("NewPaymentRequest returned error: %v", err)
		}
		if req.Amount != 10000 || req.ServiceID != "svc-elec" {
			t.Fatalf("unexpected request: %+v", req)
		}
		if len(req.ChargeIDs) != 0 || req.Plan != "" {
			t.Fatalf("manual-amount request must carry neither charge ids nor plan: %+v", req)
		}
	})

	t.Run("selected charges are carried as ids", func(t *testing.T) {
		s := completeSession()
		s.Charges = []Charge{{ID: "a", Amount: 5000}, {ID: "b", Amount: 3000}}
		s.SelectedCharges = []string{"a", "b"}
		s.Amount = 8000
		req, err := NewPaymentRequest("req-2", s)
		if err != nil {
			t.Fatalf("NewPaymentRequest returned error: %v", err)
		}
		if len(req.ChargeIDs) != 2 {
			t.Fatalf("expected 2 charge ids, got %v", req.ChargeIDs)
		}
	})

	t.Run("plan and charges together are rejected", func(t *testing.T) {
		s := completeSession()
		s.SelectedCharges = []string{"a"}
		s.PlanName = "10 Go"
		if _, err := NewPaymentRequest("req-3", s); !errors.Is(err, domain.ErrInvalidArgument) {
			t.Fatalf("expected ErrInvalidArgument, got %v", err)
		}
	})

	t.Run("incomplete sessions are rejected", func(t *testing.T) {
		mutations := map[string]func(*WizardSession){
			"zero amount":     func(s *WizardSession) { s.Amount = 0 },
			"missing channel": func(s *WizardSession) { s.Channel = "" },
			"missing phone":   func(s *WizardSession) { s.Phone = "" },
			"missing pin":     func(s *WizardSession) { s.PIN = "" },
		}
		for name, mutate := range mutations {
			s := completeSession()
			mutate(s)
			if _, err := NewPaymentRequest("req-4", s); !errors.Is(err, domain.ErrInvalidArgument) {
				t.Errorf("%s: expected ErrInvalidArgument, got %v", name, err)
			}
		}
		if _, err := NewPaymentRequest("", completeSession()); !errors.Is(err, domain.ErrInvalidArgument) {
			t.Errorf("empty id: expected ErrInvalidArgument, got %v", err)
		}
	})
}
