package model

import (
	"time"

	"billpay-wizard/internal/domain"
)

// FailureClass classifies a failed payment outcome.
type FailureClass string

const (
	FailureValidation FailureClass = "validation"
	FailureNetwork    FailureClass = "network"
	FailureRejected   FailureClass = "server_rejected"
	FailureMalformed  FailureClass = "malformed_response"
)

// PaymentRequest is the normalized, immutable payload submitted to the
// backend. It carries either charge ids (charge-based), a plan name
// (plan-based) or neither (manual-amount case), never both.
type PaymentRequest struct {
	ID        string   `json:"-"`
	ServiceID string   `json:"service_id"`
	Amount    int64    `json:"amount"`
	Channel   string   `json:"payment_method"`
	Phone     string   `json:"phone_number"`
	PIN       string   `json:"pin"`
	ChargeIDs []string `json:"invoice_numbers"`
	Plan      string   `json:"plan,omitempty"`
}

// NewPaymentRequest builds the request from an accumulated session. The
// session amount is carried over as-is: the amount confirmed at the summary
// step is the amount submitted, with no recomputation in between.
func NewPaymentRequest(id string, s *WizardSession) (*PaymentRequest, error) {
	if id == "" || s == nil || s.Service.IsZero() {
		return nil, domain.ErrInvalidArgument
	}
	if s.Amount <= 0 || s.Channel == "" || s.Phone == "" || s.PIN == "" {
		return nil, domain.ErrInvalidArgument
	}
	if s.PlanName != "" && len(s.SelectedCharges) > 0 {
		return nil, domain.ErrInvalidArgument
	}
	req := &PaymentRequest{
		ID:        id,
		ServiceID: s.Service.ID,
		Amount:    s.Amount,
		Channel:   s.Channel,
		Phone:     s.Phone,
		PIN:       s.PIN,
		ChargeIDs: make([]string, 0, len(s.SelectedCharges)),
		Plan:      s.PlanName,
	}
	req.ChargeIDs = append(req.ChargeIDs, s.SelectedCharges...)
	return req, nil
}

// PaymentResult is the terminal outcome of one submission.
type PaymentResult struct {
	Succeeded bool         `json:"succeeded"`
	Token     string       `json:"token,omitempty"` // activation token, prepaid success only
	Reason    string       `json:"reason,omitempty"`
	Class     FailureClass `json:"class,omitempty"`
}

// Failure builds a failed result with a classification and a user-facing
// reason. Reasons are plain language, never transport detail.
func Failure(class FailureClass, reason string) *PaymentResult {
	return &PaymentResult{Succeeded: false, Class: class, Reason: reason}
}

// Receipt records a terminal payment outcome for the host's history view.
type Receipt struct {
	ID          string
	SessionID   string
	Subject     string
	ServiceID   string
	ServiceName string
	Mode        BillingMode
	Amount      int64
	Currency    string
	Channel     string
	Phone       string // stored masked
	Token       string
	Status      string // succeeded | failed
	Reason      string
	CreatedAt   time.Time
}
