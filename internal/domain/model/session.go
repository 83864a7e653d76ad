package model

import "time"

// Phase is the coarse state of the wizard state machine. Validation is
// synchronous, so there is no observable "validating" phase: a step either
// advances or stays with LastError set.
type Phase string

const (
	PhaseAwaitingInput Phase = "awaiting_input"
	PhaseSubmitting    Phase = "submitting"
	PhaseSucceeded     Phase = "succeeded"
	PhaseFailed        Phase = "failed"
)

// StepID names a wizard step. The ordered step list is derived from the
// service billing mode at session start.
type StepID string

const (
	StepIntro       StepID = "intro"
	StepAccount     StepID = "account"
	StepItems       StepID = "items"
	StepPlan        StepID = "plan"
	StepSummary     StepID = "summary"
	StepChannel     StepID = "channel"
	StepCredentials StepID = "credentials"
	StepResult      StepID = "result"
)

// StepsFor returns the ordered step list for a service.
func StepsFor(svc Service) []StepID {
	if svc.Mode == BillingModePlan {
		return []StepID{StepIntro, StepAccount, StepPlan, StepSummary, StepChannel, StepCredentials, StepResult}
	}
	return []StepID{StepIntro, StepAccount, StepItems, StepSummary, StepChannel, StepCredentials, StepResult}
}

// WizardSession is the mutable state threaded through one payment attempt.
// Exactly one session is live per interaction context; sessions are not
// shared across contexts.
type WizardSession struct {
	ID      string `json:"id"`
	Subject string `json:"subject"`

	Service Service      `json:"service"`
	Rules   ServiceRules `json:"rules"`
	Steps   []StepID     `json:"steps"`

	StepIndex int   `json:"step_index"`
	Phase     Phase `json:"phase"`

	AccountID       string   `json:"account_id"`
	Charges         []Charge `json:"charges,omitempty"`
	ChargesFetched  bool     `json:"charges_fetched"`
	FetchSeq        uint64   `json:"fetch_seq"` // last-request-wins guard for charge lookups
	SelectedCharges []string `json:"selected_charges,omitempty"`
	PlanName        string   `json:"plan_name,omitempty"`
	ManualAmount    int64    `json:"manual_amount"`
	Amount          int64    `json:"amount"`

	Channel string `json:"channel"`
	Phone   string `json:"phone"`
	PIN     string `json:"pin,omitempty"`

	LastError string         `json:"last_error,omitempty"`
	Result    *PaymentResult `json:"result,omitempty"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// NewWizardSession opens a session for a resolved service at the first step.
func NewWizardSession(id, subject string, svc Service, rules ServiceRules) *WizardSession {
	now := time.Now()
	return &WizardSession{
		ID:        id,
		Subject:   subject,
		Service:   svc,
		Rules:     rules,
		Steps:     StepsFor(svc),
		StepIndex: 0,
		Phase:     PhaseAwaitingInput,
		CreatedAt: now,
		UpdatedAt: now,
	}
}

// CurrentStep returns the step the session is waiting on.
func (s *WizardSession) CurrentStep() StepID {
	if s.StepIndex < 0 || s.StepIndex >= len(s.Steps) {
		return StepResult
	}
	return s.Steps[s.StepIndex]
}

func (s *WizardSession) TotalSteps() int { return len(s.Steps) }

// Terminal reports whether the session reached a terminal phase. Terminal
// sessions reject all further events; a new session is needed to retry.
func (s *WizardSession) Terminal() bool {
	return s.Phase == PhaseSucceeded || s.Phase == PhaseFailed
}

// Busy reports whether a submission is in flight.
func (s *WizardSession) Busy() bool { return s.Phase == PhaseSubmitting }

// ChargeSelected reports whether the charge id is currently selected.
func (s *WizardSession) ChargeSelected(id string) bool {
	for _, c := range s.SelectedCharges {
		if c == id {
			return true
		}
	}
	return false
}

// SelectCharge adds a charge id to the selection; unknown ids are ignored.
func (s *WizardSession) SelectCharge(id string) {
	if s.ChargeSelected(id) {
		return
	}
	for _, c := range s.Charges {
		if c.ID == id {
			s.SelectedCharges = append(s.SelectedCharges, id)
			return
		}
	}
}

// DeselectCharge removes a charge id from the selection.
func (s *WizardSession) DeselectCharge(id string) {
	for i, c := range s.SelectedCharges {
		if c == id {
			s.SelectedCharges = append(s.SelectedCharges[:i], s.SelectedCharges[i+1:]...)
			return
		}
	}
}

// ResetCharges discards fetched charges and their selection. Called whenever
// the account identifier changes so stale lookups cannot apply.
func (s *WizardSession) ResetCharges() {
	s.Charges = nil
	s.ChargesFetched = false
	s.SelectedCharges = nil
}
