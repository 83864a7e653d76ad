package usecase

import (
	"fmt"

	"billpay-wizard/internal/domain/model"
)

// ValidationError is a local, field-level error recoverable by user edit.
// It never contacts the network and never reaches the submission gateway.
type ValidationError struct {
	Field string
	Msg   string
}

func (e *ValidationError) Error() string { return e.Msg }

func validationf(field, format string, args ...any) *ValidationError {
	return &ValidationError{Field: field, Msg: fmt.Sprintf(format, args...)}
}

// stepValidator checks the input collected for one step. A nil return lets
// the sequencer advance.
type stepValidator func(s *model.WizardSession) *ValidationError

// stepValidators maps every step to its validator. Steps collect input; the
// sequencer runs the validator on "next" and either advances or stays with
// the error attached.
var stepValidators = map[model.StepID]stepValidator{
	model.StepIntro:       validateIntro,
	model.StepAccount:     validateAccount,
	model.StepItems:       validateItems,
	model.StepPlan:        validatePlan,
	model.StepSummary:     validateSummary,
	model.StepChannel:     validateChannel,
	model.StepCredentials: validateCredentials,
	model.StepResult:      func(*model.WizardSession) *ValidationError { return nil },
}

func validateIntro(s *model.WizardSession) *ValidationError {
	if s.Service.IsZero() {
		return validationf("service", "service is not available")
	}
	return nil
}

func validateAccount(s *model.WizardSession) *ValidationError {
	if !s.Rules.MatchIdentifier(s.AccountID) {
		return validationf("account", "account identifier is not valid for %s", s.Service.Name)
	}
	return nil
}

func validateItems(s *model.WizardSession) *ValidationError {
	recomputeAmount(s)
	if len(s.SelectedCharges) > 0 {
		if s.Amount <= 0 {
			return validationf("charges", "selected charges have no payable amount")
		}
		return nil
	}
	if s.ManualAmount < s.Rules.MinAmount {
		return validationf("amount", "amount must be at least %d", s.Rules.MinAmount)
	}
	return nil
}

func validatePlan(s *model.WizardSession) *ValidationError {
	if s.PlanName == "" {
		return validationf("plan", "choose a plan to continue")
	}
	if _, ok := s.Service.PlanByName(s.PlanName); !ok {
		return validationf("plan", "plan %q is not offered by %s", s.PlanName, s.Service.Name)
	}
	recomputeAmount(s)
	return nil
}

func validateSummary(s *model.WizardSession) *ValidationError {
	if s.Amount <= 0 {
		return validationf("amount", "nothing to pay")
	}
	return nil
}

func validateChannel(s *model.WizardSession) *ValidationError {
	if !s.Rules.SupportsChannel(s.Channel) {
		return validationf("channel", "payment channel is not supported for %s", s.Service.Name)
	}
	return nil
}

func validateCredentials(s *model.WizardSession) *ValidationError {
	if s.Phone == "" || !isDigits(s.Phone) {
		return validationf("phone", "phone number must contain only digits")
	}
	if len(s.PIN) != s.Rules.PINLength || !isDigits(s.PIN) {
		return validationf("pin", "PIN must be exactly %d digits", s.Rules.PINLength)
	}
	return nil
}

func isDigits(s string) bool {
	if s == "" {
		return false
	}
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}
