package usecase

import "billpay-wizard/internal/domain/model"

// ComputeAmount derives the payable amount from the session per billing mode:
//   - charge-based with a selection: sum of the selected charges; any manual
//     entry is ignored while a selection exists.
//   - charge-based with nothing selected: the manually entered amount.
//   - plan-based: the chosen plan's price; manual entry is never permitted.
//
// The result can be zero or below the service minimum; step validators decide
// whether that blocks advancement.
func ComputeAmount(s *model.WizardSession) int64 {
	if s.Service.Mode == model.BillingModePlan {
		if plan, ok := s.Service.PlanByName(s.PlanName); ok {
			return plan.Price
		}
		return 0
	}
	if len(s.SelectedCharges) > 0 {
		return model.SumCharges(s.Charges, s.SelectedCharges)
	}
	return s.ManualAmount
}

// recomputeAmount refreshes the session amount after any change to the
// selection, plan or manual entry.
func recomputeAmount(s *model.WizardSession) {
	s.Amount = ComputeAmount(s)
}
