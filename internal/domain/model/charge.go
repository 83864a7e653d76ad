package model

// Charge is an outstanding amount owed for a charge-based service against a
// specific account/meter identifier. Fetched fresh per identifier; never
// mutated client-side; selection state lives on the session.
type Charge struct {
	ID          string `json:"id"`
	Period      string `json:"period"`
	Amount      int64  `json:"amount"`
	Description string `json:"description,omitempty"`
}

// SumCharges totals the amounts of the charges whose ids appear in selected.
func SumCharges(charges []Charge, selected []string) int64 {
	if len(charges) == 0 || len(selected) == 0 {
		return 0
	}
	want := make(map[string]struct{}, len(selected))
	for _, id := range selected {
		want[id] = struct{}{}
	}
	var sum int64
	for _, c := range charges {
		if _, ok := want[c.ID]; ok {
			sum += c.Amount
		}
	}
	return sum
}
