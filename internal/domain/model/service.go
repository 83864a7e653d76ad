package model

import (
	"regexp"
	"strings"

	"billpay-wizard/internal/domain"
)

// BillingMode tells how a service computes the payable amount.
type BillingMode string

const (
	// BillingModeCharge bills against backend-computed outstanding charges
	// (postpaid: water, tax declarations).
	BillingModeCharge BillingMode = "charge_based"
	// BillingModePlan bills against a fixed-price catalog item
	// (prepaid: data bundles, TV bouquets, electricity credit).
	BillingModePlan BillingMode = "plan_based"
)

// Plan is a fixed-price offering of a plan-based service. Price is in the
// smallest currency unit. Immutable once fetched from the catalog.
type Plan struct {
	Name  string `json:"name"`
	Price int64  `json:"price"`
}

// Service is a payable service from the backend catalog. Read-only to the
// wizard; fetched once and cached for the process lifetime.
type Service struct {
	ID    string      `json:"id"`
	Name  string      `json:"name"`
	Slug  string      `json:"slug"`
	Mode  BillingMode `json:"billing_mode"`
	Plans []Plan      `json:"plans,omitempty"`
}

func (s *Service) IsZero() bool { return s == nil || s.ID == "" }

// PlanByName returns the plan with the given name, if the service has one.
func (s *Service) PlanByName(name string) (Plan, bool) {
	for _, p := range s.Plans {
		if p.Name == name {
			return p, true
		}
	}
	return Plan{}, false
}

// Matches reports whether any hint token is a case-insensitive substring of
// the service slug or name.
func (s *Service) Matches(hints []string) bool {
	slug := strings.ToLower(s.Slug)
	name := strings.ToLower(s.Name)
	for _, h := range hints {
		h = strings.ToLower(strings.TrimSpace(h))
		if h == "" {
			continue
		}
		if strings.Contains(slug, h) || strings.Contains(name, h) {
			return true
		}
	}
	return false
}

// ServiceRules is the per-service wizard configuration: how identifiers are
// validated, the floor for manual amounts, PIN length and supported payment
// channels. Supplied by configuration, keyed by service slug.
type ServiceRules struct {
	IdentifierPattern string   `json:"identifier_pattern" yaml:"identifier_pattern"`
	MinAmount         int64    `json:"min_amount" yaml:"min_amount"`
	PINLength         int      `json:"pin_length" yaml:"pin_length"`
	Channels          []string `json:"channels" yaml:"channels"`
}

// DefaultServiceRules covers services without an explicit rules entry:
// digits-only identifiers, 4-digit PIN, any positive manual amount.
func DefaultServiceRules() ServiceRules {
	return ServiceRules{
		IdentifierPattern: `^[0-9]+$`,
		MinAmount:         1,
		PINLength:         4,
	}
}

// Validate checks the rules are internally consistent (pattern compiles,
// positive bounds).
func (r ServiceRules) Validate() error {
	if _, err := regexp.Compile(r.IdentifierPattern); err != nil {
		return domain.ErrInvalidArgument
	}
	if r.MinAmount < 1 || r.PINLength < 1 {
		return domain.ErrInvalidArgument
	}
	return nil
}

// MatchIdentifier reports whether the account/meter identifier satisfies the
// service's pattern. An uncompilable pattern never matches.
func (r ServiceRules) MatchIdentifier(id string) bool {
	if id == "" {
		return false
	}
	re, err := regexp.Compile(r.IdentifierPattern)
	if err != nil {
		return false
	}
	return re.MatchString(id)
}

// SupportsChannel reports whether the payment channel is allowed. An empty
// channel list allows any non-empty channel.
func (r ServiceRules) SupportsChannel(channel string) bool {
	if channel == "" {
		return false
	}
	if len(r.Channels) == 0 {
		return true
	}
	for _, c := range r.Channels {
		if strings.EqualFold(c, channel) {
			return true
		}
	}
	return false
}
