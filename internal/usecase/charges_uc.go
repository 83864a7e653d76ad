package usecase

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"

	"billpay-wizard/internal/domain"
	"billpay-wizard/internal/domain/model"
	"billpay-wizard/internal/domain/ports/adapter"
)

// ChargesUseCase looks up outstanding charges for an account identifier.
// An empty result is a valid outcome ("nothing owed") and lets the flow
// proceed to manual-amount entry; only transport/server failures are errors,
// and those are retried by user action only.
type ChargesUseCase struct {
	backend adapter.BillingBackend
	log     *zerolog.Logger
}

// NewChargesUseCase constructs a ChargesUseCase.
func NewChargesUseCase(backend adapter.BillingBackend, logger *zerolog.Logger) *ChargesUseCase {
	return &ChargesUseCase{backend: backend, log: logger}
}

// Fetch returns the outstanding charges for (service, account). Failures are
// wrapped in domain.ErrChargesFetch; callers surface them without resetting
// already-collected session state.
func (uc *ChargesUseCase) Fetch(ctx context.Context, serviceID, accountID string) ([]model.Charge, error) {
	charges, err := uc.backend.FetchCharges(ctx, serviceID, accountID)
	if err != nil {
		uc.log.Warn().Err(err).Str("service", serviceID).Msg("charges fetch failed")
		return nil, fmt.Errorf("%w: %v", domain.ErrChargesFetch, err)
	}
	uc.log.Debug().Str("service", serviceID).Int("charges", len(charges)).Msg("charges fetched")
	return charges, nil
}
