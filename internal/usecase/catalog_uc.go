package usecase

import (
	"context"
	"fmt"
	"sync"

	"github.com/rs/zerolog"

	"billpay-wizard/internal/domain"
	"billpay-wizard/internal/domain/model"
	"billpay-wizard/internal/domain/ports/adapter"
)

// CatalogUseCase resolves payable services against the backend catalog. The
// catalog is fetched lazily, once, and cached for the process lifetime; a
// failed fetch is retried on the next call instead of being cached.
type CatalogUseCase struct {
	backend adapter.BillingBackend
	log     *zerolog.Logger

	mu       sync.Mutex
	services []model.Service
	loaded   bool
}

// NewCatalogUseCase constructs a CatalogUseCase.
func NewCatalogUseCase(backend adapter.BillingBackend, logger *zerolog.Logger) *CatalogUseCase {
	return &CatalogUseCase{backend: backend, log: logger}
}

// List returns the cached catalog, fetching it first if needed.
func (uc *CatalogUseCase) List(ctx context.Context) ([]model.Service, error) {
	uc.mu.Lock()
	defer uc.mu.Unlock()
	if err := uc.loadLocked(ctx); err != nil {
		return nil, err
	}
	out := make([]model.Service, len(uc.services))
	copy(out, uc.services)
	return out, nil
}

// Resolve finds the first service whose slug or name contains any of the
// hint tokens, case-insensitively, in catalog order. Consuming forms do not
// know exact backend identifiers, so they pass synonym hints such as
// "cashpower" or "electricite".
func (uc *CatalogUseCase) Resolve(ctx context.Context, hints []string) (*model.Service, error) {
	uc.mu.Lock()
	defer uc.mu.Unlock()
	if err := uc.loadLocked(ctx); err != nil {
		return nil, err
	}
	for i := range uc.services {
		if uc.services[i].Matches(hints) {
			svc := uc.services[i]
			return &svc, nil
		}
	}
	return nil, domain.ErrServiceUnavailable
}

func (uc *CatalogUseCase) loadLocked(ctx context.Context) error {
	if uc.loaded {
		return nil
	}
	services, err := uc.backend.ListServices(ctx)
	if err != nil {
		uc.log.Error().Err(err).Msg("catalog fetch failed")
		return fmt.Errorf("%w: %v", domain.ErrCatalogUnavailable, err)
	}
	uc.services = services
	uc.loaded = true
	uc.log.Info().Int("services", len(services)).Msg("catalog loaded")
	return nil
}
