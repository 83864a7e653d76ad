package usecase

import (
	"context"
	"sync"

	"billpay-wizard/internal/domain"
	"billpay-wizard/internal/domain/model"
	"billpay-wizard/internal/domain/ports/adapter"
)

// fakeBackend is a controllable in-memory BillingBackend used by unit tests.
type fakeBackend struct {
	mu sync.Mutex

	services []model.Service
	listErr  error

	charges    map[string][]model.Charge // keyed by account identifier
	chargesErr error
	fetchGates map[string]chan struct{} // block FetchCharges per account until closed
	fetchBegan chan string              // receives the account id when a fetch starts

	submitResult *model.PaymentResult
	submitErr    error
	submitBegan  chan struct{} // closed-once signal that a submission started
	submitGate   chan struct{} // block SubmitPayment until closed
	submitCalls  int
	lastRequest  *model.PaymentRequest
	lastAuth     adapter.AuthContext
}

func newFakeBackend(services ...model.Service) *fakeBackend {
	return &fakeBackend{
		services: services,
		charges:  make(map[string][]model.Charge),
	}
}

func (f *fakeBackend) ListServices(ctx context.Context) ([]model.Service, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.listErr != nil {
		return nil, f.listErr
	}
	out := make([]model.Service, len(f.services))
	copy(out, f.services)
	return out, nil
}

func (f *fakeBackend) FetchCharges(ctx context.Context, serviceID, accountID string) ([]model.Charge, error) {
	f.mu.Lock()
	began := f.fetchBegan
	gate := f.fetchGates[accountID]
	f.mu.Unlock()

	if began != nil {
		began <- accountID
	}
	if gate != nil {
		<-gate
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	if f.chargesErr != nil {
		return nil, f.chargesErr
	}
	out := append([]model.Charge(nil), f.charges[accountID]...)
	return out, nil
}

func (f *fakeBackend) SubmitPayment(ctx context.Context, auth adapter.AuthContext, req *model.PaymentRequest) (*model.PaymentResult, error) {
	f.mu.Lock()
	f.submitCalls++
	f.lastRequest = req
	f.lastAuth = auth
	began := f.submitBegan
	gate := f.submitGate
	f.mu.Unlock()

	if began != nil {
		close(began)
		f.mu.Lock()
		f.submitBegan = nil
		f.mu.Unlock()
	}
	if gate != nil {
		<-gate
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	if f.submitErr != nil {
		return nil, f.submitErr
	}
	if f.submitResult == nil {
		return model.Failure(model.FailureRejected, "no result configured"), nil
	}
	res := *f.submitResult
	return &res, nil
}

func (f *fakeBackend) calls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.submitCalls
}

// memSessionRepo is a small in-memory SessionRepository with copy semantics.
type memSessionRepo struct {
	mu    sync.RWMutex
	store map[string]*model.WizardSession
}

func newMemSessionRepo() *memSessionRepo {
	return &memSessionRepo{store: make(map[string]*model.WizardSession)}
}

func (m *memSessionRepo) Save(ctx context.Context, s *model.WizardSession) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := cloneSession(s)
	m.store[s.ID] = cp
	return nil
}

func (m *memSessionRepo) Find(ctx context.Context, id string) (*model.WizardSession, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	s, ok := m.store[id]
	if !ok {
		return nil, domain.ErrSessionNotFound
	}
	return cloneSession(s), nil
}

func (m *memSessionRepo) Delete(ctx context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.store, id)
	return nil
}

func cloneSession(s *model.WizardSession) *model.WizardSession {
	cp := *s
	cp.Charges = append([]model.Charge(nil), s.Charges...)
	cp.SelectedCharges = append([]string(nil), s.SelectedCharges...)
	cp.Steps = append([]model.StepID(nil), s.Steps...)
	if s.Result != nil {
		res := *s.Result
		cp.Result = &res
	}
	return &cp
}

// memReceiptRepo records receipts for assertions.
type memReceiptRepo struct {
	mu       sync.Mutex
	receipts []*model.Receipt
}

func newMemReceiptRepo() *memReceiptRepo { return &memReceiptRepo{} }

func (m *memReceiptRepo) Save(ctx context.Context, r *model.Receipt) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *r
	m.receipts = append(m.receipts, &cp)
	return nil
}

func (m *memReceiptRepo) ListBySubject(ctx context.Context, subject string, offset, limit int) ([]*model.Receipt, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*model.Receipt
	for _, r := range m.receipts {
		if r.Subject == subject {
			cp := *r
			out = append(out, &cp)
		}
	}
	return out, nil
}
