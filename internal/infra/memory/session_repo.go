package memory

import (
	"context"
	"sync"
	"time"

	"billpay-wizard/internal/domain"
	"billpay-wizard/internal/domain/model"
	"billpay-wizard/internal/domain/ports/repository"
)

var _ repository.SessionRepository = (*SessionRepo)(nil)

// SessionRepo keeps wizard sessions in process memory, for single-node
// deployments and tests. Entries expire lazily after the TTL.
type SessionRepo struct {
	mu       sync.RWMutex
	sessions map[string]entry
	ttl      time.Duration
}

type entry struct {
	session model.WizardSession
	expires time.Time
}

func NewSessionRepo(ttl time.Duration) *SessionRepo {
	if ttl <= 0 {
		ttl = 15 * time.Minute
	}
	return &SessionRepo{sessions: make(map[string]entry), ttl: ttl}
}

func (r *SessionRepo) Save(ctx context.Context, s *model.WizardSession) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sessions[s.ID] = entry{session: *copySession(s), expires: time.Now().Add(r.ttl)}
	return nil
}

func (r *SessionRepo) Find(ctx context.Context, id string) (*model.WizardSession, error) {
	r.mu.RLock()
	e, ok := r.sessions[id]
	r.mu.RUnlock()
	if !ok {
		return nil, domain.ErrSessionNotFound
	}
	if time.Now().After(e.expires) {
		r.mu.Lock()
		delete(r.sessions, id)
		r.mu.Unlock()
		return nil, domain.ErrSessionNotFound
	}
	return copySession(&e.session), nil
}

func (r *SessionRepo) Delete(ctx context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.sessions, id)
	return nil
}

// copySession detaches slices so callers cannot alias stored state.
func copySession(s *model.WizardSession) *model.WizardSession {
	cp := *s
	if s.Charges != nil {
		cp.Charges = append([]model.Charge(nil), s.Charges...)
	}
	if s.SelectedCharges != nil {
		cp.SelectedCharges = append([]string(nil), s.SelectedCharges...)
	}
	if s.Steps != nil {
		cp.Steps = append([]model.StepID(nil), s.Steps...)
	}
	if s.Result != nil {
		res := *s.Result
		cp.Result = &res
	}
	return &cp
}
