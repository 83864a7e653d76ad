package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"billpay-wizard/internal/domain"
	"billpay-wizard/internal/domain/model"
	"billpay-wizard/internal/domain/ports/repository"
)

var _ repository.SessionRepository = (*SessionRepo)(nil)

// SessionRepo keeps wizard sessions in Redis with a TTL. An expired key
// surfaces as domain.ErrSessionNotFound, which ends the payment attempt.
type SessionRepo struct {
	client RedisClient
	ttl    time.Duration
}

func NewSessionRepo(client RedisClient, ttl time.Duration) *SessionRepo {
	if ttl <= 0 {
		ttl = 15 * time.Minute // give users 15 minutes to complete the flow
	}
	return &SessionRepo{client: client, ttl: ttl}
}

func (r *SessionRepo) sessionKey(id string) string {
	return fmt.Sprintf("wizard_session:%s", id)
}

func (r *SessionRepo) Save(ctx context.Context, s *model.WizardSession) error {
	data, err := json.Marshal(s)
	if err != nil {
		return err
	}
	return r.client.Set(ctx, r.sessionKey(s.ID), data, r.ttl)
}

func (r *SessionRepo) Find(ctx context.Context, id string) (*model.WizardSession, error) {
	data, err := r.client.Get(ctx, r.sessionKey(id))
	if err != nil {
		if errors.Is(err, ErrNil) {
			return nil, domain.ErrSessionNotFound
		}
		return nil, err
	}

	var s model.WizardSession
	if err := json.Unmarshal([]byte(data), &s); err != nil {
		return nil, err
	}
	return &s, nil
}

func (r *SessionRepo) Delete(ctx context.Context, id string) error {
	return r.client.Del(ctx, r.sessionKey(id))
}
