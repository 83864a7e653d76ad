package repository

import (
	"context"

	"billpay-wizard/internal/domain/model"
)

// SessionRepository is the port for wizard session persistence. Sessions are
// short-lived; implementations may expire them after a TTL, in which case a
// later Find returns domain.ErrSessionNotFound.
type SessionRepository interface {
	Save(ctx context.Context, s *model.WizardSession) error
	Find(ctx context.Context, id string) (*model.WizardSession, error)
	Delete(ctx context.Context, id string) error
}
