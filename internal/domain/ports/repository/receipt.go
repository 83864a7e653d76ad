package repository

import (
	"context"

	"billpay-wizard/internal/domain/model"
)

// ReceiptRepository is the port for the payment history trail.
type ReceiptRepository interface {
	Save(ctx context.Context, r *model.Receipt) error
	ListBySubject(ctx context.Context, subject string, offset, limit int) ([]*model.Receipt, error)
}
