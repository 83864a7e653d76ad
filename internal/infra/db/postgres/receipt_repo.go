package postgres

import (
	"context"

	"github.com/jackc/pgx/v4/pgxpool"

	"billpay-wizard/internal/domain"
	"billpay-wizard/internal/domain/model"
	"billpay-wizard/internal/domain/ports/repository"
)

var _ repository.ReceiptRepository = (*receiptRepo)(nil)

type receiptRepo struct{ pool *pgxpool.Pool }

func NewReceiptRepo(pool *pgxpool.Pool) *receiptRepo {
	return &receiptRepo{pool: pool}
}

func (r *receiptRepo) Save(ctx context.Context, rec *model.Receipt) error {
	const q = `
INSERT INTO receipts (
  id, session_id, subject, service_id, service_name, mode, amount, currency, channel, phone, token, status, reason, created_at
) VALUES (
  $1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14
) ON CONFLICT (id) DO NOTHING;`

	_, err := r.pool.Exec(ctx, q, rec.ID, rec.SessionID, rec.Subject, rec.ServiceID, rec.ServiceName, rec.Mode, rec.Amount, rec.Currency, rec.Channel, rec.Phone, rec.Token, rec.Status, rec.Reason, rec.CreatedAt)
	if err != nil {
		return domain.ErrOperationFailed
	}
	return nil
}

func (r *receiptRepo) ListBySubject(ctx context.Context, subject string, offset, limit int) ([]*model.Receipt, error) {
	const q = `
SELECT id, session_id, subject, service_id, service_name, mode, amount, currency, channel, phone, token, status, reason, created_at
FROM receipts WHERE subject=$1 ORDER BY created_at DESC OFFSET $2 LIMIT $3;`

	rows, err := r.pool.Query(ctx, q, subject, offset, limit)
	if err != nil {
		return nil, domain.ErrOperationFailed
	}
	defer rows.Close()

	var out []*model.Receipt
	for rows.Next() {
		rec := &model.Receipt{}
		if err := rows.Scan(&rec.ID, &rec.SessionID, &rec.Subject, &rec.ServiceID, &rec.ServiceName, &rec.Mode, &rec.Amount, &rec.Currency, &rec.Channel, &rec.Phone, &rec.Token, &rec.Status, &rec.Reason, &rec.CreatedAt); err != nil {
			return nil, domain.ErrReadDatabaseRow
		}
		out = append(out, rec)
	}
	if rows.Err() != nil {
		return nil, domain.ErrReadDatabaseRow
	}
	return out, nil
}
