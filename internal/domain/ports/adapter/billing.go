package adapter

import (
	"context"

	"billpay-wizard/internal/domain/model"
)

// AuthContext carries the caller identity through to the submission call.
// The engine never reads ambient storage for credentials; the host supplies
// them explicitly per request.
type AuthContext struct {
	Subject string // caller/account subject id
	Bearer  string // bearer credential forwarded to the backend
}

// BillingBackend is the port for the bill-pay REST backend.
type BillingBackend interface {
	// ListServices fetches the full service catalog.
	ListServices(ctx context.Context) ([]model.Service, error)

	// FetchCharges fetches outstanding charges for an account identifier.
	// An empty slice with a nil error means "no outstanding charges" and is
	// a valid outcome, distinct from a lookup failure.
	FetchCharges(ctx context.Context, serviceID, accountID string) ([]model.Charge, error)

	// SubmitPayment performs exactly one mutating call per invocation and
	// classifies the outcome. Transport failures come back as a failed
	// result with class network; a non-nil error is reserved for
	// request-building problems and is treated the same by callers.
	SubmitPayment(ctx context.Context, auth AuthContext, req *model.PaymentRequest) (*model.PaymentResult, error)
}
