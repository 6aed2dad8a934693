package repository

import (
	"context"
	"time"

	"billing-lifecycle/internal/domain/model"
)

// PaymentRequestRepository is the port for payment requests.
//
// CreateIfNoneActive is the store-level guard behind the single-active-request
// guarantee: it must atomically refuse the insert when the service already has
// a request in {pending, processing}, even under concurrent evaluation passes.
// It returns false (and no error) when an active request already exists.
type PaymentRequestRepository interface {
	CreateIfNoneActive(ctx context.Context, tx Tx, r *model.PaymentRequest) (bool, error)
	Save(ctx context.Context, tx Tx, r *model.PaymentRequest) error
	FindByID(ctx context.Context, tx Tx, id string) (*model.PaymentRequest, error)
	FindActiveByService(ctx context.Context, tx Tx, serviceID string) (*model.PaymentRequest, error)
	ListByService(ctx context.Context, tx Tx, serviceID string) ([]*model.PaymentRequest, error)
	// UpdateStatusIf applies the status only when the current status is one of
	// expectFrom, returning whether a row changed. Guards every transition
	// against lost updates.
	UpdateStatusIf(ctx context.Context, tx Tx, id string, to model.PaymentRequestStatus, expectFrom []model.PaymentRequestStatus, cancelReason *string, paidAt *time.Time) (bool, error)
	// AttachProof stores the evidence reference and the resulting status in a
	// single guarded update from pending. When the request already left
	// pending it returns false and writes nothing, so a losing submission
	// never overwrites the row.
	AttachProof(ctx context.Context, tx Tx, id string, proofRef string, to model.PaymentRequestStatus, paidAt *time.Time) (bool, error)
	SetChannel(ctx context.Context, tx Tx, id string, channel string) error
}
