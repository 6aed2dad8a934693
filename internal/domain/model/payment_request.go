package model

import (
	"time"

	"github.com/shopspring/decimal"

	"billing-lifecycle/internal/domain"
)

type PaymentRequestStatus string

const (
	RequestStatusPending    PaymentRequestStatus = "pending"
	RequestStatusProcessing PaymentRequestStatus = "processing"
	RequestStatusCompleted  PaymentRequestStatus = "completed"
	RequestStatusFailed     PaymentRequestStatus = "failed"
	RequestStatusCancelled  PaymentRequestStatus = "cancelled"
	RequestStatusRefunded   PaymentRequestStatus = "refunded"
)

// ChannelUnselected marks a request created while more than one gateway was
// enabled: the client picks at payment time. ChannelBankTransfer is the
// implicit fallback channel and is always offered.
const (
	ChannelUnselected   = "unselected"
	ChannelBankTransfer = "bank_transfer"
)

// CancelReasonGraceExhausted is the reason recorded when the orchestrator
// cancels a request whose service fell past its grace period.
const CancelReasonGraceExhausted = "grace period exhausted"

// PaymentRequest is a demand for payment against a service. Amount and
// currency are copied from the service at creation time and never change.
// Requests are never deleted, only moved to a terminal status.
type PaymentRequest struct {
	ID        string // ULID, sortable by creation
	ServiceID string

	Status  PaymentRequestStatus
	Channel string // gateway key, ChannelBankTransfer or ChannelUnselected

	Amount   decimal.Decimal
	Currency string

	CreatedAt time.Time
	UpdatedAt time.Time
	DueDate   time.Time
	PaidAt    *time.Time

	// ProofRef references uploaded bank-transfer evidence.
	ProofRef *string

	IsAutoGenerated bool
	CancelReason    *string
}

// transitions is the canonical status table shared by every channel.
var transitions = map[PaymentRequestStatus][]PaymentRequestStatus{
	RequestStatusPending:    {RequestStatusProcessing, RequestStatusCompleted, RequestStatusCancelled},
	RequestStatusProcessing: {RequestStatusCompleted, RequestStatusFailed},
	RequestStatusCompleted:  {RequestStatusRefunded},
}

// CanTransitionTo reports whether moving to target is legal from s.
func (s PaymentRequestStatus) CanTransitionTo(target PaymentRequestStatus) bool {
	for _, t := range transitions[s] {
		if t == target {
			return true
		}
	}
	return false
}

// Active reports whether the status counts against the single-active-request
// guarantee.
func (s PaymentRequestStatus) Active() bool {
	return s == RequestStatusPending || s == RequestStatusProcessing
}

// Terminal reports whether no further transitions are possible.
func (s PaymentRequestStatus) Terminal() bool {
	return len(transitions[s]) == 0
}

// TransitionTo applies a status change after validating it against the table.
func (r *PaymentRequest) TransitionTo(target PaymentRequestStatus) error {
	if !r.Status.CanTransitionTo(target) {
		return domain.NewTransitionError(string(r.Status), string(target))
	}
	r.Status = target
	r.UpdatedAt = time.Now()
	if target == RequestStatusCompleted {
		now := time.Now()
		r.PaidAt = &now
	}
	return nil
}

// NewPaymentRequest builds a pending request for a service, copying its
// monetary fields.
func NewPaymentRequest(id string, svc *Service, channel string, dueDate time.Time, autoGenerated bool) (*PaymentRequest, error) {
	if id == "" || svc == nil {
		return nil, domain.ErrInvalidArgument
	}
	if channel == "" {
		channel = ChannelUnselected
	}
	now := time.Now()
	return &PaymentRequest{
		ID:              id,
		ServiceID:       svc.ID,
		Status:          RequestStatusPending,
		Channel:         channel,
		Amount:          svc.Amount,
		Currency:        svc.Currency,
		CreatedAt:       now,
		UpdatedAt:       now,
		DueDate:         dueDate,
		IsAutoGenerated: autoGenerated,
	}, nil
}
