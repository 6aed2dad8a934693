package usecase

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"billing-lifecycle/internal/domain"
	"billing-lifecycle/internal/domain/model"
	"billing-lifecycle/internal/domain/ports/adapter"
	"billing-lifecycle/internal/domain/ports/repository"
)

// Compile-time check
var _ RequestUseCase = (*requestUC)(nil)

// RequestUseCase drives instant-gateway transitions and the explicit
// user/admin operations on an existing request.
type RequestUseCase interface {
	Get(ctx context.Context, requestID string) (*model.PaymentRequest, error)
	ListByService(ctx context.Context, serviceID string) ([]*model.PaymentRequest, error)
	// SelectChannel records the client's channel choice on a pending request
	// that was created with channel unselected.
	SelectChannel(ctx context.Context, requestID, channel string) (*model.PaymentRequest, error)
	// Acknowledge marks gateway initiation: pending -> processing.
	Acknowledge(ctx context.Context, requestID string) (*model.PaymentRequest, error)
	// ConfirmGateway finalizes a request from a gateway verdict. Success
	// completes the request (directly from pending when the gateway confirms
	// immediately); failure moves it through processing to failed.
	ConfirmGateway(ctx context.Context, requestID string, succeeded bool) (*model.PaymentRequest, error)
	// Cancel is the explicit user/admin cancel of a pending request.
	Cancel(ctx context.Context, requestID, reason string) (*model.PaymentRequest, error)
	// Refund reverses a completed request.
	Refund(ctx context.Context, requestID string) (*model.PaymentRequest, error)
}

type requestUC struct {
	requests repository.PaymentRequestRepository
	router   ChannelRouter
	notifier adapter.NotificationSink
	log      *zerolog.Logger
}

func NewRequestUseCase(requests repository.PaymentRequestRepository, router ChannelRouter, notifier adapter.NotificationSink, logger *zerolog.Logger) *requestUC {
	l := logger.With().Str("component", "RequestUseCase").Logger()
	return &requestUC{requests: requests, router: router, notifier: notifier, log: &l}
}

func (uc *requestUC) Get(ctx context.Context, requestID string) (*model.PaymentRequest, error) {
	return uc.requests.FindByID(ctx, repository.NoTX, requestID)
}

func (uc *requestUC) ListByService(ctx context.Context, serviceID string) ([]*model.PaymentRequest, error) {
	return uc.requests.ListByService(ctx, repository.NoTX, serviceID)
}

func (uc *requestUC) SelectChannel(ctx context.Context, requestID, channel string) (*model.PaymentRequest, error) {
	req, err := uc.requests.FindByID(ctx, repository.NoTX, requestID)
	if err != nil {
		return nil, err
	}
	if req.Status != model.RequestStatusPending {
		return nil, domain.NewTransitionError(string(req.Status), string(model.RequestStatusPending))
	}
	available, err := uc.router.Available(ctx)
	if err != nil {
		return nil, err
	}
	valid := false
	for _, c := range available {
		if c.Key == channel {
			valid = true
			break
		}
	}
	if !valid {
		return nil, domain.ErrInvalidArgument
	}
	if err := uc.requests.SetChannel(ctx, repository.NoTX, req.ID, channel); err != nil {
		return nil, err
	}
	req.Channel = channel
	return req, nil
}

func (uc *requestUC) Acknowledge(ctx context.Context, requestID string) (*model.PaymentRequest, error) {
	return uc.move(ctx, requestID, model.RequestStatusProcessing,
		[]model.PaymentRequestStatus{model.RequestStatusPending}, nil, false, "")
}

func (uc *requestUC) ConfirmGateway(ctx context.Context, requestID string, succeeded bool) (*model.PaymentRequest, error) {
	if succeeded {
		return uc.move(ctx, requestID, model.RequestStatusCompleted,
			[]model.PaymentRequestStatus{model.RequestStatusPending, model.RequestStatusProcessing}, nil, true, adapter.NotifyRequestCompleted)
	}
	req, err := uc.requests.FindByID(ctx, repository.NoTX, requestID)
	if err != nil {
		return nil, err
	}
	if req.Status == model.RequestStatusPending {
		// A declined pending request first acknowledges initiation; the
		// transition table has no pending -> failed edge.
		if _, err := uc.Acknowledge(ctx, requestID); err != nil {
			return nil, err
		}
	}
	return uc.move(ctx, requestID, model.RequestStatusFailed,
		[]model.PaymentRequestStatus{model.RequestStatusProcessing}, nil, false, adapter.NotifyRequestFailed)
}

func (uc *requestUC) Cancel(ctx context.Context, requestID, reason string) (*model.PaymentRequest, error) {
	return uc.move(ctx, requestID, model.RequestStatusCancelled,
		[]model.PaymentRequestStatus{model.RequestStatusPending}, &reason, false, adapter.NotifyRequestCancelled)
}

func (uc *requestUC) Refund(ctx context.Context, requestID string) (*model.PaymentRequest, error) {
	return uc.move(ctx, requestID, model.RequestStatusRefunded,
		[]model.PaymentRequestStatus{model.RequestStatusCompleted}, nil, false, "")
}

// move applies one guarded transition and reports TransitionError when the
// request is not in the expected source state.
func (uc *requestUC) move(ctx context.Context, requestID string, to model.PaymentRequestStatus, from []model.PaymentRequestStatus, cancelReason *string, paid bool, kind adapter.NotificationKind) (*model.PaymentRequest, error) {
	var paidAt *time.Time
	if paid {
		now := time.Now()
		paidAt = &now
	}
	changed, err := uc.requests.UpdateStatusIf(ctx, repository.NoTX, requestID, to, from, cancelReason, paidAt)
	if err != nil {
		return nil, err
	}
	req, ferr := uc.requests.FindByID(ctx, repository.NoTX, requestID)
	if ferr != nil {
		return nil, ferr
	}
	if !changed {
		return nil, domain.NewTransitionError(string(req.Status), string(to))
	}
	if kind != "" && uc.notifier != nil {
		if nerr := uc.notifier.Notify(ctx, kind, req); nerr != nil {
			uc.log.Warn().Err(nerr).Str("kind", string(kind)).Str("request_id", req.ID).Msg("notification failed")
		}
	}
	return req, nil
}
