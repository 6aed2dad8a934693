package usecase

import (
	"context"
	"time"

	"github.com/jackc/pgx/v4"
	"github.com/oklog/ulid/v2"
	"github.com/rs/zerolog"

	"billing-lifecycle/internal/domain"
	"billing-lifecycle/internal/domain/model"
	"billing-lifecycle/internal/domain/ports/adapter"
	"billing-lifecycle/internal/domain/ports/repository"
)

// Compile-time check
var _ RenewalUseCase = (*renewalUC)(nil)

// RenewalConfig carries the window parameters for evaluation passes.
type RenewalConfig struct {
	ReminderDays    int
	GraceDays       int
	CustomCycleDays int // period for services on the custom cycle
}

func (c RenewalConfig) validate() error {
	if c.ReminderDays < 0 || c.GraceDays < 0 {
		return domain.ErrInvalidArgument
	}
	return nil
}

// PassResult summarizes one evaluation pass over the service set.
type PassResult struct {
	Evaluated int
	Created   int
	Cancelled int

	// Window classification tallies, per state.
	Future   int
	InWindow int
	Expired  int
}

// RenewalUseCase reconciles each service's renewal-window state with its
// payment request set. Passes are idempotent and safe to run concurrently:
// creation goes through the store-level CreateIfNoneActive guard, so at most
// one request per service is ever in {pending, processing}.
type RenewalUseCase interface {
	// EvaluatePass runs a full reconcile over all billable services.
	EvaluatePass(ctx context.Context) (PassResult, error)
	// CreateManual creates a pending request for a service regardless of
	// window state: the first request for a new or one-time service, or a
	// client's explicit "request again". If an active request already exists
	// it is returned as the outcome instead of an error.
	CreateManual(ctx context.Context, serviceID, channel string) (*model.PaymentRequest, error)
}

type renewalUC struct {
	services repository.ServiceRepository
	requests repository.PaymentRequestRepository
	router   ChannelRouter
	tm       repository.TransactionManager // nil in unit tests / in-memory mode
	notifier adapter.NotificationSink
	cfg      RenewalConfig
	log      *zerolog.Logger
	now      func() time.Time // overridable in tests
}

func NewRenewalUseCase(
	services repository.ServiceRepository,
	requests repository.PaymentRequestRepository,
	router ChannelRouter,
	tm repository.TransactionManager,
	notifier adapter.NotificationSink,
	cfg RenewalConfig,
	logger *zerolog.Logger,
) (*renewalUC, error) {
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	l := logger.With().Str("component", "RenewalUseCase").Logger()
	return &renewalUC{
		services: services,
		requests: requests,
		router:   router,
		tm:       tm,
		notifier: notifier,
		cfg:      cfg,
		log:      &l,
		now:      time.Now,
	}, nil
}

func (uc *renewalUC) EvaluatePass(ctx context.Context) (PassResult, error) {
	var res PassResult
	now := uc.now()

	svcs, err := uc.services.ListBillable(ctx, repository.NoTX)
	if err != nil {
		return res, err
	}

	for _, svc := range svcs {
		if !svc.Recurring() {
			// One-time services are never cycle-renewed; billing them is an
			// explicit client action through CreateManual.
			continue
		}
		res.Evaluated++

		state, created, cancelled, err := uc.reconcileService(ctx, svc, now)
		if err != nil {
			// Per-service failures are recoverable by the next pass.
			uc.log.Error().Err(err).Str("service_id", svc.ID).Msg("reconcile failed")
			continue
		}
		switch state {
		case model.WindowFuture:
			res.Future++
		case model.WindowInWindow:
			res.InWindow++
		case model.WindowExpired:
			res.Expired++
		}
		res.Created += created
		res.Cancelled += cancelled
	}
	return res, nil
}

func (uc *renewalUC) reconcileService(ctx context.Context, svc *model.Service, now time.Time) (state model.WindowState, created, cancelled int, err error) {
	exp := svc.Expiration(uc.cfg.CustomCycleDays)
	if exp == nil {
		// Unknown or unresolved cycle: not subject to renewal scheduling.
		return "", 0, 0, nil
	}

	state, err = model.ClassifyWindow(now, *exp, uc.cfg.ReminderDays, uc.cfg.GraceDays)
	if err != nil {
		return "", 0, 0, err
	}

	switch state {
	case model.WindowInWindow:
		ok, err := uc.createRenewalRequest(ctx, svc, *exp)
		if err != nil {
			return state, 0, 0, err
		}
		if ok {
			created = 1
		}
	case model.WindowExpired:
		ok, err := uc.cancelActiveRequest(ctx, svc)
		if err != nil {
			return state, 0, 0, err
		}
		if ok {
			cancelled = 1
		}
	case model.WindowFuture:
		if err := uc.restoreRenewed(ctx, svc); err != nil {
			return state, 0, 0, err
		}
	}
	return state, created, cancelled, nil
}

// restoreRenewed flips a service back to active once its window is future
// again: the renewal settled and the cycle anchor moved forward. A service
// still holding an active request keeps its payment-facing status.
func (uc *renewalUC) restoreRenewed(ctx context.Context, svc *model.Service) error {
	if svc.Status != model.ServiceStatusPendingPayment && svc.Status != model.ServiceStatusGracePeriodExpired {
		return nil
	}
	if _, err := uc.requests.FindActiveByService(ctx, repository.NoTX, svc.ID); err == nil {
		return nil
	} else if err != domain.ErrNotFound {
		return err
	}
	if err := uc.services.UpdateStatus(ctx, repository.NoTX, svc.ID, model.ServiceStatusActive); err != nil {
		return err
	}
	uc.log.Info().Str("service_id", svc.ID).Msg("service renewed; status restored to active")
	return nil
}

// createRenewalRequest inserts an auto-generated pending request unless the
// service already has an active one. The existence check and the insert are a
// single atomic store operation; a concurrent pass losing the race simply
// observes created=false and moves on.
func (uc *renewalUC) createRenewalRequest(ctx context.Context, svc *model.Service, dueDate time.Time) (bool, error) {
	channel, err := uc.router.ResolveDefault(ctx)
	if err != nil {
		return false, err
	}
	req, err := model.NewPaymentRequest(ulid.Make().String(), svc, channel, dueDate, true)
	if err != nil {
		return false, err
	}

	created, err := uc.requests.CreateIfNoneActive(ctx, repository.NoTX, req)
	if err != nil {
		return false, err
	}
	if !created {
		return false, nil
	}

	if svc.Status == model.ServiceStatusActive {
		if err := uc.services.UpdateStatus(ctx, repository.NoTX, svc.ID, model.ServiceStatusPendingPayment); err != nil {
			uc.log.Error().Err(err).Str("service_id", svc.ID).Msg("status flip to pending_payment failed")
		}
	}
	uc.notify(ctx, adapter.NotifyRequestCreated, req)
	uc.log.Info().Str("service_id", svc.ID).Str("request_id", req.ID).Str("channel", channel).Msg("renewal request created")
	return true, nil
}

// cancelActiveRequest moves the active request to cancelled once the grace
// period is exhausted. The status guard makes a duplicate cancel a no-op.
func (uc *renewalUC) cancelActiveRequest(ctx context.Context, svc *model.Service) (bool, error) {
	reason := model.CancelReasonGraceExhausted
	run := func(ctx context.Context, tx repository.Tx) (*model.PaymentRequest, error) {
		active, err := uc.requests.FindActiveByService(ctx, tx, svc.ID)
		if err != nil {
			if err == domain.ErrNotFound {
				return nil, nil
			}
			return nil, err
		}
		changed, err := uc.requests.UpdateStatusIf(ctx, tx, active.ID, model.RequestStatusCancelled,
			[]model.PaymentRequestStatus{model.RequestStatusPending, model.RequestStatusProcessing}, &reason, nil)
		if err != nil || !changed {
			return nil, err
		}
		if err := uc.services.UpdateStatus(ctx, tx, svc.ID, model.ServiceStatusGracePeriodExpired); err != nil {
			return nil, err
		}
		return active, nil
	}

	var cancelled *model.PaymentRequest
	var err error
	if uc.tm != nil {
		err = uc.tm.WithTx(ctx, pgx.TxOptions{}, func(ctx context.Context, tx repository.Tx) error {
			cancelled, err = run(ctx, tx)
			return err
		})
	} else {
		cancelled, err = run(ctx, repository.NoTX)
	}
	if err != nil || cancelled == nil {
		return false, err
	}

	cancelled.Status = model.RequestStatusCancelled
	cancelled.CancelReason = &reason
	uc.log.Info().Str("service_id", svc.ID).Str("request_id", cancelled.ID).Msg("request cancelled: grace period exhausted")
	uc.notify(ctx, adapter.NotifyRequestCancelled, cancelled)
	return true, nil
}

func (uc *renewalUC) CreateManual(ctx context.Context, serviceID, channel string) (*model.PaymentRequest, error) {
	svc, err := uc.services.FindByID(ctx, repository.NoTX, serviceID)
	if err != nil {
		return nil, err
	}

	if channel == "" {
		channel, err = uc.router.ResolveDefault(ctx)
		if err != nil {
			return nil, err
		}
	}

	due := uc.now()
	if exp := svc.Expiration(uc.cfg.CustomCycleDays); exp != nil {
		due = *exp
	}

	req, err := model.NewPaymentRequest(ulid.Make().String(), svc, channel, due, false)
	if err != nil {
		return nil, err
	}
	created, err := uc.requests.CreateIfNoneActive(ctx, repository.NoTX, req)
	if err != nil {
		return nil, err
	}
	if !created {
		// Conflict resolution: the existing active request is the outcome.
		existing, err := uc.requests.FindActiveByService(ctx, repository.NoTX, serviceID)
		if err != nil {
			return nil, err
		}
		uc.log.Debug().Str("service_id", serviceID).Str("request_id", existing.ID).Msg("manual create: active request already present")
		return existing, nil
	}
	uc.notify(ctx, adapter.NotifyRequestCreated, req)
	return req, nil
}

func (uc *renewalUC) notify(ctx context.Context, kind adapter.NotificationKind, req *model.PaymentRequest) {
	if uc.notifier == nil {
		return
	}
	if err := uc.notifier.Notify(ctx, kind, req); err != nil {
		uc.log.Warn().Err(err).Str("kind", string(kind)).Str("request_id", req.ID).Msg("notification failed")
	}
}
