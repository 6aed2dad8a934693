package usecase

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/rs/zerolog"

	"billing-lifecycle/internal/domain"
	"billing-lifecycle/internal/domain/model"
	"billing-lifecycle/internal/domain/ports/adapter"
	"billing-lifecycle/internal/domain/ports/repository"
)

// Compile-time check
var _ ProofUseCase = (*proofUC)(nil)

// ProofUseCase manages bank-transfer proof-of-payment evidence.
//
// Submission is terminal for the client: once the request leaves pending no
// re-submission is possible, a new request has to be created instead.
type ProofUseCase interface {
	// Submit uploads evidence and advances the request to processing, or
	// straight to completed when the channel auto-approves. On upload failure
	// the request stays pending and the client may retry.
	Submit(ctx context.Context, requestID, filename, contentType string, body io.Reader) (*model.PaymentRequest, error)
	// Review resolves a processing request: approve completes it, otherwise
	// it fails.
	Review(ctx context.Context, requestID string, approve bool) (*model.PaymentRequest, error)
}

type proofUC struct {
	requests repository.PaymentRequestRepository
	router   ChannelRouter
	evidence adapter.EvidenceStore
	notifier adapter.NotificationSink
	log      *zerolog.Logger
}

func NewProofUseCase(requests repository.PaymentRequestRepository, router ChannelRouter, evidence adapter.EvidenceStore, notifier adapter.NotificationSink, logger *zerolog.Logger) *proofUC {
	l := logger.With().Str("component", "ProofUseCase").Logger()
	return &proofUC{requests: requests, router: router, evidence: evidence, notifier: notifier, log: &l}
}

func (uc *proofUC) Submit(ctx context.Context, requestID, filename, contentType string, body io.Reader) (*model.PaymentRequest, error) {
	req, err := uc.requests.FindByID(ctx, repository.NoTX, requestID)
	if err != nil {
		return nil, err
	}
	if req.Status != model.RequestStatusPending {
		if req.ProofRef != nil {
			return nil, domain.ErrProofAlreadySubmitted
		}
		return nil, domain.NewTransitionError(string(req.Status), string(model.RequestStatusProcessing))
	}

	key := fmt.Sprintf("proofs/%s/%s/%s", req.ServiceID, req.ID, filename)
	ref, err := uc.evidence.Put(ctx, key, body, contentType)
	if err != nil {
		// Request untouched; the client retries the upload.
		return nil, fmt.Errorf("%w: %v", domain.ErrUploadFailed, err)
	}
	target := model.RequestStatusProcessing
	var paidAt *time.Time
	kind := adapter.NotificationKind("")
	if uc.router.AutoApprove(ctx, req.Channel) {
		// Auto-approve short-circuits the review step entirely.
		target = model.RequestStatusCompleted
		now := time.Now()
		paidAt = &now
		kind = adapter.NotifyRequestCompleted
	}

	// Evidence reference and transition land in one guarded update: a
	// submission that loses the race writes nothing.
	changed, err := uc.requests.AttachProof(ctx, repository.NoTX, req.ID, ref, target, paidAt)
	if err != nil {
		return nil, err
	}
	if !changed {
		// Someone else moved the request between our read and the update.
		current, ferr := uc.requests.FindByID(ctx, repository.NoTX, req.ID)
		if ferr != nil {
			return nil, ferr
		}
		if current.ProofRef != nil {
			return nil, domain.ErrProofAlreadySubmitted
		}
		return nil, domain.NewTransitionError(string(current.Status), string(target))
	}
	req.ProofRef = &ref
	req.Status = target
	req.PaidAt = paidAt
	if kind != "" {
		uc.notify(ctx, kind, req)
	}
	uc.log.Info().Str("request_id", req.ID).Str("status", string(target)).Str("proof_ref", ref).Msg("proof submitted")
	return req, nil
}

func (uc *proofUC) Review(ctx context.Context, requestID string, approve bool) (*model.PaymentRequest, error) {
	req, err := uc.requests.FindByID(ctx, repository.NoTX, requestID)
	if err != nil {
		return nil, err
	}

	target := model.RequestStatusFailed
	kind := adapter.NotifyRequestFailed
	var paidAt *time.Time
	if approve {
		target = model.RequestStatusCompleted
		kind = adapter.NotifyRequestCompleted
		now := time.Now()
		paidAt = &now
	}
	// Review only resolves submitted proof; everything else is an illegal
	// transition from the reviewer's point of view.
	if req.Status != model.RequestStatusProcessing {
		return nil, domain.NewTransitionError(string(req.Status), string(target))
	}

	changed, err := uc.requests.UpdateStatusIf(ctx, repository.NoTX, req.ID, target,
		[]model.PaymentRequestStatus{model.RequestStatusProcessing}, nil, paidAt)
	if err != nil {
		return nil, err
	}
	if !changed {
		return nil, domain.NewTransitionError(string(req.Status), string(target))
	}
	req.Status = target
	req.PaidAt = paidAt
	uc.notify(ctx, kind, req)
	uc.log.Info().Str("request_id", req.ID).Bool("approved", approve).Msg("proof reviewed")
	return req, nil
}

func (uc *proofUC) notify(ctx context.Context, kind adapter.NotificationKind, req *model.PaymentRequest) {
	if uc.notifier == nil {
		return
	}
	if err := uc.notifier.Notify(ctx, kind, req); err != nil {
		uc.log.Warn().Err(err).Str("kind", string(kind)).Str("request_id", req.ID).Msg("notification failed")
	}
}
