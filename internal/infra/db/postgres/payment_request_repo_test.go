//go:build integration

package postgres

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/oklog/ulid/v2"
	"github.com/shopspring/decimal"

	"billing-lifecycle/internal/domain"
	"billing-lifecycle/internal/domain/model"
)

func TestPaymentRequestRepo_Integration(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode.")
	}

	ctx := context.Background()
	repo := NewPaymentRequestRepo(testPool)
	svcRepo := NewServiceRepo(testPool)

	svc, _ := model.NewService(uuid.NewString(), "client@example.com", model.CycleMonthly,
		time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC), decimal.RequireFromString("19.99"), "EUR")

	setupPrerequisites := func(t *testing.T) {
		cleanup(t)
		if err := svcRepo.Save(ctx, nil, svc); err != nil {
			t.Fatalf("failed to save service: %v", err)
		}
	}

	newRequest := func(t *testing.T) *model.PaymentRequest {
		t.Helper()
		req, err := model.NewPaymentRequest(ulid.Make().String(), svc, model.ChannelBankTransfer,
			time.Date(2024, 2, 1, 0, 0, 0, 0, time.UTC), true)
		if err != nil {
			t.Fatalf("failed to build request: %v", err)
		}
		return req
	}

	t.Run("should create and find a request", func(t *testing.T) {
		setupPrerequisites(t)

		req := newRequest(t)
		created, err := repo.CreateIfNoneActive(ctx, nil, req)
		if err != nil {
			t.Fatalf("CreateIfNoneActive failed: %v", err)
		}
		if !created {
			t.Fatal("expected first create to succeed")
		}

		found, err := repo.FindByID(ctx, nil, req.ID)
		if err != nil {
			t.Fatalf("FindByID failed: %v", err)
		}
		if found.ServiceID != svc.ID || found.Status != model.RequestStatusPending {
			t.Fatal("did not find the expected request by ID")
		}
		if !found.Amount.Equal(req.Amount) {
			t.Errorf("amount mismatch after round trip: want %s got %s", req.Amount, found.Amount)
		}

		active, err := repo.FindActiveByService(ctx, nil, svc.ID)
		if err != nil {
			t.Fatalf("FindActiveByService failed: %v", err)
		}
		if active.ID != req.ID {
			t.Fatal("did not find the active request by service")
		}
	})

	t.Run("second active create is a no-op", func(t *testing.T) {
		setupPrerequisites(t)

		first := newRequest(t)
		if created, err := repo.CreateIfNoneActive(ctx, nil, first); err != nil || !created {
			t.Fatalf("first create failed: created=%v err=%v", created, err)
		}
		second := newRequest(t)
		created, err := repo.CreateIfNoneActive(ctx, nil, second)
		if err != nil {
			t.Fatalf("second create errored: %v", err)
		}
		if created {
			t.Error("expected second create to be suppressed by the active guard")
		}
		if _, err := repo.FindByID(ctx, nil, second.ID); err != domain.ErrNotFound {
			t.Errorf("suppressed request must not be inserted, got err=%v", err)
		}
	})

	t.Run("terminal request frees the guard", func(t *testing.T) {
		setupPrerequisites(t)

		first := newRequest(t)
		repo.CreateIfNoneActive(ctx, nil, first)
		changed, err := repo.UpdateStatusIf(ctx, nil, first.ID, model.RequestStatusCancelled,
			[]model.PaymentRequestStatus{model.RequestStatusPending, model.RequestStatusProcessing}, nil, nil)
		if err != nil || !changed {
			t.Fatalf("cancel failed: changed=%v err=%v", changed, err)
		}

		second := newRequest(t)
		created, err := repo.CreateIfNoneActive(ctx, nil, second)
		if err != nil {
			t.Fatalf("create after cancel errored: %v", err)
		}
		if !created {
			t.Error("expected create to succeed once no active request remains")
		}
	})

	t.Run("concurrent creates never leave two active requests", func(t *testing.T) {
		setupPrerequisites(t)

		const workers = 8
		var wg sync.WaitGroup
		createdCount := make(chan bool, workers)
		for i := 0; i < workers; i++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				created, err := repo.CreateIfNoneActive(ctx, nil, newRequest(t))
				if err != nil {
					t.Errorf("concurrent create errored: %v", err)
					return
				}
				createdCount <- created
			}()
		}
		wg.Wait()
		close(createdCount)

		wins := 0
		for created := range createdCount {
			if created {
				wins++
			}
		}
		if wins != 1 {
			t.Errorf("expected exactly one winning insert, got %d", wins)
		}

		var active int
		err := testPool.QueryRow(ctx,
			`SELECT COUNT(*) FROM payment_requests WHERE service_id=$1 AND status IN ('pending','processing')`,
			svc.ID).Scan(&active)
		if err != nil {
			t.Fatalf("count query failed: %v", err)
		}
		if active != 1 {
			t.Errorf("expected exactly 1 active request, got %d", active)
		}
	})

	t.Run("guarded status update only fires from expected source", func(t *testing.T) {
		setupPrerequisites(t)

		req := newRequest(t)
		repo.CreateIfNoneActive(ctx, nil, req)

		paidAt := time.Now().Truncate(time.Millisecond)
		changed, err := repo.UpdateStatusIf(ctx, nil, req.ID, model.RequestStatusCompleted,
			[]model.PaymentRequestStatus{model.RequestStatusPending}, nil, &paidAt)
		if err != nil {
			t.Fatalf("UpdateStatusIf failed: %v", err)
		}
		if !changed {
			t.Error("expected first update to apply")
		}

		// Stale actor: the request already left pending.
		reason := model.CancelReasonGraceExhausted
		changedAgain, err := repo.UpdateStatusIf(ctx, nil, req.ID, model.RequestStatusCancelled,
			[]model.PaymentRequestStatus{model.RequestStatusPending}, &reason, nil)
		if err != nil {
			t.Fatalf("second UpdateStatusIf errored: %v", err)
		}
		if changedAgain {
			t.Error("expected stale update to be a no-op")
		}

		final, _ := repo.FindByID(ctx, nil, req.ID)
		if final.Status != model.RequestStatusCompleted {
			t.Errorf("expected final status completed, got %s", final.Status)
		}
		if final.PaidAt == nil || !final.PaidAt.Equal(paidAt) {
			t.Errorf("PaidAt was not recorded correctly, expected %v got %v", paidAt, final.PaidAt)
		}
		if final.CancelReason != nil {
			t.Error("cancel reason must not be set by a suppressed update")
		}
	})

	t.Run("cancel records the reason", func(t *testing.T) {
		setupPrerequisites(t)

		req := newRequest(t)
		repo.CreateIfNoneActive(ctx, nil, req)
		reason := model.CancelReasonGraceExhausted
		changed, err := repo.UpdateStatusIf(ctx, nil, req.ID, model.RequestStatusCancelled,
			[]model.PaymentRequestStatus{model.RequestStatusPending, model.RequestStatusProcessing}, &reason, nil)
		if err != nil || !changed {
			t.Fatalf("cancel failed: changed=%v err=%v", changed, err)
		}

		found, _ := repo.FindByID(ctx, nil, req.ID)
		if found.CancelReason == nil || *found.CancelReason != reason {
			t.Error("cancel reason was not persisted")
		}
	})

	t.Run("should set channel and attach proof on a pending request", func(t *testing.T) {
		setupPrerequisites(t)

		req := newRequest(t)
		repo.CreateIfNoneActive(ctx, nil, req)

		if err := repo.SetChannel(ctx, nil, req.ID, "paypal"); err != nil {
			t.Fatalf("SetChannel failed: %v", err)
		}
		attached, err := repo.AttachProof(ctx, nil, req.ID, "s3://evidence/proof.pdf", model.RequestStatusProcessing, nil)
		if err != nil {
			t.Fatalf("AttachProof failed: %v", err)
		}
		if !attached {
			t.Fatal("expected proof attach on a pending request to apply")
		}

		found, _ := repo.FindByID(ctx, nil, req.ID)
		if found.Channel != "paypal" {
			t.Errorf("expected channel paypal, got %s", found.Channel)
		}
		if found.ProofRef == nil || *found.ProofRef != "s3://evidence/proof.pdf" {
			t.Error("proof reference was not persisted")
		}
		if found.Status != model.RequestStatusProcessing {
			t.Errorf("expected processing after attach, got %s", found.Status)
		}

		// Nothing is written once the request left pending.
		attached, err = repo.AttachProof(ctx, nil, req.ID, "s3://evidence/late.pdf", model.RequestStatusProcessing, nil)
		if err != nil {
			t.Fatalf("second AttachProof errored: %v", err)
		}
		if attached {
			t.Error("expected attach past pending to be a no-op")
		}
		found, _ = repo.FindByID(ctx, nil, req.ID)
		if *found.ProofRef != "s3://evidence/proof.pdf" {
			t.Error("losing attach must not overwrite the stored reference")
		}

		// Channel is frozen once the request leaves pending.
		if err := repo.SetChannel(ctx, nil, req.ID, "bold"); err != domain.ErrNotFound {
			t.Errorf("expected ErrNotFound for channel change past pending, got %v", err)
		}
	})

	t.Run("should list requests newest first", func(t *testing.T) {
		setupPrerequisites(t)

		first := newRequest(t)
		repo.CreateIfNoneActive(ctx, nil, first)
		repo.UpdateStatusIf(ctx, nil, first.ID, model.RequestStatusCancelled,
			[]model.PaymentRequestStatus{model.RequestStatusPending}, nil, nil)

		second := newRequest(t)
		second.CreatedAt = second.CreatedAt.Add(time.Second)
		repo.CreateIfNoneActive(ctx, nil, second)

		list, err := repo.ListByService(ctx, nil, svc.ID)
		if err != nil {
			t.Fatalf("ListByService failed: %v", err)
		}
		if len(list) != 2 {
			t.Fatalf("expected 2 requests, got %d", len(list))
		}
		if list[0].ID != second.ID {
			t.Error("expected newest request first")
		}
	})
}
