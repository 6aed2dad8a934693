//go:build !integration

package usecase

import (
	"context"
	"errors"
	"testing"

	"billing-lifecycle/internal/domain"
	"billing-lifecycle/internal/domain/model"
)

func newRequestUC(t *testing.T) (*requestUC, *memRequestRepo, *memChannelRepo) {
	t.Helper()
	requests := newMemRequestRepo()
	channels := newMemChannelRepo()
	router := NewChannelRouter(channels, newTestLogger())
	return NewRequestUseCase(requests, router, &mockSink{}, newTestLogger()), requests, channels
}

func TestRequestUseCase_ConfirmGateway(t *testing.T) {
	ctx := context.Background()

	t.Run("immediate gateway confirmation completes a pending request", func(t *testing.T) {
		uc, requests, _ := newRequestUC(t)
		requests.Save(ctx, nil, pendingBankRequest("req-1"))

		req, err := uc.ConfirmGateway(ctx, "req-1", true)
		if err != nil {
			t.Fatal(err)
		}
		if req.Status != model.RequestStatusCompleted {
			t.Errorf("expected completed, got %s", req.Status)
		}
		if req.PaidAt == nil {
			t.Error("expected paid_at on completion")
		}
	})

	t.Run("gateway decline routes through processing to failed", func(t *testing.T) {
		uc, requests, _ := newRequestUC(t)
		requests.Save(ctx, nil, pendingBankRequest("req-1"))

		req, err := uc.ConfirmGateway(ctx, "req-1", false)
		if err != nil {
			t.Fatal(err)
		}
		if req.Status != model.RequestStatusFailed {
			t.Errorf("expected failed, got %s", req.Status)
		}
	})

	t.Run("confirming a cancelled request is rejected", func(t *testing.T) {
		uc, requests, _ := newRequestUC(t)
		req := pendingBankRequest("req-1")
		req.Status = model.RequestStatusCancelled
		requests.Save(ctx, nil, req)

		_, err := uc.ConfirmGateway(ctx, "req-1", true)
		var te *domain.TransitionError
		if !errors.As(err, &te) {
			t.Fatalf("expected TransitionError, got %v", err)
		}
	})
}

func TestRequestUseCase_CancelAndRefund(t *testing.T) {
	ctx := context.Background()

	t.Run("explicit cancel of a pending request", func(t *testing.T) {
		uc, requests, _ := newRequestUC(t)
		requests.Save(ctx, nil, pendingBankRequest("req-1"))

		req, err := uc.Cancel(ctx, "req-1", "client asked")
		if err != nil {
			t.Fatal(err)
		}
		if req.Status != model.RequestStatusCancelled {
			t.Errorf("expected cancelled, got %s", req.Status)
		}
		if req.CancelReason == nil || *req.CancelReason != "client asked" {
			t.Errorf("expected cancel reason recorded, got %v", req.CancelReason)
		}
	})

	t.Run("refund reverses a completed request", func(t *testing.T) {
		uc, requests, _ := newRequestUC(t)
		req := pendingBankRequest("req-1")
		req.Status = model.RequestStatusCompleted
		requests.Save(ctx, nil, req)

		got, err := uc.Refund(ctx, "req-1")
		if err != nil {
			t.Fatal(err)
		}
		if got.Status != model.RequestStatusRefunded {
			t.Errorf("expected refunded, got %s", got.Status)
		}
	})

	t.Run("completed requests cannot be moved back to processing", func(t *testing.T) {
		uc, requests, _ := newRequestUC(t)
		req := pendingBankRequest("req-1")
		req.Status = model.RequestStatusCompleted
		requests.Save(ctx, nil, req)

		_, err := uc.Acknowledge(ctx, "req-1")
		var te *domain.TransitionError
		if !errors.As(err, &te) {
			t.Fatalf("expected TransitionError, got %v", err)
		}
	})

	t.Run("refunding a pending request is rejected", func(t *testing.T) {
		uc, requests, _ := newRequestUC(t)
		requests.Save(ctx, nil, pendingBankRequest("req-1"))

		_, err := uc.Refund(ctx, "req-1")
		var te *domain.TransitionError
		if !errors.As(err, &te) {
			t.Fatalf("expected TransitionError, got %v", err)
		}
	})
}

func TestRequestUseCase_SelectChannel(t *testing.T) {
	ctx := context.Background()

	t.Run("selects an enabled channel on an unselected request", func(t *testing.T) {
		uc, requests, channels := newRequestUC(t)
		channels.Save(ctx, nil, &model.ChannelConfig{Key: "bold", Enabled: true})
		channels.Save(ctx, nil, &model.ChannelConfig{Key: "paypal", Enabled: true})
		req := pendingBankRequest("req-1")
		req.Channel = model.ChannelUnselected
		requests.Save(ctx, nil, req)

		got, err := uc.SelectChannel(ctx, "req-1", "paypal")
		if err != nil {
			t.Fatal(err)
		}
		if got.Channel != "paypal" {
			t.Errorf("expected paypal, got %s", got.Channel)
		}
	})

	t.Run("bank transfer is selectable even when not configured", func(t *testing.T) {
		uc, requests, channels := newRequestUC(t)
		channels.Save(ctx, nil, &model.ChannelConfig{Key: "bold", Enabled: true})
		channels.Save(ctx, nil, &model.ChannelConfig{Key: "paypal", Enabled: true})
		req := pendingBankRequest("req-1")
		req.Channel = model.ChannelUnselected
		requests.Save(ctx, nil, req)

		got, err := uc.SelectChannel(ctx, "req-1", model.ChannelBankTransfer)
		if err != nil {
			t.Fatal(err)
		}
		if got.Channel != model.ChannelBankTransfer {
			t.Errorf("expected bank transfer, got %s", got.Channel)
		}
	})

	t.Run("rejects channels that are not offered", func(t *testing.T) {
		uc, requests, _ := newRequestUC(t)
		requests.Save(ctx, nil, pendingBankRequest("req-1"))

		if _, err := uc.SelectChannel(ctx, "req-1", "stripe"); !errors.Is(err, domain.ErrInvalidArgument) {
			t.Fatalf("expected ErrInvalidArgument, got %v", err)
		}
	})
}
