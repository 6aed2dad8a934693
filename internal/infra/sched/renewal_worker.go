package sched

import (
	"context"
	"errors"
	"time"

	"github.com/rs/zerolog"

	"billing-lifecycle/internal/domain"
	"billing-lifecycle/internal/infra/metrics"
	"billing-lifecycle/internal/infra/redis"
	"billing-lifecycle/internal/usecase"
)

const passLockKey = "billing:renewal:pass"

// RenewalWorker drives evaluation passes: once at startup, on every trigger
// from the bus, and on a periodic tick as a safety net. Overlapping passes
// are harmless; the store guard keeps them idempotent. The redis lock only
// avoids burning a redundant full scan when another instance just ran one.
type RenewalWorker struct {
	interval time.Duration
	renewal  usecase.RenewalUseCase
	bus      *TriggerBus
	locker   redis.Locker // optional
	log      *zerolog.Logger
}

func NewRenewalWorker(interval time.Duration, renewal usecase.RenewalUseCase, bus *TriggerBus, locker redis.Locker, logger *zerolog.Logger) *RenewalWorker {
	if interval <= 0 {
		interval = time.Hour
	}
	l := logger.With().Str("component", "RenewalWorker").Logger()
	return &RenewalWorker{interval: interval, renewal: renewal, bus: bus, locker: locker, log: &l}
}

func (w *RenewalWorker) Run(ctx context.Context) error {
	w.log.Info().Dur("interval", w.interval).Msg("Starting renewal worker")
	// Run once on startup, then on every trigger or tick
	w.runPass(ctx)

	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			w.log.Info().Msg("Stopping renewal worker")
			return ctx.Err()
		case <-w.bus.C():
			w.runPass(ctx)
		case <-ticker.C:
			w.runPass(ctx)
		}
	}
}

func (w *RenewalWorker) runPass(ctx context.Context) {
	if w.locker != nil {
		token, err := w.locker.TryLock(ctx, passLockKey, w.interval/2)
		if err != nil {
			if errors.Is(err, domain.ErrLockHeld) {
				w.log.Debug().Msg("pass lock held elsewhere; skipping")
				return
			}
			// Lock service unavailable: run anyway, the store guard holds.
			w.log.Warn().Err(err).Msg("pass lock unavailable; running unlocked")
		} else {
			defer func() { _ = w.locker.Unlock(ctx, passLockKey, token) }()
		}
	}

	start := time.Now()
	res, err := w.renewal.EvaluatePass(ctx)
	metrics.ObservePassDuration(time.Since(start))
	if err != nil {
		w.log.Error().Err(err).Msg("evaluation pass failed")
		return
	}
	metrics.AddRequestsCreated(res.Created)
	metrics.AddRequestsCancelled(res.Cancelled)
	metrics.AddWindowClassifications(res.Future, res.InWindow, res.Expired)
	if res.Created > 0 || res.Cancelled > 0 {
		w.log.Info().Int("evaluated", res.Evaluated).Int("created", res.Created).Int("cancelled", res.Cancelled).Msg("evaluation pass reconciled")
	}
}
