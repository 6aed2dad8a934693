package usecase

import (
	"context"
	"errors"

	"github.com/rs/zerolog"

	"billing-lifecycle/internal/domain"
	"billing-lifecycle/internal/domain/model"
	"billing-lifecycle/internal/domain/ports/repository"
)

// Compile-time check
var _ ChannelRouter = (*channelRouter)(nil)

// ChannelRouter resolves which payment channel a new request defaults to and
// owns the auto-approve policy consulted by every status-transition path.
type ChannelRouter interface {
	// ResolveDefault picks the request channel: the single enabled gateway,
	// ChannelUnselected when several are enabled, and bank transfer when none
	// are configured at all.
	ResolveDefault(ctx context.Context) (string, error)
	// Available lists selectable channels. Bank transfer is always offered,
	// whether or not a config row exists for it.
	Available(ctx context.Context) ([]*model.ChannelConfig, error)
	// AutoApprove reports whether payments on the channel complete without a
	// review step.
	AutoApprove(ctx context.Context, channel string) bool
}

type channelRouter struct {
	channels repository.ChannelConfigRepository
	log      *zerolog.Logger
}

func NewChannelRouter(channels repository.ChannelConfigRepository, logger *zerolog.Logger) *channelRouter {
	l := logger.With().Str("component", "ChannelRouter").Logger()
	return &channelRouter{channels: channels, log: &l}
}

func (r *channelRouter) ResolveDefault(ctx context.Context) (string, error) {
	enabled, err := r.channels.ListEnabled(ctx, repository.NoTX)
	if err != nil && !errors.Is(err, domain.ErrNotFound) {
		return "", err
	}
	switch len(enabled) {
	case 0:
		// Missing configuration is not an error: bank transfer needs no
		// online redirect and serves as the implicit default.
		return model.ChannelBankTransfer, nil
	case 1:
		return enabled[0].Key, nil
	default:
		return model.ChannelUnselected, nil
	}
}

func (r *channelRouter) Available(ctx context.Context) ([]*model.ChannelConfig, error) {
	enabled, err := r.channels.ListEnabled(ctx, repository.NoTX)
	if err != nil && !errors.Is(err, domain.ErrNotFound) {
		return nil, err
	}
	for _, c := range enabled {
		if c.Key == model.ChannelBankTransfer {
			return enabled, nil
		}
	}
	return append(enabled, &model.ChannelConfig{Key: model.ChannelBankTransfer, Enabled: true}), nil
}

func (r *channelRouter) AutoApprove(ctx context.Context, channel string) bool {
	if channel == "" || channel == model.ChannelUnselected {
		return false
	}
	cfg, err := r.channels.FindByKey(ctx, repository.NoTX, channel)
	if err != nil {
		if !errors.Is(err, domain.ErrNotFound) {
			r.log.Warn().Err(err).Str("channel", channel).Msg("auto-approve lookup failed; defaulting to manual review")
		}
		return false
	}
	return cfg.AutoApprove
}
