package repository

import (
	"context"

	"billing-lifecycle/internal/domain/model"
)

// ChannelConfigRepository is the port for gateway configuration.
type ChannelConfigRepository interface {
	Save(ctx context.Context, tx Tx, c *model.ChannelConfig) error
	FindByKey(ctx context.Context, tx Tx, key string) (*model.ChannelConfig, error)
	ListEnabled(ctx context.Context, tx Tx) ([]*model.ChannelConfig, error)
}
