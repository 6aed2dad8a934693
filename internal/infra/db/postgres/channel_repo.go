package postgres

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v4"
	"github.com/jackc/pgx/v4/pgxpool"

	"billing-lifecycle/internal/domain"
	"billing-lifecycle/internal/domain/model"
	"billing-lifecycle/internal/domain/ports/repository"
)

var _ repository.ChannelConfigRepository = (*channelRepo)(nil)

type channelRepo struct{ pool *pgxpool.Pool }

func NewChannelRepo(pool *pgxpool.Pool) *channelRepo {
	return &channelRepo{pool: pool}
}

func (r *channelRepo) Save(ctx context.Context, tx repository.Tx, c *model.ChannelConfig) error {
	const q = `
INSERT INTO channel_configs (key, enabled, auto_approve, credentials, environment)
VALUES ($1,$2,$3,$4,$5)
ON CONFLICT (key) DO UPDATE SET enabled=$2, auto_approve=$3, credentials=$4, environment=$5;`

	_, err := execSQL(ctx, r.pool, tx, q, c.Key, c.Enabled, c.AutoApprove, c.Credentials, c.Environment)
	if err != nil {
		if err == domain.ErrInvalidArgument || err == domain.ErrInvalidExecContext {
			return err
		}
		return domain.ErrOperationFailed
	}
	return nil
}

func (r *channelRepo) FindByKey(ctx context.Context, tx repository.Tx, key string) (*model.ChannelConfig, error) {
	const q = `SELECT key, enabled, auto_approve, credentials, environment FROM channel_configs WHERE key=$1;`
	row, err := pickRow(ctx, r.pool, tx, q, key)
	if err != nil {
		return nil, err
	}
	c := &model.ChannelConfig{}
	if err := row.Scan(&c.Key, &c.Enabled, &c.AutoApprove, &c.Credentials, &c.Environment); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, domain.ErrReadDatabaseRow
	}
	return c, nil
}

func (r *channelRepo) ListEnabled(ctx context.Context, tx repository.Tx) ([]*model.ChannelConfig, error) {
	const q = `SELECT key, enabled, auto_approve, credentials, environment FROM channel_configs WHERE enabled ORDER BY key;`
	rows, err := queryRows(ctx, r.pool, tx, q)
	if err != nil {
		if err == domain.ErrInvalidArgument || err == domain.ErrInvalidExecContext {
			return nil, err
		}
		return nil, domain.ErrOperationFailed
	}
	defer rows.Close()

	var out []*model.ChannelConfig
	for rows.Next() {
		c := &model.ChannelConfig{}
		if err := rows.Scan(&c.Key, &c.Enabled, &c.AutoApprove, &c.Credentials, &c.Environment); err != nil {
			return nil, domain.ErrReadDatabaseRow
		}
		out = append(out, c)
	}
	return out, nil
}
