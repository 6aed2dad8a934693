package postgres

import (
	"errors"

	"context"

	"github.com/jackc/pgx/v4"
	"github.com/jackc/pgx/v4/pgxpool"
	"github.com/shopspring/decimal"

	"billing-lifecycle/internal/domain"
	"billing-lifecycle/internal/domain/model"
	"billing-lifecycle/internal/domain/ports/repository"
)

var _ repository.ServiceRepository = (*serviceRepo)(nil)

type serviceRepo struct{ pool *pgxpool.Pool }

func NewServiceRepo(pool *pgxpool.Pool) *serviceRepo {
	return &serviceRepo{pool: pool}
}

const serviceColumns = `id, client_email, client_name, billing_cycle, cycle_start, explicit_expiration, amount::text, currency, status, created_at, updated_at`

func scanService(row pgx.Row) (*model.Service, error) {
	s := &model.Service{}
	var amount string
	if err := row.Scan(&s.ID, &s.ClientEmail, &s.ClientName, &s.Cycle, &s.CycleStart, &s.ExplicitExpiration, &amount, &s.Currency, &s.Status, &s.CreatedAt, &s.UpdatedAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, domain.ErrReadDatabaseRow
	}
	dec, err := decimal.NewFromString(amount)
	if err != nil {
		return nil, domain.ErrReadDatabaseRow
	}
	s.Amount = dec
	return s, nil
}

func (r *serviceRepo) Save(ctx context.Context, tx repository.Tx, s *model.Service) error {
	const q = `
INSERT INTO services (id, client_email, client_name, billing_cycle, cycle_start, explicit_expiration, amount, currency, status, created_at, updated_at)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11)
ON CONFLICT (id) DO UPDATE SET
  client_email=$2, client_name=$3, billing_cycle=$4, cycle_start=$5, explicit_expiration=$6, amount=$7, currency=$8, status=$9, updated_at=NOW();`

	_, err := execSQL(ctx, r.pool, tx, q, s.ID, s.ClientEmail, s.ClientName, s.Cycle, s.CycleStart, s.ExplicitExpiration, s.Amount.String(), s.Currency, s.Status, s.CreatedAt, s.UpdatedAt)
	if err != nil {
		if err == domain.ErrInvalidArgument || err == domain.ErrInvalidExecContext {
			return err
		}
		return domain.ErrOperationFailed
	}
	return nil
}

func (r *serviceRepo) FindByID(ctx context.Context, tx repository.Tx, id string) (*model.Service, error) {
	q := `SELECT ` + serviceColumns + ` FROM services WHERE id=$1;`
	row, err := pickRow(ctx, r.pool, tx, q, id)
	if err != nil {
		return nil, err
	}
	return scanService(row)
}

func (r *serviceRepo) ListBillable(ctx context.Context, tx repository.Tx) ([]*model.Service, error) {
	const q = `SELECT ` + serviceColumns + ` FROM services WHERE status <> 'cancelled' ORDER BY created_at ASC;`
	rows, err := queryRows(ctx, r.pool, tx, q)
	if err != nil {
		if err == domain.ErrInvalidArgument || err == domain.ErrInvalidExecContext {
			return nil, err
		}
		return nil, domain.ErrOperationFailed
	}
	defer rows.Close()

	var out []*model.Service
	for rows.Next() {
		s, err := scanService(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	return out, nil
}

func (r *serviceRepo) UpdateStatus(ctx context.Context, tx repository.Tx, id string, status model.ServiceStatus) error {
	const q = `UPDATE services SET status=$2, updated_at=NOW() WHERE id=$1;`
	cmd, err := execSQL(ctx, r.pool, tx, q, id, status)
	if err != nil {
		if err == domain.ErrInvalidArgument || err == domain.ErrInvalidExecContext {
			return err
		}
		return domain.ErrOperationFailed
	}
	if cmd.RowsAffected() == 0 {
		return domain.ErrNotFound
	}
	return nil
}
