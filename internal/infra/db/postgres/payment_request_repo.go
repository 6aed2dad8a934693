package postgres

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgconn"
	"github.com/jackc/pgx/v4"
	"github.com/jackc/pgx/v4/pgxpool"
	"github.com/shopspring/decimal"

	"billing-lifecycle/internal/domain"
	"billing-lifecycle/internal/domain/model"
	"billing-lifecycle/internal/domain/ports/repository"
)

var _ repository.PaymentRequestRepository = (*paymentRequestRepo)(nil)

type paymentRequestRepo struct{ pool *pgxpool.Pool }

func NewPaymentRequestRepo(pool *pgxpool.Pool) *paymentRequestRepo {
	return &paymentRequestRepo{pool: pool}
}

const requestColumns = `id, service_id, status, channel, amount::text, currency, created_at, updated_at, due_date, paid_at, proof_ref, is_auto_generated, cancel_reason`

func scanRequest(row pgx.Row) (*model.PaymentRequest, error) {
	p := &model.PaymentRequest{}
	var amount string
	if err := row.Scan(&p.ID, &p.ServiceID, &p.Status, &p.Channel, &amount, &p.Currency, &p.CreatedAt, &p.UpdatedAt, &p.DueDate, &p.PaidAt, &p.ProofRef, &p.IsAutoGenerated, &p.CancelReason); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, domain.ErrReadDatabaseRow
	}
	dec, err := decimal.NewFromString(amount)
	if err != nil {
		return nil, domain.ErrReadDatabaseRow
	}
	p.Amount = dec
	return p, nil
}

// CreateIfNoneActive inserts the request unless the service already holds one
// in {pending, processing}. The partial unique index payment_requests_one_active
// makes the existence check and the insert a single atomic statement, so
// concurrent evaluation passes cannot produce duplicates.
func (r *paymentRequestRepo) CreateIfNoneActive(ctx context.Context, tx repository.Tx, p *model.PaymentRequest) (bool, error) {
	const q = `
INSERT INTO payment_requests (id, service_id, status, channel, amount, currency, created_at, updated_at, due_date, paid_at, proof_ref, is_auto_generated, cancel_reason)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13)
ON CONFLICT (service_id) WHERE status IN ('pending','processing') DO NOTHING;`

	cmd, err := execSQL(ctx, r.pool, tx, q, p.ID, p.ServiceID, p.Status, p.Channel, p.Amount.String(), p.Currency, p.CreatedAt, p.UpdatedAt, p.DueDate, p.PaidAt, p.ProofRef, p.IsAutoGenerated, p.CancelReason)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			// Raced another insert past the ON CONFLICT arbiter; treat the
			// existing active request as the outcome.
			return false, nil
		}
		if err == domain.ErrInvalidArgument || err == domain.ErrInvalidExecContext {
			return false, err
		}
		return false, domain.ErrOperationFailed
	}
	return cmd.RowsAffected() == 1, nil
}

func (r *paymentRequestRepo) Save(ctx context.Context, tx repository.Tx, p *model.PaymentRequest) error {
	const q = `
INSERT INTO payment_requests (id, service_id, status, channel, amount, currency, created_at, updated_at, due_date, paid_at, proof_ref, is_auto_generated, cancel_reason)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13)
ON CONFLICT (id) DO UPDATE SET
  status=$3, channel=$4, updated_at=NOW(), paid_at=$10, proof_ref=$11, cancel_reason=$13;`

	_, err := execSQL(ctx, r.pool, tx, q, p.ID, p.ServiceID, p.Status, p.Channel, p.Amount.String(), p.Currency, p.CreatedAt, p.UpdatedAt, p.DueDate, p.PaidAt, p.ProofRef, p.IsAutoGenerated, p.CancelReason)
	if err != nil {
		if err == domain.ErrInvalidArgument || err == domain.ErrInvalidExecContext {
			return err
		}
		return domain.ErrOperationFailed
	}
	return nil
}

func (r *paymentRequestRepo) FindByID(ctx context.Context, tx repository.Tx, id string) (*model.PaymentRequest, error) {
	q := `SELECT ` + requestColumns + ` FROM payment_requests WHERE id=$1`
	if _, ok := tx.(pgx.Tx); ok {
		q += " FOR UPDATE"
	}
	q += ";"
	row, err := pickRow(ctx, r.pool, tx, q, id)
	if err != nil {
		return nil, err
	}
	return scanRequest(row)
}

func (r *paymentRequestRepo) FindActiveByService(ctx context.Context, tx repository.Tx, serviceID string) (*model.PaymentRequest, error) {
	q := `SELECT ` + requestColumns + ` FROM payment_requests WHERE service_id=$1 AND status IN ('pending','processing') LIMIT 1`
	if _, ok := tx.(pgx.Tx); ok {
		q += " FOR UPDATE"
	}
	q += ";"
	row, err := pickRow(ctx, r.pool, tx, q, serviceID)
	if err != nil {
		return nil, err
	}
	return scanRequest(row)
}

func (r *paymentRequestRepo) ListByService(ctx context.Context, tx repository.Tx, serviceID string) ([]*model.PaymentRequest, error) {
	const q = `SELECT ` + requestColumns + ` FROM payment_requests WHERE service_id=$1 ORDER BY created_at DESC;`
	rows, err := queryRows(ctx, r.pool, tx, q, serviceID)
	if err != nil {
		if err == domain.ErrInvalidArgument || err == domain.ErrInvalidExecContext {
			return nil, err
		}
		return nil, domain.ErrOperationFailed
	}
	defer rows.Close()

	var out []*model.PaymentRequest
	for rows.Next() {
		p, err := scanRequest(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, nil
}

// UpdateStatusIf applies the transition only from an expected source status,
// so duplicate invocations and stale actors degrade to no-ops.
func (r *paymentRequestRepo) UpdateStatusIf(ctx context.Context, tx repository.Tx, id string, to model.PaymentRequestStatus, expectFrom []model.PaymentRequestStatus, cancelReason *string, paidAt *time.Time) (bool, error) {
	from := make([]string, 0, len(expectFrom))
	for _, s := range expectFrom {
		from = append(from, string(s))
	}
	const q = `
UPDATE payment_requests
   SET status = $2,
       cancel_reason = COALESCE($3, cancel_reason),
       paid_at = COALESCE($4, paid_at),
       updated_at = NOW()
 WHERE id = $1
   AND status = ANY($5);`

	cmd, err := execSQL(ctx, r.pool, tx, q, id, string(to), cancelReason, paidAt, from)
	if err != nil {
		if err == domain.ErrInvalidArgument || err == domain.ErrInvalidExecContext {
			return false, err
		}
		return false, domain.ErrOperationFailed
	}
	return cmd.RowsAffected() >= 1, nil
}

// AttachProof writes proof_ref, status and paid_at in one statement guarded on
// the pending status, so a submission that lost the race cannot leave its
// evidence reference on a row it no longer owns.
func (r *paymentRequestRepo) AttachProof(ctx context.Context, tx repository.Tx, id string, proofRef string, to model.PaymentRequestStatus, paidAt *time.Time) (bool, error) {
	const q = `
UPDATE payment_requests
   SET proof_ref = $2,
       status = $3,
       paid_at = COALESCE($4, paid_at),
       updated_at = NOW()
 WHERE id = $1
   AND status = 'pending';`

	cmd, err := execSQL(ctx, r.pool, tx, q, id, proofRef, string(to), paidAt)
	if err != nil {
		if err == domain.ErrInvalidArgument || err == domain.ErrInvalidExecContext {
			return false, err
		}
		return false, domain.ErrOperationFailed
	}
	return cmd.RowsAffected() == 1, nil
}

func (r *paymentRequestRepo) SetChannel(ctx context.Context, tx repository.Tx, id string, channel string) error {
	const q = `UPDATE payment_requests SET channel=$2, updated_at=NOW() WHERE id=$1 AND status='pending';`
	cmd, err := execSQL(ctx, r.pool, tx, q, id, channel)
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
