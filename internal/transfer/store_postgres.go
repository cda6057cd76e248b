package transfer

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/lib/pq"

	id "renavam/pkg/domain"
	"renavam/pkg/platform/sentinel"
	"renavam/pkg/platform/tx"
)

// PostgresLedger persists transfers in PostgreSQL. A partial unique index on
// (car_id) WHERE status = 'pending' enforces the one-pending-per-car rule at
// the database, so racing initiates lose with a unique violation rather than
// a check-then-insert window.
type PostgresLedger struct {
	db *sql.DB
}

func NewPostgresLedger(db *sql.DB) *PostgresLedger {
	return &PostgresLedger{db: db}
}

// EnsureSchema creates the transfers table when missing.
func (l *PostgresLedger) EnsureSchema(ctx context.Context) error {
	_, err := l.db.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS transfers (
			id               UUID PRIMARY KEY,
			car_id           UUID NOT NULL REFERENCES cars (id),
			from_user        UUID NOT NULL REFERENCES users (id),
			to_user          UUID NOT NULL REFERENCES users (id),
			status           TEXT NOT NULL,
			started_at       TIMESTAMPTZ NOT NULL,
			finished_at      TIMESTAMPTZ,
			rejection_reason TEXT
		);
		CREATE UNIQUE INDEX IF NOT EXISTS transfers_pending_per_car
			ON transfers (car_id) WHERE status = 'pending';
		CREATE INDEX IF NOT EXISTS transfers_car_idx ON transfers (car_id);
	`)
	if err != nil {
		return fmt.Errorf("ensure transfers schema: %w", err)
	}
	return nil
}

func (l *PostgresLedger) Create(ctx context.Context, t *Transfer) error {
	q := tx.Resolve(ctx, l.db)
	_, err := q.ExecContext(ctx, `
		INSERT INTO transfers (id, car_id, from_user, to_user, status, started_at, finished_at, rejection_reason)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`, t.ID.String(), t.CarID.String(), t.From.String(), t.To.String(),
		string(t.Status), t.StartedAt, t.FinishedAt, reasonValue(t.RejectionReason))
	if err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code == "23505" {
			return sentinel.ErrConflict
		}
		return fmt.Errorf("create transfer: %w", err)
	}
	return nil
}

func (l *PostgresLedger) FindByID(ctx context.Context, transferID id.TransferID) (*Transfer, error) {
	q := tx.Resolve(ctx, l.db)
	row := q.QueryRowContext(ctx, `
		SELECT id, car_id, from_user, to_user, status, started_at, finished_at, rejection_reason
		FROM transfers WHERE id = $1
	`, transferID.String())
	return scanTransfer(row)
}

// Finish writes a terminal state conditionally on the row still being
// pending. Zero rows updated means another transaction finished first.
func (l *PostgresLedger) Finish(ctx context.Context, t *Transfer) error {
	q := tx.Resolve(ctx, l.db)
	res, err := q.ExecContext(ctx, `
		UPDATE transfers
		SET status = $2, finished_at = $3, rejection_reason = $4
		WHERE id = $1 AND status = 'pending'
	`, t.ID.String(), string(t.Status), t.FinishedAt, reasonValue(t.RejectionReason))
	if err != nil {
		return fmt.Errorf("finish transfer: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("finish transfer: %w", err)
	}
	if n == 0 {
		return sentinel.ErrInvalidState
	}
	return nil
}

func reasonValue(r *Reason) any {
	if r == nil {
		return nil
	}
	return string(*r)
}

func scanTransfer(row *sql.Row) (*Transfer, error) {
	var (
		t          Transfer
		idStr      string
		carStr     string
		fromStr    string
		toStr      string
		status     string
		finishedAt sql.NullTime
		reason     sql.NullString
	)
	err := row.Scan(&idStr, &carStr, &fromStr, &toStr, &status, &t.StartedAt, &finishedAt, &reason)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, sentinel.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("scan transfer: %w", err)
	}

	if t.ID, err = id.ParseTransferID(idStr); err != nil {
		return nil, fmt.Errorf("scan transfer id: %w", err)
	}
	if t.CarID, err = id.ParseCarID(carStr); err != nil {
		return nil, fmt.Errorf("scan transfer car id: %w", err)
	}
	if t.From, err = id.ParseUserID(fromStr); err != nil {
		return nil, fmt.Errorf("scan transfer sender id: %w", err)
	}
	if t.To, err = id.ParseUserID(toStr); err != nil {
		return nil, fmt.Errorf("scan transfer recipient id: %w", err)
	}
	t.Status = Status(status)
	if finishedAt.Valid {
		v := finishedAt.Time
		t.FinishedAt = &v
	}
	if reason.Valid {
		r := Reason(reason.String)
		t.RejectionReason = &r
	}
	return &t, nil
}

// PostgresTxRunner opens a real database transaction and carries it through
// the context so every store call inside fn resolves to the same *sql.Tx.
type PostgresTxRunner struct {
	db *sql.DB
}

func NewPostgresTxRunner(db *sql.DB) *PostgresTxRunner {
	return &PostgresTxRunner{db: db}
}

func (r *PostgresTxRunner) RunInTx(ctx context.Context, _ id.CarID, fn func(ctx context.Context) error) error {
	dbTx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transfer tx: %w", err)
	}

	if err := fn(tx.WithTx(ctx, dbTx)); err != nil {
		if rbErr := dbTx.Rollback(); rbErr != nil && !errors.Is(rbErr, sql.ErrTxDone) {
			return errors.Join(err, fmt.Errorf("rollback transfer tx: %w", rbErr))
		}
		return err
	}
	if err := dbTx.Commit(); err != nil {
		return fmt.Errorf("commit transfer tx: %w", err)
	}
	return nil
}
