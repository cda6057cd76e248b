package car

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/lib/pq"

	id "renavam/pkg/domain"
	"renavam/pkg/platform/sentinel"
	"renavam/pkg/platform/tx"
)

// PostgresStore persists cars in PostgreSQL. Histories are jsonb columns:
// they are read and written whole with the car, and both append operations
// run as single UPDATE statements so they stay atomic without row locks.
type PostgresStore struct {
	db *sql.DB
}

func NewPostgresStore(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

// EnsureSchema creates the cars table when missing.
func (s *PostgresStore) EnsureSchema(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS cars (
			id               UUID PRIMARY KEY,
			plate            TEXT NOT NULL,
			model            TEXT NOT NULL,
			model_year       INT NOT NULL,
			manufacture_year INT NOT NULL,
			color            TEXT NOT NULL,
			mileage          INT NOT NULL,
			owner_id         UUID NOT NULL REFERENCES users (id),
			previous_owners  JSONB NOT NULL DEFAULT '[]',
			transfer_history JSONB NOT NULL DEFAULT '[]'
		);
		CREATE UNIQUE INDEX IF NOT EXISTS cars_plate_unique ON cars (UPPER(plate));
		CREATE INDEX IF NOT EXISTS cars_owner_idx ON cars (owner_id);
	`)
	if err != nil {
		return fmt.Errorf("ensure cars schema: %w", err)
	}
	return nil
}

const uniqueViolation = "23505"

func isUniqueViolation(err error) bool {
	var pqErr *pq.Error
	return errors.As(err, &pqErr) && pqErr.Code == uniqueViolation
}

func (s *PostgresStore) Create(ctx context.Context, c *Car) error {
	q := tx.Resolve(ctx, s.db)
	prevOwners, err := json.Marshal(c.PreviousOwners)
	if err != nil {
		return fmt.Errorf("marshal previous owners: %w", err)
	}
	history, err := json.Marshal(c.TransferHistory)
	if err != nil {
		return fmt.Errorf("marshal transfer history: %w", err)
	}

	_, err = q.ExecContext(ctx, `
		INSERT INTO cars (id, plate, model, model_year, manufacture_year, color, mileage, owner_id, previous_owners, transfer_history)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
	`, c.ID.String(), c.Plate, c.Model, c.ModelYear, c.ManufactureYear, c.Color, c.Mileage, c.OwnerID.String(), prevOwners, history)
	if err != nil {
		if isUniqueViolation(err) {
			return sentinel.ErrConflict
		}
		return fmt.Errorf("create car: %w", err)
	}
	return nil
}

const carColumns = `id, plate, model, model_year, manufacture_year, color, mileage, owner_id, previous_owners, transfer_history`

func (s *PostgresStore) FindByID(ctx context.Context, carID id.CarID) (*Car, error) {
	q := tx.Resolve(ctx, s.db)
	row := q.QueryRowContext(ctx, `SELECT `+carColumns+` FROM cars WHERE id = $1`, carID.String())
	return scanCar(row)
}

// FindByIDForUpdate locks the car row for the remainder of the transaction,
// serializing concurrent transfer operations on the same car. Outside a
// transaction it degrades to a plain read.
func (s *PostgresStore) FindByIDForUpdate(ctx context.Context, carID id.CarID) (*Car, error) {
	if _, inTx := tx.From(ctx); !inTx {
		return s.FindByID(ctx, carID)
	}
	q := tx.Resolve(ctx, s.db)
	row := q.QueryRowContext(ctx, `SELECT `+carColumns+` FROM cars WHERE id = $1 FOR UPDATE`, carID.String())
	return scanCar(row)
}

func (s *PostgresStore) ListByOwner(ctx context.Context, ownerID id.UserID) ([]Car, error) {
	q := tx.Resolve(ctx, s.db)
	rows, err := q.QueryContext(ctx, `SELECT `+carColumns+` FROM cars WHERE owner_id = $1 ORDER BY plate`, ownerID.String())
	if err != nil {
		return nil, fmt.Errorf("list cars: %w", err)
	}
	defer rows.Close()

	var cars []Car
	for rows.Next() {
		c, err := scanCar(rows)
		if err != nil {
			return nil, err
		}
		cars = append(cars, *c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list cars: %w", err)
	}
	return cars, nil
}

func (s *PostgresStore) AppendTransferHistory(ctx context.Context, carID id.CarID, transferID id.TransferID) error {
	q := tx.Resolve(ctx, s.db)
	entry, err := json.Marshal(transferID)
	if err != nil {
		return fmt.Errorf("marshal transfer id: %w", err)
	}

	result, err := q.ExecContext(ctx, `
		UPDATE cars SET transfer_history = transfer_history || $2::jsonb WHERE id = $1
	`, carID.String(), entry)
	if err != nil {
		return fmt.Errorf("append transfer history: %w", err)
	}
	return requireRow(result, "append transfer history")
}

func (s *PostgresStore) TransferOwnership(ctx context.Context, carID id.CarID, newOwner id.UserID, prev PreviousOwner) error {
	q := tx.Resolve(ctx, s.db)
	entry, err := json.Marshal(prev)
	if err != nil {
		return fmt.Errorf("marshal previous owner: %w", err)
	}

	result, err := q.ExecContext(ctx, `
		UPDATE cars
		SET previous_owners = previous_owners || $2::jsonb, owner_id = $3
		WHERE id = $1
	`, carID.String(), entry, newOwner.String())
	if err != nil {
		return fmt.Errorf("transfer ownership: %w", err)
	}
	return requireRow(result, "transfer ownership")
}

func requireRow(result sql.Result, op string) error {
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	if affected == 0 {
		return sentinel.ErrNotFound
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanCar(row rowScanner) (*Car, error) {
	var (
		c          Car
		rawID      string
		rawOwner   string
		rawPrev    []byte
		rawHistory []byte
	)
	err := row.Scan(&rawID, &c.Plate, &c.Model, &c.ModelYear, &c.ManufactureYear, &c.Color, &c.Mileage, &rawOwner, &rawPrev, &rawHistory)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, sentinel.ErrNotFound
		}
		return nil, fmt.Errorf("scan car: %w", err)
	}

	carID, err := id.ParseCarID(rawID)
	if err != nil {
		return nil, fmt.Errorf("scan car: %w", err)
	}
	ownerID, err := id.ParseUserID(rawOwner)
	if err != nil {
		return nil, fmt.Errorf("scan car: %w", err)
	}
	c.ID = carID
	c.OwnerID = ownerID

	if err := json.Unmarshal(rawPrev, &c.PreviousOwners); err != nil {
		return nil, fmt.Errorf("scan car previous owners: %w", err)
	}
	if err := json.Unmarshal(rawHistory, &c.TransferHistory); err != nil {
		return nil, fmt.Errorf("scan car transfer history: %w", err)
	}
	return &c, nil
}
