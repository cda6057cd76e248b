package identity

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

// PostgresStore persists users in PostgreSQL.
type PostgresStore struct {
	db *sql.DB
}

func NewPostgresStore(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

// EnsureSchema creates the users table when missing.
func (s *PostgresStore) EnsureSchema(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS users (
			id                UUID PRIMARY KEY,
			full_name         TEXT NOT NULL,
			email             TEXT NOT NULL,
			password_hash     TEXT NOT NULL,
			birthday          DATE,
			profile_image_url TEXT NOT NULL DEFAULT ''
		);
		CREATE UNIQUE INDEX IF NOT EXISTS users_email_unique ON users (LOWER(email));
	`)
	if err != nil {
		return fmt.Errorf("ensure users schema: %w", err)
	}
	return nil
}

const uniqueViolation = "23505"

func isUniqueViolation(err error) bool {
	var pqErr *pq.Error
	return errors.As(err, &pqErr) && pqErr.Code == uniqueViolation
}

func (s *PostgresStore) Create(ctx context.Context, user *User) error {
	q := tx.Resolve(ctx, s.db)
	_, err := q.ExecContext(ctx, `
		INSERT INTO users (id, full_name, email, password_hash, birthday, profile_image_url)
		VALUES ($1, $2, $3, $4, $5, $6)
	`, user.ID.String(), user.FullName, user.Email, user.PasswordHash, user.Birthday, user.ProfileImageURL)
	if err != nil {
		if isUniqueViolation(err) {
			return sentinel.ErrConflict
		}
		return fmt.Errorf("create user: %w", err)
	}
	return nil
}

func (s *PostgresStore) FindByID(ctx context.Context, userID id.UserID) (*User, error) {
	q := tx.Resolve(ctx, s.db)
	row := q.QueryRowContext(ctx, `
		SELECT id, full_name, email, password_hash, birthday, profile_image_url
		FROM users WHERE id = $1
	`, userID.String())
	return scanUser(row)
}

func (s *PostgresStore) FindByEmail(ctx context.Context, email string) (*User, error) {
	q := tx.Resolve(ctx, s.db)
	row := q.QueryRowContext(ctx, `
		SELECT id, full_name, email, password_hash, birthday, profile_image_url
		FROM users WHERE LOWER(email) = LOWER($1)
	`, email)
	return scanUser(row)
}

func (s *PostgresStore) Update(ctx context.Context, user *User) error {
	q := tx.Resolve(ctx, s.db)
	result, err := q.ExecContext(ctx, `
		UPDATE users
		SET password_hash = $2, birthday = $3, profile_image_url = $4
		WHERE id = $1
	`, user.ID.String(), user.PasswordHash, user.Birthday, user.ProfileImageURL)
	if err != nil {
		return fmt.Errorf("update user: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("update user: %w", err)
	}
	if affected == 0 {
		return sentinel.ErrNotFound
	}
	return nil
}

func scanUser(row *sql.Row) (*User, error) {
	var (
		user     User
		rawID    string
		birthday sql.NullTime
	)
	err := row.Scan(&rawID, &user.FullName, &user.Email, &user.PasswordHash, &birthday, &user.ProfileImageURL)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, sentinel.ErrNotFound
		}
		return nil, fmt.Errorf("scan user: %w", err)
	}

	userID, err := id.ParseUserID(rawID)
	if err != nil {
		return nil, fmt.Errorf("scan user: %w", err)
	}
	user.ID = userID
	if birthday.Valid {
		b := birthday.Time
		user.Birthday = &b
	}
	return &user, nil
}
