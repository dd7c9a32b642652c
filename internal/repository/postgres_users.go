package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/atinyakov/CertTrack/internal/models"
	"github.com/lib/pq"
)

// PostgresStore implements the record store on a PostgreSQL database.
type PostgresStore struct {
	// DB is the database handle for executing queries.
	DB *sql.DB
}

// NewPostgresStore creates a new PostgresStore with the given database connection.
// db must be a valid *sql.DB connected to a PostgreSQL instance.
func NewPostgresStore(db *sql.DB) *PostgresStore {
	return &PostgresStore{DB: db}
}

const userColumns = `username, password, role, company_id, updated_at`

// FindUser returns the user or models.ErrRecordNotFound.
func (s *PostgresStore) FindUser(ctx context.Context, username string) (*models.User, error) {
	row := s.DB.QueryRowContext(ctx, `SELECT `+userColumns+` FROM users WHERE username = $1`, username)
	u, err := scanUser(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, models.ErrRecordNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("FindUser: %w", err)
	}
	return u, nil
}

// FindUsers returns the existing users among usernames.
func (s *PostgresStore) FindUsers(ctx context.Context, usernames []string) ([]models.User, error) {
	rows, err := s.DB.QueryContext(ctx,
		`SELECT `+userColumns+` FROM users WHERE username = ANY($1)`, pq.Array(usernames))
	if err != nil {
		return nil, fmt.Errorf("FindUsers: %w", err)
	}
	return collectUsers(rows)
}

// ListUsers returns every user ordered by username.
func (s *PostgresStore) ListUsers(ctx context.Context) ([]models.User, error) {
	rows, err := s.DB.QueryContext(ctx, `SELECT `+userColumns+` FROM users ORDER BY username`)
	if err != nil {
		return nil, fmt.Errorf("ListUsers: %w", err)
	}
	return collectUsers(rows)
}

// SetPassword replaces the stored credential.
func (s *PostgresStore) SetPassword(ctx context.Context, username, digest string, at time.Time) error {
	res, err := s.DB.ExecContext(ctx,
		`UPDATE users SET password = $1, updated_at = $2 WHERE username = $3`, digest, at, username)
	if err != nil {
		return fmt.Errorf("SetPassword: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("SetPassword: %w", err)
	}
	if n == 0 {
		return models.ErrRecordNotFound
	}
	return nil
}

// CountUsers returns the number of users.
func (s *PostgresStore) CountUsers(ctx context.Context) (int64, error) {
	var n int64
	if err := s.DB.QueryRowContext(ctx, `SELECT COUNT(*) FROM users`).Scan(&n); err != nil {
		return 0, fmt.Errorf("CountUsers: %w", err)
	}
	return n, nil
}

// UpsertUsers inserts or replaces users by username within a transaction.
func (s *PostgresStore) UpsertUsers(ctx context.Context, users []models.User) error {
	tx, err := s.DB.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	for _, u := range users {
		_, err := tx.ExecContext(ctx, `
			INSERT INTO users (username, password, role, company_id)
			VALUES ($1, $2, $3, $4)
			ON CONFLICT (username) DO UPDATE SET
				password = EXCLUDED.password,
				role = EXCLUDED.role,
				company_id = EXCLUDED.company_id
		`, u.Username, u.Password, string(u.Role), u.CompanyID)
		if err != nil {
			return fmt.Errorf("upsert user: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanUser(row rowScanner) (*models.User, error) {
	var (
		u         models.User
		role      string
		updatedAt sql.NullTime
	)
	if err := row.Scan(&u.Username, &u.Password, &role, &u.CompanyID, &updatedAt); err != nil {
		return nil, err
	}
	u.Role = models.Role(role)
	if updatedAt.Valid {
		t := updatedAt.Time
		u.UpdatedAt = &t
	}
	return &u, nil
}

func collectUsers(rows *sql.Rows) ([]models.User, error) {
	defer rows.Close()

	var users []models.User
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, fmt.Errorf("scan: %w", err)
		}
		users = append(users, *u)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows: %w", err)
	}
	return users, nil
}
