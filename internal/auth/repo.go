package auth

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/stocktally/stocktally/internal/shared"
)

// Repository defines persistence operations for auth module.
type Repository interface {
	GetCredential(ctx context.Context) (*Credential, error)
	UpdateCredential(ctx context.Context, username, passwordHash string) error
	SeedCredential(ctx context.Context, username, passwordHash string) (bool, error)
	RecordSession(ctx context.Context, sess DeviceSession) error
}

// PGRepository implements Repository using PostgreSQL.
type PGRepository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs a PostgreSQL repository.
func NewRepository(pool *pgxpool.Pool) *PGRepository {
	return &PGRepository{pool: pool}
}

// GetCredential fetches the shared login row.
func (r *PGRepository) GetCredential(ctx context.Context) (*Credential, error) {
	var cred Credential
	err := r.pool.QueryRow(ctx, `SELECT id, username, password_hash, updated_at FROM auth_secrets WHERE id=1`).
		Scan(&cred.ID, &cred.Username, &cred.PasswordHash, &cred.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, shared.ErrNotFound
		}
		return nil, err
	}
	return &cred, nil
}

// UpdateCredential rotates the shared login in place.
func (r *PGRepository) UpdateCredential(ctx context.Context, username, passwordHash string) error {
	_, err := r.pool.Exec(ctx, `UPDATE auth_secrets SET username=$1, password_hash=$2, updated_at=NOW() WHERE id=1`, username, passwordHash)
	return err
}

// SeedCredential creates the shared login row when missing. Returns true when
// a row was created.
func (r *PGRepository) SeedCredential(ctx context.Context, username, passwordHash string) (bool, error) {
	tag, err := r.pool.Exec(ctx, `INSERT INTO auth_secrets (id, username, password_hash, updated_at)
VALUES (1, $1, $2, NOW())
ON CONFLICT (id) DO NOTHING`, username, passwordHash)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() > 0, nil
}

// RecordSession persists an issued token in the database for auditing.
func (r *PGRepository) RecordSession(ctx context.Context, sess DeviceSession) error {
	issuedAt := sess.IssuedAt
	if issuedAt.IsZero() {
		issuedAt = time.Now().UTC()
	}
	_, err := r.pool.Exec(ctx, `INSERT INTO device_sessions (id, issued_at, expires_at, ip, ua)
VALUES ($1,$2,$3,$4,$5)`, sess.ID, issuedAt, sess.ExpiresAt.UTC(), nullString(sess.IP), nullString(sess.UserAgent))
	return err
}

func nullString(value string) any {
	if value == "" {
		return nil
	}
	return value
}

var _ Repository = (*PGRepository)(nil)
