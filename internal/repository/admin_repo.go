package repository

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"advisory-cms/internal/model"
)

const uniqueViolationCode = "23505"

const adminColumns = `id, email, display_name, password_hash, role, active,
	        refresh_token, last_login_at, created_at, updated_at`

// AdminRepository is the credential store: one row per administrator with a
// single refresh-token rotation slot.
type AdminRepository struct {
	pool *pgxpool.Pool
}

func NewAdminRepository(pool *pgxpool.Pool) *AdminRepository {
	return &AdminRepository{pool: pool}
}

func (r *AdminRepository) FindByID(ctx context.Context, id string) (model.Admin, error) {
	return r.findOne(ctx,
		`SELECT `+adminColumns+` FROM admins WHERE id = $1`, id)
}

func (r *AdminRepository) FindByEmail(ctx context.Context, email string) (model.Admin, error) {
	return r.findOne(ctx,
		`SELECT `+adminColumns+` FROM admins WHERE lower(email) = lower($1)`,
		strings.TrimSpace(email))
}

// FindByRefreshToken supports logout, which identifies the session by the
// cookie value alone because the access token may already be expired.
func (r *AdminRepository) FindByRefreshToken(ctx context.Context, refreshToken string) (model.Admin, error) {
	return r.findOne(ctx,
		`SELECT `+adminColumns+` FROM admins WHERE refresh_token = $1`, refreshToken)
}

func (r *AdminRepository) findOne(ctx context.Context, query string, args ...any) (model.Admin, error) {
	var a model.Admin
	err := r.pool.QueryRow(ctx, query, args...).
		Scan(&a.ID, &a.Email, &a.DisplayName, &a.PasswordHash, &a.Role, &a.Active,
			&a.RefreshToken, &a.LastLoginAt, &a.CreatedAt, &a.UpdatedAt)

	if errors.Is(err, pgx.ErrNoRows) {
		return model.Admin{}, model.ErrAdminNotFound
	}
	if err != nil {
		return model.Admin{}, fmt.Errorf("find admin: %w", err)
	}
	return a, nil
}

func (r *AdminRepository) Create(ctx context.Context, a model.Admin) error {
	_, err := r.pool.Exec(ctx,
		`INSERT INTO admins (id, email, display_name, password_hash, role, active, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		a.ID, a.Email, a.DisplayName, a.PasswordHash, a.Role, a.Active, a.CreatedAt, a.UpdatedAt)
	if isUniqueViolation(err) {
		return model.ErrDuplicateIdentity
	}
	if err != nil {
		return fmt.Errorf("create admin: %w", err)
	}
	return nil
}

// SetRefreshToken overwrites the rotation slot, invalidating any previously
// issued refresh token, and stamps the last login.
func (r *AdminRepository) SetRefreshToken(ctx context.Context, adminID string, refreshToken string, loginAt time.Time) error {
	tag, err := r.pool.Exec(ctx,
		`UPDATE admins SET refresh_token = $2, last_login_at = $3, updated_at = $3 WHERE id = $1`,
		adminID, refreshToken, loginAt)
	if err != nil {
		return fmt.Errorf("set refresh token: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return model.ErrAdminNotFound
	}
	return nil
}

// ClearRefreshToken clears the slot by token value. Clearing a value that is
// no longer stored is not an error; logout is idempotent.
func (r *AdminRepository) ClearRefreshToken(ctx context.Context, refreshToken string) error {
	_, err := r.pool.Exec(ctx,
		`UPDATE admins SET refresh_token = NULL, updated_at = $2 WHERE refresh_token = $1`,
		refreshToken, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("clear refresh token: %w", err)
	}
	return nil
}

func (r *AdminRepository) UpdateProfile(ctx context.Context, adminID string, email string, displayName string) error {
	tag, err := r.pool.Exec(ctx,
		`UPDATE admins SET email = $2, display_name = $3, updated_at = $4 WHERE id = $1`,
		adminID, strings.TrimSpace(email), strings.TrimSpace(displayName), time.Now().UTC())
	if isUniqueViolation(err) {
		return model.ErrDuplicateIdentity
	}
	if err != nil {
		return fmt.Errorf("update profile: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return model.ErrAdminNotFound
	}
	return nil
}

// UpdatePassword replaces the hash and clears the refresh-token slot so any
// other live session has to re-authenticate.
func (r *AdminRepository) UpdatePassword(ctx context.Context, adminID string, passwordHash string) error {
	tag, err := r.pool.Exec(ctx,
		`UPDATE admins SET password_hash = $2, refresh_token = NULL, updated_at = $3 WHERE id = $1`,
		adminID, passwordHash, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("update password: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return model.ErrAdminNotFound
	}
	return nil
}

func (r *AdminRepository) Count(ctx context.Context) (int, error) {
	var count int
	err := r.pool.QueryRow(ctx, `SELECT COUNT(*) FROM admins`).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("count admins: %w", err)
	}
	return count, nil
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == uniqueViolationCode
}
