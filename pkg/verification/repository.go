package verification

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/tendant/simple-verify/pkg/utils"
)

// Purpose distinguishes why a verification code was issued and which
// downstream effect a successful verification triggers.
type Purpose string

const (
	PurposeEmailVerification Purpose = "email_verification"
	PurposePasswordReset     Purpose = "password_reset"
	PurposeLoginVerification Purpose = "login_verification"
)

// ParsePurpose converts a wire-level purpose string into a Purpose.
func ParsePurpose(s string) (Purpose, error) {
	switch Purpose(s) {
	case PurposeEmailVerification, PurposePasswordReset, PurposeLoginVerification:
		return Purpose(s), nil
	}
	return "", ErrInvalidPurpose
}

// Valid reports whether p is one of the known purposes.
func (p Purpose) Valid() bool {
	_, err := ParsePurpose(string(p))
	return err == nil
}

// VerificationCode represents a single issued passcode and its lifecycle state.
// Used is a one-way latch and Attempts is monotonically non-decreasing.
type VerificationCode struct {
	ID        uuid.UUID
	OwnerID   uuid.UUID
	Email     string
	Code      string
	Purpose   Purpose
	CreatedAt time.Time
	ExpiresAt time.Time
	Used      bool
	Attempts  int32
	IPAddress *string
	UserAgent *string
}

// UserAccount is the subset of the user record the verification core reads and updates.
type UserAccount struct {
	ID              uuid.UUID
	Email           string
	Name            string
	EmailVerified   bool
	EmailVerifiedAt *time.Time
}

// IssueCodeParams carries the write-once fields of a new verification code.
type IssueCodeParams struct {
	OwnerID   uuid.UUID
	Email     string
	Code      string
	Purpose   Purpose
	ExpiresAt time.Time
	IPAddress string
	UserAgent string
}

// Repository handles database operations for verification codes
type Repository struct {
	db *pgxpool.Pool
}

// NewRepository creates a new PostgreSQL-backed verification repository
func NewRepository(db *pgxpool.Pool) *Repository {
	return &Repository{db: db}
}

const codeColumns = `id, owner_id, email, code, purpose, created_at, expires_at, used, attempts, ip_address, user_agent`

func scanCode(row pgx.Row) (*VerificationCode, error) {
	var vc VerificationCode
	var ip, ua sql.NullString
	err := row.Scan(
		&vc.ID,
		&vc.OwnerID,
		&vc.Email,
		&vc.Code,
		&vc.Purpose,
		&vc.CreatedAt,
		&vc.ExpiresAt,
		&vc.Used,
		&vc.Attempts,
		&ip,
		&ua,
	)
	if err != nil {
		return nil, err
	}
	if ip.Valid {
		vc.IPAddress = &ip.String
	}
	if ua.Valid {
		vc.UserAgent = &ua.String
	}
	return &vc, nil
}

// IssueCode inserts a new verification code with used=false and attempts=0.
func (r *Repository) IssueCode(ctx context.Context, params IssueCodeParams) (*VerificationCode, error) {
	query := `
		INSERT INTO verification_codes (owner_id, email, code, purpose, expires_at, ip_address, user_agent)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING ` + codeColumns

	row := r.db.QueryRow(ctx, query,
		params.OwnerID,
		params.Email,
		params.Code,
		params.Purpose,
		params.ExpiresAt,
		utils.ToNullString(params.IPAddress),
		utils.ToNullString(params.UserAgent),
	)
	return scanCode(row)
}

// InvalidateOutstanding marks all unused codes for (owner, email, purpose) as
// used, so that only the next issued code is valid. Called immediately before
// issuing a new code.
func (r *Repository) InvalidateOutstanding(ctx context.Context, ownerID uuid.UUID, email string, purpose Purpose) error {
	query := `
		UPDATE verification_codes
		SET used = TRUE
		WHERE owner_id = $1
		AND email = $2
		AND purpose = $3
		AND used = FALSE
	`

	_, err := r.db.Exec(ctx, query, ownerID, email, purpose)
	return err
}

// FindActiveCodes retrieves all unused codes for (email, purpose), newest first.
// An empty result is a normal outcome, reported as ErrCodeNotFound.
func (r *Repository) FindActiveCodes(ctx context.Context, email string, purpose Purpose) ([]*VerificationCode, error) {
	query := `
		SELECT ` + codeColumns + `
		FROM verification_codes
		WHERE email = $1
		AND purpose = $2
		AND used = FALSE
		ORDER BY created_at DESC
	`

	rows, err := r.db.Query(ctx, query, email, purpose)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var codes []*VerificationCode
	for rows.Next() {
		vc, err := scanCode(rows)
		if err != nil {
			return nil, err
		}
		codes = append(codes, vc)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	if len(codes) == 0 {
		return nil, ErrCodeNotFound
	}

	return codes, nil
}

// RecordAttempt increments the attempt counter and returns the new count.
// The increment is persisted before the caller runs any expiry or exhaustion
// check, so even a failing submission is visible in the audit trail.
func (r *Repository) RecordAttempt(ctx context.Context, codeID uuid.UUID) (int32, error) {
	query := `
		UPDATE verification_codes
		SET attempts = attempts + 1
		WHERE id = $1
		RETURNING attempts
	`

	var attempts int32
	err := r.db.QueryRow(ctx, query, codeID).Scan(&attempts)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return 0, ErrCodeNotFound
		}
		return 0, err
	}

	return attempts, nil
}

// MarkCodeUsed flips the used latch. Idempotent no-op if already used.
func (r *Repository) MarkCodeUsed(ctx context.Context, codeID uuid.UUID) error {
	query := `
		UPDATE verification_codes
		SET used = TRUE
		WHERE id = $1
		AND used = FALSE
	`

	_, err := r.db.Exec(ctx, query, codeID)
	return err
}

// CountRecentCodes counts codes issued to (email, purpose) since the given
// time. This is the sliding-window issuance gate, measured from each row's
// creation time rather than a fixed bucket.
func (r *Repository) CountRecentCodes(ctx context.Context, email string, purpose Purpose, since time.Time) (int64, error) {
	query := `
		SELECT COUNT(*)
		FROM verification_codes
		WHERE email = $1
		AND purpose = $2
		AND created_at > $3
	`

	var count int64
	err := r.db.QueryRow(ctx, query, email, purpose, since).Scan(&count)
	if err != nil {
		return 0, err
	}

	return count, nil
}

// GetLatestCode retrieves the most recently issued code for (owner, purpose)
// regardless of its state. Used by the read-only status operation.
func (r *Repository) GetLatestCode(ctx context.Context, ownerID uuid.UUID, purpose Purpose) (*VerificationCode, error) {
	query := `
		SELECT ` + codeColumns + `
		FROM verification_codes
		WHERE owner_id = $1
		AND purpose = $2
		ORDER BY created_at DESC
		LIMIT 1
	`

	vc, err := scanCode(r.db.QueryRow(ctx, query, ownerID, purpose))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrCodeNotFound
		}
		return nil, err
	}

	return vc, nil
}

// DeleteCodesCreatedBefore deletes code rows older than the cutoff and returns
// the number of rows removed. The cutoff must be older than the issuance rate
// window, otherwise the sliding-window counts would be eroded.
func (r *Repository) DeleteCodesCreatedBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	query := `
		DELETE FROM verification_codes
		WHERE created_at < $1
	`

	tag, err := r.db.Exec(ctx, query, cutoff)
	if err != nil {
		return 0, err
	}

	return tag.RowsAffected(), nil
}

// GetUserByID retrieves a user record by id
func (r *Repository) GetUserByID(ctx context.Context, userID uuid.UUID) (*UserAccount, error) {
	query := `
		SELECT id, email, name, email_verified, email_verified_at
		FROM users
		WHERE id = $1
		AND deleted_at IS NULL
	`

	return r.scanUser(r.db.QueryRow(ctx, query, userID))
}

// GetUserByEmail retrieves a user record by email
func (r *Repository) GetUserByEmail(ctx context.Context, email string) (*UserAccount, error) {
	query := `
		SELECT id, email, name, email_verified, email_verified_at
		FROM users
		WHERE email = $1
		AND deleted_at IS NULL
	`

	return r.scanUser(r.db.QueryRow(ctx, query, email))
}

// MarkUserEmailVerified flips the user's verified flag to true
func (r *Repository) MarkUserEmailVerified(ctx context.Context, userID uuid.UUID) error {
	query := `
		UPDATE users
		SET email_verified = TRUE,
		    email_verified_at = NOW() AT TIME ZONE 'UTC'
		WHERE id = $1
	`

	_, err := r.db.Exec(ctx, query, userID)
	return err
}

func (r *Repository) scanUser(row pgx.Row) (*UserAccount, error) {
	var user UserAccount
	var name sql.NullString
	err := row.Scan(
		&user.ID,
		&user.Email,
		&name,
		&user.EmailVerified,
		&user.EmailVerifiedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrUserNotFound
		}
		return nil, err
	}

	if name.Valid {
		user.Name = name.String
	}

	return &user, nil
}
