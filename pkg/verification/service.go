package verification

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/tendant/simple-verify/pkg/notification"
	"github.com/tendant/simple-verify/pkg/utils"
)

// VerificationService handles the verification code lifecycle: issuance behind
// a sliding-window rate gate, delivery, verification and status reporting.
type VerificationService struct {
	repo                VerificationRepository
	notificationManager *notification.NotificationManager
	codeExpiry          time.Duration
	maxAttempts         int32
	issueLimit          int64
	issueWindow         time.Duration
}

// VerificationServiceOption defines configuration options
type VerificationServiceOption func(*VerificationService)

// WithCodeExpiry sets the code expiration duration
func WithCodeExpiry(expiry time.Duration) VerificationServiceOption {
	return func(s *VerificationService) {
		s.codeExpiry = expiry
	}
}

// WithMaxAttempts sets the attempt cap beyond which a code is permanently unusable
func WithMaxAttempts(max int32) VerificationServiceOption {
	return func(s *VerificationService) {
		s.maxAttempts = max
	}
}

// WithIssueLimit sets the maximum number of codes issued per (email, purpose) within the issue window
func WithIssueLimit(limit int64) VerificationServiceOption {
	return func(s *VerificationService) {
		s.issueLimit = limit
	}
}

// WithIssueWindow sets the sliding time window for the issuance rate gate
func WithIssueWindow(window time.Duration) VerificationServiceOption {
	return func(s *VerificationService) {
		s.issueWindow = window
	}
}

// NewVerificationService creates a new verification service
func NewVerificationService(
	repo VerificationRepository,
	notificationManager *notification.NotificationManager,
	opts ...VerificationServiceOption,
) *VerificationService {
	service := &VerificationService{
		repo:                repo,
		notificationManager: notificationManager,
		codeExpiry:          15 * time.Minute,
		maxAttempts:         5,
		issueLimit:          3,
		issueWindow:         1 * time.Hour,
	}

	for _, opt := range opts {
		opt(service)
	}

	return service
}

// VerifyResult is returned on successful verification
type VerifyResult struct {
	UserID uuid.UUID
}

// ResendResult is returned by ResendCode. ExpiresAt is reported for the
// unknown-email path too, so the response shape does not leak account existence.
type ResendResult struct {
	ExpiresAt time.Time
}

// Status is the read-only verification state of a user
type Status struct {
	EmailVerified          bool
	HasPendingVerification bool
	LastCodeSentAt         *time.Time
}

// IssueCode issues a fresh verification code for (user, email, purpose), after
// invalidating all outstanding codes for that tuple, and dispatches the
// purpose-specific email. Returns ErrRateLimitExceeded when more than the
// allowed number of codes were issued inside the trailing issue window.
//
// Email delivery is fire and forget: a send failure is logged and the code
// stays valid, since resend is always available.
func (s *VerificationService) IssueCode(ctx context.Context, userID uuid.UUID, email string, purpose Purpose, ipAddress, userAgent string) (string, error) {
	if !purpose.Valid() {
		return "", ErrInvalidPurpose
	}

	// Sliding-window gate: count issuance events, not a reset-on-boundary bucket
	cutoff := time.Now().UTC().Add(-s.issueWindow)
	count, err := s.repo.CountRecentCodes(ctx, email, purpose, cutoff)
	if err != nil {
		slog.Error("Failed to count recent codes", "email", utils.MaskEmail(email), "purpose", purpose, "error", err)
		return "", fmt.Errorf("failed to check rate limit: %w", err)
	}
	if count >= s.issueLimit {
		slog.Warn("Issuance rate limit exceeded", "email", utils.MaskEmail(email), "purpose", purpose, "count", count, "limit", s.issueLimit)
		return "", ErrRateLimitExceeded
	}

	code, err := GeneratePasscode()
	if err != nil {
		return "", err
	}

	now := time.Now().UTC()
	expiresAt := now.Add(s.codeExpiry)

	// A stale code must never outlive the newest one, so the invalidation has
	// to land before the insert. If the insert then fails the user is left
	// with zero valid codes, which is acceptable.
	err = s.repo.InvalidateOutstanding(ctx, userID, email, purpose)
	if err != nil {
		slog.Error("Failed to invalidate outstanding codes", "user_id", userID, "purpose", purpose, "error", err)
		return "", fmt.Errorf("failed to invalidate outstanding codes: %w", err)
	}

	vc, err := s.repo.IssueCode(ctx, IssueCodeParams{
		OwnerID:   userID,
		Email:     email,
		Code:      code,
		Purpose:   purpose,
		ExpiresAt: expiresAt,
		IPAddress: ipAddress,
		UserAgent: userAgent,
	})
	if err != nil {
		slog.Error("Failed to issue verification code", "user_id", userID, "purpose", purpose, "error", err)
		return "", fmt.Errorf("failed to issue verification code: %w", err)
	}

	err = s.sendCodeEmail(ctx, email, code, purpose)
	if err != nil {
		slog.Error("Failed to send verification code email", "user_id", userID, "purpose", purpose, "error", err)
		// Don't return error - the code is issued, email delivery is best effort
	}

	slog.Info("Verification code issued", "user_id", userID, "purpose", purpose, "code_id", vc.ID, "expires_at", expiresAt)
	return vc.Code, nil
}

// VerifyCode matches a submitted code against the active code for
// (email, purpose) and enforces the attempt cap and expiry.
//
// Every submission that reaches an active code charges an attempt before any
// other check runs, so a post-expiry or wrong-code submission still shows up
// in the audit trail. The exhaustion check runs before the code comparison:
// once a code has absorbed the attempt budget it reports ErrTooManyAttempts
// even for the correct value.
func (s *VerificationService) VerifyCode(ctx context.Context, email, code string, purpose Purpose) (*VerifyResult, error) {
	if !purpose.Valid() {
		return nil, ErrInvalidPurpose
	}

	active, err := s.repo.FindActiveCodes(ctx, email, purpose)
	if err != nil {
		if errors.Is(err, ErrCodeNotFound) {
			// No active record to charge an attempt to
			slog.Warn("No active verification code", "email", utils.MaskEmail(email), "purpose", purpose)
			return nil, ErrInvalidCode
		}
		slog.Error("Failed to look up verification codes", "email", utils.MaskEmail(email), "purpose", purpose, "error", err)
		return nil, fmt.Errorf("failed to look up verification code: %w", err)
	}

	// Concurrent issuance can leave more than one active code. Charge the
	// attempt to the matching one if any, otherwise to the newest.
	vc := active[0]
	for _, candidate := range active {
		if candidate.Code == code {
			vc = candidate
			break
		}
	}

	attempts, err := s.repo.RecordAttempt(ctx, vc.ID)
	if err != nil {
		slog.Error("Failed to record verification attempt", "code_id", vc.ID, "error", err)
		return nil, fmt.Errorf("failed to record verification attempt: %w", err)
	}

	if attempts >= s.maxAttempts {
		slog.Warn("Verification attempt cap exhausted", "code_id", vc.ID, "attempts", attempts)
		return nil, ErrTooManyAttempts
	}

	// A submission at exactly expiresAt counts as expired
	now := time.Now().UTC()
	if !now.Before(vc.ExpiresAt) {
		slog.Warn("Verification code expired", "code_id", vc.ID, "expires_at", vc.ExpiresAt)
		return nil, ErrCodeExpired
	}

	if vc.Code != code {
		slog.Warn("Verification code mismatch", "code_id", vc.ID, "attempts", attempts)
		return nil, ErrInvalidCode
	}

	err = s.repo.MarkCodeUsed(ctx, vc.ID)
	if err != nil {
		slog.Error("Failed to mark verification code used", "code_id", vc.ID, "error", err)
		return nil, fmt.Errorf("failed to mark verification code used: %w", err)
	}

	if purpose == PurposeEmailVerification {
		err = s.repo.MarkUserEmailVerified(ctx, vc.OwnerID)
		if err != nil {
			slog.Error("Failed to mark user email verified", "user_id", vc.OwnerID, "error", err)
			return nil, fmt.Errorf("failed to mark user email verified: %w", err)
		}
	}

	slog.Info("Verification code accepted", "user_id", vc.OwnerID, "purpose", purpose, "code_id", vc.ID)
	return &VerifyResult{UserID: vc.OwnerID}, nil
}

// ResendCode issues and dispatches a fresh code for the user owning the email.
// An unknown email is masked as a generic success to prevent account
// enumeration: no code is created and no error is returned. Returns
// ErrAlreadyVerified when purpose is email verification and the user's email
// is already verified.
func (s *VerificationService) ResendCode(ctx context.Context, email string, purpose Purpose) (*ResendResult, error) {
	if !purpose.Valid() {
		return nil, ErrInvalidPurpose
	}

	result := &ResendResult{ExpiresAt: time.Now().UTC().Add(s.codeExpiry)}

	user, err := s.repo.GetUserByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, ErrUserNotFound) {
			// Masked: identical response shape as the known-email path
			slog.Info("Resend requested for unknown email", "purpose", purpose)
			return result, nil
		}
		slog.Error("Failed to look up user by email", "error", err)
		return nil, fmt.Errorf("failed to look up user: %w", err)
	}

	if purpose == PurposeEmailVerification && user.EmailVerified {
		slog.Info("Email already verified", "user_id", user.ID)
		return nil, ErrAlreadyVerified
	}

	_, err = s.IssueCode(ctx, user.ID, user.Email, purpose, "", "")
	if err != nil {
		return nil, err
	}

	return result, nil
}

// GetStatus returns the verification state of a user. Unlike the resend path
// this reports ErrUserNotFound distinctly; it is intended for authenticated
// and admin callers, not anonymous ones.
func (s *VerificationService) GetStatus(ctx context.Context, userID uuid.UUID) (*Status, error) {
	user, err := s.repo.GetUserByID(ctx, userID)
	if err != nil {
		if errors.Is(err, ErrUserNotFound) {
			return nil, ErrUserNotFound
		}
		slog.Error("Failed to get user", "user_id", userID, "error", err)
		return nil, fmt.Errorf("failed to get user: %w", err)
	}

	status := &Status{
		EmailVerified: user.EmailVerified,
	}

	latest, err := s.repo.GetLatestCode(ctx, userID, PurposeEmailVerification)
	if err != nil {
		if errors.Is(err, ErrCodeNotFound) {
			return status, nil
		}
		slog.Error("Failed to get latest code", "user_id", userID, "error", err)
		return nil, fmt.Errorf("failed to get latest code: %w", err)
	}

	sentAt := latest.CreatedAt
	status.LastCodeSentAt = &sentAt
	status.HasPendingVerification = !latest.Used &&
		latest.Attempts < s.maxAttempts &&
		time.Now().UTC().Before(latest.ExpiresAt)

	return status, nil
}

// CleanupExpiredCodes deletes code rows whose retention has lapsed. Retention
// is the issue window plus the code expiry, so the sweep never removes rows
// the sliding-window gate still counts. Correctness does not depend on this
// sweep running; it only bounds table growth.
func (s *VerificationService) CleanupExpiredCodes(ctx context.Context) error {
	cutoff := time.Now().UTC().Add(-(s.issueWindow + s.codeExpiry))
	deleted, err := s.repo.DeleteCodesCreatedBefore(ctx, cutoff)
	if err != nil {
		slog.Error("Failed to cleanup expired codes", "error", err)
		return fmt.Errorf("failed to cleanup expired codes: %w", err)
	}

	slog.Info("Expired verification codes cleaned up", "deleted", deleted)
	return nil
}

// sendCodeEmail dispatches the purpose-specific code email
func (s *VerificationService) sendCodeEmail(ctx context.Context, email, code string, purpose Purpose) error {
	if s.notificationManager == nil {
		slog.Warn("Notification manager not configured, skipping email send")
		return nil
	}

	noticeType := notification.EmailVerificationNotice
	switch purpose {
	case PurposePasswordReset:
		noticeType = notification.PasswordResetNotice
	case PurposeLoginVerification:
		noticeType = notification.LoginCodeNotice
	}

	err := s.notificationManager.Send(noticeType, notification.NotificationData{
		To: email,
		Data: map[string]string{
			"Passcode": code,
		},
	})
	if err != nil {
		return fmt.Errorf("failed to send verification code email: %w", err)
	}

	return nil
}
