package verification

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tendant/simple-verify/pkg/notification"
)

// setupService wires the service to a file repository and a mock notifier
func setupService(t *testing.T, opts ...VerificationServiceOption) (*VerificationService, *FileVerificationRepository, *notification.MockNotifier) {
	repo, _ := setupTestRepo(t)

	mock := &notification.MockNotifier{}
	manager, err := notification.NewNotificationManager(notification.WithDefaultTemplates())
	require.NoError(t, err)
	manager.RegisterNotifier(notification.EmailSystem, mock)

	service := NewVerificationService(repo, manager, opts...)
	return service, repo, mock
}

func seedUser(t *testing.T, repo *FileVerificationRepository, email string, verified bool) uuid.UUID {
	userID := uuid.New()
	user := &UserAccount{
		ID:            userID,
		Email:         email,
		Name:          "Test User",
		EmailVerified: verified,
	}
	if verified {
		now := time.Now().UTC()
		user.EmailVerifiedAt = &now
	}
	err := repo.SaveUser(context.Background(), user)
	require.NoError(t, err)
	return userID
}

func TestVerificationService_IssueCode(t *testing.T) {
	service, repo, mock := setupService(t)
	ctx := context.Background()

	userID := seedUser(t, repo, "test@example.com", false)

	t.Run("Success", func(t *testing.T) {
		code, err := service.IssueCode(ctx, userID, "test@example.com", PurposeEmailVerification, "203.0.113.9", "test-agent")
		require.NoError(t, err)
		assert.Len(t, code, PasscodeLength)

		// Email dispatched with the code
		require.Len(t, mock.SentNotifications, 1)
		assert.Equal(t, "test@example.com", mock.SentNotifications[0].To)
		assert.Equal(t, code, mock.SentNotifications[0].Data["Passcode"])
		assert.Equal(t, notification.EmailVerificationNotice, mock.SentTypes[0])
	})

	t.Run("InvalidPurpose", func(t *testing.T) {
		_, err := service.IssueCode(ctx, userID, "test@example.com", Purpose("bogus"), "", "")
		assert.ErrorIs(t, err, ErrInvalidPurpose)
	})

	t.Run("PurposeSelectsNotice", func(t *testing.T) {
		_, err := service.IssueCode(ctx, userID, "test@example.com", PurposePasswordReset, "", "")
		require.NoError(t, err)
		assert.Equal(t, notification.PasswordResetNotice, mock.SentTypes[len(mock.SentTypes)-1])
	})
}

func TestVerificationService_IssueCode_SupersedesPrevious(t *testing.T) {
	service, repo, _ := setupService(t)
	ctx := context.Background()

	userID := seedUser(t, repo, "test@example.com", false)

	first, err := service.IssueCode(ctx, userID, "test@example.com", PurposeEmailVerification, "", "")
	require.NoError(t, err)
	second, err := service.IssueCode(ctx, userID, "test@example.com", PurposeEmailVerification, "", "")
	require.NoError(t, err)

	// The superseded code no longer verifies
	_, err = service.VerifyCode(ctx, "test@example.com", first, PurposeEmailVerification)
	if first != second {
		assert.ErrorIs(t, err, ErrInvalidCode)
	}

	// The latest one does
	result, err := service.VerifyCode(ctx, "test@example.com", second, PurposeEmailVerification)
	require.NoError(t, err)
	assert.Equal(t, userID, result.UserID)
}

func TestVerificationService_VerifyCode(t *testing.T) {
	service, repo, _ := setupService(t)
	ctx := context.Background()

	userID := seedUser(t, repo, "test@example.com", false)

	t.Run("NoActiveCode", func(t *testing.T) {
		_, err := service.VerifyCode(ctx, "test@example.com", "123456", PurposeEmailVerification)
		assert.ErrorIs(t, err, ErrInvalidCode)
	})

	t.Run("Success", func(t *testing.T) {
		code, err := service.IssueCode(ctx, userID, "test@example.com", PurposeEmailVerification, "", "")
		require.NoError(t, err)

		result, err := service.VerifyCode(ctx, "test@example.com", code, PurposeEmailVerification)
		require.NoError(t, err)
		assert.Equal(t, userID, result.UserID)

		// Email verification flips the user flag
		user, err := repo.GetUserByID(ctx, userID)
		require.NoError(t, err)
		assert.True(t, user.EmailVerified)
		assert.NotNil(t, user.EmailVerifiedAt)

		// The used latch is one-way: the same code never verifies twice
		_, err = service.VerifyCode(ctx, "test@example.com", code, PurposeEmailVerification)
		assert.ErrorIs(t, err, ErrInvalidCode)
	})

	t.Run("NonVerificationPurposeLeavesUserAlone", func(t *testing.T) {
		otherID := seedUser(t, repo, "other@example.com", false)
		code, err := service.IssueCode(ctx, otherID, "other@example.com", PurposeLoginVerification, "", "")
		require.NoError(t, err)

		_, err = service.VerifyCode(ctx, "other@example.com", code, PurposeLoginVerification)
		require.NoError(t, err)

		user, err := repo.GetUserByID(ctx, otherID)
		require.NoError(t, err)
		assert.False(t, user.EmailVerified)
	})
}

func TestVerificationService_VerifyCode_Expired(t *testing.T) {
	service, repo, _ := setupService(t, WithCodeExpiry(-time.Millisecond))
	ctx := context.Background()

	userID := seedUser(t, repo, "test@example.com", false)

	code, err := service.IssueCode(ctx, userID, "test@example.com", PurposeEmailVerification, "", "")
	require.NoError(t, err)

	_, err = service.VerifyCode(ctx, "test@example.com", code, PurposeEmailVerification)
	assert.ErrorIs(t, err, ErrCodeExpired)

	// The expired submission still burned an attempt
	codes, err := repo.FindActiveCodes(ctx, "test@example.com", PurposeEmailVerification)
	require.NoError(t, err)
	assert.Equal(t, int32(1), codes[0].Attempts)
}

func TestVerificationService_VerifyCode_AttemptCap(t *testing.T) {
	service, repo, _ := setupService(t)
	ctx := context.Background()

	userID := seedUser(t, repo, "test@example.com", false)

	code, err := service.IssueCode(ctx, userID, "test@example.com", PurposeEmailVerification, "", "")
	require.NoError(t, err)

	wrong := "000000"
	if wrong == code {
		wrong = "000001"
	}

	// Wrong guesses 1-4 report a plain mismatch
	for i := 0; i < 4; i++ {
		_, err := service.VerifyCode(ctx, "test@example.com", wrong, PurposeEmailVerification)
		assert.ErrorIs(t, err, ErrInvalidCode)
	}

	// The 5th guess exhausts the budget
	_, err = service.VerifyCode(ctx, "test@example.com", wrong, PurposeEmailVerification)
	assert.ErrorIs(t, err, ErrTooManyAttempts)

	// Even the correct code is dead now
	_, err = service.VerifyCode(ctx, "test@example.com", code, PurposeEmailVerification)
	assert.ErrorIs(t, err, ErrTooManyAttempts)
}

func TestVerificationService_IssueCode_RateLimit(t *testing.T) {
	service, repo, _ := setupService(t)
	ctx := context.Background()

	userID := seedUser(t, repo, "test@example.com", false)

	for i := 0; i < 3; i++ {
		_, err := service.IssueCode(ctx, userID, "test@example.com", PurposeEmailVerification, "", "")
		require.NoError(t, err)
	}

	_, err := service.IssueCode(ctx, userID, "test@example.com", PurposeEmailVerification, "", "")
	assert.ErrorIs(t, err, ErrRateLimitExceeded)

	// The gate is per purpose
	_, err = service.IssueCode(ctx, userID, "test@example.com", PurposePasswordReset, "", "")
	assert.NoError(t, err)
}

func TestVerificationService_ResendCode(t *testing.T) {
	service, repo, mock := setupService(t)
	ctx := context.Background()

	t.Run("UnknownEmailMasked", func(t *testing.T) {
		before := time.Now().UTC()
		result, err := service.ResendCode(ctx, "nobody@example.com", PurposeEmailVerification)
		require.NoError(t, err)
		require.NotNil(t, result)

		// Response looks like the known-email path
		assert.True(t, result.ExpiresAt.After(before))

		// But nothing was created or sent
		assert.Empty(t, mock.SentNotifications)
		_, err = repo.FindActiveCodes(ctx, "nobody@example.com", PurposeEmailVerification)
		assert.ErrorIs(t, err, ErrCodeNotFound)
	})

	t.Run("KnownUser", func(t *testing.T) {
		seedUser(t, repo, "known@example.com", false)

		result, err := service.ResendCode(ctx, "known@example.com", PurposeEmailVerification)
		require.NoError(t, err)
		assert.NotNil(t, result)

		require.Len(t, mock.SentNotifications, 1)
		assert.Equal(t, "known@example.com", mock.SentNotifications[0].To)
	})

	t.Run("AlreadyVerified", func(t *testing.T) {
		seedUser(t, repo, "done@example.com", true)

		_, err := service.ResendCode(ctx, "done@example.com", PurposeEmailVerification)
		assert.ErrorIs(t, err, ErrAlreadyVerified)
	})

	t.Run("VerifiedUserCanStillResetPassword", func(t *testing.T) {
		seedUser(t, repo, "reset@example.com", true)

		_, err := service.ResendCode(ctx, "reset@example.com", PurposePasswordReset)
		assert.NoError(t, err)
	})
}

func TestVerificationService_GetStatus(t *testing.T) {
	service, repo, _ := setupService(t)
	ctx := context.Background()

	t.Run("UserNotFound", func(t *testing.T) {
		_, err := service.GetStatus(ctx, uuid.New())
		assert.ErrorIs(t, err, ErrUserNotFound)
	})

	t.Run("NoCodesIssued", func(t *testing.T) {
		userID := seedUser(t, repo, "fresh@example.com", false)

		status, err := service.GetStatus(ctx, userID)
		require.NoError(t, err)
		assert.False(t, status.EmailVerified)
		assert.False(t, status.HasPendingVerification)
		assert.Nil(t, status.LastCodeSentAt)
	})

	t.Run("PendingAfterIssue", func(t *testing.T) {
		userID := seedUser(t, repo, "pending@example.com", false)

		_, err := service.IssueCode(ctx, userID, "pending@example.com", PurposeEmailVerification, "", "")
		require.NoError(t, err)

		status, err := service.GetStatus(ctx, userID)
		require.NoError(t, err)
		assert.False(t, status.EmailVerified)
		assert.True(t, status.HasPendingVerification)
		assert.NotNil(t, status.LastCodeSentAt)
	})

	t.Run("VerifiedClearsPending", func(t *testing.T) {
		userID := seedUser(t, repo, "verified@example.com", false)

		code, err := service.IssueCode(ctx, userID, "verified@example.com", PurposeEmailVerification, "", "")
		require.NoError(t, err)
		_, err = service.VerifyCode(ctx, "verified@example.com", code, PurposeEmailVerification)
		require.NoError(t, err)

		status, err := service.GetStatus(ctx, userID)
		require.NoError(t, err)
		assert.True(t, status.EmailVerified)
		assert.False(t, status.HasPendingVerification)
	})
}

func TestVerificationService_CleanupExpiredCodes(t *testing.T) {
	service, repo, _ := setupService(t, WithCodeExpiry(time.Millisecond), WithIssueWindow(time.Millisecond))
	ctx := context.Background()

	userID := seedUser(t, repo, "test@example.com", false)

	_, err := service.IssueCode(ctx, userID, "test@example.com", PurposeEmailVerification, "", "")
	require.NoError(t, err)

	// Retention is issue window + code expiry past creation
	time.Sleep(20 * time.Millisecond)

	err = service.CleanupExpiredCodes(ctx)
	require.NoError(t, err)

	_, err = repo.FindActiveCodes(ctx, "test@example.com", PurposeEmailVerification)
	assert.ErrorIs(t, err, ErrCodeNotFound)
}

func TestVerificationService_NilNotificationManager(t *testing.T) {
	repo, _ := setupTestRepo(t)
	service := NewVerificationService(repo, nil)
	ctx := context.Background()

	userID := seedUser(t, repo, "test@example.com", false)

	// Issuance succeeds; delivery is skipped
	code, err := service.IssueCode(ctx, userID, "test@example.com", PurposeEmailVerification, "", "")
	require.NoError(t, err)
	assert.Len(t, code, PasscodeLength)
}
