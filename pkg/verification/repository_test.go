package verification

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"
)

func setupTestDatabase(t *testing.T) (*pgxpool.Pool, func()) {
	ctx := context.Background()

	// Create PostgreSQL container
	dbName := "verify_db"
	dbUser := "verify"
	dbPassword := "pwd"

	container, err := postgres.Run(ctx,
		"postgres:16-alpine",
		postgres.WithInitScripts(filepath.Join("../../migrations", "verify_db.sql")),
		postgres.WithDatabase(dbName),
		postgres.WithUsername(dbUser),
		postgres.WithPassword(dbPassword),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(5*time.Second)),
	)
	require.NoError(t, err)

	// Generate the connection string
	connString, err := container.ConnectionString(ctx)
	require.NoError(t, err)

	// Create connection pool
	poolConfig, err := pgxpool.ParseConfig(connString)
	require.NoError(t, err)

	pool, err := pgxpool.NewWithConfig(ctx, poolConfig)
	require.NoError(t, err)

	cleanup := func() {
		pool.Close()
		if err := container.Terminate(ctx); err != nil {
			t.Logf("failed to terminate container: %v", err)
		}
	}

	return pool, cleanup
}

func insertTestUser(t *testing.T, pool *pgxpool.Pool, email string) uuid.UUID {
	userID := uuid.New()
	_, err := pool.Exec(context.Background(),
		`INSERT INTO users (id, email, name) VALUES ($1, $2, $3)`,
		userID, email, "Test User")
	require.NoError(t, err)
	return userID
}

func TestRepository_CodeLifecycle(t *testing.T) {
	ctx := context.Background()

	pool, cleanup := setupTestDatabase(t)
	defer cleanup()

	repo := NewRepository(pool)
	ownerID := insertTestUser(t, pool, "test@example.com")
	expiresAt := time.Now().UTC().Add(15 * time.Minute)

	// Issue
	vc, err := repo.IssueCode(ctx, IssueCodeParams{
		OwnerID:   ownerID,
		Email:     "test@example.com",
		Code:      "123456",
		Purpose:   PurposeEmailVerification,
		ExpiresAt: expiresAt,
		IPAddress: "203.0.113.9",
		UserAgent: "test-agent",
	})
	require.NoError(t, err)
	assert.NotEqual(t, uuid.Nil, vc.ID)
	assert.Equal(t, ownerID, vc.OwnerID)
	assert.Equal(t, "123456", vc.Code)
	assert.False(t, vc.Used)
	assert.Equal(t, int32(0), vc.Attempts)
	require.NotNil(t, vc.IPAddress)
	assert.Equal(t, "203.0.113.9", *vc.IPAddress)

	// Find active
	codes, err := repo.FindActiveCodes(ctx, "test@example.com", PurposeEmailVerification)
	require.NoError(t, err)
	require.Len(t, codes, 1)
	assert.Equal(t, vc.ID, codes[0].ID)

	// Record attempts
	attempts, err := repo.RecordAttempt(ctx, vc.ID)
	require.NoError(t, err)
	assert.Equal(t, int32(1), attempts)
	attempts, err = repo.RecordAttempt(ctx, vc.ID)
	require.NoError(t, err)
	assert.Equal(t, int32(2), attempts)

	// Use the code
	err = repo.MarkCodeUsed(ctx, vc.ID)
	require.NoError(t, err)

	_, err = repo.FindActiveCodes(ctx, "test@example.com", PurposeEmailVerification)
	assert.ErrorIs(t, err, ErrCodeNotFound)

	// Marking again is a no-op
	err = repo.MarkCodeUsed(ctx, vc.ID)
	assert.NoError(t, err)
}

func TestRepository_EmptyMetadataStoredAsNull(t *testing.T) {
	ctx := context.Background()

	pool, cleanup := setupTestDatabase(t)
	defer cleanup()

	repo := NewRepository(pool)
	ownerID := insertTestUser(t, pool, "test@example.com")

	vc, err := repo.IssueCode(ctx, IssueCodeParams{
		OwnerID:   ownerID,
		Email:     "test@example.com",
		Code:      "123456",
		Purpose:   PurposeEmailVerification,
		ExpiresAt: time.Now().UTC().Add(15 * time.Minute),
	})
	require.NoError(t, err)
	assert.Nil(t, vc.IPAddress)
	assert.Nil(t, vc.UserAgent)
}

func TestRepository_InvalidateOutstanding(t *testing.T) {
	ctx := context.Background()

	pool, cleanup := setupTestDatabase(t)
	defer cleanup()

	repo := NewRepository(pool)
	ownerID := insertTestUser(t, pool, "test@example.com")
	otherID := insertTestUser(t, pool, "other@example.com")
	expiresAt := time.Now().UTC().Add(15 * time.Minute)

	issue := func(owner uuid.UUID, email, code string, purpose Purpose) {
		_, err := repo.IssueCode(ctx, IssueCodeParams{
			OwnerID:   owner,
			Email:     email,
			Code:      code,
			Purpose:   purpose,
			ExpiresAt: expiresAt,
		})
		require.NoError(t, err)
	}

	issue(ownerID, "test@example.com", "111111", PurposeEmailVerification)
	issue(ownerID, "test@example.com", "222222", PurposeEmailVerification)
	issue(ownerID, "test@example.com", "333333", PurposePasswordReset)
	issue(otherID, "other@example.com", "444444", PurposeEmailVerification)

	err := repo.InvalidateOutstanding(ctx, ownerID, "test@example.com", PurposeEmailVerification)
	require.NoError(t, err)

	_, err = repo.FindActiveCodes(ctx, "test@example.com", PurposeEmailVerification)
	assert.ErrorIs(t, err, ErrCodeNotFound)

	// Other purposes and owners untouched
	resetCodes, err := repo.FindActiveCodes(ctx, "test@example.com", PurposePasswordReset)
	require.NoError(t, err)
	assert.Len(t, resetCodes, 1)

	otherCodes, err := repo.FindActiveCodes(ctx, "other@example.com", PurposeEmailVerification)
	require.NoError(t, err)
	assert.Len(t, otherCodes, 1)

	// Invalidated codes still count against the issuance window
	count, err := repo.CountRecentCodes(ctx, "test@example.com", PurposeEmailVerification, time.Now().UTC().Add(-1*time.Hour))
	require.NoError(t, err)
	assert.Equal(t, int64(2), count)
}

func TestRepository_GetLatestCode(t *testing.T) {
	ctx := context.Background()

	pool, cleanup := setupTestDatabase(t)
	defer cleanup()

	repo := NewRepository(pool)
	ownerID := insertTestUser(t, pool, "test@example.com")
	expiresAt := time.Now().UTC().Add(15 * time.Minute)

	_, err := repo.GetLatestCode(ctx, ownerID, PurposeEmailVerification)
	assert.ErrorIs(t, err, ErrCodeNotFound)

	_, err = repo.IssueCode(ctx, IssueCodeParams{
		OwnerID: ownerID, Email: "test@example.com", Code: "111111",
		Purpose: PurposeEmailVerification, ExpiresAt: expiresAt,
	})
	require.NoError(t, err)
	time.Sleep(10 * time.Millisecond)
	second, err := repo.IssueCode(ctx, IssueCodeParams{
		OwnerID: ownerID, Email: "test@example.com", Code: "222222",
		Purpose: PurposeEmailVerification, ExpiresAt: expiresAt,
	})
	require.NoError(t, err)

	latest, err := repo.GetLatestCode(ctx, ownerID, PurposeEmailVerification)
	require.NoError(t, err)
	assert.Equal(t, second.ID, latest.ID)
}

func TestRepository_DeleteCodesCreatedBefore(t *testing.T) {
	ctx := context.Background()

	pool, cleanup := setupTestDatabase(t)
	defer cleanup()

	repo := NewRepository(pool)
	ownerID := insertTestUser(t, pool, "test@example.com")
	expiresAt := time.Now().UTC().Add(15 * time.Minute)

	_, err := repo.IssueCode(ctx, IssueCodeParams{
		OwnerID: ownerID, Email: "test@example.com", Code: "111111",
		Purpose: PurposeEmailVerification, ExpiresAt: expiresAt,
	})
	require.NoError(t, err)

	time.Sleep(20 * time.Millisecond)
	cutoff := time.Now().UTC()
	time.Sleep(20 * time.Millisecond)

	second, err := repo.IssueCode(ctx, IssueCodeParams{
		OwnerID: ownerID, Email: "test@example.com", Code: "222222",
		Purpose: PurposeEmailVerification, ExpiresAt: expiresAt,
	})
	require.NoError(t, err)

	deleted, err := repo.DeleteCodesCreatedBefore(ctx, cutoff)
	require.NoError(t, err)
	assert.Equal(t, int64(1), deleted)

	codes, err := repo.FindActiveCodes(ctx, "test@example.com", PurposeEmailVerification)
	require.NoError(t, err)
	require.Len(t, codes, 1)
	assert.Equal(t, second.ID, codes[0].ID)
}

func TestRepository_Users(t *testing.T) {
	ctx := context.Background()

	pool, cleanup := setupTestDatabase(t)
	defer cleanup()

	repo := NewRepository(pool)

	t.Run("NotFound", func(t *testing.T) {
		_, err := repo.GetUserByID(ctx, uuid.New())
		assert.ErrorIs(t, err, ErrUserNotFound)

		_, err = repo.GetUserByEmail(ctx, "nobody@example.com")
		assert.ErrorIs(t, err, ErrUserNotFound)
	})

	t.Run("GetAndVerify", func(t *testing.T) {
		userID := insertTestUser(t, pool, "user@example.com")

		user, err := repo.GetUserByID(ctx, userID)
		require.NoError(t, err)
		assert.Equal(t, "user@example.com", user.Email)
		assert.Equal(t, "Test User", user.Name)
		assert.False(t, user.EmailVerified)
		assert.Nil(t, user.EmailVerifiedAt)

		err = repo.MarkUserEmailVerified(ctx, userID)
		require.NoError(t, err)

		user, err = repo.GetUserByEmail(ctx, "user@example.com")
		require.NoError(t, err)
		assert.True(t, user.EmailVerified)
		assert.NotNil(t, user.EmailVerifiedAt)
	})

	t.Run("SoftDeletedUserNotFound", func(t *testing.T) {
		userID := insertTestUser(t, pool, "gone@example.com")

		_, err := pool.Exec(ctx,
			`UPDATE users SET deleted_at = NOW() AT TIME ZONE 'UTC' WHERE id = $1`, userID)
		require.NoError(t, err)

		_, err = repo.GetUserByID(ctx, userID)
		assert.ErrorIs(t, err, ErrUserNotFound)
	})
}
