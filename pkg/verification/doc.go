// Package verification manages the lifecycle of short numeric verification
// codes delivered by email.
//
// A code is a 6-digit passcode drawn from crypto/rand, bound to an
// (email, purpose) pair, and subject to three independent guards: a
// sliding-window issuance limit, a per-code attempt budget, and an expiry
// deadline. Issuing a new code invalidates every outstanding code for the same
// tuple, so at most one code verifies at any time.
//
// # Overview
//
// The verification package provides:
//   - Cryptographically random 6-digit passcode generation
//   - Code issuance behind a sliding-window rate gate
//   - Code verification with attempt counting and expiry
//   - Resend with account enumeration masking
//   - Verification status reporting
//   - Background cleanup of aged-out codes
//   - Repository pattern for PostgreSQL and file storage
//
// # Basic Usage
//
//	import "github.com/tendant/simple-verify/pkg/verification"
//
//	// Create service
//	repo := verification.NewRepository(pool)
//	service := verification.NewVerificationService(
//		repo,
//		notificationManager,
//		verification.WithCodeExpiry(15*time.Minute),
//		verification.WithMaxAttempts(5),
//	)
//
//	// Issue a code (also dispatches the email)
//	code, err := service.IssueCode(ctx, userID, email, verification.PurposeEmailVerification, ip, userAgent)
//
//	// Verify a submitted code
//	result, err := service.VerifyCode(ctx, email, submittedCode, verification.PurposeEmailVerification)
//
// # Verification Flow
//
//	// Step 1: Issue a code when the user registers or requests one
//	_, err := service.IssueCode(ctx, user.ID, user.Email, verification.PurposeEmailVerification, ip, ua)
//	if err != nil {
//		return err
//	}
//
//	// The code is sent by email; it is never returned over the API.
//
//	// Step 2: User submits the code they received
//	result, err := service.VerifyCode(ctx, email, code, verification.PurposeEmailVerification)
//	if err != nil {
//		// errors.Is against ErrInvalidCode, ErrCodeExpired, ErrTooManyAttempts
//		return err
//	}
//
//	// For the email verification purpose the user's verified flag is now set.
//
// # Guard Semantics
//
// Issuance: at most 3 codes (configurable) per (email, purpose) within a
// trailing 1-hour window. The window counts every issuance event, including
// codes that were later invalidated, so re-requesting never resets it.
//
// Attempts: every verify submission that reaches an active code charges one
// attempt, before the expiry or code comparison runs. Once the budget (default
// 5) is absorbed the code reports ErrTooManyAttempts even for the correct
// value.
//
// Expiry: a code is valid strictly before its expires_at instant; a
// submission at exactly that instant is expired.
//
// # Resending Codes
//
//	// The resend path is anonymous, so an unknown email is answered with the
//	// same response shape as a known one and nothing is sent.
//	result, err := service.ResendCode(ctx, email, verification.PurposeEmailVerification)
//	if errors.Is(err, verification.ErrAlreadyVerified) {
//		// nothing to verify anymore
//	}
//
// # Checking Verification Status
//
//	status, err := service.GetStatus(ctx, userID)
//	if err != nil {
//		return err
//	}
//	if !status.EmailVerified && !status.HasPendingVerification {
//		// prompt the user to request a code
//	}
//
// # Code Cleanup
//
//	// Periodically remove rows no guard can still need
//	err := service.CleanupExpiredCodes(ctx)
//
//	go func() {
//		ticker := time.NewTicker(1 * time.Hour)
//		for range ticker.C {
//			service.CleanupExpiredCodes(context.Background())
//		}
//	}()
//
// # Repository Pattern
//
//	// PostgreSQL repository
//	postgresRepo := verification.NewRepository(pool)
//
//	// File-based repository (for local development and tests)
//	fileRepo, err := verification.NewFileVerificationRepository("./data")
//
//	// Or select by configuration
//	repo, err := verification.NewVerificationRepository("postgres", verification.RepositoryConfig{Pool: pool})
//
// # Related Packages
//
//   - pkg/verification/api - HTTP handlers
//   - pkg/notification - Email delivery
//   - pkg/ratelimit - HTTP-level throttling in front of the service
package verification
