package verification

import "errors"

var (
	// ErrCodeNotFound is returned by repositories when no active code matches
	ErrCodeNotFound = errors.New("verification code not found")

	// ErrInvalidCode is returned when the submitted code does not match an active code
	ErrInvalidCode = errors.New("invalid verification code")

	// ErrCodeExpired is returned when the matched code is past its expiry
	ErrCodeExpired = errors.New("verification code has expired")

	// ErrTooManyAttempts is returned when the attempt cap for a code is exhausted
	ErrTooManyAttempts = errors.New("too many verification attempts, request a new code")

	// ErrRateLimitExceeded is returned when the issuance limit for an email and purpose is exceeded
	ErrRateLimitExceeded = errors.New("too many verification codes requested, please try again later")

	// ErrAlreadyVerified is returned when resending a verification code to an already verified email
	ErrAlreadyVerified = errors.New("email already verified")

	// ErrUserNotFound is returned when a user record is not found
	ErrUserNotFound = errors.New("user not found")

	// ErrInvalidPurpose is returned when the purpose value is not one of the known purposes
	ErrInvalidPurpose = errors.New("invalid verification purpose")
)
