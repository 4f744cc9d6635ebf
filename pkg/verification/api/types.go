package api

import "time"

// IssueCodeRequest represents the request to issue a verification code
type IssueCodeRequest struct {
	Email   string `json:"email"`
	Purpose string `json:"purpose"`
}

// IssueCodeResponse represents the response after issuing a code.
// The code itself is only ever delivered by email.
type IssueCodeResponse struct {
	Message string `json:"message"`
}

// VerifyCodeRequest represents the request to verify a submitted code
type VerifyCodeRequest struct {
	Email   string `json:"email"`
	Code    string `json:"code"`
	Purpose string `json:"purpose"`
}

// VerifyCodeResponse represents the response after successful verification
type VerifyCodeResponse struct {
	Message    string `json:"message"`
	VerifiedAt string `json:"verified_at"`
}

// ResendCodeRequest represents the request to resend a verification code
type ResendCodeRequest struct {
	Email   string `json:"email"`
	Purpose string `json:"purpose"`
}

// ResendCodeResponse represents the response after a resend request. The
// response is identical whether or not the email belongs to a known user.
type ResendCodeResponse struct {
	Message   string `json:"message"`
	ExpiresAt string `json:"expires_at"`
}

// StatusResponse represents the verification status of the calling user
type StatusResponse struct {
	EmailVerified          bool       `json:"email_verified"`
	HasPendingVerification bool       `json:"has_pending_verification"`
	LastCodeSentAt         *time.Time `json:"last_code_sent_at,omitempty"`
}

// ErrorResponse represents an error response
type ErrorResponse struct {
	Error string `json:"error"`
}
