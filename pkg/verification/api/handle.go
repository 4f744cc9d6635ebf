package api

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/jwtauth/v5"
	"github.com/go-chi/render"
	"github.com/google/uuid"
	"github.com/jinzhu/copier"
	"github.com/tendant/simple-verify/pkg/verification"
)

// Handler exposes the verification code lifecycle over HTTP
type Handler struct {
	service *verification.VerificationService
}

// NewHandler creates a new verification API handler
func NewHandler(service *verification.VerificationService) *Handler {
	return &Handler{
		service: service,
	}
}

// Routes mounts the public (anonymous) verification endpoints
func (h *Handler) Routes(r chi.Router) {
	r.Post("/verify", h.VerifyCode)
	r.Post("/resend", h.ResendCode)
}

// AuthRoutes mounts the endpoints that require an authenticated user
func (h *Handler) AuthRoutes(r chi.Router) {
	r.Post("/issue", h.IssueCode)
	r.Get("/status", h.GetStatus)
}

// IssueCode handles POST /issue
func (h *Handler) IssueCode(w http.ResponseWriter, r *http.Request) {
	userID, err := getUserIDFromContext(r)
	if err != nil {
		slog.Error("Failed to get user ID from context", "error", err)
		render.Status(r, http.StatusUnauthorized)
		render.JSON(w, r, ErrorResponse{Error: "Unauthorized"})
		return
	}

	var req IssueCodeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		slog.Error("Failed to decode request body", "error", err)
		render.Status(r, http.StatusBadRequest)
		render.JSON(w, r, ErrorResponse{Error: "Invalid request body"})
		return
	}

	if req.Email == "" {
		render.Status(r, http.StatusBadRequest)
		render.JSON(w, r, ErrorResponse{Error: "Email is required"})
		return
	}

	purpose, err := verification.ParsePurpose(req.Purpose)
	if err != nil {
		render.Status(r, http.StatusBadRequest)
		render.JSON(w, r, ErrorResponse{Error: "Invalid purpose"})
		return
	}

	_, err = h.service.IssueCode(r.Context(), userID, req.Email, purpose, clientIP(r), r.UserAgent())
	if err != nil {
		status := http.StatusBadRequest
		message := "Failed to issue verification code"

		switch {
		case errors.Is(err, verification.ErrRateLimitExceeded):
			status = http.StatusTooManyRequests
			message = "Too many codes requested. Please try again later"
		case errors.Is(err, verification.ErrInvalidPurpose):
			status = http.StatusBadRequest
			message = "Invalid purpose"
		default:
			slog.Error("Failed to issue verification code", "error", err)
			status = http.StatusInternalServerError
			message = "An error occurred while issuing the verification code"
		}

		render.Status(r, status)
		render.JSON(w, r, ErrorResponse{Error: message})
		return
	}

	render.Status(r, http.StatusOK)
	render.JSON(w, r, IssueCodeResponse{
		Message: "Verification code sent",
	})
}

// VerifyCode handles POST /verify
func (h *Handler) VerifyCode(w http.ResponseWriter, r *http.Request) {
	var req VerifyCodeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		slog.Error("Failed to decode request body", "error", err)
		render.Status(r, http.StatusBadRequest)
		render.JSON(w, r, ErrorResponse{Error: "Invalid request body"})
		return
	}

	if req.Email == "" || req.Code == "" {
		render.Status(r, http.StatusBadRequest)
		render.JSON(w, r, ErrorResponse{Error: "Email and code are required"})
		return
	}

	purpose, err := verification.ParsePurpose(req.Purpose)
	if err != nil {
		render.Status(r, http.StatusBadRequest)
		render.JSON(w, r, ErrorResponse{Error: "Invalid purpose"})
		return
	}

	_, err = h.service.VerifyCode(r.Context(), req.Email, req.Code, purpose)
	if err != nil {
		status := http.StatusBadRequest
		message := "Failed to verify code"

		switch {
		case errors.Is(err, verification.ErrInvalidCode):
			status = http.StatusBadRequest
			message = "Invalid verification code"
		case errors.Is(err, verification.ErrCodeExpired):
			status = http.StatusBadRequest
			message = "Verification code has expired"
		case errors.Is(err, verification.ErrTooManyAttempts):
			status = http.StatusBadRequest
			message = "Too many failed attempts. Please request a new code"
		default:
			slog.Error("Failed to verify code", "error", err)
			status = http.StatusInternalServerError
			message = "An error occurred while verifying the code"
		}

		render.Status(r, status)
		render.JSON(w, r, ErrorResponse{Error: message})
		return
	}

	render.Status(r, http.StatusOK)
	render.JSON(w, r, VerifyCodeResponse{
		Message:    "Code verified successfully",
		VerifiedAt: time.Now().UTC().Format(time.RFC3339),
	})
}

// ResendCode handles POST /resend
func (h *Handler) ResendCode(w http.ResponseWriter, r *http.Request) {
	var req ResendCodeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		slog.Error("Failed to decode request body", "error", err)
		render.Status(r, http.StatusBadRequest)
		render.JSON(w, r, ErrorResponse{Error: "Invalid request body"})
		return
	}

	if req.Email == "" {
		render.Status(r, http.StatusBadRequest)
		render.JSON(w, r, ErrorResponse{Error: "Email is required"})
		return
	}

	purpose, err := verification.ParsePurpose(req.Purpose)
	if err != nil {
		render.Status(r, http.StatusBadRequest)
		render.JSON(w, r, ErrorResponse{Error: "Invalid purpose"})
		return
	}

	result, err := h.service.ResendCode(r.Context(), req.Email, purpose)
	if err != nil {
		status := http.StatusBadRequest
		message := "Failed to resend verification code"

		switch {
		case errors.Is(err, verification.ErrAlreadyVerified):
			status = http.StatusBadRequest
			message = "Email is already verified"
		case errors.Is(err, verification.ErrRateLimitExceeded):
			status = http.StatusTooManyRequests
			message = "Too many codes requested. Please try again later"
		default:
			slog.Error("Failed to resend verification code", "error", err)
			status = http.StatusInternalServerError
			message = "An error occurred while resending the verification code"
		}

		render.Status(r, status)
		render.JSON(w, r, ErrorResponse{Error: message})
		return
	}

	render.Status(r, http.StatusOK)
	render.JSON(w, r, ResendCodeResponse{
		Message:   "If the email is registered, a verification code has been sent",
		ExpiresAt: result.ExpiresAt.Format(time.RFC3339),
	})
}

// GetStatus handles GET /status
func (h *Handler) GetStatus(w http.ResponseWriter, r *http.Request) {
	userID, err := getUserIDFromContext(r)
	if err != nil {
		slog.Error("Failed to get user ID from context", "error", err)
		render.Status(r, http.StatusUnauthorized)
		render.JSON(w, r, ErrorResponse{Error: "Unauthorized"})
		return
	}

	status, err := h.service.GetStatus(r.Context(), userID)
	if err != nil {
		if errors.Is(err, verification.ErrUserNotFound) {
			render.Status(r, http.StatusNotFound)
			render.JSON(w, r, ErrorResponse{Error: "User not found"})
			return
		}
		slog.Error("Failed to get verification status", "error", err)
		render.Status(r, http.StatusInternalServerError)
		render.JSON(w, r, ErrorResponse{Error: "An error occurred while retrieving verification status"})
		return
	}

	var response StatusResponse
	if err := copier.Copy(&response, status); err != nil {
		slog.Error("Failed to map verification status", "error", err)
		render.Status(r, http.StatusInternalServerError)
		render.JSON(w, r, ErrorResponse{Error: "An error occurred while retrieving verification status"})
		return
	}

	render.Status(r, http.StatusOK)
	render.JSON(w, r, response)
}

// getUserIDFromContext extracts the user ID from the JWT claims in the request context
func getUserIDFromContext(r *http.Request) (uuid.UUID, error) {
	_, claims, err := jwtauth.FromContext(r.Context())
	if err != nil {
		return uuid.Nil, err
	}

	userIDStr, ok := claims["user_id"].(string)
	if !ok || userIDStr == "" {
		// Fall back to the standard subject claim
		userIDStr, ok = claims["sub"].(string)
		if !ok || userIDStr == "" {
			return uuid.Nil, errors.New("user_id not found in JWT claims")
		}
	}

	userID, err := uuid.Parse(userIDStr)
	if err != nil {
		return uuid.Nil, errors.New("invalid user_id in JWT claims")
	}

	return userID, nil
}

// clientIP extracts the client IP address from the request
func clientIP(r *http.Request) string {
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		return strings.TrimSpace(strings.Split(xff, ",")[0])
	}
	if xri := r.Header.Get("X-Real-IP"); xri != "" {
		return strings.TrimSpace(xri)
	}
	addr := r.RemoteAddr
	if idx := strings.LastIndex(addr, ":"); idx != -1 {
		return addr[:idx]
	}
	return addr
}
