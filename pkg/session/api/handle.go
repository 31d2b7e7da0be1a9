package api

import (
	"context"
	"log/slog"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/render"

	"github.com/tendant/device-trust/pkg/errors"
	"github.com/tendant/device-trust/pkg/session"
)

// SessionTokenCookie is the cookie carrying the session token
const SessionTokenCookie = "session_token"

type contextKey string

const sessionContextKey contextKey = "session"

// SessionHandler handles HTTP requests for session management
type SessionHandler struct {
	validator      *session.Validator
	sessionService *session.Service
}

// NewSessionHandler creates a new session handler
func NewSessionHandler(validator *session.Validator, sessionService *session.Service) *SessionHandler {
	return &SessionHandler{
		validator:      validator,
		sessionService: sessionService,
	}
}

// SessionFromContext returns the validated session stored by Middleware
func SessionFromContext(ctx context.Context) (*session.Context, bool) {
	sess, ok := ctx.Value(sessionContextKey).(*session.Context)
	return sess, ok
}

// TokenFromRequest extracts the session token from the cookie or the
// Authorization header
func TokenFromRequest(r *http.Request) string {
	if cookie, err := r.Cookie(SessionTokenCookie); err == nil && cookie.Value != "" {
		return cookie.Value
	}
	auth := r.Header.Get("Authorization")
	if strings.HasPrefix(auth, "Bearer ") {
		return strings.TrimPrefix(auth, "Bearer ")
	}
	return ""
}

// Middleware validates the request's session and stores the session
// context for downstream handlers. Validation failures are rendered with
// the status mapped from the error code, 401 for authentication problems
// and 403 for restricted access.
func (h *SessionHandler) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		sess, err := h.validator.Validate(r.Context(), session.ValidateParams{
			SessionID: TokenFromRequest(r),
			IPAddress: clientIP(r),
			UserAgent: r.UserAgent(),
		})
		if err != nil {
			status := errors.MapErrorCodeToHTTPStatus(errors.GetCode(err))
			if status == http.StatusInternalServerError {
				slog.Error("session validation failed", "error", err)
				renderErrorResponse(w, r, status, "Session validation failed", "")
				return
			}
			renderErrorResponse(w, r, status, "Request rejected", err.Error())
			return
		}

		ctx := context.WithValue(r.Context(), sessionContextKey, sess)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// ListSessionsResponse represents the response body for listing sessions
type ListSessionsResponse struct {
	Status   string                   `json:"status"`
	Message  string                   `json:"message"`
	Sessions []session.SessionSummary `json:"sessions"`
}

// SuccessResponse represents a generic success response
type SuccessResponse struct {
	Status  string `json:"status"`
	Message string `json:"message"`
}

// RevokeAllResponse reports how many sessions were revoked
type RevokeAllResponse struct {
	Status  string `json:"status"`
	Message string `json:"message"`
	Revoked int64  `json:"revoked"`
}

// ErrorResponse represents an error response
type ErrorResponse struct {
	Status  string `json:"status"`
	Message string `json:"message"`
	Error   string `json:"error,omitempty"`
}

// RegisterRoutes mounts the session management routes. The routes assume
// the validation middleware already ran.
func (h *SessionHandler) RegisterRoutes(r chi.Router) {
	r.Get("/sessions", h.ListSessions)
	r.Delete("/sessions/{session_id}", h.RevokeSession)
	r.Post("/sessions/revoke-all", h.RevokeAllSessions)
}

// ListSessions handles listing the caller's active sessions
func (h *SessionHandler) ListSessions(w http.ResponseWriter, r *http.Request) {
	sess, ok := SessionFromContext(r.Context())
	if !ok {
		renderErrorResponse(w, r, http.StatusUnauthorized, "Authentication required", "")
		return
	}

	sessions, err := h.sessionService.ListSessions(r.Context(), sess.UserID, sess.SessionID)
	if err != nil {
		slog.Error("Failed to list sessions", "error", err)
		renderErrorResponse(w, r, http.StatusInternalServerError, "Failed to list sessions", "")
		return
	}

	render.Status(r, http.StatusOK)
	render.JSON(w, r, ListSessionsResponse{
		Status:   "success",
		Message:  "Sessions retrieved successfully",
		Sessions: sessions,
	})
}

// RevokeSession handles revoking one of the caller's sessions
func (h *SessionHandler) RevokeSession(w http.ResponseWriter, r *http.Request) {
	sess, ok := SessionFromContext(r.Context())
	if !ok {
		renderErrorResponse(w, r, http.StatusUnauthorized, "Authentication required", "")
		return
	}

	sessionID := chi.URLParam(r, "session_id")
	if sessionID == "" {
		renderErrorResponse(w, r, http.StatusBadRequest, "Missing required parameter", "session_id is required")
		return
	}

	if err := h.sessionService.RevokeSession(r.Context(), sess.UserID, sessionID); err != nil {
		if errors.IsCode(err, errors.ErrCodeSessionNotFound) {
			renderErrorResponse(w, r, http.StatusNotFound, "Session not found", "")
			return
		}
		slog.Error("Failed to revoke session", "error", err)
		renderErrorResponse(w, r, http.StatusInternalServerError, "Failed to revoke session", "")
		return
	}

	render.Status(r, http.StatusOK)
	render.JSON(w, r, SuccessResponse{
		Status:  "success",
		Message: "Session revoked successfully",
	})
}

// RevokeAllSessions handles revoking all of the caller's sessions except
// the current one
func (h *SessionHandler) RevokeAllSessions(w http.ResponseWriter, r *http.Request) {
	sess, ok := SessionFromContext(r.Context())
	if !ok {
		renderErrorResponse(w, r, http.StatusUnauthorized, "Authentication required", "")
		return
	}

	revoked, err := h.sessionService.RevokeAllSessions(r.Context(), sess.UserID, sess.SessionID)
	if err != nil {
		slog.Error("Failed to revoke sessions", "error", err)
		renderErrorResponse(w, r, http.StatusInternalServerError, "Failed to revoke sessions", "")
		return
	}

	render.Status(r, http.StatusOK)
	render.JSON(w, r, RevokeAllResponse{
		Status:  "success",
		Message: "Other sessions revoked successfully",
		Revoked: revoked,
	})
}

// clientIP returns the originating client address, preferring the
// X-Forwarded-For header set by the fronting proxy
func clientIP(r *http.Request) string {
	if fwd := r.Header.Get("X-Forwarded-For"); fwd != "" {
		parts := strings.Split(fwd, ",")
		return strings.TrimSpace(parts[0])
	}
	host := r.RemoteAddr
	if idx := strings.LastIndex(host, ":"); idx > 0 {
		host = host[:idx]
	}
	return strings.Trim(host, "[]")
}

// renderErrorResponse renders an error response with the given status code and message
func renderErrorResponse(w http.ResponseWriter, r *http.Request, statusCode int, message, errorDetail string) {
	response := ErrorResponse{
		Status:  "error",
		Message: message,
		Error:   errorDetail,
	}
	render.Status(r, statusCode)
	render.JSON(w, r, response)
}
