package api

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/render"
	"github.com/google/uuid"

	"github.com/tendant/device-trust/pkg/device"
	"github.com/tendant/device-trust/pkg/errors"
	"github.com/tendant/device-trust/pkg/fingerprint"
	"github.com/tendant/device-trust/pkg/risk"
	sessionapi "github.com/tendant/device-trust/pkg/session/api"
)

// DeviceHandler handles HTTP requests for device management
type DeviceHandler struct {
	deviceService *device.DeviceService
	scorer        *risk.Scorer
}

// NewDeviceHandler creates a new device handler
func NewDeviceHandler(deviceService *device.DeviceService, scorer *risk.Scorer) *DeviceHandler {
	return &DeviceHandler{
		deviceService: deviceService,
		scorer:        scorer,
	}
}

// RegisterDeviceRequest represents the request body for registering a device
type RegisterDeviceRequest struct {
	UserID string                 `json:"user_id"`
	Device fingerprint.DeviceInfo `json:"device"`

	// FailedLoginCount is the number of failed login attempts for this
	// account over the last hour, supplied by the authentication flow
	FailedLoginCount int `json:"failed_login_count"`
}

// RegisterDeviceResponse represents the response body for registering a device
type RegisterDeviceResponse struct {
	Status    string          `json:"status"`
	Message   string          `json:"message"`
	Device    device.Device   `json:"device"`
	SessionID string          `json:"session_id"`
	Risk      risk.Assessment `json:"risk"`
}

// DeviceResponse represents a single-device response body
type DeviceResponse struct {
	Status  string        `json:"status"`
	Message string        `json:"message"`
	Device  device.Device `json:"device"`
}

// ListDevicesResponse represents the response body for listing devices
type ListDevicesResponse struct {
	Status  string          `json:"status"`
	Message string          `json:"message"`
	Devices []device.Device `json:"devices"`
}

// SuccessResponse represents a generic success response
type SuccessResponse struct {
	Status  string `json:"status"`
	Message string `json:"message"`
}

// ErrorResponse represents an error response
type ErrorResponse struct {
	Status  string `json:"status"`
	Message string `json:"message"`
	Error   string `json:"error,omitempty"`
}

// RegisterPublicRoutes mounts the registration route, which runs before a
// session exists
func (h *DeviceHandler) RegisterPublicRoutes(r chi.Router) {
	r.Post("/devices/register", h.RegisterDevice)
}

// RegisterRoutes mounts the device management routes. The routes assume
// the session validation middleware already ran.
func (h *DeviceHandler) RegisterRoutes(r chi.Router) {
	r.Get("/devices", h.ListDevices)
	r.Post("/devices/{device_id}/trust", h.TrustDevice)
	r.Post("/devices/{device_id}/untrust", h.UntrustDevice)
	r.Delete("/devices/{device_id}", h.RemoveDevice)
}

// RegisterDevice handles device registration at login. It fingerprints
// the submitted signals, registers or refreshes the device with a new
// session, then scores the login and returns the assessment.
func (h *DeviceHandler) RegisterDevice(w http.ResponseWriter, r *http.Request) {
	var req RegisterDeviceRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		renderErrorResponse(w, r, http.StatusBadRequest, "Invalid request body", err.Error())
		return
	}

	userID, err := uuid.Parse(req.UserID)
	if err != nil {
		renderErrorResponse(w, r, http.StatusBadRequest, "Invalid user ID", err.Error())
		return
	}

	info := req.Device
	info.UserAgent = r.UserAgent()
	if info.Timezone == "" {
		info.Timezone = r.Header.Get("Timezone")
	}
	fp := fingerprint.Generate(info)
	ip := clientIP(r)

	dev, sess, err := h.deviceService.RegisterDevice(r.Context(), device.RegisterDeviceParams{
		UserID:      userID,
		Fingerprint: fp,
		UserAgent:   info.UserAgent,
		IPAddress:   ip,
	})
	if err != nil {
		if errors.IsCode(err, errors.ErrCodeInvalidInput) {
			renderErrorResponse(w, r, http.StatusBadRequest, "Invalid request", err.Error())
			return
		}
		slog.Error("Failed to register device", "error", err)
		renderErrorResponse(w, r, http.StatusInternalServerError, "Failed to register device", "")
		return
	}

	assessment, err := h.scorer.Assess(r.Context(), risk.Input{
		UserID:           userID,
		Fingerprint:      fp,
		IPAddress:        ip,
		UserAgent:        info.UserAgent,
		Info:             info,
		FailedLoginCount: req.FailedLoginCount,
	})
	if err != nil {
		slog.Error("Failed to assess login risk", "error", err)
		renderErrorResponse(w, r, http.StatusInternalServerError, "Failed to assess login risk", "")
		return
	}
	dev.RiskScore = assessment.Score
	dev.IPReputation = string(assessment.Reputation)

	http.SetCookie(w, &http.Cookie{
		Name:     sessionapi.SessionTokenCookie,
		Value:    sess.ID,
		Path:     "/",
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
		Expires:  time.Now().UTC().Add(24 * time.Hour),
	})

	render.Status(r, http.StatusOK)
	render.JSON(w, r, RegisterDeviceResponse{
		Status:    "success",
		Message:   "Device registered successfully",
		Device:    dev,
		SessionID: sess.ID,
		Risk:      assessment,
	})
}

// ListDevices handles listing the caller's active devices
func (h *DeviceHandler) ListDevices(w http.ResponseWriter, r *http.Request) {
	sess, ok := sessionapi.SessionFromContext(r.Context())
	if !ok {
		renderErrorResponse(w, r, http.StatusUnauthorized, "Authentication required", "")
		return
	}

	devices, err := h.deviceService.ListActiveDevices(r.Context(), sess.UserID)
	if err != nil {
		slog.Error("Failed to get devices", "error", err)
		renderErrorResponse(w, r, http.StatusInternalServerError, "Failed to get devices", "")
		return
	}

	render.Status(r, http.StatusOK)
	render.JSON(w, r, ListDevicesResponse{
		Status:  "success",
		Message: "Devices retrieved successfully",
		Devices: devices,
	})
}

// TrustDevice handles marking a device as trusted
func (h *DeviceHandler) TrustDevice(w http.ResponseWriter, r *http.Request) {
	h.setTrust(w, r, h.deviceService.TrustDevice, "Device trusted successfully")
}

// UntrustDevice handles marking a device as untrusted
func (h *DeviceHandler) UntrustDevice(w http.ResponseWriter, r *http.Request) {
	h.setTrust(w, r, h.deviceService.UntrustDevice, "Device untrusted successfully")
}

func (h *DeviceHandler) setTrust(w http.ResponseWriter, r *http.Request,
	op func(ctx context.Context, userID, deviceID uuid.UUID) (device.Device, error), message string) {
	sess, ok := sessionapi.SessionFromContext(r.Context())
	if !ok {
		renderErrorResponse(w, r, http.StatusUnauthorized, "Authentication required", "")
		return
	}

	deviceID, ok := parseDeviceID(w, r)
	if !ok {
		return
	}

	dev, err := op(r.Context(), sess.UserID, deviceID)
	if err != nil {
		if errors.IsCode(err, errors.ErrCodeDeviceNotFound) {
			renderErrorResponse(w, r, http.StatusNotFound, "Device not found", "")
			return
		}
		slog.Error("Failed to update device trust", "error", err)
		renderErrorResponse(w, r, http.StatusInternalServerError, "Failed to update device trust", "")
		return
	}

	render.Status(r, http.StatusOK)
	render.JSON(w, r, DeviceResponse{
		Status:  "success",
		Message: message,
		Device:  dev,
	})
}

// RemoveDevice handles removing a device and its sessions
func (h *DeviceHandler) RemoveDevice(w http.ResponseWriter, r *http.Request) {
	sess, ok := sessionapi.SessionFromContext(r.Context())
	if !ok {
		renderErrorResponse(w, r, http.StatusUnauthorized, "Authentication required", "")
		return
	}

	deviceID, ok := parseDeviceID(w, r)
	if !ok {
		return
	}

	if err := h.deviceService.RemoveDevice(r.Context(), sess.UserID, deviceID); err != nil {
		if errors.IsCode(err, errors.ErrCodeDeviceNotFound) {
			renderErrorResponse(w, r, http.StatusNotFound, "Device not found", "")
			return
		}
		slog.Error("Failed to remove device", "error", err)
		renderErrorResponse(w, r, http.StatusInternalServerError, "Failed to remove device", "")
		return
	}

	render.Status(r, http.StatusOK)
	render.JSON(w, r, SuccessResponse{
		Status:  "success",
		Message: "Device removed successfully",
	})
}

func parseDeviceID(w http.ResponseWriter, r *http.Request) (uuid.UUID, bool) {
	raw := chi.URLParam(r, "device_id")
	if raw == "" {
		renderErrorResponse(w, r, http.StatusBadRequest, "Missing required parameter", "device_id is required")
		return uuid.Nil, false
	}
	deviceID, err := uuid.Parse(raw)
	if err != nil {
		renderErrorResponse(w, r, http.StatusBadRequest, "Invalid device ID", err.Error())
		return uuid.Nil, false
	}
	return deviceID, true
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
