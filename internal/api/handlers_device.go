package api

import (
	"net/http"
	"time"

	"activation-server/internal/entitlement"

	"github.com/gin-gonic/gin"
)

type registerDeviceRequest struct {
	Code string `json:"code" binding:"required"`
	Pin  string `json:"pin" binding:"required"`
}

type authenticateDeviceRequest struct {
	Code string `json:"code" binding:"required"`
	Pin  string `json:"pin" binding:"required"`
}

// deviceStatusResponse is the view a device client sees. It omits
// internal fields like the reseller attribution.
type deviceStatusResponse struct {
	Code           string             `json:"code"`
	Status         entitlement.Status `json:"status"`
	TrialExpiresAt *time.Time         `json:"trial_expires_at,omitempty"`
	ActivatedUntil *time.Time         `json:"activated_until,omitempty"`
	Lifetime       bool               `json:"lifetime"`
}

func deviceStatusView(d *entitlement.Device) deviceStatusResponse {
	return deviceStatusResponse{
		Code:           d.Code,
		Status:         d.Status,
		TrialExpiresAt: d.TrialExpiresAt,
		ActivatedUntil: d.ActivatedUntil,
		Lifetime:       d.Lifetime,
	}
}

// handleRegisterDevice registers a new device with its code and pin
func (s *Server) handleRegisterDevice(c *gin.Context) {
	var req registerDeviceRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}

	device, err := s.service.RegisterDevice(c.Request.Context(), req.Code, req.Pin)
	if err != nil {
		domainError(c, err)
		return
	}

	c.JSON(http.StatusCreated, gin.H{
		"success": true,
		"data":    deviceStatusView(device),
	})
}

// handleAuthenticateDevice verifies device credentials and returns the
// current entitlement state
func (s *Server) handleAuthenticateDevice(c *gin.Context) {
	var req authenticateDeviceRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}

	device, err := s.service.AuthenticateDevice(c.Request.Context(), req.Code, req.Pin)
	if err != nil {
		domainError(c, err)
		return
	}

	successResponse(c, deviceStatusView(device))
}

// handleDeviceStatus returns the current entitlement state for a device
// code without requiring the pin. The response carries no credentials
// and no reseller attribution.
func (s *Server) handleDeviceStatus(c *gin.Context) {
	device, err := s.service.GetStatus(c.Request.Context(), c.Param("code"))
	if err != nil {
		domainError(c, err)
		return
	}

	successResponse(c, deviceStatusView(device))
}
