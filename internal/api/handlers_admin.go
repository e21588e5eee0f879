package api

import (
	"net/http"
	"strconv"

	"activation-server/internal/auth"
	"activation-server/internal/database"
	"activation-server/internal/entitlement"

	"github.com/gin-gonic/gin"
)

func adminActor(c *gin.Context) entitlement.Actor {
	return entitlement.Actor{Kind: entitlement.ActorAdmin, ID: auth.GetUserID(c)}
}

// parsePaging reads limit/offset query params with sane bounds
func parsePaging(c *gin.Context) (limit, offset int) {
	limit, _ = strconv.Atoi(c.DefaultQuery("limit", "50"))
	offset, _ = strconv.Atoi(c.DefaultQuery("offset", "0"))
	if limit < 1 || limit > 500 {
		limit = 50
	}
	if offset < 0 {
		offset = 0
	}
	return limit, offset
}

// handleAdminLogin authenticates an admin account
func (s *Server) handleAdminLogin(c *gin.Context) {
	var req auth.LoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}

	resp, err := s.authService.LoginAdmin(c.Request.Context(), req)
	if err != nil {
		domainError(c, err)
		return
	}

	successResponse(c, resp)
}

// handleListDevices lists devices with optional status, reseller and
// code-prefix filters
func (s *Server) handleListDevices(c *gin.Context) {
	limit, offset := parsePaging(c)

	filter := database.DeviceFilter{
		Status:     c.Query("status"),
		ResellerID: c.Query("reseller_id"),
		Code:       c.Query("code"),
	}

	devices, total, err := s.repo.ListDevices(c.Request.Context(), filter, limit, offset)
	if err != nil {
		domainError(c, err)
		return
	}

	successResponse(c, gin.H{
		"devices": devices,
		"total":   total,
		"limit":   limit,
		"offset":  offset,
	})
}

// handleGetDevice returns the full device record with its status
// reconciled against the clock
func (s *Server) handleGetDevice(c *gin.Context) {
	device, err := s.repo.GetDeviceByID(c.Request.Context(), c.Param("id"))
	if err != nil {
		domainError(c, err)
		return
	}
	if device == nil {
		domainError(c, entitlement.ErrDeviceNotFound)
		return
	}

	// Reconcile through the service so the cached status is never stale
	device, err = s.service.GetStatus(c.Request.Context(), device.Code)
	if err != nil {
		domainError(c, err)
		return
	}

	successResponse(c, device)
}

// handleDeviceHistory returns the append-only audit trail for a device
func (s *Server) handleDeviceHistory(c *gin.Context) {
	limit, offset := parsePaging(c)

	entries, total, err := s.repo.ListHistory(c.Request.Context(), c.Param("id"), limit, offset)
	if err != nil {
		domainError(c, err)
		return
	}

	successResponse(c, gin.H{
		"entries": entries,
		"total":   total,
		"limit":   limit,
		"offset":  offset,
	})
}

type banDeviceRequest struct {
	Reason string `json:"reason" binding:"required"`
}

// handleBanDevice bans a device, locking it out regardless of any
// running entitlement window
func (s *Server) handleBanDevice(c *gin.Context) {
	var req banDeviceRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}

	device, err := s.service.BanDevice(c.Request.Context(), c.Param("id"), req.Reason, adminActor(c))
	if err != nil {
		domainError(c, err)
		return
	}

	successResponse(c, device)
}

// handleUnbanDevice lifts a ban; the device resumes whatever state its
// temporal fields derive to
func (s *Server) handleUnbanDevice(c *gin.Context) {
	device, err := s.service.UnbanDevice(c.Request.Context(), c.Param("id"), adminActor(c))
	if err != nil {
		domainError(c, err)
		return
	}

	successResponse(c, device)
}

type prolongDeviceRequest struct {
	Days int `json:"days" binding:"required"`
}

// handleProlongDevice extends a device's activation window without
// touching any credit balance
func (s *Server) handleProlongDevice(c *gin.Context) {
	var req prolongDeviceRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}

	device, err := s.service.ProlongDevice(c.Request.Context(), c.Param("id"), req.Days, adminActor(c))
	if err != nil {
		domainError(c, err)
		return
	}

	successResponse(c, device)
}

// handleGrantLifetime grants a permanent entitlement
func (s *Server) handleGrantLifetime(c *gin.Context) {
	device, err := s.service.ActivateLifetime(c.Request.Context(), c.Param("id"), adminActor(c))
	if err != nil {
		domainError(c, err)
		return
	}

	successResponse(c, device)
}

// handleExpireDevice force-expires a device's activation window
func (s *Server) handleExpireDevice(c *gin.Context) {
	device, err := s.service.ExpireDevice(c.Request.Context(), c.Param("id"), adminActor(c))
	if err != nil {
		domainError(c, err)
		return
	}

	successResponse(c, device)
}

type startTrialRequest struct {
	Code string `json:"code" binding:"required"`
	Days int    `json:"days"`
}

// handleAdminStartTrial starts the one-time trial for a device
func (s *Server) handleAdminStartTrial(c *gin.Context) {
	var req startTrialRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}

	device, err := s.service.StartTrial(c.Request.Context(), req.Code, req.Days, adminActor(c))
	if err != nil {
		domainError(c, err)
		return
	}

	successResponse(c, device)
}

type batchTrialRequest struct {
	Codes []string `json:"codes" binding:"required"`
	Days  int      `json:"days"`
}

// handleBatchStartTrial starts trials for a batch of devices. Items
// fail independently; the response reports both sides.
func (s *Server) handleBatchStartTrial(c *gin.Context) {
	var req batchTrialRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}

	result := s.service.BatchStartTrial(c.Request.Context(), req.Codes, req.Days, adminActor(c))
	successResponse(c, result)
}

type createResellerRequest struct {
	Email          string `json:"email" binding:"required,email"`
	Name           string `json:"name" binding:"required,min=2"`
	Password       string `json:"password" binding:"required,min=8"`
	InitialCredits int    `json:"initial_credits"`
}

// handleCreateReseller creates a reseller account with an optional
// starting credit balance
func (s *Server) handleCreateReseller(c *gin.Context) {
	var req createResellerRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}

	reseller, err := s.service.CreateReseller(c.Request.Context(), req.Email, req.Name, req.Password, req.InitialCredits)
	if err != nil {
		domainError(c, err)
		return
	}

	c.JSON(http.StatusCreated, gin.H{
		"success": true,
		"data":    reseller,
	})
}

// handleListResellers lists reseller accounts
func (s *Server) handleListResellers(c *gin.Context) {
	limit, offset := parsePaging(c)

	resellers, total, err := s.repo.ListResellers(c.Request.Context(), limit, offset)
	if err != nil {
		domainError(c, err)
		return
	}

	successResponse(c, gin.H{
		"resellers": resellers,
		"total":     total,
		"limit":     limit,
		"offset":    offset,
	})
}

// handleGetReseller returns one reseller account
func (s *Server) handleGetReseller(c *gin.Context) {
	reseller, err := s.service.GetReseller(c.Request.Context(), c.Param("id"))
	if err != nil {
		domainError(c, err)
		return
	}

	successResponse(c, reseller)
}

type topUpRequest struct {
	Amount int `json:"amount" binding:"required"`
}

// handleTopUpReseller adds credits to a reseller's balance
func (s *Server) handleTopUpReseller(c *gin.Context) {
	var req topUpRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}

	reseller, err := s.service.TopUpReseller(c.Request.Context(), c.Param("id"), req.Amount)
	if err != nil {
		domainError(c, err)
		return
	}

	successResponse(c, reseller)
}

// handleGetStats returns aggregate counters for the admin dashboard
func (s *Server) handleGetStats(c *gin.Context) {
	stats, err := s.repo.GetStats(c.Request.Context())
	if err != nil {
		domainError(c, err)
		return
	}

	successResponse(c, stats)
}
