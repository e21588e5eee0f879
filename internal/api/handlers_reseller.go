package api

import (
	"activation-server/internal/auth"
	"activation-server/internal/database"

	"github.com/gin-gonic/gin"
)

// handleResellerLogin authenticates a reseller account
func (s *Server) handleResellerLogin(c *gin.Context) {
	var req auth.LoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}

	resp, err := s.authService.LoginReseller(c.Request.Context(), req)
	if err != nil {
		domainError(c, err)
		return
	}

	successResponse(c, resp)
}

// handleResellerMe returns the authenticated reseller's account,
// including the current credit balance
func (s *Server) handleResellerMe(c *gin.Context) {
	reseller, err := s.service.GetReseller(c.Request.Context(), auth.GetUserID(c))
	if err != nil {
		domainError(c, err)
		return
	}

	successResponse(c, reseller)
}

// handleResellerDevices lists the devices attributed to the
// authenticated reseller
func (s *Server) handleResellerDevices(c *gin.Context) {
	limit, offset := parsePaging(c)

	filter := database.DeviceFilter{
		ResellerID: auth.GetUserID(c),
		Status:     c.Query("status"),
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

type activateRequest struct {
	Code string `json:"code" binding:"required"`
	Days int    `json:"days" binding:"required"`
}

// handleResellerActivate spends reseller credits to extend a device's
// activation window. The debit and the extension commit atomically.
func (s *Server) handleResellerActivate(c *gin.Context) {
	var req activateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}

	device, err := s.service.ActivateWithCredits(c.Request.Context(), auth.GetUserID(c), req.Code, req.Days)
	if err != nil {
		domainError(c, err)
		return
	}

	successResponse(c, device)
}

type batchActivateRequest struct {
	Codes []string `json:"codes" binding:"required"`
	Days  int      `json:"days" binding:"required"`
}

// handleResellerBatchActivate activates a batch of devices. Each item
// is its own transaction: one failure never rolls back its neighbours,
// and the batch keeps going past failures.
func (s *Server) handleResellerBatchActivate(c *gin.Context) {
	var req batchActivateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}

	result := s.service.BatchActivateWithCredits(c.Request.Context(), auth.GetUserID(c), req.Codes, req.Days)
	successResponse(c, result)
}
