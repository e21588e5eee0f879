package api

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"activation-server/internal/auth"
	"activation-server/internal/entitlement"

	"github.com/gin-gonic/gin"
)

func TestRateLimiterAllowsWithinLimit(t *testing.T) {
	rl := NewRateLimiter(3, time.Minute)

	for i := 0; i < 3; i++ {
		if !rl.Allow("device-1") {
			t.Fatalf("request %d should be allowed", i+1)
		}
	}

	if rl.Allow("device-1") {
		t.Error("request over the limit should be rejected")
	}
}

func TestRateLimiterKeysAreIndependent(t *testing.T) {
	rl := NewRateLimiter(1, time.Minute)

	if !rl.Allow("device-1") {
		t.Fatal("first request for device-1 should be allowed")
	}
	if !rl.Allow("device-2") {
		t.Error("device-2 should not share device-1's budget")
	}
	if rl.Allow("device-1") {
		t.Error("second request for device-1 should be rejected")
	}
}

func TestRateLimiterWindowExpiry(t *testing.T) {
	rl := NewRateLimiter(1, 10*time.Millisecond)

	if !rl.Allow("device-1") {
		t.Fatal("first request should be allowed")
	}
	if rl.Allow("device-1") {
		t.Fatal("second request inside the window should be rejected")
	}

	time.Sleep(20 * time.Millisecond)

	if !rl.Allow("device-1") {
		t.Error("request after the window expired should be allowed")
	}
}

func TestDomainErrorStatusMapping(t *testing.T) {
	gin.SetMode(gin.TestMode)

	tests := []struct {
		name       string
		err        error
		wantStatus int
		wantCode   string
	}{
		{"device not found", entitlement.ErrDeviceNotFound, http.StatusNotFound, "DEVICE_NOT_FOUND"},
		{"trial already used", entitlement.ErrTrialAlreadyUsed, http.StatusConflict, "TRIAL_ALREADY_USED"},
		{"duplicate device", entitlement.ErrDeviceExists, http.StatusConflict, "DEVICE_EXISTS"},
		{"insufficient credits", entitlement.ErrInsufficientCredits, http.StatusPaymentRequired, "INSUFFICIENT_CREDITS"},
		{"banned device", entitlement.ErrDeviceBanned, http.StatusForbidden, "DEVICE_BANNED"},
		{"invalid pin", entitlement.ErrInvalidPin, http.StatusForbidden, "INVALID_PIN"},
		{"invalid days", entitlement.ErrInvalidDays, http.StatusBadRequest, "INVALID_DAYS"},
		{"bad credentials", auth.ErrInvalidCredentials, http.StatusUnauthorized, ""},
		{"infrastructure error", errors.New("connection refused"), http.StatusInternalServerError, "INTERNAL"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := httptest.NewRecorder()
			c, _ := gin.CreateTestContext(w)
			c.Request = httptest.NewRequest(http.MethodGet, "/", nil)

			domainError(c, tt.err)

			if w.Code != tt.wantStatus {
				t.Errorf("status = %d, want %d", w.Code, tt.wantStatus)
			}
			if tt.wantCode != "" && !strings.Contains(w.Body.String(), tt.wantCode) {
				t.Errorf("body %q should contain code %q", w.Body.String(), tt.wantCode)
			}
		})
	}
}

func TestInternalErrorsAreOpaque(t *testing.T) {
	gin.SetMode(gin.TestMode)

	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	c.Request = httptest.NewRequest(http.MethodGet, "/", nil)

	domainError(c, errors.New("pq: password authentication failed for user"))

	if strings.Contains(w.Body.String(), "password") {
		t.Errorf("internal error details leaked to the client: %s", w.Body.String())
	}
}

func TestParsePagingDefaultsAndBounds(t *testing.T) {
	gin.SetMode(gin.TestMode)

	tests := []struct {
		query      string
		wantLimit  int
		wantOffset int
	}{
		{"", 50, 0},
		{"?limit=10&offset=20", 10, 20},
		{"?limit=9999", 50, 0},
		{"?limit=0", 50, 0},
		{"?offset=-5", 50, 0},
	}

	for _, tt := range tests {
		w := httptest.NewRecorder()
		c, _ := gin.CreateTestContext(w)
		c.Request = httptest.NewRequest(http.MethodGet, "/"+tt.query, nil)

		limit, offset := parsePaging(c)
		if limit != tt.wantLimit || offset != tt.wantOffset {
			t.Errorf("parsePaging(%q) = (%d, %d), want (%d, %d)",
				tt.query, limit, offset, tt.wantLimit, tt.wantOffset)
		}
	}
}
