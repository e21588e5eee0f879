package database

import (
	"time"
)

// Admin represents an administrative account
type Admin struct {
	ID           string    `json:"id" db:"id"`
	Email        string    `json:"email" db:"email"`
	Name         string    `json:"name" db:"name"`
	PasswordHash string    `json:"-" db:"password_hash"`
	CreatedAt    time.Time `json:"created_at" db:"created_at"`
}

// DeviceFilter narrows device listings
type DeviceFilter struct {
	Status     string // cached status column; dashboards only
	ResellerID string
	Code       string // prefix match
}

// Stats is the aggregate view for the admin dashboard
type Stats struct {
	DevicesByStatus    map[string]int `json:"devices_by_status"`
	TotalDevices       int            `json:"total_devices"`
	TotalResellers     int            `json:"total_resellers"`
	CreditsOutstanding int            `json:"credits_outstanding"`
	RecentActivations  int            `json:"recent_activations"` // last 7 days
}
