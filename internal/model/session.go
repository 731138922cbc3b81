package model

import (
	"time"

	"github.com/google/uuid"
)

// ActiveSession binds an issued token to a user and device
type ActiveSession struct {
	ID           uuid.UUID `json:"id" db:"id"`
	UserID       uuid.UUID `json:"user_id" db:"user_id"`
	Token        string    `json:"-" db:"token"`
	DeviceInfo   *string   `json:"device_info,omitempty" db:"device_info"`
	IPAddress    *string   `json:"ip_address,omitempty" db:"ip_address"`
	LastActivity time.Time `json:"last_activity" db:"last_activity"`
	CreatedAt    time.Time `json:"created_at" db:"created_at"`
	ExpiresAt    time.Time `json:"expires_at" db:"expires_at"`
	IsActive     bool      `json:"is_active" db:"is_active"`
}

// Usable reports whether the session can still authenticate requests
func (s *ActiveSession) Usable(now time.Time) bool {
	return s.IsActive && s.ExpiresAt.After(now)
}

type SessionView struct {
	ID           uuid.UUID `json:"id"`
	DeviceInfo   *string   `json:"device_info,omitempty"`
	IPAddress    *string   `json:"ip_address,omitempty"`
	LastActivity time.Time `json:"last_activity"`
	CreatedAt    time.Time `json:"created_at"`
	ExpiresAt    time.Time `json:"expires_at"`
	IsCurrent    bool      `json:"is_current"`
}
