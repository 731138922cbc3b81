package model

import (
	"time"

	"github.com/google/uuid"
)

const InvitationTTL = 7 * 24 * time.Hour

type Invitation struct {
	ID                uuid.UUID `json:"id" db:"id"`
	OrganizationID    uuid.UUID `json:"organization_id" db:"organization_id"`
	InvitedByUserID   uuid.UUID `json:"invited_by_user_id" db:"invited_by_user_id"`
	Email             string    `json:"email" db:"email"`
	Token             string    `json:"-" db:"token"`
	Role              string    `json:"role" db:"role"`
	CustomPermissions JSONMap   `json:"custom_permissions,omitempty" db:"custom_permissions"`
	ExpiresAt         time.Time `json:"expires_at" db:"expires_at"`
	IsAccepted        bool      `json:"is_accepted" db:"is_accepted"`
	CreatedAt         time.Time `json:"created_at" db:"created_at"`
}

// Pending reports whether the invitation can still be accepted
func (i *Invitation) Pending(now time.Time) bool {
	return !i.IsAccepted && i.ExpiresAt.After(now)
}

type CreateInvitationRequest struct {
	Email             string  `json:"email" binding:"required,email"`
	Role              string  `json:"role" binding:"omitempty,role"`
	CustomPermissions JSONMap `json:"custom_permissions"`
}

type AcceptInvitationRequest struct {
	Token     string `json:"token" binding:"required"`
	FirstName string `json:"first_name" binding:"required,max=100"`
	LastName  string `json:"last_name" binding:"required,max=100"`
	Password  string `json:"password" binding:"required,min=8"`
}

type InvitationVerification struct {
	Valid            bool      `json:"valid"`
	Email            string    `json:"email"`
	Role             string    `json:"role"`
	OrganizationName string    `json:"organization_name"`
	ExpiresAt        time.Time `json:"expires_at"`
}
