package model

import (
	"time"

	"github.com/google/uuid"
)

type LoginRequest struct {
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required"`
}

type RegisterRequest struct {
	Email            string `json:"email" binding:"required,email"`
	Password         string `json:"password" binding:"required,min=8"`
	FirstName        string `json:"first_name" binding:"required,max=100"`
	LastName         string `json:"last_name" binding:"required,max=100"`
	OrganizationName string `json:"organization_name" binding:"required,max=200"`
}

type ForgotPasswordRequest struct {
	Email string `json:"email" binding:"required,email"`
}

type ValidateResetTokenRequest struct {
	Token string `json:"token" binding:"required"`
}

type ResetPasswordRequest struct {
	Token           string `json:"token" binding:"required"`
	NewPassword     string `json:"new_password" binding:"required,min=8"`
	ConfirmPassword string `json:"confirm_password" binding:"omitempty,eqfield=NewPassword"`
}

// ClientInfo describes the device a session is issued to
type ClientInfo struct {
	DeviceInfo string
	IPAddress  string
}

type TokenResponse struct {
	AccessToken string    `json:"access_token"`
	TokenType   string    `json:"token_type"`
	ExpiresAt   time.Time `json:"expires_at"`
	User        *User     `json:"user,omitempty"`
}

// TokenClaims carries the identity encoded in an access token
type TokenClaims struct {
	UserID         uuid.UUID
	OrganizationID uuid.UUID
	Role           string
	TokenID        string
	ExpiresAt      time.Time
}

// PasswordReset is a single-use, time-limited reset token
type PasswordReset struct {
	ID        uuid.UUID `json:"id" db:"id"`
	UserID    uuid.UUID `json:"user_id" db:"user_id"`
	Token     string    `json:"-" db:"token"`
	ExpiresAt time.Time `json:"expires_at" db:"expires_at"`
	Used      bool      `json:"used" db:"used"`
	CreatedAt time.Time `json:"created_at" db:"created_at"`
}

func (r *PasswordReset) IsValid(now time.Time) bool {
	return !r.Used && r.ExpiresAt.After(now)
}
