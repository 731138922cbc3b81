package model

import (
	"time"

	"github.com/google/uuid"
)

const (
	PlanFree = "free"
)

type Organization struct {
	Base
	Name             string     `json:"name" db:"name"`
	IndustryType     *string    `json:"industry_type,omitempty" db:"industry_type"`
	SubscriptionPlan string     `json:"subscription_plan" db:"subscription_plan"`
	ActiveUntil      *time.Time `json:"active_until,omitempty" db:"active_until"`
	Settings         JSONMap    `json:"settings,omitempty" db:"settings"`
	IsActive         bool       `json:"is_active" db:"is_active"`
}

type UpdateOrganizationRequest struct {
	Name         *string `json:"name" binding:"omitempty,min=1,max=200"`
	IndustryType *string `json:"industry_type" binding:"omitempty,max=100"`
	Settings     JSONMap `json:"settings"`
}

func NewOrganization(name string) *Organization {
	now := time.Now().UTC()
	return &Organization{
		Base:             Base{ID: uuid.New(), CreatedAt: now, UpdatedAt: now},
		Name:             name,
		SubscriptionPlan: PlanFree,
		IsActive:         true,
	}
}
