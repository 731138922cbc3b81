package model

import (
	"time"

	"github.com/google/uuid"
)

// Interaction outcomes
const (
	OutcomePositive = "positive"
	OutcomeNeutral  = "neutral"
	OutcomeNegative = "negative"
)

type Interaction struct {
	Base
	CustomerID            uuid.UUID  `json:"customer_id" db:"customer_id"`
	UserID                uuid.UUID  `json:"user_id" db:"user_id"`
	Type                  string     `json:"type" db:"type"`
	DateTime              time.Time  `json:"date_time" db:"date_time"`
	DurationMinutes       *int       `json:"duration_minutes,omitempty" db:"duration_minutes"`
	Notes                 *string    `json:"notes,omitempty" db:"notes"`
	Outcome               *string    `json:"outcome,omitempty" db:"outcome"`
	RequiresFollowup      bool       `json:"requires_followup" db:"requires_followup"`
	FollowupDate          *time.Time `json:"followup_date,omitempty" db:"followup_date"`
	FollowupType          *string    `json:"followup_type,omitempty" db:"followup_type"`
	FollowupNotes         *string    `json:"followup_notes,omitempty" db:"followup_notes"`
	FollowupCompleted     bool       `json:"followup_completed" db:"followup_completed"`
	FollowupCompletedDate *time.Time `json:"followup_completed_date,omitempty" db:"followup_completed_date"`
}

// CompleteFollowup marks the follow-up done and appends completion notes.
func (i *Interaction) CompleteFollowup(notes string, now time.Time) {
	i.FollowupCompleted = true
	ts := now
	i.FollowupCompletedDate = &ts
	if notes != "" {
		entry := "Completed: " + notes
		if i.FollowupNotes != nil && *i.FollowupNotes != "" {
			entry = *i.FollowupNotes + "\n" + entry
		}
		i.FollowupNotes = &entry
	}
	i.UpdatedAt = now
}

type CreateInteractionRequest struct {
	CustomerID       uuid.UUID  `json:"customer_id" binding:"required"`
	Type             string     `json:"type" binding:"required,max=50"`
	DateTime         *time.Time `json:"date_time"`
	DurationMinutes  *int       `json:"duration_minutes" binding:"omitempty,min=0"`
	Notes            *string    `json:"notes"`
	Outcome          *string    `json:"outcome" binding:"omitempty,oneof=positive neutral negative"`
	RequiresFollowup bool       `json:"requires_followup"`
	FollowupDate     *time.Time `json:"followup_date"`
	FollowupType     *string    `json:"followup_type" binding:"omitempty,max=50"`
	FollowupNotes    *string    `json:"followup_notes"`
}

type UpdateInteractionRequest struct {
	Type              *string    `json:"type" binding:"omitempty,max=50"`
	DateTime          *time.Time `json:"date_time"`
	DurationMinutes   *int       `json:"duration_minutes" binding:"omitempty,min=0"`
	Notes             *string    `json:"notes"`
	Outcome           *string    `json:"outcome" binding:"omitempty,oneof=positive neutral negative"`
	RequiresFollowup  *bool      `json:"requires_followup"`
	FollowupDate      *time.Time `json:"followup_date"`
	FollowupType      *string    `json:"followup_type" binding:"omitempty,max=50"`
	FollowupNotes     *string    `json:"followup_notes"`
	FollowupCompleted *bool      `json:"followup_completed"`
}

type CompleteFollowupRequest struct {
	Notes string `json:"notes"`
}

type InteractionFilter struct {
	OrganizationID   uuid.UUID
	CustomerID       *uuid.UUID
	Type             string
	RequiresFollowup *bool
	From             *time.Time
	To               *time.Time
	Pagination
}
