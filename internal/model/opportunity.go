package model

import (
	"time"

	"github.com/google/uuid"
)

// Opportunity statuses
const (
	OpportunityStatusOpen = "open"
	OpportunityStatusWon  = "won"
	OpportunityStatusLost = "lost"
)

const DefaultCurrency = "USD"

type Opportunity struct {
	Base
	OrganizationID    uuid.UUID  `json:"organization_id" db:"organization_id"`
	PipelineID        uuid.UUID  `json:"pipeline_id" db:"pipeline_id"`
	StageID           uuid.UUID  `json:"stage_id" db:"stage_id"`
	CustomerID        *uuid.UUID `json:"customer_id,omitempty" db:"customer_id"`
	UserID            uuid.UUID  `json:"user_id" db:"user_id"`
	Title             string     `json:"title" db:"title"`
	Description       *string    `json:"description,omitempty" db:"description"`
	Value             float64    `json:"value" db:"value"`
	Currency          string     `json:"currency" db:"currency"`
	Source            *string    `json:"source,omitempty" db:"source"`
	CustomFields      JSONMap    `json:"custom_fields,omitempty" db:"custom_fields"`
	Status            string     `json:"status" db:"status"`
	ExpectedCloseDate *Date      `json:"expected_close_date,omitempty" db:"expected_close_date"`
	LastStageChange   *time.Time `json:"last_stage_change,omitempty" db:"last_stage_change"`
}

// ApplyStage moves the opportunity to stage and returns the history entry
// describing the transition. It returns nil when stage is already current.
func (o *Opportunity) ApplyStage(stage *PipelineStage, actor uuid.UUID, notes *string, now time.Time) *StageHistory {
	if o.StageID == stage.ID {
		return nil
	}

	var inStage *int64
	if o.LastStageChange != nil {
		secs := int64(now.Sub(*o.LastStageChange) / time.Second)
		inStage = &secs
	}

	from := o.StageID
	o.StageID = stage.ID
	o.Status = stage.Status()
	ts := now
	o.LastStageChange = &ts
	o.UpdatedAt = now

	return &StageHistory{
		ID:            uuid.New(),
		OpportunityID: o.ID,
		FromStageID:   &from,
		ToStageID:     stage.ID,
		UserID:        actor,
		ChangedAt:     now,
		Notes:         notes,
		TimeInStage:   inStage,
	}
}

// StageHistory is an append-only record of a stage transition
type StageHistory struct {
	ID            uuid.UUID  `json:"id" db:"id"`
	OpportunityID uuid.UUID  `json:"opportunity_id" db:"opportunity_id"`
	FromStageID   *uuid.UUID `json:"from_stage_id" db:"from_stage_id"`
	ToStageID     uuid.UUID  `json:"to_stage_id" db:"to_stage_id"`
	UserID        uuid.UUID  `json:"user_id" db:"user_id"`
	ChangedAt     time.Time  `json:"changed_at" db:"changed_at"`
	Notes         *string    `json:"notes,omitempty" db:"notes"`
	TimeInStage   *int64     `json:"time_in_stage" db:"time_in_stage"`
}

type CreateOpportunityRequest struct {
	PipelineID        uuid.UUID  `json:"pipeline_id" binding:"required"`
	StageID           uuid.UUID  `json:"stage_id" binding:"required"`
	CustomerID        *uuid.UUID `json:"customer_id"`
	UserID            *uuid.UUID `json:"user_id"`
	Title             string     `json:"title" binding:"required,max=200"`
	Description       *string    `json:"description"`
	Value             float64    `json:"value" binding:"min=0"`
	Currency          string     `json:"currency" binding:"omitempty,len=3"`
	Source            *string    `json:"source" binding:"omitempty,max=100"`
	CustomFields      JSONMap    `json:"custom_fields"`
	ExpectedCloseDate *Date      `json:"expected_close_date"`
}

type UpdateOpportunityRequest struct {
	CustomerID        *uuid.UUID `json:"customer_id"`
	UserID            *uuid.UUID `json:"user_id"`
	Title             *string    `json:"title" binding:"omitempty,min=1,max=200"`
	Description       *string    `json:"description"`
	Value             *float64   `json:"value" binding:"omitempty,min=0"`
	Currency          *string    `json:"currency" binding:"omitempty,len=3"`
	Source            *string    `json:"source" binding:"omitempty,max=100"`
	CustomFields      JSONMap    `json:"custom_fields"`
	ExpectedCloseDate *Date      `json:"expected_close_date"`
}

type ChangeStageRequest struct {
	Notes *string `json:"notes"`
}

type OpportunityFilter struct {
	OrganizationID uuid.UUID
	PipelineID     *uuid.UUID
	StageID        *uuid.UUID
	CustomerID     *uuid.UUID
	UserID         *uuid.UUID
	Status         string
	Search         string
	Pagination
}
