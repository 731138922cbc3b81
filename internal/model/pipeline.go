package model

import (
	"github.com/google/uuid"
)

const (
	DefaultStageColor           = "#3b82f6"
	DefaultExpectedDurationDays = 7
)

type Pipeline struct {
	Base
	OrganizationID uuid.UUID       `json:"organization_id" db:"organization_id"`
	Name           string          `json:"name" db:"name"`
	Description    *string         `json:"description,omitempty" db:"description"`
	Color          string          `json:"color" db:"color"`
	IsActive       bool            `json:"is_active" db:"is_active"`
	IsDefault      bool            `json:"is_default" db:"is_default"`
	Stages         []PipelineStage `json:"stages,omitempty" db:"-"`
}

// HasStage reports whether stageID belongs to the pipeline's loaded stages
func (p *Pipeline) HasStage(stageID uuid.UUID) bool {
	for _, s := range p.Stages {
		if s.ID == stageID {
			return true
		}
	}
	return false
}

type PipelineStage struct {
	Base
	PipelineID           uuid.UUID `json:"pipeline_id" db:"pipeline_id"`
	Name                 string    `json:"name" db:"name"`
	Description          *string   `json:"description,omitempty" db:"description"`
	Color                string    `json:"color" db:"color"`
	Order                int       `json:"order" db:"stage_order"`
	Probability          int       `json:"probability" db:"probability"`
	ExpectedDurationDays int       `json:"expected_duration_days" db:"expected_duration_days"`
	IsWon                bool      `json:"is_won" db:"is_won"`
	IsLost               bool      `json:"is_lost" db:"is_lost"`
}

// Status derives the opportunity status for an opportunity placed in this stage.
// A stage flagged both won and lost resolves to won.
func (s *PipelineStage) Status() string {
	switch {
	case s.IsWon:
		return OpportunityStatusWon
	case s.IsLost:
		return OpportunityStatusLost
	default:
		return OpportunityStatusOpen
	}
}

type StageRequest struct {
	Name                 string  `json:"name" binding:"required,max=100"`
	Description          *string `json:"description"`
	Color                string  `json:"color" binding:"omitempty,stagecolor"`
	Order                int     `json:"order" binding:"min=0"`
	Probability          int     `json:"probability" binding:"min=0,max=100"`
	ExpectedDurationDays *int    `json:"expected_duration_days" binding:"omitempty,min=0"`
	IsWon                bool    `json:"is_won"`
	IsLost               bool    `json:"is_lost"`
}

type UpdateStageRequest struct {
	Name                 *string `json:"name" binding:"omitempty,min=1,max=100"`
	Description          *string `json:"description"`
	Color                *string `json:"color" binding:"omitempty,stagecolor"`
	Probability          *int    `json:"probability" binding:"omitempty,min=0,max=100"`
	ExpectedDurationDays *int    `json:"expected_duration_days" binding:"omitempty,min=0"`
	IsWon                *bool   `json:"is_won"`
	IsLost               *bool   `json:"is_lost"`
}

type CreatePipelineRequest struct {
	Name        string         `json:"name" binding:"required,max=100"`
	Description *string        `json:"description"`
	Color       string         `json:"color" binding:"omitempty,stagecolor"`
	IsDefault   bool           `json:"is_default"`
	Stages      []StageRequest `json:"stages" binding:"dive"`
}

type UpdatePipelineRequest struct {
	Name        *string `json:"name" binding:"omitempty,min=1,max=100"`
	Description *string `json:"description"`
	Color       *string `json:"color" binding:"omitempty,stagecolor"`
	IsActive    *bool   `json:"is_active"`
	IsDefault   *bool   `json:"is_default"`
}

type ReorderStagesRequest struct {
	StageIDs []uuid.UUID `json:"stage_ids" binding:"required"`
}
