package model

import (
	"time"

	"github.com/google/uuid"
)

// Dashboard periods
const (
	PeriodWeek    = "week"
	PeriodMonth   = "month"
	PeriodQuarter = "quarter"
	PeriodYear    = "year"
)

// PeriodStart returns the beginning of the reporting window ending at now.
func PeriodStart(period string, now time.Time) (time.Time, bool) {
	switch period {
	case PeriodWeek:
		return now.AddDate(0, 0, -7), true
	case PeriodMonth, "":
		return now.AddDate(0, -1, 0), true
	case PeriodQuarter:
		return now.AddDate(0, -3, 0), true
	case PeriodYear:
		return now.AddDate(-1, 0, 0), true
	default:
		return time.Time{}, false
	}
}

type SegmentCount struct {
	Segment string `json:"segment" db:"segment"`
	Count   int    `json:"count" db:"count"`
}

type StageCount struct {
	StageID   uuid.UUID `json:"stage_id" db:"stage_id"`
	StageName string    `json:"stage_name" db:"stage_name"`
	Count     int       `json:"count" db:"count"`
	Value     float64   `json:"value" db:"value"`
}

type DashboardOverview struct {
	Period               string         `json:"period"`
	Since                time.Time      `json:"since"`
	ActiveCustomers      int            `json:"active_customers"`
	OpenOpportunities    int            `json:"open_opportunities"`
	WonOpportunities     int            `json:"won_opportunities"`
	PipelineValue        float64        `json:"pipeline_value"`
	InteractionsInPeriod int            `json:"interactions_in_period"`
	CustomersBySegment   []SegmentCount `json:"customers_by_segment"`
	OpportunitiesByStage []StageCount   `json:"opportunities_by_stage"`
}
