package model

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

type OutboxStatus string

const (
	OutboxStatusPending   OutboxStatus = "PENDING"
	OutboxStatusProcessed OutboxStatus = "PROCESSED"
	OutboxStatusFailed    OutboxStatus = "FAILED"
)

// Domain event types published through the outbox
const (
	EventOpportunityStageChanged = "opportunity.stage_changed"
	EventOpportunityWon          = "opportunity.won"
	EventOpportunityLost         = "opportunity.lost"
	EventCustomerPurchase        = "customer.purchase_recorded"
	EventInvitationAccepted      = "invitation.accepted"
	EventUserRegistered          = "user.registered"
)

type OutboxEvent struct {
	ID           uuid.UUID       `db:"id" json:"id"`
	EventType    string          `db:"event_type" json:"event_type"`
	Payload      json.RawMessage `db:"payload" json:"payload"`
	Status       string          `db:"status" json:"status"`
	ErrorMessage *string         `db:"error_message" json:"error_message,omitempty"`
	RetryCount   int             `db:"retry_count" json:"retry_count"`
	CreatedAt    time.Time       `db:"created_at" json:"created_at"`
	UpdatedAt    time.Time       `db:"updated_at" json:"updated_at"`
	ProcessedAt  *time.Time      `db:"processed_at" json:"processed_at,omitempty"`
}

// StageChangedPayload is published after a committed stage transition
type StageChangedPayload struct {
	OrganizationID uuid.UUID  `json:"organization_id"`
	OpportunityID  uuid.UUID  `json:"opportunity_id"`
	FromStageID    *uuid.UUID `json:"from_stage_id"`
	ToStageID      uuid.UUID  `json:"to_stage_id"`
	Status         string     `json:"status"`
	Value          float64    `json:"value"`
	ActorID        uuid.UUID  `json:"actor_id"`
	ChangedAt      time.Time  `json:"changed_at"`
}

// EmailMessage describes an outbound notification email
type EmailMessage struct {
	To      string
	Subject string
	Text    string
	HTML    string
}
