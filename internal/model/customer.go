package model

import (
	"errors"
	"time"

	"github.com/google/uuid"
)

// Customer statuses
const (
	CustomerStatusActive   = "active"
	CustomerStatusInactive = "inactive"
)

// frequencyDecay weights the previous purchase cadence against the newest gap.
const frequencyDecay = 0.7

var ErrNonPositiveAmount = errors.New("purchase amount must be greater than zero")

type Customer struct {
	Base
	OrganizationID        uuid.UUID  `json:"organization_id" db:"organization_id"`
	FirstName             string     `json:"first_name" db:"first_name"`
	LastName              string     `json:"last_name" db:"last_name"`
	Email                 *string    `json:"email,omitempty" db:"email"`
	Phone                 *string    `json:"phone,omitempty" db:"phone"`
	Address               *string    `json:"address,omitempty" db:"address"`
	Segment               *string    `json:"segment,omitempty" db:"segment"`
	Notes                 *string    `json:"notes,omitempty" db:"notes"`
	CustomFields          JSONMap    `json:"custom_fields,omitempty" db:"custom_fields"`
	Status                string     `json:"status" db:"status"`
	LastInteraction       *time.Time `json:"last_interaction,omitempty" db:"last_interaction"`
	LifetimeValue         float64    `json:"lifetime_value" db:"lifetime_value"`
	PurchaseCount         int        `json:"purchase_count" db:"purchase_count"`
	TotalSpent            float64    `json:"total_spent" db:"total_spent"`
	AveragePurchaseValue  float64    `json:"average_purchase_value" db:"average_purchase_value"`
	PurchaseFrequencyDays *float64   `json:"purchase_frequency_days,omitempty" db:"purchase_frequency_days"`
	FirstPurchaseDate     *Date      `json:"first_purchase_date,omitempty" db:"first_purchase_date"`
	LastPurchaseDate      *Date      `json:"last_purchase_date,omitempty" db:"last_purchase_date"`
	SegmentUpdatedAt      *time.Time `json:"segment_updated_at,omitempty" db:"segment_updated_at"`
}

// RecordPurchase folds a purchase into the rolling segmentation metrics.
func (c *Customer) RecordPurchase(date Date, amount float64, now time.Time) error {
	if amount <= 0 {
		return ErrNonPositiveAmount
	}

	if c.FirstPurchaseDate == nil || date.Before(c.FirstPurchaseDate.Time) {
		first := date
		c.FirstPurchaseDate = &first
	}

	// A backdated purchase only adds to the totals; cadence and the last
	// purchase date follow the newest purchase.
	backdated := c.LastPurchaseDate != nil && date.Before(c.LastPurchaseDate.Time)

	if !backdated && c.PurchaseCount > 0 && c.LastPurchaseDate != nil {
		days := float64(date.DaysSince(*c.LastPurchaseDate))
		freq := days
		if c.PurchaseFrequencyDays != nil {
			freq = frequencyDecay*(*c.PurchaseFrequencyDays) + (1-frequencyDecay)*days
		}
		c.PurchaseFrequencyDays = &freq
	}

	c.PurchaseCount++
	c.TotalSpent += amount
	c.AveragePurchaseValue = c.TotalSpent / float64(c.PurchaseCount)
	c.LifetimeValue = c.TotalSpent
	if !backdated {
		last := date
		c.LastPurchaseDate = &last
	}
	ts := now
	c.SegmentUpdatedAt = &ts
	c.UpdatedAt = now
	return nil
}

// Purchase is a single recorded sale against a customer
type Purchase struct {
	ID           uuid.UUID `json:"id" db:"id"`
	CustomerID   uuid.UUID `json:"customer_id" db:"customer_id"`
	RequestID    *string   `json:"request_id,omitempty" db:"request_id"`
	PurchaseDate Date      `json:"purchase_date" db:"purchase_date"`
	Amount       float64   `json:"amount" db:"amount"`
	ItemsCount   int       `json:"items_count" db:"items_count"`
	Notes        *string   `json:"notes,omitempty" db:"notes"`
	CreatedAt    time.Time `json:"created_at" db:"created_at"`
}

type CreateCustomerRequest struct {
	FirstName    string  `json:"first_name" binding:"required,max=100"`
	LastName     string  `json:"last_name" binding:"required,max=100"`
	Email        *string `json:"email" binding:"omitempty,email"`
	Phone        *string `json:"phone" binding:"omitempty,max=50"`
	Address      *string `json:"address"`
	Segment      *string `json:"segment" binding:"omitempty,max=50"`
	Notes        *string `json:"notes"`
	CustomFields JSONMap `json:"custom_fields"`
}

type UpdateCustomerRequest struct {
	FirstName    *string `json:"first_name" binding:"omitempty,min=1,max=100"`
	LastName     *string `json:"last_name" binding:"omitempty,min=1,max=100"`
	Email        *string `json:"email" binding:"omitempty,email"`
	Phone        *string `json:"phone" binding:"omitempty,max=50"`
	Address      *string `json:"address"`
	Segment      *string `json:"segment" binding:"omitempty,max=50"`
	Notes        *string `json:"notes"`
	CustomFields JSONMap `json:"custom_fields"`
	Status       *string `json:"status" binding:"omitempty,oneof=active inactive"`
}

type RecordPurchaseRequest struct {
	PurchaseDate *Date   `json:"purchase_date"`
	Amount       float64 `json:"amount" binding:"required"`
	ItemsCount   int     `json:"items_count" binding:"omitempty,min=0"`
	Notes        *string `json:"notes"`
	RequestID    *string `json:"request_id" binding:"omitempty,max=100"`
}

type CustomerFilter struct {
	OrganizationID uuid.UUID
	Search         string
	Status         string
	Segment        string
	Pagination
}
