package models

import (
	"time"

	"github.com/google/uuid"
)

type JobStatusType string

const (
	JobStatusOpen       JobStatusType = "OPEN"
	JobStatusAssigned   JobStatusType = "ASSIGNED"
	JobStatusInProgress JobStatusType = "IN_PROGRESS"
	JobStatusCompleted  JobStatusType = "COMPLETED"
	JobStatusCanceled   JobStatusType = "CANCELED"
)

// Job is created as the terminal side effect of converting a service
// request. ServiceRequestID is unique: at most one job per request, ever.
type Job struct {
	ID               uuid.UUID           `json:"id"`
	ServiceRequestID uuid.UUID           `json:"service_request_id"`
	PropertyID       uuid.UUID           `json:"property_id"`
	UnitID           *uuid.UUID          `json:"unit_id,omitempty"`
	Title            string              `json:"title"`
	Description      string              `json:"description"`
	Priority         RequestPriorityType `json:"priority"`
	Status           JobStatusType       `json:"status"`
	AssignedToID     *uuid.UUID          `json:"assigned_to_id,omitempty"`
	ScheduledDate    *time.Time          `json:"scheduled_date,omitempty"`
	EstimatedCost    *float64            `json:"estimated_cost,omitempty"`
	CreatedAt        time.Time           `json:"created_at"`
}
