package models

import (
	"time"

	"github.com/google/uuid"
)

type RequestStatusType string

const (
	RequestStatusSubmitted      RequestStatusType = "SUBMITTED"
	RequestStatusUnderReview    RequestStatusType = "UNDER_REVIEW"
	RequestStatusApproved       RequestStatusType = "APPROVED"
	RequestStatusRejected       RequestStatusType = "REJECTED"
	RequestStatusConvertedToJob RequestStatusType = "CONVERTED_TO_JOB"
	RequestStatusCompleted      RequestStatusType = "COMPLETED"
)

type RequestPriorityType string

const (
	RequestPriorityLow    RequestPriorityType = "LOW"
	RequestPriorityMedium RequestPriorityType = "MEDIUM"
	RequestPriorityHigh   RequestPriorityType = "HIGH"
	RequestPriorityUrgent RequestPriorityType = "URGENT"
)

// PriorityRank orders priorities for sorting. Higher is more urgent.
func PriorityRank(p RequestPriorityType) int {
	switch p {
	case RequestPriorityUrgent:
		return 4
	case RequestPriorityHigh:
		return 3
	case RequestPriorityMedium:
		return 2
	case RequestPriorityLow:
		return 1
	default:
		return 0
	}
}

// ServiceRequest is the central entity: a maintenance request raised by a
// tenant (against their unit) or a property manager (against a managed
// property), reviewed by the manager and eventually converted to a Job.
type ServiceRequest struct {
	Versioned

	ID          uuid.UUID           `json:"id"`
	Title       string              `json:"title"`
	Description string              `json:"description"`
	Category    string              `json:"category"`
	Priority    RequestPriorityType `json:"priority"`
	PhotoURLs   []string            `json:"photo_urls,omitempty"`

	PropertyID    uuid.UUID  `json:"property_id"`
	UnitID        *uuid.UUID `json:"unit_id,omitempty"`
	RequestedByID uuid.UUID  `json:"requested_by_id"`

	Status      RequestStatusType `json:"status"`
	ReviewNotes *string           `json:"review_notes,omitempty"`
	ReviewedAt  *time.Time        `json:"reviewed_at,omitempty"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func (r *ServiceRequest) GetID() string {
	return r.ID.String()
}
