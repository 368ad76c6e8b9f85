package dtos

import (
	"time"

	"github.com/google/uuid"

	"github.com/dwellos/requests-service/internal/models"
)

/*
CreateServiceRequestRequest is the payload for POST /api/v1/service-requests.
UnitID is required for tenants (they must hold an active tenancy on it);
managers create requests directly against a managed property.
*/
type CreateServiceRequestRequest struct {
	Title       string     `json:"title" validate:"required"`
	Description string     `json:"description" validate:"required"`
	Category    string     `json:"category" validate:"required"`
	Priority    string     `json:"priority" validate:"omitempty,oneof=LOW MEDIUM HIGH URGENT"`
	PropertyID  uuid.UUID  `json:"property_id" validate:"required"`
	UnitID      *uuid.UUID `json:"unit_id,omitempty"`
	PhotoURLs   []string   `json:"photo_urls,omitempty"`
}

/*
UpdateServiceRequestRequest carries a partial update. Nil means "not
present"; present fields are checked against the caller's allowed field
set before anything is applied.
*/
type UpdateServiceRequestRequest struct {
	Title       *string `json:"title,omitempty"`
	Description *string `json:"description,omitempty"`
	Priority    *string `json:"priority,omitempty" validate:"omitempty,oneof=LOW MEDIUM HIGH URGENT"`
	Status      *string `json:"status,omitempty"`
	ReviewNotes *string `json:"review_notes,omitempty"`
}

/*
ConvertToJobRequest seeds the job created from an approved request. All
fields are optional; the job itself is seeded from the request.
*/
type ConvertToJobRequest struct {
	AssignedToID  *uuid.UUID `json:"assigned_to_id,omitempty"`
	ScheduledDate *time.Time `json:"scheduled_date,omitempty"`
	EstimatedCost *float64   `json:"estimated_cost,omitempty"`
}

type ListServiceRequestsResponse struct {
	Results []*models.ServiceRequest `json:"results"`
	Total   int                      `json:"total"`
}

type ConvertToJobResponse struct {
	Job            *models.Job            `json:"job"`
	ServiceRequest *models.ServiceRequest `json:"service_request"`
}

type DeleteServiceRequestResponse struct {
	Deleted bool      `json:"deleted"`
	ID      uuid.UUID `json:"id"`
}
