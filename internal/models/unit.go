package models

import (
	"time"

	"github.com/google/uuid"
)

// Unit represents a tenant-addressable space on a property.
type Unit struct {
	ID         uuid.UUID `json:"id"`
	PropertyID uuid.UUID `json:"property_id"`
	UnitNumber string    `json:"unit_number"`
	CreatedAt  time.Time `json:"created_at"`
}

// UnitTenancy assigns a tenant to a unit. Only rows with IsActive set
// grant the tenant any standing on the unit.
type UnitTenancy struct {
	UnitID    uuid.UUID `json:"unit_id"`
	TenantID  uuid.UUID `json:"tenant_id"`
	IsActive  bool      `json:"is_active"`
	CreatedAt time.Time `json:"created_at"`
}
