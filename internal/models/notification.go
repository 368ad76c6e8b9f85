package models

import (
	"time"

	"github.com/google/uuid"
)

type NotificationType string

const (
	NotificationServiceRequestUpdate NotificationType = "SERVICE_REQUEST_UPDATE"
	NotificationJobCreated           NotificationType = "JOB_CREATED"
	NotificationJobAssigned          NotificationType = "JOB_ASSIGNED"
	NotificationRequestReminder      NotificationType = "REQUEST_REMINDER"
)

type EntityType string

const (
	EntityServiceRequest EntityType = "SERVICE_REQUEST"
	EntityJob            EntityType = "JOB"
)

type Notification struct {
	ID         uuid.UUID        `json:"id"`
	UserID     uuid.UUID        `json:"user_id"`
	Type       NotificationType `json:"type"`
	Title      string           `json:"title"`
	Message    string           `json:"message"`
	EntityType EntityType       `json:"entity_type"`
	EntityID   uuid.UUID        `json:"entity_id"`
	ReadAt     *time.Time       `json:"read_at,omitempty"`
	CreatedAt  time.Time        `json:"created_at"`
}
