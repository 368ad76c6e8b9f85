package policy

import (
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/dwellos/requests-service/internal/models"
)

// allowedTransitions is the strict outgoing-edge set of the request
// lifecycle. REJECTED, COMPLETED and CONVERTED_TO_JOB have no outgoing
// edges; there is no re-open path.
var allowedTransitions = map[models.RequestStatusType][]models.RequestStatusType{
	models.RequestStatusSubmitted: {
		models.RequestStatusUnderReview,
		models.RequestStatusApproved,
		models.RequestStatusRejected,
		models.RequestStatusConvertedToJob,
	},
	models.RequestStatusUnderReview: {
		models.RequestStatusApproved,
		models.RequestStatusRejected,
		models.RequestStatusCompleted,
		models.RequestStatusConvertedToJob,
	},
	models.RequestStatusApproved: {
		models.RequestStatusCompleted,
		models.RequestStatusConvertedToJob,
	},
	models.RequestStatusRejected:       {},
	models.RequestStatusCompleted:      {},
	models.RequestStatusConvertedToJob: {},
}

// CanTransition reports whether from→to is a valid lifecycle edge.
// Writing the current status back is treated as a no-op, not an edge.
func CanTransition(from, to models.RequestStatusType) bool {
	if from == to {
		return true
	}
	for _, next := range allowedTransitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

// IsTerminal reports whether no further status transition may leave s.
func IsTerminal(s models.RequestStatusType) bool {
	return len(allowedTransitions[s]) == 0
}

// NotificationIntent is the semantic payload handed to the dispatcher.
// Delivery is someone else's problem.
type NotificationIntent struct {
	UserID     uuid.UUID
	Type       models.NotificationType
	Title      string
	Message    string
	EntityType models.EntityType
	EntityID   uuid.UUID
}

// statusMessages is the fixed requester-facing copy per status.
var statusMessages = map[models.RequestStatusType]string{
	models.RequestStatusUnderReview:    "Your service request is now under review.",
	models.RequestStatusApproved:       "Your service request has been approved.",
	models.RequestStatusRejected:       "Your service request has been rejected.",
	models.RequestStatusCompleted:      "Your service request has been completed.",
	models.RequestStatusConvertedToJob: "Your service request has been converted to a job.",
}

// StatusChangeMessage returns the requester-facing copy for a status
// change, falling back to a generic line for unrecognized statuses.
func StatusChangeMessage(newStatus models.RequestStatusType) string {
	if msg, ok := statusMessages[newStatus]; ok {
		return msg
	}
	return fmt.Sprintf("Your service request status was updated to %s.", newStatus)
}

// ApplyStatus validates and applies a status transition in memory,
// returning the notification intents to dispatch. The caller persists
// the mutated record; nothing is persisted here.
//
// Errors:
//   - ErrRequestFrozen when the record is already CONVERTED_TO_JOB
//   - InvalidTransitionError for any edge outside allowedTransitions
func ApplyStatus(r *models.ServiceRequest, newStatus models.RequestStatusType, now time.Time) ([]NotificationIntent, error) {
	if r.Status == models.RequestStatusConvertedToJob {
		return nil, ErrRequestFrozen
	}
	if r.Status == newStatus {
		return nil, nil
	}
	if !CanTransition(r.Status, newStatus) {
		return nil, &InvalidTransitionError{From: r.Status, To: newStatus}
	}

	r.Status = newStatus
	if newStatus != models.RequestStatusSubmitted {
		r.ReviewedAt = &now
	}

	return []NotificationIntent{{
		UserID:     r.RequestedByID,
		Type:       models.NotificationServiceRequestUpdate,
		Title:      "Service request updated",
		Message:    StatusChangeMessage(newStatus),
		EntityType: models.EntityServiceRequest,
		EntityID:   r.ID,
	}}, nil
}

// ConversionIntents builds the notifications emitted by a successful
// convert-to-job: the requester always, the assignee when present.
func ConversionIntents(r *models.ServiceRequest, job *models.Job) []NotificationIntent {
	intents := []NotificationIntent{{
		UserID:     r.RequestedByID,
		Type:       models.NotificationJobCreated,
		Title:      "Service request converted",
		Message:    StatusChangeMessage(models.RequestStatusConvertedToJob),
		EntityType: models.EntityJob,
		EntityID:   job.ID,
	}}
	if job.AssignedToID != nil {
		intents = append(intents, NotificationIntent{
			UserID:     *job.AssignedToID,
			Type:       models.NotificationJobAssigned,
			Title:      "New job assigned",
			Message:    fmt.Sprintf("You have been assigned a new job: %s", job.Title),
			EntityType: models.EntityJob,
			EntityID:   job.ID,
		})
	}
	return intents
}

// CanDelete reports whether the actor may delete the request, ignoring
// the linked-job check (which needs storage and is enforced separately).
func CanDelete(p models.Principal, rel Relationship, r *models.ServiceRequest) bool {
	switch p.Role {
	case models.RoleTenant:
		return rel.IsRequester && r.Status == models.RequestStatusSubmitted
	case models.RolePropertyManager:
		return rel.ManagesProperty
	default:
		return false
	}
}
