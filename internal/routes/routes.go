package routes

const (
	// Health
	Health = "/health"

	// Service request endpoints
	RequestsBase   = "/api/v1/service-requests"
	RequestByID    = "/api/v1/service-requests/{id}"
	RequestConvert = "/api/v1/service-requests/{id}/convert-to-job"

	// In-app notification feed
	NotificationsBase = "/api/v1/notifications"
	NotificationRead  = "/api/v1/notifications/{id}/read"
)
