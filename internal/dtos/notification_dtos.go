package dtos

import "github.com/dwellos/requests-service/internal/models"

type ListNotificationsResponse struct {
	Results []*models.Notification `json:"results"`
	Total   int                    `json:"total"`
}
