package services

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/dwellos/requests-service/internal/models"
	"github.com/dwellos/requests-service/internal/policy"
	"github.com/dwellos/requests-service/internal/repositories"
	"github.com/dwellos/requests-service/internal/utils"
)

const (
	reminderAge           = 24 * time.Hour
	notificationRetention = 90 * 24 * time.Hour
)

// MaintenanceService runs the daily housekeeping pass: reminders to
// managers about requests sitting in SUBMITTED, and purging of old read
// notifications.
type MaintenanceService struct {
	srRepo     repositories.ServiceRequestRepository
	propRepo   repositories.PropertyRepository
	notifRepo  repositories.NotificationRepository
	dispatcher Dispatcher
}

func NewMaintenanceService(
	srRepo repositories.ServiceRequestRepository,
	propRepo repositories.PropertyRepository,
	notifRepo repositories.NotificationRepository,
	dispatcher Dispatcher,
) *MaintenanceService {
	return &MaintenanceService{
		srRepo:     srRepo,
		propRepo:   propRepo,
		notifRepo:  notifRepo,
		dispatcher: dispatcher,
	}
}

// RunDaily is invoked by the cron scheduler. Each stage logs and carries
// on; a failed digest never blocks the purge.
func (s *MaintenanceService) RunDaily(ctx context.Context) {
	if err := s.RemindStaleSubmitted(ctx); err != nil {
		utils.Logger.WithError(err).Error("Daily reminder digest failed")
	}
	if err := s.PurgeReadNotifications(ctx); err != nil {
		utils.Logger.WithError(err).Error("Notification purge failed")
	}
}

// RemindStaleSubmitted notifies each managing property manager once per
// request that has been sitting in SUBMITTED for longer than 24 hours.
func (s *MaintenanceService) RemindStaleSubmitted(ctx context.Context) error {
	cutoff := time.Now().UTC().Add(-reminderAge)
	stale, err := s.srRepo.ListSubmittedBefore(ctx, cutoff)
	if err != nil {
		return err
	}
	if len(stale) == 0 {
		return nil
	}

	// One property lookup per distinct property, not per request.
	managers := make(map[uuid.UUID]uuid.UUID)
	var intents []policy.NotificationIntent
	for _, sr := range stale {
		managerID, ok := managers[sr.PropertyID]
		if !ok {
			prop, err := s.propRepo.GetByID(ctx, sr.PropertyID)
			if err != nil {
				return err
			}
			if prop == nil {
				utils.Logger.Warnf("Stale request %s references missing property %s", sr.ID, sr.PropertyID)
				continue
			}
			managerID = prop.ManagerID
			managers[sr.PropertyID] = managerID
		}

		intents = append(intents, policy.NotificationIntent{
			UserID:     managerID,
			Type:       models.NotificationRequestReminder,
			Title:      "Service request awaiting review",
			Message:    fmt.Sprintf("Service request %q has been awaiting review for over 24 hours.", sr.Title),
			EntityType: models.EntityServiceRequest,
			EntityID:   sr.ID,
		})
	}

	utils.Logger.Infof("Reminder digest: %d stale SUBMITTED request(s)", len(intents))
	s.dispatcher.Dispatch(ctx, intents)
	return nil
}

// PurgeReadNotifications deletes read notifications past the retention
// window.
func (s *MaintenanceService) PurgeReadNotifications(ctx context.Context) error {
	cutoff := time.Now().UTC().Add(-notificationRetention)
	deleted, err := s.notifRepo.DeleteReadBefore(ctx, cutoff)
	if err != nil {
		return err
	}
	if deleted > 0 {
		utils.Logger.Infof("Purged %d read notification(s)", deleted)
	}
	return nil
}
