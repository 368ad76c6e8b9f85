package services

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v4"
	"github.com/sendgrid/sendgrid-go"
	"github.com/sendgrid/sendgrid-go/helpers/mail"
	"github.com/twilio/twilio-go"
	twilioApi "github.com/twilio/twilio-go/rest/api/v2010"

	"github.com/dwellos/requests-service/internal/config"
	"github.com/dwellos/requests-service/internal/dtos"
	"github.com/dwellos/requests-service/internal/models"
	"github.com/dwellos/requests-service/internal/policy"
	"github.com/dwellos/requests-service/internal/repositories"
	"github.com/dwellos/requests-service/internal/utils"
)

// Dispatcher receives the notification intents produced by the lifecycle
// policy. Implementations must not block the request path on delivery.
type Dispatcher interface {
	Dispatch(ctx context.Context, intents []policy.NotificationIntent)
}

// NotificationService persists notification rows synchronously and hands
// email/SMS delivery to a fire-and-forget goroutine. Delivery failures
// are logged, never surfaced to the caller.
type NotificationService struct {
	cfg            *config.Config
	notifRepo      repositories.NotificationRepository
	userRepo       repositories.UserRepository
	twilioClient   *twilio.RestClient
	sendgridClient *sendgrid.Client
}

func NewNotificationService(
	cfg *config.Config,
	notifRepo repositories.NotificationRepository,
	userRepo repositories.UserRepository,
	twilioClient *twilio.RestClient,
	sendgridClient *sendgrid.Client,
) *NotificationService {
	return &NotificationService{
		cfg:            cfg,
		notifRepo:      notifRepo,
		userRepo:       userRepo,
		twilioClient:   twilioClient,
		sendgridClient: sendgridClient,
	}
}

// Dispatch implements Dispatcher.
func (s *NotificationService) Dispatch(ctx context.Context, intents []policy.NotificationIntent) {
	for _, intent := range intents {
		if err := s.Enqueue(ctx, intent); err != nil {
			utils.Logger.WithError(err).Warnf("Failed to enqueue notification for user %s", intent.UserID)
		}
	}
}

// Enqueue stores the notification row and schedules delivery.
func (s *NotificationService) Enqueue(ctx context.Context, intent policy.NotificationIntent) error {
	n := &models.Notification{
		ID:         uuid.New(),
		UserID:     intent.UserID,
		Type:       intent.Type,
		Title:      intent.Title,
		Message:    intent.Message,
		EntityType: intent.EntityType,
		EntityID:   intent.EntityID,
	}
	if err := s.notifRepo.Create(ctx, n); err != nil {
		return err
	}

	// Delivery is fire-and-forget and detached from the request context.
	go s.deliver(context.Background(), intent)
	return nil
}

func (s *NotificationService) deliver(ctx context.Context, intent policy.NotificationIntent) {
	user, err := s.userRepo.GetByID(ctx, intent.UserID)
	if err != nil || user == nil {
		utils.Logger.WithError(err).Warnf("Notification delivery: recipient %s not found", intent.UserID)
		return
	}

	if s.cfg.LDFlag_EmailNotificationsEnabled && user.Email != "" {
		s.sendEmail(user, intent)
	}
	// SMS is reserved for assignment pings; everything else is email + feed.
	if s.cfg.LDFlag_SMSNotificationsEnabled && intent.Type == models.NotificationJobAssigned &&
		user.PhoneNumber != nil && *user.PhoneNumber != "" {
		s.sendSMS(user, intent)
	}
}

func (s *NotificationService) sendEmail(user *models.User, intent policy.NotificationIntent) {
	if s.sendgridClient == nil {
		utils.Logger.Warnf("SendGrid client is nil, skipping email to user %s", user.ID)
		return
	}

	from := mail.NewEmail(s.cfg.OrganizationName, s.cfg.LDFlag_SendgridFromEmail)
	to := mail.NewEmail(user.FullName(), user.Email)
	msg := mail.NewSingleEmail(from, intent.Title, to, intent.Message, fmt.Sprintf("<p>%s</p>", intent.Message))
	if s.cfg.LDFlag_SendgridSandboxMode {
		ms := mail.NewMailSettings()
		ms.SetSandboxMode(mail.NewSetting(true))
		msg.MailSettings = ms
	}
	if _, err := s.sendgridClient.Send(msg); err != nil {
		utils.Logger.WithError(err).Warnf("Email send failure to user %s", user.ID)
	}
}

func (s *NotificationService) sendSMS(user *models.User, intent policy.NotificationIntent) {
	if s.twilioClient == nil {
		utils.Logger.Warnf("Twilio client is nil, skipping SMS to user %s", user.ID)
		return
	}

	params := &twilioApi.CreateMessageParams{}
	params.SetTo(*user.PhoneNumber)
	params.SetFrom(s.cfg.LDFlag_TwilioFromPhone)
	params.SetBody(intent.Title + " :: " + intent.Message)
	if _, err := s.twilioClient.Api.CreateMessage(params); err != nil {
		utils.Logger.WithError(err).Warnf("SMS send failure to user %s", user.ID)
	}
}

/* ------------------------------------------------------------------
   In-app feed
------------------------------------------------------------------ */

const notificationFeedLimit = 100

func (s *NotificationService) ListForUser(ctx context.Context, userID uuid.UUID) (*dtos.ListNotificationsResponse, error) {
	list, err := s.notifRepo.ListByUserID(ctx, userID, notificationFeedLimit)
	if err != nil {
		return nil, utils.NewInternalError(err)
	}
	if list == nil {
		list = []*models.Notification{}
	}
	return &dtos.ListNotificationsResponse{Results: list, Total: len(list)}, nil
}

func (s *NotificationService) MarkRead(ctx context.Context, id, userID uuid.UUID) error {
	err := s.notifRepo.MarkRead(ctx, id, userID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return utils.NewNotFoundError("Notification not found")
		}
		return utils.NewInternalError(err)
	}
	return nil
}
