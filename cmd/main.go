package main

import (
	"context"
	"net/http"
	_ "time/tzdata"

	"github.com/gorilla/mux"
	cron "github.com/robfig/cron/v3"
	"github.com/rs/cors"
	"github.com/sendgrid/sendgrid-go"
	twilio "github.com/twilio/twilio-go"

	"github.com/dwellos/requests-service/internal/app"
	"github.com/dwellos/requests-service/internal/config"
	"github.com/dwellos/requests-service/internal/controllers"
	"github.com/dwellos/requests-service/internal/middleware"
	"github.com/dwellos/requests-service/internal/repositories"
	"github.com/dwellos/requests-service/internal/routes"
	"github.com/dwellos/requests-service/internal/services"
	"github.com/dwellos/requests-service/internal/utils"
)

func main() {
	utils.InitLogger(config.AppName)
	cfg := config.LoadConfig()
	defer cfg.Close()

	application, err := app.NewApp(cfg)
	if err != nil {
		utils.Logger.Fatal("Failed to initialize requests-service:", err)
	}
	defer application.Close()

	srRepo := repositories.NewServiceRequestRepository(application.DB)
	propRepo := repositories.NewPropertyRepository(application.DB)
	unitRepo := repositories.NewUnitRepository(application.DB)
	userRepo := repositories.NewUserRepository(application.DB)
	jobRepo := repositories.NewJobRepository(application.DB)
	notifRepo := repositories.NewNotificationRepository(application.DB)

	twClient := twilio.NewRestClientWithParams(twilio.ClientParams{
		Username: cfg.TwilioAccountSID,
		Password: cfg.TwilioAuthToken,
	})
	sgClient := sendgrid.NewSendClient(cfg.SendGridAPIKey)

	notificationService := services.NewNotificationService(cfg, notifRepo, userRepo, twClient, sgClient)
	requestService := services.NewRequestService(srRepo, propRepo, unitRepo, jobRepo, notificationService)
	maintenanceService := services.NewMaintenanceService(srRepo, propRepo, notifRepo, notificationService)

	if cfg.LDFlag_SeedDemoData {
		if err := app.SeedDemoData(context.Background(), userRepo, propRepo, unitRepo); err != nil {
			utils.Logger.WithError(err).Fatal("Failed to seed demo data")
		}
	}

	requestsController := controllers.NewRequestsController(requestService)
	notificationsController := controllers.NewNotificationsController(notificationService)
	healthController := controllers.NewHealthController(application)

	router := mux.NewRouter()

	// Public
	router.HandleFunc(routes.Health, healthController.HealthCheckHandler).Methods(http.MethodGet)

	secured := router.NewRoute().Subrouter()
	secured.Use(middleware.AuthMiddleware(cfg.RSAPublicKey))

	secured.HandleFunc(routes.RequestsBase, requestsController.ListRequestsHandler).Methods(http.MethodGet)
	secured.HandleFunc(routes.RequestsBase, requestsController.CreateRequestHandler).Methods(http.MethodPost)
	secured.HandleFunc(routes.RequestByID, requestsController.GetRequestHandler).Methods(http.MethodGet)
	secured.HandleFunc(routes.RequestByID, requestsController.UpdateRequestHandler).Methods(http.MethodPatch, http.MethodPut)
	secured.HandleFunc(routes.RequestByID, requestsController.DeleteRequestHandler).Methods(http.MethodDelete)
	secured.HandleFunc(routes.RequestConvert, requestsController.ConvertToJobHandler).Methods(http.MethodPost)

	secured.HandleFunc(routes.NotificationsBase, notificationsController.ListNotificationsHandler).Methods(http.MethodGet)
	secured.HandleFunc(routes.NotificationRead, notificationsController.MarkReadHandler).Methods(http.MethodPost)

	c := cron.New()
	_, dailyErr := c.AddFunc("5 0 * * *", func() {
		maintenanceService.RunDaily(context.Background())
	})
	if dailyErr != nil {
		utils.Logger.WithError(dailyErr).Fatal("Failed to schedule daily maintenance cron")
	}
	c.Start()

	allowedOrigins := []string{cfg.AppUrl}
	if !cfg.LDFlag_CORSHighSecurity {
		allowedOrigins = append(allowedOrigins, utils.CORSLowSecurityAllowedOriginLocalhost)
	}

	co := cors.New(cors.Options{
		AllowedOrigins:   allowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Authorization", "Content-Type", "ngrok-skip-browser-warning"},
		AllowCredentials: true,
	})

	utils.Logger.Infof("Starting %s on port: %s", cfg.AppName, cfg.AppPort)
	if err := http.ListenAndServe(":"+cfg.AppPort, co.Handler(router)); err != nil {
		utils.Logger.Fatal("requests-service failed to start:", err)
	}
}
