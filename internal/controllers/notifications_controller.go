package controllers

import (
	"net/http"

	"github.com/google/uuid"
	"github.com/gorilla/mux"

	"github.com/dwellos/requests-service/internal/middleware"
	"github.com/dwellos/requests-service/internal/services"
	"github.com/dwellos/requests-service/internal/utils"
)

type NotificationsController struct {
	notificationService *services.NotificationService
}

func NewNotificationsController(ns *services.NotificationService) *NotificationsController {
	return &NotificationsController{notificationService: ns}
}

// GET /api/v1/notifications
func (c *NotificationsController) ListNotificationsHandler(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	principal, ok := middleware.PrincipalFromContext(ctx)
	if !ok {
		utils.RespondErrorWithCode(w, http.StatusUnauthorized, utils.ErrCodeUnauthorized, "No principal in context", nil)
		return
	}

	resp, err := c.notificationService.ListForUser(ctx, principal.ID)
	if err != nil {
		utils.HandleAppError(w, err)
		return
	}
	utils.RespondWithJSON(w, http.StatusOK, resp)
}

// POST /api/v1/notifications/{id}/read
func (c *NotificationsController) MarkReadHandler(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	principal, ok := middleware.PrincipalFromContext(ctx)
	if !ok {
		utils.RespondErrorWithCode(w, http.StatusUnauthorized, utils.ErrCodeUnauthorized, "No principal in context", nil)
		return
	}

	id, err := uuid.Parse(mux.Vars(r)["id"])
	if err != nil {
		utils.RespondErrorWithCode(w, http.StatusBadRequest, utils.ErrCodeInvalidPayload, "Invalid notification ID", nil)
		return
	}

	if err := c.notificationService.MarkRead(ctx, id, principal.ID); err != nil {
		utils.HandleAppError(w, err)
		return
	}
	utils.RespondWithJSON(w, http.StatusOK, map[string]bool{"read": true})
}
