package controllers

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/gorilla/mux"

	"github.com/dwellos/requests-service/internal/dtos"
	"github.com/dwellos/requests-service/internal/middleware"
	"github.com/dwellos/requests-service/internal/models"
	"github.com/dwellos/requests-service/internal/repositories"
	"github.com/dwellos/requests-service/internal/services"
	"github.com/dwellos/requests-service/internal/utils"
)

type RequestsController struct {
	requestService *services.RequestService
}

func NewRequestsController(rs *services.RequestService) *RequestsController {
	return &RequestsController{requestService: rs}
}

var requestValidate = validator.New()

// ----------------------------------------------------------------
// GET /api/v1/service-requests
// ----------------------------------------------------------------
func (c *RequestsController) ListRequestsHandler(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	principal, ok := middleware.PrincipalFromContext(ctx)
	if !ok {
		utils.RespondErrorWithCode(w, http.StatusUnauthorized, utils.ErrCodeUnauthorized, "No principal in context", nil)
		return
	}

	filter, err := parseListFilter(r)
	if err != nil {
		utils.RespondErrorWithCode(w, http.StatusBadRequest, utils.ErrCodeInvalidPayload, err.Error(), nil)
		return
	}

	resp, svcErr := c.requestService.List(ctx, principal, filter)
	if svcErr != nil {
		utils.HandleAppError(w, svcErr)
		return
	}
	utils.RespondWithJSON(w, http.StatusOK, resp)
}

// ----------------------------------------------------------------
// GET /api/v1/service-requests/{id}
// ----------------------------------------------------------------
func (c *RequestsController) GetRequestHandler(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	principal, ok := middleware.PrincipalFromContext(ctx)
	if !ok {
		utils.RespondErrorWithCode(w, http.StatusUnauthorized, utils.ErrCodeUnauthorized, "No principal in context", nil)
		return
	}

	id, err := pathID(r)
	if err != nil {
		utils.RespondErrorWithCode(w, http.StatusBadRequest, utils.ErrCodeInvalidPayload, "Invalid service request ID", nil)
		return
	}

	sr, svcErr := c.requestService.Get(ctx, principal, id)
	if svcErr != nil {
		utils.HandleAppError(w, svcErr)
		return
	}
	utils.RespondWithJSON(w, http.StatusOK, sr)
}

// ----------------------------------------------------------------
// POST /api/v1/service-requests
// ----------------------------------------------------------------
func (c *RequestsController) CreateRequestHandler(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	principal, ok := middleware.PrincipalFromContext(ctx)
	if !ok {
		utils.RespondErrorWithCode(w, http.StatusUnauthorized, utils.ErrCodeUnauthorized, "No principal in context", nil)
		return
	}

	var req dtos.CreateServiceRequestRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		utils.RespondErrorWithCode(w, http.StatusBadRequest, utils.ErrCodeInvalidPayload, "Invalid JSON body", nil, err)
		return
	}

	if err := requestValidate.StructCtx(ctx, req); err != nil {
		var validationErrors validator.ValidationErrors
		if errors.As(err, &validationErrors) {
			utils.RespondErrorWithCode(w, http.StatusBadRequest, utils.ErrCodeInvalidPayload, "Validation failed", validationErrors.Error())
		} else {
			utils.RespondErrorWithCode(w, http.StatusBadRequest, utils.ErrCodeInvalidPayload, "Invalid request data", nil, err)
		}
		return
	}

	sr, svcErr := c.requestService.Create(ctx, principal, &req)
	if svcErr != nil {
		utils.HandleAppError(w, svcErr)
		return
	}
	utils.RespondWithJSON(w, http.StatusCreated, sr)
}

// ----------------------------------------------------------------
// PATCH /api/v1/service-requests/{id}
// ----------------------------------------------------------------
func (c *RequestsController) UpdateRequestHandler(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	principal, ok := middleware.PrincipalFromContext(ctx)
	if !ok {
		utils.RespondErrorWithCode(w, http.StatusUnauthorized, utils.ErrCodeUnauthorized, "No principal in context", nil)
		return
	}

	id, err := pathID(r)
	if err != nil {
		utils.RespondErrorWithCode(w, http.StatusBadRequest, utils.ErrCodeInvalidPayload, "Invalid service request ID", nil)
		return
	}

	var req dtos.UpdateServiceRequestRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		utils.RespondErrorWithCode(w, http.StatusBadRequest, utils.ErrCodeInvalidPayload, "Invalid JSON body", nil, err)
		return
	}

	if err := requestValidate.StructCtx(ctx, req); err != nil {
		var validationErrors validator.ValidationErrors
		if errors.As(err, &validationErrors) {
			utils.RespondErrorWithCode(w, http.StatusBadRequest, utils.ErrCodeInvalidPayload, "Validation failed", validationErrors.Error())
		} else {
			utils.RespondErrorWithCode(w, http.StatusBadRequest, utils.ErrCodeInvalidPayload, "Invalid request data", nil, err)
		}
		return
	}

	sr, svcErr := c.requestService.Update(ctx, principal, id, &req)
	if svcErr != nil {
		utils.HandleAppError(w, svcErr)
		return
	}
	utils.RespondWithJSON(w, http.StatusOK, sr)
}

// ----------------------------------------------------------------
// POST /api/v1/service-requests/{id}/convert-to-job
// ----------------------------------------------------------------
func (c *RequestsController) ConvertToJobHandler(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	principal, ok := middleware.PrincipalFromContext(ctx)
	if !ok {
		utils.RespondErrorWithCode(w, http.StatusUnauthorized, utils.ErrCodeUnauthorized, "No principal in context", nil)
		return
	}

	id, err := pathID(r)
	if err != nil {
		utils.RespondErrorWithCode(w, http.StatusBadRequest, utils.ErrCodeInvalidPayload, "Invalid service request ID", nil)
		return
	}

	// Body is optional: a bare convert takes every field from the request.
	var req dtos.ConvertToJobRequest
	if r.Body != nil && r.ContentLength != 0 {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			utils.RespondErrorWithCode(w, http.StatusBadRequest, utils.ErrCodeInvalidPayload, "Invalid JSON body", nil, err)
			return
		}
	}

	resp, svcErr := c.requestService.ConvertToJob(ctx, principal, id, &req)
	if svcErr != nil {
		utils.HandleAppError(w, svcErr)
		return
	}
	utils.RespondWithJSON(w, http.StatusCreated, resp)
}

// ----------------------------------------------------------------
// DELETE /api/v1/service-requests/{id}
// ----------------------------------------------------------------
func (c *RequestsController) DeleteRequestHandler(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	principal, ok := middleware.PrincipalFromContext(ctx)
	if !ok {
		utils.RespondErrorWithCode(w, http.StatusUnauthorized, utils.ErrCodeUnauthorized, "No principal in context", nil)
		return
	}

	id, err := pathID(r)
	if err != nil {
		utils.RespondErrorWithCode(w, http.StatusBadRequest, utils.ErrCodeInvalidPayload, "Invalid service request ID", nil)
		return
	}

	if svcErr := c.requestService.Delete(ctx, principal, id); svcErr != nil {
		utils.HandleAppError(w, svcErr)
		return
	}
	utils.RespondWithJSON(w, http.StatusOK, dtos.DeleteServiceRequestResponse{Deleted: true, ID: id})
}

// ----------------------------------------------------------------
// helpers
// ----------------------------------------------------------------

func pathID(r *http.Request) (uuid.UUID, error) {
	return uuid.Parse(mux.Vars(r)["id"])
}

func parseListFilter(r *http.Request) (repositories.ServiceRequestFilter, error) {
	var filter repositories.ServiceRequestFilter
	q := r.URL.Query()

	if v := q.Get("status"); v != "" {
		status := models.RequestStatusType(v)
		filter.Status = &status
	}
	if v := q.Get("category"); v != "" {
		filter.Category = &v
	}
	if v := q.Get("priority"); v != "" {
		priority := models.RequestPriorityType(v)
		filter.Priority = &priority
	}
	if v := q.Get("property_id"); v != "" {
		id, err := uuid.Parse(v)
		if err != nil {
			return filter, errors.New("property_id must be a valid UUID")
		}
		filter.PropertyID = &id
	}
	return filter, nil
}
