package services

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/dwellos/requests-service/internal/dtos"
	"github.com/dwellos/requests-service/internal/models"
	"github.com/dwellos/requests-service/internal/policy"
	"github.com/dwellos/requests-service/internal/repositories"
	"github.com/dwellos/requests-service/internal/utils"
)

// RequestService orchestrates the service-request lifecycle: scoped reads,
// field-gated updates, conversion to jobs and deletion. All access decisions
// delegate to the policy package; this layer supplies the storage facts the
// pure policies need.
type RequestService struct {
	srRepo     repositories.ServiceRequestRepository
	propRepo   repositories.PropertyRepository
	unitRepo   repositories.UnitRepository
	jobRepo    repositories.JobRepository
	dispatcher Dispatcher
}

func NewRequestService(
	srRepo repositories.ServiceRequestRepository,
	propRepo repositories.PropertyRepository,
	unitRepo repositories.UnitRepository,
	jobRepo repositories.JobRepository,
	dispatcher Dispatcher,
) *RequestService {
	return &RequestService{
		srRepo:     srRepo,
		propRepo:   propRepo,
		unitRepo:   unitRepo,
		jobRepo:    jobRepo,
		dispatcher: dispatcher,
	}
}

/* ------------------------------------------------------------------
   Scope plumbing
------------------------------------------------------------------ */

// resolveScope gathers the storage facts policy.ScopeFor needs. Only
// technicians require a lookup: their standing derives from active job
// assignments and is recomputed on every request.
func (s *RequestService) resolveScope(ctx context.Context, p models.Principal) (policy.RequestScope, error) {
	var assigned []uuid.UUID
	if p.Role == models.RoleTechnician {
		var err error
		assigned, err = s.jobRepo.ListActivePropertyIDsByAssignee(ctx, p.ID)
		if err != nil {
			return policy.RequestScope{}, utils.NewInternalError(err)
		}
	}
	return policy.ScopeFor(p, assigned), nil
}

func (s *RequestService) relationshipFor(
	ctx context.Context,
	p models.Principal,
	sr *models.ServiceRequest,
	prop *models.Property,
) (policy.Relationship, []uuid.UUID, error) {
	rel := policy.Relationship{
		ManagesProperty: prop != nil && prop.ManagerID == p.ID,
		IsRequester:     sr.RequestedByID == p.ID,
	}

	var ownerIDs []uuid.UUID
	if p.Role == models.RoleOwner {
		var err error
		ownerIDs, err = s.propRepo.ListOwnerIDs(ctx, sr.PropertyID)
		if err != nil {
			return rel, nil, utils.NewInternalError(err)
		}
		for _, id := range ownerIDs {
			if id == p.ID {
				rel.OwnsProperty = true
				break
			}
		}
	}
	return rel, ownerIDs, nil
}

// loadVisible fetches the request plus its property and enforces the read
// scope. Every single-record operation funnels through here so the second
// gate is never skipped.
func (s *RequestService) loadVisible(
	ctx context.Context,
	p models.Principal,
	id uuid.UUID,
) (*models.ServiceRequest, *models.Property, error) {
	sr, err := s.srRepo.GetByID(ctx, id)
	if err != nil {
		return nil, nil, utils.NewInternalError(err)
	}
	if sr == nil {
		return nil, nil, utils.NewNotFoundError("Service request not found")
	}

	prop, err := s.propRepo.GetByID(ctx, sr.PropertyID)
	if err != nil {
		return nil, nil, utils.NewInternalError(err)
	}
	if prop == nil {
		return nil, nil, utils.NewNotFoundError("Property not found")
	}

	scope, err := s.resolveScope(ctx, p)
	if err != nil {
		return nil, nil, err
	}
	var ownerIDs []uuid.UUID
	if scope.Kind == policy.ScopeOwnedBy {
		ownerIDs, err = s.propRepo.ListOwnerIDs(ctx, sr.PropertyID)
		if err != nil {
			return nil, nil, utils.NewInternalError(err)
		}
	}
	if !scope.Allows(sr, prop, ownerIDs) {
		return nil, nil, utils.NewForbiddenError("You do not have access to this service request")
	}
	return sr, prop, nil
}

/* ------------------------------------------------------------------
   Operations
------------------------------------------------------------------ */

func (s *RequestService) List(
	ctx context.Context,
	p models.Principal,
	filter repositories.ServiceRequestFilter,
) (*dtos.ListServiceRequestsResponse, error) {
	scope, err := s.resolveScope(ctx, p)
	if err != nil {
		return nil, err
	}

	results, err := s.srRepo.ListByScope(ctx, scope, filter)
	if err != nil {
		return nil, utils.NewInternalError(err)
	}
	if results == nil {
		results = []*models.ServiceRequest{}
	}
	return &dtos.ListServiceRequestsResponse{Results: results, Total: len(results)}, nil
}

func (s *RequestService) Get(ctx context.Context, p models.Principal, id uuid.UUID) (*models.ServiceRequest, error) {
	sr, _, err := s.loadVisible(ctx, p, id)
	if err != nil {
		return nil, err
	}
	return sr, nil
}

func (s *RequestService) Create(
	ctx context.Context,
	p models.Principal,
	req *dtos.CreateServiceRequestRequest,
) (*models.ServiceRequest, error) {
	switch p.Role {
	case models.RoleTenant:
		if req.UnitID == nil {
			return nil, utils.NewValidationError("Unit ID is required for tenants")
		}
		unit, err := s.unitRepo.GetByID(ctx, *req.UnitID)
		if err != nil {
			return nil, utils.NewInternalError(err)
		}
		if unit == nil {
			return nil, utils.NewNotFoundError("Unit not found")
		}
		if unit.PropertyID != req.PropertyID {
			return nil, utils.NewValidationError("Unit does not belong to the specified property")
		}
		active, err := s.unitRepo.HasActiveTenancy(ctx, unit.ID, p.ID)
		if err != nil {
			return nil, utils.NewInternalError(err)
		}
		if !active {
			return nil, utils.NewForbiddenError("You do not have access to this unit")
		}

	case models.RolePropertyManager:
		prop, err := s.propRepo.GetByID(ctx, req.PropertyID)
		if err != nil {
			return nil, utils.NewInternalError(err)
		}
		if prop == nil {
			return nil, utils.NewNotFoundError("Property not found")
		}
		if prop.ManagerID != p.ID {
			return nil, utils.NewForbiddenError("You do not have access to this property")
		}
		if req.UnitID != nil {
			unit, err := s.unitRepo.GetByID(ctx, *req.UnitID)
			if err != nil {
				return nil, utils.NewInternalError(err)
			}
			if unit == nil {
				return nil, utils.NewNotFoundError("Unit not found")
			}
			if unit.PropertyID != req.PropertyID {
				return nil, utils.NewValidationError("Unit does not belong to the specified property")
			}
		}

	default:
		return nil, utils.NewForbiddenError("Only tenants and property managers can create service requests")
	}

	priority := models.RequestPriorityMedium
	if req.Priority != "" {
		priority = models.RequestPriorityType(req.Priority)
	}

	sr := &models.ServiceRequest{
		ID:            uuid.New(),
		Title:         req.Title,
		Description:   req.Description,
		Category:      req.Category,
		Priority:      priority,
		PhotoURLs:     req.PhotoURLs,
		PropertyID:    req.PropertyID,
		UnitID:        req.UnitID,
		RequestedByID: p.ID,
		Status:        models.RequestStatusSubmitted,
	}
	sr.RowVersion = 1

	if err := s.srRepo.Create(ctx, sr); err != nil {
		return nil, utils.NewInternalError(err)
	}
	return s.Get(ctx, p, sr.ID)
}

// Update applies a partial update under the all-or-nothing field gate. The
// write retries on row_version conflicts, re-running the policy checks
// against the fresh record each attempt.
func (s *RequestService) Update(
	ctx context.Context,
	p models.Principal,
	id uuid.UUID,
	req *dtos.UpdateServiceRequestRequest,
) (*models.ServiceRequest, error) {
	sr, prop, err := s.loadVisible(ctx, p, id)
	if err != nil {
		return nil, err
	}

	requested := requestedFields(req)
	if len(requested) == 0 {
		return sr, nil
	}

	if req.Status != nil && !isValidStatus(*req.Status) {
		return nil, utils.NewValidationError(fmt.Sprintf("Invalid status value: %s", *req.Status))
	}
	if req.Priority != nil && !isValidPriority(*req.Priority) {
		return nil, utils.NewValidationError(fmt.Sprintf("Invalid priority value: %s", *req.Priority))
	}

	// Relationship facts are immutable for the record's lifetime, compute
	// them once outside the retry loop.
	rel, _, err := s.relationshipFor(ctx, p, sr, prop)
	if err != nil {
		return nil, err
	}

	var intents []policy.NotificationIntent
	mutate := func(cur *models.ServiceRequest) error {
		intents = nil

		allowed := policy.AllowedWriteFields(p, rel, cur.Status)
		for _, f := range requested {
			if !allowed.Has(f) {
				return utils.NewForbiddenError(fmt.Sprintf("You are not allowed to update field '%s'", f))
			}
		}

		if req.Title != nil {
			cur.Title = *req.Title
		}
		if req.Description != nil {
			cur.Description = *req.Description
		}
		if req.Priority != nil {
			cur.Priority = models.RequestPriorityType(*req.Priority)
		}
		if req.ReviewNotes != nil {
			cur.ReviewNotes = req.ReviewNotes
		}
		if req.Status != nil {
			var err error
			intents, err = policy.ApplyStatus(cur, models.RequestStatusType(*req.Status), time.Now().UTC())
			if err != nil {
				return lifecycleError(err)
			}
		}
		return nil
	}

	if err := s.srRepo.UpdateWithRetry(ctx, id, mutate); err != nil {
		var appErr *utils.AppError
		if errors.As(err, &appErr) {
			return nil, appErr
		}
		return nil, utils.NewInternalError(err)
	}

	s.dispatcher.Dispatch(ctx, intents)

	updated, err := s.srRepo.GetByID(ctx, id)
	if err != nil {
		return nil, utils.NewInternalError(err)
	}
	if updated == nil {
		return nil, utils.NewNotFoundError("Service request not found")
	}
	return updated, nil
}

// ConvertToJob creates the job and freezes the request in one transaction.
// Only the managing property manager may convert; a concurrent second
// conversion loses the row lock race and gets a 409.
func (s *RequestService) ConvertToJob(
	ctx context.Context,
	p models.Principal,
	id uuid.UUID,
	req *dtos.ConvertToJobRequest,
) (*dtos.ConvertToJobResponse, error) {
	sr, prop, err := s.loadVisible(ctx, p, id)
	if err != nil {
		return nil, err
	}

	if p.Role != models.RolePropertyManager || prop.ManagerID != p.ID {
		return nil, utils.NewForbiddenError("Only the property manager can convert a service request to a job")
	}
	if sr.Status == models.RequestStatusConvertedToJob {
		return nil, utils.NewConflictError(http.StatusConflict, "Service request has already been converted to a job")
	}
	if !policy.CanTransition(sr.Status, models.RequestStatusConvertedToJob) {
		return nil, utils.NewConflictError(http.StatusBadRequest,
			fmt.Sprintf("Cannot convert a service request in status %s", sr.Status))
	}

	status := models.JobStatusOpen
	if req.AssignedToID != nil {
		status = models.JobStatusAssigned
	}
	job := &models.Job{
		ID:               uuid.New(),
		ServiceRequestID: sr.ID,
		PropertyID:       sr.PropertyID,
		UnitID:           sr.UnitID,
		Title:            sr.Title,
		Description:      sr.Description,
		Priority:         sr.Priority,
		Status:           status,
		AssignedToID:     req.AssignedToID,
		ScheduledDate:    req.ScheduledDate,
		EstimatedCost:    req.EstimatedCost,
	}

	updated, err := s.srRepo.ConvertToJobAtomic(ctx, sr.ID, job, time.Now().UTC())
	if err != nil {
		if errors.Is(err, utils.ErrAlreadyConverted) {
			return nil, utils.NewConflictError(http.StatusConflict, "Service request has already been converted to a job")
		}
		return nil, utils.NewInternalError(err)
	}

	s.dispatcher.Dispatch(ctx, policy.ConversionIntents(updated, job))

	return &dtos.ConvertToJobResponse{Job: job, ServiceRequest: updated}, nil
}

func (s *RequestService) Delete(ctx context.Context, p models.Principal, id uuid.UUID) error {
	sr, prop, err := s.loadVisible(ctx, p, id)
	if err != nil {
		return err
	}

	rel, _, err := s.relationshipFor(ctx, p, sr, prop)
	if err != nil {
		return err
	}
	if !policy.CanDelete(p, rel, sr) {
		return utils.NewForbiddenError("You are not allowed to delete this service request")
	}

	// A converted request is anchored by its job row forever.
	if sr.Status == models.RequestStatusConvertedToJob {
		return utils.NewConflictError(http.StatusBadRequest, "Cannot delete a service request that has been converted to a job")
	}
	hasJob, err := s.jobRepo.ExistsForRequest(ctx, sr.ID)
	if err != nil {
		return utils.NewInternalError(err)
	}
	if hasJob {
		return utils.NewConflictError(http.StatusBadRequest, "Cannot delete a service request that has been converted to a job")
	}

	if err := s.srRepo.Delete(ctx, sr.ID); err != nil {
		return utils.NewInternalError(err)
	}
	return nil
}

/* ------------------------------------------------------------------
   Helpers
------------------------------------------------------------------ */

func requestedFields(req *dtos.UpdateServiceRequestRequest) []policy.Field {
	var out []policy.Field
	if req.Title != nil {
		out = append(out, policy.FieldTitle)
	}
	if req.Description != nil {
		out = append(out, policy.FieldDescription)
	}
	if req.Priority != nil {
		out = append(out, policy.FieldPriority)
	}
	if req.Status != nil {
		out = append(out, policy.FieldStatus)
	}
	if req.ReviewNotes != nil {
		out = append(out, policy.FieldReviewNotes)
	}
	return out
}

func isValidStatus(s string) bool {
	switch models.RequestStatusType(s) {
	case models.RequestStatusSubmitted,
		models.RequestStatusUnderReview,
		models.RequestStatusApproved,
		models.RequestStatusRejected,
		models.RequestStatusConvertedToJob,
		models.RequestStatusCompleted:
		return true
	}
	return false
}

func isValidPriority(s string) bool {
	switch models.RequestPriorityType(s) {
	case models.RequestPriorityLow,
		models.RequestPriorityMedium,
		models.RequestPriorityHigh,
		models.RequestPriorityUrgent:
		return true
	}
	return false
}

// lifecycleError maps state-machine errors onto the API error contract:
// terminal-state and invalid-edge violations are client errors, reported
// with the conflict code and a 400 status.
func lifecycleError(err error) error {
	var invalid *policy.InvalidTransitionError
	switch {
	case errors.Is(err, policy.ErrRequestFrozen):
		return utils.NewConflictError(http.StatusBadRequest, "Cannot update a service request that has been converted to a job")
	case errors.As(err, &invalid):
		return utils.NewConflictError(http.StatusBadRequest,
			fmt.Sprintf("Cannot transition service request from %s to %s", invalid.From, invalid.To))
	default:
		return utils.NewInternalError(err)
	}
}
