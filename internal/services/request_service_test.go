package services_test

import (
	"context"
	"net/http"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgconn"
	"github.com/stretchr/testify/require"

	"github.com/dwellos/requests-service/internal/dtos"
	"github.com/dwellos/requests-service/internal/models"
	"github.com/dwellos/requests-service/internal/policy"
	"github.com/dwellos/requests-service/internal/repositories"
	"github.com/dwellos/requests-service/internal/services"
	"github.com/dwellos/requests-service/internal/utils"
)

/* ------------------------------------------------------------------
   In-memory fakes
------------------------------------------------------------------ */

type fakePropertyRepo struct {
	mu     sync.Mutex
	props  map[uuid.UUID]*models.Property
	owners map[uuid.UUID][]uuid.UUID
}

func newFakePropertyRepo() *fakePropertyRepo {
	return &fakePropertyRepo{
		props:  map[uuid.UUID]*models.Property{},
		owners: map[uuid.UUID][]uuid.UUID{},
	}
}

func (f *fakePropertyRepo) Create(_ context.Context, p *models.Property) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	cp := *p
	f.props[p.ID] = &cp
	return nil
}

func (f *fakePropertyRepo) GetByID(_ context.Context, id uuid.UUID) (*models.Property, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	p, ok := f.props[id]
	if !ok {
		return nil, nil
	}
	cp := *p
	return &cp, nil
}

func (f *fakePropertyRepo) ListByManagerID(_ context.Context, managerID uuid.UUID) ([]*models.Property, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []*models.Property
	for _, p := range f.props {
		if p.ManagerID == managerID {
			cp := *p
			out = append(out, &cp)
		}
	}
	return out, nil
}

func (f *fakePropertyRepo) AddOwner(_ context.Context, propertyID, ownerID uuid.UUID) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.owners[propertyID] = append(f.owners[propertyID], ownerID)
	return nil
}

func (f *fakePropertyRepo) ListOwnerIDs(_ context.Context, propertyID uuid.UUID) ([]uuid.UUID, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]uuid.UUID{}, f.owners[propertyID]...), nil
}

type fakeUnitRepo struct {
	mu        sync.Mutex
	units     map[uuid.UUID]*models.Unit
	tenancies map[uuid.UUID]map[uuid.UUID]bool // unitID -> tenantID -> active
}

func newFakeUnitRepo() *fakeUnitRepo {
	return &fakeUnitRepo{
		units:     map[uuid.UUID]*models.Unit{},
		tenancies: map[uuid.UUID]map[uuid.UUID]bool{},
	}
}

func (f *fakeUnitRepo) Create(_ context.Context, u *models.Unit) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	cp := *u
	f.units[u.ID] = &cp
	return nil
}

func (f *fakeUnitRepo) GetByID(_ context.Context, id uuid.UUID) (*models.Unit, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	u, ok := f.units[id]
	if !ok {
		return nil, nil
	}
	cp := *u
	return &cp, nil
}

func (f *fakeUnitRepo) ListByPropertyID(_ context.Context, propID uuid.UUID) ([]*models.Unit, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []*models.Unit
	for _, u := range f.units {
		if u.PropertyID == propID {
			cp := *u
			out = append(out, &cp)
		}
	}
	return out, nil
}

func (f *fakeUnitRepo) AssignTenant(_ context.Context, unitID, tenantID uuid.UUID, active bool) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.tenancies[unitID] == nil {
		f.tenancies[unitID] = map[uuid.UUID]bool{}
	}
	f.tenancies[unitID][tenantID] = active
	return nil
}

func (f *fakeUnitRepo) HasActiveTenancy(_ context.Context, unitID, tenantID uuid.UUID) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.tenancies[unitID][tenantID], nil
}

type fakeJobRepo struct {
	mu   sync.Mutex
	jobs map[uuid.UUID]*models.Job
}

func newFakeJobRepo() *fakeJobRepo {
	return &fakeJobRepo{jobs: map[uuid.UUID]*models.Job{}}
}

func (f *fakeJobRepo) GetByID(_ context.Context, id uuid.UUID) (*models.Job, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	j, ok := f.jobs[id]
	if !ok {
		return nil, nil
	}
	cp := *j
	return &cp, nil
}

func (f *fakeJobRepo) GetByServiceRequestID(_ context.Context, requestID uuid.UUID) (*models.Job, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, j := range f.jobs {
		if j.ServiceRequestID == requestID {
			cp := *j
			return &cp, nil
		}
	}
	return nil, nil
}

func (f *fakeJobRepo) ExistsForRequest(_ context.Context, requestID uuid.UUID) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, j := range f.jobs {
		if j.ServiceRequestID == requestID {
			return true, nil
		}
	}
	return false, nil
}

func (f *fakeJobRepo) ListActivePropertyIDsByAssignee(_ context.Context, technicianID uuid.UUID) ([]uuid.UUID, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	seen := map[uuid.UUID]bool{}
	var out []uuid.UUID
	for _, j := range f.jobs {
		if j.AssignedToID == nil || *j.AssignedToID != technicianID {
			continue
		}
		switch j.Status {
		case models.JobStatusOpen, models.JobStatusAssigned, models.JobStatusInProgress:
			if !seen[j.PropertyID] {
				seen[j.PropertyID] = true
				out = append(out, j.PropertyID)
			}
		}
	}
	return out, nil
}

func (f *fakeJobRepo) countForRequest(requestID uuid.UUID) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := 0
	for _, j := range f.jobs {
		if j.ServiceRequestID == requestID {
			n++
		}
	}
	return n
}

type fakeRequestRepo struct {
	mu       sync.Mutex
	requests map[uuid.UUID]*models.ServiceRequest
	propRepo *fakePropertyRepo
	jobRepo  *fakeJobRepo
}

func newFakeRequestRepo(propRepo *fakePropertyRepo, jobRepo *fakeJobRepo) *fakeRequestRepo {
	return &fakeRequestRepo{
		requests: map[uuid.UUID]*models.ServiceRequest{},
		propRepo: propRepo,
		jobRepo:  jobRepo,
	}
}

func (f *fakeRequestRepo) Create(_ context.Context, r *models.ServiceRequest) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	cp := *r
	cp.CreatedAt = time.Now().UTC()
	cp.UpdatedAt = cp.CreatedAt
	f.requests[r.ID] = &cp
	return nil
}

func (f *fakeRequestRepo) GetByID(_ context.Context, id uuid.UUID) (*models.ServiceRequest, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	r, ok := f.requests[id]
	if !ok {
		return nil, nil
	}
	cp := *r
	return &cp, nil
}

func (f *fakeRequestRepo) ListByScope(
	ctx context.Context,
	scope policy.RequestScope,
	filter repositories.ServiceRequestFilter,
) ([]*models.ServiceRequest, error) {
	f.mu.Lock()
	snapshot := make([]*models.ServiceRequest, 0, len(f.requests))
	for _, r := range f.requests {
		cp := *r
		snapshot = append(snapshot, &cp)
	}
	f.mu.Unlock()

	var out []*models.ServiceRequest
	for _, r := range snapshot {
		prop, _ := f.propRepo.GetByID(ctx, r.PropertyID)
		ownerIDs, _ := f.propRepo.ListOwnerIDs(ctx, r.PropertyID)
		if !scope.Allows(r, prop, ownerIDs) {
			continue
		}
		if filter.Status != nil && r.Status != *filter.Status {
			continue
		}
		if filter.Category != nil && r.Category != *filter.Category {
			continue
		}
		if filter.PropertyID != nil && r.PropertyID != *filter.PropertyID {
			continue
		}
		if filter.Priority != nil && r.Priority != *filter.Priority {
			continue
		}
		out = append(out, r)
	}
	return out, nil
}

func (f *fakeRequestRepo) ListSubmittedBefore(_ context.Context, cutoff time.Time) ([]*models.ServiceRequest, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []*models.ServiceRequest
	for _, r := range f.requests {
		if r.Status == models.RequestStatusSubmitted && r.CreatedAt.Before(cutoff) {
			cp := *r
			out = append(out, &cp)
		}
	}
	return out, nil
}

func (f *fakeRequestRepo) Update(_ context.Context, r *models.ServiceRequest) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	cp := *r
	cp.UpdatedAt = time.Now().UTC()
	f.requests[r.ID] = &cp
	return nil
}

func (f *fakeRequestRepo) UpdateIfVersion(_ context.Context, r *models.ServiceRequest, expected int64) (pgconn.CommandTag, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	cur, ok := f.requests[r.ID]
	if !ok || cur.RowVersion != expected {
		return pgconn.CommandTag("UPDATE 0"), nil
	}
	cp := *r
	cp.RowVersion = expected + 1
	cp.UpdatedAt = time.Now().UTC()
	f.requests[r.ID] = &cp
	return pgconn.CommandTag("UPDATE 1"), nil
}

func (f *fakeRequestRepo) UpdateWithRetry(ctx context.Context, id uuid.UUID, mutate func(*models.ServiceRequest) error) error {
	for attempt := 0; attempt < 3; attempt++ {
		cur, err := f.GetByID(ctx, id)
		if err != nil {
			return err
		}
		if cur == nil {
			return utils.ErrNoRowsUpdated
		}
		expected := cur.RowVersion
		if err := mutate(cur); err != nil {
			return err
		}
		tag, err := f.UpdateIfVersion(ctx, cur, expected)
		if err != nil {
			return err
		}
		if tag.RowsAffected() == 1 {
			return nil
		}
	}
	return utils.ErrRowVersionConflict
}

func (f *fakeRequestRepo) Delete(_ context.Context, id uuid.UUID) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.requests, id)
	return nil
}

func (f *fakeRequestRepo) ConvertToJobAtomic(
	_ context.Context,
	requestID uuid.UUID,
	job *models.Job,
	now time.Time,
) (*models.ServiceRequest, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	cur, ok := f.requests[requestID]
	if !ok {
		return nil, utils.ErrNoRowsUpdated
	}
	if cur.Status == models.RequestStatusConvertedToJob {
		return nil, utils.ErrAlreadyConverted
	}

	f.jobRepo.mu.Lock()
	jcp := *job
	jcp.CreatedAt = now
	f.jobRepo.jobs[job.ID] = &jcp
	f.jobRepo.mu.Unlock()

	cur.Status = models.RequestStatusConvertedToJob
	cur.ReviewedAt = &now
	cur.RowVersion++
	cur.UpdatedAt = now

	cp := *cur
	return &cp, nil
}

type fakeDispatcher struct {
	mu      sync.Mutex
	intents []policy.NotificationIntent
}

func (f *fakeDispatcher) Dispatch(_ context.Context, intents []policy.NotificationIntent) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.intents = append(f.intents, intents...)
}

func (f *fakeDispatcher) all() []policy.NotificationIntent {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]policy.NotificationIntent{}, f.intents...)
}

/* ------------------------------------------------------------------
   Fixture
------------------------------------------------------------------ */

type testEnv struct {
	svc   *services.RequestService
	props *fakePropertyRepo
	units *fakeUnitRepo
	jobs  *fakeJobRepo
	reqs  *fakeRequestRepo
	disp  *fakeDispatcher

	manager      models.Principal
	otherManager models.Principal
	owner        models.Principal
	tenant       models.Principal
	otherTenant  models.Principal
	technician   models.Principal

	property      *models.Property
	otherProperty *models.Property
	unit          *models.Unit
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	ctx := context.Background()

	env := &testEnv{
		props: newFakePropertyRepo(),
		units: newFakeUnitRepo(),
		jobs:  newFakeJobRepo(),
		disp:  &fakeDispatcher{},

		manager:      models.Principal{ID: uuid.New(), Role: models.RolePropertyManager},
		otherManager: models.Principal{ID: uuid.New(), Role: models.RolePropertyManager},
		owner:        models.Principal{ID: uuid.New(), Role: models.RoleOwner},
		tenant:       models.Principal{ID: uuid.New(), Role: models.RoleTenant},
		otherTenant:  models.Principal{ID: uuid.New(), Role: models.RoleTenant},
		technician:   models.Principal{ID: uuid.New(), Role: models.RoleTechnician},
	}
	env.reqs = newFakeRequestRepo(env.props, env.jobs)
	env.svc = services.NewRequestService(env.reqs, env.props, env.units, env.jobs, env.disp)

	env.property = &models.Property{
		ID:           uuid.New(),
		ManagerID:    env.manager.ID,
		PropertyName: "Maple Court",
		Address:      "12 Maple St",
		City:         "Huntsville",
		State:        "AL",
		ZipCode:      "35806",
	}
	env.otherProperty = &models.Property{
		ID:           uuid.New(),
		ManagerID:    env.otherManager.ID,
		PropertyName: "Oak Row",
		Address:      "9 Oak Ave",
		City:         "Madison",
		State:        "AL",
		ZipCode:      "35758",
	}
	require.NoError(t, env.props.Create(ctx, env.property))
	require.NoError(t, env.props.Create(ctx, env.otherProperty))
	require.NoError(t, env.props.AddOwner(ctx, env.property.ID, env.owner.ID))

	env.unit = &models.Unit{ID: uuid.New(), PropertyID: env.property.ID, UnitNumber: "101"}
	require.NoError(t, env.units.Create(ctx, env.unit))
	require.NoError(t, env.units.AssignTenant(ctx, env.unit.ID, env.tenant.ID, true))

	return env
}

func (env *testEnv) createTenantRequest(t *testing.T) *models.ServiceRequest {
	t.Helper()
	sr, err := env.svc.Create(context.Background(), env.tenant, &dtos.CreateServiceRequestRequest{
		Title:       "Leaking faucet",
		Description: "Kitchen faucet drips constantly",
		Category:    "PLUMBING",
		Priority:    "HIGH",
		PropertyID:  env.property.ID,
		UnitID:      &env.unit.ID,
	})
	require.NoError(t, err)
	return sr
}

func requireAppError(t *testing.T, err error, status int, code string) {
	t.Helper()
	require.Error(t, err)
	appErr, ok := err.(*utils.AppError)
	require.True(t, ok, "expected *utils.AppError, got %T: %v", err, err)
	require.Equal(t, status, appErr.StatusCode)
	require.Equal(t, code, appErr.Code)
}

/* ------------------------------------------------------------------
   Create
------------------------------------------------------------------ */

func TestCreate_TenantWithActiveTenancy(t *testing.T) {
	env := newTestEnv(t)

	sr := env.createTenantRequest(t)
	require.Equal(t, models.RequestStatusSubmitted, sr.Status)
	require.Equal(t, models.RequestPriorityHigh, sr.Priority)
	require.Equal(t, env.tenant.ID, sr.RequestedByID)
	require.Equal(t, int64(1), sr.RowVersion)
}

func TestCreate_TenantWithoutUnitID(t *testing.T) {
	env := newTestEnv(t)

	_, err := env.svc.Create(context.Background(), env.tenant, &dtos.CreateServiceRequestRequest{
		Title:       "Broken window",
		Description: "Bedroom window cracked",
		Category:    "GENERAL",
		PropertyID:  env.property.ID,
	})
	requireAppError(t, err, http.StatusBadRequest, utils.ErrCodeValidation)
}

func TestCreate_TenantWithoutTenancy(t *testing.T) {
	env := newTestEnv(t)

	_, err := env.svc.Create(context.Background(), env.otherTenant, &dtos.CreateServiceRequestRequest{
		Title:       "Broken window",
		Description: "Bedroom window cracked",
		Category:    "GENERAL",
		PropertyID:  env.property.ID,
		UnitID:      &env.unit.ID,
	})
	requireAppError(t, err, http.StatusForbidden, utils.ErrCodeForbidden)
}

func TestCreate_TenantWithInactiveTenancy(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	// A past tenant: tenancy row exists but is no longer active.
	require.NoError(t, env.units.AssignTenant(ctx, env.unit.ID, env.otherTenant.ID, false))

	_, err := env.svc.Create(ctx, env.otherTenant, &dtos.CreateServiceRequestRequest{
		Title:       "Dishwasher broken",
		Description: "Does not drain",
		Category:    "APPLIANCE",
		PropertyID:  env.property.ID,
		UnitID:      &env.unit.ID,
	})
	requireAppError(t, err, http.StatusForbidden, utils.ErrCodeForbidden)
}

func TestCreate_ManagerOnManagedProperty(t *testing.T) {
	env := newTestEnv(t)

	sr, err := env.svc.Create(context.Background(), env.manager, &dtos.CreateServiceRequestRequest{
		Title:       "Hallway light out",
		Description: "Second floor hallway light needs replacement",
		Category:    "ELECTRICAL",
		PropertyID:  env.property.ID,
	})
	require.NoError(t, err)
	require.Equal(t, models.RequestPriorityMedium, sr.Priority) // default
	require.Equal(t, env.manager.ID, sr.RequestedByID)
}

func TestCreate_ManagerOnForeignProperty(t *testing.T) {
	env := newTestEnv(t)

	_, err := env.svc.Create(context.Background(), env.manager, &dtos.CreateServiceRequestRequest{
		Title:       "Hallway light out",
		Description: "Needs replacement",
		Category:    "ELECTRICAL",
		PropertyID:  env.otherProperty.ID,
	})
	requireAppError(t, err, http.StatusForbidden, utils.ErrCodeForbidden)
}

func TestCreate_DisallowedRoles(t *testing.T) {
	env := newTestEnv(t)

	for _, p := range []models.Principal{env.owner, env.technician} {
		_, err := env.svc.Create(context.Background(), p, &dtos.CreateServiceRequestRequest{
			Title:       "Test",
			Description: "Test",
			Category:    "GENERAL",
			PropertyID:  env.property.ID,
		})
		requireAppError(t, err, http.StatusForbidden, utils.ErrCodeForbidden)
	}
}

/* ------------------------------------------------------------------
   Read scoping
------------------------------------------------------------------ */

func TestList_ScopesByRole(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	mine := env.createTenantRequest(t)

	// A request on the other manager's property, invisible to everyone in
	// the main fixture.
	foreign := &models.ServiceRequest{
		ID:            uuid.New(),
		Title:         "Paint peeling",
		Description:   "Lobby wall",
		Category:      "GENERAL",
		Priority:      models.RequestPriorityLow,
		PropertyID:    env.otherProperty.ID,
		RequestedByID: env.otherTenant.ID,
		Status:        models.RequestStatusSubmitted,
	}
	foreign.RowVersion = 1
	require.NoError(t, env.reqs.Create(ctx, foreign))

	cases := []struct {
		name      string
		principal models.Principal
		wantIDs   []uuid.UUID
	}{
		{"manager sees managed property", env.manager, []uuid.UUID{mine.ID}},
		{"owner sees owned property", env.owner, []uuid.UUID{mine.ID}},
		{"tenant sees own submissions", env.tenant, []uuid.UUID{mine.ID}},
		{"technician with no jobs sees nothing", env.technician, nil},
		{"other tenant sees own submissions only", env.otherTenant, []uuid.UUID{foreign.ID}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			resp, err := env.svc.List(ctx, tc.principal, repositories.ServiceRequestFilter{})
			require.NoError(t, err)
			var got []uuid.UUID
			for _, r := range resp.Results {
				got = append(got, r.ID)
			}
			require.ElementsMatch(t, tc.wantIDs, got)
			require.Equal(t, len(tc.wantIDs), resp.Total)
		})
	}
}

func TestList_TechnicianScopeFollowsActiveJobs(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	sr := env.createTenantRequest(t)

	job := &models.Job{
		ID:               uuid.New(),
		ServiceRequestID: uuid.New(), // unrelated request
		PropertyID:       env.property.ID,
		Title:            "Fix lock",
		Status:           models.JobStatusAssigned,
		AssignedToID:     &env.technician.ID,
	}
	env.jobs.jobs[job.ID] = job

	resp, err := env.svc.List(ctx, env.technician, repositories.ServiceRequestFilter{})
	require.NoError(t, err)
	require.Equal(t, 1, resp.Total)
	require.Equal(t, sr.ID, resp.Results[0].ID)

	// Completing the job revokes standing on the next evaluation.
	job.Status = models.JobStatusCompleted
	resp, err = env.svc.List(ctx, env.technician, repositories.ServiceRequestFilter{})
	require.NoError(t, err)
	require.Equal(t, 0, resp.Total)
}

func TestGet_OutOfScopeIsForbidden(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	sr := env.createTenantRequest(t)

	got, err := env.svc.Get(ctx, env.tenant, sr.ID)
	require.NoError(t, err)
	require.Equal(t, sr.ID, got.ID)

	_, err = env.svc.Get(ctx, env.otherTenant, sr.ID)
	requireAppError(t, err, http.StatusForbidden, utils.ErrCodeForbidden)

	_, err = env.svc.Get(ctx, env.otherManager, sr.ID)
	requireAppError(t, err, http.StatusForbidden, utils.ErrCodeForbidden)
}

func TestGet_MissingRequestIs404(t *testing.T) {
	env := newTestEnv(t)

	_, err := env.svc.Get(context.Background(), env.manager, uuid.New())
	requireAppError(t, err, http.StatusNotFound, utils.ErrCodeNotFound)
}

/* ------------------------------------------------------------------
   Update: field permissions
------------------------------------------------------------------ */

func TestUpdate_ManagerTransitionsStatus(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	sr := env.createTenantRequest(t)

	updated, err := env.svc.Update(ctx, env.manager, sr.ID, &dtos.UpdateServiceRequestRequest{
		Status:      utils.Ptr("UNDER_REVIEW"),
		ReviewNotes: utils.Ptr("Scheduling a plumber"),
	})
	require.NoError(t, err)
	require.Equal(t, models.RequestStatusUnderReview, updated.Status)
	require.NotNil(t, updated.ReviewedAt)
	require.Equal(t, "Scheduling a plumber", *updated.ReviewNotes)
	require.Equal(t, int64(2), updated.RowVersion)

	intents := env.disp.all()
	require.Len(t, intents, 1)
	require.Equal(t, env.tenant.ID, intents[0].UserID)
	require.Equal(t, models.NotificationServiceRequestUpdate, intents[0].Type)
	require.Equal(t, "Your service request is now under review.", intents[0].Message)
}

func TestUpdate_TenantEditsOwnSubmittedRequest(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	sr := env.createTenantRequest(t)

	updated, err := env.svc.Update(ctx, env.tenant, sr.ID, &dtos.UpdateServiceRequestRequest{
		Title: utils.Ptr("Leaking faucet in kitchen"),
	})
	require.NoError(t, err)
	require.Equal(t, "Leaking faucet in kitchen", updated.Title)
	require.Empty(t, env.disp.all())
}

func TestUpdate_TenantCannotTouchPriority(t *testing.T) {
	env := newTestEnv(t)

	sr := env.createTenantRequest(t)

	// All-or-nothing: the allowed title edit must not land because the
	// payload also carries a disallowed field.
	_, err := env.svc.Update(context.Background(), env.tenant, sr.ID, &dtos.UpdateServiceRequestRequest{
		Title:    utils.Ptr("New title"),
		Priority: utils.Ptr("URGENT"),
	})
	requireAppError(t, err, http.StatusForbidden, utils.ErrCodeForbidden)

	cur, getErr := env.svc.Get(context.Background(), env.tenant, sr.ID)
	require.NoError(t, getErr)
	require.Equal(t, "Leaking faucet", cur.Title)
	require.Equal(t, models.RequestPriorityHigh, cur.Priority)
}

func TestUpdate_TenantCannotTransitionStatus(t *testing.T) {
	env := newTestEnv(t)

	sr := env.createTenantRequest(t)

	_, err := env.svc.Update(context.Background(), env.tenant, sr.ID, &dtos.UpdateServiceRequestRequest{
		Status: utils.Ptr("APPROVED"),
	})
	requireAppError(t, err, http.StatusForbidden, utils.ErrCodeForbidden)
}

func TestUpdate_RepeatedPayloadIsStable(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	sr := env.createTenantRequest(t)
	payload := &dtos.UpdateServiceRequestRequest{Title: utils.Ptr("Leaking faucet, again")}

	first, err := env.svc.Update(ctx, env.tenant, sr.ID, payload)
	require.NoError(t, err)
	second, err := env.svc.Update(ctx, env.tenant, sr.ID, payload)
	require.NoError(t, err)

	require.Equal(t, first.Title, second.Title)
	require.Equal(t, first.Status, second.Status)
	require.Equal(t, first.ReviewedAt, second.ReviewedAt)
}

func TestUpdate_TenantLosesEditAfterReview(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	sr := env.createTenantRequest(t)

	_, err := env.svc.Update(ctx, env.manager, sr.ID, &dtos.UpdateServiceRequestRequest{
		Status: utils.Ptr("UNDER_REVIEW"),
	})
	require.NoError(t, err)

	_, err = env.svc.Update(ctx, env.tenant, sr.ID, &dtos.UpdateServiceRequestRequest{
		Title: utils.Ptr("Changed my mind"),
	})
	requireAppError(t, err, http.StatusForbidden, utils.ErrCodeForbidden)
}

func TestUpdate_OwnerReviewFieldsOnly(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	sr := env.createTenantRequest(t)

	updated, err := env.svc.Update(ctx, env.owner, sr.ID, &dtos.UpdateServiceRequestRequest{
		Status:      utils.Ptr("APPROVED"),
		ReviewNotes: utils.Ptr("Go ahead"),
	})
	require.NoError(t, err)
	require.Equal(t, models.RequestStatusApproved, updated.Status)

	_, err = env.svc.Update(ctx, env.owner, sr.ID, &dtos.UpdateServiceRequestRequest{
		Title: utils.Ptr("Owner rewrite"),
	})
	requireAppError(t, err, http.StatusForbidden, utils.ErrCodeForbidden)
}

func TestUpdate_EmptyPayloadIsNoOp(t *testing.T) {
	env := newTestEnv(t)

	sr := env.createTenantRequest(t)

	updated, err := env.svc.Update(context.Background(), env.manager, sr.ID, &dtos.UpdateServiceRequestRequest{})
	require.NoError(t, err)
	require.Equal(t, sr.RowVersion, updated.RowVersion)
	require.Empty(t, env.disp.all())
}

func TestUpdate_SameStatusIsIdempotent(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	sr := env.createTenantRequest(t)

	_, err := env.svc.Update(ctx, env.manager, sr.ID, &dtos.UpdateServiceRequestRequest{
		Status: utils.Ptr("UNDER_REVIEW"),
	})
	require.NoError(t, err)
	first := env.disp.all()

	updated, err := env.svc.Update(ctx, env.manager, sr.ID, &dtos.UpdateServiceRequestRequest{
		Status: utils.Ptr("UNDER_REVIEW"),
	})
	require.NoError(t, err)
	require.Equal(t, models.RequestStatusUnderReview, updated.Status)
	require.Len(t, env.disp.all(), len(first), "no duplicate notification for a same-status write")
}

/* ------------------------------------------------------------------
   Update: lifecycle
------------------------------------------------------------------ */

func TestUpdate_InvalidTransition(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	sr := env.createTenantRequest(t)

	_, err := env.svc.Update(ctx, env.manager, sr.ID, &dtos.UpdateServiceRequestRequest{
		Status: utils.Ptr("REJECTED"),
	})
	require.NoError(t, err)

	// REJECTED is terminal: no re-open path.
	_, err = env.svc.Update(ctx, env.manager, sr.ID, &dtos.UpdateServiceRequestRequest{
		Status: utils.Ptr("UNDER_REVIEW"),
	})
	requireAppError(t, err, http.StatusBadRequest, utils.ErrCodeConflict)
}

func TestUpdate_UnknownStatusValue(t *testing.T) {
	env := newTestEnv(t)

	sr := env.createTenantRequest(t)

	_, err := env.svc.Update(context.Background(), env.manager, sr.ID, &dtos.UpdateServiceRequestRequest{
		Status: utils.Ptr("ESCALATED"),
	})
	requireAppError(t, err, http.StatusBadRequest, utils.ErrCodeValidation)
}

func TestUpdate_FrozenAfterConversion(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	sr := env.createTenantRequest(t)
	_, err := env.svc.ConvertToJob(ctx, env.manager, sr.ID, &dtos.ConvertToJobRequest{})
	require.NoError(t, err)

	_, err = env.svc.Update(ctx, env.manager, sr.ID, &dtos.UpdateServiceRequestRequest{
		ReviewNotes: utils.Ptr("too late"),
	})
	requireAppError(t, err, http.StatusForbidden, utils.ErrCodeForbidden)
}

/* ------------------------------------------------------------------
   Convert to job
------------------------------------------------------------------ */

func TestConvert_SeedsJobFromRequest(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	sr := env.createTenantRequest(t)

	sched := time.Now().UTC().Add(48 * time.Hour)
	resp, err := env.svc.ConvertToJob(ctx, env.manager, sr.ID, &dtos.ConvertToJobRequest{
		AssignedToID:  &env.technician.ID,
		ScheduledDate: &sched,
		EstimatedCost: utils.Ptr(250.0),
	})
	require.NoError(t, err)

	require.Equal(t, sr.ID, resp.Job.ServiceRequestID)
	require.Equal(t, sr.Title, resp.Job.Title)
	require.Equal(t, sr.Priority, resp.Job.Priority)
	require.Equal(t, models.JobStatusAssigned, resp.Job.Status)
	require.Equal(t, models.RequestStatusConvertedToJob, resp.ServiceRequest.Status)
	require.NotNil(t, resp.ServiceRequest.ReviewedAt)

	intents := env.disp.all()
	require.Len(t, intents, 2)
	require.Equal(t, env.tenant.ID, intents[0].UserID)
	require.Equal(t, models.NotificationJobCreated, intents[0].Type)
	require.Equal(t, env.technician.ID, intents[1].UserID)
	require.Equal(t, models.NotificationJobAssigned, intents[1].Type)
}

func TestConvert_UnassignedJobIsOpen(t *testing.T) {
	env := newTestEnv(t)

	sr := env.createTenantRequest(t)
	resp, err := env.svc.ConvertToJob(context.Background(), env.manager, sr.ID, &dtos.ConvertToJobRequest{})
	require.NoError(t, err)
	require.Equal(t, models.JobStatusOpen, resp.Job.Status)
	require.Len(t, env.disp.all(), 1)
}

func TestConvert_NonManagerForbidden(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	sr := env.createTenantRequest(t)

	for _, p := range []models.Principal{env.tenant, env.owner} {
		_, err := env.svc.ConvertToJob(ctx, p, sr.ID, &dtos.ConvertToJobRequest{})
		requireAppError(t, err, http.StatusForbidden, utils.ErrCodeForbidden)
	}
}

func TestConvert_TerminalStateRejected(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	sr := env.createTenantRequest(t)
	_, err := env.svc.Update(ctx, env.manager, sr.ID, &dtos.UpdateServiceRequestRequest{
		Status: utils.Ptr("REJECTED"),
	})
	require.NoError(t, err)

	_, err = env.svc.ConvertToJob(ctx, env.manager, sr.ID, &dtos.ConvertToJobRequest{})
	requireAppError(t, err, http.StatusBadRequest, utils.ErrCodeConflict)
	require.Equal(t, 0, env.jobs.countForRequest(sr.ID))
}

func TestConvert_SecondAttemptConflicts(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	sr := env.createTenantRequest(t)

	_, err := env.svc.ConvertToJob(ctx, env.manager, sr.ID, &dtos.ConvertToJobRequest{})
	require.NoError(t, err)

	_, err = env.svc.ConvertToJob(ctx, env.manager, sr.ID, &dtos.ConvertToJobRequest{})
	requireAppError(t, err, http.StatusConflict, utils.ErrCodeConflict)
	require.Equal(t, 1, env.jobs.countForRequest(sr.ID))
}

func TestConvert_ConcurrentRace(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	sr := env.createTenantRequest(t)

	var wg sync.WaitGroup
	errs := make([]error, 2)
	for i := 0; i < 2; i++ {
		i := i
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, errs[i] = env.svc.ConvertToJob(ctx, env.manager, sr.ID, &dtos.ConvertToJobRequest{})
		}()
	}
	wg.Wait()

	var okCount, conflictCount int
	for _, err := range errs {
		if err == nil {
			okCount++
			continue
		}
		appErr, ok := err.(*utils.AppError)
		require.True(t, ok)
		require.Equal(t, http.StatusConflict, appErr.StatusCode)
		conflictCount++
	}
	require.Equal(t, 1, okCount)
	require.Equal(t, 1, conflictCount)
	require.Equal(t, 1, env.jobs.countForRequest(sr.ID))
}

/* ------------------------------------------------------------------
   Delete
------------------------------------------------------------------ */

func TestDelete_TenantOwnSubmittedRequest(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	sr := env.createTenantRequest(t)
	require.NoError(t, env.svc.Delete(ctx, env.tenant, sr.ID))

	_, err := env.svc.Get(ctx, env.tenant, sr.ID)
	requireAppError(t, err, http.StatusNotFound, utils.ErrCodeNotFound)
}

func TestDelete_TenantAfterReviewForbidden(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	sr := env.createTenantRequest(t)
	_, err := env.svc.Update(ctx, env.manager, sr.ID, &dtos.UpdateServiceRequestRequest{
		Status: utils.Ptr("UNDER_REVIEW"),
	})
	require.NoError(t, err)

	err = env.svc.Delete(ctx, env.tenant, sr.ID)
	requireAppError(t, err, http.StatusForbidden, utils.ErrCodeForbidden)
}

func TestDelete_ManagerAnyLifecycleStage(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	sr := env.createTenantRequest(t)
	_, err := env.svc.Update(ctx, env.manager, sr.ID, &dtos.UpdateServiceRequestRequest{
		Status: utils.Ptr("REJECTED"),
	})
	require.NoError(t, err)

	require.NoError(t, env.svc.Delete(ctx, env.manager, sr.ID))
}

func TestDelete_ConvertedRequestConflicts(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	sr := env.createTenantRequest(t)
	_, err := env.svc.ConvertToJob(ctx, env.manager, sr.ID, &dtos.ConvertToJobRequest{})
	require.NoError(t, err)

	err = env.svc.Delete(ctx, env.manager, sr.ID)
	requireAppError(t, err, http.StatusBadRequest, utils.ErrCodeConflict)

	// Record survives.
	got, getErr := env.svc.Get(ctx, env.manager, sr.ID)
	require.NoError(t, getErr)
	require.Equal(t, models.RequestStatusConvertedToJob, got.Status)
}

func TestDelete_TechnicianForbidden(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	sr := env.createTenantRequest(t)

	job := &models.Job{
		ID:           uuid.New(),
		PropertyID:   env.property.ID,
		Status:       models.JobStatusAssigned,
		AssignedToID: &env.technician.ID,
	}
	env.jobs.jobs[job.ID] = job

	err := env.svc.Delete(ctx, env.technician, sr.ID)
	requireAppError(t, err, http.StatusForbidden, utils.ErrCodeForbidden)
}
