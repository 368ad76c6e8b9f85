package services_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v4"
	"github.com/stretchr/testify/require"

	"github.com/dwellos/requests-service/internal/models"
	"github.com/dwellos/requests-service/internal/services"
)

type fakeNotificationRepo struct {
	mu            sync.Mutex
	notifications map[uuid.UUID]*models.Notification
}

func newFakeNotificationRepo() *fakeNotificationRepo {
	return &fakeNotificationRepo{notifications: map[uuid.UUID]*models.Notification{}}
}

func (f *fakeNotificationRepo) Create(_ context.Context, n *models.Notification) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	cp := *n
	cp.CreatedAt = time.Now().UTC()
	f.notifications[n.ID] = &cp
	return nil
}

func (f *fakeNotificationRepo) ListByUserID(_ context.Context, userID uuid.UUID, limit int) ([]*models.Notification, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []*models.Notification
	for _, n := range f.notifications {
		if n.UserID == userID && len(out) < limit {
			cp := *n
			out = append(out, &cp)
		}
	}
	return out, nil
}

func (f *fakeNotificationRepo) MarkRead(_ context.Context, id, userID uuid.UUID) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	n, ok := f.notifications[id]
	if !ok || n.UserID != userID {
		return pgx.ErrNoRows
	}
	if n.ReadAt == nil {
		now := time.Now().UTC()
		n.ReadAt = &now
	}
	return nil
}

func (f *fakeNotificationRepo) DeleteReadBefore(_ context.Context, cutoff time.Time) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var deleted int64
	for id, n := range f.notifications {
		if n.ReadAt != nil && n.CreatedAt.Before(cutoff) {
			delete(f.notifications, id)
			deleted++
		}
	}
	return deleted, nil
}

func TestRemindStaleSubmitted(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	stale := env.createTenantRequest(t)
	fresh := env.createTenantRequest(t)

	// Age the first request past the reminder cutoff.
	env.reqs.mu.Lock()
	env.reqs.requests[stale.ID].CreatedAt = time.Now().UTC().Add(-48 * time.Hour)
	env.reqs.mu.Unlock()

	notifRepo := newFakeNotificationRepo()
	ms := services.NewMaintenanceService(env.reqs, env.props, notifRepo, env.disp)

	require.NoError(t, ms.RemindStaleSubmitted(ctx))

	intents := env.disp.all()
	require.Len(t, intents, 1)
	require.Equal(t, env.manager.ID, intents[0].UserID)
	require.Equal(t, models.NotificationRequestReminder, intents[0].Type)
	require.Equal(t, stale.ID, intents[0].EntityID)
	require.NotEqual(t, fresh.ID, intents[0].EntityID)
}

func TestRemindStaleSubmitted_SkipsReviewedRequests(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	sr := env.createTenantRequest(t)
	env.reqs.mu.Lock()
	env.reqs.requests[sr.ID].CreatedAt = time.Now().UTC().Add(-48 * time.Hour)
	env.reqs.requests[sr.ID].Status = models.RequestStatusUnderReview
	env.reqs.mu.Unlock()

	notifRepo := newFakeNotificationRepo()
	ms := services.NewMaintenanceService(env.reqs, env.props, notifRepo, env.disp)

	require.NoError(t, ms.RemindStaleSubmitted(ctx))
	require.Empty(t, env.disp.all())
}

func TestPurgeReadNotifications(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	notifRepo := newFakeNotificationRepo()
	userID := uuid.New()

	old := &models.Notification{ID: uuid.New(), UserID: userID, Type: models.NotificationServiceRequestUpdate}
	require.NoError(t, notifRepo.Create(ctx, old))
	require.NoError(t, notifRepo.MarkRead(ctx, old.ID, userID))
	notifRepo.mu.Lock()
	notifRepo.notifications[old.ID].CreatedAt = time.Now().UTC().Add(-120 * 24 * time.Hour)
	notifRepo.mu.Unlock()

	unread := &models.Notification{ID: uuid.New(), UserID: userID, Type: models.NotificationServiceRequestUpdate}
	require.NoError(t, notifRepo.Create(ctx, unread))

	ms := services.NewMaintenanceService(env.reqs, env.props, notifRepo, env.disp)
	require.NoError(t, ms.PurgeReadNotifications(ctx))

	remaining, err := notifRepo.ListByUserID(ctx, userID, 100)
	require.NoError(t, err)
	require.Len(t, remaining, 1)
	require.Equal(t, unread.ID, remaining[0].ID)
}
