package repositories

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v4"

	"github.com/dwellos/requests-service/internal/models"
)

type NotificationRepository interface {
	Create(ctx context.Context, n *models.Notification) error
	ListByUserID(ctx context.Context, userID uuid.UUID, limit int) ([]*models.Notification, error)

	// MarkRead sets read_at for the user's notification. Returns
	// pgx.ErrNoRows when the notification does not exist or belongs to
	// someone else.
	MarkRead(ctx context.Context, id, userID uuid.UUID) error

	// DeleteReadBefore purges read notifications older than the cutoff.
	DeleteReadBefore(ctx context.Context, cutoff time.Time) (int64, error)
}

type notificationRepo struct {
	db DB
}

func NewNotificationRepository(db DB) NotificationRepository {
	return &notificationRepo{db: db}
}

func (r *notificationRepo) Create(ctx context.Context, n *models.Notification) error {
	_, err := r.db.Exec(ctx, `
        INSERT INTO notifications (
            id, user_id, type, title, message, entity_type, entity_id, read_at, created_at
        ) VALUES ($1,$2,$3,$4,$5,$6,$7,$8, NOW())
    `, n.ID, n.UserID, n.Type, n.Title, n.Message, n.EntityType, n.EntityID, n.ReadAt)
	return err
}

func (r *notificationRepo) ListByUserID(ctx context.Context, userID uuid.UUID, limit int) ([]*models.Notification, error) {
	rows, err := r.db.Query(ctx, `
        SELECT id, user_id, type, title, message, entity_type, entity_id, read_at, created_at
        FROM notifications
        WHERE user_id=$1
        ORDER BY created_at DESC
        LIMIT $2
    `, userID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*models.Notification
	for rows.Next() {
		var n models.Notification
		if err := rows.Scan(
			&n.ID, &n.UserID, &n.Type, &n.Title, &n.Message,
			&n.EntityType, &n.EntityID, &n.ReadAt, &n.CreatedAt,
		); err != nil {
			return nil, err
		}
		out = append(out, &n)
	}
	return out, rows.Err()
}

func (r *notificationRepo) MarkRead(ctx context.Context, id, userID uuid.UUID) error {
	tag, err := r.db.Exec(ctx, `
        UPDATE notifications SET read_at=COALESCE(read_at, NOW())
        WHERE id=$1 AND user_id=$2
    `, id, userID)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return pgx.ErrNoRows
	}
	return nil
}

func (r *notificationRepo) DeleteReadBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	tag, err := r.db.Exec(ctx, `
        DELETE FROM notifications WHERE read_at IS NOT NULL AND created_at < $1
    `, cutoff)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}
