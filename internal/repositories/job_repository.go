package repositories

import (
	"context"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v4"

	"github.com/dwellos/requests-service/internal/models"
)

type JobRepository interface {
	GetByID(ctx context.Context, id uuid.UUID) (*models.Job, error)
	GetByServiceRequestID(ctx context.Context, requestID uuid.UUID) (*models.Job, error)

	// ExistsForRequest reports whether any job is linked to the request.
	ExistsForRequest(ctx context.Context, requestID uuid.UUID) (bool, error)

	// ListActivePropertyIDsByAssignee returns the distinct property IDs
	// of jobs currently assigned to the technician in OPEN, ASSIGNED or
	// IN_PROGRESS status. Completed and canceled jobs grant no standing.
	ListActivePropertyIDsByAssignee(ctx context.Context, technicianID uuid.UUID) ([]uuid.UUID, error)
}

type jobRepo struct {
	db DB
}

func NewJobRepository(db DB) JobRepository {
	return &jobRepo{db: db}
}

func (r *jobRepo) GetByID(ctx context.Context, id uuid.UUID) (*models.Job, error) {
	row := r.db.QueryRow(ctx, baseSelectJob()+" WHERE id=$1", id)
	return scanJob(row)
}

func (r *jobRepo) GetByServiceRequestID(ctx context.Context, requestID uuid.UUID) (*models.Job, error) {
	row := r.db.QueryRow(ctx, baseSelectJob()+" WHERE service_request_id=$1", requestID)
	return scanJob(row)
}

func (r *jobRepo) ExistsForRequest(ctx context.Context, requestID uuid.UUID) (bool, error) {
	var exists bool
	err := r.db.QueryRow(ctx,
		`SELECT EXISTS (SELECT 1 FROM jobs WHERE service_request_id=$1)`, requestID,
	).Scan(&exists)
	return exists, err
}

func (r *jobRepo) ListActivePropertyIDsByAssignee(ctx context.Context, technicianID uuid.UUID) ([]uuid.UUID, error) {
	rows, err := r.db.Query(ctx, `
        SELECT DISTINCT property_id FROM jobs
        WHERE assigned_to_id=$1 AND status = ANY($2)
    `, technicianID, []string{
		string(models.JobStatusOpen),
		string(models.JobStatusAssigned),
		string(models.JobStatusInProgress),
	})
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []uuid.UUID
	for rows.Next() {
		var id uuid.UUID
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		out = append(out, id)
	}
	return out, rows.Err()
}

func baseSelectJob() string {
	return `
        SELECT
            id, service_request_id, property_id, unit_id,
            title, description, priority, status,
            assigned_to_id, scheduled_date, estimated_cost, created_at
        FROM jobs
    `
}

func scanJob(row pgx.Row) (*models.Job, error) {
	var j models.Job
	err := row.Scan(
		&j.ID,
		&j.ServiceRequestID,
		&j.PropertyID,
		&j.UnitID,
		&j.Title,
		&j.Description,
		&j.Priority,
		&j.Status,
		&j.AssignedToID,
		&j.ScheduledDate,
		&j.EstimatedCost,
		&j.CreatedAt,
	)
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, nil
		}
		return nil, err
	}
	return &j, nil
}
