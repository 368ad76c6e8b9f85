package repositories

import (
	"context"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgconn"
	"github.com/jackc/pgx/v4"

	"github.com/dwellos/requests-service/internal/models"
	"github.com/dwellos/requests-service/internal/policy"
	"github.com/dwellos/requests-service/internal/utils"
)

/* ------------------------------------------------------------------
   Public interface
------------------------------------------------------------------ */

// ServiceRequestFilter narrows a scoped listing. Nil fields are ignored.
type ServiceRequestFilter struct {
	Status     *models.RequestStatusType
	Category   *string
	PropertyID *uuid.UUID
	Priority   *models.RequestPriorityType
}

type ServiceRequestRepository interface {
	Create(ctx context.Context, r *models.ServiceRequest) error

	GetByID(ctx context.Context, id uuid.UUID) (*models.ServiceRequest, error)

	// ListByScope returns requests visible under the given read scope,
	// narrowed by filter, ordered by priority desc then created_at desc.
	ListByScope(ctx context.Context, scope policy.RequestScope, filter ServiceRequestFilter) ([]*models.ServiceRequest, error)

	// ListSubmittedBefore returns SUBMITTED requests created before the
	// cutoff, for the daily reminder digest.
	ListSubmittedBefore(ctx context.Context, cutoff time.Time) ([]*models.ServiceRequest, error)

	Update(ctx context.Context, r *models.ServiceRequest) error
	UpdateIfVersion(ctx context.Context, r *models.ServiceRequest, expected int64) (pgconn.CommandTag, error)
	UpdateWithRetry(ctx context.Context, id uuid.UUID, mutate func(*models.ServiceRequest) error) error
	Delete(ctx context.Context, id uuid.UUID) error

	// ConvertToJobAtomic inserts the job and flips the request to
	// CONVERTED_TO_JOB in one transaction. The request row is locked for
	// the duration; a request already converted yields
	// utils.ErrAlreadyConverted and no job row.
	ConvertToJobAtomic(ctx context.Context, requestID uuid.UUID, job *models.Job, now time.Time) (*models.ServiceRequest, error)
}

/* ------------------------------------------------------------------
   Implementation
------------------------------------------------------------------ */

type serviceRequestRepo struct {
	*BaseVersionedRepo[*models.ServiceRequest]
	db DB
}

func NewServiceRequestRepository(db DB) ServiceRequestRepository {
	r := &serviceRequestRepo{db: db}
	selectStmt := baseSelectRequest() + " WHERE sr.id=$1"
	r.BaseVersionedRepo = NewBaseRepo(db, selectStmt, scanRequest)
	return r
}

func (r *serviceRequestRepo) Create(ctx context.Context, sr *models.ServiceRequest) error {
	_, err := r.db.Exec(ctx, `
        INSERT INTO service_requests (
            id, title, description, category, priority, photo_urls,
            property_id, unit_id, requested_by_id,
            status, review_notes, reviewed_at,
            created_at, updated_at, row_version
        ) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12, NOW(), NOW(), 1)
    `,
		sr.ID,
		sr.Title,
		sr.Description,
		sr.Category,
		sr.Priority,
		sr.PhotoURLs,
		sr.PropertyID,
		sr.UnitID,
		sr.RequestedByID,
		sr.Status,
		sr.ReviewNotes,
		sr.ReviewedAt,
	)
	return err
}

func (r *serviceRequestRepo) GetByID(ctx context.Context, id uuid.UUID) (*models.ServiceRequest, error) {
	return r.BaseVersionedRepo.GetByID(ctx, id.String())
}

func (r *serviceRequestRepo) ListByScope(
	ctx context.Context,
	scope policy.RequestScope,
	filter ServiceRequestFilter,
) ([]*models.ServiceRequest, error) {
	var (
		qb   strings.Builder
		args []any
		idx  = 1
	)

	qb.WriteString(baseSelectRequest())
	qb.WriteString(" WHERE ")

	clause, scopeArgs := scopeClause(scope, idx)
	qb.WriteString(clause)
	args = append(args, scopeArgs...)
	idx += len(scopeArgs)

	if filter.Status != nil {
		qb.WriteString(" AND sr.status = $")
		qb.WriteString(strconv.Itoa(idx))
		args = append(args, *filter.Status)
		idx++
	}
	if filter.Category != nil {
		qb.WriteString(" AND sr.category = $")
		qb.WriteString(strconv.Itoa(idx))
		args = append(args, *filter.Category)
		idx++
	}
	if filter.PropertyID != nil {
		qb.WriteString(" AND sr.property_id = $")
		qb.WriteString(strconv.Itoa(idx))
		args = append(args, *filter.PropertyID)
		idx++
	}
	if filter.Priority != nil {
		qb.WriteString(" AND sr.priority = $")
		qb.WriteString(strconv.Itoa(idx))
		args = append(args, *filter.Priority)
		idx++
	}

	qb.WriteString(requestOrderClause())

	rows, err := r.db.Query(ctx, qb.String(), args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*models.ServiceRequest
	for rows.Next() {
		sr, err := scanRequest(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, sr)
	}
	return out, rows.Err()
}

func (r *serviceRequestRepo) ListSubmittedBefore(ctx context.Context, cutoff time.Time) ([]*models.ServiceRequest, error) {
	rows, err := r.db.Query(ctx,
		baseSelectRequest()+" WHERE sr.status=$1 AND sr.created_at < $2"+requestOrderClause(),
		models.RequestStatusSubmitted, cutoff,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*models.ServiceRequest
	for rows.Next() {
		sr, err := scanRequest(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, sr)
	}
	return out, rows.Err()
}

func (r *serviceRequestRepo) Update(ctx context.Context, sr *models.ServiceRequest) error {
	_, err := r.update(ctx, sr, false, 0)
	return err
}

func (r *serviceRequestRepo) UpdateIfVersion(ctx context.Context, sr *models.ServiceRequest, expected int64) (pgconn.CommandTag, error) {
	return r.update(ctx, sr, true, expected)
}

func (r *serviceRequestRepo) UpdateWithRetry(ctx context.Context, id uuid.UUID, mutate func(*models.ServiceRequest) error) error {
	return r.BaseVersionedRepo.UpdateWithRetry(ctx, id.String(), mutate, r.UpdateIfVersion)
}

func (r *serviceRequestRepo) update(ctx context.Context, sr *models.ServiceRequest, check bool, expected int64) (pgconn.CommandTag, error) {
	sql := `
        UPDATE service_requests SET
            title=$1, description=$2, category=$3, priority=$4,
            status=$5, review_notes=$6, reviewed_at=$7, updated_at=NOW()
    `
	args := []any{
		sr.Title, sr.Description, sr.Category, sr.Priority,
		sr.Status, sr.ReviewNotes, sr.ReviewedAt,
	}
	if check {
		sql += `, row_version=row_version+1 WHERE id=$8 AND row_version=$9`
		args = append(args, sr.ID, expected)
	} else {
		sql += ` WHERE id=$8`
		args = append(args, sr.ID)
	}

	return r.db.Exec(ctx, sql, args...)
}

func (r *serviceRequestRepo) Delete(ctx context.Context, id uuid.UUID) error {
	tag, err := r.db.Exec(ctx, `DELETE FROM service_requests WHERE id=$1`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return pgx.ErrNoRows
	}
	return nil
}

func (r *serviceRequestRepo) ConvertToJobAtomic(
	ctx context.Context,
	requestID uuid.UUID,
	job *models.Job,
	now time.Time,
) (*models.ServiceRequest, error) {
	tx, err := r.db.Begin(ctx)
	if err != nil {
		return nil, err
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback(ctx)
		} else {
			_ = tx.Commit(ctx)
		}
	}()

	row := tx.QueryRow(ctx, baseSelectRequest()+" WHERE sr.id=$1 FOR UPDATE", requestID)
	sr, err := scanRequest(row)
	if err != nil {
		return nil, err
	}
	if sr == nil {
		err = pgx.ErrNoRows
		return nil, err
	}
	if sr.Status == models.RequestStatusConvertedToJob {
		err = utils.ErrAlreadyConverted
		return nil, err
	}

	_, err = tx.Exec(ctx, `
        INSERT INTO jobs (
            id, service_request_id, property_id, unit_id,
            title, description, priority, status,
            assigned_to_id, scheduled_date, estimated_cost, created_at
        ) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11, NOW())
    `,
		job.ID,
		job.ServiceRequestID,
		job.PropertyID,
		job.UnitID,
		job.Title,
		job.Description,
		job.Priority,
		job.Status,
		job.AssignedToID,
		job.ScheduledDate,
		job.EstimatedCost,
	)
	if err != nil {
		return nil, err
	}

	_, err = tx.Exec(ctx, `
        UPDATE service_requests
        SET status=$1, reviewed_at=$2,
            row_version=row_version+1, updated_at=NOW()
        WHERE id=$3
    `, models.RequestStatusConvertedToJob, now, requestID)
	if err != nil {
		return nil, err
	}

	newRow := tx.QueryRow(ctx, baseSelectRequest()+" WHERE sr.id=$1", requestID)
	return scanRequest(newRow)
}

func baseSelectRequest() string {
	return `
        SELECT
            sr.id, sr.title, sr.description, sr.category, sr.priority, sr.photo_urls,
            sr.property_id, sr.unit_id, sr.requested_by_id,
            sr.status, sr.review_notes, sr.reviewed_at,
            sr.created_at, sr.updated_at, sr.row_version
        FROM service_requests sr
    `
}

func requestOrderClause() string {
	return `
        ORDER BY CASE sr.priority
            WHEN 'URGENT' THEN 4
            WHEN 'HIGH'   THEN 3
            WHEN 'MEDIUM' THEN 2
            WHEN 'LOW'    THEN 1
            ELSE 0
        END DESC, sr.created_at DESC
    `
}

func scanRequest(row pgx.Row) (*models.ServiceRequest, error) {
	var sr models.ServiceRequest
	err := row.Scan(
		&sr.ID,
		&sr.Title,
		&sr.Description,
		&sr.Category,
		&sr.Priority,
		&sr.PhotoURLs,
		&sr.PropertyID,
		&sr.UnitID,
		&sr.RequestedByID,
		&sr.Status,
		&sr.ReviewNotes,
		&sr.ReviewedAt,
		&sr.CreatedAt,
		&sr.UpdatedAt,
		&sr.RowVersion,
	)
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, nil
		}
		return nil, err
	}
	return &sr, nil
}
