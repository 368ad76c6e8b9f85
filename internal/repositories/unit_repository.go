package repositories

import (
	"context"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v4"

	"github.com/dwellos/requests-service/internal/models"
)

/* ───────────── public interface ───────────── */

type UnitRepository interface {
	Create(ctx context.Context, u *models.Unit) error
	GetByID(ctx context.Context, id uuid.UUID) (*models.Unit, error)
	ListByPropertyID(ctx context.Context, propID uuid.UUID) ([]*models.Unit, error)

	AssignTenant(ctx context.Context, unitID, tenantID uuid.UUID, active bool) error
	// HasActiveTenancy reports whether the tenant holds an active
	// tenancy assignment on the unit.
	HasActiveTenancy(ctx context.Context, unitID, tenantID uuid.UUID) (bool, error)
}

/* ───────────── implementation ───────────── */

type unitRepo struct {
	db DB
}

func NewUnitRepository(db DB) UnitRepository {
	return &unitRepo{db: db}
}

func (r *unitRepo) Create(ctx context.Context, u *models.Unit) error {
	_, err := r.db.Exec(ctx, `
        INSERT INTO units (id, property_id, unit_number, created_at)
        VALUES ($1,$2,$3, NOW())
    `, u.ID, u.PropertyID, u.UnitNumber)
	return err
}

func (r *unitRepo) GetByID(ctx context.Context, id uuid.UUID) (*models.Unit, error) {
	row := r.db.QueryRow(ctx, baseSelectUnit()+" WHERE id=$1", id)
	return scanUnit(row)
}

func (r *unitRepo) ListByPropertyID(ctx context.Context, propID uuid.UUID) ([]*models.Unit, error) {
	rows, err := r.db.Query(ctx, baseSelectUnit()+" WHERE property_id=$1 ORDER BY unit_number", propID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*models.Unit
	for rows.Next() {
		u, err := scanUnit(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, u)
	}
	return out, rows.Err()
}

func (r *unitRepo) AssignTenant(ctx context.Context, unitID, tenantID uuid.UUID, active bool) error {
	_, err := r.db.Exec(ctx, `
        INSERT INTO unit_tenancies (unit_id, tenant_id, is_active, created_at)
        VALUES ($1,$2,$3, NOW())
        ON CONFLICT (unit_id, tenant_id) DO UPDATE SET is_active=EXCLUDED.is_active
    `, unitID, tenantID, active)
	return err
}

func (r *unitRepo) HasActiveTenancy(ctx context.Context, unitID, tenantID uuid.UUID) (bool, error) {
	var exists bool
	err := r.db.QueryRow(ctx, `
        SELECT EXISTS (
            SELECT 1 FROM unit_tenancies
            WHERE unit_id=$1 AND tenant_id=$2 AND is_active
        )
    `, unitID, tenantID).Scan(&exists)
	return exists, err
}

func baseSelectUnit() string {
	return `SELECT id, property_id, unit_number, created_at FROM units`
}

func scanUnit(row pgx.Row) (*models.Unit, error) {
	var u models.Unit
	err := row.Scan(&u.ID, &u.PropertyID, &u.UnitNumber, &u.CreatedAt)
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, nil
		}
		return nil, err
	}
	return &u, nil
}
