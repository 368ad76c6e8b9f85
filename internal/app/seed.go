package app

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgconn"

	"github.com/dwellos/requests-service/internal/models"
	"github.com/dwellos/requests-service/internal/repositories"
	"github.com/dwellos/requests-service/internal/utils"
)

// Helper to check for unique violation error (PostgreSQL specific code)
func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}

// Fixed IDs so re-runs and local tooling can find the demo rows.
var (
	seedManagerID    = uuid.MustParse("22222222-2222-2222-2222-222222222222")
	seedOwnerID      = uuid.MustParse("33333333-3333-3333-3333-333333333333")
	seedTenantID     = uuid.MustParse("44444444-4444-4444-4444-444444444444")
	seedTechnicianID = uuid.MustParse("55555555-5555-5555-5555-555555555555")
	seedPropertyID   = uuid.MustParse("66666666-6666-6666-6666-666666666666")
	seedUnitID       = uuid.MustParse("77777777-7777-7777-7777-777777777777")
)

/*
SeedDemoData populates one actor per role, a managed property with an
ownership row, and a unit with an active tenancy. Idempotent: every
insert tolerates a unique violation.
*/
func SeedDemoData(
	ctx context.Context,
	userRepo repositories.UserRepository,
	propRepo repositories.PropertyRepository,
	unitRepo repositories.UnitRepository,
) error {
	if existing, err := propRepo.GetByID(ctx, seedPropertyID); err != nil {
		return fmt.Errorf("check existing seed property: %w", err)
	} else if existing != nil {
		utils.Logger.Info("Seed data already present; skipping seeding")
		return nil
	}

	if err := seedUsersIfNeeded(ctx, userRepo); err != nil {
		return fmt.Errorf("seed users: %w", err)
	}
	if err := seedPropertyIfNeeded(ctx, propRepo); err != nil {
		return fmt.Errorf("seed property: %w", err)
	}
	if err := seedUnitIfNeeded(ctx, unitRepo); err != nil {
		return fmt.Errorf("seed unit: %w", err)
	}

	utils.Logger.Info("Seeding completed successfully.")
	return nil
}

func seedUsersIfNeeded(ctx context.Context, userRepo repositories.UserRepository) error {
	users := []*models.User{
		{
			ID:          seedManagerID,
			Role:        models.RolePropertyManager,
			FirstName:   "Demo",
			LastName:    "Manager",
			Email:       "manager@dwellos.dev",
			PhoneNumber: utils.Ptr("+12565550001"),
		},
		{
			ID:        seedOwnerID,
			Role:      models.RoleOwner,
			FirstName: "Demo",
			LastName:  "Owner",
			Email:     "owner@dwellos.dev",
		},
		{
			ID:          seedTenantID,
			Role:        models.RoleTenant,
			FirstName:   "Demo",
			LastName:    "Tenant",
			Email:       "tenant@dwellos.dev",
			PhoneNumber: utils.Ptr("+12565550002"),
		},
		{
			ID:        seedTechnicianID,
			Role:      models.RoleTechnician,
			FirstName: "Demo",
			LastName:  "Technician",
			Email:     "technician@dwellos.dev",
		},
	}

	for _, u := range users {
		if err := userRepo.Create(ctx, u); err != nil {
			if isUniqueViolation(err) {
				utils.Logger.Infof("User (id=%s) already exists; skipping creation.", u.ID)
				continue
			}
			return fmt.Errorf("could not create user (id=%s): %w", u.ID, err)
		}
		utils.Logger.Infof("Created %s user (id=%s).", u.Role, u.ID)
	}
	return nil
}

func seedPropertyIfNeeded(ctx context.Context, propRepo repositories.PropertyRepository) error {
	p := &models.Property{
		ID:           seedPropertyID,
		ManagerID:    seedManagerID,
		PropertyName: "Demo Property 1",
		Address:      "30 Gates Mill St NW",
		City:         "Huntsville",
		State:        "AL",
		ZipCode:      "35806",
	}
	if err := propRepo.Create(ctx, p); err != nil {
		if isUniqueViolation(err) {
			utils.Logger.Infof("Property (id=%s) already exists; skipping creation.", p.ID)
		} else {
			return fmt.Errorf("failed to create property id=%s: %w", p.ID, err)
		}
	} else {
		utils.Logger.Infof("Created property (id=%s).", p.ID)
	}

	if err := propRepo.AddOwner(ctx, seedPropertyID, seedOwnerID); err != nil {
		if isUniqueViolation(err) {
			utils.Logger.Infof("Ownership row for owner (id=%s) already exists; skipping.", seedOwnerID)
			return nil
		}
		return fmt.Errorf("add owner %s to property %s: %w", seedOwnerID, seedPropertyID, err)
	}
	utils.Logger.Infof("Linked owner (id=%s) to property (id=%s).", seedOwnerID, seedPropertyID)
	return nil
}

func seedUnitIfNeeded(ctx context.Context, unitRepo repositories.UnitRepository) error {
	un := &models.Unit{
		ID:         seedUnitID,
		PropertyID: seedPropertyID,
		UnitNumber: "101",
	}
	if err := unitRepo.Create(ctx, un); err != nil {
		if isUniqueViolation(err) {
			utils.Logger.Infof("Unit (id=%s) already exists; skipping creation.", un.ID)
		} else {
			return fmt.Errorf("create unit %s for prop=%s: %w", un.UnitNumber, seedPropertyID, err)
		}
	} else {
		utils.Logger.Infof("Created unit %s (id=%s).", un.UnitNumber, un.ID)
	}

	if err := unitRepo.AssignTenant(ctx, seedUnitID, seedTenantID, true); err != nil {
		if isUniqueViolation(err) {
			utils.Logger.Infof("Tenancy for tenant (id=%s) already exists; skipping.", seedTenantID)
			return nil
		}
		return fmt.Errorf("assign tenant %s to unit %s: %w", seedTenantID, seedUnitID, err)
	}
	utils.Logger.Infof("Assigned tenant (id=%s) to unit (id=%s).", seedTenantID, seedUnitID)
	return nil
}
