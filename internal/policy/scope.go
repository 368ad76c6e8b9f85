package policy

import (
	"github.com/google/uuid"

	"github.com/dwellos/requests-service/internal/models"
)

// ScopeKind enumerates the shapes a read scope can take. The set is
// closed: repositories translate each kind to SQL and anything
// unrecognized collapses to ScopeNone.
type ScopeKind int

const (
	// ScopeNone matches no records. The default for unknown roles.
	ScopeNone ScopeKind = iota
	// ScopeManagedBy matches requests on properties managed by ManagerID.
	ScopeManagedBy
	// ScopeOwnedBy matches requests on properties with an ownership row
	// for OwnerID.
	ScopeOwnedBy
	// ScopeRequestedBy matches requests created by RequesterID.
	ScopeRequestedBy
	// ScopePropertyIn matches requests on any of PropertyIDs.
	ScopePropertyIn
)

// RequestScope is an abstract read predicate over service requests. It is
// storage-agnostic: repositories/scope_sql.go maps it to a WHERE clause,
// and Allows evaluates it in memory against a loaded record.
type RequestScope struct {
	Kind        ScopeKind
	ManagerID   uuid.UUID
	OwnerID     uuid.UUID
	RequesterID uuid.UUID
	PropertyIDs []uuid.UUID
}

// ScopeFor resolves the read scope for a principal. Pure: ownership and
// job-assignment facts are supplied by the caller, never fetched here.
// assignedPropertyIDs is only consulted for technicians; it is the set of
// property IDs drawn from the technician's active job assignments,
// recomputed per request.
func ScopeFor(p models.Principal, assignedPropertyIDs []uuid.UUID) RequestScope {
	switch p.Role {
	case models.RolePropertyManager:
		return RequestScope{Kind: ScopeManagedBy, ManagerID: p.ID}
	case models.RoleOwner:
		return RequestScope{Kind: ScopeOwnedBy, OwnerID: p.ID}
	case models.RoleTenant:
		// A tenant only ever sees their own submissions, regardless of
		// property or unit.
		return RequestScope{Kind: ScopeRequestedBy, RequesterID: p.ID}
	case models.RoleTechnician:
		if len(assignedPropertyIDs) == 0 {
			return RequestScope{Kind: ScopeNone}
		}
		return RequestScope{Kind: ScopePropertyIn, PropertyIDs: assignedPropertyIDs}
	default:
		// Closed allow-list: new roles see nothing until granted here.
		return RequestScope{Kind: ScopeNone}
	}
}

// Allows evaluates the scope against a loaded record. property must be
// the record's property; ownerIDs its ownership rows. Used on the
// single-record read path and as the second gate before writes.
func (s RequestScope) Allows(r *models.ServiceRequest, property *models.Property, ownerIDs []uuid.UUID) bool {
	if r == nil {
		return false
	}
	switch s.Kind {
	case ScopeManagedBy:
		return property != nil && property.ManagerID == s.ManagerID
	case ScopeOwnedBy:
		for _, id := range ownerIDs {
			if id == s.OwnerID {
				return true
			}
		}
		return false
	case ScopeRequestedBy:
		return r.RequestedByID == s.RequesterID
	case ScopePropertyIn:
		for _, id := range s.PropertyIDs {
			if id == r.PropertyID {
				return true
			}
		}
		return false
	default:
		return false
	}
}
