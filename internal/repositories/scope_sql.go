package repositories

import (
	"strconv"

	"github.com/dwellos/requests-service/internal/policy"
)

// scopeClause translates the abstract read predicate produced by the
// policy layer into a SQL condition over the service_requests table
// (aliased sr). Placeholders start at $startIdx. The returned condition
// never grants access on an unrecognized kind: it degenerates to FALSE.
func scopeClause(scope policy.RequestScope, startIdx int) (string, []any) {
	idx := strconv.Itoa(startIdx)
	switch scope.Kind {
	case policy.ScopeManagedBy:
		return `EXISTS (
            SELECT 1 FROM properties p
            WHERE p.id = sr.property_id AND p.manager_id = $` + idx + `
        )`, []any{scope.ManagerID}
	case policy.ScopeOwnedBy:
		return `EXISTS (
            SELECT 1 FROM property_ownerships po
            WHERE po.property_id = sr.property_id AND po.owner_id = $` + idx + `
        )`, []any{scope.OwnerID}
	case policy.ScopeRequestedBy:
		return "sr.requested_by_id = $" + idx, []any{scope.RequesterID}
	case policy.ScopePropertyIn:
		if len(scope.PropertyIDs) == 0 {
			return "FALSE", nil
		}
		return "sr.property_id = ANY($" + idx + ")", []any{scope.PropertyIDs}
	default:
		return "FALSE", nil
	}
}
