package policy

import (
	"github.com/dwellos/requests-service/internal/models"
)

// Field names a writable attribute of a service request.
type Field string

const (
	FieldTitle       Field = "title"
	FieldDescription Field = "description"
	FieldPriority    Field = "priority"
	FieldStatus      Field = "status"
	FieldReviewNotes Field = "review_notes"
)

// FieldSet is the set of fields a principal may write on an update.
type FieldSet map[Field]struct{}

func (s FieldSet) Has(f Field) bool {
	_, ok := s[f]
	return ok
}

func fieldSet(fields ...Field) FieldSet {
	out := make(FieldSet, len(fields))
	for _, f := range fields {
		out[f] = struct{}{}
	}
	return out
}

// Relationship captures the precomputed facts linking a principal to a
// specific request. The caller derives these from the record and its
// property before consulting the policy.
type Relationship struct {
	ManagesProperty bool // principal manages the request's property
	OwnsProperty    bool // principal has an ownership row on the property
	IsRequester     bool // principal created the request
}

// AllowedWriteFields returns the writable field set for an update of a
// request in the given status. Evaluated before any field is applied; a
// payload containing any field outside the set must be rejected whole.
//
// A frozen record (CONVERTED_TO_JOB) yields an empty set for everyone,
// independent of the state machine's own freeze check.
func AllowedWriteFields(p models.Principal, rel Relationship, status models.RequestStatusType) FieldSet {
	if status == models.RequestStatusConvertedToJob {
		return fieldSet()
	}

	switch p.Role {
	case models.RolePropertyManager:
		if !rel.ManagesProperty {
			return fieldSet()
		}
		return fieldSet(FieldStatus, FieldPriority, FieldTitle, FieldDescription, FieldReviewNotes)
	case models.RoleOwner:
		if !rel.OwnsProperty {
			return fieldSet()
		}
		// Review-style control: owners may steer the lifecycle but not
		// rewrite the requester's own words.
		return fieldSet(FieldStatus, FieldPriority, FieldReviewNotes)
	case models.RoleTenant:
		if !rel.IsRequester || status != models.RequestStatusSubmitted {
			return fieldSet()
		}
		return fieldSet(FieldTitle, FieldDescription)
	case models.RoleTechnician:
		// Technicians act on jobs, never on service requests.
		return fieldSet()
	default:
		return fieldSet()
	}
}
