package policy

import (
	"errors"
	"fmt"

	"github.com/dwellos/requests-service/internal/models"
)

// ErrRequestFrozen is returned for any attempted transition out of
// CONVERTED_TO_JOB.
var ErrRequestFrozen = errors.New("request_frozen")

// InvalidTransitionError reports a status change outside the allowed
// edge set.
type InvalidTransitionError struct {
	From models.RequestStatusType
	To   models.RequestStatusType
}

func (e *InvalidTransitionError) Error() string {
	return fmt.Sprintf("invalid status transition %s -> %s", e.From, e.To)
}
