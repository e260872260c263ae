package services

import (
	"fmt"
	"strings"

	"github.com/iota-uz/crm-exchange/pkg/serrors"
)

var (
	ErrOperationInProgress = serrors.NewError("CRM_OPERATION_IN_PROGRESS", "another operation is still running", "CRM.Errors.OperationInProgress")
	ErrUnknownEntity       = serrors.NewError("CRM_UNKNOWN_ENTITY", "unknown entity", "CRM.Errors.UnknownEntity")
	ErrNoLinkedItems       = serrors.NewError("CRM_DELETE_NO_LINKED_ITEMS", "no linked items selected", "CRM.Delete.Errors.NoLinkedItems")
)

// DeleteError reports a delete loop that stopped part way. Records in Deleted
// stay deleted.
type DeleteError struct {
	Deleted   []string
	FailedID  string
	Remaining []string
	Err       error
}

func (e *DeleteError) Error() string {
	msg := fmt.Sprintf("failed to delete %s", e.FailedID)
	if len(e.Deleted) > 0 {
		msg += fmt.Sprintf(" after deleting %s", strings.Join(e.Deleted, ", "))
	}
	if reason := remoteMessage(e.Err, ""); reason != "" {
		msg += ": " + reason
	}
	return msg
}

func (e *DeleteError) Unwrap() error {
	return e.Err
}

// remoteMessage returns the transport's own text, or fallback when it has none.
func remoteMessage(err error, fallback string) string {
	if err == nil {
		return fallback
	}
	if msg := strings.TrimSpace(err.Error()); msg != "" {
		return msg
	}
	return fallback
}
