package deletebatch

import "github.com/iota-uz/crm-exchange/pkg/serrors"

var (
	ErrNoRecordsSelected = serrors.NewError("CRM_DELETE_NO_RECORDS", "no records selected", "CRM.Delete.Errors.NoRecordsSelected")
	ErrUnlinkIncomplete  = serrors.NewError("CRM_DELETE_UNLINK_INCOMPLETE", "some items could not be unlinked", "CRM.Delete.Errors.UnlinkIncomplete")
	ErrUnresolvedLinks   = serrors.NewError("CRM_DELETE_UNRESOLVED_LINKS", "record is still referenced by linked documents", "CRM.Delete.Errors.UnresolvedLinks")
	ErrCancelNotAllowed  = serrors.NewError("CRM_DELETE_CANCEL_NOT_ALLOWED", "delete cannot be cancelled now", "CRM.Delete.Errors.CancelNotAllowed")
	ErrInvalidTransition = serrors.NewError("CRM_DELETE_INVALID_TRANSITION", "invalid delete state transition", "")
	ErrNoActiveDelete    = serrors.NewError("CRM_DELETE_NOT_ACTIVE", "no delete in progress", "CRM.Delete.Errors.NotActive")
	ErrDeleteInProgress  = serrors.NewError("CRM_DELETE_IN_PROGRESS", "a delete is already in progress", "CRM.Delete.Errors.InProgress")
)
