package importjob

import "github.com/iota-uz/crm-exchange/pkg/serrors"

var (
	ErrUnsupportedFormat = serrors.NewError("CRM_IMPORT_UNSUPPORTED_FORMAT", "unsupported file format", "CRM.Import.Errors.UnsupportedFormat")
	ErrEmptyFile         = serrors.NewError("CRM_IMPORT_EMPTY_FILE", "file has no data rows", "CRM.Import.Errors.EmptyFile")
	ErrMissingMappings   = serrors.NewError("CRM_IMPORT_MISSING_MAPPINGS", "please map all unmapped columns", "CRM.Import.Errors.MissingMappings")
	ErrMissingReference  = serrors.NewError("CRM_IMPORT_MISSING_REFERENCE", "missing import reference", "CRM.Import.Errors.MissingReference")
	ErrImportFailed      = serrors.NewError("CRM_IMPORT_FAILED", "import failed", "CRM.Import.Errors.Failed")
	ErrCancelNotAllowed  = serrors.NewError("CRM_IMPORT_CANCEL_NOT_ALLOWED", "import cannot be cancelled now", "CRM.Import.Errors.CancelNotAllowed")
	ErrInvalidTransition = serrors.NewError("CRM_IMPORT_INVALID_TRANSITION", "invalid import state transition", "")
	ErrFileReleased      = serrors.NewError("CRM_IMPORT_FILE_RELEASED", "source file has been released", "")
	ErrNoActiveImport    = serrors.NewError("CRM_IMPORT_NOT_ACTIVE", "no import in progress", "CRM.Import.Errors.NotActive")
	ErrImportInProgress  = serrors.NewError("CRM_IMPORT_IN_PROGRESS", "an import is already in progress", "CRM.Import.Errors.InProgress")
)

var (
	ErrFileTooLarge  = serrors.NewError("CRM_IMPORT_FILE_TOO_LARGE", "file is too large", "CRM.Import.Errors.FileTooLarge")
	ErrMalformedFile = serrors.NewError("CRM_IMPORT_MALFORMED_FILE", "file could not be read", "CRM.Import.Errors.MalformedFile")
)
