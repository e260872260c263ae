package controllers

import (
	"errors"
	"net/http"
	"strings"

	"github.com/google/uuid"

	"github.com/iota-uz/crm-exchange/modules/crm/domain/deletebatch"
	"github.com/iota-uz/crm-exchange/modules/crm/domain/importjob"
	"github.com/iota-uz/crm-exchange/modules/crm/services"
	"github.com/iota-uz/crm-exchange/pkg/composables"
	"github.com/iota-uz/crm-exchange/pkg/httpapi"
	"github.com/iota-uz/crm-exchange/pkg/serrors"
)

func writeJSON(w http.ResponseWriter, status int, payload any) {
	if err := httpapi.WriteJSON(w, status, payload); err != nil {
		panic(err)
	}
}

func ensureRequestID(w http.ResponseWriter, r *http.Request) string {
	if r == nil {
		return ""
	}
	if id, ok := composables.UseRequestID(r.Context()); ok {
		return id
	}
	requestID := strings.TrimSpace(r.Header.Get("X-Request-ID"))
	if requestID == "" {
		requestID = uuid.NewString()
		w.Header().Set("X-Request-ID", requestID)
	}
	return requestID
}

func writeAPIError(w http.ResponseWriter, r *http.Request, status int, code string, message string, state any) {
	writeJSON(w, status, &httpapi.ErrorEnvelope{
		Code:    code,
		Message: message,
		Meta: map[string]string{
			"request_id": ensureRequestID(w, r),
		},
		State: state,
	})
}

func writeValidationError(w http.ResponseWriter, r *http.Request, errs map[string]string) {
	meta := make(map[string]string, len(errs)+1)
	for field, msg := range errs {
		meta[field] = msg
	}
	meta["request_id"] = ensureRequestID(w, r)
	writeJSON(w, http.StatusBadRequest, &httpapi.ErrorEnvelope{
		Code:    "VALIDATION_FAILED",
		Message: "request validation failed",
		Meta:    meta,
	})
}

// statusFor maps engine errors to HTTP statuses. Anything uncoded is a 500.
func statusFor(err error) int {
	switch {
	case errors.Is(err, services.ErrUnknownEntity):
		return http.StatusNotFound
	case errors.Is(err, importjob.ErrFileTooLarge):
		return http.StatusRequestEntityTooLarge
	case errors.Is(err, importjob.ErrUnsupportedFormat):
		return http.StatusUnsupportedMediaType
	case errors.Is(err, importjob.ErrEmptyFile),
		errors.Is(err, importjob.ErrMalformedFile),
		errors.Is(err, importjob.ErrMissingMappings),
		errors.Is(err, deletebatch.ErrNoRecordsSelected),
		errors.Is(err, services.ErrNoLinkedItems):
		return http.StatusUnprocessableEntity
	case errors.Is(err, services.ErrOperationInProgress),
		errors.Is(err, importjob.ErrImportInProgress),
		errors.Is(err, importjob.ErrNoActiveImport),
		errors.Is(err, importjob.ErrCancelNotAllowed),
		errors.Is(err, importjob.ErrInvalidTransition),
		errors.Is(err, deletebatch.ErrDeleteInProgress),
		errors.Is(err, deletebatch.ErrNoActiveDelete),
		errors.Is(err, deletebatch.ErrCancelNotAllowed),
		errors.Is(err, deletebatch.ErrInvalidTransition),
		errors.Is(err, deletebatch.ErrUnresolvedLinks),
		errors.Is(err, deletebatch.ErrUnlinkIncomplete):
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}

func writeEngineError(w http.ResponseWriter, r *http.Request, err error, state any) {
	status := statusFor(err)
	code := serrors.CodeOf(err)
	message := err.Error()
	if status == http.StatusInternalServerError {
		composables.UseLogger(r.Context()).WithError(err).Error("crm exchange request failed")
		if code == "" {
			code = "CRM_INTERNAL"
			message = "internal error"
		}
	}
	writeAPIError(w, r, status, code, message, state)
}
