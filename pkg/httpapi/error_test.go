package httpapi

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWriteError(t *testing.T) {
	rec := httptest.NewRecorder()
	require.NoError(t, WriteError(rec, http.StatusConflict, "BUSY", "busy", map[string]string{"entity": "Lead"}))

	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))
	var env ErrorEnvelope
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &env))
	assert.Equal(t, ErrorEnvelope{Code: "BUSY", Message: "busy", Meta: map[string]string{"entity": "Lead"}}, env)
	assert.NotContains(t, rec.Body.String(), `"state"`)
}

func TestErrorEnvelope_WriteWithState(t *testing.T) {
	rec := httptest.NewRecorder()
	env := &ErrorEnvelope{
		Code:    "CRM_IMPORT_MISSING_MAPPINGS",
		Message: "please map all unmapped columns: Region",
		State:   map[string]any{"status": "awaiting_mapping"},
	}
	require.NoError(t, env.Write(rec, http.StatusUnprocessableEntity))

	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	var body struct {
		Code  string         `json:"code"`
		State map[string]any `json:"state"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "CRM_IMPORT_MISSING_MAPPINGS", body.Code)
	assert.Equal(t, "awaiting_mapping", body.State["status"])
}

func TestWriteJSON_NilWriter(t *testing.T) {
	assert.NoError(t, WriteJSON(nil, http.StatusOK, map[string]string{}))
}
