package httpapi

import (
	"encoding/json"
	"net/http"
)

// ErrorEnvelope is the JSON body of every error response. State holds a
// snapshot of the resource the request acted on, when there is one.
type ErrorEnvelope struct {
	Code    string            `json:"code"`
	Message string            `json:"message"`
	Meta    map[string]string `json:"meta,omitempty"`
	State   any               `json:"state,omitempty"`
}

// Write encodes the envelope with the given status.
func (e *ErrorEnvelope) Write(w http.ResponseWriter, status int) error {
	return WriteJSON(w, status, e)
}

func WriteJSON(w http.ResponseWriter, status int, payload any) error {
	if w == nil {
		return nil
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if payload == nil {
		return nil
	}
	return json.NewEncoder(w).Encode(payload)
}

func WriteError(w http.ResponseWriter, status int, code, message string, meta map[string]string) error {
	env := &ErrorEnvelope{Code: code, Message: message, Meta: meta}
	return env.Write(w, status)
}
