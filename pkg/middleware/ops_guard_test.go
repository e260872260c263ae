package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
)

func serveGuarded(opts OpsGuardOptions, req *http.Request) int {
	h := OpsGuard(opts)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec.Code
}

func TestOpsGuard(t *testing.T) {
	opts := OpsGuardOptions{
		Enabled:      true,
		PathPrefixes: []string{"/debug/"},
		CIDRs:        "10.0.0.0/8",
		Token:        "secret",
	}

	req := httptest.NewRequest(http.MethodGet, "/crm/api/entities", nil)
	assert.Equal(t, http.StatusOK, serveGuarded(opts, req), "unguarded path")

	req = httptest.NewRequest(http.MethodGet, "/debug/prometheus", nil)
	req.RemoteAddr = "192.168.1.5:5555"
	assert.Equal(t, http.StatusNotFound, serveGuarded(opts, req))

	req = httptest.NewRequest(http.MethodGet, "/debug/prometheus", nil)
	req.RemoteAddr = "10.1.2.3:5555"
	assert.Equal(t, http.StatusOK, serveGuarded(opts, req))

	req = httptest.NewRequest(http.MethodGet, "/debug/prometheus", nil)
	req.RemoteAddr = "192.168.1.5:5555"
	req.Header.Set("Authorization", "Bearer secret")
	assert.Equal(t, http.StatusOK, serveGuarded(opts, req))

	opts.Enabled = false
	req = httptest.NewRequest(http.MethodGet, "/debug/prometheus", nil)
	assert.Equal(t, http.StatusOK, serveGuarded(opts, req))
}

func TestOpsGuard_BasicAuth(t *testing.T) {
	opts := OpsGuardOptions{
		Enabled:       true,
		PathPrefixes:  []string{"/debug/"},
		BasicAuthUser: "ops",
		BasicAuthPass: "pw",
	}
	req := httptest.NewRequest(http.MethodGet, "/debug/prometheus", nil)
	req.SetBasicAuth("ops", "pw")
	assert.Equal(t, http.StatusOK, serveGuarded(opts, req))

	req = httptest.NewRequest(http.MethodGet, "/debug/prometheus", nil)
	req.SetBasicAuth("ops", "nope")
	assert.Equal(t, http.StatusNotFound, serveGuarded(opts, req))
}
