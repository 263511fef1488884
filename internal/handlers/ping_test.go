package handlers

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/labstack/echo/v4"

	"github.com/mediavault/mediavault/internal/healthcheck"
)

type staticChecker struct {
	status string
}

func (c staticChecker) ListChecks(context.Context) []healthcheck.CheckResult {
	return []healthcheck.CheckResult{{ID: "dependency.ping.postgres", Status: c.status}}
}

func TestPingHandler(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name   string
		method string
		target string
		status string
		want   int
	}{
		{name: "ping", method: http.MethodGet, target: "/ping", status: healthcheck.StatusError, want: http.StatusOK},
		{name: "head healthy", method: http.MethodHead, target: "/health", status: healthcheck.StatusOK, want: http.StatusOK},
		{name: "head down", method: http.MethodHead, target: "/health", status: healthcheck.StatusError, want: http.StatusServiceUnavailable},
		{name: "get degraded", method: http.MethodGet, target: "/health", status: healthcheck.StatusWarn, want: http.StatusOK},
		{name: "get down", method: http.MethodGet, target: "/health", status: healthcheck.StatusError, want: http.StatusServiceUnavailable},
	}
	for _, tc := range cases {
		e := echo.New()
		NewPingHandler(nil, staticChecker{status: tc.status}).Register(e)
		rec := httptest.NewRecorder()
		e.ServeHTTP(rec, httptest.NewRequest(tc.method, tc.target, nil))
		if rec.Code != tc.want {
			t.Fatalf("%s: want %d got %d", tc.name, tc.want, rec.Code)
		}
	}
}
