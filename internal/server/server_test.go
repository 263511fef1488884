package server

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/labstack/echo/v4"
)

type echoHandler struct{}

func (echoHandler) Register(e *echo.Echo) {
	e.GET("/hello", func(c echo.Context) error { return c.String(http.StatusOK, "hi") })
	e.GET("/boom", func(c echo.Context) error { panic("boom") })
}

func TestNewServerRegistersHandlers(t *testing.T) {
	t.Parallel()

	srv := NewServer(nil, "", echoHandler{}, nil)
	if srv.Addr() != ":8080" {
		t.Fatalf("unexpected default addr %q", srv.Addr())
	}

	req := httptest.NewRequest(http.MethodGet, "/hello", nil)
	req.Header.Set(echo.HeaderOrigin, "https://example.org")
	rec := httptest.NewRecorder()
	srv.Echo().ServeHTTP(rec, req)
	if rec.Code != http.StatusOK || rec.Body.String() != "hi" {
		t.Fatalf("unexpected response %d %q", rec.Code, rec.Body.String())
	}
	if got := rec.Header().Get(echo.HeaderAccessControlAllowOrigin); got != "*" {
		t.Fatalf("expected CORS origin header, got %q", got)
	}
}

func TestNewServerRecoversPanics(t *testing.T) {
	t.Parallel()

	srv := NewServer(nil, ":0", echoHandler{})
	rec := httptest.NewRecorder()
	srv.Echo().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/boom", nil))
	if rec.Code != http.StatusInternalServerError {
		t.Fatalf("expected 500 after panic, got %d", rec.Code)
	}
}

func TestPreflight(t *testing.T) {
	t.Parallel()

	srv := NewServer(nil, ":0", echoHandler{})
	req := httptest.NewRequest(http.MethodOptions, "/hello", nil)
	req.Header.Set(echo.HeaderOrigin, "https://example.org")
	req.Header.Set(echo.HeaderAccessControlRequestMethod, http.MethodGet)
	rec := httptest.NewRecorder()
	srv.Echo().ServeHTTP(rec, req)
	if rec.Code != http.StatusNoContent {
		t.Fatalf("expected 204, got %d", rec.Code)
	}
}
