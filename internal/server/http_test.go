package server

import (
	"io"
	nethttp "net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-kratos/kratos/v2/log"
)

func TestDashboardHandler_ServesRoot(t *testing.T) {
	handler := dashboardHandler(log.NewStdLogger(io.Discard))

	rec := httptest.NewRecorder()
	handler(rec, httptest.NewRequest(nethttp.MethodGet, "/", nil))

	if rec.Code != nethttp.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), "<html") {
		t.Error("dashboard page body missing")
	}
}

func TestDashboardHandler_UnknownPathIs404(t *testing.T) {
	handler := dashboardHandler(log.NewStdLogger(io.Discard))

	rec := httptest.NewRecorder()
	handler(rec, httptest.NewRequest(nethttp.MethodGet, "/does-not-exist", nil))

	if rec.Code != nethttp.StatusNotFound {
		t.Fatalf("status = %d, want 404", rec.Code)
	}
}
