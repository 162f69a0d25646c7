package health

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"stockwatch/internal/monitor"
	logx "stockwatch/pkg/logx"
)

func TestHandleStatus(t *testing.T) {
	t.Parallel()

	status := func() monitor.Status {
		return monitor.Status{CyclesRun: 12, ProductsTracked: 45, LastCycleOK: true}
	}
	s := NewServer(":0", status, logx.Nop())

	for _, path := range []string{"/", "/healthz"} {
		req := httptest.NewRequest(http.MethodGet, path, nil)
		rec := httptest.NewRecorder()
		s.Handler().ServeHTTP(rec, req)

		if rec.Code != http.StatusOK {
			t.Fatalf("GET %s = %d, want 200", path, rec.Code)
		}
		var resp struct {
			Status string         `json:"status"`
			Stats  monitor.Status `json:"stats"`
		}
		if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
			t.Fatalf("unmarshal: %v", err)
		}
		if resp.Status != "ok" {
			t.Fatalf("status = %q", resp.Status)
		}
		if resp.Stats.CyclesRun != 12 || resp.Stats.ProductsTracked != 45 {
			t.Fatalf("stats = %+v", resp.Stats)
		}
	}
}

func TestHandleStatusNilFunc(t *testing.T) {
	t.Parallel()

	s := NewServer("", nil, logx.Nop())
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("code = %d, want 200", rec.Code)
	}
}

func TestUnknownPath(t *testing.T) {
	t.Parallel()

	s := NewServer("", nil, logx.Nop())
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/nope", nil))
	if rec.Code != http.StatusNotFound {
		t.Fatalf("code = %d, want 404", rec.Code)
	}
}
