package health

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
)

func ok(context.Context) error   { return nil }
func fail(context.Context) error { return errors.New("unreachable") }

func TestRunAggregatesWorstStatus(t *testing.T) {
	tests := []struct {
		name   string
		checks map[string]Check
		want   Status
		code   int
	}{
		{"all up", map[string]Check{"index": Required(ok), "cache": Optional(ok)}, StatusUp, http.StatusOK},
		{"optional down", map[string]Check{"index": Required(ok), "cache": Optional(fail)}, StatusDegraded, http.StatusOK},
		{"required down", map[string]Check{"index": Required(fail), "cache": Optional(fail)}, StatusDown, http.StatusServiceUnavailable},
		{"no checks", map[string]Check{}, StatusUp, http.StatusOK},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			c := NewChecker()
			for name, check := range tc.checks {
				c.Register(name, check)
			}
			if got := c.Run(context.Background()).Status; got != tc.want {
				t.Fatalf("status = %s; want %s", got, tc.want)
			}

			rec := httptest.NewRecorder()
			c.ReadyHandler()(rec, httptest.NewRequest(http.MethodGet, "/health/ready", nil))
			if rec.Code != tc.code {
				t.Fatalf("ready code = %d; want %d", rec.Code, tc.code)
			}
			var report Report
			if err := json.NewDecoder(rec.Body).Decode(&report); err != nil {
				t.Fatalf("decode: %v", err)
			}
			if len(report.Components) != len(tc.checks) {
				t.Fatalf("components = %d; want %d", len(report.Components), len(tc.checks))
			}
		})
	}
}

func TestFailedCheckCarriesMessage(t *testing.T) {
	got := Required(fail)(context.Background())
	if got.Status != StatusDown || got.Message != "unreachable" {
		t.Fatalf("check = %+v", got)
	}
}

func TestLiveHandler(t *testing.T) {
	rec := httptest.NewRecorder()
	NewChecker().LiveHandler()(rec, httptest.NewRequest(http.MethodGet, "/health/live", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("code = %d", rec.Code)
	}
}
