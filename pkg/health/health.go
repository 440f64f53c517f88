// Package health runs named dependency checks in parallel and serves the
// aggregate as liveness and readiness endpoints. A required dependency that
// fails makes the process not ready; an optional one only degrades it.
package health

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"time"
)

type Status string

const (
	StatusUp       Status = "up"
	StatusDegraded Status = "degraded"
	StatusDown     Status = "down"
)

// severity orders statuses so the report can take the worst.
func (s Status) severity() int {
	switch s {
	case StatusDown:
		return 2
	case StatusDegraded:
		return 1
	default:
		return 0
	}
}

// Check probes one dependency.
type Check func(ctx context.Context) ComponentHealth

type ComponentHealth struct {
	Status  Status `json:"status"`
	Message string `json:"message,omitempty"`
	Latency string `json:"latency,omitempty"`
}

type Report struct {
	Status     Status                     `json:"status"`
	Components map[string]ComponentHealth `json:"components"`
	Timestamp  string                     `json:"timestamp"`
}

// Checker holds the registered checks. Register may be called while
// handlers are serving.
type Checker struct {
	mu     sync.RWMutex
	checks map[string]Check
}

func NewChecker() *Checker {
	return &Checker{checks: make(map[string]Check)}
}

func (c *Checker) Register(name string, check Check) {
	c.mu.Lock()
	c.checks[name] = check
	c.mu.Unlock()
}

// Required wraps ping so that a failure reports the component down.
func Required(ping func(ctx context.Context) error) Check {
	return pingCheck(ping, StatusDown)
}

// Optional wraps ping so that a failure only degrades the component.
func Optional(ping func(ctx context.Context) error) Check {
	return pingCheck(ping, StatusDegraded)
}

func pingCheck(ping func(ctx context.Context) error, failed Status) Check {
	return func(ctx context.Context) ComponentHealth {
		if err := ping(ctx); err != nil {
			return ComponentHealth{Status: failed, Message: err.Error()}
		}
		return ComponentHealth{Status: StatusUp}
	}
}

// Run executes every check concurrently. The report status is the worst
// component status, or up when nothing is registered.
func (c *Checker) Run(ctx context.Context) Report {
	c.mu.RLock()
	checks := make(map[string]Check, len(c.checks))
	for name, check := range c.checks {
		checks[name] = check
	}
	c.mu.RUnlock()

	results := make(chan struct {
		name   string
		health ComponentHealth
	}, len(checks))
	for name, check := range checks {
		go func() {
			start := time.Now()
			h := check(ctx)
			h.Latency = time.Since(start).Round(time.Microsecond).String()
			results <- struct {
				name   string
				health ComponentHealth
			}{name, h}
		}()
	}

	report := Report{
		Status:     StatusUp,
		Components: make(map[string]ComponentHealth, len(checks)),
		Timestamp:  time.Now().UTC().Format(time.RFC3339),
	}
	for range checks {
		r := <-results
		report.Components[r.name] = r.health
		if r.health.Status.severity() > report.Status.severity() {
			report.Status = r.health.Status
		}
	}
	return report
}

// LiveHandler answers 200 whenever the process can serve HTTP.
func (c *Checker) LiveHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "alive"})
	}
}

// ReadyHandler answers 503 only when a required component is down.
func (c *Checker) ReadyHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
		defer cancel()
		report := c.Run(ctx)
		status := http.StatusOK
		if report.Status == StatusDown {
			status = http.StatusServiceUnavailable
		}
		writeJSON(w, status, report)
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}
