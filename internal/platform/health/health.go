// Package health serves liveness and readiness endpoints.
package health

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"classlog/pkg/platform/httputil"
)

const readyTimeout = 2 * time.Second

// Check is one readiness dependency. A nil Ping marks the dependency as not
// configured; it is reported as skipped.
type Check struct {
	Name string
	Ping func(ctx context.Context) error
}

// CheckResult describes a single dependency check.
type CheckResult struct {
	Name   string `json:"name"`
	Status string `json:"status"` // ok, fail, skipped
	Error  string `json:"error,omitempty"`
}

// ReadyResponse summarizes readiness.
type ReadyResponse struct {
	Status string        `json:"status"`
	Checks []CheckResult `json:"checks"`
	Now    string        `json:"now"`
}

type Handler struct {
	checks    []Check
	startedAt time.Time
}

func New(startedAt time.Time, checks ...Check) *Handler {
	return &Handler{checks: checks, startedAt: startedAt}
}

func (h *Handler) Register(r chi.Router) {
	r.Get("/healthz", h.HandleLive)
	r.Get("/readyz", h.HandleReady)
}

func (h *Handler) HandleLive(w http.ResponseWriter, _ *http.Request) {
	httputil.WriteJSON(w, http.StatusOK, map[string]any{
		"ok":      true,
		"started": h.startedAt.UTC().Format(time.RFC3339),
	})
}

// HandleReady pings every configured dependency and answers 503 when any of
// them fails.
func (h *Handler) HandleReady(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), readyTimeout)
	defer cancel()

	resp := ReadyResponse{Status: "ok", Checks: make([]CheckResult, 0, len(h.checks))}
	for _, c := range h.checks {
		result := CheckResult{Name: c.Name, Status: "skipped"}
		if c.Ping != nil {
			result.Status = "ok"
			if err := c.Ping(ctx); err != nil {
				result.Status = "fail"
				result.Error = err.Error()
				resp.Status = "fail"
			}
		}
		resp.Checks = append(resp.Checks, result)
	}
	resp.Now = time.Now().UTC().Format(time.RFC3339)

	status := http.StatusOK
	if resp.Status != "ok" {
		status = http.StatusServiceUnavailable
	}
	httputil.WriteJSON(w, status, resp)
}
