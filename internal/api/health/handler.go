// Package health exposes liveness and readiness endpoints. Readiness
// reflects provider credential state: the service itself has no external
// hard dependencies, so missing credentials degrade rather than fail.
package health

import (
	"encoding/json"
	"net/http"
	"sort"
	"time"

	"mosaic/pkg/logger"
)

// Authenticator reports whether a data provider holds usable credentials.
type Authenticator interface {
	Authenticated() bool
}

// Handler provides health check endpoints.
type Handler struct {
	log         *logger.Logger
	providers   map[string]Authenticator
	startTime   time.Time
	serviceName string
	version     string
}

func New(log *logger.Logger, providers map[string]Authenticator, serviceName, version string) *Handler {
	return &Handler{
		log:         log,
		providers:   providers,
		startTime:   time.Now(),
		serviceName: serviceName,
		version:     version,
	}
}

// Status is the readiness payload.
type Status struct {
	Status    string                     `json:"status"` // "healthy" or "degraded"
	Service   string                     `json:"service"`
	Version   string                     `json:"version"`
	Uptime    string                     `json:"uptime"`
	Timestamp string                     `json:"timestamp"`
	Checks    map[string]ComponentHealth `json:"checks"`
}

// ComponentHealth is the state of one provider.
type ComponentHealth struct {
	Status string `json:"status"`
	Error  string `json:"error,omitempty"`
}

// HandleHealth returns a plain ok status.
func (h *Handler) HandleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]string{"status": "ok"})
}

// HandleLiveness returns 200 OK while the process is running.
func (h *Handler) HandleLiveness(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]string{"status": "alive"})
}

// HandleReadiness reports per-provider credential state. The endpoint
// always returns 200; unconfigured providers mark the status degraded.
func (h *Handler) HandleReadiness(w http.ResponseWriter, r *http.Request) {
	checks := make(map[string]ComponentHealth, len(h.providers))
	degraded := false

	names := make([]string, 0, len(h.providers))
	for name := range h.providers {
		names = append(names, name)
	}
	sort.Strings(names)

	for _, name := range names {
		if h.providers[name].Authenticated() {
			checks[name] = ComponentHealth{Status: "configured"}
			continue
		}
		degraded = true
		checks[name] = ComponentHealth{Status: "unconfigured", Error: "missing credentials"}
	}

	status := Status{
		Status:    "healthy",
		Service:   h.serviceName,
		Version:   h.version,
		Uptime:    time.Since(h.startTime).String(),
		Timestamp: time.Now().Format(time.RFC3339),
		Checks:    checks,
	}
	if degraded {
		status.Status = "degraded"
	}

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(status); err != nil {
		h.log.Errorf("encode readiness response: %v", err)
	}
}
