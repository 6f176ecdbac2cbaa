// Package admin exposes an operational router, separate from the
// command-API gin router, for health and readiness checks polled by
// infrastructure rather than trading clients.
package admin

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/gorilla/mux"
	"gopkg.in/yaml.v2"

	"github.com/nexustrade/lobengine/pkg/interfaces"
)

// Router is the admin HTTP surface: liveness, readiness (aggregating
// registered health checks), version, and a read-only config dump.
type Router struct {
	mux            *mux.Router
	checks         []interfaces.HealthChecker
	version        string
	configSnapshot func() interface{}
}

// New constructs a Router reporting version and polling checks on /readyz.
// configSnapshot, if non-nil, backs /config with a YAML rendering of the
// engine's current configuration; pass nil to omit that route.
func New(version string, configSnapshot func() interface{}, checks ...interfaces.HealthChecker) *Router {
	r := &Router{mux: mux.NewRouter(), checks: checks, version: version, configSnapshot: configSnapshot}
	r.mux.HandleFunc("/livez", r.handleLive).Methods(http.MethodGet)
	r.mux.HandleFunc("/readyz", r.handleReady).Methods(http.MethodGet)
	r.mux.HandleFunc("/version", r.handleVersion).Methods(http.MethodGet)
	if configSnapshot != nil {
		r.mux.HandleFunc("/config", r.handleConfig).Methods(http.MethodGet)
	}
	return r
}

// Handler returns the underlying http.Handler.
func (r *Router) Handler() http.Handler { return r.mux }

func (r *Router) handleLive(w http.ResponseWriter, req *http.Request) {
	w.WriteHeader(http.StatusOK)
}

func (r *Router) handleReady(w http.ResponseWriter, req *http.Request) {
	ctx := req.Context()
	failures := map[string]string{}
	for _, check := range r.checks {
		if err := check.Check(ctx); err != nil {
			failures[check.GetName()] = err.Error()
		}
	}
	if len(failures) > 0 {
		w.WriteHeader(http.StatusServiceUnavailable)
		json.NewEncoder(w).Encode(failures)
		return
	}
	w.WriteHeader(http.StatusOK)
}

func (r *Router) handleVersion(w http.ResponseWriter, req *http.Request) {
	json.NewEncoder(w).Encode(map[string]string{"version": r.version})
}

// handleConfig renders the current configuration snapshot as YAML, the
// operator-facing format the config file itself is written in.
func (r *Router) handleConfig(w http.ResponseWriter, req *http.Request) {
	body, err := yaml.Marshal(r.configSnapshot())
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/x-yaml")
	w.Write(body)
}

// ManagerHealth adapts a liveness probe function into a HealthChecker so
// the matching manager itself can be polled by /readyz.
type ManagerHealth struct {
	Name string
	Fn   func(ctx context.Context) error
}

func (m ManagerHealth) Check(ctx context.Context) error { return m.Fn(ctx) }
func (m ManagerHealth) GetName() string                 { return m.Name }

var _ interfaces.HealthChecker = ManagerHealth{}
