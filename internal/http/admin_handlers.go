package httpx

import (
	"context"
	"encoding/json"
	"net/http"

	"log/slog"

	"wheelroom/internal/broadcast"
	"wheelroom/internal/cleanup"
	"wheelroom/pkg/auth"
)

// CleanupAPI is the admin control surface for the eviction scheduler
type CleanupAPI struct {
	Log       *slog.Logger
	Scheduler *cleanup.Scheduler
	Cache     *broadcast.Cache

	// BaseCtx outlives individual requests; Start must not inherit a
	// request-scoped context
	BaseCtx context.Context
}

// Run triggers one synchronous eviction pass and returns its metrics
func (a *CleanupAPI) Run(w http.ResponseWriter, r *http.Request) {
	op := auth.OperatorID(r.Context())
	a.Log.Info("admin.cleanup.run", "operator", op)
	m := a.Scheduler.RunOnce(r.Context())
	writeJSON(w, m)
}

// Start enables the periodic schedule
func (a *CleanupAPI) Start(w http.ResponseWriter, r *http.Request) {
	a.Log.Info("admin.cleanup.start", "operator", auth.OperatorID(r.Context()))
	a.Scheduler.Start(a.BaseCtx)
	writeJSON(w, a.Scheduler.Status())
}

// Stop disables the periodic schedule
func (a *CleanupAPI) Stop(w http.ResponseWriter, r *http.Request) {
	a.Log.Info("admin.cleanup.stop", "operator", auth.OperatorID(r.Context()))
	a.Scheduler.Stop()
	writeJSON(w, a.Scheduler.Status())
}

// Status reports whether the scheduler runs and with what knobs
func (a *CleanupAPI) Status(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, a.Scheduler.Status())
}

// CacheStats reports the local snapshot cache size and room ids
func (a *CleanupAPI) CacheStats(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, a.Cache.Stats())
}

// send JSON with proper headers
func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(v)
}
