package httpx

import (
	"context"
	"net/http"

	"log/slog"

	"wheelroom/internal/app"
	"wheelroom/internal/broadcast"
	"wheelroom/internal/cleanup"
	"wheelroom/internal/ws"
	"wheelroom/pkg/metrics"
)

// NewRouter wires up all HTTP routes, middleware, and handlers
func NewRouter(baseCtx context.Context, cfg app.Config, logger *slog.Logger, hub *ws.Hub, sched *cleanup.Scheduler, bc *broadcast.Broadcaster) http.Handler {
	mw := NewMiddleware(cfg)
	api := &CleanupAPI{Log: logger, Scheduler: sched, Cache: bc.Cache(), BaseCtx: baseCtx}

	mux := http.NewServeMux()

	// Health / readiness / metrics
	mux.Handle("/healthz", http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) { w.WriteHeader(200) }))
	mux.Handle("/readyz", http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) { w.WriteHeader(200) }))
	mux.Handle("/metrics", metrics.Handler())

	// WebSocket endpoint
	mux.Handle("/ws", http.HandlerFunc(hub.ServeWS))

	// Cleanup admin surface (operator JWT)
	mux.Handle("POST /api/cleanup/run", mw.Auth(http.HandlerFunc(api.Run)))
	mux.Handle("POST /api/cleanup/start", mw.Auth(http.HandlerFunc(api.Start)))
	mux.Handle("POST /api/cleanup/stop", mw.Auth(http.HandlerFunc(api.Stop)))
	mux.Handle("GET /api/cleanup/status", mw.Auth(http.HandlerFunc(api.Status)))
	mux.Handle("GET /api/cache/stats", mw.Auth(http.HandlerFunc(api.CacheStats)))

	// CORS + rate limit applied globally
	return mw.Wrap(mux)
}
