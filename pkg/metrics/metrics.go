package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Broadcast-side collectors
var (
	DiffDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "wheelroom_diff_duration_seconds",
		Help:    "Time spent computing room state diffs.",
		Buckets: prometheus.ExponentialBuckets(0.0001, 2, 12),
	})
	EmitDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "wheelroom_broadcast_duration_seconds",
		Help:    "Time spent emitting a room state update to a group.",
		Buckets: prometheus.ExponentialBuckets(0.0005, 2, 12),
	})
	BroadcastsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "wheelroom_broadcasts_total",
		Help: "Broadcast attempts by outcome.",
	}, []string{"result"}) // sent | unchanged | no_clients | failed
	ConnectedClients = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "wheelroom_connected_clients",
		Help: "Currently connected websocket clients across all rooms.",
	})
)

// Cleanup-side collectors
var (
	CleanupPasses = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "wheelroom_cleanup_passes_total",
		Help: "Eviction passes by outcome.",
	}, []string{"result"}) // ok | aborted
	KeysScanned = promauto.NewCounter(prometheus.CounterOpts{
		Name: "wheelroom_cleanup_keys_scanned_total",
		Help: "Store keys examined by the eviction scheduler.",
	})
	RoomsEvicted = promauto.NewCounter(prometheus.CounterOpts{
		Name: "wheelroom_cleanup_rooms_evicted_total",
		Help: "Rooms whose local cache and transport group were evicted.",
	})
)

// Handler exposes Prometheus metrics at /metrics
func Handler() http.Handler {
	return promhttp.Handler()
}
