package metrics

import (
	"bufio"
	"fmt"
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	httpRequests = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "coderoom",
		Name:      "http_requests_total",
		Help:      "Total number of HTTP requests received",
	}, []string{"method", "path", "status"})

	httpLatency = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "coderoom",
		Name:      "http_request_duration_seconds",
		Help:      "Duration of HTTP requests in seconds",
		Buckets:   prometheus.DefBuckets,
	}, []string{"method", "path", "status"})

	// ActiveConnections tracks open room websockets.
	ActiveConnections = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "coderoom",
		Name:      "ws_active_connections",
		Help:      "Currently open websocket connections",
	})

	// ActiveRooms tracks in-memory room sessions.
	ActiveRooms = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "coderoom",
		Name:      "active_rooms",
		Help:      "Room sessions currently held in memory",
	})

	// TurnHandoffs counts successfully finished turns.
	TurnHandoffs = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "coderoom",
		Name:      "turn_handoffs_total",
		Help:      "Completed turn hand-offs (document persisted, turn freed)",
	})

	// RoomsEvicted counts idle room sessions dropped by the reaper.
	RoomsEvicted = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "coderoom",
		Name:      "rooms_evicted_total",
		Help:      "Idle room sessions evicted from memory",
	})
)

type responseRecorder struct {
	http.ResponseWriter
	status int
}

func (r *responseRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}

func (r *responseRecorder) Write(b []byte) (int, error) {
	if r.status == 0 {
		r.status = http.StatusOK
	}
	return r.ResponseWriter.Write(b)
}

func (r *responseRecorder) Flush() {
	if f, ok := r.ResponseWriter.(http.Flusher); ok {
		f.Flush()
	}
}

// Hijack keeps websocket upgrades working behind the middleware.
func (r *responseRecorder) Hijack() (net.Conn, *bufio.ReadWriter, error) {
	if h, ok := r.ResponseWriter.(http.Hijacker); ok {
		return h.Hijack()
	}
	return nil, nil, fmt.Errorf("metrics: underlying ResponseWriter does not support hijacking")
}

// Middleware records request metrics with Prometheus labels.
func Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		rec := &responseRecorder{ResponseWriter: w, status: http.StatusOK}
		start := time.Now()

		next.ServeHTTP(rec, r)

		labels := prometheus.Labels{
			"method": r.Method,
			"path":   r.URL.Path,
			"status": strconv.Itoa(rec.status),
		}
		httpRequests.With(labels).Inc()
		httpLatency.With(labels).Observe(time.Since(start).Seconds())
	})
}
