package telemetry

import (
	"bufio"
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"parlor/pkg/logger"
)

var (
	messagesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "parlor_messages_total",
			Help: "Messages accepted by the pipeline.",
		},
		[]string{"type", "target"},
	)

	deliveryAdvances = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "parlor_delivery_advances_total",
			Help: "Delivery records advanced, by resulting status.",
		},
		[]string{"status"},
	)

	reactionToggles = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "parlor_reaction_toggles_total",
			Help: "Reaction toggles, by action.",
		},
		[]string{"action"},
	)

	inviteOutcomes = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "parlor_invite_outcomes_total",
			Help: "Invitation resolutions, by outcome.",
		},
		[]string{"outcome"},
	)

	sweepRows = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "parlor_sweep_rows_total",
			Help: "Rows transitioned by background sweeps.",
		},
		[]string{"sweep"},
	)

	eventsPublished = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "parlor_events_published_total",
			Help: "Events accepted onto the event queue.",
		},
	)

	eventsDropped = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "parlor_events_dropped_total",
			Help: "Events dropped because a queue or subscriber was full.",
		},
	)

	openSessions = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "parlor_gateway_sessions",
			Help: "Currently connected gateway sessions.",
		},
	)

	httpDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "parlor_http_request_seconds",
			Help:    "HTTP request latency by route.",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "route", "status"},
	)
)

func init() {
	prometheus.MustRegister(messagesTotal)
	prometheus.MustRegister(deliveryAdvances)
	prometheus.MustRegister(reactionToggles)
	prometheus.MustRegister(inviteOutcomes)
	prometheus.MustRegister(sweepRows)
	prometheus.MustRegister(eventsPublished)
	prometheus.MustRegister(eventsDropped)
	prometheus.MustRegister(openSessions)
	prometheus.MustRegister(httpDuration)
}

// RegisterDiskGauge exposes the store's on-disk size without coupling
// this package to the store. Call once at startup.
func RegisterDiskGauge(fn func() float64) {
	prometheus.MustRegister(prometheus.NewGaugeFunc(
		prometheus.GaugeOpts{
			Name: "parlor_store_disk_bytes",
			Help: "Approximate bytes used by the pebble store.",
		},
		fn,
	))
}

func RecordMessage(msgType, target string) {
	messagesTotal.WithLabelValues(msgType, target).Inc()
}

func RecordDeliveryAdvance(status string) {
	deliveryAdvances.WithLabelValues(status).Inc()
}

func RecordReactionToggle(added bool) {
	action := "remove"
	if added {
		action = "add"
	}
	reactionToggles.WithLabelValues(action).Inc()
}

func RecordInviteOutcome(outcome string) {
	inviteOutcomes.WithLabelValues(outcome).Inc()
}

func RecordSweep(sweep string, rows int) {
	if rows > 0 {
		sweepRows.WithLabelValues(sweep).Add(float64(rows))
	}
}

func RecordEventPublished() { eventsPublished.Inc() }

func RecordEventDropped() { eventsDropped.Inc() }

func SessionOpened() { openSessions.Inc() }

func SessionClosed() { openSessions.Dec() }

var slowThreshold = 200 * time.Millisecond

// SetSlowThreshold sets the duration above which requests get a warn log.
func SetSlowThreshold(d time.Duration) {
	if d > 0 {
		slowThreshold = d
	}
}

// Handler returns the metrics endpoint handler.
func Handler() http.Handler { return promhttp.Handler() }

// Middleware records request latency into the histogram keyed by the mux
// route template, keeping label cardinality bounded.
func Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		srw := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(srw, r)
		dur := time.Since(start)

		route := "other"
		if cur := mux.CurrentRoute(r); cur != nil {
			if tmpl, err := cur.GetPathTemplate(); err == nil {
				route = tmpl
			}
		}
		httpDuration.WithLabelValues(r.Method, route, strconv.Itoa(srw.status)).Observe(dur.Seconds())

		if dur > slowThreshold {
			logger.Warn("slow_request", "method", r.Method, "route", route, "status", srw.status, "duration_ms", dur.Milliseconds())
		}
	})
}

// statusRecorder captures the response status code.
type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

// Hijack passes through so websocket upgrades work behind the middleware.
func (r *statusRecorder) Hijack() (net.Conn, *bufio.ReadWriter, error) {
	if hj, ok := r.ResponseWriter.(http.Hijacker); ok {
		return hj.Hijack()
	}
	return nil, nil, http.ErrNotSupported
}
