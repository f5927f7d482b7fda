// Package metrics exposes Prometheus collectors for the alarm server.
//
// Collectors are package-level and become live after Register; until then the
// recording helpers are no-ops, so packages can record unconditionally.
package metrics

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"sync/atomic"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const (
	namespace = "ua_alarm"

	// readHeaderTimeout bounds slow clients of the metrics endpoint.
	readHeaderTimeout = 5 * time.Second
)

// Outcomes of condition method calls.
const (
	OutcomeOK       = "ok"
	OutcomeRejected = "rejected"
	OutcomeFailed   = "failed"
)

//nolint:gochecknoglobals // Collectors are process-wide.
var (
	registered atomic.Bool

	eventsTriggered = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "events",
			Name:      "triggered_total",
			Help:      "Number of notifications triggered per event type.",
		}, []string{"type"},
	)
	dispatchDropped = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "dispatch",
			Name:      "dropped_total",
			Help:      "Number of notifications dropped because the queue was full.",
		},
	)
	dispatchQueue = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "dispatch",
			Name:      "queue_length",
			Help:      "Notifications waiting for delivery.",
		},
	)
	sinkErrors = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "dispatch",
			Name:      "sink_errors_total",
			Help:      "Number of failed deliveries per sink.",
		}, []string{"sink"},
	)
	methodCalls = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "condition",
			Name:      "method_calls_total",
			Help:      "Number of condition method calls per method and outcome.",
		}, []string{"method", "outcome"},
	)
	activeBand = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "condition",
			Name:      "active_band",
			Help:      "Active limit band of each alarm (1 = active, 0 = inactive).",
		}, []string{"condition", "band"},
	)
)

// Register registers all collectors with r. Calls after a successful one are no-ops.
func Register(r prometheus.Registerer) error {
	if registered.Load() {
		return nil
	}

	collectors := []prometheus.Collector{
		eventsTriggered,
		dispatchDropped,
		dispatchQueue,
		sinkErrors,
		methodCalls,
		activeBand,
	}

	for _, c := range collectors {
		if err := r.Register(c); err != nil {
			var already prometheus.AlreadyRegisteredError
			if errors.As(err, &already) {
				continue
			}

			return fmt.Errorf("register collector: %w", err)
		}
	}

	registered.Store(true)

	return nil
}

// Handler serves the default gatherer.
func Handler() http.Handler {
	return promhttp.Handler()
}

// Serve exposes Handler on addr until ctx is canceled.
func Serve(ctx context.Context, addr string) error {
	listener, err := (&net.ListenConfig{}).Listen(ctx, "tcp", addr)
	if err != nil {
		return fmt.Errorf("listen metrics: %w", err)
	}

	mux := http.NewServeMux()
	mux.Handle("/metrics", Handler())

	srv := &http.Server{
		Handler:           mux,
		ReadHeaderTimeout: readHeaderTimeout,
	}

	go func() {
		<-ctx.Done()

		shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), readHeaderTimeout)
		defer cancel()

		_ = srv.Shutdown(shutdownCtx) //nolint:errcheck // Best effort on exit.
	}()

	if err := srv.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("serve metrics: %w", err)
	}

	return nil
}

// IncTriggered counts a triggered notification.
func IncTriggered(typeName string) {
	if registered.Load() {
		eventsTriggered.WithLabelValues(typeName).Inc()
	}
}

// IncDropped counts a notification dropped by the dispatcher.
func IncDropped() {
	if registered.Load() {
		dispatchDropped.Inc()
	}
}

// SetQueueLength records the dispatcher backlog.
func SetQueueLength(n int) {
	if registered.Load() {
		dispatchQueue.Set(float64(n))
	}
}

// IncSinkError counts a failed delivery.
func IncSinkError(sink string) {
	if registered.Load() {
		sinkErrors.WithLabelValues(sink).Inc()
	}
}

// IncMethodCall counts a condition method call.
func IncMethodCall(method, outcome string) {
	if registered.Load() {
		methodCalls.WithLabelValues(method, outcome).Inc()
	}
}

// SetActiveBand marks band as the active one of a condition, clearing the others.
// An empty band clears all of them.
func SetActiveBand(condition, band string, bands []string) {
	if !registered.Load() {
		return
	}

	for _, b := range bands {
		value := 0.0
		if b == band {
			value = 1
		}

		activeBand.WithLabelValues(condition, b).Set(value)
	}
}
