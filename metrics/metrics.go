// Package metrics exposes Prometheus counters for model calls, tool calls and
// relay traffic.
package metrics

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/hupe1980/agentstarter/logging"
)

var (
	runs = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "agentstarter_runs_total",
		Help: "Agent runs by outcome",
	}, []string{"status"})
	modelCalls = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "agentstarter_model_calls_total",
		Help: "Model generate calls",
	}, []string{"provider", "status"})
	toolCalls = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "agentstarter_tool_calls_total",
		Help: "Tool invocations",
	}, []string{"tool", "status"})
	toolDuration = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "agentstarter_tool_duration_seconds",
		Help:    "Tool execution latency",
		Buckets: prometheus.DefBuckets,
	}, []string{"tool"})
	relayRequests = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "agentstarter_relay_requests_total",
		Help: "ntfy relay requests",
	}, []string{"op", "status"})
)

func init() {
	prometheus.MustRegister(runs, modelCalls, toolCalls, toolDuration, relayRequests)
}

// Status label values.
const (
	StatusOK    = "ok"
	StatusError = "error"
)

// StatusOf maps err to a status label.
func StatusOf(err error) string {
	if err != nil {
		return StatusError
	}
	return StatusOK
}

// IncRun counts a finished run.
func IncRun(status string) { runs.WithLabelValues(status).Inc() }

// IncModelCall counts a model call.
func IncModelCall(provider, status string) { modelCalls.WithLabelValues(provider, status).Inc() }

// ObserveTool counts a tool call and records its latency.
func ObserveTool(tool, status string, d time.Duration) {
	toolCalls.WithLabelValues(tool, status).Inc()
	toolDuration.WithLabelValues(tool).Observe(d.Seconds())
}

// IncRelay counts a relay request.
func IncRelay(op, status string) { relayRequests.WithLabelValues(op, status).Inc() }

// Handler returns the Prometheus scrape handler.
func Handler() http.Handler { return promhttp.Handler() }

// Start runs a Prometheus handler on listen until ctx is done. An empty
// listen address disables the server.
func Start(ctx context.Context, listen string, log logging.Logger) error {
	if listen == "" {
		return nil
	}
	log = logging.OrNoOp(log)

	mux := http.NewServeMux()
	mux.Handle("/metrics", Handler())
	srv := &http.Server{Addr: listen, Handler: mux, ReadHeaderTimeout: 5 * time.Second}

	go func() {
		<-ctx.Done()
		_ = srv.Shutdown(context.Background())
	}()
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("metrics.server.failed", "addr", listen, "error", err.Error())
		}
	}()

	log.Info("metrics.server.start", "addr", listen)
	return nil
}
