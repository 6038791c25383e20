package metrics

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/elee1766/gotrae/src/aisdk"
)

// PrometheusRecorder implements the Recorder interface using Prometheus metrics.
type PrometheusRecorder struct {
	requestsTotal   *prometheus.CounterVec
	tokensTotal     *prometheus.CounterVec
	requestDuration *prometheus.HistogramVec
	toolCallsTotal  *prometheus.CounterVec
	stepsTotal      *prometheus.CounterVec
}

// NewPrometheusRecorder registers the collectors with reg. A nil reg uses the
// default registerer.
func NewPrometheusRecorder(reg prometheus.Registerer) *PrometheusRecorder {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	factory := promauto.With(reg)
	return &PrometheusRecorder{
		requestsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "llm_requests_total",
				Help: "Total number of LLM requests by provider, model and status",
			},
			[]string{"provider", "model", "status"},
		),
		tokensTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "llm_tokens_total",
				Help: "Total number of tokens used in LLM requests",
			},
			[]string{"provider", "model", "type"},
		),
		requestDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "llm_request_duration_seconds",
				Help:    "Duration of LLM requests in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"provider", "model"},
		),
		toolCallsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "tool_calls_total",
				Help: "Total number of tool calls by tool and status",
			},
			[]string{"tool", "status"},
		),
		stepsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "agent_steps_total",
				Help: "Total number of agent steps by final state",
			},
			[]string{"state"},
		),
	}
}

// ObserveRequest records metrics for a completed LLM request.
func (p *PrometheusRecorder) ObserveRequest(provider, model string, usage *aisdk.Usage, err error, duration time.Duration) {
	status := StatusSuccess
	if err != nil {
		status = StatusError + ":" + ErrorType(err)
	}
	p.requestsTotal.WithLabelValues(provider, model, status).Inc()

	if err == nil && usage != nil {
		p.tokensTotal.WithLabelValues(provider, model, "input").Add(float64(usage.InputTokens))
		p.tokensTotal.WithLabelValues(provider, model, "output").Add(float64(usage.OutputTokens))
		if usage.CacheReadInputTokens > 0 {
			p.tokensTotal.WithLabelValues(provider, model, "cache_read").Add(float64(usage.CacheReadInputTokens))
		}
		if usage.CacheCreationInputTokens > 0 {
			p.tokensTotal.WithLabelValues(provider, model, "cache_creation").Add(float64(usage.CacheCreationInputTokens))
		}
	}

	p.requestDuration.WithLabelValues(provider, model).Observe(duration.Seconds())
}

// ObserveToolCall records one tool call.
func (p *PrometheusRecorder) ObserveToolCall(tool string, success bool) {
	status := StatusSuccess
	if !success {
		status = StatusError
	}
	p.toolCallsTotal.WithLabelValues(tool, status).Inc()
}

// ObserveStep records a finished step.
func (p *PrometheusRecorder) ObserveStep(state string) {
	p.stepsTotal.WithLabelValues(state).Inc()
}

// Serve exposes gatherer on addr under /metrics until ctx is done.
func Serve(ctx context.Context, addr string, gatherer prometheus.Gatherer, logger *slog.Logger) error {
	if gatherer == nil {
		gatherer = prometheus.DefaultGatherer
	}
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{}))
	srv := &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 10 * time.Second}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()

	logger.Info("serving metrics", "addr", addr)
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}
