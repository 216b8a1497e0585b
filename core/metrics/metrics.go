// Package metrics provides Prometheus metrics for the bot runtime.
package metrics

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/m3rciful/kinobot/core/logger"
)

const namespace = "kinobot"

var (
	// UpdatesTotal counts incoming Telegram updates by kind.
	UpdatesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "updates_total",
			Help:      "Total number of Telegram updates received",
		},
		[]string{"kind"},
	)

	// HandlerDuration measures handler execution time.
	HandlerDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "handler_duration_seconds",
			Help:      "Duration of update handlers in seconds",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"handler", "status"},
	)

	// MessagesSent counts messages sent back to users.
	MessagesSent = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "messages_sent_total",
			Help:      "Total number of messages sent or edited",
		},
	)

	// SendsTotal counts outbound Telegram calls made by the dispatcher by action and result.
	SendsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "sends_total",
			Help:      "Outbound Telegram calls by action and result",
		},
		[]string{"action", "result"},
	)

	// RateLimitedTotal counts updates dropped by the per-user limiter.
	RateLimitedTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "rate_limited_total",
			Help:      "Total number of updates dropped by rate limiting",
		},
	)

	// APIRequestsTotal counts upstream movie API requests by endpoint and status.
	APIRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "api_requests_total",
			Help:      "Total number of movie API requests",
		},
		[]string{"endpoint", "status"},
	)

	// CacheTotal counts response cache lookups by result.
	CacheTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "cache_lookups_total",
			Help:      "Movie API response cache lookups",
		},
		[]string{"result"},
	)

	// FlowsCompleted counts finished conversations by flow and outcome.
	FlowsCompleted = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "flows_completed_total",
			Help:      "Conversations that reached a fetch, by outcome",
		},
		[]string{"flow", "outcome"},
	)
)

// RecordHandler records one handled update.
func RecordHandler(handler, status string, took time.Duration) {
	HandlerDuration.WithLabelValues(handler, status).Observe(took.Seconds())
}

// RecordSend records one dispatched Telegram call. Result is "ok" or an error kind.
func RecordSend(action, result string) {
	SendsTotal.WithLabelValues(action, result).Inc()
}

// RecordAPIRequest records one upstream API call.
func RecordAPIRequest(endpoint, status string) {
	APIRequestsTotal.WithLabelValues(endpoint, status).Inc()
}

// RecordCache records a cache hit or miss.
func RecordCache(hit bool) {
	result := "miss"
	if hit {
		result = "hit"
	}
	CacheTotal.WithLabelValues(result).Inc()
}

// RecordFlow records a completed conversation.
func RecordFlow(flow, outcome string) {
	FlowsCompleted.WithLabelValues(flow, outcome).Inc()
}

// Serve exposes /metrics on addr until ctx is done. An empty addr disables the listener.
func Serve(ctx context.Context, addr string) error {
	if addr == "" {
		return nil
	}
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	srv := &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info(ctx, "metrics", "metrics.listen", slog.String("status", "ok"), slog.String("listen", addr))
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("metrics: listen %s: %w", addr, err)
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("metrics: shutdown: %w", err)
		}
		return nil
	}
}
