// Package interfaces defines small ports around third-party ambient concerns
// (logging, metrics, health, rate limiting, circuit breaking) so that
// internal packages depend on a narrow contract rather than directly on
// zap/prometheus/gobreaker/x-time-rate types.
package interfaces

import (
	"context"
	"time"
)

// Logger defines a logging interface. No type in this module implements
// it; components take a *zap.Logger directly.
type Logger interface {
	Debug(msg string, fields ...interface{})
	Info(msg string, fields ...interface{})
	Warn(msg string, fields ...interface{})
	Error(msg string, fields ...interface{})
	Fatal(msg string, fields ...interface{})
}

// Metrics defines a metrics sink. Implemented by an adapter over
// github.com/prometheus/client_golang in internal/metrics.
type Metrics interface {
	Counter(name string, value float64, tags map[string]string)
	Gauge(name string, value float64, tags map[string]string)
	Histogram(name string, value float64, tags map[string]string)
	Timer(name string, duration time.Duration, tags map[string]string)
}

// HealthChecker defines a health check the admin transport can poll.
type HealthChecker interface {
	Check(ctx context.Context) error
	GetName() string
}

// RateLimiter defines a rate limiting port. No type in this module
// implements it: internal/ingress uses golang.org/x/time/rate and the HTTP
// edge uses github.com/ulule/limiter/v3 directly.
type RateLimiter interface {
	Allow(ctx context.Context, key string) (bool, error)
	Reserve(ctx context.Context, key string, tokens int) error
	GetLimit(ctx context.Context, key string) (int, error)
	SetLimit(ctx context.Context, key string, limit int) error
}

// CircuitBreaker defines a circuit breaker port. No type in this module
// implements it; internal/events uses github.com/sony/gobreaker directly
// around event publishing.
type CircuitBreaker interface {
	Execute(ctx context.Context, fn func() error) error
	GetState() string
	Reset()
}
