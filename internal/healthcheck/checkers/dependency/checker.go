// Package dependencychecker probes backing services (database, cache) with a ping.
package dependencychecker

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"github.com/mediavault/mediavault/internal/healthcheck"
)

const (
	checkTypeDependency = "dependency.ping"
	defaultTimeout      = 2 * time.Second
)

// Pinger is satisfied by *pgxpool.Pool and the redis dedup store.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Checker pings one named dependency.
type Checker struct {
	name     string
	pinger   Pinger
	optional bool
	timeout  time.Duration
	logger   *slog.Logger
}

// Option configures a Checker.
type Option func(*Checker)

// Optional reports failures as warnings instead of errors.
func Optional() Option {
	return func(c *Checker) { c.optional = true }
}

// WithTimeout bounds each probe.
func WithTimeout(d time.Duration) Option {
	return func(c *Checker) {
		if d > 0 {
			c.timeout = d
		}
	}
}

// NewChecker creates a ping checker for the named dependency.
func NewChecker(log *slog.Logger, name string, pinger Pinger, opts ...Option) *Checker {
	if log == nil {
		log = slog.Default()
	}
	c := &Checker{
		name:    strings.TrimSpace(name),
		pinger:  pinger,
		timeout: defaultTimeout,
		logger:  log.With(slog.String("checker", "healthcheck_"+strings.TrimSpace(name))),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// ListChecks pings the dependency once.
func (c *Checker) ListChecks(ctx context.Context) []healthcheck.CheckResult {
	if ctx == nil {
		ctx = context.Background()
	}
	result := healthcheck.CheckResult{
		ID:   checkTypeDependency + "." + c.name,
		Type: checkTypeDependency,
	}
	if c.pinger == nil {
		result.Status = healthcheck.StatusUnknown
		result.Summary = c.name + " is not configured."
		return []healthcheck.CheckResult{result}
	}

	pingCtx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()
	started := time.Now()
	err := c.pinger.Ping(pingCtx)
	result.LatencyMs = time.Since(started).Milliseconds()
	if err != nil {
		c.logger.Warn("dependency ping failed", slog.Any("error", err))
		result.Status = healthcheck.StatusError
		if c.optional {
			result.Status = healthcheck.StatusWarn
		}
		result.Summary = c.name + " is unreachable."
		result.Detail = err.Error()
		return []healthcheck.CheckResult{result}
	}
	result.Status = healthcheck.StatusOK
	result.Summary = c.name + " is reachable."
	return []healthcheck.CheckResult{result}
}
