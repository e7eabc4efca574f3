// Package health serves the liveness, readiness and dependency probes
package health

import (
	"context"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/labstack/echo/v4"
	"golang.org/x/sync/errgroup"
)

const (
	StatusHealthy   = "healthy"
	StatusDegraded  = "degraded"
	StatusUnhealthy = "unhealthy"

	probeTimeout = 3 * time.Second
)

// Pinger is a dependency whose reachability is reported
type Pinger interface {
	Ping(ctx context.Context) error
}

// PingerFunc adapts a function to Pinger
type PingerFunc func(ctx context.Context) error

func (f PingerFunc) Ping(ctx context.Context) error {
	return f(ctx)
}

type check struct {
	pinger   Pinger
	required bool
}

// Checker aggregates dependency probes. Checks are registered before serving.
type Checker struct {
	checks  map[string]check
	version string
	started time.Time
	ready   atomic.Bool
}

func NewChecker(version string) *Checker {
	return &Checker{
		checks:  make(map[string]check),
		version: version,
		started: time.Now(),
	}
}

// AddCheck registers a dependency. A failing required dependency makes the service unhealthy;
// an optional one only degrades it.
func (c *Checker) AddCheck(name string, p Pinger, required bool) {
	c.checks[name] = check{pinger: p, required: required}
}

// SetReady flips readiness once startup has finished or when shutdown begins
func (c *Checker) SetReady(ready bool) {
	c.ready.Store(ready)
}

func (c *Checker) RegisterRoutes(e *echo.Echo) {
	e.GET("/health", c.Health)
	e.GET("/health/live", c.Live)
	e.GET("/health/ready", c.Ready)
}

type HealthStatus struct {
	Status     string                  `json:"status"`
	Version    string                  `json:"version"`
	Uptime     string                  `json:"uptime"`
	Checks     map[string]*CheckResult `json:"checks"`
	ReportedAt time.Time               `json:"reported_at"`
}

type CheckResult struct {
	Status  string `json:"status"`
	Message string `json:"message,omitempty"`
	Latency string `json:"latency,omitempty"`
}

// Report pings every dependency concurrently
func (c *Checker) Report(ctx context.Context) *HealthStatus {
	ctx, cancel := context.WithTimeout(ctx, probeTimeout)
	defer cancel()

	report := &HealthStatus{
		Status:     StatusHealthy,
		Version:    c.version,
		Uptime:     time.Since(c.started).Round(time.Second).String(),
		Checks:     make(map[string]*CheckResult, len(c.checks)),
		ReportedAt: time.Now().UTC(),
	}

	var (
		mu sync.Mutex
		g  errgroup.Group
	)
	for name, chk := range c.checks {
		g.Go(func() error {
			start := time.Now()
			err := chk.pinger.Ping(ctx)

			mu.Lock()
			defer mu.Unlock()
			if err == nil {
				report.Checks[name] = &CheckResult{Status: StatusHealthy, Latency: time.Since(start).String()}
				return nil
			}
			report.Checks[name] = &CheckResult{Status: StatusUnhealthy, Message: err.Error()}
			switch {
			case chk.required:
				report.Status = StatusUnhealthy
			case report.Status == StatusHealthy:
				report.Status = StatusDegraded
			}
			return nil
		})
	}
	_ = g.Wait()

	return report
}

func (c *Checker) Health(ctx echo.Context) error {
	report := c.Report(ctx.Request().Context())
	code := http.StatusOK
	if report.Status == StatusUnhealthy {
		code = http.StatusServiceUnavailable
	}
	return ctx.JSON(code, report)
}

func (c *Checker) Live(ctx echo.Context) error {
	return ctx.JSON(http.StatusOK, map[string]string{"status": "alive"})
}

// Ready is true once startup finished and no required dependency is down
func (c *Checker) Ready(ctx echo.Context) error {
	if !c.ready.Load() {
		return ctx.JSON(http.StatusServiceUnavailable, map[string]string{"status": "not ready"})
	}
	if c.Report(ctx.Request().Context()).Status == StatusUnhealthy {
		return ctx.JSON(http.StatusServiceUnavailable, map[string]string{"status": "unavailable"})
	}
	return ctx.JSON(http.StatusOK, map[string]string{"status": "ready"})
}
