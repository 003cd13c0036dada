// Package health runs named dependency checks and reports them over HTTP.
//
// A failing critical check makes the service unavailable. A failing
// non-critical check only degrades it: the assistant keeps answering from
// defaults when its memory store is unreachable, so the store is usually
// registered as non-critical.
package health

import (
	"context"
	"sync"
	"time"

	"github.com/lewisedginton/ron/pkg/logger"
)

// Status values reported by a Checker.
const (
	StatusOK          = "ok"
	StatusDegraded    = "degraded"
	StatusUnavailable = "unavailable"
)

// Check is a single named dependency check. Check returns nil when healthy.
type Check interface {
	Name() string
	Check(ctx context.Context) error
}

// CheckFunc adapts a function to the Check interface.
type CheckFunc struct {
	name string
	fn   func(context.Context) error
}

// NewCheckFunc creates a new CheckFunc with the given name and function.
func NewCheckFunc(name string, fn func(context.Context) error) *CheckFunc {
	return &CheckFunc{name: name, fn: fn}
}

// Name returns the name of this check.
func (c *CheckFunc) Name() string { return c.name }

// Check executes the check function.
func (c *CheckFunc) Check(ctx context.Context) error { return c.fn(ctx) }

// CheckResult is the outcome of one check execution.
type CheckResult struct {
	Name     string
	Healthy  bool
	Critical bool
	Error    string
	Latency  time.Duration
}

// Report aggregates the results of every registered check.
type Report struct {
	Status string
	Checks []CheckResult
}

type registered struct {
	check    Check
	critical bool
}

// Checker runs registered checks concurrently. A check is only reported as
// failing after failureThreshold consecutive failures.
type Checker struct {
	mu               sync.Mutex
	checks           []registered
	failures         map[string]int
	timeout          time.Duration
	failureThreshold int
	logger           logger.Logger
	version          string
	started          time.Time
}

// Option is a functional option for configuring a Checker.
type Option func(*Checker)

// WithTimeout bounds each check. Default is 5 seconds.
func WithTimeout(d time.Duration) Option {
	return func(c *Checker) {
		if d > 0 {
			c.timeout = d
		}
	}
}

// WithLogger sets the logger for check failures.
func WithLogger(l logger.Logger) Option {
	return func(c *Checker) { c.logger = l }
}

// WithFailureThreshold sets how many consecutive failures turn a check
// unhealthy. Default is 1.
func WithFailureThreshold(threshold int) Option {
	return func(c *Checker) {
		if threshold > 0 {
			c.failureThreshold = threshold
		}
	}
}

// WithVersion sets the version string included in HTTP reports.
func WithVersion(version string) Option {
	return func(c *Checker) { c.version = version }
}

// New creates a Checker with the given options.
func New(opts ...Option) *Checker {
	c := &Checker{
		failures:         make(map[string]int),
		timeout:          5 * time.Second,
		failureThreshold: 1,
		logger:           logger.NewNopLogger(),
		started:          time.Now(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Add registers a check. Critical checks make the report unavailable when
// they fail, others make it degraded.
func (c *Checker) Add(check Check, critical bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.checks = append(c.checks, registered{check: check, critical: critical})
}

// Run executes every check and aggregates the results in registration order.
func (c *Checker) Run(ctx context.Context) Report {
	c.mu.Lock()
	checks := append([]registered(nil), c.checks...)
	c.mu.Unlock()

	results := make([]CheckResult, len(checks))
	var wg sync.WaitGroup
	for i, r := range checks {
		wg.Add(1)
		go func(i int, r registered) {
			defer wg.Done()
			results[i] = c.run(ctx, r)
		}(i, r)
	}
	wg.Wait()

	report := Report{Status: StatusOK, Checks: results}
	for _, res := range results {
		switch {
		case res.Healthy:
		case res.Critical:
			report.Status = StatusUnavailable
		case report.Status == StatusOK:
			report.Status = StatusDegraded
		}
	}
	return report
}

func (c *Checker) run(parent context.Context, r registered) CheckResult {
	ctx, cancel := context.WithTimeout(parent, c.timeout)
	defer cancel()

	start := time.Now()
	err := r.check.Check(ctx)
	name := r.check.Name()
	result := CheckResult{Name: name, Healthy: true, Critical: r.critical, Latency: time.Since(start)}

	c.mu.Lock()
	defer c.mu.Unlock()

	if err == nil {
		c.failures[name] = 0
		return result
	}

	c.failures[name]++
	if c.failures[name] < c.failureThreshold {
		c.logger.Debug("Health check failed below threshold",
			logger.StringField("check", name),
			logger.IntField("failures", c.failures[name]),
			logger.ErrorField(err))
		return result
	}

	result.Healthy = false
	result.Error = err.Error()
	c.logger.Warn("Health check failed",
		logger.StringField("check", name),
		logger.IntField("failures", c.failures[name]),
		logger.DurationField("latency", result.Latency),
		logger.ErrorField(err))
	return result
}
