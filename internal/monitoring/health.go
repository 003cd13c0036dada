// Package monitoring registers the health checks of the assistant process.
package monitoring

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/lewisedginton/ron/internal/memory_store"
	"github.com/lewisedginton/ron/internal/storage_manager"
	"github.com/lewisedginton/ron/pkg/health"
	"github.com/lewisedginton/ron/pkg/logger"
)

// Config holds configuration for the health checks.
type Config struct {
	Logger  logger.Logger
	Version string

	// Store and Device select the document probed by the memory_store check.
	// The check is skipped when Store is nil.
	Store  storage_manager.DocumentProvider
	Device memory_store.DeviceKey

	Timeout          time.Duration // per check, defaults to 5s
	FailureThreshold int           // consecutive failures before reporting, defaults to 1
}

// NewChecker builds the checker served at /healthz.
func NewChecker(cfg Config) *health.Checker {
	if cfg.Logger == nil {
		cfg.Logger = logger.NewNopLogger()
	}
	checker := health.New(
		health.WithLogger(cfg.Logger),
		health.WithVersion(cfg.Version),
		health.WithTimeout(cfg.Timeout),
		health.WithFailureThreshold(cfg.FailureThreshold),
	)

	checker.Add(health.NewCheckFunc("process", func(context.Context) error { return nil }), true)
	if cfg.Store != nil {
		checker.Add(NewStoreCheck(cfg.Store, cfg.Device), false)
	}
	return checker
}

// StoreCheck probes the version of one memory document. A missing document
// is healthy; rejected credentials and transport failures are not.
type StoreCheck struct {
	store  storage_manager.DocumentProvider
	device memory_store.DeviceKey
}

// NewStoreCheck creates a store reachability check for device.
func NewStoreCheck(store storage_manager.DocumentProvider, device memory_store.DeviceKey) *StoreCheck {
	if device == "" {
		device = memory_store.UnknownDevice
	}
	return &StoreCheck{store: store, device: device}
}

// Name returns the check name.
func (c *StoreCheck) Name() string { return "memory_store" }

// Check performs a version probe against the store.
func (c *StoreCheck) Check(ctx context.Context) error {
	_, err := c.store.Head(ctx, c.device.Path())
	if err == nil || errors.Is(err, storage_manager.ErrNotFound) {
		return nil
	}
	return fmt.Errorf("%s: %w", memory_store.StatusOf(err), err)
}
