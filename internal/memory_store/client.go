package memory_store //nolint:revive // var-naming: using underscores for domain clarity

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/lewisedginton/ron/internal/storage_manager"
	"github.com/lewisedginton/ron/pkg/logger"
	"github.com/lewisedginton/ron/pkg/metrics"
)

const (
	defaultMaxAttempts  = 3
	defaultFetchTimeout = 15 * time.Second
	defaultProbeTimeout = 10 * time.Second
	defaultWriteTimeout = 20 * time.Second
)

// Snapshot is a decoded document and the version it was read at.
// Version is empty when the document does not exist yet.
type Snapshot struct {
	Document *Document
	Version  string
}

// Exists reports whether the snapshot was read from a stored document.
func (s *Snapshot) Exists() bool { return s.Version != "" }

// Config holds configuration for the store client.
type Config struct {
	Provider     storage_manager.DocumentProvider
	Logger       logger.Logger
	Metrics      *metrics.Metrics
	Defaults     Defaults
	MaxAttempts  int
	FetchTimeout time.Duration
	ProbeTimeout time.Duration
	WriteTimeout time.Duration
}

// Client reads and writes memory documents with version preconditions.
type Client struct {
	provider     storage_manager.DocumentProvider
	log          logger.Logger
	metrics      *metrics.Metrics
	defaults     Defaults
	maxAttempts  int
	fetchTimeout time.Duration
	probeTimeout time.Duration
	writeTimeout time.Duration
}

// NewClient creates a store client with the given configuration.
func NewClient(cfg Config) *Client {
	if cfg.Provider == nil {
		panic("document provider cannot be nil")
	}
	if cfg.Logger == nil {
		panic("logger cannot be nil")
	}
	c := &Client{
		provider:     cfg.Provider,
		log:          cfg.Logger,
		metrics:      cfg.Metrics,
		defaults:     cfg.Defaults.withFallbacks(),
		maxAttempts:  cfg.MaxAttempts,
		fetchTimeout: cfg.FetchTimeout,
		probeTimeout: cfg.ProbeTimeout,
		writeTimeout: cfg.WriteTimeout,
	}
	if c.maxAttempts <= 0 {
		c.maxAttempts = defaultMaxAttempts
	}
	if c.fetchTimeout <= 0 {
		c.fetchTimeout = defaultFetchTimeout
	}
	if c.probeTimeout <= 0 {
		c.probeTimeout = defaultProbeTimeout
	}
	if c.writeTimeout <= 0 {
		c.writeTimeout = defaultWriteTimeout
	}
	return c
}

// Defaults returns the facts seeded into new documents.
func (c *Client) Defaults() Defaults { return c.defaults }

// Fetch reads the document for key. A missing document is not an error: it
// reads as the default document with an empty version. A document that cannot
// be decoded returns ErrCorruptDocument together with a snapshot of the
// defaults at the stored version.
func (c *Client) Fetch(ctx context.Context, key DeviceKey) (*Snapshot, error) {
	ctx, cancel := context.WithTimeout(ctx, c.fetchTimeout)
	defer cancel()

	obj, err := c.provider.Get(ctx, key.Path())
	c.observe("fetch", err)
	if errors.Is(err, storage_manager.ErrNotFound) {
		c.log.Debug("Memory document not found, using defaults", logger.DeviceField(key.String()))
		return &Snapshot{Document: NewDocument(c.defaults)}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("fetch memory for %s: %w", key, err)
	}

	doc, err := Decode(obj.Data, c.defaults)
	if err != nil {
		c.observe("decode", ErrCorruptDocument)
		return &Snapshot{Document: NewDocument(c.defaults), Version: obj.Version},
			fmt.Errorf("fetch memory for %s: %w: %w", key, ErrCorruptDocument, err)
	}
	return &Snapshot{Document: doc, Version: obj.Version}, nil
}

// probe returns the current version, or "" when the document is absent.
func (c *Client) probe(ctx context.Context, key DeviceKey) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, c.probeTimeout)
	defer cancel()

	version, err := c.provider.Head(ctx, key.Path())
	c.observe("probe", err)
	if errors.Is(err, storage_manager.ErrNotFound) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("probe memory for %s: %w", key, err)
	}
	return version, nil
}

func (c *Client) write(ctx context.Context, key DeviceKey, doc *Document, ifVersion string) (string, error) {
	data, err := Encode(doc)
	if err != nil {
		return "", fmt.Errorf("encode memory for %s: %w", key, err)
	}

	ctx, cancel := context.WithTimeout(ctx, c.writeTimeout)
	defer cancel()

	version, err := c.provider.Put(ctx, key.Path(), data, ifVersion)
	c.observe("write", err)
	if err != nil {
		return "", fmt.Errorf("write memory for %s: %w", key, err)
	}
	return version, nil
}

// PersistFull overwrites the whole document, using the current version as
// the precondition. On conflict it re-probes and rewrites, so the last writer
// wins for the whole document.
func (c *Client) PersistFull(ctx context.Context, key DeviceKey, doc *Document) error {
	for attempt := 1; ; attempt++ {
		version, err := c.probe(ctx, key)
		if err != nil {
			return err
		}
		if _, err = c.write(ctx, key, doc, version); err == nil {
			c.log.Debug("Memory document written",
				logger.DeviceField(key.String()),
				logger.IntField("attempt", attempt))
			return nil
		}
		if !errors.Is(err, storage_manager.ErrConflict) || attempt >= c.maxAttempts {
			return err
		}
		c.log.Warn("Memory write conflicted, retrying",
			logger.DeviceField(key.String()),
			logger.IntField("attempt", attempt),
			logger.ErrorField(err))
	}
}

// PersistMerge fetches the current document, applies partial and writes it
// back with the fetched version as the precondition. On conflict the fetch
// and merge are repeated against the newer document. The conversation log is
// carried over untouched. A corrupt document is replaced by the defaults with
// partial applied.
func (c *Client) PersistMerge(ctx context.Context, key DeviceKey, partial Partial) error {
	if partial.Empty() {
		return nil
	}
	for attempt := 1; ; attempt++ {
		snap, err := c.Fetch(ctx, key)
		if errors.Is(err, ErrCorruptDocument) {
			c.log.Warn("Memory document corrupt, replacing with defaults",
				logger.DeviceField(key.String()),
				logger.ErrorField(err))
		} else if err != nil {
			return err
		}
		snap.Document.ApplyMerge(partial)
		if _, err = c.write(ctx, key, snap.Document, snap.Version); err == nil {
			c.log.Debug("Memory document merged",
				logger.DeviceField(key.String()),
				logger.IntField("attempt", attempt))
			return nil
		}
		if !errors.Is(err, storage_manager.ErrConflict) || attempt >= c.maxAttempts {
			return err
		}
		c.log.Warn("Memory merge conflicted, re-fetching",
			logger.DeviceField(key.String()),
			logger.IntField("attempt", attempt),
			logger.ErrorField(err))
	}
}

func (c *Client) observe(op string, err error) {
	c.metrics.ObserveStoreOp(op, StatusOf(err).String())
}
