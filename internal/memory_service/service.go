// Package memory_service exposes the structured memory of one device: facts,
// reminders and the bounded conversation log.
package memory_service //nolint:revive // var-naming: using underscores for domain clarity

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/lewisedginton/ron/internal/memory_store"
	"github.com/lewisedginton/ron/pkg/logger"
)

// Service reads and mutates the memory document of a device. Every mutation
// is read, transform, persist; nothing is cached between calls.
type Service struct {
	store    *memory_store.Client
	device   memory_store.DeviceKey
	log      logger.Logger
	logLimit int
	now      func() time.Time
	locks    *deviceLocks
}

// Config holds configuration for the memory service.
type Config struct {
	Store    *memory_store.Client
	Device   memory_store.DeviceKey
	Logger   logger.Logger
	LogLimit int
	// Now overrides the clock used for turn and reminder timestamps.
	Now func() time.Time
}

// deviceLocks serializes read-modify-write cycles per device within the process.
type deviceLocks struct {
	mu    sync.Mutex
	locks map[memory_store.DeviceKey]*sync.Mutex
}

func (d *deviceLocks) get(key memory_store.DeviceKey) *sync.Mutex {
	d.mu.Lock()
	defer d.mu.Unlock()

	if lock, exists := d.locks[key]; exists {
		return lock
	}
	lock := &sync.Mutex{}
	d.locks[key] = lock
	return lock
}

// New creates a new memory service with the given configuration.
func New(cfg Config) *Service {
	if cfg.Store == nil {
		panic("store client cannot be nil")
	}
	if cfg.Logger == nil {
		panic("logger cannot be nil")
	}
	if cfg.Device == "" {
		cfg.Device = memory_store.UnknownDevice
	}
	if cfg.LogLimit <= 0 || cfg.LogLimit > memory_store.MaxLogEntries {
		cfg.LogLimit = memory_store.MaxLogEntries
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	return &Service{
		store:    cfg.Store,
		device:   cfg.Device,
		log:      cfg.Logger,
		logLimit: cfg.LogLimit,
		now:      cfg.Now,
		locks:    &deviceLocks{locks: make(map[memory_store.DeviceKey]*sync.Mutex)},
	}
}

// ForDevice returns a service bound to another device key. The returned
// service shares the store, logger and per-device locks.
func (s *Service) ForDevice(key memory_store.DeviceKey) *Service {
	if key == "" || key == s.device {
		return s
	}
	clone := *s
	clone.device = key
	return &clone
}

// Device returns the device key the service is bound to.
func (s *Service) Device() memory_store.DeviceKey { return s.device }

// Defaults returns the facts seeded into new documents.
func (s *Service) Defaults() memory_store.Defaults { return s.store.Defaults() }

func (s *Service) timestamp() memory_store.Timestamp {
	return memory_store.Timestamp{Time: s.now().Truncate(time.Second)}
}

// fetch loads the document. On failure the defaults are returned together
// with the error so read paths can degrade and write paths can refuse. A
// corrupt document is not a failure: its defaults snapshot carries the stored
// version, so the next write replaces it.
func (s *Service) fetch(ctx context.Context) (*memory_store.Snapshot, error) {
	snap, err := s.store.Fetch(ctx, s.device)
	if errors.Is(err, memory_store.ErrCorruptDocument) {
		s.log.Warn("Memory document corrupt, using defaults",
			logger.DeviceField(s.device.String()),
			logger.ErrorField(err))
		return snap, nil
	}
	if err != nil {
		s.log.Warn("Failed to load memory, using defaults",
			logger.DeviceField(s.device.String()),
			logger.StringField("status", memory_store.StatusOf(err).String()),
			logger.ErrorField(err))
		return &memory_store.Snapshot{Document: memory_store.NewDocument(s.store.Defaults())}, err
	}
	return snap, nil
}

func (s *Service) merge(ctx context.Context, op string, partial memory_store.Partial) error {
	if err := s.store.PersistMerge(ctx, s.device, partial); err != nil {
		s.log.Warn("Memory update dropped",
			logger.DeviceField(s.device.String()),
			logger.StringField("operation", op),
			logger.StringField("status", memory_store.StatusOf(err).String()),
			logger.ErrorField(err))
		return fmt.Errorf("%s: %w", op, err)
	}
	return nil
}

// GetFact returns a user fact.
func (s *Service) GetFact(ctx context.Context, key string) (string, bool) {
	snap, _ := s.fetch(ctx)
	value, ok := snap.Document.Facts[key]
	return value, ok
}

// SetFact stores a user fact. The creator fact cannot be changed and writes
// to it are ignored.
func (s *Service) SetFact(ctx context.Context, key, value string) error {
	if key == memory_store.FactCreator {
		s.log.Debug("Ignoring write to immutable fact", logger.StringField("key", key))
		return nil
	}
	lock := s.locks.get(s.device)
	lock.Lock()
	defer lock.Unlock()

	return s.merge(ctx, "set fact", memory_store.Partial{Facts: map[string]string{key: value}})
}

// AppendTurn records one exchange and overwrites the whole document.
// Nothing is written when the current document could not be read, so a
// transient failure never replaces stored memory with defaults.
func (s *Service) AppendTurn(ctx context.Context, user, reply string) error {
	lock := s.locks.get(s.device)
	lock.Lock()
	defer lock.Unlock()

	snap, err := s.fetch(ctx)
	if err != nil {
		return fmt.Errorf("append turn: %w", err)
	}
	snap.Document.AppendTurn(memory_store.Turn{
		User:      user,
		Reply:     reply,
		Timestamp: s.timestamp(),
	}, s.logLimit)

	if err := s.store.PersistFull(ctx, s.device, snap.Document); err != nil {
		s.log.Warn("Conversation turn dropped",
			logger.DeviceField(s.device.String()),
			logger.StringField("status", memory_store.StatusOf(err).String()),
			logger.ErrorField(err))
		return fmt.Errorf("append turn: %w", err)
	}
	return nil
}

// RecentTurns returns up to n of the newest turns, oldest first.
func (s *Service) RecentTurns(ctx context.Context, n int) []memory_store.Turn {
	snap, _ := s.fetch(ctx)
	return snap.Document.RecentTurns(n)
}

// Current returns the stored document, or the default document when it
// cannot be read. The result is not persisted.
func (s *Service) Current(ctx context.Context) *memory_store.Document {
	snap, _ := s.fetch(ctx)
	return snap.Document
}

// Document returns a copy of the stored document.
func (s *Service) Document(ctx context.Context) (*memory_store.Document, error) {
	snap, err := s.store.Fetch(ctx, s.device)
	if err != nil {
		return nil, err
	}
	return snap.Document.Clone(), nil
}

// Dedupe removes repeated turns and rewrites the document when any were found.
func (s *Service) Dedupe(ctx context.Context) (before, after int, err error) {
	lock := s.locks.get(s.device)
	lock.Lock()
	defer lock.Unlock()

	snap, err := s.store.Fetch(ctx, s.device)
	if err != nil {
		return 0, 0, fmt.Errorf("dedupe: %w", err)
	}
	before, after = snap.Document.Dedupe()
	if before == after {
		return before, after, nil
	}
	if err := s.store.PersistFull(ctx, s.device, snap.Document); err != nil {
		return before, after, fmt.Errorf("dedupe: %w", err)
	}
	s.log.Info("Conversation log deduplicated",
		logger.DeviceField(s.device.String()),
		logger.IntField("before", before),
		logger.IntField("after", after))
	return before, after, nil
}
