// Package storage_manager provides versioned document storage for the assistant's
// memory. Every backend exposes the same compare-and-swap contract: reads return
// an opaque version token and writes are accepted only when the caller's token
// still matches what is stored.
package storage_manager //nolint:revive // var-naming: using underscores for domain clarity

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
)

var (
	// ErrNotFound is returned when no document exists at the path.
	ErrNotFound = errors.New("document not found")
	// ErrUnauthorized is returned when credentials are missing or rejected.
	ErrUnauthorized = errors.New("store credentials missing or rejected")
	// ErrConflict is returned when a write precondition no longer holds.
	ErrConflict = errors.New("document version conflict")
)

// Object is a stored document together with its version token.
type Object struct {
	Data    []byte
	Version string
}

// DocumentProvider defines versioned document storage.
// Errors wrap ErrNotFound, ErrUnauthorized or ErrConflict; any other error is a
// transport failure.
type DocumentProvider interface {
	// Get returns the document at path and its current version.
	Get(ctx context.Context, path string) (*Object, error)

	// Head returns only the current version of the document at path.
	Head(ctx context.Context, path string) (string, error)

	// Put stores data at path and returns the new version. An empty ifVersion
	// requires the document to be absent; otherwise the stored version must
	// equal ifVersion.
	Put(ctx context.Context, path string, data []byte, ifVersion string) (string, error)
}

// contentVersion is the version token used by backends without native versions.
func contentVersion(data []byte) string {
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}

// checkPrecondition reports ErrConflict when current does not satisfy ifVersion.
// current is empty when no document exists.
func checkPrecondition(path, current, ifVersion string) error {
	if ifVersion == "" && current != "" {
		return fmt.Errorf("%w: %s already exists", ErrConflict, path)
	}
	if ifVersion != "" && current != ifVersion {
		return fmt.Errorf("%w: %s is at %q, expected %q", ErrConflict, path, current, ifVersion)
	}
	return nil
}

// LocalProvider implements DocumentProvider on the local filesystem.
// The version token is the SHA-256 of the file content.
type LocalProvider struct {
	baseDir string
	mu      sync.Mutex
}

// NewLocalProvider creates a new local document provider rooted at baseDir.
func NewLocalProvider(baseDir string) *LocalProvider {
	return &LocalProvider{baseDir: baseDir}
}

func (p *LocalProvider) read(path string) ([]byte, error) {
	data, err := os.ReadFile(filepath.Join(p.baseDir, path)) //nolint:gosec // G304: Path is constructed from trusted baseDir
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("%w: %s", ErrNotFound, path)
		}
		return nil, fmt.Errorf("failed to read %s: %w", path, err)
	}
	return data, nil
}

// Get reads a document from the local filesystem.
func (p *LocalProvider) Get(ctx context.Context, path string) (*Object, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	data, err := p.read(path)
	if err != nil {
		return nil, err
	}
	return &Object{Data: data, Version: contentVersion(data)}, nil
}

// Head returns the content hash of a local document.
func (p *LocalProvider) Head(ctx context.Context, path string) (string, error) {
	obj, err := p.Get(ctx, path)
	if err != nil {
		return "", err
	}
	return obj.Version, nil
}

// Put writes a local document if ifVersion matches the current content hash.
func (p *LocalProvider) Put(ctx context.Context, path string, data []byte, ifVersion string) (string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	current := ""
	existing, err := p.read(path)
	switch {
	case err == nil:
		current = contentVersion(existing)
	case !errors.Is(err, ErrNotFound):
		return "", err
	}
	if err := checkPrecondition(path, current, ifVersion); err != nil {
		return "", err
	}

	fullPath := filepath.Join(p.baseDir, path)
	dir := filepath.Dir(fullPath)
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return "", fmt.Errorf("failed to create directory %s: %w", dir, err)
	}

	// write then rename so readers never observe a partial document
	tmp, err := os.CreateTemp(dir, ".tmp-*")
	if err != nil {
		return "", fmt.Errorf("failed to create temp file: %w", err)
	}
	defer func() { _ = os.Remove(tmp.Name()) }()
	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		return "", fmt.Errorf("failed to write %s: %w", path, err)
	}
	if err := tmp.Close(); err != nil {
		return "", fmt.Errorf("failed to write %s: %w", path, err)
	}
	if err := os.Rename(tmp.Name(), fullPath); err != nil {
		return "", fmt.Errorf("failed to replace %s: %w", path, err)
	}
	return contentVersion(data), nil
}

// PrefixedProvider wraps a DocumentProvider to add a prefix to all paths.
// This allows multiple components to share the same underlying storage
// while maintaining isolated namespaces.
type PrefixedProvider struct {
	provider DocumentProvider
	prefix   string
}

// NewPrefixedProvider creates a new prefixed document provider.
func NewPrefixedProvider(provider DocumentProvider, prefix string) *PrefixedProvider {
	return &PrefixedProvider{provider: provider, prefix: prefix}
}

// Get reads a document with the prefix applied.
func (p *PrefixedProvider) Get(ctx context.Context, path string) (*Object, error) {
	return p.provider.Get(ctx, p.prefixPath(path))
}

// Head returns a document version with the prefix applied.
func (p *PrefixedProvider) Head(ctx context.Context, path string) (string, error) {
	return p.provider.Head(ctx, p.prefixPath(path))
}

// Put writes a document with the prefix applied.
func (p *PrefixedProvider) Put(ctx context.Context, path string, data []byte, ifVersion string) (string, error) {
	return p.provider.Put(ctx, p.prefixPath(path), data, ifVersion)
}

func (p *PrefixedProvider) prefixPath(path string) string {
	if p.prefix == "" {
		return path
	}
	return p.prefix + "/" + path
}
