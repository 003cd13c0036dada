package storage_manager //nolint:revive // var-naming: using underscores for domain clarity

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/lewisedginton/ron/internal/config"
	pkgconfig "github.com/lewisedginton/ron/pkg/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLocalProvider_CompareAndSwap(t *testing.T) {
	ctx := context.Background()
	p := NewLocalProvider(t.TempDir())

	_, err := p.Get(ctx, "memory/dev.json")
	require.ErrorIs(t, err, ErrNotFound)
	_, err = p.Head(ctx, "memory/dev.json")
	require.ErrorIs(t, err, ErrNotFound)

	_, err = p.Put(ctx, "memory/dev.json", []byte("v1"), "some-version")
	assert.ErrorIs(t, err, ErrConflict, "updating an absent document must conflict")

	v1, err := p.Put(ctx, "memory/dev.json", []byte("v1"), "")
	require.NoError(t, err)
	assert.Equal(t, contentVersion([]byte("v1")), v1)

	_, err = p.Put(ctx, "memory/dev.json", []byte("v1b"), "")
	assert.ErrorIs(t, err, ErrConflict, "creating over an existing document must conflict")

	v2, err := p.Put(ctx, "memory/dev.json", []byte("v2"), v1)
	require.NoError(t, err)

	_, err = p.Put(ctx, "memory/dev.json", []byte("v3"), v1)
	assert.ErrorIs(t, err, ErrConflict, "stale version must conflict")

	obj, err := p.Get(ctx, "memory/dev.json")
	require.NoError(t, err)
	assert.Equal(t, "v2", string(obj.Data))
	assert.Equal(t, v2, obj.Version)

	head, err := p.Head(ctx, "memory/dev.json")
	require.NoError(t, err)
	assert.Equal(t, v2, head)
}

func TestLocalProvider_ConcurrentWritersOneWins(t *testing.T) {
	ctx := context.Background()
	p := NewLocalProvider(t.TempDir())
	base, err := p.Put(ctx, "doc.json", []byte("base"), "")
	require.NoError(t, err)

	var (
		wg   sync.WaitGroup
		mu   sync.Mutex
		wins int
	)
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			if _, err := p.Put(ctx, "doc.json", []byte{byte('a' + i)}, base); err == nil {
				mu.Lock()
				wins++
				mu.Unlock()
			}
		}(i)
	}
	wg.Wait()
	assert.Equal(t, 1, wins)
}

func TestPrefixedProvider(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	root := NewLocalProvider(dir)
	p := NewPrefixedProvider(root, "memory")

	_, err := p.Put(ctx, "ana_desk.json", []byte("{}"), "")
	require.NoError(t, err)

	_, err = os.Stat(filepath.Join(dir, "memory", "ana_desk.json"))
	assert.NoError(t, err)

	obj, err := root.Get(ctx, "memory/ana_desk.json")
	require.NoError(t, err)
	assert.Equal(t, "{}", string(obj.Data))
}

func TestNewStorageManager(t *testing.T) {
	ctx := context.Background()

	t.Run("local", func(t *testing.T) {
		dir := filepath.Join(t.TempDir(), "data")
		m, err := New(ctx, config.StoreConfig{Backend: config.BackendLocal, LocalDir: dir}, nil)
		require.NoError(t, err)
		assert.Equal(t, config.BackendLocal, m.Backend())

		_, err = m.GetProvider("memory").Put(ctx, "dev.json", []byte("{}"), "")
		require.NoError(t, err)
		_, err = os.Stat(filepath.Join(dir, "memory", "dev.json"))
		assert.NoError(t, err)
	})

	t.Run("git", func(t *testing.T) {
		m, err := New(ctx, config.StoreConfig{
			Backend: config.BackendGit,
			Git:     config.GitStoreConfig{Path: filepath.Join(t.TempDir(), "repo")},
		}, nil)
		require.NoError(t, err)
		assert.IsType(t, &GitProvider{}, m.GetProvider(""))
	})

	t.Run("github uses static token", func(t *testing.T) {
		m, err := New(ctx, config.StoreConfig{
			Backend: config.BackendGitHub,
			GitHub:  config.GitHubStoreConfig{Owner: "o", Repo: "r", Token: "t"},
		}, nil)
		require.NoError(t, err)
		gh, ok := m.GetProvider("").(*GitHubProvider)
		require.True(t, ok)
		assert.Equal(t, StaticToken("t"), gh.tokens)
	})

	t.Run("github uses bootstrap endpoint", func(t *testing.T) {
		m, err := New(ctx, config.StoreConfig{
			Backend: config.BackendGitHub,
			GitHub:  config.GitHubStoreConfig{Owner: "o", Repo: "r", TokenURL: "http://token.test"},
		}, nil)
		require.NoError(t, err)
		gh := m.GetProvider("").(*GitHubProvider)
		assert.IsType(t, &BootstrapTokenSource{}, gh.tokens)
	})

	t.Run("postgres unreachable", func(t *testing.T) {
		_, err := New(ctx, config.StoreConfig{
			Backend: config.BackendPostgres,
			Postgres: pkgconfig.DatabaseConfig{
				URL:            "postgres://ron@127.0.0.1:1/ron?sslmode=disable",
				MaxConnections: 1,
				ConnectTimeout: time.Second,
			},
		}, nil)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "failed to create postgres store")
	})

	t.Run("close", func(t *testing.T) {
		assert.NoError(t, NewWithProvider("local", NewLocalProvider(t.TempDir())).Close())
		assert.NoError(t, NewWithProvider("postgres", &PostgresProvider{db: newFakeTable()}).Close())
	})

	t.Run("unknown backend", func(t *testing.T) {
		_, err := New(ctx, config.StoreConfig{Backend: "ftp"}, nil)
		assert.Error(t, err)
	})

	t.Run("s3 without bucket", func(t *testing.T) {
		_, err := New(ctx, config.StoreConfig{Backend: config.BackendS3}, nil)
		assert.Error(t, err)
	})
}
