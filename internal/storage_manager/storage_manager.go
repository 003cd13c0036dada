package storage_manager //nolint:revive // var-naming: using underscores for domain clarity

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"os"

	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/lewisedginton/ron/internal/config"
)

// StorageManager owns the configured backend and hands out namespaced providers.
type StorageManager struct {
	backend  string
	provider DocumentProvider
}

// NewWithProvider creates a new StorageManager with a custom DocumentProvider.
// This is useful for testing or when using a custom storage implementation.
func NewWithProvider(backend string, provider DocumentProvider) *StorageManager {
	return &StorageManager{backend: backend, provider: provider}
}

// New builds the backend selected by cfg.Backend.
func New(ctx context.Context, cfg config.StoreConfig, httpClient *http.Client) (*StorageManager, error) {
	var (
		provider DocumentProvider
		err      error
	)

	switch cfg.Backend {
	case config.BackendGitHub:
		provider, err = NewGitHubProvider(GitHubProviderOptions{
			Owner:      cfg.GitHub.Owner,
			Repo:       cfg.GitHub.Repo,
			Branch:     cfg.GitHub.Branch,
			Tokens:     tokenSource(cfg, httpClient),
			APIBaseURL: cfg.GitHub.APIBaseURL,
			HTTPClient: httpClient,
		})

	case config.BackendS3:
		if cfg.S3.Bucket == "" {
			return nil, fmt.Errorf("bucket is required for s3 backend")
		}
		var client *s3.Client
		client, err = newS3Client(ctx, cfg.S3)
		if err == nil {
			provider = NewS3Provider(cfg.S3.Bucket, cfg.S3.Prefix, NewAWSS3Client(client))
		}

	case config.BackendGit:
		provider, err = NewGitProvider(ctx, GitProviderOptions{
			Path:          cfg.Git.Path,
			RemoteURL:     cfg.Git.RemoteURL,
			AuthorName:    cfg.Git.AuthorName,
			AuthorEmail:   cfg.Git.AuthorEmail,
			Username:      cfg.Git.AuthUsername,
			Password:      cfg.Git.AuthPassword,
			Push:          cfg.Git.Push,
			InitIfMissing: true,
		})

	case config.BackendLocal:
		if cfg.LocalDir == "" {
			return nil, fmt.Errorf("base directory is required for local backend")
		}
		if err := os.MkdirAll(cfg.LocalDir, 0o750); err != nil {
			return nil, fmt.Errorf("failed to create storage directory: %w", err)
		}
		provider = NewLocalProvider(cfg.LocalDir)

	case config.BackendPostgres:
		var dsn string
		dsn, err = cfg.Postgres.GetConnectionConfig()
		if err == nil {
			provider, err = NewPostgresProvider(ctx, dsn)
		}

	default:
		return nil, fmt.Errorf("unsupported store backend: %s", cfg.Backend)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to create %s store: %w", cfg.Backend, err)
	}

	return &StorageManager{backend: cfg.Backend, provider: provider}, nil
}

// tokenSource prefers a static token and falls back to the bootstrap endpoint.
func tokenSource(cfg config.StoreConfig, httpClient *http.Client) TokenSource {
	if cfg.GitHub.Token != "" || cfg.GitHub.TokenURL == "" {
		return StaticToken(cfg.GitHub.Token)
	}
	return NewBootstrapTokenSource(cfg.GitHub.TokenURL, httpClient, cfg.TokenTimeout, cfg.GitHub.TokenTTL)
}

func newS3Client(ctx context.Context, cfg config.S3StoreConfig) (*s3.Client, error) {
	var configOptions []func(*awsconfig.LoadOptions) error
	if cfg.Profile != "" {
		configOptions = append(configOptions, awsconfig.WithSharedConfigProfile(cfg.Profile))
	}
	if cfg.Region != "" {
		configOptions = append(configOptions, awsconfig.WithRegion(cfg.Region))
	}

	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, configOptions...)
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}

	return s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if cfg.Endpoint != "" {
			o.BaseEndpoint = &cfg.Endpoint
			o.UsePathStyle = true
		}
	}), nil
}

// GetProvider returns a prefix-scoped DocumentProvider for the given namespace.
func (m *StorageManager) GetProvider(namespace string) DocumentProvider {
	if namespace == "" {
		return m.provider
	}
	return NewPrefixedProvider(m.provider, namespace)
}

// Backend returns the configured backend name.
func (m *StorageManager) Backend() string {
	return m.backend
}

// Close releases resources held by the backend, such as a database pool.
func (m *StorageManager) Close() error {
	if c, ok := m.provider.(io.Closer); ok {
		return c.Close()
	}
	return nil
}
