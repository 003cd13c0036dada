package config

import (
	"time"

	pkgconfig "github.com/lewisedginton/ron/pkg/config"
)

// Store backends
const (
	BackendGitHub   = "github"
	BackendS3       = "s3"
	BackendGit      = "git"
	BackendLocal    = "local"
	BackendPostgres = "postgres"
)

// StoreConfig holds the remote memory store configuration
type StoreConfig struct {
	Backend   string `env:"STORE_BACKEND" yaml:"backend" default:"github"` // "github", "s3", "git" or "local"
	Namespace string `env:"STORE_NAMESPACE" yaml:"namespace" default:"memory"`
	Device    string `env:"RON_DEVICE" yaml:"device"` // overrides the derived device key

	MaxAttempts  int           `env:"STORE_MAX_ATTEMPTS" yaml:"max_attempts" default:"3"`
	TokenTimeout time.Duration `env:"STORE_TOKEN_TIMEOUT" yaml:"token_timeout" default:"10s"`
	FetchTimeout time.Duration `env:"STORE_FETCH_TIMEOUT" yaml:"fetch_timeout" default:"15s"`
	ProbeTimeout time.Duration `env:"STORE_PROBE_TIMEOUT" yaml:"probe_timeout" default:"10s"`
	WriteTimeout time.Duration `env:"STORE_WRITE_TIMEOUT" yaml:"write_timeout" default:"20s"`

	GitHub GitHubStoreConfig `yaml:"github"`
	S3     S3StoreConfig     `yaml:"s3"`
	Git    GitStoreConfig    `yaml:"git"`
	// Postgres is used by the postgres backend
	Postgres pkgconfig.DatabaseConfig `yaml:"postgres"`

	LocalDir string `env:"STORE_LOCAL_DIR" yaml:"local_dir" default:"./data"`
}

// GitHubStoreConfig addresses the repository holding one JSON document per device
type GitHubStoreConfig struct {
	Owner      string        `env:"GITHUB_OWNER" yaml:"owner" default:"rontubot"`
	Repo       string        `env:"GITHUB_REPO" yaml:"repo" default:"ron-memory-store"`
	Branch     string        `env:"GITHUB_BRANCH" yaml:"branch" default:"main"`
	APIBaseURL string        `env:"GITHUB_API_URL" yaml:"api_base_url"` // empty uses api.github.com
	Token      string        `env:"GITHUB_TOKEN" yaml:"-"`
	TokenURL   string        `env:"GITHUB_TOKEN_URL" yaml:"token_url"` // bootstrap endpoint, body is the token
	TokenTTL   time.Duration `env:"GITHUB_TOKEN_TTL" yaml:"token_ttl" default:"10m"`
}

// S3StoreConfig holds the S3 backend settings
type S3StoreConfig struct {
	Bucket   string `env:"STORE_S3_BUCKET" yaml:"bucket"`
	Prefix   string `env:"STORE_S3_PREFIX" yaml:"prefix"`
	Region   string `env:"STORE_S3_REGION" yaml:"region"`
	Profile  string `env:"STORE_S3_PROFILE" yaml:"profile"`
	Endpoint string `env:"STORE_S3_ENDPOINT" yaml:"endpoint"` // S3 compatible services
}

// GitStoreConfig holds the local git repository backend settings
type GitStoreConfig struct {
	Path         string `env:"STORE_GIT_PATH" yaml:"path"`
	RemoteURL    string `env:"STORE_GIT_REMOTE_URL" yaml:"remote_url"`
	Branch       string `env:"STORE_GIT_BRANCH" yaml:"branch" default:"main"`
	AuthorName   string `env:"STORE_GIT_AUTHOR_NAME" yaml:"author_name" default:"Ron"`
	AuthorEmail  string `env:"STORE_GIT_AUTHOR_EMAIL" yaml:"author_email" default:"ron@localhost"`
	AuthUsername string `env:"STORE_GIT_AUTH_USERNAME" yaml:"auth_username"`
	AuthPassword string `env:"STORE_GIT_AUTH_PASSWORD" yaml:"-"`
	Push         bool   `env:"STORE_GIT_PUSH" yaml:"push"`
}
