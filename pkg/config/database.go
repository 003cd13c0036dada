package config

import (
	"fmt"
	"net/url"
	"strconv"
	"time"

	"github.com/hashicorp/go-multierror"
)

// DatabaseConfig holds PostgreSQL connection settings
type DatabaseConfig struct {
	// URL is the complete database URL (takes precedence if provided)
	URL string `env:"DATABASE_URL" yaml:"url"`

	// Connection components (used if URL is not provided)
	Host     string `env:"DB_HOST" yaml:"host" default:"localhost"`
	Port     int    `env:"DB_PORT" yaml:"port" default:"5432"`
	Database string `env:"DB_NAME" yaml:"database" default:"ron"`
	Username string `env:"DB_USER" yaml:"username" default:"postgres"`
	Password string `env:"DB_PASSWORD" yaml:"password"`
	SSLMode  string `env:"DB_SSLMODE" yaml:"sslmode" default:"disable"`

	// Connection pool settings
	MaxConnections int           `env:"DB_MAX_CONNECTIONS" yaml:"max_connections" default:"5"`
	MinConnections int           `env:"DB_MIN_CONNECTIONS" yaml:"min_connections" default:"0"`
	MaxIdleTime    time.Duration `env:"DB_MAX_IDLE_TIME" yaml:"max_idle_time" default:"5m"`
	ConnectTimeout time.Duration `env:"DB_CONNECT_TIMEOUT" yaml:"connect_timeout" default:"10s"`
}

// GetConnectionString returns the database URL without pool parameters
func (d DatabaseConfig) GetConnectionString() string {
	if d.URL != "" {
		return d.URL
	}

	u := url.URL{
		Scheme:   "postgres",
		User:     url.UserPassword(d.Username, d.Password),
		Host:     fmt.Sprintf("%s:%d", d.Host, d.Port),
		Path:     "/" + d.Database,
		RawQuery: url.Values{"sslmode": {d.SSLMode}}.Encode(),
	}
	return u.String()
}

// GetConnectionConfig returns the pgxpool connection string with pool settings
func (d DatabaseConfig) GetConnectionConfig() (string, error) {
	u, err := url.Parse(d.GetConnectionString())
	if err != nil {
		return "", fmt.Errorf("invalid database url: %w", err)
	}

	q := u.Query()
	q.Set("pool_max_conns", strconv.Itoa(d.MaxConnections))
	q.Set("pool_min_conns", strconv.Itoa(d.MinConnections))
	if d.MaxIdleTime > 0 {
		q.Set("pool_max_conn_idle_time", d.MaxIdleTime.String())
	}
	if d.ConnectTimeout > 0 {
		q.Set("connect_timeout", strconv.Itoa(int(d.ConnectTimeout.Seconds())))
	}
	u.RawQuery = q.Encode()
	return u.String(), nil
}

// Validate checks DatabaseConfig for valid settings
func (d DatabaseConfig) Validate() error {
	var result error

	if d.URL == "" {
		if d.Host == "" {
			result = multierror.Append(result, fmt.Errorf("database host is required"))
		}
		if d.Port < 1 || d.Port > 65535 {
			result = multierror.Append(result, fmt.Errorf("database port must be between 1-65535, got %d", d.Port))
		}
		if d.Database == "" {
			result = multierror.Append(result, fmt.Errorf("database name is required"))
		}
		if d.Username == "" {
			result = multierror.Append(result, fmt.Errorf("database username is required"))
		}
	}

	if d.MaxConnections < 1 {
		result = multierror.Append(result, fmt.Errorf("max_connections must be positive, got %d", d.MaxConnections))
	}
	if d.MinConnections < 0 {
		result = multierror.Append(result, fmt.Errorf("min_connections must be non-negative, got %d", d.MinConnections))
	}
	if d.MinConnections > d.MaxConnections {
		result = multierror.Append(result, fmt.Errorf("min_connections (%d) cannot exceed max_connections (%d)", d.MinConnections, d.MaxConnections))
	}

	return result
}
