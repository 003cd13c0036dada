package config

import (
	"net/url"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func validDatabaseConfig() DatabaseConfig {
	return DatabaseConfig{
		Host:           "db.internal",
		Port:           5432,
		Database:       "ron",
		Username:       "ron",
		Password:       "p@ss word",
		SSLMode:        "require",
		MaxConnections: 5,
		MaxIdleTime:    5 * time.Minute,
		ConnectTimeout: 10 * time.Second,
	}
}

func TestDatabaseConnectionString(t *testing.T) {
	cfg := validDatabaseConfig()

	u, err := url.Parse(cfg.GetConnectionString())
	require.NoError(t, err)
	assert.Equal(t, "postgres", u.Scheme)
	assert.Equal(t, "db.internal:5432", u.Host)
	assert.Equal(t, "/ron", u.Path)
	pw, _ := u.User.Password()
	assert.Equal(t, "p@ss word", pw)
	assert.Equal(t, "require", u.Query().Get("sslmode"))

	cfg.URL = "postgres://other/db?sslmode=disable"
	assert.Equal(t, cfg.URL, cfg.GetConnectionString())
}

func TestDatabaseConnectionConfig(t *testing.T) {
	cfg := validDatabaseConfig()
	cfg.URL = "postgres://ron@localhost/ron?sslmode=disable"

	dsn, err := cfg.GetConnectionConfig()
	require.NoError(t, err)
	u, err := url.Parse(dsn)
	require.NoError(t, err)

	q := u.Query()
	assert.Equal(t, "disable", q.Get("sslmode"))
	assert.Equal(t, "5", q.Get("pool_max_conns"))
	assert.Equal(t, "0", q.Get("pool_min_conns"))
	assert.Equal(t, "5m0s", q.Get("pool_max_conn_idle_time"))
	assert.Equal(t, "10", q.Get("connect_timeout"))

	cfg.URL = "postgres://%zz"
	_, err = cfg.GetConnectionConfig()
	assert.Error(t, err)
}

func TestDatabaseConfigValidation(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*DatabaseConfig)
		wantErr string
	}{
		{name: "valid", mutate: func(*DatabaseConfig) {}},
		{name: "url skips components", mutate: func(d *DatabaseConfig) { d.URL = "postgres://x/y"; d.Host = "" }},
		{name: "missing host", mutate: func(d *DatabaseConfig) { d.Host = "" }, wantErr: "database host is required"},
		{name: "bad port", mutate: func(d *DatabaseConfig) { d.Port = 70000 }, wantErr: "database port must be between"},
		{name: "no connections", mutate: func(d *DatabaseConfig) { d.MaxConnections = 0 }, wantErr: "max_connections must be positive"},
		{name: "min above max", mutate: func(d *DatabaseConfig) { d.MinConnections = 9 }, wantErr: "cannot exceed max_connections"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validDatabaseConfig()
			tt.mutate(&cfg)
			err := cfg.Validate()
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}
