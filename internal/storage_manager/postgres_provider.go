package storage_manager //nolint:revive // var-naming: using underscores for domain clarity

import (
	"context"
	"errors"
	"fmt"
	"strconv"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

const (
	selectDocumentSQL = `SELECT data, version FROM documents WHERE path = $1`
	selectVersionSQL  = `SELECT version FROM documents WHERE path = $1`
	insertDocumentSQL = `INSERT INTO documents (path, data) VALUES ($1, $2)
ON CONFLICT (path) DO NOTHING RETURNING version`
	updateDocumentSQL = `UPDATE documents SET data = $2, version = version + 1, updated_at = now()
WHERE path = $1 AND version = $3 RETURNING version`
)

// rowQuerier is the part of *pgxpool.Pool the provider uses.
type rowQuerier interface {
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// PostgresProvider stores documents in a PostgreSQL table. The version token
// is a row counter bumped by every accepted write.
type PostgresProvider struct {
	db   rowQuerier
	pool *pgxpool.Pool
}

// NewPostgresProvider connects to dsn and applies pending migrations.
func NewPostgresProvider(ctx context.Context, dsn string) (*PostgresProvider, error) {
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to create connection pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, classifyPostgresError("connect to", "database", err)
	}
	if err := runMigrations(pool); err != nil {
		pool.Close()
		return nil, err
	}
	return &PostgresProvider{db: pool, pool: pool}, nil
}

// classifyPostgresError maps authentication and permission failures to
// ErrUnauthorized. Everything else is a transport failure.
func classifyPostgresError(op, path string, err error) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case "28000", "28P01", "42501":
			return fmt.Errorf("%w: %s %s: %s", ErrUnauthorized, op, path, pgErr.Message)
		}
	}
	return fmt.Errorf("failed to %s %s: %w", op, path, err)
}

func formatVersion(v int64) string { return strconv.FormatInt(v, 10) }

// Get reads a document row.
func (p *PostgresProvider) Get(ctx context.Context, path string) (*Object, error) {
	var (
		data    []byte
		version int64
	)
	err := p.db.QueryRow(ctx, selectDocumentSQL, path).Scan(&data, &version)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, path)
	}
	if err != nil {
		return nil, classifyPostgresError("read", path, err)
	}
	return &Object{Data: data, Version: formatVersion(version)}, nil
}

// Head returns the version of a document row.
func (p *PostgresProvider) Head(ctx context.Context, path string) (string, error) {
	var version int64
	err := p.db.QueryRow(ctx, selectVersionSQL, path).Scan(&version)
	if errors.Is(err, pgx.ErrNoRows) {
		return "", fmt.Errorf("%w: %s", ErrNotFound, path)
	}
	if err != nil {
		return "", classifyPostgresError("head", path, err)
	}
	return formatVersion(version), nil
}

// Put inserts or conditionally updates a document row in a single statement,
// so the precondition check and the write cannot interleave with another writer.
func (p *PostgresProvider) Put(ctx context.Context, path string, data []byte, ifVersion string) (string, error) {
	var (
		version int64
		err     error
	)
	if ifVersion == "" {
		err = p.db.QueryRow(ctx, insertDocumentSQL, path, data).Scan(&version)
		if errors.Is(err, pgx.ErrNoRows) {
			return "", fmt.Errorf("%w: %s already exists", ErrConflict, path)
		}
	} else {
		expected, parseErr := strconv.ParseInt(ifVersion, 10, 64)
		if parseErr != nil {
			return "", fmt.Errorf("%w: %s has no version %q", ErrConflict, path, ifVersion)
		}
		err = p.db.QueryRow(ctx, updateDocumentSQL, path, data, expected).Scan(&version)
		if errors.Is(err, pgx.ErrNoRows) {
			return "", fmt.Errorf("%w: %s changed since version %s", ErrConflict, path, ifVersion)
		}
	}
	if err != nil {
		return "", classifyPostgresError("write", path, err)
	}
	return formatVersion(version), nil
}

// Close releases the connection pool.
func (p *PostgresProvider) Close() error {
	if p.pool != nil {
		p.pool.Close()
	}
	return nil
}
