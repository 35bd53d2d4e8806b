package services

import (
	"context"
	"database/sql"
	"fmt"
	"net/url"
	"strconv"

	_ "github.com/lib/pq"
)

// PostgresProvider probes PostgreSQL through database/sql, independent of the
// repository's pgx pool, so readiness reflects a fresh connection.
type PostgresProvider struct {
	BaseProvider
	db   *sql.DB
	host string
	port int
}

// NewPostgresProvider opens a small database/sql pool for health probes
func NewPostgresProvider(ctx context.Context, dsn string) (*PostgresProvider, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open postgres: %w", err)
	}
	db.SetMaxOpenConns(2)
	db.SetMaxIdleConns(1)

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping postgres: %w", err)
	}

	host, port := parseDSNHost(dsn)
	return &PostgresProvider{
		BaseProvider: BaseProvider{serviceType: "postgres"},
		db:           db,
		host:         host,
		port:         port,
	}, nil
}

// parseDSNHost extracts host and port from a URL-style DSN for logging
func parseDSNHost(dsn string) (string, int) {
	host, port := "localhost", 5432

	u, err := url.Parse(dsn)
	if err != nil || u.Host == "" {
		return host, port
	}
	if h := u.Hostname(); h != "" {
		host = h
	}
	if p, err := strconv.Atoi(u.Port()); err == nil {
		port = p
	}
	return host, port
}

// Address returns host:port for logs
func (p *PostgresProvider) Address() string {
	return fmt.Sprintf("%s:%d", p.host, p.port)
}

// HealthCheck runs a trivial query
func (p *PostgresProvider) HealthCheck(ctx context.Context) error {
	var one int
	if err := p.db.QueryRowContext(ctx, "SELECT 1").Scan(&one); err != nil {
		return fmt.Errorf("postgres health check: %w", err)
	}
	return nil
}

// Close closes the probe pool
func (p *PostgresProvider) Close() error {
	return p.db.Close()
}
