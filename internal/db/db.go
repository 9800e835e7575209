package db

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/ILPlais/imap2pg/internal/config"
)

const (
	connectTimeout = 30 * time.Second
	pingTimeout    = 5 * time.Second
)

// Connect opens a single database connection. The writer needs exactly one
// transaction in flight at a time, so a pool buys nothing here.
func Connect(ctx context.Context, cfg *config.Config) (*pgx.Conn, error) {
	connectCtx, cancel := context.WithTimeout(ctx, connectTimeout)
	defer cancel()

	conn, err := pgx.Connect(connectCtx, cfg.GetDatabaseURL())
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	if err := ping(ctx, conn); err != nil {
		_ = conn.Close(ctx)
		return nil, fmt.Errorf("database did not answer ping: %w", err)
	}

	return conn, nil
}

// Ensure probes conn and returns it when healthy, or replaces it with a
// fresh connection otherwise. The caller must adopt the returned handle; the
// old one is closed on reconnect.
func Ensure(ctx context.Context, conn *pgx.Conn, cfg *config.Config) (*pgx.Conn, error) {
	if conn != nil && !conn.IsClosed() {
		if err := ping(ctx, conn); err == nil {
			return conn, nil
		} else {
			log.Printf("Warning: database connection lost (%v), reconnecting...", err)
			_ = conn.Close(ctx)
		}
	}

	fresh, err := Connect(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to reconnect to database: %w", err)
	}

	log.Printf("Database reconnection successful")
	LogServerInfo(ctx, fresh)
	return fresh, nil
}

func ping(ctx context.Context, conn *pgx.Conn) error {
	pingCtx, cancel := context.WithTimeout(ctx, pingTimeout)
	defer cancel()
	return conn.Ping(pingCtx)
}

// LogServerInfo logs server version, backend PID and the timeout settings
// that matter when long ingestion runs start failing mid-way. Failures are
// logged and ignored; diagnostics never abort a run.
func LogServerInfo(ctx context.Context, conn *pgx.Conn) {
	var version string
	var pid int
	if err := conn.QueryRow(ctx, "SELECT version(), pg_backend_pid()").Scan(&version, &pid); err != nil {
		log.Printf("Warning: could not read server info: %v", err)
		return
	}
	log.Printf("Connected to %s (backend pid %d)", version, pid)

	for _, setting := range []string{"max_connections", "statement_timeout", "idle_in_transaction_session_timeout"} {
		var value string
		if err := conn.QueryRow(ctx, "SELECT current_setting($1)", setting).Scan(&value); err != nil {
			log.Printf("Warning: could not read setting %s: %v", setting, err)
			continue
		}
		log.Printf("Server setting %s = %s", setting, value)
	}
}
