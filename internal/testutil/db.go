package testutil

import (
	"context"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/ILPlais/imap2pg/internal/config"
	"github.com/ILPlais/imap2pg/internal/db"
)

// NewTestDB starts a Postgres test container, initializes the schema, and
// returns a connection plus a config whose DatabaseURL points at the
// container. The container is cleaned up when the test finishes.
func NewTestDB(t *testing.T) (*pgx.Conn, *config.Config) {
	t.Helper()

	ctx := context.Background()

	postgresContainer, err := postgres.Run(ctx,
		"postgres:16-alpine",
		postgres.WithDatabase("imap2pg_test"),
		postgres.WithUsername("imap2pg"),
		postgres.WithPassword("imap2pg"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(60*time.Second),
		),
	)
	if err != nil {
		t.Fatalf("Failed to start Postgres container: %v", err)
	}

	t.Cleanup(func() {
		if err := postgresContainer.Terminate(ctx); err != nil {
			t.Errorf("Failed to terminate container: %v", err)
		}
	})

	connStr, err := postgresContainer.ConnectionString(ctx, "sslmode=disable")
	if err != nil {
		t.Fatalf("Failed to get connection string: %v", err)
	}

	cfg := &config.Config{
		DatabaseURL:  connStr,
		BatchSize:    50,
		SkipExisting: true,
	}

	conn, err := db.Connect(ctx, cfg)
	if err != nil {
		t.Fatalf("Failed to connect to test database: %v", err)
	}
	t.Cleanup(func() {
		_ = conn.Close(context.Background())
	})

	if err := db.InitSchema(ctx, conn); err != nil {
		t.Fatalf("Failed to initialize schema: %v", err)
	}

	return conn, cfg
}
