package main

import (
	"context"
	"flag"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/ILPlais/imap2pg/internal/audit"
	"github.com/ILPlais/imap2pg/internal/config"
	"github.com/ILPlais/imap2pg/internal/db"
	"github.com/ILPlais/imap2pg/internal/imap"
	"github.com/ILPlais/imap2pg/internal/ingest"
)

func main() {
	configPath := flag.String("config", "", "path to a .env style config file")
	verbose := flag.Bool("verbose", false, "log every stored message")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}
	if *verbose {
		cfg.Verbose = true
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	conn, err := db.Connect(ctx, cfg)
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}
	db.LogServerInfo(ctx, conn)

	if err := db.InitSchema(ctx, conn); err != nil {
		log.Fatalf("Failed to initialize schema: %v", err)
	}

	session, err := imap.Connect(cfg)
	if err != nil {
		log.Fatalf("Failed to connect to IMAP server: %v", err)
	}
	log.Printf("Connected to IMAP server %s as %s", cfg.IMAPAddress(), cfg.IMAPUsername)

	var auditLog *audit.Log
	if cfg.AuditLogPath != "" {
		auditLog, err = audit.Open(cfg.AuditLogPath)
		if err != nil {
			log.Fatalf("Failed to open audit log: %v", err)
		}
		defer auditLog.Close()
	}

	ingestor := ingest.New(cfg, session, conn, auditLog)
	defer ingestor.Close(context.Background())

	stats, err := ingestor.Run(ctx)
	if err != nil {
		log.Fatalf("Ingestion aborted after %d messages (%d inserted, %d errors): %v",
			stats.Processed, stats.Inserted, stats.Errors, err)
	}

	if stats.Errors > 0 {
		os.Exit(1)
	}
}
