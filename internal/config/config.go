package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
)

// Config carries every external knob of a run. It is built once at startup
// and never mutated afterwards.
type Config struct {
	IMAPHost        string
	IMAPPort        string
	IMAPUsername    string
	IMAPPassword    string
	IMAPUseTLS      bool
	IMAPInsecureTLS bool

	// Folders is the allow-list of folders to ingest; empty means all.
	// Entries may be given in either the server's encoded form or the
	// decoded display form.
	Folders []string

	DBHost     string
	DBPort     string
	DBUsername string
	DBPassword string
	DBName     string
	DBSSLMode  string
	// DatabaseURL, when set, overrides the individual DB fields.
	DatabaseURL string

	BatchSize    int
	SkipExisting bool
	AuditLogPath string
	Verbose      bool
}

// Load reads configuration from the environment, optionally seeded from an
// env-format file. An empty path falls back to ".env" if present.
func Load(path string) (*Config, error) {
	if path != "" {
		if err := godotenv.Load(path); err != nil {
			return nil, fmt.Errorf("failed to read configuration file %s: %w", path, err)
		}
	} else if err := godotenv.Load(); err != nil {
		fmt.Println("Warning: .env file not found, using environment variables")
	}

	config := &Config{
		IMAPHost:        os.Getenv("IMAP2PG_IMAP_HOST"),
		IMAPPort:        getEnvOrDefault("IMAP2PG_IMAP_PORT", "993"),
		IMAPUsername:    os.Getenv("IMAP2PG_IMAP_USER"),
		IMAPPassword:    os.Getenv("IMAP2PG_IMAP_PASSWORD"),
		IMAPUseTLS:      getEnvBool("IMAP2PG_IMAP_TLS", true),
		IMAPInsecureTLS: getEnvBool("IMAP2PG_IMAP_INSECURE_TLS", false),
		Folders:         splitList(os.Getenv("IMAP2PG_FOLDERS")),
		DBHost:          getEnvOrDefault("IMAP2PG_DB_HOST", "localhost"),
		DBPort:          getEnvOrDefault("IMAP2PG_DB_PORT", "5432"),
		DBUsername:      getEnvOrDefault("IMAP2PG_DB_USER", "imap2pg"),
		DBPassword:      os.Getenv("IMAP2PG_DB_PASSWORD"),
		DBName:          getEnvOrDefault("IMAP2PG_DB_NAME", "imap2pg"),
		DBSSLMode:       getEnvOrDefault("IMAP2PG_DB_SSLMODE", "disable"),
		DatabaseURL:     os.Getenv("IMAP2PG_DATABASE_URL"),
		BatchSize:       getEnvInt("IMAP2PG_BATCH_SIZE", 100),
		SkipExisting:    getEnvBool("IMAP2PG_SKIP_EXISTING", true),
		AuditLogPath:    os.Getenv("IMAP2PG_AUDIT_LOG"),
		Verbose:         getEnvBool("IMAP2PG_VERBOSE", false),
	}

	if err := config.Validate(); err != nil {
		return nil, err
	}

	return config, nil
}

func (c *Config) Validate() error {
	if c.IMAPHost == "" {
		return fmt.Errorf("IMAP2PG_IMAP_HOST is required")
	}

	if c.IMAPUsername == "" {
		return fmt.Errorf("IMAP2PG_IMAP_USER is required")
	}

	if c.IMAPPassword == "" {
		return fmt.Errorf("IMAP2PG_IMAP_PASSWORD is required")
	}

	if c.DatabaseURL == "" && c.DBPassword == "" {
		return fmt.Errorf("IMAP2PG_DB_PASSWORD is required")
	}

	if c.BatchSize < 1 {
		return fmt.Errorf("IMAP2PG_BATCH_SIZE must be at least 1")
	}

	return nil
}

// IMAPAddress returns the host:port the IMAP session dials.
func (c *Config) IMAPAddress() string {
	return c.IMAPHost + ":" + c.IMAPPort
}

func (c *Config) GetDatabaseURL() string {
	if c.DatabaseURL != "" {
		return c.DatabaseURL
	}

	return fmt.Sprintf(
		"postgres://%s:%s@%s:%s/%s?sslmode=%s",
		c.DBUsername,
		c.DBPassword,
		c.DBHost,
		c.DBPort,
		c.DBName,
		c.DBSSLMode,
	)
}

func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	value := strings.ToLower(os.Getenv(key))
	if value == "" {
		return defaultValue
	}
	return value == "true" || value == "1" || value == "yes"
}

func getEnvInt(key string, defaultValue int) int {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	n, err := strconv.Atoi(value)
	if err != nil {
		return defaultValue
	}
	return n
}

func splitList(value string) []string {
	if strings.TrimSpace(value) == "" {
		return nil
	}
	var entries []string
	for _, entry := range strings.Split(value, ",") {
		if entry = strings.TrimSpace(entry); entry != "" {
			entries = append(entries, entry)
		}
	}
	return entries
}
