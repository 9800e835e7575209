package imap

import (
	"crypto/tls"
	"fmt"
	"log"
	"net"
	"time"

	"github.com/emersion/go-imap/client"

	"github.com/ILPlais/imap2pg/internal/config"
)

// dialTimeout bounds the TCP/TLS handshake with the IMAP server.
const dialTimeout = 30 * time.Second

// Session is a single logical IMAP connection. The remote session is a
// single-consumer resource: callers must not issue overlapping operations.
type Session struct {
	client *client.Client
	cfg    *config.Config
}

// Connect dials the configured IMAP server and authenticates.
func Connect(cfg *config.Config) (*Session, error) {
	c, err := dial(cfg)
	if err != nil {
		return nil, err
	}

	if err := login(c, cfg); err != nil {
		_ = c.Logout()
		return nil, err
	}

	return &Session{client: c, cfg: cfg}, nil
}

func dial(cfg *config.Config) (*client.Client, error) {
	dialer := &net.Dialer{Timeout: dialTimeout}
	address := cfg.IMAPAddress()

	if cfg.IMAPUseTLS {
		tlsConfig := &tls.Config{ServerName: cfg.IMAPHost}
		if cfg.IMAPInsecureTLS {
			tlsConfig.InsecureSkipVerify = true
		}
		c, err := client.DialWithDialerTLS(dialer, address, tlsConfig)
		if err != nil {
			return nil, fmt.Errorf("failed to dial %s with TLS: %w", address, err)
		}
		return c, nil
	}

	c, err := client.DialWithDialer(dialer, address)
	if err != nil {
		return nil, fmt.Errorf("failed to dial %s: %w", address, err)
	}

	return c, nil
}

func login(c *client.Client, cfg *config.Config) error {
	if err := c.Login(cfg.IMAPUsername, cfg.IMAPPassword); err != nil {
		return fmt.Errorf("failed to authenticate as %s: %w", cfg.IMAPUsername, err)
	}
	return nil
}

// Ensure verifies the session with a NOOP probe and reconnects when the
// probe fails. It reports whether a reconnect happened; the selected folder
// is lost on reconnect and callers must re-select before fetching.
func (s *Session) Ensure() (reconnected bool, err error) {
	if s.client != nil {
		probeErr := s.client.Noop()
		if probeErr == nil {
			return false, nil
		}
		log.Printf("Warning: IMAP connection lost (%v), reconnecting...", probeErr)
		_ = s.client.Logout()
	}

	c, err := dial(s.cfg)
	if err != nil {
		return false, fmt.Errorf("failed to reconnect to IMAP server: %w", err)
	}
	if err := login(c, s.cfg); err != nil {
		_ = c.Logout()
		return false, fmt.Errorf("failed to re-authenticate after reconnect: %w", err)
	}

	s.client = c
	log.Printf("IMAP reconnection successful")
	return true, nil
}

// Logout terminates the session.
func (s *Session) Logout() error {
	if s.client == nil {
		return nil
	}
	return s.client.Logout()
}
