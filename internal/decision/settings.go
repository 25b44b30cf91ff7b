package decision

import (
	"net"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/rowanhale/conveyor/internal/config"
)

const (
	// DefaultHost is the loopback interface used when no override is provided.
	DefaultHost = "127.0.0.1"
	// DefaultMaxBodyBytes limits request payloads to 256 KB; decisions are tiny.
	DefaultMaxBodyBytes int64 = 256 << 10
	// DefaultReadTimeout guards hung clients.
	DefaultReadTimeout = 15 * time.Second
	// DefaultWriteTimeout bounds handler writes.
	DefaultWriteTimeout = 15 * time.Second
	// DefaultIdleTimeout bounds keep-alive connections.
	DefaultIdleTimeout = 60 * time.Second
)

// Settings captures runtime configuration for the decision bridge server.
// Port 0 binds a free loopback port, which the CLI then prints.
type Settings struct {
	Enabled      bool
	Host         string
	Port         int
	MaxBodyBytes int64
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
	IdleTimeout  time.Duration
}

// SettingsFromConfig builds Settings from the project config plus environment
// overrides (CONVEYOR_DECISION_ENABLED, _HOST, _PORT).
func SettingsFromConfig(cfg *config.Config) Settings {
	settings := Settings{
		Enabled:      true,
		Host:         DefaultHost,
		MaxBodyBytes: DefaultMaxBodyBytes,
		ReadTimeout:  DefaultReadTimeout,
		WriteTimeout: DefaultWriteTimeout,
		IdleTimeout:  DefaultIdleTimeout,
	}
	if cfg != nil {
		settings.Enabled = cfg.Project.Decision.Enabled
		if isValidPort(cfg.Project.Decision.Port) {
			settings.Port = cfg.Project.Decision.Port
		}
	}
	settings.applyEnvOverrides()
	settings.normalize()
	return settings
}

func (s *Settings) applyEnvOverrides() {
	if value := strings.TrimSpace(os.Getenv("CONVEYOR_DECISION_ENABLED")); value != "" {
		if enabled, err := strconv.ParseBool(value); err == nil {
			s.Enabled = enabled
		}
	}
	if host := strings.TrimSpace(os.Getenv("CONVEYOR_DECISION_HOST")); host != "" {
		s.Host = host
	}
	if port := strings.TrimSpace(os.Getenv("CONVEYOR_DECISION_PORT")); port != "" {
		if parsed, err := strconv.Atoi(port); err == nil && isValidPort(parsed) {
			s.Port = parsed
		}
	}
}

func (s *Settings) normalize() {
	s.Host = strings.TrimSpace(s.Host)
	if s.Host == "" {
		s.Host = DefaultHost
	}
	if !isValidPort(s.Port) {
		s.Port = 0
	}
	if s.MaxBodyBytes <= 0 {
		s.MaxBodyBytes = DefaultMaxBodyBytes
	}
	if s.ReadTimeout <= 0 {
		s.ReadTimeout = DefaultReadTimeout
	}
	if s.WriteTimeout <= 0 {
		s.WriteTimeout = DefaultWriteTimeout
	}
	if s.IdleTimeout <= 0 {
		s.IdleTimeout = DefaultIdleTimeout
	}
}

// Address returns the TCP bind address in host:port form.
func (s Settings) Address() string {
	return net.JoinHostPort(s.Host, strconv.Itoa(s.Port))
}

func isValidPort(port int) bool {
	return port > 0 && port <= 65535
}
