package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"

	"webcall/native/internal/domain"
	"webcall/native/internal/ice"
)

// DefaultAddr is the bridge listen address when WEBCALL_ADDR is unset.
const DefaultAddr = "127.0.0.1:8765"

// Config holds the application configuration.
type Config struct {
	Addr string

	ICEServers    []domain.ICEServer
	ICEServersURL string
	ICEToken      string
	ICEWait       time.Duration
	ICEExtraWait  time.Duration

	UDPPortMin uint16
	UDPPortMax uint16

	Encryption bool
	LogLevel   string
}

// Load reads configuration from a .env file (if present) and environment variables.
// Environment variables take precedence over .env values. When envFiles are
// given they replace .env and must exist.
func Load(envFiles ...string) (*Config, error) {
	// godotenv.Load does not overwrite existing env vars
	if len(envFiles) == 0 {
		_ = godotenv.Load()
	} else if err := godotenv.Load(envFiles...); err != nil {
		return nil, fmt.Errorf("load env file: %w", err)
	}

	cfg := &Config{
		Addr:          envOr("WEBCALL_ADDR", DefaultAddr),
		ICEServersURL: os.Getenv("WEBCALL_ICE_SERVERS_URL"),
		ICEToken:      os.Getenv("WEBCALL_ICE_TOKEN"),
		LogLevel:      envOr("WEBCALL_LOG_LEVEL", "info"),
	}

	if urls := splitList(os.Getenv("WEBCALL_ICE_SERVERS")); len(urls) > 0 {
		cfg.ICEServers = []domain.ICEServer{{
			URLs:       urls,
			Username:   os.Getenv("WEBCALL_ICE_USERNAME"),
			Credential: os.Getenv("WEBCALL_ICE_CREDENTIAL"),
		}}
	}

	var err error
	if cfg.ICEWait, err = duration("WEBCALL_ICE_WAIT", ice.DefaultWait); err != nil {
		return nil, err
	}
	if cfg.ICEExtraWait, err = duration("WEBCALL_ICE_EXTRA_WAIT", ice.DefaultExtraWait); err != nil {
		return nil, err
	}
	if cfg.UDPPortMin, err = port("WEBCALL_UDP_PORT_MIN"); err != nil {
		return nil, err
	}
	if cfg.UDPPortMax, err = port("WEBCALL_UDP_PORT_MAX"); err != nil {
		return nil, err
	}
	if (cfg.UDPPortMin == 0) != (cfg.UDPPortMax == 0) || cfg.UDPPortMin > cfg.UDPPortMax {
		return nil, fmt.Errorf("invalid UDP port range %d-%d", cfg.UDPPortMin, cfg.UDPPortMax)
	}

	cfg.Encryption = true
	if v := os.Getenv("WEBCALL_ENCRYPTION"); v != "" {
		if cfg.Encryption, err = strconv.ParseBool(v); err != nil {
			return nil, fmt.Errorf("WEBCALL_ENCRYPTION: %w", err)
		}
	}

	return cfg, nil
}

func envOr(key, fallback string) string {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return fallback
	}
	return v
}

func splitList(v string) []string {
	var out []string
	for _, part := range strings.Split(v, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

func duration(key string, fallback time.Duration) (time.Duration, error) {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return fallback, nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", key, err)
	}
	if d <= 0 {
		return 0, fmt.Errorf("%s must be positive", key)
	}
	return d, nil
}

func port(key string) (uint16, error) {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return 0, nil
	}
	n, err := strconv.ParseUint(v, 10, 16)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", key, err)
	}
	return uint16(n), nil
}
