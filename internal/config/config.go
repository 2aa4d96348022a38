package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/rs/zerolog"
)

// AuthBackend selects which credential source verifies logins.
type AuthBackend string

const (
	BackendStore AuthBackend = "db"
	BackendHost  AuthBackend = "host"
)

type Config struct {
	Bind     string
	Port     int
	LogLevel zerolog.Level

	// Token service
	Secret    string
	Algorithm string
	TokenTTL  time.Duration

	// Credential store
	DBPath   string
	SeedPath string

	// Authenticator selection
	AuthBackend AuthBackend
	ShadowPath  string
	PasswdPath  string

	// Privileged command executor
	InterfacesPath string
	ResolvPath     string
	NetScript      string
	ExecTimeout    time.Duration
}

func FromEnv() Config {
	port := 8081
	if v := os.Getenv("RASDEVD_PORT"); v != "" {
		if p, err := strconv.Atoi(v); err == nil && p > 0 {
			port = p
		}
	}

	level := zerolog.InfoLevel
	if v := os.Getenv("RASDEVD_LOG"); v != "" {
		if l, err := zerolog.ParseLevel(v); err == nil {
			level = l
		}
	}

	ttl := 15 * time.Minute
	if v := os.Getenv("RASDEVD_TOKEN_TTL_MIN"); v != "" {
		if m, err := strconv.Atoi(v); err == nil && m > 0 {
			ttl = time.Duration(m) * time.Minute
		}
	}

	execTimeout := 30 * time.Second
	if v := os.Getenv("RASDEVD_EXEC_TIMEOUT_SEC"); v != "" {
		if s, err := strconv.Atoi(v); err == nil && s > 0 {
			execTimeout = time.Duration(s) * time.Second
		}
	}

	return Config{
		Bind:           getenvDefault("RASDEVD_BIND", "0.0.0.0"),
		Port:           port,
		LogLevel:       level,
		Secret:         os.Getenv("RASDEVD_SECRET"),
		Algorithm:      getenvDefault("RASDEVD_ALGORITHM", "HS256"),
		TokenTTL:       ttl,
		DBPath:         getenvDefault("RASDEVD_DB_PATH", "/var/lib/rasdevd/rbac.db"),
		SeedPath:       os.Getenv("RASDEVD_SEED_PATH"),
		AuthBackend:    AuthBackend(getenvDefault("RASDEVD_AUTH_BACKEND", string(BackendStore))),
		ShadowPath:     getenvDefault("RASDEVD_SHADOW_PATH", "/etc/shadow"),
		PasswdPath:     getenvDefault("RASDEVD_PASSWD_PATH", "/etc/passwd"),
		InterfacesPath: getenvDefault("RASDEVD_INTERFACES_PATH", "/etc/network/interfaces"),
		ResolvPath:     getenvDefault("RASDEVD_RESOLV_PATH", "/etc/resolv.conf"),
		NetScript:      os.Getenv("RASDEVD_NET_SCRIPT"),
		ExecTimeout:    execTimeout,
	}
}

// Validate reports fatal misconfiguration. A process must not start without
// a signing secret or with an unsupported signing algorithm.
func (c Config) Validate() error {
	if c.Secret == "" {
		return errors.New("RASDEVD_SECRET is required")
	}
	if c.Algorithm != "HS256" {
		return fmt.Errorf("unsupported signing algorithm %q (only HS256)", c.Algorithm)
	}
	switch c.AuthBackend {
	case BackendStore, BackendHost:
	default:
		return fmt.Errorf("unsupported auth backend %q (use %q or %q)", c.AuthBackend, BackendStore, BackendHost)
	}
	if c.TokenTTL <= 0 {
		return errors.New("token TTL must be positive")
	}
	return nil
}

func getenvDefault(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}
