// Copyright (c) 2026 Studio. All rights reserved.
// Author: tai.buivan.jp@gmail.com

/*
Package config handles application-wide settings and environment parsing.

It leverages 'caarlos0/env' to map OS environment variables into a strongly-typed
Go struct, providing early validation and default values.

Usage:

	cfg, err := config.Load()
	if err != nil {
	    log.Fatal(err)
	}

Architecture:

  - Immutability: Once loaded, configuration is read-only.
  - DI-Friendly: Passed to core components (DB, Redis, token service) via constructors.
  - Explicit Environment: ENVIRONMENT must be set; secret resolution branches once on [Environment].
*/
package config

import (
	"errors"
	"fmt"
	"net/netip"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
)

// # Environment

// Environment is the deployment variant the process runs as.
type Environment string

const (
	EnvProduction  Environment = "production"
	EnvDevelopment Environment = "development"
)

// MinSecretLength is the minimum byte length of a signing secret in production.
const MinSecretLength = 32

// Development-only signing secrets. They are public and must never sign a production token.
const (
	devAccessSecret  = "development-access-secret-not-for-production-use"
	devRefreshSecret = "development-refresh-secret-not-for-production-use"
)

var (
	// ErrUnknownEnvironment is returned for any ENVIRONMENT value other than production/development.
	ErrUnknownEnvironment = errors.New("config: unknown environment")

	// ErrWeakSecret is returned when production signing secrets are missing, short or shared.
	ErrWeakSecret = errors.New("config: weak or missing signing secret")

	// ErrInvalidTrustedProxy is returned for a TRUSTED_PROXIES entry that is neither a CIDR nor an address.
	ErrInvalidTrustedProxy = errors.New("config: invalid trusted proxy")
)

// # Configuration Schema

// Config holds all runtime configuration for the Studio API server.
type Config struct {

	// Server settings
	ServerPort  string      `env:"SERVER_PORT"  envDefault:"8080"`
	Environment Environment `env:"ENVIRONMENT,required,notEmpty"`
	Debug       bool        `env:"DEBUG"        envDefault:"false"`

	// Relational Database (PostgreSQL)
	DatabaseURL string   `env:"DATABASE_URL,required,notEmpty"`
	Postgres    Postgres `envPrefix:"POSTGRES_"`

	// MigrationPath is the filesystem path to the SQL migrations directory.
	MigrationPath string `env:"MIGRATION_PATH" envDefault:"./data/migrations"`

	Redis     Redis     `envPrefix:"REDIS_"`
	JWT       JWT       `envPrefix:"JWT_"`
	Store     Store     `envPrefix:"STORE_"`
	RateLimit RateLimit `envPrefix:"RATE_LIMIT_"`
	Edge      Edge      `envPrefix:"EDGE_"`

	// Cross-Origin Resource Sharing
	AllowedOrigins []string `env:"ALLOWED_ORIGINS" envSeparator:","`

	// TrustedProxyCIDRs lists the reverse proxies whose forwarding headers are believed.
	// Bare addresses are accepted as single-host ranges.
	TrustedProxyCIDRs []string `env:"TRUSTED_PROXIES" envSeparator:","`
	trustedProxies    []netip.Prefix

	// UsingDevSecrets reports that Load substituted the development signing secrets.
	UsingDevSecrets bool
}

// Postgres contains the connection pool tuning.
type Postgres struct {
	MaxConns       int32         `env:"MAX_CONNS"       envDefault:"25"`
	MinConns       int32         `env:"MIN_CONNS"       envDefault:"5"`
	ConnectTimeout time.Duration `env:"CONNECT_TIMEOUT" envDefault:"5s"`
}

// Redis contains the networked store connection parameters.
type Redis struct {
	Addr            string        `env:"ADDR"              envDefault:"localhost:6379"`
	Password        string        `env:"PASSWORD"`
	DB              int           `env:"DB"                envDefault:"0"`
	DialTimeout     time.Duration `env:"DIAL_TIMEOUT"      envDefault:"2s"`
	OpTimeout       time.Duration `env:"OP_TIMEOUT"        envDefault:"500ms"`
	MaxRetries      int           `env:"MAX_RETRIES"       envDefault:"1"`
	MinRetryBackoff time.Duration `env:"MIN_RETRY_BACKOFF" envDefault:"8ms"`
	MaxRetryBackoff time.Duration `env:"MAX_RETRY_BACKOFF" envDefault:"128ms"`
	PoolSize        int           `env:"POOL_SIZE"         envDefault:"10"`
}

// JWT contains token signing parameters. Access and refresh tokens use independent secrets.
type JWT struct {
	AccessSecret  string        `env:"ACCESS_SECRET"`
	RefreshSecret string        `env:"REFRESH_SECRET"`
	AccessTTL     time.Duration `env:"ACCESS_TTL"  envDefault:"1h"`
	RefreshTTL    time.Duration `env:"REFRESH_TTL" envDefault:"168h"`
}

// Store contains in-process fallback store parameters.
type Store struct {
	SweepInterval time.Duration `env:"SWEEP_INTERVAL" envDefault:"1m"`
	SweepBatch    int           `env:"SWEEP_BATCH"    envDefault:"512"`

	// Cooldown skips the networked store for this long after it fails.
	Cooldown time.Duration `env:"COOLDOWN" envDefault:"5s"`
}

// RateLimit contains the login throttling policy.
type RateLimit struct {
	LoginLimit         int           `env:"LOGIN_LIMIT"          envDefault:"5"`
	LoginWindow        time.Duration `env:"LOGIN_WINDOW"         envDefault:"30m"`
	LoginBlockAfter    int           `env:"LOGIN_BLOCK_AFTER"    envDefault:"3"`
	LoginBlockDuration time.Duration `env:"LOGIN_BLOCK_DURATION" envDefault:"1h"`
	APILimit           int           `env:"API_LIMIT"            envDefault:"300"`
	APIWindow          time.Duration `env:"API_WINDOW"           envDefault:"1m"`
}

// Edge contains the route layout enforced by the edge guard.
type Edge struct {
	ProtectedPrefixes []string `env:"PROTECTED_PREFIXES" envSeparator:"," envDefault:"/admin"`
	GuestOnlyPaths    []string `env:"GUEST_ONLY_PATHS"   envSeparator:"," envDefault:"/login"`
	LoginPath         string   `env:"LOGIN_PATH"         envDefault:"/login"`
	HomePath          string   `env:"HOME_PATH"          envDefault:"/admin"`
}

// # Configuration Loading

// Load parses environment variables into a [Config] struct and resolves the
// signing secrets for the selected [Environment].
func Load() (*Config, error) {

	// Initialize an empty config struct
	cfg := &Config{}

	// This will fail if any field marked with 'required' is missing.
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("config: failed to parse environment variables: %w", err)
	}

	if err := cfg.resolveSecrets(); err != nil {
		return nil, err
	}

	if err := cfg.parseTrustedProxies(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// resolveSecrets is the single branch point between production and development secrets.
func (c *Config) resolveSecrets() error {
	switch c.Environment {
	case EnvProduction:
		if err := checkSecret("JWT_ACCESS_SECRET", c.JWT.AccessSecret); err != nil {
			return err
		}
		if err := checkSecret("JWT_REFRESH_SECRET", c.JWT.RefreshSecret); err != nil {
			return err
		}
		if c.JWT.AccessSecret == c.JWT.RefreshSecret {
			return fmt.Errorf("%w: access and refresh secrets must differ", ErrWeakSecret)
		}
		return nil

	case EnvDevelopment:
		if c.JWT.AccessSecret == "" {
			c.JWT.AccessSecret = devAccessSecret
			c.UsingDevSecrets = true
		}
		if c.JWT.RefreshSecret == "" {
			c.JWT.RefreshSecret = devRefreshSecret
			c.UsingDevSecrets = true
		}
		return nil

	default:
		return fmt.Errorf("%w: %q", ErrUnknownEnvironment, c.Environment)
	}
}

func checkSecret(name, value string) error {
	value = strings.TrimSpace(value)
	if value == "" {
		return fmt.Errorf("%w: %s is not set", ErrWeakSecret, name)
	}
	if len(value) < MinSecretLength {
		return fmt.Errorf("%w: %s must be at least %d bytes", ErrWeakSecret, name, MinSecretLength)
	}
	if value == devAccessSecret || value == devRefreshSecret {
		return fmt.Errorf("%w: %s uses the development default", ErrWeakSecret, name)
	}
	return nil
}

func (c *Config) parseTrustedProxies() error {
	c.trustedProxies = make([]netip.Prefix, 0, len(c.TrustedProxyCIDRs))
	for _, entry := range c.TrustedProxyCIDRs {
		entry = strings.TrimSpace(entry)
		if entry == "" {
			continue
		}

		if prefix, err := netip.ParsePrefix(entry); err == nil {
			c.trustedProxies = append(c.trustedProxies, prefix.Masked())
			continue
		}

		addr, err := netip.ParseAddr(entry)
		if err != nil {
			return fmt.Errorf("%w: %q", ErrInvalidTrustedProxy, entry)
		}
		c.trustedProxies = append(c.trustedProxies, netip.PrefixFrom(addr, addr.BitLen()))
	}
	return nil
}

// TrustedProxies returns the parsed TRUSTED_PROXIES ranges. Empty means no proxy is trusted.
func (c *Config) TrustedProxies() []netip.Prefix {
	return c.trustedProxies
}

// IsDevelopment reports whether the server is running in development mode.
func (c *Config) IsDevelopment() bool {
	return c.Environment == EnvDevelopment
}

// CORSOrigins returns the origins allowed to make credentialed cross-origin calls.
func (c *Config) CORSOrigins() []string {
	return c.AllowedOrigins
}

// IsProduction reports whether the server is running in production mode.
func (c *Config) IsProduction() bool {
	return c.Environment == EnvProduction
}
