package config

import (
	"fmt"
	"time"

	"github.com/caarlos0/env/v11"
)

// Transport selects how the MCP server is exposed.
const (
	TransportStdio          = "stdio"
	TransportStreamableHTTP = "streamable-http"
	TransportSSE            = "sse"
	TransportREST           = "rest"
)

// Mode selects how callers are authenticated.
const (
	ModeLocal = "local" // single user, no authentication
	ModeToken = "token" // pre-shared API tokens
	ModeOAuth = "oauth" // OAuth 2.1 bearer tokens
)

// Backend selects the database backend.
const (
	BackendSQLite     = "sqlite"
	BackendPostgreSQL = "postgresql"
)

// Config contains all runtime configuration, loaded from environment
// variables. Defaults give a single-user stdio server over a local
// SQLite file, which is what `mealmcp standalone` expects.
type Config struct {
	Transport string `env:"MCP_TRANSPORT" envDefault:"stdio"`
	Mode      string `env:"MCP_MODE" envDefault:"local"`
	Host      string `env:"MCP_HOST" envDefault:"localhost"`
	Port      int    `env:"MCP_PORT" envDefault:"8000"`

	// PublicURL is the externally reachable base URL, used to build
	// absolute endpoint URLs in OAuth discovery metadata. Empty means
	// derive from Host and Port.
	PublicURL string `env:"MCP_PUBLIC_URL"`

	Database Database `envPrefix:"PANTRY_"`
	OAuth    OAuth    `envPrefix:"OAUTH_"`

	// AdminToken is the pre-shared token accepted in token mode.
	AdminToken string `env:"ADMIN_TOKEN"`

	Debug bool `env:"MCP_DEBUG" envDefault:"false"`
}

// Database contains pantry storage parameters.
type Database struct {
	Backend string `env:"BACKEND" envDefault:"sqlite"`
	// Path is the SQLite database file (sqlite backend).
	Path string `env:"DB_PATH" envDefault:"pantry.db"`
	// URL is the PostgreSQL connection string (postgresql backend).
	URL string `env:"DATABASE_URL"`
}

// OAuth contains authorization server parameters.
type OAuth struct {
	// TokenExpirySeconds is the access token lifetime. Refresh tokens
	// live 24x as long, authorization codes ten minutes.
	TokenExpirySeconds int `env:"TOKEN_EXPIRY" envDefault:"86400"`
}

// Load reads configuration from the environment.
func Load() (*Config, error) {
	cfg := Config{}
	if err := env.Parse(&cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	return &cfg, nil
}

// BaseURL returns the public base URL without a trailing slash.
func (c *Config) BaseURL() string {
	if c.PublicURL != "" {
		return trimTrailingSlash(c.PublicURL)
	}
	return fmt.Sprintf("http://%s:%d", c.Host, c.Port)
}

// TokenExpiry returns the access token lifetime as a duration.
func (c *Config) TokenExpiry() time.Duration {
	return time.Duration(c.OAuth.TokenExpirySeconds) * time.Second
}

// RefreshExpiry returns the refresh token lifetime (24x access lifetime).
func (c *Config) RefreshExpiry() time.Duration {
	return 24 * c.TokenExpiry()
}

// ConnectionString returns the backend-appropriate connection string.
func (c *Config) ConnectionString() string {
	if c.Database.Backend == BackendPostgreSQL {
		return c.Database.URL
	}
	return c.Database.Path
}

// Validate checks the configuration for inconsistencies and returns all
// issues found, so operators see every problem in one pass.
func (c *Config) Validate() []string {
	var issues []string

	switch c.Transport {
	case TransportStdio, TransportStreamableHTTP, TransportSSE, TransportREST:
	default:
		issues = append(issues, fmt.Sprintf("invalid MCP_TRANSPORT: %q", c.Transport))
	}

	switch c.Mode {
	case ModeLocal, ModeToken, ModeOAuth:
	default:
		issues = append(issues, fmt.Sprintf("invalid MCP_MODE: %q", c.Mode))
	}

	switch c.Database.Backend {
	case BackendSQLite:
	case BackendPostgreSQL:
		if c.Database.URL == "" {
			issues = append(issues, "PANTRY_DATABASE_URL required for PostgreSQL backend")
		}
	default:
		issues = append(issues, fmt.Sprintf("invalid PANTRY_BACKEND: %q", c.Database.Backend))
	}

	if c.Port < 1 || c.Port > 65535 {
		issues = append(issues, fmt.Sprintf("invalid MCP_PORT: %d", c.Port))
	}

	if c.Mode == ModeToken && c.AdminToken == "" {
		issues = append(issues, "ADMIN_TOKEN required for token mode")
	}

	if c.Transport == TransportStdio && c.Mode != ModeLocal {
		issues = append(issues, "stdio transport supports local mode only")
	}

	if c.OAuth.TokenExpirySeconds < 60 || c.OAuth.TokenExpirySeconds > 86400*30 {
		issues = append(issues, fmt.Sprintf("OAUTH_TOKEN_EXPIRY out of range [60, 2592000]: %d", c.OAuth.TokenExpirySeconds))
	}

	return issues
}

func trimTrailingSlash(s string) string {
	for len(s) > 0 && s[len(s)-1] == '/' {
		s = s[:len(s)-1]
	}
	return s
}
