// Package config provides unified configuration for the dirigent server.
//
// Configuration is loaded with a layered approach:
//  1. Built-in defaults
//  2. YAML config file (discovered or explicitly specified)
//  3. Environment variable overrides (DIRIGENT_ prefix)
//  4. File reference resolution (_file suffix fields)
//  5. Validation
package config

import "time"

// Config holds all configuration for the dirigent server.
type Config struct {
	Server        ServerConfig        `yaml:"server"`
	Engine        EngineConfig        `yaml:"engine"`
	Providers     []ProviderConfig    `yaml:"providers"`
	Storage       StorageConfig       `yaml:"storage"`
	Auth          AuthConfig          `yaml:"auth"`
	Subagents     []SubagentConfig    `yaml:"subagents"`
	Skills        []SkillConfig       `yaml:"skills"`
	Sessions      SessionsConfig      `yaml:"sessions"`
	MCP           MCPConfig           `yaml:"mcp"`
	Observability ObservabilityConfig `yaml:"observability"`
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Port         int           `yaml:"port"`          // default: 8080
	ReadTimeout  time.Duration `yaml:"read_timeout"`  // default: 30s
	WriteTimeout time.Duration `yaml:"write_timeout"` // default: 300s (covers long streams)
}

// EngineConfig holds exchange loop settings.
type EngineConfig struct {
	MaxTurns           int    `yaml:"max_turns"`            // model turns per exchange, default: 10
	MaxHistoryMessages int    `yaml:"max_history_messages"` // transcript cap, default: 100
	MaxTokens          int    `yaml:"max_tokens"`           // per-turn output limit, 0 = provider default
	DefaultModel       string `yaml:"default_model"`        // substituted when a request names no model
}

// ProviderConfig describes one upstream model backend.
type ProviderConfig struct {
	Name       string   `yaml:"name"`         // registry/log name, defaults to the type
	Type       string   `yaml:"type"`         // "anthropic" or "openai-compat"
	BaseURL    string   `yaml:"base_url"`     // required
	APIKey     string   `yaml:"api_key"`      // optional
	APIKeyFile string   `yaml:"api_key_file"` // _file variant for api_key
	Version    string   `yaml:"version"`      // anthropic-version header, type=anthropic only
	Models     []string `yaml:"models"`       // model names routed to this provider
	Default    bool     `yaml:"default"`      // serves requests for undeclared models
}

// StorageConfig holds transcript store settings.
type StorageConfig struct {
	Type     string         `yaml:"type"`     // "memory" or "postgres", default: "memory"
	MaxSize  int            `yaml:"max_size"` // for memory store, default: 1024
	Postgres PostgresConfig `yaml:"postgres"`
}

// PostgresConfig holds PostgreSQL-specific settings.
type PostgresConfig struct {
	DSN            string        `yaml:"dsn"`
	DSNFile        string        `yaml:"dsn_file"`         // _file variant for dsn
	MaxConns       int32         `yaml:"max_conns"`        // default: 25
	ConnectTimeout time.Duration `yaml:"connect_timeout"`  // default: 10s
	MigrateOnStart bool          `yaml:"migrate_on_start"` // default: false
}

// AuthConfig holds inbound authentication settings.
type AuthConfig struct {
	Type      string          `yaml:"type"`       // "none", "apikey", or "jwt", default: "none"
	APIKeys   []APIKeyConfig  `yaml:"api_keys"`   // API key entries for type=apikey
	JWT       JWTConfig       `yaml:"jwt"`        // settings for type=jwt
	RateLimit RateLimitConfig `yaml:"rate_limit"` // optional per-principal limits
}

// RateLimitConfig bounds authenticated request rates per principal.
// All-zero means no limiting.
type RateLimitConfig struct {
	// DefaultRPM is the requests-per-minute budget for principals whose
	// service tier has no explicit entry. Zero means unlimited.
	DefaultRPM int `yaml:"default_rpm"`

	// Tiers maps a service tier name to its requests-per-minute budget.
	Tiers map[string]int `yaml:"tiers"`
}

// Enabled reports whether any limit is configured.
func (r RateLimitConfig) Enabled() bool {
	return r.DefaultRPM > 0 || len(r.Tiers) > 0
}

// APIKeyConfig describes a single API key entry.
type APIKeyConfig struct {
	Key         string `yaml:"key"`
	KeyFile     string `yaml:"key_file"` // _file variant for key
	Subject     string `yaml:"subject"`
	TenantID    string `yaml:"tenant_id"`
	ServiceTier string `yaml:"service_tier"`
}

// JWTConfig holds JWT bearer validation settings.
type JWTConfig struct {
	Issuer      string `yaml:"issuer"`       // expected iss claim, empty = not checked
	Audience    string `yaml:"audience"`     // expected aud claim, empty = not checked
	JWKSURL     string `yaml:"jwks_url"`     // key set endpoint, required for type=jwt
	UserClaim   string `yaml:"user_claim"`   // identity claim, default: "sub"
	TenantClaim string `yaml:"tenant_claim"` // tenant claim, default: "tenant_id"
}

// SubagentConfig describes one external collaborator agent.
type SubagentConfig struct {
	ID         string `yaml:"id"`           // tool name becomes subagent_<id>
	URL        string `yaml:"url"`          // collaborator base URL
	APIKey     string `yaml:"api_key"`      // optional bearer token
	APIKeyFile string `yaml:"api_key_file"` // _file variant for api_key
}

// SkillConfig describes one capability bundle.
type SkillConfig struct {
	Name        string `yaml:"name"`
	Description string `yaml:"description"`
	Content     string `yaml:"content"`      // inline instruction text
	ContentFile string `yaml:"content_file"` // _file variant for content
	Enabled     bool   `yaml:"enabled"`      // disabled bundles are invisible to the model
}

// SessionsConfig holds collaborator continuation-state settings.
type SessionsConfig struct {
	MaxConversations int `yaml:"max_conversations"` // LRU bound, default: 1024
}

// MCPConfig holds MCP (Model Context Protocol) server settings.
type MCPConfig struct {
	Servers []MCPServerConfig `yaml:"servers"`
}

// MCPServerConfig describes a single MCP server connection.
type MCPServerConfig struct {
	Name      string            `yaml:"name"`
	Transport string            `yaml:"transport"` // "sse" or "streamable-http"
	URL       string            `yaml:"url"`
	Headers   map[string]string `yaml:"headers"`
	Auth      MCPAuthConfig     `yaml:"auth"`
}

// MCPAuthConfig holds dynamic authentication settings for an MCP server.
type MCPAuthConfig struct {
	Type             string   `yaml:"type"` // "" (none) or "oauth_client_credentials"
	TokenURL         string   `yaml:"token_url"`
	ClientID         string   `yaml:"client_id"`
	ClientIDFile     string   `yaml:"client_id_file"`     // _file variant for client_id
	ClientSecret     string   `yaml:"client_secret"`
	ClientSecretFile string   `yaml:"client_secret_file"` // _file variant for client_secret
	Scopes           []string `yaml:"scopes"`
}

// ObservabilityConfig holds monitoring and instrumentation settings.
type ObservabilityConfig struct {
	Metrics MetricsConfig `yaml:"metrics"`
}

// MetricsConfig holds Prometheus metrics endpoint settings.
type MetricsConfig struct {
	Enabled bool   `yaml:"enabled"` // default: true
	Path    string `yaml:"path"`    // default: "/metrics"
}

// Defaults returns a Config with all default values filled in.
func Defaults() Config {
	return Config{
		Server: ServerConfig{
			Port:         8080,
			ReadTimeout:  30 * time.Second,
			WriteTimeout: 300 * time.Second,
		},
		Engine: EngineConfig{
			MaxTurns:           10,
			MaxHistoryMessages: 100,
		},
		Storage: StorageConfig{
			Type:    "memory",
			MaxSize: 1024,
			Postgres: PostgresConfig{
				MaxConns:       25,
				ConnectTimeout: 10 * time.Second,
			},
		},
		Auth: AuthConfig{
			Type: "none",
		},
		Sessions: SessionsConfig{
			MaxConversations: 1024,
		},
		Observability: ObservabilityConfig{
			Metrics: MetricsConfig{
				Enabled: true,
				Path:    "/metrics",
			},
		},
	}
}
