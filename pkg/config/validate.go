package config

import (
	"errors"
	"fmt"
)

// Validate checks the configuration for required fields and valid values.
// Returns an error with a descriptive field path on failure.
func (c *Config) Validate() error {
	var errs []error

	// server.port must be positive.
	if c.Server.Port <= 0 {
		errs = append(errs, fmt.Errorf("server.port must be > 0, got %d", c.Server.Port))
	}

	// At least one provider is required.
	if len(c.Providers) == 0 {
		errs = append(errs, fmt.Errorf("providers is required: configure at least one upstream (or set DIRIGENT_BACKEND_URL)"))
	}

	defaults := 0
	for i, p := range c.Providers {
		switch p.Type {
		case "anthropic", "openai-compat":
			// valid
		default:
			errs = append(errs, fmt.Errorf("providers[%d].type must be \"anthropic\" or \"openai-compat\", got %q", i, p.Type))
		}
		if p.BaseURL == "" {
			errs = append(errs, fmt.Errorf("providers[%d].base_url is required", i))
		}
		if p.Default {
			defaults++
		}
	}
	if defaults > 1 {
		errs = append(errs, fmt.Errorf("providers: at most one entry may set default: true, got %d", defaults))
	}

	// storage.type must be a known value.
	switch c.Storage.Type {
	case "memory", "postgres":
		// valid
	default:
		errs = append(errs, fmt.Errorf("storage.type must be \"memory\" or \"postgres\", got %q", c.Storage.Type))
	}

	// If storage.type is "postgres", DSN or DSNFile must be set.
	if c.Storage.Type == "postgres" {
		if c.Storage.Postgres.DSN == "" && c.Storage.Postgres.DSNFile == "" {
			errs = append(errs, fmt.Errorf("storage.postgres.dsn or storage.postgres.dsn_file is required when storage.type is \"postgres\""))
		}
	}

	// auth.type must be a known value.
	switch c.Auth.Type {
	case "none", "apikey", "jwt":
		// valid
	default:
		errs = append(errs, fmt.Errorf("auth.type must be \"none\", \"apikey\", or \"jwt\", got %q", c.Auth.Type))
	}

	// auth.type=jwt needs a key set endpoint.
	if c.Auth.Type == "jwt" && c.Auth.JWT.JWKSURL == "" {
		errs = append(errs, fmt.Errorf("auth.jwt.jwks_url is required when auth.type is \"jwt\""))
	}

	// Rate limits must not be negative; zero means unlimited.
	if c.Auth.RateLimit.DefaultRPM < 0 {
		errs = append(errs, fmt.Errorf("auth.rate_limit.default_rpm must be >= 0, got %d", c.Auth.RateLimit.DefaultRPM))
	}
	for tier, rpm := range c.Auth.RateLimit.Tiers {
		if rpm < 0 {
			errs = append(errs, fmt.Errorf("auth.rate_limit.tiers[%q] must be >= 0, got %d", tier, rpm))
		}
	}

	// Collaborators need an id and a url, and ids must be unique: the
	// id becomes part of the tool name the model calls.
	seen := make(map[string]bool)
	for i, sa := range c.Subagents {
		if sa.ID == "" {
			errs = append(errs, fmt.Errorf("subagents[%d].id is required", i))
			continue
		}
		if sa.URL == "" {
			errs = append(errs, fmt.Errorf("subagents[%d].url is required", i))
		}
		if seen[sa.ID] {
			errs = append(errs, fmt.Errorf("subagents[%d].id %q is duplicated", i, sa.ID))
		}
		seen[sa.ID] = true
	}

	// Skills need a name; enabled skills need content to disclose.
	for i, sk := range c.Skills {
		if sk.Name == "" {
			errs = append(errs, fmt.Errorf("skills[%d].name is required", i))
		}
		if sk.Enabled && sk.Content == "" && sk.ContentFile == "" {
			errs = append(errs, fmt.Errorf("skills[%d]: content or content_file is required when enabled", i))
		}
	}

	for i, srv := range c.MCP.Servers {
		if srv.Name == "" {
			errs = append(errs, fmt.Errorf("mcp.servers[%d].name is required", i))
		}
		if srv.URL == "" {
			errs = append(errs, fmt.Errorf("mcp.servers[%d].url is required", i))
		}
	}

	return errors.Join(errs...)
}
