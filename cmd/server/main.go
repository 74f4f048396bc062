// Command server runs the dirigent chat-exchange conductor.
//
// Configuration is loaded from a YAML file (via -config, DIRIGENT_CONFIG,
// ./config.yaml, or /etc/dirigent/config.yaml) with DIRIGENT_* environment
// overrides; see pkg/config. The minimal container deployment needs only
// DIRIGENT_BACKEND_URL.
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"

	"github.com/dirigent-dev/dirigent/pkg/auth"
	"github.com/dirigent-dev/dirigent/pkg/auth/apikey"
	jwtauth "github.com/dirigent-dev/dirigent/pkg/auth/jwt"
	"github.com/dirigent-dev/dirigent/pkg/auth/noop"
	"github.com/dirigent-dev/dirigent/pkg/config"
	"github.com/dirigent-dev/dirigent/pkg/debug"
	"github.com/dirigent-dev/dirigent/pkg/engine"
	"github.com/dirigent-dev/dirigent/pkg/provider"
	"github.com/dirigent-dev/dirigent/pkg/provider/anthropic"
	"github.com/dirigent-dev/dirigent/pkg/provider/openaicompat"
	"github.com/dirigent-dev/dirigent/pkg/session"
	"github.com/dirigent-dev/dirigent/pkg/skills"
	"github.com/dirigent-dev/dirigent/pkg/storage/memory"
	"github.com/dirigent-dev/dirigent/pkg/storage/postgres"
	"github.com/dirigent-dev/dirigent/pkg/subagent"
	"github.com/dirigent-dev/dirigent/pkg/tools/mcp"
	"github.com/dirigent-dev/dirigent/pkg/transport"
	transporthttp "github.com/dirigent-dev/dirigent/pkg/transport/http"
)

func main() {
	if err := run(); err != nil {
		slog.Error("server failed", "error", err)
		os.Exit(1)
	}
}

func run() error {
	configPath := flag.String("config", "", "path to YAML config file")
	flag.Parse()

	debug.Init("", "", "")

	cfg, err := config.Load(*configPath)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	ctx := context.Background()

	// Upstream providers.
	providers := provider.NewRegistry()
	defer providers.Close()
	for _, pc := range cfg.Providers {
		p, err := buildProvider(pc)
		if err != nil {
			return fmt.Errorf("creating provider %q: %w", pc.Name, err)
		}
		providers.Register(p, pc.Models, pc.Default)
	}

	// Transcript store.
	store, err := buildStore(ctx, cfg.Storage)
	if err != nil {
		return fmt.Errorf("creating storage: %w", err)
	}
	defer store.Close()

	// Continuation-token state shared between the engine and the pool.
	sessions := session.NewStore(cfg.Sessions.MaxConversations)

	engineOpts := []engine.Option{
		engine.WithStore(store),
		engine.WithSessions(sessions),
	}

	// Collaborator agents.
	if len(cfg.Subagents) > 0 {
		pool, err := subagent.NewPool(subagentConfigs(cfg.Subagents), sessions)
		if err != nil {
			return fmt.Errorf("creating collaborator pool: %w", err)
		}
		defer pool.Close()
		pool.Discover(ctx)
		engineOpts = append(engineOpts, engine.WithCollaborators(pool))
	}

	// Capability bundles.
	if len(cfg.Skills) > 0 {
		catalog := skills.NewCatalog(skillBundles(cfg.Skills))
		slog.Info("skill catalog loaded", "enabled", len(catalog.Enabled()))
		engineOpts = append(engineOpts, engine.WithSkills(catalog))
	}

	// MCP tool servers.
	if len(cfg.MCP.Servers) > 0 {
		src, err := mcp.New(mcpServers(cfg.MCP.Servers))
		if err != nil {
			return fmt.Errorf("creating MCP source: %w", err)
		}
		defer src.Close()
		src.Connect(ctx)
		engineOpts = append(engineOpts, engine.WithToolSource(src))
	}

	// Exchange engine.
	eng, err := engine.New(providers, engine.Config{
		MaxTurns:           cfg.Engine.MaxTurns,
		DefaultModel:       cfg.Engine.DefaultModel,
		MaxHistoryMessages: cfg.Engine.MaxHistoryMessages,
		MaxTokens:          cfg.Engine.MaxTokens,
	}, engineOpts...)
	if err != nil {
		return fmt.Errorf("creating engine: %w", err)
	}

	// Inbound authentication and optional rate limiting.
	chain, err := buildAuthChain(cfg.Auth)
	if err != nil {
		return fmt.Errorf("configuring auth: %w", err)
	}
	var limiter auth.RateLimiter
	if cfg.Auth.RateLimit.Enabled() {
		tiers := make(map[string]auth.TierConfig, len(cfg.Auth.RateLimit.Tiers))
		for tier, rpm := range cfg.Auth.RateLimit.Tiers {
			tiers[tier] = auth.TierConfig{RequestsPerMinute: rpm}
		}
		limiter = auth.NewInProcessLimiter(tiers, cfg.Auth.RateLimit.DefaultRPM)
	}

	srvOpts := []transporthttp.ServerOption{
		transporthttp.WithAddr(fmt.Sprintf(":%d", cfg.Server.Port)),
		transporthttp.WithReadTimeout(cfg.Server.ReadTimeout),
		transporthttp.WithWriteTimeout(cfg.Server.WriteTimeout),
		transporthttp.WithHTTPMiddleware(auth.Middleware(chain, limiter, auth.DefaultBypassEndpoints)),
	}
	if cfg.Observability.Metrics.Enabled {
		srvOpts = append(srvOpts, transporthttp.WithMetricsPath(cfg.Observability.Metrics.Path))
	}

	srv := transporthttp.NewServer(eng, store, srvOpts...)

	slog.Info("dirigent starting",
		"port", cfg.Server.Port,
		"providers", len(cfg.Providers),
		"default_model", cfg.Engine.DefaultModel,
		"storage", cfg.Storage.Type,
		"auth", cfg.Auth.Type,
		"collaborators", len(cfg.Subagents),
		"mcp_servers", len(cfg.MCP.Servers),
	)
	return srv.ListenAndServe()
}

// buildProvider constructs one upstream adapter from its config entry.
func buildProvider(pc config.ProviderConfig) (provider.Provider, error) {
	switch pc.Type {
	case "anthropic":
		return anthropic.New(anthropic.Config{
			Name:    pc.Name,
			BaseURL: pc.BaseURL,
			APIKey:  pc.APIKey,
			Version: pc.Version,
		})
	case "openai-compat":
		return openaicompat.New(openaicompat.Config{
			Name:    pc.Name,
			BaseURL: pc.BaseURL,
			APIKey:  pc.APIKey,
		})
	default:
		return nil, fmt.Errorf("unknown provider type %q", pc.Type)
	}
}

// buildStore constructs the transcript store named by the config.
func buildStore(ctx context.Context, sc config.StorageConfig) (transport.ConversationStore, error) {
	switch sc.Type {
	case "postgres":
		store, err := postgres.New(ctx, postgres.Config{
			DSN:            sc.Postgres.DSN,
			MaxConns:       sc.Postgres.MaxConns,
			ConnectTimeout: sc.Postgres.ConnectTimeout,
			MigrateOnStart: sc.Postgres.MigrateOnStart,
		})
		if err != nil {
			return nil, err
		}
		slog.Info("storage enabled", "type", "postgres")
		return store, nil
	default: // validated to "memory"
		slog.Info("storage enabled", "type", "memory", "max_size", sc.MaxSize)
		return memory.New(sc.MaxSize), nil
	}
}

// buildAuthChain maps the auth config onto an authenticator chain. With
// type "none" every request passes as anonymous; otherwise all-abstain
// (no usable credentials) is a rejection.
func buildAuthChain(ac config.AuthConfig) (*auth.Chain, error) {
	switch ac.Type {
	case "apikey":
		entries := make([]apikey.Entry, 0, len(ac.APIKeys))
		for _, k := range ac.APIKeys {
			entries = append(entries, apikey.Entry{
				Key: k.Key,
				Identity: auth.Identity{
					Subject:     k.Subject,
					ServiceTier: k.ServiceTier,
					Metadata:    map[string]string{"tenant_id": k.TenantID},
				},
			})
		}
		return &auth.Chain{
			Authenticators:  []auth.Authenticator{apikey.New(entries)},
			DefaultDecision: auth.No,
		}, nil
	case "jwt":
		return &auth.Chain{
			Authenticators: []auth.Authenticator{jwtauth.New(jwtauth.Config{
				Issuer:      ac.JWT.Issuer,
				Audience:    ac.JWT.Audience,
				JWKSURL:     ac.JWT.JWKSURL,
				UserClaim:   ac.JWT.UserClaim,
				TenantClaim: ac.JWT.TenantClaim,
			})},
			DefaultDecision: auth.No,
		}, nil
	default: // validated to "none"
		return &auth.Chain{
			Authenticators:  []auth.Authenticator{&noop.Authenticator{}},
			DefaultDecision: auth.Yes,
		}, nil
	}
}

// subagentConfigs maps config entries onto collaborator client configs.
func subagentConfigs(entries []config.SubagentConfig) []subagent.Config {
	out := make([]subagent.Config, 0, len(entries))
	for _, e := range entries {
		out = append(out, subagent.Config{
			ID:      e.ID,
			BaseURL: e.URL,
			APIKey:  e.APIKey,
		})
	}
	return out
}

// skillBundles maps config entries onto catalog bundles.
func skillBundles(entries []config.SkillConfig) []skills.Bundle {
	out := make([]skills.Bundle, 0, len(entries))
	for _, e := range entries {
		out = append(out, skills.Bundle{
			Name:        e.Name,
			Description: e.Description,
			Content:     e.Content,
			Enabled:     e.Enabled,
		})
	}
	return out
}

// mcpServers maps config entries onto MCP server configs.
func mcpServers(entries []config.MCPServerConfig) []mcp.ServerConfig {
	out := make([]mcp.ServerConfig, 0, len(entries))
	for _, e := range entries {
		out = append(out, mcp.ServerConfig{
			Name:      e.Name,
			Transport: e.Transport,
			URL:       e.URL,
			Headers:   e.Headers,
			Auth: mcp.AuthConfig{
				Type:         e.Auth.Type,
				TokenURL:     e.Auth.TokenURL,
				ClientID:     e.Auth.ClientID,
				ClientSecret: e.Auth.ClientSecret,
				Scopes:       e.Auth.Scopes,
			},
		})
	}
	return out
}
