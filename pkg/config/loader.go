package config

import (
	"encoding/json"
	"fmt"
	"os"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
)

// Load loads configuration from a layered set of sources.
//
// The loading order is:
//  1. Built-in defaults
//  2. YAML config file (explicit path, DIRIGENT_CONFIG env, ./config.yaml, /etc/dirigent/config.yaml)
//  3. Environment variable overrides
//  4. File reference resolution (_file suffix)
//  5. Validation
func Load(configPath string) (*Config, error) {
	// Start with defaults.
	cfg := Defaults()

	// Discover and load YAML config file.
	filePath := discoverConfigFile(configPath)
	if filePath != "" {
		if err := loadYAMLFile(filePath, &cfg); err != nil {
			return nil, fmt.Errorf("loading config file %s: %w", filePath, err)
		}
	}

	// Apply environment variable overrides.
	applyEnvOverrides(&cfg)

	// Resolve _file references.
	if err := resolveFileReferences(&cfg); err != nil {
		return nil, fmt.Errorf("resolving file references: %w", err)
	}

	// Validate.
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation: %w", err)
	}

	return &cfg, nil
}

// discoverConfigFile finds the config file path using the discovery order:
// 1. Explicit configPath argument
// 2. DIRIGENT_CONFIG environment variable
// 3. ./config.yaml in the current directory
// 4. /etc/dirigent/config.yaml
//
// Returns empty string if no config file is found.
func discoverConfigFile(configPath string) string {
	// Explicit path takes priority.
	if configPath != "" {
		return configPath
	}

	// Check DIRIGENT_CONFIG env var.
	if envPath := os.Getenv("DIRIGENT_CONFIG"); envPath != "" {
		return envPath
	}

	// Check common locations.
	candidates := []string{
		"config.yaml",
		"/etc/dirigent/config.yaml",
	}
	for _, path := range candidates {
		if _, err := os.Stat(path); err == nil {
			return path
		}
	}

	return ""
}

// loadYAMLFile reads and parses a YAML file into the Config struct.
// Fields not present in the YAML retain their current (default) values.
func loadYAMLFile(path string, cfg *Config) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	return yaml.Unmarshal(data, cfg)
}

// applyEnvOverrides maps environment variables to config fields. Flat
// variables cover the common single-backend deployment; JSON-valued
// variables cover the list-shaped sections so a container can be
// configured without a config file at all.
func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("DIRIGENT_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			cfg.Server.Port = port
		}
	}
	if v := os.Getenv("DIRIGENT_MAX_TURNS"); v != "" {
		if turns, err := strconv.Atoi(v); err == nil {
			cfg.Engine.MaxTurns = turns
		}
	}
	if v := os.Getenv("DIRIGENT_MODEL"); v != "" {
		cfg.Engine.DefaultModel = v
	}
	if v := os.Getenv("DIRIGENT_STORAGE"); v != "" {
		cfg.Storage.Type = v
	}
	if v := os.Getenv("DIRIGENT_STORAGE_SIZE"); v != "" {
		if size, err := strconv.Atoi(v); err == nil {
			cfg.Storage.MaxSize = size
		}
	}
	if v := os.Getenv("DIRIGENT_AUTH_TYPE"); v != "" {
		cfg.Auth.Type = v
	}

	applyProviderEnvOverrides(cfg)

	// DIRIGENT_API_KEYS: JSON array of API key configs.
	if v := os.Getenv("DIRIGENT_API_KEYS"); v != "" {
		var keys []APIKeyConfig
		if err := json.Unmarshal([]byte(v), &keys); err == nil && len(keys) > 0 {
			cfg.Auth.APIKeys = keys
		}
	}

	// DIRIGENT_SUBAGENTS: JSON array of collaborator configs.
	if v := os.Getenv("DIRIGENT_SUBAGENTS"); v != "" {
		var agents []SubagentConfig
		if err := json.Unmarshal([]byte(v), &agents); err == nil && len(agents) > 0 {
			cfg.Subagents = agents
		}
	}

	// DIRIGENT_MCP_SERVERS: JSON array of MCP server configs.
	if v := os.Getenv("DIRIGENT_MCP_SERVERS"); v != "" {
		var servers []MCPServerConfig
		if err := json.Unmarshal([]byte(v), &servers); err == nil && len(servers) > 0 {
			cfg.MCP.Servers = servers
		}
	}
}

// applyProviderEnvOverrides maps the flat DIRIGENT_BACKEND_URL,
// DIRIGENT_PROVIDER, and DIRIGENT_API_KEY variables onto the provider
// list. With no providers configured, a single default entry is
// synthesized; otherwise the variables override the default entry.
func applyProviderEnvOverrides(cfg *Config) {
	backendURL := os.Getenv("DIRIGENT_BACKEND_URL")
	provType := os.Getenv("DIRIGENT_PROVIDER")
	apiKey := os.Getenv("DIRIGENT_API_KEY")

	if backendURL == "" && provType == "" && apiKey == "" {
		return
	}

	if len(cfg.Providers) == 0 {
		if backendURL == "" {
			return
		}
		if provType == "" {
			provType = "anthropic"
		}
		cfg.Providers = []ProviderConfig{{
			Type:    provType,
			BaseURL: backendURL,
			APIKey:  apiKey,
			Default: true,
		}}
		return
	}

	target := defaultProviderIndex(cfg.Providers)
	if backendURL != "" {
		cfg.Providers[target].BaseURL = backendURL
	}
	if provType != "" {
		cfg.Providers[target].Type = provType
	}
	if apiKey != "" {
		cfg.Providers[target].APIKey = apiKey
	}
}

// defaultProviderIndex returns the index of the entry marked default,
// falling back to the first entry.
func defaultProviderIndex(providers []ProviderConfig) int {
	for i := range providers {
		if providers[i].Default {
			return i
		}
	}
	return 0
}

// resolveFileReferences reads _file fields and populates the corresponding
// value fields. For each field ending in _file, if the value field is empty
// and the file field is set, the file is read, whitespace is trimmed, and
// the value field is populated. Skill content files are the exception:
// instruction text keeps its exact bytes.
func resolveFileReferences(cfg *Config) error {
	// providers[*].api_key_file -> providers[*].api_key
	for i := range cfg.Providers {
		if cfg.Providers[i].APIKeyFile != "" && cfg.Providers[i].APIKey == "" {
			val, err := readSecretFile(cfg.Providers[i].APIKeyFile)
			if err != nil {
				return fmt.Errorf("providers[%d].api_key_file: %w", i, err)
			}
			cfg.Providers[i].APIKey = val
		}
	}

	// storage.postgres.dsn_file -> storage.postgres.dsn
	if cfg.Storage.Postgres.DSNFile != "" && cfg.Storage.Postgres.DSN == "" {
		val, err := readSecretFile(cfg.Storage.Postgres.DSNFile)
		if err != nil {
			return fmt.Errorf("storage.postgres.dsn_file: %w", err)
		}
		cfg.Storage.Postgres.DSN = val
	}

	// auth.api_keys[*].key_file -> auth.api_keys[*].key
	for i := range cfg.Auth.APIKeys {
		if cfg.Auth.APIKeys[i].KeyFile != "" && cfg.Auth.APIKeys[i].Key == "" {
			val, err := readSecretFile(cfg.Auth.APIKeys[i].KeyFile)
			if err != nil {
				return fmt.Errorf("auth.api_keys[%d].key_file: %w", i, err)
			}
			cfg.Auth.APIKeys[i].Key = val
		}
	}

	// subagents[*].api_key_file -> subagents[*].api_key
	for i := range cfg.Subagents {
		if cfg.Subagents[i].APIKeyFile != "" && cfg.Subagents[i].APIKey == "" {
			val, err := readSecretFile(cfg.Subagents[i].APIKeyFile)
			if err != nil {
				return fmt.Errorf("subagents[%d].api_key_file: %w", i, err)
			}
			cfg.Subagents[i].APIKey = val
		}
	}

	// skills[*].content_file -> skills[*].content (verbatim, untrimmed)
	for i := range cfg.Skills {
		if cfg.Skills[i].ContentFile != "" && cfg.Skills[i].Content == "" {
			data, err := os.ReadFile(cfg.Skills[i].ContentFile)
			if err != nil {
				return fmt.Errorf("skills[%d].content_file: %w", i, err)
			}
			cfg.Skills[i].Content = string(data)
		}
	}

	// mcp.servers[*].auth.client_id_file -> mcp.servers[*].auth.client_id
	// mcp.servers[*].auth.client_secret_file -> mcp.servers[*].auth.client_secret
	for i := range cfg.MCP.Servers {
		if cfg.MCP.Servers[i].Auth.ClientIDFile != "" && cfg.MCP.Servers[i].Auth.ClientID == "" {
			val, err := readSecretFile(cfg.MCP.Servers[i].Auth.ClientIDFile)
			if err != nil {
				return fmt.Errorf("mcp.servers[%d].auth.client_id_file: %w", i, err)
			}
			cfg.MCP.Servers[i].Auth.ClientID = val
		}
		if cfg.MCP.Servers[i].Auth.ClientSecretFile != "" && cfg.MCP.Servers[i].Auth.ClientSecret == "" {
			val, err := readSecretFile(cfg.MCP.Servers[i].Auth.ClientSecretFile)
			if err != nil {
				return fmt.Errorf("mcp.servers[%d].auth.client_secret_file: %w", i, err)
			}
			cfg.MCP.Servers[i].Auth.ClientSecret = val
		}
	}

	return nil
}

// readSecretFile reads a file and returns its content with surrounding
// whitespace trimmed.
func readSecretFile(path string) (string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(string(data)), nil
}
