package mcp

// ServerConfig describes one MCP server connection.
type ServerConfig struct {
	// Name identifies the server in logs and routing tables.
	Name string `json:"name"`

	// Transport selects the wire transport: "streamable-http" (default)
	// or "sse".
	Transport string `json:"transport"`

	// URL is the server endpoint.
	URL string `json:"url"`

	// Headers are sent verbatim with every request, typically for
	// API-key style authentication.
	Headers map[string]string `json:"headers,omitempty"`

	// Auth configures dynamic authentication, used when a static
	// header is not enough.
	Auth AuthConfig `json:"auth,omitempty"`
}

// AuthConfig configures how requests to an MCP server are authenticated.
type AuthConfig struct {
	// Type selects the mechanism. Empty means none;
	// "oauth_client_credentials" obtains bearer tokens via the OAuth 2.0
	// client_credentials grant.
	Type string `json:"type,omitempty"`

	// TokenURL is the OAuth token endpoint.
	TokenURL string `json:"token_url,omitempty"`

	ClientID     string   `json:"client_id,omitempty"`
	ClientSecret string   `json:"client_secret,omitempty"`
	Scopes       []string `json:"scopes,omitempty"`
}
