// Package mcp exposes tools served by MCP servers as a tool source.
//
// Each configured server is connected once at startup and its tools are
// listed and merged into a single [Source]. A server that cannot be
// reached is logged and skipped so the remaining servers (and all other
// tool sources) stay available. Tool calls are routed to the server
// that listed the tool; call failures come back as error results so the
// model can react to them.
//
// Servers speak either the streamable-http or the SSE transport of the
// MCP spec, optionally authenticated with static headers or an OAuth 2.0
// client_credentials grant.
package mcp
