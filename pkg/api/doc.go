// Package api defines the core protocol types for the dirigent
// orchestration engine.
//
// This package provides all data types shared between the engine, the
// provider adapters, and the transport layer: conversation messages and
// their content blocks, tool definitions, the progress-event stream
// delivered to callers, error types, exchange state validation, and ID
// generation.
//
// The package has zero external dependencies (Go standard library only)
// and performs no I/O.
//
// Core types:
//   - [Message]: One conversation message, an ordered sequence of content blocks
//   - [ContentBlock]: Tagged union of text, tool_call, and tool_result blocks
//   - [ToolDefinition]: A tool surfaced to the model (collaborator, disclosure, or MCP backed)
//   - [ChatRequest]: One chat exchange submitted by a caller
//   - [Event]: One record of the normalized progress-event stream
//   - [APIError]: Structured error with type, code, param, and message
package api
