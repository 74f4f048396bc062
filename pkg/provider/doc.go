// Package provider defines the protocol-agnostic streaming contract for
// upstream LLM backends. Each adapter implementation handles its own wire
// protocol internally: the anthropic adapter consumes the block-oriented
// SSE format (per-block start/delta/stop events), the openaicompat
// adapter consumes the chunk-oriented SSE format (a single repeating
// chunk shape with indexed tool-call fragments).
//
// The interface operates on dirigent's own types ([Request], [Event],
// api.Message, api.ToolDefinition), keeping backend protocol details
// invisible to the engine. Adapters accumulate partial tool-call input
// internally and surface only completed content blocks; incremental text
// is the single thing forwarded as it arrives.
package provider
