// Package openaicompat implements provider.Provider for OpenAI-compatible
// Chat Completions backends (OpenAI, vLLM, LiteLLM, llama.cpp server, and
// anything else speaking the chat.completion.chunk SSE dialect).
//
// The chunk dialect delivers assistant output incrementally: text arrives as
// delta.content fragments, tool calls arrive as delta.tool_calls entries
// keyed by a per-response index, with the call id and function name on the
// first fragment and the JSON arguments split across subsequent fragments.
// The adapter forwards text fragments as they arrive and buffers tool-call
// fragments internally, concatenating arguments per index. Buffered calls
// are surfaced as completed blocks when a finish_reason arrives, or, when
// the backend closes the stream without one, on EOF. Arguments that do not
// parse as JSON are replaced with an empty object rather than failing the
// stream.
package openaicompat
