// Package anthropic implements provider.Provider for the Anthropic Messages
// API and compatible backends.
//
// The Messages dialect streams block-oriented SSE events: content_block_start
// announces a block and reveals its kind (text or tool_use, the latter with
// the call id and tool name up front), content_block_delta carries text_delta
// or input_json_delta fragments, and content_block_stop closes the block.
// The adapter forwards text fragments as they arrive, accumulates
// input_json_delta fragments per block index, and parses the accumulated
// arguments when the block closes, substituting an empty object when they do
// not form valid JSON. Blocks still open when the stream ends are finalized
// so a truncated upstream never swallows a tool call.
package anthropic
