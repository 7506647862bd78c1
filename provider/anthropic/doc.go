// Package anthropic implements the adapter for the Claude Messages API.
//
// The adapter owns the /v1/messages wire contract: x-api-key auth with an
// anthropic-version header, named SSE events (message_start,
// content_block_start, content_block_delta, content_block_stop,
// message_delta, message_stop), tool-use argument fragments delivered as
// input_json_delta events keyed by block index, and thinking blocks for
// extended reasoning.
package anthropic
