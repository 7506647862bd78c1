// Package cohere implements the adapter for the Cohere v2 chat API.
//
// The adapter owns the /v2/chat wire contract: Bearer auth, assistant
// messages with content item lists and a tool_plan, typed stream events
// (message-start, content-delta, tool-call-start, tool-call-delta,
// tool-call-end, message-end), and the COMPLETE/MAX_TOKENS/TOOL_CALL
// finish-reason vocabulary.
package cohere
