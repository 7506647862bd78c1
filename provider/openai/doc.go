// Package openai implements the adapter for OpenAI-compatible
// chat-completions endpoints: api.openai.com itself and the many gateways
// and local servers that mimic its schema.
//
// The adapter owns the /chat/completions wire contract: bearer-token auth,
// "data:"-prefixed SSE lines terminated by a literal [DONE] sentinel,
// index-keyed tool-call fragments in delta events, and the optional
// reasoning_content extension several compatible servers emit for thinking
// models.
package openai
