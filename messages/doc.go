// Package messages defines the provider-agnostic message and content model
// shared by every adapter.
//
// A conversation is an ordered list of Message values. Each message carries a
// role (system, user, assistant or tool) and content that is either a plain
// string or an ordered list of typed content parts: text, images, audio,
// video, documents, tool invocations and tool results. Part ordering within a
// message is preserved end-to-end; adapters must serialize parts in the order
// they appear here and parsers must append parts in arrival order.
//
// Tool results reference the id of a prior tool invocation. Validate reports
// messages that violate that invariant before any bytes hit the wire.
package messages
