// Package responses implements the adapter for the OpenAI Responses API.
//
// The adapter owns the /v1/responses wire contract: item-based input with
// function_call and function_call_output items, flat tool declarations,
// typed SSE event names (response.output_text.delta,
// response.function_call_arguments.delta, response.output_item.added,
// response.output_item.done, response.completed), reasoning summaries, and
// annotation events for citations.
package responses
