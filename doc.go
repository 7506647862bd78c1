// Package modelbridge normalizes one unified chat/completion request onto the
// wire formats of heterogeneous LLM providers and folds their responses,
// streaming or not, back into one unified shape.
//
// The entry point is the Bridge: it classifies the target model's family,
// filters the request through the capability matrix, routes it to the adapter
// for the profile's wire dialect, and returns the finished response with
// normalized finish reasons, defragmented tool calls and usage accounting.
//
// Per-vendor wire contracts live in the provider subpackages; the model
// catalog lives in provider/models.
package modelbridge
