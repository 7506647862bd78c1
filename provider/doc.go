// Package provider defines the shared contract between the façade and the
// per-vendor adapters: the unified request and response shapes, the profile
// describing one configured endpoint, the model descriptor, the streaming
// accumulator, and the error taxonomy.
//
// Adapters live in subpackages (openai, anthropic, gemini, cohere, gateway,
// responses). Each one owns exactly one vendor's HTTP schema and SSE grammar
// and translates it to and from the types in this package. Nothing here
// performs I/O.
//
// # Requests
//
// Request is treated as an immutable value: adapters never mutate the request
// they receive; the normalizer in provider/caps produces filtered copies.
// Optional generation parameters are pointers so that "unset" and "zero" stay
// distinguishable. Provider-specific fields that have no named equivalent
// travel in the Extra bag and are transmitted as top-level wire fields.
//
// # Responses
//
// During streaming the response is built up inside an Accumulator, which is
// mutated by exactly one goroutine, then frozen into a Response when the
// stream terminates. A stream that dies mid-flight still yields whatever the
// accumulator had gathered, so callers can inspect partial progress.
package provider
