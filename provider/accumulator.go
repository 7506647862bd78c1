package provider

import (
	"strings"
	"time"

	"github.com/go-openapi/strfmt"
	"github.com/tidwall/gjson"
)

// Accumulator assembles a Response while a stream is being parsed. It is
// mutated by exactly one goroutine; adapters thread it through their stream
// loop and call Finalize when the stream terminates.
//
// Tool-call fragments are buffered per key (stream index or item id) and
// concatenated in arrival order, so the finalized argument text reproduces
// the provider's output byte for byte.
type Accumulator struct {
	id        string
	model     string
	content   strings.Builder
	reasoning strings.Builder

	calls     map[string]*partialCall
	callOrder []string

	annotations []Annotation
	usage       Usage
	hasUsage    bool
	finish      FinishReason
	rateLimit   *RateLimit
	raw         gjson.Result
}

type partialCall struct {
	id   string
	name string
	args strings.Builder
}

// NewAccumulator returns an empty accumulator.
func NewAccumulator() *Accumulator {
	return &Accumulator{calls: make(map[string]*partialCall)}
}

// SetID records the provider-assigned response id.
func (a *Accumulator) SetID(id string) {
	if id != "" {
		a.id = id
	}
}

// SetModel records the model that produced the response.
func (a *Accumulator) SetModel(model string) {
	if model != "" {
		a.model = model
	}
}

// AppendContent appends an answer-text delta.
func (a *Accumulator) AppendContent(delta string) {
	a.content.WriteString(delta)
}

// AppendReasoning appends a reasoning-text delta.
func (a *Accumulator) AppendReasoning(delta string) {
	a.reasoning.WriteString(delta)
}

// Content returns the answer text gathered so far.
func (a *Accumulator) Content() string { return a.content.String() }

// StartToolCall opens a fragment buffer for the given stream key. A repeated
// start for the same key updates id and name but keeps buffered fragments.
func (a *Accumulator) StartToolCall(key, id, name string) {
	call, ok := a.calls[key]
	if !ok {
		call = &partialCall{}
		a.calls[key] = call
		a.callOrder = append(a.callOrder, key)
	}
	if id != "" {
		call.id = id
	}
	if name != "" {
		call.name = name
	}
}

// AppendToolCallArgs appends one argument fragment to the call buffered under
// key, opening the buffer if the provider skipped the start event.
func (a *Accumulator) AppendToolCallArgs(key, fragment string) {
	call, ok := a.calls[key]
	if !ok {
		call = &partialCall{}
		a.calls[key] = call
		a.callOrder = append(a.callOrder, key)
	}
	call.args.WriteString(fragment)
}

// AddToolCall records an already-complete call (providers that never
// fragment, and non-streaming parses).
func (a *Accumulator) AddToolCall(id, name, arguments string) {
	key := id
	if key == "" {
		key = name
	}
	a.StartToolCall(key, id, name)
	a.calls[key].args.Reset()
	a.calls[key].args.WriteString(arguments)
}

// AddAnnotation records one citation.
func (a *Accumulator) AddAnnotation(ann Annotation) {
	a.annotations = append(a.annotations, ann)
}

// SetUsage overwrites the usage counts. Providers emit usage in deltas and
// again in terminal payloads; the last write wins.
func (a *Accumulator) SetUsage(u Usage) {
	a.usage = u
	a.hasUsage = true
}

// MergeUsage overwrites only the fields present in u, for providers that
// split prompt and completion counts across separate events.
func (a *Accumulator) MergeUsage(u Usage) {
	if u.PromptTokens > 0 {
		a.usage.PromptTokens = u.PromptTokens
	}
	if u.CompletionTokens > 0 {
		a.usage.CompletionTokens = u.CompletionTokens
	}
	if u.TotalTokens > 0 {
		a.usage.TotalTokens = u.TotalTokens
	}
	if u.CacheReadTokens != nil {
		a.usage.CacheReadTokens = u.CacheReadTokens
	}
	if u.CacheWriteTokens != nil {
		a.usage.CacheWriteTokens = u.CacheWriteTokens
	}
	if u.ReasoningTokens != nil {
		a.usage.ReasoningTokens = u.ReasoningTokens
	}
	if u.AudioTokens != nil {
		a.usage.AudioTokens = u.AudioTokens
	}
	a.hasUsage = true
}

// SetFinishReason records the normalized finish reason.
func (a *Accumulator) SetFinishReason(fr FinishReason) {
	if fr != "" {
		a.finish = fr
	}
}

// FinishReason returns the finish reason recorded so far.
func (a *Accumulator) FinishReason() FinishReason { return a.finish }

// SetRateLimit attaches rate-limit telemetry.
func (a *Accumulator) SetRateLimit(rl *RateLimit) { a.rateLimit = rl }

// SetRaw retains the terminal payload for diagnostics.
func (a *Accumulator) SetRaw(raw gjson.Result) { a.raw = raw }

// Finalize freezes the accumulated state into a Response. The accumulator
// must not be reused afterwards.
func (a *Accumulator) Finalize(stream bool) *Response {
	resp := &Response{
		ID:               a.id,
		Model:            a.model,
		Content:          a.content.String(),
		ReasoningContent: a.reasoning.String(),
		Annotations:      a.annotations,
		FinishReason:     a.finish,
		IsStream:         stream,
		Timestamp:        strfmt.DateTime(time.Now()),
		RateLimit:        a.rateLimit,
		Raw:              a.raw,
	}
	if a.hasUsage {
		resp.Usage = a.usage
		if resp.Usage.TotalTokens == 0 {
			resp.Usage.TotalTokens = resp.Usage.PromptTokens + resp.Usage.CompletionTokens
		}
	}
	for _, key := range a.callOrder {
		call := a.calls[key]
		resp.ToolCalls = append(resp.ToolCalls, ToolCall{
			ID:        call.id,
			Name:      call.name,
			Arguments: call.args.String(),
		})
	}
	// Some providers report a plain stop even when the turn produced calls.
	if len(resp.ToolCalls) > 0 && (resp.FinishReason == "" || resp.FinishReason == FinishStop) {
		resp.FinishReason = FinishToolCalls
	}
	return resp
}
