package openai

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"github.com/casualjim/modelbridge/internal/sse"
	"github.com/casualjim/modelbridge/internal/transport"
	"github.com/casualjim/modelbridge/internal/wire"
	"github.com/casualjim/modelbridge/provider"
	"github.com/fogfish/opts"
	"github.com/go-openapi/swag"
	"github.com/tidwall/gjson"
)

// DefaultBaseURL is used when the profile does not override the endpoint.
const DefaultBaseURL = "https://api.openai.com/v1"

// Provider speaks the OpenAI-compatible chat-completions dialect.
type Provider struct {
	transport *transport.Client
	log       *slog.Logger
}

var (
	// WithTransport substitutes the transport client.
	WithTransport = opts.ForName[Provider, *transport.Client]("transport")
	// WithLogger substitutes the logger.
	WithLogger = opts.ForName[Provider, *slog.Logger]("log")
)

// New returns a chat-completions adapter.
func New(options ...opts.Option[Provider]) (*Provider, error) {
	p := &Provider{
		transport: transport.New(),
		log:       slog.Default(),
	}
	if err := opts.Apply(p, options); err != nil {
		return nil, err
	}
	return p, nil
}

// Complete performs one round trip against /chat/completions.
func (p *Provider) Complete(ctx context.Context, req provider.Request, profile provider.Profile) (*provider.Response, error) {
	body, err := buildBody(req)
	if err != nil {
		return nil, err
	}

	base := strings.TrimRight(profile.BaseURL, "/")
	if base == "" {
		base = DefaultBaseURL
	}

	header := make(http.Header)
	header.Set("Authorization", "Bearer "+profile.Key())
	header.Set("Content-Type", "application/json")
	if req.Stream {
		header.Set("Accept", "text/event-stream")
	}

	handle, err := p.transport.Send(ctx, wire.Spec(profile, http.MethodPost, base+"/chat/completions", header, body, req.Timeout))
	if err != nil {
		return nil, err
	}
	defer handle.Close()

	if req.Stream {
		return p.parseStream(handle, req)
	}
	return p.parseFinal(handle)
}

// parseFinal extracts the unified response from a non-streaming body.
func (p *Provider) parseFinal(handle *transport.Handle) (*provider.Response, error) {
	raw, err := io.ReadAll(handle.Body)
	if err != nil {
		return nil, err
	}
	jv := gjson.ParseBytes(raw)

	choice := jv.Get("choices.0")
	if !choice.Exists() {
		return nil, &provider.DecodeError{Provider: "openai", Payload: string(raw)}
	}

	acc := provider.NewAccumulator()
	acc.SetID(jv.Get("id").String())
	acc.SetModel(jv.Get("model").String())
	acc.SetRaw(jv)
	acc.SetRateLimit(transport.ParseRateLimit(handle.Header))

	msg := choice.Get("message")
	acc.AppendContent(msg.Get("content").String())
	acc.AppendReasoning(msg.Get("reasoning_content").String())

	for _, tc := range msg.Get("tool_calls").Array() {
		acc.AddToolCall(
			tc.Get("id").String(),
			tc.Get("function.name").String(),
			tc.Get("function.arguments").String(),
		)
	}

	for _, ann := range msg.Get("annotations").Array() {
		acc.AddAnnotation(annotationFrom(ann))
	}

	acc.SetFinishReason(mapFinishReason(choice.Get("finish_reason").String()))
	if usage := jv.Get("usage"); usage.Exists() {
		acc.SetUsage(usageFrom(usage))
	}

	return acc.Finalize(false), nil
}

// parseStream consumes the SSE stream, mutating one accumulator in place.
// Malformed interleaved events are skipped; a mid-flight failure still
// surfaces whatever was accumulated so far on the returned response.
func (p *Provider) parseStream(handle *transport.Handle, req provider.Request) (*provider.Response, error) {
	reader := sse.NewReader(handle.Body)
	acc := provider.NewAccumulator()
	acc.SetRateLimit(transport.ParseRateLimit(handle.Header))

	for {
		event, err := reader.Next()
		if err == io.EOF {
			break
		}
		if err != nil {
			resp := acc.Finalize(true)
			resp.FinishReason = provider.FinishError
			return resp, err
		}
		if !gjson.Valid(event.Data) {
			p.log.Debug("skipping malformed stream event", slog.String("payload", event.Data))
			continue
		}
		applyChunk(gjson.Parse(event.Data), acc, req)
	}

	return acc.Finalize(true), nil
}

// applyChunk folds one chat-completions chunk into the accumulator.
func applyChunk(jv gjson.Result, acc *provider.Accumulator, req provider.Request) {
	acc.SetID(jv.Get("id").String())
	acc.SetModel(jv.Get("model").String())

	// The usage-only final chunk has an empty choices array.
	if usage := jv.Get("usage"); usage.Exists() && usage.IsObject() {
		acc.SetUsage(usageFrom(usage))
	}

	choice := jv.Get("choices.0")
	if !choice.Exists() {
		return
	}

	delta := choice.Get("delta")
	if text := delta.Get("content"); text.Exists() && text.String() != "" {
		acc.AppendContent(text.String())
		if req.OnStream != nil {
			req.OnStream(text.String())
		}
	}
	reasoning := delta.Get("reasoning_content")
	if !reasoning.Exists() {
		reasoning = delta.Get("reasoning")
	}
	if reasoning.Exists() && reasoning.String() != "" {
		acc.AppendReasoning(reasoning.String())
		if req.OnReasoning != nil {
			req.OnReasoning(reasoning.String())
		}
	}

	// Tool-call fragments are keyed by their stream index; argument text is
	// concatenated in arrival order.
	for _, tc := range delta.Get("tool_calls").Array() {
		key := strconv.FormatInt(tc.Get("index").Int(), 10)
		acc.StartToolCall(key, tc.Get("id").String(), tc.Get("function.name").String())
		if frag := tc.Get("function.arguments"); frag.Exists() && frag.String() != "" {
			acc.AppendToolCallArgs(key, frag.String())
		}
	}

	for _, ann := range delta.Get("annotations").Array() {
		acc.AddAnnotation(annotationFrom(ann))
	}

	if fr := choice.Get("finish_reason"); fr.Exists() && fr.String() != "" {
		acc.SetFinishReason(mapFinishReason(fr.String()))
	}
}

// mapFinishReason normalizes the chat-completions terminal status.
func mapFinishReason(reason string) provider.FinishReason {
	switch reason {
	case "stop":
		return provider.FinishStop
	case "length", "max_tokens":
		return provider.FinishLength
	case "content_filter":
		return provider.FinishContentFilter
	case "tool_calls", "function_call":
		return provider.FinishToolCalls
	case "":
		return ""
	default:
		return provider.FinishOther
	}
}

func usageFrom(jv gjson.Result) provider.Usage {
	u := provider.Usage{
		PromptTokens:     int(jv.Get("prompt_tokens").Int()),
		CompletionTokens: int(jv.Get("completion_tokens").Int()),
		TotalTokens:      int(jv.Get("total_tokens").Int()),
	}
	if v := jv.Get("prompt_tokens_details.cached_tokens"); v.Exists() {
		u.CacheReadTokens = swag.Int(int(v.Int()))
	}
	if v := jv.Get("completion_tokens_details.reasoning_tokens"); v.Exists() {
		u.ReasoningTokens = swag.Int(int(v.Int()))
	}
	if v := jv.Get("completion_tokens_details.audio_tokens"); v.Exists() {
		u.AudioTokens = swag.Int(int(v.Int()))
	}
	return u
}

func annotationFrom(jv gjson.Result) provider.Annotation {
	cite := jv.Get("url_citation")
	return provider.Annotation{
		Type:       jv.Get("type").String(),
		URL:        cite.Get("url").String(),
		Title:      cite.Get("title").String(),
		StartIndex: int(cite.Get("start_index").Int()),
		EndIndex:   int(cite.Get("end_index").Int()),
	}
}
