package responses

import (
	"context"
	"io"
	"log/slog"
	"net/http"
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

// Provider speaks the Responses API dialect.
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

// New returns a Responses API adapter.
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

// Complete performs one round trip against /responses.
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

	handle, err := p.transport.Send(ctx, wire.Spec(profile, http.MethodPost, base+"/responses", header, body, req.Timeout))
	if err != nil {
		return nil, err
	}
	defer handle.Close()

	if req.Stream {
		return p.parseStream(handle, req)
	}
	return p.parseFinal(handle)
}

func (p *Provider) parseFinal(handle *transport.Handle) (*provider.Response, error) {
	raw, err := io.ReadAll(handle.Body)
	if err != nil {
		return nil, err
	}
	jv := gjson.ParseBytes(raw)

	output := jv.Get("output")
	if !output.Exists() || !output.IsArray() {
		return nil, &provider.DecodeError{Provider: "responses", Payload: string(raw)}
	}

	acc := provider.NewAccumulator()
	acc.SetID(jv.Get("id").String())
	acc.SetModel(jv.Get("model").String())
	acc.SetRaw(jv)
	acc.SetRateLimit(transport.ParseRateLimit(handle.Header))

	for _, item := range output.Array() {
		applyOutputItem(acc, item)
	}

	acc.SetFinishReason(mapStatus(jv.Get("status").String(), jv.Get("incomplete_details.reason").String()))
	if u := jv.Get("usage"); u.Exists() {
		acc.SetUsage(usageFrom(u))
	}

	return acc.Finalize(false), nil
}

// parseStream walks the typed event grammar. Argument fragments arrive as
// response.function_call_arguments.delta keyed by item_id; the item's call_id
// and name were announced earlier by response.output_item.added.
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
		jv := gjson.Parse(event.Data)

		name := event.Name
		if name == "" {
			name = jv.Get("type").String()
		}

		switch name {
		case "response.created":
			resp := jv.Get("response")
			acc.SetID(resp.Get("id").String())
			acc.SetModel(resp.Get("model").String())

		case "response.output_item.added":
			item := jv.Get("item")
			if item.Get("type").String() == "function_call" {
				acc.StartToolCall(
					jv.Get("item.id").String(),
					item.Get("call_id").String(),
					item.Get("name").String(),
				)
			}

		case "response.output_text.delta":
			text := jv.Get("delta").String()
			acc.AppendContent(text)
			if req.OnStream != nil && text != "" {
				req.OnStream(text)
			}

		case "response.reasoning_summary_text.delta":
			text := jv.Get("delta").String()
			acc.AppendReasoning(text)
			if req.OnReasoning != nil && text != "" {
				req.OnReasoning(text)
			}

		case "response.function_call_arguments.delta":
			acc.AppendToolCallArgs(jv.Get("item_id").String(), jv.Get("delta").String())

		case "response.output_text.annotation.added":
			acc.AddAnnotation(annotationFrom(jv.Get("annotation")))

		case "response.output_item.done":
			// arguments for this item are complete; the buffer holds them all

		case "response.completed":
			resp := jv.Get("response")
			acc.SetFinishReason(mapStatus(resp.Get("status").String(), resp.Get("incomplete_details.reason").String()))
			if u := resp.Get("usage"); u.Exists() {
				acc.SetUsage(usageFrom(u))
			}

		case "response.incomplete", "response.failed":
			resp := jv.Get("response")
			acc.SetFinishReason(mapStatus(resp.Get("status").String(), resp.Get("incomplete_details.reason").String()))
			if u := resp.Get("usage"); u.Exists() {
				acc.SetUsage(usageFrom(u))
			}

		case "error":
			resp := acc.Finalize(true)
			resp.FinishReason = provider.FinishError
			return resp, &provider.DecodeError{Provider: "responses", Payload: event.Data}
		}
	}

	return acc.Finalize(true), nil
}

// applyOutputItem folds one output item of a non-streaming response.
func applyOutputItem(acc *provider.Accumulator, item gjson.Result) {
	switch item.Get("type").String() {
	case "message":
		for _, content := range item.Get("content").Array() {
			if content.Get("type").String() != "output_text" {
				continue
			}
			acc.AppendContent(content.Get("text").String())
			for _, ann := range content.Get("annotations").Array() {
				acc.AddAnnotation(annotationFrom(ann))
			}
		}
	case "reasoning":
		for _, summary := range item.Get("summary").Array() {
			acc.AppendReasoning(summary.Get("text").String())
		}
	case "function_call":
		args := item.Get("arguments").String()
		if args == "" {
			args = "{}"
		}
		acc.AddToolCall(item.Get("call_id").String(), item.Get("name").String(), args)
	}
}

// mapStatus normalizes the response lifecycle status. Tool calls are not a
// status on this API; the accumulator flips the finish reason when calls are
// present.
func mapStatus(status, incompleteReason string) provider.FinishReason {
	switch status {
	case "completed":
		return provider.FinishStop
	case "incomplete":
		switch incompleteReason {
		case "max_output_tokens", "max_tokens":
			return provider.FinishLength
		case "content_filter":
			return provider.FinishContentFilter
		default:
			return provider.FinishOther
		}
	case "failed":
		return provider.FinishError
	case "":
		return ""
	default:
		return provider.FinishOther
	}
}

func usageFrom(jv gjson.Result) provider.Usage {
	u := provider.Usage{
		PromptTokens:     int(jv.Get("input_tokens").Int()),
		CompletionTokens: int(jv.Get("output_tokens").Int()),
		TotalTokens:      int(jv.Get("total_tokens").Int()),
	}
	if v := jv.Get("input_tokens_details.cached_tokens"); v.Exists() {
		u.CacheReadTokens = swag.Int(int(v.Int()))
	}
	if v := jv.Get("output_tokens_details.reasoning_tokens"); v.Exists() {
		u.ReasoningTokens = swag.Int(int(v.Int()))
	}
	return u
}

func annotationFrom(jv gjson.Result) provider.Annotation {
	return provider.Annotation{
		Type:       jv.Get("type").String(),
		URL:        jv.Get("url").String(),
		Title:      jv.Get("title").String(),
		StartIndex: int(jv.Get("start_index").Int()),
		EndIndex:   int(jv.Get("end_index").Int()),
	}
}
