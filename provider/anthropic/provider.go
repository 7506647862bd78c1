package anthropic

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
const DefaultBaseURL = "https://api.anthropic.com"

// apiVersion is the pinned anthropic-version header value.
const apiVersion = "2023-06-01"

// Provider speaks the Claude Messages API dialect.
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

// New returns a Messages API adapter.
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

// Complete performs one round trip against /v1/messages.
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
	header.Set("x-api-key", profile.Key())
	header.Set("anthropic-version", apiVersion)
	header.Set("content-type", "application/json")

	handle, err := p.transport.Send(ctx, wire.Spec(profile, http.MethodPost, base+"/v1/messages", header, body, req.Timeout))
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

	content := jv.Get("content")
	if !content.Exists() || !content.IsArray() {
		return nil, &provider.DecodeError{Provider: "anthropic", Payload: string(raw)}
	}

	acc := provider.NewAccumulator()
	acc.SetID(jv.Get("id").String())
	acc.SetModel(jv.Get("model").String())
	acc.SetRaw(jv)
	acc.SetRateLimit(transport.ParseRateLimit(handle.Header))

	for _, block := range content.Array() {
		switch block.Get("type").String() {
		case "text":
			acc.AppendContent(block.Get("text").String())
		case "thinking":
			acc.AppendReasoning(block.Get("thinking").String())
		case "tool_use":
			args := block.Get("input").Raw
			if args == "" {
				args = "{}"
			}
			acc.AddToolCall(block.Get("id").String(), block.Get("name").String(), args)
		}
	}

	acc.SetFinishReason(mapFinishReason(jv.Get("stop_reason").String()))
	acc.SetUsage(usageFrom(jv.Get("usage")))

	return acc.Finalize(false), nil
}

// parseStream walks the named-event grammar of the Messages API. Tool-use
// argument fragments arrive as input_json_delta events and are buffered per
// block index until content_block_stop.
func (p *Provider) parseStream(handle *transport.Handle, req provider.Request) (*provider.Response, error) {
	reader := sse.NewReader(handle.Body)
	acc := provider.NewAccumulator()
	acc.SetRateLimit(transport.ParseRateLimit(handle.Header))

	usage := provider.Usage{}

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
		case "message_start":
			msg := jv.Get("message")
			acc.SetID(msg.Get("id").String())
			acc.SetModel(msg.Get("model").String())
			if u := msg.Get("usage"); u.Exists() {
				usage = mergeUsage(usage, u)
				acc.SetUsage(usage)
			}

		case "content_block_start":
			index := jv.Get("index").String()
			block := jv.Get("content_block")
			if block.Get("type").String() == "tool_use" {
				acc.StartToolCall(index, block.Get("id").String(), block.Get("name").String())
			}

		case "content_block_delta":
			index := jv.Get("index").String()
			delta := jv.Get("delta")
			switch delta.Get("type").String() {
			case "text_delta":
				text := delta.Get("text").String()
				acc.AppendContent(text)
				if req.OnStream != nil && text != "" {
					req.OnStream(text)
				}
			case "input_json_delta":
				acc.AppendToolCallArgs(index, delta.Get("partial_json").String())
			case "thinking_delta":
				thinking := delta.Get("thinking").String()
				acc.AppendReasoning(thinking)
				if req.OnReasoning != nil && thinking != "" {
					req.OnReasoning(thinking)
				}
			}

		case "content_block_stop":
			// the per-index fragment buffer is finalized by the accumulator

		case "message_delta":
			if sr := jv.Get("delta.stop_reason"); sr.Exists() && sr.String() != "" {
				acc.SetFinishReason(mapFinishReason(sr.String()))
			}
			if u := jv.Get("usage"); u.Exists() {
				usage = mergeUsage(usage, u)
				acc.SetUsage(usage)
			}

		case "message_stop":
			// terminal; remaining bytes are ignored by the reader

		case "error":
			resp := acc.Finalize(true)
			resp.FinishReason = provider.FinishError
			return resp, &provider.DecodeError{
				Provider: "anthropic",
				Payload:  event.Data,
			}
		}
	}

	return acc.Finalize(true), nil
}

// mapFinishReason normalizes the Messages API stop_reason.
func mapFinishReason(reason string) provider.FinishReason {
	switch reason {
	case "end_turn":
		return provider.FinishEndTurn
	case "stop_sequence":
		return provider.FinishStop
	case "max_tokens":
		return provider.FinishLength
	case "tool_use":
		return provider.FinishToolCalls
	case "refusal":
		return provider.FinishContentFilter
	case "":
		return ""
	default:
		return provider.FinishOther
	}
}

func usageFrom(jv gjson.Result) provider.Usage {
	return mergeUsage(provider.Usage{}, jv)
}

// mergeUsage overlays the fields present in jv; the Messages API splits
// input counts (message_start) from output counts (message_delta).
func mergeUsage(u provider.Usage, jv gjson.Result) provider.Usage {
	if v := jv.Get("input_tokens"); v.Exists() {
		u.PromptTokens = int(v.Int())
	}
	if v := jv.Get("output_tokens"); v.Exists() {
		u.CompletionTokens = int(v.Int())
	}
	u.TotalTokens = u.PromptTokens + u.CompletionTokens
	if v := jv.Get("cache_read_input_tokens"); v.Exists() {
		u.CacheReadTokens = swag.Int(int(v.Int()))
	}
	if v := jv.Get("cache_creation_input_tokens"); v.Exists() {
		u.CacheWriteTokens = swag.Int(int(v.Int()))
	}
	return u
}
