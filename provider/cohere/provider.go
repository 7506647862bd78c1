package cohere

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
	"github.com/tidwall/gjson"
)

// DefaultBaseURL is used when the profile does not override the endpoint.
const DefaultBaseURL = "https://api.cohere.com"

// Provider speaks the Cohere v2 chat dialect.
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

// New returns a v2 chat adapter.
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

// Complete performs one round trip against /v2/chat.
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
	header.Set("content-type", "application/json")

	handle, err := p.transport.Send(ctx, wire.Spec(profile, http.MethodPost, base+"/v2/chat", header, body, req.Timeout))
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

	message := jv.Get("message")
	if !message.Exists() {
		return nil, &provider.DecodeError{Provider: "cohere", Payload: string(raw)}
	}

	acc := provider.NewAccumulator()
	acc.SetID(jv.Get("id").String())
	acc.SetRaw(jv)
	acc.SetRateLimit(transport.ParseRateLimit(handle.Header))

	for _, item := range message.Get("content").Array() {
		switch item.Get("type").String() {
		case "text":
			acc.AppendContent(item.Get("text").String())
		case "thinking":
			acc.AppendReasoning(item.Get("thinking").String())
		}
	}
	for _, call := range message.Get("tool_calls").Array() {
		args := call.Get("function.arguments").String()
		if args == "" {
			args = "{}"
		}
		acc.AddToolCall(call.Get("id").String(), call.Get("function.name").String(), args)
	}

	acc.SetFinishReason(mapFinishReason(jv.Get("finish_reason").String()))
	if u := jv.Get("usage"); u.Exists() {
		acc.SetUsage(usageFrom(u))
	}

	return acc.Finalize(false), nil
}

// parseStream walks the typed event feed. Tool calls open with
// tool-call-start carrying id and name, grow through tool-call-delta
// argument fragments keyed by item index, and close at tool-call-end.
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

		switch jv.Get("type").String() {
		case "message-start":
			acc.SetID(jv.Get("id").String())

		case "content-delta":
			delta := jv.Get("delta.message.content")
			if text := delta.Get("text").String(); text != "" {
				acc.AppendContent(text)
				if req.OnStream != nil {
					req.OnStream(text)
				}
			}
			if thinking := delta.Get("thinking").String(); thinking != "" {
				acc.AppendReasoning(thinking)
				if req.OnReasoning != nil {
					req.OnReasoning(thinking)
				}
			}

		case "tool-call-start":
			index := jv.Get("index").String()
			call := jv.Get("delta.message.tool_calls")
			acc.StartToolCall(index, call.Get("id").String(), call.Get("function.name").String())
			if frag := call.Get("function.arguments").String(); frag != "" {
				acc.AppendToolCallArgs(index, frag)
			}

		case "tool-call-delta":
			index := jv.Get("index").String()
			acc.AppendToolCallArgs(index, jv.Get("delta.message.tool_calls.function.arguments").String())

		case "tool-call-end":
			// the per-index fragment buffer is finalized by the accumulator

		case "message-end":
			delta := jv.Get("delta")
			if fr := delta.Get("finish_reason").String(); fr != "" {
				acc.SetFinishReason(mapFinishReason(fr))
			}
			if u := delta.Get("usage"); u.Exists() {
				acc.SetUsage(usageFrom(u))
			}
		}
	}

	return acc.Finalize(true), nil
}

// mapFinishReason normalizes the v2 finish_reason vocabulary.
func mapFinishReason(reason string) provider.FinishReason {
	switch reason {
	case "COMPLETE":
		return provider.FinishStop
	case "STOP_SEQUENCE":
		return provider.FinishStop
	case "MAX_TOKENS":
		return provider.FinishLength
	case "TOOL_CALL":
		return provider.FinishToolCalls
	case "ERROR":
		return provider.FinishError
	case "":
		return ""
	default:
		return provider.FinishOther
	}
}

func usageFrom(jv gjson.Result) provider.Usage {
	tokens := jv.Get("tokens")
	u := provider.Usage{
		PromptTokens:     int(tokens.Get("input_tokens").Int()),
		CompletionTokens: int(tokens.Get("output_tokens").Int()),
	}
	u.TotalTokens = u.PromptTokens + u.CompletionTokens
	return u
}
