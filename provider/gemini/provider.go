package gemini

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"strings"

	"github.com/casualjim/modelbridge/internal/sse"
	"github.com/casualjim/modelbridge/internal/transport"
	"github.com/casualjim/modelbridge/internal/wire"
	"github.com/casualjim/modelbridge/pkg/uuidx"
	"github.com/casualjim/modelbridge/provider"
	"github.com/fogfish/opts"
	"github.com/go-openapi/swag"
	"github.com/tidwall/gjson"
)

// DefaultBaseURL is used when the profile does not override the endpoint.
const DefaultBaseURL = "https://generativelanguage.googleapis.com"

// Provider speaks the Gemini generateContent dialect.
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

// New returns a generateContent adapter.
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

// Complete performs one round trip against the model's generateContent or
// streamGenerateContent endpoint.
func (p *Provider) Complete(ctx context.Context, req provider.Request, profile provider.Profile) (*provider.Response, error) {
	body, err := buildBody(req)
	if err != nil {
		return nil, err
	}

	base := strings.TrimRight(profile.BaseURL, "/")
	if base == "" {
		base = DefaultBaseURL
	}

	// Model names arrive with or without the models/ prefix.
	model := strings.TrimPrefix(req.Model, "models/")
	url := base + "/v1beta/models/" + model + ":generateContent"
	if req.Stream {
		url = base + "/v1beta/models/" + model + ":streamGenerateContent?alt=sse"
	}

	header := make(http.Header)
	header.Set("x-goog-api-key", profile.Key())
	header.Set("content-type", "application/json")

	handle, err := p.transport.Send(ctx, wire.Spec(profile, http.MethodPost, url, header, body, req.Timeout))
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

	candidate := jv.Get("candidates.0")
	if !candidate.Exists() {
		return nil, &provider.DecodeError{Provider: "gemini", Payload: string(raw)}
	}

	acc := provider.NewAccumulator()
	acc.SetID(jv.Get("responseId").String())
	acc.SetModel(jv.Get("modelVersion").String())
	acc.SetRaw(jv)
	acc.SetRateLimit(transport.ParseRateLimit(handle.Header))

	applyParts(acc, candidate, nil, nil)

	acc.SetFinishReason(mapFinishReason(candidate.Get("finishReason").String()))
	if u := jv.Get("usageMetadata"); u.Exists() {
		acc.SetUsage(usageFrom(u))
	}

	return acc.Finalize(false), nil
}

// parseStream walks the streamGenerateContent SSE feed. Every chunk is a full
// GenerateContentResponse; usageMetadata repeats per chunk with cumulative
// counts, so the last one wins.
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

		if id := jv.Get("responseId").String(); id != "" {
			acc.SetID(id)
		}
		if model := jv.Get("modelVersion").String(); model != "" {
			acc.SetModel(model)
		}

		if candidate := jv.Get("candidates.0"); candidate.Exists() {
			applyParts(acc, candidate, req.OnStream, req.OnReasoning)
			if fr := candidate.Get("finishReason").String(); fr != "" {
				acc.SetFinishReason(mapFinishReason(fr))
			}
		}
		if u := jv.Get("usageMetadata"); u.Exists() {
			acc.SetUsage(usageFrom(u))
		}
	}

	return acc.Finalize(true), nil
}

// applyParts folds one candidate's parts into the accumulator. Gemini carries
// no call ids on functionCall parts, so each call gets a synthesized one.
func applyParts(acc *provider.Accumulator, candidate gjson.Result, onStream, onReasoning func(string)) {
	for _, part := range candidate.Get("content.parts").Array() {
		if fc := part.Get("functionCall"); fc.Exists() {
			args := fc.Get("args").Raw
			if args == "" {
				args = "{}"
			}
			acc.AddToolCall("call_"+uuidx.NewString(), fc.Get("name").String(), args)
			continue
		}
		text := part.Get("text").String()
		if text == "" {
			continue
		}
		if part.Get("thought").Bool() {
			acc.AppendReasoning(text)
			if onReasoning != nil {
				onReasoning(text)
			}
			continue
		}
		acc.AppendContent(text)
		if onStream != nil {
			onStream(text)
		}
	}
}

// mapFinishReason normalizes the UPPER_CASE finishReason vocabulary.
func mapFinishReason(reason string) provider.FinishReason {
	switch reason {
	case "STOP":
		return provider.FinishStop
	case "MAX_TOKENS":
		return provider.FinishLength
	case "SAFETY", "RECITATION", "BLOCKLIST", "PROHIBITED_CONTENT", "SPII":
		return provider.FinishContentFilter
	case "":
		return ""
	default:
		return provider.FinishOther
	}
}

func usageFrom(jv gjson.Result) provider.Usage {
	u := provider.Usage{
		PromptTokens:     int(jv.Get("promptTokenCount").Int()),
		CompletionTokens: int(jv.Get("candidatesTokenCount").Int()),
		TotalTokens:      int(jv.Get("totalTokenCount").Int()),
	}
	if v := jv.Get("thoughtsTokenCount"); v.Exists() {
		u.ReasoningTokens = swag.Int(int(v.Int()))
	}
	if v := jv.Get("cachedContentTokenCount"); v.Exists() {
		u.CacheReadTokens = swag.Int(int(v.Int()))
	}
	return u
}
