package models

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"strings"

	"github.com/casualjim/modelbridge/internal/transport"
	"github.com/casualjim/modelbridge/internal/wire"
	"github.com/casualjim/modelbridge/provider"
	"github.com/fogfish/opts"
	"github.com/tidwall/gjson"
)

// Fetcher lists the models a profile's endpoint exposes.
type Fetcher struct {
	transport *transport.Client
	log       *slog.Logger
	rules     []Rule
}

var (
	// WithTransport substitutes the transport client.
	WithTransport = opts.ForName[Fetcher, *transport.Client]("transport")
	// WithLogger substitutes the logger.
	WithLogger = opts.ForName[Fetcher, *slog.Logger]("log")
	// WithRules installs the metadata rule set applied after each fetch.
	WithRules = opts.ForName[Fetcher, []Rule]("rules")
)

// NewFetcher returns a catalog fetcher.
func NewFetcher(options ...opts.Option[Fetcher]) (*Fetcher, error) {
	f := &Fetcher{
		transport: transport.New(),
		log:       slog.Default(),
	}
	if err := opts.Apply(f, options); err != nil {
		return nil, err
	}
	return f, nil
}

// Fetch issues one listing GET for the profile's dialect and returns fresh
// descriptors, enriched by the metadata rules.
func (f *Fetcher) Fetch(ctx context.Context, profile provider.Profile) ([]provider.Model, error) {
	url, header := listingRequest(profile)

	handle, err := f.transport.Send(ctx, wire.Spec(profile, http.MethodGet, url, header, nil, 0))
	if err != nil {
		return nil, err
	}
	defer handle.Close()

	raw, err := io.ReadAll(handle.Body)
	if err != nil {
		return nil, err
	}
	jv := gjson.ParseBytes(raw)

	var descriptors []provider.Model
	switch profile.Type {
	case provider.TypeGemini:
		descriptors = parseGeminiListing(jv)
	case provider.TypeCohere:
		descriptors = parseCohereListing(jv)
	default:
		descriptors = parseDataListing(jv, profile.Type)
	}
	if descriptors == nil {
		return nil, &provider.DecodeError{Provider: string(profile.Type), Payload: string(raw)}
	}

	Apply(f.rules, descriptors)
	f.log.Debug("fetched model listing",
		slog.String("profile", profile.Name),
		slog.Int("models", len(descriptors)),
	)
	return descriptors, nil
}

// listingRequest resolves the listing URL and auth headers per dialect.
func listingRequest(profile provider.Profile) (string, http.Header) {
	base := strings.TrimRight(profile.BaseURL, "/")
	header := make(http.Header)

	switch profile.Type {
	case provider.TypeAnthropic:
		if base == "" {
			base = "https://api.anthropic.com"
		}
		header.Set("x-api-key", profile.Key())
		header.Set("anthropic-version", "2023-06-01")
		return base + "/v1/models", header

	case provider.TypeGemini:
		if base == "" {
			base = "https://generativelanguage.googleapis.com"
		}
		header.Set("x-goog-api-key", profile.Key())
		return base + "/v1beta/models", header

	case provider.TypeCohere:
		if base == "" {
			base = "https://api.cohere.com"
		}
		header.Set("Authorization", "Bearer "+profile.Key())
		return base + "/v1/models", header

	default:
		// OpenAI-compatible endpoints, the Responses API and gateways share
		// the /models listing shape.
		if base == "" {
			base = "https://api.openai.com/v1"
		}
		header.Set("Authorization", "Bearer "+profile.Key())
		return base + "/models", header
	}
}

// parseDataListing handles the {"data":[{"id":…}]} family. Anthropic adds a
// display_name per entry.
func parseDataListing(jv gjson.Result, ptype provider.Type) []provider.Model {
	data := jv.Get("data")
	if !data.Exists() || !data.IsArray() {
		return nil
	}
	descriptors := make([]provider.Model, 0, len(data.Array()))
	for _, entry := range data.Array() {
		id := entry.Get("id").String()
		if id == "" {
			continue
		}
		name := entry.Get("display_name").String()
		if name == "" {
			name = id
		}
		descriptors = append(descriptors, provider.Model{
			ID:       id,
			Name:     name,
			Provider: ptype,
		})
	}
	return descriptors
}

// parseGeminiListing handles {"models":[…]} with models/-prefixed names,
// token limits and a supportedGenerationMethods filter.
func parseGeminiListing(jv gjson.Result) []provider.Model {
	list := jv.Get("models")
	if !list.Exists() || !list.IsArray() {
		return nil
	}
	descriptors := make([]provider.Model, 0, len(list.Array()))
	for _, entry := range list.Array() {
		supported := false
		for _, method := range entry.Get("supportedGenerationMethods").Array() {
			if method.String() == "generateContent" {
				supported = true
				break
			}
		}
		if !supported {
			continue
		}
		id := strings.TrimPrefix(entry.Get("name").String(), "models/")
		if id == "" {
			continue
		}
		name := entry.Get("displayName").String()
		if name == "" {
			name = id
		}
		m := provider.Model{
			ID:       id,
			Name:     name,
			Provider: provider.TypeGemini,
		}
		input := int(entry.Get("inputTokenLimit").Int())
		output := int(entry.Get("outputTokenLimit").Int())
		if input > 0 || output > 0 {
			m.TokenLimits = &provider.TokenLimits{Context: input, Output: output}
		}
		descriptors = append(descriptors, m)
	}
	return descriptors
}

// parseCohereListing handles {"models":[…]} keyed by name, filtered to
// chat-capable entries.
func parseCohereListing(jv gjson.Result) []provider.Model {
	list := jv.Get("models")
	if !list.Exists() || !list.IsArray() {
		return nil
	}
	descriptors := make([]provider.Model, 0, len(list.Array()))
	for _, entry := range list.Array() {
		chat := false
		for _, endpoint := range entry.Get("endpoints").Array() {
			if endpoint.String() == "chat" {
				chat = true
				break
			}
		}
		if !chat {
			continue
		}
		id := entry.Get("name").String()
		if id == "" {
			continue
		}
		m := provider.Model{
			ID:       id,
			Name:     id,
			Provider: provider.TypeCohere,
		}
		if ctxLen := int(entry.Get("context_length").Int()); ctxLen > 0 {
			m.TokenLimits = &provider.TokenLimits{Context: ctxLen}
		}
		descriptors = append(descriptors, m)
	}
	return descriptors
}
