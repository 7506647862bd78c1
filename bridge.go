package modelbridge

import (
	"context"
	"log/slog"

	"github.com/casualjim/modelbridge/internal/registry"
	"github.com/casualjim/modelbridge/internal/transport"
	"github.com/casualjim/modelbridge/pkg/slogx"
	"github.com/casualjim/modelbridge/pkg/uuidx"
	"github.com/casualjim/modelbridge/provider"
	"github.com/casualjim/modelbridge/provider/anthropic"
	"github.com/casualjim/modelbridge/provider/caps"
	"github.com/casualjim/modelbridge/provider/cohere"
	"github.com/casualjim/modelbridge/provider/gateway"
	"github.com/casualjim/modelbridge/provider/gemini"
	"github.com/casualjim/modelbridge/provider/models"
	"github.com/casualjim/modelbridge/provider/openai"
	"github.com/casualjim/modelbridge/provider/responses"
	"github.com/fogfish/opts"
	"github.com/google/uuid"
)

// Bridge routes unified requests to the adapter matching a profile's wire
// dialect. It is safe for concurrent use: adapters and the capability matrix
// are read-only after construction, and every request carries its own state.
type Bridge struct {
	adapters  registry.Registry[provider.Adapter]
	fetcher   *models.Fetcher
	transport *transport.Client
	log       *slog.Logger
}

// New returns a Bridge with all built-in adapters registered.
func New(options ...opts.Option[Bridge]) (*Bridge, error) {
	b := &Bridge{
		adapters: registry.New[provider.Adapter](),
		log:      slog.Default(),
	}
	if err := opts.Apply(b, options); err != nil {
		return nil, err
	}
	if b.transport == nil {
		b.transport = transport.New(transport.WithLogger(b.log))
	}
	if b.fetcher == nil {
		fetcher, err := models.NewFetcher(
			models.WithTransport(b.transport),
			models.WithLogger(b.log),
		)
		if err != nil {
			return nil, err
		}
		b.fetcher = fetcher
	}
	if err := b.registerBuiltins(); err != nil {
		return nil, err
	}
	return b, nil
}

func (b *Bridge) registerBuiltins() error {
	oai, err := openai.New(openai.WithTransport(b.transport), openai.WithLogger(b.log))
	if err != nil {
		return err
	}
	claude, err := anthropic.New(anthropic.WithTransport(b.transport), anthropic.WithLogger(b.log))
	if err != nil {
		return err
	}
	goog, err := gemini.New(gemini.WithTransport(b.transport), gemini.WithLogger(b.log))
	if err != nil {
		return err
	}
	cmd, err := cohere.New(cohere.WithTransport(b.transport), cohere.WithLogger(b.log))
	if err != nil {
		return err
	}
	mux, err := gateway.New(
		gateway.WithClaude(claude),
		gateway.WithGemini(goog),
		gateway.WithLogger(b.log),
	)
	if err != nil {
		return err
	}
	resp, err := responses.New(responses.WithTransport(b.transport), responses.WithLogger(b.log))
	if err != nil {
		return err
	}

	b.Register(provider.TypeOpenAI, oai)
	b.Register(provider.TypeAnthropic, claude)
	b.Register(provider.TypeGemini, goog)
	b.Register(provider.TypeCohere, cmd)
	b.Register(provider.TypeGateway, mux)
	b.Register(provider.TypeResponses, resp)
	return nil
}

// Register installs or replaces the adapter for a dialect. Useful for custom
// endpoints that speak a known dialect with extra quirks.
func (b *Bridge) Register(t provider.Type, adapter provider.Adapter) {
	b.adapters.Add(string(t), adapter)
}

// Complete runs one round trip. The request is normalized against the
// profile's capability descriptor before the adapter sees it.
func (b *Bridge) Complete(ctx context.Context, req provider.Request, profile provider.Profile) (*provider.Response, error) {
	return b.CompleteModel(ctx, req, profile, nil)
}

// CompleteModel is Complete with a model descriptor, whose capability flags
// further restrict what is sent.
func (b *Bridge) CompleteModel(ctx context.Context, req provider.Request, profile provider.Profile, model *provider.Model) (*provider.Response, error) {
	adapter, ok := b.adapters.Get(string(profile.Type))
	if !ok {
		return nil, &provider.UnsupportedOperationError{
			Provider: profile.Type,
			Op:       "complete",
		}
	}

	if req.RunID == uuid.Nil {
		req.RunID = uuidx.New()
	}

	normalized, family := caps.Normalizer{Log: b.log}.Normalize(req, profile, model)

	b.log.Debug("dispatching completion",
		slog.String("run_id", req.RunID.String()),
		slog.String("profile", profile.Name),
		slog.String("type", string(profile.Type)),
		slog.String("model", req.Model),
		slog.String("family", string(family)),
		slog.Bool("stream", req.Stream),
	)

	resp, err := adapter.Complete(ctx, normalized, profile)
	if err != nil {
		b.log.Debug("completion failed",
			slog.String("run_id", req.RunID.String()),
			slogx.Error(err),
		)
		return resp, err
	}
	return resp, nil
}

// FetchModels lists the models the profile's endpoint exposes, normalized and
// enriched by the catalog's metadata rules.
func (b *Bridge) FetchModels(ctx context.Context, profile provider.Profile) ([]provider.Model, error) {
	return b.fetcher.Fetch(ctx, profile)
}
