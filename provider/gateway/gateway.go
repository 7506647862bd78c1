// Package gateway implements the adapter for multiplexing endpoints that
// front both Claude and Gemini models behind one base URL. The model id
// decides the wire dialect; the request is delegated to the matching
// single-vendor adapter against the gateway's endpoint.
package gateway

import (
	"context"
	"log/slog"

	"github.com/casualjim/modelbridge/provider"
	"github.com/casualjim/modelbridge/provider/anthropic"
	"github.com/casualjim/modelbridge/provider/caps"
	"github.com/casualjim/modelbridge/provider/gemini"
	"github.com/fogfish/opts"
)

// Provider routes each request to the Claude or Gemini dialect by resolved
// model family.
type Provider struct {
	claude provider.Adapter
	gemini provider.Adapter
	log    *slog.Logger
}

var (
	// WithClaude substitutes the Claude-dialect delegate.
	WithClaude = opts.ForName[Provider, provider.Adapter]("claude")
	// WithGemini substitutes the Gemini-dialect delegate.
	WithGemini = opts.ForName[Provider, provider.Adapter]("gemini")
	// WithLogger substitutes the logger.
	WithLogger = opts.ForName[Provider, *slog.Logger]("log")
)

// New returns a multiplexing gateway adapter.
func New(options ...opts.Option[Provider]) (*Provider, error) {
	p := &Provider{log: slog.Default()}
	if err := opts.Apply(p, options); err != nil {
		return nil, err
	}
	if p.claude == nil {
		delegate, err := anthropic.New()
		if err != nil {
			return nil, err
		}
		p.claude = delegate
	}
	if p.gemini == nil {
		delegate, err := gemini.New()
		if err != nil {
			return nil, err
		}
		p.gemini = delegate
	}
	return p, nil
}

// Complete resolves the model family and delegates the round trip. Ids that
// resolve to neither fronted vendor are rejected before any network call.
func (p *Provider) Complete(ctx context.Context, req provider.Request, profile provider.Profile) (*provider.Response, error) {
	family := caps.Classify(req.Model, profile.Type)
	switch family {
	case caps.FamilyClaude:
		return p.claude.Complete(ctx, req, profile)
	case caps.FamilyGemini:
		return p.gemini.Complete(ctx, req, profile)
	default:
		p.log.Warn("model not routable through gateway",
			slog.String("model", req.Model),
			slog.String("family", string(family)),
		)
		return nil, &provider.UnsupportedOperationError{
			Provider: "gateway",
			Op:       "complete model " + req.Model,
		}
	}
}
