package caps

import "github.com/casualjim/modelbridge/provider"

// Descriptor records, per provider type, which optional request fields are
// transmissible at all. Model-level capability flags restrict further; see
// Normalizer.
type Descriptor struct {
	Temperature       bool
	TopP              bool
	TopK              bool
	Penalties         bool
	Stop              bool
	MaxTokens         bool
	LogitBias         bool
	Seed              bool
	Tools             bool
	ToolChoice        bool
	ParallelToolCalls bool
	ResponseFormat    bool
	Thinking          bool
	WebSearch         bool
	ServiceTier       bool

	_ struct{}
}

// permissive is the unknown-provider fallback: transmit everything and let
// the endpoint decide.
var permissive = Descriptor{
	Temperature: true, TopP: true, TopK: true, Penalties: true, Stop: true,
	MaxTokens: true, LogitBias: true, Seed: true, Tools: true, ToolChoice: true,
	ParallelToolCalls: true, ResponseFormat: true, Thinking: true, WebSearch: true,
	ServiceTier: true,
}

// matrix is the declarative capability table. Entries describe the endpoint
// dialect, not any particular model.
var matrix = map[provider.Type]Descriptor{
	provider.TypeOpenAI: {
		Temperature: true, TopP: true, Penalties: true, Stop: true,
		MaxTokens: true, LogitBias: true, Seed: true, Tools: true,
		ToolChoice: true, ParallelToolCalls: true, ResponseFormat: true,
		Thinking: true, ServiceTier: true,
	},
	provider.TypeResponses: {
		Temperature: true, TopP: true, MaxTokens: true, Tools: true,
		ToolChoice: true, ParallelToolCalls: true, ResponseFormat: true,
		Thinking: true, WebSearch: true, ServiceTier: true,
	},
	provider.TypeAnthropic: {
		Temperature: true, TopP: true, TopK: true, Stop: true,
		MaxTokens: true, Tools: true, ToolChoice: true, Thinking: true,
		WebSearch: true,
	},
	provider.TypeGemini: {
		Temperature: true, TopP: true, TopK: true, Penalties: true,
		Stop: true, MaxTokens: true, Tools: true, ToolChoice: true,
		ResponseFormat: true, Thinking: true, WebSearch: true, Seed: true,
	},
	provider.TypeCohere: {
		Temperature: true, TopP: true, TopK: true, Penalties: true,
		Stop: true, MaxTokens: true, Tools: true, ToolChoice: true,
		ResponseFormat: true, Seed: true,
	},
	// The gateway fronts Claude and Gemini models; it forwards the union and
	// relies on family gating for the rest.
	provider.TypeGateway: {
		Temperature: true, TopP: true, TopK: true, Stop: true,
		MaxTokens: true, Tools: true, ToolChoice: true, Thinking: true,
		ResponseFormat: true, WebSearch: true,
	},
}

// For returns the capability descriptor for a provider type. Unknown types
// get the maximally permissive descriptor.
func For(t provider.Type) Descriptor {
	if d, ok := matrix[t]; ok {
		return d
	}
	return permissive
}
