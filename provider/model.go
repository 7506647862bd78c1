package provider

import (
	"context"
	"time"

	"github.com/casualjim/modelbridge/messages"
	"github.com/google/uuid"
	"github.com/invopop/jsonschema"
	orderedmap "github.com/wk8/go-ordered-map/v2"
)

// Type tags one provider endpoint family. It identifies the wire dialect an
// endpoint speaks, not necessarily the vendor of the model behind it.
type Type string

const (
	TypeOpenAI    Type = "openai"
	TypeAnthropic Type = "anthropic"
	TypeGemini    Type = "gemini"
	TypeCohere    Type = "cohere"
	TypeGateway   Type = "gateway"
	TypeResponses Type = "responses"
)

// Profile describes one configured provider endpoint. It is read-only during
// a request and owned by the caller.
type Profile struct {
	// Name is a caller-chosen label used only for logging.
	Name string

	// Type selects the wire dialect of the endpoint.
	Type Type

	// BaseURL is the endpoint root, without a trailing slash.
	BaseURL string

	// Keys holds one or more credentials. Key() returns the first usable one.
	Keys []string

	// Headers are extra headers sent verbatim with every call.
	Headers map[string]string

	// Strategy picks the network path: "" (auto), "native" or "relay".
	Strategy string

	// TLSRelax disables certificate verification via the relay path.
	TLSRelax bool

	// HTTP1Only forces HTTP/1.1 via the relay path.
	HTTP1Only bool

	// Proxy is forwarded to the relay for endpoints that need one.
	Proxy string

	_ struct{}
}

// Key returns the first non-empty credential, or the empty string.
func (p Profile) Key() string {
	for _, k := range p.Keys {
		if k != "" {
			return k
		}
	}
	return ""
}

// Adapter is implemented once per provider family. Complete performs one
// chat/completion round trip, streaming or not, and returns the finished
// unified response. Model listing is a separate call path; see the models
// package.
type Adapter interface {
	Complete(ctx context.Context, req Request, profile Profile) (*Response, error)
}

// ToolDef describes one function the model may invoke.
type ToolDef struct {
	Name        string
	Description string
	// Schema is the JSON schema of the function parameters.
	Schema *jsonschema.Schema
	_      struct{}
}

// ToolChoiceMode enumerates the tool-choice policies shared by all vendors.
type ToolChoiceMode string

const (
	ToolChoiceAuto     ToolChoiceMode = "auto"
	ToolChoiceNone     ToolChoiceMode = "none"
	ToolChoiceRequired ToolChoiceMode = "required"
	ToolChoiceNamed    ToolChoiceMode = "named"
)

// ToolChoice selects how the model may use the provided tools. Name is only
// consulted when Mode is ToolChoiceNamed.
type ToolChoice struct {
	Mode ToolChoiceMode
	Name string
	_    struct{}
}

// ResponseFormat asks the model for structured output. Type is "text",
// "json" or "json_schema"; Schema accompanies "json_schema".
type ResponseFormat struct {
	Type   string
	Name   string
	Schema *jsonschema.Schema
	_      struct{}
}

// Thinking configures reasoning/extended-thinking output where a model
// supports it. BudgetTokens of zero leaves the provider default in place.
type Thinking struct {
	Enabled      bool
	BudgetTokens int
	Effort       string // low, medium or high on effort-based providers
	_            struct{}
}

// Extra is the flattened extension bag: string-keyed values an adapter
// transmits verbatim as top-level wire fields. Insertion order is preserved
// so serialized bodies stay deterministic.
type Extra = orderedmap.OrderedMap[string, any]

// NewExtra returns an empty extension bag.
func NewExtra() *Extra { return orderedmap.New[string, any]() }

// Request is the unified, provider-agnostic completion request. It is
// immutable by convention: adapters and the normalizer never modify a request
// in place.
type Request struct {
	// RunID correlates log lines and stream callbacks for one request.
	RunID uuid.UUID

	// Model is the target model identifier.
	Model string

	// Messages is the ordered conversation, oldest first.
	Messages []messages.Message

	// Optional generation parameters. Nil means "not sent".
	Temperature      *float64
	TopP             *float64
	TopK             *int
	PresencePenalty  *float64
	FrequencyPenalty *float64
	MaxTokens        *int
	Stop             []string
	LogitBias        map[string]int
	Seed             *int64
	ServiceTier      string

	// Tools and the policy governing their use.
	Tools             []ToolDef
	ToolChoice        *ToolChoice
	ParallelToolCalls *bool

	// ResponseFormat requests structured output.
	ResponseFormat *ResponseFormat

	// Thinking enables reasoning output on models that support it.
	Thinking *Thinking

	// WebSearch asks the provider to ground answers with a search tool.
	WebSearch bool

	// Stream selects incremental delivery. OnStream receives answer-text
	// deltas, OnReasoning receives reasoning-text deltas; both may be nil.
	Stream      bool
	OnStream    func(delta string)
	OnReasoning func(delta string)

	// Timeout bounds the whole operation including stream consumption.
	// Zero applies the transport default.
	Timeout time.Duration

	// Extra carries custom fields transmitted as top-level wire keys.
	Extra *Extra

	_ struct{}
}

// Capabilities are the per-model feature flags that further restrict what a
// request may carry, even when the provider generally supports a field.
type Capabilities struct {
	Vision    bool `json:"vision,omitempty" yaml:"vision,omitempty"`
	Tools     bool `json:"tools,omitempty" yaml:"tools,omitempty"`
	Thinking  bool `json:"thinking,omitempty" yaml:"thinking,omitempty"`
	WebSearch bool `json:"web_search,omitempty" yaml:"web_search,omitempty"`
	_         struct{}
}

// TokenLimits describes a model's context and output windows.
type TokenLimits struct {
	Context int `json:"context,omitempty" yaml:"context,omitempty"`
	Output  int `json:"output,omitempty" yaml:"output,omitempty"`
	_       struct{}
}

// Pricing holds per-million-token prices in USD.
type Pricing struct {
	Input  float64 `json:"input,omitempty" yaml:"input,omitempty"`
	Output float64 `json:"output,omitempty" yaml:"output,omitempty"`
	_      struct{}
}

// Model is one normalized entry of a provider's model listing. Descriptors
// are created fresh on each catalog fetch and never persisted here.
type Model struct {
	ID           string        `json:"id"`
	Name         string        `json:"name,omitempty"`
	Group        string        `json:"group,omitempty"`
	Provider     Type          `json:"provider,omitempty"`
	Capabilities *Capabilities `json:"capabilities,omitempty"`
	TokenLimits  *TokenLimits  `json:"token_limits,omitempty"`
	Pricing      *Pricing      `json:"pricing,omitempty"`
	_            struct{}
}
