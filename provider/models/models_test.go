package models

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/casualjim/modelbridge/provider"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestApplyRulesPriorityAndFirstMatch(t *testing.T) {
	rules := []Rule{
		{Pattern: "gpt", Field: MatchModel, Priority: 1, Properties: Properties{Group: "legacy"}},
		{Pattern: "gpt-4o", Field: MatchModelPrefix, Priority: 10, Properties: Properties{
			Group:        "flagship",
			Capabilities: &provider.Capabilities{Vision: true, Tools: true},
		}},
	}
	descriptors := []provider.Model{
		{ID: "gpt-4o-mini", Provider: provider.TypeOpenAI},
		{ID: "gpt-3.5-turbo", Provider: provider.TypeOpenAI},
	}

	Apply(rules, descriptors)

	// Higher priority assigns first; the lower-priority rule no longer
	// overrides the property.
	assert.Equal(t, "flagship", descriptors[0].Group)
	require.NotNil(t, descriptors[0].Capabilities)
	assert.True(t, descriptors[0].Capabilities.Vision)

	assert.Equal(t, "legacy", descriptors[1].Group)
	assert.Nil(t, descriptors[1].Capabilities)
}

func TestApplyRulesKeepListingValues(t *testing.T) {
	rules := []Rule{
		{Pattern: "gemini", Field: MatchModel, Priority: 5, Properties: Properties{
			TokenLimits: &provider.TokenLimits{Context: 1},
		}},
	}
	descriptors := []provider.Model{{
		ID:          "gemini-2.0-flash",
		TokenLimits: &provider.TokenLimits{Context: 1048576},
	}}

	Apply(rules, descriptors)
	assert.Equal(t, 1048576, descriptors[0].TokenLimits.Context, "listing data wins over rules")
}

func TestParseRulesYAML(t *testing.T) {
	raw := []byte(`
- pattern: claude
  field: model_prefix
  priority: 20
  properties:
    group: anthropic
    capabilities:
      vision: true
      tools: true
      thinking: true
- pattern: cohere
  field: provider
  priority: 1
  properties:
    group: cohere
`)
	rules, err := ParseRules(raw)
	require.NoError(t, err)
	require.Len(t, rules, 2)
	assert.Equal(t, MatchModelPrefix, rules[0].Field)
	assert.Equal(t, 20, rules[0].Priority)
	require.NotNil(t, rules[0].Properties.Capabilities)
	assert.True(t, rules[0].Properties.Capabilities.Thinking)
	assert.Equal(t, MatchProvider, rules[1].Field)
}

func TestFetchOpenAIListing(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/models", r.URL.Path)
		assert.Equal(t, "Bearer sk-test", r.Header.Get("Authorization"))
		w.Write([]byte(`{"data":[{"id":"gpt-4o"},{"id":"gpt-4o-mini"}]}`))
	}))
	defer srv.Close()

	f, err := NewFetcher(WithRules([]Rule{
		{Pattern: "gpt-4o", Field: MatchModelPrefix, Priority: 1, Properties: Properties{Group: "gpt"}},
	}))
	require.NoError(t, err)

	listing, err := f.Fetch(context.Background(), provider.Profile{
		Type:    provider.TypeOpenAI,
		BaseURL: srv.URL,
		Keys:    []string{"sk-test"},
	})
	require.NoError(t, err)
	require.Len(t, listing, 2)
	assert.Equal(t, "gpt-4o", listing[0].ID)
	assert.Equal(t, provider.TypeOpenAI, listing[0].Provider)
	assert.Equal(t, "gpt", listing[0].Group)
}

func TestFetchAnthropicListing(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/models", r.URL.Path)
		assert.Equal(t, "sk-ant", r.Header.Get("x-api-key"))
		w.Write([]byte(`{"data":[{"id":"claude-sonnet-4-20250514","display_name":"Claude Sonnet 4"}]}`))
	}))
	defer srv.Close()

	f, err := NewFetcher()
	require.NoError(t, err)

	listing, err := f.Fetch(context.Background(), provider.Profile{
		Type:    provider.TypeAnthropic,
		BaseURL: srv.URL,
		Keys:    []string{"sk-ant"},
	})
	require.NoError(t, err)
	require.Len(t, listing, 1)
	assert.Equal(t, "claude-sonnet-4-20250514", listing[0].ID)
	assert.Equal(t, "Claude Sonnet 4", listing[0].Name)
}

func TestFetchGeminiListingFiltersAndLimits(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1beta/models", r.URL.Path)
		w.Write([]byte(`{"models":[
			{"name":"models/gemini-2.0-flash","displayName":"Gemini 2.0 Flash",
			 "inputTokenLimit":1048576,"outputTokenLimit":8192,
			 "supportedGenerationMethods":["generateContent","countTokens"]},
			{"name":"models/text-embedding-004","displayName":"Embedding",
			 "supportedGenerationMethods":["embedContent"]}
		]}`))
	}))
	defer srv.Close()

	f, err := NewFetcher()
	require.NoError(t, err)

	listing, err := f.Fetch(context.Background(), provider.Profile{
		Type:    provider.TypeGemini,
		BaseURL: srv.URL,
		Keys:    []string{"AIza"},
	})
	require.NoError(t, err)
	require.Len(t, listing, 1, "non-chat models are filtered out")
	assert.Equal(t, "gemini-2.0-flash", listing[0].ID)
	require.NotNil(t, listing[0].TokenLimits)
	assert.Equal(t, 1048576, listing[0].TokenLimits.Context)
	assert.Equal(t, 8192, listing[0].TokenLimits.Output)
}

func TestFetchCohereListing(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"models":[
			{"name":"command-r-plus","endpoints":["chat"],"context_length":128000},
			{"name":"embed-english-v3.0","endpoints":["embed"]}
		]}`))
	}))
	defer srv.Close()

	f, err := NewFetcher()
	require.NoError(t, err)

	listing, err := f.Fetch(context.Background(), provider.Profile{
		Type:    provider.TypeCohere,
		BaseURL: srv.URL,
		Keys:    []string{"co"},
	})
	require.NoError(t, err)
	require.Len(t, listing, 1)
	assert.Equal(t, "command-r-plus", listing[0].ID)
	require.NotNil(t, listing[0].TokenLimits)
	assert.Equal(t, 128000, listing[0].TokenLimits.Context)
}

func TestFetchDecodeError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"unexpected":"shape"}`))
	}))
	defer srv.Close()

	f, err := NewFetcher()
	require.NoError(t, err)

	_, err = f.Fetch(context.Background(), provider.Profile{
		Type:    provider.TypeOpenAI,
		BaseURL: srv.URL,
	})
	var de *provider.DecodeError
	require.ErrorAs(t, err, &de)
}
