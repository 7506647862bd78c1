package gemini

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/casualjim/modelbridge/messages"
	"github.com/casualjim/modelbridge/provider"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tidwall/gjson"
)

func testProfile(url string) provider.Profile {
	return provider.Profile{
		Name:    "test",
		Type:    provider.TypeGemini,
		BaseURL: url,
		Keys:    []string{"AIza-test"},
	}
}

func TestBuildBodyContentsAndSystem(t *testing.T) {
	req := provider.Request{
		Model: "gemini-2.0-flash",
		Messages: []messages.Message{
			messages.System("be terse"),
			messages.User("hello"),
			messages.Assistant("hi"),
		},
	}
	body, err := buildBody(req)
	require.NoError(t, err)

	assert.Equal(t, "be terse", gjson.GetBytes(body, "systemInstruction.parts.0.text").String())
	contents := gjson.GetBytes(body, "contents").Array()
	require.Len(t, contents, 2)
	assert.Equal(t, "user", contents[0].Get("role").String())
	assert.Equal(t, "model", contents[1].Get("role").String())
}

func TestBuildBodyToolResultByFunctionName(t *testing.T) {
	req := provider.Request{
		Model: "gemini-2.0-flash",
		Messages: []messages.Message{
			messages.User("weather?"),
			messages.ToolUse("call_abc", "get_weather", `{"city":"Paris"}`),
			messages.ToolResult("call_abc", `{"temp": 21}`),
		},
	}
	body, err := buildBody(req)
	require.NoError(t, err)

	// The result is correlated back to the function name, not the call id.
	fr := gjson.GetBytes(body, "contents.2.parts.0.functionResponse")
	assert.Equal(t, "get_weather", fr.Get("name").String())
	assert.Equal(t, int64(21), fr.Get("response.temp").Int())
}

func TestBuildBodyScalarToolResultIsWrapped(t *testing.T) {
	req := provider.Request{
		Model: "gemini-2.0-flash",
		Messages: []messages.Message{
			messages.ToolUse("call_1", "answer", `{}`),
			messages.ToolResult("call_1", "42"),
		},
	}
	body, err := buildBody(req)
	require.NoError(t, err)
	assert.Equal(t, int64(42), gjson.GetBytes(body, "contents.1.parts.0.functionResponse.response.result").Int())
}

func TestBuildBodyGenerationConfig(t *testing.T) {
	temp := 0.3
	maxTokens := 512
	req := provider.Request{
		Model:       "gemini-2.0-flash",
		Messages:    []messages.Message{messages.User("hi")},
		Temperature: &temp,
		MaxTokens:   &maxTokens,
		Stop:        []string{"END"},
		Thinking:    &provider.Thinking{Enabled: true, BudgetTokens: 1024},
	}
	body, err := buildBody(req)
	require.NoError(t, err)

	cfg := gjson.GetBytes(body, "generationConfig")
	assert.Equal(t, 0.3, cfg.Get("temperature").Float())
	assert.Equal(t, int64(512), cfg.Get("maxOutputTokens").Int())
	assert.Equal(t, "END", cfg.Get("stopSequences.0").String())
	assert.True(t, cfg.Get("thinkingConfig.includeThoughts").Bool())
	assert.Equal(t, int64(1024), cfg.Get("thinkingConfig.thinkingBudget").Int())
}

func TestCompleteNonStreamingSafetyFilter(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1beta/models/gemini-2.0-flash:generateContent", r.URL.Path)
		assert.Equal(t, "AIza-test", r.Header.Get("x-goog-api-key"))

		w.Write([]byte(`{
			"responseId": "resp-1",
			"modelVersion": "gemini-2.0-flash-001",
			"candidates": [{
				"content": {"parts": [{"text": "I cannot"}]},
				"finishReason": "SAFETY"
			}],
			"usageMetadata": {"promptTokenCount": 8, "candidatesTokenCount": 2, "totalTokenCount": 10}
		}`))
	}))
	defer srv.Close()

	p, err := New()
	require.NoError(t, err)

	resp, err := p.Complete(context.Background(), provider.Request{
		Model:    "models/gemini-2.0-flash",
		Messages: []messages.Message{messages.User("hi")},
	}, testProfile(srv.URL))
	require.NoError(t, err)

	assert.Equal(t, provider.FinishContentFilter, resp.FinishReason)
	assert.Equal(t, "I cannot", resp.Content)
	assert.Equal(t, 10, resp.Usage.TotalTokens)
}

func TestCompleteSynthesizesCallIDs(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{
			"candidates": [{
				"content": {"parts": [
					{"functionCall": {"name": "get_weather", "args": {"city": "Paris"}}}
				]},
				"finishReason": "STOP"
			}]
		}`))
	}))
	defer srv.Close()

	p, err := New()
	require.NoError(t, err)

	resp, err := p.Complete(context.Background(), provider.Request{
		Model:    "gemini-2.0-flash",
		Messages: []messages.Message{messages.User("weather?")},
	}, testProfile(srv.URL))
	require.NoError(t, err)

	require.Len(t, resp.ToolCalls, 1)
	assert.True(t, strings.HasPrefix(resp.ToolCalls[0].ID, "call_"), "id is synthesized")
	assert.Equal(t, "get_weather", resp.ToolCalls[0].Name)
	assert.JSONEq(t, `{"city":"Paris"}`, resp.ToolCalls[0].Arguments)
	assert.Equal(t, provider.FinishToolCalls, resp.FinishReason, "calls override the plain STOP")
}

func TestCompleteStreamingThoughtsAndUsage(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Contains(t, r.URL.Path, ":streamGenerateContent")
		assert.Equal(t, "sse", r.URL.Query().Get("alt"))
		w.Header().Set("Content-Type", "text/event-stream")

		io.WriteString(w, `data: {"responseId":"r2","candidates":[{"content":{"parts":[{"text":"planning","thought":true}]}}],"usageMetadata":{"promptTokenCount":5,"candidatesTokenCount":1,"totalTokenCount":6}}`+"\n\n")
		io.WriteString(w, `data: {"candidates":[{"content":{"parts":[{"text":"Par"}]}}]}`+"\n\n")
		io.WriteString(w, `data: {"candidates":[{"content":{"parts":[{"text":"is"}]},"finishReason":"STOP"}],"usageMetadata":{"promptTokenCount":5,"candidatesTokenCount":4,"totalTokenCount":9,"thoughtsTokenCount":2}}`+"\n\n")
	}))
	defer srv.Close()

	p, err := New()
	require.NoError(t, err)

	var streamed, reasoned string
	resp, err := p.Complete(context.Background(), provider.Request{
		Model:       "gemini-2.5-pro",
		Messages:    []messages.Message{messages.User("capital of france?")},
		Stream:      true,
		OnStream:    func(d string) { streamed += d },
		OnReasoning: func(d string) { reasoned += d },
	}, testProfile(srv.URL))
	require.NoError(t, err)

	assert.Equal(t, "Paris", streamed)
	assert.Equal(t, "planning", reasoned)
	assert.Equal(t, "Paris", resp.Content)
	assert.Equal(t, provider.FinishStop, resp.FinishReason)
	// Cumulative usage: the last chunk wins.
	assert.Equal(t, 9, resp.Usage.TotalTokens)
	require.NotNil(t, resp.Usage.ReasoningTokens)
	assert.Equal(t, 2, *resp.Usage.ReasoningTokens)
}

func TestCompleteDecodeErrorOnMissingCandidates(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"promptFeedback":{"blockReason":"OTHER"}}`))
	}))
	defer srv.Close()

	p, err := New()
	require.NoError(t, err)

	_, err = p.Complete(context.Background(), provider.Request{
		Model:    "gemini-2.0-flash",
		Messages: []messages.Message{messages.User("hi")},
	}, testProfile(srv.URL))

	var de *provider.DecodeError
	require.ErrorAs(t, err, &de)
}

func TestMapFinishReason(t *testing.T) {
	assert.Equal(t, provider.FinishStop, mapFinishReason("STOP"))
	assert.Equal(t, provider.FinishLength, mapFinishReason("MAX_TOKENS"))
	assert.Equal(t, provider.FinishContentFilter, mapFinishReason("SAFETY"))
	assert.Equal(t, provider.FinishContentFilter, mapFinishReason("RECITATION"))
	assert.Equal(t, provider.FinishOther, mapFinishReason("MALFORMED_FUNCTION_CALL"))
}
