package openai

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
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
		Type:    provider.TypeOpenAI,
		BaseURL: url,
		Keys:    []string{"sk-test"},
	}
}

func TestBuildBodyPreservesPartOrder(t *testing.T) {
	req := provider.Request{
		Model: "gpt-4o",
		Messages: []messages.Message{
			messages.UserParts(
				messages.TextPart{Text: "before"},
				messages.ImagePart{URL: "https://example.com/cat.png"},
				messages.TextPart{Text: "after"},
			),
		},
	}
	body, err := buildBody(req)
	require.NoError(t, err)

	parts := gjson.GetBytes(body, "messages.0.content")
	require.True(t, parts.IsArray())
	arr := parts.Array()
	require.Len(t, arr, 3)
	assert.Equal(t, "text", arr[0].Get("type").String())
	assert.Equal(t, "before", arr[0].Get("text").String())
	assert.Equal(t, "image_url", arr[1].Get("type").String())
	assert.Equal(t, "https://example.com/cat.png", arr[1].Get("image_url.url").String())
	assert.Equal(t, "text", arr[2].Get("type").String())
	assert.Equal(t, "after", arr[2].Get("text").String())
}

func TestBuildBodyInlineImageBecomesDataURL(t *testing.T) {
	req := provider.Request{
		Model: "gpt-4o",
		Messages: []messages.Message{
			messages.UserParts(messages.ImagePart{MimeType: "image/jpeg", Data: []byte{0xff, 0xd8}}),
		},
	}
	body, err := buildBody(req)
	require.NoError(t, err)

	url := gjson.GetBytes(body, "messages.0.content.0.image_url.url").String()
	assert.Equal(t, "data:image/jpeg;base64,/9g=", url)
}

func TestBuildBodyExtraIsTopLevel(t *testing.T) {
	req := provider.Request{
		Model:    "gpt-4o",
		Messages: []messages.Message{messages.User("hi")},
		Extra:    provider.NewExtra(),
	}
	req.Extra.Set("custom_param", "yes")
	req.Extra.Set("temperature", 0.1)

	body, err := buildBody(req)
	require.NoError(t, err)
	assert.Equal(t, "yes", gjson.GetBytes(body, "custom_param").String())
	// Bag entries overwrite schema fields.
	assert.Equal(t, 0.1, gjson.GetBytes(body, "temperature").Float())
}

func TestCompleteNonStreaming(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/chat/completions", r.URL.Path)
		assert.Equal(t, "Bearer sk-test", r.Header.Get("Authorization"))
		body, _ := io.ReadAll(r.Body)
		assert.Equal(t, "gpt-4o", gjson.GetBytes(body, "model").String())

		w.Write([]byte(`{
			"id": "chatcmpl-1",
			"model": "gpt-4o-2024-08-06",
			"choices": [{
				"message": {"role": "assistant", "content": "Hello!"},
				"finish_reason": "stop"
			}],
			"usage": {"prompt_tokens": 9, "completion_tokens": 3, "total_tokens": 12,
				"prompt_tokens_details": {"cached_tokens": 4}}
		}`))
	}))
	defer srv.Close()

	p, err := New()
	require.NoError(t, err)

	resp, err := p.Complete(context.Background(), provider.Request{
		Model:    "gpt-4o",
		Messages: []messages.Message{messages.User("hi")},
	}, testProfile(srv.URL))
	require.NoError(t, err)

	assert.Equal(t, "chatcmpl-1", resp.ID)
	assert.Equal(t, "Hello!", resp.Content)
	assert.Equal(t, provider.FinishStop, resp.FinishReason)
	assert.Equal(t, 9, resp.Usage.PromptTokens)
	assert.Equal(t, 12, resp.Usage.TotalTokens)
	require.NotNil(t, resp.Usage.CacheReadTokens)
	assert.Equal(t, 4, *resp.Usage.CacheReadTokens)
	assert.False(t, resp.IsStream)
}

func TestCompleteDecodeErrorOnMissingChoices(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"object":"error-ish"}`))
	}))
	defer srv.Close()

	p, err := New()
	require.NoError(t, err)

	_, err = p.Complete(context.Background(), provider.Request{
		Model:    "gpt-4o",
		Messages: []messages.Message{messages.User("hi")},
	}, testProfile(srv.URL))

	var de *provider.DecodeError
	require.ErrorAs(t, err, &de)
	assert.Contains(t, de.Payload, "error-ish")
}

func TestCompleteStreamingToolCallFragments(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/event-stream")
		chunks := []string{
			`{"id":"c1","model":"gpt-4o","choices":[{"delta":{"content":"Checking"}}]}`,
			`{"id":"c1","choices":[{"delta":{"tool_calls":[{"index":0,"id":"call_1","function":{"name":"get_weather","arguments":""}}]}}]}`,
			`{"id":"c1","choices":[{"delta":{"tool_calls":[{"index":0,"function":{"arguments":"{\"city\":"}}]}}]}`,
			`{"id":"c1","choices":[{"delta":{"tool_calls":[{"index":0,"function":{"arguments":"\"Paris\"}"}}]}}]}`,
			`{"id":"c1","choices":[{"delta":{},"finish_reason":"tool_calls"}]}`,
			`{"id":"c1","choices":[],"usage":{"prompt_tokens":20,"completion_tokens":15,"total_tokens":35}}`,
		}
		for _, chunk := range chunks {
			io.WriteString(w, "data: "+chunk+"\n\n")
		}
		io.WriteString(w, "data: [DONE]\n\n")
	}))
	defer srv.Close()

	p, err := New()
	require.NoError(t, err)

	var streamed string
	resp, err := p.Complete(context.Background(), provider.Request{
		Model:    "gpt-4o",
		Messages: []messages.Message{messages.User("weather in paris?")},
		Stream:   true,
		OnStream: func(delta string) { streamed += delta },
	}, testProfile(srv.URL))
	require.NoError(t, err)

	assert.Equal(t, "Checking", streamed)
	assert.Equal(t, "Checking", resp.Content)
	require.Len(t, resp.ToolCalls, 1)
	assert.Equal(t, "call_1", resp.ToolCalls[0].ID)
	assert.Equal(t, "get_weather", resp.ToolCalls[0].Name)
	assert.Equal(t, `{"city":"Paris"}`, resp.ToolCalls[0].Arguments)
	assert.Equal(t, provider.FinishToolCalls, resp.FinishReason)
	assert.Equal(t, 35, resp.Usage.TotalTokens)
	assert.True(t, resp.IsStream)
}

func TestCompleteStreamingReasoning(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/event-stream")
		io.WriteString(w, "data: {\"choices\":[{\"delta\":{\"reasoning_content\":\"let me think\"}}]}\n\n")
		io.WriteString(w, "data: {\"choices\":[{\"delta\":{\"content\":\"42\"},\"finish_reason\":\"stop\"}]}\n\n")
		io.WriteString(w, "data: [DONE]\n\n")
	}))
	defer srv.Close()

	p, err := New()
	require.NoError(t, err)

	var reasoned string
	resp, err := p.Complete(context.Background(), provider.Request{
		Model:       "deepseek-r1",
		Messages:    []messages.Message{messages.User("meaning of life?")},
		Stream:      true,
		OnReasoning: func(delta string) { reasoned += delta },
	}, testProfile(srv.URL))
	require.NoError(t, err)

	assert.Equal(t, "let me think", reasoned)
	assert.Equal(t, "let me think", resp.ReasoningContent)
	assert.Equal(t, "42", resp.Content)
	assert.Equal(t, provider.FinishStop, resp.FinishReason)
}

func TestMapFinishReason(t *testing.T) {
	assert.Equal(t, provider.FinishStop, mapFinishReason("stop"))
	assert.Equal(t, provider.FinishLength, mapFinishReason("length"))
	assert.Equal(t, provider.FinishContentFilter, mapFinishReason("content_filter"))
	assert.Equal(t, provider.FinishToolCalls, mapFinishReason("function_call"))
	assert.Equal(t, provider.FinishReason(""), mapFinishReason(""))
	assert.Equal(t, provider.FinishOther, mapFinishReason("bizarre"))
}
