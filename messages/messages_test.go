package messages

import (
	"testing"

	json "github.com/goccy/go-json"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValidateToolResultReferences(t *testing.T) {
	valid := []Message{
		User("weather?"),
		ToolUse("call_1", "get_weather", `{"city":"Paris"}`),
		ToolResult("call_1", "21C"),
	}
	assert.NoError(t, Validate(valid))

	dangling := []Message{
		User("weather?"),
		ToolResult("call_unknown", "21C"),
	}
	err := Validate(dangling)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "call_unknown")

	// A result may not precede its call.
	reversed := []Message{
		ToolResult("call_1", "21C"),
		ToolUse("call_1", "get_weather", `{}`),
	}
	assert.Error(t, Validate(reversed))
}

func TestContentOrPartsRoundTrip(t *testing.T) {
	msg := UserParts(
		TextPart{Text: "look at this"},
		ImagePart{URL: "https://example.com/a.png", Detail: "high"},
		ToolUsePart{ID: "call_1", Name: "describe", Arguments: `{"x":1}`},
	)

	raw, err := json.Marshal(msg)
	require.NoError(t, err)

	var decoded Message
	require.NoError(t, json.Unmarshal(raw, &decoded))

	require.Len(t, decoded.Content.Parts, 3, "part order and count survive")
	text, ok := decoded.Content.Parts[0].(TextPart)
	require.True(t, ok)
	assert.Equal(t, "look at this", text.Text)

	img, ok := decoded.Content.Parts[1].(ImagePart)
	require.True(t, ok)
	assert.Equal(t, "https://example.com/a.png", img.URL)
	assert.Equal(t, "high", img.Detail)

	tu, ok := decoded.Content.Parts[2].(ToolUsePart)
	require.True(t, ok)
	assert.Equal(t, `{"x":1}`, tu.Arguments)
}

func TestContentOrPartsPlainString(t *testing.T) {
	raw, err := json.Marshal(User("just text"))
	require.NoError(t, err)
	assert.Contains(t, string(raw), `"content":"just text"`)

	var decoded Message
	require.NoError(t, json.Unmarshal(raw, &decoded))
	assert.Equal(t, "just text", decoded.Content.Content)
	assert.Empty(t, decoded.Content.Parts)
}

func TestAsText(t *testing.T) {
	assert.Equal(t, "plain", Text("plain").AsText())
	assert.Equal(t, "ab", Of(TextPart{Text: "a"}, ImagePart{URL: "u"}, TextPart{Text: "b"}).AsText())
}

func TestImageDataURL(t *testing.T) {
	assert.Equal(t, "https://x/y.png", ImagePart{URL: "https://x/y.png"}.DataURL())
	assert.Equal(t, "data:image/png;base64,AQI=", ImagePart{Data: []byte{1, 2}}.DataURL())
	assert.Equal(t, "data:image/webp;base64,AQI=", ImagePart{MimeType: "image/webp", Data: []byte{1, 2}}.DataURL())
}

func TestDocumentDataURL(t *testing.T) {
	assert.Equal(t, "https://x/report.pdf", DocumentPart{URL: "https://x/report.pdf"}.DataURL())
	assert.Equal(t, "data:application/pdf;base64,AQI=", DocumentPart{Data: []byte{1, 2}}.DataURL())
	assert.Equal(t, "data:text/plain;base64,AQI=", DocumentPart{MimeType: "text/plain", Data: []byte{1, 2}}.DataURL())
}

func TestIsZero(t *testing.T) {
	assert.True(t, ContentOrParts{}.IsZero())
	assert.True(t, Text("  ").IsZero())
	assert.False(t, Text("x").IsZero())
	assert.False(t, Of(TextPart{Text: ""}).IsZero())
}
