package messages

import (
	"encoding/base64"
	"fmt"
	"strings"

	json "github.com/goccy/go-json"
	"github.com/tidwall/gjson"
	"github.com/tidwall/sjson"
)

var jsonNull = []byte(`null`)

// ContentOrParts represents either a simple string content or an ordered
// collection of content parts. It provides flexible serialization to handle
// both single-string messages and multi-part content.
type ContentOrParts struct {
	Content string        // Raw string content, used when the message is just text
	Parts   []ContentPart // Ordered slice of typed content parts
	_       struct{}      // require keyed usage
}

// Text returns a ContentOrParts holding only the provided string.
func Text(content string) ContentOrParts {
	return ContentOrParts{Content: content}
}

// Of returns a ContentOrParts holding the provided parts in order.
func Of(parts ...ContentPart) ContentOrParts {
	return ContentOrParts{Parts: parts}
}

// IsZero reports whether neither the string content nor any parts are set.
func (c ContentOrParts) IsZero() bool {
	return strings.TrimSpace(c.Content) == "" && len(c.Parts) == 0
}

// AsText flattens the content into a single string. Multi-part content
// contributes only its text parts, joined in order.
func (c ContentOrParts) AsText() string {
	if strings.TrimSpace(c.Content) != "" {
		return c.Content
	}
	var sb strings.Builder
	for _, part := range c.Parts {
		if tp, ok := part.(TextPart); ok {
			sb.WriteString(tp.Text)
		}
	}
	return sb.String()
}

// MarshalJSON implements json.Marshaler for ContentOrParts.
// Returns the Content as a JSON string if it's non-empty,
// otherwise returns the Parts as a JSON array.
// Returns null if both Content and Parts are empty.
func (c ContentOrParts) MarshalJSON() ([]byte, error) {
	if strings.TrimSpace(c.Content) != "" {
		return json.Marshal(c.Content)
	}
	if c.Parts == nil {
		return jsonNull, nil
	}
	return json.Marshal(c.Parts)
}

// UnmarshalJSON implements json.Unmarshaler for ContentOrParts.
// Handles both string content and arrays of typed content parts.
// Returns an error if the JSON is invalid or a part has an unknown type.
func (c *ContentOrParts) UnmarshalJSON(input []byte) error {
	if !gjson.ValidBytes(input) {
		return fmt.Errorf("invalid json: %s", input)
	}
	jv := gjson.ParseBytes(input)
	if jv.IsArray() {
		aj := jv.Array()
		parts := make([]ContentPart, len(aj))
		for idx, ajv := range aj {
			part, err := unmarshalPart(ajv)
			if err != nil {
				return fmt.Errorf("content part at %d: %w", idx, err)
			}
			parts[idx] = part
		}
		c.Parts = parts
		return nil
	}
	c.Content = jv.String()
	return nil
}

func unmarshalPart(jv gjson.Result) (ContentPart, error) {
	tpe := jv.Get("type").String()
	raw := []byte(jv.Raw)
	switch tpe {
	case "text":
		var part TextPart
		err := json.Unmarshal(raw, &part)
		return part, err
	case "image":
		var part ImagePart
		err := json.Unmarshal(raw, &part)
		return part, err
	case "audio":
		var part AudioPart
		err := json.Unmarshal(raw, &part)
		return part, err
	case "video":
		var part VideoPart
		err := json.Unmarshal(raw, &part)
		return part, err
	case "document":
		var part DocumentPart
		err := json.Unmarshal(raw, &part)
		return part, err
	case "tool_use":
		var part ToolUsePart
		err := json.Unmarshal(raw, &part)
		return part, err
	case "tool_result":
		var part ToolResultPart
		err := json.Unmarshal(raw, &part)
		return part, err
	default:
		return nil, fmt.Errorf("unknown type %q", tpe)
	}
}

// ContentPart is a sealed interface implemented by every typed content part.
type ContentPart interface {
	contentPart()
}

// TextPart holds plain text.
type TextPart struct {
	Text string `json:"text"`
	_    struct{}
}

func (TextPart) contentPart() {}

// MarshalJSON emits the part with its wire discriminator.
func (p TextPart) MarshalJSON() ([]byte, error) {
	return sjson.SetBytes([]byte(`{"type":"text"}`), "text", p.Text)
}

// ImagePart holds an image, either by URL or as inline bytes.
// Detail carries the optional provider fidelity hint (low, high, auto).
type ImagePart struct {
	URL      string `json:"url,omitempty"`
	MimeType string `json:"mime_type,omitempty"`
	Data     []byte `json:"data,omitempty"`
	Detail   string `json:"detail,omitempty"`
	_        struct{}
}

func (ImagePart) contentPart() {}

// DataURL renders the image as an RFC 2397 data URL when inline bytes are
// present, and returns the plain URL otherwise.
func (p ImagePart) DataURL() string {
	if len(p.Data) == 0 {
		return p.URL
	}
	mime := p.MimeType
	if mime == "" {
		mime = "image/png"
	}
	return "data:" + mime + ";base64," + base64.StdEncoding.EncodeToString(p.Data)
}

// AudioPart holds inline audio bytes plus their encoding format (wav, mp3).
type AudioPart struct {
	Data   []byte `json:"data"`
	Format string `json:"format,omitempty"`
	_      struct{}
}

func (AudioPart) contentPart() {}

// VideoPart holds a video, either by URL or as inline bytes.
type VideoPart struct {
	URL      string `json:"url,omitempty"`
	MimeType string `json:"mime_type,omitempty"`
	Data     []byte `json:"data,omitempty"`
	_        struct{}
}

func (VideoPart) contentPart() {}

// DocumentPart holds a document attachment (PDF and friends).
type DocumentPart struct {
	Name     string `json:"name,omitempty"`
	URL      string `json:"url,omitempty"`
	MimeType string `json:"mime_type,omitempty"`
	Data     []byte `json:"data,omitempty"`
	_        struct{}
}

func (DocumentPart) contentPart() {}

// DataURL renders the document as an RFC 2397 data URL when inline bytes are
// present, and returns the plain URL otherwise.
func (p DocumentPart) DataURL() string {
	if len(p.Data) == 0 {
		return p.URL
	}
	mime := p.MimeType
	if mime == "" {
		mime = "application/pdf"
	}
	return "data:" + mime + ";base64," + base64.StdEncoding.EncodeToString(p.Data)
}

// ToolUsePart records a model-initiated tool invocation. Arguments holds the
// exact serialized argument text as produced by the model.
type ToolUsePart struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	Arguments string `json:"arguments"`
	_         struct{}
}

func (ToolUsePart) contentPart() {}

// ToolResultPart carries the outcome of a tool invocation back to the model.
// ToolUseID must reference a ToolUsePart from the same or an earlier turn.
type ToolResultPart struct {
	ToolUseID string `json:"tool_use_id"`
	Content   string `json:"content"`
	IsError   bool   `json:"is_error,omitempty"`
	_         struct{}
}

func (ToolResultPart) contentPart() {}

// MarshalJSON implementations below prepend the wire discriminator so the
// parts round-trip through ContentOrParts.

func marshalWithType(tpe string, v any) ([]byte, error) {
	b, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	return sjson.SetBytes(b, "type", tpe)
}

type imagePart ImagePart

func (p ImagePart) MarshalJSON() ([]byte, error) { return marshalWithType("image", imagePart(p)) }

type audioPart AudioPart

func (p AudioPart) MarshalJSON() ([]byte, error) { return marshalWithType("audio", audioPart(p)) }

type videoPart VideoPart

func (p VideoPart) MarshalJSON() ([]byte, error) { return marshalWithType("video", videoPart(p)) }

type documentPart DocumentPart

func (p DocumentPart) MarshalJSON() ([]byte, error) {
	return marshalWithType("document", documentPart(p))
}

type toolUsePart ToolUsePart

func (p ToolUsePart) MarshalJSON() ([]byte, error) {
	return marshalWithType("tool_use", toolUsePart(p))
}

type toolResultPart ToolResultPart

func (p ToolResultPart) MarshalJSON() ([]byte, error) {
	return marshalWithType("tool_result", toolResultPart(p))
}
