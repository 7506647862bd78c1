package provider

import (
	"github.com/go-openapi/strfmt"
	"github.com/tidwall/gjson"
)

// FinishReason is the normalized explanation for why generation ended.
type FinishReason string

const (
	FinishStop          FinishReason = "stop"
	FinishLength        FinishReason = "length"
	FinishContentFilter FinishReason = "content_filter"
	FinishToolCalls     FinishReason = "tool_calls"
	FinishEndTurn       FinishReason = "end_turn"
	FinishError         FinishReason = "error"
	FinishOther         FinishReason = "other"
)

// ToolCall is one finalized model-initiated function invocation. Arguments
// holds the exact serialized argument text, reassembled from stream fragments
// in arrival order.
type ToolCall struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	Arguments string `json:"arguments"`
	_         struct{}
}

// Usage carries token accounting. The pointer fields are sub-breakdowns a
// provider may or may not report.
type Usage struct {
	PromptTokens     int  `json:"prompt_tokens"`
	CompletionTokens int  `json:"completion_tokens"`
	TotalTokens      int  `json:"total_tokens"`
	CacheReadTokens  *int `json:"cache_read_tokens,omitempty"`
	CacheWriteTokens *int `json:"cache_write_tokens,omitempty"`
	ReasoningTokens  *int `json:"reasoning_tokens,omitempty"`
	AudioTokens      *int `json:"audio_tokens,omitempty"`
	_                struct{}
}

// IsZero reports whether no counts have been recorded.
func (u Usage) IsZero() bool {
	return u.PromptTokens == 0 && u.CompletionTokens == 0 && u.TotalTokens == 0 &&
		u.CacheReadTokens == nil && u.CacheWriteTokens == nil && u.ReasoningTokens == nil && u.AudioTokens == nil
}

// Annotation is one citation attached to the generated content.
type Annotation struct {
	Type       string `json:"type,omitempty"`
	URL        string `json:"url,omitempty"`
	Title      string `json:"title,omitempty"`
	StartIndex int    `json:"start_index,omitempty"`
	EndIndex   int    `json:"end_index,omitempty"`
	_          struct{}
}

// RateLimit is best-effort rate-limit telemetry lifted from response headers.
type RateLimit struct {
	RequestsRemaining *int `json:"requests_remaining,omitempty"`
	RequestsLimit     *int `json:"requests_limit,omitempty"`
	TokensRemaining   *int `json:"tokens_remaining,omitempty"`
	TokensLimit       *int `json:"tokens_limit,omitempty"`
	_                 struct{}
}

// Response is the unified completion result. It is constructed progressively
// by an Accumulator during streaming and returned as a finished value once
// the stream or single response completes.
type Response struct {
	ID               string          `json:"id,omitempty"`
	Model            string          `json:"model,omitempty"`
	Content          string          `json:"content"`
	ReasoningContent string          `json:"reasoning_content,omitempty"`
	ToolCalls        []ToolCall      `json:"tool_calls,omitempty"`
	Annotations      []Annotation    `json:"annotations,omitempty"`
	Usage            Usage           `json:"usage"`
	FinishReason     FinishReason    `json:"finish_reason,omitempty"`
	IsStream         bool            `json:"is_stream"`
	Timestamp        strfmt.DateTime `json:"timestamp,omitempty"`
	RateLimit        *RateLimit      `json:"rate_limit,omitempty"`

	// Raw retains the terminal provider payload for diagnostics.
	Raw gjson.Result `json:"-"`

	_ struct{}
}
