package openai

import (
	"encoding/base64"
	"fmt"
	"strings"

	"github.com/casualjim/modelbridge/internal/wire"
	"github.com/casualjim/modelbridge/messages"
	"github.com/casualjim/modelbridge/provider"
	json "github.com/goccy/go-json"
)

// buildBody serializes the filtered request into the chat-completions shape.
func buildBody(req provider.Request) ([]byte, error) {
	body := map[string]any{
		"model":    req.Model,
		"messages": translateMessages(req.Messages),
	}

	if req.Temperature != nil {
		body["temperature"] = *req.Temperature
	}
	if req.TopP != nil {
		body["top_p"] = *req.TopP
	}
	if req.PresencePenalty != nil {
		body["presence_penalty"] = *req.PresencePenalty
	}
	if req.FrequencyPenalty != nil {
		body["frequency_penalty"] = *req.FrequencyPenalty
	}
	if req.MaxTokens != nil {
		body["max_tokens"] = *req.MaxTokens
	}
	if len(req.Stop) > 0 {
		body["stop"] = req.Stop
	}
	if len(req.LogitBias) > 0 {
		body["logit_bias"] = req.LogitBias
	}
	if req.Seed != nil {
		body["seed"] = *req.Seed
	}
	if req.ServiceTier != "" {
		body["service_tier"] = req.ServiceTier
	}
	if req.Thinking != nil && req.Thinking.Enabled {
		effort := req.Thinking.Effort
		if effort == "" {
			effort = "medium"
		}
		body["reasoning_effort"] = effort
	}

	if len(req.Tools) > 0 {
		tools := make([]any, 0, len(req.Tools))
		for _, td := range req.Tools {
			schema, err := wire.SchemaMap(td.Schema)
			if err != nil {
				return nil, fmt.Errorf("tool %s: %w", td.Name, err)
			}
			fn := map[string]any{"name": td.Name, "parameters": schema}
			if strings.TrimSpace(td.Description) != "" {
				fn["description"] = td.Description
			}
			tools = append(tools, map[string]any{"type": "function", "function": fn})
		}
		body["tools"] = tools
		if req.ParallelToolCalls != nil {
			body["parallel_tool_calls"] = *req.ParallelToolCalls
		}
	}

	if req.ToolChoice != nil && len(req.Tools) > 0 {
		switch req.ToolChoice.Mode {
		case provider.ToolChoiceAuto:
			body["tool_choice"] = "auto"
		case provider.ToolChoiceNone:
			body["tool_choice"] = "none"
		case provider.ToolChoiceRequired:
			body["tool_choice"] = "required"
		case provider.ToolChoiceNamed:
			body["tool_choice"] = map[string]any{
				"type":     "function",
				"function": map[string]any{"name": req.ToolChoice.Name},
			}
		}
	}

	if req.ResponseFormat != nil {
		switch req.ResponseFormat.Type {
		case "json":
			body["response_format"] = map[string]any{"type": "json_object"}
		case "json_schema":
			schema, err := wire.SchemaMap(req.ResponseFormat.Schema)
			if err != nil {
				return nil, fmt.Errorf("response format: %w", err)
			}
			name := req.ResponseFormat.Name
			if name == "" {
				name = "response"
			}
			body["response_format"] = map[string]any{
				"type":        "json_schema",
				"json_schema": map[string]any{"name": name, "schema": schema},
			}
		}
	}

	if req.Stream {
		body["stream"] = true
		body["stream_options"] = map[string]any{"include_usage": true}
	}

	raw, err := json.Marshal(body)
	if err != nil {
		return nil, err
	}
	return wire.ApplyExtra(raw, req.Extra)
}

// translateMessages converts the unified conversation into chat-completions
// message objects, preserving content-part order.
func translateMessages(msgs []messages.Message) []any {
	out := make([]any, 0, len(msgs))
	for _, msg := range msgs {
		switch msg.Role {
		case messages.RoleSystem:
			out = append(out, map[string]any{"role": "system", "content": msg.Content.AsText()})
		case messages.RoleUser:
			out = append(out, translateUser(msg))
		case messages.RoleAssistant:
			out = append(out, translateAssistant(msg))
		case messages.RoleTool:
			for _, part := range msg.Content.Parts {
				if tr, ok := part.(messages.ToolResultPart); ok {
					out = append(out, map[string]any{
						"role":         "tool",
						"tool_call_id": tr.ToolUseID,
						"content":      tr.Content,
					})
				}
			}
		}
	}
	return out
}

func translateUser(msg messages.Message) map[string]any {
	if len(msg.Content.Parts) == 0 {
		return map[string]any{"role": "user", "content": msg.Content.Content}
	}
	parts := make([]any, 0, len(msg.Content.Parts))
	for _, part := range msg.Content.Parts {
		switch p := part.(type) {
		case messages.TextPart:
			parts = append(parts, map[string]any{"type": "text", "text": p.Text})
		case messages.ImagePart:
			img := map[string]any{"url": p.DataURL()}
			if p.Detail != "" {
				img["detail"] = p.Detail
			}
			parts = append(parts, map[string]any{"type": "image_url", "image_url": img})
		case messages.AudioPart:
			parts = append(parts, map[string]any{
				"type": "input_audio",
				"input_audio": map[string]any{
					"data":   base64.StdEncoding.EncodeToString(p.Data),
					"format": p.Format,
				},
			})
		case messages.VideoPart:
			url := p.URL
			if len(p.Data) > 0 {
				mime := p.MimeType
				if mime == "" {
					mime = "video/mp4"
				}
				url = "data:" + mime + ";base64," + base64.StdEncoding.EncodeToString(p.Data)
			}
			parts = append(parts, map[string]any{"type": "video_url", "video_url": map[string]any{"url": url}})
		case messages.DocumentPart:
			parts = append(parts, map[string]any{
				"type": "file",
				"file": map[string]any{
					"filename":  p.Name,
					"file_data": base64.StdEncoding.EncodeToString(p.Data),
				},
			})
		}
	}
	return map[string]any{"role": "user", "content": parts}
}

func translateAssistant(msg messages.Message) map[string]any {
	out := map[string]any{"role": "assistant"}
	var text strings.Builder
	var toolCalls []any
	if msg.Content.Content != "" {
		text.WriteString(msg.Content.Content)
	}
	for _, part := range msg.Content.Parts {
		switch p := part.(type) {
		case messages.TextPart:
			text.WriteString(p.Text)
		case messages.ToolUsePart:
			toolCalls = append(toolCalls, map[string]any{
				"id":   p.ID,
				"type": "function",
				"function": map[string]any{
					"name":      p.Name,
					"arguments": p.Arguments,
				},
			})
		}
	}
	if text.Len() > 0 || len(toolCalls) == 0 {
		out["content"] = text.String()
	}
	if len(toolCalls) > 0 {
		out["tool_calls"] = toolCalls
	}
	return out
}
