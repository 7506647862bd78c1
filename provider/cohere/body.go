package cohere

import (
	"fmt"

	"github.com/casualjim/modelbridge/internal/wire"
	"github.com/casualjim/modelbridge/messages"
	"github.com/casualjim/modelbridge/provider"
	json "github.com/goccy/go-json"
)

func buildBody(req provider.Request) ([]byte, error) {
	body := map[string]any{
		"model": req.Model,
	}

	var msgs []map[string]any
	for _, msg := range req.Messages {
		switch msg.Role {
		case messages.RoleSystem:
			msgs = append(msgs, map[string]any{"role": "system", "content": msg.Content.AsText()})
		case messages.RoleUser:
			msgs = append(msgs, map[string]any{"role": "user", "content": translateUserContent(msg)})
		case messages.RoleAssistant:
			msgs = append(msgs, translateAssistant(msg))
		case messages.RoleTool:
			msgs = append(msgs, translateToolResults(msg)...)
		}
	}
	body["messages"] = msgs

	if req.Temperature != nil {
		body["temperature"] = *req.Temperature
	}
	if req.TopP != nil {
		body["p"] = *req.TopP
	}
	if req.TopK != nil {
		body["k"] = *req.TopK
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
	if req.Seed != nil {
		body["seed"] = *req.Seed
	}
	if len(req.Stop) > 0 {
		body["stop_sequences"] = req.Stop
	}
	if req.ResponseFormat != nil {
		switch req.ResponseFormat.Type {
		case "json":
			body["response_format"] = map[string]any{"type": "json_object"}
		case "json_schema":
			rf := map[string]any{"type": "json_object"}
			if req.ResponseFormat.Schema != nil {
				schema, err := wire.SchemaMap(req.ResponseFormat.Schema)
				if err != nil {
					return nil, fmt.Errorf("response format: %w", err)
				}
				rf["json_schema"] = schema
			}
			body["response_format"] = rf
		}
	}

	if len(req.Tools) > 0 && (req.ToolChoice == nil || req.ToolChoice.Mode != provider.ToolChoiceNone) {
		var tools []any
		for _, td := range req.Tools {
			schema, err := wire.SchemaMap(td.Schema)
			if err != nil {
				return nil, fmt.Errorf("tool %s: %w", td.Name, err)
			}
			tools = append(tools, map[string]any{
				"type": "function",
				"function": map[string]any{
					"name":        td.Name,
					"description": td.Description,
					"parameters":  schema,
				},
			})
		}
		body["tools"] = tools

		if req.ToolChoice != nil {
			switch req.ToolChoice.Mode {
			case provider.ToolChoiceRequired, provider.ToolChoiceNamed:
				body["tool_choice"] = "REQUIRED"
			}
		}
	}

	if req.Stream {
		body["stream"] = true
	}

	raw, err := json.Marshal(body)
	if err != nil {
		return nil, err
	}
	return wire.ApplyExtra(raw, req.Extra)
}

// translateUserContent keeps plain strings as strings and renders parts as
// content items. Cohere accepts text and image_url items on user turns.
func translateUserContent(msg messages.Message) any {
	if len(msg.Content.Parts) == 0 {
		return msg.Content.Content
	}
	var items []any
	for _, part := range msg.Content.Parts {
		switch p := part.(type) {
		case messages.TextPart:
			items = append(items, map[string]any{"type": "text", "text": p.Text})
		case messages.ImagePart:
			items = append(items, map[string]any{
				"type":      "image_url",
				"image_url": map[string]any{"url": p.DataURL()},
			})
		}
	}
	if len(items) == 0 {
		items = append(items, map[string]any{"type": "text", "text": ""})
	}
	return items
}

func translateAssistant(msg messages.Message) map[string]any {
	out := map[string]any{"role": "assistant"}

	var items []any
	if msg.Content.Content != "" {
		items = append(items, map[string]any{"type": "text", "text": msg.Content.Content})
	}
	var toolCalls []any
	for _, part := range msg.Content.Parts {
		switch p := part.(type) {
		case messages.TextPart:
			items = append(items, map[string]any{"type": "text", "text": p.Text})
		case messages.ToolUsePart:
			args := p.Arguments
			if args == "" {
				args = "{}"
			}
			toolCalls = append(toolCalls, map[string]any{
				"id":   p.ID,
				"type": "function",
				"function": map[string]any{
					"name":      p.Name,
					"arguments": args,
				},
			})
		}
	}
	if len(items) > 0 {
		out["content"] = items
	}
	if len(toolCalls) > 0 {
		out["tool_calls"] = toolCalls
	}
	return out
}

// translateToolResults emits one tool message per result item; Cohere keys
// them by tool_call_id.
func translateToolResults(msg messages.Message) []map[string]any {
	var out []map[string]any
	for _, part := range msg.Content.Parts {
		tr, ok := part.(messages.ToolResultPart)
		if !ok {
			continue
		}
		out = append(out, map[string]any{
			"role":         "tool",
			"tool_call_id": tr.ToolUseID,
			"content":      []any{map[string]any{"type": "text", "text": tr.Content}},
		})
	}
	return out
}
