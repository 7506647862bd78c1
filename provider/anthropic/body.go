package anthropic

import (
	"encoding/base64"
	"fmt"
	"strings"

	"github.com/casualjim/modelbridge/internal/wire"
	"github.com/casualjim/modelbridge/messages"
	"github.com/casualjim/modelbridge/provider"
	json "github.com/goccy/go-json"
	"github.com/tidwall/gjson"
)

// defaultMaxTokens is applied when the caller sets none; max_tokens is a
// required field on the Messages API.
const defaultMaxTokens = 4096

func buildBody(req provider.Request) ([]byte, error) {
	body := map[string]any{
		"model": req.Model,
	}

	var system []any
	var msgs []map[string]any

	for _, msg := range req.Messages {
		switch msg.Role {
		case messages.RoleSystem:
			system = append(system, map[string]any{"type": "text", "text": msg.Content.AsText()})
		case messages.RoleUser:
			msgs = append(msgs, map[string]any{"role": "user", "content": translateUserParts(msg)})
		case messages.RoleAssistant:
			msgs = append(msgs, map[string]any{"role": "assistant", "content": translateAssistantParts(msg)})
		case messages.RoleTool:
			// Tool results ride in user messages on this API.
			msgs = append(msgs, map[string]any{"role": "user", "content": translateToolParts(msg)})
		}
	}

	if len(system) > 0 {
		body["system"] = system
	}
	// The Messages API requires strict user/assistant alternation.
	body["messages"] = mergeConsecutive(msgs)

	maxTokens := defaultMaxTokens
	if req.MaxTokens != nil {
		maxTokens = *req.MaxTokens
	}
	body["max_tokens"] = maxTokens

	if req.Temperature != nil {
		body["temperature"] = *req.Temperature
	}
	if req.TopP != nil {
		body["top_p"] = *req.TopP
	}
	if req.TopK != nil {
		body["top_k"] = *req.TopK
	}
	if len(req.Stop) > 0 {
		body["stop_sequences"] = req.Stop
	}
	if req.Thinking != nil && req.Thinking.Enabled {
		thinking := map[string]any{"type": "enabled"}
		if req.Thinking.BudgetTokens > 0 {
			thinking["budget_tokens"] = req.Thinking.BudgetTokens
		}
		body["thinking"] = thinking
	}

	var tools []any
	if req.ToolChoice == nil || req.ToolChoice.Mode != provider.ToolChoiceNone {
		for _, td := range req.Tools {
			schema, err := wire.SchemaMap(td.Schema)
			if err != nil {
				return nil, fmt.Errorf("tool %s: %w", td.Name, err)
			}
			tools = append(tools, map[string]any{
				"name":         td.Name,
				"description":  td.Description,
				"input_schema": schema,
			})
		}
	}
	if req.WebSearch {
		tools = append(tools, map[string]any{
			"type": "web_search_20250305",
			"name": "web_search",
		})
	}
	if len(tools) > 0 {
		body["tools"] = tools
	}

	if req.ToolChoice != nil && len(tools) > 0 {
		if tc := translateToolChoice(req.ToolChoice); tc != nil {
			body["tool_choice"] = tc
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

func translateUserParts(msg messages.Message) []any {
	if len(msg.Content.Parts) == 0 {
		return []any{map[string]any{"type": "text", "text": msg.Content.Content}}
	}
	var content []any
	for _, part := range msg.Content.Parts {
		switch p := part.(type) {
		case messages.TextPart:
			content = append(content, map[string]any{"type": "text", "text": p.Text})
		case messages.ImagePart:
			content = append(content, map[string]any{"type": "image", "source": mediaSource(p.URL, p.MimeType, p.Data, "image/png")})
		case messages.DocumentPart:
			content = append(content, map[string]any{"type": "document", "source": mediaSource(p.URL, p.MimeType, p.Data, "application/pdf")})
		}
	}
	if len(content) == 0 {
		content = append(content, map[string]any{"type": "text", "text": ""})
	}
	return content
}

// mediaSource builds the url or base64 source block shared by image and
// document parts.
func mediaSource(url, mimeType string, data []byte, fallbackMime string) map[string]any {
	if url != "" {
		return map[string]any{"type": "url", "url": url}
	}
	if mimeType == "" {
		mimeType = fallbackMime
	}
	return map[string]any{
		"type":       "base64",
		"media_type": mimeType,
		"data":       base64.StdEncoding.EncodeToString(data),
	}
}

func translateAssistantParts(msg messages.Message) []any {
	var content []any
	if strings.TrimSpace(msg.Content.Content) != "" {
		content = append(content, map[string]any{"type": "text", "text": msg.Content.Content})
	}
	for _, part := range msg.Content.Parts {
		switch p := part.(type) {
		case messages.TextPart:
			content = append(content, map[string]any{"type": "text", "text": p.Text})
		case messages.ToolUsePart:
			var input any = map[string]any{}
			if gjson.Valid(p.Arguments) {
				_ = json.Unmarshal([]byte(p.Arguments), &input)
			}
			content = append(content, map[string]any{
				"type":  "tool_use",
				"id":    p.ID,
				"name":  p.Name,
				"input": input,
			})
		}
	}
	if len(content) == 0 {
		content = append(content, map[string]any{"type": "text", "text": ""})
	}
	return content
}

func translateToolParts(msg messages.Message) []any {
	var content []any
	for _, part := range msg.Content.Parts {
		if tr, ok := part.(messages.ToolResultPart); ok {
			block := map[string]any{
				"type":        "tool_result",
				"tool_use_id": tr.ToolUseID,
				"content":     tr.Content,
			}
			if tr.IsError {
				block["is_error"] = true
			}
			content = append(content, block)
		}
	}
	return content
}

// mergeConsecutive collapses adjacent same-role messages into one, so the
// body honors the API's strict alternation rule.
func mergeConsecutive(msgs []map[string]any) []map[string]any {
	if len(msgs) <= 1 {
		return msgs
	}
	var merged []map[string]any
	for _, msg := range msgs {
		if len(merged) > 0 {
			last := merged[len(merged)-1]
			if last["role"] == msg["role"] {
				lastContent, _ := last["content"].([]any)
				msgContent, _ := msg["content"].([]any)
				last["content"] = append(lastContent, msgContent...)
				continue
			}
		}
		merged = append(merged, msg)
	}
	return merged
}

func translateToolChoice(tc *provider.ToolChoice) any {
	switch tc.Mode {
	case provider.ToolChoiceAuto:
		return map[string]any{"type": "auto"}
	case provider.ToolChoiceNone:
		// none omits the tools entirely; handled in buildBody.
		return nil
	case provider.ToolChoiceRequired:
		return map[string]any{"type": "any"}
	case provider.ToolChoiceNamed:
		return map[string]any{"type": "tool", "name": tc.Name}
	}
	return map[string]any{"type": "auto"}
}
