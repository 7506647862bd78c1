package responses

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

	var instructions []string
	var input []any

	for _, msg := range req.Messages {
		switch msg.Role {
		case messages.RoleSystem:
			instructions = append(instructions, msg.Content.AsText())
		case messages.RoleUser:
			input = append(input, map[string]any{
				"role":    "user",
				"content": translateUserParts(msg),
			})
		case messages.RoleAssistant:
			input = append(input, translateAssistantItems(msg)...)
		case messages.RoleTool:
			for _, part := range msg.Content.Parts {
				if tr, ok := part.(messages.ToolResultPart); ok {
					input = append(input, map[string]any{
						"type":    "function_call_output",
						"call_id": tr.ToolUseID,
						"output":  tr.Content,
					})
				}
			}
		}
	}

	if len(instructions) > 0 {
		joined := instructions[0]
		for _, extra := range instructions[1:] {
			joined += "\n\n" + extra
		}
		body["instructions"] = joined
	}
	body["input"] = input

	if req.Temperature != nil {
		body["temperature"] = *req.Temperature
	}
	if req.TopP != nil {
		body["top_p"] = *req.TopP
	}
	if req.MaxTokens != nil {
		body["max_output_tokens"] = *req.MaxTokens
	}
	if req.ServiceTier != "" {
		body["service_tier"] = req.ServiceTier
	}
	if req.ParallelToolCalls != nil {
		body["parallel_tool_calls"] = *req.ParallelToolCalls
	}
	if req.Thinking != nil && req.Thinking.Enabled {
		effort := req.Thinking.Effort
		if effort == "" {
			effort = "medium"
		}
		body["reasoning"] = map[string]any{"effort": effort, "summary": "auto"}
	}
	if req.ResponseFormat != nil {
		switch req.ResponseFormat.Type {
		case "json":
			body["text"] = map[string]any{"format": map[string]any{"type": "json_object"}}
		case "json_schema":
			format := map[string]any{"type": "json_schema", "name": "response", "strict": true}
			if req.ResponseFormat.Schema != nil {
				schema, err := wire.SchemaMap(req.ResponseFormat.Schema)
				if err != nil {
					return nil, fmt.Errorf("response format: %w", err)
				}
				format["schema"] = schema
			}
			body["text"] = map[string]any{"format": format}
		}
	}

	// Tool declarations are flat on this API, not nested under "function".
	var tools []any
	if req.ToolChoice == nil || req.ToolChoice.Mode != provider.ToolChoiceNone {
		for _, td := range req.Tools {
			schema, err := wire.SchemaMap(td.Schema)
			if err != nil {
				return nil, fmt.Errorf("tool %s: %w", td.Name, err)
			}
			tools = append(tools, map[string]any{
				"type":        "function",
				"name":        td.Name,
				"description": td.Description,
				"parameters":  schema,
			})
		}
	}
	if req.WebSearch {
		tools = append(tools, map[string]any{"type": "web_search"})
	}
	if len(tools) > 0 {
		body["tools"] = tools
	}

	if req.ToolChoice != nil && len(tools) > 0 {
		switch req.ToolChoice.Mode {
		case provider.ToolChoiceAuto:
			body["tool_choice"] = "auto"
		case provider.ToolChoiceRequired:
			body["tool_choice"] = "required"
		case provider.ToolChoiceNamed:
			body["tool_choice"] = map[string]any{"type": "function", "name": req.ToolChoice.Name}
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
		return []any{map[string]any{"type": "input_text", "text": msg.Content.Content}}
	}
	var content []any
	for _, part := range msg.Content.Parts {
		switch p := part.(type) {
		case messages.TextPart:
			content = append(content, map[string]any{"type": "input_text", "text": p.Text})
		case messages.ImagePart:
			content = append(content, map[string]any{"type": "input_image", "image_url": p.DataURL()})
		case messages.DocumentPart:
			file := map[string]any{"type": "input_file"}
			if p.URL != "" {
				file["file_url"] = p.URL
			} else {
				file["filename"] = p.Name
				file["file_data"] = p.DataURL()
			}
			content = append(content, file)
		}
	}
	if len(content) == 0 {
		content = append(content, map[string]any{"type": "input_text", "text": ""})
	}
	return content
}

// translateAssistantItems renders one message item for text and one
// function_call item per tool use.
func translateAssistantItems(msg messages.Message) []any {
	var items []any

	var content []any
	if msg.Content.Content != "" {
		content = append(content, map[string]any{"type": "output_text", "text": msg.Content.Content})
	}
	for _, part := range msg.Content.Parts {
		if p, ok := part.(messages.TextPart); ok {
			content = append(content, map[string]any{"type": "output_text", "text": p.Text})
		}
	}
	if len(content) > 0 {
		items = append(items, map[string]any{"role": "assistant", "content": content})
	}

	for _, part := range msg.Content.Parts {
		if p, ok := part.(messages.ToolUsePart); ok {
			args := p.Arguments
			if args == "" {
				args = "{}"
			}
			items = append(items, map[string]any{
				"type":      "function_call",
				"call_id":   p.ID,
				"name":      p.Name,
				"arguments": args,
			})
		}
	}
	return items
}
