package gemini

import (
	"encoding/base64"
	"fmt"

	"github.com/casualjim/modelbridge/internal/wire"
	"github.com/casualjim/modelbridge/messages"
	"github.com/casualjim/modelbridge/provider"
	json "github.com/goccy/go-json"
	"github.com/tidwall/gjson"
)

func buildBody(req provider.Request) ([]byte, error) {
	body := map[string]any{}

	var systemParts []any
	var contents []any

	// Gemini correlates tool results by function name, not call id; build the
	// reverse mapping from prior assistant turns.
	idToName := make(map[string]string)
	for _, msg := range req.Messages {
		if msg.Role != messages.RoleAssistant {
			continue
		}
		for _, part := range msg.Content.Parts {
			if tu, ok := part.(messages.ToolUsePart); ok {
				idToName[tu.ID] = tu.Name
			}
		}
	}

	for _, msg := range req.Messages {
		switch msg.Role {
		case messages.RoleSystem:
			systemParts = append(systemParts, map[string]any{"text": msg.Content.AsText()})
		case messages.RoleUser:
			contents = append(contents, map[string]any{"role": "user", "parts": translateUserParts(msg)})
		case messages.RoleAssistant:
			contents = append(contents, map[string]any{"role": "model", "parts": translateAssistantParts(msg)})
		case messages.RoleTool:
			contents = append(contents, map[string]any{"role": "user", "parts": translateToolParts(msg, idToName)})
		}
	}

	if len(systemParts) > 0 {
		body["systemInstruction"] = map[string]any{"parts": systemParts}
	}
	if len(contents) > 0 {
		body["contents"] = contents
	}

	genConfig := map[string]any{}
	if req.Temperature != nil {
		genConfig["temperature"] = *req.Temperature
	}
	if req.TopP != nil {
		genConfig["topP"] = *req.TopP
	}
	if req.TopK != nil {
		genConfig["topK"] = *req.TopK
	}
	if req.PresencePenalty != nil {
		genConfig["presencePenalty"] = *req.PresencePenalty
	}
	if req.FrequencyPenalty != nil {
		genConfig["frequencyPenalty"] = *req.FrequencyPenalty
	}
	if req.MaxTokens != nil {
		genConfig["maxOutputTokens"] = *req.MaxTokens
	}
	if req.Seed != nil {
		genConfig["seed"] = *req.Seed
	}
	if len(req.Stop) > 0 {
		genConfig["stopSequences"] = req.Stop
	}
	if req.ResponseFormat != nil {
		switch req.ResponseFormat.Type {
		case "json", "json_schema":
			genConfig["responseMimeType"] = "application/json"
			if req.ResponseFormat.Schema != nil {
				schema, err := wire.SchemaMap(req.ResponseFormat.Schema)
				if err != nil {
					return nil, fmt.Errorf("response format: %w", err)
				}
				genConfig["responseSchema"] = schema
			}
		}
	}
	if req.Thinking != nil && req.Thinking.Enabled {
		thinking := map[string]any{"includeThoughts": true}
		if req.Thinking.BudgetTokens > 0 {
			thinking["thinkingBudget"] = req.Thinking.BudgetTokens
		}
		genConfig["thinkingConfig"] = thinking
	}
	if len(genConfig) > 0 {
		body["generationConfig"] = genConfig
	}

	var tools []any
	if len(req.Tools) > 0 && (req.ToolChoice == nil || req.ToolChoice.Mode != provider.ToolChoiceNone) {
		var funcDecls []any
		for _, td := range req.Tools {
			schema, err := wire.SchemaMap(td.Schema)
			if err != nil {
				return nil, fmt.Errorf("tool %s: %w", td.Name, err)
			}
			funcDecls = append(funcDecls, map[string]any{
				"name":        td.Name,
				"description": td.Description,
				"parameters":  schema,
			})
		}
		tools = append(tools, map[string]any{"functionDeclarations": funcDecls})
	}
	if req.WebSearch {
		tools = append(tools, map[string]any{"googleSearch": map[string]any{}})
	}
	if len(tools) > 0 {
		body["tools"] = tools
	}

	if req.ToolChoice != nil && len(req.Tools) > 0 {
		if tc := translateToolChoice(req.ToolChoice); tc != nil {
			body["toolConfig"] = map[string]any{"functionCallingConfig": tc}
		}
	}

	raw, err := json.Marshal(body)
	if err != nil {
		return nil, err
	}
	return wire.ApplyExtra(raw, req.Extra)
}

func translateUserParts(msg messages.Message) []any {
	if len(msg.Content.Parts) == 0 {
		return []any{map[string]any{"text": msg.Content.Content}}
	}
	var parts []any
	for _, part := range msg.Content.Parts {
		switch p := part.(type) {
		case messages.TextPart:
			parts = append(parts, map[string]any{"text": p.Text})
		case messages.ImagePart:
			parts = append(parts, mediaPart(p.URL, p.MimeType, p.Data, "image/png"))
		case messages.AudioPart:
			mime := "audio/" + p.Format
			if p.Format == "" {
				mime = "audio/wav"
			}
			parts = append(parts, mediaPart("", mime, p.Data, mime))
		case messages.VideoPart:
			parts = append(parts, mediaPart(p.URL, p.MimeType, p.Data, "video/mp4"))
		case messages.DocumentPart:
			parts = append(parts, mediaPart(p.URL, p.MimeType, p.Data, "application/pdf"))
		}
	}
	if len(parts) == 0 {
		parts = append(parts, map[string]any{"text": ""})
	}
	return parts
}

// mediaPart renders fileData for URLs and inlineData for raw bytes.
func mediaPart(url, mimeType string, data []byte, fallbackMime string) map[string]any {
	if mimeType == "" {
		mimeType = fallbackMime
	}
	if url != "" {
		return map[string]any{"fileData": map[string]any{"mimeType": mimeType, "fileUri": url}}
	}
	return map[string]any{"inlineData": map[string]any{"mimeType": mimeType, "data": base64.StdEncoding.EncodeToString(data)}}
}

func translateAssistantParts(msg messages.Message) []any {
	var parts []any
	if msg.Content.Content != "" {
		parts = append(parts, map[string]any{"text": msg.Content.Content})
	}
	for _, part := range msg.Content.Parts {
		switch p := part.(type) {
		case messages.TextPart:
			parts = append(parts, map[string]any{"text": p.Text})
		case messages.ToolUsePart:
			var args any = map[string]any{}
			if gjson.Valid(p.Arguments) {
				_ = json.Unmarshal([]byte(p.Arguments), &args)
			}
			parts = append(parts, map[string]any{
				"functionCall": map[string]any{"name": p.Name, "args": args},
			})
		}
	}
	if len(parts) == 0 {
		parts = append(parts, map[string]any{"text": ""})
	}
	return parts
}

func translateToolParts(msg messages.Message, idToName map[string]string) []any {
	var parts []any
	for _, part := range msg.Content.Parts {
		tr, ok := part.(messages.ToolResultPart)
		if !ok {
			continue
		}
		funcName := idToName[tr.ToolUseID]
		if funcName == "" {
			funcName = tr.ToolUseID
		}

		// Gemini requires the response to be an object; wrap scalars.
		var responseObj any
		var parsed any
		if err := json.Unmarshal([]byte(tr.Content), &parsed); err == nil {
			if _, isMap := parsed.(map[string]any); isMap {
				responseObj = parsed
			} else {
				responseObj = map[string]any{"result": parsed}
			}
		} else {
			responseObj = map[string]any{"result": tr.Content}
		}

		parts = append(parts, map[string]any{
			"functionResponse": map[string]any{"name": funcName, "response": responseObj},
		})
	}
	return parts
}

func translateToolChoice(tc *provider.ToolChoice) any {
	switch tc.Mode {
	case provider.ToolChoiceAuto:
		return map[string]any{"mode": "AUTO"}
	case provider.ToolChoiceNone:
		return map[string]any{"mode": "NONE"}
	case provider.ToolChoiceRequired:
		return map[string]any{"mode": "ANY"}
	case provider.ToolChoiceNamed:
		return map[string]any{"mode": "ANY", "allowedFunctionNames": []string{tc.Name}}
	}
	return nil
}
