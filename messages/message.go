package messages

import (
	"fmt"

	"github.com/go-openapi/strfmt"
)

// Role identifies the author of a message.
type Role string

const (
	RoleSystem    Role = "system"
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
	RoleTool      Role = "tool"
)

// Message is one turn in a conversation.
type Message struct {
	Role      Role            `json:"role"`
	Content   ContentOrParts  `json:"content"`
	Sender    string          `json:"sender,omitempty"`
	Timestamp strfmt.DateTime `json:"timestamp,omitempty"`
	_         struct{}
}

// System returns a system message with the provided text.
func System(content string) Message {
	return Message{Role: RoleSystem, Content: Text(content)}
}

// User returns a user message with the provided text.
func User(content string) Message {
	return Message{Role: RoleUser, Content: Text(content)}
}

// UserParts returns a user message holding the provided parts in order.
func UserParts(parts ...ContentPart) Message {
	return Message{Role: RoleUser, Content: Of(parts...)}
}

// Assistant returns an assistant message with the provided text.
func Assistant(content string) Message {
	return Message{Role: RoleAssistant, Content: Text(content)}
}

// ToolUse returns an assistant message recording a tool invocation.
func ToolUse(id, name, arguments string) Message {
	return Message{Role: RoleAssistant, Content: Of(ToolUsePart{ID: id, Name: name, Arguments: arguments})}
}

// ToolResult returns a tool message carrying the result for a prior call.
func ToolResult(toolUseID, content string) Message {
	return Message{Role: RoleTool, Content: Of(ToolResultPart{ToolUseID: toolUseID, Content: content})}
}

// Validate checks the cross-message invariants of a conversation: every
// tool_result part must reference a tool_use id seen in the same or an
// earlier message.
func Validate(msgs []Message) error {
	seen := make(map[string]struct{})
	for i, msg := range msgs {
		for _, part := range msg.Content.Parts {
			switch p := part.(type) {
			case ToolUsePart:
				seen[p.ID] = struct{}{}
			case ToolResultPart:
				if _, ok := seen[p.ToolUseID]; !ok {
					return fmt.Errorf("message %d: tool_result references unknown tool_use id %q", i, p.ToolUseID)
				}
			}
		}
	}
	return nil
}
