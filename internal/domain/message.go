package domain

// Message roles. Sessions store only user and assistant messages; system and
// tool roles appear in the provider protocol during a single query.
const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
	RoleSystem    = "system"
	RoleTool      = "tool"
)

// Message is one turn of a conversation. ToolCalls is set on assistant
// messages that request a tool invocation; ToolCallID and ToolName are set on
// tool-result messages.
type Message struct {
	Role       string     `json:"role"`
	Content    string     `json:"content"`
	ToolCalls  []ToolCall `json:"tool_calls,omitempty"`
	ToolCallID string     `json:"tool_call_id,omitempty"`
	ToolName   string     `json:"tool_name,omitempty"`
}
