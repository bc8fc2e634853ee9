// Package model provides LLM integration adapters for the agent-driven
// evaluation nodes.
package model

import "context"

// ChatModel is the unified interface over LLM chat providers (OpenAI,
// Anthropic, Google). Implementations handle provider authentication,
// convert the common message format to the provider's, parse responses back
// to ChatOut, and respect context cancellation.
//
//	m := openai.NewChatModel(apiKey, "gpt-4o")
//	out, err := m.Chat(ctx, []model.Message{{Role: model.RoleUser, Content: "hi"}}, nil)
type ChatModel interface {
	// Chat sends the conversation to the provider. tools, when non-nil,
	// describes functions the model may call; the response then carries
	// either text, tool calls, or both.
	Chat(ctx context.Context, messages []Message, tools []ToolSpec) (ChatOut, error)
}

// VisionModel analyzes one image with a natural-language instruction.
// Vision-capable chat providers implement it alongside ChatModel.
type VisionModel interface {
	// AnalyzeImage sends a PNG image with the prompt and returns the model's
	// textual analysis.
	AnalyzeImage(ctx context.Context, prompt string, png []byte) (string, error)
}

// Message is one turn of an LLM conversation.
type Message struct {
	// Role is one of the Role* constants.
	Role string

	// Content is the message text. May be empty on assistant turns that only
	// carried tool calls.
	Content string
}

// Conversation roles, aligned with the conventions of the major providers.
const (
	RoleSystem    = "system"
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// ToolSpec describes a tool the model may call. Schema follows JSON Schema
// and describes the expected input parameters.
type ToolSpec struct {
	Name        string
	Description string
	Schema      map[string]any
}

// ChatOut is the model's response: generated text, tool invocations, or both.
type ChatOut struct {
	// Text is the generated response. Empty when the model only calls tools.
	Text string

	// ToolCalls are the tools the model wants invoked before it continues.
	ToolCalls []ToolCall
}

// ToolCall is one requested tool invocation. Input matches the ToolSpec
// schema of the named tool.
type ToolCall struct {
	Name  string
	Input map[string]any
}
