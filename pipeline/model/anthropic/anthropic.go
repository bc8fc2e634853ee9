// Package anthropic adapts the official anthropic-sdk-go to model.ChatModel
// and model.VisionModel.
package anthropic

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"

	"github.com/blackscope/blackscope/pipeline/model"
)

const (
	defaultModel     = "claude-sonnet-4-20250514"
	defaultMaxTokens = 4096
)

// ChatModel calls the Anthropic Messages API, with tool use and image input
// support.
type ChatModel struct {
	client    *anthropic.Client
	modelName string
	maxTokens int64
}

var (
	_ model.ChatModel   = (*ChatModel)(nil)
	_ model.VisionModel = (*ChatModel)(nil)
)

// NewChatModel creates an Anthropic-backed model. An empty modelName selects
// the default.
func NewChatModel(apiKey, modelName string) (*ChatModel, error) {
	if apiKey == "" {
		return nil, errors.New("anthropic: API key is required")
	}
	if modelName == "" {
		modelName = defaultModel
	}

	client := anthropic.NewClient(option.WithAPIKey(apiKey))
	return &ChatModel{client: &client, modelName: modelName, maxTokens: defaultMaxTokens}, nil
}

// Chat implements model.ChatModel. System messages are lifted into the
// request's system field since the Messages API only accepts user and
// assistant turns.
func (m *ChatModel) Chat(ctx context.Context, messages []model.Message, tools []model.ToolSpec) (model.ChatOut, error) {
	if err := ctx.Err(); err != nil {
		return model.ChatOut{}, err
	}

	conversation, system := convertMessages(messages)
	params := anthropic.MessageNewParams{
		Model:     anthropic.Model(m.modelName),
		MaxTokens: m.maxTokens,
		Messages:  conversation,
	}
	if len(system) > 0 {
		params.System = system
	}
	for _, spec := range tools {
		params.Tools = append(params.Tools, anthropic.ToolUnionParam{
			OfTool: &anthropic.ToolParam{
				Name:        spec.Name,
				Description: anthropic.String(spec.Description),
				InputSchema: toolInputSchema(spec.Schema),
			},
		})
	}

	message, err := m.client.Messages.New(ctx, params)
	if err != nil {
		return model.ChatOut{}, fmt.Errorf("anthropic message: %w", err)
	}

	var out model.ChatOut
	for _, content := range message.Content {
		switch block := content.AsAny().(type) {
		case anthropic.TextBlock:
			out.Text += block.Text
		case anthropic.ToolUseBlock:
			input := map[string]any{}
			if len(block.Input) > 0 {
				if err := json.Unmarshal(block.Input, &input); err != nil {
					return model.ChatOut{}, fmt.Errorf("anthropic: decode input for tool %s: %w", block.Name, err)
				}
			}
			out.ToolCalls = append(out.ToolCalls, model.ToolCall{Name: block.Name, Input: input})
		}
	}
	return out, nil
}

// AnalyzeImage implements model.VisionModel using a base64 image block.
func (m *ChatModel) AnalyzeImage(ctx context.Context, prompt string, png []byte) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}

	message, err := m.client.Messages.New(ctx, anthropic.MessageNewParams{
		Model:     anthropic.Model(m.modelName),
		MaxTokens: m.maxTokens,
		Messages: []anthropic.MessageParam{
			anthropic.NewUserMessage(
				anthropic.NewImageBlockBase64("image/png", base64.StdEncoding.EncodeToString(png)),
				anthropic.NewTextBlock(prompt),
			),
		},
	})
	if err != nil {
		return "", fmt.Errorf("anthropic image analysis: %w", err)
	}

	var text string
	for _, content := range message.Content {
		if block, ok := content.AsAny().(anthropic.TextBlock); ok {
			text += block.Text
		}
	}
	return text, nil
}

func convertMessages(messages []model.Message) ([]anthropic.MessageParam, []anthropic.TextBlockParam) {
	conversation := make([]anthropic.MessageParam, 0, len(messages))
	var system []anthropic.TextBlockParam
	for _, msg := range messages {
		switch msg.Role {
		case model.RoleSystem:
			system = append(system, anthropic.TextBlockParam{Text: msg.Content})
		case model.RoleAssistant:
			conversation = append(conversation, anthropic.NewAssistantMessage(anthropic.NewTextBlock(msg.Content)))
		default:
			conversation = append(conversation, anthropic.NewUserMessage(anthropic.NewTextBlock(msg.Content)))
		}
	}
	return conversation, system
}

func toolInputSchema(schema map[string]any) anthropic.ToolInputSchemaParam {
	var out anthropic.ToolInputSchemaParam
	if props, ok := schema["properties"]; ok {
		out.Properties = props
	}
	if raw, ok := schema["required"].([]string); ok {
		out.Required = raw
	} else if raw, ok := schema["required"].([]any); ok {
		for _, item := range raw {
			if name, ok := item.(string); ok {
				out.Required = append(out.Required, name)
			}
		}
	}
	return out
}
