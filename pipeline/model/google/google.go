// Package google adapts the generative-ai-go (Gemini) SDK to model.ChatModel
// and model.VisionModel.
package google

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/generative-ai-go/genai"
	"google.golang.org/api/option"

	"github.com/blackscope/blackscope/pipeline/model"
)

const defaultModel = "gemini-1.5-pro"

// ChatModel calls the Gemini API, with function calling and image input
// support. Close releases the underlying client connection.
type ChatModel struct {
	client    *genai.Client
	modelName string
}

var (
	_ model.ChatModel   = (*ChatModel)(nil)
	_ model.VisionModel = (*ChatModel)(nil)
)

// NewChatModel creates a Gemini-backed model. An empty modelName selects the
// default. The context is used only for client construction.
func NewChatModel(ctx context.Context, apiKey, modelName string) (*ChatModel, error) {
	if apiKey == "" {
		return nil, errors.New("google: API key is required")
	}
	if modelName == "" {
		modelName = defaultModel
	}

	client, err := genai.NewClient(ctx, option.WithAPIKey(apiKey))
	if err != nil {
		return nil, fmt.Errorf("google: create client: %w", err)
	}
	return &ChatModel{client: client, modelName: modelName}, nil
}

// Close releases the underlying gRPC connection.
func (m *ChatModel) Close() error {
	return m.client.Close()
}

// Chat implements model.ChatModel. System messages are applied as the model's
// system instruction; the remaining turns are flattened into text parts.
func (m *ChatModel) Chat(ctx context.Context, messages []model.Message, tools []model.ToolSpec) (model.ChatOut, error) {
	if err := ctx.Err(); err != nil {
		return model.ChatOut{}, err
	}

	genModel := m.client.GenerativeModel(m.modelName)
	if len(tools) > 0 {
		genModel.Tools = convertTools(tools)
	}

	var parts []genai.Part
	for _, msg := range messages {
		if msg.Content == "" {
			continue
		}
		if msg.Role == model.RoleSystem {
			genModel.SystemInstruction = &genai.Content{
				Parts: []genai.Part{genai.Text(msg.Content)},
			}
			continue
		}
		parts = append(parts, genai.Text(msg.Content))
	}

	resp, err := genModel.GenerateContent(ctx, parts...)
	if err != nil {
		return model.ChatOut{}, fmt.Errorf("google generate content: %w", err)
	}
	return convertResponse(resp), nil
}

// AnalyzeImage implements model.VisionModel using an inline PNG part.
func (m *ChatModel) AnalyzeImage(ctx context.Context, prompt string, png []byte) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}

	genModel := m.client.GenerativeModel(m.modelName)
	resp, err := genModel.GenerateContent(ctx, genai.Text(prompt), genai.ImageData("png", png))
	if err != nil {
		return "", fmt.Errorf("google image analysis: %w", err)
	}
	return convertResponse(resp).Text, nil
}

func convertTools(tools []model.ToolSpec) []*genai.Tool {
	declarations := make([]*genai.FunctionDeclaration, len(tools))
	for i, spec := range tools {
		declarations[i] = &genai.FunctionDeclaration{
			Name:        spec.Name,
			Description: spec.Description,
			Parameters:  convertSchema(spec.Schema),
		}
	}
	return []*genai.Tool{{FunctionDeclarations: declarations}}
}

// convertSchema maps a JSON schema object to genai.Schema. Only the object,
// property type, and required fields are carried over.
func convertSchema(schema map[string]any) *genai.Schema {
	if schema == nil {
		return nil
	}

	result := &genai.Schema{Type: genai.TypeObject}
	if props, ok := schema["properties"].(map[string]any); ok {
		properties := make(map[string]*genai.Schema, len(props))
		for key, val := range props {
			propMap, ok := val.(map[string]any)
			if !ok {
				continue
			}
			propSchema := &genai.Schema{}
			if typeStr, ok := propMap["type"].(string); ok {
				propSchema.Type = convertType(typeStr)
			}
			if desc, ok := propMap["description"].(string); ok {
				propSchema.Description = desc
			}
			properties[key] = propSchema
		}
		result.Properties = properties
	}
	switch required := schema["required"].(type) {
	case []string:
		result.Required = required
	case []any:
		for _, item := range required {
			if name, ok := item.(string); ok {
				result.Required = append(result.Required, name)
			}
		}
	}
	return result
}

func convertType(typeStr string) genai.Type {
	switch typeStr {
	case "string":
		return genai.TypeString
	case "number":
		return genai.TypeNumber
	case "integer":
		return genai.TypeInteger
	case "boolean":
		return genai.TypeBoolean
	case "array":
		return genai.TypeArray
	case "object":
		return genai.TypeObject
	default:
		return genai.TypeUnspecified
	}
}

func convertResponse(resp *genai.GenerateContentResponse) model.ChatOut {
	var out model.ChatOut
	if len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil {
		return out
	}

	for _, part := range resp.Candidates[0].Content.Parts {
		switch p := part.(type) {
		case genai.Text:
			if out.Text != "" {
				out.Text += "\n"
			}
			out.Text += string(p)
		case genai.FunctionCall:
			out.ToolCalls = append(out.ToolCalls, model.ToolCall{Name: p.Name, Input: p.Args})
		}
	}
	return out
}
