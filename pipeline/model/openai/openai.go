// Package openai adapts the official openai-go SDK to model.ChatModel and
// model.VisionModel.
package openai

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
	"github.com/openai/openai-go/shared"

	"github.com/blackscope/blackscope/pipeline/model"
)

const defaultModel = "gpt-4o"

// ChatModel calls OpenAI chat completions, with tool calling and image input
// support.
type ChatModel struct {
	client    *openai.Client
	modelName string
}

var (
	_ model.ChatModel   = (*ChatModel)(nil)
	_ model.VisionModel = (*ChatModel)(nil)
)

// NewChatModel creates an OpenAI-backed model. An empty modelName selects the
// default.
func NewChatModel(apiKey, modelName string) (*ChatModel, error) {
	if apiKey == "" {
		return nil, errors.New("openai: API key is required")
	}
	if modelName == "" {
		modelName = defaultModel
	}

	client := openai.NewClient(option.WithAPIKey(apiKey))
	return &ChatModel{client: &client, modelName: modelName}, nil
}

// Chat implements model.ChatModel.
func (m *ChatModel) Chat(ctx context.Context, messages []model.Message, tools []model.ToolSpec) (model.ChatOut, error) {
	if err := ctx.Err(); err != nil {
		return model.ChatOut{}, err
	}

	params := openai.ChatCompletionNewParams{
		Model:    shared.ChatModel(m.modelName),
		Messages: convertMessages(messages),
	}
	for _, spec := range tools {
		params.Tools = append(params.Tools, openai.ChatCompletionToolParam{
			Function: openai.FunctionDefinitionParam{
				Name:        spec.Name,
				Description: openai.String(spec.Description),
				Parameters:  shared.FunctionParameters(spec.Schema),
			},
		})
	}

	completion, err := m.client.Chat.Completions.New(ctx, params)
	if err != nil {
		return model.ChatOut{}, fmt.Errorf("openai chat completion: %w", err)
	}
	if len(completion.Choices) == 0 {
		return model.ChatOut{}, errors.New("openai: empty completion")
	}

	choice := completion.Choices[0].Message
	out := model.ChatOut{Text: choice.Content}
	for _, toolCall := range choice.ToolCalls {
		input := map[string]any{}
		if args := toolCall.Function.Arguments; args != "" {
			if err := json.Unmarshal([]byte(args), &input); err != nil {
				return model.ChatOut{}, fmt.Errorf("openai: decode arguments for tool %s: %w", toolCall.Function.Name, err)
			}
		}
		out.ToolCalls = append(out.ToolCalls, model.ToolCall{
			Name:  toolCall.Function.Name,
			Input: input,
		})
	}
	return out, nil
}

// AnalyzeImage implements model.VisionModel. The screenshot is sent inline as
// a base64 data URL.
func (m *ChatModel) AnalyzeImage(ctx context.Context, prompt string, png []byte) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}

	dataURL := "data:image/png;base64," + base64.StdEncoding.EncodeToString(png)
	completion, err := m.client.Chat.Completions.New(ctx, openai.ChatCompletionNewParams{
		Model: shared.ChatModel(m.modelName),
		Messages: []openai.ChatCompletionMessageParamUnion{
			{
				OfUser: &openai.ChatCompletionUserMessageParam{
					Content: openai.ChatCompletionUserMessageParamContentUnion{
						OfArrayOfContentParts: []openai.ChatCompletionContentPartUnionParam{
							{
								OfText: &openai.ChatCompletionContentPartTextParam{Text: prompt},
							},
							{
								OfImageURL: &openai.ChatCompletionContentPartImageParam{
									ImageURL: openai.ChatCompletionContentPartImageImageURLParam{URL: dataURL},
								},
							},
						},
					},
				},
			},
		},
	})
	if err != nil {
		return "", fmt.Errorf("openai image analysis: %w", err)
	}
	if len(completion.Choices) == 0 {
		return "", errors.New("openai: empty completion")
	}
	return completion.Choices[0].Message.Content, nil
}

func convertMessages(messages []model.Message) []openai.ChatCompletionMessageParamUnion {
	out := make([]openai.ChatCompletionMessageParamUnion, 0, len(messages))
	for _, msg := range messages {
		switch msg.Role {
		case model.RoleSystem:
			out = append(out, openai.ChatCompletionMessageParamUnion{
				OfSystem: &openai.ChatCompletionSystemMessageParam{
					Content: openai.ChatCompletionSystemMessageParamContentUnion{
						OfString: openai.String(msg.Content),
					},
				},
			})
		case model.RoleAssistant:
			out = append(out, openai.ChatCompletionMessageParamUnion{
				OfAssistant: &openai.ChatCompletionAssistantMessageParam{
					Content: openai.ChatCompletionAssistantMessageParamContentUnion{
						OfString: openai.String(msg.Content),
					},
				},
			})
		default:
			out = append(out, openai.ChatCompletionMessageParamUnion{
				OfUser: &openai.ChatCompletionUserMessageParam{
					Content: openai.ChatCompletionUserMessageParamContentUnion{
						OfString: openai.String(msg.Content),
					},
				},
			})
		}
	}
	return out
}
