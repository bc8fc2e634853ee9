package nodes

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/blackscope/blackscope/pipeline"
	"github.com/blackscope/blackscope/pipeline/model"
	"github.com/blackscope/blackscope/pipeline/tool"
)

// maxAgentSteps bounds the tool-calling loop so a confused model cannot spin
// a run forever.
const maxAgentSteps = 12

// runToolAgent drives a chat model through a bounded tool-calling loop.
// Tool results are fed back as user turns, which keeps the loop provider
// agnostic. It returns the model's final free-text answer.
func runToolAgent(ctx context.Context, chat model.ChatModel, tools []tool.Tool, system, prompt string) (string, error) {
	specs := tool.Specs(tools)
	byName := tool.ByName(tools)
	messages := []model.Message{
		{Role: model.RoleSystem, Content: system},
		{Role: model.RoleUser, Content: prompt},
	}

	lastText := ""
	for step := 0; step < maxAgentSteps; step++ {
		if err := ctx.Err(); err != nil {
			return "", err
		}
		out, err := chat.Chat(ctx, messages, specs)
		if err != nil {
			return "", err
		}
		if out.Text != "" {
			lastText = out.Text
		}
		if len(out.ToolCalls) == 0 {
			return out.Text, nil
		}

		if out.Text != "" {
			messages = append(messages, model.Message{Role: model.RoleAssistant, Content: out.Text})
		}
		for _, call := range out.ToolCalls {
			messages = append(messages, model.Message{
				Role:    model.RoleUser,
				Content: executeToolCall(ctx, byName, call),
			})
		}
	}
	if lastText != "" {
		return lastText, nil
	}
	return "", fmt.Errorf("agent did not produce an answer within %d steps", maxAgentSteps)
}

func executeToolCall(ctx context.Context, byName map[string]tool.Tool, call model.ToolCall) string {
	t, ok := byName[call.Name]
	if !ok {
		return fmt.Sprintf("Tool %s does not exist.", call.Name)
	}
	result, err := t.Call(ctx, call.Input)
	if err != nil {
		return fmt.Sprintf("Tool %s failed: %v", call.Name, err)
	}
	encoded, err := json.Marshal(result)
	if err != nil {
		return fmt.Sprintf("Tool %s returned an unencodable result: %v", call.Name, err)
	}
	return fmt.Sprintf("Tool %s returned: %s", call.Name, encoded)
}

// parseStructured asks the model to reformat free text as JSON and decodes it
// into T. An undecodable payload is an assertion failure: the node asked for
// structure and did not get it.
func parseStructured[T any](ctx context.Context, chat model.ChatModel, prompt string) (T, error) {
	var out T
	resp, err := chat.Chat(ctx, []model.Message{{Role: model.RoleUser, Content: prompt}}, nil)
	if err != nil {
		return out, err
	}
	payload := stripCodeFence(resp.Text)
	if err := json.Unmarshal([]byte(payload), &out); err != nil {
		return out, pipeline.NewAssertionFailure("model returned unparsable structured output: %v", err)
	}
	return out, nil
}

// stripCodeFence removes a wrapping markdown code fence, if any.
func stripCodeFence(s string) string {
	s = strings.TrimSpace(s)
	s = strings.TrimPrefix(s, "```json")
	s = strings.TrimPrefix(s, "```")
	s = strings.TrimSuffix(s, "```")
	return strings.TrimSpace(s)
}
