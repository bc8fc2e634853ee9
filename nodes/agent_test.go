package nodes

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/blackscope/blackscope/pipeline"
	"github.com/blackscope/blackscope/pipeline/model"
	"github.com/blackscope/blackscope/pipeline/tool"
)

func TestRunToolAgent(t *testing.T) {
	t.Run("direct answer", func(t *testing.T) {
		mock := &model.MockChatModel{Responses: []model.ChatOut{{Text: "done"}}}
		got, err := runToolAgent(context.Background(), mock, nil, "system", "prompt")
		if err != nil {
			t.Fatal(err)
		}
		if got != "done" {
			t.Errorf("got %q", got)
		}
		if len(mock.Calls) != 1 {
			t.Fatalf("calls = %d", len(mock.Calls))
		}
		msgs := mock.Calls[0].Messages
		if msgs[0].Role != model.RoleSystem || msgs[0].Content != "system" {
			t.Errorf("system turn = %+v", msgs[0])
		}
		if msgs[1].Role != model.RoleUser || msgs[1].Content != "prompt" {
			t.Errorf("user turn = %+v", msgs[1])
		}
	})

	t.Run("tool call round trip", func(t *testing.T) {
		mock := &model.MockChatModel{Responses: []model.ChatOut{
			{ToolCalls: []model.ToolCall{{Name: "current_url"}}},
			{Text: "the page is https://example.com/"},
		}}
		tools := tool.BrowserTools(&fakeBrowser{url: "https://example.com/"})

		got, err := runToolAgent(context.Background(), mock, tools, "system", "where are we?")
		if err != nil {
			t.Fatal(err)
		}
		if got != "the page is https://example.com/" {
			t.Errorf("got %q", got)
		}

		second := mock.Calls[1].Messages
		last := second[len(second)-1]
		if last.Role != model.RoleUser || !strings.Contains(last.Content, "Tool current_url returned:") {
			t.Errorf("tool result turn = %+v", last)
		}
		if !strings.Contains(last.Content, "https://example.com/") {
			t.Errorf("tool result missing payload: %q", last.Content)
		}
	})

	t.Run("unknown tool reported back", func(t *testing.T) {
		mock := &model.MockChatModel{Responses: []model.ChatOut{
			{ToolCalls: []model.ToolCall{{Name: "teleport"}}},
			{Text: "ok"},
		}}
		if _, err := runToolAgent(context.Background(), mock, nil, "s", "p"); err != nil {
			t.Fatal(err)
		}
		second := mock.Calls[1].Messages
		last := second[len(second)-1]
		if last.Content != "Tool teleport does not exist." {
			t.Errorf("got %q", last.Content)
		}
	})

	t.Run("tool failure reported back", func(t *testing.T) {
		mock := &model.MockChatModel{Responses: []model.ChatOut{
			{ToolCalls: []model.ToolCall{{Name: "navigate", Input: map[string]any{}}}},
			{Text: "ok"},
		}}
		tools := tool.BrowserTools(&fakeBrowser{})
		if _, err := runToolAgent(context.Background(), mock, tools, "s", "p"); err != nil {
			t.Fatal(err)
		}
		second := mock.Calls[1].Messages
		last := second[len(second)-1]
		if !strings.HasPrefix(last.Content, "Tool navigate failed:") {
			t.Errorf("got %q", last.Content)
		}
	})

	t.Run("step bound returns last text", func(t *testing.T) {
		// The mock repeats its last response, so the agent keeps calling the
		// tool until the step budget runs out.
		mock := &model.MockChatModel{Responses: []model.ChatOut{
			{Text: "still looking", ToolCalls: []model.ToolCall{{Name: "current_url"}}},
		}}
		tools := tool.BrowserTools(&fakeBrowser{url: "https://example.com/"})

		got, err := runToolAgent(context.Background(), mock, tools, "s", "p")
		if err != nil {
			t.Fatal(err)
		}
		if got != "still looking" {
			t.Errorf("got %q", got)
		}
		if len(mock.Calls) != maxAgentSteps {
			t.Errorf("calls = %d, want %d", len(mock.Calls), maxAgentSteps)
		}
	})

	t.Run("step bound without any text is an error", func(t *testing.T) {
		mock := &model.MockChatModel{Responses: []model.ChatOut{
			{ToolCalls: []model.ToolCall{{Name: "current_url"}}},
		}}
		tools := tool.BrowserTools(&fakeBrowser{})
		if _, err := runToolAgent(context.Background(), mock, tools, "s", "p"); err == nil {
			t.Fatal("expected an error when the agent never answers")
		}
	})

	t.Run("model error propagates", func(t *testing.T) {
		mock := &model.MockChatModel{Err: errors.New("rate limited")}
		if _, err := runToolAgent(context.Background(), mock, nil, "s", "p"); err == nil {
			t.Fatal("expected the model error")
		}
	})
}

func TestParseStructured(t *testing.T) {
	type payload struct {
		Count int `json:"count"`
	}

	t.Run("plain json", func(t *testing.T) {
		mock := &model.MockChatModel{Responses: []model.ChatOut{{Text: `{"count": 3}`}}}
		got, err := parseStructured[payload](context.Background(), mock, "format this")
		if err != nil {
			t.Fatal(err)
		}
		if got.Count != 3 {
			t.Errorf("got %+v", got)
		}
	})

	t.Run("fenced json", func(t *testing.T) {
		mock := &model.MockChatModel{Responses: []model.ChatOut{{Text: "```json\n{\"count\": 7}\n```"}}}
		got, err := parseStructured[payload](context.Background(), mock, "format this")
		if err != nil {
			t.Fatal(err)
		}
		if got.Count != 7 {
			t.Errorf("got %+v", got)
		}
	})

	t.Run("unparsable output is an assertion failure", func(t *testing.T) {
		mock := &model.MockChatModel{Responses: []model.ChatOut{{Text: "I cannot do that"}}}
		_, err := parseStructured[payload](context.Background(), mock, "format this")
		if !pipeline.IsAssertionFailure(err) {
			t.Fatalf("expected an assertion failure, got %v", err)
		}
	})
}

func TestStripCodeFence(t *testing.T) {
	cases := []struct {
		in, want string
	}{
		{`{"a":1}`, `{"a":1}`},
		{"```json\n{\"a\":1}\n```", `{"a":1}`},
		{"```\n{\"a\":1}\n```", `{"a":1}`},
		{"  {\"a\":1}  ", `{"a":1}`},
	}
	for _, tc := range cases {
		if got := stripCodeFence(tc.in); got != tc.want {
			t.Errorf("stripCodeFence(%q) = %q, want %q", tc.in, got, tc.want)
		}
	}
}
