package model

import (
	"context"
	"sync"
)

// MockChatModel is a test double for ChatModel and VisionModel. It replays a
// configured sequence of responses (repeating the last one once consumed),
// records every call, and can inject errors.
//
//	mock := &model.MockChatModel{Responses: []model.ChatOut{{Text: "ok"}}}
//	out, _ := mock.Chat(ctx, msgs, nil)
type MockChatModel struct {
	// Responses is the sequence of outputs Chat returns, in order. Once
	// consumed, the last response repeats.
	Responses []ChatOut

	// VisionResponses is the sequence AnalyzeImage returns, same semantics.
	VisionResponses []string

	// Err, when set, is returned by every call instead of a response.
	Err error

	// Calls records every Chat invocation.
	Calls []MockChatCall

	// ImageCalls records every AnalyzeImage prompt.
	ImageCalls []string

	mu          sync.Mutex
	chatIndex   int
	visionIndex int
}

// MockChatCall is one recorded Chat invocation.
type MockChatCall struct {
	Messages []Message
	Tools    []ToolSpec
}

var (
	_ ChatModel   = (*MockChatModel)(nil)
	_ VisionModel = (*MockChatModel)(nil)
)

// Chat implements ChatModel.
func (m *MockChatModel) Chat(ctx context.Context, messages []Message, tools []ToolSpec) (ChatOut, error) {
	if err := ctx.Err(); err != nil {
		return ChatOut{}, err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	m.Calls = append(m.Calls, MockChatCall{Messages: messages, Tools: tools})
	if m.Err != nil {
		return ChatOut{}, m.Err
	}
	if len(m.Responses) == 0 {
		return ChatOut{}, nil
	}

	idx := m.chatIndex
	if idx >= len(m.Responses) {
		idx = len(m.Responses) - 1
	} else {
		m.chatIndex++
	}
	return m.Responses[idx], nil
}

// AnalyzeImage implements VisionModel.
func (m *MockChatModel) AnalyzeImage(ctx context.Context, prompt string, png []byte) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	m.ImageCalls = append(m.ImageCalls, prompt)
	if m.Err != nil {
		return "", m.Err
	}
	if len(m.VisionResponses) == 0 {
		return "", nil
	}

	idx := m.visionIndex
	if idx >= len(m.VisionResponses) {
		idx = len(m.VisionResponses) - 1
	} else {
		m.visionIndex++
	}
	return m.VisionResponses[idx], nil
}
