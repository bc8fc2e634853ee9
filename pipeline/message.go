// Package pipeline provides the core execution engine for Blackscope:
// a fixed, dependency-gated sequence of evaluation nodes that runs against
// one target URL, streaming progress messages while each node produces a
// single typed terminal value recorded for downstream nodes.
package pipeline

import "time"

// Source identifies who produced a Message.
type Source string

// Message sources.
const (
	// SourceAgent marks messages produced by an evaluation node.
	SourceAgent Source = "agent"

	// SourceOrchestrator marks messages produced by the orchestrator itself:
	// run-boundary state transitions and the opaque notice emitted when a
	// node fails with an uncategorized error.
	SourceOrchestrator Source = "orchestrator"
)

// MessageType discriminates the payload carried by a Message.
type MessageType string

// Message types.
const (
	TypeEvaluation          MessageType = "evaluation"
	TypeState               MessageType = "state"
	TypeFeedback            MessageType = "feedback"
	TypeTestScenarios       MessageType = "test_scenarios"
	TypeMetrics             MessageType = "metrics"
	TypeTestExecutionReport MessageType = "test_execution_report"
)

// Level grades the severity of a Message.
type Level string

// Message severity levels, from informational to malicious finding.
const (
	LevelInfo          Level = "info"
	LevelImprovement   Level = "improvement"
	LevelWarning       Level = "warning"
	LevelError         Level = "error"
	LevelBug           Level = "bug"
	LevelVulnerability Level = "vulnerability"
	LevelMalicious     Level = "malicious"
	LevelSuccess       Level = "success"
)

// Message is one self-describing progress record streamed to the consumer.
//
// Messages are independent: each one can be serialized (e.g. as one
// newline-delimited JSON record) with no cross-record state required to
// interpret it. A Message is immutable once emitted; the only field the
// orchestrator may fill in after emission is the node attribution, and only
// when the producing node left it empty (first writer wins).
type Message struct {
	// NodeID is the identifier of the node that produced this message.
	// Nodes may leave it empty; the orchestrator back-fills it during relay.
	NodeID string `json:"agent_id,omitempty"`

	// NodeTitle is the human-readable name of the producing node.
	NodeTitle string `json:"agent_name,omitempty"`

	// ScenarioID and ScenarioName attribute the message to one generated
	// test scenario, when applicable.
	ScenarioID   string `json:"scenario_id,omitempty"`
	ScenarioName string `json:"scenario_name,omitempty"`

	// Text is the free-text content shown to the consumer.
	Text string `json:"message"`

	Source Source      `json:"source"`
	Type   MessageType `json:"type"`
	Level  Level       `json:"level"`

	// Details carries an optional structured payload: StateDetails for state
	// messages, MetricsList for metrics messages, scenario lists and
	// execution reports for the QA nodes.
	Details any `json:"details,omitempty"`

	Timestamp time.Time `json:"timestamp"`
}

// StateDetails is the structured payload of orchestrator state messages.
type StateDetails struct {
	NodeID       string `json:"agent_id,omitempty"`
	NodeTitle    string `json:"agent_name,omitempty"`
	ScenarioID   string `json:"scenario_id,omitempty"`
	ScenarioName string `json:"scenario_name,omitempty"`
	IsEndState   bool   `json:"is_end_state"`
}

// Metric is one scored evaluation dimension reported by a node.
type Metric struct {
	Name         string   `json:"name"`
	Score        *int     `json:"score,omitempty"`
	Feedback     string   `json:"feedback,omitempty"`
	Issues       []string `json:"issues,omitempty"`
	Improvements []string `json:"improvements,omitempty"`
}

// MetricsList groups related metrics with an aggregate score and feedback.
type MetricsList struct {
	Name     string   `json:"name,omitempty"`
	Metrics  []Metric `json:"metrics"`
	Feedback string   `json:"feedback,omitempty"`
	Score    *int     `json:"score,omitempty"`
}

// NewMessage builds an agent evaluation message at the given level.
func NewMessage(level Level, text string) Message {
	return Message{
		Text:      text,
		Source:    SourceAgent,
		Type:      TypeEvaluation,
		Level:     level,
		Timestamp: time.Now().UTC(),
	}
}

// Info is shorthand for an info-level evaluation message.
func Info(text string) Message { return NewMessage(LevelInfo, text) }

// StateMessage builds an orchestrator state message.
func StateMessage(text string, details StateDetails) Message {
	return Message{
		NodeID:    details.NodeID,
		NodeTitle: details.NodeTitle,
		Text:      text,
		Source:    SourceOrchestrator,
		Type:      TypeState,
		Level:     LevelInfo,
		Details:   details,
		Timestamp: time.Now().UTC(),
	}
}

// MetricsMessage builds an agent metrics message carrying a MetricsList.
func MetricsMessage(text string, list MetricsList) Message {
	m := NewMessage(LevelInfo, text)
	m.Type = TypeMetrics
	m.Details = list
	return m
}

// ScenariosMessage builds the agent message carrying generated test
// scenarios as its structured payload.
func ScenariosMessage(text string, details any) Message {
	m := NewMessage(LevelSuccess, text)
	m.Type = TypeTestScenarios
	m.Details = details
	return m
}

// ExecutionReportMessage builds the agent message carrying a test execution
// report as its structured payload.
func ExecutionReportMessage(text string, details any) Message {
	m := NewMessage(LevelInfo, text)
	m.Type = TypeTestExecutionReport
	m.Details = details
	return m
}

// IntPtr returns a pointer to v, for optional Metric scores.
func IntPtr(v int) *int { return &v }
