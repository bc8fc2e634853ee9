// Package nodes implements the Blackscope evaluation nodes: reachability and
// browser access checks, HTML structure and compliance analysis, LLM-driven
// test scenario generation and execution, and screenshot-based UI assessment.
//
// Every node is registered under a stable string identifier; the identifiers
// double as the dependency references the orchestrator gates on.
package nodes

import (
	"context"

	"github.com/blackscope/blackscope/pipeline"
	"github.com/blackscope/blackscope/pipeline/model"
)

// Node identifiers.
const (
	AccessCheckName        = "access_check"
	BrowserAccessName      = "browser_access"
	HTMLValidatorName      = "html_validator"
	HTMLComplianceName     = "html_compliance"
	ScenarioGenerationName = "scenario_generation"
	ScenarioExecutionName  = "scenario_execution"
	UIAnalyzerName         = "ui_analyzer"
)

// Deps carries the model handles shared by the LLM-backed nodes. The browser
// and HTTP session travel per-run inside pipeline.RunContext instead.
type Deps struct {
	Chat   model.ChatModel
	Vision model.VisionModel
}

// Registrations returns the full node table for the registry.
func Registrations(deps Deps) []pipeline.Registration {
	return []pipeline.Registration{
		{Name: AccessCheckName, New: func() pipeline.Node { return NewAccessCheck() }},
		{Name: BrowserAccessName, New: func() pipeline.Node { return NewBrowserAccess() }},
		{Name: HTMLValidatorName, New: func() pipeline.Node { return NewHTMLValidator() }},
		{Name: HTMLComplianceName, New: func() pipeline.Node { return NewHTMLCompliance() }},
		{Name: ScenarioGenerationName, New: func() pipeline.Node { return NewScenarioGeneration(deps.Chat) }},
		{Name: ScenarioExecutionName, New: func() pipeline.Node { return NewScenarioExecution(deps.Chat) }},
		{Name: UIAnalyzerName, New: func() pipeline.Node { return NewUIAnalyzer(deps.Chat, deps.Vision) }},
	}
}

// DefaultOrder is the canonical execution order of a full evaluation run.
// Dependencies always precede their dependents.
func DefaultOrder() []string {
	return []string{
		AccessCheckName,
		BrowserAccessName,
		HTMLValidatorName,
		HTMLComplianceName,
		ScenarioGenerationName,
		ScenarioExecutionName,
		UIAnalyzerName,
	}
}

// send yields one message and converts a gone consumer into a context error
// so node loops unwind promptly.
func send(ctx context.Context, yield pipeline.Yield, msg pipeline.Message) error {
	if !yield(msg) {
		if err := ctx.Err(); err != nil {
			return err
		}
		return context.Canceled
	}
	return nil
}

// reloadTarget re-navigates the browser when a previous node left it on a
// different page.
func reloadTarget(ctx context.Context, rc *pipeline.RunContext) error {
	current, err := rc.Browser.CurrentURL(ctx)
	if err != nil {
		return err
	}
	if current == rc.URL || current == rc.URL+"/" {
		return nil
	}
	return rc.Browser.Navigate(ctx, rc.URL)
}
