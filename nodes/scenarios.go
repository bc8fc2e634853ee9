package nodes

import (
	"context"
	"fmt"

	"golang.org/x/net/html"

	"github.com/blackscope/blackscope/pipeline"
	"github.com/blackscope/blackscope/pipeline/model"
	"github.com/blackscope/blackscope/pipeline/tool"
)

// maxContentLength caps the page text handed to scenario generation.
const maxContentLength = 1000

// Scenario execution statuses.
const (
	StatusPassed = "PASSED"
	StatusFailed = "FAILED"
	StatusError  = "ERROR"
)

// TestScenario is one generated test case.
type TestScenario struct {
	ShortName      string   `json:"short_name"`
	Name           string   `json:"name"`
	Objective      string   `json:"objective"`
	Steps          []string `json:"steps"`
	ExpectedResult string   `json:"expected_result"`
	Preconditions  string   `json:"preconditions,omitempty"`
}

// TestScenarioList is the terminal value of scenario generation.
type TestScenarioList struct {
	Scenarios []TestScenario `json:"scenarios"`
}

// TestExecutionResult is the outcome of executing one scenario.
type TestExecutionResult struct {
	ScenarioName      string   `json:"scenario_name"`
	Status            string   `json:"status"`
	ExecutionDetails  string   `json:"execution_details"`
	ErrorsEncountered []string `json:"errors_encountered,omitempty"`
}

// TestExecutionReport is the terminal value of scenario execution.
type TestExecutionReport struct {
	TotalScenarios int                   `json:"total_scenarios"`
	Passed         int                   `json:"passed"`
	Failed         int                   `json:"failed"`
	Errors         int                   `json:"errors"`
	Results        []TestExecutionResult `json:"results"`
}

// ScenarioGeneration lets a tool-calling agent explore the live page and
// produce a structured list of test scenarios.
//
// Terminal value: TestScenarioList.
type ScenarioGeneration struct {
	chat model.ChatModel
}

// NewScenarioGeneration returns the scenario generation node.
func NewScenarioGeneration(chat model.ChatModel) *ScenarioGeneration {
	return &ScenarioGeneration{chat: chat}
}

func (n *ScenarioGeneration) Name() string  { return ScenarioGenerationName }
func (n *ScenarioGeneration) Title() string { return "Test Scenario Generation" }
func (n *ScenarioGeneration) DependsOn() []string {
	return []string{BrowserAccessName, HTMLValidatorName}
}

func (n *ScenarioGeneration) Run(ctx context.Context, rc *pipeline.RunContext, yield pipeline.Yield) (any, error) {
	if err := reloadTarget(ctx, rc); err != nil {
		return nil, err
	}

	artifact, _ := rc.History.Get(HTMLValidatorName)
	doc, err := pipeline.ArtifactValue[*html.Node](artifact)
	if err != nil {
		return nil, err
	}
	content := ""
	if doc != nil {
		content = textContent(doc)
		if len(content) > maxContentLength {
			content = content[:maxContentLength]
		}
	}

	title, err := rc.Browser.Title(ctx)
	if err != nil {
		return nil, err
	}

	// The page text is already in the prompt; giving the agent page_text on
	// top just burns steps.
	tools := withoutTool(tool.BrowserTools(rc.Browser), "page_text")
	raw, err := runToolAgent(ctx, n.chat, tools, scenarioGenerationSystem,
		scenarioGenerationPrompt(rc.URL, title, content))
	if err != nil {
		return nil, err
	}

	list, err := parseStructured[TestScenarioList](ctx, n.chat, parseScenariosPrompt(raw))
	if err != nil {
		return nil, err
	}

	if err := send(ctx, yield, pipeline.ScenariosMessage(
		fmt.Sprintf("Generated %d scenarios.", len(list.Scenarios)), list)); err != nil {
		return nil, err
	}
	return list, nil
}

func withoutTool(tools []tool.Tool, name string) []tool.Tool {
	out := tools[:0]
	for _, t := range tools {
		if t.Name() != name {
			out = append(out, t)
		}
	}
	return out
}

// ScenarioExecution replays every generated scenario through a browser-driving
// agent, classifies the outcomes and reports the tally. One crashing scenario
// becomes an ERROR result; it never aborts the remaining scenarios.
//
// Terminal value: TestExecutionReport.
type ScenarioExecution struct {
	chat model.ChatModel
}

// NewScenarioExecution returns the scenario execution node.
func NewScenarioExecution(chat model.ChatModel) *ScenarioExecution {
	return &ScenarioExecution{chat: chat}
}

func (n *ScenarioExecution) Name() string  { return ScenarioExecutionName }
func (n *ScenarioExecution) Title() string { return "Test Scenario Execution" }
func (n *ScenarioExecution) DependsOn() []string {
	return []string{BrowserAccessName, ScenarioGenerationName}
}

func (n *ScenarioExecution) Run(ctx context.Context, rc *pipeline.RunContext, yield pipeline.Yield) (any, error) {
	if err := reloadTarget(ctx, rc); err != nil {
		return nil, err
	}

	artifact, _ := rc.History.Get(ScenarioGenerationName)
	list, err := pipeline.ArtifactValue[TestScenarioList](artifact)
	if err != nil {
		return nil, err
	}

	report := TestExecutionReport{TotalScenarios: len(list.Scenarios)}
	for _, scenario := range list.Scenarios {
		if err := send(ctx, yield, pipeline.StateMessage(
			fmt.Sprintf("Executing scenario %s...", scenario.Name),
			pipeline.StateDetails{
				NodeID:       n.Name(),
				NodeTitle:    n.Title(),
				ScenarioID:   scenario.ShortName,
				ScenarioName: scenario.Name,
			})); err != nil {
			return nil, err
		}

		result, err := n.executeScenario(ctx, rc, scenario)
		if err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			crash := pipeline.NewMessage(pipeline.LevelError,
				fmt.Sprintf("A crash occurred during scenario %s.", scenario.Name))
			crash.ScenarioID = scenario.ShortName
			if sendErr := send(ctx, yield, crash); sendErr != nil {
				return nil, sendErr
			}
			result = TestExecutionResult{
				ScenarioName:      scenario.Name,
				Status:            StatusError,
				ExecutionDetails:  fmt.Sprintf("Failed to execute scenario: %v", err),
				ErrorsEncountered: []string{err.Error()},
			}
			report.Results = append(report.Results, result)
			report.Errors++
			continue
		}

		report.Results = append(report.Results, result)
		level := pipeline.LevelError
		switch result.Status {
		case StatusPassed:
			report.Passed++
			level = pipeline.LevelSuccess
		case StatusFailed:
			report.Failed++
		default:
			report.Errors++
		}

		details := pipeline.Info(result.ExecutionDetails)
		details.ScenarioID = scenario.ShortName
		details.ScenarioName = scenario.Name
		if err := send(ctx, yield, details); err != nil {
			return nil, err
		}
		assessment := pipeline.NewMessage(level,
			fmt.Sprintf("Scenario %s completed: %s", scenario.Name, result.Status))
		assessment.ScenarioID = scenario.ShortName
		assessment.ScenarioName = scenario.Name
		if err := send(ctx, yield, assessment); err != nil {
			return nil, err
		}
	}

	if err := send(ctx, yield, pipeline.ExecutionReportMessage(
		"Test Scenario Execution Complete.", report)); err != nil {
		return nil, err
	}
	return report, nil
}

func (n *ScenarioExecution) executeScenario(ctx context.Context, rc *pipeline.RunContext, scenario TestScenario) (TestExecutionResult, error) {
	if err := rc.Browser.Navigate(ctx, rc.URL); err != nil {
		return TestExecutionResult{}, err
	}
	raw, err := runToolAgent(ctx, n.chat, tool.BrowserTools(rc.Browser),
		scenarioExecutionSystem, scenarioExecutionPrompt(scenario, rc.URL))
	if err != nil {
		return TestExecutionResult{}, err
	}
	result, err := parseStructured[TestExecutionResult](ctx, n.chat,
		parseExecutionResultPrompt(scenario.Name, raw))
	if err != nil {
		return TestExecutionResult{}, err
	}
	if result.ScenarioName == "" {
		result.ScenarioName = scenario.Name
	}
	switch result.Status {
	case StatusPassed, StatusFailed, StatusError:
	default:
		result.Status = StatusError
	}
	return result, nil
}
