package nodes

import (
	"fmt"
	"strings"
)

const scenarioGenerationSystem = `You are a senior QA engineer exploring a website to design test scenarios.
Use the available browser tools to inspect the page: follow links, examine elements and try interactions.
When you have seen enough, write a numbered list of concrete test scenarios. For each scenario include:
a short name, a title, the objective, the user steps, the expected result and any preconditions.
Cover the core user journeys first, then edge cases. Do not invent functionality the page does not have.`

const scenarioExecutionSystem = `You are a test execution agent driving a real browser through the available tools.
Execute the given test scenario step by step. After each step, verify the page state against the expectation.
When you are done, report exactly what you did, what you observed, and whether the scenario PASSED or FAILED.
If a step cannot be performed at all, say so explicitly.`

const uiAnalysisPrompt = `Analyze the attached screenshot of a website and assess its UI quality.
Evaluate these categories: Layout, Color Scheme, Typography, Accessibility, User Experience.
For each category give a score from 1-10, detailed feedback and any specific issues.
Also give an overall score from 1-10, a high-level summary, the key strengths and suggested improvements.`

func scenarioGenerationPrompt(url, title, content string) string {
	return fmt.Sprintf(`Generate test scenarios for the following web page.

URL: %s
Title: %s

Visible page content (truncated):
%s

Explore the page with the browser tools before writing the scenarios.`, url, title, content)
}

func parseScenariosPrompt(scenarioText string) string {
	return fmt.Sprintf(`Convert the following test scenarios into JSON with exactly this shape:
{"scenarios": [{"short_name": "...", "name": "...", "objective": "...", "steps": ["..."], "expected_result": "...", "preconditions": "..."}]}

Respond ONLY with valid JSON. No markdown, no explanation.

Scenarios:
%s`, scenarioText)
}

func scenarioExecutionPrompt(s TestScenario, url string) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Execute this test scenario against %s.\n\n", url)
	fmt.Fprintf(&b, "Scenario: %s\nObjective: %s\n", s.Name, s.Objective)
	if s.Preconditions != "" {
		fmt.Fprintf(&b, "Preconditions: %s\n", s.Preconditions)
	}
	b.WriteString("Steps:\n")
	for i, step := range s.Steps {
		fmt.Fprintf(&b, "%d. %s\n", i+1, step)
	}
	fmt.Fprintf(&b, "Expected result: %s\n", s.ExpectedResult)
	return b.String()
}

func parseExecutionResultPrompt(scenarioName, report string) string {
	return fmt.Sprintf(`Convert the following test execution report for scenario %q into JSON with exactly this shape:
{"scenario_name": "...", "status": "PASSED|FAILED|ERROR", "execution_details": "...", "errors_encountered": ["..."]}

Respond ONLY with valid JSON. No markdown, no explanation.

Report:
%s`, scenarioName, report)
}

func parseUIAssessmentPrompt(analysisText string) string {
	return fmt.Sprintf(`Convert the following UI analysis into JSON with exactly this shape:
{"overall_score": 1, "overall_feedback": "...", "categories": [{"category": "...", "score": 1, "feedback": "...", "issues": ["..."]}], "strengths": ["..."], "improvements": ["..."]}

Respond ONLY with valid JSON. No markdown, no explanation.

Analysis:
%s`, analysisText)
}
