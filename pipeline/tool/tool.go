// Package tool defines executable tools that chat models can invoke during
// agent runs, plus the browser-backed set used for live page interaction.
package tool

import (
	"context"

	"github.com/blackscope/blackscope/pipeline/model"
)

// Tool is an action a model can request by name.
//
// Implementations validate their input map, respect context cancellation,
// and return structured output the model can read back.
type Tool interface {
	// Name returns the unique identifier for this tool. Names are lowercase
	// with underscores and must match the ToolSpec advertised to the model.
	Name() string

	// Describe returns the spec advertised to the model, including the JSON
	// schema of the input map.
	Describe() model.ToolSpec

	// Call executes the tool. Input keys follow the Describe schema; input
	// may be nil for parameterless tools.
	Call(ctx context.Context, input map[string]any) (map[string]any, error)
}

// Specs collects the model-facing specs for a tool set.
func Specs(tools []Tool) []model.ToolSpec {
	specs := make([]model.ToolSpec, len(tools))
	for i, t := range tools {
		specs[i] = t.Describe()
	}
	return specs
}

// ByName indexes a tool set for dispatch.
func ByName(tools []Tool) map[string]Tool {
	out := make(map[string]Tool, len(tools))
	for _, t := range tools {
		out[t.Name()] = t
	}
	return out
}
