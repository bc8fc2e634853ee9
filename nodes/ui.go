package nodes

import (
	"context"

	"github.com/blackscope/blackscope/pipeline"
	"github.com/blackscope/blackscope/pipeline/model"
)

// UIAssessmentCategory is one scored dimension of the UI assessment.
type UIAssessmentCategory struct {
	Category string   `json:"category"`
	Score    int      `json:"score"`
	Feedback string   `json:"feedback"`
	Issues   []string `json:"issues,omitempty"`
}

// UIQualityAssessment is the terminal value of the UI analyzer.
type UIQualityAssessment struct {
	OverallScore    int                    `json:"overall_score"`
	OverallFeedback string                 `json:"overall_feedback"`
	Categories      []UIAssessmentCategory `json:"categories"`
	Strengths       []string               `json:"strengths,omitempty"`
	Improvements    []string               `json:"improvements,omitempty"`
}

// UIAnalyzer screenshots the rendered page, asks a vision-capable model for a
// quality assessment and reports it as per-category metrics.
//
// Terminal value: UIQualityAssessment.
type UIAnalyzer struct {
	chat   model.ChatModel
	vision model.VisionModel
}

// NewUIAnalyzer returns the UI quality node. The chat model parses the vision
// model's free-text analysis into structured output.
func NewUIAnalyzer(chat model.ChatModel, vision model.VisionModel) *UIAnalyzer {
	return &UIAnalyzer{chat: chat, vision: vision}
}

func (n *UIAnalyzer) Name() string        { return UIAnalyzerName }
func (n *UIAnalyzer) Title() string       { return "UI Quality Assessment" }
func (n *UIAnalyzer) DependsOn() []string { return []string{BrowserAccessName} }

func (n *UIAnalyzer) Run(ctx context.Context, rc *pipeline.RunContext, yield pipeline.Yield) (any, error) {
	if err := reloadTarget(ctx, rc); err != nil {
		return nil, err
	}

	png, err := rc.Browser.Screenshot(ctx)
	if err != nil {
		return nil, err
	}
	analysis, err := n.vision.AnalyzeImage(ctx, uiAnalysisPrompt, png)
	if err != nil {
		return nil, err
	}
	assessment, err := parseStructured[UIQualityAssessment](ctx, n.chat, parseUIAssessmentPrompt(analysis))
	if err != nil {
		return nil, err
	}

	metrics := make([]pipeline.Metric, 0, len(assessment.Categories))
	for _, category := range assessment.Categories {
		metrics = append(metrics, pipeline.Metric{
			Name:     category.Category,
			Score:    pipeline.IntPtr(category.Score),
			Feedback: category.Feedback,
			Issues:   category.Issues,
		})
	}
	if err := send(ctx, yield, pipeline.MetricsMessage("UI Quality Assessment", pipeline.MetricsList{
		Name:     "UI Quality Assessment",
		Metrics:  metrics,
		Score:    pipeline.IntPtr(assessment.OverallScore),
		Feedback: assessment.OverallFeedback,
	})); err != nil {
		return nil, err
	}
	return assessment, nil
}
