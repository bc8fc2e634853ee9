package tool

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/blackscope/blackscope/browser"
	"github.com/blackscope/blackscope/pipeline/model"
)

// maxPageText caps the visible text returned to the model so a single page
// cannot blow out the prompt.
const maxPageText = 8000

// findTimeout bounds element existence probes.
const findTimeout = 3 * time.Second

// BrowserTools returns the full tool set for driving a live browser session
// during scenario execution.
func BrowserTools(driver browser.Driver) []Tool {
	return []Tool{
		&NavigateTool{driver: driver},
		&PageTextTool{driver: driver},
		&FindElementTool{driver: driver},
		&ClickTool{driver: driver},
		&InputTextTool{driver: driver},
		&ElementTextTool{driver: driver},
		&CurrentURLTool{driver: driver},
	}
}

func stringArg(input map[string]any, key string) (string, error) {
	raw, ok := input[key]
	if !ok {
		return "", fmt.Errorf("%s parameter is required", key)
	}
	value, ok := raw.(string)
	if !ok || value == "" {
		return "", fmt.Errorf("%s parameter must be a non-empty string", key)
	}
	return value, nil
}

func selectorSchema(extra map[string]any) map[string]any {
	props := map[string]any{
		"selector": map[string]any{
			"type":        "string",
			"description": "CSS selector for the target element",
		},
	}
	required := []string{"selector"}
	for key, val := range extra {
		props[key] = val
		required = append(required, key)
	}
	return map[string]any{
		"type":       "object",
		"properties": props,
		"required":   required,
	}
}

// NavigateTool loads a URL in the browser session.
type NavigateTool struct {
	driver browser.Driver
}

func (t *NavigateTool) Name() string { return "navigate" }

func (t *NavigateTool) Describe() model.ToolSpec {
	return model.ToolSpec{
		Name:        t.Name(),
		Description: "Navigate the browser to the given URL and wait for the page to load.",
		Schema: map[string]any{
			"type": "object",
			"properties": map[string]any{
				"url": map[string]any{"type": "string", "description": "Absolute URL to open"},
			},
			"required": []string{"url"},
		},
	}
}

func (t *NavigateTool) Call(ctx context.Context, input map[string]any) (map[string]any, error) {
	url, err := stringArg(input, "url")
	if err != nil {
		return nil, err
	}
	if err := t.driver.Navigate(ctx, url); err != nil {
		return nil, fmt.Errorf("navigate to %s: %w", url, err)
	}
	title, err := t.driver.Title(ctx)
	if err != nil {
		return nil, err
	}
	return map[string]any{"url": url, "title": title}, nil
}

// PageTextTool reads the visible text of the current page.
type PageTextTool struct {
	driver browser.Driver
}

func (t *PageTextTool) Name() string { return "page_text" }

func (t *PageTextTool) Describe() model.ToolSpec {
	return model.ToolSpec{
		Name:        t.Name(),
		Description: "Return the visible text content of the current page.",
		Schema:      map[string]any{"type": "object", "properties": map[string]any{}},
	}
}

func (t *PageTextTool) Call(ctx context.Context, _ map[string]any) (map[string]any, error) {
	text, err := t.driver.VisibleText(ctx)
	if err != nil {
		return nil, fmt.Errorf("read page text: %w", err)
	}
	truncated := false
	if len(text) > maxPageText {
		text = text[:maxPageText]
		truncated = true
	}
	return map[string]any{"text": text, "truncated": truncated}, nil
}

// FindElementTool checks whether a CSS selector matches an element.
type FindElementTool struct {
	driver browser.Driver
}

func (t *FindElementTool) Name() string { return "find_element" }

func (t *FindElementTool) Describe() model.ToolSpec {
	return model.ToolSpec{
		Name:        t.Name(),
		Description: "Check whether an element matching the CSS selector exists on the current page.",
		Schema:      selectorSchema(nil),
	}
}

func (t *FindElementTool) Call(ctx context.Context, input map[string]any) (map[string]any, error) {
	selector, err := stringArg(input, "selector")
	if err != nil {
		return nil, err
	}

	// Bound the probe so a missing element reports found=false instead of
	// stalling the whole scenario.
	probeCtx, cancel := context.WithTimeout(ctx, findTimeout)
	defer cancel()
	if _, err := t.driver.ElementText(probeCtx, selector); err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		if errors.Is(err, context.DeadlineExceeded) {
			return map[string]any{"selector": selector, "found": false}, nil
		}
		return nil, fmt.Errorf("find element %s: %w", selector, err)
	}
	return map[string]any{"selector": selector, "found": true}, nil
}

// ClickTool clicks the first element matching a CSS selector.
type ClickTool struct {
	driver browser.Driver
}

func (t *ClickTool) Name() string { return "click" }

func (t *ClickTool) Describe() model.ToolSpec {
	return model.ToolSpec{
		Name:        t.Name(),
		Description: "Click the first element matching the CSS selector.",
		Schema:      selectorSchema(nil),
	}
}

func (t *ClickTool) Call(ctx context.Context, input map[string]any) (map[string]any, error) {
	selector, err := stringArg(input, "selector")
	if err != nil {
		return nil, err
	}
	if err := t.driver.Click(ctx, selector); err != nil {
		return nil, fmt.Errorf("click %s: %w", selector, err)
	}
	url, err := t.driver.CurrentURL(ctx)
	if err != nil {
		return nil, err
	}
	return map[string]any{"selector": selector, "clicked": true, "current_url": url}, nil
}

// InputTextTool types text into the element matching a CSS selector.
type InputTextTool struct {
	driver browser.Driver
}

func (t *InputTextTool) Name() string { return "input_text" }

func (t *InputTextTool) Describe() model.ToolSpec {
	return model.ToolSpec{
		Name:        t.Name(),
		Description: "Type text into the input or textarea matching the CSS selector.",
		Schema: selectorSchema(map[string]any{
			"text": map[string]any{"type": "string", "description": "Text to type"},
		}),
	}
}

func (t *InputTextTool) Call(ctx context.Context, input map[string]any) (map[string]any, error) {
	selector, err := stringArg(input, "selector")
	if err != nil {
		return nil, err
	}
	text, err := stringArg(input, "text")
	if err != nil {
		return nil, err
	}
	if err := t.driver.SendKeys(ctx, selector, text); err != nil {
		return nil, fmt.Errorf("input text into %s: %w", selector, err)
	}
	return map[string]any{"selector": selector, "typed": true}, nil
}

// ElementTextTool reads the text of the element matching a CSS selector.
type ElementTextTool struct {
	driver browser.Driver
}

func (t *ElementTextTool) Name() string { return "element_text" }

func (t *ElementTextTool) Describe() model.ToolSpec {
	return model.ToolSpec{
		Name:        t.Name(),
		Description: "Return the text content of the first element matching the CSS selector.",
		Schema:      selectorSchema(nil),
	}
}

func (t *ElementTextTool) Call(ctx context.Context, input map[string]any) (map[string]any, error) {
	selector, err := stringArg(input, "selector")
	if err != nil {
		return nil, err
	}
	text, err := t.driver.ElementText(ctx, selector)
	if err != nil {
		return nil, fmt.Errorf("read element %s: %w", selector, err)
	}
	return map[string]any{"selector": selector, "text": text}, nil
}

// CurrentURLTool reports the URL the browser is currently on.
type CurrentURLTool struct {
	driver browser.Driver
}

func (t *CurrentURLTool) Name() string { return "current_url" }

func (t *CurrentURLTool) Describe() model.ToolSpec {
	return model.ToolSpec{
		Name:        t.Name(),
		Description: "Return the URL of the page the browser is currently on.",
		Schema:      map[string]any{"type": "object", "properties": map[string]any{}},
	}
}

func (t *CurrentURLTool) Call(ctx context.Context, _ map[string]any) (map[string]any, error) {
	url, err := t.driver.CurrentURL(ctx)
	if err != nil {
		return nil, fmt.Errorf("read current url: %w", err)
	}
	return map[string]any{"url": url}, nil
}
