package nodes

import (
	"context"
	"fmt"
	"strings"

	"github.com/blackscope/blackscope/pipeline"
	"github.com/blackscope/blackscope/webclient"
)

// plausibleContentTypes are the media types an HTML page may legitimately be
// served under.
var plausibleContentTypes = []string{"text/html", "application/xhtml+xml"}

// AccessCheck probes the target with an OPTIONS pre-flight and a GET,
// validating Content-Type plausibility on both and flagging a mismatch
// between them. A failed GET stops the node with a precondition failure;
// everything downstream of connectivity depends on this node.
//
// Terminal value: the fetched *webclient.Page.
type AccessCheck struct{}

// NewAccessCheck returns the reachability node.
func NewAccessCheck() *AccessCheck { return &AccessCheck{} }

func (n *AccessCheck) Name() string        { return AccessCheckName }
func (n *AccessCheck) Title() string       { return "Reachability Check" }
func (n *AccessCheck) DependsOn() []string { return nil }

func (n *AccessCheck) Run(ctx context.Context, rc *pipeline.RunContext, yield pipeline.Yield) (any, error) {
	preflight, err := rc.Session.Options(ctx, rc.URL)
	if err != nil || !preflight.OK() {
		if err := send(ctx, yield, pipeline.NewMessage(pipeline.LevelError,
			"Failed to pre-fetch the website via OPTIONS.")); err != nil {
			return nil, err
		}
	}
	if preflight != nil {
		if err := inspectContentType(ctx, yield, preflight, "OPTIONS"); err != nil {
			return nil, err
		}
	}

	page, err := rc.Session.Get(ctx, rc.URL)
	if err != nil || !page.OK() {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, ctxErr
		}
		return nil, pipeline.NewAssertionFailure("Failed to connect to the website")
	}

	if err := inspectContentType(ctx, yield, page, "GET"); err != nil {
		return nil, err
	}
	if preflight != nil {
		got, gotOK := page.ContentType()
		pre, preOK := preflight.ContentType()
		if gotOK && preOK && got != pre {
			if err := send(ctx, yield, pipeline.NewMessage(pipeline.LevelWarning,
				"Content-Type header mismatch between pre-fetch and fetch")); err != nil {
				return nil, err
			}
		}
	}
	if err := send(ctx, yield, pipeline.Info("Successfully connected to the website.")); err != nil {
		return nil, err
	}
	return page, nil
}

func inspectContentType(ctx context.Context, yield pipeline.Yield, page *webclient.Page, method string) error {
	contentType, ok := page.ContentType()
	if !ok {
		return send(ctx, yield, pipeline.NewMessage(pipeline.LevelBug,
			fmt.Sprintf("Content-Type header missing in %s response.", method)))
	}
	for _, plausible := range plausibleContentTypes {
		if strings.HasPrefix(contentType, plausible) {
			return nil
		}
	}
	return send(ctx, yield, pipeline.NewMessage(pipeline.LevelError,
		fmt.Sprintf("Invalid Content-Type header in %s response.", method)))
}

// BrowserAccess loads the target into the shared browser session so the
// LLM-driven nodes start from a rendered page.
type BrowserAccess struct{}

// NewBrowserAccess returns the browser access node.
func NewBrowserAccess() *BrowserAccess { return &BrowserAccess{} }

func (n *BrowserAccess) Name() string        { return BrowserAccessName }
func (n *BrowserAccess) Title() string       { return "Browser Access" }
func (n *BrowserAccess) DependsOn() []string { return []string{AccessCheckName} }

func (n *BrowserAccess) Run(ctx context.Context, rc *pipeline.RunContext, yield pipeline.Yield) (any, error) {
	if err := rc.Browser.Navigate(ctx, rc.URL); err != nil {
		return nil, fmt.Errorf("load %s in browser: %w", rc.URL, err)
	}
	if err := send(ctx, yield, pipeline.Info("Successfully loaded the website into AI-powered browser.")); err != nil {
		return nil, err
	}
	return nil, nil
}
