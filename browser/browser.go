// Package browser wraps a headless-Chrome automation handle behind a small
// driver interface so evaluation nodes and tests do not depend on chromedp
// directly.
package browser

import (
	"context"
	"fmt"
	"time"

	"github.com/chromedp/chromedp"
)

// Driver is the browser-automation contract evaluation nodes rely on. The
// handle is created once by the caller and shared by reference with every
// node for the run's duration; nodes must not retain it beyond the run.
type Driver interface {
	// Navigate loads url and waits for the document body to be ready.
	Navigate(ctx context.Context, url string) error

	// Title returns the current document title.
	Title(ctx context.Context) (string, error)

	// CurrentURL returns the location the browser is currently on.
	CurrentURL(ctx context.Context) (string, error)

	// VisibleText returns the rendered text of the document body.
	VisibleText(ctx context.Context) (string, error)

	// HTML returns the current outer HTML of the document.
	HTML(ctx context.Context) (string, error)

	// ElementText returns the text of the first element matching the CSS
	// selector.
	ElementText(ctx context.Context, selector string) (string, error)

	// Click clicks the first element matching the CSS selector.
	Click(ctx context.Context, selector string) error

	// SendKeys types text into the first element matching the CSS selector.
	SendKeys(ctx context.Context, selector, text string) error

	// Screenshot captures the viewport as PNG.
	Screenshot(ctx context.Context) ([]byte, error)
}

// Options configure the headless Chrome allocator.
type Options struct {
	Headless bool
	Width    int
	Height   int

	// ActionTimeout bounds each individual browser action. Zero means no
	// per-action bound beyond the session context.
	ActionTimeout time.Duration
}

// AllocatorOptions translates Options into chromedp exec-allocator options.
func AllocatorOptions(opts Options) []chromedp.ExecAllocatorOption {
	width, height := opts.Width, opts.Height
	if width <= 0 {
		width = 1920
	}
	if height <= 0 {
		height = 1080
	}
	return append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.Flag("headless", opts.Headless),
		chromedp.Flag("disable-gpu", true),
		chromedp.Flag("no-sandbox", true),
		chromedp.WindowSize(width, height),
	)
}

// Session is the chromedp-backed Driver. One Session owns one browser tab.
type Session struct {
	ctx           context.Context
	actionTimeout time.Duration
}

var _ Driver = (*Session)(nil)

// NewSession starts a headless browser and returns the driver plus a cancel
// function that tears the browser down. The parent ctx bounds the whole
// browser lifetime.
func NewSession(ctx context.Context, opts Options) (*Session, context.CancelFunc) {
	allocCtx, allocCancel := chromedp.NewExecAllocator(ctx, AllocatorOptions(opts)...)
	browserCtx, browserCancel := chromedp.NewContext(allocCtx)
	cancel := func() {
		browserCancel()
		allocCancel()
	}
	return &Session{ctx: browserCtx, actionTimeout: opts.ActionTimeout}, cancel
}

// run executes actions on the session tab, bounded by both the caller's ctx
// and the configured per-action timeout.
func (s *Session) run(ctx context.Context, actions ...chromedp.Action) error {
	runCtx := s.ctx
	if s.actionTimeout > 0 {
		var cancel context.CancelFunc
		runCtx, cancel = context.WithTimeout(runCtx, s.actionTimeout)
		defer cancel()
	}

	done := make(chan error, 1)
	go func() { done <- chromedp.Run(runCtx, actions...) }()
	select {
	case err := <-done:
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Navigate implements Driver.
func (s *Session) Navigate(ctx context.Context, url string) error {
	if err := s.run(ctx, chromedp.Navigate(url), chromedp.WaitReady("body", chromedp.ByQuery)); err != nil {
		return fmt.Errorf("navigate %s: %w", url, err)
	}
	return nil
}

// Title implements Driver.
func (s *Session) Title(ctx context.Context) (string, error) {
	var title string
	if err := s.run(ctx, chromedp.Title(&title)); err != nil {
		return "", fmt.Errorf("read title: %w", err)
	}
	return title, nil
}

// CurrentURL implements Driver.
func (s *Session) CurrentURL(ctx context.Context) (string, error) {
	var location string
	if err := s.run(ctx, chromedp.Location(&location)); err != nil {
		return "", fmt.Errorf("read location: %w", err)
	}
	return location, nil
}

// VisibleText implements Driver.
func (s *Session) VisibleText(ctx context.Context) (string, error) {
	var text string
	if err := s.run(ctx, chromedp.Text("body", &text, chromedp.ByQuery)); err != nil {
		return "", fmt.Errorf("read body text: %w", err)
	}
	return text, nil
}

// HTML implements Driver.
func (s *Session) HTML(ctx context.Context) (string, error) {
	var html string
	if err := s.run(ctx, chromedp.OuterHTML("html", &html, chromedp.ByQuery)); err != nil {
		return "", fmt.Errorf("read document html: %w", err)
	}
	return html, nil
}

// ElementText implements Driver.
func (s *Session) ElementText(ctx context.Context, selector string) (string, error) {
	var text string
	if err := s.run(ctx, chromedp.Text(selector, &text, chromedp.ByQuery)); err != nil {
		return "", fmt.Errorf("read text of %q: %w", selector, err)
	}
	return text, nil
}

// Click implements Driver.
func (s *Session) Click(ctx context.Context, selector string) error {
	if err := s.run(ctx, chromedp.Click(selector, chromedp.ByQuery)); err != nil {
		return fmt.Errorf("click %q: %w", selector, err)
	}
	return nil
}

// SendKeys implements Driver.
func (s *Session) SendKeys(ctx context.Context, selector, text string) error {
	if err := s.run(ctx, chromedp.SendKeys(selector, text, chromedp.ByQuery)); err != nil {
		return fmt.Errorf("send keys to %q: %w", selector, err)
	}
	return nil
}

// Screenshot implements Driver.
func (s *Session) Screenshot(ctx context.Context) ([]byte, error) {
	var png []byte
	if err := s.run(ctx, chromedp.CaptureScreenshot(&png)); err != nil {
		return nil, fmt.Errorf("capture screenshot: %w", err)
	}
	return png, nil
}
