package tool

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/blackscope/blackscope/browser"
)

// fakeDriver is a scriptable browser.Driver for tool tests.
type fakeDriver struct {
	title       string
	currentURL  string
	visibleText string
	elementText map[string]string

	navigateErr error
	clickErr    error

	navigated []string
	clicked   []string
	typed     map[string]string

	// elementTextBlocks makes ElementText wait for ctx, simulating a
	// selector that never appears.
	elementTextBlocks bool
}

var _ browser.Driver = (*fakeDriver)(nil)

func (f *fakeDriver) Navigate(ctx context.Context, url string) error {
	f.navigated = append(f.navigated, url)
	return f.navigateErr
}

func (f *fakeDriver) Title(ctx context.Context) (string, error)      { return f.title, nil }
func (f *fakeDriver) CurrentURL(ctx context.Context) (string, error) { return f.currentURL, nil }

func (f *fakeDriver) VisibleText(ctx context.Context) (string, error) { return f.visibleText, nil }
func (f *fakeDriver) HTML(ctx context.Context) (string, error)        { return "", nil }

func (f *fakeDriver) ElementText(ctx context.Context, selector string) (string, error) {
	if f.elementTextBlocks {
		<-ctx.Done()
		return "", ctx.Err()
	}
	text, ok := f.elementText[selector]
	if !ok {
		return "", errors.New("no element matches " + selector)
	}
	return text, nil
}

func (f *fakeDriver) Click(ctx context.Context, selector string) error {
	f.clicked = append(f.clicked, selector)
	return f.clickErr
}

func (f *fakeDriver) SendKeys(ctx context.Context, selector, text string) error {
	if f.typed == nil {
		f.typed = make(map[string]string)
	}
	f.typed[selector] = text
	return nil
}

func (f *fakeDriver) Screenshot(ctx context.Context) ([]byte, error) { return nil, nil }

func TestBrowserTools_Set(t *testing.T) {
	tools := BrowserTools(&fakeDriver{})
	byName := ByName(tools)
	for _, name := range []string{"navigate", "page_text", "find_element", "click", "input_text", "element_text", "current_url"} {
		if _, ok := byName[name]; !ok {
			t.Errorf("missing tool %s", name)
		}
	}
	if len(tools) != 7 {
		t.Errorf("expected 7 tools, got %d", len(tools))
	}

	specs := Specs(tools)
	if len(specs) != len(tools) {
		t.Fatalf("Specs returned %d entries for %d tools", len(specs), len(tools))
	}
	for _, spec := range specs {
		if spec.Name == "" || spec.Description == "" || spec.Schema == nil {
			t.Errorf("incomplete spec: %+v", spec)
		}
	}
}

func TestNavigateTool(t *testing.T) {
	t.Run("success", func(t *testing.T) {
		d := &fakeDriver{title: "Example"}
		tl := &NavigateTool{driver: d}
		out, err := tl.Call(context.Background(), map[string]any{"url": "https://example.com"})
		if err != nil {
			t.Fatal(err)
		}
		if out["title"] != "Example" || out["url"] != "https://example.com" {
			t.Errorf("got %v", out)
		}
		if len(d.navigated) != 1 {
			t.Errorf("navigated %v", d.navigated)
		}
	})

	t.Run("missing url", func(t *testing.T) {
		tl := &NavigateTool{driver: &fakeDriver{}}
		if _, err := tl.Call(context.Background(), map[string]any{}); err == nil {
			t.Fatal("expected an error for the missing url parameter")
		}
	})

	t.Run("driver error", func(t *testing.T) {
		tl := &NavigateTool{driver: &fakeDriver{navigateErr: errors.New("net::ERR_NAME_NOT_RESOLVED")}}
		if _, err := tl.Call(context.Background(), map[string]any{"url": "https://bad.invalid"}); err == nil {
			t.Fatal("expected the driver error to propagate")
		}
	})
}

func TestPageTextTool(t *testing.T) {
	t.Run("plain text", func(t *testing.T) {
		tl := &PageTextTool{driver: &fakeDriver{visibleText: "hello world"}}
		out, err := tl.Call(context.Background(), nil)
		if err != nil {
			t.Fatal(err)
		}
		if out["text"] != "hello world" || out["truncated"] != false {
			t.Errorf("got %v", out)
		}
	})

	t.Run("truncates long pages", func(t *testing.T) {
		tl := &PageTextTool{driver: &fakeDriver{visibleText: strings.Repeat("x", maxPageText+100)}}
		out, err := tl.Call(context.Background(), nil)
		if err != nil {
			t.Fatal(err)
		}
		if len(out["text"].(string)) != maxPageText || out["truncated"] != true {
			t.Errorf("truncation failed: %d bytes, truncated=%v", len(out["text"].(string)), out["truncated"])
		}
	})
}

func TestFindElementTool(t *testing.T) {
	t.Run("found", func(t *testing.T) {
		tl := &FindElementTool{driver: &fakeDriver{elementText: map[string]string{"#login": "Sign in"}}}
		out, err := tl.Call(context.Background(), map[string]any{"selector": "#login"})
		if err != nil {
			t.Fatal(err)
		}
		if out["found"] != true {
			t.Errorf("got %v", out)
		}
	})

	t.Run("probe timeout means not found", func(t *testing.T) {
		tl := &FindElementTool{driver: &fakeDriver{elementTextBlocks: true}}
		out, err := tl.Call(context.Background(), map[string]any{"selector": "#ghost"})
		if err != nil {
			t.Fatal(err)
		}
		if out["found"] != false {
			t.Errorf("got %v", out)
		}
	})

	t.Run("outer cancellation propagates", func(t *testing.T) {
		ctx, cancel := context.WithCancel(context.Background())
		cancel()
		tl := &FindElementTool{driver: &fakeDriver{elementTextBlocks: true}}
		if _, err := tl.Call(ctx, map[string]any{"selector": "#ghost"}); !errors.Is(err, context.Canceled) {
			t.Fatalf("expected context.Canceled, got %v", err)
		}
	})

	t.Run("empty selector", func(t *testing.T) {
		tl := &FindElementTool{driver: &fakeDriver{}}
		if _, err := tl.Call(context.Background(), map[string]any{"selector": ""}); err == nil {
			t.Fatal("expected an error for the empty selector")
		}
	})
}

func TestClickTool(t *testing.T) {
	d := &fakeDriver{currentURL: "https://example.com/next"}
	tl := &ClickTool{driver: d}
	out, err := tl.Call(context.Background(), map[string]any{"selector": "a.next"})
	if err != nil {
		t.Fatal(err)
	}
	if out["clicked"] != true || out["current_url"] != "https://example.com/next" {
		t.Errorf("got %v", out)
	}
	if len(d.clicked) != 1 || d.clicked[0] != "a.next" {
		t.Errorf("clicked %v", d.clicked)
	}
}

func TestInputTextTool(t *testing.T) {
	t.Run("types into the element", func(t *testing.T) {
		d := &fakeDriver{}
		tl := &InputTextTool{driver: d}
		out, err := tl.Call(context.Background(), map[string]any{"selector": "#email", "text": "a@b.c"})
		if err != nil {
			t.Fatal(err)
		}
		if out["typed"] != true || d.typed["#email"] != "a@b.c" {
			t.Errorf("out=%v typed=%v", out, d.typed)
		}
	})

	t.Run("missing text", func(t *testing.T) {
		tl := &InputTextTool{driver: &fakeDriver{}}
		if _, err := tl.Call(context.Background(), map[string]any{"selector": "#email"}); err == nil {
			t.Fatal("expected an error for the missing text parameter")
		}
	})

	t.Run("non-string argument", func(t *testing.T) {
		tl := &InputTextTool{driver: &fakeDriver{}}
		if _, err := tl.Call(context.Background(), map[string]any{"selector": "#email", "text": 7}); err == nil {
			t.Fatal("expected an error for the non-string text parameter")
		}
	})
}

func TestElementTextTool(t *testing.T) {
	t.Run("returns element text", func(t *testing.T) {
		tl := &ElementTextTool{driver: &fakeDriver{elementText: map[string]string{"h1": "Welcome"}}}
		out, err := tl.Call(context.Background(), map[string]any{"selector": "h1"})
		if err != nil {
			t.Fatal(err)
		}
		if out["text"] != "Welcome" {
			t.Errorf("got %v", out)
		}
	})

	t.Run("missing element is an error", func(t *testing.T) {
		tl := &ElementTextTool{driver: &fakeDriver{}}
		if _, err := tl.Call(context.Background(), map[string]any{"selector": "h1"}); err == nil {
			t.Fatal("expected an error when no element matches")
		}
	})
}

func TestCurrentURLTool(t *testing.T) {
	tl := &CurrentURLTool{driver: &fakeDriver{currentURL: "https://example.com/"}}
	out, err := tl.Call(context.Background(), nil)
	if err != nil {
		t.Fatal(err)
	}
	if out["url"] != "https://example.com/" {
		t.Errorf("got %v", out)
	}
}
