package nodes

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"golang.org/x/net/html"

	"github.com/blackscope/blackscope/pipeline"
	"github.com/blackscope/blackscope/webclient"
)

// blockInP are the block-level tags whose literal nesting inside an open <p>
// forces browsers to implicitly close the paragraph.
var blockInP = map[string]bool{
	"div": true, "section": true, "article": true,
	"aside": true, "header": true, "footer": true,
}

// HTMLValidator checks the fetched markup for problems that affect parsing:
// duplicate IDs, invalid nesting, empty URL attributes, missing DOCTYPE,
// mismatched comments, premature script/style closers, forms without action
// and table rows directly under <table>. Accessibility and best-practice
// rules live in HTMLCompliance instead.
//
// The checks run over the raw token stream, not the parsed tree: the Go
// parser repairs invalid nesting, which would hide exactly the defects this
// node reports.
//
// Terminal value: the parsed *html.Node document.
type HTMLValidator struct{}

// NewHTMLValidator returns the HTML structure validation node.
func NewHTMLValidator() *HTMLValidator { return &HTMLValidator{} }

func (n *HTMLValidator) Name() string        { return HTMLValidatorName }
func (n *HTMLValidator) Title() string       { return "HTML Structure Validation" }
func (n *HTMLValidator) DependsOn() []string { return []string{AccessCheckName} }

func (n *HTMLValidator) Run(ctx context.Context, rc *pipeline.RunContext, yield pipeline.Yield) (any, error) {
	artifact, _ := rc.History.Get(AccessCheckName)
	page, err := pipeline.ArtifactValue[*webclient.Page](artifact)
	if err != nil || page == nil || !page.OK() {
		if err := send(ctx, yield, pipeline.NewMessage(pipeline.LevelError,
			"Cannot validate HTML: response unavailable or failed.")); err != nil {
			return nil, err
		}
		return nil, nil
	}

	body := string(page.Body)
	for _, msg := range structuralIssues(body) {
		if err := send(ctx, yield, msg); err != nil {
			return nil, err
		}
	}

	doc, err := html.Parse(strings.NewReader(body))
	if err != nil {
		return nil, pipeline.NewAssertionFailure("Failed to parse HTML: %v", err)
	}

	if err := send(ctx, yield, pipeline.Info("HTML parsing validation completed.")); err != nil {
		return nil, err
	}
	return doc, nil
}

// structuralIssues tokenizes the raw markup and collects every parsing-level
// defect, in a stable order.
func structuralIssues(body string) []pipeline.Message {
	var msgs []pipeline.Message
	bug := func(format string, args ...any) {
		msgs = append(msgs, pipeline.NewMessage(pipeline.LevelBug, fmt.Sprintf(format, args...)))
	}
	warn := func(format string, args ...any) {
		msgs = append(msgs, pipeline.NewMessage(pipeline.LevelWarning, fmt.Sprintf(format, args...)))
	}

	ids := map[string]int{}
	nesting := map[string]bool{}
	var emptyAttrs []pipeline.Message
	formsWithoutAction := 0
	tablesWithDirectTR := 0

	var stack []string
	openP, openA := 0, 0
	directTRSeen := false

	z := html.NewTokenizer(strings.NewReader(body))
	for {
		tt := z.Next()
		if tt == html.ErrorToken {
			break
		}
		switch tt {
		case html.StartTagToken, html.SelfClosingTagToken:
			tok := z.Token()
			tag := tok.Data

			for _, a := range tok.Attr {
				if a.Key == "id" && a.Val != "" {
					ids[a.Val]++
				}
				if (a.Key == "href" || a.Key == "src" || a.Key == "action") && a.Val == "" {
					emptyAttrs = append(emptyAttrs, pipeline.NewMessage(pipeline.LevelWarning,
						fmt.Sprintf("Empty '%s' attribute on <%s> tag may cause parsing issues.", a.Key, tag)))
				}
			}

			switch tag {
			case "p":
				if openP > 0 {
					nesting["<p> nested inside <p>"] = true
				}
				if tt == html.StartTagToken {
					openP++
				}
			case "a":
				if openA > 0 {
					nesting["<a> nested inside <a>"] = true
				}
				if tt == html.StartTagToken {
					openA++
				}
			case "form":
				if !hasTokenAttr(tok, "action") {
					formsWithoutAction++
				}
			case "table":
				if tt == html.StartTagToken {
					stack = append(stack, "table")
					directTRSeen = false
				}
			case "tbody", "thead", "tfoot":
				if tt == html.StartTagToken {
					stack = append(stack, tag)
				}
			case "tr":
				if len(stack) > 0 && stack[len(stack)-1] == "table" && !directTRSeen {
					directTRSeen = true
					tablesWithDirectTR++
				}
			default:
				if blockInP[tag] && openP > 0 {
					nesting["Block element nested inside <p>"] = true
				}
			}

		case html.EndTagToken:
			tok := z.Token()
			switch tok.Data {
			case "p":
				if openP > 0 {
					openP--
				}
			case "a":
				if openA > 0 {
					openA--
				}
			case "table", "tbody", "thead", "tfoot":
				if len(stack) > 0 && stack[len(stack)-1] == tok.Data {
					stack = stack[:len(stack)-1]
				}
			}
		}
	}

	dupIDs := make([]string, 0, len(ids))
	for id, count := range ids {
		if count > 1 {
			dupIDs = append(dupIDs, id)
		}
	}
	sort.Strings(dupIDs)
	for _, id := range dupIDs {
		bug("Duplicate ID '%s' found %d times. IDs must be unique for proper DOM parsing.", id, ids[id])
	}

	issues := make([]string, 0, len(nesting))
	for issue := range nesting {
		issues = append(issues, issue)
	}
	sort.Strings(issues)
	for _, issue := range issues {
		bug("Invalid nesting detected: %s. This can cause parsing issues.", issue)
	}

	msgs = append(msgs, emptyAttrs...)

	lower := strings.ToLower(body)
	if !strings.HasPrefix(strings.TrimSpace(lower), "<!doctype") {
		warn("Missing DOCTYPE declaration. Browsers may use quirks mode which affects HTML parsing.")
	}
	if strings.Contains(body, "<!--") && strings.Count(body, "<!--") != strings.Count(body, "-->") {
		bug("Mismatched HTML comment tags (<!-- and -->). This can cause content to be hidden.")
	}
	if strings.Count(lower, "<script") != strings.Count(lower, "</script") {
		bug("<script> tag contains '</script>' in its content. This will prematurely close the script tag.")
	}
	if strings.Count(lower, "<style") != strings.Count(lower, "</style") {
		bug("<style> tag contains '</style>' in its content. This will prematurely close the style tag.")
	}
	if formsWithoutAction > 0 {
		warn("Found %d form(s) without 'action' attribute. This may affect form submission parsing.", formsWithoutAction)
	}
	for i := 0; i < tablesWithDirectTR; i++ {
		warn("Table has <tr> elements directly under <table> without <tbody>. Browsers will auto-insert <tbody> affecting DOM structure.")
	}
	return msgs
}

func hasTokenAttr(tok html.Token, key string) bool {
	for _, a := range tok.Attr {
		if a.Key == key {
			return true
		}
	}
	return false
}
