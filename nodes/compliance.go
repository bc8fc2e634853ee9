package nodes

import (
	"bytes"
	"context"
	"fmt"
	"regexp"
	"sort"
	"strings"

	"golang.org/x/net/html"

	"github.com/blackscope/blackscope/pipeline"
	"github.com/blackscope/blackscope/webclient"
)

var (
	deprecatedTags = []string{"center", "font", "marquee", "blink", "frame", "frameset"}
	unsafeInlineJS = regexp.MustCompile(`eval\s*\(|document\.write\s*\(`)
)

// Compliance categories, in reporting order.
var complianceCategories = []string{"Structure", "Security", "Accessibility", "Best Practices"}

// HTMLCompliance runs a rule set over the fetched markup covering document
// structure, security, accessibility and best practices. It emits one message
// per finding, a final per-category metrics assessment, and applies a small
// set of automatic corrections (empty alt attributes, rel=noopener, html
// lang, iframe titles).
//
// Terminal value: the corrected HTML string, or the original markup when no
// correction applied.
type HTMLCompliance struct{}

// NewHTMLCompliance returns the compliance assessment node.
func NewHTMLCompliance() *HTMLCompliance { return &HTMLCompliance{} }

func (n *HTMLCompliance) Name() string        { return HTMLComplianceName }
func (n *HTMLCompliance) Title() string       { return "HTML Compliance Assessment" }
func (n *HTMLCompliance) DependsOn() []string { return []string{AccessCheckName} }

// audit accumulates findings and corrections over one document.
type audit struct {
	issues      map[string][]string
	corrections map[string]bool
	msgs        []pipeline.Message
}

func (a *audit) report(category string, level pipeline.Level, format string, args ...any) {
	text := fmt.Sprintf(format, args...)
	a.issues[category] = append(a.issues[category], text)
	a.msgs = append(a.msgs, pipeline.NewMessage(level, text))
}

func (a *audit) corrected(what string) { a.corrections[what] = true }

func (n *HTMLCompliance) Run(ctx context.Context, rc *pipeline.RunContext, yield pipeline.Yield) (any, error) {
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
	doc, err := html.Parse(strings.NewReader(body))
	if err != nil {
		return nil, pipeline.NewAssertionFailure("Failed to parse HTML: %v", err)
	}

	a := &audit{issues: map[string][]string{}, corrections: map[string]bool{}}
	runComplianceRules(a, doc, body, rc.URL)
	for _, msg := range a.msgs {
		if err := send(ctx, yield, msg); err != nil {
			return nil, err
		}
	}

	if err := send(ctx, yield, assessmentMessage(a)); err != nil {
		return nil, err
	}

	if len(a.corrections) == 0 {
		if err := send(ctx, yield, pipeline.Info("No automatic corrections applied.")); err != nil {
			return nil, err
		}
		return body, nil
	}

	var rendered bytes.Buffer
	if err := html.Render(&rendered, doc); err != nil {
		return nil, pipeline.NewAssertionFailure("Failed to render corrected HTML: %v", err)
	}
	if err := send(ctx, yield, pipeline.Info(fmt.Sprintf(
		"Applied %d type(s) of corrections to HTML.", len(a.corrections)))); err != nil {
		return nil, err
	}
	return rendered.String(), nil
}

func runComplianceRules(a *audit, doc *html.Node, body, targetURL string) {
	// Structure: doctype and skeleton tags.
	if !strings.HasPrefix(strings.ToLower(strings.TrimSpace(body)), "<!doctype") {
		a.report("Structure", pipeline.LevelImprovement,
			"Missing DOCTYPE declaration. Modern HTML should include <!DOCTYPE html>.")
	}
	for _, tag := range []string{"html", "head", "body"} {
		// The Go parser synthesizes these during tree construction, so the
		// raw markup is what tells us they were written.
		if !strings.Contains(strings.ToLower(body), "<"+tag) {
			a.report("Structure", pipeline.LevelBug,
				"Missing <%s> tag. Document structure is incomplete.", tag)
		}
	}

	// Best practices: charset, viewport, title.
	var hasCharset, hasViewport, hasCSP bool
	for _, meta := range findAll(doc, "meta") {
		if hasAttr(meta, "charset") {
			hasCharset = true
		}
		if equiv, _ := attrVal(meta, "http-equiv"); strings.EqualFold(equiv, "Content-Type") {
			hasCharset = true
		} else if strings.EqualFold(equiv, "Content-Security-Policy") {
			hasCSP = true
		}
		if name, _ := attrVal(meta, "name"); strings.EqualFold(name, "viewport") {
			hasViewport = true
		}
	}
	if !hasCharset {
		a.report("Best Practices", pipeline.LevelImprovement,
			"Missing charset declaration. Add <meta charset='UTF-8'> in <head> to prevent encoding issues.")
	}
	if !hasViewport {
		a.report("Best Practices", pipeline.LevelImprovement,
			"Missing viewport meta tag. Add <meta name='viewport' content='width=device-width, initial-scale=1.0'> for mobile responsiveness.")
	}
	if title := findFirst(doc, "title"); title == nil || strings.TrimSpace(textContent(title)) == "" {
		a.report("Best Practices", pipeline.LevelWarning,
			"Missing or empty <title> tag. Every page should have a descriptive title.")
	}

	// Security: unsafe inline JS, CSP, javascript: links, tabnabbing.
	for _, script := range findAll(doc, "script") {
		if hasAttr(script, "src") {
			continue
		}
		if unsafeInlineJS.MatchString(textOf(script)) {
			a.report("Security", pipeline.LevelVulnerability,
				"Potentially unsafe inline JavaScript using eval() or document.write(). This can lead to XSS vulnerabilities.")
			break
		}
	}
	if !hasCSP {
		a.report("Security", pipeline.LevelImprovement,
			"No Content Security Policy (CSP) meta tag found. Consider adding CSP to mitigate XSS attacks.")
	}

	anchors := findAll(doc, "a")
	jsLinks := 0
	var unsafeBlank []*html.Node
	for _, link := range anchors {
		href, _ := attrVal(link, "href")
		if strings.HasPrefix(strings.ToLower(href), "javascript:") {
			jsLinks++
		}
		if target, _ := attrVal(link, "target"); target == "_blank" {
			rel, _ := attrVal(link, "rel")
			if !strings.Contains(" "+rel+" ", " noopener ") {
				unsafeBlank = append(unsafeBlank, link)
			}
		}
	}
	if jsLinks > 0 {
		a.report("Security", pipeline.LevelVulnerability,
			"Found %d link(s) using 'javascript:' protocol. This can be a security risk and accessibility issue.", jsLinks)
	}
	if len(unsafeBlank) > 0 {
		a.report("Security", pipeline.LevelVulnerability,
			"Found %d link(s) with target='_blank' without rel='noopener'. This can lead to security vulnerabilities (tabnabbing).", len(unsafeBlank))
		for _, link := range unsafeBlank {
			rel, _ := attrVal(link, "rel")
			if rel == "" {
				setAttr(link, "rel", "noopener")
			} else {
				setAttr(link, "rel", rel+" noopener")
			}
		}
		a.corrected("Added rel='noopener' to external links")
	}

	// Accessibility: img alt, input labels, empty headings, table headers,
	// iframe titles, html lang.
	var missingAlt []*html.Node
	for _, img := range findAll(doc, "img") {
		if !hasAttr(img, "alt") {
			missingAlt = append(missingAlt, img)
		}
	}
	if len(missingAlt) > 0 {
		a.report("Accessibility", pipeline.LevelWarning,
			"Found %d image(s) without 'alt' attributes. This impacts accessibility and SEO.", len(missingAlt))
		for _, img := range missingAlt {
			setAttr(img, "alt", "")
		}
		a.corrected("Added empty alt attributes to images")
	}

	labeledIDs := map[string]bool{}
	for _, label := range findAll(doc, "label") {
		if forID, ok := attrVal(label, "for"); ok {
			labeledIDs[forID] = true
		}
	}
	unlabeled := 0
	for _, input := range findAll(doc, "input") {
		typ, _ := attrVal(input, "type")
		if typ == "hidden" || typ == "submit" || typ == "button" {
			continue
		}
		id, _ := attrVal(input, "id")
		if (id == "" || !labeledIDs[id]) && !hasAncestor(input, "label") {
			unlabeled++
		}
	}
	if unlabeled > 0 {
		a.report("Accessibility", pipeline.LevelWarning,
			"Found %d input field(s) without associated labels. This impacts accessibility.", unlabeled)
	}

	// Structure: deprecated tags, forms without action, duplicate IDs.
	for _, tag := range deprecatedTags {
		if count := len(findAll(doc, tag)); count > 0 {
			a.report("Best Practices", pipeline.LevelWarning,
				"Found deprecated <%s> tag(s) (%d occurrence(s)). Use CSS instead.", tag, count)
		}
	}
	formsWithoutAction := 0
	for _, form := range findAll(doc, "form") {
		if !hasAttr(form, "action") {
			formsWithoutAction++
		}
	}
	if formsWithoutAction > 0 {
		a.report("Structure", pipeline.LevelBug,
			"Found %d form(s) without 'action' attribute.", formsWithoutAction)
	}

	ids := map[string]int{}
	walk(doc, func(n *html.Node) {
		if n.Type != html.ElementNode {
			return
		}
		if id, ok := attrVal(n, "id"); ok && id != "" {
			ids[id]++
		}
	})
	dupIDs := make([]string, 0)
	for id, count := range ids {
		if count > 1 {
			dupIDs = append(dupIDs, id)
		}
	}
	sort.Strings(dupIDs)
	for _, id := range dupIDs {
		a.report("Structure", pipeline.LevelBug,
			"Duplicate ID '%s' found %d times. IDs must be unique.", id, ids[id])
	}

	// Security: mixed content on HTTPS pages.
	if strings.HasPrefix(targetURL, "https://") {
		mixed := 0
		for _, tag := range []string{"img", "script", "link", "iframe"} {
			for _, n := range findAll(doc, tag) {
				src, ok := attrVal(n, "src")
				if !ok {
					src, _ = attrVal(n, "href")
				}
				if strings.HasPrefix(src, "http://") {
					mixed++
				}
			}
		}
		if mixed > 0 {
			a.report("Security", pipeline.LevelVulnerability,
				"Found %d HTTP resource(s) on HTTPS page. This can cause mixed content warnings and security issues.", mixed)
		}
	}

	// Best practices: inline style volume.
	inlineStyles := 0
	walk(doc, func(n *html.Node) {
		if n.Type == html.ElementNode && hasAttr(n, "style") {
			inlineStyles++
		}
	})
	if inlineStyles > 10 {
		a.report("Best Practices", pipeline.LevelImprovement,
			"Found %d elements with inline styles. Consider using external CSS for better maintainability.", inlineStyles)
	}

	if htmlTag := findFirst(doc, "html"); htmlTag != nil && !hasAttr(htmlTag, "lang") {
		a.report("Accessibility", pipeline.LevelWarning,
			"Missing 'lang' attribute on <html> tag. This helps screen readers and search engines.")
		setAttr(htmlTag, "lang", "en")
		a.corrected("Added lang='en' to html tag")
	}

	for i := 1; i <= 6; i++ {
		tag := fmt.Sprintf("h%d", i)
		empty := 0
		for _, h := range findAll(doc, tag) {
			if strings.TrimSpace(textContent(h)) == "" {
				empty++
			}
		}
		if empty > 0 {
			a.report("Accessibility", pipeline.LevelWarning,
				"Found %d empty <%s> tag(s). Empty headings confuse screen readers.", empty, tag)
		}
	}

	for _, table := range findAll(doc, "table") {
		if findFirst(table, "th") == nil && findFirst(table, "caption") == nil {
			a.report("Accessibility", pipeline.LevelWarning,
				"Table found without header cells (<th>) or caption. This impacts accessibility.")
			break
		}
	}

	var untitledIframes []*html.Node
	for _, iframe := range findAll(doc, "iframe") {
		if !hasAttr(iframe, "title") {
			untitledIframes = append(untitledIframes, iframe)
		}
	}
	if len(untitledIframes) > 0 {
		a.report("Accessibility", pipeline.LevelWarning,
			"Found %d iframe(s) without 'title' attribute. This impacts accessibility.", len(untitledIframes))
		for _, iframe := range untitledIframes {
			setAttr(iframe, "title", "Embedded content")
		}
		a.corrected("Added title to iframes")
	}
}

// assessmentMessage folds the audit into per-category metrics. Each issue
// costs its category 10 points and the overall score 5.
func assessmentMessage(a *audit) pipeline.Message {
	totalIssues := 0
	metrics := make([]pipeline.Metric, 0, len(complianceCategories))
	for _, category := range complianceCategories {
		issues := a.issues[category]
		totalIssues += len(issues)
		metric := pipeline.Metric{Name: category, Issues: issues}
		if len(issues) > 0 {
			metric.Score = pipeline.IntPtr(max(0, 100-len(issues)*10))
			metric.Feedback = fmt.Sprintf("%d issue(s) found in %s", len(issues), category)
		} else {
			metric.Score = pipeline.IntPtr(100)
			metric.Feedback = fmt.Sprintf("No issues found in %s", category)
		}
		metrics = append(metrics, metric)
	}

	overall := 100
	feedback := "No HTML compliance issues found"
	if totalIssues > 0 {
		overall = max(0, 100-totalIssues*5)
		feedback = fmt.Sprintf("Found %d total issue(s) across all categories", totalIssues)
	}
	return pipeline.MetricsMessage("HTML Compliance Assessment", pipeline.MetricsList{
		Name:     "HTML Compliance Assessment",
		Metrics:  metrics,
		Score:    pipeline.IntPtr(overall),
		Feedback: feedback,
	})
}

// textOf returns the immediate text children of n, unfiltered. Unlike
// textContent it keeps script and style bodies.
func textOf(n *html.Node) string {
	var b strings.Builder
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if c.Type == html.TextNode {
			b.WriteString(c.Data)
		}
	}
	return b.String()
}
