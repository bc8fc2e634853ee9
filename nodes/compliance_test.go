package nodes

import (
	"strings"
	"testing"

	"github.com/blackscope/blackscope/pipeline"
	"github.com/blackscope/blackscope/webclient"
)

const compliantPage = `<!DOCTYPE html>
<html lang="en">
<head>
<meta charset="UTF-8">
<meta name="viewport" content="width=device-width, initial-scale=1.0">
<meta http-equiv="Content-Security-Policy" content="default-src 'self'">
<title>Clean Page</title>
</head>
<body>
<h1>Welcome</h1>
<p>Nothing to report.</p>
</body>
</html>`

func complianceContext(body string) *pipeline.RunContext {
	rc := newRunContext("https://example.com")
	rc.History.Add(pipeline.Artifact{
		NodeID: AccessCheckName,
		Value:  &webclient.Page{StatusCode: 200, Body: body},
	})
	return rc
}

func findingTexts(msgs []pipeline.Message) []string {
	var out []string
	for _, m := range msgs {
		if m.Type == pipeline.TypeEvaluation {
			out = append(out, m.Text)
		}
	}
	return out
}

func metricsOf(t *testing.T, msgs []pipeline.Message) pipeline.MetricsList {
	t.Helper()
	for _, m := range msgs {
		if m.Type == pipeline.TypeMetrics {
			list, ok := m.Details.(pipeline.MetricsList)
			if !ok {
				t.Fatalf("metrics details = %T", m.Details)
			}
			return list
		}
	}
	t.Fatal("no metrics message emitted")
	return pipeline.MetricsList{}
}

func TestHTMLCompliance_CleanPage(t *testing.T) {
	msgs, value, err := collect(t, NewHTMLCompliance(), complianceContext(compliantPage))
	if err != nil {
		t.Fatal(err)
	}

	if texts := findingTexts(msgs); len(texts) != 1 || texts[0] != "No automatic corrections applied." {
		t.Errorf("findings on a clean page: %v", texts)
	}

	list := metricsOf(t, msgs)
	if list.Score == nil || *list.Score != 100 {
		t.Errorf("overall score = %v", list.Score)
	}
	if list.Feedback != "No HTML compliance issues found" {
		t.Errorf("feedback = %q", list.Feedback)
	}
	if len(list.Metrics) != 4 {
		t.Fatalf("expected 4 category metrics, got %d", len(list.Metrics))
	}
	for _, m := range list.Metrics {
		if m.Score == nil || *m.Score != 100 {
			t.Errorf("category %s score = %v", m.Name, m.Score)
		}
	}

	if value.(string) != compliantPage {
		t.Error("clean page should pass through unmodified")
	}
}

func TestHTMLCompliance_Findings(t *testing.T) {
	body := `<html>
<head><title>Risky</title></head>
<body>
<script>eval("alert(1)")</script>
<a href="javascript:void(0)">js link</a>
<a href="https://other.example" target="_blank">external</a>
<img src="https://example.com/a.png">
<form><input type="text" id="q"></form>
<div id="dup"></div><div id="dup"></div>
<img src="http://insecure.example/b.png" alt="b">
<center>old</center>
<h2>  </h2>
<table><tr><td>1</td></tr></table>
<iframe src="https://embed.example"></iframe>
</body>
</html>`

	msgs, value, err := collect(t, NewHTMLCompliance(), complianceContext(body))
	if err != nil {
		t.Fatal(err)
	}
	texts := findingTexts(msgs)

	contains := func(substr string) {
		t.Helper()
		for _, text := range texts {
			if strings.Contains(text, substr) {
				return
			}
		}
		t.Errorf("no finding containing %q in %v", substr, texts)
	}

	contains("Missing DOCTYPE declaration.")
	contains("Missing charset declaration.")
	contains("Missing viewport meta tag.")
	contains("Potentially unsafe inline JavaScript")
	contains("No Content Security Policy (CSP) meta tag found.")
	contains("Found 1 link(s) using 'javascript:' protocol.")
	contains("Found 1 link(s) with target='_blank' without rel='noopener'.")
	contains("Found 1 image(s) without 'alt' attributes.")
	contains("Found 1 input field(s) without associated labels.")
	contains("Found deprecated <center> tag(s) (1 occurrence(s)).")
	contains("Found 1 form(s) without 'action' attribute.")
	contains("Duplicate ID 'dup' found 2 times.")
	contains("Found 1 HTTP resource(s) on HTTPS page.")
	contains("Missing 'lang' attribute on <html> tag.")
	contains("Found 1 empty <h2> tag(s).")
	contains("Table found without header cells (<th>) or caption.")
	contains("Found 1 iframe(s) without 'title' attribute.")

	t.Run("corrections are applied", func(t *testing.T) {
		corrected, ok := value.(string)
		if !ok {
			t.Fatalf("terminal value = %T", value)
		}
		if !strings.Contains(corrected, `rel="noopener"`) {
			t.Error("missing noopener correction")
		}
		if !strings.Contains(corrected, `lang="en"`) {
			t.Error("missing html lang correction")
		}
		if !strings.Contains(corrected, `title="Embedded content"`) {
			t.Error("missing iframe title correction")
		}
		if !strings.Contains(corrected, `alt=""`) {
			t.Error("missing empty alt correction")
		}

		contains("Applied 4 type(s) of corrections to HTML.")
	})

	t.Run("scores reflect issue counts", func(t *testing.T) {
		list := metricsOf(t, msgs)
		if list.Score == nil || *list.Score >= 100 {
			t.Errorf("overall score = %v", list.Score)
		}
		byName := map[string]pipeline.Metric{}
		for _, m := range list.Metrics {
			byName[m.Name] = m
		}
		security := byName["Security"]
		if security.Score == nil || *security.Score == 100 {
			t.Errorf("security score should drop, got %v", security.Score)
		}
		if len(security.Issues) == 0 {
			t.Error("security issues missing from the metric")
		}
	})
}

func TestHTMLCompliance_MixedContentOnlyOnHTTPS(t *testing.T) {
	body := `<!DOCTYPE html><html lang="en"><head><meta charset="UTF-8"><title>t</title></head>
<body><img src="http://insecure.example/a.png" alt="a"></body></html>`

	rc := newRunContext("http://example.com")
	rc.History.Add(pipeline.Artifact{
		NodeID: AccessCheckName,
		Value:  &webclient.Page{StatusCode: 200, Body: body},
	})

	msgs, _, err := collect(t, NewHTMLCompliance(), rc)
	if err != nil {
		t.Fatal(err)
	}
	for _, text := range findingTexts(msgs) {
		if strings.Contains(text, "HTTP resource(s) on HTTPS page") {
			t.Errorf("mixed content flagged on a plain HTTP target: %s", text)
		}
	}
}

func TestHTMLCompliance_MissingUpstreamPage(t *testing.T) {
	rc := newRunContext("https://example.com")
	rc.History.Add(pipeline.Artifact{NodeID: AccessCheckName})

	msgs, value, err := collect(t, NewHTMLCompliance(), rc)
	if err != nil {
		t.Fatal(err)
	}
	if value != nil {
		t.Errorf("terminal value = %v", value)
	}
	if !hasMessage(msgs, pipeline.LevelError, "Cannot validate HTML: response unavailable or failed.") {
		t.Errorf("got %v", msgs)
	}
}
