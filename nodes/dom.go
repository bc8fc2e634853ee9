package nodes

import (
	"strings"

	"golang.org/x/net/html"
)

// walk visits every node of the parsed document in depth-first order.
func walk(n *html.Node, visit func(*html.Node)) {
	visit(n)
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		walk(c, visit)
	}
}

// findAll collects every element with the given tag name.
func findAll(doc *html.Node, tag string) []*html.Node {
	var out []*html.Node
	walk(doc, func(n *html.Node) {
		if n.Type == html.ElementNode && n.Data == tag {
			out = append(out, n)
		}
	})
	return out
}

// findFirst returns the first element with the given tag name, or nil.
func findFirst(doc *html.Node, tag string) *html.Node {
	var found *html.Node
	walk(doc, func(n *html.Node) {
		if found == nil && n.Type == html.ElementNode && n.Data == tag {
			found = n
		}
	})
	return found
}

// attrVal returns the value of the named attribute and whether it is present.
func attrVal(n *html.Node, key string) (string, bool) {
	for _, a := range n.Attr {
		if a.Key == key {
			return a.Val, true
		}
	}
	return "", false
}

func hasAttr(n *html.Node, key string) bool {
	_, ok := attrVal(n, key)
	return ok
}

// setAttr overwrites or appends the named attribute.
func setAttr(n *html.Node, key, val string) {
	for i := range n.Attr {
		if n.Attr[i].Key == key {
			n.Attr[i].Val = val
			return
		}
	}
	n.Attr = append(n.Attr, html.Attribute{Key: key, Val: val})
}

// textContent concatenates the text nodes under n, trimming each fragment,
// the way a consumer-facing summary of the page reads.
func textContent(n *html.Node) string {
	var b strings.Builder
	walk(n, func(c *html.Node) {
		if c.Type != html.TextNode {
			return
		}
		if c.Parent != nil && (c.Parent.Data == "script" || c.Parent.Data == "style") {
			return
		}
		trimmed := strings.TrimSpace(c.Data)
		if trimmed == "" {
			return
		}
		if b.Len() > 0 {
			b.WriteByte(' ')
		}
		b.WriteString(trimmed)
	})
	return b.String()
}

// hasAncestor reports whether n has an ancestor element with the given tag.
func hasAncestor(n *html.Node, tag string) bool {
	for p := n.Parent; p != nil; p = p.Parent {
		if p.Type == html.ElementNode && p.Data == tag {
			return true
		}
	}
	return false
}
