package extract

import (
	"strings"

	"golang.org/x/net/html"
)

// joinedText returns the text nodes under n joined by sep. With trim set,
// each node is trimmed and blank nodes are dropped.
func joinedText(n *html.Node, sep string, trim bool) string {
	if n == nil {
		return ""
	}
	var parts []string
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		switch n.Type {
		case html.TextNode:
			s := n.Data
			if trim {
				s = strings.TrimSpace(s)
				if s == "" {
					return
				}
			}
			parts = append(parts, s)
		case html.ElementNode, html.DocumentNode:
			for c := n.FirstChild; c != nil; c = c.NextSibling {
				walk(c)
			}
		}
	}
	walk(n)
	return strings.Join(parts, sep)
}

// strippedStrings joins the trimmed, non-empty text nodes under n with spaces.
func strippedStrings(n *html.Node) string {
	return joinedText(n, " ", true)
}

func normalizeWhitespace(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

func attr(n *html.Node, key string) string {
	for _, a := range n.Attr {
		if strings.EqualFold(a.Key, key) {
			return a.Val
		}
	}
	return ""
}

// filterLines keeps lines with more than two words that contain none of the
// non-content phrases, and joins them with newlines.
func filterLines(text string, nonContent []string) string {
	var kept []string
	for _, line := range strings.Split(text, "\n") {
		line = strings.TrimSpace(line)
		if len(strings.Fields(line)) <= 2 {
			continue
		}
		if containsAny(line, nonContent) {
			continue
		}
		kept = append(kept, line)
	}
	return strings.Join(kept, "\n")
}

func containsAny(s string, phrases []string) bool {
	for _, p := range phrases {
		if p != "" && strings.Contains(s, p) {
			return true
		}
	}
	return false
}
