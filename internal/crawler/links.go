package crawler

import (
	"bytes"
	"fmt"

	"github.com/PuerkitoBio/goquery"
)

// ExtractLinks discovers the anchors of an HTML page whose resolved host is
// allowed and returns them one level deeper than the page. Malformed anchors
// are skipped silently; each URL appears at most once in the result.
func ExtractLinks(pageURL string, body []byte, depth int, allowedDomains []string) ([]FrontierEntry, error) {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("parse html: %w", err)
	}
	var out []FrontierEntry
	seen := make(map[string]struct{})
	doc.Find("a[href]").Each(func(_ int, s *goquery.Selection) {
		href, _ := s.Attr("href")
		resolved, err := Resolve(pageURL, href)
		if err != nil {
			return
		}
		if !HostAllowed(Hostname(resolved), allowedDomains) {
			return
		}
		if _, dup := seen[resolved]; dup {
			return
		}
		seen[resolved] = struct{}{}
		out = append(out, FrontierEntry{URL: resolved, Depth: depth + 1})
	})
	return out, nil
}
