package crawler

import (
	"net/url"
	"strings"
)

// RouteFor dispatches on the URL path suffix only: ".pdf" (any case) goes to
// the PDF extractor and everything else to the HTML extractor.
func RouteFor(rawURL string) Route {
	p := rawURL
	if u, err := url.Parse(rawURL); err == nil {
		p = u.Path
	}
	if strings.HasSuffix(strings.ToLower(p), ".pdf") {
		return RoutePDF
	}
	return RouteHTML
}
