package crawler

import (
	"errors"
	"fmt"
	"net/url"
	"strings"
)

// ErrUnsupportedURL is returned for URLs that are not absolute http(s) URLs.
var ErrUnsupportedURL = errors.New("unsupported url")

// Resolve resolves href against base (which may be empty for absolute
// hrefs) and returns the absolute URL without its fragment.
func Resolve(base, href string) (string, error) {
	href = strings.TrimSpace(href)
	if href == "" {
		return "", fmt.Errorf("%w: empty reference", ErrUnsupportedURL)
	}
	ref, err := url.Parse(href)
	if err != nil {
		return "", fmt.Errorf("parse url: %w", err)
	}
	if base != "" {
		b, err := url.Parse(base)
		if err != nil {
			return "", fmt.Errorf("parse base url: %w", err)
		}
		ref = b.ResolveReference(ref)
	}
	ref.Fragment = ""
	ref.RawFragment = ""
	scheme := strings.ToLower(ref.Scheme)
	if (scheme != "http" && scheme != "https") || ref.Host == "" {
		return "", fmt.Errorf("%w: %s", ErrUnsupportedURL, href)
	}
	return ref.String(), nil
}

// HostAllowed reports whether host contains at least one allowed-domain substring.
func HostAllowed(host string, allowedDomains []string) bool {
	host = strings.ToLower(host)
	if host == "" {
		return false
	}
	for _, d := range allowedDomains {
		d = strings.ToLower(strings.TrimSpace(d))
		if d != "" && strings.Contains(host, d) {
			return true
		}
	}
	return false
}

// Hostname returns the lowercase host of rawURL, or "" when it cannot be parsed.
func Hostname(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil {
		return ""
	}
	return strings.ToLower(u.Hostname())
}
