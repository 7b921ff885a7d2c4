package crawler

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestExtractLinks(t *testing.T) {
	body := []byte(`<html><body>
		<a href="/docs/a">A</a>
		<a href="https://good.org/docs/b#frag">B</a>
		<a href="https://evil.example.com/steal">Evil</a>
		<a href="mailto:team@good.org">Mail</a>
		<a href="/docs/a">A again</a>
		<a>no href</a>
		<a href="https://sub.good.org/c">C</a>
	</body></html>`)

	links, err := ExtractLinks("https://good.org/index.html", body, 1, []string{"good.org"})
	require.NoError(t, err)
	require.Equal(t, []FrontierEntry{
		{URL: "https://good.org/docs/a", Depth: 2},
		{URL: "https://good.org/docs/b", Depth: 2},
		{URL: "https://sub.good.org/c", Depth: 2},
	}, links)
}

func TestExtractLinksDropsDisallowedDomain(t *testing.T) {
	body := []byte(`<a href="https://evil.example.com/">x</a>`)
	links, err := ExtractLinks("https://good.org/", body, 0, []string{"good.org"})
	require.NoError(t, err)
	require.Empty(t, links)
}
