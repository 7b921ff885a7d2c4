package extract

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"go.uber.org/zap"
	"golang.org/x/net/html"

	"github.com/JakeFAU/topic-crawler/internal/artifact"
	"github.com/JakeFAU/topic-crawler/internal/crawler"
)

// Default labels used when a code viewer lacks breadcrumb metadata.
const (
	UnknownFilename = "unknown_filename"
	UnknownBranch   = "unknown_branch"
)

// nonDescriptiveKeywords mark decorative images.
var nonDescriptiveKeywords = []string{"logo", "icon", "favicon", "sprite", "banner", "button"}

// codeViewerSelector matches the read-only source viewer textarea.
const codeViewerSelector = `textarea#read-only-cursor-text-area` +
	`[data-testid="read-only-cursor-text-area"]` +
	`[aria-label="file content"]` +
	`[aria-readonly="true"]` +
	`[inputmode="none"]` +
	`[tabindex="0"]` +
	`[aria-multiline="true"]` +
	`[aria-haspopup="false"]` +
	`[data-gramm="false"]` +
	`[data-gramm_editor="false"]` +
	`[data-enable-grammarly="false"]` +
	`[spellcheck="false"]` +
	`[autocorrect="off"]` +
	`[autocapitalize="off"]` +
	`[autocomplete="off"]` +
	`[data-ms-editor="false"]` +
	`.react-blob-textarea.react-blob-print-hide`

// nonContentSelector lists the elements dropped before falling back to
// article/main/section text. Tables are extracted separately.
const nonContentSelector = "footer, nav, aside, form, noscript, script, style, table"

// HTMLConfig holds the topic-specific HTML knobs.
type HTMLConfig struct {
	NonContentPhrases    []string
	BlacklistedImageURLs []string
}

// HTMLExtractor writes the tables, text and images of an HTML page.
type HTMLExtractor struct {
	opts      Options
	cfg       HTMLConfig
	images    crawler.Fetcher
	blacklist map[string]struct{}
}

// NewHTMLExtractor builds an HTMLExtractor. images fetches <img> sources and
// is usually rate limited.
func NewHTMLExtractor(opts Options, cfg HTMLConfig, images crawler.Fetcher) (*HTMLExtractor, error) {
	if err := opts.validate(); err != nil {
		return nil, err
	}
	if images == nil {
		return nil, errors.New("image fetcher is required")
	}
	blacklist := make(map[string]struct{}, len(cfg.BlacklistedImageURLs))
	for _, u := range cfg.BlacklistedImageURLs {
		if u = strings.TrimSpace(u); u != "" {
			blacklist[u] = struct{}{}
		}
	}
	return &HTMLExtractor{
		opts:      opts.withDefaults(),
		cfg:       cfg,
		images:    images,
		blacklist: blacklist,
	}, nil
}

// Extract implements crawler.Extractor. Tables go first, then text, then images.
func (e *HTMLExtractor) Extract(ctx context.Context, pageURL string, body []byte) error {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("parse html: %w", err)
	}
	e.extractTables(ctx, pageURL, doc)

	// Text extraction removes nodes, so it works on its own parse tree.
	textDoc, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("parse html: %w", err)
	}
	if err := e.extractText(ctx, pageURL, textDoc); err != nil {
		e.opts.Logger.Warn("text extraction failed", zap.String("url", pageURL), zap.Error(err))
	}

	e.extractImages(ctx, pageURL, doc)
	return nil
}

// PageText runs the text state machine without writing anything.
func (e *HTMLExtractor) PageText(doc *goquery.Document) string {
	if code := doc.Find(codeViewerSelector).First(); code.Length() > 0 {
		name := UnknownFilename
		if crumb := doc.Find(`div[data-testid="breadcrumbs-filename"]`).First(); crumb.Length() > 0 {
			name = crumb.Find("h1").First().Text()
		}
		branch := UnknownBranch
		if icon := doc.Find("svg.octicon-git-branch").First(); icon.Length() > 0 {
			branch = icon.NextAllFiltered("span").First().Text()
		}
		return artifact.CodeDocument(name, branch, joinedText(code.Get(0), " ", false))
	}

	var roots []*html.Node
	if body := doc.Find(`div[itemprop="articleBody"]`).First(); body.Length() > 0 {
		roots = body.Nodes
	} else {
		doc.Find(nonContentSelector).Remove()
		doc.Find("article, main, section").Each(func(_ int, s *goquery.Selection) {
			if s.ParentsFiltered("article, main, section").Length() == 0 {
				roots = append(roots, s.Get(0))
			}
		})
		if len(roots) == 0 {
			roots = doc.Nodes
		}
	}
	parts := make([]string, 0, len(roots))
	for _, n := range roots {
		parts = append(parts, joinedText(n, " ", false))
	}
	return filterLines(strings.Join(parts, " "), e.cfg.NonContentPhrases)
}

func (e *HTMLExtractor) extractText(ctx context.Context, pageURL string, doc *goquery.Document) error {
	text := e.PageText(doc)
	if strings.TrimSpace(text) == "" {
		e.opts.Logger.Debug("no content text after filtering", zap.String("url", pageURL))
		return nil
	}
	data := []byte(text)
	return e.opts.Sink.Write(ctx, artifact.Artifact{
		Filename:  artifact.Name(pageURL, "", "txt"),
		SourceURL: pageURL,
		Kind:      artifact.Classify(".txt", data),
		Data:      data,
	})
}

func (e *HTMLExtractor) extractTables(ctx context.Context, pageURL string, doc *goquery.Document) {
	doc.Find("table").Each(func(i int, s *goquery.Selection) {
		node := s.Get(0)
		log := e.opts.Logger.With(zap.String("url", pageURL), zap.Int("table", i+1))
		data, err := tableCSV(htmlTableRows(node))
		if err != nil {
			log.Warn("skipping table", zap.Error(err))
			return
		}
		err = e.opts.Sink.Write(ctx, artifact.Artifact{
			Filename:  artifact.Name(pageURL, artifact.IndexSuffix("table", i+1), "csv"),
			SourceURL: pageURL,
			Kind:      artifact.KindTable,
			Data:      data,
			Context:   strippedStrings(node.Parent),
		})
		if err != nil {
			log.Warn("writing table failed", zap.Error(err))
		}
	})
}

// htmlTableRows collects the rows of table into a grid, expanding colspan.
// Rows of nested tables are left to their own table.
func htmlTableRows(table *html.Node) [][]string {
	var rows [][]string
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		for child := n.FirstChild; child != nil; child = child.NextSibling {
			if child.Type != html.ElementNode {
				continue
			}
			switch strings.ToLower(child.Data) {
			case "table":
				continue
			case "tr":
				var row []string
				for cell := child.FirstChild; cell != nil; cell = cell.NextSibling {
					if cell.Type != html.ElementNode {
						continue
					}
					tag := strings.ToLower(cell.Data)
					if tag != "td" && tag != "th" {
						continue
					}
					text := normalizeWhitespace(joinedText(cell, " ", true))
					for span := colspan(cell); span > 0; span-- {
						row = append(row, text)
					}
				}
				if len(row) > 0 {
					rows = append(rows, row)
				}
			default:
				walk(child)
			}
		}
	}
	walk(table)
	return rows
}

func colspan(cell *html.Node) int {
	n := 0
	for _, r := range strings.TrimSpace(attr(cell, "colspan")) {
		if r < '0' || r > '9' {
			return 1
		}
		n = n*10 + int(r-'0')
		if n > 1000 {
			return 1000
		}
	}
	if n < 1 {
		return 1
	}
	return n
}

type imageCandidate struct {
	node    *html.Node
	caption string
}

func (e *HTMLExtractor) extractImages(ctx context.Context, pageURL string, doc *goquery.Document) {
	seen := make(map[string]struct{})
	for _, c := range imageCandidates(doc.Get(0)) {
		if err := ctx.Err(); err != nil {
			return
		}
		src := strings.TrimSpace(attr(c.node, "src"))
		if src == "" {
			continue
		}
		imgURL, err := crawler.Resolve(pageURL, src)
		if err != nil {
			e.opts.Logger.Warn("unresolvable image url",
				zap.String("url", pageURL), zap.String("src", src), zap.Error(err))
			continue
		}
		if _, dup := seen[imgURL]; dup {
			continue
		}
		seen[imgURL] = struct{}{}

		alt := attr(c.node, "alt")
		surrounding := strippedStrings(c.node.Parent)
		if !e.descriptive(imgURL, src, alt+" "+c.caption+" "+surrounding) {
			e.opts.Logger.Debug("skipping non-descriptive image", zap.String("image", imgURL))
			continue
		}
		e.fetchImage(ctx, pageURL, imgURL, imageContext(alt, c.caption, surrounding, pageURL))
	}
}

// imageContext formats the context string recorded for HTML images.
func imageContext(alt, caption, surrounding, baseURL string) string {
	return fmt.Sprintf("alt: %s, caption: %s, surrounding_text: %s, base_url: %s", alt, caption, surrounding, baseURL)
}

// descriptive rejects decorative images by keyword and blacklisted URLs.
func (e *HTMLExtractor) descriptive(imgURL, src, contextText string) bool {
	lowerURL := strings.ToLower(imgURL)
	lowerCtx := strings.ToLower(contextText)
	for _, k := range nonDescriptiveKeywords {
		if strings.Contains(lowerURL, k) || strings.Contains(lowerCtx, k) {
			return false
		}
	}
	if _, ok := e.blacklist[imgURL]; ok {
		return false
	}
	_, ok := e.blacklist[src]
	return !ok
}

func (e *HTMLExtractor) fetchImage(ctx context.Context, pageURL, imgURL, imgContext string) {
	log := e.opts.Logger.With(zap.String("url", pageURL), zap.String("image", imgURL))
	resp, err := e.images.Fetch(ctx, imgURL)
	if err != nil {
		log.Warn("image fetch failed", zap.Error(err))
		return
	}
	if resp.StatusCode != http.StatusOK {
		log.Warn("image fetch returned non-200", zap.Int("status", resp.StatusCode))
		return
	}
	if len(resp.Body) <= e.opts.MinImageBytes {
		log.Debug("skipping small image", zap.Int("bytes", len(resp.Body)))
		return
	}
	_, err = e.opts.writeImage(ctx, image{
		data:      resp.Body,
		sourceURL: imgURL,
		name:      func(format string) string { return artifact.Name(imgURL, "", format) },
		context:   imgContext,
		baseURL:   pageURL,
	})
	if err != nil {
		log.Warn("image write failed", zap.Error(err))
	}
}

// imageCandidates returns every <img> in document order with the text of
// the first <figcaption> that follows it in document order.
func imageCandidates(root *html.Node) []imageCandidate {
	var (
		out     []imageCandidate
		pending []int
	)
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.ElementNode {
			switch strings.ToLower(n.Data) {
			case "img":
				out = append(out, imageCandidate{node: n})
				pending = append(pending, len(out)-1)
			case "figcaption":
				if len(pending) > 0 {
					caption := strings.TrimSpace(joinedText(n, "", false))
					for _, i := range pending {
						out[i].caption = caption
					}
					pending = pending[:0]
				}
			}
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	if root != nil {
		walk(root)
	}
	return out
}
