package scheduler

import (
	"bytes"
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/JakeFAU/topic-crawler/internal/artifact"
	"github.com/JakeFAU/topic-crawler/internal/crawler"
	"github.com/JakeFAU/topic-crawler/internal/extract"
	"github.com/JakeFAU/topic-crawler/internal/hash/md5"
	"github.com/JakeFAU/topic-crawler/internal/store"
)

const scenarioPage = `<html><body>
<main>
<p>Franka arms ship with seven torque sensing joints.</p>
<div><table><tr><th>Joint</th><th>Limit</th></tr><tr><td>A1</td><td>2.8</td></tr></table></div>
<figure><img src="/img/arm.png" alt="arm diagram"><figcaption>Arm kinematics overview</figcaption></figure>
<a href="/next">next page</a>
</main>
</body></html>`

func TestRunSingleHTMLPageEndToEnd(t *testing.T) {
	t.Parallel()
	h := newHarness(t)
	layout := store.Layout{Root: "/data/franka"}
	require.NoError(t, layout.Ensure(h.fs))
	prov, err := store.OpenYAMLFile[store.ProvenanceRecord](h.fs, layout.URLMappingPath(), store.ProvenanceRootKey)
	require.NoError(t, err)
	ctxStore, err := store.OpenYAMLFile[store.ContextRecord](h.fs, layout.ContextPath(), store.ContextRootKey)
	require.NoError(t, err)
	writer, err := artifact.NewWriter(artifact.WriterConfig{
		FS:           h.fs,
		DocumentsDir: layout.DocumentsDir(),
		Provenance:   prov,
		Context:      ctxStore,
		Topic:        "franka",
		Emitter:      h.events,
	})
	require.NoError(t, err)

	img := append([]byte("\x89PNG\r\n\x1a\n"), bytes.Repeat([]byte{1}, 25*1024)...)
	h.fetcher.responses["https://good.org/arm"] = page(scenarioPage)
	h.fetcher.responses["https://good.org/img/arm.png"] = []crawler.FetchResponse{{StatusCode: 200, Body: img}}

	opts := extract.Options{
		Sink:          writer,
		Ledger:        h.ledger,
		Hasher:        md5.New(),
		MinImageBytes: crawler.DefaultMinImageBytes,
		Emitter:       h.events,
		Topic:         "franka",
	}
	htmlExt, err := extract.NewHTMLExtractor(opts, extract.HTMLConfig{}, h.fetcher)
	require.NoError(t, err)
	pdfExt, err := extract.NewPDFExtractor(opts, nil, nil)
	require.NoError(t, err)

	deps := h.deps()
	deps.HTML = htmlExt
	deps.PDF = pdfExt
	deps.Artifacts = writer
	cfg := testConfig("https://good.org/arm")
	cfg.MaxDepth = 0
	s, err := New(cfg, deps)
	require.NoError(t, err)

	stats, err := s.Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 1, stats.PagesCrawled)
	assert.Equal(t, map[artifact.Kind]int{
		artifact.KindTable: 1,
		artifact.KindText:  1,
		artifact.KindImage: 1,
	}, stats.Artifacts)
	assert.Equal(t, []string{"https://good.org/arm", "https://good.org/img/arm.png"}, h.fetcher.called())

	records, err := prov.All(context.Background())
	require.NoError(t, err)
	assert.Equal(t, map[string]store.ProvenanceRecord{
		"good_org_arm_table_1.csv": {URL: "https://good.org/arm", Type: "table"},
		"good_org_arm.txt":         {URL: "https://good.org/arm", Type: "text"},
		"good_org_img_arm_png.png": {URL: "https://good.org/img/arm.png", Type: "image"},
	}, records)

	contexts, err := ctxStore.All(context.Background())
	require.NoError(t, err)
	require.Len(t, contexts, 2)
	assert.Equal(t, "https://good.org/arm", contexts["good_org_img_arm_png.png"].BaseURL)

	reopened, err := store.OpenYAMLFile[store.ProvenanceRecord](h.fs, layout.URLMappingPath(), store.ProvenanceRootKey)
	require.NoError(t, err)
	persisted, err := reopened.All(context.Background())
	require.NoError(t, err)
	assert.Len(t, persisted, 3)

	reLedger, err := store.OpenLedger(h.fs, "/data/hashed_content.txt")
	require.NoError(t, err)
	assert.Equal(t, 2, reLedger.Len())
}
