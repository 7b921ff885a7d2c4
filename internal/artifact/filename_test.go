package artifact

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestBaseName(t *testing.T) {
	t.Parallel()

	tests := []struct {
		url  string
		want string
	}{
		{url: "https://good.org/docs/index.html", want: "good_org_docs_index_html"},
		{url: "http://good.org/a?b=c*d|e", want: "good_org_a_b=c_d_e"},
		{url: `https://good.org/<x>:"y"\z`, want: "good_org__x___y__z"},
		{url: "good.org/plain", want: "good_org_plain"},
	}
	for _, tt := range tests {
		t.Run(tt.url, func(t *testing.T) {
			require.Equal(t, tt.want, BaseName(tt.url))
		})
	}
}

func TestBaseNameDeterministic(t *testing.T) {
	t.Parallel()
	u := "https://good.org/manual.pdf"
	require.Equal(t, BaseName(u), BaseName(u))
	require.NotContains(t, BaseName(u), ".")
}

func TestBaseNameTruncatesLongURLs(t *testing.T) {
	t.Parallel()

	a := "https://good.org/" + strings.Repeat("a", 400)
	b := "https://good.org/" + strings.Repeat("a", 399) + "b"
	require.Len(t, BaseName(a), maxBaseLen)
	require.NotEqual(t, BaseName(a), BaseName(b))
	require.Equal(t, BaseName(a), BaseName(a))
}

func TestName(t *testing.T) {
	t.Parallel()

	u := "https://good.org/manual.pdf"
	require.Equal(t, "good_org_manual_pdf.txt", Name(u, "", "txt"))
	require.Equal(t, "good_org_manual_pdf_page_2_image_1.png", Name(u, PageSuffix(2, "image", 1), "png"))
	require.Equal(t, "good_org_manual_pdf_page_1_table_3.csv", Name(u, PageSuffix(1, "table", 3), ".csv"))
	require.Equal(t, "good_org_manual_pdf_table_1.csv", Name(u, IndexSuffix("table", 1), "csv"))
	require.Equal(t, "good_org_manual_pdf", Name(u, "", ""))
}
