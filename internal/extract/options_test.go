package extract

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestImageFormat(t *testing.T) {
	t.Parallel()
	cases := map[string]struct {
		data []byte
		want string
	}{
		"png":  {data: pngBytes(64, 0), want: "png"},
		"gif":  {data: []byte("GIF89a\x01\x00\x01\x00\x00\x00\x00"), want: "gif"},
		"jpeg": {data: []byte("\xff\xd8\xff\xe0\x00\x10JFIF\x00"), want: "jpg"},
		"text": {data: []byte("plain words, not pixels"), want: "svg"},
	}
	for name, tc := range cases {
		t.Run(name, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tc.want, ImageFormat(tc.data))
		})
	}
}

func TestTableCSV(t *testing.T) {
	t.Parallel()
	out, err := tableCSV([][]string{{"h1", "h2", "h3"}, {"only"}, {"a,b", "c"}})
	require.NoError(t, err)
	assert.Equal(t, "h1,h2,h3\nonly,,\n\"a,b\",c,\n", string(out))

	_, err = tableCSV(nil)
	require.ErrorIs(t, err, ErrEmptyTable)
	_, err = tableCSV([][]string{{"", ""}})
	require.ErrorIs(t, err, ErrEmptyTable)
}

func TestFilterLines(t *testing.T) {
	t.Parallel()
	text := "  Keep this useful line  \nToo short\n\nAccept all cookies on this site\nAnother line worth keeping"
	got := filterLines(text, []string{"cookies"})
	assert.Equal(t, "Keep this useful line\nAnother line worth keeping", got)
}
