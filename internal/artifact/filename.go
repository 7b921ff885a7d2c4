package artifact

import (
	"strconv"
	"strings"

	"github.com/JakeFAU/topic-crawler/internal/hash/md5"
)

// maxBaseLen keeps generated names under common filesystem limits once a
// suffix and extension are appended.
const maxBaseLen = 200

var unsafeChars = strings.NewReplacer(
	"<", "_", ">", "_", ":", "_", `"`, "_", ".", "_",
	"/", "_", `\`, "_", "|", "_", "?", "_", "*", "_",
)

// BaseName derives the deterministic filename stem for rawURL: the scheme
// is dropped and every character in <>:"./\|?* becomes an underscore.
func BaseName(rawURL string) string {
	rest := rawURL
	if i := strings.Index(rest, "://"); i >= 0 {
		rest = rest[i+3:]
	}
	name := unsafeChars.Replace(rest)
	if len(name) > maxBaseLen {
		name = name[:maxBaseLen-13] + "_" + md5.New().Hash([]byte(rawURL))[:12]
	}
	return name
}

// Name joins the base name of rawURL, a disambiguating suffix and an extension.
func Name(rawURL, suffix, ext string) string {
	name := BaseName(rawURL) + suffix
	if ext != "" {
		name += "." + strings.TrimPrefix(ext, ".")
	}
	return name
}

// PageSuffix builds the "_page_<p>_<what>_<i>" suffix used for PDF artifacts.
// Indices are 1-based.
func PageSuffix(page int, what string, index int) string {
	return "_page_" + strconv.Itoa(page) + "_" + what + "_" + strconv.Itoa(index)
}

// IndexSuffix builds the "_<what>_<i>" suffix used for HTML tables.
func IndexSuffix(what string, index int) string {
	return "_" + what + "_" + strconv.Itoa(index)
}
