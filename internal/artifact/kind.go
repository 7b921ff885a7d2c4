// Package artifact names, classifies and durably writes the units of content
// extracted by the crawler, recording provenance and context for each.
package artifact

import (
	"bytes"
	"path/filepath"
	"strings"
)

// Kind tags an artifact for downstream ingestion.
type Kind string

// Artifact kinds.
const (
	KindText  Kind = "text"
	KindCode  Kind = "code"
	KindTable Kind = "table"
	KindImage Kind = "image"
)

var imageExtensions = map[string]struct{}{
	".png": {}, ".jpg": {}, ".jpeg": {}, ".gif": {}, ".bmp": {}, ".tiff": {}, ".tif": {},
	".svg": {}, ".webp": {}, ".ico": {}, ".avif": {}, ".jp2": {}, ".jpx": {},
}

// Classify derives a Kind from the filename extension and, for text
// files, the code-document header written by the HTML extractor.
func Classify(filename string, content []byte) Kind {
	ext := strings.ToLower(filepath.Ext(filename))
	if ext == ".csv" {
		return KindTable
	}
	if _, ok := imageExtensions[ext]; ok {
		return KindImage
	}
	if IsCodeDocument(content) {
		return KindCode
	}
	return KindText
}

// IsCodeDocument reports whether content starts with a "Filename:" line,
// has a "Branch:" line right after it (or one line later) and contains a
// fenced code block.
func IsCodeDocument(content []byte) bool {
	lines := bytes.SplitN(content, []byte("\n"), 4)
	if len(lines) < 2 || !bytes.HasPrefix(lines[0], []byte("Filename:")) {
		return false
	}
	branch := bytes.HasPrefix(lines[1], []byte("Branch:")) ||
		(len(lines) > 2 && bytes.HasPrefix(lines[2], []byte("Branch:")))
	return branch && bytes.Contains(content, []byte("```"))
}

// CodeDocument renders the code-viewer text format.
func CodeDocument(name, branch, code string) string {
	return "Filename: " + name + "\nBranch: " + branch + "\n\n```\n" + code + "\n```\n"
}
