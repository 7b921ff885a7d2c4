// Package extract turns fetched HTML pages and PDF documents into text,
// table and image artifacts. Per-item failures are logged and skipped so a
// single bad table or image never aborts a document.
package extract
