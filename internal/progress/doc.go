// Package progress carries crawl progress as a stream of events. A Hub
// batches events on a background goroutine and fans them out to sinks
// (structured logs, Prometheus) without ever blocking the crawl loop.
package progress
