// Package api hosts the optional HTTP status server that runs beside a
// crawl. Routes:
//   - GET /healthz and /readyz for health checks.
//   - GET /metrics for Prometheus scraping.
//   - GET /api/run for a JSON snapshot of the current crawl, fed by the
//     RunStatus progress sink.
package api
