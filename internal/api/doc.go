// Package api hosts the optional monitoring server that runs alongside a
// crawl. Routes:
//   - GET /healthz for liveness.
//   - GET /readyz, 200 once a crawl is being tracked.
//   - GET /metrics for Prometheus scraping.
//   - GET /progress for the current aggregation snapshot as JSON.
package api
