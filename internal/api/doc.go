// Package api hosts the operator HTTP surface that runs alongside an
// enrichment run. Routes:
//   - GET /healthz and /readyz for liveness and readiness probes.
//   - GET /metrics for Prometheus scraping.
package api
