// Package api hosts the ops HTTP server. Routes:
//   - GET /healthz and /readyz for health checks.
//   - GET /metrics for Prometheus scraping.
//   - POST /v1/runs/{kind} to start a menus, history or retail run.
//   - GET /v1/runs/{kind}/last for the report of the latest finished run.
//
// The /v1 routes require the X-API-Key header when an API key is configured.
package api
