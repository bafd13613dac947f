// Package api hosts the HTTP server, middleware, and handlers for the plotter front end.
// Notable routes:
//   - GET / renders the editor page; GET /static/* serves its assets.
//   - POST /api/send_job accepts G-code and echoes a short preview.
//   - POST /api/analyze parses G-code and returns commands, bounds, and stats.
//   - GET /api/jobs/{job_id} returns an archived submission.
//   - GET /healthz / readyz for probes, GET /metrics for Prometheus scraping.
package api
