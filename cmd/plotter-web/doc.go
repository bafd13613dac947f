// Package main hosts the plotter-web entrypoint.
//
// Architecture overview:
//   - HTTP API: internal/api.Server renders the editor page and exposes POST /api/send_job, which acknowledges a
//     job with a five-line preview, and POST /api/analyze, which returns parsed moves, bounds, and statistics.
//     Nothing is sent to a device.
//   - Archive (optional): accepted programs are written to the configured BlobStore (memory/local/GCS), their
//     metadata to memory or Postgres, and a submission.created event to Pub/Sub. Archive failures are logged and
//     never change the submission response.
//   - Configuration & plumbing: Viper populates config from file/env (PLOTTER_*); zap provides structured logging;
//     Prometheus metrics are exported via the metrics middleware and /metrics; OpenTelemetry context rides along
//     on Pub/Sub attributes.
//
// Quick checklist:
//   - Run locally: go run ./cmd/plotter-web serve --config config.yaml (or rely on env overrides).
//   - Analyze a file: go run ./cmd/plotter-web analyze drawing.gcode.
//   - Cloud Run: the server listens on PORT and drains in-flight requests on SIGTERM.
package main
