// Package api implements the HTTP surface of Pulse.
//
// Routes:
//   - GET  /events        SSE stream for the merchant named by ?token=
//   - GET  /events/ws     the same stream over WebSocket
//   - POST /ingest/tx     record and broadcast a transaction (Bearer token)
//   - GET  /stats/today   aggregates over the retained window
//   - GET  /mint          issue a merchant credential (X-Admin-Secret)
//   - GET  /              liveness text
//   - GET  /metrics       Prometheus exposition
//
// All JSON errors use the {"error": "<code>"} envelope.
package api
