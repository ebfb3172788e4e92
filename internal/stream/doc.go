// Package stream implements the per-merchant broadcast engine.
//
// The engine ties three pieces together: the history store (bounded replay),
// the subscriber registry (live sinks) and a per-merchant sequencing lane.
// Ingestion appends and fans out under the lane, and a joining subscriber
// snapshots history and registers under the same lane, so every event is seen
// exactly once by every subscriber: either in the bootstrap frame or live.
//
// Frames are serialized once and shared by all subscribers. Each subscriber has
// a bounded queue drained by its connection goroutine; a full queue drops the
// frame for that subscriber only.
//
// Transports:
//   - SSE (SSEWriter): "event:"/"id:"/"data:" records, comment keep-alives.
//   - WebSocket (WSWriter): one JSON text message per frame, ping keep-alives.
package stream
