// Package audit implements the audit trail for Pulse.
//
// Every credential mint and every accepted or rejected ingestion is
// appended as one JSON line with timestamp, merchant, action, source,
// parameters and outcome. The file is rotated by size.
package audit
