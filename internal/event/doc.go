// Package event defines the transaction event record streamed to merchants and
// the coercion rules that turn a raw ingestion payload into one.
//
// An Event is immutable once built: history buffers and subscriber frames share
// the same value without copying its meta map.
package event
