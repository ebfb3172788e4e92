// Package history keeps the most recent events of every merchant in a bounded
// ring so that new subscribers can be bootstrapped with them.
//
// Buffers are created on first append and never removed for the lifetime of
// the process. Each buffer carries its own lock; the store-level lock only
// guards the tenant map.
package history
