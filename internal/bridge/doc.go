// Package bridge ingests transactions published on NATS.
//
// Messages on subjects such as "pulse.ingest.<merchantId>" carry the same
// JSON body as POST /ingest/tx. The merchant is the last subject token.
// The path is trusted and unauthenticated. When a message has a reply
// subject the outcome is published back as {"ok":true} or {"error":code}.
package bridge
