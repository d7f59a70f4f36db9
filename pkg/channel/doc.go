// Package channel owns the physical serial connection to the device.
//
// The Manager is the only component that touches the port. It serializes
// all exchanges: concurrent callers queue on an internal lock, so at most
// one command line is in flight at any instant and reply bytes are never
// interleaved. A call blocks only the calling goroutine.
//
// # Exchange lifecycle
//
// Execute writes one sanitized command line and waits for a matching reply
// line, skipping unsolicited boot noise. On timeout or write failure the
// caller gets a typed error and, by default, the port is closed so the next
// exchange starts from a clean connection. A reply that arrives after its
// exchange timed out is discarded by the next exchange's pre-drain and
// prefix matching; it can never be mistaken for a fresh reply.
//
// There are no automatic retries. Retry policy belongs to callers.
//
// # Health
//
// The manager tracks the time of the last attempted exchange (regardless
// of outcome) for connection-health purposes, and exposes Ping as a cheap
// no-op round trip.
package channel
