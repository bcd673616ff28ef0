// Package workers implements the bus's background maintenance loops:
// file-reservation cleanup, ACK-TTL scanning with escalation, read-cache
// touch-queue flushing, and desktop notification delivery for escalated
// acks. Each worker runs on its own goroutine with a chunked sleep so
// shutdown is observed within one second, mirroring the dedicated-thread
// shape of
// _examples/original_source/crates/mcp-agent-mail-server/src/cleanup.rs
// and ack_ttl.rs, adapted from OS threads to goroutines.
package workers

import (
	"context"
	"time"
)

// SleepChunked sleeps for d in increments of at most 1 second so a
// caller can observe ctx cancellation promptly. Returns false if ctx
// was cancelled before d elapsed.
func SleepChunked(ctx context.Context, d time.Duration) bool {
	remaining := d
	for remaining > 0 {
		select {
		case <-ctx.Done():
			return false
		default:
		}
		chunk := remaining
		if chunk > time.Second {
			chunk = time.Second
		}
		timer := time.NewTimer(chunk)
		select {
		case <-ctx.Done():
			timer.Stop()
			return false
		case <-timer.C:
		}
		remaining -= chunk
	}
	return true
}
