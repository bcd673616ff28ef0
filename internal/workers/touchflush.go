package workers

import (
	"context"
	"time"

	"github.com/agentmail/bus/internal/cache/readcache"
	"github.com/agentmail/bus/internal/store"
)

// TouchFlushInterval is how often the worker polls the touch queue's
// ReadyToFlush clock. It is intentionally shorter than
// readcache.MinFlushInterval so a flush happens promptly once the
// interval elapses.
const TouchFlushInterval = 5 * time.Second

// RunTouchFlush drains q's deferred agent-activity touches into the
// store whenever q.ReadyToFlush reports true, coalescing many read-path
// touches into a single batched UPDATE per flush (see
// readcache.TouchQueue and store.TouchAgents).
func RunTouchFlush(ctx context.Context, st *store.Store, q *readcache.TouchQueue) {
	logger := newLogger("touch-flush")
	logger.Infof("started poll_interval=%s min_flush_interval=%s", TouchFlushInterval, readcache.MinFlushInterval)

	for {
		select {
		case <-ctx.Done():
			logger.Infof("shutting down")
			return
		default:
		}

		if q.ReadyToFlush() {
			touches := q.DrainTouches()
			if len(touches) > 0 {
				if err := st.TouchAgents(touches); err != nil {
					logger.Warnf("flush failed: %v", err)
				}
			}
		}

		if !SleepChunked(ctx, TouchFlushInterval) {
			return
		}
	}
}
