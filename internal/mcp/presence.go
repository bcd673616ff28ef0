package mcp

import (
	"log"
	"strconv"
	"sync"
	"time"

	"github.com/agentmail/bus/internal/cache/readcache"
	"github.com/agentmail/bus/internal/types"
)

// SSEPresenceTracker watches which agents currently hold an open MCP SSE
// connection. Every connect, reconnect, or UpdateLastSeen call doubles as
// a deferred activity touch: presence folds straight into spec.md
// §4.3's "Deferred touch" queue (internal/cache/readcache.TouchQueue),
// so an agent's last_active_ts stays current from connection liveness
// alone, without a store write on every SSE ping. The connKey is the
// transport-level agent identity (the X-Agent-ID header value
// server.go resolves a connection under); when it parses as a store
// agent id, the touch is enqueued under that id, and bad or unregistered
// connKeys simply skip the touch rather than erroring, since presence
// tracking must never block a connection on the agent having already
// called create_agent.
type SSEPresenceTracker struct {
	connections sync.Map // map[string]*SSEConnection (connKey -> connection)
	lastSeen    sync.Map // map[string]time.Time (connKey -> last seen timestamp)

	touches *readcache.TouchQueue

	onOnline  func(connKey string)
	onOffline func(connKey string)

	stopChan chan struct{}
	wg       sync.WaitGroup
}

// staleThreshold is how long a connection may go without a ping or an
// UpdateLastSeen call before the stale monitor marks it offline.
const staleThreshold = 2 * time.Minute

// staleCheckInterval is how often the stale monitor sweeps for expired
// connections.
const staleCheckInterval = 30 * time.Second

// NewSSEPresenceTracker builds a presence tracker. touches may be nil
// (tests that don't care about the deferred-touch side effect), in
// which case connects and last-seen updates simply skip that step.
func NewSSEPresenceTracker(touches *readcache.TouchQueue, onOnline, onOffline func(connKey string)) *SSEPresenceTracker {
	return &SSEPresenceTracker{
		touches:   touches,
		onOnline:  onOnline,
		onOffline: onOffline,
		stopChan:  make(chan struct{}),
	}
}

// touchNow enqueues a deferred activity touch for connKey's agent id, if
// connKey parses as one. Unregistered or non-numeric connKeys (tests,
// operator tooling) are silently skipped.
func (t *SSEPresenceTracker) touchNow(connKey string) {
	if t.touches == nil {
		return
	}
	agentID, err := strconv.ParseInt(connKey, 10, 64)
	if err != nil || agentID == 0 {
		return
	}
	t.touches.EnqueueTouch(agentID, types.Micros(time.Now()))
}

// OnConnect records a newly established SSE connection for connKey,
// enqueues a deferred touch, and notifies the onOnline callback.
func (t *SSEPresenceTracker) OnConnect(connKey string, conn *SSEConnection) {
	log.Printf("[presence] agent %s connected (session=%s)", connKey, conn.SessionID)

	t.connections.Store(connKey, conn)
	t.lastSeen.Store(connKey, time.Now())
	t.touchNow(connKey)

	if t.onOnline != nil {
		t.onOnline(connKey)
	}
}

// OnDisconnect drops connKey's connection and last-seen record and
// notifies the onOffline callback. It does not enqueue a touch: going
// offline is not activity.
func (t *SSEPresenceTracker) OnDisconnect(connKey string) {
	log.Printf("[presence] agent %s disconnected", connKey)

	t.connections.Delete(connKey)
	t.lastSeen.Delete(connKey)

	if t.onOffline != nil {
		t.onOffline(connKey)
	}
}

// UpdateLastSeen refreshes connKey's last-seen timestamp and enqueues a
// deferred touch. Tool handlers call this on any request bearing
// connKey's X-Agent-ID so an agent polling its inbox, without ever
// opening an SSE stream, still keeps last_active_ts current.
func (t *SSEPresenceTracker) UpdateLastSeen(connKey string) {
	t.lastSeen.Store(connKey, time.Now())
	t.touchNow(connKey)
}

// StartStaleMonitor launches the background sweep that disconnects
// agents that haven't pinged or called UpdateLastSeen within
// staleThreshold.
func (t *SSEPresenceTracker) StartStaleMonitor() {
	t.wg.Add(1)
	go t.monitorStaleConnections()
	log.Printf("[presence] stale monitor started (threshold=%s)", staleThreshold)
}

// Stop halts the stale monitor and waits for it to exit.
func (t *SSEPresenceTracker) Stop() {
	close(t.stopChan)
	t.wg.Wait()
	log.Printf("[presence] stale monitor stopped")
}

func (t *SSEPresenceTracker) monitorStaleConnections() {
	defer t.wg.Done()

	ticker := time.NewTicker(staleCheckInterval)
	defer ticker.Stop()

	for {
		select {
		case <-t.stopChan:
			return
		case <-ticker.C:
			now := time.Now()
			t.lastSeen.Range(func(key, value interface{}) bool {
				connKey := key.(string)
				lastSeen := value.(time.Time)
				if now.Sub(lastSeen) > staleThreshold {
					log.Printf("[presence] agent %s stale (last seen %s ago), marking offline", connKey, now.Sub(lastSeen))
					t.OnDisconnect(connKey)
				}
				return true
			})
		}
	}
}

// GetConnectedAgents returns the connKeys currently tracked as online.
func (t *SSEPresenceTracker) GetConnectedAgents() []string {
	var agents []string
	t.connections.Range(func(key, value interface{}) bool {
		agents = append(agents, key.(string))
		return true
	})
	return agents
}

// IsConnected reports whether connKey currently holds an open connection.
func (t *SSEPresenceTracker) IsConnected(connKey string) bool {
	_, ok := t.connections.Load(connKey)
	return ok
}

// GetLastSeen returns connKey's last-seen timestamp, if tracked.
func (t *SSEPresenceTracker) GetLastSeen(connKey string) (time.Time, bool) {
	if val, ok := t.lastSeen.Load(connKey); ok {
		return val.(time.Time), true
	}
	return time.Time{}, false
}
