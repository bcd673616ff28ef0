package mcp

import (
	"encoding/json"
	"fmt"
	"net/http"
	"sync"

	"github.com/agentmail/bus/internal/errs"
	"github.com/agentmail/bus/internal/rpcproto"
)

const (
	// MaxConnectionsPerAgent limits concurrent SSE connections per agent.
	MaxConnectionsPerAgent = 5
	// MaxTotalConnections limits total SSE connections across all agents,
	// the process-wide connection pool spec.md §7 lists under Backpressure.
	MaxTotalConnections = 100
)

// ConnectionLimiter enforces spec.md §7's connection-pool backpressure:
// a per-agent cap (one runaway agent can't starve the rest) and a
// process-wide cap (the pool itself is bounded).
type ConnectionLimiter struct {
	mu               sync.RWMutex
	perAgentCount    map[string]int // agentID -> connection count
	totalConnections int
	maxPerAgent      int
	maxTotal         int
}

// NewConnectionLimiter builds a limiter with the given per-agent and
// total connection caps.
func NewConnectionLimiter(maxPerAgent, maxTotal int) *ConnectionLimiter {
	return &ConnectionLimiter{
		perAgentCount: make(map[string]int),
		maxPerAgent:   maxPerAgent,
		maxTotal:      maxTotal,
	}
}

// TryAcquire attempts to reserve a connection slot for agentID. It
// returns true and counts the slot against both caps, or false if
// either cap is already at its limit.
func (cl *ConnectionLimiter) TryAcquire(agentID string) bool {
	cl.mu.Lock()
	defer cl.mu.Unlock()

	if cl.totalConnections >= cl.maxTotal {
		return false
	}

	currentCount := cl.perAgentCount[agentID]
	if currentCount >= cl.maxPerAgent {
		return false
	}

	cl.perAgentCount[agentID]++
	cl.totalConnections++
	return true
}

// Release frees agentID's connection slot.
func (cl *ConnectionLimiter) Release(agentID string) {
	cl.mu.Lock()
	defer cl.mu.Unlock()

	if count, ok := cl.perAgentCount[agentID]; ok && count > 0 {
		cl.perAgentCount[agentID]--
		if cl.perAgentCount[agentID] == 0 {
			delete(cl.perAgentCount, agentID)
		}
		cl.totalConnections--
	}
}

// GetStats returns a snapshot of per-agent and total connection counts.
func (cl *ConnectionLimiter) GetStats() (perAgent map[string]int, total int) {
	cl.mu.RLock()
	defer cl.mu.RUnlock()

	perAgent = make(map[string]int, len(cl.perAgentCount))
	for k, v := range cl.perAgentCount {
		perAgent[k] = v
	}
	total = cl.totalConnections
	return
}

// HandleLimitExceeded writes a 429 response through the same
// errs.KindBackpressure/rpcproto.ToolError envelope every other boundary
// error in this package uses, rather than an ad hoc JSON literal, so a
// connection-pool rejection looks identical to any other backpressure
// error a client might see from a tool call.
func (cl *ConnectionLimiter) HandleLimitExceeded(w http.ResponseWriter, agentID string) {
	cl.mu.RLock()
	currentCount := cl.perAgentCount[agentID]
	totalCount := cl.totalConnections
	cl.mu.RUnlock()

	var message string
	if totalCount >= cl.maxTotal {
		message = fmt.Sprintf("connection pool exhausted (%d/%d connections)", totalCount, cl.maxTotal)
	} else if currentCount >= cl.maxPerAgent {
		message = fmt.Sprintf("per-agent connection limit exceeded for %s (%d/%d connections)", agentID, currentCount, cl.maxPerAgent)
	} else {
		message = "connection limit exceeded"
	}

	err := errs.WithDetails(errs.KindBackpressure, message, map[string]interface{}{
		"error_code":  "POOL_EXHAUSTED",
		"retry_after": 10,
	})

	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Retry-After", "10")
	w.WriteHeader(http.StatusTooManyRequests)

	resp := rpcproto.Response{
		JSONRPC: "2.0",
		Error:   rpcproto.ToolError(err),
	}
	json.NewEncoder(w).Encode(resp)
}
