// Package rpcproto defines the JSON-RPC 2.0 envelope types exchanged over
// the MCP transport (internal/mcp), replacing the teacher's
// captain-specific types.MCPRequest/MCPResponse/MCPError/MCPNotification
// with a bus-neutral set that also knows how to render an errs.Kind as a
// JSON-RPC error code.
package rpcproto

import (
	"strings"

	"github.com/agentmail/bus/internal/errs"
)

// Request is a single JSON-RPC 2.0 call.
type Request struct {
	JSONRPC string      `json:"jsonrpc"`
	ID      interface{} `json:"id,omitempty"`
	Method  string      `json:"method"`
	Params  interface{} `json:"params,omitempty"`
}

// Response is a single JSON-RPC 2.0 reply; exactly one of Result/Error is
// set on any fully-formed response.
type Response struct {
	JSONRPC string      `json:"jsonrpc"`
	ID      interface{} `json:"id"`
	Result  interface{} `json:"result,omitempty"`
	Error   *Error      `json:"error,omitempty"`
}

// Error is the JSON-RPC 2.0 error object.
type Error struct {
	Code    int         `json:"code"`
	Message string      `json:"message"`
	Data    interface{} `json:"data,omitempty"`
}

// Notification is a JSON-RPC 2.0 message with no id — the server pushes
// these over an open SSE/Streamable-HTTP connection without expecting a
// reply (tool-call progress, pings, shutdown signals).
type Notification struct {
	JSONRPC string      `json:"jsonrpc"`
	Method  string      `json:"method"`
	Params  interface{} `json:"params,omitempty"`
}

// Standard JSON-RPC 2.0 error codes used by the transport layer itself
// (parse/method/param errors), as opposed to tool-level failures which
// go through ToolError below.
const (
	CodeParseError     = -32700
	CodeMethodNotFound = -32601
	CodeInvalidParams  = -32602
	CodeToolError      = -32000
)

// ToolError maps an errs.Kind-carrying error from the coordination engine
// onto the JSON-RPC error envelope, so every tool handler in
// internal/mcp can return one shape regardless of which Kind it hit.
//
// The envelope's error_code defaults to the upper-cased Kind name (e.g.
// "not_found" -> "NOT_FOUND", "feature_disabled" -> "FEATURE_DISABLED")
// but a caller can name a more specific boundary code — spec.md §6's
// MISSING_FIELD is the motivating case, distinguishing "a required
// parameter was absent" from the rest of KindValidation — by setting
// details["error_code"] before returning the error; that value wins.
func ToolError(err error) *Error {
	if err == nil {
		return nil
	}
	kind := errs.KindOf(err)
	code := strings.ToUpper(kind.String())
	data := map[string]interface{}{
		"retryable": kind == errs.KindBackpressure || kind == errs.KindConflict,
	}
	if d := errs.Details(err); d != nil {
		if ec, ok := d["error_code"].(string); ok && ec != "" {
			code = ec
		}
		data["details"] = d
	}
	data["error_code"] = code
	return &Error{
		Code:    CodeToolError,
		Message: err.Error(),
		Data:    data,
	}
}
