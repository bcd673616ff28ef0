package mcp

import (
	"fmt"
	"sort"

	"github.com/agentmail/bus/internal/errs"
)

// ToolHandler processes one MCP tool call and returns its result. agentID
// is the calling connection's identity (the X-Agent-ID header/query
// param the transport resolved it from; see server.go), not necessarily
// validated against the store — handlers that need a durable types.Agent
// row look it up themselves via their own numeric agent_id parameter.
type ToolHandler func(agentID string, params map[string]interface{}) (interface{}, error)

// ToolRegistry holds every MCP tool the bus exposes, keyed by name.
type ToolRegistry struct {
	tools map[string]ToolDefinition
}

// ToolDefinition describes one MCP tool: its name, its JSON-schema-ish
// parameter list (used both for tools/list and for the registry's own
// required-field check in Execute), and the handler that executes it.
type ToolDefinition struct {
	Name        string
	Description string
	Parameters  map[string]ParameterDef
	Handler     ToolHandler
}

// ParameterDef describes one tool parameter.
type ParameterDef struct {
	Type        string
	Description string
	Required    bool
}

// NewToolRegistry creates an empty tool registry.
func NewToolRegistry() *ToolRegistry {
	return &ToolRegistry{
		tools: make(map[string]ToolDefinition),
	}
}

// Register adds a tool to the registry, overwriting any existing tool
// registered under the same name.
func (r *ToolRegistry) Register(tool ToolDefinition) {
	r.tools[tool.Name] = tool
}

// Get returns a tool by name.
func (r *ToolRegistry) Get(name string) (ToolDefinition, bool) {
	tool, ok := r.tools[name]
	return tool, ok
}

// List returns every tool definition in stable name order (for MCP
// tools/list), so repeated calls against an unchanged registry produce
// identical output regardless of Go's randomized map iteration order.
func (r *ToolRegistry) List() []map[string]interface{} {
	names := make([]string, 0, len(r.tools))
	for name := range r.tools {
		names = append(names, name)
	}
	sort.Strings(names)

	tools := make([]map[string]interface{}, 0, len(names))
	for _, name := range names {
		tool := r.tools[name]
		params := make(map[string]interface{}, len(tool.Parameters))
		var required []string

		for pname, def := range tool.Parameters {
			params[pname] = map[string]interface{}{
				"type":        def.Type,
				"description": def.Description,
			}
			if def.Required {
				required = append(required, pname)
			}
		}
		sort.Strings(required)

		tools = append(tools, map[string]interface{}{
			"name":        tool.Name,
			"description": tool.Description,
			"inputSchema": map[string]interface{}{
				"type":       "object",
				"properties": params,
				"required":   required,
			},
		})
	}
	return tools
}

// missingRequiredField reports the first declared-required parameter
// absent from params, or "" if every required parameter is present. A
// parameter counts as absent when the key is missing or its value is an
// explicit JSON null, matching how encoding/json decodes an omitted
// field vs a null one.
func missingRequiredField(tool ToolDefinition, params map[string]interface{}) string {
	for name, def := range tool.Parameters {
		if !def.Required {
			continue
		}
		if v, ok := params[name]; !ok || v == nil {
			return name
		}
	}
	return ""
}

// Execute runs a tool by name, rejecting the call before the handler
// ever sees it when a declared-required parameter is missing. This is
// the bus's MISSING_FIELD boundary error (spec.md §6), centralized here
// instead of duplicated across every handler's own parameter checks.
func (r *ToolRegistry) Execute(name string, agentID string, params map[string]interface{}) (interface{}, error) {
	tool, ok := r.tools[name]
	if !ok {
		return nil, errs.WithDetails(errs.KindNotFound, fmt.Sprintf("unknown tool: %s", name),
			map[string]interface{}{"error_code": "NOT_FOUND", "tool": name})
	}
	if field := missingRequiredField(tool, params); field != "" {
		return nil, errs.WithDetails(errs.KindValidation, fmt.Sprintf("%s: missing required field %q", name, field),
			map[string]interface{}{"error_code": "MISSING_FIELD", "tool": name, "field": field})
	}
	return tool.Handler(agentID, params)
}
