package mcp

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/agentmail/bus/internal/errs"
	"github.com/agentmail/bus/internal/product"
	"github.com/agentmail/bus/internal/search"
	"github.com/agentmail/bus/internal/store"
	"github.com/agentmail/bus/internal/types"
)

// Deps bundles the coordination-engine handles every bus tool handler
// needs. Replaces the teacher's ToolCallbacks (a grab-bag of Captain
// session/chat closures) with a direct reference to the durable store,
// since the bus's tools operate on one shared SQLite-backed model rather
// than dispatching to per-feature callback closures. Search is optional:
// nil disables the hybrid search_messages tool. search_messages_product
// does not use it either way; it always runs the store's plain
// substring search over each linked project.
type Deps struct {
	Store  *store.Store
	Search *search.Engine

	// Server, if set, lets handlers push a live SSE notification to a
	// recipient that already holds an open MCP connection (see
	// send_message below). nil disables the push; the message still
	// lands in the durable inbox either way, and a disconnected
	// recipient finds it on its next list_inbox poll.
	Server *Server
}

// RegisterDefaultTools registers every bus MCP tool against deps.
func RegisterDefaultTools(s *Server, deps Deps) {
	registerAgentTools(s, deps)
	registerMessageTools(s, deps)
	registerReservationTools(s, deps)
	registerProductTools(s, deps)
	registerSearchTools(s, deps)
}

func errResult(err error) (interface{}, error) {
	return nil, err
}

func floatToInt(v interface{}, def int) int {
	if f, ok := v.(float64); ok {
		return int(f)
	}
	return def
}

func registerAgentTools(s *Server, deps Deps) {
	s.RegisterTool(ToolDefinition{
		Name:        "create_agent",
		Description: "Register an agent identity within a project, creating the project if it does not yet exist.",
		Parameters: map[string]ParameterDef{
			"project_slug":     {Type: "string", Description: "Project slug (e.g. a repo directory name)", Required: true},
			"project_human_key": {Type: "string", Description: "Human-readable project key, defaults to project_slug", Required: false},
			"name":             {Type: "string", Description: "Agent display name", Required: true},
			"program":          {Type: "string", Description: "Agent program identity (e.g. 'claude-code')", Required: true},
			"model":            {Type: "string", Description: "Model identifier", Required: true},
			"task_description": {Type: "string", Description: "What this agent is working on", Required: false},
		},
		Handler: func(agentID string, params map[string]interface{}) (interface{}, error) {
			slug, _ := params["project_slug"].(string)
			humanKey, _ := params["project_human_key"].(string)
			if humanKey == "" {
				humanKey = slug
			}
			name, _ := params["name"].(string)
			program, _ := params["program"].(string)
			model, _ := params["model"].(string)
			taskDesc, _ := params["task_description"].(string)

			if slug == "" || name == "" || program == "" || model == "" {
				return errResult(errs.New(errs.KindValidation, "project_slug, name, program, and model are required"))
			}

			proj, err := deps.Store.GetProjectBySlug(slug)
			if errs.KindOf(err) == errs.KindNotFound {
				proj, err = deps.Store.CreateProject(slug, humanKey)
			}
			if err != nil {
				return errResult(err)
			}

			agent, err := deps.Store.CreateAgent(types.Agent{
				ProjectID:       proj.ID,
				Name:            name,
				Program:         program,
				Model:           model,
				TaskDescription: taskDesc,
			})
			if err != nil {
				return errResult(err)
			}
			return map[string]interface{}{
				"agent_id":   agent.ID,
				"project_id": proj.ID,
				"name":       agent.Name,
			}, nil
		},
	})
}

func registerMessageTools(s *Server, deps Deps) {
	s.RegisterTool(ToolDefinition{
		Name:        "send_message",
		Description: "Send a message from sender_agent_id to one or more recipient agent ids within a project.",
		Parameters: map[string]ParameterDef{
			"sender_agent_id": {Type: "number", Description: "Sender's agent id", Required: true},
			"recipient_ids":   {Type: "array", Description: "Recipient agent ids", Required: true},
			"subject":         {Type: "string", Description: "Message subject", Required: true},
			"body_md":         {Type: "string", Description: "Message body in Markdown", Required: true},
			"importance":      {Type: "string", Description: "low|normal|high|urgent, default normal", Required: false},
			"ack_required":    {Type: "boolean", Description: "Whether recipients must acknowledge", Required: false},
			"thread_id":       {Type: "number", Description: "Existing thread to reply into", Required: false},
		},
		Handler: func(agentID string, params map[string]interface{}) (interface{}, error) {
			senderID := int64(floatToInt(params["sender_agent_id"], 0))
			subject, _ := params["subject"].(string)
			bodyMD, _ := params["body_md"].(string)
			importance, _ := params["importance"].(string)
			ackRequired, _ := params["ack_required"].(bool)

			if senderID == 0 || subject == "" {
				return errResult(errs.New(errs.KindValidation, "sender_agent_id and subject are required"))
			}

			sender, err := deps.Store.GetAgentByID(senderID)
			if err != nil {
				return errResult(err)
			}

			var recipients []types.MessageRecipient
			if raw, ok := params["recipient_ids"].([]interface{}); ok {
				for _, r := range raw {
					recipients = append(recipients, types.MessageRecipient{
						AgentID: int64(floatToInt(r, 0)),
						Kind:    types.RecipientTo,
					})
				}
			}
			if len(recipients) == 0 {
				return errResult(errs.New(errs.KindValidation, "recipient_ids must contain at least one agent id"))
			}

			msg := types.Message{
				ProjectID:   sender.ProjectID,
				SenderID:    senderID,
				Subject:     subject,
				BodyMD:      bodyMD,
				Importance:  types.Importance(importance),
				AckRequired: ackRequired,
			}
			if tid := floatToInt(params["thread_id"], 0); tid != 0 {
				tid64 := int64(tid)
				msg.ThreadID = &tid64
			}

			created, err := deps.Store.CreateMessage(msg, recipients)
			if err != nil {
				return errResult(err)
			}
			if deps.Search != nil {
				doc := search.MessageDoc{
					DocID:     fmt.Sprintf("msg:%d", created.ID),
					ProjectID: created.ProjectID,
					Subject:   created.Subject,
					Body:      created.BodyMD,
				}
				if created.ThreadID != nil {
					doc.ThreadID = *created.ThreadID
				}
				_ = deps.Search.IndexMessage(doc, nil)
			}
			if deps.Server != nil {
				for _, r := range recipients {
					connKey := strconv.FormatInt(r.AgentID, 10)
					_ = deps.Server.NotifyAgent(connKey, "message/received", map[string]interface{}{
						"message_id": created.ID,
						"subject":    created.Subject,
						"importance": created.Importance,
					})
				}
			}
			return map[string]interface{}{"message_id": created.ID, "created_ts": created.CreatedTS}, nil
		},
	})

	s.RegisterTool(ToolDefinition{
		Name:        "list_inbox",
		Description: "List the most recent delivered messages for an agent, newest first.",
		Parameters: map[string]ParameterDef{
			"agent_id": {Type: "number", Description: "Agent id whose inbox to list", Required: true},
			"limit":    {Type: "number", Description: "Max messages to return, default 50", Required: false},
		},
		Handler: func(agentID string, params map[string]interface{}) (interface{}, error) {
			id := int64(floatToInt(params["agent_id"], 0))
			limit := floatToInt(params["limit"], 50)
			if id == 0 {
				return errResult(errs.New(errs.KindValidation, "agent_id is required"))
			}
			rows, err := deps.Store.InboxForAgent(id, limit)
			if err != nil {
				return errResult(err)
			}
			out := make([]map[string]interface{}, 0, len(rows))
			for _, r := range rows {
				out = append(out, map[string]interface{}{
					"message_id":   r.Message.ID,
					"subject":      r.Message.Subject,
					"importance":   r.Message.Importance,
					"ack_required": r.Message.AckRequired,
					"created_ts":   r.Message.CreatedTS,
					"kind":         r.RecipientKind,
					"read":         r.ReadTS != nil,
					"acked":        r.AckTS != nil,
				})
			}
			return map[string]interface{}{"messages": out, "count": len(out)}, nil
		},
	})

	s.RegisterTool(ToolDefinition{
		Name:        "ack_message",
		Description: "Acknowledge a message that required an ack.",
		Parameters: map[string]ParameterDef{
			"message_id": {Type: "number", Description: "Message id", Required: true},
			"agent_id":   {Type: "number", Description: "Acknowledging agent id", Required: true},
		},
		Handler: func(agentID string, params map[string]interface{}) (interface{}, error) {
			msgID := int64(floatToInt(params["message_id"], 0))
			agID := int64(floatToInt(params["agent_id"], 0))
			if msgID == 0 || agID == 0 {
				return errResult(errs.New(errs.KindValidation, "message_id and agent_id are required"))
			}
			if err := deps.Store.AckMessage(msgID, agID, types.Micros(time.Now())); err != nil {
				return errResult(err)
			}
			return map[string]interface{}{"acked": true}, nil
		},
	})

	s.RegisterTool(ToolDefinition{
		Name:        "mark_read",
		Description: "Mark a delivered message as read by its recipient.",
		Parameters: map[string]ParameterDef{
			"message_id": {Type: "number", Description: "Message id", Required: true},
			"agent_id":   {Type: "number", Description: "Reading agent id", Required: true},
		},
		Handler: func(agentID string, params map[string]interface{}) (interface{}, error) {
			msgID := int64(floatToInt(params["message_id"], 0))
			agID := int64(floatToInt(params["agent_id"], 0))
			if msgID == 0 || agID == 0 {
				return errResult(errs.New(errs.KindValidation, "message_id and agent_id are required"))
			}
			if err := deps.Store.MarkRead(msgID, agID, types.Micros(time.Now())); err != nil {
				return errResult(err)
			}
			return map[string]interface{}{"read": true}, nil
		},
	})

	s.RegisterTool(ToolDefinition{
		Name:        "get_thread",
		Description: "Retrieve every message in a thread, oldest first.",
		Parameters: map[string]ParameterDef{
			"thread_id": {Type: "number", Description: "Thread id (the first message's id)", Required: true},
		},
		Handler: func(agentID string, params map[string]interface{}) (interface{}, error) {
			tid := int64(floatToInt(params["thread_id"], 0))
			if tid == 0 {
				return errResult(errs.New(errs.KindValidation, "thread_id is required"))
			}
			msgs, err := deps.Store.ThreadMessages(tid)
			if err != nil {
				return errResult(err)
			}
			return map[string]interface{}{"messages": msgs, "count": len(msgs)}, nil
		},
	})
}

func registerReservationTools(s *Server, deps Deps) {
	s.RegisterTool(ToolDefinition{
		Name:        "reserve_file",
		Description: "Claim exclusive or shared access to a path pattern within a project until it expires or is released.",
		Parameters: map[string]ParameterDef{
			"agent_id":     {Type: "number", Description: "Holder agent id", Required: true},
			"path_pattern": {Type: "string", Description: "Glob-style path pattern to reserve", Required: true},
			"exclusive":    {Type: "boolean", Description: "Whether this reservation excludes other holders", Required: false},
			"reason":       {Type: "string", Description: "Why this reservation is being made", Required: false},
			"ttl_seconds":  {Type: "number", Description: "Seconds until the reservation expires, default 1800", Required: false},
		},
		Handler: func(agentID string, params map[string]interface{}) (interface{}, error) {
			agID := int64(floatToInt(params["agent_id"], 0))
			pattern, _ := params["path_pattern"].(string)
			exclusive, _ := params["exclusive"].(bool)
			reason, _ := params["reason"].(string)
			ttlSeconds := floatToInt(params["ttl_seconds"], 1800)
			if agID == 0 || pattern == "" {
				return errResult(errs.New(errs.KindValidation, "agent_id and path_pattern are required"))
			}

			agent, err := deps.Store.GetAgentByID(agID)
			if err != nil {
				return errResult(err)
			}

			res, err := deps.Store.CreateReservation(types.FileReservation{
				ProjectID:   agent.ProjectID,
				AgentID:     agID,
				PathPattern: pattern,
				Exclusive:   exclusive,
				Reason:      reason,
				ExpiresTS:   types.Micros(time.Now()) + int64(ttlSeconds)*1_000_000,
			})
			if err != nil {
				return errResult(err)
			}
			return map[string]interface{}{"reservation_id": res.ID, "expires_ts": res.ExpiresTS}, nil
		},
	})

	s.RegisterTool(ToolDefinition{
		Name:        "release_file",
		Description: "Release a file reservation before it expires.",
		Parameters: map[string]ParameterDef{
			"reservation_id": {Type: "number", Description: "Reservation id to release", Required: true},
		},
		Handler: func(agentID string, params map[string]interface{}) (interface{}, error) {
			id := int64(floatToInt(params["reservation_id"], 0))
			if id == 0 {
				return errResult(errs.New(errs.KindValidation, "reservation_id is required"))
			}
			if err := deps.Store.ReleaseReservation(id); err != nil {
				return errResult(err)
			}
			return map[string]interface{}{"released": true}, nil
		},
	})

	s.RegisterTool(ToolDefinition{
		Name:        "list_active_reservations",
		Description: "List active (unreleased, unexpired) reservations for a project.",
		Parameters: map[string]ParameterDef{
			"project_id": {Type: "number", Description: "Project id", Required: true},
		},
		Handler: func(agentID string, params map[string]interface{}) (interface{}, error) {
			pid := int64(floatToInt(params["project_id"], 0))
			if pid == 0 {
				return errResult(errs.New(errs.KindValidation, "project_id is required"))
			}
			reservations, err := deps.Store.ActiveReservationsForProject(pid)
			if err != nil {
				return errResult(err)
			}
			return map[string]interface{}{"reservations": reservations, "count": len(reservations)}, nil
		},
	})
}

// registerProductTools wires the product cluster's cross-project
// operations in as MCP tools, gated at call time by product.Enabled.
func registerProductTools(s *Server, deps Deps) {
	s.RegisterTool(ToolDefinition{
		Name:        "ensure_product",
		Description: "Ensure a Product exists (by product_uid or name), creating it if not found. Feature-gated behind AGENTMAIL_ENABLE_PRODUCTS.",
		Parameters: map[string]ParameterDef{
			"product_key": {Type: "string", Description: "A product_uid or name to look up", Required: false},
			"name":        {Type: "string", Description: "Display name for a newly created product", Required: false},
		},
		Handler: func(agentID string, params map[string]interface{}) (interface{}, error) {
			key, _ := params["product_key"].(string)
			name, _ := params["name"].(string)
			p, err := product.EnsureProduct(deps.Store, key, name)
			if err != nil {
				return errResult(err)
			}
			return map[string]interface{}{"id": p.ID, "product_uid": p.ProductUID, "name": p.Name, "created_at": p.CreatedAt}, nil
		},
	})

	s.RegisterTool(ToolDefinition{
		Name:        "products_link",
		Description: "Link a project into a product (idempotent). Feature-gated behind AGENTMAIL_ENABLE_PRODUCTS.",
		Parameters: map[string]ParameterDef{
			"product_key": {Type: "string", Description: "Product uid or name", Required: true},
			"project_key": {Type: "string", Description: "Project slug or human key", Required: true},
		},
		Handler: func(agentID string, params map[string]interface{}) (interface{}, error) {
			productKey, _ := params["product_key"].(string)
			projectKey, _ := params["project_key"].(string)
			res, err := product.ProductsLink(deps.Store, productKey, projectKey)
			if err != nil {
				return errResult(err)
			}
			return map[string]interface{}{
				"linked":       res.Linked,
				"product_uid":  res.Product.ProductUID,
				"project_slug": res.Project.Slug,
			}, nil
		},
	})

	s.RegisterTool(ToolDefinition{
		Name:        "search_messages_product",
		Description: "Full-text search across all projects linked to a product. Feature-gated behind AGENTMAIL_ENABLE_PRODUCTS.",
		Parameters: map[string]ParameterDef{
			"product_key": {Type: "string", Description: "Product uid or name", Required: true},
			"query":       {Type: "string", Description: "Search terms", Required: true},
			"limit":       {Type: "number", Description: "Max results, default 20", Required: false},
		},
		Handler: func(agentID string, params map[string]interface{}) (interface{}, error) {
			productKey, _ := params["product_key"].(string)
			query, _ := params["query"].(string)
			limit := floatToInt(params["limit"], 20)
			items, err := product.SearchMessagesProduct(deps.Store, productKey, query, limit)
			if err != nil {
				return errResult(err)
			}
			return map[string]interface{}{"result": items}, nil
		},
	})

	s.RegisterTool(ToolDefinition{
		Name:        "fetch_inbox_product",
		Description: "Retrieve recent messages for an agent across all projects linked to a product (non-mutating). Feature-gated behind AGENTMAIL_ENABLE_PRODUCTS.",
		Parameters: map[string]ParameterDef{
			"product_key":    {Type: "string", Description: "Product uid or name", Required: true},
			"agent_name":     {Type: "string", Description: "Agent name to look up per-project", Required: true},
			"limit":          {Type: "number", Description: "Max messages, default 20", Required: false},
			"include_bodies": {Type: "boolean", Description: "Include full message bodies", Required: false},
		},
		Handler: func(agentID string, params map[string]interface{}) (interface{}, error) {
			productKey, _ := params["product_key"].(string)
			name, _ := params["agent_name"].(string)
			limit := floatToInt(params["limit"], 20)
			includeBodies, _ := params["include_bodies"].(bool)
			items, err := product.FetchInboxProduct(deps.Store, productKey, name, limit, includeBodies)
			if err != nil {
				return errResult(err)
			}
			return map[string]interface{}{"messages": items, "count": len(items)}, nil
		},
	})

	s.RegisterTool(ToolDefinition{
		Name:        "summarize_thread_product",
		Description: "Summarize a thread across all projects linked to a product. Feature-gated behind AGENTMAIL_ENABLE_PRODUCTS.",
		Parameters: map[string]ParameterDef{
			"product_key": {Type: "string", Description: "Product uid or name", Required: true},
			"thread_id":   {Type: "string", Description: "Thread id", Required: true},
		},
		Handler: func(agentID string, params map[string]interface{}) (interface{}, error) {
			productKey, _ := params["product_key"].(string)
			threadID, _ := params["thread_id"].(string)
			summary, err := product.SummarizeThreadProduct(deps.Store, productKey, threadID, nil)
			if err != nil {
				return errResult(err)
			}
			return map[string]interface{}{"thread_id": summary.ThreadID, "summary": summary.Summary, "message_count": len(summary.Messages)}, nil
		},
	})
}

// registerSearchTools wires the hybrid lexical+semantic pipeline
// (internal/search) into the RPC surface. A nil deps.Search disables
// search_messages entirely rather than erroring on every call, since a
// maintenance process (cmd/busdbctl) has no reason to build an index.
func registerSearchTools(s *Server, deps Deps) {
	if deps.Search == nil {
		return
	}
	s.RegisterTool(ToolDefinition{
		Name:        "search_messages",
		Description: "Hybrid lexical+semantic search over message subjects and bodies within a project, with query-assist field hints (from:, thread:, project:, before:, after:, importance:).",
		Parameters: map[string]ParameterDef{
			"project_id": {Type: "number", Description: "Project id to scope the search to", Required: true},
			"query":      {Type: "string", Description: "Search text, optionally with field hints", Required: true},
			"limit":      {Type: "number", Description: "Max results, default 20", Required: false},
		},
		Handler: func(agentID string, params map[string]interface{}) (interface{}, error) {
			projectID := int64(floatToInt(params["project_id"], 0))
			query, _ := params["query"].(string)
			limit := floatToInt(params["limit"], 20)
			if projectID == 0 || query == "" {
				return errResult(errs.New(errs.KindValidation, "project_id and query are required"))
			}
			result, err := deps.Search.Search(context.Background(), query, search.ModeHybrid, limit, nil, projectID)
			if err != nil {
				return errResult(err)
			}
			out := make([]map[string]interface{}, 0, len(result.Hits))
			for _, h := range result.Hits {
				out = append(out, map[string]interface{}{
					"doc_id":      h.DocID,
					"score":       h.Score,
					"snippet":     h.Snippet,
					"has_snippet": h.HasSnippet,
					"metadata":    h.Metadata,
				})
			}
			return map[string]interface{}{
				"results":     out,
				"count":       len(out),
				"mode_used":   result.Explain.ModeUsed,
				"query_hints": result.Assist.Hints,
			}, nil
		},
	})
}
