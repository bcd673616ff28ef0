// Package product implements the product cluster: a feature-gated set of
// cross-project operations that group several projects under one shared
// Product identity so agents working on related repositories can be
// addressed, searched, and summarized together.
//
// Grounded on
// _examples/original_source/crates/mcp-agent-mail-tools/src/products.rs:
// the env-var feature gate, the generate_product_uid/is_hex_uid scheme,
// the product_key-matches-uid-or-name lookup, and the fan-out-then-merge
// shape of search_messages_product/fetch_inbox_product. The gate's env
// var is renamed from the original's WORKTREES_ENABLED to
// AGENTMAIL_ENABLE_PRODUCTS to match this bus's own naming (see
// DESIGN.md).
package product

import (
	"fmt"
	"os"
	"sort"
	"strconv"
	"strings"
	"sync/atomic"
	"time"

	"github.com/agentmail/bus/internal/errs"
	"github.com/agentmail/bus/internal/store"
	"github.com/agentmail/bus/internal/types"
)

// EnvEnableProducts is the feature gate for the entire product cluster.
// Every operation in this package checks it first.
const EnvEnableProducts = "AGENTMAIL_ENABLE_PRODUCTS"

// Enabled reports whether the product cluster is turned on for this
// process.
func Enabled() bool {
	v := strings.TrimSpace(os.Getenv(EnvEnableProducts))
	return v == "1" || strings.EqualFold(v, "true")
}

func errFeatureDisabled() error {
	return errs.WithDetails(errs.KindFeatureDisabled,
		"product cluster is disabled; enable "+EnvEnableProducts+" to use this tool",
		map[string]interface{}{"feature": "products", "env_var": EnvEnableProducts})
}

var productUIDCounter uint64

// generateProductUID builds a 20-char lowercase hex id from the current
// time, the process id, and a monotonic counter, so two calls in the
// same microsecond on the same process still produce distinct ids.
// Mirrors products.rs's generate_product_uid.
func generateProductUID(nowMicros int64) string {
	seq := atomic.AddUint64(&productUIDCounter, 1) - 1
	pid := uint64(os.Getpid())
	raw := strconv.FormatInt(nowMicros, 16) + strconv.FormatUint(pid, 16) + strconv.FormatUint(seq, 16)

	var b strings.Builder
	for _, ch := range raw {
		if isHexDigit(ch) {
			b.WriteRune(toLowerHex(ch))
		}
		if b.Len() == 20 {
			break
		}
	}
	for b.Len() < 20 {
		b.WriteByte('0')
	}
	return b.String()
}

func isHexDigit(r rune) bool {
	return (r >= '0' && r <= '9') || (r >= 'a' && r <= 'f') || (r >= 'A' && r <= 'F')
}

func toLowerHex(r rune) rune {
	if r >= 'A' && r <= 'F' {
		return r + ('a' - 'A')
	}
	return r
}

// isHexUID reports whether candidate looks like a pre-supplied hex
// product_uid (8-64 hex digits) rather than a display name, mirroring
// products.rs's is_hex_uid.
func isHexUID(candidate string) bool {
	s := strings.TrimSpace(candidate)
	if len(s) < 8 || len(s) > 64 {
		return false
	}
	for _, r := range s {
		if !isHexDigit(r) {
			return false
		}
	}
	return true
}

func collapseWhitespace(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

// lookupProduct resolves key against either product_uid or name,
// returning (nil, nil) when nothing matches — grounded on
// get_product_by_key's "product_uid = ? OR name = ? LIMIT 1".
func lookupProduct(st *store.Store, key string) (*types.Product, error) {
	if p, err := st.GetProductByUID(key); err == nil {
		return p, nil
	} else if errs.KindOf(err) != errs.KindNotFound {
		return nil, err
	}
	if p, err := st.GetProductByName(key); err == nil {
		return p, nil
	} else if errs.KindOf(err) != errs.KindNotFound {
		return nil, err
	}
	return nil, nil
}

// EnsureProduct resolves productKey (a product_uid or a name) to an
// existing product, creating one if none matches. Either productKey or
// name must be non-empty. When productKey is itself hex-shaped it is
// used verbatim as the new product's uid; otherwise a fresh uid is
// generated.
func EnsureProduct(st *store.Store, productKey, name string) (*types.Product, error) {
	if !Enabled() {
		return nil, errFeatureDisabled()
	}

	keyRaw := strings.TrimSpace(productKey)
	if keyRaw == "" {
		keyRaw = strings.TrimSpace(name)
	}
	if keyRaw == "" {
		return nil, errs.WithDetails(errs.KindValidation, "provide product_key or name",
			map[string]interface{}{"field": "product_key"})
	}

	if existing, err := lookupProduct(st, keyRaw); err != nil {
		return nil, err
	} else if existing != nil {
		return existing, nil
	}

	uid := strings.ToLower(strings.TrimSpace(productKey))
	if !isHexUID(uid) {
		uid = generateProductUID(types.Micros(time.Now()))
	}

	displayRaw := strings.TrimSpace(name)
	if displayRaw == "" {
		displayRaw = keyRaw
	}
	display := collapseWhitespace(displayRaw)
	if len(display) > 255 {
		display = string([]rune(display)[:255])
	}
	if display == "" {
		display = uid
	}

	return st.CreateProduct(uid, display)
}

// LinkResult is the outcome of ProductsLink.
type LinkResult struct {
	Product *types.Product
	Project *types.Project
	Linked  bool
}

// ProductsLink links project into product (idempotent): resolving
// project by slug or human key first, then attaching it to the product
// via an INSERT OR IGNORE join row.
func ProductsLink(st *store.Store, productKey, projectKey string) (*LinkResult, error) {
	if !Enabled() {
		return nil, errFeatureDisabled()
	}

	product, err := lookupProduct(st, strings.TrimSpace(productKey))
	if err != nil {
		return nil, err
	}
	if product == nil {
		return nil, errs.WithDetails(errs.KindNotFound, "product not found: "+productKey,
			map[string]interface{}{"entity": "Product", "identifier": productKey})
	}

	project, err := resolveProject(st, projectKey)
	if err != nil {
		return nil, err
	}

	if err := st.LinkProductProject(product.ID, project.ID); err != nil {
		return nil, err
	}

	return &LinkResult{Product: product, Project: project, Linked: true}, nil
}

func resolveProject(st *store.Store, key string) (*types.Project, error) {
	key = strings.TrimSpace(key)
	if p, err := st.GetProjectBySlug(key); err == nil {
		return p, nil
	}
	if p, err := st.GetProjectByHumanKey(key); err == nil {
		return p, nil
	}
	return nil, errs.WithDetails(errs.KindNotFound, "project not found: "+key,
		map[string]interface{}{"entity": "Project", "identifier": key})
}

// SearchResultItem is one hit returned from SearchMessagesProduct.
type SearchResultItem struct {
	ID          int64             `json:"id"`
	Subject     string            `json:"subject"`
	Importance  types.Importance  `json:"importance"`
	AckRequired bool              `json:"ack_required"`
	CreatedTS   int64             `json:"created_ts"`
	ThreadID    *int64            `json:"thread_id,omitempty"`
	From        string            `json:"from"`
	ProjectID   int64             `json:"project_id"`
}

// SearchMessagesProduct fans a substring search out across every project
// linked to product, merging and re-sorting by recency (newest first,
// ties broken by ascending id) and capping at limit. Mirrors
// search_messages_product's fan-out-then-merge shape; unlike the
// original's dedicated cross-project SQL query, this layers the plain
// store.SearchMessagesInProject call per linked project since the bus
// has no standalone cross-project index table.
func SearchMessagesProduct(st *store.Store, productKey, query string, limit int) ([]SearchResultItem, error) {
	if !Enabled() {
		return nil, errFeatureDisabled()
	}
	if limit <= 0 {
		limit = 20
	}

	trimmed := strings.TrimSpace(query)
	if trimmed == "" {
		return nil, nil
	}

	product, err := lookupProduct(st, strings.TrimSpace(productKey))
	if err != nil {
		return nil, err
	}
	if product == nil {
		return nil, errs.WithDetails(errs.KindNotFound, "product not found: "+productKey,
			map[string]interface{}{"entity": "Product", "identifier": productKey})
	}

	projectIDs, err := st.ProductProjectIDs(product.ID)
	if err != nil {
		return nil, err
	}

	var items []SearchResultItem
	for _, projectID := range projectIDs {
		rows, err := st.SearchMessagesInProject(projectID, trimmed, limit)
		if err != nil {
			return nil, err
		}
		for _, r := range rows {
			items = append(items, SearchResultItem{
				ID:          r.Message.ID,
				Subject:     r.Message.Subject,
				Importance:  r.Message.Importance,
				AckRequired: r.Message.AckRequired,
				CreatedTS:   r.Message.CreatedTS,
				ThreadID:    r.Message.ThreadID,
				From:        r.SenderName,
				ProjectID:   r.Message.ProjectID,
			})
		}
	}

	sort.Slice(items, func(i, j int) bool {
		if items[i].CreatedTS != items[j].CreatedTS {
			return items[i].CreatedTS > items[j].CreatedTS
		}
		return items[i].ID < items[j].ID
	})
	if len(items) > limit {
		items = items[:limit]
	}
	return items, nil
}

// InboxItem is one message in a cross-project inbox fetch.
type InboxItem struct {
	ID          int64              `json:"id"`
	ProjectID   int64              `json:"project_id"`
	SenderID    int64              `json:"sender_id"`
	ThreadID    *int64             `json:"thread_id,omitempty"`
	Subject     string             `json:"subject"`
	Importance  types.Importance   `json:"importance"`
	AckRequired bool               `json:"ack_required"`
	From        string             `json:"from"`
	Kind        types.RecipientKind `json:"kind"`
	Attachments []types.Attachment `json:"attachments"`
	BodyMD      *string            `json:"body_md,omitempty"`
	CreatedTS   int64              `json:"-"`
}

// FetchInboxProduct retrieves agentName's delivered messages across every
// project linked to product, identifying the agent independently in each
// project by name and silently skipping projects where no such agent
// exists (mirrors fetch_inbox_product's resolve_agent-or-continue loop).
// Non-mutating: it never advances read/ack state.
func FetchInboxProduct(st *store.Store, productKey, agentName string, limit int, includeBodies bool) ([]InboxItem, error) {
	if !Enabled() {
		return nil, errFeatureDisabled()
	}
	if limit <= 0 {
		limit = 20
	}

	product, err := lookupProduct(st, strings.TrimSpace(productKey))
	if err != nil {
		return nil, err
	}
	if product == nil {
		return nil, errs.WithDetails(errs.KindNotFound, "product not found: "+productKey,
			map[string]interface{}{"entity": "Product", "identifier": productKey})
	}

	projectIDs, err := st.ProductProjectIDs(product.ID)
	if err != nil {
		return nil, err
	}

	var items []InboxItem
	for _, projectID := range projectIDs {
		agent, err := st.GetAgentByName(projectID, agentName)
		if err != nil {
			continue
		}
		rows, err := st.InboxForAgent(agent.ID, limit)
		if err != nil {
			return nil, err
		}
		for _, r := range rows {
			item := InboxItem{
				ID:          r.Message.ID,
				ProjectID:   r.Message.ProjectID,
				SenderID:    r.Message.SenderID,
				ThreadID:    r.Message.ThreadID,
				Subject:     r.Message.Subject,
				Importance:  r.Message.Importance,
				AckRequired: r.Message.AckRequired,
				Kind:        r.RecipientKind,
				Attachments: r.Message.Attachments,
				CreatedTS:   r.Message.CreatedTS,
			}
			if includeBodies {
				body := r.Message.BodyMD
				item.BodyMD = &body
			}
			if sender, err := st.GetAgentByID(r.Message.SenderID); err == nil {
				item.From = sender.Name
			}
			items = append(items, item)
		}
	}

	sort.Slice(items, func(i, j int) bool {
		if items[i].CreatedTS != items[j].CreatedTS {
			return items[i].CreatedTS > items[j].CreatedTS
		}
		return items[i].ID < items[j].ID
	})
	if len(items) > limit {
		items = items[:limit]
	}
	return items, nil
}

// Summarizer produces a textual summary of a thread's messages, an
// optional LLM-backed refinement step analogous to products.rs's
// crate::llm call. The bus ships no LLM client of its own; callers that
// want refinement supply an implementation (e.g. an HTTP client against
// an operator-configured model endpoint).
type Summarizer interface {
	Summarize(messages []*types.Message) (string, error)
}

// ThreadSummary is the result of SummarizeThreadProduct.
type ThreadSummary struct {
	ThreadID string           `json:"thread_id"`
	Messages []*types.Message `json:"-"`
	Summary  string           `json:"summary"`
}

// SummarizeThreadProduct gathers every message in threadID across all of
// a product's linked projects, sorts them by created_ts, and produces a
// summary. When llm is non-nil it is used to refine the summary;
// otherwise a terse deterministic summary (subject lines + participant
// count) is returned, matching the original's non-LLM fallback path.
func SummarizeThreadProduct(st *store.Store, productKey, threadID string, llm Summarizer) (*ThreadSummary, error) {
	if !Enabled() {
		return nil, errFeatureDisabled()
	}

	product, err := lookupProduct(st, strings.TrimSpace(productKey))
	if err != nil {
		return nil, err
	}
	if product == nil {
		return nil, errs.WithDetails(errs.KindNotFound, "product not found: "+productKey,
			map[string]interface{}{"entity": "Product", "identifier": productKey})
	}

	tid, err := strconv.ParseInt(strings.TrimSpace(threadID), 10, 64)
	if err != nil {
		return nil, errs.WithDetails(errs.KindValidation, "invalid thread_id: "+threadID, nil)
	}

	projectIDs, err := st.ProductProjectIDs(product.ID)
	if err != nil {
		return nil, err
	}

	var all []*types.Message
	for _, projectID := range projectIDs {
		msgs, err := st.ThreadMessages(tid)
		if err != nil {
			return nil, err
		}
		for _, m := range msgs {
			if m.ProjectID == projectID {
				all = append(all, m)
			}
		}
	}
	sort.Slice(all, func(i, j int) bool { return all[i].CreatedTS < all[j].CreatedTS })

	summary := defaultSummary(all)
	if llm != nil {
		if refined, err := llm.Summarize(all); err == nil && strings.TrimSpace(refined) != "" {
			summary = refined
		}
	}

	return &ThreadSummary{ThreadID: threadID, Messages: all, Summary: summary}, nil
}

func defaultSummary(messages []*types.Message) string {
	if len(messages) == 0 {
		return "No messages in this thread."
	}
	senders := make(map[int64]bool, len(messages))
	for _, m := range messages {
		senders[m.SenderID] = true
	}
	return fmt.Sprintf("%d messages from %d participants. Latest: %q", len(messages), len(senders), messages[len(messages)-1].Subject)
}
