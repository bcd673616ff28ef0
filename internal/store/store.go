// Package store is the relational query layer: typed queries over
// projects, agents, messages + recipients, file reservations, and
// products, backed by modernc.org/sqlite. Raw SQL with `?` placeholders
// and database/sql's Null* wrapper types, grounded on the teacher's
// internal/memory/agent_control.go CRUD style (no ORM/sqlx), and opened
// with the same WAL/busy-timeout DSN suffix the teacher's
// cmd/dbctl/main.go uses.
package store

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	_ "modernc.org/sqlite"

	"github.com/agentmail/bus/internal/errs"
	"github.com/agentmail/bus/internal/types"
	"github.com/agentmail/bus/internal/utils"
)

// Store wraps the SQLite connection pool and exposes typed queries.
type Store struct {
	db *sql.DB
}

// Open opens (creating if necessary) the SQLite file at path, in WAL
// mode with a 5s busy timeout, and applies the schema.
func Open(path string) (*Store, error) {
	dsn := fmt.Sprintf("%s?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)", path)
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(8)
	if err := Migrate(db); err != nil {
		db.Close()
		return nil, err
	}
	return &Store{db: db}, nil
}

// DB exposes the underlying pool for maintenance binaries (cmd/busdbctl)
// that need to run ad-hoc queries outside this package's typed surface.
func (s *Store) DB() *sql.DB { return s.db }

func (s *Store) Close() error { return s.db.Close() }

func nowMicros() int64 { return types.Micros(time.Now()) }

// ---- Projects ----

func (s *Store) CreateProject(slug, humanKey string) (*types.Project, error) {
	now := nowMicros()
	res, err := s.db.Exec(`INSERT INTO projects(slug, human_key, created_at) VALUES (?, ?, ?)`, slug, humanKey, now)
	if err != nil {
		return nil, errs.Wrap(errs.KindConflict, "create project", err)
	}
	id, _ := res.LastInsertId()
	return &types.Project{ID: id, Slug: slug, HumanKey: humanKey, CreatedAt: now}, nil
}

func scanProject(row interface{ Scan(...interface{}) error }) (*types.Project, error) {
	var p types.Project
	if err := row.Scan(&p.ID, &p.Slug, &p.HumanKey, &p.CreatedAt); err != nil {
		if err == sql.ErrNoRows {
			return nil, errs.Wrap(errs.KindNotFound, "project", err)
		}
		return nil, err
	}
	return &p, nil
}

func (s *Store) GetProjectBySlug(slug string) (*types.Project, error) {
	row := s.db.QueryRow(`SELECT id, slug, human_key, created_at FROM projects WHERE slug = ?`, slug)
	return scanProject(row)
}

func (s *Store) GetProjectByHumanKey(humanKey string) (*types.Project, error) {
	row := s.db.QueryRow(`SELECT id, slug, human_key, created_at FROM projects WHERE human_key = ?`, humanKey)
	return scanProject(row)
}

func (s *Store) GetProjectByID(id int64) (*types.Project, error) {
	row := s.db.QueryRow(`SELECT id, slug, human_key, created_at FROM projects WHERE id = ?`, id)
	return scanProject(row)
}

// ---- Agents ----

func (s *Store) CreateAgent(a types.Agent) (*types.Agent, error) {
	if !utils.IsValidAgentName(a.Name) {
		return nil, errs.New(errs.KindValidation, "invalid agent name")
	}
	now := nowMicros()
	if a.InceptionTS == 0 {
		a.InceptionTS = now
	}
	if a.LastActiveTS == 0 {
		a.LastActiveTS = now
	}
	if a.AttachmentsPolicy == "" {
		a.AttachmentsPolicy = types.AttachmentsAuto
	}
	if a.ContactPolicy == "" {
		a.ContactPolicy = types.ContactOpen
	}
	res, err := s.db.Exec(`INSERT INTO agents(project_id, name, program, model, task_description, inception_ts, last_active_ts, attachments_policy, contact_policy)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		a.ProjectID, a.Name, a.Program, a.Model, a.TaskDescription, a.InceptionTS, a.LastActiveTS, string(a.AttachmentsPolicy), string(a.ContactPolicy))
	if err != nil {
		return nil, errs.Wrap(errs.KindConflict, "create agent", err)
	}
	id, _ := res.LastInsertId()
	a.ID = id
	return &a, nil
}

func scanAgent(row interface{ Scan(...interface{}) error }) (*types.Agent, error) {
	var a types.Agent
	var ap, cp string
	if err := row.Scan(&a.ID, &a.ProjectID, &a.Name, &a.Program, &a.Model, &a.TaskDescription,
		&a.InceptionTS, &a.LastActiveTS, &ap, &cp); err != nil {
		if err == sql.ErrNoRows {
			return nil, errs.Wrap(errs.KindNotFound, "agent", err)
		}
		return nil, err
	}
	a.AttachmentsPolicy = types.AttachmentsPolicy(ap)
	a.ContactPolicy = types.ContactPolicy(cp)
	return &a, nil
}

const agentCols = `id, project_id, name, program, model, task_description, inception_ts, last_active_ts, attachments_policy, contact_policy`

func (s *Store) GetAgentByName(projectID int64, name string) (*types.Agent, error) {
	row := s.db.QueryRow(`SELECT `+agentCols+` FROM agents WHERE project_id = ? AND name = ?`, projectID, name)
	return scanAgent(row)
}

func (s *Store) GetAgentByID(id int64) (*types.Agent, error) {
	row := s.db.QueryRow(`SELECT `+agentCols+` FROM agents WHERE id = ?`, id)
	return scanAgent(row)
}

// TouchAgents applies a coalesced batch of agent_id -> max(last_active_ts)
// updates, e.g. drained from the readcache.TouchQueue.
func (s *Store) TouchAgents(touches map[int64]int64) error {
	if len(touches) == 0 {
		return nil
	}
	tx, err := s.db.Begin()
	if err != nil {
		return err
	}
	stmt, err := tx.Prepare(`UPDATE agents SET last_active_ts = ? WHERE id = ? AND last_active_ts < ?`)
	if err != nil {
		tx.Rollback()
		return err
	}
	defer stmt.Close()
	for id, ts := range touches {
		if _, err := stmt.Exec(ts, id, ts); err != nil {
			tx.Rollback()
			return err
		}
	}
	return tx.Commit()
}

// ---- Messages + recipients ----

// CreateMessage inserts a message and its recipient rows in a single
// transaction, enforcing spec.md §3's per-message lifecycle invariant.
func (s *Store) CreateMessage(m types.Message, recipients []types.MessageRecipient) (*types.Message, error) {
	sender, err := s.GetAgentByID(m.SenderID)
	if err != nil {
		return nil, err
	}
	if sender.ProjectID != m.ProjectID {
		return nil, errs.New(errs.KindValidation, "sender agent does not belong to project")
	}

	attJSON, err := json.Marshal(m.Attachments)
	if err != nil {
		return nil, errs.Wrap(errs.KindValidation, "marshal attachments", err)
	}
	if m.CreatedTS == 0 {
		m.CreatedTS = nowMicros()
	}
	if m.Importance == "" {
		m.Importance = types.ImportanceNormal
	}

	tx, err := s.db.Begin()
	if err != nil {
		return nil, err
	}
	var threadID sql.NullInt64
	if m.ThreadID != nil {
		threadID = sql.NullInt64{Int64: *m.ThreadID, Valid: true}
	}
	res, err := tx.Exec(`INSERT INTO messages(project_id, sender_id, thread_id, subject, body_md, importance, ack_required, created_ts, attachments)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		m.ProjectID, m.SenderID, threadID, m.Subject, m.BodyMD, string(m.Importance), boolToInt(m.AckRequired), m.CreatedTS, string(attJSON))
	if err != nil {
		tx.Rollback()
		return nil, errs.Wrap(errs.KindInternal, "insert message", err)
	}
	id, _ := res.LastInsertId()
	m.ID = id

	for _, r := range recipients {
		r.MessageID = id
		if r.Kind == "" {
			r.Kind = types.RecipientTo
		}
		if _, err := tx.Exec(`INSERT INTO message_recipients(message_id, agent_id, kind, read_ts, ack_ts) VALUES (?, ?, ?, ?, ?)`,
			r.MessageID, r.AgentID, string(r.Kind), nullInt64(r.ReadTS), nullInt64(r.AckTS)); err != nil {
			tx.Rollback()
			return nil, errs.Wrap(errs.KindInternal, "insert recipient", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return nil, err
	}
	return &m, nil
}

func (s *Store) GetMessageByID(id int64) (*types.Message, error) {
	row := s.db.QueryRow(`SELECT id, project_id, sender_id, thread_id, subject, body_md, importance, ack_required, created_ts, attachments FROM messages WHERE id = ?`, id)
	var m types.Message
	var threadID sql.NullInt64
	var importance string
	var ackReq int64
	var attJSON string
	if err := row.Scan(&m.ID, &m.ProjectID, &m.SenderID, &threadID, &m.Subject, &m.BodyMD, &importance, &ackReq, &m.CreatedTS, &attJSON); err != nil {
		if err == sql.ErrNoRows {
			return nil, errs.Wrap(errs.KindNotFound, "message", err)
		}
		return nil, err
	}
	m.ThreadID = int64Ptr(threadID)
	m.Importance = types.Importance(importance)
	m.AckRequired = intToBool(ackReq)
	_ = json.Unmarshal([]byte(attJSON), &m.Attachments)
	return &m, nil
}

// MessageSearchRow is one hit from SearchMessagesInProject, widened with
// the sender's display name for callers (e.g. the product cluster) that
// fan this query out across many projects and need to label each hit.
type MessageSearchRow struct {
	Message    types.Message
	SenderName string
}

// SearchMessagesInProject is a plain substring match over subject and
// body_md, scoped to one project. It backs the product cluster's
// search_messages_product, which fans this out across every project
// linked to a product rather than relying on the single-project hybrid
// index (internal/search) that ranks within one project's corpus.
func (s *Store) SearchMessagesInProject(projectID int64, query string, limit int) ([]MessageSearchRow, error) {
	if limit <= 0 {
		limit = 20
	}
	like := "%" + query + "%"
	rows, err := s.db.Query(`
		SELECT m.id, m.project_id, m.sender_id, m.thread_id, m.subject, m.body_md, m.importance, m.ack_required, m.created_ts, m.attachments, a.name
		FROM messages m
		JOIN agents a ON a.id = m.sender_id
		WHERE m.project_id = ? AND (m.subject LIKE ? OR m.body_md LIKE ?)
		ORDER BY m.created_ts DESC, m.id ASC
		LIMIT ?`, projectID, like, like, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []MessageSearchRow
	for rows.Next() {
		var row MessageSearchRow
		var threadID sql.NullInt64
		var importance, attJSON string
		var ackReq int64
		if err := rows.Scan(&row.Message.ID, &row.Message.ProjectID, &row.Message.SenderID, &threadID,
			&row.Message.Subject, &row.Message.BodyMD, &importance, &ackReq, &row.Message.CreatedTS, &attJSON, &row.SenderName); err != nil {
			return nil, err
		}
		row.Message.ThreadID = int64Ptr(threadID)
		row.Message.Importance = types.Importance(importance)
		row.Message.AckRequired = intToBool(ackReq)
		_ = json.Unmarshal([]byte(attJSON), &row.Message.Attachments)
		out = append(out, row)
	}
	return out, rows.Err()
}

// AckMessage records ack_ts for (messageID, agentID) if the message
// requires acknowledgement.
func (s *Store) AckMessage(messageID, agentID int64, ackTS int64) error {
	msg, err := s.GetMessageByID(messageID)
	if err != nil {
		return err
	}
	if !msg.AckRequired {
		return errs.New(errs.KindValidation, "message does not require ack")
	}
	res, err := s.db.Exec(`UPDATE message_recipients SET ack_ts = ? WHERE message_id = ? AND agent_id = ?`, ackTS, messageID, agentID)
	if err != nil {
		return err
	}
	n, _ := res.RowsAffected()
	if n == 0 {
		return errs.New(errs.KindNotFound, "recipient")
	}
	return nil
}

// UnacknowledgedOverdue returns (message, recipient agent_id, recipient
// kind) tuples for every ack_required message whose age in microseconds
// is >= ttlMicros and that recipient has not yet acked, as of now.
// Preserves the >= boundary semantics called out in spec.md §9.
func (s *Store) UnacknowledgedOverdue(now int64, ttlMicros int64) ([]UnackedRow, error) {
	rows, err := s.db.Query(`
		SELECT m.id, m.project_id, m.sender_id, m.thread_id, m.subject, m.body_md, m.importance, m.ack_required, m.created_ts, m.attachments,
		       r.agent_id, r.kind
		FROM messages m
		JOIN message_recipients r ON r.message_id = m.id
		WHERE m.ack_required = 1 AND r.ack_ts IS NULL AND (? - m.created_ts) >= ?`, now, ttlMicros)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []UnackedRow
	for rows.Next() {
		var u UnackedRow
		var threadID sql.NullInt64
		var importance, kind, attJSON string
		var ackReq int64
		if err := rows.Scan(&u.Message.ID, &u.Message.ProjectID, &u.Message.SenderID, &threadID, &u.Message.Subject,
			&u.Message.BodyMD, &importance, &ackReq, &u.Message.CreatedTS, &attJSON, &u.RecipientAgentID, &kind); err != nil {
			return nil, err
		}
		u.Message.ThreadID = int64Ptr(threadID)
		u.Message.Importance = types.Importance(importance)
		u.Message.AckRequired = intToBool(ackReq)
		_ = json.Unmarshal([]byte(attJSON), &u.Message.Attachments)
		u.RecipientKind = types.RecipientKind(kind)
		out = append(out, u)
	}
	return out, rows.Err()
}

// UnackedRow is one overdue (message, recipient) pairing.
type UnackedRow struct {
	Message          types.Message
	RecipientAgentID int64
	RecipientKind    types.RecipientKind
}

// MarkRead records read_ts for (messageID, agentID) if not already set.
func (s *Store) MarkRead(messageID, agentID, readTS int64) error {
	res, err := s.db.Exec(`UPDATE message_recipients SET read_ts = ? WHERE message_id = ? AND agent_id = ? AND read_ts IS NULL`, readTS, messageID, agentID)
	if err != nil {
		return err
	}
	n, _ := res.RowsAffected()
	if n == 0 {
		return errs.New(errs.KindNotFound, "recipient")
	}
	return nil
}

// InboxRow is one message delivered to a recipient agent, as returned by
// InboxForAgent.
type InboxRow struct {
	Message       types.Message
	RecipientKind types.RecipientKind
	ReadTS        *int64
	AckTS         *int64
}

// InboxForAgent returns the agent's delivered messages sorted by
// created_ts desc, id asc (spec.md §4.12's inbox-aggregation order),
// capped at limit.
func (s *Store) InboxForAgent(agentID int64, limit int) ([]InboxRow, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := s.db.Query(`
		SELECT m.id, m.project_id, m.sender_id, m.thread_id, m.subject, m.body_md, m.importance, m.ack_required, m.created_ts, m.attachments,
		       r.kind, r.read_ts, r.ack_ts
		FROM message_recipients r
		JOIN messages m ON m.id = r.message_id
		WHERE r.agent_id = ?
		ORDER BY m.created_ts DESC, m.id ASC
		LIMIT ?`, agentID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []InboxRow
	for rows.Next() {
		var ir InboxRow
		var threadID sql.NullInt64
		var importance, kind, attJSON string
		var ackReq int64
		var readTS, ackTS sql.NullInt64
		if err := rows.Scan(&ir.Message.ID, &ir.Message.ProjectID, &ir.Message.SenderID, &threadID, &ir.Message.Subject,
			&ir.Message.BodyMD, &importance, &ackReq, &ir.Message.CreatedTS, &attJSON, &kind, &readTS, &ackTS); err != nil {
			return nil, err
		}
		ir.Message.ThreadID = int64Ptr(threadID)
		ir.Message.Importance = types.Importance(importance)
		ir.Message.AckRequired = intToBool(ackReq)
		_ = json.Unmarshal([]byte(attJSON), &ir.Message.Attachments)
		ir.RecipientKind = types.RecipientKind(kind)
		ir.ReadTS = int64Ptr(readTS)
		ir.AckTS = int64Ptr(ackTS)
		out = append(out, ir)
	}
	return out, rows.Err()
}

// ThreadMessages returns every message in threadID, oldest first.
func (s *Store) ThreadMessages(threadID int64) ([]*types.Message, error) {
	rows, err := s.db.Query(`SELECT id, project_id, sender_id, thread_id, subject, body_md, importance, ack_required, created_ts, attachments
		FROM messages WHERE thread_id = ? ORDER BY created_ts ASC, id ASC`, threadID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []*types.Message
	for rows.Next() {
		var m types.Message
		var tid sql.NullInt64
		var importance, attJSON string
		var ackReq int64
		if err := rows.Scan(&m.ID, &m.ProjectID, &m.SenderID, &tid, &m.Subject, &m.BodyMD, &importance, &ackReq, &m.CreatedTS, &attJSON); err != nil {
			return nil, err
		}
		m.ThreadID = int64Ptr(tid)
		m.Importance = types.Importance(importance)
		m.AckRequired = intToBool(ackReq)
		_ = json.Unmarshal([]byte(attJSON), &m.Attachments)
		out = append(out, &m)
	}
	return out, rows.Err()
}

// ---- Agent links (product cluster) ----

// LinkAgent associates an agent identity across projects within a
// product. Idempotent.
func (s *Store) LinkAgent(productID, projectID, agentID int64) error {
	_, err := s.db.Exec(`INSERT INTO agent_links(product_id, project_id, agent_id)
		SELECT ?, ?, ? WHERE NOT EXISTS (SELECT 1 FROM agent_links WHERE product_id = ? AND project_id = ? AND agent_id = ?)`,
		productID, projectID, agentID, productID, projectID, agentID)
	return err
}

// AgentLinksForProduct returns every agent_links row for productID.
func (s *Store) AgentLinksForProduct(productID int64) ([]types.AgentLink, error) {
	rows, err := s.db.Query(`SELECT id, product_id, project_id, agent_id FROM agent_links WHERE product_id = ?`, productID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []types.AgentLink
	for rows.Next() {
		var l types.AgentLink
		if err := rows.Scan(&l.ID, &l.ProductID, &l.ProjectID, &l.AgentID); err != nil {
			return nil, err
		}
		out = append(out, l)
	}
	return out, rows.Err()
}

// ---- File reservations ----

func (s *Store) CreateReservation(r types.FileReservation) (*types.FileReservation, error) {
	if r.CreatedTS == 0 {
		r.CreatedTS = nowMicros()
	}
	if r.Exclusive {
		active, err := s.ActiveReservationsForPattern(r.ProjectID, r.PathPattern)
		if err != nil {
			return nil, err
		}
		if len(active) > 0 {
			return nil, errs.New(errs.KindConflict, "exclusive reservation overlap")
		}
	}
	res, err := s.db.Exec(`INSERT INTO file_reservations(project_id, agent_id, path_pattern, exclusive, reason, created_ts, expires_ts)
		VALUES (?, ?, ?, ?, ?, ?, ?)`, r.ProjectID, r.AgentID, r.PathPattern, boolToInt(r.Exclusive), r.Reason, r.CreatedTS, r.ExpiresTS)
	if err != nil {
		return nil, errs.Wrap(errs.KindInternal, "create reservation", err)
	}
	id, _ := res.LastInsertId()
	r.ID = id
	return &r, nil
}

func scanReservation(row interface{ Scan(...interface{}) error }) (*types.FileReservation, error) {
	var r types.FileReservation
	var excl int64
	var released sql.NullInt64
	if err := row.Scan(&r.ID, &r.ProjectID, &r.AgentID, &r.PathPattern, &excl, &r.Reason, &r.CreatedTS, &r.ExpiresTS, &released); err != nil {
		if err == sql.ErrNoRows {
			return nil, errs.Wrap(errs.KindNotFound, "reservation", err)
		}
		return nil, err
	}
	r.Exclusive = intToBool(excl)
	r.ReleasedTS = int64Ptr(released)
	return &r, nil
}

const reservationCols = `id, project_id, agent_id, path_pattern, exclusive, reason, created_ts, expires_ts, released_ts`

// ActiveReservationsForPattern returns active reservations on projectID
// whose path_pattern exactly matches pattern (exclusivity overlap check
// operates at the pattern level, matching spec.md §4.4's "matching paths").
func (s *Store) ActiveReservationsForPattern(projectID int64, pattern string) ([]*types.FileReservation, error) {
	now := nowMicros()
	rows, err := s.db.Query(`SELECT `+reservationCols+` FROM file_reservations
		WHERE project_id = ? AND path_pattern = ? AND released_ts IS NULL AND expires_ts > ?`, projectID, pattern, now)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []*types.FileReservation
	for rows.Next() {
		r, err := scanReservation(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

// ActiveReservationsForProject returns every currently active reservation
// in projectID, used by the file-reservation cleanup worker.
func (s *Store) ActiveReservationsForProject(projectID int64) ([]*types.FileReservation, error) {
	now := nowMicros()
	rows, err := s.db.Query(`SELECT `+reservationCols+` FROM file_reservations
		WHERE project_id = ? AND released_ts IS NULL AND expires_ts > ?`, projectID, now)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []*types.FileReservation
	for rows.Next() {
		r, err := scanReservation(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

func (s *Store) ReleaseReservation(id int64) error {
	now := nowMicros()
	res, err := s.db.Exec(`UPDATE file_reservations SET released_ts = ? WHERE id = ? AND released_ts IS NULL`, now, id)
	if err != nil {
		return err
	}
	n, _ := res.RowsAffected()
	if n == 0 {
		return errs.New(errs.KindNotFound, "active reservation")
	}
	return nil
}

// ExpiredReservations returns active reservations whose expires_ts has passed.
func (s *Store) ExpiredReservations(projectID int64) ([]*types.FileReservation, error) {
	now := nowMicros()
	rows, err := s.db.Query(`SELECT `+reservationCols+` FROM file_reservations
		WHERE project_id = ? AND released_ts IS NULL AND expires_ts <= ?`, projectID, now)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []*types.FileReservation
	for rows.Next() {
		r, err := scanReservation(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

// ListProjectIDs returns every known project id, used by workers that
// iterate "per project" per spec.md §4.8.
func (s *Store) ListProjectIDs() ([]int64, error) {
	rows, err := s.db.Query(`SELECT id FROM projects`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		out = append(out, id)
	}
	return out, rows.Err()
}

// AgentLastMailActivity returns the most recent timestamp (micros) at
// which agentID sent or received a message within projectID, or nil if
// none. Used by the file-reservation cleanup worker's staleness
// heuristic, grounded on
// _examples/original_source/crates/mcp-agent-mail-server/src/cleanup.rs's
// get_agent_last_mail_activity.
func (s *Store) AgentLastMailActivity(agentID, projectID int64) (*int64, error) {
	var ts sql.NullInt64
	err := s.db.QueryRow(`
		SELECT MAX(ts) FROM (
			SELECT MAX(created_ts) AS ts FROM messages WHERE project_id = ? AND sender_id = ?
			UNION ALL
			SELECT MAX(m.created_ts) AS ts FROM messages m
			JOIN message_recipients r ON r.message_id = m.id
			WHERE m.project_id = ? AND r.agent_id = ?
		)`, projectID, agentID, projectID, agentID).Scan(&ts)
	if err != nil {
		return nil, err
	}
	return int64Ptr(ts), nil
}

// ---- Products ----

func (s *Store) CreateProduct(productUID, name string) (*types.Product, error) {
	now := nowMicros()
	res, err := s.db.Exec(`INSERT INTO products(product_uid, name, created_at) VALUES (?, ?, ?)`, productUID, name, now)
	if err != nil {
		return nil, errs.Wrap(errs.KindConflict, "create product", err)
	}
	id, _ := res.LastInsertId()
	return &types.Product{ID: id, ProductUID: productUID, Name: name, CreatedAt: now}, nil
}

func (s *Store) GetProductByUID(uid string) (*types.Product, error) {
	row := s.db.QueryRow(`SELECT id, product_uid, name, created_at FROM products WHERE product_uid = ?`, uid)
	var p types.Product
	if err := row.Scan(&p.ID, &p.ProductUID, &p.Name, &p.CreatedAt); err != nil {
		if err == sql.ErrNoRows {
			return nil, errs.Wrap(errs.KindNotFound, "product", err)
		}
		return nil, err
	}
	return &p, nil
}

func (s *Store) GetProductByName(name string) (*types.Product, error) {
	row := s.db.QueryRow(`SELECT id, product_uid, name, created_at FROM products WHERE name = ?`, name)
	var p types.Product
	if err := row.Scan(&p.ID, &p.ProductUID, &p.Name, &p.CreatedAt); err != nil {
		if err == sql.ErrNoRows {
			return nil, errs.Wrap(errs.KindNotFound, "product", err)
		}
		return nil, err
	}
	return &p, nil
}

// LinkProductProject is idempotent per spec.md §4.12's products_link.
func (s *Store) LinkProductProject(productID, projectID int64) error {
	_, err := s.db.Exec(`INSERT OR IGNORE INTO product_projects(product_id, project_id) VALUES (?, ?)`, productID, projectID)
	return err
}

func (s *Store) ProductProjectIDs(productID int64) ([]int64, error) {
	rows, err := s.db.Query(`SELECT project_id FROM product_projects WHERE product_id = ?`, productID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		out = append(out, id)
	}
	return out, rows.Err()
}
