package store

// schemaDDL creates the relational schema described in spec.md §6:
// projects, agents, messages, message_recipients, file_reservations,
// products, product_projects, agent_links, plus a schema_version table
// used by migrate.go — grounded on the teacher's scripts/check-db-schema.go
// schema-probing approach, generalized into an explicit DDL + version row.
const schemaDDL = `
CREATE TABLE IF NOT EXISTS schema_version (
	version INTEGER NOT NULL
);

CREATE TABLE IF NOT EXISTS projects (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	slug TEXT NOT NULL UNIQUE,
	human_key TEXT NOT NULL UNIQUE,
	created_at INTEGER NOT NULL
);

CREATE TABLE IF NOT EXISTS agents (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	project_id INTEGER NOT NULL REFERENCES projects(id),
	name TEXT NOT NULL,
	program TEXT NOT NULL,
	model TEXT NOT NULL,
	task_description TEXT NOT NULL DEFAULT '',
	inception_ts INTEGER NOT NULL,
	last_active_ts INTEGER NOT NULL,
	attachments_policy TEXT NOT NULL DEFAULT 'auto',
	contact_policy TEXT NOT NULL DEFAULT 'open',
	UNIQUE(project_id, name)
);

CREATE TABLE IF NOT EXISTS messages (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	project_id INTEGER NOT NULL REFERENCES projects(id),
	sender_id INTEGER NOT NULL REFERENCES agents(id),
	thread_id INTEGER,
	subject TEXT NOT NULL DEFAULT '',
	body_md TEXT NOT NULL DEFAULT '',
	importance TEXT NOT NULL DEFAULT 'normal',
	ack_required INTEGER NOT NULL DEFAULT 0,
	created_ts INTEGER NOT NULL,
	attachments TEXT NOT NULL DEFAULT '[]'
);
CREATE INDEX IF NOT EXISTS idx_messages_project_thread ON messages(project_id, thread_id);
CREATE INDEX IF NOT EXISTS idx_messages_created_ts ON messages(created_ts);

CREATE TABLE IF NOT EXISTS message_recipients (
	message_id INTEGER NOT NULL REFERENCES messages(id),
	agent_id INTEGER NOT NULL REFERENCES agents(id),
	kind TEXT NOT NULL DEFAULT 'to',
	read_ts INTEGER,
	ack_ts INTEGER,
	PRIMARY KEY (message_id, agent_id)
);
CREATE INDEX IF NOT EXISTS idx_recipients_agent ON message_recipients(agent_id);

CREATE TABLE IF NOT EXISTS file_reservations (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	project_id INTEGER NOT NULL REFERENCES projects(id),
	agent_id INTEGER NOT NULL REFERENCES agents(id),
	path_pattern TEXT NOT NULL,
	exclusive INTEGER NOT NULL DEFAULT 1,
	reason TEXT NOT NULL DEFAULT '',
	created_ts INTEGER NOT NULL,
	expires_ts INTEGER NOT NULL,
	released_ts INTEGER
);
CREATE INDEX IF NOT EXISTS idx_reservations_project_active ON file_reservations(project_id, released_ts, expires_ts);

CREATE TABLE IF NOT EXISTS products (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	product_uid TEXT NOT NULL UNIQUE,
	name TEXT NOT NULL UNIQUE,
	created_at INTEGER NOT NULL
);

CREATE TABLE IF NOT EXISTS product_projects (
	product_id INTEGER NOT NULL REFERENCES products(id),
	project_id INTEGER NOT NULL REFERENCES projects(id),
	PRIMARY KEY (product_id, project_id)
);

CREATE TABLE IF NOT EXISTS agent_links (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	product_id INTEGER NOT NULL REFERENCES products(id),
	project_id INTEGER NOT NULL REFERENCES projects(id),
	agent_id INTEGER NOT NULL REFERENCES agents(id)
);
`
