package store

import "database/sql"

// CurrentSchemaVersion is bumped whenever schemaDDL changes shape in a
// way existing databases need migrating for.
const CurrentSchemaVersion = 1

// Migrate applies schemaDDL (idempotent CREATE IF NOT EXISTS) and seeds
// the schema_version row if absent, grounded on the teacher's
// scripts/check-db-schema.go which probes PRAGMA table_info to check
// whether a migration is needed before applying it.
func Migrate(db *sql.DB) error {
	if _, err := db.Exec(schemaDDL); err != nil {
		return err
	}
	var count int
	if err := db.QueryRow(`SELECT COUNT(*) FROM schema_version`).Scan(&count); err != nil {
		return err
	}
	if count == 0 {
		if _, err := db.Exec(`INSERT INTO schema_version(version) VALUES (?)`, CurrentSchemaVersion); err != nil {
			return err
		}
	}
	return nil
}

// Version reads the current schema_version row.
func Version(db *sql.DB) (int, error) {
	var v int
	err := db.QueryRow(`SELECT version FROM schema_version LIMIT 1`).Scan(&v)
	return v, err
}
