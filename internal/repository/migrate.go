package repository

import (
	"context"
	"strings"
)

var schema = []string{
	`CREATE TABLE IF NOT EXISTS batch (
		id {{uuid}} PRIMARY KEY,
		created_at {{ts}} NOT NULL,
		document_count INTEGER NOT NULL,
		success_count INTEGER NOT NULL,
		failure_count INTEGER NOT NULL,
		report_pdf TEXT,
		report_xlsx TEXT
	)`,
	`CREATE INDEX IF NOT EXISTS idx_batch_created_at ON batch (created_at)`,
	`CREATE TABLE IF NOT EXISTS extract_job (
		id {{uuid}} PRIMARY KEY,
		batch_id {{uuid}} NOT NULL REFERENCES batch (id) ON DELETE CASCADE,
		seq INTEGER NOT NULL,
		filename TEXT NOT NULL,
		status TEXT NOT NULL,
		failure_kind TEXT,
		failure_cause TEXT,
		error_message TEXT,
		extracted_json {{json}},
		model_name TEXT,
		created_at {{ts}} NOT NULL,
		UNIQUE (batch_id, seq)
	)`,
}

// Migrate creates the batch history tables when missing.
func (db *DB) Migrate(ctx context.Context) error {
	types := map[string]string{"{{uuid}}": "TEXT", "{{ts}}": "TIMESTAMP", "{{json}}": "TEXT"}
	if db.Dialect == DialectPostgres {
		types = map[string]string{"{{uuid}}": "UUID", "{{ts}}": "TIMESTAMPTZ", "{{json}}": "JSONB"}
	}
	for _, stmt := range schema {
		for k, v := range types {
			stmt = strings.ReplaceAll(stmt, k, v)
		}
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			return wrapDB("migrate", err)
		}
	}
	return nil
}
