package postgres

import "fmt"

const schemaTemplate = `CREATE TABLE IF NOT EXISTS %[1]s (
	id UUID PRIMARY KEY,
	source_request_id TEXT NOT NULL,
	status SMALLINT NOT NULL DEFAULT 0,
	sync_attempts INTEGER NOT NULL DEFAULT 0,
	last_attempt_at TIMESTAMPTZ NOT NULL DEFAULT now(),
	error_message VARCHAR(1024) NULL,
	request_data JSONB NOT NULL,
	created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
	updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
);
CREATE INDEX IF NOT EXISTS %[2]s ON %[1]s (status, id);
CREATE INDEX IF NOT EXISTS %[3]s ON %[1]s (source_request_id);`

// Schema returns the DDL for a sync failure table.
func Schema(table string) (string, error) {
	name, err := sanitizeTableName(table)
	if err != nil {
		return "", err
	}

	return fmt.Sprintf(schemaTemplate, name, indexName(name, "status_id_idx"), indexName(name, "source_request_idx")), nil
}
