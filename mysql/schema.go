package mysql

import (
	"fmt"
)

const schemaTemplate = `CREATE TABLE IF NOT EXISTS %s (
	id BINARY(16) NOT NULL,
	source_request_id VARCHAR(128) NOT NULL,
	status SMALLINT NOT NULL DEFAULT 0,
	sync_attempts INT NOT NULL DEFAULT 0,
	last_attempt_at TIMESTAMP(6) NOT NULL DEFAULT CURRENT_TIMESTAMP(6),
	error_message VARCHAR(1024) NULL,
	request_data %s NOT NULL,
	created_at TIMESTAMP(6) NOT NULL DEFAULT CURRENT_TIMESTAMP(6),
	updated_at TIMESTAMP(6) NOT NULL DEFAULT CURRENT_TIMESTAMP(6) ON UPDATE CURRENT_TIMESTAMP(6),
	PRIMARY KEY (id),
	INDEX idx_status_id (status, id),
	INDEX idx_source_request (source_request_id)
);`

const (
	requestDataJSON   = "JSON"
	requestDataBinary = "LONGBLOB"
)

// Schema returns the schema for a sync failure table with JSON request data.
func Schema(table string) (string, error) {
	return buildSchema(table, requestDataJSON)
}

// SchemaBinary returns a schema with LONGBLOB request data.
func SchemaBinary(table string) (string, error) {
	return buildSchema(table, requestDataBinary)
}

func buildSchema(table, dataType string) (string, error) {
	name, err := sanitizeTableName(table)
	if err != nil {
		return "", err
	}

	return fmt.Sprintf(schemaTemplate, name, dataType), nil
}
