package mysql

import "fmt"

type queries struct {
	insert       string
	selectByID   string
	selectStatus string
	deleteOne    string
	markFailed   string
	requeue      string
	countPending string
}

func newQueries(table string) queries {
	cols := "id, source_request_id, status, sync_attempts, last_attempt_at, error_message, request_data, created_at"

	return queries{
		insert: fmt.Sprintf(
			"INSERT INTO %s (id, source_request_id, status, sync_attempts, last_attempt_at, error_message, request_data, created_at) "+
				"VALUES (?, ?, ?, ?, ?, ?, ?, ?)",
			table,
		),
		selectByID:   fmt.Sprintf("SELECT %s FROM %s WHERE id = ?", cols, table),
		selectStatus: fmt.Sprintf("SELECT %s FROM %s WHERE status = ? ORDER BY id ASC", cols, table),
		deleteOne:    fmt.Sprintf("DELETE FROM %s WHERE id = ?", table),
		markFailed: fmt.Sprintf(
			"UPDATE %s SET sync_attempts = sync_attempts + 1, last_attempt_at = ?, error_message = ?, status = ? WHERE id = ?",
			table,
		),
		requeue:      fmt.Sprintf("UPDATE %s SET status = ? WHERE id = ?", table),
		countPending: fmt.Sprintf("SELECT COUNT(*) FROM %s WHERE status = ?", table),
	}
}
