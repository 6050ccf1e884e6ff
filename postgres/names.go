package postgres

import (
	"fmt"
	"strings"
)

func sanitizeTableName(name string) (string, error) {
	if name == "" {
		return "", ErrTableNameRequired
	}
	for _, part := range strings.Split(name, ".") {
		if part == "" {
			return "", fmt.Errorf("%w: %s", ErrInvalidTableName, name)
		}
		for _, r := range part {
			if r == '_' || (r >= '0' && r <= '9') || (r >= 'a' && r <= 'z') {
				continue
			}

			return "", fmt.Errorf("%w: %s", ErrInvalidTableName, name)
		}
	}

	return name, nil
}

// indexName derives an unqualified index name; PostgreSQL creates it in the table's schema.
func indexName(table, suffix string) string {
	return strings.ReplaceAll(table, ".", "_") + "_" + suffix
}
