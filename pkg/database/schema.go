package database

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
)

// SchemaValidator provides database schema validation functionality
// ARCHITECTURAL DISCOVERY: Separate validation component enables startup verification
// without coupling to the migration system
type SchemaValidator struct {
	db *sql.DB
}

// NewSchemaValidator creates a new schema validator
func NewSchemaValidator(db *sql.DB) *SchemaValidator {
	return &SchemaValidator{db: db}
}

var requiredTables = map[string]map[string]string{
	"sessions": {
		"id":            "TEXT",
		"owner_user_id": "TEXT",
		"title":         "TEXT",
		"next_seq":      "INTEGER",
		"created_at":    "DATETIME",
		"updated_at":    "DATETIME",
		"ended_at":      "DATETIME",
	},
	"session_messages": {
		"session_id": "TEXT",
		"seq":        "INTEGER",
		"id":         "TEXT",
		"role":       "TEXT",
		"content":    "TEXT",
		"timestamp":  "DATETIME",
	},
	"quizzes": {
		"id":            "TEXT",
		"user_id":       "TEXT",
		"current_stage": "TEXT",
		"answers":       "TEXT",
		"completed_at":  "DATETIME",
		"results":       "TEXT",
		"created_at":    "DATETIME",
		"updated_at":    "DATETIME",
	},
	"schema_migrations": {
		"version":    "TEXT",
		"applied_at": "DATETIME",
	},
}

var requiredIndexes = []string{
	"idx_sessions_owner_open",
	"idx_session_messages_id",
	"idx_quizzes_user_active",
}

// Validate runs every structural check
func (v *SchemaValidator) Validate(ctx context.Context) error {
	if err := v.ValidateTablesExist(ctx); err != nil {
		return err
	}
	if err := v.ValidateTableStructure(ctx); err != nil {
		return err
	}
	return v.ValidateIndexes(ctx)
}

// ValidateTablesExist verifies that all required tables exist
func (v *SchemaValidator) ValidateTablesExist(ctx context.Context) error {
	for table := range requiredTables {
		exists, err := v.objectExists(ctx, "table", table)
		if err != nil {
			return fmt.Errorf("error checking table %s: %w", table, err)
		}
		if !exists {
			return fmt.Errorf("required table %s does not exist", table)
		}
	}
	return nil
}

// ValidateTableStructure verifies column names and declared types
// TECHNICAL DISCOVERY: Column validation catches drift between the Go row mapping and the schema
func (v *SchemaValidator) ValidateTableStructure(ctx context.Context) error {
	for table, columns := range requiredTables {
		if err := v.validateColumns(ctx, table, columns); err != nil {
			return fmt.Errorf("%s table structure invalid: %w", table, err)
		}
	}
	return nil
}

// ValidateIndexes verifies that all lookup indexes exist
func (v *SchemaValidator) ValidateIndexes(ctx context.Context) error {
	for _, index := range requiredIndexes {
		exists, err := v.objectExists(ctx, "index", index)
		if err != nil {
			return fmt.Errorf("error checking index %s: %w", index, err)
		}
		if !exists {
			return fmt.Errorf("required index %s does not exist", index)
		}
	}
	return nil
}

func (v *SchemaValidator) objectExists(ctx context.Context, kind, name string) (bool, error) {
	var count int
	err := v.db.QueryRowContext(ctx,
		"SELECT COUNT(*) FROM sqlite_master WHERE type = ? AND name = ?", kind, name,
	).Scan(&count)
	if err != nil {
		return false, err
	}
	return count > 0, nil
}

func (v *SchemaValidator) validateColumns(ctx context.Context, table string, expected map[string]string) error {
	// table names come from requiredTables, never from input
	rows, err := v.db.QueryContext(ctx, fmt.Sprintf("PRAGMA table_info(%s)", table))
	if err != nil {
		return err
	}
	defer func() { _ = rows.Close() }()

	found := make(map[string]string)
	for rows.Next() {
		var (
			cid          int
			name, kind   string
			notNull, pk  int
			defaultValue interface{}
		)
		if err := rows.Scan(&cid, &name, &kind, &notNull, &defaultValue, &pk); err != nil {
			return err
		}
		found[name] = strings.ToUpper(kind)
	}
	if err := rows.Err(); err != nil {
		return err
	}

	for column, kind := range expected {
		got, ok := found[column]
		if !ok {
			return fmt.Errorf("column %s not found", column)
		}
		if got != kind {
			return fmt.Errorf("column %s has type %s, expected %s", column, got, kind)
		}
	}
	return nil
}
