package server

import (
	"context"
	"fmt"
	"strings"
)

var requiredColumns = []struct {
	table  string
	column string
}{
	{table: "users", column: "password_hash"},
	{table: "users", column: "google_sub"},
	{table: "users", column: "avatar_content_type"},
	{table: "users", column: "avatar_object_key"},
	{table: "basic_health_info", column: "birthday"},
	{table: "basic_health_info", column: "gender"},
	{table: "blood_sugar_records", column: "measurement_context"},
	{table: "vital_records", column: "diastolic_pressure"},
	{table: "medication_reminders", column: "remind_time"},
	{table: "issue_reports", column: "issue_description"},
}

// ValidateRuntimeSchema fails fast when the database is missing a column the
// handlers rely on.
func ValidateRuntimeSchema(ctx context.Context, q dbQuerier) error {
	if q == nil {
		return fmt.Errorf("database pool is nil")
	}

	for _, item := range requiredColumns {
		ok, err := columnExists(ctx, q, item.table, item.column)
		if err != nil {
			return fmt.Errorf(
				"failed checking schema for %s.%s: %w",
				item.table,
				item.column,
				err,
			)
		}
		if !ok {
			return fmt.Errorf(
				"required column %s.%s is missing; start with AUTO_MIGRATE=true or apply internal/db/schema.sql",
				item.table,
				item.column,
			)
		}
	}

	return nil
}

func columnExists(ctx context.Context, q dbQuerier, tableName, columnName string) (bool, error) {
	table := strings.TrimSpace(tableName)
	column := strings.TrimSpace(columnName)
	if table == "" || column == "" {
		return false, fmt.Errorf("table/column must not be empty")
	}
	var exists bool
	err := q.QueryRow(
		ctx,
		`SELECT EXISTS (
		   SELECT 1
		   FROM information_schema.columns
		   WHERE table_schema = current_schema()
		     AND lower(table_name) = lower($1)
		     AND lower(column_name) = lower($2)
		 )`,
		table,
		column,
	).Scan(&exists)
	if err != nil {
		return false, err
	}
	return exists, nil
}
