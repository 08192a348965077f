// Package migrations holds the bun migrations for the Postgres schema.
package migrations

import (
	"context"
	"strings"

	"github.com/uptrace/bun"
	"github.com/uptrace/bun/migrate"
)

var Migrations = migrate.NewMigrations()

// execAll runs each statement of a script separated by --bun:split.
func execAll(ctx context.Context, db *bun.DB, script string) error {
	for _, stmt := range strings.Split(script, "--bun:split") {
		if strings.TrimSpace(stmt) == "" {
			continue
		}
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			return err
		}
	}
	return nil
}
