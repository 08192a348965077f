package migrations

import (
	"context"
	_ "embed"

	"github.com/uptrace/bun"
)

//go:embed 2026101602_create_round2.sql
var createRound2SQL string

func init() {
	Migrations.MustRegister(
		func(ctx context.Context, db *bun.DB) error {
			return execAll(ctx, db, createRound2SQL)
		},
		func(ctx context.Context, db *bun.DB) error {
			return execAll(ctx, db, `DROP TABLE IF EXISTS round2_submissions --bun:split DROP TABLE IF EXISTS round2_progress`)
		},
	)
}
