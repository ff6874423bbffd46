package sqlite

import (
	"context"
	"database/sql"
	"embed"
	"fmt"
	"sort"
	"strings"
	"time"
)

//go:embed migrations/*.sql
var migrationFS embed.FS

// Migrator 负责执行内嵌 SQL 迁移脚本，并在 schema_migrations 中记录已执行的版本。
type Migrator struct {
	db *sql.DB
}

func NewMigrator(db *sql.DB) *Migrator {
	return &Migrator{db: db}
}

// Up 依次执行尚未执行过的迁移文件，返回本次执行的文件名。
// 顺序由文件名字典序决定（001_xxx.sql -> 002_xxx.sql）。
func (m *Migrator) Up(ctx context.Context) ([]string, error) {
	if _, err := m.db.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS schema_migrations (
			version    TEXT PRIMARY KEY,
			applied_at INTEGER NOT NULL
		)
	`); err != nil {
		return nil, fmt.Errorf("create schema_migrations: %w", err)
	}

	entries, err := migrationFS.ReadDir("migrations")
	if err != nil {
		return nil, fmt.Errorf("read embedded migrations: %w", err)
	}
	sort.Slice(entries, func(i, j int) bool {
		return entries[i].Name() < entries[j].Name()
	})

	var applied []string
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".sql") {
			continue
		}
		if err := ctx.Err(); err != nil {
			return applied, err
		}

		version := strings.TrimSuffix(entry.Name(), ".sql")
		done, err := m.isApplied(ctx, version)
		if err != nil {
			return applied, err
		}
		if done {
			continue
		}

		// embed.FS 固定使用 "/" 分隔符
		raw, err := migrationFS.ReadFile("migrations/" + entry.Name())
		if err != nil {
			return applied, fmt.Errorf("read migration %s: %w", entry.Name(), err)
		}
		if _, err := m.db.ExecContext(ctx, string(raw)); err != nil {
			return applied, fmt.Errorf("exec migration %s: %w", entry.Name(), err)
		}
		if _, err := m.db.ExecContext(ctx, `
			INSERT INTO schema_migrations(version, applied_at) VALUES(?, ?)
		`, version, time.Now().Unix()); err != nil {
			return applied, fmt.Errorf("record migration %s: %w", entry.Name(), err)
		}
		applied = append(applied, entry.Name())
	}
	return applied, nil
}

func (m *Migrator) isApplied(ctx context.Context, version string) (bool, error) {
	var n int
	err := m.db.QueryRowContext(ctx, `
		SELECT COUNT(1) FROM schema_migrations WHERE version = ?
	`, version).Scan(&n)
	if err != nil {
		return false, fmt.Errorf("query schema_migrations: %w", err)
	}
	return n > 0, nil
}
