package storage

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"abroadPlan/internal/storage/schema"
	sqlstore "abroadPlan/internal/storage/sql"
)

// SchemaVersion 当前表结构版本，迁移成功后写入 schema_migrations
const SchemaVersion = "v1_cache_and_provider_logs"

// migrate 统一迁移逻辑（建表幂等，可重复执行）
func migrate(ctx context.Context, db *sql.DB, dialect string) error {
	for _, tb := range schema.AllTables() {
		if _, err := db.ExecContext(ctx, buildDDL(tb, dialect)); err != nil {
			return fmt.Errorf("create %s table: %w", tb.Name(), err)
		}

		for _, idx := range buildIndexes(tb, dialect) {
			if err := createIndex(ctx, db, idx, dialect); err != nil {
				return err
			}
		}
	}

	return recordMigration(ctx, db, SchemaVersion, dialect)
}

func buildDDL(tb *schema.TableBuilder, dialect string) string {
	switch dialect {
	case sqlstore.DialectMySQL:
		return tb.BuildMySQL()
	case sqlstore.DialectPostgres:
		return tb.BuildPostgres()
	default:
		return tb.BuildSQLite()
	}
}

func buildIndexes(tb *schema.TableBuilder, dialect string) []schema.IndexDef {
	switch dialect {
	case sqlstore.DialectMySQL:
		return tb.GetIndexesMySQL()
	case sqlstore.DialectPostgres:
		return tb.GetIndexesPostgres()
	default:
		return tb.GetIndexesSQLite()
	}
}

func createIndex(ctx context.Context, db *sql.DB, idx schema.IndexDef, dialect string) error {
	_, err := db.ExecContext(ctx, idx.SQL)
	if err == nil {
		return nil
	}

	// MySQL 不支持 CREATE INDEX IF NOT EXISTS，忽略重复索引错误
	if dialect == sqlstore.DialectMySQL && strings.Contains(err.Error(), "Duplicate key name") {
		return nil
	}
	return fmt.Errorf("create index: %w", err)
}

// recordMigration 记录迁移已执行
func recordMigration(ctx context.Context, db *sql.DB, version, dialect string) error {
	var insertSQL string
	switch dialect {
	case sqlstore.DialectMySQL:
		insertSQL = `INSERT IGNORE INTO schema_migrations (version, applied_at) VALUES (?, UNIX_TIMESTAMP())`
	case sqlstore.DialectPostgres:
		insertSQL = `INSERT INTO schema_migrations (version, applied_at) VALUES ($1, EXTRACT(EPOCH FROM NOW())::BIGINT) ON CONFLICT (version) DO NOTHING`
	default:
		insertSQL = `INSERT OR IGNORE INTO schema_migrations (version, applied_at) VALUES (?, unixepoch())`
	}
	if _, err := db.ExecContext(ctx, insertSQL, version); err != nil {
		return fmt.Errorf("record migration %s: %w", version, err)
	}
	return nil
}

// isMigrationApplied 检查迁移是否已执行
func isMigrationApplied(ctx context.Context, db *sql.DB, version, dialect string) (bool, error) {
	query := "SELECT COUNT(*) FROM schema_migrations WHERE version = ?"
	if dialect == sqlstore.DialectPostgres {
		query = "SELECT COUNT(*) FROM schema_migrations WHERE version = $1"
	}
	var count int
	if err := db.QueryRowContext(ctx, query, version).Scan(&count); err != nil {
		return false, err
	}
	return count > 0, nil
}
