package schema

import (
	"context"
	"database/sql"
	"os"
	"testing"

	_ "github.com/go-sql-driver/mysql"
	_ "github.com/jackc/pgx/v5/stdlib"
	_ "modernc.org/sqlite"
)

// execAll 在真实数据库中执行全部DDL（两次，验证幂等）
func execAll(t *testing.T, db *sql.DB, build func(*TableBuilder) string, indexes func(*TableBuilder) []IndexDef) {
	t.Helper()
	ctx := context.Background()
	for round := 0; round < 2; round++ {
		for _, tb := range AllTables() {
			if _, err := db.ExecContext(ctx, build(tb)); err != nil {
				t.Fatalf("create %s: %v", tb.Name(), err)
			}
			for _, idx := range indexes(tb) {
				if _, err := db.ExecContext(ctx, idx.SQL); err != nil {
					t.Fatalf("create index %s: %v", idx.Name, err)
				}
			}
		}
	}
}

func TestDDL_SQLite(t *testing.T) {
	db, err := sql.Open("sqlite", ":memory:")
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	defer db.Close()
	db.SetMaxOpenConns(1)

	execAll(t, db, (*TableBuilder).BuildSQLite, (*TableBuilder).GetIndexesSQLite)

	ctx := context.Background()
	insert := "INSERT INTO cache_entries(namespace, cache_key, payload, created_at, expires_at) VALUES(?, ?, ?, ?, ?)"
	if _, err := db.ExecContext(ctx, insert, "visa", "de|in", "{}", 1, 2); err != nil {
		t.Fatalf("insert: %v", err)
	}
	if _, err := db.ExecContext(ctx, insert, "visa", "de|in", "{}", 1, 2); err == nil {
		t.Error("duplicate (namespace, cache_key) should violate unique constraint")
	}
}

func TestDDL_Postgres(t *testing.T) {
	dsn := os.Getenv("ABROAD_TEST_POSTGRES_DSN")
	if dsn == "" {
		t.Skip("ABROAD_TEST_POSTGRES_DSN not set")
	}
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		t.Fatalf("open postgres: %v", err)
	}
	defer db.Close()
	execAll(t, db, (*TableBuilder).BuildPostgres, (*TableBuilder).GetIndexesPostgres)
}

func TestDDL_MySQL(t *testing.T) {
	dsn := os.Getenv("ABROAD_TEST_MYSQL_DSN")
	if dsn == "" {
		t.Skip("ABROAD_TEST_MYSQL_DSN not set")
	}
	db, err := sql.Open("mysql", dsn)
	if err != nil {
		t.Fatalf("open mysql: %v", err)
	}
	defer db.Close()

	ctx := context.Background()
	for _, tb := range AllTables() {
		if _, err := db.ExecContext(ctx, tb.BuildMySQL()); err != nil {
			t.Fatalf("create %s: %v", tb.Name(), err)
		}
	}
}
