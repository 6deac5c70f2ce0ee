package sql

import (
	"context"
	"database/sql"
	"strconv"
	"strings"
)

// 数据库方言
const (
	DialectSQLite   = "sqlite"
	DialectMySQL    = "mysql"
	DialectPostgres = "postgres"
)

// SQLStore 通用SQL存储实现
// SQLite/MySQL/Postgres 共用同一套查询，时间统一存Unix毫秒；差异只在占位符与upsert语法
type SQLStore struct {
	db      *sql.DB
	dialect string
}

// NewSQLStore 创建通用SQL存储实例（db由调用方打开并完成迁移）
func NewSQLStore(db *sql.DB, dialect string) *SQLStore {
	return &SQLStore{db: db, dialect: dialect}
}

// Dialect 当前方言
func (s *SQLStore) Dialect() string { return s.dialect }

// DB 底层连接（迁移与测试使用）
func (s *SQLStore) DB() *sql.DB { return s.db }

// Ping 连通性检查（健康检查使用）
func (s *SQLStore) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// Close 关闭数据库连接
func (s *SQLStore) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

// rebind 把 ? 占位符改写为当前方言的形式（Postgres 使用 $1..$n）
// 查询文本均为代码常量，不含字符串字面量中的问号
func (s *SQLStore) rebind(query string) string {
	if s.dialect != DialectPostgres {
		return query
	}
	var b strings.Builder
	b.Grow(len(query) + 8)
	n := 0
	for i := 0; i < len(query); i++ {
		if query[i] == '?' {
			n++
			b.WriteByte('$')
			b.WriteString(strconv.Itoa(n))
			continue
		}
		b.WriteByte(query[i])
	}
	return b.String()
}

func (s *SQLStore) exec(ctx context.Context, query string, args ...any) (sql.Result, error) {
	return s.db.ExecContext(ctx, s.rebind(query), args...)
}

func (s *SQLStore) query(ctx context.Context, query string, args ...any) (*sql.Rows, error) {
	return s.db.QueryContext(ctx, s.rebind(query), args...)
}

func (s *SQLStore) queryRow(ctx context.Context, query string, args ...any) *sql.Row {
	return s.db.QueryRowContext(ctx, s.rebind(query), args...)
}
