package storage

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"abroadPlan/internal/config"
	sqlstore "abroadPlan/internal/storage/sql"

	_ "github.com/go-sql-driver/mysql" // MySQL driver
	_ "github.com/jackc/pgx/v5/stdlib" // Postgres driver (pgx)
	"github.com/rs/zerolog/log"
	_ "modernc.org/sqlite" // SQLite driver
)

// NewStore 根据配置创建存储实例（工厂模式）
//
// 选择顺序：
//   - DATABASE_URL 设置：Postgres
//   - ABROAD_MYSQL 设置：MySQL
//   - 否则：SQLite（SQLITE_PATH，默认 data/abroad.db）
func NewStore(cfg *config.EnvConfig) (Store, error) {
	if cfg.PostgresDSN != "" {
		s, err := createNetworkStore("pgx", sqlstore.DialectPostgres, cfg.PostgresDSN)
		if err != nil {
			return nil, fmt.Errorf("Postgres 初始化失败: %w", err)
		}
		log.Info().Msg("使用 Postgres 存储")
		return s, nil
	}

	if cfg.MySQLDSN != "" {
		s, err := createNetworkStore("mysql", sqlstore.DialectMySQL, cfg.MySQLDSN)
		if err != nil {
			return nil, fmt.Errorf("MySQL 初始化失败: %w", err)
		}
		log.Info().Msg("使用 MySQL 存储")
		return s, nil
	}

	journalMode, err := validateJournalMode(cfg.JournalMode)
	if err != nil {
		return nil, err
	}
	dbPath := cfg.SQLitePath
	if dbPath == "" {
		dbPath = resolveSQLitePath()
	}
	s, err := createSQLiteStore(dbPath, journalMode)
	if err != nil {
		return nil, fmt.Errorf("SQLite 初始化失败: %w", err)
	}
	log.Info().Str("path", dbPath).Str("journal_mode", journalMode).Msg("使用 SQLite 存储")
	return s, nil
}

// CreateSQLiteStore 直接创建 SQLite 存储实例（测试辅助函数）
// 生产代码应使用 NewStore() 工厂函数
func CreateSQLiteStore(path string) (Store, error) {
	s, err := createSQLiteStore(path, "WAL")
	if err != nil {
		return nil, err
	}
	return s, nil
}

// createNetworkStore MySQL/Postgres 共用的打开、探活与迁移流程
func createNetworkStore(driver, dialect, dsn string) (*sqlstore.SQLStore, error) {
	db, err := sql.Open(driver, dsn)
	if err != nil {
		return nil, fmt.Errorf("打开%s连接失败: %w", dialect, err)
	}

	db.SetMaxOpenConns(config.SQLMaxOpenConns)
	db.SetMaxIdleConns(config.SQLMaxIdleConns)
	db.SetConnMaxLifetime(config.SQLiteConnMaxLifetime)

	// 启动时Fail-Fast
	pingCtx, pingCancel := context.WithTimeout(context.Background(), config.StartupDBPingTimeout)
	defer pingCancel()
	if err := db.PingContext(pingCtx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("%s连接测试失败（超时%v）: %w", dialect, config.StartupDBPingTimeout, err)
	}

	migrateCtx, migrateCancel := context.WithTimeout(context.Background(), config.StartupMigrationTimeout)
	defer migrateCancel()
	if err := migrate(migrateCtx, db, dialect); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("%s迁移失败（超时%v）: %w", dialect, config.StartupMigrationTimeout, err)
	}

	return sqlstore.NewSQLStore(db, dialect), nil
}

func createSQLiteStore(path, journalMode string) (*sqlstore.SQLStore, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o750); err != nil { //nolint:gosec // G301: 数据目录需要服务进程可写
		return nil, err
	}

	db, err := sql.Open("sqlite", buildSQLiteDSN(path, journalMode))
	if err != nil {
		return nil, fmt.Errorf("打开SQLite失败: %w", err)
	}

	// 单写者模式：多连接并发写会触发 SQLITE_BUSY
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(config.SQLiteConnMaxLifetime)

	migrateCtx, migrateCancel := context.WithTimeout(context.Background(), config.StartupMigrationTimeout)
	defer migrateCancel()
	if err := migrate(migrateCtx, db, sqlstore.DialectSQLite); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("SQLite迁移失败（超时%v）: %w", config.StartupMigrationTimeout, err)
	}

	return sqlstore.NewSQLStore(db, sqlstore.DialectSQLite), nil
}

// resolveSQLitePath 默认路径 data/abroad.db，目录不可写时回退到系统临时目录
func resolveSQLitePath() string {
	defaultDir := "data"
	defaultPath := filepath.Join(defaultDir, "abroad.db")

	if isDirWritable(defaultDir) {
		return defaultPath
	}
	if err := os.MkdirAll(defaultDir, 0o750); err == nil && isDirWritable(defaultDir) {
		return defaultPath
	}

	tmpPath := filepath.Join(os.TempDir(), "abroad-plan", "abroad.db")
	log.Warn().
		Str("default_dir", defaultDir).
		Str("fallback", tmpPath).
		Msg("默认数据目录不可写，数据将存储在临时目录，重启后可能丢失；生产环境请设置 SQLITE_PATH")
	return tmpPath
}

// isDirWritable 检查目录是否存在且可写
func isDirWritable(dir string) bool {
	info, err := os.Stat(dir)
	if err != nil || !info.IsDir() {
		return false
	}

	testFile := filepath.Join(dir, fmt.Sprintf(".write_test_%d", os.Getpid()))
	f, err := os.Create(testFile) //nolint:gosec // G304: 路径由程序控制
	if err != nil {
		return false
	}
	_ = f.Close()
	_ = os.Remove(testFile)
	return true
}

func buildSQLiteDSN(path, journalMode string) string {
	return fmt.Sprintf("file:%s?_pragma=busy_timeout(5000)&_foreign_keys=on&_pragma=journal_mode=%s&_loc=Local", path, journalMode)
}

var validJournalModes = map[string]bool{
	"DELETE":   true,
	"TRUNCATE": true,
	"PERSIST":  true,
	"MEMORY":   true,
	"WAL":      true,
	"OFF":      true,
}

// validateJournalMode 白名单校验 SQLITE_JOURNAL_MODE（值会拼进DSN）
func validateJournalMode(mode string) (string, error) {
	if mode == "" {
		return "WAL", nil
	}
	modeUpper := strings.ToUpper(mode)
	if !validJournalModes[modeUpper] {
		return "", fmt.Errorf("SQLITE_JOURNAL_MODE 非法: %q（允许: DELETE, TRUNCATE, PERSIST, MEMORY, WAL, OFF）", mode)
	}
	return modeUpper, nil
}
