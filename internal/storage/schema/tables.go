package schema

// DefineSchemaMigrationsTable 迁移版本表
func DefineSchemaMigrationsTable() *TableBuilder {
	return NewTable("schema_migrations").
		Column("version VARCHAR(64) PRIMARY KEY").
		Column("applied_at BIGINT NOT NULL")
}

// DefineCacheEntriesTable 定义cache_entries表结构
// 时间字段为Unix毫秒
func DefineCacheEntriesTable() *TableBuilder {
	return NewTable("cache_entries").
		Column("id BIGINT PRIMARY KEY AUTO_INCREMENT").
		Column("namespace VARCHAR(64) NOT NULL").
		Column("cache_key VARCHAR(191) NOT NULL").
		Column("payload MEDIUMTEXT NOT NULL").
		Column("created_at BIGINT NOT NULL").
		Column("expires_at BIGINT NOT NULL").
		Column("UNIQUE KEY uk_cache_namespace_key (namespace, cache_key)").
		Index("idx_cache_entries_expires", "expires_at")
}

// DefineProviderLogsTable 定义provider_logs表结构
func DefineProviderLogsTable() *TableBuilder {
	return NewTable("provider_logs").
		Column("id BIGINT PRIMARY KEY AUTO_INCREMENT").
		Column("time BIGINT NOT NULL").
		Column("provider VARCHAR(32) NOT NULL").
		Column("endpoint VARCHAR(191) NOT NULL DEFAULT ''").
		Column("key_mask VARCHAR(64) NOT NULL DEFAULT ''").
		Column("status_code INT NOT NULL").
		Column("outcome VARCHAR(32) NOT NULL").
		Column("attempt INT NOT NULL DEFAULT 1").
		Column("duration DOUBLE NOT NULL DEFAULT 0.0").
		Column("message TEXT NOT NULL").
		Index("idx_provider_logs_time", "time").
		Index("idx_provider_logs_provider_time", "provider, time")
}

// AllTables 按创建顺序返回全部表定义
func AllTables() []*TableBuilder {
	return []*TableBuilder{
		DefineSchemaMigrationsTable(),
		DefineCacheEntriesTable(),
		DefineProviderLogsTable(),
	}
}
