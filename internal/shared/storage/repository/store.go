// Package repository 数据库无关的业务逻辑存储层
//
// 通过 dbutil.Dialect 接口屏蔽不同数据库的 SQL 差异，
// 所有 SQL 以 PostgreSQL 风格编写，运行时由 Dialect.Rebind() 转换。
package repository

import (
	"database/sql"
	"time"

	"wordpilot/internal/shared/storage/dbutil"
	"wordpilot/pkg/logging"
)

// Store 通用存储实现
// 实现了 storage.PersistentStore 接口
type Store struct {
	db      *sql.DB
	dialect dbutil.Dialect

	logger    *logging.Logger
	queryHook func(operation, table string, duration time.Duration)
}

// NewStore 创建通用存储
func NewStore(db *sql.DB, dialect dbutil.Dialect) *Store {
	return &Store{db: db, dialect: dialect}
}

// SetLogger 设置查询日志输出
func (s *Store) SetLogger(logger *logging.Logger) {
	s.logger = logger
}

// SetQueryHook 设置查询耗时上报回调（指标采集使用）
func (s *Store) SetQueryHook(hook func(operation, table string, duration time.Duration)) {
	s.queryHook = hook
}

// observe 上报一次查询的耗时与结果，供各存储方法 defer 调用
func (s *Store) observe(start time.Time, operation, table string, err *error) {
	duration := time.Since(start)
	if s.queryHook != nil {
		s.queryHook(operation, table, duration)
	}
	if s.logger != nil {
		var queryErr error
		if err != nil {
			queryErr = *err
		}
		s.logger.DBQueryLog(operation, table, duration, queryErr)
	}
}

// Close 关闭数据库连接
func (s *Store) Close() error {
	return s.db.Close()
}

// DB 返回底层数据库连接（仅用于测试）
func (s *Store) DB() *sql.DB {
	return s.db
}

// Dialect 返回当前方言
func (s *Store) Dialect() dbutil.Dialect {
	return s.dialect
}

// rebind 快捷方法：将 PG 风格 SQL 转换为当前方言
func (s *Store) rebind(query string) string {
	return s.dialect.Rebind(query)
}
