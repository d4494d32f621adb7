/*
 * @Description: 数据库迁移服务（建表与索引）
 * @Author: 安知鱼
 * @Date: 2025-12-08
 */
package database

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"entgo.io/ent/dialect"
	"github.com/rs/zerolog/log"
)

// DocumentsTable 是内容文档表名
const DocumentsTable = "documents"

// MigrationService 数据库迁移服务
type MigrationService struct {
	db      *sql.DB
	dialect string
}

// NewMigrationService 创建迁移服务
func NewMigrationService(db *sql.DB, dbDialect string) *MigrationService {
	return &MigrationService{
		db:      db,
		dialect: dbDialect,
	}
}

// RunMigrations 执行所有迁移
func (m *MigrationService) RunMigrations(ctx context.Context) error {
	log.Info().Msg("📋 开始执行数据库迁移...")

	if err := m.createDocumentsTable(ctx); err != nil {
		return fmt.Errorf("documents 表迁移失败: %w", err)
	}

	log.Info().Msg("✅ 数据库迁移完成")
	return nil
}

func (m *MigrationService) createDocumentsTable(ctx context.Context) error {
	var ddl string
	switch m.dialect {
	case dialect.MySQL:
		ddl = `
			CREATE TABLE IF NOT EXISTS documents (
				collection VARCHAR(64) NOT NULL COMMENT '集合名称',
				id VARCHAR(64) NOT NULL,
				body LONGTEXT NOT NULL COMMENT '文档字段 JSON',
				created_at BIGINT NOT NULL,
				updated_at BIGINT NOT NULL,
				PRIMARY KEY (collection, id)
			) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4
		`
	case dialect.Postgres:
		ddl = `
			CREATE TABLE IF NOT EXISTS documents (
				collection VARCHAR(64) NOT NULL,
				id VARCHAR(64) NOT NULL,
				body TEXT NOT NULL,
				created_at BIGINT NOT NULL,
				updated_at BIGINT NOT NULL,
				PRIMARY KEY (collection, id)
			)
		`
	default:
		ddl = `
			CREATE TABLE IF NOT EXISTS documents (
				collection TEXT NOT NULL,
				id TEXT NOT NULL,
				body TEXT NOT NULL,
				created_at INTEGER NOT NULL,
				updated_at INTEGER NOT NULL,
				PRIMARY KEY (collection, id)
			)
		`
	}

	if _, err := m.db.ExecContext(ctx, ddl); err != nil {
		return fmt.Errorf("创建 documents 表失败: %w", err)
	}

	index := "CREATE INDEX IF NOT EXISTS idx_documents_created_at ON documents(collection, created_at)"
	if m.dialect == dialect.MySQL {
		// MySQL 不支持 IF NOT EXISTS
		index = "CREATE INDEX idx_documents_created_at ON documents(collection, created_at)"
	}
	if _, err := m.db.ExecContext(ctx, index); err != nil && !strings.Contains(err.Error(), "Duplicate key name") {
		return fmt.Errorf("创建 documents 索引失败: %w", err)
	}

	log.Info().Msg("  ✓ documents 表已就绪")
	return nil
}
