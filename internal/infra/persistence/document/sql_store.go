/*
 * @Description: 基于 SQL 的内容文档存储，字段以 JSON 保存
 * @Author: 安知鱼
 * @Date: 2025-10-22 10:18:31
 * @LastEditTime: 2025-11-01 21:45:12
 * @LastEditors: 安知鱼
 */
package document

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/anzhiyu-c/anheyu-cms/internal/infra/persistence/database"
	"github.com/anzhiyu-c/anheyu-cms/pkg/constant"
	"github.com/anzhiyu-c/anheyu-cms/pkg/domain/model"
	"github.com/anzhiyu-c/anheyu-cms/pkg/domain/repository"

	"entgo.io/ent/dialect"
	entsql "entgo.io/ent/dialect/sql"
)

const (
	colCollection = "collection"
	colID         = "id"
	colBody       = "body"
	colCreatedAt  = "created_at"
	colUpdatedAt  = "updated_at"
)

// SQLStore 实现 repository.DocumentRepository
type SQLStore struct {
	db      *sql.DB
	dialect string
}

// NewSQLStore 创建 SQL 文档存储，dbDialect 为 ent 方言名（mysql/postgres/sqlite3）
func NewSQLStore(db *sql.DB, dbDialect string) repository.DocumentRepository {
	return &SQLStore{db: db, dialect: dbDialect}
}

func (s *SQLStore) builder() *entsql.DialectBuilder {
	return entsql.Dialect(s.dialect)
}

func byKey(collection, id string) *entsql.Predicate {
	return entsql.And(entsql.EQ(colCollection, collection), entsql.EQ(colID, id))
}

type queryer interface {
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

func (s *SQLStore) findOne(ctx context.Context, q queryer, collection, id string, lock bool) (*model.Document, error) {
	b := s.builder()
	selector := b.Select(colID, colBody, colCreatedAt, colUpdatedAt).
		From(b.Table(database.DocumentsTable)).
		Where(byKey(collection, id))
	// SQLite 不支持 FOR UPDATE，事务本身已串行化写入
	if lock && s.dialect != dialect.SQLite {
		selector.ForUpdate()
	}
	query, args := selector.Query()

	var (
		docID              string
		body               string
		createdAt, updated int64
	)
	if err := q.QueryRowContext(ctx, query, args...).Scan(&docID, &body, &createdAt, &updated); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, constant.ErrNotFound
		}
		return nil, fmt.Errorf("查询文档失败: %w", err)
	}
	return decodeDocument(collection, docID, body, createdAt, updated)
}

func (s *SQLStore) FindByID(ctx context.Context, collection, id string) (*model.Document, error) {
	return s.findOne(ctx, s.db, collection, id, false)
}

func (s *SQLStore) List(ctx context.Context, collection string, q repository.PageQuery) (*repository.PageResult[model.Document], error) {
	offset, limit := q.Normalize()
	b := s.builder()

	countQuery, countArgs := b.Select(entsql.Count("*")).
		From(b.Table(database.DocumentsTable)).
		Where(entsql.EQ(colCollection, collection)).
		Query()
	var total int64
	if err := s.db.QueryRowContext(ctx, countQuery, countArgs...).Scan(&total); err != nil {
		return nil, fmt.Errorf("统计文档数量失败: %w", err)
	}

	query, args := b.Select(colID, colBody, colCreatedAt, colUpdatedAt).
		From(b.Table(database.DocumentsTable)).
		Where(entsql.EQ(colCollection, collection)).
		OrderBy(entsql.Desc(colCreatedAt), entsql.Desc(colID)).
		Limit(limit).
		Offset(offset).
		Query()
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("查询文档列表失败: %w", err)
	}
	defer rows.Close()

	items := make([]*model.Document, 0, limit)
	for rows.Next() {
		var (
			docID              string
			body               string
			createdAt, updated int64
		)
		if err := rows.Scan(&docID, &body, &createdAt, &updated); err != nil {
			return nil, fmt.Errorf("读取文档行失败: %w", err)
		}
		doc, err := decodeDocument(collection, docID, body, createdAt, updated)
		if err != nil {
			return nil, err
		}
		items = append(items, doc)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("遍历文档列表失败: %w", err)
	}
	return &repository.PageResult[model.Document]{Items: items, Total: total}, nil
}

func (s *SQLStore) Create(ctx context.Context, doc *model.Document) error {
	if doc.ID == "" || doc.Collection == "" {
		return fmt.Errorf("%w: 文档缺少 collection 或 id", constant.ErrBadRequest)
	}
	body, err := encodeFields(doc.Fields)
	if err != nil {
		return err
	}

	now := time.Now()
	if doc.CreatedAt.IsZero() {
		doc.CreatedAt = now
	}
	doc.UpdatedAt = doc.CreatedAt

	query, args := s.builder().Insert(database.DocumentsTable).
		Columns(colCollection, colID, colBody, colCreatedAt, colUpdatedAt).
		Values(doc.Collection, doc.ID, body, doc.CreatedAt.UnixMilli(), doc.UpdatedAt.UnixMilli()).
		Query()
	if _, err := s.db.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("创建文档失败: %w", err)
	}
	return nil
}

// UpdateFields 在事务中完成读取-合并-写回，保证单次写入的原子性
func (s *SQLStore) UpdateFields(ctx context.Context, collection, id string, set map[string]interface{}, unset []string) (*model.Document, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("开启事务失败: %w", err)
	}
	defer tx.Rollback()

	doc, err := s.findOne(ctx, tx, collection, id, true)
	if err != nil {
		return nil, err
	}
	if doc.Fields == nil {
		doc.Fields = make(map[string]interface{}, len(set))
	}
	for k, v := range set {
		doc.Fields[k] = v
	}
	for _, k := range unset {
		delete(doc.Fields, k)
	}

	body, err := encodeFields(doc.Fields)
	if err != nil {
		return nil, err
	}
	doc.UpdatedAt = time.Now()

	query, args := s.builder().Update(database.DocumentsTable).
		Set(colBody, body).
		Set(colUpdatedAt, doc.UpdatedAt.UnixMilli()).
		Where(byKey(collection, id)).
		Query()
	if _, err := tx.ExecContext(ctx, query, args...); err != nil {
		return nil, fmt.Errorf("更新文档失败: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("提交事务失败: %w", err)
	}

	// 返回值与存储内容保持一致
	return decodeDocument(collection, id, body, doc.CreatedAt.UnixMilli(), doc.UpdatedAt.UnixMilli())
}

func (s *SQLStore) Delete(ctx context.Context, collection, id string) error {
	query, args := s.builder().Delete(database.DocumentsTable).
		Where(byKey(collection, id)).
		Query()
	res, err := s.db.ExecContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("删除文档失败: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return constant.ErrNotFound
	}
	return nil
}

func encodeFields(fields map[string]interface{}) (string, error) {
	if fields == nil {
		return "{}", nil
	}
	b, err := json.Marshal(fields)
	if err != nil {
		return "", fmt.Errorf("%w: 文档字段无法序列化: %v", constant.ErrInvalidPayload, err)
	}
	return string(b), nil
}

func decodeDocument(collection, id, body string, createdAt, updatedAt int64) (*model.Document, error) {
	fields := make(map[string]interface{})
	if body != "" {
		if err := json.Unmarshal([]byte(body), &fields); err != nil {
			return nil, fmt.Errorf("解析文档 %s/%s 失败: %w", collection, id, err)
		}
	}
	return &model.Document{
		ID:         id,
		Collection: collection,
		Fields:     fields,
		CreatedAt:  time.UnixMilli(createdAt),
		UpdatedAt:  time.UnixMilli(updatedAt),
	}, nil
}
