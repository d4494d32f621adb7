/*
 * @Description: 内存文档存储，用于测试与无数据库的本地调试
 * @Author: 安知鱼
 * @Date: 2025-10-22 11:02:09
 * @LastEditTime: 2025-10-31 09:26:40
 * @LastEditors: 安知鱼
 */
package document

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/anzhiyu-c/anheyu-cms/pkg/constant"
	"github.com/anzhiyu-c/anheyu-cms/pkg/domain/model"
	"github.com/anzhiyu-c/anheyu-cms/pkg/domain/repository"
)

type memoryRecord struct {
	body      []byte
	createdAt time.Time
	updatedAt time.Time
}

// MemoryStore 以 JSON 快照保存文档，读写之间不共享可变状态
type MemoryStore struct {
	mu   sync.RWMutex
	docs map[string]map[string]*memoryRecord
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{docs: make(map[string]map[string]*memoryRecord)}
}

var _ repository.DocumentRepository = (*MemoryStore)(nil)

func (m *MemoryStore) FindByID(ctx context.Context, collection, id string) (*model.Document, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	rec, ok := m.docs[collection][id]
	if !ok {
		return nil, constant.ErrNotFound
	}
	return rec.toDocument(collection, id)
}

func (m *MemoryStore) List(ctx context.Context, collection string, q repository.PageQuery) (*repository.PageResult[model.Document], error) {
	offset, limit := q.Normalize()

	m.mu.RLock()
	defer m.mu.RUnlock()

	ids := make([]string, 0, len(m.docs[collection]))
	for id := range m.docs[collection] {
		ids = append(ids, id)
	}
	recs := m.docs[collection]
	sort.Slice(ids, func(i, j int) bool {
		a, b := recs[ids[i]], recs[ids[j]]
		if !a.createdAt.Equal(b.createdAt) {
			return a.createdAt.After(b.createdAt)
		}
		return ids[i] > ids[j]
	})

	result := &repository.PageResult[model.Document]{Items: []*model.Document{}, Total: int64(len(ids))}
	for i := offset; i < len(ids) && i < offset+limit; i++ {
		doc, err := recs[ids[i]].toDocument(collection, ids[i])
		if err != nil {
			return nil, err
		}
		result.Items = append(result.Items, doc)
	}
	return result, nil
}

func (m *MemoryStore) Create(ctx context.Context, doc *model.Document) error {
	if doc.ID == "" || doc.Collection == "" {
		return fmt.Errorf("%w: 文档缺少 collection 或 id", constant.ErrBadRequest)
	}
	body, err := json.Marshal(doc.Fields)
	if err != nil {
		return fmt.Errorf("%w: 文档字段无法序列化: %v", constant.ErrInvalidPayload, err)
	}
	if doc.CreatedAt.IsZero() {
		doc.CreatedAt = time.Now()
	}
	doc.UpdatedAt = doc.CreatedAt

	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.docs[doc.Collection][doc.ID]; ok {
		return fmt.Errorf("%w: 文档 %s/%s 已存在", constant.ErrConflict, doc.Collection, doc.ID)
	}
	if m.docs[doc.Collection] == nil {
		m.docs[doc.Collection] = make(map[string]*memoryRecord)
	}
	m.docs[doc.Collection][doc.ID] = &memoryRecord{body: body, createdAt: doc.CreatedAt, updatedAt: doc.UpdatedAt}
	return nil
}

func (m *MemoryStore) UpdateFields(ctx context.Context, collection, id string, set map[string]interface{}, unset []string) (*model.Document, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	rec, ok := m.docs[collection][id]
	if !ok {
		return nil, constant.ErrNotFound
	}
	doc, err := rec.toDocument(collection, id)
	if err != nil {
		return nil, err
	}
	for k, v := range set {
		doc.Fields[k] = v
	}
	for _, k := range unset {
		delete(doc.Fields, k)
	}
	body, err := json.Marshal(doc.Fields)
	if err != nil {
		return nil, fmt.Errorf("%w: 文档字段无法序列化: %v", constant.ErrInvalidPayload, err)
	}
	rec.body = body
	rec.updatedAt = time.Now()
	return rec.toDocument(collection, id)
}

func (m *MemoryStore) Delete(ctx context.Context, collection, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.docs[collection][id]; !ok {
		return constant.ErrNotFound
	}
	delete(m.docs[collection], id)
	return nil
}

func (r *memoryRecord) toDocument(collection, id string) (*model.Document, error) {
	fields := make(map[string]interface{})
	if len(r.body) > 0 {
		if err := json.Unmarshal(r.body, &fields); err != nil {
			return nil, fmt.Errorf("解析文档 %s/%s 失败: %w", collection, id, err)
		}
	}
	if fields == nil {
		fields = make(map[string]interface{})
	}
	return &model.Document{
		ID:         id,
		Collection: collection,
		Fields:     fields,
		CreatedAt:  r.createdAt,
		UpdatedAt:  r.updatedAt,
	}, nil
}
