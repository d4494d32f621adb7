/*
 * @Description: 内容文档仓储接口
 * @Author: 安知鱼
 * @Date: 2025-10-21 15:12:48
 * @LastEditTime: 2025-11-01 20:33:07
 * @LastEditors: 安知鱼
 */
package repository

import (
	"context"

	"github.com/anzhiyu-c/anheyu-cms/pkg/domain/model"
)

// DocumentRepository 定义了内容文档的数据访问契约。
// 所有方法在记录不存在时返回 constant.ErrNotFound。
type DocumentRepository interface {
	// FindByID 读取集合中的单个文档
	FindByID(ctx context.Context, collection, id string) (*model.Document, error)

	// List 按创建时间倒序分页列出集合中的文档
	List(ctx context.Context, collection string, query PageQuery) (*PageResult[model.Document], error)

	// Create 创建文档，ID 由调用方生成
	Create(ctx context.Context, doc *model.Document) error

	// UpdateFields 在一次原子写入中设置 set 中的字段并移除 unset 中的字段，返回更新后的文档
	UpdateFields(ctx context.Context, collection, id string, set map[string]interface{}, unset []string) (*model.Document, error)

	// Delete 删除文档
	Delete(ctx context.Context, collection, id string) error
}
