/*
 * @Description:
 * @Author: 安知鱼
 * @Date: 2025-06-21 19:42:38
 * @LastEditTime: 2025-10-29 21:07:36
 * @LastEditors: 安知鱼
 */
package repository

const (
	DefaultPageSize = 20
	MaxPageSize     = 100
)

// PageQuery 包含了所有列表查询都通用的分页参数。
type PageQuery struct {
	Page     int `form:"page" json:"page"`
	PageSize int `form:"pageSize" json:"pageSize"`
}

// Normalize 修正非法的分页参数，并返回 offset 和 limit
func (q PageQuery) Normalize() (offset, limit int) {
	page, size := q.Page, q.PageSize
	if page < 1 {
		page = 1
	}
	if size < 1 {
		size = DefaultPageSize
	}
	if size > MaxPageSize {
		size = MaxPageSize
	}
	return (page - 1) * size, size
}

// PageResult 包含了所有分页查询返回的通用结构。
type PageResult[T any] struct {
	Items []*T  `json:"items"`
	Total int64 `json:"total"`
}
