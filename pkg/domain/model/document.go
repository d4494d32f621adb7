/*
 * @Description: 内容文档模型
 * @Author: 安知鱼
 * @Date: 2025-10-21 14:40:03
 * @LastEditTime: 2025-10-30 18:12:55
 * @LastEditors: 安知鱼
 */
package model

import "time"

// Document 是集合中的一条内容记录，业务字段以 JSON 对象保存
type Document struct {
	ID         string                 `json:"id"`
	Collection string                 `json:"collection"`
	Fields     map[string]interface{} `json:"fields"`
	CreatedAt  time.Time              `json:"created_at"`
	UpdatedAt  time.Time              `json:"updated_at"`
}

// Field 返回字段原始值，不存在时返回 nil
func (d *Document) Field(name string) interface{} {
	if d == nil || d.Fields == nil {
		return nil
	}
	return d.Fields[name]
}

// ImageField 将字段解码为单图附件
func (d *Document) ImageField(name string) *ImageRef {
	return ImageRefFromValue(d.Field(name))
}

// GalleryField 将字段解码为图集
func (d *Document) GalleryField(name string) []ImageRef {
	return ImageRefsFromValue(d.Field(name))
}
