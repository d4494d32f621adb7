/*
 * @Description: 图片附件领域模型
 * @Author: 安知鱼
 * @Date: 2025-10-21 14:02:37
 * @LastEditTime: 2025-11-02 11:20:16
 * @LastEditors: 安知鱼
 */
package model

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// ImageRef 是文档中持久化的一个图片附件
type ImageRef struct {
	ID       string `json:"id"`
	Location string `json:"location"`
	AltText  string `json:"altText,omitempty"`
	IsCover  bool   `json:"isCover,omitempty"`
}

// Clone 返回一份浅拷贝
func (r *ImageRef) Clone() *ImageRef {
	if r == nil {
		return nil
	}
	cp := *r
	return &cp
}

// RawImage 是请求中携带的新图片内容
type RawImage struct {
	Base64   string `json:"img"`
	FileType string `json:"filetype"`
}

// AttachmentInput 描述单个图片字段在一次变更中的期望状态
type AttachmentInput struct {
	Raw               *RawImage `json:"raw,omitempty"`
	ExistingRef       *ImageRef `json:"existingRef,omitempty"`
	MarkedForUpdate   bool      `json:"markedForUpdate,omitempty"`
	MarkedForDeletion bool      `json:"markedForDeletion,omitempty"`
}

// CollectionEntry 是图集字段中的一个输入条目，意图由 ID/UpdatedAt/DeletedAt 的组合决定
type CollectionEntry struct {
	ID        string     `json:"id,omitempty"`
	Raw       *RawImage  `json:"raw,omitempty"`
	AltText   string     `json:"altText,omitempty"`
	IsCover   bool       `json:"isCover,omitempty"`
	UpdatedAt *time.Time `json:"updatedAt,omitempty"`
	DeletedAt *time.Time `json:"deletedAt,omitempty"`
}

// OrphanTarget 定位一个可能需要回收的存储对象
type OrphanTarget struct {
	Collection string
	OwnerID    string
	Field      string
	// PictureID 非空时表示在图集字段中按条目 ID 查找
	PictureID string
}

// NewImageID 生成新的图片附件 ID
func NewImageID() string {
	return uuid.NewString()
}

// ImageRefFromValue 将文档字段的原始值解码为 ImageRef。
// 字段为空、类型不符或 location 为空时返回 nil。
func ImageRefFromValue(v interface{}) *ImageRef {
	if v == nil {
		return nil
	}
	var ref ImageRef
	if !decodeValue(v, &ref) || ref.Location == "" {
		return nil
	}
	return &ref
}

// ImageRefsFromValue 将图集字段的原始值解码为 ImageRef 列表，跳过无法识别的条目
func ImageRefsFromValue(v interface{}) []ImageRef {
	if v == nil {
		return nil
	}
	var raw []json.RawMessage
	if !decodeValue(v, &raw) {
		return nil
	}
	refs := make([]ImageRef, 0, len(raw))
	for _, item := range raw {
		var ref ImageRef
		if err := json.Unmarshal(item, &ref); err != nil || ref.Location == "" {
			continue
		}
		refs = append(refs, ref)
	}
	return refs
}

// ImageRefValue 将 ImageRef 转为可写入文档的值，nil 表示清空字段
func ImageRefValue(ref *ImageRef) interface{} {
	if ref == nil {
		return nil
	}
	return map[string]interface{}{
		"id":       ref.ID,
		"location": ref.Location,
		"altText":  ref.AltText,
		"isCover":  ref.IsCover,
	}
}

// ImageRefsValue 将图集转为可写入文档的值
func ImageRefsValue(refs []ImageRef) interface{} {
	out := make([]interface{}, 0, len(refs))
	for i := range refs {
		out = append(out, ImageRefValue(&refs[i]))
	}
	return out
}

func decodeValue(v interface{}, out interface{}) bool {
	var b []byte
	switch val := v.(type) {
	case []byte:
		b = val
	case json.RawMessage:
		b = val
	case string:
		if val == "" {
			return false
		}
		b = []byte(val)
	default:
		var err error
		if b, err = json.Marshal(val); err != nil {
			return false
		}
	}
	return json.Unmarshal(b, out) == nil
}
