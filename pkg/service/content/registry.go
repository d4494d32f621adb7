/*
 * @Description: 内容集合注册表，声明每个集合的图片字段
 * @Author: 安知鱼
 * @Date: 2025-10-26 10:12:44
 * @LastEditTime: 2025-11-02 18:06:31
 * @LastEditors: 安知鱼
 */
package content

import (
	"fmt"
	"sort"

	"github.com/anzhiyu-c/anheyu-cms/pkg/constant"
)

// FieldKind 区分单图字段与图集字段
type FieldKind int

const (
	FieldSingle FieldKind = iota
	FieldGallery
)

// ImageField 是集合中声明的一个图片字段，字段名同时是存储路径的命名空间
type ImageField struct {
	Name string
	Kind FieldKind
}

// Collection 描述一个内容集合
type Collection struct {
	Name   string
	Images []ImageField
}

// ImageField 返回字段声明
func (c Collection) ImageField(name string) (ImageField, bool) {
	for _, f := range c.Images {
		if f.Name == name {
			return f, true
		}
	}
	return ImageField{}, false
}

// IsImageField 判断字段是否是图片字段
func (c Collection) IsImageField(name string) bool {
	_, ok := c.ImageField(name)
	return ok
}

// Registry 保存所有已注册的集合
type Registry struct {
	collections map[string]Collection
}

func NewRegistry(collections ...Collection) *Registry {
	r := &Registry{collections: make(map[string]Collection, len(collections))}
	for _, c := range collections {
		r.collections[c.Name] = c
	}
	return r
}

// DefaultRegistry 返回后台内置的内容集合
func DefaultRegistry() *Registry {
	return NewRegistry(
		Collection{Name: "posts", Images: []ImageField{{"cover", FieldSingle}, {"gallery", FieldGallery}}},
		Collection{Name: "promotions", Images: []ImageField{{"banner", FieldSingle}, {"images", FieldGallery}}},
		Collection{Name: "insurance", Images: []ImageField{{"logo", FieldSingle}, {"banner", FieldSingle}}},
		Collection{Name: "enterprise", Images: []ImageField{{"logo", FieldSingle}, {"images", FieldGallery}}},
		Collection{Name: "channels", Images: []ImageField{{"icon", FieldSingle}}},
		Collection{Name: "popups", Images: []ImageField{{"image", FieldSingle}}},
		Collection{Name: "profits", Images: []ImageField{{"image", FieldSingle}}},
		Collection{Name: "shortcuts", Images: []ImageField{{"icon", FieldSingle}}},
	)
}

// Get 返回集合声明，未注册时返回 ErrUnknownCollection
func (r *Registry) Get(name string) (Collection, error) {
	c, ok := r.collections[name]
	if !ok {
		return Collection{}, fmt.Errorf("%w: %s", constant.ErrUnknownCollection, name)
	}
	return c, nil
}

// Names 返回排序后的集合名
func (r *Registry) Names() []string {
	names := make([]string, 0, len(r.collections))
	for name := range r.collections {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
