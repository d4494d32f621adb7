/*
 * @Description: 通用内容服务，所有集合共享同一套图片附件生命周期
 * @Author: 安知鱼
 * @Date: 2025-10-26 14:20:17
 * @LastEditTime: 2025-11-02 19:12:40
 * @LastEditors: 安知鱼
 */
package content

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/anzhiyu-c/anheyu-cms/internal/pkg/event"
	"github.com/anzhiyu-c/anheyu-cms/pkg/constant"
	"github.com/anzhiyu-c/anheyu-cms/pkg/domain/model"
	"github.com/anzhiyu-c/anheyu-cms/pkg/domain/repository"
	"github.com/anzhiyu-c/anheyu-cms/pkg/idgen"
	"github.com/anzhiyu-c/anheyu-cms/pkg/service/media"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"
)

// WriteRequest 是创建或更新文档的请求体
type WriteRequest struct {
	// Fields 是普通字段，更新时值为 null 表示移除该字段
	Fields map[string]interface{} `json:"fields"`
	// Images 是单图字段的变更
	Images map[string]model.AttachmentInput `json:"images"`
	// Galleries 是图集字段的变更
	Galleries map[string][]model.CollectionEntry `json:"galleries"`
}

// Service 定义了内容集合的业务逻辑接口。
type Service interface {
	Create(ctx context.Context, collection string, req *WriteRequest) (*model.Document, error)
	Get(ctx context.Context, collection, id string) (*model.Document, error)
	List(ctx context.Context, collection string, query repository.PageQuery) (*repository.PageResult[model.Document], error)
	Update(ctx context.Context, collection, id string, req *WriteRequest) (*model.Document, error)
	// Duplicate 复制文档及其全部图片，源文档与源对象不受影响
	Duplicate(ctx context.Context, collection, id string) (*model.Document, error)
	// DeletePicture 删除单图字段，或图集字段中的一个条目
	DeletePicture(ctx context.Context, collection, id, field, pictureID string) (*model.Document, error)
	// Delete 删除文档并回收其持有的全部图片
	Delete(ctx context.Context, collection, id string) error
}

type service struct {
	repo        repository.DocumentRepository
	registry    *Registry
	resolver    *media.Resolver
	reconciler  *media.Reconciler
	reclaimer   *media.Reclaimer
	cloner      *media.Cloner
	eventBus    *event.EventBus
	concurrency int
}

// NewService 是 service 的构造函数，注入所有依赖。
func NewService(
	repo repository.DocumentRepository,
	registry *Registry,
	resolver *media.Resolver,
	reconciler *media.Reconciler,
	reclaimer *media.Reclaimer,
	cloner *media.Cloner,
	eventBus *event.EventBus,
	concurrency int,
) Service {
	if concurrency <= 0 {
		concurrency = constant.DefaultMediaConcurrency
	}
	return &service{
		repo:        repo,
		registry:    registry,
		resolver:    resolver,
		reconciler:  reconciler,
		reclaimer:   reclaimer,
		cloner:      cloner,
		eventBus:    eventBus,
		concurrency: concurrency,
	}
}

func (s *service) Get(ctx context.Context, collection, id string) (*model.Document, error) {
	col, err := s.registry.Get(collection)
	if err != nil {
		return nil, err
	}
	return s.repo.FindByID(ctx, col.Name, id)
}

func (s *service) List(ctx context.Context, collection string, query repository.PageQuery) (*repository.PageResult[model.Document], error) {
	col, err := s.registry.Get(collection)
	if err != nil {
		return nil, err
	}
	return s.repo.List(ctx, col.Name, query)
}

// Create 先上传全部图片再写入文档，写入失败时删除本次上传的对象。
func (s *service) Create(ctx context.Context, collection string, req *WriteRequest) (*model.Document, error) {
	col, err := s.registry.Get(collection)
	if err != nil {
		return nil, err
	}
	if err := validate(col, req); err != nil {
		return nil, err
	}

	id, err := idgen.NewDocumentID()
	if err != nil {
		return nil, fmt.Errorf("生成文档ID失败: %w", err)
	}

	st, err := s.stage(ctx, col, id, nil, req, media.ModeCreate)
	if err != nil {
		return nil, err
	}

	doc := &model.Document{ID: id, Collection: col.Name, Fields: st.set}
	if err := s.repo.Create(ctx, doc); err != nil {
		st.discard(ctx)
		return nil, fmt.Errorf("创建文档失败: %w", err)
	}

	log.Info().Str("collection", col.Name).Str("id", id).Msg("文档已创建")
	return doc, nil
}

// Update 的顺序为：上传全部图片并定位旧对象、一次原子写入、删除旧对象。
// 写入失败时删除本次上传的对象，旧对象保持不变。
func (s *service) Update(ctx context.Context, collection, id string, req *WriteRequest) (*model.Document, error) {
	col, err := s.registry.Get(collection)
	if err != nil {
		return nil, err
	}
	if err := validate(col, req); err != nil {
		return nil, err
	}

	doc, err := s.repo.FindByID(ctx, col.Name, id)
	if err != nil {
		return nil, err
	}

	st, err := s.stage(ctx, col, id, doc, req, media.ModeUpdate)
	if err != nil {
		return nil, err
	}

	updated, err := s.repo.UpdateFields(ctx, col.Name, id, st.set, st.unset)
	if err != nil {
		st.discard(ctx)
		return nil, fmt.Errorf("更新文档失败: %w", err)
	}
	st.commit(ctx)
	return updated, nil
}

func (s *service) DeletePicture(ctx context.Context, collection, id, field, pictureID string) (*model.Document, error) {
	col, err := s.registry.Get(collection)
	if err != nil {
		return nil, err
	}
	f, ok := col.ImageField(field)
	if !ok {
		return nil, fmt.Errorf("%w: %s.%s", constant.ErrUnknownField, col.Name, field)
	}

	req := &WriteRequest{}
	switch f.Kind {
	case FieldSingle:
		req.Images = map[string]model.AttachmentInput{field: {MarkedForDeletion: true}}
	case FieldGallery:
		doc, err := s.repo.FindByID(ctx, col.Name, id)
		if err != nil {
			return nil, err
		}
		if !containsPicture(doc.GalleryField(field), pictureID) {
			return nil, fmt.Errorf("%w: 图片 %s 不在 %s 中", constant.ErrNotFound, pictureID, field)
		}
		now := time.Now()
		req.Galleries = map[string][]model.CollectionEntry{field: {{ID: pictureID, DeletedAt: &now}}}
	}
	return s.Update(ctx, col.Name, id, req)
}

func (s *service) Delete(ctx context.Context, collection, id string) error {
	col, err := s.registry.Get(collection)
	if err != nil {
		return err
	}
	doc, err := s.repo.FindByID(ctx, col.Name, id)
	if err != nil {
		return err
	}

	targets := ownedTargets(col, doc)
	orphans := make([]*media.Orphan, len(targets))
	var g errgroup.Group
	g.SetLimit(s.concurrency)
	for i, t := range targets {
		i, t := i, t
		g.Go(func() error {
			orphan, err := s.reclaimer.Locate(ctx, t)
			if err != nil {
				log.Warn().Err(err).Str("collection", col.Name).Str("id", id).Str("field", t.Field).Msg("删除文档时定位图片失败")
				return nil
			}
			orphans[i] = orphan
			return nil
		})
	}
	_ = g.Wait()

	if err := s.repo.Delete(ctx, col.Name, id); err != nil {
		return fmt.Errorf("删除文档失败: %w", err)
	}

	var removals errgroup.Group
	removals.SetLimit(s.concurrency)
	for _, orphan := range orphans {
		if orphan == nil {
			continue
		}
		orphan := orphan
		removals.Go(func() error {
			s.reclaimer.Remove(ctx, *orphan)
			return nil
		})
	}
	_ = removals.Wait()

	if s.eventBus != nil {
		s.eventBus.Publish(event.DocumentDeleted, event.DocumentDeletedPayload{
			Collection: col.Name,
			ID:         id,
			Images:     len(targets),
		})
	}
	return nil
}

func (s *service) Duplicate(ctx context.Context, collection, id string) (*model.Document, error) {
	col, err := s.registry.Get(collection)
	if err != nil {
		return nil, err
	}
	src, err := s.repo.FindByID(ctx, col.Name, id)
	if err != nil {
		return nil, err
	}

	newID, err := idgen.NewDocumentID()
	if err != nil {
		return nil, fmt.Errorf("生成文档ID失败: %w", err)
	}

	fields := make(map[string]interface{}, len(src.Fields))
	for k, v := range src.Fields {
		fields[k] = v
	}

	var cloned []*model.ImageRef
	fail := func(err error) (*model.Document, error) {
		s.cloner.Discard(ctx, cloned...)
		return nil, err
	}

	for _, f := range col.Images {
		delete(fields, f.Name)
		switch f.Kind {
		case FieldSingle:
			ref, err := s.cloner.Clone(ctx, src.ImageField(f.Name), newID, f.Name)
			if err != nil {
				return fail(err)
			}
			if ref == nil {
				continue
			}
			ref.ID = model.NewImageID()
			cloned = append(cloned, ref)
			fields[f.Name] = model.ImageRefValue(ref)
		case FieldGallery:
			refs, err := s.cloner.CloneAll(ctx, src.GalleryField(f.Name), newID, f.Name)
			if err != nil {
				return fail(err)
			}
			if len(refs) == 0 {
				continue
			}
			for i := range refs {
				refs[i].ID = model.NewImageID()
				cloned = append(cloned, &refs[i])
			}
			fields[f.Name] = model.ImageRefsValue(refs)
		}
	}

	doc := &model.Document{ID: newID, Collection: col.Name, Fields: fields}
	if err := s.repo.Create(ctx, doc); err != nil {
		return fail(fmt.Errorf("创建副本失败: %w", err))
	}

	log.Info().Str("collection", col.Name).Str("source", id).Str("id", newID).Int("images", len(cloned)).Msg("文档已复制")
	return doc, nil
}

// stagedChange 是已完成上传、等待写入结果的变更
type stagedChange interface {
	Commit(ctx context.Context)
	Discard(ctx context.Context)
}

type staged struct {
	set     map[string]interface{}
	unset   []string
	changes []stagedChange
}

func (st *staged) commit(ctx context.Context) {
	for _, c := range st.changes {
		c.Commit(ctx)
	}
}

func (st *staged) discard(ctx context.Context) {
	for _, c := range st.changes {
		c.Discard(ctx)
	}
}

// stage 计算本次写入的字段并完成全部上传，任一字段失败时清理已上传的对象
func (s *service) stage(ctx context.Context, col Collection, id string, doc *model.Document, req *WriteRequest, mode media.Mode) (*staged, error) {
	st := &staged{set: make(map[string]interface{})}

	for _, name := range sortedKeys(req.Fields) {
		if v := req.Fields[name]; v != nil {
			st.set[name] = v
		} else if mode == media.ModeUpdate {
			st.unset = append(st.unset, name)
		}
	}

	for _, name := range sortedKeys(req.Images) {
		var prev *model.ImageRef
		if doc != nil {
			prev = doc.ImageField(name)
		}
		p, err := s.resolver.Prepare(ctx, media.ResolveRequest{
			OwnerID:  id,
			Previous: prev,
			Input:    req.Images[name],
			Field:    name,
			Target:   &model.OrphanTarget{Collection: col.Name, OwnerID: id, Field: name},
			Mode:     mode,
		})
		if err != nil {
			st.discard(ctx)
			return nil, fmt.Errorf("处理图片字段 %s 失败: %w", name, err)
		}
		st.changes = append(st.changes, p)

		switch {
		case p.Ref() != nil:
			st.set[name] = model.ImageRefValue(p.Ref())
		case p.Action() == media.ActionClear && mode == media.ModeUpdate:
			st.unset = append(st.unset, name)
		}
	}

	for _, name := range sortedKeys(req.Galleries) {
		var prev []model.ImageRef
		if doc != nil {
			prev = doc.GalleryField(name)
		}
		plan, err := s.reconciler.Prepare(ctx, media.ReconcileRequest{
			Collection: col.Name,
			OwnerID:    id,
			Field:      name,
			Previous:   prev,
			Input:      req.Galleries[name],
			Mode:       mode,
		})
		if err != nil {
			st.discard(ctx)
			return nil, fmt.Errorf("处理图集字段 %s 失败: %w", name, err)
		}
		st.changes = append(st.changes, plan)
		st.set[name] = model.ImageRefsValue(plan.Refs())
	}
	return st, nil
}

// validate 确保图片字段只通过 Images/Galleries 修改，且字段类型与声明一致
func validate(col Collection, req *WriteRequest) error {
	if req == nil {
		return fmt.Errorf("%w: 请求体为空", constant.ErrBadRequest)
	}
	for name := range req.Fields {
		if name == "" || name == "id" {
			return fmt.Errorf("%w: 非法字段名 %q", constant.ErrBadRequest, name)
		}
		if col.IsImageField(name) {
			return fmt.Errorf("%w: 图片字段 %s 不能作为普通字段提交", constant.ErrBadRequest, name)
		}
	}
	for name := range req.Images {
		if f, ok := col.ImageField(name); !ok || f.Kind != FieldSingle {
			return fmt.Errorf("%w: %s.%s 不是单图字段", constant.ErrUnknownField, col.Name, name)
		}
	}
	for name := range req.Galleries {
		if f, ok := col.ImageField(name); !ok || f.Kind != FieldGallery {
			return fmt.Errorf("%w: %s.%s 不是图集字段", constant.ErrUnknownField, col.Name, name)
		}
	}
	return nil
}

// ownedTargets 列出文档持有的全部图片
func ownedTargets(col Collection, doc *model.Document) []model.OrphanTarget {
	var targets []model.OrphanTarget
	for _, f := range col.Images {
		base := model.OrphanTarget{Collection: col.Name, OwnerID: doc.ID, Field: f.Name}
		switch f.Kind {
		case FieldSingle:
			if doc.ImageField(f.Name) != nil {
				targets = append(targets, base)
			}
		case FieldGallery:
			for _, ref := range doc.GalleryField(f.Name) {
				t := base
				t.PictureID = ref.ID
				targets = append(targets, t)
			}
		}
	}
	return targets
}

func containsPicture(refs []model.ImageRef, id string) bool {
	for _, ref := range refs {
		if ref.ID == id {
			return true
		}
	}
	return false
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
