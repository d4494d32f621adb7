/*
 * @Description: 图集字段的协调：逐条分类后并发执行上传，全部成功后再回收旧对象
 * @Author: 安知鱼
 * @Date: 2025-10-25 15:37:02
 * @LastEditTime: 2025-11-02 17:25:16
 * @LastEditors: 安知鱼
 */
package media

import (
	"context"
	"sync"

	"github.com/anzhiyu-c/anheyu-cms/pkg/constant"
	"github.com/anzhiyu-c/anheyu-cms/pkg/domain/model"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"
)

// EntryClass 是图集条目的意图
type EntryClass int

const (
	EntryNew EntryClass = iota
	EntryReplace
	EntryDelete
	EntryRetain
)

func (c EntryClass) String() string {
	switch c {
	case EntryReplace:
		return "replace"
	case EntryDelete:
		return "delete"
	case EntryRetain:
		return "retain"
	default:
		return "new"
	}
}

// ClassifyEntry 根据 DeletedAt、UpdatedAt、ID 的组合判定条目意图，与位置无关
func ClassifyEntry(e model.CollectionEntry) EntryClass {
	switch {
	case e.DeletedAt != nil:
		return EntryDelete
	case e.UpdatedAt != nil && e.ID != "":
		return EntryReplace
	case e.UpdatedAt != nil:
		return EntryNew
	case e.ID != "":
		return EntryRetain
	default:
		return EntryNew
	}
}

// ReconcileRequest 是一次图集协调的输入
type ReconcileRequest struct {
	Collection string
	OwnerID    string
	Field      string
	Previous   []model.ImageRef
	Input      []model.CollectionEntry
	// Mode 为零值时按更新处理，被删除或替换的条目会被回收
	Mode Mode
}

// Reconciler 处理图集字段
type Reconciler struct {
	resolver    *Resolver
	reclaimer   *Reclaimer
	bucket      *Bucket
	concurrency int
	logger      zerolog.Logger
}

func NewReconciler(resolver *Resolver, reclaimer *Reclaimer, bucket *Bucket, concurrency int) *Reconciler {
	if concurrency <= 0 {
		concurrency = constant.DefaultMediaConcurrency
	}
	return &Reconciler{
		resolver:    resolver,
		reclaimer:   reclaimer,
		bucket:      bucket,
		concurrency: concurrency,
		logger:      log.With().Str("component", "media.reconciler").Logger(),
	}
}

type slot struct {
	class EntryClass
	entry model.CollectionEntry
	prev  *model.ImageRef
	ref   *model.ImageRef
}

// Reconcile 返回新的图集。
// 输出顺序为输入顺序，输入中未提及的旧条目保留并追加在末尾，删除的条目直接移除。
// 所有上传都会被尝试，任一失败时删除本次已上传的对象并返回第一个错误，不回收任何旧对象。
func (r *Reconciler) Reconcile(ctx context.Context, req ReconcileRequest) ([]model.ImageRef, error) {
	plan, err := r.Prepare(ctx, req)
	if err != nil {
		return nil, err
	}
	plan.Commit(ctx)
	return plan.Refs(), nil
}

// GalleryPlan 是上传阶段已完成的图集协调结果
type GalleryPlan struct {
	reconciler *Reconciler
	req        ReconcileRequest
	refs       []model.ImageRef
	uploaded   []string
	orphans    []Orphan
}

// Refs 返回需要持久化的图集
func (p *GalleryPlan) Refs() []model.ImageRef { return p.refs }

// Commit 并发删除被替换或删除的条目，应在文档写入成功后调用
func (p *GalleryPlan) Commit(ctx context.Context) {
	p.reconciler.removeAll(ctx, p.orphans)
}

// Discard 删除本次上传的对象
func (p *GalleryPlan) Discard(ctx context.Context) {
	p.reconciler.compensate(ctx, p.req, p.uploaded)
}

// Prepare 执行全部上传，全部成功后定位需要回收的旧对象，删除推迟到 Commit
func (r *Reconciler) Prepare(ctx context.Context, req ReconcileRequest) (*GalleryPlan, error) {
	previous := make(map[string]*model.ImageRef, len(req.Previous))
	for i := range req.Previous {
		previous[req.Previous[i].ID] = &req.Previous[i]
	}

	mentioned := make(map[string]bool, len(req.Input))
	slots := make([]*slot, 0, len(req.Input))
	for _, e := range req.Input {
		s := &slot{class: ClassifyEntry(e), entry: e}
		if s.class != EntryNew {
			prev, ok := previous[e.ID]
			if !ok {
				r.logger.Warn().Str("owner", req.OwnerID).Str("field", req.Field).Str("picture", e.ID).
					Str("class", s.class.String()).Msg("图集条目不存在，已忽略")
				continue
			}
			if mentioned[e.ID] {
				continue
			}
			mentioned[e.ID] = true
			s.prev = prev
		}
		slots = append(slots, s)
	}

	var (
		mu       sync.Mutex
		uploaded []string
		reclaims []model.OrphanTarget
	)

	var g errgroup.Group
	g.SetLimit(r.concurrency)
	for _, s := range slots {
		s := s
		switch s.class {
		case EntryRetain:
			s.ref = s.prev.Clone()
		case EntryDelete:
			if req.Mode != ModeUpdate {
				continue
			}
			mu.Lock()
			reclaims = append(reclaims, r.target(req, s.entry.ID))
			mu.Unlock()
		case EntryNew, EntryReplace:
			g.Go(func() error {
				res, err := r.resolver.apply(ctx, r.resolveRequest(req, s))
				if err != nil {
					return err
				}
				mu.Lock()
				defer mu.Unlock()
				if res.uploaded != "" {
					uploaded = append(uploaded, res.uploaded)
				}
				if res.reclaim != nil {
					reclaims = append(reclaims, *res.reclaim)
				}
				s.ref = res.ref
				// 没有新内容的替换只更新展示属性
				if s.class == EntryReplace && res.action == ActionRetain && s.ref != nil {
					ref := s.ref.Clone()
					ref.AltText = s.entry.AltText
					ref.IsCover = s.entry.IsCover
					s.ref = ref
				}
				return nil
			})
		}
	}
	if err := g.Wait(); err != nil {
		r.compensate(ctx, req, uploaded)
		return nil, err
	}

	out := make([]model.ImageRef, 0, len(slots)+len(req.Previous))
	for _, s := range slots {
		if s.ref != nil {
			out = append(out, *s.ref)
		}
	}
	for _, prev := range req.Previous {
		if !mentioned[prev.ID] {
			out = append(out, prev)
		}
	}
	return &GalleryPlan{reconciler: r, req: req, refs: out, uploaded: uploaded, orphans: r.locateAll(ctx, reclaims)}, nil
}

func (r *Reconciler) target(req ReconcileRequest, pictureID string) model.OrphanTarget {
	return model.OrphanTarget{
		Collection: req.Collection,
		OwnerID:    req.OwnerID,
		Field:      req.Field,
		PictureID:  pictureID,
	}
}

func (r *Reconciler) resolveRequest(req ReconcileRequest, s *slot) ResolveRequest {
	rr := ResolveRequest{
		OwnerID: req.OwnerID,
		Field:   req.Field,
		Input: model.AttachmentInput{
			Raw:         s.entry.Raw,
			ExistingRef: &model.ImageRef{ID: s.entry.ID, AltText: s.entry.AltText, IsCover: s.entry.IsCover},
		},
		Mode: ModeCreate,
	}
	if s.class == EntryReplace {
		t := r.target(req, s.entry.ID)
		rr.Previous = s.prev
		rr.Target = &t
		rr.Input.MarkedForUpdate = true
		rr.Mode = req.Mode
	}
	return rr
}

// locateAll 并发定位待回收的条目，定位失败的条目跳过回收
func (r *Reconciler) locateAll(ctx context.Context, targets []model.OrphanTarget) []Orphan {
	if len(targets) == 0 || r.reclaimer == nil {
		return nil
	}
	var (
		mu      sync.Mutex
		orphans []Orphan
		g       errgroup.Group
	)
	g.SetLimit(r.concurrency)
	for _, t := range targets {
		t := t
		g.Go(func() error {
			orphan, err := r.reclaimer.Locate(ctx, t)
			if err != nil {
				r.logger.Warn().Err(err).Str("owner", t.OwnerID).Str("picture", t.PictureID).Msg("图集条目定位失败，跳过回收")
				return nil
			}
			if orphan != nil {
				mu.Lock()
				orphans = append(orphans, *orphan)
				mu.Unlock()
			}
			return nil
		})
	}
	_ = g.Wait()
	return orphans
}

// removeAll 并发删除，失败由 Reclaimer 记录与入队
func (r *Reconciler) removeAll(ctx context.Context, orphans []Orphan) {
	if len(orphans) == 0 {
		return
	}
	var g errgroup.Group
	g.SetLimit(r.concurrency)
	for _, o := range orphans {
		o := o
		g.Go(func() error {
			r.reclaimer.Remove(ctx, o)
			return nil
		})
	}
	_ = g.Wait()
}

// compensate 删除已经上传成功但不会被引用的对象
func (r *Reconciler) compensate(ctx context.Context, req ReconcileRequest, keys []string) {
	if len(keys) == 0 {
		return
	}
	if err := r.bucket.Remove(context.WithoutCancel(ctx), keys); err != nil {
		r.logger.Warn().Err(err).Str("owner", req.OwnerID).Strs("keys", keys).Msg("清理未使用的上传对象失败")
		return
	}
	r.logger.Info().Str("owner", req.OwnerID).Int("count", len(keys)).Msg("已清理未使用的上传对象")
}
