/*
 * @Description: 单图字段的附件解析：决定创建、替换、保留或清空，并执行对应的存储操作
 * @Author: 安知鱼
 * @Date: 2025-10-24 14:12:51
 * @LastEditTime: 2025-11-02 16:47:30
 * @LastEditors: 安知鱼
 */
package media

import (
	"context"
	"fmt"
	"strings"

	"github.com/anzhiyu-c/anheyu-cms/pkg/constant"
	"github.com/anzhiyu-c/anheyu-cms/pkg/domain/model"
	"github.com/anzhiyu-c/anheyu-cms/pkg/idgen"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// Mode 区分文档创建与更新，零值为更新
type Mode int

const (
	ModeUpdate Mode = iota
	// ModeCreate 文档尚不存在，不会触发孤儿回收
	ModeCreate
)

func (m Mode) String() string {
	if m == ModeCreate {
		return "create"
	}
	return "update"
}

// Action 是单个字段需要执行的操作
type Action int

const (
	ActionNone Action = iota
	ActionCreate
	ActionReplace
	ActionRetain
	ActionClear
)

func (a Action) String() string {
	switch a {
	case ActionCreate:
		return "create"
	case ActionReplace:
		return "replace"
	case ActionRetain:
		return "retain"
	case ActionClear:
		return "clear"
	default:
		return "none"
	}
}

// Classify 按优先级决定操作：有新内容时上传，无新内容时依次判断保留、清空、无操作
func Classify(previous *model.ImageRef, input model.AttachmentInput) Action {
	switch {
	case input.Raw != nil && previous != nil:
		return ActionReplace
	case input.Raw != nil:
		return ActionCreate
	case input.MarkedForDeletion:
		return ActionClear
	case previous != nil:
		return ActionRetain
	default:
		return ActionNone
	}
}

// ResolveRequest 是一次单字段解析的输入
type ResolveRequest struct {
	// OwnerID 是所属文档 ID，用于生成存储路径
	OwnerID string
	// Previous 是字段当前持久化的值，创建时为 nil
	Previous *model.ImageRef
	Input    model.AttachmentInput
	// Field 是存储子路径，只用于命名空间划分
	Field string
	// Target 指向需要回收的旧对象，为 nil 时不回收
	Target *model.OrphanTarget
	Mode   Mode
}

// resolution 是上传阶段的结果，回收留给调用方在合适的时机执行
type resolution struct {
	action   Action
	ref      *model.ImageRef
	uploaded string
	reclaim  *model.OrphanTarget
}

// Resolver 处理单图字段
type Resolver struct {
	bucket    *Bucket
	reclaimer *Reclaimer
	logger    zerolog.Logger
}

func NewResolver(bucket *Bucket, reclaimer *Reclaimer) *Resolver {
	return &Resolver{
		bucket:    bucket,
		reclaimer: reclaimer,
		logger:    log.With().Str("component", "media.resolver").Logger(),
	}
}

// Resolve 执行字段对应的存储操作并返回需要持久化的引用，nil 表示字段应为空。
// 上传失败时返回错误且不回收旧对象；旧对象回收失败不会影响结果。
func (r *Resolver) Resolve(ctx context.Context, req ResolveRequest) (*model.ImageRef, error) {
	p, err := r.Prepare(ctx, req)
	if err != nil {
		return nil, err
	}
	p.Commit(ctx)
	return p.Ref(), nil
}

// Prepare 执行上传并定位需要回收的旧对象，删除推迟到 Commit。
// 调用方应在文档写入成功后 Commit，写入失败或其他字段失败时 Discard。
func (r *Resolver) Prepare(ctx context.Context, req ResolveRequest) (*Pending, error) {
	res, err := r.apply(ctx, req)
	if err != nil {
		return nil, err
	}
	p := &Pending{resolver: r, res: res}
	if res.reclaim != nil {
		p.orphan = r.locate(ctx, *res.reclaim)
	}
	return p, nil
}

// Pending 是已完成上传、尚未回收旧对象的解析结果
type Pending struct {
	resolver *Resolver
	res      resolution
	orphan   *Orphan
}

// Ref 返回需要持久化的引用
func (p *Pending) Ref() *model.ImageRef { return p.res.ref }

func (p *Pending) Action() Action { return p.res.action }

// Commit 删除被替换或清空的旧对象，失败只记录
func (p *Pending) Commit(ctx context.Context) {
	if p.orphan != nil {
		p.resolver.reclaimer.Remove(ctx, *p.orphan)
	}
}

// Discard 删除本次上传的对象
func (p *Pending) Discard(ctx context.Context) {
	if p.res.uploaded == "" {
		return
	}
	if err := p.resolver.bucket.Remove(context.WithoutCancel(ctx), []string{p.res.uploaded}); err != nil {
		p.resolver.logger.Warn().Err(err).Str("key", p.res.uploaded).Msg("清理未使用的上传对象失败")
	}
}

func (r *Resolver) apply(ctx context.Context, req ResolveRequest) (resolution, error) {
	action := Classify(req.Previous, req.Input)
	res := resolution{action: action}

	switch action {
	case ActionCreate, ActionReplace:
		out, err := r.upload(ctx, req)
		if err != nil {
			return resolution{action: action}, err
		}
		res.uploaded = out.Key

		ref := &model.ImageRef{Location: out.Location}
		if action == ActionReplace {
			ref.ID = req.Previous.ID
			ref.AltText = req.Previous.AltText
			ref.IsCover = req.Previous.IsCover
		}
		if ref.ID == "" {
			ref.ID = model.NewImageID()
		}
		if echo := req.Input.ExistingRef; echo != nil {
			ref.AltText = echo.AltText
			ref.IsCover = echo.IsCover
		}
		res.ref = ref

		if action == ActionReplace && req.Mode == ModeUpdate {
			res.reclaim = req.Target
		}
	case ActionClear:
		if req.Mode == ModeUpdate {
			res.reclaim = req.Target
		}
	case ActionRetain:
		res.ref = req.Previous.Clone()
	}

	r.logger.Debug().Str("owner", req.OwnerID).Str("field", req.Field).Str("mode", req.Mode.String()).
		Str("action", action.String()).Msg("附件解析完成")
	return res, nil
}

func (r *Resolver) upload(ctx context.Context, req ResolveRequest) (*UploadOutput, error) {
	if req.OwnerID == "" {
		return nil, fmt.Errorf("%w: 上传图片需要所属文档ID", constant.ErrBadRequest)
	}
	fileID, err := idgen.NewFileID()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", constant.ErrUploadFailed, err)
	}

	out, err := r.bucket.Upload(ctx, UploadParams{
		FilePath: joinPath(req.Field, req.OwnerID),
		FileType: req.Input.Raw.FileType,
		Base64:   req.Input.Raw.Base64,
		FileID:   fileID,
	})
	if err != nil {
		r.logger.Error().Err(err).Str("owner", req.OwnerID).Str("field", req.Field).Msg("图片上传失败")
		return nil, err
	}
	return out, nil
}

// locate 定位待回收的旧对象，查找失败时放弃回收并记录
func (r *Resolver) locate(ctx context.Context, target model.OrphanTarget) *Orphan {
	if r.reclaimer == nil {
		return nil
	}
	orphan, err := r.reclaimer.Locate(ctx, target)
	if err != nil {
		r.logger.Warn().Err(err).Str("owner", target.OwnerID).Str("field", target.Field).Msg("旧对象定位失败，跳过回收")
		return nil
	}
	return orphan
}

func joinPath(parts ...string) string {
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.Trim(p, "/"); p != "" {
			out = append(out, p)
		}
	}
	return strings.Join(out, "/")
}
