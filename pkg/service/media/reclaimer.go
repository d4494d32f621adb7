/*
 * @Description: 孤儿对象回收
 * @Author: 安知鱼
 * @Date: 2025-10-24 10:30:06
 * @LastEditTime: 2025-11-02 16:18:44
 * @LastEditors: 安知鱼
 */
package media

import (
	"context"
	"errors"
	"fmt"

	"github.com/anzhiyu-c/anheyu-cms/internal/pkg/event"
	"github.com/anzhiyu-c/anheyu-cms/pkg/constant"
	"github.com/anzhiyu-c/anheyu-cms/pkg/domain/model"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// OrphanLocator 返回目标字段当前持久化的图片引用。
// 文档不存在、字段为空或图集中没有对应条目时返回 (nil, nil)。
type OrphanLocator interface {
	Locate(ctx context.Context, target model.OrphanTarget) (*model.ImageRef, error)
}

// Reclaimer 删除已不再被引用的对象，每次调用最多删除一个对象
type Reclaimer struct {
	locator OrphanLocator
	bucket  *Bucket
	queue   OrphanQueue
	bus     *event.EventBus
	logger  zerolog.Logger
}

// NewReclaimer 创建回收器，queue 和 bus 可以为 nil
func NewReclaimer(locator OrphanLocator, bucket *Bucket, queue OrphanQueue, bus *event.EventBus) *Reclaimer {
	return &Reclaimer{
		locator: locator,
		bucket:  bucket,
		queue:   queue,
		bus:     bus,
		logger:  log.With().Str("component", "media.reclaimer").Logger(),
	}
}

// Orphan 是已经定位、等待删除的旧对象
type Orphan struct {
	Target model.OrphanTarget
	Key    string
}

// Reclaim 查找目标当前持久化的 location 并删除其对象。
// 找不到记录或字段为空时静默返回；删除失败只记录并入队重试，不返回错误。
// 只有查找本身失败时才返回错误。
func (r *Reclaimer) Reclaim(ctx context.Context, target model.OrphanTarget) error {
	orphan, err := r.Locate(ctx, target)
	if err != nil || orphan == nil {
		return err
	}
	r.Remove(ctx, *orphan)
	return nil
}

// Locate 读取目标当前持久化的 location 并换算为对象键，没有可回收的对象时返回 (nil, nil)。
// 文档写入会覆盖持久化的值，因此 Locate 必须在写入之前调用，Remove 在写入成功之后调用。
func (r *Reclaimer) Locate(ctx context.Context, target model.OrphanTarget) (*Orphan, error) {
	ref, err := r.locator.Locate(ctx, target)
	if err != nil {
		if errors.Is(err, constant.ErrNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("查找待回收对象失败 (%s/%s.%s): %w", target.Collection, target.OwnerID, target.Field, err)
	}
	if ref == nil || ref.Location == "" {
		r.logger.Debug().Str("owner", target.OwnerID).Str("field", target.Field).Str("picture", target.PictureID).
			Msg("字段没有可回收的对象")
		return nil, nil
	}
	return &Orphan{Target: target, Key: r.bucket.DeriveKey(ref.Location)}, nil
}

// Remove 删除已定位的对象，失败只记录并入队重试
func (r *Reclaimer) Remove(ctx context.Context, orphan Orphan) {
	if err := r.bucket.Remove(ctx, []string{orphan.Key}); err != nil {
		r.deferRemoval(ctx, orphan.Target, orphan.Key, err)
		return
	}
	r.logger.Info().Str("owner", orphan.Target.OwnerID).Str("field", orphan.Target.Field).Str("key", orphan.Key).Msg("孤儿对象已回收")
}

// deferRemoval 记录删除失败并放入重试队列
func (r *Reclaimer) deferRemoval(ctx context.Context, target model.OrphanTarget, key string, cause error) {
	r.logger.Warn().Err(cause).Str("owner", target.OwnerID).Str("field", target.Field).Str("key", key).
		Msg("孤儿对象删除失败，已加入重试队列")

	if r.bus != nil {
		r.bus.Publish(event.MediaOrphanFailed, event.OrphanFailedPayload{
			Key:     key,
			OwnerID: target.OwnerID,
			Field:   target.Field,
			Err:     cause,
		})
	}
	if r.queue != nil {
		// 请求上下文可能已取消，入队不应受其影响
		if err := r.queue.Push(context.WithoutCancel(ctx), key); err != nil {
			r.logger.Error().Err(err).Str("key", key).Msg("孤儿对象入队失败，对象将泄漏")
		}
	}
}
