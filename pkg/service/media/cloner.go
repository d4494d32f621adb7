/*
 * @Description: 复制文档时克隆图片对象
 * @Author: 安知鱼
 * @Date: 2025-10-25 11:08:23
 * @LastEditTime: 2025-11-02 17:02:11
 * @LastEditors: 安知鱼
 */
package media

import (
	"context"
	"fmt"
	"sync"

	"github.com/anzhiyu-c/anheyu-cms/pkg/constant"
	"github.com/anzhiyu-c/anheyu-cms/pkg/domain/model"
	"github.com/anzhiyu-c/anheyu-cms/pkg/idgen"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"
)

// Cloner 将图片复制到新的对象键，源对象与源文档不受影响
type Cloner struct {
	bucket      *Bucket
	concurrency int
	logger      zerolog.Logger
}

func NewCloner(bucket *Bucket, concurrency int) *Cloner {
	if concurrency <= 0 {
		concurrency = constant.DefaultMediaConcurrency
	}
	return &Cloner{
		bucket:      bucket,
		concurrency: concurrency,
		logger:      log.With().Str("component", "media.cloner").Logger(),
	}
}

// Clone 复制 source 到 namespace/newOwnerID 下。
// source 为 nil 时返回 nil；返回的引用保留 AltText/IsCover，ID 由调用方分配。
func (c *Cloner) Clone(ctx context.Context, source *model.ImageRef, newOwnerID, namespace string) (*model.ImageRef, error) {
	if source == nil || source.Location == "" {
		return nil, nil
	}
	fileID, err := idgen.NewFileID()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", constant.ErrCopyFailed, err)
	}

	srcKey := c.bucket.DeriveKey(source.Location)
	out, err := c.bucket.Copy(ctx, srcKey, joinPath(namespace, newOwnerID), fileID)
	if err != nil {
		c.logger.Error().Err(err).Str("src", srcKey).Str("owner", newOwnerID).Msg("图片克隆失败")
		return nil, err
	}

	return &model.ImageRef{
		Location: out.Location,
		AltText:  source.AltText,
		IsCover:  source.IsCover,
	}, nil
}

// CloneAll 并发克隆图集，保持顺序。任一失败时删除已复制的对象并返回错误。
func (c *Cloner) CloneAll(ctx context.Context, sources []model.ImageRef, newOwnerID, namespace string) ([]model.ImageRef, error) {
	if len(sources) == 0 {
		return nil, nil
	}

	results := make([]*model.ImageRef, len(sources))
	var (
		mu     sync.Mutex
		copied []string
	)

	var g errgroup.Group
	g.SetLimit(c.concurrency)
	for i := range sources {
		i := i
		g.Go(func() error {
			ref, err := c.Clone(ctx, &sources[i], newOwnerID, namespace)
			if err != nil {
				return err
			}
			if ref != nil {
				mu.Lock()
				copied = append(copied, c.bucket.DeriveKey(ref.Location))
				mu.Unlock()
			}
			results[i] = ref
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		c.discard(ctx, copied)
		return nil, err
	}

	out := make([]model.ImageRef, 0, len(results))
	for _, ref := range results {
		if ref != nil {
			out = append(out, *ref)
		}
	}
	return out, nil
}

// Discard 删除克隆出的对象，用于后续步骤失败时的补偿
func (c *Cloner) Discard(ctx context.Context, refs ...*model.ImageRef) {
	keys := make([]string, 0, len(refs))
	for _, ref := range refs {
		if ref != nil && ref.Location != "" {
			keys = append(keys, c.bucket.DeriveKey(ref.Location))
		}
	}
	c.discard(ctx, keys)
}

func (c *Cloner) discard(ctx context.Context, keys []string) {
	if len(keys) == 0 {
		return
	}
	if err := c.bucket.Remove(context.WithoutCancel(ctx), keys); err != nil {
		c.logger.Warn().Err(err).Strs("keys", keys).Msg("清理克隆对象失败")
	}
}
