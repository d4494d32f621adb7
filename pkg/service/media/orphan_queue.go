/*
 * @Description: 删除失败的孤儿对象重试队列（Redis 优先，未配置时降级为内存）
 * @Author: 安知鱼
 * @Date: 2025-10-24 09:15:40
 * @LastEditTime: 2025-11-02 16:02:27
 * @LastEditors: 安知鱼
 */
package media

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/anzhiyu-c/anheyu-cms/pkg/constant"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"
)

// OrphanQueue 保存待重试删除的对象键
type OrphanQueue interface {
	Push(ctx context.Context, keys ...string) error
	// Pop 取出最多 max 个对象键，队列为空时返回空切片
	Pop(ctx context.Context, max int) ([]string, error)
	Len(ctx context.Context) (int64, error)
}

// NewOrphanQueue 根据 Redis 是否可用选择实现
func NewOrphanQueue(rdb *redis.Client) OrphanQueue {
	if rdb != nil {
		log.Info().Str("component", "media.orphan_queue").Msg("使用 Redis 孤儿对象重试队列")
		return NewRedisOrphanQueue(rdb, constant.OrphanQueueKey)
	}
	log.Info().Str("component", "media.orphan_queue").Msg("使用内存孤儿对象重试队列")
	return NewMemoryOrphanQueue()
}

type RedisOrphanQueue struct {
	client *redis.Client
	key    string
}

func NewRedisOrphanQueue(client *redis.Client, key string) *RedisOrphanQueue {
	return &RedisOrphanQueue{client: client, key: key}
}

func (q *RedisOrphanQueue) Push(ctx context.Context, keys ...string) error {
	if len(keys) == 0 {
		return nil
	}
	values := make([]interface{}, len(keys))
	for i, k := range keys {
		values[i] = k
	}
	if err := q.client.RPush(ctx, q.key, values...).Err(); err != nil {
		return fmt.Errorf("写入孤儿对象队列失败: %w", err)
	}
	return nil
}

func (q *RedisOrphanQueue) Pop(ctx context.Context, max int) ([]string, error) {
	if max <= 0 {
		return []string{}, nil
	}
	keys, err := q.client.LPopCount(ctx, q.key, max).Result()
	if errors.Is(err, redis.Nil) {
		return []string{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("读取孤儿对象队列失败: %w", err)
	}
	return keys, nil
}

func (q *RedisOrphanQueue) Len(ctx context.Context) (int64, error) {
	return q.client.LLen(ctx, q.key).Result()
}

type MemoryOrphanQueue struct {
	mu   sync.Mutex
	keys []string
}

func NewMemoryOrphanQueue() *MemoryOrphanQueue {
	return &MemoryOrphanQueue{}
}

func (q *MemoryOrphanQueue) Push(ctx context.Context, keys ...string) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.keys = append(q.keys, keys...)
	return nil
}

func (q *MemoryOrphanQueue) Pop(ctx context.Context, max int) ([]string, error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if max > len(q.keys) {
		max = len(q.keys)
	}
	if max <= 0 {
		return []string{}, nil
	}
	out := make([]string, max)
	copy(out, q.keys[:max])
	q.keys = q.keys[max:]
	return out, nil
}

func (q *MemoryOrphanQueue) Len(ctx context.Context) (int64, error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	return int64(len(q.keys)), nil
}

// SweepResult 是一次清扫的统计
type SweepResult struct {
	Removed int
	Requeue int
}

// OrphanSweeper 取出队列中的对象键重新删除，仍然失败的放回队列
type OrphanSweeper struct {
	bucket *Bucket
	queue  OrphanQueue
	batch  int
}

func NewOrphanSweeper(bucket *Bucket, queue OrphanQueue, batch int) *OrphanSweeper {
	if batch <= 0 {
		batch = 100
	}
	return &OrphanSweeper{bucket: bucket, queue: queue, batch: batch}
}

// Sweep 只处理调用时已在队列中的对象键，避免重新入队的键在同一轮中被反复重试。
// ctx 取消后停止删除，已取出但未删除成功的键全部放回队列。
func (s *OrphanSweeper) Sweep(ctx context.Context) (SweepResult, error) {
	var result SweepResult

	pending, err := s.queue.Len(ctx)
	if err != nil {
		return result, err
	}

	for pending > 0 {
		if err := ctx.Err(); err != nil {
			return result, err
		}
		keys, err := s.queue.Pop(ctx, s.batch)
		if err != nil {
			return result, err
		}
		if len(keys) == 0 {
			break
		}
		pending -= int64(len(keys))

		failed := s.remove(ctx, keys, &result)
		if len(failed) > 0 {
			result.Requeue += len(failed)
			// 键已出队，放回队列不能受本轮超时影响
			if err := s.queue.Push(context.WithoutCancel(ctx), failed...); err != nil {
				return result, err
			}
		}
	}
	return result, ctx.Err()
}

// remove 删除一批键并返回仍需重试的键
func (s *OrphanSweeper) remove(ctx context.Context, keys []string, result *SweepResult) []string {
	if err := s.bucket.Remove(ctx, keys); err == nil {
		result.Removed += len(keys)
		return nil
	}

	// 批量失败时逐个重试，定位真正失败的键
	var failed []string
	for i, key := range keys {
		if ctx.Err() != nil {
			return append(failed, keys[i:]...)
		}
		if err := s.bucket.Remove(ctx, []string{key}); err != nil {
			failed = append(failed, key)
			continue
		}
		result.Removed++
	}
	return failed
}
