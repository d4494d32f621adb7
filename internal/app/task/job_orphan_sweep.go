/*
 * @Description: 定期重试删除回收失败的存储对象
 * @Author: 安知鱼
 * @Date: 2025-11-09 15:20:44
 * @LastEditTime: 2025-11-09 16:02:51
 * @LastEditors: 安知鱼
 */
package task

import (
	"context"
	"time"

	"github.com/anzhiyu-c/anheyu-cms/pkg/service/media"
	"github.com/rs/zerolog/log"
)

// 单轮清扫的最长时间，超时后剩余的键留到下一轮
const orphanSweepTimeout = 5 * time.Minute

// Sweeper 由 media.OrphanSweeper 实现
type Sweeper interface {
	Sweep(ctx context.Context) (media.SweepResult, error)
}

// OrphanSweepJob 清扫孤儿对象队列
type OrphanSweepJob struct {
	sweeper Sweeper
}

// NewOrphanSweepJob 是任务的构造函数
func NewOrphanSweepJob(sweeper Sweeper) *OrphanSweepJob {
	return &OrphanSweepJob{sweeper: sweeper}
}

// Run 是 Job 接口要求实现的方法
func (j *OrphanSweepJob) Run() {
	ctx, cancel := context.WithTimeout(context.Background(), orphanSweepTimeout)
	defer cancel()

	result, err := j.sweeper.Sweep(ctx)
	if err != nil {
		log.Error().Err(err).Str("job_name", j.Name()).
			Int("removed", result.Removed).
			Msg("清扫孤儿对象时出错")
		return
	}
	if result.Removed > 0 || result.Requeue > 0 {
		log.Info().Str("job_name", j.Name()).
			Int("removed", result.Removed).
			Int("requeue", result.Requeue).
			Msg("孤儿对象清扫完成")
	}
}

// Name 方法让日志包装器可以打印出更有意义的任务名
func (j *OrphanSweepJob) Name() string {
	return "OrphanSweepJob"
}
