/*
 * @Description:
 * @Author: 安知鱼
 * @Date: 2025-07-12 16:09:46
 * @LastEditTime: 2025-11-09 16:02:51
 * @LastEditors: 安知鱼
 */
package task

import (
	"fmt"

	"github.com/anzhiyu-c/anheyu-cms/internal/pkg/logging"
	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog"
)

// Scheduler 封装了 cron 实例和其依赖，负责任务的注册、启动和停止。
type Scheduler struct {
	cron   *cron.Cron
	logger zerolog.Logger
	jobs   []scheduledJob
}

type scheduledJob struct {
	spec string
	job  Job
}

// NewScheduler 是 Scheduler 的构造函数。
func NewScheduler() *Scheduler {
	logger := logging.Component("cron")

	c := cron.New(
		cron.WithSeconds(),
		cron.WithChain(
			NewPanicRecoveryWrapper(logger),
			NewLoggingWrapper(logger),
			cron.DelayIfStillRunning(cronLogger{logger: logger}),
		),
	)

	return &Scheduler{cron: c, logger: logger}
}

// Add 登记一个任务，spec 为空的任务会被跳过
func (s *Scheduler) Add(spec string, job Job) {
	if spec == "" {
		s.logger.Info().Str("job_name", job.Name()).Msg("未配置执行周期，跳过该任务")
		return
	}
	s.jobs = append(s.jobs, scheduledJob{spec: spec, job: job})
}

// RegisterJobs 在调度器中注册所有登记过的定时任务，周期表达式无效时返回错误。
func (s *Scheduler) RegisterJobs() error {
	for _, sj := range s.jobs {
		if _, err := s.cron.AddJob(sj.spec, sj.job); err != nil {
			return fmt.Errorf("注册定时任务 '%s' 失败: %w", sj.job.Name(), err)
		}
		s.logger.Info().Str("job_name", sj.job.Name()).Str("schedule", sj.spec).Msg("定时任务已注册")
	}
	return nil
}

// Start 启动 cron 调度器。
func (s *Scheduler) Start() {
	s.logger.Info().Int("jobs", len(s.cron.Entries())).Msg("定时任务调度器已启动")
	s.cron.Start()
}

// Stop 停止调度器，并等待正在运行的任务结束。
func (s *Scheduler) Stop() {
	s.logger.Info().Msg("正在停止定时任务调度器...")
	<-s.cron.Stop().Done()
	s.logger.Info().Msg("定时任务调度器已停止")
}
