/*
 * @Description: 提供了用于 cron 任务的中间件（装饰器）。
 * @Author: 安知鱼
 * @Date: 2025-06-29 22:36:09
 * @LastEditTime: 2025-11-09 15:48:30
 * @LastEditors: 安知鱼
 */
package task

import (
	"fmt"
	"reflect"
	"runtime/debug"
	"time"

	"github.com/google/uuid"
	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog"
)

// JobWrapper 是 cron.JobWrapper 的类型别名，用于简化代码。
type JobWrapper = cron.JobWrapper

// NewLoggingWrapper 创建一个日志装饰器。
// 每次执行都带有唯一的 execution_id，便于在日志中串联同一次运行。
func NewLoggingWrapper(logger zerolog.Logger) JobWrapper {
	return func(j cron.Job) cron.Job {
		return cron.FuncJob(func() {
			jobLogger := logger.With().
				Str("job_name", getJobName(j)).
				Str("execution_id", uuid.New().String()).
				Logger()

			startTime := time.Now()
			jobLogger.Info().Msg("任务开始执行")

			j.Run()

			jobLogger.Info().Dur("duration", time.Since(startTime)).Msg("任务执行结束")
		})
	}
}

// NewPanicRecoveryWrapper 创建 panic 恢复装饰器，任务 panic 时记录堆栈，不影响其他任务。
func NewPanicRecoveryWrapper(logger zerolog.Logger) JobWrapper {
	return func(j cron.Job) cron.Job {
		return cron.FuncJob(func() {
			defer func() {
				if r := recover(); r != nil {
					logger.Error().
						Str("job_name", getJobName(j)).
						Str("panic", fmt.Sprint(r)).
						Str("stack_trace", string(debug.Stack())).
						Msg("任务发生 panic")
				}
			}()

			j.Run()
		})
	}
}

// getJobName 优先使用任务自定义的 Name() 方法，否则通过反射获取其类型名
func getJobName(j cron.Job) string {
	if namedJob, ok := j.(interface{ Name() string }); ok {
		return namedJob.Name()
	}

	jobType := reflect.TypeOf(j)
	if jobType.Kind() == reflect.Ptr {
		return jobType.Elem().String()
	}
	return jobType.String()
}

// cronLogger 把 cron 内部日志转发到 zerolog
type cronLogger struct {
	logger zerolog.Logger
}

func (l cronLogger) Info(msg string, keysAndValues ...interface{}) {
	l.logger.Debug().Fields(keysAndValues).Msg(msg)
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	l.logger.Error().Err(err).Fields(keysAndValues).Msg(msg)
}
