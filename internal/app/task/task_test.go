package task

import (
	"bytes"
	"context"
	"errors"
	"sync/atomic"
	"testing"

	"github.com/anzhiyu-c/anheyu-cms/internal/pkg/logging"
	"github.com/anzhiyu-c/anheyu-cms/pkg/service/media"
	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type countingJob struct {
	runs  int32
	panic bool
}

func (j *countingJob) Run() {
	atomic.AddInt32(&j.runs, 1)
	if j.panic {
		panic("boom")
	}
}

func (j *countingJob) Name() string { return "CountingJob" }

type stubSweeper struct {
	result media.SweepResult
	err    error
	calls  int
}

func (s *stubSweeper) Sweep(ctx context.Context) (media.SweepResult, error) {
	s.calls++
	return s.result, s.err
}

func TestWrappers(t *testing.T) {
	var buf bytes.Buffer
	logger := zerolog.New(&buf)

	job := &countingJob{panic: true}
	wrapped := cron.NewChain(NewPanicRecoveryWrapper(logger), NewLoggingWrapper(logger)).Then(job)

	assert.NotPanics(t, wrapped.Run)
	assert.Equal(t, int32(1), atomic.LoadInt32(&job.runs))
	assert.Contains(t, buf.String(), "任务开始执行")
	assert.Contains(t, buf.String(), "任务发生 panic")
	assert.Contains(t, buf.String(), `"job_name":"CountingJob"`)
	assert.Contains(t, buf.String(), "execution_id")
}

func TestGetJobName(t *testing.T) {
	assert.Equal(t, "CountingJob", getJobName(&countingJob{}))
	assert.Equal(t, "cron.FuncJob", getJobName(cron.FuncJob(func() {})))
}

func TestScheduler_RegisterJobs(t *testing.T) {
	logging.SetupWithWriter(false, &bytes.Buffer{})

	testCases := []struct {
		name        string
		spec        string
		wantErr     bool
		wantEntries int
	}{
		{"有效的秒级表达式", "0 */10 * * * *", false, 1},
		{"空表达式跳过", "", false, 0},
		{"无效表达式", "every ten minutes", true, 0},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			s := NewScheduler()
			s.Add(tc.spec, &countingJob{})

			err := s.RegisterJobs()
			if tc.wantErr {
				require.Error(t, err)
				assert.Contains(t, err.Error(), "CountingJob")
				return
			}
			require.NoError(t, err)
			assert.Len(t, s.cron.Entries(), tc.wantEntries)
		})
	}
}

func TestOrphanSweepJob(t *testing.T) {
	var buf bytes.Buffer
	logging.SetupWithWriter(false, &buf)

	t.Run("清扫成功", func(t *testing.T) {
		buf.Reset()
		sweeper := &stubSweeper{result: media.SweepResult{Removed: 3, Requeue: 1}}
		NewOrphanSweepJob(sweeper).Run()

		assert.Equal(t, 1, sweeper.calls)
		assert.Contains(t, buf.String(), "孤儿对象清扫完成")
		assert.Contains(t, buf.String(), `"removed":3`)
	})

	t.Run("队列为空时不输出", func(t *testing.T) {
		buf.Reset()
		NewOrphanSweepJob(&stubSweeper{}).Run()
		assert.Empty(t, buf.String())
	})

	t.Run("清扫出错", func(t *testing.T) {
		buf.Reset()
		NewOrphanSweepJob(&stubSweeper{err: errors.New("redis down")}).Run()
		assert.Contains(t, buf.String(), "清扫孤儿对象时出错")
		assert.Contains(t, buf.String(), "redis down")
	})
}
