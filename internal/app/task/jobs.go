package task

// Job 与 cron.Job 接口兼容，Name 用于日志
type Job interface {
	Run()
	Name() string
}
