/*
 * @Description: 全局日志初始化（zerolog）
 * @Author: 安知鱼
 * @Date: 2025-11-02 09:12:40
 * @LastEditTime: 2025-11-02 09:12:40
 * @LastEditors: 安知鱼
 */
package logging

import (
	"io"
	"os"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// Setup 配置全局 zerolog。
// debug 模式使用便于阅读的控制台输出，否则输出 JSON 以便采集。
func Setup(debug bool) {
	SetupWithWriter(debug, os.Stdout)
}

// SetupWithWriter 与 Setup 相同，但允许指定输出目标（测试中使用）。
func SetupWithWriter(debug bool, out io.Writer) {
	zerolog.TimeFieldFormat = time.RFC3339

	level := zerolog.InfoLevel
	if debug {
		level = zerolog.DebugLevel
	}
	zerolog.SetGlobalLevel(level)

	if debug {
		cw := zerolog.NewConsoleWriter(func(w *zerolog.ConsoleWriter) {
			w.Out = out
			w.TimeFormat = "2006-01-02 15:04:05"
		})
		log.Logger = zerolog.New(cw).With().Timestamp().Logger()
		return
	}
	log.Logger = zerolog.New(out).With().Timestamp().Logger()
}

// Component 返回带 component 字段的子 logger
func Component(name string) zerolog.Logger {
	return log.With().Str("component", name).Logger()
}
