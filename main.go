/*
 * @Description:
 * @Author: 安知鱼
 * @Date: 2025-06-28 00:21:55
 * @LastEditTime: 2025-11-12 11:10:02
 * @LastEditors: 安知鱼
 */
package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"syscall"

	"github.com/anzhiyu-c/anheyu-cms/cmd/server"
	"github.com/anzhiyu-c/anheyu-cms/pkg/config"

	"github.com/rs/zerolog/log"
)

// @title           Anheyu CMS API
// @version         1.0
// @description     内容集合与图片附件管理接口
// @BasePath        /api
func main() {
	var configPath string
	flag.StringVar(&configPath, "config", config.DefaultConfigPath, "配置文件路径，不存在时自动创建")
	flag.Parse()

	cfg, err := config.NewConfigFromFile(configPath)
	if err != nil {
		log.Fatal().Err(err).Msg("加载配置失败")
	}

	app, cleanup, err := server.NewApp(cfg)
	if err != nil {
		log.Fatal().Err(err).Msg("应用初始化失败")
	}

	app.PrintBanner()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	err = app.Run(ctx)
	app.Stop()
	cleanup()
	if err != nil {
		log.Fatal().Err(err).Msg("应用运行失败")
	}
}
