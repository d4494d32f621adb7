/*
 * @Description: 应用装配：配置、基础设施、媒体服务、路由与定时任务
 * @Author: 安知鱼
 * @Date: 2025-10-17 10:35:28
 * @LastEditTime: 2025-11-12 11:04:37
 * @LastEditors: 安知鱼
 */
package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog/log"

	"github.com/anzhiyu-c/anheyu-cms/internal/app/listener"
	"github.com/anzhiyu-c/anheyu-cms/internal/app/middleware"
	"github.com/anzhiyu-c/anheyu-cms/internal/app/task"
	"github.com/anzhiyu-c/anheyu-cms/internal/infra/persistence/database"
	"github.com/anzhiyu-c/anheyu-cms/internal/infra/persistence/document"
	"github.com/anzhiyu-c/anheyu-cms/internal/infra/router"
	"github.com/anzhiyu-c/anheyu-cms/internal/infra/storage"
	"github.com/anzhiyu-c/anheyu-cms/internal/pkg/event"
	"github.com/anzhiyu-c/anheyu-cms/internal/pkg/logging"
	"github.com/anzhiyu-c/anheyu-cms/internal/pkg/version"
	"github.com/anzhiyu-c/anheyu-cms/pkg/config"
	"github.com/anzhiyu-c/anheyu-cms/pkg/constant"
	content_handler "github.com/anzhiyu-c/anheyu-cms/pkg/handler/content"
	"github.com/anzhiyu-c/anheyu-cms/pkg/idgen"
	"github.com/anzhiyu-c/anheyu-cms/pkg/service/content"
	"github.com/anzhiyu-c/anheyu-cms/pkg/service/media"
)

// 写接口的默认限流：每分钟 120 次，突发 30 次
const (
	writeRequestsPerMinute = 120
	writeBurst             = 30
	shutdownTimeout        = 10 * time.Second
)

// App 结构体，用于封装应用的所有核心组件
type App struct {
	cfg            *config.Config
	engine         *gin.Engine
	scheduler      *task.Scheduler
	contentService content.Service
	mediaListener  *listener.MediaListener
}

// NewApp 是应用的构造函数，它执行所有的初始化和依赖注入工作
func NewApp(cfg *config.Config) (*App, func(), error) {
	ctx := context.Background()
	logging.Setup(cfg.GetBool(config.KeyServerDebug))

	// --- Phase 1: ID 编码器 ---
	seed := cfg.GetString(config.KeyMediaIDSeed)
	if seed == "" {
		log.Warn().Msg("未配置 Media.IDSeed，使用默认字母表生成文件 ID")
	}
	if err := idgen.InitSqidsEncoderWithSeed(seed); err != nil {
		return nil, nil, err
	}

	// --- Phase 2: 初始化基础设施 ---
	sqlDB, dbDialect, err := database.NewSQLDB(cfg)
	if err != nil {
		return nil, nil, fmt.Errorf("创建数据库连接池失败: %w", err)
	}
	if err := database.NewMigrationService(sqlDB, dbDialect).RunMigrations(ctx); err != nil {
		sqlDB.Close()
		return nil, nil, err
	}

	// Redis 不可用时返回 nil，孤儿队列降级为内存实现
	redisClient, err := database.NewRedisClient(ctx, cfg)
	if err != nil {
		sqlDB.Close()
		return nil, nil, fmt.Errorf("redis 初始化失败: %w", err)
	}

	policy := storage.PolicyFromConfig(cfg)
	provider, err := storage.NewProvider(ctx, policy)
	if err != nil {
		sqlDB.Close()
		if redisClient != nil {
			redisClient.Close()
		}
		return nil, nil, fmt.Errorf("创建存储提供者失败: %w", err)
	}

	eventBus := event.NewEventBus()

	cleanup := func() {
		log.Info().Msg("执行清理操作：关闭事件总线、数据库与 Redis 连接...")
		eventBus.Shutdown()
		sqlDB.Close()
		if redisClient != nil {
			redisClient.Close()
		}
	}

	// --- Phase 3: 媒体服务 ---
	compressor, err := media.NewCompressor(media.CompressOptions{
		Format:   cfg.GetStringOr(config.KeyMediaCompressFormat, constant.DefaultCompressFormat),
		Quality:  cfg.GetIntOr(config.KeyMediaQuality, constant.DefaultCompressQuality),
		MaxWidth: cfg.GetIntOr(config.KeyMediaMaxWidth, constant.DefaultCompressMaxWidth),
	})
	if err != nil {
		cleanup()
		return nil, nil, err
	}
	bucket := media.NewBucket(provider, compressor, media.BucketConfig{
		Container: cfg.GetStringOr(config.KeyStorageContainer, constant.DefaultStorageContainer),
		PublicURL: policy.PublicURL,
		KeyMarker: cfg.GetString(config.KeyStorageKeyMarker),
	})
	concurrency := cfg.GetIntOr(config.KeyMediaConcurrency, constant.DefaultMediaConcurrency)

	docRepo := document.NewSQLStore(sqlDB, dbDialect)
	orphanQueue := media.NewOrphanQueue(redisClient)
	reclaimer := media.NewReclaimer(content.NewDocumentLocator(docRepo), bucket, orphanQueue, eventBus)
	resolver := media.NewResolver(bucket, reclaimer)
	reconciler := media.NewReconciler(resolver, reclaimer, bucket, concurrency)
	cloner := media.NewCloner(bucket, concurrency)

	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	mediaListener, err := listener.NewMediaListener(eventBus, registry)
	if err != nil {
		cleanup()
		return nil, nil, err
	}
	contentService := content.NewService(
		docRepo,
		content.DefaultRegistry(),
		resolver,
		reconciler,
		reclaimer,
		cloner,
		eventBus,
		concurrency,
	)

	// --- Phase 4: 定时任务 ---
	scheduler := task.NewScheduler()
	scheduler.Add(
		cfg.GetStringOr(config.KeyMediaSweepCron, constant.DefaultOrphanSweepCron),
		task.NewOrphanSweepJob(media.NewOrphanSweeper(bucket, orphanQueue, 0)),
	)
	if err := scheduler.RegisterJobs(); err != nil {
		cleanup()
		return nil, nil, err
	}

	// --- Phase 5: 路由 ---
	if !cfg.GetBool(config.KeyServerDebug) {
		gin.SetMode(gin.ReleaseMode)
	}
	engine := gin.New()
	engine.Use(gin.Recovery())

	var staticRoot string
	if local, ok := provider.(*storage.LocalProvider); ok {
		staticRoot = local.Root()
	}
	router.NewRouter(
		content_handler.NewHandler(contentService),
		middleware.NewIPRateLimiter(writeRequestsPerMinute, writeBurst),
		mediaListener,
		promhttp.HandlerFor(registry, promhttp.HandlerOpts{}),
		staticRoot,
	).Setup(engine)

	app := &App{
		cfg:            cfg,
		engine:         engine,
		scheduler:      scheduler,
		contentService: contentService,
		mediaListener:  mediaListener,
	}
	return app, cleanup, nil
}

func (a *App) Engine() *gin.Engine {
	return a.engine
}

func (a *App) ContentService() content.Service {
	return a.contentService
}

// MediaStats 返回图片回收相关的累计统计
func (a *App) MediaStats() listener.MediaStats {
	return a.mediaListener.Stats()
}

// PrintBanner 输出启动信息
func (a *App) PrintBanner() {
	log.Info().Str("version", version.GetBuildInfo().String()).Msg("Anheyu CMS 启动中")
}

// Run 启动定时任务和 HTTP 服务，ctx 取消后优雅关闭
func (a *App) Run(ctx context.Context) error {
	a.scheduler.Start()

	port := a.cfg.GetStringOr(config.KeyServerPort, "8091")
	srv := &http.Server{
		Addr:              ":" + port,
		Handler:           a.engine,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info().Str("port", port).Msg("应用程序启动成功，正在监听端口")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	log.Info().Msg("收到退出信号，正在关闭 HTTP 服务...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}

// Stop 停止后台任务，应在 cleanup 之前调用
func (a *App) Stop() {
	if a.scheduler != nil {
		a.scheduler.Stop()
	}
}
