/*
 * @Description: 路由注册
 * @Author: 安知鱼
 * @Date: 2025-06-15 11:30:55
 * @LastEditTime: 2025-11-12 10:40:18
 * @LastEditors: 安知鱼
 */
package router

import (
	"net/http"

	"github.com/anzhiyu-c/anheyu-cms/internal/app/listener"
	"github.com/anzhiyu-c/anheyu-cms/internal/app/middleware"
	"github.com/anzhiyu-c/anheyu-cms/internal/pkg/version"
	content_handler "github.com/anzhiyu-c/anheyu-cms/pkg/handler/content"
	"github.com/anzhiyu-c/anheyu-cms/pkg/response"

	"github.com/gin-gonic/gin"
)

// NoCacheMiddleware 禁止客户端和代理缓存 API 响应
func NoCacheMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Header("Cache-Control", "no-cache, no-store, must-revalidate, private, max-age=0")
		c.Header("Pragma", "no-cache")
		c.Header("Expires", "0")
		c.Header("X-Content-Type-Options", "nosniff")
		c.Next()
	}
}

// Router 持有所有 Handler 的依赖
type Router struct {
	contentHandler *content_handler.Handler
	writeLimiter   *middleware.IPRateLimiter
	mediaListener  *listener.MediaListener
	metrics        http.Handler
	// staticRoot 非空时，本地存储的对象通过 /static 对外提供
	staticRoot string
}

// NewRouter 是 Router 的构造函数
func NewRouter(
	contentHandler *content_handler.Handler,
	writeLimiter *middleware.IPRateLimiter,
	mediaListener *listener.MediaListener,
	metrics http.Handler,
	staticRoot string,
) *Router {
	return &Router{
		contentHandler: contentHandler,
		writeLimiter:   writeLimiter,
		mediaListener:  mediaListener,
		metrics:        metrics,
		staticRoot:     staticRoot,
	}
}

// Setup 将所有路由注册到 Gin 引擎
func (r *Router) Setup(engine *gin.Engine) {
	engine.Use(middleware.Cors())

	if r.staticRoot != "" {
		engine.Static("/static", r.staticRoot)
	}

	if r.metrics != nil {
		engine.GET("/metrics", gin.WrapH(r.metrics))
	}

	apiGroup := engine.Group("/api")
	apiGroup.Use(NoCacheMiddleware())

	apiGroup.GET("/ping", func(c *gin.Context) {
		c.String(http.StatusOK, "pong")
	})
	apiGroup.GET("/version", func(c *gin.Context) {
		response.Success(c, version.GetBuildInfo(), "获取成功")
	})

	if r.mediaListener != nil {
		apiGroup.GET("/media/stats", func(c *gin.Context) {
			response.Success(c, r.mediaListener.Stats(), "获取成功")
		})
	}

	r.registerContentRoutes(apiGroup)
}

func (r *Router) registerContentRoutes(api *gin.RouterGroup) {
	contentPublic := api.Group("/content/:collection")
	{
		contentPublic.GET("", r.contentHandler.List)
		contentPublic.GET("/:id", r.contentHandler.Get)
	}

	// 写接口会产生对象存储流量，单独限流
	contentWrite := api.Group("/content/:collection").Use(middleware.RateLimit(r.writeLimiter))
	{
		contentWrite.POST("", r.contentHandler.Create)
		contentWrite.PUT("/:id", r.contentHandler.Update)
		contentWrite.DELETE("/:id", r.contentHandler.Delete)
		contentWrite.POST("/:id/duplicate", r.contentHandler.Duplicate)
		contentWrite.DELETE("/:id/pictures/:field/:pictureId", r.contentHandler.DeletePicture)
	}
}
