/*
 * @Description: 写接口的频率限制中间件，图片上传与复制都会产生对象存储流量
 * @Author: 安知鱼
 * @Date: 2025-11-08 00:00:00
 * @LastEditTime: 2025-11-12 10:21:46
 * @LastEditors: 安知鱼
 */
package middleware

import (
	"net"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/anzhiyu-c/anheyu-cms/pkg/response"
	"github.com/gin-gonic/gin"
	lru "github.com/hashicorp/golang-lru/v2"
	"golang.org/x/time/rate"
)

// 最多同时跟踪的客户端数量，超出后淘汰最久未访问的
const maxTrackedClients = 10000

// IPRateLimiter 按客户端 IP 维护令牌桶
type IPRateLimiter struct {
	mu                sync.Mutex
	limiters          *lru.Cache[string, *rate.Limiter]
	requestsPerMinute int
	burst             int
	now               func() time.Time
}

// NewIPRateLimiter 创建限流器，requestsPerMinute 为每分钟允许的请求数，burst 为允许的突发请求数
func NewIPRateLimiter(requestsPerMinute, burst int) *IPRateLimiter {
	return newIPRateLimiter(requestsPerMinute, burst, maxTrackedClients)
}

func newIPRateLimiter(requestsPerMinute, burst, size int) *IPRateLimiter {
	if requestsPerMinute <= 0 {
		requestsPerMinute = 60
	}
	if burst <= 0 {
		burst = requestsPerMinute
	}
	// size 恒为正数，New 不会返回错误
	limiters, _ := lru.New[string, *rate.Limiter](size)
	return &IPRateLimiter{
		limiters:          limiters,
		requestsPerMinute: requestsPerMinute,
		burst:             burst,
		now:               time.Now,
	}
}

// Allow 判断该 IP 当前是否允许请求
func (l *IPRateLimiter) Allow(ip string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	limiter, ok := l.limiters.Get(ip)
	if !ok {
		limiter = rate.NewLimiter(rate.Every(time.Minute/time.Duration(l.requestsPerMinute)), l.burst)
		l.limiters.Add(ip, limiter)
	}
	return limiter.AllowN(l.now(), 1)
}

// RateLimit 返回基于 IP 的频率限制中间件
func RateLimit(limiter *IPRateLimiter) gin.HandlerFunc {
	return func(c *gin.Context) {
		if !limiter.Allow(getClientIP(c)) {
			response.Fail(c, http.StatusTooManyRequests, "请求过于频繁，请稍后再试")
			c.Abort()
			return
		}
		c.Next()
	}
}

// getClientIP 获取客户端真实IP地址
func getClientIP(c *gin.Context) string {
	if ip := c.GetHeader("X-Real-IP"); ip != "" {
		return ip
	}
	// X-Forwarded-For 格式为 client, proxy1, proxy2
	if forwarded := c.GetHeader("X-Forwarded-For"); forwarded != "" {
		return strings.TrimSpace(strings.Split(forwarded, ",")[0])
	}
	if ip, _, err := net.SplitHostPort(c.Request.RemoteAddr); err == nil {
		return ip
	}
	return c.Request.RemoteAddr
}
