/*
 * @Description:
 * @Author: 安知鱼
 * @Date: 2025-06-15 11:30:55
 * @LastEditTime: 2025-10-30 22:14:05
 * @LastEditors: 安知鱼
 */
package database

import (
	"context"
	"strconv"

	"github.com/anzhiyu-c/anheyu-cms/pkg/config"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"
)

// NewRedisClient 接收配置并返回 Redis 客户端或 nil（用于自动降级）
// 如果 Redis 未配置或连接失败，返回 nil 而不是 error，让上层决定是否降级到内存实现
func NewRedisClient(ctx context.Context, cfg *config.Config) (*redis.Client, error) {
	redisAddr := cfg.GetString(config.KeyRedisAddr)
	redisPassword := cfg.GetString(config.KeyRedisPassword)

	if redisAddr == "" {
		log.Warn().Msg("Redis 地址未配置，孤儿对象重试队列将使用内存实现")
		return nil, nil
	}

	redisDB := 0
	if s := cfg.GetString(config.KeyRedisDB); s != "" {
		n, err := strconv.Atoi(s)
		if err != nil {
			log.Warn().Str("value", s).Err(err).Msg("无效的 Redis.DB 值，将使用内存实现")
			return nil, nil
		}
		redisDB = n
	}

	rdb := redis.NewClient(&redis.Options{
		Addr:     redisAddr,
		Password: redisPassword,
		DB:       redisDB,
	})

	if err := rdb.Ping(ctx).Err(); err != nil {
		log.Warn().Str("addr", redisAddr).Int("db", redisDB).Err(err).Msg("连接 Redis 失败，将使用内存实现")
		rdb.Close()
		return nil, nil
	}

	log.Info().Str("addr", redisAddr).Int("db", redisDB).Msg("✅ 成功连接到 Redis")
	return rdb, nil
}
