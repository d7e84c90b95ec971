// 包 utils：进程级连接与证书工具，统一环境变量读取
package utils

import (
	"os"
	"strconv"

	"agrarkarte/internal/logger"

	"github.com/redis/go-redis/v9"
)

// OpenRedis：使用地址与密码打开 Redis 客户端
// 背景：保留直接传入参数的能力，用于测试与手工注入场景
func OpenRedis(addr, pass string) *redis.Client {
	if addr == "" {
		return nil
	}
	return redis.NewClient(&redis.Options{Addr: addr, Password: pass})
}

// RedisOptionsFromEnv：读取 REDIS_HOST/REDIS_PORT/REDIS_PASS/REDIS_DB
// 约束：REDIS_DB 解析失败或为负时回退到 0
func RedisOptionsFromEnv() *redis.Options {
	host := os.Getenv("REDIS_HOST")
	if host == "" {
		host = "127.0.0.1"
	}
	port := os.Getenv("REDIS_PORT")
	if port == "" {
		port = "6379"
	}
	db := 0
	if v := os.Getenv("REDIS_DB"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n >= 0 {
			db = n
		}
	}
	return &redis.Options{Addr: host + ":" + port, Password: os.Getenv("REDIS_PASS"), DB: db}
}

// OpenRedisFromEnv：REDIS_ENABLE=true 时打开共享缓存客户端，否则返回 nil
func OpenRedisFromEnv() *redis.Client {
	if os.Getenv("REDIS_ENABLE") != "true" {
		return nil
	}
	opts := RedisOptionsFromEnv()
	logger.L().Debug("redis_env", "addr", opts.Addr, "db", opts.DB)
	return redis.NewClient(opts)
}
