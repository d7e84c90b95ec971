package zones

import (
	"container/list"
	"context"
	"encoding/json"
	"strconv"
	"strings"
	"sync"
	"time"

	"agrarkarte/internal/logger"
	"agrarkarte/internal/metrics"

	"github.com/redis/go-redis/v9"
)

// Cache：查询结果缓存层
type Cache interface {
	Name() string
	Get(ctx context.Context, key string) ([]Record, bool)
	Set(ctx context.Context, key string, recs []Record)
}

// 文档注释：缓存键
// 背景：同一坐标在相邻查询轮次中反复出现（步长不变、几何未改动时），按 0.01 m 量化坐标并带上图层集合。
func CacheKey(req Request) string {
	var b strings.Builder
	b.WriteString("zones:")
	b.WriteString(strings.Join(req.Layers, ","))
	b.WriteByte(':')
	b.WriteString(strconv.FormatFloat(req.Coordinate[0], 'f', 2, 64))
	b.WriteByte(',')
	b.WriteString(strconv.FormatFloat(req.Coordinate[1], 'f', 2, 64))
	b.WriteByte('@')
	b.WriteString(strconv.FormatFloat(req.Resolution, 'f', 4, 64))
	return b.String()
}

// 文档注释：进程内 LRU 缓存（带 TTL）
// 约束：容量按条目计；过期条目在读取时淘汰。
type MemoryCache struct {
	mu   sync.Mutex
	cap  int
	ttl  time.Duration
	lst  *list.List
	dict map[string]*list.Element
}

type entry struct {
	k   string
	v   []Record
	exp time.Time
}

func NewMemoryCache(capacity int, ttl time.Duration) *MemoryCache {
	return &MemoryCache{cap: capacity, ttl: ttl, lst: list.New(), dict: make(map[string]*list.Element)}
}

func (c *MemoryCache) Name() string { return "memory" }

func (c *MemoryCache) Get(_ context.Context, k string) ([]Record, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	e, ok := c.dict[k]
	if !ok {
		return nil, false
	}
	it := e.Value.(entry)
	if time.Now().After(it.exp) {
		c.lst.Remove(e)
		delete(c.dict, k)
		return nil, false
	}
	c.lst.MoveToFront(e)
	return it.v, true
}

func (c *MemoryCache) Set(_ context.Context, k string, v []Record) {
	c.mu.Lock()
	defer c.mu.Unlock()
	it := entry{k: k, v: v, exp: time.Now().Add(c.ttl)}
	if e, ok := c.dict[k]; ok {
		e.Value = it
		c.lst.MoveToFront(e)
		return
	}
	c.dict[k] = c.lst.PushFront(it)
	for c.lst.Len() > c.cap {
		back := c.lst.Back()
		delete(c.dict, back.Value.(entry).k)
		c.lst.Remove(back)
	}
}

func (c *MemoryCache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.lst.Len()
}

// RedisCache：多实例共享的查询结果缓存
type RedisCache struct {
	RC  *redis.Client
	TTL time.Duration
}

func (c *RedisCache) Name() string { return "redis" }

func (c *RedisCache) Get(ctx context.Context, k string) ([]Record, bool) {
	s, err := c.RC.Get(ctx, k).Result()
	if err != nil {
		if err != redis.Nil {
			logger.L().Debug("zone_cache_redis_get_error", "err", err)
		}
		return nil, false
	}
	var recs []Record
	if err := json.Unmarshal([]byte(s), &recs); err != nil {
		return nil, false
	}
	return recs, true
}

func (c *RedisCache) Set(ctx context.Context, k string, recs []Record) {
	b, err := json.Marshal(recs)
	if err != nil {
		return
	}
	if err := c.RC.Set(ctx, k, string(b), c.TTL).Err(); err != nil {
		logger.L().Debug("zone_cache_redis_set_error", "err", err)
	}
}

// 文档注释：带缓存的查询链
// 背景：按层级依次命中（内存 → Redis）；下层命中时回填上层；只缓存成功结果，失败不落缓存以便下一轮重试。
type Cached struct {
	Next   Lookup
	Caches []Cache
}

func (c *Cached) Lookup(ctx context.Context, req Request) ([]Record, error) {
	key := CacheKey(req)
	for i, tier := range c.Caches {
		if recs, ok := tier.Get(ctx, key); ok {
			metrics.ZoneCacheHitsTotal.WithLabelValues(tier.Name()).Inc()
			for j := 0; j < i; j++ {
				c.Caches[j].Set(ctx, key, recs)
			}
			return recs, nil
		}
		metrics.ZoneCacheMissesTotal.WithLabelValues(tier.Name()).Inc()
	}
	recs, err := c.Next.Lookup(ctx, req)
	if err != nil {
		return nil, err
	}
	for _, tier := range c.Caches {
		tier.Set(ctx, key, recs)
	}
	return recs, nil
}

// DefaultMemoryEntries：进程内缓存容量
const DefaultMemoryEntries = 50000

// NewCached：内存层在前，rc 非空时追加 Redis 层
func NewCached(next Lookup, ttl time.Duration, rc *redis.Client) *Cached {
	c := &Cached{Next: next, Caches: []Cache{NewMemoryCache(DefaultMemoryEntries, ttl)}}
	if rc != nil {
		c.Caches = append(c.Caches, &RedisCache{RC: rc, TTL: ttl})
	}
	return c
}
