package cache

import (
	"context"
	"time"
)

// Cache 定义了通用的缓存操作接口
// 缓存未命中时 Get 返回 xerr.ErrEmptyCache
type Cache interface {
	// Get 读取 key 并将 JSON 值反序列化到 target
	Get(ctx context.Context, key string, target any) error
	// Set 将 value 序列化为 JSON 后写入 key
	Set(ctx context.Context, key string, value any, expiration time.Duration) error
	// Del 删除若干 key，key 不存在不视为错误
	Del(ctx context.Context, keys ...string) error
}
