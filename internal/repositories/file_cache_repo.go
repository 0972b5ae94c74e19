package repositories

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/3Eeeecho/go-fileshare/internal/models"
	"github.com/3Eeeecho/go-fileshare/internal/pkg/cache"
	"github.com/3Eeeecho/go-fileshare/internal/pkg/logger"
	"github.com/3Eeeecho/go-fileshare/internal/pkg/xerr"
	"go.uber.org/zap"
)

// cachedFileRepository 在数据库实现之上叠加按令牌的旁路缓存
// 只缓存令牌到描述记录的只读查询，下载计数的真值始终在数据库事务内判定，
// 缓存中略旧的 download_count 不会导致超发
type cachedFileRepository struct {
	inner    FileRepository
	cache    cache.Cache
	cacheTTL time.Duration
}

// NewCachedFileRepository 包装 inner，为令牌查询提供 Redis 缓存
func NewCachedFileRepository(inner FileRepository, c cache.Cache) FileRepository {
	return &cachedFileRepository{
		inner:    inner,
		cache:    c,
		cacheTTL: 5 * time.Minute,
	}
}

func generateShareTokenKey(token string) string {
	return fmt.Sprintf("share:token:%s", token)
}

func (r *cachedFileRepository) Create(ctx context.Context, file *models.File) error {
	if err := r.inner.Create(ctx, file); err != nil {
		return err
	}
	r.setTokenCache(ctx, file)
	return nil
}

func (r *cachedFileRepository) FindByID(ctx context.Context, id uint64) (*models.File, error) {
	return r.inner.FindByID(ctx, id)
}

func (r *cachedFileRepository) FindByToken(ctx context.Context, token string) (*models.File, error) {
	key := generateShareTokenKey(token)

	var file models.File
	err := r.cache.Get(ctx, key, &file)
	if err == nil {
		return &file, nil
	}
	if !errors.Is(err, xerr.ErrEmptyCache) {
		logger.Error("FindByToken: Error getting file from cache", zap.String("token", token), zap.Error(err))
	}

	// 缓存未命中或读取失败，回源数据库
	dbFile, err := r.inner.FindByToken(ctx, token)
	if err != nil {
		return nil, err
	}
	r.setTokenCache(ctx, dbFile)
	return dbFile, nil
}

func (r *cachedFileRepository) FindAllByOwnerID(ctx context.Context, ownerID uint64, now time.Time) ([]models.File, error) {
	return r.inner.FindAllByOwnerID(ctx, ownerID, now)
}

func (r *cachedFileRepository) FindExpiredOrExhausted(ctx context.Context, now time.Time) ([]models.File, error) {
	return r.inner.FindExpiredOrExhausted(ctx, now)
}

func (r *cachedFileRepository) ConsumeDownload(ctx context.Context, id uint64, now time.Time) (*ConsumeResult, error) {
	result, err := r.inner.ConsumeDownload(ctx, id, now)
	if err != nil {
		return nil, err
	}
	// 计数已变化，刷新缓存中的副本
	r.setTokenCache(ctx, result.File)
	return result, nil
}

func (r *cachedFileRepository) Delete(ctx context.Context, id uint64) error {
	r.invalidateByID(ctx, id)
	return r.inner.Delete(ctx, id)
}

func (r *cachedFileRepository) DeleteIfNotServable(ctx context.Context, id uint64, now time.Time) (bool, error) {
	r.invalidateByID(ctx, id)
	return r.inner.DeleteIfNotServable(ctx, id, now)
}

func (r *cachedFileRepository) setTokenCache(ctx context.Context, file *models.File) {
	key := generateShareTokenKey(file.Token)
	if err := r.cache.Set(ctx, key, file, r.cacheTTL); err != nil {
		// 缓存写失败不阻塞业务，只记录
		logger.Error("Failed to cache file by token", zap.String("token", file.Token), zap.Error(err))
	}
}

// invalidateByID 按 ID 删除记录前先回查令牌，失效对应的缓存键
func (r *cachedFileRepository) invalidateByID(ctx context.Context, id uint64) {
	file, err := r.inner.FindByID(ctx, id)
	if err != nil {
		if !errors.Is(err, xerr.ErrShareNotFound) {
			logger.Error("Failed to load file for cache invalidation", zap.Uint64("fileID", id), zap.Error(err))
		}
		return
	}
	if err := r.cache.Del(ctx, generateShareTokenKey(file.Token)); err != nil {
		logger.Error("Failed to invalidate token cache", zap.String("token", file.Token), zap.Error(err))
	}
}
