package repositories

import (
	"context"
	"time"

	"github.com/3Eeeecho/go-fileshare/internal/models"
	"github.com/3Eeeecho/go-fileshare/internal/pkg/cache"
	"gorm.io/gorm"
)

// ConsumeResult 是一次下载核销的结果
// Exhausted 表示本次核销用掉了最后一个下载名额
type ConsumeResult struct {
	File      *models.File
	Exhausted bool
}

// FileRepository 定义文件分享记录的数据访问层接口
type FileRepository interface {
	Create(ctx context.Context, file *models.File) error

	FindByID(ctx context.Context, id uint64) (*models.File, error)
	FindByToken(ctx context.Context, token string) (*models.File, error)
	// FindAllByOwnerID 返回用户在 now 时刻仍然有效的分享记录
	FindAllByOwnerID(ctx context.Context, ownerID uint64, now time.Time) ([]models.File, error)
	// FindExpiredOrExhausted 返回 now 时刻已过期或下载额度耗尽的记录
	FindExpiredOrExhausted(ctx context.Context, now time.Time) ([]models.File, error)

	// ConsumeDownload 在单个事务内核销一次下载名额
	// 记录不存在返回 xerr.ErrShareNotFound，已过期返回 xerr.ErrShareExpired，
	// 额度耗尽返回 xerr.ErrShareExhausted
	ConsumeDownload(ctx context.Context, id uint64, now time.Time) (*ConsumeResult, error)

	// Delete 删除记录，记录不存在视为成功
	Delete(ctx context.Context, id uint64) error
	// DeleteIfNotServable 仅当记录在 now 时刻已过期或额度耗尽时删除
	// 返回是否实际删除，用于清理任务与正常下载并发时避免误删
	DeleteIfNotServable(ctx context.Context, id uint64, now time.Time) (bool, error)
}

// NewFileRepository 创建 FileRepository 实例
// cache 不为 nil 时返回带 Redis 旁路缓存的装饰实现
func NewFileRepository(db *gorm.DB, c cache.Cache) FileRepository {
	dbRepo := NewDBFileRepository(db)
	if c == nil {
		return dbRepo
	}
	return NewCachedFileRepository(dbRepo, c)
}
