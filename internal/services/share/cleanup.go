package share

import (
	"context"
	"fmt"
	"time"

	"github.com/3Eeeecho/go-fileshare/internal/pkg/logger"
	"go.uber.org/zap"
)

// SweepExpired 扫描并清理已过期或额度耗尽的分享
// 对象先删，记录后删，单条失败只记录日志，下一轮扫描会重试
func (s *shareService) SweepExpired(ctx context.Context) (int, error) {
	now := time.Now()
	files, err := s.fileRepo.FindExpiredOrExhausted(ctx, now)
	if err != nil {
		return 0, fmt.Errorf("查询待清理分享失败: %w", err)
	}

	removed := 0
	for i := range files {
		file := &files[i]
		if err := s.storage.RemoveObject(ctx, file.OssBucket, file.OssKey); err != nil {
			logger.Error("SweepExpired: 删除存储对象失败，跳过本条",
				zap.Uint64("fileID", file.ID),
				zap.String("key", file.OssKey),
				zap.Error(err))
			continue
		}
		// 条件删除防止误删清理窗口内刚好还可下载的记录
		deleted, err := s.fileRepo.DeleteIfNotServable(ctx, file.ID, now)
		if err != nil {
			logger.Error("SweepExpired: 删除分享记录失败",
				zap.Uint64("fileID", file.ID),
				zap.Error(err))
			continue
		}
		if deleted {
			removed++
		}
	}

	if removed > 0 {
		logger.Info("SweepExpired: 清理完成",
			zap.Int("removed", removed),
			zap.Int("scanned", len(files)))
	}
	return removed, nil
}

// CleanupScheduler 周期性触发过期分享清理
type CleanupScheduler struct {
	svc      ShareService
	interval time.Duration
}

// NewCleanupScheduler 创建清理调度器，interval 非法时退回一小时
func NewCleanupScheduler(svc ShareService, interval time.Duration) *CleanupScheduler {
	if interval <= 0 {
		interval = time.Hour
	}
	return &CleanupScheduler{svc: svc, interval: interval}
}

// Run 阻塞运行清理循环，启动时立即执行一轮，ctx 取消后返回
func (c *CleanupScheduler) Run(ctx context.Context) {
	c.sweep(ctx)

	ticker := time.NewTicker(c.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			logger.Info("清理调度器退出")
			return
		case <-ticker.C:
			c.sweep(ctx)
		}
	}
}

func (c *CleanupScheduler) sweep(ctx context.Context) {
	if _, err := c.svc.SweepExpired(ctx); err != nil {
		logger.Error("清理任务执行失败", zap.Error(err))
	}
}
