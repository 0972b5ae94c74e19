package share

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/3Eeeecho/go-fileshare/internal/models"
	"github.com/3Eeeecho/go-fileshare/internal/pkg/logger"
	"github.com/3Eeeecho/go-fileshare/internal/pkg/xerr"
	"go.uber.org/zap"
)

// Download 处理按令牌下载的业务逻辑
// 名额在返回读取器之前核销，下载中断不退还名额
func (s *shareService) Download(ctx context.Context, tok string) (*DownloadResult, error) {
	now := time.Now()

	file, err := s.fileRepo.FindByToken(ctx, tok)
	if err != nil {
		return nil, err
	}

	// 预检拒绝明显不可用的请求，最终判定在核销事务的行锁内完成
	if file.Expired(now) {
		return nil, xerr.ErrShareExpired
	}
	if file.Exhausted() {
		return nil, xerr.ErrShareExhausted
	}

	res, err := s.fileRepo.ConsumeDownload(ctx, file.ID, now)
	if err != nil {
		return nil, err
	}
	file = res.File

	obj, err := s.storage.GetObject(ctx, file.OssBucket, file.OssKey)
	if err != nil {
		if errors.Is(err, xerr.ErrObjectNotFound) {
			// 记录还在但对象已丢失，元数据与存储不一致
			logger.Error("Download: 存储对象缺失",
				zap.String("token", tok),
				zap.String("key", file.OssKey))
			return nil, xerr.ErrObjectNotFound
		}
		return nil, fmt.Errorf("获取存储对象失败: %w", err)
	}

	reader := obj.Reader
	if res.Exhausted {
		// 最后一个名额已用掉，读取器关闭后回收整条分享
		reader = newReclaimOnClose(obj.Reader, s, file)
	}

	size := obj.Size
	if size < 0 {
		size = file.Size
	}
	mimeType := obj.MimeType
	if mimeType == "" && file.MimeType != nil {
		mimeType = *file.MimeType
	}

	logger.Info("Download: 下载核销成功",
		zap.String("token", tok),
		zap.Uint64("fileID", file.ID),
		zap.Int64("downloadCount", file.DownloadCount),
		zap.Bool("exhausted", res.Exhausted))

	return &DownloadResult{
		File:     file,
		Reader:   reader,
		Size:     size,
		MimeType: mimeType,
	}, nil
}

// ListUserFiles 列出用户当前仍然有效的分享，按创建时间倒序
func (s *shareService) ListUserFiles(ctx context.Context, ownerID uint64) ([]models.File, error) {
	return s.fileRepo.FindAllByOwnerID(ctx, ownerID, time.Now())
}
