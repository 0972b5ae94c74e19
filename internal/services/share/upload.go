package share

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/3Eeeecho/go-fileshare/internal/models"
	"github.com/3Eeeecho/go-fileshare/internal/pkg/logger"
	"github.com/3Eeeecho/go-fileshare/internal/pkg/storage"
	"github.com/3Eeeecho/go-fileshare/internal/pkg/token"
	"github.com/3Eeeecho/go-fileshare/internal/pkg/utils"
	"github.com/3Eeeecho/go-fileshare/internal/pkg/xerr"
	"go.uber.org/zap"
)

// 令牌由 128 位随机数生成，碰撞概率极低，重试上限只是兜底
const maxTokenAttempts = 3

// Upload 处理上传分享的业务逻辑
// 内容流式写入对象存储，元数据落库成功后分享才对外可见，
// 任何一步失败都不会留下孤儿对象或孤儿记录
func (s *shareService) Upload(ctx context.Context, ownerID uint64, req *UploadRequest) (*models.File, error) {
	if req == nil || req.Open == nil {
		return nil, xerr.ErrInvalidParams
	}

	cleanName, err := utils.SanitizeFileName(req.FileName)
	if err != nil {
		return nil, err
	}
	if req.RetentionDays < s.cfg.Share.MinRetentionDays || req.RetentionDays > s.cfg.Share.MaxRetentionDays {
		return nil, xerr.ErrRetentionOutOfRange
	}
	if req.MaxDownloads != nil && *req.MaxDownloads <= 0 {
		return nil, xerr.ErrInvalidMaxDownloads
	}

	contentType := req.ContentType
	if contentType == "" {
		contentType = "application/octet-stream"
	}
	expiresAt := time.Now().Add(time.Duration(req.RetentionDays) * 24 * time.Hour)

	if req.UploadID != "" {
		s.tracker.Begin(req.UploadID, req.Size)
		defer s.tracker.End(req.UploadID)
	}

	var lastErr error
	for attempt := 1; attempt <= maxTokenAttempts; attempt++ {
		tok, err := token.Issue()
		if err != nil {
			return nil, fmt.Errorf("生成分享令牌失败: %w", err)
		}

		file, err := s.uploadOnce(ctx, ownerID, req, cleanName, tok, contentType, expiresAt)
		if err == nil {
			logger.Info("Upload: 分享创建成功",
				zap.Uint64("fileID", file.ID),
				zap.Uint64("ownerID", ownerID),
				zap.String("token", file.Token),
				zap.Int64("size", file.Size))
			return file, nil
		}
		if errors.Is(err, xerr.ErrTokenConflict) {
			logger.Warn("Upload: 分享令牌冲突，重新生成",
				zap.Uint64("ownerID", ownerID),
				zap.Int("attempt", attempt))
			lastErr = err
			continue
		}
		return nil, err
	}
	return nil, lastErr
}

// uploadOnce 执行一次完整的上传尝试：写对象，再落元数据
func (s *shareService) uploadOnce(ctx context.Context, ownerID uint64, req *UploadRequest, cleanName, tok, contentType string, expiresAt time.Time) (*models.File, error) {
	src, err := req.Open()
	if err != nil {
		return nil, fmt.Errorf("打开上传内容失败: %w", err)
	}
	defer src.Close()

	var onProgress func(read int64)
	if req.UploadID != "" {
		uploadID := req.UploadID
		onProgress = func(read int64) {
			s.tracker.Advance(uploadID, read)
		}
	}
	metered := storage.NewMeteredReader(src, s.cfg.Share.MaxUploadSizeBytes, onProgress)

	key := fmt.Sprintf("shares/%s/%s", tok, cleanName)
	put, err := s.storage.PutObject(ctx, s.bucket, key, metered, contentType)
	if err != nil {
		if metered.Exceeded() {
			return nil, xerr.ErrFileTooLarge
		}
		return nil, fmt.Errorf("写入存储对象失败: %w", err)
	}

	size := put.Size
	if size < 0 {
		size = metered.BytesRead()
	}

	mimeType := contentType
	file := &models.File{
		OwnerID:      ownerID,
		FileName:     cleanName,
		Token:        tok,
		Size:         size,
		MimeType:     &mimeType,
		OssBucket:    s.bucket,
		OssKey:       key,
		MaxDownloads: req.MaxDownloads,
		ExpiresAt:    expiresAt,
	}
	if err := s.fileRepo.Create(ctx, file); err != nil {
		// 元数据落库失败，撤掉刚写入的对象
		if rmErr := s.storage.RemoveObject(ctx, s.bucket, key); rmErr != nil {
			logger.Error("Upload: 回滚存储对象失败",
				zap.String("key", key),
				zap.Error(rmErr))
		}
		return nil, err
	}
	return file, nil
}
