package share

import (
	"context"
	"fmt"
	"io"
	"sync"

	"github.com/3Eeeecho/go-fileshare/internal/models"
	"github.com/3Eeeecho/go-fileshare/internal/pkg/logger"
	"github.com/3Eeeecho/go-fileshare/internal/pkg/xerr"
	"go.uber.org/zap"
)

// reclaim 联动删除分享的存储对象和数据库记录
// 先删对象再删记录，两步都幂等，中途失败由清理任务兜底重试
func (s *shareService) reclaim(ctx context.Context, file *models.File) error {
	if err := s.storage.RemoveObject(ctx, file.OssBucket, file.OssKey); err != nil {
		return fmt.Errorf("删除存储对象失败: %w", err)
	}
	if err := s.fileRepo.Delete(ctx, file.ID); err != nil {
		return fmt.Errorf("删除分享记录失败: %w", err)
	}
	return nil
}

// DeleteUserFile 删除用户自己的分享
func (s *shareService) DeleteUserFile(ctx context.Context, ownerID, fileID uint64) error {
	file, err := s.fileRepo.FindByID(ctx, fileID)
	if err != nil {
		return err
	}
	if file.OwnerID != ownerID {
		return xerr.ErrPermissionDenied
	}

	if err := s.reclaim(ctx, file); err != nil {
		logger.Error("DeleteUserFile: 回收分享失败",
			zap.Uint64("fileID", fileID),
			zap.Uint64("ownerID", ownerID),
			zap.Error(err))
		return err
	}
	logger.Info("DeleteUserFile: 分享已删除",
		zap.Uint64("fileID", fileID),
		zap.Uint64("ownerID", ownerID))
	return nil
}

// reclaimOnClose 在读取器关闭后回收耗尽的分享
// 在此之前该分享对新请求表现为"次数已用完"，关闭后表现为不存在
type reclaimOnClose struct {
	io.ReadCloser
	svc  *shareService
	file *models.File
	once sync.Once
}

func newReclaimOnClose(rc io.ReadCloser, svc *shareService, file *models.File) *reclaimOnClose {
	return &reclaimOnClose{ReadCloser: rc, svc: svc, file: file}
}

func (r *reclaimOnClose) Close() error {
	err := r.ReadCloser.Close()
	r.once.Do(func() {
		// 请求上下文此刻可能已被取消，回收用独立上下文执行
		if rerr := r.svc.reclaim(context.Background(), r.file); rerr != nil {
			logger.Error("回收耗尽分享失败，等待清理任务重试",
				zap.Uint64("fileID", r.file.ID),
				zap.String("token", r.file.Token),
				zap.Error(rerr))
		}
	})
	return err
}
