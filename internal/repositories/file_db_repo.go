package repositories

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/3Eeeecho/go-fileshare/internal/models"
	"github.com/3Eeeecho/go-fileshare/internal/pkg/logger"
	"github.com/3Eeeecho/go-fileshare/internal/pkg/xerr"
	"go.uber.org/zap"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// dbFileRepository 直接访问数据库的 FileRepository 实现
type dbFileRepository struct {
	db *gorm.DB
}

// NewDBFileRepository 创建直连数据库的 FileRepository 实例
func NewDBFileRepository(db *gorm.DB) FileRepository {
	return &dbFileRepository{
		db: db,
	}
}

func (r *dbFileRepository) Create(ctx context.Context, file *models.File) error {
	err := r.db.WithContext(ctx).Create(file).Error
	if err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return xerr.ErrTokenConflict
		}
		logger.Error("Create: Failed to create file in DB",
			zap.Error(err),
			zap.Uint64("ownerID", file.OwnerID),
			zap.String("fileName", file.FileName))
		return fmt.Errorf("failed to create file: %w", err)
	}
	return nil
}

func (r *dbFileRepository) FindByID(ctx context.Context, id uint64) (*models.File, error) {
	var file models.File
	err := r.db.WithContext(ctx).First(&file, id).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, xerr.ErrShareNotFound
		}
		return nil, fmt.Errorf("从数据库查询文件失败: %w", err)
	}
	return &file, nil
}

func (r *dbFileRepository) FindByToken(ctx context.Context, token string) (*models.File, error) {
	var file models.File
	err := r.db.WithContext(ctx).Where("token = ?", token).First(&file).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, xerr.ErrShareNotFound
		}
		return nil, fmt.Errorf("按令牌查询文件失败: %w", err)
	}
	return &file, nil
}

func (r *dbFileRepository) FindAllByOwnerID(ctx context.Context, ownerID uint64, now time.Time) ([]models.File, error) {
	var files []models.File
	err := r.db.WithContext(ctx).
		Where("owner_id = ? AND expires_at > ?", ownerID, now).
		Order("created_at DESC").
		Find(&files).Error
	if err != nil {
		logger.Error("Error finding files from DB", zap.Uint64("ownerID", ownerID), zap.Error(err))
		return nil, fmt.Errorf("查询文件列表失败: %w", err)
	}
	return files, nil
}

// notServableCond 命中已过期或额度耗尽的记录，与清理任务共用
const notServableCond = "expires_at <= ? OR (max_downloads IS NOT NULL AND download_count >= max_downloads)"

func (r *dbFileRepository) FindExpiredOrExhausted(ctx context.Context, now time.Time) ([]models.File, error) {
	var files []models.File
	err := r.db.WithContext(ctx).
		Where(notServableCond, now).
		Find(&files).Error
	if err != nil {
		logger.Error("Error finding expired files from DB", zap.Error(err))
		return nil, fmt.Errorf("查询过期文件失败: %w", err)
	}
	return files, nil
}

// ConsumeDownload 在事务内加行锁，读出最新计数后判定并自增
// 并发下载竞争同一条记录时，行锁保证计数严格递增且不会超发
func (r *dbFileRepository) ConsumeDownload(ctx context.Context, id uint64, now time.Time) (*ConsumeResult, error) {
	var result ConsumeResult
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var file models.File
		err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).First(&file, id).Error
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return xerr.ErrShareNotFound
			}
			return fmt.Errorf("锁定文件记录失败: %w", err)
		}

		// 在锁内重新判定，避免基于过期快照放行
		if file.Expired(now) {
			return xerr.ErrShareExpired
		}
		if file.Exhausted() {
			return xerr.ErrShareExhausted
		}

		file.DownloadCount++
		if err := tx.Model(&models.File{}).
			Where("id = ?", file.ID).
			Update("download_count", file.DownloadCount).Error; err != nil {
			return fmt.Errorf("更新下载计数失败: %w", err)
		}

		result.File = &file
		result.Exhausted = file.Exhausted()
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &result, nil
}

func (r *dbFileRepository) Delete(ctx context.Context, id uint64) error {
	err := r.db.WithContext(ctx).Delete(&models.File{}, id).Error
	if err != nil {
		logger.Error("Delete: Failed to delete file in DB", zap.Uint64("fileID", id), zap.Error(err))
		return fmt.Errorf("删除文件记录失败: %w", err)
	}
	return nil
}

func (r *dbFileRepository) DeleteIfNotServable(ctx context.Context, id uint64, now time.Time) (bool, error) {
	res := r.db.WithContext(ctx).
		Where("id = ?", id).
		Where(notServableCond, now).
		Delete(&models.File{})
	if res.Error != nil {
		logger.Error("DeleteIfNotServable: Failed to delete file in DB", zap.Uint64("fileID", id), zap.Error(res.Error))
		return false, fmt.Errorf("条件删除文件记录失败: %w", res.Error)
	}
	return res.RowsAffected > 0, nil
}
