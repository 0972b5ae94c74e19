package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"mime"
	"os"
	"path/filepath"
	"strings"

	"github.com/3Eeeecho/go-fileshare/internal/config"
	"github.com/3Eeeecho/go-fileshare/internal/pkg/logger"
	"github.com/3Eeeecho/go-fileshare/internal/pkg/xerr"
	"go.uber.org/zap"
)

// LocalStorageService 基于本地文件系统的存储实现
// 对象以 <root>/<bucket>/<objectName> 的形式落盘
type LocalStorageService struct {
	root string
}

// NewLocalStorageService 创建并返回一个 LocalStorageService 实例
func NewLocalStorageService(cfg *config.StorageConfig) (*LocalStorageService, error) {
	root, err := filepath.Abs(cfg.LocalBasePath)
	if err != nil {
		return nil, fmt.Errorf("解析本地存储根目录失败: %w", err)
	}
	if err := os.MkdirAll(root, 0o755); err != nil {
		return nil, fmt.Errorf("创建本地存储根目录失败: %w", err)
	}
	logger.Info("本地存储初始化成功", zap.String("root", root))
	return &LocalStorageService{root: root}, nil
}

// objectPath 拼接对象的绝对路径，并确保不会逃出存储根目录
func (s *LocalStorageService) objectPath(bucketName, objectName string) (string, error) {
	p := filepath.Join(s.root, bucketName, filepath.FromSlash(objectName))
	p = filepath.Clean(p)
	if !strings.HasPrefix(p, s.root+string(os.PathSeparator)) {
		return "", xerr.ErrFileNameInvalid
	}
	return p, nil
}

func (s *LocalStorageService) PutObject(ctx context.Context, bucketName, objectName string, reader io.Reader, contentType string) (PutObjectResult, error) {
	path, err := s.objectPath(bucketName, objectName)
	if err != nil {
		return PutObjectResult{}, err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return PutObjectResult{}, fmt.Errorf("创建对象目录失败: %w", err)
	}

	// 先写临时文件，成功后原子改名，失败时删除，不留部分写入的对象
	tmp, err := os.CreateTemp(filepath.Dir(path), ".upload-*")
	if err != nil {
		return PutObjectResult{}, fmt.Errorf("创建临时文件失败: %w", err)
	}
	size, err := io.Copy(tmp, reader)
	if cerr := tmp.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		_ = os.Remove(tmp.Name())
		return PutObjectResult{}, fmt.Errorf("写入对象失败: %w", err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		_ = os.Remove(tmp.Name())
		return PutObjectResult{}, fmt.Errorf("落盘对象失败: %w", err)
	}

	return PutObjectResult{
		Bucket: bucketName,
		Key:    objectName,
		Size:   size,
	}, nil
}

func (s *LocalStorageService) GetObject(ctx context.Context, bucketName, objectName string) (GetObjectResult, error) {
	path, err := s.objectPath(bucketName, objectName)
	if err != nil {
		return GetObjectResult{}, err
	}
	f, err := os.Open(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return GetObjectResult{}, xerr.ErrObjectNotFound
		}
		return GetObjectResult{}, fmt.Errorf("打开对象失败: %w", err)
	}

	size := int64(-1)
	if info, err := f.Stat(); err == nil {
		size = info.Size()
	}
	return GetObjectResult{
		Reader:   f,
		Size:     size,
		MimeType: mime.TypeByExtension(filepath.Ext(objectName)),
	}, nil
}

func (s *LocalStorageService) RemoveObject(ctx context.Context, bucketName, objectName string) error {
	path, err := s.objectPath(bucketName, objectName)
	if err != nil {
		return err
	}
	if err := os.Remove(path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("删除对象失败: %w", err)
	}
	return nil
}

func (s *LocalStorageService) ObjectExists(ctx context.Context, bucketName, objectName string) (bool, error) {
	path, err := s.objectPath(bucketName, objectName)
	if err != nil {
		return false, err
	}
	if _, err := os.Stat(path); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return false, nil
		}
		return false, fmt.Errorf("检查对象存在性失败: %w", err)
	}
	return true, nil
}
