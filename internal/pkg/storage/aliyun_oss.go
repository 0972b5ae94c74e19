package storage

import (
	"context"
	"fmt"
	"io"
	"strconv"

	"github.com/3Eeeecho/go-fileshare/internal/config"
	"github.com/3Eeeecho/go-fileshare/internal/pkg/logger"
	"github.com/3Eeeecho/go-fileshare/internal/pkg/xerr"
	"github.com/aliyun/aliyun-oss-go-sdk/oss"
	"go.uber.org/zap"
)

type AliyunOSSStorageService struct {
	client *oss.Client
	cfg    *config.AliyunOSSConfig // 阿里云OSS的配置信息
}

// NewAliyunOSSStorageService 创建并返回一个 AliyunOSSStorageService 实例
func NewAliyunOSSStorageService(cfg *config.AliyunOSSConfig) (*AliyunOSSStorageService, error) {
	ossClient, err := oss.New(cfg.Endpoint, cfg.AccessKeyID, cfg.SecretAccessKey)
	if err != nil {
		logger.Error("初始化阿里云OSS客户端失败", zap.Error(err))
		return nil, fmt.Errorf("无法初始化阿里云OSS客户端: %w", err)
	}
	logger.Info("阿里云OSS客户端初始化成功", zap.String("endpoint", cfg.Endpoint))
	return &AliyunOSSStorageService{
		client: ossClient,
		cfg:    cfg,
	}, nil
}

func isOSSNoSuchKey(err error) bool {
	if ossErr, ok := err.(oss.ServiceError); ok && ossErr.Code == "NoSuchKey" {
		return true
	}
	return false
}

func (s *AliyunOSSStorageService) PutObject(ctx context.Context, bucketName, objectName string, reader io.Reader, contentType string) (PutObjectResult, error) {
	bucket, err := s.client.Bucket(bucketName)
	if err != nil {
		return PutObjectResult{}, fmt.Errorf("获取OSS存储桶失败: %w", err)
	}

	err = bucket.PutObject(objectName, reader, oss.ContentType(contentType))
	if err != nil {
		// 上传失败时清理可能残留的部分对象
		_ = s.RemoveObject(ctx, bucketName, objectName)
		return PutObjectResult{}, fmt.Errorf("阿里云OSS上传文件失败: %w", err)
	}

	// PutObject 本身不返回对象信息，回查元数据补齐大小
	size := int64(-1)
	if props, err := bucket.GetObjectDetailedMeta(objectName); err == nil {
		if val := props.Get(oss.HTTPHeaderContentLength); val != "" {
			size, _ = strconv.ParseInt(val, 10, 64)
		}
	}
	return PutObjectResult{
		Bucket: bucketName,
		Key:    objectName,
		Size:   size,
	}, nil
}

func (s *AliyunOSSStorageService) GetObject(ctx context.Context, bucketName, objectName string) (GetObjectResult, error) {
	bucket, err := s.client.Bucket(bucketName)
	if err != nil {
		return GetObjectResult{}, fmt.Errorf("获取OSS存储桶失败: %w", err)
	}

	reader, err := bucket.GetObject(objectName)
	if err != nil {
		if isOSSNoSuchKey(err) {
			return GetObjectResult{}, xerr.ErrObjectNotFound
		}
		return GetObjectResult{}, fmt.Errorf("阿里云OSS获取文件失败: %w", err)
	}

	size := int64(-1)
	mimeType := ""
	if props, err := bucket.GetObjectDetailedMeta(objectName); err == nil {
		if val := props.Get(oss.HTTPHeaderContentLength); val != "" {
			size, _ = strconv.ParseInt(val, 10, 64)
		}
		mimeType = props.Get(oss.HTTPHeaderContentType)
	} else {
		logger.Warn("获取OSS对象元数据失败", zap.String("object", objectName), zap.Error(err))
	}

	return GetObjectResult{
		Reader:   reader,
		Size:     size,
		MimeType: mimeType,
	}, nil
}

func (s *AliyunOSSStorageService) RemoveObject(ctx context.Context, bucketName, objectName string) error {
	bucket, err := s.client.Bucket(bucketName)
	if err != nil {
		return fmt.Errorf("获取OSS存储桶失败: %w", err)
	}
	// OSS 删除不存在的对象返回成功，天然幂等
	if err := bucket.DeleteObject(objectName); err != nil {
		return fmt.Errorf("阿里云OSS删除文件失败: %w", err)
	}
	return nil
}

func (s *AliyunOSSStorageService) ObjectExists(ctx context.Context, bucketName, objectName string) (bool, error) {
	bucket, err := s.client.Bucket(bucketName)
	if err != nil {
		return false, fmt.Errorf("获取OSS存储桶失败: %w", err)
	}
	found, err := bucket.IsObjectExist(objectName)
	if err != nil {
		return false, fmt.Errorf("检查阿里云OSS对象存在性失败: %w", err)
	}
	return found, nil
}
