package storage

import (
	"context"
	"errors"
	"io"

	"github.com/3Eeeecho/go-fileshare/internal/config"
)

// StorageService 定义了通用的文件存储操作接口
// 每个对象只会被写入一次，之后只读，因此不需要跨请求的写锁
type StorageService interface {
	// 上传文件到指定存储桶，流式写入，返回存储对象的信息或错误
	// 写入中途失败时实现必须清理残留的部分对象
	PutObject(ctx context.Context, bucketName, objectName string, reader io.Reader, contentType string) (PutObjectResult, error)
	// 从指定存储桶下载文件，返回一个读取器和对象信息
	// 对象不存在时返回 xerr.ErrObjectNotFound
	GetObject(ctx context.Context, bucketName, objectName string) (GetObjectResult, error)
	// 从指定存储桶删除文件，对象不存在时为幂等空操作
	RemoveObject(ctx context.Context, bucketName, objectName string) error
	// 检查对象是否存在
	ObjectExists(ctx context.Context, bucketName, objectName string) (bool, error)
}

type PutObjectResult struct {
	Bucket string
	Key    string
	Size   int64
	ETag   string // 对象哈希值
}

type GetObjectResult struct {
	Reader   io.ReadCloser // 文件内容读取器，需要在使用后关闭
	Size     int64         // 未知时为 -1
	MimeType string
}

func NewStorageService(cfg *config.Config) (StorageService, error) {
	switch cfg.Storage.Type {
	case "local":
		return NewLocalStorageService(&cfg.Storage)
	case "minio":
		return NewMinIOStorageService(&cfg.MinIO)
	case "aliyun_oss":
		return NewAliyunOSSStorageService(&cfg.AliyunOSS)
	default:
		return nil, errors.New("invalid storageType")
	}
}
