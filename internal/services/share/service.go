package share

import (
	"context"
	"io"

	"github.com/3Eeeecho/go-fileshare/internal/config"
	"github.com/3Eeeecho/go-fileshare/internal/models"
	"github.com/3Eeeecho/go-fileshare/internal/pkg/storage"
	"github.com/3Eeeecho/go-fileshare/internal/repositories"
)

// UploadRequest 描述一次上传分享请求
type UploadRequest struct {
	FileName      string
	Size          int64  // 客户端声明的大小，仅用于进度展示，可为 0
	ContentType   string // 可为空，默认按二进制流处理
	RetentionDays int
	MaxDownloads  *int64 // nil 表示不限次数
	UploadID      string // 可选，客户端用于查询上传进度的标识

	// Open 返回上传内容的读取器
	// 令牌冲突重试时会被再次调用，实现必须支持重复打开
	Open func() (io.ReadCloser, error)
}

// DownloadResult 是一次下载请求的结果
// Reader 由调用方负责关闭，最后一次下载的关闭动作会触发分享回收
type DownloadResult struct {
	File     *models.File
	Reader   io.ReadCloser
	Size     int64 // 未知时为 -1
	MimeType string
}

// ShareService 定义了文件分享服务需要实现的接口
type ShareService interface {
	// Upload 接收上传内容，生成不可猜测的下载令牌并持久化分享记录
	Upload(ctx context.Context, ownerID uint64, req *UploadRequest) (*models.File, error)
	// Download 按令牌核销一次下载并返回内容读取器
	Download(ctx context.Context, token string) (*DownloadResult, error)
	// ListUserFiles 列出用户当前仍然有效的分享
	ListUserFiles(ctx context.Context, ownerID uint64) ([]models.File, error)
	// DeleteUserFile 删除用户自己的分享，对象和记录一并移除
	DeleteUserFile(ctx context.Context, ownerID, fileID uint64) error
	// UploadProgress 查询进行中上传的进度百分比
	UploadProgress(uploadID string) (int, error)
	// SweepExpired 清理已过期或额度耗尽的分享，返回清理条数
	SweepExpired(ctx context.Context) (int, error)
}

// shareService 是 ShareService 接口的具体实现
type shareService struct {
	fileRepo repositories.FileRepository // 分享记录数据仓库
	storage  storage.StorageService      // 对象存储后端
	tracker  *ProgressTracker            // 上传进度跟踪器
	cfg      *config.Config              // 全局配置
	bucket   string                      // 分享对象所在的存储桶
}

var _ ShareService = (*shareService)(nil)

// NewShareService 创建一个新的 ShareService 实例
func NewShareService(fileRepo repositories.FileRepository, storageSvc storage.StorageService, tracker *ProgressTracker, cfg *config.Config) ShareService {
	bucket := "uploads"
	switch cfg.Storage.Type {
	case "minio":
		bucket = cfg.MinIO.BucketName
	case "aliyun_oss":
		bucket = cfg.AliyunOSS.BucketName
	}
	return &shareService{
		fileRepo: fileRepo,
		storage:  storageSvc,
		tracker:  tracker,
		cfg:      cfg,
		bucket:   bucket,
	}
}
