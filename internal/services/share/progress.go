package share

import (
	"sync"

	"github.com/3Eeeecho/go-fileshare/internal/pkg/xerr"
)

// ProgressTracker 在进程内跟踪进行中的上传进度
// 单实例部署下够用，多实例部署需要换成共享存储实现
type ProgressTracker struct {
	mu      sync.Mutex
	uploads map[string]*uploadProgress
}

type uploadProgress struct {
	total int64 // 客户端声明的总大小，0 表示未知
	read  int64
}

// NewProgressTracker 创建上传进度跟踪器
func NewProgressTracker() *ProgressTracker {
	return &ProgressTracker{
		uploads: make(map[string]*uploadProgress),
	}
}

// Begin 登记一次上传，total 为 0 时进度保持 0 直到结束
func (t *ProgressTracker) Begin(id string, total int64) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.uploads[id] = &uploadProgress{total: total}
}

// Advance 更新已读取的累计字节数
func (t *ProgressTracker) Advance(id string, read int64) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if p, ok := t.uploads[id]; ok {
		p.read = read
	}
}

// Percent 返回上传进度百分比，上传不存在或已结束返回 xerr.ErrUploadNotFound
func (t *ProgressTracker) Percent(id string) (int, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	p, ok := t.uploads[id]
	if !ok {
		return 0, xerr.ErrUploadNotFound
	}
	if p.total <= 0 {
		return 0, nil
	}
	percent := int(p.read * 100 / p.total)
	if percent > 100 {
		percent = 100
	}
	return percent, nil
}

// End 移除上传登记
func (t *ProgressTracker) End(id string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	delete(t.uploads, id)
}

// UploadProgress 查询进行中上传的进度百分比
func (s *shareService) UploadProgress(uploadID string) (int, error) {
	return s.tracker.Percent(uploadID)
}
