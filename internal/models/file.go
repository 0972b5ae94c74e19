package models

import (
	"time"
)

// File 对应 files 表，一条记录描述一个可分享的文件
// 记录按令牌对外暴露，过期或下载额度耗尽后会被清理删除
type File struct {
	ID            uint64    `gorm:"primaryKey;autoIncrement" json:"id"`
	OwnerID       uint64    `gorm:"not null;index" json:"owner_id"`
	FileName      string    `gorm:"type:varchar(255);not null" json:"filename"`
	Token         string    `gorm:"type:varchar(32);uniqueIndex;not null" json:"token"` // 下载令牌，链接中唯一的凭证
	Size          int64     `gorm:"type:bigint;not null;default:0" json:"size"`
	MimeType      *string   `gorm:"type:varchar(128);default:null" json:"mime_type"`
	OssBucket     string    `gorm:"type:varchar(64);not null" json:"oss_bucket"`
	OssKey        string    `gorm:"type:varchar(255);not null" json:"oss_key"`
	MaxDownloads  *int64    `gorm:"default:null" json:"max_downloads"` // null 表示不限次数
	DownloadCount int64     `gorm:"not null;default:0" json:"download_count"`
	ExpiresAt     time.Time `gorm:"not null;index" json:"expires_at"`
	CreatedAt     time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt     time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}

// TableName 指定 GORM 使用的表名
func (File) TableName() string {
	return "files"
}

// Expired 报告文件在 now 时刻是否已过期，过期时刻本身视为已过期
func (f *File) Expired(now time.Time) bool {
	return !f.ExpiresAt.After(now)
}

// Exhausted 报告下载额度是否已耗尽
func (f *File) Exhausted() bool {
	return f.MaxDownloads != nil && f.DownloadCount >= *f.MaxDownloads
}

// Servable 报告文件当前是否还可以被下载
func (f *File) Servable(now time.Time) bool {
	return !f.Expired(now) && !f.Exhausted()
}
