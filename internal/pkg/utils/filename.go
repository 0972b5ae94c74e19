package utils

import (
	"path"
	"strings"

	"github.com/3Eeeecho/go-fileshare/internal/pkg/xerr"
)

// SanitizeFileName 将调用方提供的文件名收敛为单个安全的路径分量
// 文件名来自上传者，绝不能直接参与存储路径拼接
func SanitizeFileName(name string) (string, error) {
	// Windows 客户端可能带反斜杠路径
	cleaned := strings.ReplaceAll(name, "\\", "/")
	cleaned = path.Base(path.Clean(cleaned))

	if cleaned == "" || cleaned == "." || cleaned == ".." || cleaned == "/" {
		return "", xerr.ErrFileNameInvalid
	}
	if strings.ContainsAny(cleaned, "\x00") {
		return "", xerr.ErrFileNameInvalid
	}
	return cleaned, nil
}
