package storage

import (
	"io"

	"github.com/3Eeeecho/go-fileshare/internal/pkg/xerr"
)

// MeteredReader 在流式读取时统计字节数并强制执行大小上限
// 上限在传输过程中逐块生效，超限立刻中断，避免超大上传先落盘再拒绝
type MeteredReader struct {
	r          io.Reader
	max        int64 // <=0 表示不限制
	read       int64
	exceeded   bool
	onProgress func(readBytes int64)
}

// NewMeteredReader 包装 reader，max 为允许读取的最大字节数
// onProgress 在每次读取后以累计字节数回调，可为 nil
func NewMeteredReader(r io.Reader, max int64, onProgress func(readBytes int64)) *MeteredReader {
	return &MeteredReader{r: r, max: max, onProgress: onProgress}
}

func (m *MeteredReader) Read(p []byte) (int, error) {
	n, err := m.r.Read(p)
	if n > 0 {
		m.read += int64(n)
		if m.onProgress != nil {
			m.onProgress(m.read)
		}
		if m.max > 0 && m.read > m.max {
			m.exceeded = true
			return n, xerr.ErrFileTooLarge
		}
	}
	return n, err
}

// BytesRead 返回已读取的累计字节数
func (m *MeteredReader) BytesRead() int64 {
	return m.read
}

// Exceeded 报告是否因超过大小上限而中断
// 存储后端可能包装底层错误，调用方以此标志判定配额错误
func (m *MeteredReader) Exceeded() bool {
	return m.exceeded
}
