package token

import (
	"crypto/rand"
	"encoding/base64"
	"fmt"
)

// tokenBytes 为16字节（128位熵），令牌即下载凭证，必须不可枚举
const tokenBytes = 16

// Issue 生成一个URL安全的随机分享令牌
// 熵足够大，理论上无需查重；数据库的唯一索引作为兜底约束
func Issue() (string, error) {
	buf := make([]byte, tokenBytes)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("读取随机字节失败: %w", err)
	}
	return base64.RawURLEncoding.EncodeToString(buf), nil
}
