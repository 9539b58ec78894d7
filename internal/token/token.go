package token

import (
	"crypto/rand"
	"encoding/hex"

	"github.com/google/uuid"
)

// New 生成 32 字节的随机令牌（64 位十六进制字符串）。
// 验证令牌与解锁令牌会出现在外部链接中，必须不可猜测。
func New() string {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		// crypto/rand 失败说明系统熵源不可用，退回 UUID
		return uuid.NewString()
	}
	return hex.EncodeToString(b)
}

// NewID 生成实体 ID（受益人、解锁令牌记录）。
func NewID() string {
	return uuid.NewString()
}
