package id

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// New 生成带前缀的可读 ID：prefix + 毫秒时间戳 + 随机后缀。
// 用于导出登记、审计事件等本地记录。
func New(prefix string) string {
	buf := make([]byte, 6)
	_, _ = rand.Read(buf)
	return fmt.Sprintf("%s_%d_%s", prefix, time.Now().UnixMilli(), hex.EncodeToString(buf))
}

// Snapshot 生成存档条目的全局唯一身份（UUIDv4）。
func Snapshot() string {
	return uuid.NewString()
}
