package domain

import "time"

// UnlockType 解锁触发原因
type UnlockType string

const (
	UnlockGracePeriodExpired UnlockType = "grace_period_expired" // 不活跃宽限期到期
	UnlockManualDate         UnlockType = "manual_date"          // 固定日期到达
	UnlockUserTriggered      UnlockType = "user_triggered"       // 所有者主动触发
)

// UnlockTokenLifetime 解锁令牌的名义有效期，实际等同永久
const UnlockTokenLifetime = 100 * 365 * 24 * time.Hour

// UnlockToken 授予特定受益人访问特定文件夹的凭证。
// 创建后不可变，仅 UsedAt 可从未设置变为已设置（幂等）。
type UnlockToken struct {
	TokenID           string                      `json:"tokenId"`
	UserID            string                      `json:"userId"` // 所有者
	BeneficiaryID     string                      `json:"beneficiaryId"`
	UnlockType        UnlockType                  `json:"unlockType"`
	CreatedAt         time.Time                   `json:"createdAt"`
	ExpiresAt         time.Time                   `json:"expiresAt"`
	UsedAt            *time.Time                  `json:"usedAt,omitempty"`
	FolderPermissions map[string]FolderPermission `json:"folderPermissions,omitempty"` // 签发时刻的权限快照
}

// Expired 判断令牌在给定时刻是否过期（按构造基本不会发生）
func (t *UnlockToken) Expired(now time.Time) bool {
	return now.After(t.ExpiresAt)
}

// VerifyTokenRef 验证令牌到受益人的二级索引记录，
// 使全局令牌验证无需对所有配置做前缀扫描。
type VerifyTokenRef struct {
	Token         string `json:"token"`
	OwnerID       string `json:"ownerId"`
	BeneficiaryID string `json:"beneficiaryId"`
}

// CancelRecord 取消令牌到所有者的映射，对应警告邮件中的取消链接
type CancelRecord struct {
	Token     string    `json:"token"`
	OwnerID   string    `json:"ownerId"`
	CreatedAt time.Time `json:"createdAt"`
}
