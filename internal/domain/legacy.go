package domain

import (
	"strings"
	"time"
)

// BeneficiaryStatus 受益人状态
type BeneficiaryStatus string

const (
	// StatusPendingUnlock 已登记但尚未通知（延迟验证路径）
	StatusPendingUnlock BeneficiaryStatus = "pending_unlock"
	// StatusPending 已通知，验证令牌未确认
	StatusPending BeneficiaryStatus = "pending"
	// StatusVerified 受益人已确认邮箱归属并接受角色
	StatusVerified BeneficiaryStatus = "verified"
	// StatusRejected 受益人已拒绝（保留状态，当前无流程产生）
	StatusRejected BeneficiaryStatus = "rejected"
	// StatusRevoked 所有者已移除，终态，记录保留用于审计
	StatusRevoked BeneficiaryStatus = "revoked"
)

// NotificationTiming 验证通知时机
type NotificationTiming string

const (
	TimingImmediate NotificationTiming = "immediate" // 添加时立即通知
	TimingDeferred  NotificationTiming = "deferred"  // 延迟到解锁触发时通知
)

// NotificationContext 通知发出时所处的上下文，决定令牌有效期策略
type NotificationContext string

const (
	ContextImmediate NotificationContext = "immediate" // 添加受益人时发送，令牌 30 天有效
	ContextManual    NotificationContext = "manual"    // 所有者手动补发，令牌 14 天有效
	ContextUnlock    NotificationContext = "unlock"    // 解锁触发时发送，令牌永不过期
)

// FolderPermission 文件夹访问权限级别
type FolderPermission string

const (
	PermissionView FolderPermission = "view"
	PermissionEdit FolderPermission = "edit"
)

// TriggerType 触发器类型
type TriggerType string

const (
	TriggerInactivity TriggerType = "inactivity" // 不活跃阈值触发
	TriggerDate       TriggerType = "date"       // 固定日期触发
)

// DefaultGracePeriodDays 宽限期固定为 30 天，不可由用户配置
const DefaultGracePeriodDays = 30

// DefaultInactivityMonths 新建配置的默认不活跃阈值
const DefaultInactivityMonths = 6

// EmailChange 受益人邮箱变更记录（只追加）
type EmailChange struct {
	OldEmail  string    `json:"oldEmail"`
	NewEmail  string    `json:"newEmail"`
	ChangedAt time.Time `json:"changedAt"`
}

// TriggerSnapshot 添加受益人时的触发器配置快照，用于审计
type TriggerSnapshot struct {
	Type             TriggerType `json:"type"`
	InactivityMonths int         `json:"inactivityMonths,omitempty"`
	ManualUnlockDate *time.Time  `json:"manualUnlockDate,omitempty"`
}

// Beneficiary 表示一个被指定的受益人。
// 记录从不物理删除：revoked 为终态并保留用于审计。
type Beneficiary struct {
	ID                  string                      `json:"id"`
	Name                string                      `json:"name"`
	Email               string                      `json:"email"` // 已转小写
	Phone               string                      `json:"phone,omitempty"`
	PersonalMessage     string                      `json:"personalMessage,omitempty"`
	FolderPermissions   map[string]FolderPermission `json:"folderPermissions,omitempty"`
	Status              BeneficiaryStatus           `json:"status"`
	VerificationToken   string                      `json:"verificationToken,omitempty"`
	TokenExpiresAt      *time.Time                  `json:"tokenExpiresAt,omitempty"` // 缺省 = 永不过期
	AddedAt             time.Time                   `json:"addedAt"`
	VerifiedAt          *time.Time                  `json:"verifiedAt,omitempty"`
	RejectedAt          *time.Time                  `json:"rejectedAt,omitempty"`
	RevokedAt           *time.Time                  `json:"revokedAt,omitempty"`
	EmailHistory        []EmailChange               `json:"emailHistory,omitempty"`
	AddedWithTrigger    TriggerSnapshot             `json:"addedWithTrigger"`
	NotificationTiming  NotificationTiming          `json:"notificationTiming"`
	NotificationSentAt  *time.Time                  `json:"notificationSentAt,omitempty"`
	NotificationContext NotificationContext         `json:"notificationContext,omitempty"`
	// ReminderTier 已发送的提醒档位（0-3），用于容忍漏扫的提醒升级
	ReminderTier int `json:"reminderTier"`
}

// IsActive 判断受益人是否处于未撤销状态
func (b *Beneficiary) IsActive() bool {
	return b.Status != StatusRevoked
}

// TokenExpired 判断验证令牌在给定时刻是否已过期。
// TokenExpiresAt 缺省表示永不过期。
func (b *Beneficiary) TokenExpired(now time.Time) bool {
	return b.TokenExpiresAt != nil && now.After(*b.TokenExpiresAt)
}

// Trigger 定义解锁触发条件与调度状态。
// type 决定 InactivityMonths 与 ManualUnlockDate 哪个生效；
// 切换 type 会清空调度字段，因为原调度依附于旧的触发定义。
type Trigger struct {
	Type               TriggerType `json:"type"`
	InactivityMonths   int         `json:"inactivityMonths,omitempty"`
	ManualUnlockDate   *time.Time  `json:"manualUnlockDate,omitempty"`
	GracePeriodDays    int         `json:"gracePeriodDays"`
	LastActivityAt     time.Time   `json:"lastActivityAt"`
	UnlockScheduledAt  *time.Time  `json:"unlockScheduledAt,omitempty"` // 宽限期截止时间，阈值首次越过时设置
	UnlockCanceledAt   *time.Time  `json:"unlockCanceledAt,omitempty"`
	WarningEmailSentAt *time.Time  `json:"warningEmailSentAt,omitempty"`
	UnlockTriggeredAt  *time.Time  `json:"unlockTriggeredAt,omitempty"` // 已实际触发，防止重复触发
	CancelToken        string      `json:"cancelToken,omitempty"`       // 警告邮件中取消链接的令牌
}

// ClearSchedule 清空调度字段（活动重置、取消、切换触发类型时调用）
func (t *Trigger) ClearSchedule() {
	t.UnlockScheduledAt = nil
	t.UnlockCanceledAt = nil
	t.WarningEmailSentAt = nil
	t.CancelToken = ""
}

// InactivityThreshold 返回不活跃触发的时长阈值（按月 × 30 天近似）
func (t *Trigger) InactivityThreshold() time.Duration {
	return time.Duration(t.InactivityMonths) * 30 * 24 * time.Hour
}

// SecurityFlags 始终开启的安全不变量，不可由用户配置
type SecurityFlags struct {
	RequireVerification bool `json:"requireVerification"` // 受益人必须验证邮箱才能获得访问
	AuditTrail          bool `json:"auditTrail"`          // 受益人记录从不删除
	GracePeriodEnabled  bool `json:"gracePeriodEnabled"`  // 触发后保留取消窗口
}

// LegacyConfig 每个所有者账户一条的遗产访问配置记录。
// 首次读取时惰性创建，仅在账户删除时随账户删除。
type LegacyConfig struct {
	OwnerID string `json:"ownerId"`
	// OwnerEmail 所有者账户邮箱，用于自指受益人检查与不活跃警告邮件
	OwnerEmail    string        `json:"ownerEmail,omitempty"`
	Beneficiaries []Beneficiary `json:"beneficiaries"`
	Trigger       Trigger       `json:"trigger"`
	Security      SecurityFlags `json:"security"`
	CreatedAt     time.Time     `json:"createdAt"`
	UpdatedAt     time.Time     `json:"updatedAt"`
}

// NewDefaultConfig 为所有者创建默认配置（不活跃触发，6 个月阈值，30 天宽限期）
func NewDefaultConfig(ownerID, ownerEmail string, now time.Time) *LegacyConfig {
	return &LegacyConfig{
		OwnerID:       ownerID,
		OwnerEmail:    strings.ToLower(strings.TrimSpace(ownerEmail)),
		Beneficiaries: []Beneficiary{},
		Trigger: Trigger{
			Type:             TriggerInactivity,
			InactivityMonths: DefaultInactivityMonths,
			GracePeriodDays:  DefaultGracePeriodDays,
			LastActivityAt:   now,
		},
		Security: SecurityFlags{
			RequireVerification: true,
			AuditTrail:          true,
			GracePeriodEnabled:  true,
		},
		CreatedAt: now,
		UpdatedAt: now,
	}
}

// FindBeneficiary 按 ID 查找受益人，返回可修改的指针
func (c *LegacyConfig) FindBeneficiary(id string) *Beneficiary {
	for i := range c.Beneficiaries {
		if c.Beneficiaries[i].ID == id {
			return &c.Beneficiaries[i]
		}
	}
	return nil
}

// ActiveBeneficiaryByEmail 查找指定邮箱（不区分大小写）的未撤销受益人
func (c *LegacyConfig) ActiveBeneficiaryByEmail(email string) *Beneficiary {
	email = strings.ToLower(strings.TrimSpace(email))
	for i := range c.Beneficiaries {
		b := &c.Beneficiaries[i]
		if b.IsActive() && b.Email == email {
			return b
		}
	}
	return nil
}

// HasVerifiedBeneficiary 判断是否存在已验证的受益人。
// 扫描任务据此跳过没有任何人可接收解锁的配置。
func (c *LegacyConfig) HasVerifiedBeneficiary() bool {
	for i := range c.Beneficiaries {
		if c.Beneficiaries[i].Status == StatusVerified {
			return true
		}
	}
	return false
}

// TriggerSnapshotOf 生成当前触发器配置的审计快照
func (c *LegacyConfig) TriggerSnapshotOf() TriggerSnapshot {
	return TriggerSnapshot{
		Type:             c.Trigger.Type,
		InactivityMonths: c.Trigger.InactivityMonths,
		ManualUnlockDate: c.Trigger.ManualUnlockDate,
	}
}
