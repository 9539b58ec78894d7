package storage

import (
	"errors"

	"heritage/backend/internal/domain"
)

var (
	// ErrConfigNotFound 配置记录不存在
	ErrConfigNotFound = errors.New("legacy config not found")
	// ErrUnlockTokenNotFound 解锁令牌不存在
	ErrUnlockTokenNotFound = errors.New("unlock token not found")
	// ErrVerifyTokenNotFound 验证令牌索引不存在
	ErrVerifyTokenNotFound = errors.New("verify token not found")
	// ErrCancelTokenNotFound 取消令牌不存在
	ErrCancelTokenNotFound = errors.New("cancel token not found")
)

// ConfigRepository 定义遗产访问配置的存取操作。
// 记录整体读-改-写，键为所有者 ID。
type ConfigRepository interface {
	GetConfig(ownerID string) (*domain.LegacyConfig, error)
	SaveConfig(cfg *domain.LegacyConfig) error
	DeleteConfig(ownerID string) error            // 仅账户删除时调用
	ListConfigs() ([]*domain.LegacyConfig, error) // 扫描任务遍历全部配置
}

// UnlockTokenRepository 定义解锁令牌的存取操作，键为令牌 ID。
type UnlockTokenRepository interface {
	SaveUnlockToken(token *domain.UnlockToken) error
	GetUnlockToken(tokenID string) (*domain.UnlockToken, error)
	ListUnlockTokensByOwner(ownerID string) ([]*domain.UnlockToken, error)
}

// VerifyTokenRepository 定义验证令牌二级索引的存取操作。
// 令牌签发时写入，验证成功、换发或撤销时删除。
type VerifyTokenRepository interface {
	SaveVerifyTokenRef(ref *domain.VerifyTokenRef) error
	GetVerifyTokenRef(token string) (*domain.VerifyTokenRef, error)
	DeleteVerifyTokenRef(token string) error
}

// CancelTokenRepository 定义宽限期取消令牌的存取操作。
type CancelTokenRepository interface {
	SaveCancelRecord(rec *domain.CancelRecord) error
	GetCancelRecord(token string) (*domain.CancelRecord, error)
	DeleteCancelRecord(token string) error
}

// Store 定义完整的存储接口。
type Store interface {
	ConfigRepository
	UnlockTokenRepository
	VerifyTokenRepository
	CancelTokenRepository

	Close() error
	Health() error
}
