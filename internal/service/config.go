package service

import (
	"time"

	"go.uber.org/zap"

	"heritage/backend/internal/domain"
	"heritage/backend/internal/storage"
)

// LegacyConfigService 封装配置记录的存取，负责"首次访问创建默认记录"规则。
type LegacyConfigService struct {
	store storage.Store
	log   *zap.Logger
	now   func() time.Time
}

// NewLegacyConfigService 创建配置服务。
func NewLegacyConfigService(store storage.Store, log *zap.Logger) *LegacyConfigService {
	return &LegacyConfigService{
		store: store,
		log:   log,
		now:   func() time.Time { return time.Now().UTC() },
	}
}

// SetNow 注入时钟，测试用。
func (s *LegacyConfigService) SetNow(now func() time.Time) {
	s.now = now
}

// GetOrCreate 获取所有者的配置，首次访问时惰性创建默认记录。
// ownerEmail 来自身份协作方的令牌声明，缺失的历史记录会被补齐。
func (s *LegacyConfigService) GetOrCreate(ownerID, ownerEmail string) (*domain.LegacyConfig, error) {
	cfg, err := s.store.GetConfig(ownerID)
	if err == storage.ErrConfigNotFound {
		cfg = domain.NewDefaultConfig(ownerID, ownerEmail, s.now())
		if err := s.store.SaveConfig(cfg); err != nil {
			return nil, err
		}
		s.log.Info("created default legacy config", zap.String("owner_id", ownerID))
		return cfg, nil
	}
	if err != nil {
		return nil, err
	}

	if cfg.OwnerEmail == "" && ownerEmail != "" {
		cfg.OwnerEmail = ownerEmail
		if err := s.Save(cfg); err != nil {
			return nil, err
		}
	}
	return cfg, nil
}

// Save 保存配置并刷新 UpdatedAt。
func (s *LegacyConfigService) Save(cfg *domain.LegacyConfig) error {
	cfg.UpdatedAt = s.now()
	return s.store.SaveConfig(cfg)
}

// Delete 删除所有者的配置记录，仅账户删除流程调用。
func (s *LegacyConfigService) Delete(ownerID string) error {
	return s.store.DeleteConfig(ownerID)
}
