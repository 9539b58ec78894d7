package service

import (
	"time"

	"go.uber.org/zap"

	"heritage/backend/internal/domain"
	"heritage/backend/internal/monitoring"
	"heritage/backend/internal/storage"
	"heritage/backend/internal/token"
)

// allowedInactivityMonths 不活跃阈值的合法取值
var allowedInactivityMonths = map[int]bool{3: true, 6: true, 12: true, 24: true}

// TriggerService 管理触发器配置、活动心跳与解锁条件评估。
type TriggerService struct {
	store    storage.Store
	configs  *LegacyConfigService
	notifier *NotificationService
	unlocks  *UnlockService
	metrics  *monitoring.Metrics // 可为 nil（测试）
	log      *zap.Logger
	now      func() time.Time
}

// NewTriggerService 创建触发器服务。
func NewTriggerService(store storage.Store, configs *LegacyConfigService, notifier *NotificationService, unlocks *UnlockService, metrics *monitoring.Metrics, log *zap.Logger) *TriggerService {
	return &TriggerService{
		store:    store,
		configs:  configs,
		notifier: notifier,
		unlocks:  unlocks,
		metrics:  metrics,
		log:      log,
		now:      func() time.Time { return time.Now().UTC() },
	}
}

// SetNow 注入时钟，测试用。
func (s *TriggerService) SetNow(now func() time.Time) {
	s.now = now
}

// UpdateTriggerInput 定义触发器配置更新的输入。
type UpdateTriggerInput struct {
	Type             domain.TriggerType
	InactivityMonths int
	ManualUnlockDate *time.Time
}

// UpdateTrigger 更新触发器配置。
//
// inactivity 类型要求阈值为 3/6/12/24 个月，date 类型要求未来日期。
// 切换触发类型会清空进行中的调度（含已触发标记），原调度依附于
// 旧的触发定义，跨类型保留没有意义。
func (s *TriggerService) UpdateTrigger(ownerID, ownerEmail string, input UpdateTriggerInput) (*domain.LegacyConfig, error) {
	cfg, err := s.configs.GetOrCreate(ownerID, ownerEmail)
	if err != nil {
		return nil, err
	}

	switch input.Type {
	case domain.TriggerInactivity:
		if !allowedInactivityMonths[input.InactivityMonths] {
			return nil, ErrInvalidTrigger
		}
	case domain.TriggerDate:
		if input.ManualUnlockDate == nil || !input.ManualUnlockDate.After(s.now()) {
			return nil, ErrInvalidTrigger
		}
	default:
		return nil, ErrInvalidTrigger
	}

	typeChanged := cfg.Trigger.Type != input.Type
	cfg.Trigger.Type = input.Type
	switch input.Type {
	case domain.TriggerInactivity:
		cfg.Trigger.InactivityMonths = input.InactivityMonths
		cfg.Trigger.ManualUnlockDate = nil
	case domain.TriggerDate:
		cfg.Trigger.ManualUnlockDate = input.ManualUnlockDate
	}

	if typeChanged {
		s.dropCancelRecord(cfg)
		cfg.Trigger.ClearSchedule()
		cfg.Trigger.UnlockTriggeredAt = nil
	}

	if err := s.configs.Save(cfg); err != nil {
		return nil, err
	}

	s.log.Info("trigger updated",
		zap.String("owner_id", ownerID),
		zap.String("type", string(input.Type)),
		zap.Bool("type_changed", typeChanged),
	)
	return cfg, nil
}

// RecordActivity 记录所有者活动心跳。
// 任何已认证操作都可调用：刷新 LastActivityAt 并取消进行中的宽限期。
func (s *TriggerService) RecordActivity(ownerID, ownerEmail string) (*domain.LegacyConfig, error) {
	cfg, err := s.configs.GetOrCreate(ownerID, ownerEmail)
	if err != nil {
		return nil, err
	}

	hadSchedule := cfg.Trigger.UnlockScheduledAt != nil
	cfg.Trigger.LastActivityAt = s.now()
	if hadSchedule {
		s.dropCancelRecord(cfg)
		cfg.Trigger.ClearSchedule()
		s.log.Info("pending unlock canceled by owner activity", zap.String("owner_id", ownerID))
	}

	if err := s.configs.Save(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// CancelScheduledUnlock 通过警告邮件中的取消令牌撤销已调度的解锁。
// 等价于一次活动心跳：刷新活动时间并清空调度。
func (s *TriggerService) CancelScheduledUnlock(cancelToken string) error {
	rec, err := s.store.GetCancelRecord(cancelToken)
	if err == storage.ErrCancelTokenNotFound {
		return ErrTokenNotFound
	}
	if err != nil {
		return err
	}

	cfg, err := s.store.GetConfig(rec.OwnerID)
	if err == storage.ErrConfigNotFound {
		return ErrTokenNotFound
	}
	if err != nil {
		return err
	}

	now := s.now()
	cfg.Trigger.LastActivityAt = now
	cfg.Trigger.UnlockCanceledAt = &now
	s.dropCancelRecord(cfg)
	cfg.Trigger.UnlockScheduledAt = nil
	cfg.Trigger.WarningEmailSentAt = nil
	cfg.Trigger.CancelToken = ""

	if err := s.configs.Save(cfg); err != nil {
		return err
	}

	s.log.Info("scheduled unlock canceled via cancel link", zap.String("owner_id", rec.OwnerID))
	return nil
}

// EvaluateOwner 对单个所有者评估解锁条件，由扫描任务每配置调用一次。
//
// 评估顺序：已触发 → 跳过；无已验证受益人 → 跳过；然后按触发类型
// 走不活跃（阈值越过开启宽限期，宽限期到期触发）或固定日期分支。
// 幂等：宽限期内重复评估不会再次发警告，已触发后重复评估无操作。
func (s *TriggerService) EvaluateOwner(cfg *domain.LegacyConfig) (warned, unlocked bool, err error) {
	if cfg.Trigger.UnlockTriggeredAt != nil {
		return false, false, nil
	}
	if !cfg.HasVerifiedBeneficiary() {
		return false, false, nil
	}

	now := s.now()
	switch cfg.Trigger.Type {
	case domain.TriggerInactivity:
		if cfg.Trigger.UnlockScheduledAt == nil {
			if now.Sub(cfg.Trigger.LastActivityAt) < cfg.Trigger.InactivityThreshold() {
				return false, false, nil
			}
			return true, false, s.startGracePeriod(cfg, now)
		}
		if now.Before(*cfg.Trigger.UnlockScheduledAt) {
			return false, false, nil
		}
		return false, true, s.unlocks.Fire(cfg, domain.UnlockGracePeriodExpired)

	case domain.TriggerDate:
		if cfg.Trigger.ManualUnlockDate == nil || now.Before(*cfg.Trigger.ManualUnlockDate) {
			return false, false, nil
		}
		return false, true, s.unlocks.Fire(cfg, domain.UnlockManualDate)
	}
	return false, false, nil
}

// startGracePeriod 首次越过不活跃阈值：调度宽限期并警告所有者。
func (s *TriggerService) startGracePeriod(cfg *domain.LegacyConfig, now time.Time) error {
	deadline := now.Add(time.Duration(cfg.Trigger.GracePeriodDays) * 24 * time.Hour)
	cfg.Trigger.UnlockScheduledAt = &deadline
	cfg.Trigger.WarningEmailSentAt = &now
	cfg.Trigger.UnlockCanceledAt = nil
	cfg.Trigger.CancelToken = token.New()

	if err := s.store.SaveCancelRecord(&domain.CancelRecord{
		Token:     cfg.Trigger.CancelToken,
		OwnerID:   cfg.OwnerID,
		CreatedAt: now,
	}); err != nil {
		return err
	}
	if err := s.configs.Save(cfg); err != nil {
		return err
	}

	s.notifier.SendInactivityWarning(cfg)

	s.log.Info("grace period started",
		zap.String("owner_id", cfg.OwnerID),
		zap.Time("unlock_scheduled_at", deadline),
	)
	return nil
}

// dropCancelRecord 删除配置当前持有的取消令牌记录（若有）。
func (s *TriggerService) dropCancelRecord(cfg *domain.LegacyConfig) {
	if cfg.Trigger.CancelToken == "" {
		return
	}
	if err := s.store.DeleteCancelRecord(cfg.Trigger.CancelToken); err != nil &&
		err != storage.ErrCancelTokenNotFound {
		s.log.Warn("failed to drop cancel record", zap.Error(err))
	}
}
