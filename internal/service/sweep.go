package service

import (
	"time"

	"go.uber.org/zap"

	"heritage/backend/internal/domain"
	"heritage/backend/internal/monitoring"
	"heritage/backend/internal/storage"
)

// 提醒升级档位：通知后第 7/14/30 天各一封，第 3 档为最终提醒。
// 按"天数已达阈值且该档未发"判定，漏扫一天只会合并而不会丢档。
var reminderDayThresholds = [...]int{7, 14, 30}

const reminderTierCount = len(reminderDayThresholds)

// SweepService 驱动周期性扫描：不活跃评估与验证提醒升级。
// 单个所有者的失败只记录日志并跳过，不中断整轮扫描。
type SweepService struct {
	store    storage.Store
	triggers *TriggerService
	notifier *NotificationService
	metrics  *monitoring.Metrics // 可为 nil（测试）
	log      *zap.Logger
	now      func() time.Time
}

// NewSweepService 创建扫描服务。
func NewSweepService(store storage.Store, triggers *TriggerService, notifier *NotificationService, metrics *monitoring.Metrics, log *zap.Logger) *SweepService {
	return &SweepService{
		store:    store,
		triggers: triggers,
		notifier: notifier,
		metrics:  metrics,
		log:      log,
		now:      func() time.Time { return time.Now().UTC() },
	}
}

// SetNow 注入时钟，测试用。
func (s *SweepService) SetNow(now func() time.Time) {
	s.now = now
}

// InactivitySummary 一轮不活跃扫描的结果汇总。
type InactivitySummary struct {
	ConfigsChecked   int `json:"configsChecked"`
	WarningsSent     int `json:"warningsSent"`
	UnlocksTriggered int `json:"unlocksTriggered"`
	Failures         int `json:"failures"`
}

// InactivitySweep 遍历全部配置并逐个评估解锁条件。
func (s *SweepService) InactivitySweep() (*InactivitySummary, error) {
	configs, err := s.store.ListConfigs()
	if err != nil {
		return nil, err
	}

	summary := &InactivitySummary{}
	for _, cfg := range configs {
		summary.ConfigsChecked++
		warned, unlocked, err := s.triggers.EvaluateOwner(cfg)
		if err != nil {
			summary.Failures++
			s.log.Error("owner evaluation failed",
				zap.String("owner_id", cfg.OwnerID), zap.Error(err))
			continue
		}
		if warned {
			summary.WarningsSent++
		}
		if unlocked {
			summary.UnlocksTriggered++
		}
	}

	if s.metrics != nil {
		s.metrics.SweepRunsTotal.WithLabelValues("inactivity").Inc()
	}
	s.log.Info("inactivity sweep finished",
		zap.Int("configs_checked", summary.ConfigsChecked),
		zap.Int("warnings_sent", summary.WarningsSent),
		zap.Int("unlocks_triggered", summary.UnlocksTriggered),
		zap.Int("failures", summary.Failures),
	)
	return summary, nil
}

// ReminderSummary 一轮提醒扫描的结果汇总。
type ReminderSummary struct {
	ConfigsChecked int `json:"configsChecked"`
	RemindersSent  int `json:"remindersSent"`
	Failures       int `json:"failures"`
}

// ReminderSweep 对解锁事件中进入验证流程、仍未确认的受益人升级提醒。
// 仅覆盖 unlock 上下文：immediate/manual 的令牌有有效期，到期即失效，
// 不做提醒追发。
func (s *SweepService) ReminderSweep() (*ReminderSummary, error) {
	configs, err := s.store.ListConfigs()
	if err != nil {
		return nil, err
	}

	summary := &ReminderSummary{}
	for _, cfg := range configs {
		summary.ConfigsChecked++
		sent, err := s.remindOwner(cfg)
		if err != nil {
			summary.Failures++
			s.log.Error("reminder evaluation failed",
				zap.String("owner_id", cfg.OwnerID), zap.Error(err))
			continue
		}
		summary.RemindersSent += sent
	}

	if s.metrics != nil {
		s.metrics.SweepRunsTotal.WithLabelValues("reminders").Inc()
	}
	s.log.Info("reminder sweep finished",
		zap.Int("configs_checked", summary.ConfigsChecked),
		zap.Int("reminders_sent", summary.RemindersSent),
		zap.Int("failures", summary.Failures),
	)
	return summary, nil
}

// remindOwner 处理单个配置下所有待提醒的受益人。
func (s *SweepService) remindOwner(cfg *domain.LegacyConfig) (int, error) {
	now := s.now()
	sent := 0
	dirty := false

	for i := range cfg.Beneficiaries {
		b := &cfg.Beneficiaries[i]
		if b.Status != domain.StatusPending ||
			b.NotificationContext != domain.ContextUnlock ||
			b.NotificationSentAt == nil {
			continue
		}

		days := int(now.Sub(*b.NotificationSentAt) / (24 * time.Hour))
		tier := dueTier(days)
		if tier <= b.ReminderTier {
			continue
		}

		s.notifier.SendReminder(cfg, b, tier)
		b.ReminderTier = tier
		dirty = true
		sent++
	}

	if dirty {
		if err := s.store.SaveConfig(cfg); err != nil {
			return sent, err
		}
	}
	return sent, nil
}

// dueTier 返回给定通知后天数应达到的提醒档位（0 表示未到第一档）。
func dueTier(days int) int {
	tier := 0
	for i, threshold := range reminderDayThresholds {
		if days >= threshold {
			tier = i + 1
		}
	}
	return tier
}
