package service

import (
	"fmt"
	"strconv"
	"time"

	"go.uber.org/zap"

	"heritage/backend/internal/domain"
	"heritage/backend/internal/mailer"
	"heritage/backend/internal/monitoring"
)

// NotificationService 按上下文构建邮件载荷并调用邮件协作方。
// 发送相对状态变更是 fire-and-forget：状态已持久化，
// 发送失败仅记录日志，绝不回滚也不向上传播。
type NotificationService struct {
	mail    mailer.Mailer
	baseURL string
	metrics *monitoring.Metrics // 可为 nil（测试）
	log     *zap.Logger
}

// NewNotificationService 创建通知分发服务。
func NewNotificationService(mail mailer.Mailer, baseURL string, metrics *monitoring.Metrics, log *zap.Logger) *NotificationService {
	return &NotificationService{
		mail:    mail,
		baseURL: baseURL,
		metrics: metrics,
		log:     log,
	}
}

// SendVerification 发送受益人验证邮件。
// 上下文决定有效期表述：immediate 30 天 / manual 14 天 / unlock 永不过期。
func (s *NotificationService) SendVerification(cfg *domain.LegacyConfig, b *domain.Beneficiary) {
	vars := s.beneficiaryVars(cfg, b)
	vars["verifyUrl"] = fmt.Sprintf("%s/legacy/verify?token=%s", s.baseURL, b.VerificationToken)
	vars["expiresIn"] = expiryFraming(b.TokenExpiresAt)
	vars["context"] = string(b.NotificationContext)

	s.dispatch(mailer.Email{
		To:        b.Email,
		Subject:   fmt.Sprintf("%s 邀请您成为遗产联系人", ownerDisplay(cfg)),
		Template:  mailer.TemplateVerification,
		Variables: vars,
	})
}

// SendReminder 发送验证提醒邮件，tier 为 1-3，第 3 档标记为最终提醒。
// 最终提醒不改变受益人状态，令牌依旧永不过期。
func (s *NotificationService) SendReminder(cfg *domain.LegacyConfig, b *domain.Beneficiary, tier int) {
	vars := s.beneficiaryVars(cfg, b)
	vars["verifyUrl"] = fmt.Sprintf("%s/legacy/verify?token=%s", s.baseURL, b.VerificationToken)
	vars["reminderTier"] = strconv.Itoa(tier)
	vars["isFinal"] = strconv.FormatBool(tier == reminderTierCount)

	s.dispatch(mailer.Email{
		To:        b.Email,
		Subject:   fmt.Sprintf("提醒：请确认您作为 %s 遗产联系人的身份", ownerDisplay(cfg)),
		Template:  mailer.TemplateVerificationReminder,
		Variables: vars,
	})
	if s.metrics != nil {
		s.metrics.RemindersSent.WithLabelValues(strconv.Itoa(tier)).Inc()
	}
}

// SendConfirmation 验证成功后发送确认邮件。
func (s *NotificationService) SendConfirmation(cfg *domain.LegacyConfig, b *domain.Beneficiary) {
	vars := s.beneficiaryVars(cfg, b)
	vars["verifiedAt"] = formatTime(b.VerifiedAt)

	s.dispatch(mailer.Email{
		To:        b.Email,
		Subject:   "您已成为遗产联系人",
		Template:  mailer.TemplateVerificationConfirmation,
		Variables: vars,
	})
}

// SendUnlockNotification 向已验证受益人发送含访问链接的解锁通知。
func (s *NotificationService) SendUnlockNotification(cfg *domain.LegacyConfig, b *domain.Beneficiary, token *domain.UnlockToken) {
	vars := s.beneficiaryVars(cfg, b)
	vars["accessUrl"] = fmt.Sprintf("%s/legacy/unlock/%s", s.baseURL, token.TokenID)
	vars["unlockType"] = string(token.UnlockType)
	vars["unlockedAt"] = token.CreatedAt.Format("2006-01-02")

	s.dispatch(mailer.Email{
		To:        b.Email,
		Subject:   fmt.Sprintf("%s 的遗产内容已向您开放", ownerDisplay(cfg)),
		Template:  mailer.TemplateUnlockNotification,
		Variables: vars,
	})
}

// SendInactivityWarning 向所有者本人发送不活跃警告，附取消链接。
func (s *NotificationService) SendInactivityWarning(cfg *domain.LegacyConfig) {
	if cfg.OwnerEmail == "" {
		s.log.Warn("cannot send inactivity warning: owner email unknown",
			zap.String("owner_id", cfg.OwnerID))
		return
	}

	vars := map[string]string{
		"ownerName":       ownerDisplay(cfg),
		"scheduledAt":     formatTime(cfg.Trigger.UnlockScheduledAt),
		"cancelUrl":       fmt.Sprintf("%s/legacy/cancel-unlock?token=%s", s.baseURL, cfg.Trigger.CancelToken),
		"gracePeriodDays": strconv.Itoa(cfg.Trigger.GracePeriodDays),
	}

	s.dispatch(mailer.Email{
		To:        cfg.OwnerEmail,
		Subject:   "账户长期未活动：遗产访问即将开启",
		Template:  mailer.TemplateInactivityWarning,
		Variables: vars,
	})
	if s.metrics != nil {
		s.metrics.WarningsSent.Inc()
	}
}

// dispatch 调用邮件协作方，失败记为警告。
func (s *NotificationService) dispatch(email mailer.Email) {
	if err := s.mail.Send(email); err != nil {
		s.log.Warn("email dispatch failed (state already committed)",
			zap.String("to", email.To),
			zap.String("template", email.Template),
			zap.Error(err),
		)
		if s.metrics != nil {
			s.metrics.EmailsFailedTotal.WithLabelValues(email.Template).Inc()
		}
		return
	}
	if s.metrics != nil {
		s.metrics.EmailsSentTotal.WithLabelValues(email.Template).Inc()
	}
}

// beneficiaryVars 组装受益人邮件的公共变量。
func (s *NotificationService) beneficiaryVars(cfg *domain.LegacyConfig, b *domain.Beneficiary) map[string]string {
	vars := map[string]string{
		"beneficiaryName":  b.Name,
		"beneficiaryEmail": b.Email,
		"ownerName":        ownerDisplay(cfg),
	}
	if b.PersonalMessage != "" {
		vars["personalMessage"] = b.PersonalMessage
	}
	return vars
}

// ownerDisplay 所有者显示名，目前只有账户邮箱可用。
func ownerDisplay(cfg *domain.LegacyConfig) string {
	if cfg.OwnerEmail != "" {
		return cfg.OwnerEmail
	}
	return cfg.OwnerID
}

// expiryFraming 生成"过期时间或永不过期"的表述。
func expiryFraming(expiresAt *time.Time) string {
	if expiresAt == nil {
		return "永不过期"
	}
	return expiresAt.Format("2006-01-02")
}

// formatTime 可空时间的显示格式。
func formatTime(t *time.Time) string {
	if t == nil {
		return ""
	}
	return t.Format("2006-01-02")
}
