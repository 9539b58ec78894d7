package mailer

import (
	"errors"

	"go.uber.org/zap"
)

// 模板名称，HTML 渲染由邮件协作方负责，本系统只负责选模板、填变量
const (
	TemplateVerification             = "verification"
	TemplateVerificationReminder     = "verification-reminder"
	TemplateVerificationConfirmation = "verification-confirmation"
	TemplateUnlockNotification       = "unlock-notification"
	TemplateInactivityWarning        = "inactivity-warning"
)

// ErrSendFailed 邮件发送失败
var ErrSendFailed = errors.New("email send failed")

// Email 一封待发送邮件的数据载荷
type Email struct {
	To        string
	Subject   string
	Template  string
	Variables map[string]string
}

// Mailer 出站邮件协作方接口。
// 发送失败不回滚状态变更，调用方仅记录日志（见 service 层）。
type Mailer interface {
	Send(email Email) error
}

// LogMailer 开发模式实现：不真正发信，仅输出日志。
type LogMailer struct {
	log *zap.Logger
}

// NewLogMailer 创建日志邮件实现。
func NewLogMailer(log *zap.Logger) *LogMailer {
	return &LogMailer{log: log}
}

// Send 记录一条发送日志。
func (m *LogMailer) Send(email Email) error {
	fields := []zap.Field{
		zap.String("to", email.To),
		zap.String("subject", email.Subject),
		zap.String("template", email.Template),
	}
	for k, v := range email.Variables {
		fields = append(fields, zap.String("var_"+k, v))
	}
	m.log.Info("email (log driver, not sent)", fields...)
	return nil
}
