package mailer

import (
	"fmt"
	"sort"
	"strings"

	"go.uber.org/zap"
	"gopkg.in/gomail.v2"
)

// SMTPMailer 通过 SMTP 中继发送邮件。
type SMTPMailer struct {
	host     string
	port     int
	username string
	password string
	from     string
	log      *zap.Logger
}

// NewSMTPMailer 创建 SMTP 邮件实现。
func NewSMTPMailer(host string, port int, username, password, from string, log *zap.Logger) *SMTPMailer {
	return &SMTPMailer{
		host:     host,
		port:     port,
		username: username,
		password: password,
		from:     from,
		log:      log,
	}
}

// Send 构造 MIME 消息并通过中继投递。
// 模板渲染在中继侧完成，这里将模板名与变量写入自定义头部。
func (m *SMTPMailer) Send(email Email) error {
	msg := gomail.NewMessage()
	msg.SetHeader("From", m.from)
	msg.SetHeader("To", email.To)
	msg.SetHeader("Subject", email.Subject)
	msg.SetHeader("X-Heritage-Template", email.Template)

	msg.SetBody("text/plain", renderFallbackBody(email))

	dialer := gomail.NewDialer(m.host, m.port, m.username, m.password)
	if m.username == "" {
		dialer.Auth = nil
	}

	if err := dialer.DialAndSend(msg); err != nil {
		m.log.Warn("smtp delivery failed",
			zap.String("to", email.To),
			zap.String("template", email.Template),
			zap.Error(err),
		)
		return fmt.Errorf("%w: %v", ErrSendFailed, err)
	}
	return nil
}

// renderFallbackBody 生成纯文本兜底正文：按键名排序列出全部变量。
func renderFallbackBody(email Email) string {
	keys := make([]string, 0, len(email.Variables))
	for k := range email.Variables {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var b strings.Builder
	fmt.Fprintf(&b, "[%s]\n", email.Template)
	for _, k := range keys {
		fmt.Fprintf(&b, "%s: %s\n", k, email.Variables[k])
	}
	return b.String()
}
