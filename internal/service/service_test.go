package service

import (
	"sync"
	"time"

	"go.uber.org/zap"

	"heritage/backend/internal/domain"
	"heritage/backend/internal/mailer"
	"heritage/backend/internal/storage/memory"
)

// captureMailer 记录发出的邮件，供测试断言。
type captureMailer struct {
	mu     sync.Mutex
	emails []mailer.Email
	fail   bool
}

func (m *captureMailer) Send(email mailer.Email) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.fail {
		return mailer.ErrSendFailed
	}
	m.emails = append(m.emails, email)
	return nil
}

func (m *captureMailer) sent() []mailer.Email {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]mailer.Email(nil), m.emails...)
}

func (m *captureMailer) byTemplate(template string) []mailer.Email {
	var out []mailer.Email
	for _, e := range m.sent() {
		if e.Template == template {
			out = append(out, e)
		}
	}
	return out
}

func (m *captureMailer) reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.emails = nil
}

// testEnv 组装一套基于内存存储与可控时钟的服务。
type testEnv struct {
	store         *memory.Store
	mail          *captureMailer
	configs       *LegacyConfigService
	beneficiaries *BeneficiaryService
	triggers      *TriggerService
	unlocks       *UnlockService
	sweeps        *SweepService
	now           time.Time
}

func newTestEnv() *testEnv {
	log := zap.NewNop()
	store := memory.NewStore()
	mail := &captureMailer{}

	configs := NewLegacyConfigService(store, log)
	notifier := NewNotificationService(mail, "https://heritage.example.com", nil, log)
	beneficiaries := NewBeneficiaryService(store, configs, notifier, nil, log)
	unlocks := NewUnlockService(store, configs, notifier, nil, log)
	triggers := NewTriggerService(store, configs, notifier, unlocks, nil, log)
	sweeps := NewSweepService(store, triggers, notifier, nil, log)

	env := &testEnv{
		store:         store,
		mail:          mail,
		configs:       configs,
		beneficiaries: beneficiaries,
		triggers:      triggers,
		unlocks:       unlocks,
		sweeps:        sweeps,
		now:           time.Date(2025, 1, 1, 12, 0, 0, 0, time.UTC),
	}
	clock := func() time.Time { return env.now }
	configs.SetNow(clock)
	beneficiaries.SetNow(clock)
	triggers.SetNow(clock)
	unlocks.SetNow(clock)
	sweeps.SetNow(clock)
	return env
}

// advance 前进模拟时钟。
func (e *testEnv) advance(d time.Duration) {
	e.now = e.now.Add(d)
}

// addVerified 添加一个立即通知的受益人并完成验证。
func (e *testEnv) addVerified(ownerID, ownerEmail, name, email string) *domain.Beneficiary {
	b, err := e.beneficiaries.Add(ownerID, ownerEmail, AddBeneficiaryInput{
		Name:               name,
		Email:              email,
		NotificationTiming: domain.TimingImmediate,
	})
	if err != nil {
		panic(err)
	}
	verified, err := e.beneficiaries.Verify(b.VerificationToken)
	if err != nil {
		panic(err)
	}
	return verified
}
