package service

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"heritage/backend/internal/domain"
	"heritage/backend/internal/mailer"
)

func TestBeneficiaryService_Add(t *testing.T) {
	t.Run("默认走延迟验证路径", func(t *testing.T) {
		env := newTestEnv()

		b, err := env.beneficiaries.Add("owner-1", "owner@example.com", AddBeneficiaryInput{
			Name:  "Alice",
			Email: "Alice@Example.COM",
		})
		require.NoError(t, err)

		assert.Equal(t, domain.StatusPendingUnlock, b.Status)
		assert.Equal(t, "alice@example.com", b.Email)
		assert.Empty(t, b.VerificationToken)
		assert.Empty(t, env.mail.sent(), "延迟路径不应发送任何邮件")
	})

	t.Run("立即通知签发 30 天令牌并发送验证邮件", func(t *testing.T) {
		env := newTestEnv()

		b, err := env.beneficiaries.Add("owner-1", "owner@example.com", AddBeneficiaryInput{
			Name:               "Alice",
			Email:              "alice@example.com",
			NotificationTiming: domain.TimingImmediate,
		})
		require.NoError(t, err)

		assert.Equal(t, domain.StatusPending, b.Status)
		assert.NotEmpty(t, b.VerificationToken)
		require.NotNil(t, b.TokenExpiresAt)
		assert.Equal(t, env.now.Add(30*24*time.Hour), *b.TokenExpiresAt)
		assert.Equal(t, domain.ContextImmediate, b.NotificationContext)

		emails := env.mail.byTemplate(mailer.TemplateVerification)
		require.Len(t, emails, 1)
		assert.Equal(t, "alice@example.com", emails[0].To)
		assert.Contains(t, emails[0].Variables["verifyUrl"], b.VerificationToken)
	})

	t.Run("受益人记录触发器配置快照", func(t *testing.T) {
		env := newTestEnv()

		b, err := env.beneficiaries.Add("owner-1", "owner@example.com", AddBeneficiaryInput{
			Name:  "Alice",
			Email: "alice@example.com",
		})
		require.NoError(t, err)

		assert.Equal(t, domain.TriggerInactivity, b.AddedWithTrigger.Type)
		assert.Equal(t, domain.DefaultInactivityMonths, b.AddedWithTrigger.InactivityMonths)
	})

	t.Run("禁止指定自己的账户邮箱", func(t *testing.T) {
		env := newTestEnv()

		_, err := env.beneficiaries.Add("owner-1", "owner@example.com", AddBeneficiaryInput{
			Name:  "Me",
			Email: "Owner@Example.com",
		})
		assert.Equal(t, ErrSelfDesignation, err)
	})

	t.Run("同一邮箱不允许重复的未撤销受益人", func(t *testing.T) {
		env := newTestEnv()

		_, err := env.beneficiaries.Add("owner-1", "owner@example.com", AddBeneficiaryInput{
			Name: "Alice", Email: "alice@example.com",
		})
		require.NoError(t, err)

		_, err = env.beneficiaries.Add("owner-1", "owner@example.com", AddBeneficiaryInput{
			Name: "Alice again", Email: "ALICE@example.com",
		})
		assert.Equal(t, ErrDuplicateBeneficiary, err)
	})

	t.Run("撤销后同一邮箱可以重新添加", func(t *testing.T) {
		env := newTestEnv()

		b, err := env.beneficiaries.Add("owner-1", "owner@example.com", AddBeneficiaryInput{
			Name: "Alice", Email: "alice@example.com",
		})
		require.NoError(t, err)
		require.NoError(t, env.beneficiaries.Remove("owner-1", b.ID))

		_, err = env.beneficiaries.Add("owner-1", "owner@example.com", AddBeneficiaryInput{
			Name: "Alice", Email: "alice@example.com",
		})
		assert.NoError(t, err)
	})
}

func TestBeneficiaryService_Remove(t *testing.T) {
	t.Run("撤销保留审计记录", func(t *testing.T) {
		env := newTestEnv()

		b, err := env.beneficiaries.Add("owner-1", "owner@example.com", AddBeneficiaryInput{
			Name: "Alice", Email: "alice@example.com",
		})
		require.NoError(t, err)
		require.NoError(t, env.beneficiaries.Remove("owner-1", b.ID))

		list, err := env.beneficiaries.List("owner-1", "owner@example.com")
		require.NoError(t, err)
		require.Len(t, list, 1)
		assert.Equal(t, domain.StatusRevoked, list[0].Status)
		assert.NotNil(t, list[0].RevokedAt)
	})

	t.Run("撤销后验证令牌立即失效", func(t *testing.T) {
		env := newTestEnv()

		b, err := env.beneficiaries.Add("owner-1", "owner@example.com", AddBeneficiaryInput{
			Name:               "Alice",
			Email:              "alice@example.com",
			NotificationTiming: domain.TimingImmediate,
		})
		require.NoError(t, err)
		tokenValue := b.VerificationToken

		require.NoError(t, env.beneficiaries.Remove("owner-1", b.ID))

		_, err = env.beneficiaries.Verify(tokenValue)
		assert.Equal(t, ErrTokenNotFound, err)
	})

	t.Run("不存在的受益人返回 ErrBeneficiaryNotFound", func(t *testing.T) {
		env := newTestEnv()
		_, err := env.beneficiaries.List("owner-1", "owner@example.com")
		require.NoError(t, err)

		err = env.beneficiaries.Remove("owner-1", "missing")
		assert.Equal(t, ErrBeneficiaryNotFound, err)
	})
}

func TestBeneficiaryService_Verify(t *testing.T) {
	t.Run("有效令牌完成验证并发送确认邮件", func(t *testing.T) {
		env := newTestEnv()

		b, err := env.beneficiaries.Add("owner-1", "owner@example.com", AddBeneficiaryInput{
			Name:               "Alice",
			Email:              "alice@example.com",
			NotificationTiming: domain.TimingImmediate,
		})
		require.NoError(t, err)

		verified, err := env.beneficiaries.Verify(b.VerificationToken)
		require.NoError(t, err)
		assert.Equal(t, domain.StatusVerified, verified.Status)
		assert.Empty(t, verified.VerificationToken)
		require.NotNil(t, verified.VerifiedAt)
		assert.Equal(t, env.now, *verified.VerifiedAt)
		assert.Len(t, env.mail.byTemplate(mailer.TemplateVerificationConfirmation), 1)
	})

	t.Run("令牌只能使用一次", func(t *testing.T) {
		env := newTestEnv()

		b, err := env.beneficiaries.Add("owner-1", "owner@example.com", AddBeneficiaryInput{
			Name:               "Alice",
			Email:              "alice@example.com",
			NotificationTiming: domain.TimingImmediate,
		})
		require.NoError(t, err)
		tokenValue := b.VerificationToken

		_, err = env.beneficiaries.Verify(tokenValue)
		require.NoError(t, err)

		_, err = env.beneficiaries.Verify(tokenValue)
		assert.Equal(t, ErrTokenNotFound, err)
	})

	t.Run("过期令牌返回 ErrTokenExpired", func(t *testing.T) {
		env := newTestEnv()

		b, err := env.beneficiaries.Add("owner-1", "owner@example.com", AddBeneficiaryInput{
			Name:               "Alice",
			Email:              "alice@example.com",
			NotificationTiming: domain.TimingImmediate,
		})
		require.NoError(t, err)

		env.advance(31 * 24 * time.Hour)
		_, err = env.beneficiaries.Verify(b.VerificationToken)
		assert.Equal(t, ErrTokenExpired, err)
	})

	t.Run("第 29 天令牌仍然有效", func(t *testing.T) {
		env := newTestEnv()

		b, err := env.beneficiaries.Add("owner-1", "owner@example.com", AddBeneficiaryInput{
			Name:               "Alice",
			Email:              "alice@example.com",
			NotificationTiming: domain.TimingImmediate,
		})
		require.NoError(t, err)

		env.advance(29 * 24 * time.Hour)
		_, err = env.beneficiaries.Verify(b.VerificationToken)
		assert.NoError(t, err)
	})

	t.Run("未知令牌返回 ErrTokenNotFound", func(t *testing.T) {
		env := newTestEnv()
		_, err := env.beneficiaries.Verify("no-such-token")
		assert.Equal(t, ErrTokenNotFound, err)
	})
}

func TestBeneficiaryService_SendNotification(t *testing.T) {
	t.Run("手动通知 pending_unlock 受益人签发 14 天令牌", func(t *testing.T) {
		env := newTestEnv()

		b, err := env.beneficiaries.Add("owner-1", "owner@example.com", AddBeneficiaryInput{
			Name: "Alice", Email: "alice@example.com",
		})
		require.NoError(t, err)
		require.NoError(t, env.beneficiaries.SendNotification("owner-1", b.ID))

		list, err := env.beneficiaries.List("owner-1", "owner@example.com")
		require.NoError(t, err)
		got := list[0]
		assert.Equal(t, domain.StatusPending, got.Status)
		assert.Equal(t, domain.ContextManual, got.NotificationContext)
		require.NotNil(t, got.TokenExpiresAt)
		assert.Equal(t, env.now.Add(14*24*time.Hour), *got.TokenExpiresAt)
		assert.Len(t, env.mail.byTemplate(mailer.TemplateVerification), 1)
	})

	t.Run("已在验证中的受益人返回 ErrInvalidState", func(t *testing.T) {
		env := newTestEnv()

		b, err := env.beneficiaries.Add("owner-1", "owner@example.com", AddBeneficiaryInput{
			Name:               "Alice",
			Email:              "alice@example.com",
			NotificationTiming: domain.TimingImmediate,
		})
		require.NoError(t, err)

		err = env.beneficiaries.SendNotification("owner-1", b.ID)
		assert.Equal(t, ErrInvalidState, err)
	})
}

func TestBeneficiaryService_ResendVerification(t *testing.T) {
	t.Run("重发换发新令牌并作废旧令牌", func(t *testing.T) {
		env := newTestEnv()

		b, err := env.beneficiaries.Add("owner-1", "owner@example.com", AddBeneficiaryInput{
			Name:               "Alice",
			Email:              "alice@example.com",
			NotificationTiming: domain.TimingImmediate,
		})
		require.NoError(t, err)
		oldToken := b.VerificationToken

		require.NoError(t, env.beneficiaries.ResendVerification("owner-1", b.ID))

		_, err = env.beneficiaries.Verify(oldToken)
		assert.Equal(t, ErrTokenNotFound, err)

		list, _ := env.beneficiaries.List("owner-1", "owner@example.com")
		newToken := list[0].VerificationToken
		assert.NotEqual(t, oldToken, newToken)

		_, err = env.beneficiaries.Verify(newToken)
		assert.NoError(t, err)
	})

	t.Run("已验证的受益人不能重发", func(t *testing.T) {
		env := newTestEnv()
		b := env.addVerified("owner-1", "owner@example.com", "Alice", "alice@example.com")

		err := env.beneficiaries.ResendVerification("owner-1", b.ID)
		assert.Equal(t, ErrInvalidState, err)
	})
}

func TestBeneficiaryService_UpdateEmail(t *testing.T) {
	t.Run("修改邮箱记录历史并强制重新验证", func(t *testing.T) {
		env := newTestEnv()
		b := env.addVerified("owner-1", "owner@example.com", "Alice", "alice@example.com")
		env.mail.reset()

		require.NoError(t, env.beneficiaries.UpdateEmail("owner-1", b.ID, "New-Alice@Example.com"))

		list, _ := env.beneficiaries.List("owner-1", "owner@example.com")
		got := list[0]
		assert.Equal(t, "new-alice@example.com", got.Email)
		assert.Equal(t, domain.StatusPending, got.Status)
		assert.Nil(t, got.VerifiedAt)
		require.Len(t, got.EmailHistory, 1)
		assert.Equal(t, "alice@example.com", got.EmailHistory[0].OldEmail)
		assert.Equal(t, "new-alice@example.com", got.EmailHistory[0].NewEmail)
		assert.Len(t, env.mail.byTemplate(mailer.TemplateVerification), 1)
	})

	t.Run("新邮箱不能与其他未撤销受益人重复", func(t *testing.T) {
		env := newTestEnv()
		b := env.addVerified("owner-1", "owner@example.com", "Alice", "alice@example.com")
		_, err := env.beneficiaries.Add("owner-1", "owner@example.com", AddBeneficiaryInput{
			Name: "Bob", Email: "bob@example.com",
		})
		require.NoError(t, err)

		err = env.beneficiaries.UpdateEmail("owner-1", b.ID, "bob@example.com")
		assert.Equal(t, ErrDuplicateBeneficiary, err)
	})

	t.Run("新邮箱不能是所有者自己的邮箱", func(t *testing.T) {
		env := newTestEnv()
		b := env.addVerified("owner-1", "owner@example.com", "Alice", "alice@example.com")

		err := env.beneficiaries.UpdateEmail("owner-1", b.ID, "owner@example.com")
		assert.Equal(t, ErrSelfDesignation, err)
	})
}
