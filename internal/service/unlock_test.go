package service

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"heritage/backend/internal/domain"
	"heritage/backend/internal/mailer"
)

func TestUnlockService_Fire(t *testing.T) {
	t.Run("pending_unlock 受益人获得永不过期的验证令牌", func(t *testing.T) {
		env := newTestEnv()
		env.addVerified("owner-1", "owner@example.com", "Carol", "carol@example.com")
		_, err := env.beneficiaries.Add("owner-1", "owner@example.com", AddBeneficiaryInput{
			Name: "Alice", Email: "alice@example.com",
		})
		require.NoError(t, err)
		env.mail.reset()

		cfg, err := env.configs.GetOrCreate("owner-1", "owner@example.com")
		require.NoError(t, err)
		require.NoError(t, env.unlocks.Fire(cfg, domain.UnlockGracePeriodExpired))

		list, _ := env.beneficiaries.List("owner-1", "owner@example.com")
		var alice *domain.Beneficiary
		for i := range list {
			if list[i].Email == "alice@example.com" {
				alice = &list[i]
			}
		}
		require.NotNil(t, alice)
		assert.Equal(t, domain.StatusPending, alice.Status)
		assert.Equal(t, domain.ContextUnlock, alice.NotificationContext)
		assert.Nil(t, alice.TokenExpiresAt, "解锁上下文令牌永不过期")

		emails := env.mail.byTemplate(mailer.TemplateVerification)
		require.Len(t, emails, 1)
		assert.Equal(t, "永不过期", emails[0].Variables["expiresIn"])
	})

	t.Run("verified 受益人立即获得解锁令牌与权限快照", func(t *testing.T) {
		env := newTestEnv()
		b, err := env.beneficiaries.Add("owner-1", "owner@example.com", AddBeneficiaryInput{
			Name:  "Bob",
			Email: "bob@example.com",
			FolderPermissions: map[string]domain.FolderPermission{
				"folder-1": domain.PermissionView,
			},
			NotificationTiming: domain.TimingImmediate,
		})
		require.NoError(t, err)
		_, err = env.beneficiaries.Verify(b.VerificationToken)
		require.NoError(t, err)

		cfg, err := env.configs.GetOrCreate("owner-1", "owner@example.com")
		require.NoError(t, err)
		require.NoError(t, env.unlocks.Fire(cfg, domain.UnlockGracePeriodExpired))

		tokens, err := env.unlocks.ListTokens("owner-1")
		require.NoError(t, err)
		require.Len(t, tokens, 1)
		assert.Equal(t, domain.PermissionView, tokens[0].FolderPermissions["folder-1"])
		assert.Nil(t, tokens[0].UsedAt)
	})

	t.Run("revoked 受益人不参与解锁", func(t *testing.T) {
		env := newTestEnv()
		env.addVerified("owner-1", "owner@example.com", "Carol", "carol@example.com")
		b, err := env.beneficiaries.Add("owner-1", "owner@example.com", AddBeneficiaryInput{
			Name: "Alice", Email: "alice@example.com",
		})
		require.NoError(t, err)
		require.NoError(t, env.beneficiaries.Remove("owner-1", b.ID))
		env.mail.reset()

		cfg, err := env.configs.GetOrCreate("owner-1", "owner@example.com")
		require.NoError(t, err)
		require.NoError(t, env.unlocks.Fire(cfg, domain.UnlockGracePeriodExpired))

		assert.Empty(t, env.mail.byTemplate(mailer.TemplateVerification))
	})

	t.Run("事件后设置 UnlockTriggeredAt", func(t *testing.T) {
		env := newTestEnv()
		env.addVerified("owner-1", "owner@example.com", "Carol", "carol@example.com")

		cfg, err := env.configs.GetOrCreate("owner-1", "owner@example.com")
		require.NoError(t, err)
		require.NoError(t, env.unlocks.Fire(cfg, domain.UnlockUserTriggered))

		cfg, _ = env.configs.GetOrCreate("owner-1", "owner@example.com")
		require.NotNil(t, cfg.Trigger.UnlockTriggeredAt)
		assert.Equal(t, env.now, *cfg.Trigger.UnlockTriggeredAt)
	})
}

func TestUnlockService_TriggerUserUnlock(t *testing.T) {
	t.Run("主动解锁签发 user_triggered 令牌", func(t *testing.T) {
		env := newTestEnv()
		env.addVerified("owner-1", "owner@example.com", "Carol", "carol@example.com")

		require.NoError(t, env.unlocks.TriggerUserUnlock("owner-1", "owner@example.com"))

		tokens, err := env.unlocks.ListTokens("owner-1")
		require.NoError(t, err)
		require.Len(t, tokens, 1)
		assert.Equal(t, domain.UnlockUserTriggered, tokens[0].UnlockType)
	})

	t.Run("重复主动解锁幂等", func(t *testing.T) {
		env := newTestEnv()
		env.addVerified("owner-1", "owner@example.com", "Carol", "carol@example.com")

		require.NoError(t, env.unlocks.TriggerUserUnlock("owner-1", "owner@example.com"))
		require.NoError(t, env.unlocks.TriggerUserUnlock("owner-1", "owner@example.com"))

		tokens, _ := env.unlocks.ListTokens("owner-1")
		assert.Len(t, tokens, 1)
	})
}

func TestUnlockService_ValidateUnlockToken(t *testing.T) {
	issue := func(t *testing.T, env *testEnv) string {
		t.Helper()
		env.addVerified("owner-1", "owner@example.com", "Carol", "carol@example.com")
		require.NoError(t, env.unlocks.TriggerUserUnlock("owner-1", "owner@example.com"))
		tokens, err := env.unlocks.ListTokens("owner-1")
		require.NoError(t, err)
		require.Len(t, tokens, 1)
		return tokens[0].TokenID
	}

	t.Run("首次兑换写入 UsedAt 并返回授权", func(t *testing.T) {
		env := newTestEnv()
		tokenID := issue(t, env)

		env.advance(48 * time.Hour)
		grant, err := env.unlocks.ValidateUnlockToken(tokenID)
		require.NoError(t, err)

		assert.Equal(t, "owner-1", grant.OwnerID)
		assert.Equal(t, "Carol", grant.BeneficiaryName)
		assert.Equal(t, domain.UnlockUserTriggered, grant.UnlockType)
		assert.Equal(t, env.now, grant.FirstUsedAt)
	})

	t.Run("UsedAt 只写一次且令牌可重复兑换", func(t *testing.T) {
		env := newTestEnv()
		tokenID := issue(t, env)

		first, err := env.unlocks.ValidateUnlockToken(tokenID)
		require.NoError(t, err)

		env.advance(30 * 24 * time.Hour)
		second, err := env.unlocks.ValidateUnlockToken(tokenID)
		require.NoError(t, err)
		assert.Equal(t, first.FirstUsedAt, second.FirstUsedAt)
	})

	t.Run("延迟验证的受益人在解锁很久之后仍可完成全流程", func(t *testing.T) {
		env := newTestEnv()
		fireDeferred(t, env)

		// 解锁 400 天后 Alice 才处理邮件
		env.advance(400 * 24 * time.Hour)
		list, err := env.beneficiaries.List("owner-1", "owner@example.com")
		require.NoError(t, err)
		var tokenValue string
		for _, b := range list {
			if b.Email == "alice@example.com" {
				tokenValue = b.VerificationToken
			}
		}
		require.NotEmpty(t, tokenValue)

		verified, err := env.beneficiaries.Verify(tokenValue)
		require.NoError(t, err)
		assert.Equal(t, domain.StatusVerified, verified.Status)
	})

	t.Run("未知令牌返回 ErrTokenNotFound", func(t *testing.T) {
		env := newTestEnv()
		_, err := env.unlocks.ValidateUnlockToken("missing")
		assert.Equal(t, ErrTokenNotFound, err)
	})
}
