package memory

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"heritage/backend/internal/domain"
	"heritage/backend/internal/storage"
)

func TestStore_Config(t *testing.T) {
	now := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)

	t.Run("保存后可按所有者读取", func(t *testing.T) {
		store := NewStore()
		cfg := domain.NewDefaultConfig("owner-1", "owner@example.com", now)
		require.NoError(t, store.SaveConfig(cfg))

		got, err := store.GetConfig("owner-1")
		require.NoError(t, err)
		assert.Equal(t, "owner-1", got.OwnerID)
		assert.Equal(t, domain.TriggerInactivity, got.Trigger.Type)
	})

	t.Run("不存在返回 ErrConfigNotFound", func(t *testing.T) {
		store := NewStore()
		_, err := store.GetConfig("missing")
		assert.Equal(t, storage.ErrConfigNotFound, err)
	})

	t.Run("读取返回深拷贝，修改不影响存储", func(t *testing.T) {
		store := NewStore()
		cfg := domain.NewDefaultConfig("owner-1", "owner@example.com", now)
		cfg.Beneficiaries = append(cfg.Beneficiaries, domain.Beneficiary{
			ID: "b-1", Name: "Alice", Email: "alice@example.com",
			Status: domain.StatusPendingUnlock,
		})
		require.NoError(t, store.SaveConfig(cfg))

		got, err := store.GetConfig("owner-1")
		require.NoError(t, err)
		got.Beneficiaries[0].Status = domain.StatusRevoked

		again, err := store.GetConfig("owner-1")
		require.NoError(t, err)
		assert.Equal(t, domain.StatusPendingUnlock, again.Beneficiaries[0].Status)
	})

	t.Run("删除后配置不存在", func(t *testing.T) {
		store := NewStore()
		require.NoError(t, store.SaveConfig(domain.NewDefaultConfig("owner-1", "owner@example.com", now)))
		require.NoError(t, store.DeleteConfig("owner-1"))

		_, err := store.GetConfig("owner-1")
		assert.Equal(t, storage.ErrConfigNotFound, err)
	})

	t.Run("ListConfigs 返回全部配置", func(t *testing.T) {
		store := NewStore()
		require.NoError(t, store.SaveConfig(domain.NewDefaultConfig("owner-1", "a@example.com", now)))
		require.NoError(t, store.SaveConfig(domain.NewDefaultConfig("owner-2", "b@example.com", now)))

		configs, err := store.ListConfigs()
		require.NoError(t, err)
		assert.Len(t, configs, 2)
	})
}

func TestStore_UnlockTokens(t *testing.T) {
	now := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)

	newToken := func(id, owner string) *domain.UnlockToken {
		return &domain.UnlockToken{
			TokenID:       id,
			UserID:        owner,
			BeneficiaryID: "b-1",
			UnlockType:    domain.UnlockGracePeriodExpired,
			CreatedAt:     now,
			ExpiresAt:     now.Add(domain.UnlockTokenLifetime),
		}
	}

	t.Run("保存后可按 ID 与所有者检索", func(t *testing.T) {
		store := NewStore()
		require.NoError(t, store.SaveUnlockToken(newToken("t-1", "owner-1")))
		require.NoError(t, store.SaveUnlockToken(newToken("t-2", "owner-1")))
		require.NoError(t, store.SaveUnlockToken(newToken("t-3", "owner-2")))

		got, err := store.GetUnlockToken("t-1")
		require.NoError(t, err)
		assert.Equal(t, "owner-1", got.UserID)

		list, err := store.ListUnlockTokensByOwner("owner-1")
		require.NoError(t, err)
		assert.Len(t, list, 2)
	})

	t.Run("重复保存同一令牌不产生重复的所有者索引", func(t *testing.T) {
		store := NewStore()
		tok := newToken("t-1", "owner-1")
		require.NoError(t, store.SaveUnlockToken(tok))

		used := now.Add(time.Hour)
		tok.UsedAt = &used
		require.NoError(t, store.SaveUnlockToken(tok))

		list, err := store.ListUnlockTokensByOwner("owner-1")
		require.NoError(t, err)
		require.Len(t, list, 1)
		require.NotNil(t, list[0].UsedAt)
		assert.Equal(t, used, *list[0].UsedAt)
	})

	t.Run("不存在返回 ErrUnlockTokenNotFound", func(t *testing.T) {
		store := NewStore()
		_, err := store.GetUnlockToken("missing")
		assert.Equal(t, storage.ErrUnlockTokenNotFound, err)
	})
}

func TestStore_VerifyTokenRefs(t *testing.T) {
	t.Run("索引的完整生命周期", func(t *testing.T) {
		store := NewStore()
		require.NoError(t, store.SaveVerifyTokenRef(&domain.VerifyTokenRef{
			Token: "vt-1", OwnerID: "owner-1", BeneficiaryID: "b-1",
		}))

		ref, err := store.GetVerifyTokenRef("vt-1")
		require.NoError(t, err)
		assert.Equal(t, "b-1", ref.BeneficiaryID)

		require.NoError(t, store.DeleteVerifyTokenRef("vt-1"))
		_, err = store.GetVerifyTokenRef("vt-1")
		assert.Equal(t, storage.ErrVerifyTokenNotFound, err)
	})

	t.Run("删除不存在的索引不报错", func(t *testing.T) {
		store := NewStore()
		assert.NoError(t, store.DeleteVerifyTokenRef("missing"))
	})
}

func TestStore_CancelRecords(t *testing.T) {
	now := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)

	t.Run("取消令牌的完整生命周期", func(t *testing.T) {
		store := NewStore()
		require.NoError(t, store.SaveCancelRecord(&domain.CancelRecord{
			Token: "ct-1", OwnerID: "owner-1", CreatedAt: now,
		}))

		rec, err := store.GetCancelRecord("ct-1")
		require.NoError(t, err)
		assert.Equal(t, "owner-1", rec.OwnerID)

		require.NoError(t, store.DeleteCancelRecord("ct-1"))
		_, err = store.GetCancelRecord("ct-1")
		assert.Equal(t, storage.ErrCancelTokenNotFound, err)
	})
}
