package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testSecret = "unit-test-secret-key-32-characters!!"

func TestLoad(t *testing.T) {
	t.Run("默认配置加载成功", func(t *testing.T) {
		t.Setenv("HERITAGE_JWT_SECRET", testSecret)

		cfg, err := Load()
		require.NoError(t, err)

		assert.Equal(t, "0.0.0.0", cfg.Server.Host)
		assert.Equal(t, 8080, cfg.Server.Port)
		assert.Equal(t, "https://heritage.local", cfg.Legacy.BaseURL)
		assert.Equal(t, time.Hour, cfg.Legacy.SweepInterval)
		assert.Equal(t, 24*time.Hour, cfg.Legacy.ReminderInterval)
		assert.Equal(t, "log", cfg.Mail.Driver)
		assert.Equal(t, []string{"*"}, cfg.CORS.AllowedOrigins)
		assert.Empty(t, cfg.Database.Type)
		assert.False(t, cfg.Redis.Enabled)
	})

	t.Run("环境变量覆盖默认值", func(t *testing.T) {
		t.Setenv("HERITAGE_JWT_SECRET", testSecret)
		t.Setenv("HERITAGE_SERVER_PORT", "9090")
		t.Setenv("HERITAGE_LEGACY_BASE_URL", "https://vault.example.com/")
		t.Setenv("HERITAGE_LEGACY_SWEEP_INTERVAL", "30m")
		t.Setenv("HERITAGE_CORS_ALLOWED_ORIGINS", "https://a.example.com, https://b.example.com")

		cfg, err := Load()
		require.NoError(t, err)

		assert.Equal(t, 9090, cfg.Server.Port)
		assert.Equal(t, "https://vault.example.com", cfg.Legacy.BaseURL, "基址尾部斜杠被去除")
		assert.Equal(t, 30*time.Minute, cfg.Legacy.SweepInterval)
		assert.Equal(t, []string{"https://a.example.com", "https://b.example.com"}, cfg.CORS.AllowedOrigins)
	})

	t.Run("默认 JWT secret 被拒绝", func(t *testing.T) {
		t.Setenv("HERITAGE_JWT_SECRET", "change-me-in-production")

		_, err := Load()
		assert.Error(t, err)
	})

	t.Run("过短的 JWT secret 被拒绝", func(t *testing.T) {
		t.Setenv("HERITAGE_JWT_SECRET", "short")

		_, err := Load()
		assert.Error(t, err)
	})

	t.Run("非法邮件驱动被拒绝", func(t *testing.T) {
		t.Setenv("HERITAGE_JWT_SECRET", testSecret)
		t.Setenv("HERITAGE_MAIL_DRIVER", "sendmail")

		_, err := Load()
		assert.Error(t, err)
	})

	t.Run("非法扫描间隔被拒绝", func(t *testing.T) {
		t.Setenv("HERITAGE_JWT_SECRET", testSecret)
		t.Setenv("HERITAGE_LEGACY_SWEEP_INTERVAL", "often")

		_, err := Load()
		assert.Error(t, err)
	})
}
