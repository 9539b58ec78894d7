package httptransport

import (
	"time"

	gincors "github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/heptiolabs/healthcheck"
	"go.uber.org/zap"

	jwtpkg "heritage/backend/internal/auth/jwt"
	"heritage/backend/internal/config"
	"heritage/backend/internal/middleware"
	"heritage/backend/internal/monitoring"
	"heritage/backend/internal/service"
)

// RouterDependencies 路由器依赖项
type RouterDependencies struct {
	Config             *config.Config
	ConfigService      *service.LegacyConfigService
	BeneficiaryService *service.BeneficiaryService
	TriggerService     *service.TriggerService
	UnlockService      *service.UnlockService
	SweepService       *service.SweepService
	JWTManager         *jwtpkg.Manager
	Metrics            *monitoring.Metrics
	Health             healthcheck.Handler
	Logger             *zap.Logger
}

// NewRouter 创建并返回 Gin 路由实例。
func NewRouter(deps RouterDependencies) *gin.Engine {
	router := gin.New()

	router.Use(middleware.RecoveryHandler(deps.Logger))
	router.Use(middleware.RequestLogger(deps.Logger))
	router.Use(middleware.SecurityHeaders())
	if deps.Metrics != nil {
		router.Use(deps.Metrics.GinMiddleware())
	}

	// CORS 配置
	corsConfig := gincors.Config{
		AllowOrigins:     deps.Config.CORS.AllowedOrigins,
		AllowMethods:     []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Accept", "Authorization"},
		ExposeHeaders:    []string{"Content-Length"},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}

	// 如果允许所有来源，则需清空凭证支持。
	for _, origin := range corsConfig.AllowOrigins {
		if origin == "*" {
			corsConfig.AllowCredentials = false
			break
		}
	}
	router.Use(gincors.New(corsConfig))

	legacyHandler := NewLegacyHandler(deps.ConfigService, deps.BeneficiaryService, deps.TriggerService, deps.UnlockService)
	publicHandler := NewPublicHandler(deps.BeneficiaryService, deps.TriggerService, deps.UnlockService)
	sweepHandler := NewSweepHandler(deps.SweepService)

	jwtAuth := middleware.NewJWTAuth(deps.JWTManager, deps.Logger)
	publicRateLimit := middleware.RateLimitByIP(deps.Config.Legacy.PublicRatePerMinute, deps.Logger)

	// 健康检查与指标
	if deps.Health != nil {
		router.GET("/health/live", gin.WrapF(deps.Health.LiveEndpoint))
		router.GET("/health/ready", gin.WrapF(deps.Health.ReadyEndpoint))
	}
	router.GET("/health", func(c *gin.Context) {
		c.JSON(200, gin.H{"status": "ok"})
	})
	if deps.Metrics != nil {
		router.GET("/metrics", gin.WrapH(deps.Metrics.HTTPHandler()))
	}

	// V1 API
	v1 := router.Group("/v1")
	{
		// ========== Public Routes（邮件链接着陆端点，仅限流） ==========
		publicRoutes := v1.Group("/public/legacy")
		publicRoutes.Use(publicRateLimit)
		{
			publicRoutes.POST("/verify", publicHandler.verify)                    // 受益人身份验证
			publicRoutes.POST("/cancel-unlock", publicHandler.cancelUnlock)       // 取消已调度的解锁
			publicRoutes.GET("/unlock/:tokenId", publicHandler.redeemUnlockToken) // 兑换解锁令牌
		}

		// ========== Owner Routes（所有者侧，需要认证） ==========
		legacyRoutes := v1.Group("/legacy")
		legacyRoutes.Use(jwtAuth.RequireAuth())
		{
			legacyRoutes.GET("/config", legacyHandler.getConfig)         // 获取配置
			legacyRoutes.DELETE("/config", legacyHandler.deleteConfig)   // 账户删除流程
			legacyRoutes.PUT("/trigger", legacyHandler.updateTrigger)    // 更新触发器
			legacyRoutes.POST("/activity", legacyHandler.recordActivity) // 活动心跳
			legacyRoutes.POST("/unlock", legacyHandler.triggerUnlock)    // 主动触发解锁
			legacyRoutes.GET("/tokens", legacyHandler.listTokens)        // 解锁令牌审计

			legacyRoutes.POST("/beneficiaries", legacyHandler.addBeneficiary)
			legacyRoutes.GET("/beneficiaries", legacyHandler.listBeneficiaries)
			legacyRoutes.DELETE("/beneficiaries/:id", legacyHandler.removeBeneficiary)
			legacyRoutes.POST("/beneficiaries/:id/notify", legacyHandler.notifyBeneficiary)
			legacyRoutes.POST("/beneficiaries/:id/resend", legacyHandler.resendVerification)
			legacyRoutes.PATCH("/beneficiaries/:id/email", legacyHandler.updateBeneficiaryEmail)
		}

		// ========== Internal Routes（运维触发，需要认证） ==========
		internalRoutes := v1.Group("/internal/sweeps")
		internalRoutes.Use(jwtAuth.RequireAuth())
		{
			internalRoutes.POST("/inactivity", sweepHandler.runInactivitySweep)
			internalRoutes.POST("/reminders", sweepHandler.runReminderSweep)
		}
	}

	return router
}
