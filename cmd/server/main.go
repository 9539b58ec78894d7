package main

import (
	"context"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	jwtpkg "heritage/backend/internal/auth/jwt"
	"heritage/backend/internal/config"
	"heritage/backend/internal/health"
	"heritage/backend/internal/logger"
	"heritage/backend/internal/mailer"
	"heritage/backend/internal/monitoring"
	"heritage/backend/internal/service"
	"heritage/backend/internal/storage"
	"heritage/backend/internal/storage/memory"
	redisstore "heritage/backend/internal/storage/redis"
	"heritage/backend/internal/storage/sqlkv"
	httptransport "heritage/backend/internal/transport/http"
)

// main 启动遗产访问服务：HTTP API 加两个内置扫描任务。
func main() {
	cfg, err := config.Load()
	if err != nil {
		panic(fmt.Sprintf("failed to load config: %v", err))
	}

	// 设置 Gin 模式（基于开发环境标志）
	if !cfg.Log.Development {
		gin.SetMode(gin.ReleaseMode)
	} else {
		gin.SetMode(gin.DebugMode)
	}

	// 初始化日志系统
	log, err := logger.NewLogger(logger.Config{
		Level:       cfg.Log.Level,
		Development: cfg.Log.Development,
		LogFile:     cfg.Log.LogFile,
		MaxSize:     100,
		MaxBackups:  3,
		MaxAge:      28,
		Compress:    true,
	})
	if err != nil {
		panic(fmt.Sprintf("failed to initialize logger: %v", err))
	}
	log.Info("starting heritage server",
		zap.String("log_level", cfg.Log.Level),
		zap.Bool("development", cfg.Log.Development),
	)

	// 初始化存储层：数据库 > Redis > 内存
	store := initializeStorage(cfg, log)
	defer store.Close()

	// 初始化监控与健康检查
	metrics := monitoring.NewMetrics()
	healthHandler := health.NewHandler(store)

	// 初始化出站邮件
	var mail mailer.Mailer
	if cfg.Mail.Driver == "smtp" {
		mail = mailer.NewSMTPMailer(cfg.Mail.Host, cfg.Mail.Port, cfg.Mail.Username, cfg.Mail.Password, cfg.Mail.From, log)
		log.Info("using SMTP mailer", zap.String("host", cfg.Mail.Host), zap.Int("port", cfg.Mail.Port))
	} else {
		mail = mailer.NewLogMailer(log)
		log.Info("using log mailer (development mode)")
	}

	// 初始化服务层
	configService := service.NewLegacyConfigService(store, log)
	notifier := service.NewNotificationService(mail, cfg.Legacy.BaseURL, metrics, log)
	beneficiaryService := service.NewBeneficiaryService(store, configService, notifier, metrics, log)
	unlockService := service.NewUnlockService(store, configService, notifier, metrics, log)
	triggerService := service.NewTriggerService(store, configService, notifier, unlockService, metrics, log)
	sweepService := service.NewSweepService(store, triggerService, notifier, metrics, log)

	jwtManager := jwtpkg.NewManager(cfg.JWT.Secret, cfg.JWT.Issuer)

	// 创建 HTTP 服务器
	httpAddr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	router := httptransport.NewRouter(httptransport.RouterDependencies{
		Config:             cfg,
		ConfigService:      configService,
		BeneficiaryService: beneficiaryService,
		TriggerService:     triggerService,
		UnlockService:      unlockService,
		SweepService:       sweepService,
		JWTManager:         jwtManager,
		Metrics:            metrics,
		Health:             healthHandler,
		Logger:             log,
	})

	httpServer := &http.Server{
		Addr:              httpAddr,
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	// 信号处理
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	group, groupCtx := errgroup.WithContext(ctx)

	// HTTP 服务器 goroutine
	group.Go(func() error {
		log.Info("starting HTTP server", zap.String("address", httpAddr))
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Error("HTTP server error", zap.Error(err))
			return err
		}
		return nil
	})

	// 定时不活跃扫描 goroutine
	group.Go(func() error {
		ticker := time.NewTicker(cfg.Legacy.SweepInterval)
		defer ticker.Stop()

		log.Info("starting inactivity sweep task", zap.Duration("interval", cfg.Legacy.SweepInterval))

		for {
			select {
			case <-groupCtx.Done():
				log.Info("inactivity sweep task stopped")
				return nil
			case <-ticker.C:
				if _, err := sweepService.InactivitySweep(); err != nil {
					log.Error("inactivity sweep failed", zap.Error(err))
				}
			}
		}
	})

	// 定时提醒扫描 goroutine
	group.Go(func() error {
		ticker := time.NewTicker(cfg.Legacy.ReminderInterval)
		defer ticker.Stop()

		log.Info("starting reminder sweep task", zap.Duration("interval", cfg.Legacy.ReminderInterval))

		for {
			select {
			case <-groupCtx.Done():
				log.Info("reminder sweep task stopped")
				return nil
			case <-ticker.C:
				if _, err := sweepService.ReminderSweep(); err != nil {
					log.Error("reminder sweep failed", zap.Error(err))
				}
			}
		}
	})

	// 优雅关闭 goroutine
	group.Go(func() error {
		<-groupCtx.Done()
		log.Info("shutdown signal received, gracefully shutting down...")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()

		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			log.Error("HTTP server shutdown error", zap.Error(err))
		}

		log.Info("server stopped")
		return nil
	})

	if err := group.Wait(); err != nil && err != context.Canceled {
		log.Fatal("server error", zap.Error(err))
	}

	log.Info("server exited cleanly")
}

// initializeStorage 根据配置选择存储后端
func initializeStorage(cfg *config.Config, log *zap.Logger) storage.Store {
	if cfg.Database.Type != "" && cfg.Database.DSN != "" {
		store, err := sqlkv.NewStoreWithType(
			cfg.Database.Type,
			cfg.Database.DSN,
			cfg.Database.MaxOpenConns,
			cfg.Database.MaxIdleConns,
			cfg.Database.ConnMaxLifetime,
		)
		if err != nil {
			panic(fmt.Sprintf("failed to initialize database storage: %v", err))
		}
		log.Info("using database storage", zap.String("type", cfg.Database.Type))
		return store
	}

	if cfg.Redis.Enabled {
		store, err := redisstore.NewStore(cfg.Redis.Address, cfg.Redis.Password, cfg.Redis.DB)
		if err != nil {
			panic(fmt.Sprintf("failed to initialize redis storage: %v", err))
		}
		log.Info("using redis storage", zap.String("address", cfg.Redis.Address))
		return store
	}

	log.Info("using memory storage (development mode)")
	return memory.NewStore()
}
