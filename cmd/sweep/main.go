package main

import (
	"flag"
	"fmt"
	"os"

	"go.uber.org/zap"

	"heritage/backend/internal/config"
	"heritage/backend/internal/logger"
	"heritage/backend/internal/mailer"
	"heritage/backend/internal/service"
	"heritage/backend/internal/storage"
	"heritage/backend/internal/storage/memory"
	redisstore "heritage/backend/internal/storage/redis"
	"heritage/backend/internal/storage/sqlkv"
)

// main 一次性扫描执行器，供 cron 等外部调度器调用。
//
// 用法:
//
//	sweep -job inactivity   # 不活跃评估
//	sweep -job reminders    # 验证提醒升级
func main() {
	job := flag.String("job", "inactivity", "要执行的扫描任务: inactivity 或 reminders")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}

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
		fmt.Fprintf(os.Stderr, "failed to initialize logger: %v\n", err)
		os.Exit(1)
	}

	store := openStorage(cfg, log)
	defer store.Close()

	var mail mailer.Mailer
	if cfg.Mail.Driver == "smtp" {
		mail = mailer.NewSMTPMailer(cfg.Mail.Host, cfg.Mail.Port, cfg.Mail.Username, cfg.Mail.Password, cfg.Mail.From, log)
	} else {
		mail = mailer.NewLogMailer(log)
	}

	configService := service.NewLegacyConfigService(store, log)
	notifier := service.NewNotificationService(mail, cfg.Legacy.BaseURL, nil, log)
	unlockService := service.NewUnlockService(store, configService, notifier, nil, log)
	triggerService := service.NewTriggerService(store, configService, notifier, unlockService, nil, log)
	sweepService := service.NewSweepService(store, triggerService, notifier, nil, log)

	switch *job {
	case "inactivity":
		summary, err := sweepService.InactivitySweep()
		if err != nil {
			log.Fatal("inactivity sweep failed", zap.Error(err))
		}
		log.Info("inactivity sweep done",
			zap.Int("configs_checked", summary.ConfigsChecked),
			zap.Int("warnings_sent", summary.WarningsSent),
			zap.Int("unlocks_triggered", summary.UnlocksTriggered),
			zap.Int("failures", summary.Failures),
		)
	case "reminders":
		summary, err := sweepService.ReminderSweep()
		if err != nil {
			log.Fatal("reminder sweep failed", zap.Error(err))
		}
		log.Info("reminder sweep done",
			zap.Int("configs_checked", summary.ConfigsChecked),
			zap.Int("reminders_sent", summary.RemindersSent),
			zap.Int("failures", summary.Failures),
		)
	default:
		fmt.Fprintf(os.Stderr, "unknown job %q: must be inactivity or reminders\n", *job)
		os.Exit(2)
	}
}

// openStorage 根据配置选择存储后端，和服务进程保持一致
func openStorage(cfg *config.Config, log *zap.Logger) storage.Store {
	if cfg.Database.Type != "" && cfg.Database.DSN != "" {
		store, err := sqlkv.NewStoreWithType(
			cfg.Database.Type,
			cfg.Database.DSN,
			cfg.Database.MaxOpenConns,
			cfg.Database.MaxIdleConns,
			cfg.Database.ConnMaxLifetime,
		)
		if err != nil {
			log.Fatal("failed to open database storage", zap.Error(err))
		}
		return store
	}
	if cfg.Redis.Enabled {
		store, err := redisstore.NewStore(cfg.Redis.Address, cfg.Redis.Password, cfg.Redis.DB)
		if err != nil {
			log.Fatal("failed to open redis storage", zap.Error(err))
		}
		return store
	}
	log.Warn("using memory storage: sweep results will not persist")
	return memory.NewStore()
}
