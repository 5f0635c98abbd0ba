package main

import (
	"context"
	"os"
	"time"

	"go.uber.org/zap"

	"dropmail/backend/internal/config"
	"dropmail/backend/internal/ingest"
	"dropmail/backend/internal/logger"
	"dropmail/backend/internal/monitoring"
	"dropmail/backend/internal/security"
	"dropmail/backend/internal/storage/postgres"
)

// main 是 MTA 管道入口：从标准输入读取一封原始邮件并投递。
//
// 无论处理结果如何都以状态码 0 退出——向 MTA 报错会触发退信，
// 而退信目标（信封发件人）极易伪造，宁可静默丢弃。
func main() {
	defer os.Exit(0)

	cfg, err := config.LoadReceiver()
	if err != nil {
		// 没有日志器可用，直接写标准错误
		os.Stderr.WriteString("receive-email: failed to load config: " + err.Error() + "\n")
		return
	}

	log := logger.NewPipeLogger(cfg.Log.Level)
	defer log.Sync()

	if cfg.Database.Type == "" || cfg.Database.DSN == "" {
		log.Error("no database configured, discarding message")
		return
	}

	store, err := postgres.NewStore(cfg.Database.Type, cfg.Database.DSN, postgres.PoolConfig{
		MaxOpenConns:    cfg.Database.MaxOpenConns,
		MaxIdleConns:    cfg.Database.MaxIdleConns,
		ConnMaxLifetime: cfg.Database.ConnMaxLifetime,
	})
	if err != nil {
		log.Error("failed to connect to database, discarding message", zap.Error(err))
		return
	}
	defer store.Close()

	policy := &security.AttachmentPolicy{
		MaxSize:             cfg.Mail.MaxAttachmentSize,
		AllowedTypePrefixes: cfg.Mail.AllowedTypePrefixes,
	}
	if len(policy.AllowedTypePrefixes) == 0 {
		policy.AllowedTypePrefixes = security.DefaultAllowedTypePrefixes
	}

	processor := ingest.NewProcessor(store, policy, monitoring.NewMetrics(), log)

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	outcome, err := processor.Process(ctx, os.Stdin)
	if err != nil {
		log.Error("message processing failed", zap.String("outcome", string(outcome)), zap.Error(err))
		return
	}
	log.Info("message processed", zap.String("outcome", string(outcome)))
}
