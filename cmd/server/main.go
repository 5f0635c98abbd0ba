package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	gosmtp "github.com/emersion/go-smtp"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"dropmail/backend/internal/auth"
	"dropmail/backend/internal/cleanup"
	"dropmail/backend/internal/config"
	"dropmail/backend/internal/ingest"
	"dropmail/backend/internal/logger"
	"dropmail/backend/internal/middleware"
	"dropmail/backend/internal/monitoring"
	"dropmail/backend/internal/security"
	"dropmail/backend/internal/service"
	"dropmail/backend/internal/smtp"
	"dropmail/backend/internal/storage"
	"dropmail/backend/internal/storage/memory"
	"dropmail/backend/internal/storage/postgres"
	redisstore "dropmail/backend/internal/storage/redis"
	httptransport "dropmail/backend/internal/transport/http"
	"dropmail/backend/internal/websocket"
)

// main 启动包含 HTTP API、可选 SMTP 接收端与定时清理的综合服务。
func main() {
	cfg, err := config.Load()
	if err != nil {
		panic(fmt.Sprintf("failed to load config: %v", err))
	}

	if !cfg.Log.Development {
		gin.SetMode(gin.ReleaseMode)
	} else {
		gin.SetMode(gin.DebugMode)
	}

	log, err := logger.NewLogger(logger.Config{
		Level:       cfg.Log.Level,
		Development: cfg.Log.Development,
		LogFile:     cfg.Log.File,
		MaxSize:     100,
		MaxBackups:  3,
		MaxAge:      28,
		Compress:    true,
	})
	if err != nil {
		panic(fmt.Sprintf("failed to initialize logger: %v", err))
	}
	defer log.Sync()

	log.Info("starting dropmail server",
		zap.String("log_level", cfg.Log.Level),
		zap.Bool("development", cfg.Log.Development),
		zap.Strings("domains", cfg.Mail.AllowedDomains),
	)

	// 初始化存储层
	var store storage.Store
	if cfg.Database.Type != "" && cfg.Database.DSN != "" {
		store, err = postgres.NewStore(cfg.Database.Type, cfg.Database.DSN, postgres.PoolConfig{
			MaxOpenConns:    cfg.Database.MaxOpenConns,
			MaxIdleConns:    cfg.Database.MaxIdleConns,
			ConnMaxLifetime: cfg.Database.ConnMaxLifetime,
		})
		if err != nil {
			panic(fmt.Sprintf("failed to initialize database storage: %v", err))
		}
		log.Info("using database storage", zap.String("type", cfg.Database.Type))
	} else {
		store = memory.NewStore()
		log.Info("using memory storage (development mode)")
	}
	defer store.Close()

	// 监控与健康检查
	metrics := monitoring.NewMetrics()
	healthHandler := monitoring.NewHealthHandler(store)

	// Redis 限流（可选）
	var rateLimiter middleware.Allower
	if cfg.Redis.Enabled {
		limiter, err := redisstore.NewLimiter(cfg.Redis.Address, cfg.Redis.Password, cfg.Redis.DB, time.Minute, 60)
		if err != nil {
			log.Warn("redis unavailable, falling back to in-process rate limiting", zap.Error(err))
		} else {
			rateLimiter = limiter
			defer limiter.Close()
			log.Info("using redis rate limiting", zap.String("address", cfg.Redis.Address))
		}
	}

	// 认证与业务服务
	jwtManager := auth.NewJWTManager(cfg.JWT.Secret, cfg.JWT.Issuer, cfg.JWT.Expiry)
	authService := auth.NewService(store, jwtManager, log)
	inboxService := service.NewInboxService(store, cfg)
	emailService := service.NewEmailService(store)
	adminService := service.NewAdminService(store)

	// 投递管道（SMTP 接收端复用）
	policy := &security.AttachmentPolicy{
		MaxSize:             cfg.Mail.MaxAttachmentSize,
		AllowedTypePrefixes: cfg.Mail.AllowedTypePrefixes,
	}
	if len(policy.AllowedTypePrefixes) == 0 {
		policy.AllowedTypePrefixes = security.DefaultAllowedTypePrefixes
	}
	processor := ingest.NewProcessor(store, policy, metrics, log)

	// WebSocket Hub，并接收入库通知
	wsHub := websocket.NewHub(cfg.CORS.AllowedOrigins, jwtManager, store, log)
	processor.SetNotifier(wsHub)

	// 保留清理器
	sweeper := cleanup.NewSweeper(store, metrics, log, cfg.Cleanup.Workers)

	// HTTP 服务器
	httpAddr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	router := httptransport.NewRouter(httptransport.RouterDependencies{
		Config:       cfg,
		AuthService:  authService,
		InboxService: inboxService,
		EmailService: emailService,
		AdminService: adminService,
		JWTManager:   jwtManager,
		WebSocketHub: wsHub,
		Metrics:      metrics,
		Health:       healthHandler,
		RateLimiter:  rateLimiter,
		Logger:       log,
	})

	httpServer := &http.Server{
		Addr:              httpAddr,
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	// 可选的内置 SMTP 接收端
	var smtpServer *gosmtp.Server
	if cfg.SMTP.Enabled {
		smtpBackend := smtp.NewBackend(store, processor, smtp.NewRcptLimiter(cfg.SMTP.MaxRcptPerMin), cfg.Mail.AllowedDomains, log)
		smtpServer = gosmtp.NewServer(smtpBackend)
		smtpServer.Addr = cfg.SMTP.BindAddr
		smtpServer.Domain = cfg.SMTP.Domain
		smtpServer.ReadTimeout = 10 * time.Second
		smtpServer.WriteTimeout = 10 * time.Second
		smtpServer.MaxMessageBytes = ingest.MaxMessageBytes
		smtpServer.MaxRecipients = 50
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

	// SMTP 服务器 goroutine
	if smtpServer != nil {
		group.Go(func() error {
			log.Info("starting SMTP server",
				zap.String("address", cfg.SMTP.BindAddr),
				zap.String("domain", cfg.SMTP.Domain),
			)
			if err := smtpServer.ListenAndServe(); err != nil {
				log.Error("SMTP server error", zap.Error(err))
				return err
			}
			return nil
		})
	}

	// WebSocket Hub goroutine
	group.Go(func() error {
		log.Info("starting WebSocket hub")
		wsHub.Run(groupCtx)
		return nil
	})

	// 定时保留清理 goroutine
	group.Go(func() error {
		ticker := time.NewTicker(cfg.Cleanup.Interval)
		defer ticker.Stop()

		log.Info("starting retention cleanup task", zap.Duration("interval", cfg.Cleanup.Interval))

		for {
			select {
			case <-groupCtx.Done():
				log.Info("cleanup task stopped")
				return nil
			case <-ticker.C:
				deleted, err := sweeper.Run(groupCtx)
				switch {
				case errors.Is(err, cleanup.ErrSweepInProgress):
					log.Warn("previous cleanup sweep still running, skipping this round")
				case err != nil:
					log.Error("cleanup sweep failed", zap.Error(err))
				case deleted > 0:
					log.Info("cleanup sweep deleted emails", zap.Int64("deleted", deleted))
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
		if smtpServer != nil {
			if err := smtpServer.Close(); err != nil {
				log.Warn("SMTP server close warning", zap.Error(err))
			}
		}

		log.Info("servers stopped")
		return nil
	})

	if err := group.Wait(); err != nil && err != context.Canceled {
		log.Fatal("server error", zap.Error(err))
	}

	log.Info("server exited cleanly")
}
