package httptransport

import (
	"net/http"
	"time"

	gincors "github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"dropmail/backend/internal/auth"
	"dropmail/backend/internal/config"
	"dropmail/backend/internal/middleware"
	"dropmail/backend/internal/monitoring"
	"dropmail/backend/internal/service"
	"dropmail/backend/internal/websocket"
)

// RouterDependencies 路由器依赖项
type RouterDependencies struct {
	Config       *config.Config
	AuthService  *auth.Service
	InboxService *service.InboxService
	EmailService *service.EmailService
	AdminService *service.AdminService
	JWTManager   *auth.JWTManager
	WebSocketHub *websocket.Hub
	Metrics      *monitoring.Metrics
	Health       http.Handler       // 健康检查处理器（/live、/ready）
	RateLimiter  middleware.Allower // 为 nil 时使用进程内限流
	Logger       *zap.Logger
}

// NewRouter 创建并返回 Gin 路由实例。
func NewRouter(deps RouterDependencies) *gin.Engine {
	router := gin.New()

	router.Use(middleware.RecoveryHandler(deps.Logger))
	router.Use(middleware.RequestLogger(deps.Logger))
	router.Use(middleware.SecurityHeaders())
	router.Use(middleware.BodySizeLimit(middleware.DefaultBodyLimit))
	if deps.Metrics != nil {
		router.Use(middleware.HTTPMetrics(deps.Metrics))
	}

	// CORS 配置
	corsConfig := gincors.Config{
		AllowOrigins:     deps.Config.CORS.AllowedOrigins,
		AllowMethods:     []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Accept", "Authorization"},
		ExposeHeaders:    []string{"Content-Length", "Content-Disposition"},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}

	// 允许所有来源时必须关闭凭证支持
	for _, origin := range corsConfig.AllowOrigins {
		if origin == "*" {
			corsConfig.AllowCredentials = false
			break
		}
	}
	router.Use(gincors.New(corsConfig))

	authHandler := NewAuthHandler(deps.AuthService, deps.Logger)
	inboxHandler := NewInboxHandler(deps.InboxService, deps.Logger)
	emailHandler := NewEmailHandler(deps.EmailService, deps.Logger)
	adminHandler := NewAdminHandler(deps.AdminService, deps.Logger)

	jwtAuth := middleware.NewJWTAuth(deps.JWTManager, deps.Logger)
	adminAuth := middleware.NewAdminAuth(deps.AuthService)
	rateLimit := middleware.RateLimitByIP(deps.RateLimiter, deps.Logger, 10, 30)

	// 健康检查与指标
	if deps.Health != nil {
		router.GET("/live", gin.WrapH(deps.Health))
		router.GET("/ready", gin.WrapH(deps.Health))
	} else {
		router.GET("/live", func(c *gin.Context) {
			c.JSON(http.StatusOK, gin.H{"status": "ok"})
		})
	}
	if deps.Metrics != nil {
		router.GET("/metrics", gin.WrapH(deps.Metrics.HTTPHandler()))
	}

	// WebSocket 实时通知
	if deps.WebSocketHub != nil {
		router.GET("/ws", websocket.HandleWebSocket(deps.WebSocketHub))
	}

	v1 := router.Group("/v1")
	{
		// 认证（登录注册接口额外限流）
		authRoutes := v1.Group("/auth")
		{
			authRoutes.POST("/register", rateLimit, authHandler.Register)
			authRoutes.POST("/login", rateLimit, authHandler.Login)
			authRoutes.GET("/me", jwtAuth.RequireAuth(), authHandler.Me)
			authRoutes.POST("/change-password", jwtAuth.RequireAuth(), authHandler.ChangePassword)
		}

		// 邮箱与邮件（需登录）
		userRoutes := v1.Group("")
		userRoutes.Use(jwtAuth.RequireAuth())
		{
			userRoutes.POST("/inboxes", inboxHandler.Create)
			userRoutes.GET("/inboxes", inboxHandler.List)
			userRoutes.GET("/inboxes/:id", inboxHandler.Get)
			userRoutes.DELETE("/inboxes/:id", inboxHandler.Delete)
			userRoutes.GET("/inboxes/:id/emails", emailHandler.List)

			userRoutes.GET("/emails/:emailId", emailHandler.Get)
			userRoutes.DELETE("/emails/:emailId", emailHandler.Delete)
			userRoutes.GET("/emails/:emailId/attachments/:attachmentId", emailHandler.DownloadAttachment)
		}

		// 管理后台（需管理员）
		adminRoutes := v1.Group("/admin")
		adminRoutes.Use(jwtAuth.RequireAuth(), adminAuth.RequireAdmin())
		{
			adminRoutes.GET("/users", adminHandler.ListUsers)
			adminRoutes.GET("/users/:id", adminHandler.GetUser)
			adminRoutes.POST("/users/:id/approve", adminHandler.ApproveUser)
			adminRoutes.PATCH("/users/:id", adminHandler.UpdateUser)
			adminRoutes.DELETE("/users/:id", adminHandler.DeleteUser)
			adminRoutes.GET("/users/:id/logins", adminHandler.ListLoginEvents)
			adminRoutes.GET("/inboxes", adminHandler.ListInboxes)
			adminRoutes.DELETE("/inboxes/:id", adminHandler.DeleteInbox)
			adminRoutes.GET("/settings", adminHandler.GetSettings)
			adminRoutes.PATCH("/settings", adminHandler.UpdateSettings)
			adminRoutes.GET("/stats", adminHandler.GetStatistics)
		}
	}

	return router
}
