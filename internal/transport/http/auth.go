package httptransport

import (
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"dropmail/backend/internal/auth"
	"dropmail/backend/internal/domain"
)

// AuthHandler 处理认证相关的 HTTP 请求
type AuthHandler struct {
	authService *auth.Service // 认证业务服务
	log         *zap.Logger   // 结构化日志记录器
}

// NewAuthHandler 创建新的认证处理器实例
func NewAuthHandler(authService *auth.Service, log *zap.Logger) *AuthHandler {
	if log == nil {
		log = zap.NewNop()
	}
	return &AuthHandler{
		authService: authService,
		log:         log,
	}
}

type registerRequest struct {
	Email    string `json:"email" binding:"required"`
	Password string `json:"password" binding:"required"`
}

type loginRequest struct {
	Email    string `json:"email" binding:"required"`
	Password string `json:"password" binding:"required"`
}

type changePasswordRequest struct {
	OldPassword string `json:"oldPassword" binding:"required"`
	NewPassword string `json:"newPassword" binding:"required"`
}

type authResponse struct {
	User      userResponse `json:"user"`
	Token     string       `json:"token"`
	TokenType string       `json:"tokenType"`
	ExpiresIn int64        `json:"expiresIn"`
}

type userResponse struct {
	ID             string     `json:"id"`
	Email          string     `json:"email"`
	IsAdmin        bool       `json:"isAdmin"`
	IsApproved     bool       `json:"isApproved"`
	IsActive       bool       `json:"isActive"`
	MaxInboxes     int        `json:"maxInboxes"`
	MaxEmails      int        `json:"maxEmails"`
	RetentionHours *int       `json:"retentionHours,omitempty"`
	CreatedAt      time.Time  `json:"createdAt"`
	LastLoginAt    *time.Time `json:"lastLoginAt,omitempty"`
}

func toUserResponse(user *domain.User) userResponse {
	return userResponse{
		ID:             user.ID,
		Email:          user.Email,
		IsAdmin:        user.IsAdmin,
		IsApproved:     user.IsApproved,
		IsActive:       user.IsActive,
		MaxInboxes:     user.MaxInboxes,
		MaxEmails:      user.MaxEmails,
		RetentionHours: user.RetentionHours,
		CreatedAt:      user.CreatedAt,
		LastLoginAt:    user.LastLoginAt,
	}
}

// Register 处理用户注册请求
//
// 注册成功后账户处于待审核状态，不直接发放令牌。
func (h *AuthHandler) Register(c *gin.Context) {
	var req registerRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		BadRequest(c, MsgInvalidRequest)
		return
	}

	user, err := h.authService.Register(auth.RegisterInput{
		Email:    req.Email,
		Password: req.Password,
	})
	if err != nil {
		switch err {
		case auth.ErrInvalidEmail:
			BadRequest(c, GetErrorMessage(err))
		case auth.ErrEmailExists:
			Conflict(c, GetErrorMessage(err))
		case auth.ErrRegistrationClosed:
			Forbidden(c, GetErrorMessage(err))
		case auth.ErrPasswordTooShort, auth.ErrPasswordTooLong:
			BadRequest(c, err.Error())
		default:
			h.log.Error("failed to register user", zap.Error(err))
			InternalError(c, "注册失败，请稍后重试")
		}
		return
	}

	Created(c, toUserResponse(user))
}

// Login 处理用户登录请求
func (h *AuthHandler) Login(c *gin.Context) {
	var req loginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		BadRequest(c, MsgInvalidRequest)
		return
	}

	resp, err := h.authService.Login(auth.LoginInput{
		Email:     req.Email,
		Password:  req.Password,
		IPAddress: c.ClientIP(),
		UserAgent: c.Request.UserAgent(),
	})
	if err != nil {
		switch err {
		case auth.ErrInvalidCredentials:
			Unauthorized(c, GetErrorMessage(err))
		case auth.ErrUserInactive, auth.ErrUserNotApproved:
			Forbidden(c, GetErrorMessage(err))
		default:
			h.log.Error("failed to login user", zap.Error(err))
			InternalError(c, "登录失败，请稍后重试")
		}
		return
	}

	Success(c, authResponse{
		User:      toUserResponse(resp.User),
		Token:     resp.Token,
		TokenType: resp.TokenType,
		ExpiresIn: resp.ExpiresIn,
	})
}

// Me 返回当前登录用户信息
func (h *AuthHandler) Me(c *gin.Context) {
	userID := c.GetString("userID")
	user, err := h.authService.GetUserByID(userID)
	if err != nil {
		Unauthorized(c, MsgAuthRequired)
		return
	}
	Success(c, toUserResponse(user))
}

// ChangePassword 修改当前用户密码
func (h *AuthHandler) ChangePassword(c *gin.Context) {
	var req changePasswordRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		BadRequest(c, MsgInvalidRequest)
		return
	}

	userID := c.GetString("userID")
	if err := h.authService.ChangePassword(userID, req.OldPassword, req.NewPassword); err != nil {
		switch err {
		case auth.ErrUserNotFound:
			Unauthorized(c, MsgAuthRequired)
		default:
			BadRequest(c, err.Error())
		}
		return
	}
	Success(c, nil)
}
