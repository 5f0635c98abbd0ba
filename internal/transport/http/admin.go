package httptransport

import (
	"strconv"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"dropmail/backend/internal/service"
	"dropmail/backend/internal/storage"
)

// AdminHandler 处理管理后台相关的 HTTP 请求
type AdminHandler struct {
	admin *service.AdminService
	log   *zap.Logger
}

// NewAdminHandler 创建管理处理器实例
func NewAdminHandler(admin *service.AdminService, log *zap.Logger) *AdminHandler {
	if log == nil {
		log = zap.NewNop()
	}
	return &AdminHandler{
		admin: admin,
		log:   log,
	}
}

// ListUsers 返回全部用户
func (h *AdminHandler) ListUsers(c *gin.Context) {
	users, err := h.admin.ListUsers()
	if err != nil {
		h.log.Error("failed to list users", zap.Error(err))
		InternalError(c, MsgInternalError)
		return
	}

	out := make([]userResponse, 0, len(users))
	for i := range users {
		out = append(out, toUserResponse(&users[i]))
	}
	Success(c, out)
}

// GetUser 返回单个用户
func (h *AdminHandler) GetUser(c *gin.Context) {
	user, err := h.admin.GetUser(c.Param("id"))
	if err != nil {
		respondAdminError(c, h.log, err)
		return
	}
	Success(c, toUserResponse(user))
}

// ApproveUser 审核通过用户
func (h *AdminHandler) ApproveUser(c *gin.Context) {
	user, err := h.admin.ApproveUser(c.Param("id"))
	if err != nil {
		respondAdminError(c, h.log, err)
		return
	}
	Success(c, toUserResponse(user))
}

type updateUserRequest struct {
	IsActive       *bool `json:"isActive"`
	IsApproved     *bool `json:"isApproved"`
	IsAdmin        *bool `json:"isAdmin"`
	MaxInboxes     *int  `json:"maxInboxes"`
	MaxEmails      *int  `json:"maxEmails"`
	RetentionHours *int  `json:"retentionHours"`
}

// UpdateUser 修改用户状态与配额
func (h *AdminHandler) UpdateUser(c *gin.Context) {
	var req updateUserRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		BadRequest(c, MsgInvalidRequest)
		return
	}

	user, err := h.admin.UpdateUser(c.GetString("userID"), c.Param("id"), service.UpdateUserInput{
		IsActive:       req.IsActive,
		IsApproved:     req.IsApproved,
		IsAdmin:        req.IsAdmin,
		MaxInboxes:     req.MaxInboxes,
		MaxEmails:      req.MaxEmails,
		RetentionHours: req.RetentionHours,
	})
	if err != nil {
		respondAdminError(c, h.log, err)
		return
	}
	Success(c, toUserResponse(user))
}

// DeleteUser 删除用户及其名下全部数据
func (h *AdminHandler) DeleteUser(c *gin.Context) {
	if err := h.admin.DeleteUser(c.GetString("userID"), c.Param("id")); err != nil {
		respondAdminError(c, h.log, err)
		return
	}
	NoContent(c)
}

// ListInboxes 返回全部邮箱
func (h *AdminHandler) ListInboxes(c *gin.Context) {
	inboxes, err := h.admin.ListInboxes()
	if err != nil {
		h.log.Error("failed to list inboxes", zap.Error(err))
		InternalError(c, MsgInboxListFailed)
		return
	}
	Success(c, inboxes)
}

// DeleteInbox 删除任意邮箱
func (h *AdminHandler) DeleteInbox(c *gin.Context) {
	if err := h.admin.DeleteInbox(c.Param("id")); err != nil {
		switch err {
		case storage.ErrInboxNotFound:
			NotFound(c, GetErrorMessage(err))
		default:
			h.log.Error("failed to delete inbox", zap.Error(err))
			InternalError(c, MsgInternalError)
		}
		return
	}
	NoContent(c)
}

// GetSettings 返回系统策略
func (h *AdminHandler) GetSettings(c *gin.Context) {
	settings, err := h.admin.GetSettings()
	if err != nil {
		h.log.Error("failed to load settings", zap.Error(err))
		InternalError(c, MsgSettingsGetFailed)
		return
	}
	Success(c, settings)
}

type updateSettingsRequest struct {
	LoginRequired         *bool `json:"loginRequired"`
	RegistrationOpen      *bool `json:"registrationOpen"`
	DefaultRetentionHours *int  `json:"defaultRetentionHours"`
	MaxInboxesPerUser     *int  `json:"maxInboxesPerUser"`
	MaxEmailsPerInbox     *int  `json:"maxEmailsPerInbox"`
	DeleteOldOnLimit      *bool `json:"deleteOldOnLimit"`
}

// UpdateSettings 修改系统策略
func (h *AdminHandler) UpdateSettings(c *gin.Context) {
	var req updateSettingsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		BadRequest(c, MsgInvalidRequest)
		return
	}

	settings, err := h.admin.UpdateSettings(service.UpdateSettingsInput{
		LoginRequired:         req.LoginRequired,
		RegistrationOpen:      req.RegistrationOpen,
		DefaultRetentionHours: req.DefaultRetentionHours,
		MaxInboxesPerUser:     req.MaxInboxesPerUser,
		MaxEmailsPerInbox:     req.MaxEmailsPerInbox,
		DeleteOldOnLimit:      req.DeleteOldOnLimit,
	})
	if err != nil {
		h.log.Error("failed to save settings", zap.Error(err))
		InternalError(c, MsgSettingsSaveFailed)
		return
	}
	Success(c, settings)
}

// GetStatistics 返回系统统计信息
func (h *AdminHandler) GetStatistics(c *gin.Context) {
	stats, err := h.admin.GetStatistics()
	if err != nil {
		h.log.Error("failed to load statistics", zap.Error(err))
		InternalError(c, MsgStatisticsFailed)
		return
	}
	Success(c, stats)
}

// ListLoginEvents 返回用户最近的登录记录
func (h *AdminHandler) ListLoginEvents(c *gin.Context) {
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "20"))
	events, err := h.admin.ListLoginEvents(c.Param("id"), limit)
	if err != nil {
		respondAdminError(c, h.log, err)
		return
	}
	Success(c, events)
}

func respondAdminError(c *gin.Context, log *zap.Logger, err error) {
	switch err {
	case storage.ErrUserNotFound:
		NotFound(c, GetErrorMessage(err))
	case service.ErrCannotModifySelf:
		Forbidden(c, GetErrorMessage(err))
	default:
		log.Error("admin operation failed", zap.Error(err))
		InternalError(c, MsgInternalError)
	}
}
