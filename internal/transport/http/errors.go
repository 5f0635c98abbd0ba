package httptransport

import (
	"dropmail/backend/internal/auth"
	"dropmail/backend/internal/service"
	"dropmail/backend/internal/storage"
)

// 错误消息映射表（业务错误 -> 中文消息）
var errorMessages = map[error]string{
	// 认证错误
	auth.ErrInvalidEmail:       "邮箱格式无效",
	auth.ErrEmailExists:        "该邮箱已注册",
	auth.ErrInvalidCredentials: "邮箱或密码错误",
	auth.ErrUserInactive:       "账户已被禁用",
	auth.ErrUserNotApproved:    "账户尚未通过审核",
	auth.ErrRegistrationClosed: "系统当前未开放注册",
	auth.ErrUserNotFound:       "用户不存在",

	// 邮箱错误
	service.ErrDomainNotAllowed:  "域名不在允许列表中",
	service.ErrLocalPartInvalid:  "邮箱前缀格式无效",
	service.ErrInboxLimitReached: "已达到邮箱数量上限",
	service.ErrNotOwner:          "无权访问该资源",
	storage.ErrInboxNotFound:     "邮箱不存在",
	storage.ErrAddressTaken:      "该地址已被占用",

	// 邮件错误
	storage.ErrMessageNotFound:    "邮件不存在",
	storage.ErrAttachmentNotFound: "附件不存在",

	// 管理错误
	service.ErrCannotModifySelf: "不能修改自己的账户",
	storage.ErrUserNotFound:     "用户不存在",
}

// GetErrorMessage 获取错误的中文消息
func GetErrorMessage(err error) string {
	if msg, ok := errorMessages[err]; ok {
		return msg
	}
	return err.Error()
}

// 通用错误消息
const (
	MsgInvalidRequest     = "请求参数格式错误"
	MsgAuthRequired       = "需要登录认证"
	MsgTokenInvalid       = "无效的访问令牌"
	MsgPermissionDenied   = "权限不足"
	MsgRateLimited        = "请求过于频繁，请稍后重试"
	MsgInternalError      = "服务器内部错误，请稍后重试"
	MsgInboxCreateFailed  = "创建邮箱失败"
	MsgInboxListFailed    = "获取邮箱列表失败"
	MsgEmailListFailed    = "获取邮件列表失败"
	MsgStatisticsFailed   = "获取统计数据失败"
	MsgSettingsGetFailed  = "获取系统设置失败"
	MsgSettingsSaveFailed = "保存系统设置失败"
)
