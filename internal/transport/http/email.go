package httptransport

import (
	"fmt"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"dropmail/backend/internal/service"
	"dropmail/backend/internal/storage"
)

// EmailHandler 处理邮件读取相关的 HTTP 请求
type EmailHandler struct {
	emails *service.EmailService
	log    *zap.Logger
}

// NewEmailHandler 创建邮件处理器实例
func NewEmailHandler(emails *service.EmailService, log *zap.Logger) *EmailHandler {
	if log == nil {
		log = zap.NewNop()
	}
	return &EmailHandler{
		emails: emails,
		log:    log,
	}
}

// List 返回邮箱内的邮件列表（按接收时间倒序）
func (h *EmailHandler) List(c *gin.Context) {
	emails, err := h.emails.List(c.GetString("userID"), c.Param("id"))
	if err != nil {
		respondEmailError(c, h.log, err)
		return
	}
	Success(c, emails)
}

// Get 返回单封邮件详情（含附件元信息）
func (h *EmailHandler) Get(c *gin.Context) {
	email, err := h.emails.Get(c.GetString("userID"), c.Param("emailId"))
	if err != nil {
		respondEmailError(c, h.log, err)
		return
	}
	Success(c, email)
}

// Delete 删除单封邮件
func (h *EmailHandler) Delete(c *gin.Context) {
	if err := h.emails.Delete(c.GetString("userID"), c.Param("emailId")); err != nil {
		respondEmailError(c, h.log, err)
		return
	}
	NoContent(c)
}

// DownloadAttachment 下载附件原始内容
func (h *EmailHandler) DownloadAttachment(c *gin.Context) {
	att, err := h.emails.GetAttachment(
		c.GetString("userID"),
		c.Param("emailId"),
		c.Param("attachmentId"),
	)
	if err != nil {
		respondEmailError(c, h.log, err)
		return
	}

	contentType := att.ContentType
	if contentType == "" {
		contentType = "application/octet-stream"
	}
	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=%q", att.Filename))
	c.Data(200, contentType, att.Content)
}

func respondEmailError(c *gin.Context, log *zap.Logger, err error) {
	switch err {
	case storage.ErrMessageNotFound, storage.ErrAttachmentNotFound, storage.ErrInboxNotFound:
		NotFound(c, GetErrorMessage(err))
	case service.ErrNotOwner:
		Forbidden(c, GetErrorMessage(err))
	default:
		log.Error("email operation failed", zap.Error(err))
		InternalError(c, MsgInternalError)
	}
}
