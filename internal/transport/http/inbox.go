package httptransport

import (
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"dropmail/backend/internal/service"
	"dropmail/backend/internal/storage"
)

// InboxHandler 处理一次性邮箱相关的 HTTP 请求
type InboxHandler struct {
	inboxes *service.InboxService
	log     *zap.Logger
}

// NewInboxHandler 创建邮箱处理器实例
func NewInboxHandler(inboxes *service.InboxService, log *zap.Logger) *InboxHandler {
	if log == nil {
		log = zap.NewNop()
	}
	return &InboxHandler{
		inboxes: inboxes,
		log:     log,
	}
}

type createInboxRequest struct {
	LocalPart string `json:"localPart"` // 可选：自定义前缀
	Domain    string `json:"domain"`    // 可选：指定域名
}

// Create 创建一次性邮箱
func (h *InboxHandler) Create(c *gin.Context) {
	var req createInboxRequest
	// 允许空请求体（全部随机生成）
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			BadRequest(c, MsgInvalidRequest)
			return
		}
	}

	inbox, err := h.inboxes.Create(service.CreateInboxInput{
		UserID:    c.GetString("userID"),
		LocalPart: req.LocalPart,
		Domain:    req.Domain,
	})
	if err != nil {
		switch err {
		case service.ErrDomainNotAllowed, service.ErrLocalPartInvalid:
			BadRequest(c, GetErrorMessage(err))
		case service.ErrInboxLimitReached:
			Forbidden(c, GetErrorMessage(err))
		case storage.ErrAddressTaken:
			Conflict(c, GetErrorMessage(err))
		default:
			h.log.Error("failed to create inbox", zap.Error(err))
			InternalError(c, MsgInboxCreateFailed)
		}
		return
	}

	Created(c, inbox)
}

// List 返回当前用户的邮箱列表
func (h *InboxHandler) List(c *gin.Context) {
	inboxes, err := h.inboxes.List(c.GetString("userID"))
	if err != nil {
		h.log.Error("failed to list inboxes", zap.Error(err))
		InternalError(c, MsgInboxListFailed)
		return
	}
	Success(c, inboxes)
}

// Get 返回单个邮箱详情
func (h *InboxHandler) Get(c *gin.Context) {
	inbox, err := h.inboxes.Get(c.GetString("userID"), c.Param("id"))
	if err != nil {
		respondInboxError(c, h.log, err)
		return
	}
	Success(c, inbox)
}

// Delete 删除邮箱及其下全部邮件
func (h *InboxHandler) Delete(c *gin.Context) {
	if err := h.inboxes.Delete(c.GetString("userID"), c.Param("id")); err != nil {
		respondInboxError(c, h.log, err)
		return
	}
	NoContent(c)
}

func respondInboxError(c *gin.Context, log *zap.Logger, err error) {
	switch err {
	case storage.ErrInboxNotFound:
		NotFound(c, GetErrorMessage(err))
	case service.ErrNotOwner:
		Forbidden(c, GetErrorMessage(err))
	default:
		log.Error("inbox operation failed", zap.Error(err))
		InternalError(c, MsgInternalError)
	}
}
