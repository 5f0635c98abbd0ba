package security

import (
	"strings"

	"dropmail/backend/internal/domain"
)

// RejectReason 附件被拒绝的原因
type RejectReason string

const (
	// RejectNone 附件通过全部检查
	RejectNone RejectReason = ""
	// RejectTooLarge 附件超出大小限制
	RejectTooLarge RejectReason = "AttachmentTooLarge"
	// RejectTypeNotAllowed 附件类型不在白名单中
	RejectTypeNotAllowed RejectReason = "AttachmentTypeNotAllowed"
)

// DefaultMaxAttachmentSize 默认附件大小上限（5 MiB）
const DefaultMaxAttachmentSize = 5 * 1024 * 1024

// DefaultAllowedTypePrefixes 默认允许的 MIME 类型前缀
var DefaultAllowedTypePrefixes = []string{
	"image/",
	"text/",
	"application/pdf",
	"application/zip",
	"application/x-zip-compressed",
	"application/msword",
	"application/vnd.ms-",
	"application/vnd.openxmlformats-officedocument.",
}

// AttachmentPolicy 附件接收策略
type AttachmentPolicy struct {
	MaxSize             int64
	AllowedTypePrefixes []string
}

// DefaultAttachmentPolicy 返回默认附件策略
func DefaultAttachmentPolicy() *AttachmentPolicy {
	return &AttachmentPolicy{
		MaxSize:             DefaultMaxAttachmentSize,
		AllowedTypePrefixes: DefaultAllowedTypePrefixes,
	}
}

// Check 检查单个附件，按序短路：先大小，后类型
func (p *AttachmentPolicy) Check(att *domain.Attachment) RejectReason {
	if att.Size > p.MaxSize {
		return RejectTooLarge
	}

	contentType := strings.ToLower(strings.TrimSpace(att.ContentType))
	for _, prefix := range p.AllowedTypePrefixes {
		if strings.HasPrefix(contentType, prefix) {
			return RejectNone
		}
	}
	return RejectTypeNotAllowed
}

// Filter 过滤附件列表，返回通过检查的附件（保持接收顺序）与每个被拒附件的原因
func (p *AttachmentPolicy) Filter(attachments []*domain.Attachment) (accepted []*domain.Attachment, rejected []RejectReason) {
	for _, att := range attachments {
		if reason := p.Check(att); reason != RejectNone {
			rejected = append(rejected, reason)
			continue
		}
		accepted = append(accepted, att)
	}
	return accepted, rejected
}
