package security

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"dropmail/backend/internal/domain"
)

func TestAttachmentPolicy_Check(t *testing.T) {
	policy := DefaultAttachmentPolicy()

	t.Run("小图片通过", func(t *testing.T) {
		att := &domain.Attachment{ContentType: "image/png", Size: 1024}
		assert.Equal(t, RejectNone, policy.Check(att))
	})

	t.Run("PDF 通过", func(t *testing.T) {
		att := &domain.Attachment{ContentType: "application/pdf", Size: 2 * 1024 * 1024}
		assert.Equal(t, RejectNone, policy.Check(att))
	})

	t.Run("超出大小限制", func(t *testing.T) {
		att := &domain.Attachment{ContentType: "image/png", Size: 10 * 1024 * 1024}
		assert.Equal(t, RejectTooLarge, policy.Check(att))
	})

	t.Run("类型不在白名单", func(t *testing.T) {
		att := &domain.Attachment{ContentType: "application/x-msdownload", Size: 1024}
		assert.Equal(t, RejectTypeNotAllowed, policy.Check(att))
	})

	t.Run("先检查大小后检查类型", func(t *testing.T) {
		// 大小和类型同时超标时，报告大小原因
		att := &domain.Attachment{ContentType: "application/x-msdownload", Size: 10 * 1024 * 1024}
		assert.Equal(t, RejectTooLarge, policy.Check(att))
	})

	t.Run("类型匹配忽略大小写和空白", func(t *testing.T) {
		att := &domain.Attachment{ContentType: "  Image/JPEG  ", Size: 1024}
		assert.Equal(t, RejectNone, policy.Check(att))
	})

	t.Run("恰好等于上限通过", func(t *testing.T) {
		att := &domain.Attachment{ContentType: "image/png", Size: DefaultMaxAttachmentSize}
		assert.Equal(t, RejectNone, policy.Check(att))
	})
}

func TestAttachmentPolicy_Filter(t *testing.T) {
	policy := DefaultAttachmentPolicy()

	attachments := []*domain.Attachment{
		{ID: "a", ContentType: "application/pdf", Size: 2 * 1024 * 1024},
		{ID: "b", ContentType: "image/jpeg", Size: 10 * 1024 * 1024},
		{ID: "c", ContentType: "text/plain", Size: 100},
		{ID: "d", ContentType: "application/octet-stream", Size: 100},
	}

	accepted, rejected := policy.Filter(attachments)

	assert.Len(t, accepted, 2)
	assert.Equal(t, "a", accepted[0].ID)
	assert.Equal(t, "c", accepted[1].ID)
	assert.Equal(t, []RejectReason{RejectTooLarge, RejectTypeNotAllowed}, rejected)
}

func TestAttachmentPolicy_FilterEmpty(t *testing.T) {
	policy := DefaultAttachmentPolicy()

	accepted, rejected := policy.Filter(nil)
	assert.Nil(t, accepted)
	assert.Nil(t, rejected)
}
