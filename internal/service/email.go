package service

import (
	"dropmail/backend/internal/domain"
	"dropmail/backend/internal/storage"
)

// EmailService 封装邮件读取与删除操作。
//
// 所有操作都以当前用户为主体，先校验邮件所属邮箱的归属。
type EmailService struct {
	store storage.Store
}

// NewEmailService 创建邮件业务服务。
func NewEmailService(store storage.Store) *EmailService {
	return &EmailService{store: store}
}

// List 返回邮箱内全部邮件（按接收时间倒序），校验归属。
func (s *EmailService) List(userID, inboxID string) ([]domain.Email, error) {
	if err := s.checkInboxOwner(userID, inboxID); err != nil {
		return nil, err
	}
	return s.store.ListEmails(inboxID)
}

// Get 获取单封邮件详情，校验归属。
func (s *EmailService) Get(userID, emailID string) (*domain.Email, error) {
	email, err := s.store.GetEmail(emailID)
	if err != nil {
		return nil, err
	}
	if err := s.checkInboxOwner(userID, email.InboxID); err != nil {
		return nil, err
	}
	return email, nil
}

// Delete 删除单封邮件，校验归属。
func (s *EmailService) Delete(userID, emailID string) error {
	email, err := s.store.GetEmail(emailID)
	if err != nil {
		return err
	}
	if err := s.checkInboxOwner(userID, email.InboxID); err != nil {
		return err
	}
	return s.store.DeleteEmail(emailID)
}

// GetAttachment 获取附件内容（原始字节），校验归属。
func (s *EmailService) GetAttachment(userID, emailID, attachmentID string) (*domain.Attachment, error) {
	email, err := s.store.GetEmail(emailID)
	if err != nil {
		return nil, err
	}
	if err := s.checkInboxOwner(userID, email.InboxID); err != nil {
		return nil, err
	}
	return s.store.GetAttachment(emailID, attachmentID)
}

func (s *EmailService) checkInboxOwner(userID, inboxID string) error {
	inbox, err := s.store.GetInbox(inboxID)
	if err != nil {
		return err
	}
	if inbox.UserID != userID {
		return ErrNotOwner
	}
	return nil
}
